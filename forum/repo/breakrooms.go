package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/acksell/pairent/dynamodb/store"
	"github.com/acksell/pairent/forum/entity"
	"github.com/acksell/pairent/forum/keys"
	"go.uber.org/zap"
)

// ttlGrace keeps expired rooms readable for a while before the table's
// TTL sweeper removes them.
const ttlGrace = 5 * time.Minute

// Breakrooms persists video room metadata and participants. Talking to
// the video provider is the caller's business.
type Breakrooms struct {
	client store.Client
	opts   options
	log    *zap.Logger
}

func NewBreakrooms(c store.Client, opts ...Option) *Breakrooms {
	o := newOptions(opts)
	return &Breakrooms{client: c, opts: o, log: o.log}
}

type NewRoom struct {
	// DailyRoomName is the provider's room name. Defaults to
	// "pairent-<room>".
	DailyRoomName string `json:"daily_room_name,omitempty"`
	URL           string `json:"url,omitempty"`
}

// CreateRoom opens an active room owned by the user and joins the owner
// as host.
func (b *Breakrooms) CreateRoom(ctx context.Context, auth AuthContext, in NewRoom) (entity.Breakroom, error) {
	now := b.opts.clock.Now()
	exp := now.Add(b.opts.roomTTL)
	room := entity.Breakroom{
		Room:          b.opts.ids.NewID(),
		Owner:         auth.UserID(),
		Status:        entity.RoomActive,
		DailyRoomName: in.DailyRoomName,
		URL:           in.URL,
		CreatedAt:     entity.Timestamp(now),
		Exp:           exp.Unix(),
		TTL:           exp.Add(ttlGrace).Unix(),
	}
	if room.DailyRoomName == "" {
		room.DailyRoomName = "pairent-" + room.Room
	}
	if err := create(ctx, b.client, room); err != nil {
		return entity.Breakroom{}, err
	}
	if _, err := b.join(ctx, room, room.Owner); err != nil {
		return entity.Breakroom{}, err
	}
	b.log.Debug("created breakroom", zap.String("room", room.Room), zap.Int64("exp", room.Exp))
	return room, nil
}

func (b *Breakrooms) GetRoom(ctx context.Context, room string) (entity.Breakroom, error) {
	return get[entity.Breakroom](ctx, b.client, keys.Breakroom(room))
}

func (b *Breakrooms) SetStatus(ctx context.Context, room string, status entity.RoomStatus) (entity.Breakroom, error) {
	switch status {
	case entity.RoomCreated, entity.RoomActive, entity.RoomEnded:
	default:
		return entity.Breakroom{}, fmt.Errorf("%w: room status %q", store.ErrInvalidArgument, status)
	}
	return patch[entity.Breakroom](ctx, b.client, keys.Breakroom(room), store.NewUpdate().Set("status", status))
}

// Join adds the user to an active room. Joining a room that is not
// active yields store.ErrConflict.
func (b *Breakrooms) Join(ctx context.Context, auth AuthContext, room string) (entity.Participant, error) {
	r, err := b.GetRoom(ctx, room)
	if err != nil {
		return entity.Participant{}, err
	}
	if r.Status != entity.RoomActive {
		return entity.Participant{}, fmt.Errorf("room %s is %s: %w", room, r.Status, store.ErrConflict)
	}
	return b.join(ctx, r, auth.UserID())
}

func (b *Breakrooms) join(ctx context.Context, r entity.Breakroom, uid string) (entity.Participant, error) {
	role := entity.RoleGuest
	if uid == r.Owner {
		role = entity.RoleHost
	}
	p := entity.Participant{
		Room:     r.Room,
		UserID:   uid,
		Role:     role,
		JoinedAt: b.opts.now(),
		TTL:      r.TTL,
	}
	if err := entity.Validate(p); err != nil {
		return entity.Participant{}, err
	}
	if err := putEntity(ctx, b.client, p); err != nil {
		return entity.Participant{}, err
	}
	return p, nil
}

func (b *Breakrooms) Participants(ctx context.Context, room string) ([]entity.Participant, error) {
	return listPrefix[entity.Participant](ctx, b.client, keys.BreakroomPartition(room), keys.ParticipantPrefix)
}

// ListRooms scans for room metadata. With an owner it returns that
// owner's rooms in any status, otherwise every active room.
func (b *Breakrooms) ListRooms(ctx context.Context, owner string) ([]entity.Breakroom, error) {
	def := b.client.Table()
	in := store.ScanInput{Limit: b.opts.limits.Max}
	out := []entity.Breakroom{}
	for {
		page, err := b.client.Scan(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("scan breakrooms: %w", err)
		}
		for _, item := range page.Items {
			k, err := store.KeyOf(def, item)
			if err != nil {
				return nil, err
			}
			if kind, _, err := keys.DecodeKey(k); err != nil || kind != keys.KindBreakroom {
				continue
			}
			r, err := entity.FromItem[entity.Breakroom](item)
			if err != nil {
				return nil, err
			}
			if (owner != "" && r.Owner == owner) || (owner == "" && r.Status == entity.RoomActive) {
				out = append(out, r)
			}
		}
		if page.LastKey == nil {
			return out, nil
		}
		in.StartKey = page.LastKey
	}
}

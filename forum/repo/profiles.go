package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/acksell/pairent/dynamodb/store"
	"github.com/acksell/pairent/dynamodb/table"
	"github.com/acksell/pairent/forum/cascade"
	"github.com/acksell/pairent/forum/entity"
	"github.com/acksell/pairent/forum/keys"
	"go.uber.org/zap"
)

// Profiles manages user profiles, children with their growth and vaccine
// records, and friendships.
type Profiles struct {
	client  store.Client
	opts    options
	log     *zap.Logger
	deleter *cascade.Deleter
}

func NewProfiles(c store.Client, opts ...Option) *Profiles {
	o := newOptions(opts)
	return &Profiles{
		client:  c,
		opts:    o,
		log:     o.log,
		deleter: cascade.NewDeleter(c, o.cascadeOptions()...),
	}
}

// CreateProfile fails with store.ErrConflict when the user has one.
// Friends can only be gained through requests.
func (p *Profiles) CreateProfile(ctx context.Context, in entity.Profile) (entity.Profile, error) {
	in.Friends = nil
	if err := create(ctx, p.client, in); err != nil {
		return entity.Profile{}, err
	}
	in.Friends = []string{}
	if in.Privacy == nil {
		in.Privacy = map[string]entity.Visibility{}
	}
	return in, nil
}

func (p *Profiles) GetProfile(ctx context.Context, uid string) (entity.Profile, error) {
	return get[entity.Profile](ctx, p.client, keys.Profile(uid))
}

// UpdateProfile applies a sparse patch and returns the whole profile.
func (p *Profiles) UpdateProfile(ctx context.Context, uid string, patchIn entity.ProfilePatch) (entity.Profile, error) {
	if err := entity.Validate(patchIn); err != nil {
		return entity.Profile{}, err
	}
	return patch[entity.Profile](ctx, p.client, keys.Profile(uid), patchIn.Update())
}

// DeleteProfile removes the profile with its children, their records and
// incoming friend requests, and drops the user from friends' lists. Saves
// and follows stay in the partition.
func (p *Profiles) DeleteProfile(ctx context.Context, uid string) (cascade.Result, error) {
	prof, err := p.GetProfile(ctx, uid)
	if errors.Is(err, store.ErrNotFound) {
		return cascade.Result{}, nil
	}
	if err != nil {
		return cascade.Result{}, err
	}

	pk := keys.UserPartition(uid)
	var res cascade.Result
	for _, prefix := range []string{keys.ChildrenPrefix, keys.FriendRequestPrefix} {
		r, err := p.deleter.DeletePrefix(ctx, pk, prefix)
		res.Items += r.Items
		if err != nil {
			return res, err
		}
		if r.Truncated {
			res.Truncated = true
			return res, nil
		}
	}
	for _, friend := range prof.Friends {
		if err := p.unfriend(ctx, friend, uid); err != nil && !errors.Is(err, store.ErrNotFound) {
			return res, err
		}
	}
	if _, err := remove(ctx, p.client, keys.Profile(uid)); err != nil {
		return res, err
	}
	res.Deleted = true
	res.Items++
	p.log.Info("deleted profile", zap.String("user", uid), zap.Int("items", res.Items))
	return res, nil
}

type NewChild struct {
	Name    string                       `json:"name"`
	DOB     string                       `json:"dob"`
	Privacy map[string]entity.Visibility `json:"privacy,omitempty"`
}

// AddChild adds a child to an existing profile.
func (p *Profiles) AddChild(ctx context.Context, uid string, in NewChild) (entity.Child, error) {
	if _, err := p.GetProfile(ctx, uid); err != nil {
		return entity.Child{}, err
	}
	c := entity.Child{UserID: uid, ChildID: p.opts.ids.NewID(), Name: in.Name, DOB: in.DOB, Privacy: in.Privacy}
	if err := create(ctx, p.client, c); err != nil {
		return entity.Child{}, err
	}
	return c, nil
}

func (p *Profiles) GetChild(ctx context.Context, uid, cid string) (entity.Child, error) {
	return get[entity.Child](ctx, p.client, keys.Child(uid, cid))
}

// ListChildren returns the children of a user. Growth and vaccine rows
// share the key prefix and are skipped.
func (p *Profiles) ListChildren(ctx context.Context, uid string) ([]entity.Child, error) {
	items, err := queryAll(ctx, p.client, store.QueryInput{
		Partition:  keys.UserPartition(uid),
		Sort:       store.BeginsWith(keys.ChildrenPrefix),
		Forward:    true,
		Consistent: true,
	})
	if err != nil {
		return nil, fmt.Errorf("list children of %s: %w", uid, err)
	}
	out := []entity.Child{}
	for _, item := range items {
		k, err := store.KeyOf(p.client.Table(), item)
		if err != nil {
			return nil, err
		}
		if kind, _, err := keys.DecodeKey(k); err != nil || kind != keys.KindChild {
			continue
		}
		c, err := entity.FromItem[entity.Child](item)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func (p *Profiles) UpdateChild(ctx context.Context, uid, cid string, patchIn entity.ChildPatch) (entity.Child, error) {
	if err := entity.Validate(patchIn); err != nil {
		return entity.Child{}, err
	}
	return patch[entity.Child](ctx, p.client, keys.Child(uid, cid), patchIn.Update())
}

// DeleteChild removes a child with its growth and vaccine records.
func (p *Profiles) DeleteChild(ctx context.Context, uid, cid string) (cascade.Result, error) {
	res, err := p.deleter.DeletePrefix(ctx, keys.UserPartition(uid), keys.ChildPrefix(cid))
	if err != nil || res.Truncated {
		return res, err
	}
	existed, err := remove(ctx, p.client, keys.Child(uid, cid))
	if err != nil {
		return res, err
	}
	if existed {
		res.Deleted = true
		res.Items++
	}
	return res, nil
}

// AddGrowth records a measurement. A record on the same date is replaced.
func (p *Profiles) AddGrowth(ctx context.Context, g entity.Growth) (entity.Growth, error) {
	if err := entity.Validate(g); err != nil {
		return entity.Growth{}, err
	}
	if _, err := p.GetChild(ctx, g.UserID, g.ChildID); err != nil {
		return entity.Growth{}, err
	}
	if err := putEntity(ctx, p.client, g); err != nil {
		return entity.Growth{}, err
	}
	return g, nil
}

// ListGrowth returns a child's measurements in date order.
func (p *Profiles) ListGrowth(ctx context.Context, uid, cid string) ([]entity.Growth, error) {
	return listPrefix[entity.Growth](ctx, p.client, keys.UserPartition(uid), keys.GrowthPrefix(cid))
}

// AddVaccine records a vaccine. A record of the same vaccine is replaced.
func (p *Profiles) AddVaccine(ctx context.Context, v entity.Vaccine) (entity.Vaccine, error) {
	if err := entity.Validate(v); err != nil {
		return entity.Vaccine{}, err
	}
	if _, err := p.GetChild(ctx, v.UserID, v.ChildID); err != nil {
		return entity.Vaccine{}, err
	}
	if err := putEntity(ctx, p.client, v); err != nil {
		return entity.Vaccine{}, err
	}
	return v, nil
}

func (p *Profiles) ListVaccines(ctx context.Context, uid, cid string) ([]entity.Vaccine, error) {
	return listPrefix[entity.Vaccine](ctx, p.client, keys.UserPartition(uid), keys.VaccinePrefix(cid))
}

// SendFriendRequest files a request in the recipient's partition. A
// pending request between the same pair yields store.ErrConflict.
func (p *Profiles) SendFriendRequest(ctx context.Context, auth AuthContext, to string) (entity.FriendRequest, error) {
	r := entity.NewFriendRequest(auth.UserID(), to, p.opts.now())
	if err := entity.Validate(r); err != nil {
		return entity.FriendRequest{}, err
	}
	target, err := p.GetProfile(ctx, to)
	if err != nil {
		return entity.FriendRequest{}, err
	}
	for _, f := range target.Friends {
		if f == r.From {
			return entity.FriendRequest{}, fmt.Errorf("%s and %s are already friends: %w", r.From, to, store.ErrConflict)
		}
	}
	if err := create(ctx, p.client, r); err != nil {
		return entity.FriendRequest{}, err
	}
	return r, nil
}

// AcceptFriendRequest consumes the request from sender and makes the two
// users friends.
func (p *Profiles) AcceptFriendRequest(ctx context.Context, auth AuthContext, from string) error {
	to := auth.UserID()
	_, err := p.client.DeleteItem(ctx, keys.FriendRequest(to, from), store.IfExists())
	if errors.Is(err, store.ErrConditionFailed) {
		return fmt.Errorf("friend request %s -> %s: %w", from, to, store.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("accept friend request %s -> %s: %w", from, to, err)
	}
	if err := p.befriend(ctx, to, from); err != nil {
		return err
	}
	if err := p.befriend(ctx, from, to); err != nil {
		return err
	}
	p.log.Debug("friend request accepted", zap.String("from", from), zap.String("to", to))
	return nil
}

// DeclineFriendRequest removes a request and reports whether it existed.
func (p *Profiles) DeclineFriendRequest(ctx context.Context, auth AuthContext, from string) (bool, error) {
	return remove(ctx, p.client, keys.FriendRequest(auth.UserID(), from))
}

// ListFriendRequests returns the requests the user received.
func (p *Profiles) ListFriendRequests(ctx context.Context, auth AuthContext) ([]entity.FriendRequest, error) {
	return listPrefix[entity.FriendRequest](ctx, p.client, keys.UserPartition(auth.UserID()), keys.FriendRequestPrefix)
}

// ListSentFriendRequests returns the user's pending outgoing requests,
// newest first. It reads an eventually consistent index.
func (p *Profiles) ListSentFriendRequests(ctx context.Context, auth AuthContext) ([]entity.FriendRequest, error) {
	items, err := queryAll(ctx, p.client, store.QueryInput{
		Index:     table.IndexFriendRequestsBySender,
		Partition: auth.UserID(),
	})
	if err != nil {
		return nil, fmt.Errorf("list sent friend requests: %w", err)
	}
	return entity.FromItems[entity.FriendRequest](items)
}

// RemoveFriend ends a friendship on both sides.
func (p *Profiles) RemoveFriend(ctx context.Context, auth AuthContext, friend string) error {
	uid := auth.UserID()
	if err := p.unfriend(ctx, uid, friend); err != nil {
		return err
	}
	if err := p.unfriend(ctx, friend, uid); err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}
	return nil
}

func (p *Profiles) befriend(ctx context.Context, uid, friend string) error {
	_, err := p.client.UpdateItem(ctx, keys.Profile(uid),
		store.NewUpdate().AddToSet(entity.AttrFriends, friend).When(store.IfExists()))
	if errors.Is(err, store.ErrConditionFailed) {
		return fmt.Errorf("profile %s: %w", uid, store.ErrNotFound)
	}
	return err
}

func (p *Profiles) unfriend(ctx context.Context, uid, friend string) error {
	_, err := p.client.UpdateItem(ctx, keys.Profile(uid),
		store.NewUpdate().DeleteFromSet(entity.AttrFriends, friend).When(store.IfExists()))
	if errors.Is(err, store.ErrConditionFailed) {
		return fmt.Errorf("profile %s: %w", uid, store.ErrNotFound)
	}
	return err
}

// listPrefix reads and decodes a whole sort key range.
func listPrefix[T any, PT interface {
	*T
	entity.Entity
}](ctx context.Context, c store.Client, pk, prefix string) ([]T, error) {
	items, err := queryAll(ctx, c, store.QueryInput{
		Partition:  pk,
		Sort:       store.BeginsWith(prefix),
		Forward:    true,
		Consistent: true,
	})
	if err != nil {
		return nil, fmt.Errorf("list %s/%s*: %w", pk, prefix, err)
	}
	return entity.FromItems[T, PT](items)
}

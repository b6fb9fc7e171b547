package entity

import (
	"github.com/acksell/pairent/dynamodb/store"
	"github.com/acksell/pairent/forum/keys"
)

type RoomStatus string

const (
	RoomCreated RoomStatus = "created"
	RoomActive  RoomStatus = "active"
	RoomEnded   RoomStatus = "ended"
)

// Breakroom is the persisted metadata of a video room. The provider
// itself is external; only its room name and URL are kept.
type Breakroom struct {
	Room          string     `dynamodbav:"room" json:"room" validate:"required,keyid"`
	Owner         string     `dynamodbav:"owner" json:"owner" validate:"required,keyid"`
	Status        RoomStatus `dynamodbav:"status" json:"status" validate:"required,oneof=created active ended"`
	DailyRoomName string     `dynamodbav:"daily_room_name" json:"daily_room_name"`
	URL           string     `dynamodbav:"url" json:"url" validate:"omitempty,url"`
	CreatedAt     string     `dynamodbav:"created_at" json:"created_at" validate:"required"`
	Exp           int64      `dynamodbav:"exp" json:"exp" validate:"min=0"`
	TTL           int64      `dynamodbav:"ttl,omitempty" json:"-"`
}

func (b Breakroom) Key() store.Key { return keys.Breakroom(b.Room) }

type Role string

const (
	RoleHost  Role = "host"
	RoleGuest Role = "guest"
)

type Participant struct {
	Room     string `dynamodbav:"room" json:"room" validate:"required,keyid"`
	UserID   string `dynamodbav:"user_id" json:"user_id" validate:"required,keyid"`
	Role     Role   `dynamodbav:"role" json:"role" validate:"required,oneof=host guest"`
	JoinedAt string `dynamodbav:"joined_at" json:"joined_at" validate:"required"`
	TTL      int64  `dynamodbav:"ttl,omitempty" json:"-"`
}

func (p Participant) Key() store.Key { return keys.Participant(p.Room, p.UserID) }

package entity

import (
	"fmt"

	"github.com/acksell/pairent/dynamodb/store"
	"github.com/acksell/pairent/forum/keys"
)

// Visibility of a profile or child field.
type Visibility string

const (
	Public  Visibility = "public"
	Friends Visibility = "friends"
	Private Visibility = "private"
)

const AttrFriends = "friends"

type Profile struct {
	UserID  string                `dynamodbav:"user_id" json:"user_id" validate:"required,keyid"`
	Name    string                `dynamodbav:"name" json:"name" validate:"required"`
	DOB     string                `dynamodbav:"dob" json:"dob"`
	Friends []string              `dynamodbav:"friends,stringset,omitempty" json:"friends"`
	Privacy map[string]Visibility `dynamodbav:"privacy,omitempty" json:"privacy,omitempty" validate:"dive,oneof=public friends private"`
}

func (p Profile) Key() store.Key { return keys.Profile(p.UserID) }

func (p *Profile) applyDefaults() {
	if p.Friends == nil {
		p.Friends = []string{}
	}
	if p.Privacy == nil {
		p.Privacy = map[string]Visibility{}
	}
}

type ProfilePatch struct {
	Name    *string                `json:"name,omitempty" validate:"omitnil,min=1"`
	DOB     *string                `json:"dob,omitempty"`
	Privacy *map[string]Visibility `json:"privacy,omitempty" validate:"omitnil,dive,oneof=public friends private"`
}

func (p ProfilePatch) Update() *store.Update {
	u := store.NewUpdate()
	if p.Name != nil {
		u.Set("name", *p.Name)
	}
	if p.DOB != nil {
		u.Set("dob", *p.DOB)
	}
	if p.Privacy != nil {
		u.Set("privacy", *p.Privacy)
	}
	return u
}

type Child struct {
	UserID  string                `dynamodbav:"user_id" json:"user_id" validate:"required,keyid"`
	ChildID string                `dynamodbav:"child_id" json:"child_id" validate:"required,keyid"`
	Name    string                `dynamodbav:"name" json:"name" validate:"required"`
	DOB     string                `dynamodbav:"dob" json:"dob"`
	Privacy map[string]Visibility `dynamodbav:"privacy,omitempty" json:"privacy,omitempty" validate:"dive,oneof=public friends private"`
}

func (c Child) Key() store.Key { return keys.Child(c.UserID, c.ChildID) }

func (c *Child) applyDefaults() {
	if c.Privacy == nil {
		c.Privacy = map[string]Visibility{}
	}
}

type ChildPatch struct {
	Name    *string                `json:"name,omitempty" validate:"omitnil,min=1"`
	DOB     *string                `json:"dob,omitempty"`
	Privacy *map[string]Visibility `json:"privacy,omitempty" validate:"omitnil,dive,oneof=public friends private"`
}

func (p ChildPatch) Update() *store.Update {
	return ProfilePatch(p).Update()
}

// Growth is one measurement of a child. A second record on the same date
// replaces the first.
type Growth struct {
	UserID  string  `dynamodbav:"user_id" json:"user_id" validate:"required,keyid"`
	ChildID string  `dynamodbav:"child_id" json:"child_id" validate:"required,keyid"`
	Date    string  `dynamodbav:"date" json:"date" validate:"required,keyid"`
	Height  Measure `dynamodbav:"height" json:"height"`
	Weight  Measure `dynamodbav:"weight" json:"weight"`
}

func (g Growth) Key() store.Key { return keys.Growth(g.UserID, g.ChildID, g.Date) }

func (g Growth) validate() error {
	if g.Height.IsNegative() || g.Weight.IsNegative() {
		return fmt.Errorf("growth measures must not be negative")
	}
	if err := g.Height.checkPlaces(); err != nil {
		return fmt.Errorf("height: %w", err)
	}
	if err := g.Weight.checkPlaces(); err != nil {
		return fmt.Errorf("weight: %w", err)
	}
	return nil
}

type VaccineStatus string

const (
	VaccineDone    VaccineStatus = "done"
	VaccinePending VaccineStatus = "pending"
	VaccineSkipped VaccineStatus = "skipped"
)

type Vaccine struct {
	UserID  string        `dynamodbav:"user_id" json:"user_id" validate:"required,keyid"`
	ChildID string        `dynamodbav:"child_id" json:"child_id" validate:"required,keyid"`
	Name    string        `dynamodbav:"name" json:"name" validate:"required,keyid"`
	Date    string        `dynamodbav:"date" json:"date"`
	Status  VaccineStatus `dynamodbav:"status" json:"status" validate:"required,oneof=done pending skipped"`
}

func (v Vaccine) Key() store.Key { return keys.Vaccine(v.UserID, v.ChildID, v.Name) }

const FriendRequestPending = "pending"

// FriendRequest lives in the recipient's partition; sender_id feeds the
// by-sender index.
type FriendRequest struct {
	From     string `dynamodbav:"from" json:"from" validate:"required,keyid"`
	To       string `dynamodbav:"to" json:"to" validate:"required,keyid,nefield=From"`
	SenderID string `dynamodbav:"sender_id" json:"-"`
	Status   string `dynamodbav:"status" json:"status"`
	Date     string `dynamodbav:"date" json:"date" validate:"required"`
}

func (r FriendRequest) Key() store.Key { return keys.FriendRequest(r.To, r.From) }

func (r *FriendRequest) applyDefaults() {
	if r.SenderID == "" {
		r.SenderID = r.From
	}
	if r.Status == "" {
		r.Status = FriendRequestPending
	}
}

// NewFriendRequest builds a pending request from one user to another.
func NewFriendRequest(from, to, date string) FriendRequest {
	return FriendRequest{From: from, To: to, SenderID: from, Status: FriendRequestPending, Date: date}
}

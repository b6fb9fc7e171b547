package repo

import (
	"context"
	"testing"
	"time"

	"github.com/acksell/pairent/dynamodb/store"
	"github.com/acksell/pairent/forum/entity"
	"github.com/acksell/pairent/forum/keys"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfiles(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	p := fx.profiles

	created, err := p.CreateProfile(ctx, entity.Profile{UserID: "alice", Name: "Alice", Friends: []string{"mallory"}})
	require.NoError(t, err)
	assert.Empty(t, created.Friends)

	_, err = p.CreateProfile(ctx, entity.Profile{UserID: "alice", Name: "Again"})
	assert.ErrorIs(t, err, store.ErrConflict)
	_, err = p.CreateProfile(ctx, entity.Profile{UserID: "bob"})
	assert.ErrorIs(t, err, store.ErrInvalidArgument)

	dob := "2020-05-01"
	got, err := p.UpdateProfile(ctx, "alice", entity.ProfilePatch{DOB: &dob})
	require.NoError(t, err)
	assert.Equal(t, "Alice", got.Name)
	assert.Equal(t, dob, got.DOB)

	_, err = p.UpdateProfile(ctx, "nobody", entity.ProfilePatch{DOB: &dob})
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = p.GetProfile(ctx, "nobody")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestChildren(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	p := fx.profiles
	_, err := p.CreateProfile(ctx, entity.Profile{UserID: "alice", Name: "Alice"})
	require.NoError(t, err)

	_, err = p.AddChild(ctx, "bob", NewChild{Name: "Nobody's"})
	assert.ErrorIs(t, err, store.ErrNotFound)

	ann, err := p.AddChild(ctx, "alice", NewChild{Name: "Ann", DOB: "2022-01-01"})
	require.NoError(t, err)
	ben, err := p.AddChild(ctx, "alice", NewChild{Name: "Ben"})
	require.NoError(t, err)

	for _, g := range []entity.Growth{
		{UserID: "alice", ChildID: ann.ChildID, Date: "2023-02-01", Height: entity.MustMeasure("80.5"), Weight: entity.MustMeasure("10.2")},
		{UserID: "alice", ChildID: ann.ChildID, Date: "2023-01-01", Height: entity.MustMeasure("78"), Weight: entity.MustMeasure("9.9")},
		{UserID: "alice", ChildID: ann.ChildID, Date: "2023-02-01", Height: entity.MustMeasure("81"), Weight: entity.MustMeasure("10.4")},
		{UserID: "alice", ChildID: ben.ChildID, Date: "2023-01-01", Height: entity.MustMeasure("50"), Weight: entity.MustMeasure("3.4")},
	} {
		_, err := p.AddGrowth(ctx, g)
		require.NoError(t, err)
	}
	_, err = p.AddGrowth(ctx, entity.Growth{UserID: "alice", ChildID: "ghost", Date: "2023-01-01"})
	assert.ErrorIs(t, err, store.ErrNotFound)

	growth, err := p.ListGrowth(ctx, "alice", ann.ChildID)
	require.NoError(t, err)
	require.Len(t, growth, 2)
	assert.Equal(t, "2023-01-01", growth[0].Date)
	assert.Equal(t, "81.000", growth[1].Height.String())

	_, err = p.AddVaccine(ctx, entity.Vaccine{UserID: "alice", ChildID: ann.ChildID, Name: "MMR", Date: "2023-03-01", Status: entity.VaccinePending})
	require.NoError(t, err)
	_, err = p.AddVaccine(ctx, entity.Vaccine{UserID: "alice", ChildID: ann.ChildID, Name: "MMR", Date: "2023-03-02", Status: entity.VaccineDone})
	require.NoError(t, err)
	_, err = p.AddVaccine(ctx, entity.Vaccine{UserID: "alice", ChildID: ann.ChildID, Name: "Polio", Status: "maybe"})
	assert.ErrorIs(t, err, store.ErrInvalidArgument)

	vaccines, err := p.ListVaccines(ctx, "alice", ann.ChildID)
	require.NoError(t, err)
	require.Len(t, vaccines, 1)
	assert.Equal(t, entity.VaccineDone, vaccines[0].Status)

	children, err := p.ListChildren(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, children, 2)

	name := "Annie"
	renamed, err := p.UpdateChild(ctx, "alice", ann.ChildID, entity.ChildPatch{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Annie", renamed.Name)
	assert.Equal(t, "2022-01-01", renamed.DOB)

	res, err := p.DeleteChild(ctx, "alice", ann.ChildID)
	require.NoError(t, err)
	assert.True(t, res.Deleted)
	assert.Equal(t, 4, res.Items)

	_, err = p.GetChild(ctx, "alice", ann.ChildID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	growth, err = p.ListGrowth(ctx, "alice", ann.ChildID)
	require.NoError(t, err)
	assert.Empty(t, growth)
	growth, err = p.ListGrowth(ctx, "alice", ben.ChildID)
	require.NoError(t, err)
	assert.Len(t, growth, 1)
}

func TestGrowthKeepsExactMeasures(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	p := fx.profiles
	_, err := p.CreateProfile(ctx, entity.Profile{UserID: "alice", Name: "Alice"})
	require.NoError(t, err)
	ann, err := p.AddChild(ctx, "alice", NewChild{Name: "Ann"})
	require.NoError(t, err)

	t.Run("too many places are rejected", func(t *testing.T) {
		_, err := p.AddGrowth(ctx, entity.Growth{
			UserID: "alice", ChildID: ann.ChildID, Date: "2023-01-01",
			Height: entity.Measure{Decimal: decimal.RequireFromString("72.12345")},
			Weight: entity.Measure{Decimal: decimal.RequireFromString("9.0004")},
		})
		assert.ErrorIs(t, err, store.ErrInvalidArgument)

		growth, err := p.ListGrowth(ctx, "alice", ann.ChildID)
		require.NoError(t, err)
		assert.Empty(t, growth)
	})

	t.Run("returned value is the stored value", func(t *testing.T) {
		saved, err := p.AddGrowth(ctx, entity.Growth{
			UserID: "alice", ChildID: ann.ChildID, Date: "2023-01-01",
			Height: entity.MustMeasure("72.125"), Weight: entity.MustMeasure("9.0040"),
		})
		require.NoError(t, err)

		growth, err := p.ListGrowth(ctx, "alice", ann.ChildID)
		require.NoError(t, err)
		require.Len(t, growth, 1)
		assert.True(t, saved.Height.Equal(growth[0].Height.Decimal))
		assert.True(t, saved.Weight.Equal(growth[0].Weight.Decimal))
		assert.Equal(t, "72.125", growth[0].Height.String())
	})
}

func TestFriendRequests(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	p := fx.profiles
	for _, u := range []string{"alice", "bob", "carol"} {
		_, err := p.CreateProfile(ctx, entity.Profile{UserID: u, Name: u})
		require.NoError(t, err)
	}

	_, err := p.SendFriendRequest(ctx, alice, "bob")
	require.NoError(t, err)
	_, err = p.SendFriendRequest(ctx, alice, "carol")
	require.NoError(t, err)
	_, err = p.SendFriendRequest(ctx, alice, "bob")
	assert.ErrorIs(t, err, store.ErrConflict)
	_, err = p.SendFriendRequest(ctx, alice, "alice")
	assert.ErrorIs(t, err, store.ErrInvalidArgument)
	_, err = p.SendFriendRequest(ctx, alice, "nobody")
	assert.ErrorIs(t, err, store.ErrNotFound)

	incoming, err := p.ListFriendRequests(ctx, bob)
	require.NoError(t, err)
	require.Len(t, incoming, 1)
	assert.Equal(t, "alice", incoming[0].From)
	assert.Equal(t, entity.FriendRequestPending, incoming[0].Status)

	sent, err := p.ListSentFriendRequests(ctx, alice)
	require.NoError(t, err)
	assert.Len(t, sent, 2)

	require.NoError(t, p.AcceptFriendRequest(ctx, bob, "alice"))
	assert.ErrorIs(t, p.AcceptFriendRequest(ctx, bob, "alice"), store.ErrNotFound)

	a, err := p.GetProfile(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"bob"}, a.Friends)
	b, err := p.GetProfile(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, b.Friends)

	_, err = p.SendFriendRequest(ctx, bob, "alice")
	assert.ErrorIs(t, err, store.ErrConflict)

	declined, err := p.DeclineFriendRequest(ctx, carol, "alice")
	require.NoError(t, err)
	assert.True(t, declined)
	sent, err = p.ListSentFriendRequests(ctx, alice)
	require.NoError(t, err)
	assert.Empty(t, sent)

	t.Run("delete profile unfriends", func(t *testing.T) {
		res, err := p.DeleteProfile(ctx, "bob")
		require.NoError(t, err)
		assert.True(t, res.Deleted)
		a, err := p.GetProfile(ctx, "alice")
		require.NoError(t, err)
		assert.Empty(t, a.Friends)

		res, err = p.DeleteProfile(ctx, "bob")
		require.NoError(t, err)
		assert.False(t, res.Deleted)
	})

	t.Run("remove friend", func(t *testing.T) {
		_, err := p.SendFriendRequest(ctx, carol, "alice")
		require.NoError(t, err)
		require.NoError(t, p.AcceptFriendRequest(ctx, alice, "carol"))
		require.NoError(t, p.RemoveFriend(ctx, carol, "alice"))
		for _, u := range []string{"alice", "carol"} {
			prof, err := p.GetProfile(ctx, u)
			require.NoError(t, err)
			assert.Empty(t, prof.Friends)
		}
	})
}

func TestDeleteProfileKeepsForumRows(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	_, err := fx.profiles.CreateProfile(ctx, entity.Profile{UserID: "bob", Name: "Bob"})
	require.NoError(t, err)
	child, err := fx.profiles.AddChild(ctx, "bob", NewChild{Name: "Kid"})
	require.NoError(t, err)
	_, err = fx.profiles.AddGrowth(ctx, entity.Growth{UserID: "bob", ChildID: child.ChildID, Date: "2024-01-01", Height: entity.MustMeasure("60"), Weight: entity.MustMeasure("6")})
	require.NoError(t, err)
	q, err := fx.forum.CreateQuestion(ctx, alice, NewQuestion{Title: "T"})
	require.NoError(t, err)
	require.NoError(t, fx.forum.Save(ctx, bob, q.QID))

	res, err := fx.profiles.DeleteProfile(ctx, "bob")
	require.NoError(t, err)
	assert.True(t, res.Deleted)
	assert.Equal(t, 3, res.Items)

	rows := fx.partition(t, keys.UserPartition("bob"))
	require.Len(t, rows, 1)
	saved, err := fx.forum.IsSaved(ctx, bob, q.QID)
	require.NoError(t, err)
	assert.True(t, saved)
}

func TestBreakrooms(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	b := fx.breakrooms

	room, err := b.CreateRoom(ctx, alice, NewRoom{URL: "https://pairent.daily.co/r1"})
	require.NoError(t, err)
	assert.Equal(t, entity.RoomActive, room.Status)
	assert.Equal(t, "pairent-"+room.Room, room.DailyRoomName)
	assert.Equal(t, int64(2*time.Hour/time.Second), room.Exp-epoch.Unix()-1)
	assert.Equal(t, room.Exp+300, room.TTL)

	_, err = b.CreateRoom(ctx, bob, NewRoom{URL: "not a url"})
	assert.ErrorIs(t, err, store.ErrInvalidArgument)

	guest, err := b.Join(ctx, bob, room.Room)
	require.NoError(t, err)
	assert.Equal(t, entity.RoleGuest, guest.Role)
	assert.Equal(t, room.TTL, guest.TTL)

	people, err := b.Participants(ctx, room.Room)
	require.NoError(t, err)
	require.Len(t, people, 2)
	roles := map[string]entity.Role{}
	for _, p := range people {
		roles[p.UserID] = p.Role
	}
	assert.Equal(t, map[string]entity.Role{"alice": entity.RoleHost, "bob": entity.RoleGuest}, roles)

	other, err := b.CreateRoom(ctx, bob, NewRoom{DailyRoomName: "bobs-room"})
	require.NoError(t, err)

	ended, err := b.SetStatus(ctx, room.Room, entity.RoomEnded)
	require.NoError(t, err)
	assert.Equal(t, entity.RoomEnded, ended.Status)
	_, err = b.Join(ctx, carol, room.Room)
	assert.ErrorIs(t, err, store.ErrConflict)
	_, err = b.SetStatus(ctx, room.Room, "paused")
	assert.ErrorIs(t, err, store.ErrInvalidArgument)
	_, err = b.Join(ctx, carol, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)

	active, err := b.ListRooms(ctx, "")
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, other.Room, active[0].Room)

	mine, err := b.ListRooms(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, room.Room, mine[0].Room)
}

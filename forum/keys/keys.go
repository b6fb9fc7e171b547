// Package keys maps forum entities onto the composite primary key of the
// single table and back.
//
// Every kind is described by a pair of patterns in the {field} syntax.
// Identifier segments are opaque and must not contain the delimiter;
// ValidateID enforces that when entities are created.
package keys

import (
	"fmt"
	"strings"

	"github.com/acksell/pairent/dynamodb/store"
)

// Kind names an entity type stored in the table.
type Kind string

const (
	KindQuestion      Kind = "question"
	KindReply         Kind = "reply"
	KindLike          Kind = "like"
	KindSave          Kind = "save"
	KindTag           Kind = "tag"
	KindFollow        Kind = "follow"
	KindProfile       Kind = "profile"
	KindChild         Kind = "child"
	KindGrowth        Kind = "growth"
	KindVaccine       Kind = "vaccine"
	KindFriendRequest Kind = "friend_request"
	KindBreakroom     Kind = "breakroom"
	KindParticipant   Kind = "participant"
)

// Literal sort keys.
const (
	QuestionSK  = "!"
	ProfileSK   = "PROFILE"
	BreakroomSK = "META"
)

var (
	ErrUnknownEntityKind = fmt.Errorf("%w: unknown entity kind", store.ErrInvalidArgument)
	ErrArity             = fmt.Errorf("%w: wrong number of key identifiers", store.ErrInvalidArgument)
	ErrInvalidID         = fmt.Errorf("%w: invalid identifier", store.ErrInvalidArgument)
)

type scheme struct {
	kind Kind
	pk   pattern
	sk   pattern
}

func (s scheme) arity() int {
	return len(s.pk.fields()) + len(s.sk.fields())
}

// schemes is ordered for decoding: constant sort keys are tried before
// the bare follow key so that "PROFILE" never decodes as a follow.
var schemes = []scheme{
	{KindQuestion, mustPattern("QUESTION#{qid}"), mustPattern(QuestionSK)},
	{KindProfile, mustPattern("USER#{uid}"), mustPattern(ProfileSK)},
	{KindBreakroom, mustPattern("BRK#{room}"), mustPattern(BreakroomSK)},
	{KindReply, mustPattern("QUESTION#{qid}"), mustPattern("REPLY#{rid}")},
	{KindLike, mustPattern("QUESTION#{qid}"), mustPattern("LIKE#{liked_id}#{uid}")},
	{KindSave, mustPattern("USER#{uid}"), mustPattern("SAVE#{qid}")},
	{KindTag, mustPattern("TAG#{tag}"), mustPattern("{created_at}#{qid}")},
	{KindChild, mustPattern("USER#{uid}"), mustPattern("CHILD#{cid}")},
	{KindGrowth, mustPattern("USER#{uid}"), mustPattern("CHILD#{cid}#GROWTH#{date}")},
	{KindVaccine, mustPattern("USER#{uid}"), mustPattern("CHILD#{cid}#VACCINE#{name}")},
	{KindFriendRequest, mustPattern("USER#{to}"), mustPattern("FRIEND_REQUEST#{from}")},
	{KindParticipant, mustPattern("BRK#{room}"), mustPattern("USER#{uid}")},
	{KindFollow, mustPattern("USER#{uid}"), mustPattern("{qid}")},
}

var byKind = func() map[Kind]scheme {
	m := make(map[Kind]scheme, len(schemes))
	for _, s := range schemes {
		m[s.kind] = s
	}
	return m
}()

// Kinds lists every known kind in decoding order.
func Kinds() []Kind {
	out := make([]Kind, len(schemes))
	for i, s := range schemes {
		out[i] = s.kind
	}
	return out
}

// Fields returns the identifier names Encode expects for kind, in order.
func Fields(kind Kind) ([]string, error) {
	s, ok := byKind[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEntityKind, kind)
	}
	return append(s.pk.fields(), s.sk.fields()...), nil
}

// Encode builds the primary key of an entity from its identifiers, given
// in the order reported by Fields.
func Encode(kind Kind, ids ...string) (store.Key, error) {
	s, ok := byKind[kind]
	if !ok {
		return store.Key{}, fmt.Errorf("%w: %q", ErrUnknownEntityKind, kind)
	}
	if len(ids) != s.arity() {
		return store.Key{}, fmt.Errorf("%w: %s takes %d, got %d", ErrArity, kind, s.arity(), len(ids))
	}
	n := len(s.pk.fields())
	return store.Key{PK: s.pk.format(ids[:n]), SK: s.sk.format(ids[n:])}, nil
}

// Decode is the left inverse of Encode.
func Decode(pk, sk string) (Kind, []string, error) {
	for _, s := range schemes {
		pv, ok := s.pk.match(pk)
		if !ok {
			continue
		}
		sv, ok := s.sk.match(sk)
		if !ok {
			continue
		}
		return s.kind, append(pv, sv...), nil
	}
	return "", nil, fmt.Errorf("%w: %s/%s", ErrUnknownEntityKind, pk, sk)
}

// DecodeKey is Decode for a store.Key.
func DecodeKey(k store.Key) (Kind, []string, error) {
	return Decode(k.PK, k.SK)
}

// ValidateID reports whether id can be used as a key segment.
func ValidateID(id string) error {
	switch {
	case id == "":
		return fmt.Errorf("%w: empty", ErrInvalidID)
	case strings.Contains(id, Delimiter):
		return fmt.Errorf("%w: %q contains %q", ErrInvalidID, id, Delimiter)
	case id == QuestionSK, id == ProfileSK, id == BreakroomSK:
		return fmt.Errorf("%w: %q is reserved", ErrInvalidID, id)
	}
	return nil
}

func encode(kind Kind, ids ...string) store.Key {
	k, err := Encode(kind, ids...)
	if err != nil {
		panic(err)
	}
	return k
}

func Question(qid string) store.Key            { return encode(KindQuestion, qid) }
func Reply(qid, rid string) store.Key          { return encode(KindReply, qid, rid) }
func Like(qid, likedID, uid string) store.Key  { return encode(KindLike, qid, likedID, uid) }
func Save(uid, qid string) store.Key           { return encode(KindSave, uid, qid) }
func Tag(tag, createdAt, qid string) store.Key { return encode(KindTag, tag, createdAt, qid) }
func Follow(uid, qid string) store.Key         { return encode(KindFollow, uid, qid) }
func Profile(uid string) store.Key             { return encode(KindProfile, uid) }
func Child(uid, cid string) store.Key          { return encode(KindChild, uid, cid) }
func Growth(uid, cid, date string) store.Key   { return encode(KindGrowth, uid, cid, date) }
func Vaccine(uid, cid, name string) store.Key  { return encode(KindVaccine, uid, cid, name) }
func FriendRequest(to, from string) store.Key  { return encode(KindFriendRequest, to, from) }
func Breakroom(room string) store.Key          { return encode(KindBreakroom, room) }
func Participant(room, uid string) store.Key   { return encode(KindParticipant, room, uid) }

// Partitions and sort key prefixes used for range reads and cascades.

func QuestionPartition(qid string) string { return Question(qid).PK }
func UserPartition(uid string) string     { return Profile(uid).PK }
func TagPartition(tag string) string      { return "TAG#" + tag }
func BreakroomPartition(room string) string {
	return Breakroom(room).PK
}

const (
	RepliesPrefix       = "REPLY#"
	LikesPrefix         = "LIKE#"
	SavePrefix          = "SAVE#"
	ChildrenPrefix      = "CHILD#"
	FriendRequestPrefix = "FRIEND_REQUEST#"
	ParticipantPrefix   = "USER#"
)

// LikePrefix selects every like of one question or reply.
func LikePrefix(likedID string) string { return LikesPrefix + likedID + Delimiter }

// ChildPrefix selects a child and everything it owns.
func ChildPrefix(cid string) string { return ChildrenPrefix + cid + Delimiter }

func GrowthPrefix(cid string) string  { return ChildPrefix(cid) + "GROWTH#" }
func VaccinePrefix(cid string) string { return ChildPrefix(cid) + "VACCINE#" }

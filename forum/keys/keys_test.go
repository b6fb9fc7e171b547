package keys

import (
	"strings"
	"testing"

	"github.com/acksell/pairent/dynamodb/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	cases := []struct {
		kind Kind
		ids  []string
		want store.Key
	}{
		{KindQuestion, []string{"q1"}, store.Key{PK: "QUESTION#q1", SK: "!"}},
		{KindReply, []string{"q1", "r1"}, store.Key{PK: "QUESTION#q1", SK: "REPLY#r1"}},
		{KindLike, []string{"q1", "r1", "u1"}, store.Key{PK: "QUESTION#q1", SK: "LIKE#r1#u1"}},
		{KindSave, []string{"u1", "q1"}, store.Key{PK: "USER#u1", SK: "SAVE#q1"}},
		{KindTag, []string{"go", "20240101T000000.000000Z", "q1"}, store.Key{PK: "TAG#go", SK: "20240101T000000.000000Z#q1"}},
		{KindFollow, []string{"u1", "q1"}, store.Key{PK: "USER#u1", SK: "q1"}},
		{KindProfile, []string{"u1"}, store.Key{PK: "USER#u1", SK: "PROFILE"}},
		{KindChild, []string{"u1", "c1"}, store.Key{PK: "USER#u1", SK: "CHILD#c1"}},
		{KindGrowth, []string{"u1", "c1", "2024-01-01"}, store.Key{PK: "USER#u1", SK: "CHILD#c1#GROWTH#2024-01-01"}},
		{KindVaccine, []string{"u1", "c1", "mmr"}, store.Key{PK: "USER#u1", SK: "CHILD#c1#VACCINE#mmr"}},
		{KindFriendRequest, []string{"u2", "u1"}, store.Key{PK: "USER#u2", SK: "FRIEND_REQUEST#u1"}},
		{KindBreakroom, []string{"room1"}, store.Key{PK: "BRK#room1", SK: "META"}},
		{KindParticipant, []string{"room1", "u1"}, store.Key{PK: "BRK#room1", SK: "USER#u1"}},
	}
	require.Len(t, cases, len(Kinds()))

	for _, tc := range cases {
		t.Run(string(tc.kind), func(t *testing.T) {
			k, err := Encode(tc.kind, tc.ids...)
			require.NoError(t, err)
			assert.Equal(t, tc.want, k)

			kind, ids, err := DecodeKey(k)
			require.NoError(t, err)
			assert.Equal(t, tc.kind, kind)
			assert.Equal(t, tc.ids, ids)
		})
	}
}

func TestTypedHelpersMatchEncode(t *testing.T) {
	assert.Equal(t, store.Key{PK: "QUESTION#q", SK: "LIKE#q#u"}, Like("q", "q", "u"))
	assert.Equal(t, "USER#u", UserPartition("u"))
	assert.Equal(t, "TAG#go", TagPartition("go"))
	assert.Equal(t, "LIKE#r1#", LikePrefix("r1"))
	assert.Equal(t, "CHILD#c1#GROWTH#", GrowthPrefix("c1"))
	assert.Equal(t, "CHILD#c1#VACCINE#", VaccinePrefix("c1"))
}

func TestLikePrefixDoesNotOverlap(t *testing.T) {
	// A like on r1 must not fall into the range of r10.
	k := Like("q", "r10", "u")
	assert.False(t, strings.HasPrefix(k.SK, LikePrefix("r1")))
	assert.True(t, strings.HasPrefix(k.SK, LikePrefix("r10")))
}

func TestDecodeErrors(t *testing.T) {
	cases := []struct {
		name   string
		pk, sk string
	}{
		{"unknown partition", "ORDER#1", "!"},
		{"unknown question sort key", "QUESTION#1", "VOTE#x"},
		{"empty segment", "QUESTION#", "!"},
		{"nested delimiter in follow", "USER#u", "a#b"},
		{"trailing garbage", "QUESTION#1", "REPLY#r#x"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := Decode(tc.pk, tc.sk)
			assert.ErrorIs(t, err, ErrUnknownEntityKind)
			assert.ErrorIs(t, err, store.ErrInvalidArgument)
		})
	}
}

func TestLiteralSortKeysWinOverFollow(t *testing.T) {
	kind, ids, err := Decode("USER#u1", "PROFILE")
	require.NoError(t, err)
	assert.Equal(t, KindProfile, kind)
	assert.Equal(t, []string{"u1"}, ids)
}

func TestEncodeErrors(t *testing.T) {
	_, err := Encode(KindReply, "q1")
	assert.ErrorIs(t, err, ErrArity)

	_, err = Encode(Kind("order"), "1")
	assert.ErrorIs(t, err, ErrUnknownEntityKind)
}

func TestFields(t *testing.T) {
	f, err := Fields(KindGrowth)
	require.NoError(t, err)
	assert.Equal(t, []string{"uid", "cid", "date"}, f)
}

func TestValidateID(t *testing.T) {
	for _, id := range []string{"q1", "2c1f-uuid", "a.b"} {
		assert.NoError(t, ValidateID(id), id)
	}
	for _, id := range []string{"", "a#b", "#", "!", "PROFILE", "META"} {
		err := ValidateID(id)
		assert.ErrorIs(t, err, ErrInvalidID, id)
		assert.ErrorIs(t, err, store.ErrInvalidArgument, id)
	}
}

func TestParsePattern(t *testing.T) {
	_, err := parsePattern("{a}{b}")
	assert.Error(t, err)
	_, err = parsePattern("X#{}")
	assert.Error(t, err)
	_, err = parsePattern("")
	assert.Error(t, err)

	p, err := parsePattern("A#{x}#B#{y}")
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y"}, p.fields())
}

package query

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/acksell/pairent/dynamodb/store"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

const cursorVersion = 1

var ErrInvalidCursor = fmt.Errorf("%w: invalid cursor", store.ErrInvalidArgument)

// cursor is the decoded form of the opaque continuation token. It wraps
// the store's last evaluated key together with the listing it belongs to.
type cursor struct {
	Version   int                       `json:"v"`
	Sort      string                    `json:"sort"`
	Direction string                    `json:"dir"`
	Scope     string                    `json:"scope,omitempty"`
	Key       map[string]attributeValue `json:"key"`
}

// attributeValue is the typed JSON form of a key attribute.
type attributeValue struct {
	S *string `json:"S,omitempty"`
	N *string `json:"N,omitempty"`
	B []byte  `json:"B,omitempty"`
}

func encodeCursor(s Sort, d Direction, key store.Item) (string, error) {
	return mintCursor(s.Kind.String(), s.Arg, d.String(), key)
}

func decodeCursor(token string, s Sort, d Direction) (store.Item, error) {
	return openCursor(token, s.Kind.String(), s.Arg, d.String())
}

// EncodeListCursor wraps the last key of a plain partition listing, such
// as a user's saved questions, into an opaque cursor bound to list and
// scope.
func EncodeListCursor(list, scope string, key store.Item) (string, error) {
	return mintCursor(list, scope, Forward.String(), key)
}

// DecodeListCursor is the inverse of EncodeListCursor.
func DecodeListCursor(token, list, scope string) (store.Item, error) {
	return openCursor(token, list, scope, Forward.String())
}

func mintCursor(sort, scope, dir string, key store.Item) (string, error) {
	if len(key) == 0 {
		return "", nil
	}
	c := cursor{
		Version:   cursorVersion,
		Sort:      sort,
		Direction: dir,
		Scope:     scope,
		Key:       make(map[string]attributeValue, len(key)),
	}
	for name, av := range key {
		switch v := av.(type) {
		case *types.AttributeValueMemberS:
			c.Key[name] = attributeValue{S: &v.Value}
		case *types.AttributeValueMemberN:
			c.Key[name] = attributeValue{N: &v.Value}
		case *types.AttributeValueMemberB:
			c.Key[name] = attributeValue{B: v.Value}
		default:
			return "", fmt.Errorf("cursor: unsupported key attribute %q of type %T", name, av)
		}
	}
	b, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("cursor: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// openCursor returns the start key carried by token. A token minted for
// another sort, direction or scope is rejected.
func openCursor(token, sort, scope, dir string) (store.Item, error) {
	if token == "" {
		return nil, nil
	}
	b, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("%w: not base64url", ErrInvalidCursor)
	}
	var c cursor
	if err := json.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("%w: malformed", ErrInvalidCursor)
	}
	switch {
	case c.Version != cursorVersion:
		return nil, fmt.Errorf("%w: version %d", ErrInvalidCursor, c.Version)
	case c.Sort != sort, c.Scope != scope:
		return nil, fmt.Errorf("%w: minted for %s:%s, used with %s:%s", ErrInvalidCursor, c.Sort, c.Scope, sort, scope)
	case c.Direction != dir:
		return nil, fmt.Errorf("%w: minted for direction %s, used with %s", ErrInvalidCursor, c.Direction, dir)
	case len(c.Key) == 0:
		return nil, fmt.Errorf("%w: empty key", ErrInvalidCursor)
	}
	key := make(store.Item, len(c.Key))
	for name, av := range c.Key {
		switch {
		case av.S != nil:
			key[name] = &types.AttributeValueMemberS{Value: *av.S}
		case av.N != nil:
			key[name] = &types.AttributeValueMemberN{Value: *av.N}
		case av.B != nil:
			key[name] = &types.AttributeValueMemberB{Value: av.B}
		default:
			return nil, fmt.Errorf("%w: untyped attribute %q", ErrInvalidCursor, name)
		}
	}
	return key, nil
}

package table

import (
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

type PrimaryKeyDefinition struct {
	PartitionKey KeyDef
	SortKey      KeyDef // zero value when the table has no sort key
}

type KeyDef struct {
	Name string
	Kind KeyKind
}

type KeyKind string

const (
	KeyKindS KeyKind = "S"
	KeyKindN KeyKind = "N"
	KeyKindB KeyKind = "B"
)

// PrimaryKeyValues holds key values in their wire form: strings for S,
// decimal strings for N, raw bytes for B.
type PrimaryKeyValues struct {
	PartitionKey string
	SortKey      string
}

type PrimaryKey struct {
	Definition PrimaryKeyDefinition
	Values     PrimaryKeyValues
}

// DDB renders the key as an attribute map using the kinds of its definition.
func (k PrimaryKey) DDB() map[string]types.AttributeValue {
	out := map[string]types.AttributeValue{
		k.Definition.PartitionKey.Name: k.Definition.PartitionKey.AttributeValue(k.Values.PartitionKey),
	}
	if k.Definition.SortKey.Name != "" {
		out[k.Definition.SortKey.Name] = k.Definition.SortKey.AttributeValue(k.Values.SortKey)
	}
	return out
}

// AttributeValue wraps a wire-form key value in the member type of the key's kind.
func (d KeyDef) AttributeValue(v string) types.AttributeValue {
	switch d.Kind {
	case KeyKindN:
		return &types.AttributeValueMemberN{Value: v}
	case KeyKindB:
		return &types.AttributeValueMemberB{Value: []byte(v)}
	default:
		return &types.AttributeValueMemberS{Value: v}
	}
}

func attributeMatchesDefinition(want KeyKind, v types.AttributeValue) error {
	var got KeyKind
	switch v.(type) {
	case *types.AttributeValueMemberS:
		got = KeyKindS
	case *types.AttributeValueMemberN:
		got = KeyKindN
	case *types.AttributeValueMemberB:
		got = KeyKindB
	default:
		return fmt.Errorf("unexpected key attribute type %T", v)
	}
	if got != want {
		return fmt.Errorf("got KeyKind %q want %q", got, want)
	}
	return nil
}

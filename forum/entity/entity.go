// Package entity maps forum entities to and from raw table items.
package entity

import (
	"fmt"

	"github.com/acksell/pairent/dynamodb/store"
	"github.com/acksell/pairent/dynamodb/table"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Entity is anything stored as one item of the forum table.
type Entity interface {
	Key() store.Key
}

// defaulter fills in values for attributes that older items may lack.
type defaulter interface {
	applyDefaults()
}

// extraAttributes are written next to the struct fields, e.g. index
// discriminators that have no meaning to callers.
type extraAttributes interface {
	extraAttributes() store.Item
}

// ToItem renders e as a table item including its primary key.
func ToItem(e Entity) (store.Item, error) {
	item, err := attributevalue.MarshalMap(e)
	if err != nil {
		return nil, fmt.Errorf("marshal %T: %w", e, err)
	}
	k := e.Key()
	item[table.PartitionKeyName] = &types.AttributeValueMemberS{Value: k.PK}
	item[table.SortKeyName] = &types.AttributeValueMemberS{Value: k.SK}
	if x, ok := e.(extraAttributes); ok {
		for name, av := range x.extraAttributes() {
			item[name] = av
		}
	}
	return item, nil
}

// FromItem decodes an item. An empty item means the key was absent and
// yields store.ErrNotFound.
func FromItem[T any, PT interface {
	*T
	Entity
}](item store.Item) (T, error) {
	var out T
	if len(item) == 0 {
		return out, store.ErrNotFound
	}
	if err := attributevalue.UnmarshalMap(item, &out); err != nil {
		return out, fmt.Errorf("unmarshal %T: %w", out, err)
	}
	if d, ok := any(PT(&out)).(defaulter); ok {
		d.applyDefaults()
	}
	return out, nil
}

// FromItems decodes items of one kind, in order.
func FromItems[T any, PT interface {
	*T
	Entity
}](items []store.Item) ([]T, error) {
	out := make([]T, 0, len(items))
	for _, item := range items {
		v, err := FromItem[T, PT](item)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

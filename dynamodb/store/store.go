// Package store defines the backend-neutral client used by the forum
// packages, together with the update builder, error taxonomy and batch
// helpers shared by the DynamoDB and local backends.
package store

import (
	"context"
	"fmt"

	"github.com/acksell/pairent/dynamodb/table"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DynamoDB request limits. Both backends enforce them.
const (
	MaxBatchWrite = 25
	MaxBatchGet   = 100
)

// Item represents a raw item as stored in the table.
// Use attributevalue.UnmarshalMap to convert to a struct.
type Item = map[string]types.AttributeValue

// Key is the composite primary key of an item.
type Key struct {
	PK string
	SK string
}

func (k Key) String() string {
	return k.PK + "/" + k.SK
}

// Attributes renders the key as the item attributes of the table's primary key.
func (k Key) Attributes(def table.TableDefinition) Item {
	return table.PrimaryKey{
		Definition: def.KeyDefinitions,
		Values:     table.PrimaryKeyValues{PartitionKey: k.PK, SortKey: k.SK},
	}.DDB()
}

// KeyOf extracts the primary key of an item.
func KeyOf(def table.TableDefinition, item Item) (Key, error) {
	pk, err := def.ExtractPrimaryKey(item)
	if err != nil {
		return Key{}, fmt.Errorf("extract primary key: %w", err)
	}
	return Key{PK: pk.Values.PartitionKey, SK: pk.Values.SortKey}, nil
}

// Client is the storage surface consumed by the forum packages.
//
// Single-item reads are strongly consistent. Queries against a GSI are
// eventually consistent regardless of QueryInput.Consistent.
type Client interface {
	// Table returns the layout the client was configured with.
	Table() table.TableDefinition

	// GetItem returns (nil, nil) when the item does not exist.
	GetItem(ctx context.Context, key Key) (Item, error)
	// PutItem replaces the whole item. Conditions that do not hold
	// yield ErrConditionFailed.
	PutItem(ctx context.Context, item Item, conds ...Condition) error
	// UpdateItem applies the update and returns the item as it is afterwards.
	UpdateItem(ctx context.Context, key Key, u *Update) (Item, error)
	// DeleteItem returns the deleted item, or nil if nothing was there.
	DeleteItem(ctx context.Context, key Key, conds ...Condition) (Item, error)

	Query(ctx context.Context, in QueryInput) (Page, error)
	Scan(ctx context.Context, in ScanInput) (Page, error)

	// BatchGet reads at most MaxBatchGet keys. Missing items are simply absent.
	BatchGet(ctx context.Context, keys []Key) (BatchGetOutput, error)
	// BatchWrite applies at most MaxBatchWrite requests and returns the ones
	// the backend did not process.
	BatchWrite(ctx context.Context, reqs []WriteRequest) ([]WriteRequest, error)
}

// QueryInput selects a partition of the base table or of a named index.
type QueryInput struct {
	// Index is empty for the base table.
	Index     string
	Partition string
	Sort      *SortCondition
	// Forward is ascending sort key order.
	Forward    bool
	Limit      int
	StartKey   Item
	Consistent bool
}

type ScanInput struct {
	Limit      int
	StartKey   Item
	Consistent bool
}

// Page is one page of a query or scan. LastKey is nil on the last page.
type Page struct {
	Items   []Item
	LastKey Item
}

type BatchGetOutput struct {
	Items       []Item
	Unprocessed []Key
}

// WriteRequest is a put or a delete inside a batch write.
type WriteRequest struct {
	Put    Item
	Delete *Key
}

func PutRequest(item Item) WriteRequest {
	return WriteRequest{Put: item}
}

func DeleteRequest(key Key) WriteRequest {
	return WriteRequest{Delete: &key}
}

// Key returns the primary key the request targets.
func (r WriteRequest) Key(def table.TableDefinition) (Key, error) {
	if r.Delete != nil {
		return *r.Delete, nil
	}
	if r.Put == nil {
		return Key{}, fmt.Errorf("empty write request")
	}
	return KeyOf(def, r.Put)
}

type SortOp int

const (
	SortEqual SortOp = iota + 1
	SortLess
	SortLessOrEqual
	SortGreater
	SortGreaterOrEqual
	SortBetween
	SortBeginsWith
)

// SortCondition restricts the sort key of a query. Values are in wire form.
type SortCondition struct {
	Op    SortOp
	Value string
	// Upper is the inclusive upper bound of SortBetween.
	Upper string
}

func Equals(v string) *SortCondition { return &SortCondition{Op: SortEqual, Value: v} }

func LessThan(v string) *SortCondition { return &SortCondition{Op: SortLess, Value: v} }

func LessThanOrEqual(v string) *SortCondition { return &SortCondition{Op: SortLessOrEqual, Value: v} }

func GreaterThan(v string) *SortCondition { return &SortCondition{Op: SortGreater, Value: v} }

func GreaterThanOrEqual(v string) *SortCondition {
	return &SortCondition{Op: SortGreaterOrEqual, Value: v}
}

func Between(lo, hi string) *SortCondition {
	return &SortCondition{Op: SortBetween, Value: lo, Upper: hi}
}

func BeginsWith(prefix string) *SortCondition {
	return &SortCondition{Op: SortBeginsWith, Value: prefix}
}

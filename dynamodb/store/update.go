package store

import (
	"fmt"
	"slices"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"golang.org/x/exp/constraints"
	"golang.org/x/exp/maps"
)

type OpKind int

const (
	// OpSet sets the value of a field regardless of any existing value.
	OpSet OpKind = iota + 1
	// OpAdd adds a numeric delta, treating a missing field as zero.
	OpAdd
	OpRemove
	// OpAddToSet unions values into a string set.
	OpAddToSet
	// OpDeleteFromSet subtracts values from a string set.
	OpDeleteFromSet
)

// Op is a single clause of an update.
type Op struct {
	Kind  OpKind
	Field string
	Value any
}

// IsIdempotent reports whether applying the op twice equals applying it once.
func (o Op) IsIdempotent() bool {
	return o.Kind != OpAdd
}

// AttributeValue marshals the op's value to its attribute form.
func (o Op) AttributeValue() (types.AttributeValue, error) {
	av, err := attributevalue.Marshal(o.Value)
	if err != nil {
		return nil, fmt.Errorf("marshal value of %q: %w", o.Field, err)
	}
	return av, nil
}

type number interface {
	constraints.Integer | constraints.Float
}

func SetOp(field string, value any) Op {
	return Op{Kind: OpSet, Field: field, Value: value}
}

func AddOp[T number](field string, delta T) Op {
	return Op{Kind: OpAdd, Field: field, Value: delta}
}

func RemoveOp(field string) Op {
	return Op{Kind: OpRemove, Field: field}
}

func AddToSetOp(field string, values ...string) Op {
	return Op{Kind: OpAddToSet, Field: field, Value: StringSet(values)}
}

func DeleteFromSetOp(field string, values ...string) Op {
	return Op{Kind: OpDeleteFromSet, Field: field, Value: StringSet(values)}
}

// Update is a set of field clauses plus the conditions guarding them.
// Backends compile it into their native syntax; callers never see
// placeholder names or reserved-word handling.
type Update struct {
	ops   []Op
	conds []Condition
}

func NewUpdate(ops ...Op) *Update {
	u := &Update{}
	return u.Apply(ops...)
}

// FromMap builds an update with one set clause per entry.
// Clauses are ordered by field name so compiled expressions are stable.
func FromMap(fields map[string]any) *Update {
	names := maps.Keys(fields)
	slices.Sort(names)
	u := &Update{}
	for _, n := range names {
		u.Set(n, fields[n])
	}
	return u
}

// Apply adds ops. A later op on the same field replaces the earlier one.
func (u *Update) Apply(ops ...Op) *Update {
	for _, op := range ops {
		i := slices.IndexFunc(u.ops, func(o Op) bool { return o.Field == op.Field })
		if i >= 0 {
			u.ops[i] = op
			continue
		}
		u.ops = append(u.ops, op)
	}
	return u
}

func (u *Update) Set(field string, value any) *Update {
	return u.Apply(SetOp(field, value))
}

func (u *Update) Remove(field string) *Update {
	return u.Apply(RemoveOp(field))
}

func (u *Update) Add(field string, delta int64) *Update {
	return u.Apply(AddOp(field, delta))
}

func (u *Update) AddToSet(field string, values ...string) *Update {
	return u.Apply(AddToSetOp(field, values...))
}

func (u *Update) DeleteFromSet(field string, values ...string) *Update {
	return u.Apply(DeleteFromSetOp(field, values...))
}

// When guards the update with conditions evaluated against the current item.
func (u *Update) When(conds ...Condition) *Update {
	u.conds = append(u.conds, conds...)
	return u
}

func (u *Update) Ops() []Op {
	return slices.Clone(u.ops)
}

func (u *Update) Conditions() []Condition {
	return slices.Clone(u.conds)
}

func (u *Update) Empty() bool {
	return u == nil || len(u.ops) == 0
}

// Fields lists the fields touched by the update.
func (u *Update) Fields() []string {
	out := make([]string, len(u.ops))
	for i, o := range u.ops {
		out[i] = o.Field
	}
	return out
}

// IsIdempotent reports whether a retry after an ambiguous failure is safe:
// no deltas and no conditions that a first successful attempt could flip.
func (u *Update) IsIdempotent() bool {
	if len(u.conds) > 0 {
		return false
	}
	for _, o := range u.ops {
		if !o.IsIdempotent() {
			return false
		}
	}
	return true
}

type ConditionKind int

const (
	// CondExists holds when the item exists.
	CondExists ConditionKind = iota + 1
	// CondNotExists holds when the item does not exist.
	CondNotExists
	// CondGreaterThan holds when Field is a number greater than Value.
	CondGreaterThan
)

type Condition struct {
	Kind  ConditionKind
	Field string
	Value int64
}

func IfExists() Condition {
	return Condition{Kind: CondExists}
}

func IfNotExists() Condition {
	return Condition{Kind: CondNotExists}
}

func IfGreaterThan(field string, v int64) Condition {
	return Condition{Kind: CondGreaterThan, Field: field, Value: v}
}

// StringSet marshals as a DynamoDB string set rather than a list.
type StringSet []string

func (s StringSet) MarshalDynamoDBAttributeValue() (types.AttributeValue, error) {
	if len(s) == 0 {
		return nil, fmt.Errorf("string set must not be empty")
	}
	return &types.AttributeValueMemberSS{Value: slices.Compact(slices.Sorted(slices.Values(s)))}, nil
}

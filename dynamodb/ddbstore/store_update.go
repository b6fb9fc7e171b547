package ddbstore

import (
	"fmt"
	"slices"

	"github.com/acksell/pairent/dynamodb/store"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/shopspring/decimal"
)

func checkConditions(item store.Item, conds []store.Condition) error {
	for _, c := range conds {
		ok, err := evalCondition(item, c)
		if err != nil {
			return err
		}
		if !ok {
			return store.ErrConditionFailed
		}
	}
	return nil
}

func evalCondition(item store.Item, c store.Condition) (bool, error) {
	switch c.Kind {
	case store.CondExists:
		return item != nil, nil
	case store.CondNotExists:
		return item == nil, nil
	case store.CondGreaterThan:
		n, ok := item[c.Field].(*types.AttributeValueMemberN)
		if !ok {
			return false, nil
		}
		d, err := decimal.NewFromString(n.Value)
		if err != nil {
			return false, fmt.Errorf("field %q: %w", c.Field, err)
		}
		return d.GreaterThan(decimal.NewFromInt(c.Value)), nil
	default:
		return false, fmt.Errorf("%w: unknown condition kind %d", store.ErrInvalidArgument, c.Kind)
	}
}

// applyOps mutates item in place. Key attributes are immutable.
func applyOps(item store.Item, ops []store.Op, keyNames []string) error {
	for _, op := range ops {
		if slices.Contains(keyNames, op.Field) {
			return fmt.Errorf("%w: cannot update key attribute %q", store.ErrInvalidArgument, op.Field)
		}
		if op.Kind == store.OpRemove {
			delete(item, op.Field)
			continue
		}
		av, err := op.AttributeValue()
		if err != nil {
			return fmt.Errorf("%w: %v", store.ErrInvalidArgument, err)
		}
		switch op.Kind {
		case store.OpSet:
			item[op.Field] = av
		case store.OpAdd:
			sum, err := addNumber(item[op.Field], av)
			if err != nil {
				return fmt.Errorf("%w: field %q: %v", store.ErrInvalidArgument, op.Field, err)
			}
			item[op.Field] = sum
		case store.OpAddToSet, store.OpDeleteFromSet:
			next, err := mergeSet(item[op.Field], av, op.Kind == store.OpAddToSet)
			if err != nil {
				return fmt.Errorf("%w: field %q: %v", store.ErrInvalidArgument, op.Field, err)
			}
			if next == nil {
				delete(item, op.Field)
			} else {
				item[op.Field] = next
			}
		default:
			return fmt.Errorf("%w: unknown op kind %d", store.ErrInvalidArgument, op.Kind)
		}
	}
	return nil
}

func addNumber(current, delta types.AttributeValue) (types.AttributeValue, error) {
	d, ok := delta.(*types.AttributeValueMemberN)
	if !ok {
		return nil, fmt.Errorf("delta must be a number, got %T", delta)
	}
	dv, err := decimal.NewFromString(d.Value)
	if err != nil {
		return nil, err
	}
	sum := dv
	if current != nil {
		c, ok := current.(*types.AttributeValueMemberN)
		if !ok {
			return nil, fmt.Errorf("cannot add to %T", current)
		}
		cv, err := decimal.NewFromString(c.Value)
		if err != nil {
			return nil, err
		}
		sum = cv.Add(dv)
	}
	return &types.AttributeValueMemberN{Value: sum.String()}, nil
}

// mergeSet returns nil when the resulting set is empty.
func mergeSet(current, values types.AttributeValue, add bool) (types.AttributeValue, error) {
	vs, ok := values.(*types.AttributeValueMemberSS)
	if !ok {
		return nil, fmt.Errorf("set operand must be a string set, got %T", values)
	}
	var have []string
	if current != nil {
		cs, ok := current.(*types.AttributeValueMemberSS)
		if !ok {
			return nil, fmt.Errorf("field is %T, not a string set", current)
		}
		have = slices.Clone(cs.Value)
	}
	if add {
		have = append(have, vs.Value...)
	} else {
		have = slices.DeleteFunc(have, func(s string) bool { return slices.Contains(vs.Value, s) })
	}
	if len(have) == 0 {
		return nil, nil
	}
	slices.Sort(have)
	return &types.AttributeValueMemberSS{Value: slices.Compact(have)}, nil
}

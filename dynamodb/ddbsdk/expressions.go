package ddbsdk

import (
	"fmt"

	"github.com/acksell/pairent/dynamodb/store"
	"github.com/acksell/pairent/dynamodb/table"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// keyValue marshals a wire-form key value with the member type of its key.
type keyValue struct {
	def table.KeyDef
	v   string
}

func (k keyValue) MarshalDynamoDBAttributeValue() (types.AttributeValue, error) {
	return k.def.AttributeValue(k.v), nil
}

func conditionBuilder(def table.TableDefinition, conds []store.Condition) (expression.ConditionBuilder, bool, error) {
	var bs []expression.ConditionBuilder
	pk := expression.Name(def.KeyDefinitions.PartitionKey.Name)
	for _, c := range conds {
		switch c.Kind {
		case store.CondExists:
			bs = append(bs, expression.AttributeExists(pk))
		case store.CondNotExists:
			bs = append(bs, expression.AttributeNotExists(pk))
		case store.CondGreaterThan:
			bs = append(bs, expression.Name(c.Field).GreaterThan(expression.Value(c.Value)))
		default:
			return expression.ConditionBuilder{}, false, fmt.Errorf("%w: unknown condition kind %d", store.ErrInvalidArgument, c.Kind)
		}
	}
	switch len(bs) {
	case 0:
		return expression.ConditionBuilder{}, false, nil
	case 1:
		return bs[0], true, nil
	default:
		return expression.And(bs[0], bs[1], bs[2:]...), true, nil
	}
}

// conditionExpression builds a standalone condition, for puts and deletes.
func conditionExpression(def table.TableDefinition, conds []store.Condition) (*expression.Expression, error) {
	cond, ok, err := conditionBuilder(def, conds)
	if err != nil || !ok {
		return nil, err
	}
	expr, err := expression.NewBuilder().WithCondition(cond).Build()
	if err != nil {
		return nil, fmt.Errorf("build condition: %w", err)
	}
	return &expr, nil
}

// updateExpression compiles u. Every attribute name goes through a
// placeholder, so reserved words need no special handling.
func updateExpression(def table.TableDefinition, u *store.Update) (expression.Expression, error) {
	var ub expression.UpdateBuilder
	for _, op := range u.Ops() {
		name := expression.Name(op.Field)
		switch op.Kind {
		case store.OpSet:
			ub = ub.Set(name, expression.Value(op.Value))
		case store.OpAdd, store.OpAddToSet:
			ub = ub.Add(name, expression.Value(op.Value))
		case store.OpRemove:
			ub = ub.Remove(name)
		case store.OpDeleteFromSet:
			ub = ub.Delete(name, expression.Value(op.Value))
		default:
			return expression.Expression{}, fmt.Errorf("%w: unknown op kind %d", store.ErrInvalidArgument, op.Kind)
		}
	}
	b := expression.NewBuilder().WithUpdate(ub)
	cond, ok, err := conditionBuilder(def, u.Conditions())
	if err != nil {
		return expression.Expression{}, err
	}
	if ok {
		b = b.WithCondition(cond)
	}
	expr, err := b.Build()
	if err != nil {
		return expression.Expression{}, fmt.Errorf("%w: build update: %v", store.ErrInvalidArgument, err)
	}
	return expr, nil
}

func keyConditionExpression(keys table.PrimaryKeyDefinition, partition string, sort *store.SortCondition) (expression.Expression, error) {
	kc := expression.Key(keys.PartitionKey.Name).Equal(expression.Value(keyValue{keys.PartitionKey, partition}))
	if sort != nil {
		skc, err := sortKeyCondition(keys.SortKey, sort)
		if err != nil {
			return expression.Expression{}, err
		}
		kc = kc.And(skc)
	}
	expr, err := expression.NewBuilder().WithKeyCondition(kc).Build()
	if err != nil {
		return expression.Expression{}, fmt.Errorf("build key condition: %w", err)
	}
	return expr, nil
}

func sortKeyCondition(sk table.KeyDef, c *store.SortCondition) (expression.KeyConditionBuilder, error) {
	key := expression.Key(sk.Name)
	v := expression.Value(keyValue{sk, c.Value})
	switch c.Op {
	case store.SortEqual:
		return key.Equal(v), nil
	case store.SortLess:
		return key.LessThan(v), nil
	case store.SortLessOrEqual:
		return key.LessThanEqual(v), nil
	case store.SortGreater:
		return key.GreaterThan(v), nil
	case store.SortGreaterOrEqual:
		return key.GreaterThanEqual(v), nil
	case store.SortBetween:
		return key.Between(v, expression.Value(keyValue{sk, c.Upper})), nil
	case store.SortBeginsWith:
		return key.BeginsWith(c.Value), nil
	default:
		return expression.KeyConditionBuilder{}, fmt.Errorf("%w: unknown sort op %d", store.ErrInvalidArgument, c.Op)
	}
}

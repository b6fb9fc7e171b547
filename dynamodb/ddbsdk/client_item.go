package ddbsdk

import (
	"context"
	"fmt"

	"github.com/acksell/pairent/dynamodb/store"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// GetItem does a strongly consistent read. Returns (nil, nil) when absent.
func (c *Client) GetItem(ctx context.Context, key store.Key) (store.Item, error) {
	input := &dynamodb.GetItemInput{
		TableName:      &c.def.Name,
		Key:            key.Attributes(c.def),
		ConsistentRead: ptr(true),
	}
	var res *dynamodb.GetItemOutput
	err := c.call(ctx, "get item", true, func(ctx context.Context) error {
		var err error
		res, err = c.awsddb.GetItem(ctx, input)
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(res.Item) == 0 {
		return nil, nil
	}
	return res.Item, nil
}

func (c *Client) PutItem(ctx context.Context, item store.Item, conds ...store.Condition) error {
	input := &dynamodb.PutItemInput{
		TableName: &c.def.Name,
		Item:      item,
	}
	expr, err := conditionExpression(c.def, conds)
	if err != nil {
		return err
	}
	if expr != nil {
		input.ConditionExpression = expr.Condition()
		input.ExpressionAttributeNames = expr.Names()
		input.ExpressionAttributeValues = expr.Values()
	}
	return c.call(ctx, "put item", len(conds) == 0, func(ctx context.Context) error {
		_, err := c.awsddb.PutItem(ctx, input)
		return err
	})
}

// UpdateItem returns all attributes of the item after the update.
func (c *Client) UpdateItem(ctx context.Context, key store.Key, u *store.Update) (store.Item, error) {
	if u.Empty() {
		return nil, fmt.Errorf("%w: empty update", store.ErrInvalidArgument)
	}
	expr, err := updateExpression(c.def, u)
	if err != nil {
		return nil, err
	}
	input := &dynamodb.UpdateItemInput{
		TableName:                 &c.def.Name,
		Key:                       key.Attributes(c.def),
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ReturnValues:              types.ReturnValueAllNew,
	}
	var res *dynamodb.UpdateItemOutput
	err = c.call(ctx, "update item", u.IsIdempotent(), func(ctx context.Context) error {
		var err error
		res, err = c.awsddb.UpdateItem(ctx, input)
		return err
	})
	if err != nil {
		return nil, err
	}
	return res.Attributes, nil
}

// DeleteItem returns the deleted item, or nil if nothing was there.
func (c *Client) DeleteItem(ctx context.Context, key store.Key, conds ...store.Condition) (store.Item, error) {
	input := &dynamodb.DeleteItemInput{
		TableName:    &c.def.Name,
		Key:          key.Attributes(c.def),
		ReturnValues: types.ReturnValueAllOld,
	}
	expr, err := conditionExpression(c.def, conds)
	if err != nil {
		return nil, err
	}
	if expr != nil {
		input.ConditionExpression = expr.Condition()
		input.ExpressionAttributeNames = expr.Names()
		input.ExpressionAttributeValues = expr.Values()
	}
	var res *dynamodb.DeleteItemOutput
	err = c.call(ctx, "delete item", len(conds) == 0, func(ctx context.Context) error {
		var err error
		res, err = c.awsddb.DeleteItem(ctx, input)
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(res.Attributes) == 0 {
		return nil, nil
	}
	return res.Attributes, nil
}

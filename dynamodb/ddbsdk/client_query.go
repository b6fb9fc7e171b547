package ddbsdk

import (
	"context"

	"github.com/acksell/pairent/dynamodb/store"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
)

func (c *Client) Query(ctx context.Context, in store.QueryInput) (store.Page, error) {
	keys, err := c.def.Keys(in.Index)
	if err != nil {
		return store.Page{}, err
	}
	expr, err := keyConditionExpression(keys, in.Partition, in.Sort)
	if err != nil {
		return store.Page{}, err
	}
	input := &dynamodb.QueryInput{
		TableName:                 &c.def.Name,
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ScanIndexForward:          ptr(in.Forward),
		ExclusiveStartKey:         in.StartKey,
	}
	if in.Index != "" {
		// GSIs only support eventually consistent reads.
		input.IndexName = ptr(in.Index)
	} else {
		input.ConsistentRead = ptr(in.Consistent)
	}
	if in.Limit > 0 {
		input.Limit = ptr(int32(in.Limit))
	}

	var res *dynamodb.QueryOutput
	err = c.call(ctx, "query", true, func(ctx context.Context) error {
		var err error
		res, err = c.awsddb.Query(ctx, input)
		return err
	})
	if err != nil {
		return store.Page{}, err
	}
	return store.Page{Items: res.Items, LastKey: nonEmpty(res.LastEvaluatedKey)}, nil
}

func (c *Client) Scan(ctx context.Context, in store.ScanInput) (store.Page, error) {
	input := &dynamodb.ScanInput{
		TableName:         &c.def.Name,
		ExclusiveStartKey: in.StartKey,
		ConsistentRead:    ptr(in.Consistent),
	}
	if in.Limit > 0 {
		input.Limit = ptr(int32(in.Limit))
	}
	var res *dynamodb.ScanOutput
	err := c.call(ctx, "scan", true, func(ctx context.Context) error {
		var err error
		res, err = c.awsddb.Scan(ctx, input)
		return err
	})
	if err != nil {
		return store.Page{}, err
	}
	return store.Page{Items: res.Items, LastKey: nonEmpty(res.LastEvaluatedKey)}, nil
}

func nonEmpty(m store.Item) store.Item {
	if len(m) == 0 {
		return nil
	}
	return m
}

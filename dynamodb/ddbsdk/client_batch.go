package ddbsdk

import (
	"context"
	"fmt"

	"github.com/acksell/pairent/dynamodb/store"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// BatchGet reads up to store.MaxBatchGet keys with consistent reads.
// Keys DynamoDB leaves unprocessed are returned for the caller to retry.
func (c *Client) BatchGet(ctx context.Context, keys []store.Key) (store.BatchGetOutput, error) {
	if len(keys) == 0 {
		return store.BatchGetOutput{}, nil
	}
	if len(keys) > store.MaxBatchGet {
		return store.BatchGetOutput{}, fmt.Errorf("%w: batch get of %d keys exceeds %d", store.ErrInvalidArgument, len(keys), store.MaxBatchGet)
	}
	ddbKeys := make([]map[string]types.AttributeValue, len(keys))
	for i, k := range keys {
		ddbKeys[i] = k.Attributes(c.def)
	}
	input := &dynamodb.BatchGetItemInput{
		RequestItems: map[string]types.KeysAndAttributes{
			c.def.Name: {Keys: ddbKeys, ConsistentRead: ptr(true)},
		},
	}
	var res *dynamodb.BatchGetItemOutput
	err := c.call(ctx, "batch get", true, func(ctx context.Context) error {
		var err error
		res, err = c.awsddb.BatchGetItem(ctx, input)
		return err
	})
	if err != nil {
		return store.BatchGetOutput{}, err
	}

	out := store.BatchGetOutput{Items: res.Responses[c.def.Name]}
	if left, ok := res.UnprocessedKeys[c.def.Name]; ok {
		for _, k := range left.Keys {
			key, err := store.KeyOf(c.def, k)
			if err != nil {
				return store.BatchGetOutput{}, err
			}
			out.Unprocessed = append(out.Unprocessed, key)
		}
	}
	return out, nil
}

// BatchWrite submits up to store.MaxBatchWrite puts and deletes once.
func (c *Client) BatchWrite(ctx context.Context, reqs []store.WriteRequest) ([]store.WriteRequest, error) {
	if len(reqs) == 0 {
		return nil, nil
	}
	if len(reqs) > store.MaxBatchWrite {
		return nil, fmt.Errorf("%w: batch write of %d requests exceeds %d", store.ErrInvalidArgument, len(reqs), store.MaxBatchWrite)
	}
	ddbReqs := make([]types.WriteRequest, len(reqs))
	for i, r := range reqs {
		switch {
		case r.Delete != nil:
			ddbReqs[i] = types.WriteRequest{DeleteRequest: &types.DeleteRequest{Key: r.Delete.Attributes(c.def)}}
		case r.Put != nil:
			ddbReqs[i] = types.WriteRequest{PutRequest: &types.PutRequest{Item: r.Put}}
		default:
			return nil, fmt.Errorf("%w: empty write request", store.ErrInvalidArgument)
		}
	}
	input := &dynamodb.BatchWriteItemInput{
		RequestItems: map[string][]types.WriteRequest{c.def.Name: ddbReqs},
	}
	var res *dynamodb.BatchWriteItemOutput
	err := c.call(ctx, "batch write", true, func(ctx context.Context) error {
		var err error
		res, err = c.awsddb.BatchWriteItem(ctx, input)
		return err
	})
	if err != nil {
		return nil, err
	}

	var left []store.WriteRequest
	for _, r := range res.UnprocessedItems[c.def.Name] {
		switch {
		case r.PutRequest != nil:
			left = append(left, store.PutRequest(r.PutRequest.Item))
		case r.DeleteRequest != nil:
			key, err := store.KeyOf(c.def, r.DeleteRequest.Key)
			if err != nil {
				return nil, err
			}
			left = append(left, store.DeleteRequest(key))
		}
	}
	return left, nil
}

package ddbstore

import (
	"context"
	"fmt"

	"github.com/acksell/pairent/dynamodb/store"
	"github.com/dgraph-io/badger/v4"
)

// BatchGet reads up to store.MaxBatchGet keys in one snapshot.
func (s *Store) BatchGet(ctx context.Context, keys []store.Key) (store.BatchGetOutput, error) {
	if err := ctx.Err(); err != nil {
		return store.BatchGetOutput{}, err
	}
	if len(keys) > store.MaxBatchGet {
		return store.BatchGetOutput{}, fmt.Errorf("%w: batch get of %d keys exceeds %d", store.ErrInvalidArgument, len(keys), store.MaxBatchGet)
	}
	var out store.BatchGetOutput
	err := s.db.View(func(txn *badger.Txn) error {
		for _, k := range keys {
			bkey, err := s.baseKey(k)
			if err != nil {
				return err
			}
			item, err := readItem(txn, bkey)
			if err != nil {
				return err
			}
			if item != nil {
				out.Items = append(out.Items, item)
			}
		}
		return nil
	})
	if err != nil {
		return store.BatchGetOutput{}, err
	}
	return out, nil
}

// BatchWrite applies all requests in one transaction; nothing is ever left
// unprocessed.
func (s *Store) BatchWrite(ctx context.Context, reqs []store.WriteRequest) ([]store.WriteRequest, error) {
	if len(reqs) > store.MaxBatchWrite {
		return nil, fmt.Errorf("%w: batch write of %d requests exceeds %d", store.ErrInvalidArgument, len(reqs), store.MaxBatchWrite)
	}
	err := s.update(ctx, func(txn *badger.Txn) error {
		for _, req := range reqs {
			k, err := req.Key(s.def)
			if err != nil {
				return fmt.Errorf("%w: %v", store.ErrInvalidArgument, err)
			}
			bkey, err := s.baseKey(k)
			if err != nil {
				return err
			}
			old, err := readItem(txn, bkey)
			if err != nil {
				return err
			}
			if req.Delete != nil && old == nil {
				continue
			}
			if err := s.writeItem(txn, bkey, old, cloneItem(req.Put)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return nil, nil
}

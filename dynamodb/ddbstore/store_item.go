package ddbstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/acksell/pairent/dynamodb/store"
	"github.com/dgraph-io/badger/v4"
)

// GetItem returns (nil, nil) when the item does not exist.
func (s *Store) GetItem(ctx context.Context, key store.Key) (store.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	bkey, err := s.baseKey(key)
	if err != nil {
		return nil, err
	}
	var item store.Item
	err = s.db.View(func(txn *badger.Txn) error {
		item, err = readItem(txn, bkey)
		return err
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

// PutItem replaces the whole item.
func (s *Store) PutItem(ctx context.Context, item store.Item, conds ...store.Condition) error {
	bkey, _, err := s.base.encodeItem(item)
	if err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidArgument, err)
	}
	return s.update(ctx, func(txn *badger.Txn) error {
		old, err := readItem(txn, bkey)
		if err != nil {
			return err
		}
		if err := checkConditions(old, conds); err != nil {
			return err
		}
		return s.writeItem(txn, bkey, old, cloneItem(item))
	})
}

// UpdateItem applies u and returns the item as it is afterwards.
// A missing item is created from its key, as DynamoDB does.
func (s *Store) UpdateItem(ctx context.Context, key store.Key, u *store.Update) (store.Item, error) {
	if u.Empty() {
		return nil, fmt.Errorf("%w: empty update", store.ErrInvalidArgument)
	}
	bkey, err := s.baseKey(key)
	if err != nil {
		return nil, err
	}
	var out store.Item
	err = s.update(ctx, func(txn *badger.Txn) error {
		old, err := readItem(txn, bkey)
		if err != nil {
			return err
		}
		if err := checkConditions(old, u.Conditions()); err != nil {
			return err
		}
		next := cloneItem(old)
		if next == nil {
			next = key.Attributes(s.def)
		}
		if err := applyOps(next, u.Ops(), s.keyNames()); err != nil {
			return err
		}
		out = next
		return s.writeItem(txn, bkey, old, next)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteItem returns the deleted item, or nil if nothing was there.
func (s *Store) DeleteItem(ctx context.Context, key store.Key, conds ...store.Condition) (store.Item, error) {
	bkey, err := s.baseKey(key)
	if err != nil {
		return nil, err
	}
	var old store.Item
	err = s.update(ctx, func(txn *badger.Txn) error {
		old, err = readItem(txn, bkey)
		if err != nil {
			return err
		}
		if err := checkConditions(old, conds); err != nil {
			return err
		}
		if old == nil {
			return nil
		}
		return s.writeItem(txn, bkey, old, nil)
	})
	if err != nil {
		return nil, err
	}
	return old, nil
}

func (s *Store) baseKey(key store.Key) ([]byte, error) {
	bkey, _, err := s.base.encodeItem(key.Attributes(s.def))
	if err != nil {
		return nil, fmt.Errorf("%w: encode key %s: %v", store.ErrInvalidArgument, key, err)
	}
	return bkey, nil
}

func (s *Store) keyNames() []string {
	return []string{s.def.KeyDefinitions.PartitionKey.Name, s.def.KeyDefinitions.SortKey.Name}
}

// writeItem stores next under bkey (or deletes it when next is nil) and
// moves the item's GSI entries from old's index keys to next's.
func (s *Store) writeItem(txn *badger.Txn, bkey []byte, old, next store.Item) error {
	if next == nil {
		if err := txn.Delete(bkey); err != nil {
			return err
		}
	} else {
		val, err := serializeItem(next)
		if err != nil {
			return err
		}
		if err := txn.Set(bkey, val); err != nil {
			return err
		}
	}

	for _, gsi := range s.gsis {
		oldKey, hadOld, err := gsi.encodeItem(old)
		if err != nil {
			return fmt.Errorf("encode %s key: %w", gsi.name, err)
		}
		newKey, hasNew, err := gsi.encodeItem(next)
		if err != nil {
			return fmt.Errorf("encode %s key: %w", gsi.name, err)
		}
		if hadOld && (!hasNew || !bytes.Equal(oldKey, newKey)) {
			if err := txn.Delete(oldKey); err != nil {
				return err
			}
		}
		if hasNew {
			val, err := serializeItem(next)
			if err != nil {
				return err
			}
			if err := txn.Set(newKey, val); err != nil {
				return err
			}
		}
	}
	return nil
}

func readItem(txn *badger.Txn, bkey []byte) (store.Item, error) {
	it, err := txn.Get(bkey)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var item store.Item
	err = it.Value(func(val []byte) error {
		item, err = deserializeItem(val)
		return err
	})
	return item, err
}

func cloneItem(item store.Item) store.Item {
	if item == nil {
		return nil
	}
	out := make(store.Item, len(item))
	for k, v := range item {
		out[k] = v
	}
	return out
}

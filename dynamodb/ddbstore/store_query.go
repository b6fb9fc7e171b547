package ddbstore

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/acksell/pairent/dynamodb/store"
	"github.com/acksell/pairent/dynamodb/table"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/dgraph-io/badger/v4"
)

// Query returns one page of a partition of the base table or a GSI.
func (s *Store) Query(ctx context.Context, in store.QueryInput) (store.Page, error) {
	if err := ctx.Err(); err != nil {
		return store.Page{}, err
	}
	enc, err := s.encoder(in.Index)
	if err != nil {
		return store.Page{}, err
	}
	prefix, err := enc.partitionPrefix(in.Partition)
	if err != nil {
		return store.Page{}, fmt.Errorf("%w: %v", store.ErrInvalidArgument, err)
	}
	match := func(item store.Item) (bool, error) {
		return matchesSort(item, enc.keys.SortKey, in.Sort)
	}
	return s.iterate(enc, prefix, in.Forward, in.Limit, in.StartKey, match)
}

// Scan returns one page of the base table in key order.
func (s *Store) Scan(ctx context.Context, in store.ScanInput) (store.Page, error) {
	if err := ctx.Err(); err != nil {
		return store.Page{}, err
	}
	return s.iterate(s.base, s.base.prefix, true, in.Limit, in.StartKey, nil)
}

// iterate walks entries under prefix. LastKey is set only when at least one
// more matching entry exists past the page.
func (s *Store) iterate(enc *indexEncoder, prefix []byte, forward bool, limit int, start store.Item, match func(store.Item) (bool, error)) (store.Page, error) {
	var startKey []byte
	if start != nil {
		k, ok, err := enc.encodeItem(start)
		if err != nil || !ok {
			return store.Page{}, fmt.Errorf("%w: invalid start key", store.ErrInvalidArgument)
		}
		startKey = k
	}

	var page store.Page
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = !forward
		opts.Prefix = prefix

		it := txn.NewIterator(opts)
		defer it.Close()

		switch {
		case startKey != nil:
			it.Seek(startKey)
			if it.Valid() && bytes.Equal(it.Item().Key(), startKey) {
				it.Next()
			}
		case forward:
			it.Seek(prefix)
		default:
			it.Seek(append(bytes.Clone(prefix), 0xFF))
		}

		for ; it.Valid(); it.Next() {
			var item store.Item
			if err := it.Item().Value(func(val []byte) error {
				var err error
				item, err = deserializeItem(val)
				return err
			}); err != nil {
				return err
			}
			if match != nil {
				ok, err := match(item)
				if err != nil {
					return err
				}
				if !ok {
					continue
				}
			}
			if limit > 0 && len(page.Items) == limit {
				page.LastKey = enc.cursorAttributes(page.Items[len(page.Items)-1])
				return nil
			}
			page.Items = append(page.Items, item)
		}
		return nil
	})
	if err != nil {
		return store.Page{}, err
	}
	return page, nil
}

func matchesSort(item store.Item, def table.KeyDef, cond *store.SortCondition) (bool, error) {
	if cond == nil {
		return true, nil
	}
	raw, ok := wireValue(item[def.Name])
	if !ok {
		return false, nil
	}
	if cond.Op == store.SortBeginsWith {
		return strings.HasPrefix(raw, cond.Value), nil
	}
	got, err := encodeKeyValue(raw, def.Kind)
	if err != nil {
		return false, err
	}
	want, err := encodeKeyValue(cond.Value, def.Kind)
	if err != nil {
		return false, fmt.Errorf("%w: sort condition: %v", store.ErrInvalidArgument, err)
	}
	c := bytes.Compare(got, want)
	switch cond.Op {
	case store.SortEqual:
		return c == 0, nil
	case store.SortLess:
		return c < 0, nil
	case store.SortLessOrEqual:
		return c <= 0, nil
	case store.SortGreater:
		return c > 0, nil
	case store.SortGreaterOrEqual:
		return c >= 0, nil
	case store.SortBetween:
		upper, err := encodeKeyValue(cond.Upper, def.Kind)
		if err != nil {
			return false, fmt.Errorf("%w: sort condition: %v", store.ErrInvalidArgument, err)
		}
		return c >= 0 && bytes.Compare(got, upper) <= 0, nil
	default:
		return false, fmt.Errorf("%w: unknown sort op %d", store.ErrInvalidArgument, cond.Op)
	}
}

func wireValue(av types.AttributeValue) (string, bool) {
	switch v := av.(type) {
	case *types.AttributeValueMemberS:
		return v.Value, true
	case *types.AttributeValueMemberN:
		return v.Value, true
	case *types.AttributeValueMemberB:
		return string(v.Value), true
	}
	return "", false
}

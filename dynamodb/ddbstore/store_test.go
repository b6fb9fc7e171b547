package ddbstore

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/acksell/pairent/dynamodb/store"
	"github.com/acksell/pairent/dynamodb/table"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var singleTableDesign = table.TableDefinition{
	Name: "test-table",
	KeyDefinitions: table.PrimaryKeyDefinition{
		PartitionKey: table.KeyDef{Name: "pk", Kind: table.KeyKindS},
		SortKey:      table.KeyDef{Name: "sk", Kind: table.KeyKindS},
	},
	GSIs: []table.GSIDefinition{
		{
			Name: "by-score",
			KeyDefinitions: table.PrimaryKeyDefinition{
				PartitionKey: table.KeyDef{Name: "kind", Kind: table.KeyKindS},
				SortKey:      table.KeyDef{Name: "score", Kind: table.KeyKindN},
			},
		},
		{
			Name: "by-date",
			KeyDefinitions: table.PrimaryKeyDefinition{
				PartitionKey: table.KeyDef{Name: "kind", Kind: table.KeyKindS},
				SortKey:      table.KeyDef{Name: "date", Kind: table.KeyKindS},
			},
		},
	},
}

func newTestStore(t *testing.T) *Store {
	s, err := NewInMemory(singleTableDesign)
	require.NoError(t, err)
	t.Cleanup(func() {
		s.Close()
	})
	return s
}

func s(v string) types.AttributeValue { return &types.AttributeValueMemberS{Value: v} }
func n(v string) types.AttributeValue { return &types.AttributeValueMemberN{Value: v} }

func doc(pk, sk string, attrs ...any) store.Item {
	item := store.Item{"pk": s(pk), "sk": s(sk)}
	for i := 0; i+1 < len(attrs); i += 2 {
		item[attrs[i].(string)] = attrs[i+1].(types.AttributeValue)
	}
	return item
}

func sortKeys(items []store.Item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it["sk"].(*types.AttributeValueMemberS).Value
	}
	return out
}

func TestPutGetDelete(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	key := store.Key{PK: "A", SK: "1"}

	t.Run("missing item is nil without error", func(t *testing.T) {
		got, err := st.GetItem(ctx, key)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("put then get", func(t *testing.T) {
		require.NoError(t, st.PutItem(ctx, doc("A", "1", "title", s("hello"))))
		got, err := st.GetItem(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, "hello", got["title"].(*types.AttributeValueMemberS).Value)
	})

	t.Run("conditional put on existing item fails", func(t *testing.T) {
		err := st.PutItem(ctx, doc("A", "1"), store.IfNotExists())
		assert.ErrorIs(t, err, store.ErrConditionFailed)
	})

	t.Run("delete returns the old item", func(t *testing.T) {
		old, err := st.DeleteItem(ctx, key)
		require.NoError(t, err)
		require.NotNil(t, old)
		again, err := st.DeleteItem(ctx, key)
		require.NoError(t, err)
		assert.Nil(t, again)
	})

	t.Run("conditional delete of missing item fails", func(t *testing.T) {
		_, err := st.DeleteItem(ctx, key, store.IfExists())
		assert.ErrorIs(t, err, store.ErrConditionFailed)
	})
}

func TestUpdateItem(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	key := store.Key{PK: "Q", SK: "!"}

	t.Run("add creates missing counter", func(t *testing.T) {
		got, err := st.UpdateItem(ctx, key, store.NewUpdate().Add("likes", 1))
		require.NoError(t, err)
		assert.Equal(t, n("1"), got["likes"])
		assert.Equal(t, s("Q"), got["pk"])
	})

	t.Run("greater-than guard", func(t *testing.T) {
		_, err := st.UpdateItem(ctx, key, store.NewUpdate().Add("likes", -1).When(store.IfGreaterThan("likes", 0)))
		require.NoError(t, err)
		_, err = st.UpdateItem(ctx, key, store.NewUpdate().Add("likes", -1).When(store.IfGreaterThan("likes", 0)))
		assert.ErrorIs(t, err, store.ErrConditionFailed)
	})

	t.Run("set and remove", func(t *testing.T) {
		got, err := st.UpdateItem(ctx, key, store.NewUpdate().Set("name", "x").Set("date", "d"))
		require.NoError(t, err)
		assert.Equal(t, s("x"), got["name"])
		got, err = st.UpdateItem(ctx, key, store.NewUpdate().Remove("name"))
		require.NoError(t, err)
		assert.NotContains(t, got, "name")
		assert.Equal(t, s("d"), got["date"])
	})

	t.Run("string sets", func(t *testing.T) {
		got, err := st.UpdateItem(ctx, key, store.NewUpdate().AddToSet("friends", "b", "a", "b"))
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, got["friends"].(*types.AttributeValueMemberSS).Value)
		got, err = st.UpdateItem(ctx, key, store.NewUpdate().DeleteFromSet("friends", "a", "b"))
		require.NoError(t, err)
		assert.NotContains(t, got, "friends")
	})

	t.Run("key attributes are immutable", func(t *testing.T) {
		_, err := st.UpdateItem(ctx, key, store.NewUpdate().Set("sk", "other"))
		assert.ErrorIs(t, err, store.ErrInvalidArgument)
	})

	t.Run("exists guard on missing item", func(t *testing.T) {
		_, err := st.UpdateItem(ctx, store.Key{PK: "nope", SK: "!"}, store.NewUpdate().Set("a", 1).When(store.IfExists()))
		assert.ErrorIs(t, err, store.ErrConditionFailed)
	})
}

func TestConcurrentDeltasDoNotLoseUpdates(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	key := store.Key{PK: "Q", SK: "!"}
	require.NoError(t, st.PutItem(ctx, doc("Q", "!", "likes", n("0"))))

	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := st.UpdateItem(ctx, key, store.NewUpdate().Add("likes", 1))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := st.GetItem(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, n("40"), got["likes"])
}

func TestQuery(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	for i := 0; i < 7; i++ {
		require.NoError(t, st.PutItem(ctx, doc("P", fmt.Sprintf("REPLY#%d", i))))
	}
	require.NoError(t, st.PutItem(ctx, doc("P", "!")))
	require.NoError(t, st.PutItem(ctx, doc("PX", "REPLY#9")))

	t.Run("begins with, forward", func(t *testing.T) {
		page, err := st.Query(ctx, store.QueryInput{Partition: "P", Sort: store.BeginsWith("REPLY#"), Forward: true})
		require.NoError(t, err)
		assert.Equal(t, []string{"REPLY#0", "REPLY#1", "REPLY#2", "REPLY#3", "REPLY#4", "REPLY#5", "REPLY#6"}, sortKeys(page.Items))
		assert.Nil(t, page.LastKey)
	})

	t.Run("backward", func(t *testing.T) {
		page, err := st.Query(ctx, store.QueryInput{Partition: "P", Limit: 3})
		require.NoError(t, err)
		assert.Equal(t, []string{"REPLY#6", "REPLY#5", "REPLY#4"}, sortKeys(page.Items))
		assert.NotNil(t, page.LastKey)
	})

	t.Run("pages are exhaustive in both directions", func(t *testing.T) {
		for _, forward := range []bool{true, false} {
			var all []string
			var start store.Item
			for {
				page, err := st.Query(ctx, store.QueryInput{Partition: "P", Forward: forward, Limit: 2, StartKey: start})
				require.NoError(t, err)
				all = append(all, sortKeys(page.Items)...)
				if page.LastKey == nil {
					break
				}
				start = page.LastKey
			}
			assert.Len(t, all, 8)
			assert.ElementsMatch(t, []string{"!", "REPLY#0", "REPLY#1", "REPLY#2", "REPLY#3", "REPLY#4", "REPLY#5", "REPLY#6"}, all)
		}
	})

	t.Run("between", func(t *testing.T) {
		page, err := st.Query(ctx, store.QueryInput{Partition: "P", Sort: store.Between("REPLY#2", "REPLY#4"), Forward: true})
		require.NoError(t, err)
		assert.Equal(t, []string{"REPLY#2", "REPLY#3", "REPLY#4"}, sortKeys(page.Items))
	})

	t.Run("unknown index", func(t *testing.T) {
		_, err := st.Query(ctx, store.QueryInput{Index: "nope", Partition: "P"})
		assert.ErrorIs(t, err, store.ErrInvalidArgument)
	})
}

func TestGSI(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	require.NoError(t, st.PutItem(ctx, doc("A", "!", "kind", s("Y"), "score", n("2"), "date", s("2024-01-02"))))
	require.NoError(t, st.PutItem(ctx, doc("B", "!", "kind", s("Y"), "score", n("10"), "date", s("2024-01-01"))))
	require.NoError(t, st.PutItem(ctx, doc("C", "!", "kind", s("Y"), "score", n("1"), "date", s("2024-01-02"))))
	// no kind attribute: absent from both indexes
	require.NoError(t, st.PutItem(ctx, doc("D", "REPLY#1", "score", n("99"))))

	pks := func(items []store.Item) []string {
		out := make([]string, len(items))
		for i, it := range items {
			out[i] = it["pk"].(*types.AttributeValueMemberS).Value
		}
		return out
	}

	t.Run("numeric sort key orders numerically", func(t *testing.T) {
		page, err := st.Query(ctx, store.QueryInput{Index: "by-score", Partition: "Y"})
		require.NoError(t, err)
		assert.Equal(t, []string{"B", "A", "C"}, pks(page.Items))
	})

	t.Run("updates move index entries", func(t *testing.T) {
		_, err := st.UpdateItem(ctx, store.Key{PK: "C", SK: "!"}, store.NewUpdate().Add("score", 20))
		require.NoError(t, err)
		page, err := st.Query(ctx, store.QueryInput{Index: "by-score", Partition: "Y"})
		require.NoError(t, err)
		assert.Equal(t, []string{"C", "B", "A"}, pks(page.Items))
	})

	t.Run("ties page without duplicates", func(t *testing.T) {
		var all []string
		var start store.Item
		for {
			page, err := st.Query(ctx, store.QueryInput{Index: "by-date", Partition: "Y", Limit: 1, StartKey: start})
			require.NoError(t, err)
			all = append(all, pks(page.Items)...)
			if page.LastKey == nil {
				break
			}
			assert.Contains(t, page.LastKey, "pk")
			assert.Contains(t, page.LastKey, "date")
			start = page.LastKey
		}
		assert.Len(t, all, 3)
		assert.ElementsMatch(t, []string{"A", "B", "C"}, all)
		assert.Equal(t, "B", all[2])
	})

	t.Run("deletes remove index entries", func(t *testing.T) {
		_, err := st.DeleteItem(ctx, store.Key{PK: "A", SK: "!"})
		require.NoError(t, err)
		page, err := st.Query(ctx, store.QueryInput{Index: "by-date", Partition: "Y", Forward: true})
		require.NoError(t, err)
		assert.Equal(t, []string{"B", "C"}, pks(page.Items))
	})
}

func TestScanAndBatches(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	var reqs []store.WriteRequest
	for i := 0; i < store.MaxBatchWrite; i++ {
		reqs = append(reqs, store.PutRequest(doc(fmt.Sprintf("P%02d", i), "!", "kind", s("Y"), "date", s("d"))))
	}
	left, err := st.BatchWrite(ctx, reqs)
	require.NoError(t, err)
	assert.Empty(t, left)

	t.Run("oversized batch is rejected", func(t *testing.T) {
		_, err := st.BatchWrite(ctx, append(reqs, store.DeleteRequest(store.Key{PK: "x", SK: "y"})))
		assert.ErrorIs(t, err, store.ErrInvalidArgument)
	})

	t.Run("scan pages cover the table", func(t *testing.T) {
		seen := map[string]bool{}
		var start store.Item
		for {
			page, err := st.Scan(ctx, store.ScanInput{Limit: 7, StartKey: start})
			require.NoError(t, err)
			for _, it := range page.Items {
				seen[it["pk"].(*types.AttributeValueMemberS).Value] = true
			}
			if page.LastKey == nil {
				break
			}
			start = page.LastKey
		}
		assert.Len(t, seen, store.MaxBatchWrite)
	})

	t.Run("batch get skips missing", func(t *testing.T) {
		out, err := st.BatchGet(ctx, []store.Key{{PK: "P01", SK: "!"}, {PK: "missing", SK: "!"}})
		require.NoError(t, err)
		assert.Len(t, out.Items, 1)
		assert.Empty(t, out.Unprocessed)
	})

	t.Run("batch delete clears index entries", func(t *testing.T) {
		var dels []store.WriteRequest
		for i := 0; i < 10; i++ {
			dels = append(dels, store.DeleteRequest(store.Key{PK: fmt.Sprintf("P%02d", i), SK: "!"}))
		}
		_, err := st.BatchWrite(ctx, dels)
		require.NoError(t, err)
		page, err := st.Query(ctx, store.QueryInput{Index: "by-date", Partition: "Y"})
		require.NoError(t, err)
		assert.Len(t, page.Items, store.MaxBatchWrite-10)
	})
}

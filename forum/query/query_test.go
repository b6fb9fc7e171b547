package query

import (
	"context"
	"fmt"
	"testing"

	"github.com/acksell/pairent/dynamodb/ddbstore"
	"github.com/acksell/pairent/dynamodb/store"
	"github.com/acksell/pairent/dynamodb/table"
	"github.com/acksell/pairent/forum/entity"
	"github.com/acksell/pairent/forum/keys"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *ddbstore.Store {
	t.Helper()
	s, err := ddbstore.NewInMemory(table.Forum(""))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func date(i int) string {
	return fmt.Sprintf("20240101T%02d0000.000000Z", i)
}

func put(t *testing.T, c store.Client, e entity.Entity) {
	t.Helper()
	item, err := entity.ToItem(e)
	require.NoError(t, err)
	require.NoError(t, c.PutItem(context.Background(), item))
}

func putQuestion(t *testing.T, c store.Client, q entity.Question) {
	t.Helper()
	put(t, c, q)
	for _, row := range q.TagRows() {
		put(t, c, row)
	}
}

func qids(qs []entity.Question) []string {
	out := make([]string, len(qs))
	for i, q := range qs {
		out[i] = q.QID
	}
	return out
}

// listAll pages through r until the cursor runs out.
func listAll(t *testing.T, p *Planner, e *Executor, r Request) []string {
	t.Helper()
	var all []string
	for range 100 {
		plan, err := p.Plan(r)
		require.NoError(t, err)
		res, err := e.Run(context.Background(), plan)
		require.NoError(t, err)
		require.False(t, res.Truncated)
		all = append(all, qids(res.Questions)...)
		if res.Cursor == "" {
			return all
		}
		r.Cursor = res.Cursor
	}
	t.Fatal("listing did not terminate")
	return nil
}

func TestParseSort(t *testing.T) {
	valid := map[string]Sort{
		"new":              Recency(),
		"popular":          Popularity(),
		"author:u1":        ByAuthor("u1"),
		"tag:go":           ByTag("go"),
		"search:two words": FullTextLike("two words"),
	}
	for in, want := range valid {
		t.Run(in, func(t *testing.T) {
			got, err := ParseSort(in)
			require.NoError(t, err)
			assert.Equal(t, want, got)
			assert.Equal(t, in, got.String())
		})
	}

	for _, in := range []string{"", "oldest", "author:", "tag:", "tag:a#b", "search:  ", "new:x", "NEW"} {
		t.Run("invalid "+in, func(t *testing.T) {
			_, err := ParseSort(in)
			assert.ErrorIs(t, err, ErrInvalidSort)
			assert.ErrorIs(t, err, store.ErrInvalidArgument)
		})
	}
}

func TestParseDirection(t *testing.T) {
	for in, want := range map[string]Direction{"": Backward, "desc": Backward, "backward": Backward, "asc": Forward, "FORWARD": Forward} {
		got, err := ParseDirection(in)
		require.NoError(t, err)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseDirection("sideways")
	assert.ErrorIs(t, err, store.ErrInvalidArgument)
}

func TestLimitsClamp(t *testing.T) {
	l := DefaultLimits
	assert.Equal(t, 20, l.Clamp(0))
	assert.Equal(t, 1, l.Clamp(-5))
	assert.Equal(t, 100, l.Clamp(1000))
	assert.Equal(t, 42, l.Clamp(42))

	assert.NoError(t, l.Validate())
	assert.Error(t, Limits{Min: 0, Max: 10, Default: 5}.Validate())
	assert.Error(t, Limits{Min: 5, Max: 1, Default: 3}.Validate())
}

func TestPlan(t *testing.T) {
	p := NewPlanner(DefaultLimits)

	cases := []struct {
		sort      Sort
		index     string
		partition string
	}{
		{Recency(), table.IndexNew, "Y"},
		{Popularity(), table.IndexPopular, "Y"},
		{ByAuthor("u1"), table.IndexAuthor, "u1"},
		{ByTag("go"), "", "TAG#go"},
	}
	for _, tc := range cases {
		t.Run(tc.sort.String(), func(t *testing.T) {
			plan, err := p.Plan(Request{Sort: tc.sort, Limit: 500})
			require.NoError(t, err)
			require.NotNil(t, plan.Query)
			assert.Equal(t, tc.index, plan.Query.Index)
			assert.Equal(t, tc.partition, plan.Query.Partition)
			assert.False(t, plan.Query.Forward)
			assert.Equal(t, 100, plan.Query.Limit)
			assert.Equal(t, tc.sort.Kind == SortTag, plan.Chained)
		})
	}

	plan, err := p.Plan(Request{Sort: FullTextLike("x"), Direction: Forward})
	require.NoError(t, err)
	assert.Nil(t, plan.Query)
	require.NotNil(t, plan.Scan)
	assert.Equal(t, 20, plan.Limit)

	_, err = p.Plan(Request{Sort: Sort{Kind: SortKind(99)}})
	assert.ErrorIs(t, err, ErrInvalidSort)
}

func TestCursorIsBoundToItsListing(t *testing.T) {
	key := store.Item{}
	for k, v := range keys.Question("q1").Attributes(table.Forum("")) {
		key[k] = v
	}
	key["gsi"] = &types.AttributeValueMemberS{Value: "Y"}
	key["likes"] = &types.AttributeValueMemberN{Value: "12"}

	token, err := encodeCursor(Popularity(), Backward, key)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	got, err := decodeCursor(token, Popularity(), Backward)
	require.NoError(t, err)
	assert.Equal(t, key, got)

	p := NewPlanner(DefaultLimits)
	mismatched := []Request{
		{Sort: Recency(), Direction: Backward, Cursor: token},
		{Sort: Popularity(), Direction: Forward, Cursor: token},
		{Sort: ByAuthor("u1"), Direction: Backward, Cursor: token},
		{Sort: Popularity(), Direction: Backward, Cursor: "not a cursor!"},
		{Sort: Popularity(), Direction: Backward, Cursor: "e30"}, // {}
	}
	for _, r := range mismatched {
		_, err := p.Plan(r)
		assert.ErrorIs(t, err, ErrInvalidCursor, "%s/%s", r.Sort, r.Direction)
		assert.ErrorIs(t, err, store.ErrInvalidArgument)
	}

	tagA, err := encodeCursor(ByTag("a"), Backward, key)
	require.NoError(t, err)
	_, err = p.Plan(Request{Sort: ByTag("b"), Cursor: tagA})
	assert.ErrorIs(t, err, ErrInvalidCursor)

	empty, err := encodeCursor(Recency(), Backward, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestListings(t *testing.T) {
	c := newStore(t)
	for i := range 7 {
		putQuestion(t, c, entity.Question{
			QID:    fmt.Sprintf("q%d", i),
			Title:  fmt.Sprintf("question %d", i),
			Author: fmt.Sprintf("u%d", i%2),
			Date:   date(i),
			Likes:  int64((i * 3) % 7),
			Tags:   []string{"all"},
		})
	}
	// Items of other kinds must never show up.
	put(t, c, entity.Reply{QID: "q0", RID: "r1", ParentID: "q0", Author: "u1", Body: "question reply", Date: date(9)})
	put(t, c, entity.Profile{UserID: "u0", Name: "question asker"})

	p := NewPlanner(DefaultLimits)
	e := NewExecutor(c)

	t.Run("new backward is exhaustive and newest first", func(t *testing.T) {
		got := listAll(t, p, e, Request{Sort: Recency(), Limit: 3})
		assert.Equal(t, []string{"q6", "q5", "q4", "q3", "q2", "q1", "q0"}, got)
	})

	t.Run("new forward", func(t *testing.T) {
		got := listAll(t, p, e, Request{Sort: Recency(), Direction: Forward, Limit: 2})
		assert.Equal(t, []string{"q0", "q1", "q2", "q3", "q4", "q5", "q6"}, got)
	})

	t.Run("popular backward", func(t *testing.T) {
		// likes: q0=0 q1=3 q2=6 q3=2 q4=5 q5=1 q6=4
		got := listAll(t, p, e, Request{Sort: Popularity(), Limit: 4})
		assert.Equal(t, []string{"q2", "q4", "q6", "q1", "q3", "q5", "q0"}, got)
	})

	t.Run("author", func(t *testing.T) {
		got := listAll(t, p, e, Request{Sort: ByAuthor("u1"), Limit: 2})
		assert.Equal(t, []string{"q5", "q3", "q1"}, got)
	})

	t.Run("tag", func(t *testing.T) {
		got := listAll(t, p, e, Request{Sort: ByTag("all"), Direction: Forward, Limit: 5})
		assert.Equal(t, []string{"q0", "q1", "q2", "q3", "q4", "q5", "q6"}, got)
	})
}

func TestTagListingSkipsOrphans(t *testing.T) {
	c := newStore(t)
	ctx := context.Background()
	for i := range 3 {
		putQuestion(t, c, entity.Question{QID: fmt.Sprintf("q%d", i), Title: "t", Author: "u", Date: date(i), Tags: []string{"a"}})
	}
	// Remove a question behind the tag row's back.
	_, err := c.DeleteItem(ctx, keys.Question("q1"))
	require.NoError(t, err)

	plan, err := NewPlanner(DefaultLimits).Plan(Request{Sort: ByTag("a")})
	require.NoError(t, err)
	res, err := NewExecutor(c).Run(ctx, plan)
	require.NoError(t, err)
	assert.Equal(t, []string{"q2", "q0"}, qids(res.Questions))
	assert.Empty(t, res.Cursor)
}

func TestSearch(t *testing.T) {
	c := newStore(t)
	var want []string
	for i := range 25 {
		q := entity.Question{QID: fmt.Sprintf("q%02d", i), Title: "misc", Body: "nothing here", Author: "u", Date: date(i)}
		switch i % 4 {
		case 0:
			q.Title = "Learning GoLang"
			want = append(want, q.QID)
		case 1:
			q.Body = "why is golang fast?"
			want = append(want, q.QID)
		}
		putQuestion(t, c, q)
	}
	put(t, c, entity.Reply{QID: "q00", RID: "r1", ParentID: "q00", Author: "u", Body: "golang reply", Date: date(1)})

	p := NewPlanner(DefaultLimits)
	e := NewExecutor(c, WithSearchOptions(SearchOptions{InitialBatch: 2, MaxBatch: 8}))

	got := listAll(t, p, e, Request{Sort: FullTextLike("GOLANG"), Limit: 3})
	assert.ElementsMatch(t, want, got)
	assert.Len(t, got, len(want))

	t.Run("no matches", func(t *testing.T) {
		plan, err := p.Plan(Request{Sort: FullTextLike("rust")})
		require.NoError(t, err)
		res, err := e.Run(context.Background(), plan)
		require.NoError(t, err)
		assert.Empty(t, res.Questions)
		assert.Empty(t, res.Cursor)
	})
}

// cancelAfterScan cancels the request context once the first scan page
// has been read.
type cancelAfterScan struct {
	store.Client
	cancel context.CancelFunc
	scans  int
}

func (c *cancelAfterScan) Scan(ctx context.Context, in store.ScanInput) (store.Page, error) {
	c.scans++
	page, err := c.Client.Scan(ctx, in)
	c.cancel()
	return page, err
}

func TestSearchDeadlineTruncates(t *testing.T) {
	c := newStore(t)
	for i := range 10 {
		putQuestion(t, c, entity.Question{QID: fmt.Sprintf("q%02d", i), Title: "needle", Author: "u", Date: date(i)})
	}
	ctx, cancel := context.WithCancel(context.Background())
	wrapped := &cancelAfterScan{Client: c, cancel: cancel}

	p := NewPlanner(DefaultLimits)
	e := NewExecutor(wrapped, WithSearchOptions(SearchOptions{InitialBatch: 3, MaxBatch: 3}))
	plan, err := p.Plan(Request{Sort: FullTextLike("needle"), Limit: 50})
	require.NoError(t, err)

	res, err := e.Run(ctx, plan)
	require.NoError(t, err)
	assert.True(t, res.Truncated)
	assert.Equal(t, 1, wrapped.scans)
	require.Len(t, res.Questions, 3)
	require.NotEmpty(t, res.Cursor)

	rest := listAll(t, p, NewExecutor(c), Request{Sort: FullTextLike("needle"), Limit: 50, Cursor: res.Cursor})
	assert.Len(t, rest, 7)
	assert.NotContains(t, rest, res.Questions[0].QID)
}

func TestRunRejectsDoneContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	plan, err := NewPlanner(DefaultLimits).Plan(Request{Sort: Recency()})
	require.NoError(t, err)
	_, err = NewExecutor(newStore(t)).Run(ctx, plan)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestListCursor(t *testing.T) {
	key := keys.Save("u1", "q1").Attributes(table.Forum(""))
	token, err := EncodeListCursor("saved", "u1", key)
	require.NoError(t, err)

	got, err := DecodeListCursor(token, "saved", "u1")
	require.NoError(t, err)
	assert.Equal(t, key, got)

	_, err = DecodeListCursor(token, "saved", "u2")
	assert.ErrorIs(t, err, ErrInvalidCursor)
	_, err = DecodeListCursor(token, "following", "u1")
	assert.ErrorIs(t, err, ErrInvalidCursor)

	got, err = DecodeListCursor("", "saved", "u1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

package query

import (
	"context"
	"fmt"
	"strings"

	"github.com/acksell/pairent/dynamodb/store"
	"github.com/acksell/pairent/forum/entity"
	"github.com/acksell/pairent/forum/keys"
	"go.uber.org/zap"
)

// SearchOptions sizes the scan pages of a substring search. Pages start
// at InitialBatch items and double up to MaxBatch.
type SearchOptions struct {
	InitialBatch int
	MaxBatch     int
}

var DefaultSearch = SearchOptions{InitialBatch: 50, MaxBatch: 1000}

// Result is one page of questions.
type Result struct {
	Questions []entity.Question `json:"questions"`
	// Cursor resumes the listing. Empty when the listing is exhausted.
	Cursor string `json:"cursor,omitempty"`
	// Truncated is set when the deadline cut the page short.
	Truncated bool `json:"truncated,omitempty"`
}

// Executor runs plans against a store.
type Executor struct {
	client     store.Client
	search     SearchOptions
	getRetries int
	backoff    store.BackoffFunc
	log        *zap.Logger
}

type ExecutorOption func(*Executor)

func WithSearchOptions(o SearchOptions) ExecutorOption {
	return func(e *Executor) { e.search = o }
}

// WithBatchGetRetries bounds the retries of unprocessed keys when
// resolving tag rows.
func WithBatchGetRetries(n int, backoff store.BackoffFunc) ExecutorOption {
	return func(e *Executor) {
		e.getRetries = n
		e.backoff = backoff
	}
}

func WithLogger(l *zap.Logger) ExecutorOption {
	return func(e *Executor) { e.log = l }
}

func NewExecutor(c store.Client, opts ...ExecutorOption) *Executor {
	e := &Executor{
		client:     c,
		search:     DefaultSearch,
		getRetries: 5,
		backoff:    store.DefaultBackoff,
		log:        zap.NewNop(),
	}
	for _, o := range opts {
		o(e)
	}
	if e.search.InitialBatch < 1 {
		e.search.InitialBatch = DefaultSearch.InitialBatch
	}
	e.search.MaxBatch = max(e.search.MaxBatch, e.search.InitialBatch)
	return e
}

// Run executes p. When ctx ends between round trips the questions found
// so far are returned with Truncated set and a cursor that resumes at the
// first position not yet examined.
func (e *Executor) Run(ctx context.Context, p Plan) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	switch {
	case p.Scan != nil:
		return e.scan(ctx, p)
	case p.Query == nil:
		return Result{}, fmt.Errorf("%w: empty plan", store.ErrInvalidArgument)
	case p.Chained:
		return e.byTag(ctx, p)
	default:
		return e.index(ctx, p)
	}
}

func (e *Executor) index(ctx context.Context, p Plan) (Result, error) {
	page, err := e.client.Query(ctx, *p.Query)
	if err != nil {
		return Result{}, fmt.Errorf("query %s: %w", p.Sort, err)
	}
	qs, err := entity.FromItems[entity.Question](page.Items)
	if err != nil {
		return Result{}, err
	}
	cur, err := encodeCursor(p.Sort, p.Direction, page.LastKey)
	if err != nil {
		return Result{}, err
	}
	return Result{Questions: qs, Cursor: cur}, nil
}

func (e *Executor) byTag(ctx context.Context, p Plan) (Result, error) {
	page, err := e.client.Query(ctx, *p.Query)
	if err != nil {
		return Result{}, fmt.Errorf("query %s: %w", p.Sort, err)
	}
	rows, err := entity.FromItems[entity.TagEntry](page.Items)
	if err != nil {
		return Result{}, err
	}
	if ctx.Err() != nil {
		// Resume at the same tag rows next time.
		cur, err := encodeCursor(p.Sort, p.Direction, p.Query.StartKey)
		if err != nil {
			return Result{}, err
		}
		return Result{Questions: []entity.Question{}, Cursor: cur, Truncated: true}, nil
	}

	qkeys := make([]store.Key, len(rows))
	for i, r := range rows {
		qkeys[i] = keys.Question(r.QID)
	}
	items, err := store.GetAll(ctx, e.client, qkeys, e.getRetries, e.backoff)
	if err != nil {
		return Result{}, fmt.Errorf("resolve %s: %w", p.Sort, err)
	}
	found := make(map[string]entity.Question, len(items))
	for _, item := range items {
		q, err := entity.FromItem[entity.Question](item)
		if err != nil {
			return Result{}, err
		}
		found[q.QID] = q
	}

	qs := make([]entity.Question, 0, len(rows))
	for _, r := range rows {
		q, ok := found[r.QID]
		if !ok {
			e.log.Debug("skipping orphaned tag row",
				zap.String("tag", r.Tag),
				zap.String("qid", r.QID))
			continue
		}
		qs = append(qs, q)
	}
	cur, err := encodeCursor(p.Sort, p.Direction, page.LastKey)
	if err != nil {
		return Result{}, err
	}
	return Result{Questions: qs, Cursor: cur}, nil
}

// scan reads the table in growing pages until it has Limit matches or
// runs out of table. The cost is linear in the table size.
func (e *Executor) scan(ctx context.Context, p Plan) (Result, error) {
	needle := strings.ToLower(p.Sort.Arg)
	res := Result{Questions: []entity.Question{}}
	start := p.Scan.StartKey
	batch := e.search.InitialBatch
	def := e.client.Table()

	for round := 0; ; round++ {
		if round > 0 && ctx.Err() != nil {
			res.Truncated = true
			break
		}
		page, err := e.client.Scan(ctx, store.ScanInput{Limit: batch, StartKey: start})
		if err != nil {
			return Result{}, fmt.Errorf("scan: %w", err)
		}
		for i, item := range page.Items {
			k, err := store.KeyOf(def, item)
			if err != nil {
				return Result{}, err
			}
			start = k.Attributes(def)
			if kind, _, err := keys.DecodeKey(k); err != nil || kind != keys.KindQuestion {
				continue
			}
			q, err := entity.FromItem[entity.Question](item)
			if err != nil {
				return Result{}, err
			}
			if !matches(q, needle) {
				continue
			}
			res.Questions = append(res.Questions, q)
			if len(res.Questions) == p.Limit {
				if i == len(page.Items)-1 && page.LastKey == nil {
					start = nil
				}
				return e.finishScan(p, res, start)
			}
		}
		if page.LastKey == nil {
			start = nil
			break
		}
		start = page.LastKey
		batch = min(batch*2, e.search.MaxBatch)
	}
	return e.finishScan(p, res, start)
}

func (e *Executor) finishScan(p Plan, res Result, last store.Item) (Result, error) {
	cur, err := encodeCursor(p.Sort, p.Direction, last)
	if err != nil {
		return Result{}, err
	}
	res.Cursor = cur
	return res, nil
}

func matches(q entity.Question, needle string) bool {
	return strings.Contains(strings.ToLower(q.Title), needle) ||
		strings.Contains(strings.ToLower(q.Body), needle)
}

// Package query plans and runs question listings: recency, popularity,
// per-author, per-tag and substring search, all behind one opaque cursor.
package query

import (
	"fmt"

	"github.com/acksell/pairent/dynamodb/store"
	"github.com/acksell/pairent/dynamodb/table"
	"github.com/acksell/pairent/forum/entity"
	"github.com/acksell/pairent/forum/keys"
)

// Limits bounds the page size. Out of range values are clamped.
type Limits struct {
	Min     int
	Max     int
	Default int
}

var DefaultLimits = Limits{Min: 1, Max: 100, Default: 20}

// Clamp maps a requested page size into range. Zero selects Default.
func (l Limits) Clamp(n int) int {
	if n == 0 {
		n = l.Default
	}
	return max(l.Min, min(n, l.Max))
}

func (l Limits) Validate() error {
	if l.Min < 1 || l.Max < l.Min || l.Default < l.Min || l.Default > l.Max {
		return fmt.Errorf("%w: limits must satisfy 1 <= min <= default <= max, got %+v", store.ErrInvalidArgument, l)
	}
	return nil
}

// Request is a logical listing request as received from callers.
type Request struct {
	Sort      Sort
	Direction Direction
	Limit     int
	Cursor    string
}

// Plan is the physical form of a Request.
type Plan struct {
	Sort      Sort
	Direction Direction
	Limit     int

	// Exactly one of Query or Scan is set.
	Query *store.QueryInput
	Scan  *store.ScanInput
	// Chained is set when the query returns tag rows whose questions must
	// be fetched with a second round trip.
	Chained bool
}

type Planner struct {
	limits Limits
}

func NewPlanner(limits Limits) *Planner {
	return &Planner{limits: limits}
}

// Plan picks the index for r and decodes its cursor.
func (p *Planner) Plan(r Request) (Plan, error) {
	if err := r.Sort.Validate(); err != nil {
		return Plan{}, err
	}
	start, err := decodeCursor(r.Cursor, r.Sort, r.Direction)
	if err != nil {
		return Plan{}, err
	}
	out := Plan{
		Sort:      r.Sort,
		Direction: r.Direction,
		Limit:     p.limits.Clamp(r.Limit),
	}
	q := &store.QueryInput{
		Forward:  r.Direction == Forward,
		Limit:    out.Limit,
		StartKey: start,
	}
	switch r.Sort.Kind {
	case SortNew:
		q.Index, q.Partition = table.IndexNew, entity.GSIDiscriminator
	case SortPopular:
		q.Index, q.Partition = table.IndexPopular, entity.GSIDiscriminator
	case SortAuthor:
		q.Index, q.Partition = table.IndexAuthor, r.Sort.Arg
	case SortTag:
		q.Partition = keys.TagPartition(r.Sort.Arg)
		out.Chained = true
	case SortSearch:
		out.Scan = &store.ScanInput{Limit: out.Limit, StartKey: start}
		return out, nil
	}
	out.Query = q
	return out, nil
}

// Package cascade keeps denormalized counters in step with the items they
// count and removes entities together with everything they own.
package cascade

import (
	"time"

	"github.com/acksell/pairent/dynamodb/store"
	"go.uber.org/zap"
)

// Options bounds the work of a single cascade call.
type Options struct {
	// PageSize is the number of items read per partition query.
	PageSize int
	// MaxPages bounds the query-then-delete iterations of one call.
	MaxPages int
	// MaxBatchRetries bounds the re-submissions of unprocessed deletes.
	MaxBatchRetries int
	// BatchTimeout bounds each batch write including its retries. Zero
	// leaves only MaxBatchRetries.
	BatchTimeout time.Duration
	Backoff      store.BackoffFunc
}

var DefaultOptions = Options{
	PageSize:        100,
	MaxPages:        1000,
	MaxBatchRetries: 8,
	Backoff:         store.DefaultBackoff,
}

// WithDefaults fills unset fields from DefaultOptions.
func (o Options) WithDefaults() Options {
	if o.PageSize < 2 {
		o.PageSize = DefaultOptions.PageSize
	}
	if o.MaxPages < 1 {
		o.MaxPages = DefaultOptions.MaxPages
	}
	if o.MaxBatchRetries < 1 {
		o.MaxBatchRetries = DefaultOptions.MaxBatchRetries
	}
	if o.Backoff == nil {
		o.Backoff = DefaultOptions.Backoff
	}
	return o
}

// BatchOptions configures a store.Batch with the retry budget of o.
func (o Options) BatchOptions(log *zap.Logger) []store.BatchOption {
	opts := []store.BatchOption{
		store.WithMaxRetries(o.MaxBatchRetries),
		store.WithCustomBackoff(o.Backoff),
		store.WithBatchLogger(log),
	}
	if o.BatchTimeout > 0 {
		opts = append(opts, store.WithTimeout(o.BatchTimeout))
	}
	return opts
}

type config struct {
	opts Options
	now  func() time.Time
	log  *zap.Logger
}

type Option func(*config)

func WithOptions(o Options) Option {
	return func(c *config) { c.opts = o }
}

func WithClock(now func() time.Time) Option {
	return func(c *config) { c.now = now }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *config) { c.log = l }
}

func newConfig(opts []Option) config {
	c := config{opts: DefaultOptions, now: time.Now, log: zap.NewNop()}
	for _, o := range opts {
		o(&c)
	}
	c.opts = c.opts.WithDefaults()
	return c
}

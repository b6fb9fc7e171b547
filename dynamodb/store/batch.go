package store

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Batch accumulates puts and deletes and writes them in chunks of
// MaxBatchWrite, re-submitting whatever the backend reports as unprocessed.
type Batch struct {
	client Client
	opts   batchOpts

	pending []WriteRequest
	seen    map[Key]struct{}
	retries int
}

func NewBatch(c Client, opts ...BatchOption) *Batch {
	b := &Batch{
		client: c,
		seen:   make(map[Key]struct{}),
		opts:   batchOpts{log: zap.NewNop()},
	}
	for _, opt := range opts {
		opt(&b.opts)
	}
	if b.opts.backoff == nil {
		b.opts.backoff = DefaultBackoff
	}
	return b
}

// Put adds items to the batch.
// Returns an error if an action on the same primary key is already pending.
func (b *Batch) Put(items ...Item) error {
	for _, item := range items {
		if err := b.add(PutRequest(item)); err != nil {
			return err
		}
	}
	return nil
}

// Delete adds keys to the batch.
// Returns an error if an action on the same primary key is already pending.
func (b *Batch) Delete(keys ...Key) error {
	for _, k := range keys {
		if err := b.add(DeleteRequest(k)); err != nil {
			return err
		}
	}
	return nil
}

func (b *Batch) add(req WriteRequest) error {
	k, err := req.Key(b.client.Table())
	if err != nil {
		return err
	}
	if _, dup := b.seen[k]; dup {
		return fmt.Errorf("duplicate action for key %s", k)
	}
	b.seen[k] = struct{}{}
	b.pending = append(b.pending, req)
	return nil
}

// Len is the number of requests still pending.
func (b *Batch) Len() int {
	return len(b.pending)
}

// Exec attempts to write all pending requests once (no retries).
// Requests the backend did not process stay pending.
func (b *Batch) Exec(ctx context.Context) (ExecResult, error) {
	if len(b.pending) == 0 {
		return ExecResult{Retries: b.retries}, nil
	}

	var unprocessed []WriteRequest
	for start := 0; start < len(b.pending); start += MaxBatchWrite {
		end := min(start+MaxBatchWrite, len(b.pending))
		left, err := b.client.BatchWrite(ctx, b.pending[start:end])
		if err != nil {
			b.pending = append(unprocessed, b.pending[start:]...)
			return ExecResult{Unprocessed: b.pending, Retries: b.retries}, fmt.Errorf("batch write failed: %w", err)
		}
		unprocessed = append(unprocessed, left...)
	}

	b.pending = unprocessed
	b.retries++

	return ExecResult{
		Unprocessed: b.pending,
		Retries:     b.retries,
	}, nil
}

// ExecAndRetry writes all pending requests, retrying until complete or
// limits are exceeded. At least one of [WithMaxRetries] or [WithTimeout]
// must be configured. When the budget runs out the returned error is a
// *PartialFailureError naming the keys that were never written.
func (b *Batch) ExecAndRetry(ctx context.Context) error {
	if b.opts.maxRetries == 0 && b.opts.timeout == 0 {
		return fmt.Errorf("ExecAndRetry requires WithMaxRetries or WithTimeout to be configured")
	}
	if b.opts.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.opts.timeout)
		defer cancel()
	}
	for {
		res, err := b.Exec(ctx)
		if err != nil {
			return b.incomplete(err)
		}
		if res.Done() {
			return nil
		}
		b.opts.log.Debug("batch write left items unprocessed",
			zap.Int("unprocessed", len(res.Unprocessed)),
			zap.Int("retries", res.Retries))
		if b.opts.maxRetries > 0 && res.Retries > b.opts.maxRetries {
			return b.incomplete(fmt.Errorf("max retries (%d) exceeded", b.opts.maxRetries))
		}
		if err := Sleep(ctx, b.opts.backoff(res.Retries)); err != nil {
			return b.incomplete(err)
		}
	}
}

func (b *Batch) incomplete(cause error) error {
	keys := make([]Key, 0, len(b.pending))
	def := b.client.Table()
	for _, req := range b.pending {
		if k, err := req.Key(def); err == nil {
			keys = append(keys, k)
		}
	}
	return &PartialFailureError{Op: "batch write", Keys: keys, Err: cause}
}

// ExecResult contains the result of a single Exec pass.
type ExecResult struct {
	Unprocessed []WriteRequest
	Retries     int
}

// Done returns true if all requests were processed.
func (r ExecResult) Done() bool {
	return len(r.Unprocessed) == 0
}

// Err returns nil if Done(), otherwise returns an error.
func (r ExecResult) Err() error {
	if r.Done() {
		return nil
	}
	return fmt.Errorf("batch incomplete: %d items unprocessed after %d retries", len(r.Unprocessed), r.Retries)
}

type BatchOption func(*batchOpts)

// WithMaxRetries sets the maximum number of retry passes after the first one.
func WithMaxRetries(n int) BatchOption {
	return func(o *batchOpts) {
		o.maxRetries = n
	}
}

// WithTimeout sets a timeout for [Batch.ExecAndRetry].
func WithTimeout(d time.Duration) BatchOption {
	return func(o *batchOpts) {
		o.timeout = d
	}
}

// WithCustomBackoff sets a custom backoff function.
func WithCustomBackoff(fn BackoffFunc) BatchOption {
	return func(o *batchOpts) {
		o.backoff = fn
	}
}

func WithBatchLogger(l *zap.Logger) BatchOption {
	return func(o *batchOpts) {
		if l != nil {
			o.log = l
		}
	}
}

type batchOpts struct {
	maxRetries int
	timeout    time.Duration
	backoff    BackoffFunc
	log        *zap.Logger
}

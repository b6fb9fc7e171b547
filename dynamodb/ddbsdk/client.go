// Package ddbsdk implements store.Client on top of Amazon DynamoDB.
package ddbsdk

import (
	"time"

	"github.com/acksell/pairent/dynamodb/store"
	"github.com/acksell/pairent/dynamodb/table"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// Client talks to one DynamoDB table. Retries are owned here, so the
// underlying SDK client should be configured with aws.NopRetryer.
type Client struct {
	awsddb AWSDynamoClientV2
	def    table.TableDefinition
	opts   clientOpts
	cb     *gobreaker.CircuitBreaker
}

var _ store.Client = (*Client)(nil)

func New(awsddb AWSDynamoClientV2, def table.TableDefinition, opts ...Option) *Client {
	c := &Client{
		awsddb: awsddb,
		def:    def,
		opts: clientOpts{
			maxAttempts: 4,
			backoff:     store.DefaultBackoff,
			log:         zap.NewNop(),
		},
	}
	for _, opt := range opts {
		opt(&c.opts)
	}
	if c.opts.breaker != nil {
		settings := *c.opts.breaker
		settings.IsSuccessful = func(err error) bool {
			return err == nil || classify(err) == errPermanent
		}
		c.cb = gobreaker.NewCircuitBreaker(settings)
	}
	return c
}

func (c *Client) Table() table.TableDefinition {
	return c.def
}

type Option func(*clientOpts)

// WithRetries bounds the attempts per call (including the first one).
func WithRetries(maxAttempts int, backoff store.BackoffFunc) Option {
	return func(o *clientOpts) {
		if maxAttempts > 0 {
			o.maxAttempts = maxAttempts
		}
		if backoff != nil {
			o.backoff = backoff
		}
	}
}

// WithCircuitBreaker fronts every call with a breaker. IsSuccessful is
// overridden so that condition failures never trip it.
func WithCircuitBreaker(settings gobreaker.Settings) Option {
	return func(o *clientOpts) {
		o.breaker = &settings
	}
}

// DefaultBreakerSettings trips after 5 consecutive transient failures and
// lets a trial request through after 10s.
func DefaultBreakerSettings(name string) gobreaker.Settings {
	return gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(o *clientOpts) {
		if l != nil {
			o.log = l
		}
	}
}

type clientOpts struct {
	maxAttempts int
	backoff     store.BackoffFunc
	breaker     *gobreaker.Settings
	log         *zap.Logger
}

func ptr[T any](v T) *T {
	return &v
}

// Package ddbmetrics instruments a store.Client with Prometheus metrics.
package ddbmetrics

import (
	"context"
	"errors"
	"time"

	"github.com/acksell/pairent/dynamodb/store"
	"github.com/acksell/pairent/dynamodb/table"
	"github.com/prometheus/client_golang/prometheus"
)

// Status label values.
const (
	StatusOK              = "ok"
	StatusConditionFailed = "condition_failed"
	StatusInvalid         = "invalid"
	StatusUnavailable     = "unavailable"
	StatusCanceled        = "canceled"
	StatusError           = "error"
)

// Collector holds the store metrics. Register it once per registry.
type Collector struct {
	operations  *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	unprocessed *prometheus.CounterVec
	items       *prometheus.CounterVec
}

func NewCollector(namespace string) *Collector {
	return &Collector{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "db_operations_total",
			Help:      "Store operations by outcome.",
		}, []string{"operation", "table", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "db_operation_duration_seconds",
			Help:      "Store operation latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation", "table"}),
		unprocessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "db_unprocessed_total",
			Help:      "Batch entries the backend handed back unprocessed.",
		}, []string{"operation", "table"}),
		items: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "db_items_read_total",
			Help:      "Items returned by reads.",
		}, []string{"operation", "table"}),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	c.operations.Describe(ch)
	c.duration.Describe(ch)
	c.unprocessed.Describe(ch)
	c.items.Describe(ch)
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.operations.Collect(ch)
	c.duration.Collect(ch)
	c.unprocessed.Collect(ch)
	c.items.Collect(ch)
}

// Instrument wraps a client. Every call is counted and timed under the
// client's table name.
func (c *Collector) Instrument(next store.Client) store.Client {
	return &client{next: next, m: c, table: next.Table().Name}
}

func statusOf(err error) string {
	switch {
	case err == nil:
		return StatusOK
	case errors.Is(err, store.ErrConditionFailed):
		return StatusConditionFailed
	case errors.Is(err, store.ErrInvalidArgument):
		return StatusInvalid
	case errors.Is(err, store.ErrUnavailable):
		return StatusUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return StatusCanceled
	default:
		return StatusError
	}
}

type client struct {
	next  store.Client
	m     *Collector
	table string
}

var _ store.Client = (*client)(nil)

func (c *client) observe(op string, start time.Time, err error) {
	c.m.duration.WithLabelValues(op, c.table).Observe(time.Since(start).Seconds())
	c.m.operations.WithLabelValues(op, c.table, statusOf(err)).Inc()
}

func (c *client) read(op string, n int) {
	c.m.items.WithLabelValues(op, c.table).Add(float64(n))
}

func (c *client) Table() table.TableDefinition { return c.next.Table() }

func (c *client) GetItem(ctx context.Context, key store.Key) (store.Item, error) {
	start := time.Now()
	item, err := c.next.GetItem(ctx, key)
	c.observe("GetItem", start, err)
	if item != nil {
		c.read("GetItem", 1)
	}
	return item, err
}

func (c *client) PutItem(ctx context.Context, item store.Item, conds ...store.Condition) error {
	start := time.Now()
	err := c.next.PutItem(ctx, item, conds...)
	c.observe("PutItem", start, err)
	return err
}

func (c *client) UpdateItem(ctx context.Context, key store.Key, u *store.Update) (store.Item, error) {
	start := time.Now()
	item, err := c.next.UpdateItem(ctx, key, u)
	c.observe("UpdateItem", start, err)
	return item, err
}

func (c *client) DeleteItem(ctx context.Context, key store.Key, conds ...store.Condition) (store.Item, error) {
	start := time.Now()
	item, err := c.next.DeleteItem(ctx, key, conds...)
	c.observe("DeleteItem", start, err)
	return item, err
}

func (c *client) Query(ctx context.Context, in store.QueryInput) (store.Page, error) {
	start := time.Now()
	page, err := c.next.Query(ctx, in)
	c.observe("Query", start, err)
	c.read("Query", len(page.Items))
	return page, err
}

func (c *client) Scan(ctx context.Context, in store.ScanInput) (store.Page, error) {
	start := time.Now()
	page, err := c.next.Scan(ctx, in)
	c.observe("Scan", start, err)
	c.read("Scan", len(page.Items))
	return page, err
}

func (c *client) BatchGet(ctx context.Context, keys []store.Key) (store.BatchGetOutput, error) {
	start := time.Now()
	out, err := c.next.BatchGet(ctx, keys)
	c.observe("BatchGet", start, err)
	c.read("BatchGet", len(out.Items))
	if n := len(out.Unprocessed); n > 0 {
		c.m.unprocessed.WithLabelValues("BatchGet", c.table).Add(float64(n))
	}
	return out, err
}

func (c *client) BatchWrite(ctx context.Context, reqs []store.WriteRequest) ([]store.WriteRequest, error) {
	start := time.Now()
	left, err := c.next.BatchWrite(ctx, reqs)
	c.observe("BatchWrite", start, err)
	if n := len(left); n > 0 {
		c.m.unprocessed.WithLabelValues("BatchWrite", c.table).Add(float64(n))
	}
	return left, err
}

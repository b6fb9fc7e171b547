// Package repo is the typed CRUD surface over the forum table. Callers
// never see keys, index names, cursors' contents or update expressions.
package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/acksell/pairent/dynamodb/store"
	"github.com/acksell/pairent/forum/cascade"
	"github.com/acksell/pairent/forum/entity"
	"github.com/acksell/pairent/forum/query"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// IDGenerator produces globally unique identifiers for new entities.
type IDGenerator interface {
	NewID() string
}

// Clock supplies the time stamped on new entities.
type Clock interface {
	Now() time.Time
}

// AuthContext identifies the acting user. The facade treats the id as an
// opaque string.
type AuthContext interface {
	UserID() string
}

// User is an AuthContext for a known user id.
type User string

func (u User) UserID() string { return string(u) }

// UUIDs generates random UUIDs.
type UUIDs struct{}

func (UUIDs) NewID() string { return uuid.NewString() }

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

type options struct {
	ids        IDGenerator
	clock      Clock
	log        *zap.Logger
	limits     query.Limits
	search     query.SearchOptions
	cascade    cascade.Options
	getRetries int
	roomTTL    time.Duration
}

type Option func(*options)

func WithIDGenerator(g IDGenerator) Option { return func(o *options) { o.ids = g } }
func WithClock(c Clock) Option             { return func(o *options) { o.clock = c } }

func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

// WithLimits sets the page size range of every listing.
func WithLimits(l query.Limits) Option { return func(o *options) { o.limits = l } }

func WithSearchOptions(s query.SearchOptions) Option { return func(o *options) { o.search = s } }

// WithCascadeOptions bounds cascade deletes.
func WithCascadeOptions(c cascade.Options) Option { return func(o *options) { o.cascade = c } }

// WithRoomLifetime sets how long a new breakroom stays usable.
func WithRoomLifetime(d time.Duration) Option { return func(o *options) { o.roomTTL = d } }

func newOptions(opts []Option) options {
	o := options{
		ids:        UUIDs{},
		clock:      SystemClock{},
		log:        zap.NewNop(),
		limits:     query.DefaultLimits,
		search:     query.DefaultSearch,
		cascade:    cascade.DefaultOptions,
		getRetries: 5,
		roomTTL:    2 * time.Hour,
	}
	for _, opt := range opts {
		opt(&o)
	}
	o.cascade = o.cascade.WithDefaults()
	return o
}

func (o options) now() string {
	return entity.Timestamp(o.clock.Now())
}

func (o options) cascadeOptions() []cascade.Option {
	return []cascade.Option{
		cascade.WithOptions(o.cascade),
		cascade.WithClock(o.clock.Now),
		cascade.WithLogger(o.log),
	}
}

// get reads and decodes one entity. Absent items yield store.ErrNotFound.
func get[T any, PT interface {
	*T
	entity.Entity
}](ctx context.Context, c store.Client, k store.Key) (T, error) {
	item, err := c.GetItem(ctx, k)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("get %s: %w", k, err)
	}
	v, err := entity.FromItem[T, PT](item)
	if errors.Is(err, store.ErrNotFound) {
		return v, fmt.Errorf("%s: %w", k, store.ErrNotFound)
	}
	return v, err
}

// create validates e and writes it if its key is free.
func create(ctx context.Context, c store.Client, e entity.Entity) error {
	if err := entity.Validate(e); err != nil {
		return err
	}
	return putEntity(ctx, c, e, store.IfNotExists())
}

func putEntity(ctx context.Context, c store.Client, e entity.Entity, conds ...store.Condition) error {
	item, err := entity.ToItem(e)
	if err != nil {
		return err
	}
	err = c.PutItem(ctx, item, conds...)
	if errors.Is(err, store.ErrConditionFailed) {
		return fmt.Errorf("%s: %w", e.Key(), store.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("put %s: %w", e.Key(), err)
	}
	return nil
}

// patch applies a sparse update to an existing item and decodes the
// result.
func patch[T any, PT interface {
	*T
	entity.Entity
}](ctx context.Context, c store.Client, k store.Key, u *store.Update) (T, error) {
	if u.Empty() {
		return get[T, PT](ctx, c, k)
	}
	item, err := c.UpdateItem(ctx, k, u.When(store.IfExists()))
	if errors.Is(err, store.ErrConditionFailed) {
		var zero T
		return zero, fmt.Errorf("%s: %w", k, store.ErrNotFound)
	}
	if err != nil {
		var zero T
		return zero, fmt.Errorf("update %s: %w", k, err)
	}
	return entity.FromItem[T, PT](item)
}

// remove deletes one item and reports whether it existed.
func remove(ctx context.Context, c store.Client, k store.Key) (bool, error) {
	old, err := c.DeleteItem(ctx, k)
	if err != nil {
		return false, fmt.Errorf("delete %s: %w", k, err)
	}
	return old != nil, nil
}

// queryAll reads every page of q.
func queryAll(ctx context.Context, c store.Client, q store.QueryInput) ([]store.Item, error) {
	var out []store.Item
	for {
		page, err := c.Query(ctx, q)
		if err != nil {
			return nil, err
		}
		out = append(out, page.Items...)
		if page.LastKey == nil {
			return out, nil
		}
		q.StartKey = page.LastKey
	}
}

// collect pages through q keeping the items accepted by keep until limit
// items are kept. The returned key is that of the last kept item when the
// partition may hold more, and nil otherwise.
func collect(ctx context.Context, c store.Client, q store.QueryInput, limit int, keep func(store.Item) bool) ([]store.Item, store.Item, error) {
	def := c.Table()
	q.Limit = limit
	var out []store.Item
	for {
		page, err := c.Query(ctx, q)
		if err != nil {
			return nil, nil, err
		}
		for i, item := range page.Items {
			if !keep(item) {
				continue
			}
			out = append(out, item)
			if len(out) < limit {
				continue
			}
			if i == len(page.Items)-1 && page.LastKey == nil {
				return out, nil, nil
			}
			k, err := store.KeyOf(def, item)
			if err != nil {
				return nil, nil, err
			}
			return out, k.Attributes(def), nil
		}
		if page.LastKey == nil {
			return out, nil, nil
		}
		q.StartKey = page.LastKey
	}
}

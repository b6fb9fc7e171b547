// Package ddbstore is an embedded store.Client backed by BadgerDB.
// It mirrors the DynamoDB semantics the forum relies on: conditional
// writes, atomic deltas, sorted partitions, sparse GSIs and paging.
package ddbstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/acksell/pairent/dynamodb/store"
	"github.com/acksell/pairent/dynamodb/table"
	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"
)

const maxTxnAttempts = 100

var conflictBackoff = store.ExponentialBackoff(time.Millisecond, 2, 50*time.Millisecond)

// Store is a store.Client backed by BadgerDB. Every write runs in a
// serializable badger transaction, so deltas never lose updates.
type Store struct {
	db   *badger.DB
	def  table.TableDefinition
	base *indexEncoder
	gsis map[string]*indexEncoder
	log  *zap.Logger
}

var _ store.Client = (*Store)(nil)

// StoreOptions configures the BadgerDB store.
type StoreOptions struct {
	// Path to the database directory. If empty, uses in-memory mode.
	Path string
	// InMemory forces in-memory mode even if Path is set.
	InMemory bool
	// Logger receives store and badger logs. Defaults to a no-op logger.
	Logger *zap.Logger
}

// New opens a BadgerDB-backed store for one table.
func New(opts StoreOptions, def table.TableDefinition) (*Store, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	badgerOpts := badger.DefaultOptions(opts.Path)
	if opts.Path == "" || opts.InMemory {
		badgerOpts = badgerOpts.WithInMemory(true)
	}
	if opts.Logger != nil {
		badgerOpts = badgerOpts.WithLogger(badgerLogger{log.Named("badger").Sugar()})
	} else {
		badgerOpts = badgerOpts.WithLogger(nil)
	}

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("open badger db: %w", err)
	}

	s := &Store{
		db:   db,
		def:  def,
		base: newTableEncoder(def),
		gsis: make(map[string]*indexEncoder, len(def.GSIs)),
		log:  log,
	}
	for _, g := range def.GSIs {
		s.gsis[g.Name] = newGSIEncoder(def, g)
	}
	return s, nil
}

// NewInMemory opens an in-memory store, mostly for tests.
func NewInMemory(def table.TableDefinition) (*Store, error) {
	return New(StoreOptions{InMemory: true}, def)
}

// Close closes the BadgerDB database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Table() table.TableDefinition {
	return s.def
}

func (s *Store) encoder(index string) (*indexEncoder, error) {
	if index == "" {
		return s.base, nil
	}
	e, ok := s.gsis[index]
	if !ok {
		return nil, fmt.Errorf("%w: GSI not found: %s", store.ErrInvalidArgument, index)
	}
	return e, nil
}

// update runs fn in a read-write transaction, retrying on badger conflicts.
func (s *Store) update(ctx context.Context, fn func(txn *badger.Txn) error) error {
	var err error
	for attempt := 0; attempt < maxTxnAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err = s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
		s.log.Debug("transaction conflict, retrying", zap.Int("attempt", attempt))
		if err := store.Sleep(ctx, conflictBackoff(attempt)); err != nil {
			return err
		}
	}
	return fmt.Errorf("%w: %v", store.ErrUnavailable, err)
}

// badgerLogger adapts zap to badger.Logger.
type badgerLogger struct {
	*zap.SugaredLogger
}

func (l badgerLogger) Warningf(format string, args ...any) {
	l.Warnf(format, args...)
}

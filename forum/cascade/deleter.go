package cascade

import (
	"context"
	"fmt"

	"github.com/acksell/pairent/dynamodb/store"
	"github.com/acksell/pairent/forum/entity"
	"github.com/acksell/pairent/forum/keys"
	"go.uber.org/zap"
)

// Result reports what a cascade did.
type Result struct {
	// Deleted is set when at least one item existed.
	Deleted bool `json:"deleted"`
	// Items counts the delete requests issued, including no-op deletes of
	// tag rows that were already gone.
	Items int `json:"items"`
	// Truncated is set when the deadline stopped the cascade. Running it
	// again continues where it stopped.
	Truncated bool `json:"truncated,omitempty"`
}

// Deleter removes entities together with the items they own. Every call
// is a loop of query-then-delete rounds against one partition, so a
// re-run after any failure is safe.
type Deleter struct {
	client store.Client
	cfg    config
}

func NewDeleter(c store.Client, opts ...Option) *Deleter {
	return &Deleter{client: c, cfg: newConfig(opts)}
}

// DeleteQuestion removes the question, its replies and likes, and the tag
// rows named by its tags. Saves and follows in user partitions are left
// for prune-on-read. The root item is deleted last so an interrupted run
// can still find the tags next time.
func (d *Deleter) DeleteQuestion(ctx context.Context, qid string) (Result, error) {
	log := d.cfg.log.With(zap.String("qid", qid))
	pk := keys.QuestionPartition(qid)
	rootKey := keys.Question(qid)
	tagsResolved := false

	var res Result
	for round := 0; round < d.cfg.opts.MaxPages; round++ {
		if round > 0 && ctx.Err() != nil {
			res.Truncated = true
			log.Info("question cascade truncated", zap.Int("rounds", round))
			return res, nil
		}
		page, err := d.client.Query(ctx, store.QueryInput{
			Partition:  pk,
			Forward:    true,
			Limit:      d.cfg.opts.PageSize,
			Consistent: true,
		})
		if err != nil {
			return res, fmt.Errorf("read partition %s: %w", pk, err)
		}

		var batch []store.Key
		var root store.Item
		for _, item := range page.Items {
			k, err := store.KeyOf(d.client.Table(), item)
			if err != nil {
				return res, err
			}
			if k == rootKey {
				root = item
				continue
			}
			batch = append(batch, k)
		}
		if root != nil && !tagsResolved {
			q, err := entity.FromItem[entity.Question](root)
			if err != nil {
				return res, err
			}
			batch = append(batch, q.TagKeys()...)
			tagsResolved = true
		}
		last := false
		if len(batch) == 0 {
			if root == nil {
				log.Debug("question cascade complete", zap.Int("items", res.Items))
				return res, nil
			}
			batch, last = []store.Key{rootKey}, true
		}

		if err := d.deleteKeys(ctx, batch); err != nil {
			log.Warn("question cascade incomplete", zap.Error(err))
			return res, err
		}
		res.Deleted = true
		res.Items += len(batch)
		if last {
			log.Info("deleted question", zap.Int("items", res.Items))
			return res, nil
		}
	}
	return res, d.budgetExhausted(ctx, pk, "")
}

// DeletePrefix removes every item of partition pk whose sort key starts
// with skPrefix. An empty prefix selects the whole partition.
func (d *Deleter) DeletePrefix(ctx context.Context, pk, skPrefix string) (Result, error) {
	q := store.QueryInput{
		Partition:  pk,
		Forward:    true,
		Limit:      d.cfg.opts.PageSize,
		Consistent: true,
	}
	if skPrefix != "" {
		q.Sort = store.BeginsWith(skPrefix)
	}

	var res Result
	for round := 0; round < d.cfg.opts.MaxPages; round++ {
		if round > 0 && ctx.Err() != nil {
			res.Truncated = true
			return res, nil
		}
		page, err := d.client.Query(ctx, q)
		if err != nil {
			return res, fmt.Errorf("read %s/%s*: %w", pk, skPrefix, err)
		}
		if len(page.Items) == 0 {
			return res, nil
		}
		batch := make([]store.Key, 0, len(page.Items))
		for _, item := range page.Items {
			k, err := store.KeyOf(d.client.Table(), item)
			if err != nil {
				return res, err
			}
			batch = append(batch, k)
		}
		if err := d.deleteKeys(ctx, batch); err != nil {
			return res, err
		}
		res.Deleted = true
		res.Items += len(batch)
		if page.LastKey == nil {
			d.cfg.log.Debug("deleted range",
				zap.String("pk", pk),
				zap.String("prefix", skPrefix),
				zap.Int("items", res.Items))
			return res, nil
		}
	}
	return res, d.budgetExhausted(ctx, pk, skPrefix)
}

// DeleteKeys removes the given items, retrying unprocessed deletes within
// the batch retry budget.
func (d *Deleter) DeleteKeys(ctx context.Context, ks ...store.Key) error {
	return d.deleteKeys(ctx, ks)
}

func (d *Deleter) deleteKeys(ctx context.Context, ks []store.Key) error {
	b := store.NewBatch(d.client, d.cfg.opts.BatchOptions(d.cfg.log)...)
	if err := b.Delete(ks...); err != nil {
		return err
	}
	return b.ExecAndRetry(ctx)
}

// budgetExhausted names the next keys still waiting to be deleted.
func (d *Deleter) budgetExhausted(ctx context.Context, pk, skPrefix string) error {
	q := store.QueryInput{Partition: pk, Forward: true, Limit: d.cfg.opts.PageSize, Consistent: true}
	if skPrefix != "" {
		q.Sort = store.BeginsWith(skPrefix)
	}
	var remaining []store.Key
	if page, err := d.client.Query(ctx, q); err == nil {
		for _, item := range page.Items {
			if k, err := store.KeyOf(d.client.Table(), item); err == nil {
				remaining = append(remaining, k)
			}
		}
	}
	err := &store.PartialFailureError{
		Op:   "cascade delete " + pk,
		Keys: remaining,
		Err:  fmt.Errorf("page budget of %d exhausted", d.cfg.opts.MaxPages),
	}
	d.cfg.log.Warn("cascade budget exhausted", zap.String("pk", pk), zap.Int("remaining", len(remaining)))
	return err
}

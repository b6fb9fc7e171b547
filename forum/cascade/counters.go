package cascade

import (
	"context"
	"errors"
	"fmt"

	"github.com/acksell/pairent/dynamodb/store"
	"github.com/acksell/pairent/forum/entity"
	"github.com/acksell/pairent/forum/keys"
	"go.uber.org/zap"
)

// Counters maintains reply counts.
type Counters struct {
	client store.Client
	cfg    config
}

func NewCounters(c store.Client, opts ...Option) *Counters {
	return &Counters{client: c, cfg: newConfig(opts)}
}

// AdjustReplyCount adds delta to the reply_count of the question or reply
// at key. Increments on a missing item yield store.ErrNotFound. A
// decrement that would go below zero is skipped.
func (c *Counters) AdjustReplyCount(ctx context.Context, key store.Key, delta int64) error {
	if delta == 0 {
		return nil
	}
	u := store.NewUpdate().Add(entity.AttrReplyCount, delta).When(store.IfExists())
	if delta < 0 {
		u.When(store.IfGreaterThan(entity.AttrReplyCount, -delta-1))
	}
	_, err := c.client.UpdateItem(ctx, key, u)
	switch {
	case errors.Is(err, store.ErrConditionFailed) && delta < 0:
		c.cfg.log.Debug("reply count not decremented",
			zap.Stringer("key", key),
			zap.Int64("delta", delta))
		return nil
	case errors.Is(err, store.ErrConditionFailed):
		return fmt.Errorf("adjust reply count of %s: %w", key, store.ErrNotFound)
	case err != nil:
		return fmt.Errorf("adjust reply count of %s: %w", key, err)
	}
	return nil
}

// ReconcileReplies recounts the replies of a question and of each reply
// and rewrites every count that drifted. It returns the question's count.
func (c *Counters) ReconcileReplies(ctx context.Context, qid string) (int64, error) {
	var replies []entity.Reply
	q := store.QueryInput{
		Partition:  keys.QuestionPartition(qid),
		Sort:       store.BeginsWith(keys.RepliesPrefix),
		Forward:    true,
		Consistent: true,
	}
	err := eachPage(ctx, c.client, q, func(items []store.Item) error {
		page, err := entity.FromItems[entity.Reply](items)
		replies = append(replies, page...)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("list replies of %s: %w", qid, err)
	}

	children := make(map[string]int64, len(replies))
	var direct int64
	for _, r := range replies {
		if r.IsNested() {
			children[r.ParentID]++
		} else {
			direct++
		}
	}

	set := func(key store.Key, n int64) error {
		_, err := c.client.UpdateItem(ctx, key, store.NewUpdate().Set(entity.AttrReplyCount, n).When(store.IfExists()))
		if errors.Is(err, store.ErrConditionFailed) {
			return fmt.Errorf("reconcile %s: %w", key, store.ErrNotFound)
		}
		return err
	}
	if err := set(keys.Question(qid), direct); err != nil {
		return 0, err
	}
	for _, r := range replies {
		if want := children[r.RID]; want != r.ReplyCount {
			if err := set(r.Key(), want); err != nil && !errors.Is(err, store.ErrNotFound) {
				return 0, err
			}
		}
	}
	c.cfg.log.Info("reconciled replies", zap.String("qid", qid), zap.Int64("reply_count", direct))
	return direct, nil
}

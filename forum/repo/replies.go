package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/acksell/pairent/dynamodb/store"
	"github.com/acksell/pairent/forum/entity"
	"github.com/acksell/pairent/forum/keys"
	"go.uber.org/zap"
)

type NewReply struct {
	// ParentID is the question id for a top level reply or the id of the
	// reply being answered. Empty means top level.
	ParentID string `json:"parent_id,omitempty"`
	Body     string `json:"body"`
}

// CreateReply stores a reply and bumps the reply count of its parent.
// The count is raised before the reply is written, so a missing question
// or parent fails without leaving an orphan.
func (f *Forum) CreateReply(ctx context.Context, auth AuthContext, qid string, in NewReply) (entity.Reply, error) {
	r := entity.Reply{
		QID:      qid,
		RID:      f.opts.ids.NewID(),
		ParentID: in.ParentID,
		Author:   auth.UserID(),
		Body:     in.Body,
		Date:     f.opts.now(),
	}
	if r.ParentID == "" {
		r.ParentID = qid
	}
	if err := entity.Validate(r); err != nil {
		return entity.Reply{}, err
	}

	parent := keys.Question(qid)
	if r.IsNested() {
		parent = keys.Reply(qid, r.ParentID)
	}
	if err := f.counters.AdjustReplyCount(ctx, parent, 1); err != nil {
		return entity.Reply{}, err
	}
	if err := putEntity(ctx, f.client, r, store.IfNotExists()); err != nil {
		f.undoReplyCount(ctx, parent, err)
		return entity.Reply{}, err
	}
	return r, nil
}

func (f *Forum) undoReplyCount(ctx context.Context, parent store.Key, cause error) {
	f.log.Warn("compensating reply count", zap.Stringer("parent", parent), zap.NamedError("cause", cause))
	if err := f.counters.AdjustReplyCount(context.WithoutCancel(ctx), parent, -1); err != nil {
		f.log.Warn("reply count compensation failed, reconcile to repair", zap.Error(err))
	}
}

func (f *Forum) GetReply(ctx context.Context, qid, rid string) (entity.Reply, error) {
	return get[entity.Reply](ctx, f.client, keys.Reply(qid, rid))
}

func (f *Forum) EditReply(ctx context.Context, qid, rid string, p entity.ReplyPatch) (entity.Reply, error) {
	if err := entity.Validate(p); err != nil {
		return entity.Reply{}, err
	}
	return patch[entity.Reply](ctx, f.client, keys.Reply(qid, rid), p.Update())
}

// DeleteReply removes a reply and its likes and decrements its parent's
// reply count. Replies to the deleted reply are kept.
func (f *Forum) DeleteReply(ctx context.Context, qid, rid string) (bool, error) {
	old, err := f.client.DeleteItem(ctx, keys.Reply(qid, rid))
	if err != nil {
		return false, fmt.Errorf("delete reply %s/%s: %w", qid, rid, err)
	}
	if old == nil {
		return false, nil
	}
	r, err := entity.FromItem[entity.Reply](old)
	if err != nil {
		return true, err
	}
	if _, err := f.deleter.DeletePrefix(ctx, keys.QuestionPartition(qid), keys.LikePrefix(rid)); err != nil {
		return true, fmt.Errorf("delete likes of reply %s: %w", rid, err)
	}
	parent := keys.Question(qid)
	if r.IsNested() {
		parent = keys.Reply(qid, r.ParentID)
	}
	if err := f.counters.AdjustReplyCount(ctx, parent, -1); err != nil && !errors.Is(err, store.ErrNotFound) {
		return true, err
	}
	return true, nil
}

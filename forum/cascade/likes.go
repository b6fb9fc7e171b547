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

// Subject is a likeable item: a question (ID == QID) or one of its replies.
type Subject struct {
	QID string
	ID  string
}

func QuestionSubject(qid string) Subject       { return Subject{QID: qid, ID: qid} }
func ReplySubject(qid, rid string) Subject     { return Subject{QID: qid, ID: rid} }
func (s Subject) IsQuestion() bool             { return s.ID == s.QID }
func (s Subject) likeKey(uid string) store.Key { return keys.Like(s.QID, s.ID, uid) }

func (s Subject) Key() store.Key {
	if s.IsQuestion() {
		return keys.Question(s.QID)
	}
	return keys.Reply(s.QID, s.ID)
}

// Likes runs the per-user like state machine. The counter is only ever
// changed with atomic deltas; a crash between the delta and the like item
// write leaves drift that Reconcile repairs.
type Likes struct {
	client store.Client
	cfg    config
}

func NewLikes(c store.Client, opts ...Option) *Likes {
	return &Likes{client: c, cfg: newConfig(opts)}
}

func (s Subject) validate(uid string) error {
	for _, id := range []string{s.QID, s.ID, uid} {
		if err := keys.ValidateID(id); err != nil {
			return err
		}
	}
	return nil
}

// HasLiked reports whether uid currently likes s. Identifiers that cannot
// be key segments yield keys.ErrInvalidID.
func (l *Likes) HasLiked(ctx context.Context, s Subject, uid string) (bool, error) {
	if err := s.validate(uid); err != nil {
		return false, err
	}
	item, err := l.client.GetItem(ctx, s.likeKey(uid))
	if err != nil {
		return false, err
	}
	return item != nil, nil
}

// Like records that uid likes s. It reports false when the like already
// existed. A missing subject yields store.ErrNotFound.
func (l *Likes) Like(ctx context.Context, s Subject, uid string) (bool, error) {
	liked, err := l.HasLiked(ctx, s, uid)
	if err != nil || liked {
		return false, err
	}

	_, err = l.client.UpdateItem(ctx, s.Key(), store.NewUpdate().Add(entity.AttrLikes, 1).When(store.IfExists()))
	if errors.Is(err, store.ErrConditionFailed) {
		return false, fmt.Errorf("like %s: %w", s.Key(), store.ErrNotFound)
	}
	if err != nil {
		return false, fmt.Errorf("like %s: %w", s.Key(), err)
	}

	like := entity.Like{QID: s.QID, LikedID: s.ID, User: uid, Date: entity.Timestamp(l.cfg.now())}
	item, err := entity.ToItem(like)
	if err == nil {
		err = l.client.PutItem(ctx, item, store.IfNotExists())
	}
	if err != nil {
		l.compensate(ctx, s, -1, err)
		if errors.Is(err, store.ErrConditionFailed) {
			// A concurrent like by the same user won.
			return false, nil
		}
		return false, fmt.Errorf("like %s: %w", s.Key(), err)
	}
	return true, nil
}

// Unlike removes uid's like of s. It reports false when there was none.
func (l *Likes) Unlike(ctx context.Context, s Subject, uid string) (bool, error) {
	liked, err := l.HasLiked(ctx, s, uid)
	if err != nil || !liked {
		return false, err
	}

	dec := store.NewUpdate().Add(entity.AttrLikes, -1).When(store.IfExists(), store.IfGreaterThan(entity.AttrLikes, 0))
	_, err = l.client.UpdateItem(ctx, s.Key(), dec)
	decremented := err == nil
	switch {
	case errors.Is(err, store.ErrConditionFailed):
		l.cfg.log.Warn("like counter already zero or subject gone",
			zap.Stringer("subject", s.Key()),
			zap.String("user", uid))
	case err != nil:
		return false, fmt.Errorf("unlike %s: %w", s.Key(), err)
	}

	_, err = l.client.DeleteItem(ctx, s.likeKey(uid), store.IfExists())
	if err != nil {
		if decremented {
			l.compensate(ctx, s, +1, err)
		}
		if errors.Is(err, store.ErrConditionFailed) {
			// A concurrent unlike by the same user won.
			return false, nil
		}
		return false, fmt.Errorf("unlike %s: %w", s.Key(), err)
	}
	return true, nil
}

func (l *Likes) compensate(ctx context.Context, s Subject, delta int64, cause error) {
	l.cfg.log.Warn("compensating like counter",
		zap.Stringer("subject", s.Key()),
		zap.Int64("delta", delta),
		zap.NamedError("cause", cause))
	u := store.NewUpdate().Add(entity.AttrLikes, delta).When(store.IfExists())
	if delta < 0 {
		u.When(store.IfGreaterThan(entity.AttrLikes, 0))
	}
	if _, err := l.client.UpdateItem(context.WithoutCancel(ctx), s.Key(), u); err != nil {
		l.cfg.log.Warn("like counter compensation failed, reconcile to repair",
			zap.Stringer("subject", s.Key()),
			zap.Error(err))
	}
}

// Reconcile recounts the like items of s and stores the result as its
// counter.
func (l *Likes) Reconcile(ctx context.Context, s Subject) (int64, error) {
	n, err := countPrefix(ctx, l.client, keys.QuestionPartition(s.QID), keys.LikePrefix(s.ID))
	if err != nil {
		return 0, fmt.Errorf("count likes of %s: %w", s.Key(), err)
	}
	_, err = l.client.UpdateItem(ctx, s.Key(), store.NewUpdate().Set(entity.AttrLikes, n).When(store.IfExists()))
	if errors.Is(err, store.ErrConditionFailed) {
		return 0, fmt.Errorf("reconcile %s: %w", s.Key(), store.ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("reconcile %s: %w", s.Key(), err)
	}
	l.cfg.log.Info("reconciled likes", zap.Stringer("subject", s.Key()), zap.Int64("likes", n))
	return n, nil
}

func countPrefix(ctx context.Context, c store.Client, pk, prefix string) (int64, error) {
	var n int64
	err := eachPage(ctx, c, store.QueryInput{Partition: pk, Sort: store.BeginsWith(prefix), Forward: true, Consistent: true},
		func(items []store.Item) error {
			n += int64(len(items))
			return nil
		})
	return n, err
}

// eachPage walks every page of q.
func eachPage(ctx context.Context, c store.Client, q store.QueryInput, fn func([]store.Item) error) error {
	for {
		page, err := c.Query(ctx, q)
		if err != nil {
			return err
		}
		if err := fn(page.Items); err != nil {
			return err
		}
		if page.LastKey == nil {
			return nil
		}
		q.StartKey = page.LastKey
	}
}

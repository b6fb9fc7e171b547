package repo

import (
	"context"
	"fmt"

	"github.com/acksell/pairent/dynamodb/store"
	"github.com/acksell/pairent/forum/entity"
	"github.com/acksell/pairent/forum/keys"
	"github.com/acksell/pairent/forum/query"
	"go.uber.org/zap"
)

const (
	listSaved     = "saved"
	listFollowing = "following"
)

// QuestionPage is one page of a user's saved or followed questions.
type QuestionPage struct {
	Questions []entity.Question `json:"questions"`
	Cursor    string            `json:"cursor,omitempty"`
	// Pruned counts dangling rows removed while reading the page.
	Pruned int `json:"pruned,omitempty"`
}

// Save bookmarks an existing question. Saving twice is a no-op.
func (f *Forum) Save(ctx context.Context, auth AuthContext, qid string) error {
	if _, err := f.GetQuestion(ctx, qid); err != nil {
		return err
	}
	s := entity.Save{UserID: auth.UserID(), QID: qid, Date: f.opts.now()}
	if err := entity.Validate(s); err != nil {
		return err
	}
	return putEntity(ctx, f.client, s)
}

func (f *Forum) Unsave(ctx context.Context, auth AuthContext, qid string) (bool, error) {
	return remove(ctx, f.client, keys.Save(auth.UserID(), qid))
}

func (f *Forum) IsSaved(ctx context.Context, auth AuthContext, qid string) (bool, error) {
	item, err := f.client.GetItem(ctx, keys.Save(auth.UserID(), qid))
	return item != nil, err
}

// ListSaved pages through the saved questions in question id order. Saves
// of deleted questions are removed and skipped.
func (f *Forum) ListSaved(ctx context.Context, auth AuthContext, limit int, cursor string) (QuestionPage, error) {
	uid := auth.UserID()
	q := store.QueryInput{
		Partition:  keys.UserPartition(uid),
		Sort:       store.BeginsWith(keys.SavePrefix),
		Forward:    true,
		Consistent: true,
	}
	return f.listReferences(ctx, listSaved, uid, q, limit, cursor, func(store.Item) bool { return true })
}

// PruneSaved removes every save of the user that points at a deleted
// question.
func (f *Forum) PruneSaved(ctx context.Context, auth AuthContext) (int, error) {
	pruned, cursor := 0, ""
	for {
		page, err := f.ListSaved(ctx, auth, f.opts.limits.Max, cursor)
		if err != nil {
			return pruned, err
		}
		pruned += page.Pruned
		if page.Cursor == "" {
			return pruned, nil
		}
		cursor = page.Cursor
	}
}

// Follow subscribes the user to an existing question.
func (f *Forum) Follow(ctx context.Context, auth AuthContext, qid string) error {
	if _, err := f.GetQuestion(ctx, qid); err != nil {
		return err
	}
	fl := entity.Follow{UserID: auth.UserID(), QID: qid, Date: f.opts.now()}
	if err := entity.Validate(fl); err != nil {
		return err
	}
	return putEntity(ctx, f.client, fl)
}

func (f *Forum) Unfollow(ctx context.Context, auth AuthContext, qid string) (bool, error) {
	return remove(ctx, f.client, keys.Follow(auth.UserID(), qid))
}

// ListFollowing pages through followed questions. Follow rows share the
// user partition with other kinds, so the whole partition is walked.
func (f *Forum) ListFollowing(ctx context.Context, auth AuthContext, limit int, cursor string) (QuestionPage, error) {
	uid := auth.UserID()
	q := store.QueryInput{
		Partition:  keys.UserPartition(uid),
		Forward:    true,
		Consistent: true,
	}
	isFollow := func(item store.Item) bool {
		k, err := store.KeyOf(f.client.Table(), item)
		if err != nil {
			return false
		}
		kind, _, err := keys.DecodeKey(k)
		return err == nil && kind == keys.KindFollow
	}
	return f.listReferences(ctx, listFollowing, uid, q, limit, cursor, isFollow)
}

// listReferences lists rows that carry a qid, resolves the questions and
// prunes the rows whose question is gone.
func (f *Forum) listReferences(ctx context.Context, list, uid string, q store.QueryInput, limit int, cursor string, keep func(store.Item) bool) (QuestionPage, error) {
	start, err := query.DecodeListCursor(cursor, list, uid)
	if err != nil {
		return QuestionPage{}, err
	}
	q.StartKey = start
	items, last, err := collect(ctx, f.client, q, f.opts.limits.Clamp(limit), keep)
	if err != nil {
		return QuestionPage{}, fmt.Errorf("list %s of %s: %w", list, uid, err)
	}

	qids := make([]string, 0, len(items))
	rowKeys := make([]store.Key, 0, len(items))
	for _, item := range items {
		k, err := store.KeyOf(f.client.Table(), item)
		if err != nil {
			return QuestionPage{}, err
		}
		_, ids, err := keys.DecodeKey(k)
		if err != nil {
			return QuestionPage{}, err
		}
		qids = append(qids, ids[len(ids)-1])
		rowKeys = append(rowKeys, k)
	}

	found, err := f.resolveQuestions(ctx, qids)
	if err != nil {
		return QuestionPage{}, err
	}
	page := QuestionPage{Questions: make([]entity.Question, 0, len(qids))}
	var dangling []store.Key
	for i, qid := range qids {
		if qn, ok := found[qid]; ok {
			page.Questions = append(page.Questions, qn)
			continue
		}
		dangling = append(dangling, rowKeys[i])
	}
	if len(dangling) > 0 {
		if err := f.deleter.DeleteKeys(ctx, dangling...); err != nil {
			return QuestionPage{}, fmt.Errorf("prune %s of %s: %w", list, uid, err)
		}
		page.Pruned = len(dangling)
		f.log.Info("pruned dangling references",
			zap.String("list", list),
			zap.String("user", uid),
			zap.Int("pruned", len(dangling)))
	}
	if page.Cursor, err = query.EncodeListCursor(list, uid, last); err != nil {
		return QuestionPage{}, err
	}
	return page, nil
}

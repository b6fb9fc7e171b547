package repo

import (
	"context"
	"fmt"
	"slices"

	"github.com/acksell/pairent/dynamodb/store"
	"github.com/acksell/pairent/forum/cascade"
	"github.com/acksell/pairent/forum/entity"
	"github.com/acksell/pairent/forum/keys"
	"github.com/acksell/pairent/forum/query"
	"go.uber.org/zap"
)

// Forum manages questions, replies, likes, saves and follows.
type Forum struct {
	client   store.Client
	opts     options
	log      *zap.Logger
	planner  *query.Planner
	exec     *query.Executor
	likes    *cascade.Likes
	counters *cascade.Counters
	deleter  *cascade.Deleter
}

func NewForum(c store.Client, opts ...Option) *Forum {
	o := newOptions(opts)
	return &Forum{
		client:  c,
		opts:    o,
		log:     o.log,
		planner: query.NewPlanner(o.limits),
		exec: query.NewExecutor(c,
			query.WithSearchOptions(o.search),
			query.WithBatchGetRetries(o.getRetries, o.cascade.Backoff),
			query.WithLogger(o.log)),
		likes:    cascade.NewLikes(c, o.cascadeOptions()...),
		counters: cascade.NewCounters(c, o.cascadeOptions()...),
		deleter:  cascade.NewDeleter(c, o.cascadeOptions()...),
	}
}

// NewQuestion holds the caller supplied fields of a question.
type NewQuestion struct {
	Title string   `json:"title"`
	Body  string   `json:"body"`
	Name  string   `json:"name"`
	Age   int      `json:"age"`
	Tags  []string `json:"tags"`
}

// CreateQuestion stores a question with zero counters and one tag row per
// distinct tag. If the tag rows cannot be written the question is removed
// again.
func (f *Forum) CreateQuestion(ctx context.Context, auth AuthContext, in NewQuestion) (entity.Question, error) {
	q := entity.Question{
		QID:    f.opts.ids.NewID(),
		Title:  in.Title,
		Body:   in.Body,
		Author: auth.UserID(),
		Name:   in.Name,
		Age:    in.Age,
		Tags:   entity.NormalizeTags(in.Tags),
		Date:   f.opts.now(),
	}
	if err := create(ctx, f.client, q); err != nil {
		return entity.Question{}, err
	}
	if err := f.putTagRows(ctx, q.TagRows()); err != nil {
		// Without its tag rows the question would be missing from tag
		// listings, so take it back out.
		if _, derr := f.deleter.DeleteQuestion(context.WithoutCancel(ctx), q.QID); derr != nil {
			f.log.Warn("could not remove untagged question",
				zap.String("qid", q.QID),
				zap.Error(derr))
		}
		return entity.Question{}, fmt.Errorf("index tags of %s: %w", q.QID, err)
	}
	f.log.Debug("created question", zap.String("qid", q.QID), zap.Strings("tags", q.Tags))
	return q, nil
}

func (f *Forum) putTagRows(ctx context.Context, rows []entity.TagEntry) error {
	if len(rows) == 0 {
		return nil
	}
	b := f.batch()
	for _, row := range rows {
		item, err := entity.ToItem(row)
		if err != nil {
			return err
		}
		if err := b.Put(item); err != nil {
			return err
		}
	}
	return b.ExecAndRetry(ctx)
}

func (f *Forum) batch() *store.Batch {
	return store.NewBatch(f.client, f.opts.cascade.BatchOptions(f.log)...)
}

func (f *Forum) GetQuestion(ctx context.Context, qid string) (entity.Question, error) {
	return get[entity.Question](ctx, f.client, keys.Question(qid))
}

// Thread is a question with all of its replies in key order.
type Thread struct {
	Question entity.Question `json:"question"`
	Replies  []entity.Reply  `json:"replies"`
}

// GetThread reads the question partition once.
func (f *Forum) GetThread(ctx context.Context, qid string) (Thread, error) {
	items, err := queryAll(ctx, f.client, store.QueryInput{
		Partition:  keys.QuestionPartition(qid),
		Forward:    true,
		Consistent: true,
	})
	if err != nil {
		return Thread{}, fmt.Errorf("read thread %s: %w", qid, err)
	}
	t := Thread{Replies: []entity.Reply{}}
	found := false
	for _, item := range items {
		k, err := store.KeyOf(f.client.Table(), item)
		if err != nil {
			return Thread{}, err
		}
		kind, _, err := keys.DecodeKey(k)
		if err != nil {
			f.log.Debug("skipping unknown item in thread", zap.Stringer("key", k))
			continue
		}
		switch kind {
		case keys.KindQuestion:
			if t.Question, err = entity.FromItem[entity.Question](item); err != nil {
				return Thread{}, err
			}
			found = true
		case keys.KindReply:
			r, err := entity.FromItem[entity.Reply](item)
			if err != nil {
				return Thread{}, err
			}
			t.Replies = append(t.Replies, r)
		}
	}
	if !found {
		return Thread{}, fmt.Errorf("question %s: %w", qid, store.ErrNotFound)
	}
	return t, nil
}

// EditQuestion applies a sparse patch. When the tags change, tag rows are
// added and removed to match.
func (f *Forum) EditQuestion(ctx context.Context, qid string, p entity.QuestionPatch) (entity.Question, error) {
	if err := entity.Validate(p); err != nil {
		return entity.Question{}, err
	}
	var before entity.Question
	if p.Tags != nil {
		var err error
		if before, err = f.GetQuestion(ctx, qid); err != nil {
			return entity.Question{}, err
		}
	}
	after, err := patch[entity.Question](ctx, f.client, keys.Question(qid), p.Update())
	if err != nil || p.Tags == nil {
		return after, err
	}

	added, removed := diffTags(before.Tags, after.Tags)
	if err := f.putTagRows(ctx, entity.Question{QID: qid, Date: after.Date, Tags: added}.TagRows()); err != nil {
		return after, fmt.Errorf("index tags of %s: %w", qid, err)
	}
	if len(removed) > 0 {
		stale := entity.Question{QID: qid, Date: after.Date, Tags: removed}.TagKeys()
		if err := f.deleter.DeleteKeys(ctx, stale...); err != nil {
			return after, fmt.Errorf("unindex tags of %s: %w", qid, err)
		}
	}
	f.log.Debug("retagged question",
		zap.String("qid", qid),
		zap.Strings("added", added),
		zap.Strings("removed", removed))
	return after, nil
}

func diffTags(before, after []string) (added, removed []string) {
	for _, t := range after {
		if !slices.Contains(before, t) {
			added = append(added, t)
		}
	}
	for _, t := range before {
		if !slices.Contains(after, t) {
			removed = append(removed, t)
		}
	}
	return added, removed
}

// DeleteQuestion removes the question with its replies, likes and tag
// rows. Saves and follows pointing at it are pruned when next read.
func (f *Forum) DeleteQuestion(ctx context.Context, qid string) (cascade.Result, error) {
	return f.deleter.DeleteQuestion(ctx, qid)
}

// ListQuestions returns one page of a listing. The cursor of the result
// must be passed back unmodified with the same sort and direction.
func (f *Forum) ListQuestions(ctx context.Context, r query.Request) (query.Result, error) {
	plan, err := f.planner.Plan(r)
	if err != nil {
		return query.Result{}, err
	}
	return f.exec.Run(ctx, plan)
}

// SearchQuestions matches text against titles and bodies, ignoring case.
// It scans the table.
func (f *Forum) SearchQuestions(ctx context.Context, text string, dir query.Direction, limit int, cursor string) (query.Result, error) {
	return f.ListQuestions(ctx, query.Request{Sort: query.FullTextLike(text), Direction: dir, Limit: limit, Cursor: cursor})
}

func (f *Forum) ListByAuthor(ctx context.Context, uid string, dir query.Direction, limit int, cursor string) (query.Result, error) {
	return f.ListQuestions(ctx, query.Request{Sort: query.ByAuthor(uid), Direction: dir, Limit: limit, Cursor: cursor})
}

// BatchGetQuestions returns the questions that exist, in the order of
// ids. Unknown and duplicate ids are skipped.
func (f *Forum) BatchGetQuestions(ctx context.Context, ids []string) ([]entity.Question, error) {
	byID, err := f.resolveQuestions(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]entity.Question, 0, len(byID))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if q, ok := byID[id]; ok && !seen[id] {
			seen[id] = true
			out = append(out, q)
		}
	}
	return out, nil
}

func (f *Forum) resolveQuestions(ctx context.Context, ids []string) (map[string]entity.Question, error) {
	ks := make([]store.Key, 0, len(ids))
	for _, id := range ids {
		if keys.ValidateID(id) != nil {
			continue
		}
		ks = append(ks, keys.Question(id))
	}
	items, err := store.GetAll(ctx, f.client, ks, f.opts.getRetries, f.opts.cascade.Backoff)
	if err != nil {
		return nil, fmt.Errorf("batch get questions: %w", err)
	}
	out := make(map[string]entity.Question, len(items))
	for _, item := range items {
		q, err := entity.FromItem[entity.Question](item)
		if err != nil {
			return nil, err
		}
		out[q.QID] = q
	}
	return out, nil
}

package repo

import (
	"context"

	"github.com/acksell/pairent/forum/cascade"
)

// LikeQuestion reports whether the like was new.
func (f *Forum) LikeQuestion(ctx context.Context, auth AuthContext, qid string) (bool, error) {
	return f.likes.Like(ctx, cascade.QuestionSubject(qid), auth.UserID())
}

func (f *Forum) UnlikeQuestion(ctx context.Context, auth AuthContext, qid string) (bool, error) {
	return f.likes.Unlike(ctx, cascade.QuestionSubject(qid), auth.UserID())
}

func (f *Forum) LikeReply(ctx context.Context, auth AuthContext, qid, rid string) (bool, error) {
	return f.likes.Like(ctx, cascade.ReplySubject(qid, rid), auth.UserID())
}

func (f *Forum) UnlikeReply(ctx context.Context, auth AuthContext, qid, rid string) (bool, error) {
	return f.likes.Unlike(ctx, cascade.ReplySubject(qid, rid), auth.UserID())
}

// HasLiked reports whether the user likes the question (likedID == qid)
// or the reply likedID.
func (f *Forum) HasLiked(ctx context.Context, auth AuthContext, qid, likedID string) (bool, error) {
	return f.likes.HasLiked(ctx, cascade.Subject{QID: qid, ID: likedID}, auth.UserID())
}

// ReconcileLikes recounts the likes of a question or reply and stores the
// count. It repairs drift left by interrupted like or unlike calls.
func (f *Forum) ReconcileLikes(ctx context.Context, qid, likedID string) (int64, error) {
	return f.likes.Reconcile(ctx, cascade.Subject{QID: qid, ID: likedID})
}

// ReconcileReplies recounts the replies of a question and its replies.
func (f *Forum) ReconcileReplies(ctx context.Context, qid string) (int64, error) {
	return f.counters.ReconcileReplies(ctx, qid)
}

package entity

import (
	"slices"

	"github.com/acksell/pairent/dynamodb/store"
	"github.com/acksell/pairent/forum/keys"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// GSIDiscriminator marks items that appear in the question listings.
const GSIDiscriminator = "Y"

// Attribute names shared by several kinds.
const (
	AttrGSI        = "gsi"
	AttrLikes      = "likes"
	AttrReplyCount = "reply_count"
	AttrTags       = "tags"
	AttrDate       = "date"
)

type Question struct {
	QID        string   `dynamodbav:"qid" json:"qid" validate:"required,keyid"`
	Title      string   `dynamodbav:"title" json:"title" validate:"required,max=300"`
	Body       string   `dynamodbav:"body" json:"body"`
	Author     string   `dynamodbav:"author" json:"author" validate:"required,keyid"`
	Name       string   `dynamodbav:"name" json:"name"`
	Tags       []string `dynamodbav:"tags,stringset,omitempty" json:"tags" validate:"max=20,dive,keyid"`
	Age        int      `dynamodbav:"age" json:"age" validate:"min=0"`
	Date       string   `dynamodbav:"date" json:"date" validate:"required"`
	Likes      int64    `dynamodbav:"likes" json:"likes"`
	ReplyCount int64    `dynamodbav:"reply_count" json:"reply_count"`
}

func (q Question) Key() store.Key { return keys.Question(q.QID) }

func (q Question) extraAttributes() store.Item {
	return store.Item{AttrGSI: &types.AttributeValueMemberS{Value: GSIDiscriminator}}
}

func (q *Question) applyDefaults() {
	if q.Tags == nil {
		q.Tags = []string{}
	}
}

// TagKeys returns the keys of the tag rows that index the question.
func (q Question) TagKeys() []store.Key {
	out := make([]store.Key, 0, len(q.Tags))
	for _, tag := range q.Tags {
		out = append(out, keys.Tag(tag, q.Date, q.QID))
	}
	return out
}

// TagRows returns the tag rows that index the question.
func (q Question) TagRows() []TagEntry {
	out := make([]TagEntry, 0, len(q.Tags))
	for _, tag := range q.Tags {
		out = append(out, TagEntry{Tag: tag, QID: q.QID, CreatedAt: q.Date})
	}
	return out
}

// NormalizeTags returns tags sorted with duplicates removed.
func NormalizeTags(tags []string) []string {
	out := slices.Clone(tags)
	slices.Sort(out)
	return slices.Compact(out)
}

// Reply is an answer to a question or to another reply. The author is
// stored as "user" so replies stay out of the author index.
type Reply struct {
	QID        string `dynamodbav:"qid" json:"qid" validate:"required,keyid"`
	RID        string `dynamodbav:"rid" json:"rid" validate:"required,keyid"`
	ParentID   string `dynamodbav:"parent_id" json:"parent_id" validate:"required,keyid"`
	Author     string `dynamodbav:"user" json:"author" validate:"required,keyid"`
	Body       string `dynamodbav:"body" json:"body" validate:"required"`
	Date       string `dynamodbav:"date" json:"date" validate:"required"`
	Likes      int64  `dynamodbav:"likes" json:"likes"`
	ReplyCount int64  `dynamodbav:"reply_count" json:"reply_count"`
}

func (r Reply) Key() store.Key { return keys.Reply(r.QID, r.RID) }

// IsNested reports whether the reply answers another reply.
func (r Reply) IsNested() bool { return r.ParentID != r.QID }

// Like records that a user liked a question (LikedID == QID) or one of
// its replies.
type Like struct {
	QID     string `dynamodbav:"qid" json:"qid" validate:"required,keyid"`
	LikedID string `dynamodbav:"liked_id" json:"liked_id" validate:"required,keyid"`
	User    string `dynamodbav:"user" json:"user" validate:"required,keyid"`
	Date    string `dynamodbav:"date" json:"date"`
}

func (l Like) Key() store.Key { return keys.Like(l.QID, l.LikedID, l.User) }

// Save bookmarks a question in the user's partition. It survives the
// question and is pruned when read.
type Save struct {
	UserID string `dynamodbav:"user_id" json:"user_id" validate:"required,keyid"`
	QID    string `dynamodbav:"qid" json:"qid" validate:"required,keyid"`
	Date   string `dynamodbav:"date" json:"date"`
}

func (s Save) Key() store.Key { return keys.Save(s.UserID, s.QID) }

type Follow struct {
	UserID string `dynamodbav:"user_id" json:"user_id" validate:"required,keyid"`
	QID    string `dynamodbav:"qid" json:"qid" validate:"required,keyid"`
	Date   string `dynamodbav:"date" json:"date"`
}

func (f Follow) Key() store.Key { return keys.Follow(f.UserID, f.QID) }

// TagEntry is the secondary lookup row of one (tag, question) pair.
type TagEntry struct {
	Tag       string `dynamodbav:"tag" json:"tag" validate:"required,keyid"`
	QID       string `dynamodbav:"qid" json:"qid" validate:"required,keyid"`
	CreatedAt string `dynamodbav:"created_at" json:"created_at" validate:"required,keyid"`
}

func (t TagEntry) Key() store.Key { return keys.Tag(t.Tag, t.CreatedAt, t.QID) }

// QuestionPatch is a sparse edit: nil fields are left untouched.
type QuestionPatch struct {
	Title *string   `json:"title,omitempty" validate:"omitnil,min=1,max=300"`
	Body  *string   `json:"body,omitempty"`
	Name  *string   `json:"name,omitempty"`
	Age   *int      `json:"age,omitempty" validate:"omitnil,min=0"`
	Tags  *[]string `json:"tags,omitempty" validate:"omitnil,max=20,dive,keyid"`
}

// Update compiles the patch. An empty tag list removes the attribute.
func (p QuestionPatch) Update() *store.Update {
	u := store.NewUpdate()
	if p.Title != nil {
		u.Set("title", *p.Title)
	}
	if p.Body != nil {
		u.Set("body", *p.Body)
	}
	if p.Name != nil {
		u.Set("name", *p.Name)
	}
	if p.Age != nil {
		u.Set("age", *p.Age)
	}
	if p.Tags != nil {
		if tags := NormalizeTags(*p.Tags); len(tags) > 0 {
			u.Set(AttrTags, store.StringSet(tags))
		} else {
			u.Remove(AttrTags)
		}
	}
	return u
}

type ReplyPatch struct {
	Body *string `json:"body,omitempty" validate:"omitnil,min=1"`
}

func (p ReplyPatch) Update() *store.Update {
	u := store.NewUpdate()
	if p.Body != nil {
		u.Set("body", *p.Body)
	}
	return u
}

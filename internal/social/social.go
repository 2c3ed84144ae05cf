package social

import (
	"errors"
	"time"
)

var (
	ErrSelfFollow       = errors.New("cannot follow yourself")
	ErrAlreadyFollowing = errors.New("already following")
	ErrNotFollowing     = errors.New("not following")
	ErrAlreadyLiked     = errors.New("already liked")
	ErrLikeNotFound     = errors.New("like not found")
	ErrCommentNotFound  = errors.New("comment not found")
	ErrInvalidCursor    = errors.New("invalid cursor")
)

// Activity is an append-only social event, e.g. a logged workout or a
// created routine, shown in followers' feeds.
type Activity struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Type      string    `json:"type"`
	RefID     *string   `json:"ref_id"`
	CreatedAt time.Time `json:"created_at"`
}

type Comment struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	RefID     string    `json:"ref_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

type FeedPage struct {
	Items      []Activity `json:"items"`
	NextCursor *string    `json:"nextCursor"`
}

package social

import (
	"context"

	"github.com/mveljkovic/traintracker/internal/telemetry/tracing"
	"github.com/mveljkovic/traintracker/internal/users"
	"github.com/mveljkovic/traintracker/pkg"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
)

type usersChecker interface {
	Exists(ctx context.Context, id int64) (bool, error)
}

type Repo struct {
	db    *pgxpool.Pool
	users usersChecker
}

func NewRepo(db *pgxpool.Pool, users usersChecker) *Repo {
	return &Repo{
		db:    db,
		users: users,
	}
}

func (r *Repo) RecordActivity(
	ctx context.Context,
	userID int64,
	activityType string,
	refID *string,
) (_ int64, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.social.recordActivity")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("activity.type", activityType))

	var id int64
	err = r.db.QueryRow(
		ctx,
		`INSERT INTO activities (user_id, type, ref_id)
			VALUES ($1, $2, $3)
		RETURNING id;`,
		userID, activityType, refID,
	).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (r *Repo) Follow(ctx context.Context, followerID, followeeID int64) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.social.follow")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	if followerID == followeeID {
		return ErrSelfFollow
	}

	exists, err := r.users.Exists(ctx, followeeID)
	if err != nil {
		return err
	}
	if !exists {
		return users.ErrUserNotFound
	}

	_, err = r.db.Exec(
		ctx,
		`INSERT INTO follows (follower_id, followee_id) VALUES ($1, $2);`,
		followerID, followeeID,
	)
	if err != nil {
		if pkg.IsUniqueViolationError(err) {
			return ErrAlreadyFollowing
		}
		return err
	}
	return nil
}

func (r *Repo) Unfollow(ctx context.Context, followerID, followeeID int64) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.social.unfollow")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	tag, err := r.db.Exec(
		ctx,
		`DELETE FROM follows WHERE follower_id = $1 AND followee_id = $2;`,
		followerID, followeeID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFollowing
	}
	return nil
}

// Feed returns activities of the users the requester follows, newest
// first, paginated by an opaque cursor.
func (r *Repo) Feed(ctx context.Context, userID int64, limit int, cursor string) (_ *FeedPage, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.social.feed")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int64("user.id", userID))

	limit = normalizeLimit(limit)

	var rows pgx.Rows
	if cursor == "" {
		rows, err = r.db.Query(
			ctx,
			`SELECT a.id, a.user_id, a.type, a.ref_id, a.created_at
				FROM activities a
				WHERE a.user_id IN (SELECT followee_id FROM follows WHERE follower_id = $1)
			ORDER BY a.created_at DESC, a.id DESC LIMIT $2;`,
			userID, limit,
		)
	} else {
		cursorTs, cursorID, decodeErr := decodeCursor(cursor)
		if decodeErr != nil {
			return nil, decodeErr
		}
		rows, err = r.db.Query(
			ctx,
			`SELECT a.id, a.user_id, a.type, a.ref_id, a.created_at
				FROM activities a
				WHERE a.user_id IN (SELECT followee_id FROM follows WHERE follower_id = $1)
					AND (a.created_at < $2 OR (a.created_at = $2 AND a.id < $3))
			ORDER BY a.created_at DESC, a.id DESC LIMIT $4;`,
			userID, cursorTs, cursorID, limit,
		)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]Activity, 0, limit)
	for rows.Next() {
		var a Activity
		if err := rows.Scan(&a.ID, &a.UserID, &a.Type, &a.RefID, &a.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return feedPage(items, limit), nil
}

func (r *Repo) Like(ctx context.Context, userID int64, refID string) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.social.like")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	_, err = r.db.Exec(
		ctx,
		`INSERT INTO likes (user_id, ref_id) VALUES ($1, $2);`,
		userID, refID,
	)
	if err != nil {
		if pkg.IsUniqueViolationError(err) {
			return ErrAlreadyLiked
		}
		return err
	}
	return nil
}

func (r *Repo) Unlike(ctx context.Context, userID int64, refID string) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.social.unlike")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	tag, err := r.db.Exec(
		ctx,
		`DELETE FROM likes WHERE user_id = $1 AND ref_id = $2;`,
		userID, refID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrLikeNotFound
	}
	return nil
}

func (r *Repo) CreateComment(ctx context.Context, userID int64, refID, content string) (_ *Comment, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.social.createComment")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	var comment Comment
	err = r.db.QueryRow(
		ctx,
		`INSERT INTO comments (user_id, ref_id, content)
			VALUES ($1, $2, $3)
		RETURNING id, user_id, ref_id, content, created_at;`,
		userID, refID, content,
	).Scan(&comment.ID, &comment.UserID, &comment.RefID, &comment.Content, &comment.CreatedAt)
	if err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.Int64("comment.id", comment.ID))
	return &comment, nil
}

func (r *Repo) ListComments(ctx context.Context, refID string) (_ []Comment, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.social.listComments")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	rows, err := r.db.Query(
		ctx,
		`SELECT id, user_id, ref_id, content, created_at
			FROM comments WHERE ref_id = $1
		ORDER BY created_at ASC, id ASC;`,
		refID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	comments := make([]Comment, 0)
	for rows.Next() {
		var comment Comment
		if err := rows.Scan(
			&comment.ID, &comment.UserID, &comment.RefID,
			&comment.Content, &comment.CreatedAt,
		); err != nil {
			return nil, err
		}
		comments = append(comments, comment)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return comments, nil
}

// DeleteComment removes a comment only when it belongs to the caller.
func (r *Repo) DeleteComment(ctx context.Context, commentID, userID int64) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.social.deleteComment")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	tag, err := r.db.Exec(
		ctx,
		`DELETE FROM comments WHERE id = $1 AND user_id = $2;`,
		commentID, userID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrCommentNotFound
	}
	return nil
}

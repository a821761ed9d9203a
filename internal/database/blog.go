package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"lyrahub/internal/domain"
)

func (d *Database) CreatePost(ctx context.Context, post *domain.BlogPost) error {
	post.CreatedAt = time.Now().UTC()

	query := `insert into blog_posts (id, user_id, title, content, image, created_at)
	values (?, ?, ?, ?, ?, ?)`

	_, err := d.db.ExecContext(ctx, query,
		post.ID, post.Author.UserID, post.Title, post.Content, post.Image, post.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert post: %w", err)
	}

	return nil
}

// ListPosts returns the newest posts with their comments. IsLiked reflects
// viewerID, which may be empty for anonymous readers.
func (d *Database) ListPosts(ctx context.Context, viewerID string, limit int) ([]domain.BlogPost, error) {
	query := `select p.id, p.title, p.content, p.image, p.user_id, u.name, p.created_at,
		(select count(*) from blog_likes l where l.post_id = p.id),
		exists (select 1 from blog_likes l where l.post_id = p.id and l.user_id = ?)
	from blog_posts p
	join users u on u.id = p.user_id
	order by p.created_at desc
	limit ?`

	rows, err := d.db.QueryContext(ctx, query, viewerID, limit)
	if err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}
	defer d.closeRows(ctx, rows, "ListPosts")

	var (
		posts []domain.BlogPost
		index = make(map[string]int)
	)

	for rows.Next() {
		var p domain.BlogPost

		err = rows.Scan(&p.ID, &p.Title, &p.Content, &p.Image, &p.Author.UserID, &p.Author.Name,
			&p.CreatedAt, &p.Likes, &p.IsLiked)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}

		p.Comments = []domain.BlogComment{}
		index[p.ID] = len(posts)
		posts = append(posts, p)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	if len(posts) == 0 {
		return posts, nil
	}

	comments, err := d.listComments(ctx, posts)
	if err != nil {
		return nil, err
	}

	for _, c := range comments {
		i := index[c.PostID]
		posts[i].Comments = append(posts[i].Comments, c)
	}

	return posts, nil
}

func (d *Database) listComments(ctx context.Context, posts []domain.BlogPost) ([]domain.BlogComment, error) {
	args := make([]any, 0, len(posts))
	for _, p := range posts {
		args = append(args, p.ID)
	}

	query := `select c.id, c.post_id, c.content, c.user_id, u.name, c.created_at
	from blog_comments c
	join users u on u.id = c.user_id
	where c.post_id in (?` + strings.Repeat(", ?", len(posts)-1) + `)
	order by c.created_at, c.id`

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("execute comments query: %w", err)
	}
	defer d.closeRows(ctx, rows, "listComments")

	var comments []domain.BlogComment
	for rows.Next() {
		var c domain.BlogComment

		err = rows.Scan(&c.ID, &c.PostID, &c.Content, &c.Author.UserID, &c.Author.Name, &c.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan comment row: %w", err)
		}

		comments = append(comments, c)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate comment rows: %w", err)
	}

	return comments, nil
}

// DeletePost removes a post and, through cascades, its likes and comments.
// Only the author may delete it.
func (d *Database) DeletePost(ctx context.Context, userID string, postID string) error {
	return d.inTx(ctx, "DeletePost", func(tx *sql.Tx) error {
		if err := requireOwner(ctx, tx, "select user_id from blog_posts where id = ?", postID, userID); err != nil {
			return fmt.Errorf("delete post (id = %s): %w", postID, err)
		}

		if _, err := tx.ExecContext(ctx, "delete from blog_posts where id = ?", postID); err != nil {
			return fmt.Errorf("delete post: %w", err)
		}

		return nil
	})
}

// ToggleLike flips the user's like on a post and returns the new like count
// and state.
func (d *Database) ToggleLike(ctx context.Context, userID string, postID string) (int, bool, error) {
	var (
		likes int
		liked bool
	)

	err := d.inTx(ctx, "ToggleLike", func(tx *sql.Tx) error {
		if err := requireRow(ctx, tx, "select 1 from blog_posts where id = ?", postID); err != nil {
			return fmt.Errorf("toggle like (post = %s): %w", postID, err)
		}

		res, err := tx.ExecContext(ctx, "delete from blog_likes where post_id = ? and user_id = ?", postID, userID)
		if err != nil {
			return fmt.Errorf("delete like: %w", err)
		}

		removed, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}

		if removed == 0 {
			_, err = tx.ExecContext(ctx, "insert into blog_likes (post_id, user_id, created_at) values (?, ?, ?)",
				postID, userID, time.Now().UTC())
			if err != nil {
				return fmt.Errorf("insert like: %w", err)
			}

			liked = true
		}

		if err = tx.QueryRowContext(ctx, "select count(*) from blog_likes where post_id = ?", postID).
			Scan(&likes); err != nil {
			return fmt.Errorf("count likes: %w", err)
		}

		return nil
	})
	if err != nil {
		return 0, false, err
	}

	return likes, liked, nil
}

func (d *Database) AddComment(ctx context.Context, comment *domain.BlogComment) error {
	comment.CreatedAt = time.Now().UTC()

	return d.inTx(ctx, "AddComment", func(tx *sql.Tx) error {
		if err := requireRow(ctx, tx, "select 1 from blog_posts where id = ?", comment.PostID); err != nil {
			return fmt.Errorf("add comment (post = %s): %w", comment.PostID, err)
		}

		query := `insert into blog_comments (id, post_id, user_id, content, created_at)
		values (?, ?, ?, ?, ?)`

		_, err := tx.ExecContext(ctx, query,
			comment.ID, comment.PostID, comment.Author.UserID, comment.Content, comment.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert comment: %w", err)
		}

		return nil
	})
}

// DeleteComment removes a comment of postID. Only its author may delete it.
func (d *Database) DeleteComment(ctx context.Context, userID string, postID string, commentID string) error {
	return d.inTx(ctx, "DeleteComment", func(tx *sql.Tx) error {
		if err := requireRow(ctx, tx, "select 1 from blog_posts where id = ?", postID); err != nil {
			return fmt.Errorf("delete comment (post = %s): %w", postID, err)
		}

		query := "select user_id from blog_comments where id = ? and post_id = ?"
		if err := requireOwner(ctx, tx, query, commentID, userID, postID); err != nil {
			return fmt.Errorf("delete comment (id = %s): %w", commentID, err)
		}

		if _, err := tx.ExecContext(ctx, "delete from blog_comments where id = ?", commentID); err != nil {
			return fmt.Errorf("delete comment: %w", err)
		}

		return nil
	})
}

func requireRow(ctx context.Context, tx *sql.Tx, query string, args ...any) error {
	var one int

	if err := tx.QueryRowContext(ctx, query, args...).Scan(&one); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrNotFound
		}

		return fmt.Errorf("scan row: %w", err)
	}

	return nil
}

// requireOwner looks up the owner of the row selected by query with id and
// extra as arguments, and checks it is userID.
func requireOwner(ctx context.Context, tx *sql.Tx, query string, id string, userID string, extra ...any) error {
	var owner string

	args := append([]any{id}, extra...)
	if err := tx.QueryRowContext(ctx, query, args...).Scan(&owner); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrNotFound
		}

		return fmt.Errorf("scan row: %w", err)
	}

	if owner != userID {
		return domain.ErrForbidden
	}

	return nil
}

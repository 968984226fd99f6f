package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"recursos/models"

	sqlbuilder "github.com/huandu/go-sqlbuilder"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
)

// Writer keeps the content store in sync with the CMS
type Writer struct {
	db *sql.DB
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func NewWriter(database string) (*Writer, error) {
	// SQLite only supports one writer at a time
	db, err := connection(database, 1)
	if err != nil {
		return nil, err
	}
	return &Writer{db: db}, nil
}

func (writer *Writer) Close() error {
	return writer.db.Close()
}

func (writer *Writer) UpsertTopic(ctx context.Context, topic models.Topic) error {
	return upsertTopic(ctx, writer.db, topic)
}

// DeleteTopic removes the theme and detaches the posts filed under it
func (writer *Writer) DeleteTopic(ctx context.Context, id string) error {
	return writer.inTx(ctx, func(tx *sql.Tx) error {
		ub := sqlbuilder.SQLite.NewUpdateBuilder()
		ub.Update("posts").Set(ub.Assign("theme_id", nil)).Where(ub.Equal("theme_id", id))
		if err := exec(ctx, tx, ub); err != nil {
			return err
		}
		return deleteByID(ctx, tx, "themes", "id", id)
	})
}

func (writer *Writer) UpsertAuthor(ctx context.Context, author models.AuthorRef) error {
	return upsertAuthor(ctx, writer.db, author)
}

func (writer *Writer) DeleteAuthor(ctx context.Context, id string) error {
	return writer.inTx(ctx, func(tx *sql.Tx) error {
		if err := deleteByID(ctx, tx, "post_authors", "author_id", id); err != nil {
			return err
		}
		return deleteByID(ctx, tx, "authors", "id", id)
	})
}

// UpsertPost writes the post along with its theme and authors
func (writer *Writer) UpsertPost(ctx context.Context, post models.Post) error {
	log.WithFields(log.Fields{
		"id":   post.ID,
		"slug": post.Slug,
	}).Info("Writing post")

	return writer.inTx(ctx, func(tx *sql.Tx) error {
		return upsertPost(ctx, tx, post)
	})
}

func (writer *Writer) DeletePost(ctx context.Context, id string) error {
	log.WithField("id", id).Info("Deleting post")
	return deleteByID(ctx, writer.db, "posts", "id", id)
}

// ReplaceAll swaps the whole content store for the given posts and topics
func (writer *Writer) ReplaceAll(ctx context.Context, posts []models.Post, topics []models.Topic) error {
	return writer.inTx(ctx, func(tx *sql.Tx) error {
		for _, table := range []string{"post_authors", "posts", "authors", "themes"} {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
				return fmt.Errorf("clear %s: %w", table, err)
			}
		}
		for _, topic := range topics {
			if err := upsertTopic(ctx, tx, topic); err != nil {
				return err
			}
		}
		for _, post := range posts {
			if err := upsertPost(ctx, tx, post); err != nil {
				return err
			}
		}
		return nil
	})
}

func (writer *Writer) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	tx, err := writer.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func exec(ctx context.Context, db execer, builder sqlbuilder.Builder) error {
	query, args := builder.BuildWithFlavor(sqlbuilder.SQLite)
	if _, err := db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("exec error: %w", err)
	}
	return nil
}

func deleteByID(ctx context.Context, db execer, table, column, id string) error {
	del := sqlbuilder.SQLite.NewDeleteBuilder()
	del.DeleteFrom(table).Where(del.Equal(column, id))
	return exec(ctx, db, del)
}

// Slugs are unique, so a row holding the slug under another id is stale
func dropStaleSlug(ctx context.Context, db execer, table, id, slug string) error {
	del := sqlbuilder.SQLite.NewDeleteBuilder()
	del.DeleteFrom(table).Where(del.Equal("slug", slug), del.NotEqual("id", id))
	return exec(ctx, db, del)
}

func upsertTopic(ctx context.Context, db execer, topic models.Topic) error {
	if err := dropStaleSlug(ctx, db, "themes", topic.ID, topic.Slug); err != nil {
		return err
	}
	return exec(ctx, db, sqlbuilder.Buildf(
		`INSERT INTO themes (id, slug, title) VALUES (%v, %v, %v)
		ON CONFLICT (id) DO UPDATE SET slug = excluded.slug, title = excluded.title`,
		topic.ID, topic.Slug, topic.Title,
	))
}

func upsertAuthor(ctx context.Context, db execer, author models.AuthorRef) error {
	if err := dropStaleSlug(ctx, db, "authors", author.ID, author.Slug); err != nil {
		return err
	}
	return exec(ctx, db, sqlbuilder.Buildf(
		`INSERT INTO authors (id, slug, name) VALUES (%v, %v, %v)
		ON CONFLICT (id) DO UPDATE SET slug = excluded.slug, name = excluded.name`,
		author.ID, author.Slug, author.Name,
	))
}

func upsertPost(ctx context.Context, db execer, post models.Post) error {
	var themeID interface{}
	if post.PrimaryTheme != nil {
		theme := post.PrimaryTheme
		if err := upsertTopic(ctx, db, models.Topic{ID: theme.ID, Slug: theme.Slug, Title: theme.Title}); err != nil {
			return err
		}
		themeID = theme.ID
	}

	if err := dropStaleSlug(ctx, db, "posts", post.ID, post.Slug); err != nil {
		return err
	}
	if err := exec(ctx, db, sqlbuilder.Buildf(
		`INSERT INTO posts (id, slug, title, excerpt, format, stage, published_at, theme_id)
		VALUES (%v, %v, %v, %v, %v, %v, %v, %v)
		ON CONFLICT (id) DO UPDATE SET
			slug = excluded.slug,
			title = excluded.title,
			excerpt = excluded.excerpt,
			format = excluded.format,
			stage = excluded.stage,
			published_at = excluded.published_at,
			theme_id = excluded.theme_id`,
		post.ID, post.Slug, post.Title, post.Excerpt, string(post.Format), string(post.Stage), post.PublishedAt.Unix(), themeID,
	)); err != nil {
		return err
	}

	if err := deleteByID(ctx, db, "post_authors", "post_id", post.ID); err != nil {
		return err
	}
	if len(post.Authors) == 0 {
		return nil
	}

	ib := sqlbuilder.SQLite.NewInsertBuilder()
	ib.InsertInto("post_authors").Cols("post_id", "author_id", "position")
	authors := lo.UniqBy(post.Authors, func(a models.AuthorRef) string { return a.ID })
	for i, author := range authors {
		if err := upsertAuthor(ctx, db, author); err != nil {
			return err
		}
		ib.Values(post.ID, author.ID, i)
	}
	return exec(ctx, db, ib)
}

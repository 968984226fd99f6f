package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sqlbuilder "github.com/huandu/go-sqlbuilder"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
)

// Page is a cached response. Key is the full request URI, Path the route
// path without query string.
type Page struct {
	Key         string
	Path        string
	ContentType string
	Body        []byte
	Tags        []string
	CreatedAt   time.Time
	ExpiresAt   time.Time
}

// Pages is a tagged page cache stored next to the content
type Pages struct {
	db  *sql.DB
	now func() time.Time
}

func NewPages(database string) (*Pages, error) {
	db, err := connection(database, 1)
	if err != nil {
		return nil, err
	}
	return &Pages{db: db, now: time.Now}, nil
}

func (pages *Pages) Close() error {
	return pages.db.Close()
}

// Get returns the live page stored under key, or nil
func (pages *Pages) Get(ctx context.Context, key string) (*Page, error) {
	sb := sqlbuilder.SQLite.NewSelectBuilder()
	sb.Select("key", "path", "content_type", "body", "created_at", "expires_at").From("pages")
	sb.Where(sb.Equal("key", key), sb.GreaterThan("expires_at", pages.now().Unix()))
	query, args := sb.Build()

	var page Page
	var createdAt, expiresAt int64
	err := pages.db.QueryRowContext(ctx, query, args...).Scan(
		&page.Key, &page.Path, &page.ContentType, &page.Body, &createdAt, &expiresAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query error: %w", err)
	}
	page.CreatedAt = time.Unix(createdAt, 0)
	page.ExpiresAt = time.Unix(expiresAt, 0)
	return &page, nil
}

// Put stores the page for ttl, replacing any page under the same key
func (pages *Pages) Put(ctx context.Context, page Page, ttl time.Duration) error {
	now := pages.now()

	tx, err := pages.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if err := deleteByID(ctx, tx, "page_tags", "key", page.Key); err != nil {
		return err
	}
	if err := deleteByID(ctx, tx, "pages", "key", page.Key); err != nil {
		return err
	}

	ib := sqlbuilder.SQLite.NewInsertBuilder()
	ib.InsertInto("pages").Cols("key", "path", "content_type", "body", "created_at", "expires_at").
		Values(page.Key, page.Path, page.ContentType, page.Body, now.Unix(), now.Add(ttl).Unix())
	if err := exec(ctx, tx, ib); err != nil {
		return err
	}

	if tags := lo.Uniq(page.Tags); len(tags) > 0 {
		ib := sqlbuilder.SQLite.NewInsertBuilder()
		ib.InsertInto("page_tags").Cols("key", "tag")
		for _, tag := range tags {
			ib.Values(page.Key, tag)
		}
		if err := exec(ctx, tx, ib); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// InvalidateTag drops every page carrying the tag
func (pages *Pages) InvalidateTag(ctx context.Context, tag string) error {
	log.WithField("tag", tag).Info("Invalidating tag")
	return pages.invalidate(ctx, sqlbuilder.Buildf(
		"DELETE FROM pages WHERE key IN (SELECT key FROM page_tags WHERE tag = %v)", tag,
	))
}

// InvalidatePath drops every page rendered for the path, whatever its query string
func (pages *Pages) InvalidatePath(ctx context.Context, path string) error {
	log.WithField("path", path).Info("Invalidating path")
	del := sqlbuilder.SQLite.NewDeleteBuilder()
	del.DeleteFrom("pages").Where(del.Equal("path", path))
	return pages.invalidate(ctx, del)
}

// Tidy removes expired pages and returns how many were dropped
func (pages *Pages) Tidy(ctx context.Context) (int64, error) {
	del := sqlbuilder.SQLite.NewDeleteBuilder()
	del.DeleteFrom("pages").Where(del.LessEqualThan("expires_at", pages.now().Unix()))
	query, args := del.Build()

	log.WithFields(log.Fields{
		"sql":  query,
		"args": args,
	}).Info("Tidying page cache")

	res, err := pages.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("tidy error: %w", err)
	}
	if err := dropOrphanTags(ctx, pages.db); err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// RunTidy tidies the cache now and then on every tick until ctx is done.
// A non-positive interval tidies once.
func (pages *Pages) RunTidy(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		log.WithField("interval", interval).Warn("Page cache tidy interval is not positive, tidying once")
		if _, err := pages.Tidy(ctx); err != nil {
			log.Error("Error tidying page cache: ", err)
		}
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if n, err := pages.Tidy(ctx); err != nil {
			log.Error("Error tidying page cache: ", err)
		} else if n > 0 {
			log.WithField("removed", n).Info("Tidied page cache")
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (pages *Pages) invalidate(ctx context.Context, del sqlbuilder.Builder) error {
	tx, err := pages.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if err := exec(ctx, tx, del); err != nil {
		return err
	}
	if err := dropOrphanTags(ctx, tx); err != nil {
		return err
	}
	return tx.Commit()
}

func dropOrphanTags(ctx context.Context, db execer) error {
	_, err := db.ExecContext(ctx, "DELETE FROM page_tags WHERE key NOT IN (SELECT key FROM pages)")
	if err != nil {
		return fmt.Errorf("drop orphan tags: %w", err)
	}
	return nil
}

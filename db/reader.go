package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"recursos/models"

	sqlbuilder "github.com/huandu/go-sqlbuilder"
)

// Reader serves the content store to the HTTP API
type Reader struct {
	db *sql.DB
}

func NewReader(database string) (*Reader, error) {
	db, err := connection(database, 4)
	if err != nil {
		return nil, err
	}
	return &Reader{db: db}, nil
}

func (reader *Reader) Close() error {
	return reader.db.Close()
}

func postSelect() *sqlbuilder.SelectBuilder {
	sb := sqlbuilder.SQLite.NewSelectBuilder()
	sb.Select(
		"posts.id", "posts.slug", "posts.title", "posts.excerpt", "posts.format", "posts.stage", "posts.published_at",
		"themes.id", "themes.slug", "themes.title",
	).From("posts")
	sb.JoinWithOption(sqlbuilder.LeftJoin, "themes", "themes.id = posts.theme_id")
	return sb
}

// GetPosts returns every post, newest first, with theme and authors resolved.
// Posts published at the same instant are ordered by id.
func (reader *Reader) GetPosts(ctx context.Context) ([]models.Post, error) {
	sb := postSelect()
	sb.OrderBy("posts.published_at DESC", "posts.id ASC")
	sql, args := sb.Build()

	posts, err := reader.queryPosts(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	if err := reader.attachAuthors(ctx, posts); err != nil {
		return nil, err
	}
	return posts, nil
}

// GetPost returns the post with the slug, or nil when there is none
func (reader *Reader) GetPost(ctx context.Context, slug string) (*models.Post, error) {
	sb := postSelect()
	sb.Where(sb.Equal("posts.slug", slug))
	sql, args := sb.Build()

	posts, err := reader.queryPosts(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	if len(posts) == 0 {
		return nil, nil
	}
	if err := reader.attachAuthors(ctx, posts); err != nil {
		return nil, err
	}
	return &posts[0], nil
}

// GetTopics returns every theme ordered by title
func (reader *Reader) GetTopics(ctx context.Context) ([]models.Topic, error) {
	sb := sqlbuilder.SQLite.NewSelectBuilder()
	sql, args := sb.Select("id", "slug", "title").From("themes").OrderBy("title").Asc().Build()

	rows, err := reader.db.QueryContext(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query error: %w", err)
	}
	defer rows.Close()

	topics := []models.Topic{}
	for rows.Next() {
		var topic models.Topic
		if err := rows.Scan(&topic.ID, &topic.Slug, &topic.Title); err != nil {
			return nil, fmt.Errorf("scan error: %w", err)
		}
		topics = append(topics, topic)
	}
	return topics, rows.Err()
}

func (reader *Reader) queryPosts(ctx context.Context, query string, args ...interface{}) ([]models.Post, error) {
	rows, err := reader.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query error: %w", err)
	}
	defer rows.Close()

	posts := []models.Post{}
	for rows.Next() {
		var (
			post                           models.Post
			format, stage                  string
			publishedAt                    int64
			themeID, themeSlug, themeTitle sql.NullString
		)
		if err := rows.Scan(
			&post.ID, &post.Slug, &post.Title, &post.Excerpt, &format, &stage, &publishedAt,
			&themeID, &themeSlug, &themeTitle,
		); err != nil {
			return nil, fmt.Errorf("scan error: %w", err)
		}
		post.Format = models.Format(format)
		post.Stage = models.Stage(stage)
		post.PublishedAt = time.Unix(publishedAt, 0).UTC()
		if themeID.Valid {
			post.PrimaryTheme = &models.TopicRef{ID: themeID.String, Slug: themeSlug.String, Title: themeTitle.String}
		}
		posts = append(posts, post)
	}
	return posts, rows.Err()
}

func (reader *Reader) attachAuthors(ctx context.Context, posts []models.Post) error {
	if len(posts) == 0 {
		return nil
	}

	index := make(map[string]int, len(posts))
	ids := make([]interface{}, len(posts))
	for i, post := range posts {
		index[post.ID] = i
		ids[i] = post.ID
	}

	sb := sqlbuilder.SQLite.NewSelectBuilder()
	sb.Select("post_authors.post_id", "authors.id", "authors.slug", "authors.name").From("post_authors")
	sb.Join("authors", "authors.id = post_authors.author_id")
	sb.Where(sb.In("post_authors.post_id", ids...))
	sb.OrderBy("post_authors.post_id", "post_authors.position").Asc()
	sql, args := sb.Build()

	rows, err := reader.db.QueryContext(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("query error: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var postID string
		var author models.AuthorRef
		if err := rows.Scan(&postID, &author.ID, &author.Slug, &author.Name); err != nil {
			return fmt.Errorf("scan error: %w", err)
		}
		if i, ok := index[postID]; ok {
			posts[i].Authors = append(posts[i].Authors, author)
		}
	}
	return rows.Err()
}

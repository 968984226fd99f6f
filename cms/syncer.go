// Package cms keeps the local content store in sync with the headless CMS.
package cms

import (
	"context"
	"fmt"
	"strings"
	"time"

	"recursos/models"

	"github.com/google/uuid"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
)

// Store is the writable side of the content store
type Store interface {
	ReplaceAll(ctx context.Context, posts []models.Post, topics []models.Topic) error
	UpsertPost(ctx context.Context, post models.Post) error
	DeletePost(ctx context.Context, id string) error
	UpsertTopic(ctx context.Context, topic models.Topic) error
	DeleteTopic(ctx context.Context, id string) error
	UpsertAuthor(ctx context.Context, author models.AuthorRef) error
	DeleteAuthor(ctx context.Context, id string) error
}

// Querier runs GROQ queries, *Client in production
type Querier interface {
	Query(ctx context.Context, query string, params map[string]any, out any) error
}

type Syncer struct {
	cms   Querier
	store Store
}

func NewSyncer(cms Querier, store Store) *Syncer {
	return &Syncer{cms: cms, store: store}
}

// SyncAll replaces the content store with every published post and theme
func (s *Syncer) SyncAll(ctx context.Context) error {
	run := uuid.NewString()
	start := time.Now()
	logger := log.WithField("run", run)
	logger.Info("Syncing content from CMS")

	var themes []themeDocument
	if err := s.cms.Query(ctx, allThemesQuery, nil, &themes); err != nil {
		return fmt.Errorf("fetch themes: %w", err)
	}
	var docs []postDocument
	if err := s.cms.Query(ctx, allPostsQuery, nil, &docs); err != nil {
		return fmt.Errorf("fetch posts: %w", err)
	}

	topics := lo.Map(themes, func(d themeDocument, _ int) models.Topic { return d.topic() })
	posts := lo.FilterMap(docs, func(d postDocument, _ int) (models.Post, bool) {
		return d.post(), d.Slug != ""
	})

	if err := s.store.ReplaceAll(ctx, posts, topics); err != nil {
		return fmt.Errorf("store content: %w", err)
	}

	logger.WithFields(log.Fields{
		"posts":    len(posts),
		"topics":   len(topics),
		"duration": time.Since(start),
	}).Info("Synced content from CMS")
	return nil
}

// Refresh reloads the document named by the event. Documents the CMS no
// longer returns are deleted. Draft edits are ignored since drafts are never
// published.
func (s *Syncer) Refresh(ctx context.Context, event models.RevalidationEvent) error {
	if strings.HasPrefix(event.ID, "drafts.") {
		return nil
	}

	switch event.Type {
	case models.DocumentContentUpgrade, models.DocumentInterest, models.DocumentSeries:
		// Not kept in the content store
		return nil
	case models.DocumentPost, models.DocumentTheme, models.DocumentAuthor:
		if event.ID == "" {
			return s.SyncAll(ctx)
		}
	default:
		return s.SyncAll(ctx)
	}

	params := map[string]any{"id": event.ID}
	logger := log.WithFields(log.Fields{"type": event.Type, "id": event.ID})

	switch event.Type {
	case models.DocumentPost:
		var doc *postDocument
		if err := s.cms.Query(ctx, postByIDQuery, params, &doc); err != nil {
			return err
		}
		if doc == nil || doc.Slug == "" {
			logger.Info("Post gone from CMS")
			return s.store.DeletePost(ctx, event.ID)
		}
		return s.store.UpsertPost(ctx, doc.post())

	case models.DocumentTheme:
		var doc *themeDocument
		if err := s.cms.Query(ctx, themeByIDQuery, params, &doc); err != nil {
			return err
		}
		if doc == nil || doc.Slug == "" {
			logger.Info("Theme gone from CMS")
			return s.store.DeleteTopic(ctx, event.ID)
		}
		return s.store.UpsertTopic(ctx, doc.topic())

	default:
		var doc *authorDocument
		if err := s.cms.Query(ctx, authorByIDQuery, params, &doc); err != nil {
			return err
		}
		if doc == nil || doc.Slug == "" {
			logger.Info("Author gone from CMS")
			return s.store.DeleteAuthor(ctx, event.ID)
		}
		return s.store.UpsertAuthor(ctx, doc.author())
	}
}

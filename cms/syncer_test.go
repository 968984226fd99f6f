package cms_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"recursos/cms"
	"recursos/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// cannedCMS answers each query with the result registered for its prefix
type cannedCMS struct {
	results map[string]string
	queries []string
	err     error
}

func (c *cannedCMS) Query(_ context.Context, query string, params map[string]any, out any) error {
	c.queries = append(c.queries, query)
	if c.err != nil {
		return c.err
	}
	for prefix, result := range c.results {
		if strings.HasPrefix(query, prefix) {
			return json.Unmarshal([]byte(result), out)
		}
	}
	return fmt.Errorf("unexpected query %s", query)
}

type memoryStore struct {
	posts   map[string]models.Post
	topics  map[string]models.Topic
	authors map[string]models.AuthorRef
	calls   []string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		posts:   map[string]models.Post{},
		topics:  map[string]models.Topic{},
		authors: map[string]models.AuthorRef{},
	}
}

func (s *memoryStore) ReplaceAll(_ context.Context, posts []models.Post, topics []models.Topic) error {
	s.calls = append(s.calls, "replace")
	s.posts = map[string]models.Post{}
	s.topics = map[string]models.Topic{}
	for _, p := range posts {
		s.posts[p.ID] = p
	}
	for _, t := range topics {
		s.topics[t.ID] = t
	}
	return nil
}

func (s *memoryStore) UpsertPost(_ context.Context, post models.Post) error {
	s.calls = append(s.calls, "upsert post "+post.ID)
	s.posts[post.ID] = post
	return nil
}

func (s *memoryStore) DeletePost(_ context.Context, id string) error {
	s.calls = append(s.calls, "delete post "+id)
	delete(s.posts, id)
	return nil
}

func (s *memoryStore) UpsertTopic(_ context.Context, topic models.Topic) error {
	s.calls = append(s.calls, "upsert topic "+topic.ID)
	s.topics[topic.ID] = topic
	return nil
}

func (s *memoryStore) DeleteTopic(_ context.Context, id string) error {
	s.calls = append(s.calls, "delete topic "+id)
	delete(s.topics, id)
	return nil
}

func (s *memoryStore) UpsertAuthor(_ context.Context, author models.AuthorRef) error {
	s.calls = append(s.calls, "upsert author "+author.ID)
	s.authors[author.ID] = author
	return nil
}

func (s *memoryStore) DeleteAuthor(_ context.Context, id string) error {
	s.calls = append(s.calls, "delete author "+id)
	delete(s.authors, id)
	return nil
}

const postsJSON = `[
	{"_id":"p1","title":"Novo","slug":"novo","excerpt":"Resumo","format":"article","stage":"decisao",
	 "publishedAt":"2026-10-01T12:00:00Z",
	 "primaryTheme":{"_id":"t1","title":"CRM","slug":"crm"},
	 "authors":[{"_id":"a1","name":"Ana","slug":"ana"},null]},
	{"_id":"p2","title":"Sem slug","slug":null,"format":"video"},
	{"_id":"p3","title":"Antigo","slug":"antigo","excerpt":null,"format":"video","primaryTheme":null}
]`

func TestSyncAll(t *testing.T) {
	cmsStub := &cannedCMS{results: map[string]string{
		`*[_type == "theme"`: `[{"_id":"t1","title":"CRM","slug":"crm"},{"_id":"t2","title":"Vendas","slug":"vendas"}]`,
		`*[_type == "post"`:  postsJSON,
	}}
	store := newMemoryStore()

	require.NoError(t, cms.NewSyncer(cmsStub, store).SyncAll(context.Background()))

	assert.Equal(t, []string{"replace"}, store.calls)
	assert.Len(t, store.topics, 2)
	require.Len(t, store.posts, 2, "documents without slug are skipped")

	p1 := store.posts["p1"]
	assert.Equal(t, "Resumo", p1.Excerpt)
	assert.Equal(t, models.FormatArticle, p1.Format)
	assert.Equal(t, models.StageDecisao, p1.Stage)
	assert.True(t, time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC).Equal(p1.PublishedAt))
	assert.Equal(t, &models.TopicRef{ID: "t1", Slug: "crm", Title: "CRM"}, p1.PrimaryTheme)
	assert.Equal(t, []models.AuthorRef{{ID: "a1", Name: "Ana", Slug: "ana"}}, p1.Authors)

	p3 := store.posts["p3"]
	assert.Empty(t, p3.Excerpt)
	assert.Nil(t, p3.PrimaryTheme)
}

func TestSyncAllFailureLeavesStoreUntouched(t *testing.T) {
	store := newMemoryStore()
	err := cms.NewSyncer(&cannedCMS{err: errors.New("down")}, store).SyncAll(context.Background())

	assert.Error(t, err)
	assert.Empty(t, store.calls)
}

func TestRefresh(t *testing.T) {
	tests := []struct {
		name     string
		event    models.RevalidationEvent
		results  map[string]string
		expected []string
	}{
		{
			name:     "post updated",
			event:    models.RevalidationEvent{Type: models.DocumentPost, ID: "p1"},
			results:  map[string]string{`*[_type == "post" && _id == $id]`: `{"_id":"p1","title":"T","slug":"t","format":"guide"}`},
			expected: []string{"upsert post p1"},
		},
		{
			name:     "post deleted",
			event:    models.RevalidationEvent{Type: models.DocumentPost, ID: "p1"},
			results:  map[string]string{`*[_type == "post" && _id == $id]`: `null`},
			expected: []string{"delete post p1"},
		},
		{
			name:     "theme updated",
			event:    models.RevalidationEvent{Type: models.DocumentTheme, ID: "t1"},
			results:  map[string]string{`*[_type == "theme" && _id == $id]`: `{"_id":"t1","title":"CRM","slug":"crm"}`},
			expected: []string{"upsert topic t1"},
		},
		{
			name:     "theme deleted",
			event:    models.RevalidationEvent{Type: models.DocumentTheme, ID: "t1"},
			results:  map[string]string{`*[_type == "theme" && _id == $id]`: `null`},
			expected: []string{"delete topic t1"},
		},
		{
			name:     "author updated",
			event:    models.RevalidationEvent{Type: models.DocumentAuthor, ID: "a1"},
			results:  map[string]string{`*[_type == "author" && _id == $id]`: `{"_id":"a1","name":"Ana","slug":"ana"}`},
			expected: []string{"upsert author a1"},
		},
		{
			name:     "draft ignored",
			event:    models.RevalidationEvent{Type: models.DocumentPost, ID: "drafts.p1"},
			expected: nil,
		},
		{
			name:     "series not stored",
			event:    models.RevalidationEvent{Type: models.DocumentSeries, ID: "s1"},
			expected: nil,
		},
		{
			name:  "unknown type resyncs everything",
			event: models.RevalidationEvent{Type: "landingPage", ID: "l1"},
			results: map[string]string{
				`*[_type == "theme"`: `[]`,
				`*[_type == "post"`:  `[]`,
			},
			expected: []string{"replace"},
		},
		{
			name:  "known type without id resyncs everything",
			event: models.RevalidationEvent{Type: models.DocumentPost},
			results: map[string]string{
				`*[_type == "theme"`: `[]`,
				`*[_type == "post"`:  `[]`,
			},
			expected: []string{"replace"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemoryStore()
			syncer := cms.NewSyncer(&cannedCMS{results: tt.results}, store)

			require.NoError(t, syncer.Refresh(context.Background(), tt.event))
			assert.Equal(t, tt.expected, store.calls)
		})
	}
}

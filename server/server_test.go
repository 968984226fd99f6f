package server_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"recursos/blog"
	"recursos/db"
	"recursos/models"
	"recursos/revalidate"
	"recursos/server"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "s3cret"

type fixture struct {
	app    *fiber.App
	writer *db.Writer
}

func setup(t *testing.T) *fixture {
	t.Helper()
	path := filepath.Join(t.TempDir(), "recursos.db")
	require.NoError(t, db.Migrate(path))

	writer, err := db.NewWriter(path)
	require.NoError(t, err)
	reader, err := db.NewReader(path)
	require.NoError(t, err)
	pages, err := db.NewPages(path)
	require.NoError(t, err)
	t.Cleanup(func() {
		writer.Close()
		reader.Close()
		pages.Close()
	})

	now := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	crm := &models.TopicRef{ID: "t1", Slug: "crm", Title: "CRM"}
	sales := &models.TopicRef{ID: "t2", Slug: "sales", Title: "Sales"}
	ana := models.AuthorRef{ID: "a1", Slug: "ana", Name: "Ana"}
	require.NoError(t, writer.ReplaceAll(context.Background(), []models.Post{
		{ID: "p1", Slug: "escolher-crm", Title: "Como escolher um CRM", Format: models.FormatArticle, PublishedAt: now, PrimaryTheme: crm, Authors: []models.AuthorRef{ana}},
		{ID: "p2", Slug: "pipeline", Title: "Pipeline", Format: models.FormatVideo, PublishedAt: now.Add(-time.Hour), PrimaryTheme: sales},
		{ID: "p3", Slug: "checklist", Title: "Checklist", Format: models.FormatChecklist, PublishedAt: now.Add(-2 * time.Hour), PrimaryTheme: crm},
	}, []models.Topic{{ID: "t3", Slug: "marketing", Title: "Marketing"}}))

	app := server.Server(&server.ServerConfig{
		Content:         reader,
		Pages:           pages,
		CacheTTL:        time.Hour,
		Dispatcher:      revalidate.NewDispatcher(secret, pages),
		SignatureHeader: "sanity-webhook-signature",
	})
	return &fixture{app: app, writer: writer}
}

func (f *fixture) get(t *testing.T, target string) (*http.Response, []byte) {
	t.Helper()
	res, err := f.app.Test(httptest.NewRequest(http.MethodGet, target, nil), -1)
	require.NoError(t, err)
	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	return res, body
}

func (f *fixture) webhook(t *testing.T, body, signature string) (*http.Response, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/revalidate", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if signature != "" {
		req.Header.Set("sanity-webhook-signature", signature)
	}
	res, err := f.app.Test(req, -1)
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.NewDecoder(res.Body).Decode(&out))
	return res, out
}

func viewIDs(t *testing.T, body []byte) []string {
	t.Helper()
	var view blog.View
	require.NoError(t, json.Unmarshal(body, &view))
	ids := []string{}
	for _, p := range view.FilteredPosts {
		ids = append(ids, p.ID)
	}
	return ids
}

func TestWebhook(t *testing.T) {
	f := setup(t)

	res, body := f.webhook(t, `{"_type":"post","_id":"p1","slug":{"current":"escolher-crm"}}`, "wrong")
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
	assert.Equal(t, map[string]any{"error": "Invalid signature"}, body)

	res, body = f.webhook(t, `{"_type":"post","_id":"p1"}`, "")
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)

	res, body = f.webhook(t, `{"_type":"post","_id":"p1","slug":{"current":"escolher-crm"}}`, secret)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, true, body["revalidated"])
	assert.Equal(t, "post", body["type"])
	assert.Equal(t, "escolher-crm", body["slug"])
	_, err := time.Parse(time.RFC3339, body["timestamp"].(string))
	assert.NoError(t, err)

	res, body = f.webhook(t, `{"_type":"interest"}`, secret)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.NotContains(t, body, "slug")

	res, body = f.webhook(t, `not json`, secret)
	assert.Equal(t, http.StatusInternalServerError, res.StatusCode)
	assert.Equal(t, map[string]any{"error": "Webhook processing failed"}, body)
}

func TestBlogIsCachedUntilRevalidated(t *testing.T) {
	f := setup(t)

	res, body := f.get(t, "/recursos/blog")
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "MISS", res.Header.Get("X-Cache"))
	assert.Equal(t, []string{"p1", "p2", "p3"}, viewIDs(t, body))

	res, cached := f.get(t, "/recursos/blog")
	assert.Equal(t, "HIT", res.Header.Get("X-Cache"))
	assert.Equal(t, body, cached)
	assert.Contains(t, res.Header.Get("Content-Type"), "application/json")

	// Content changes are not visible until the CMS revalidates
	require.NoError(t, f.writer.DeletePost(context.Background(), "p2"))
	_, cached = f.get(t, "/recursos/blog")
	assert.Equal(t, []string{"p1", "p2", "p3"}, viewIDs(t, cached))

	res, _ = f.webhook(t, `{"_type":"post","_id":"p2","slug":{"current":"pipeline"}}`, secret)
	require.Equal(t, http.StatusOK, res.StatusCode)

	res, body = f.get(t, "/recursos/blog")
	assert.Equal(t, "MISS", res.Header.Get("X-Cache"))
	assert.Equal(t, []string{"p1", "p3"}, viewIDs(t, body))
}

func TestThemeWebhookInvalidatesThemePage(t *testing.T) {
	f := setup(t)

	f.get(t, "/recursos/tema/crm")
	res, _ := f.get(t, "/recursos/tema/crm")
	require.Equal(t, "HIT", res.Header.Get("X-Cache"))

	f.webhook(t, `{"_type":"theme","_id":"t1","slug":{"current":"crm"}}`, secret)

	res, _ = f.get(t, "/recursos/tema/crm")
	assert.Equal(t, "MISS", res.Header.Get("X-Cache"))
}

func TestBlogQueryParameters(t *testing.T) {
	f := setup(t)

	tests := []struct {
		target   string
		expected []string
	}{
		{target: "/recursos/blog?topic=crm", expected: []string{"p1", "p3"}},
		{target: "/recursos/blog?intent=aplicar", expected: []string{"p3"}},
		{target: "/recursos/blog?topic=crm&intent=aprender", expected: []string{"p1"}},
		{target: "/recursos/blog?topic=crm&intent=aprender&q=pipeline", expected: []string{"p2"}},
		{target: "/recursos/blog?q=SALES", expected: []string{"p2"}},
		{target: "/recursos/blog?q=nada", expected: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			res, body := f.get(t, tt.target)
			require.Equal(t, http.StatusOK, res.StatusCode)
			assert.Equal(t, tt.expected, viewIDs(t, body))
		})
	}

	res, _ := f.get(t, "/recursos/blog?intent=comprar")
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
}

func TestBlogViewCounts(t *testing.T) {
	f := setup(t)

	_, body := f.get(t, "/recursos/blog?topic=sales")
	var view blog.View
	require.NoError(t, json.Unmarshal(body, &view))

	counts := map[string]int{}
	for _, tc := range view.TopicsWithCount {
		counts[tc.Slug] = tc.Count
	}
	assert.Equal(t, map[string]int{"crm": 2, "sales": 1, "marketing": 0}, counts)
	assert.Equal(t, map[models.Intent]int{
		models.IntentAprender: 1,
		models.IntentAplicar:  1,
		models.IntentDecidir:  0,
	}, view.IntentCounts)
	require.NotNil(t, view.FeaturedPost)
	assert.Equal(t, "p2", view.FeaturedPost.ID)
	assert.Empty(t, view.RemainingPosts)
}

func TestDetailRoutes(t *testing.T) {
	f := setup(t)

	tests := []struct {
		target string
		status int
	}{
		{target: "/recursos", status: http.StatusOK},
		{target: "/recursos/blog/escolher-crm", status: http.StatusOK},
		{target: "/recursos/blog/nao-existe", status: http.StatusNotFound},
		{target: "/recursos/tema/crm", status: http.StatusOK},
		{target: "/recursos/tema/marketing", status: http.StatusOK},
		{target: "/recursos/tema/nao-existe", status: http.StatusNotFound},
		{target: "/recursos/autores/ana", status: http.StatusOK},
		{target: "/recursos/autores/ninguem", status: http.StatusNotFound},
		{target: "/health", status: http.StatusOK},
		{target: "/metrics", status: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			res, _ := f.get(t, tt.target)
			assert.Equal(t, tt.status, res.StatusCode)
		})
	}

	// Not found responses are never cached
	res, _ := f.get(t, "/recursos/blog/nao-existe")
	assert.Equal(t, "MISS", res.Header.Get("X-Cache"))
}

func TestAuthorPage(t *testing.T) {
	f := setup(t)

	_, body := f.get(t, "/recursos/autores/ana")
	var out struct {
		Author models.AuthorRef `json:"author"`
		Posts  []models.Post    `json:"posts"`
	}
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, "Ana", out.Author.Name)
	require.Len(t, out.Posts, 1)
	assert.Equal(t, "p1", out.Posts[0].ID)
}

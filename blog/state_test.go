package blog_test

import (
	"testing"

	"recursos/blog"
	"recursos/models"

	"github.com/stretchr/testify/assert"
)

func TestWithSearchClearsTopicAndIntent(t *testing.T) {
	state := blog.State{ActiveTopic: "crm", ActiveIntent: models.IntentAplicar}

	next := state.WithSearch("pipeline")

	assert.Equal(t, blog.State{SearchQuery: "pipeline"}, next)
	assert.Equal(t, "crm", state.ActiveTopic, "original state must not change")

	view := blog.DeriveView(fixturePosts(), topics, next)
	assert.Equal(t, []string{"p2"}, ids(view.FilteredPosts))
}

func TestWithBlankSearchKeepsFacets(t *testing.T) {
	state := blog.State{ActiveTopic: "crm", SearchQuery: ""}

	assert.Equal(t, blog.State{ActiveTopic: "crm", SearchQuery: "  "}, state.WithSearch("  "))
}

func TestToggleTopic(t *testing.T) {
	state := blog.State{ActiveIntent: models.IntentAprender, SearchQuery: "crm"}

	selected := state.ToggleTopic("crm")
	assert.Equal(t, blog.State{ActiveTopic: "crm", ActiveIntent: models.IntentAprender}, selected)

	switched := selected.ToggleTopic("sales")
	assert.Equal(t, "sales", switched.ActiveTopic)

	cleared := switched.ToggleTopic("sales")
	assert.Equal(t, blog.State{ActiveIntent: models.IntentAprender}, cleared)
}

func TestToggleIntent(t *testing.T) {
	state := blog.State{ActiveTopic: "crm", SearchQuery: "x"}

	selected := state.ToggleIntent(models.IntentDecidir)
	assert.Equal(t, blog.State{ActiveTopic: "crm", ActiveIntent: models.IntentDecidir}, selected)

	cleared := selected.ToggleIntent(models.IntentDecidir)
	assert.Equal(t, blog.State{ActiveTopic: "crm"}, cleared)
}

func TestEveryIntentHasFormats(t *testing.T) {
	seen := map[models.Format]models.Intent{}
	for _, intent := range models.Intents() {
		formats := intent.Formats()
		assert.NotEmpty(t, formats, "intent %s", intent)
		for _, f := range formats {
			if other, ok := seen[f]; ok {
				t.Errorf("format %s mapped to both %s and %s", f, other, intent)
			}
			seen[f] = intent
		}
	}
	assert.Len(t, seen, 6)
	assert.NotContains(t, seen, models.FormatVideo)
	assert.Nil(t, models.Intent("unknown").Formats())
}

func TestParseIntent(t *testing.T) {
	intent, ok := models.ParseIntent("aplicar")
	assert.True(t, ok)
	assert.Equal(t, models.IntentAplicar, intent)

	_, ok = models.ParseIntent("Aplicar")
	assert.False(t, ok)
}

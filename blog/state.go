package blog

import (
	"strings"

	"recursos/models"
)

// State holds the active facets of the blog listing. Empty strings mean the
// facet is not set. Topic and intent combine; a search query excludes both.
type State struct {
	ActiveTopic  string        `json:"activeTopic,omitempty"`
	ActiveIntent models.Intent `json:"activeIntent,omitempty"`
	SearchQuery  string        `json:"searchQuery,omitempty"`
}

// WithSearch sets the search query. A non-blank query clears the topic and
// the intent in the returned state.
func (s State) WithSearch(query string) State {
	if strings.TrimSpace(query) == "" {
		s.SearchQuery = query
		return s
	}
	return State{SearchQuery: query}
}

// ToggleTopic selects the topic, or clears it when it is already active.
// The search query is always cleared.
func (s State) ToggleTopic(slug string) State {
	if s.ActiveTopic == slug {
		s.ActiveTopic = ""
	} else {
		s.ActiveTopic = slug
	}
	s.SearchQuery = ""
	return s
}

// ToggleIntent selects the intent, or clears it when it is already active.
// The search query is always cleared.
func (s State) ToggleIntent(intent models.Intent) State {
	if s.ActiveIntent == intent {
		s.ActiveIntent = ""
	} else {
		s.ActiveIntent = intent
	}
	s.SearchQuery = ""
	return s
}

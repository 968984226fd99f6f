package blog

import (
	"strings"

	"recursos/models"

	"github.com/samber/lo"
)

// Strategy narrows a list of posts down to the ones it keeps
type Strategy interface {
	// Keep reports whether the post passes the filter
	Keep(post models.Post) bool
}

// IntentFilter keeps posts whose format belongs to the intent
type IntentFilter struct {
	Intent models.Intent
}

func (f *IntentFilter) Keep(post models.Post) bool {
	return lo.Contains(f.Intent.Formats(), post.Format)
}

// TopicFilter keeps posts whose primary theme has the given slug
type TopicFilter struct {
	Slug string
}

func (f *TopicFilter) Keep(post models.Post) bool {
	return post.PrimaryTheme != nil && post.PrimaryTheme.Slug == f.Slug
}

// SearchFilter keeps posts whose title, excerpt or theme title contains the
// query, ignoring case. The query is trimmed, the fields are not.
type SearchFilter struct {
	query string
}

func NewSearchFilter(query string) *SearchFilter {
	return &SearchFilter{query: strings.ToLower(strings.TrimSpace(query))}
}

func (f *SearchFilter) Keep(post models.Post) bool {
	if strings.Contains(strings.ToLower(post.Title), f.query) {
		return true
	}
	if post.Excerpt != "" && strings.Contains(strings.ToLower(post.Excerpt), f.query) {
		return true
	}
	return post.PrimaryTheme != nil && strings.Contains(strings.ToLower(post.PrimaryTheme.Title), f.query)
}

// AuthorFilter keeps posts written by the author with the given slug
type AuthorFilter struct {
	Slug string
}

func (f *AuthorFilter) Keep(post models.Post) bool {
	return lo.ContainsBy(post.Authors, func(a models.AuthorRef) bool {
		return a.Slug == f.Slug
	})
}

var _ Strategy = (*IntentFilter)(nil)
var _ Strategy = (*TopicFilter)(nil)
var _ Strategy = (*SearchFilter)(nil)
var _ Strategy = (*AuthorFilter)(nil)

package blog

import (
	"strings"

	"recursos/models"

	"github.com/samber/lo"
)

// Builder chains filter strategies. Filters run in the order they were added,
// each one narrowing the result of the previous.
type Builder struct {
	filters []Strategy
}

func NewBuilder() *Builder {
	return &Builder{filters: make([]Strategy, 0)}
}

// FromState adds the filters for every active facet: intent, topic, search
func FromState(state State) *Builder {
	b := NewBuilder()
	if state.ActiveIntent != "" {
		b.AddFilter(&IntentFilter{Intent: state.ActiveIntent})
	}
	if state.ActiveTopic != "" {
		b.AddFilter(&TopicFilter{Slug: state.ActiveTopic})
	}
	if strings.TrimSpace(state.SearchQuery) != "" {
		b.AddFilter(NewSearchFilter(state.SearchQuery))
	}
	return b
}

func (b *Builder) AddFilter(filter Strategy) {
	b.filters = append(b.filters, filter)
}

// Apply returns copies of the posts every filter keeps, in input order
func (b *Builder) Apply(posts []models.Post) []models.Post {
	result := lo.Map(posts, func(post models.Post, _ int) models.Post {
		return post.Clone()
	})
	for _, filter := range b.filters {
		result = lo.Filter(result, func(post models.Post, _ int) bool {
			return filter.Keep(post)
		})
	}
	return result
}

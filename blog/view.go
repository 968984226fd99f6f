// Package blog derives the blog listing view from the full post list and
// the active filter facets.
package blog

import (
	"recursos/models"

	"github.com/samber/lo"
)

// TopicCount is a topic together with the number of posts filed under it
type TopicCount struct {
	models.Topic
	Count int `json:"count"`
}

// View is everything the listing renders for one filter state
type View struct {
	State           State                 `json:"state"`
	FilteredPosts   []models.Post         `json:"filteredPosts"`
	FeaturedPost    *models.Post          `json:"featuredPost"`
	RemainingPosts  []models.Post         `json:"remainingPosts"`
	TopicsWithCount []TopicCount          `json:"topicsWithCount"`
	IntentCounts    map[models.Intent]int `json:"intentCounts"`
}

// DeriveView filters posts by the state and splits off the featured post.
// Posts are expected newest first and are never reordered. Counts are always
// taken over the full post list.
func DeriveView(posts []models.Post, topics []models.Topic, state State) View {
	filtered := FromState(state).Apply(posts)

	var featured *models.Post
	remaining := make([]models.Post, 0)
	if len(filtered) > 0 {
		first := filtered[0]
		featured = &first
		remaining = append(remaining, filtered[1:]...)
	}

	return View{
		State:           state,
		FilteredPosts:   filtered,
		FeaturedPost:    featured,
		RemainingPosts:  remaining,
		TopicsWithCount: CountTopics(posts, topics),
		IntentCounts:    CountIntents(posts),
	}
}

// CountTopics counts, for every topic, the posts whose primary theme is it
func CountTopics(posts []models.Post, topics []models.Topic) []TopicCount {
	return lo.Map(topics, func(topic models.Topic, _ int) TopicCount {
		filter := &TopicFilter{Slug: topic.Slug}
		return TopicCount{
			Topic: topic,
			Count: lo.CountBy(posts, filter.Keep),
		}
	})
}

// CountIntents counts the posts matching each intent
func CountIntents(posts []models.Post) map[models.Intent]int {
	counts := make(map[models.Intent]int, len(models.Intents()))
	for _, intent := range models.Intents() {
		filter := &IntentFilter{Intent: intent}
		counts[intent] = lo.CountBy(posts, filter.Keep)
	}
	return counts
}

// PostsByAuthor returns the posts written by the author, in input order
func PostsByAuthor(posts []models.Post, slug string) []models.Post {
	b := NewBuilder()
	b.AddFilter(&AuthorFilter{Slug: slug})
	return b.Apply(posts)
}

package models

import "time"

// Format is the content format of a post
type Format string

const (
	FormatArticle    Format = "article"
	FormatGuide      Format = "guide"
	FormatVideo      Format = "video"
	FormatChecklist  Format = "checklist"
	FormatTemplate   Format = "template"
	FormatCaseStudy  Format = "case-study"
	FormatComparison Format = "comparison"
)

// Stage is the maturity stage of the topic a post talks about. Display only.
type Stage string

const (
	StageDescoberta   Stage = "descoberta"
	StageConsideracao Stage = "consideracao"
	StageDecisao      Stage = "decisao"
)

// Intent groups formats by what the reader wants to do
type Intent string

const (
	IntentAprender Intent = "aprender"
	IntentAplicar  Intent = "aplicar"
	IntentDecidir  Intent = "decidir"
)

// Intents returns every intent in display order
func Intents() []Intent {
	return []Intent{IntentAprender, IntentAplicar, IntentDecidir}
}

// Formats returns the formats a post must have to match the intent.
// Unknown intents match nothing. Videos belong to no intent and only show up
// in unfiltered, topic and search listings.
func (i Intent) Formats() []Format {
	switch i {
	case IntentAprender:
		return []Format{FormatArticle, FormatGuide}
	case IntentAplicar:
		return []Format{FormatChecklist, FormatTemplate}
	case IntentDecidir:
		return []Format{FormatCaseStudy, FormatComparison}
	}
	return nil
}

// ParseIntent returns the intent named s, if there is one
func ParseIntent(s string) (Intent, bool) {
	for _, i := range Intents() {
		if string(i) == s {
			return i, true
		}
	}
	return "", false
}

// TopicRef is the denormalized theme reference carried by a post
type TopicRef struct {
	ID    string `json:"id"`
	Slug  string `json:"slug"`
	Title string `json:"title"`
}

// AuthorRef is the denormalized author reference carried by a post
type AuthorRef struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// Post is the read-only projection of a blog post
type Post struct {
	ID           string      `json:"id"`
	Slug         string      `json:"slug"`
	Title        string      `json:"title"`
	Excerpt      string      `json:"excerpt,omitempty"`
	Format       Format      `json:"format"`
	Stage        Stage       `json:"stage,omitempty"`
	PublishedAt  time.Time   `json:"publishedAt"`
	PrimaryTheme *TopicRef   `json:"primaryTheme,omitempty"`
	Authors      []AuthorRef `json:"authors,omitempty"`
}

// Clone returns a copy of the post that shares no memory with it
func (p Post) Clone() Post {
	if p.PrimaryTheme != nil {
		theme := *p.PrimaryTheme
		p.PrimaryTheme = &theme
	}
	if p.Authors != nil {
		p.Authors = append([]AuthorRef(nil), p.Authors...)
	}
	return p
}

// Topic is a blog theme
type Topic struct {
	ID    string `json:"id"`
	Slug  string `json:"slug"`
	Title string `json:"title"`
}

// DocumentType is the CMS document type carried by a revalidation event
type DocumentType string

const (
	DocumentPost           DocumentType = "post"
	DocumentContentUpgrade DocumentType = "contentUpgrade"
	DocumentTheme          DocumentType = "theme"
	DocumentInterest       DocumentType = "interest"
	DocumentAuthor         DocumentType = "author"
	DocumentSeries         DocumentType = "series"
)

// Slug mirrors the CMS slug object
type Slug struct {
	Current string `json:"current"`
}

// RevalidationEvent is the body the CMS posts to the revalidation webhook
type RevalidationEvent struct {
	Type DocumentType `json:"_type"`
	ID   string       `json:"_id"`
	Slug *Slug        `json:"slug,omitempty"`
}

// SlugValue returns the current slug, or "" when the event carries none
func (e RevalidationEvent) SlugValue() string {
	if e.Slug == nil {
		return ""
	}
	return e.Slug.Current
}

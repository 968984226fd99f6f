package cms

import (
	"time"

	"recursos/models"
)

const postProjection = `{
	_id,
	title,
	"slug": slug.current,
	excerpt,
	format,
	stage,
	publishedAt,
	"primaryTheme": primaryTheme->{ _id, title, "slug": slug.current },
	"authors": authors[]->{ _id, name, "slug": slug.current }
}`

const (
	allPostsQuery   = `*[_type == "post" && defined(slug.current) && !(_id in path("drafts.**"))] | order(publishedAt desc) ` + postProjection
	postByIDQuery   = `*[_type == "post" && _id == $id][0] ` + postProjection
	allThemesQuery  = `*[_type == "theme" && defined(slug.current) && !(_id in path("drafts.**"))] | order(title asc) { _id, title, "slug": slug.current }`
	themeByIDQuery  = `*[_type == "theme" && _id == $id][0] { _id, title, "slug": slug.current }`
	authorByIDQuery = `*[_type == "author" && _id == $id][0] { _id, name, "slug": slug.current }`
)

type themeDocument struct {
	ID    string `json:"_id"`
	Title string `json:"title"`
	Slug  string `json:"slug"`
}

type authorDocument struct {
	ID   string `json:"_id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

type postDocument struct {
	ID           string            `json:"_id"`
	Title        string            `json:"title"`
	Slug         string            `json:"slug"`
	Excerpt      *string           `json:"excerpt"`
	Format       string            `json:"format"`
	Stage        string            `json:"stage"`
	PublishedAt  *time.Time        `json:"publishedAt"`
	PrimaryTheme *themeDocument    `json:"primaryTheme"`
	Authors      []*authorDocument `json:"authors"`
}

func (d themeDocument) topic() models.Topic {
	return models.Topic{ID: d.ID, Slug: d.Slug, Title: d.Title}
}

func (d authorDocument) author() models.AuthorRef {
	return models.AuthorRef{ID: d.ID, Name: d.Name, Slug: d.Slug}
}

// post converts the document. Dangling references come back as null and are dropped.
func (d postDocument) post() models.Post {
	post := models.Post{
		ID:     d.ID,
		Slug:   d.Slug,
		Title:  d.Title,
		Format: models.Format(d.Format),
		Stage:  models.Stage(d.Stage),
	}
	if d.Excerpt != nil {
		post.Excerpt = *d.Excerpt
	}
	if d.PublishedAt != nil {
		post.PublishedAt = d.PublishedAt.UTC()
	}
	if d.PrimaryTheme != nil && d.PrimaryTheme.Slug != "" {
		post.PrimaryTheme = &models.TopicRef{ID: d.PrimaryTheme.ID, Slug: d.PrimaryTheme.Slug, Title: d.PrimaryTheme.Title}
	}
	for _, a := range d.Authors {
		if a != nil && a.ID != "" {
			post.Authors = append(post.Authors, a.author())
		}
	}
	return post
}

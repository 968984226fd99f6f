package revalidate

import "recursos/models"

// Cache tags shared by the page cache and the dispatcher
const (
	TagPost     = "post"
	TagTheme    = "theme"
	TagInterest = "interest"
	TagAuthor   = "author"
	TagSeries   = "series"
)

// Route prefixes invalidated by path
const (
	PathResources = "/recursos"
	PathBlog      = "/recursos/blog"
	PathTheme     = "/recursos/tema"
	PathInterest  = "/recursos/interesse"
	PathAuthor    = "/recursos/autores"
	PathSeries    = "/recursos/series"
)

// OpKind is the kind of a cache invalidation
type OpKind string

const (
	OpTag  OpKind = "tag"
	OpPath OpKind = "path"
)

// Operation is a single cache invalidation
type Operation struct {
	Kind   OpKind `json:"kind"`
	Target string `json:"target"`
}

func Tag(tag string) Operation {
	return Operation{Kind: OpTag, Target: tag}
}

func Path(path string) Operation {
	return Operation{Kind: OpPath, Target: path}
}

// TypeLabel names the document type for metrics. Types outside the known set
// share the "other" label so request bodies cannot grow the series count.
func TypeLabel(docType models.DocumentType) string {
	switch docType {
	case models.DocumentPost, models.DocumentContentUpgrade, models.DocumentTheme,
		models.DocumentInterest, models.DocumentAuthor, models.DocumentSeries:
		return string(docType)
	}
	return "other"
}

// Plan returns the invalidations for a changed document, in the order they
// must be issued. Slug-specific paths are skipped when slug is empty.
// Unknown document types invalidate the post, theme and interest tags.
func Plan(docType models.DocumentType, slug string) []Operation {
	ops := []Operation{}
	withSlug := func(prefix string) {
		if slug != "" {
			ops = append(ops, Path(prefix+"/"+slug))
		}
	}

	switch docType {
	case models.DocumentPost:
		ops = append(ops, Tag(TagPost))
		withSlug(PathBlog)
		ops = append(ops, Path(PathBlog), Path(PathResources))
	case models.DocumentContentUpgrade:
		ops = append(ops, Tag(TagPost))
	case models.DocumentTheme:
		ops = append(ops, Tag(TagTheme), Path(PathBlog))
		withSlug(PathTheme)
	case models.DocumentInterest:
		ops = append(ops, Tag(TagInterest))
		withSlug(PathInterest)
	case models.DocumentAuthor:
		ops = append(ops, Tag(TagAuthor))
		withSlug(PathAuthor)
	case models.DocumentSeries:
		ops = append(ops, Tag(TagSeries))
		withSlug(PathSeries)
	default:
		ops = append(ops, Tag(TagPost), Tag(TagTheme), Tag(TagInterest))
	}

	return ops
}

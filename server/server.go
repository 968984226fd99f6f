package server

import (
	"context"
	"strings"
	"time"

	"recursos/blog"
	"recursos/models"
	"recursos/revalidate"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
)

// Content is the read side of the content store
type Content interface {
	GetPosts(ctx context.Context) ([]models.Post, error)
	GetTopics(ctx context.Context) ([]models.Topic, error)
	GetPost(ctx context.Context, slug string) (*models.Post, error)
}

type ServerConfig struct {
	// The reader to use for reading posts and topics
	Content Content

	// Rendered responses are cached here; nil disables caching
	Pages PageStore

	// How long a cached response lives
	CacheTTL time.Duration

	// Handles the CMS revalidation webhook
	Dispatcher *revalidate.Dispatcher

	// Header carrying the webhook shared secret
	SignatureHeader string

	// Comma separated CORS origins, empty disables CORS
	AllowOrigins string
}

// How many posts the overview lists after the featured one
const overviewSize = 6

// Returns a fiber.App instance to be used as the HTTP server for the resources section
func Server(config *ServerConfig) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: errorHandler,
	})

	// Middleware to track the latency of each request
	app.Use(func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		log.WithFields(log.Fields{
			"method":  c.Method(),
			"route":   c.Route().Path,
			"status":  c.Response().StatusCode(),
			"latency": time.Since(start),
		}).Info("Request")
		return err
	})

	app.Use(requestid.New(requestid.ConfigDefault))
	app.Use(compress.New())

	if config.AllowOrigins != "" {
		app.Use(cors.New(cors.Config{
			AllowOrigins: config.AllowOrigins,
			AllowHeaders: "Cache-Control",
		}))
	}

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	app.Post("/api/revalidate", func(c *fiber.Ctx) error {
		res := config.Dispatcher.Handle(c.UserContext(), c.Body(), c.Get(config.SignatureHeader))
		return c.Status(res.Status).JSON(res.Body)
	})

	if config.Pages != nil {
		app.Use(revalidate.PathResources, pageCache(config.Pages, config.CacheTTL))
	}

	h := &handlers{content: config.Content}
	app.Get(revalidate.PathResources, h.overview)
	app.Get(revalidate.PathBlog, h.blog)
	app.Get(revalidate.PathBlog+"/:slug", h.post)
	app.Get(revalidate.PathTheme+"/:slug", h.theme)
	app.Get(revalidate.PathAuthor+"/:slug", h.author)

	return app
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal server error"
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	} else {
		log.WithFields(log.Fields{
			"path":  c.Path(),
			"error": err,
		}).Error("Request failed")
	}
	return c.Status(code).JSON(fiber.Map{"error": message})
}

type handlers struct {
	content Content
}

func (h *handlers) load(c *fiber.Ctx) ([]models.Post, []models.Topic, error) {
	posts, err := h.content.GetPosts(c.UserContext())
	if err != nil {
		return nil, nil, err
	}
	topics, err := h.content.GetTopics(c.UserContext())
	if err != nil {
		return nil, nil, err
	}
	return posts, topics, nil
}

func (h *handlers) overview(c *fiber.Ctx) error {
	posts, topics, err := h.load(c)
	if err != nil {
		return err
	}
	tagPage(c, revalidate.TagPost, revalidate.TagTheme)

	view := blog.DeriveView(posts, topics, blog.State{})
	if len(view.RemainingPosts) > overviewSize {
		view.RemainingPosts = view.RemainingPosts[:overviewSize]
	}
	return c.JSON(fiber.Map{
		"featuredPost":    view.FeaturedPost,
		"latestPosts":     view.RemainingPosts,
		"topicsWithCount": view.TopicsWithCount,
		"intentCounts":    view.IntentCounts,
	})
}

// stateFromQuery applies the query parameters as the listing's transitions
// would: topic, then intent, then search. A search therefore wins.
func stateFromQuery(c *fiber.Ctx) (blog.State, error) {
	state := blog.State{}
	if topic := c.Query("topic"); topic != "" {
		state = state.ToggleTopic(topic)
	}
	if raw := c.Query("intent"); raw != "" {
		intent, ok := models.ParseIntent(raw)
		if !ok {
			return state, fiber.NewError(fiber.StatusBadRequest, "Unknown intent")
		}
		state = state.ToggleIntent(intent)
	}
	if q := c.Query("q"); strings.TrimSpace(q) != "" {
		state = state.WithSearch(q)
	}
	return state, nil
}

func (h *handlers) blog(c *fiber.Ctx) error {
	state, err := stateFromQuery(c)
	if err != nil {
		return err
	}
	posts, topics, err := h.load(c)
	if err != nil {
		return err
	}
	tagPage(c, revalidate.TagPost, revalidate.TagTheme)

	log.WithFields(log.Fields{
		"topic":  state.ActiveTopic,
		"intent": state.ActiveIntent,
		"q":      state.SearchQuery,
	}).Debug("Derive blog view")

	return c.JSON(blog.DeriveView(posts, topics, state))
}

func (h *handlers) post(c *fiber.Ctx) error {
	post, err := h.content.GetPost(c.UserContext(), c.Params("slug"))
	if err != nil {
		return err
	}
	if post == nil {
		return fiber.NewError(fiber.StatusNotFound, "Post not found")
	}
	tagPage(c, revalidate.TagPost)
	return c.JSON(post)
}

func (h *handlers) theme(c *fiber.Ctx) error {
	slug := c.Params("slug")
	posts, topics, err := h.load(c)
	if err != nil {
		return err
	}

	view := blog.DeriveView(posts, topics, blog.State{}.ToggleTopic(slug))
	topic, ok := lo.Find(view.TopicsWithCount, func(t blog.TopicCount) bool { return t.Slug == slug })
	if !ok {
		return fiber.NewError(fiber.StatusNotFound, "Topic not found")
	}
	tagPage(c, revalidate.TagTheme, revalidate.TagPost)

	return c.JSON(fiber.Map{
		"topic": topic,
		"posts": view.FilteredPosts,
	})
}

func (h *handlers) author(c *fiber.Ctx) error {
	slug := c.Params("slug")
	posts, err := h.content.GetPosts(c.UserContext())
	if err != nil {
		return err
	}

	authored := blog.PostsByAuthor(posts, slug)
	if len(authored) == 0 {
		return fiber.NewError(fiber.StatusNotFound, "Author not found")
	}
	tagPage(c, revalidate.TagAuthor, revalidate.TagPost)

	author, _ := lo.Find(authored[0].Authors, func(a models.AuthorRef) bool { return a.Slug == slug })
	return c.JSON(fiber.Map{
		"author": author,
		"posts":  authored,
	})
}

package server

import (
	"context"
	"time"

	"recursos/db"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"
)

var pageCacheRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "recursos_page_cache_requests_total",
	Help: "Page cache lookups by result",
}, []string{"result"})

const tagsLocal = "cacheTags"

// PageStore is the tagged page cache
type PageStore interface {
	Get(ctx context.Context, key string) (*db.Page, error)
	Put(ctx context.Context, page db.Page, ttl time.Duration) error
}

// tagPage marks the response as cacheable under the tags. Responses that
// were never tagged are not cached.
func tagPage(c *fiber.Ctx, tags ...string) {
	c.Locals(tagsLocal, tags)
}

// pageCache serves GET requests from the page store and stores successful
// tagged responses, keyed by the full request URI.
func pageCache(store PageStore, ttl time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Method() != fiber.MethodGet {
			return c.Next()
		}

		key := c.OriginalURL()
		page, err := store.Get(c.UserContext(), key)
		if err != nil {
			log.WithFields(log.Fields{
				"key":   key,
				"error": err,
			}).Warn("Page cache lookup failed")
		}
		if page != nil {
			pageCacheRequests.WithLabelValues("hit").Inc()
			c.Set("X-Cache", "HIT")
			c.Set(fiber.HeaderContentType, page.ContentType)
			return c.Send(page.Body)
		}

		pageCacheRequests.WithLabelValues("miss").Inc()
		c.Set("X-Cache", "MISS")
		if err := c.Next(); err != nil {
			return err
		}

		tags, _ := c.Locals(tagsLocal).([]string)
		if c.Response().StatusCode() != fiber.StatusOK || len(tags) == 0 {
			return nil
		}

		err = store.Put(c.UserContext(), db.Page{
			Key:         key,
			Path:        c.Path(),
			ContentType: string(c.Response().Header.ContentType()),
			Body:        append([]byte(nil), c.Response().Body()...),
			Tags:        tags,
		}, ttl)
		if err != nil {
			log.WithFields(log.Fields{
				"key":   key,
				"error": err,
			}).Warn("Page cache store failed")
		}
		return nil
	}
}

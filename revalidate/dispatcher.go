// Package revalidate turns CMS change notifications into page cache
// invalidations.
package revalidate

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"recursos/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"
)

var (
	webhookRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "recursos_webhook_requests_total",
		Help: "Revalidation webhook requests by document type and response status",
	}, []string{"type", "status"})

	invalidations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "recursos_invalidations_total",
		Help: "Cache invalidations issued by kind",
	}, []string{"kind"})
)

const (
	errInvalidSignature = "Invalid signature"
	errProcessing       = "Webhook processing failed"
)

// Cache is the page cache the dispatcher invalidates
type Cache interface {
	// InvalidateTag expires every cached page carrying the tag immediately
	InvalidateTag(ctx context.Context, tag string) error
	// InvalidatePath expires the cached page for the route path
	InvalidatePath(ctx context.Context, path string) error
}

// Refresher reloads the changed document from the CMS before the cache is
// invalidated, so the next render sees fresh content
type Refresher interface {
	Refresh(ctx context.Context, event models.RevalidationEvent) error
}

// Response is the status and JSON body returned to the CMS
type Response struct {
	Status int
	Body   any
}

// Success is the body of a handled event
type Success struct {
	Revalidated bool                `json:"revalidated"`
	Type        models.DocumentType `json:"type"`
	Slug        *string             `json:"slug,omitempty"`
	Timestamp   string              `json:"timestamp"`
}

// Failure is the body of a rejected or failed event
type Failure struct {
	Error string `json:"error"`
}

type Dispatcher struct {
	secret    string
	cache     Cache
	refresher Refresher
	now       func() time.Time
}

type Option func(*Dispatcher)

// WithRefresher reloads content before invalidating
func WithRefresher(r Refresher) Option {
	return func(d *Dispatcher) {
		d.refresher = r
	}
}

// WithClock overrides the clock used for response timestamps
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) {
		d.now = now
	}
}

// NewDispatcher returns a dispatcher invalidating cache. An empty secret
// disables the signature check.
func NewDispatcher(secret string, cache Cache, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		secret: secret,
		cache:  cache,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Handle checks the signature, decodes the event and issues its
// invalidations. Invalidations already issued are kept when a later one fails.
func (d *Dispatcher) Handle(ctx context.Context, body []byte, signature string) Response {
	if d.secret != "" && subtle.ConstantTimeCompare([]byte(d.secret), []byte(signature)) != 1 {
		log.Warn("Revalidation webhook rejected: invalid signature")
		webhookRequests.WithLabelValues("", "401").Inc()
		return Response{Status: http.StatusUnauthorized, Body: Failure{Error: errInvalidSignature}}
	}

	var event models.RevalidationEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return d.fail(event, fmt.Errorf("decode event: %w", err))
	}

	if d.refresher != nil {
		if err := d.refresher.Refresh(ctx, event); err != nil {
			return d.fail(event, fmt.Errorf("refresh %s %s: %w", event.Type, event.ID, err))
		}
	}

	if err := d.Dispatch(ctx, event.Type, event.SlugValue()); err != nil {
		return d.fail(event, err)
	}

	log.WithFields(log.Fields{
		"type": event.Type,
		"id":   event.ID,
		"slug": event.SlugValue(),
	}).Info("Revalidated")
	webhookRequests.WithLabelValues(TypeLabel(event.Type), "200").Inc()

	res := Success{
		Revalidated: true,
		Type:        event.Type,
		Timestamp:   d.now().UTC().Format("2006-01-02T15:04:05.000Z07:00"),
	}
	if event.Slug != nil {
		slug := event.Slug.Current
		res.Slug = &slug
	}
	return Response{Status: http.StatusOK, Body: res}
}

// Dispatch issues the planned invalidations for a document in order, stopping
// at the first failure
func (d *Dispatcher) Dispatch(ctx context.Context, docType models.DocumentType, slug string) error {
	for _, op := range Plan(docType, slug) {
		var err error
		switch op.Kind {
		case OpTag:
			err = d.cache.InvalidateTag(ctx, op.Target)
		case OpPath:
			err = d.cache.InvalidatePath(ctx, op.Target)
		}
		if err != nil {
			return fmt.Errorf("invalidate %s %s: %w", op.Kind, op.Target, err)
		}
		invalidations.WithLabelValues(string(op.Kind)).Inc()
	}
	return nil
}

func (d *Dispatcher) fail(event models.RevalidationEvent, err error) Response {
	log.WithFields(log.Fields{
		"type":  event.Type,
		"id":    event.ID,
		"error": err,
	}).Error("Revalidation webhook failed")
	webhookRequests.WithLabelValues(TypeLabel(event.Type), "500").Inc()
	return Response{Status: http.StatusInternalServerError, Body: Failure{Error: errProcessing}}
}

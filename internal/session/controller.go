// Package session owns the active session lifecycle: listing, creation,
// loading, reset, and the per-session document metadata cache.
package session

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"smartrag-console/internal/domain"
	"smartrag-console/internal/gateway"
	"smartrag-console/internal/state"
)

// Controller drives session lifecycle transitions against the backend and
// keeps the document metadata cache. All multi-field updates go through the
// state store's atomic replace operations.
type Controller struct {
	backend gateway.Backend
	store   *state.Store
	docs    *cache.Cache
	logger  *zap.Logger
}

// NewController creates a session controller. Document metadata is immutable
// once fetched, so the cache only needs a generous TTL as a safety valve.
func NewController(backend gateway.Backend, store *state.Store, logger *zap.Logger) *Controller {
	return &Controller{
		backend: backend,
		store:   store,
		docs:    cache.New(1*time.Hour, 10*time.Minute),
		logger:  logger,
	}
}

// List fetches the stored session summaries. Listing fails soft: any gateway
// failure yields an empty list and the picker shows an empty state.
func (c *Controller) List(ctx context.Context) []domain.SessionSummary {
	sessions, err := c.backend.ListSessions(ctx)
	if err != nil {
		c.logger.Warn("failed to list sessions", zap.Error(err))
		return []domain.SessionSummary{}
	}
	return sessions
}

// Create registers a new session for the given filenames and activates it
// with an empty history. A gateway failure aborts the caller's flow; no
// session is created implicitly.
func (c *Controller) Create(ctx context.Context, filenames []string) (string, error) {
	id, err := c.backend.CreateSession(ctx, filenames)
	if err != nil {
		return "", err
	}
	c.store.BeginSession(id)
	return id, nil
}

// Load switches to a stored session. The history is fetched first and the
// switch happens only on success, so a failed load leaves the previous
// session fully intact.
func (c *Controller) Load(ctx context.Context, id string) error {
	history, err := c.backend.SessionHistory(ctx, id)
	if err != nil {
		return err
	}
	c.store.SwitchSession(id, history)
	return nil
}

// StartNew clears the active session, its history, and the document cache
// in one update.
func (c *Controller) StartNew() {
	c.docs.Flush()
	c.store.Reset()
}

// DocumentsFor returns the document metadata for a session, fetching and
// caching on first use. Entries are keyed by the session id they were
// fetched for, so a session switch can never serve stale metadata. Fetch
// failures fail soft with an empty list and are not cached.
func (c *Controller) DocumentsFor(ctx context.Context, id string) []domain.Document {
	if id == "" {
		return nil
	}
	if hit, found := c.docs.Get(id); found {
		return hit.([]domain.Document)
	}
	docs, err := c.backend.SessionDocuments(ctx, id)
	if err != nil {
		c.logger.Warn("failed to fetch session documents", zap.String("session_id", id), zap.Error(err))
		return []domain.Document{}
	}
	c.docs.Set(id, docs, cache.DefaultExpiration)
	return docs
}

// View composes the full active session: id, history, and documents, all
// consistent with each other.
func (c *Controller) View(ctx context.Context) domain.Session {
	snapshot := c.store.Snapshot()
	if snapshot.Active() {
		snapshot.Documents = c.DocumentsFor(ctx, snapshot.ID)
	}
	return snapshot
}

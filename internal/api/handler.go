// Package api is the thin presentation adapter over the orchestration
// layer: each route maps one user action onto the session controller, chat
// orchestrator, chart browser, or ingestion pipeline, and an SSE feed
// carries state-changed events to whatever renders the view.
package api

import (
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/gin-gonic/gin"

	"smartrag-console/internal/charts"
	"smartrag-console/internal/chat"
	"smartrag-console/internal/domain"
	"smartrag-console/internal/gateway"
	"smartrag-console/internal/ingest"
	"smartrag-console/internal/session"
	"smartrag-console/internal/state"
)

// WelcomeMessage greets users with no active session.
const WelcomeMessage = "Upload a document or load a past session from the sidebar to begin."

// Handler exposes the console actions over HTTP.
type Handler struct {
	backend    gateway.Backend
	sessions   *session.Controller
	chat       *chat.Orchestrator
	pipeline   *ingest.Pipeline
	browser    *charts.Browser
	store      *state.Store
	subscriber message.Subscriber
}

// NewHandler creates the API handler.
func NewHandler(
	backend gateway.Backend,
	sessions *session.Controller,
	chatOrch *chat.Orchestrator,
	pipeline *ingest.Pipeline,
	browser *charts.Browser,
	store *state.Store,
	subscriber message.Subscriber,
) *Handler {
	return &Handler{
		backend:    backend,
		sessions:   sessions,
		chat:       chatOrch,
		pipeline:   pipeline,
		browser:    browser,
		store:      store,
		subscriber: subscriber,
	}
}

// RegisterRoutes registers the console routes
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/sessions", h.ListSessions)
	r.POST("/sessions/new", h.StartNewSession)
	r.POST("/sessions/:id/load", h.LoadSession)
	r.GET("/session", h.SessionView)
	r.GET("/models", h.ListModels)
	r.GET("/history/:index/details", h.InteractionDetails)
	r.POST("/query", h.Query)
	r.POST("/upload", h.Upload)
	r.GET("/charts", h.CurrentChart)
	r.GET("/charts/image", h.ChartImage)
	r.POST("/charts/next", h.NextChart)
	r.POST("/charts/previous", h.PreviousChart)
	r.POST("/charts/jump", h.JumpToChart)
	r.GET("/events", h.Events)
}

// Health probes the backend collaborator.
func (h *Handler) Health(c *gin.Context) {
	if err := h.backend.Health(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "backend unreachable", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// ListSessions returns the stored session summaries (empty on backend failure).
func (h *Handler) ListSessions(c *gin.Context) {
	summaries := h.sessions.List(c.Request.Context())
	views := make([]gin.H, 0, len(summaries))
	for _, s := range summaries {
		views = append(views, gin.H{
			"id":    s.ID,
			"name":  s.Name,
			"date":  s.Date,
			"docs":  s.Docs,
			"label": s.Label(),
		})
	}
	c.JSON(http.StatusOK, views)
}

// StartNewSession resets to the welcome state.
func (h *Handler) StartNewSession(c *gin.Context) {
	h.sessions.StartNew()
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// LoadSession switches to a stored session. On failure the previous session
// stays active, untouched.
func (h *Handler) LoadSession(c *gin.Context) {
	id := c.Param("id")
	if err := h.sessions.Load(c.Request.Context(), id); err != nil {
		c.JSON(statusFor(err), gin.H{"error": "could not load session history: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"session_id": id})
}

// SessionView returns the full current view for rendering.
func (h *Handler) SessionView(c *gin.Context) {
	view := h.sessions.View(c.Request.Context())
	if !view.Active() {
		c.JSON(http.StatusOK, gin.H{"active": false, "message": WelcomeMessage})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"active":      true,
		"session_id":  view.ID,
		"documents":   view.Documents,
		"history":     view.History,
		"doc_count":   len(view.Documents),
		"query_count": len(view.History),
	})
}

// ListModels returns the vision model catalog.
func (h *Handler) ListModels(c *gin.Context) {
	models := make([]gin.H, 0, len(domain.VisionModels))
	for _, m := range domain.VisionModels {
		models = append(models, gin.H{
			"name":        m,
			"description": domain.VisionModelDescriptions[m],
		})
	}
	c.JSON(http.StatusOK, gin.H{"models": models, "default": domain.DefaultVisionModel()})
}

// InteractionDetails re-derives the sources-and-charts view for one stored
// interaction, addressed by its one-based position in the history. Used when
// redrawing past exchanges.
func (h *Handler) InteractionDetails(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil || index < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "index must be a positive integer"})
		return
	}
	history := h.store.History()
	if index > len(history) {
		c.JSON(http.StatusNotFound, gin.H{"error": "no such interaction"})
		return
	}
	c.JSON(http.StatusOK, h.chat.Details(c.Request.Context(), history[index-1]))
}

type queryRequest struct {
	Question string `json:"question" binding:"required"`
}

// Query submits a question against the active session.
func (h *Handler) Query(c *gin.Context) {
	var req queryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	answer, err := h.chat.Ask(c.Request.Context(), req.Question)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, answer)
}

// Upload stages a batch of files and triggers processing for each one.
// Per-file failures are reported in the response, not as an HTTP error.
func (h *Handler) Upload(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	headers := form.File["files"]
	files := make([]ingest.File, 0, len(headers))
	for _, header := range headers {
		files = append(files, ingest.File{
			Name: header.Filename,
			Open: func() (io.ReadCloser, error) { return header.Open() },
		})
	}

	report, err := h.pipeline.Run(c.Request.Context(), files, c.PostForm("vision_model"))
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, report)
}

// CurrentChart returns the chart at the browser cursor, rebuilding the
// inventory from the active session first so the cursor is always in range.
func (h *Handler) CurrentChart(c *gin.Context) {
	h.reloadBrowser(c)
	h.chartView(c)
}

// NextChart advances the browser cursor.
func (h *Handler) NextChart(c *gin.Context) {
	h.reloadBrowser(c)
	h.browser.Next()
	h.chartView(c)
}

// PreviousChart retreats the browser cursor.
func (h *Handler) PreviousChart(c *gin.Context) {
	h.reloadBrowser(c)
	h.browser.Previous()
	h.chartView(c)
}

type jumpRequest struct {
	Index int `json:"index" binding:"required"`
}

// JumpToChart moves the cursor to a one-based position.
func (h *Handler) JumpToChart(c *gin.Context) {
	var req jumpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.reloadBrowser(c)
	h.browser.JumpTo(req.Index)
	h.chartView(c)
}

// ChartImage serves one chart image off the shared volume. Only directories
// belonging to the active session's documents are reachable.
func (h *Handler) ChartImage(c *gin.Context) {
	dir := c.Query("dir")
	file := filepath.Base(c.Query("file"))
	if dir == "" || file == "" || file == "." {
		c.JSON(http.StatusBadRequest, gin.H{"error": "dir and file are required"})
		return
	}

	view := h.sessions.View(c.Request.Context())
	for _, doc := range view.Documents {
		if doc.ChartDir == dir {
			c.File(filepath.Join(dir, file))
			return
		}
	}
	c.JSON(http.StatusNotFound, gin.H{"error": "chart not found"})
}

// Events streams state-changed events as SSE until the client disconnects.
func (h *Handler) Events(c *gin.Context) {
	ctx := c.Request.Context()
	messages, err := h.subscriber.Subscribe(ctx, state.Topic)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	c.Stream(func(w io.Writer) bool {
		select {
		case msg, ok := <-messages:
			if !ok {
				return false
			}
			c.SSEvent("state", string(msg.Payload))
			msg.Ack()
			return true
		case <-ctx.Done():
			return false
		}
	})
}

func (h *Handler) reloadBrowser(c *gin.Context) {
	view := h.sessions.View(c.Request.Context())
	h.browser.Reload(view.Documents)
}

func (h *Handler) chartView(c *gin.Context) {
	total := h.browser.Total()
	entry, index, ok := h.browser.Current()
	if !ok {
		c.JSON(http.StatusOK, gin.H{"total": 0})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"total":       total,
		"index":       index + 1,
		"filename":    entry.Image.Filename,
		"path":        entry.Image.Path(),
		"page":        entry.Page,
		"document":    entry.Document,
		"description": entry.Description,
		"navigable":   total > 1,
	})
}

// statusFor maps orchestration errors onto HTTP statuses for the renderer.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNoActiveSession),
		errors.Is(err, domain.ErrNoFilesSelected),
		errors.Is(err, domain.ErrUnknownVisionModel):
		return http.StatusBadRequest
	}
	switch domain.KindOf(err) {
	case domain.FailureTimeout:
		return http.StatusGatewayTimeout
	case domain.FailureUnreachable, domain.FailureServer, domain.FailureMalformed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

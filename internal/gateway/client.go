// Package gateway wraps the RAG backend's HTTP API in typed operations.
// Every failure leaving this package is a classified *domain.BackendError;
// transport and decoding details never escape. No operation retries — retry
// policy, if any, belongs to the caller.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"smartrag-console/internal/config"
	"smartrag-console/internal/domain"
)

// Backend is the operation surface of the remote retrieval/generation
// service. The console consumes this interface; Client is the live
// implementation and tests substitute fakes.
type Backend interface {
	Health(ctx context.Context) error
	ListSessions(ctx context.Context) ([]domain.SessionSummary, error)
	CreateSession(ctx context.Context, filenames []string) (string, error)
	SessionDocuments(ctx context.Context, sessionID string) ([]domain.Document, error)
	SessionHistory(ctx context.Context, sessionID string) ([]domain.Interaction, error)
	ProcessDocument(ctx context.Context, req ProcessRequest) (*ProcessResult, error)
	Query(ctx context.Context, req QueryRequest) (*QueryResponse, error)
}

// ProcessRequest triggers backend processing of one staged file.
type ProcessRequest struct {
	SessionID   string `json:"session_id"`
	Filename    string `json:"filename"`
	VisionModel string `json:"vision_model"`
}

// ProcessResult is the backend's report for one processed file.
type ProcessResult struct {
	Status string `json:"status,omitempty"`
	Error  string `json:"error,omitempty"`
}

// QueryRequest submits one question against a session.
type QueryRequest struct {
	SessionID string `json:"session_id"`
	Question  string `json:"question"`
}

// QueryResponse is the generated answer plus its supporting results.
type QueryResponse struct {
	Response string               `json:"response"`
	Results  []domain.QueryResult `json:"results"`
	Error    string               `json:"error,omitempty"`
}

// Client is the live HTTP implementation of Backend.
type Client struct {
	baseURL  string
	http     *http.Client
	timeouts config.TimeoutsConfig
	logger   *zap.Logger
}

// NewClient creates a gateway client for the backend at baseURL.
func NewClient(baseURL string, timeouts config.TimeoutsConfig, logger *zap.Logger) *Client {
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		http:     &http.Client{},
		timeouts: timeouts,
		logger:   logger,
	}
}

// Health probes the backend's /docs endpoint, a lightweight always-on page.
func (c *Client) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeouts.Health)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/docs", nil)
	if err != nil {
		return &domain.BackendError{Op: "health", Kind: domain.FailureMalformed, Err: err}
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return classify("health", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &domain.BackendError{Op: "health", Kind: domain.FailureServer, Status: resp.StatusCode, Body: string(body)}
	}
	return nil
}

// ListSessions fetches the stored session summaries.
func (c *Client) ListSessions(ctx context.Context) ([]domain.SessionSummary, error) {
	var out []domain.SessionSummary
	if err := c.getJSON(ctx, "list sessions", "/sessions", c.timeouts.Listing, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateSession registers a new session for the given filenames and returns
// its id. The file list must be non-empty; no session is created implicitly.
func (c *Client) CreateSession(ctx context.Context, filenames []string) (string, error) {
	if len(filenames) == 0 {
		return "", domain.ErrNoFilesSelected
	}

	var out struct {
		SessionID json.Number `json:"session_id"`
	}
	body := map[string][]string{"filenames": filenames}
	if err := c.postJSON(ctx, "create session", "/sessions", c.timeouts.Listing, body, &out); err != nil {
		return "", err
	}
	if out.SessionID.String() == "" {
		return "", &domain.BackendError{Op: "create session", Kind: domain.FailureMalformed, Err: errors.New("missing session_id")}
	}
	return out.SessionID.String(), nil
}

// SessionDocuments fetches the document metadata records for a session.
func (c *Client) SessionDocuments(ctx context.Context, sessionID string) ([]domain.Document, error) {
	var out []domain.Document
	path := "/sessions/" + url.PathEscape(sessionID) + "/documents"
	if err := c.getJSON(ctx, "fetch documents", path, c.timeouts.Documents, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SessionHistory fetches the full Q&A history for a session.
func (c *Client) SessionHistory(ctx context.Context, sessionID string) ([]domain.Interaction, error) {
	var out []domain.Interaction
	path := "/sessions/" + url.PathEscape(sessionID) + "/history"
	if err := c.getJSON(ctx, "fetch history", path, c.timeouts.Listing, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ProcessDocument triggers parsing + vision + embedding for one staged file.
// The long timeout covers GPU-bound vision inference; a timeout here means
// "unknown", not "failed" — the backend may still be working.
func (c *Client) ProcessDocument(ctx context.Context, req ProcessRequest) (*ProcessResult, error) {
	var out ProcessResult
	if err := c.postJSON(ctx, "process document", "/process", c.timeouts.Process, req, &out); err != nil {
		return nil, err
	}
	if out.Error != "" {
		return nil, &domain.BackendError{Op: "process document", Kind: domain.FailureServer, Status: http.StatusOK, Body: out.Error}
	}
	return &out, nil
}

// Query submits a question and returns the generated answer with results.
func (c *Client) Query(ctx context.Context, req QueryRequest) (*QueryResponse, error) {
	var out QueryResponse
	if err := c.postJSON(ctx, "query", "/query", c.timeouts.Query, req, &out); err != nil {
		return nil, err
	}
	if out.Error != "" {
		return nil, &domain.BackendError{Op: "query", Kind: domain.FailureServer, Status: http.StatusOK, Body: out.Error}
	}
	return &out, nil
}

func (c *Client) getJSON(ctx context.Context, op, path string, timeout time.Duration, out any) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return &domain.BackendError{Op: op, Kind: domain.FailureMalformed, Err: err}
	}
	return c.do(op, req, out)
}

func (c *Client) postJSON(ctx context.Context, op, path string, timeout time.Duration, in, out any) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	payload, err := json.Marshal(in)
	if err != nil {
		return &domain.BackendError{Op: op, Kind: domain.FailureMalformed, Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return &domain.BackendError{Op: op, Kind: domain.FailureMalformed, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(op, req, out)
}

func (c *Client) do(op string, req *http.Request, out any) error {
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		berr := classify(op, err)
		c.logger.Warn("backend call failed",
			zap.String("op", op),
			zap.String("kind", string(domain.KindOf(berr))),
			zap.Duration("elapsed", time.Since(start)),
		)
		return berr
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return &domain.BackendError{Op: op, Kind: domain.FailureServer, Status: resp.StatusCode, Body: string(body)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &domain.BackendError{Op: op, Kind: domain.FailureMalformed, Err: err}
	}
	return nil
}

// classify maps a transport-level error into the failure taxonomy.
func classify(op string, err error) error {
	kind := domain.FailureUnreachable
	var uerr *url.Error
	if errors.Is(err, context.DeadlineExceeded) {
		kind = domain.FailureTimeout
	} else if errors.As(err, &uerr) && uerr.Timeout() {
		kind = domain.FailureTimeout
	}
	return &domain.BackendError{Op: op, Kind: kind, Err: fmt.Errorf("request failed: %w", err)}
}

// Package chat composes the session controller and the backend gateway into
// the question/answer flow.
package chat

import (
	"context"

	"go.uber.org/zap"

	"smartrag-console/internal/charts"
	"smartrag-console/internal/domain"
	"smartrag-console/internal/gateway"
	"smartrag-console/internal/session"
	"smartrag-console/internal/state"
)

// Answer is one completed exchange prepared for display: the generated
// response plus the correlated charts and scored text sources.
type Answer struct {
	Question string                 `json:"question"`
	Response string                 `json:"response"`
	Charts   []charts.ResolvedChart `json:"charts"`
	Sources  []charts.SourceView    `json:"sources"`
}

// Orchestrator runs queries against the active session and appends the
// resulting interactions to the shared history.
type Orchestrator struct {
	backend  gateway.Backend
	sessions *session.Controller
	store    *state.Store
	lister   charts.Lister
	logger   *zap.Logger
}

// NewOrchestrator creates a chat orchestrator.
func NewOrchestrator(backend gateway.Backend, sessions *session.Controller, store *state.Store, lister charts.Lister, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		backend:  backend,
		sessions: sessions,
		store:    store,
		lister:   lister,
		logger:   logger,
	}
}

// Ask submits a question against the active session, records the exchange,
// and returns the displayable answer. Query failures surface to the caller;
// nothing is recorded on failure.
func (o *Orchestrator) Ask(ctx context.Context, question string) (*Answer, error) {
	sessionID := o.store.SessionID()
	if sessionID == "" {
		return nil, domain.ErrNoActiveSession
	}

	resp, err := o.backend.Query(ctx, gateway.QueryRequest{SessionID: sessionID, Question: question})
	if err != nil {
		return nil, err
	}

	interaction := domain.Interaction{
		Question: question,
		Response: resp.Response,
		Sources:  resp.Results,
	}
	if err := o.store.AppendInteraction(interaction); err != nil {
		return nil, err
	}

	correlation := o.correlate(ctx, sessionID, resp.Results)
	return &Answer{
		Question: question,
		Response: resp.Response,
		Charts:   correlation.Charts,
		Sources:  correlation.Sources,
	}, nil
}

// Details re-derives the chart and source view for a stored interaction,
// used when redrawing history.
func (o *Orchestrator) Details(ctx context.Context, interaction domain.Interaction) charts.Correlation {
	return o.correlate(ctx, o.store.SessionID(), interaction.Sources)
}

func (o *Orchestrator) correlate(ctx context.Context, sessionID string, results []domain.QueryResult) charts.Correlation {
	docs := o.sessions.DocumentsFor(ctx, sessionID)
	return charts.Correlate(docs, results, o.lister)
}

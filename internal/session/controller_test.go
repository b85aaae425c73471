package session

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"smartrag-console/internal/domain"
	"smartrag-console/internal/gateway"
	"smartrag-console/internal/state"
)

type fakeBackend struct {
	sessions     []domain.SessionSummary
	listErr      error
	createID     string
	createErr    error
	documents    map[string][]domain.Document
	documentsErr error
	docFetches   int
	history      map[string][]domain.Interaction
	historyErr   error
}

func (f *fakeBackend) Health(ctx context.Context) error { return nil }

func (f *fakeBackend) ListSessions(ctx context.Context) ([]domain.SessionSummary, error) {
	return f.sessions, f.listErr
}

func (f *fakeBackend) CreateSession(ctx context.Context, filenames []string) (string, error) {
	if f.createErr != nil {
		return "", f.createErr
	}
	return f.createID, nil
}

func (f *fakeBackend) SessionDocuments(ctx context.Context, id string) ([]domain.Document, error) {
	f.docFetches++
	if f.documentsErr != nil {
		return nil, f.documentsErr
	}
	return f.documents[id], nil
}

func (f *fakeBackend) SessionHistory(ctx context.Context, id string) ([]domain.Interaction, error) {
	if f.historyErr != nil {
		return nil, f.historyErr
	}
	return f.history[id], nil
}

func (f *fakeBackend) ProcessDocument(ctx context.Context, req gateway.ProcessRequest) (*gateway.ProcessResult, error) {
	return &gateway.ProcessResult{}, nil
}

func (f *fakeBackend) Query(ctx context.Context, req gateway.QueryRequest) (*gateway.QueryResponse, error) {
	return &gateway.QueryResponse{}, nil
}

func newController(backend *fakeBackend) (*Controller, *state.Store) {
	store := state.NewStore(nil, zap.NewNop())
	return NewController(backend, store, zap.NewNop()), store
}

func TestLoadSwitchesAtomically(t *testing.T) {
	backend := &fakeBackend{
		history: map[string][]domain.Interaction{
			"2": {{Question: "q", Response: "a"}},
		},
	}
	controller, store := newController(backend)

	require.NoError(t, controller.Load(context.Background(), "2"))
	assert.Equal(t, "2", store.SessionID())
	assert.Len(t, store.History(), 1)
}

func TestLoadFailureLeavesSessionUntouched(t *testing.T) {
	backend := &fakeBackend{
		history: map[string][]domain.Interaction{
			"1": {{Question: "first", Response: "answer"}},
		},
	}
	controller, store := newController(backend)
	require.NoError(t, controller.Load(context.Background(), "1"))

	backend.historyErr = &domain.BackendError{Op: "fetch history", Kind: domain.FailureServer, Status: 500}
	err := controller.Load(context.Background(), "2")
	require.Error(t, err)

	// The failed load must not partially switch: id and history both stay.
	assert.Equal(t, "1", store.SessionID())
	require.Len(t, store.History(), 1)
	assert.Equal(t, "first", store.History()[0].Question)
}

func TestListFailsSoft(t *testing.T) {
	backend := &fakeBackend{listErr: errors.New("connection refused")}
	controller, _ := newController(backend)

	assert.Empty(t, controller.List(context.Background()))
}

func TestCreateActivatesSession(t *testing.T) {
	backend := &fakeBackend{createID: "9"}
	controller, store := newController(backend)

	id, err := controller.Create(context.Background(), []string{"a.pdf"})
	require.NoError(t, err)
	assert.Equal(t, "9", id)
	assert.Equal(t, "9", store.SessionID())
	assert.Empty(t, store.History())
}

func TestCreateFailureCreatesNoSession(t *testing.T) {
	backend := &fakeBackend{createErr: errors.New("boom")}
	controller, store := newController(backend)

	_, err := controller.Create(context.Background(), []string{"a.pdf"})
	require.Error(t, err)
	assert.Empty(t, store.SessionID())
}

func TestDocumentsForCachesPerSession(t *testing.T) {
	backend := &fakeBackend{
		documents: map[string][]domain.Document{
			"1": {{OriginalFilename: "a.pdf"}},
			"2": {{OriginalFilename: "b.pdf"}, {OriginalFilename: "c.pdf"}},
		},
	}
	controller, _ := newController(backend)
	ctx := context.Background()

	assert.Len(t, controller.DocumentsFor(ctx, "1"), 1)
	assert.Len(t, controller.DocumentsFor(ctx, "1"), 1)
	assert.Equal(t, 1, backend.docFetches)

	// Switching sessions refetches: the cache is tagged by session id.
	docs := controller.DocumentsFor(ctx, "2")
	assert.Len(t, docs, 2)
	assert.Equal(t, 2, backend.docFetches)
}

func TestDocumentsForFailureIsNotCached(t *testing.T) {
	backend := &fakeBackend{documentsErr: errors.New("down")}
	controller, _ := newController(backend)
	ctx := context.Background()

	assert.Empty(t, controller.DocumentsFor(ctx, "1"))

	backend.documentsErr = nil
	backend.documents = map[string][]domain.Document{"1": {{OriginalFilename: "a.pdf"}}}
	assert.Len(t, controller.DocumentsFor(ctx, "1"), 1)
}

func TestStartNewClearsEverything(t *testing.T) {
	backend := &fakeBackend{
		history:   map[string][]domain.Interaction{"1": {{Question: "q"}}},
		documents: map[string][]domain.Document{"1": {{OriginalFilename: "a.pdf"}}},
	}
	controller, store := newController(backend)
	ctx := context.Background()

	require.NoError(t, controller.Load(ctx, "1"))
	controller.DocumentsFor(ctx, "1")

	controller.StartNew()
	assert.Empty(t, store.SessionID())
	assert.Empty(t, store.History())

	view := controller.View(ctx)
	assert.False(t, view.Active())
	assert.Empty(t, view.Documents)
}

func TestViewComposesConsistentSession(t *testing.T) {
	backend := &fakeBackend{
		history:   map[string][]domain.Interaction{"1": {{Question: "q", Response: "a"}}},
		documents: map[string][]domain.Document{"1": {{OriginalFilename: "a.pdf"}}},
	}
	controller, _ := newController(backend)
	ctx := context.Background()

	require.NoError(t, controller.Load(ctx, "1"))
	view := controller.View(ctx)
	assert.True(t, view.Active())
	assert.Equal(t, "1", view.ID)
	assert.Len(t, view.Documents, 1)
	assert.Len(t, view.History, 1)
}

package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"smartrag-console/internal/domain"
	"smartrag-console/internal/gateway"
	"smartrag-console/internal/session"
	"smartrag-console/internal/state"
)

type fakeBackend struct {
	createID   string
	createErr  error
	processed  []string
	processErr map[string]error
}

func (f *fakeBackend) Health(ctx context.Context) error { return nil }

func (f *fakeBackend) ListSessions(ctx context.Context) ([]domain.SessionSummary, error) {
	return nil, nil
}

func (f *fakeBackend) CreateSession(ctx context.Context, filenames []string) (string, error) {
	if f.createErr != nil {
		return "", f.createErr
	}
	return f.createID, nil
}

func (f *fakeBackend) SessionDocuments(ctx context.Context, id string) ([]domain.Document, error) {
	return nil, nil
}

func (f *fakeBackend) SessionHistory(ctx context.Context, id string) ([]domain.Interaction, error) {
	return nil, nil
}

func (f *fakeBackend) ProcessDocument(ctx context.Context, req gateway.ProcessRequest) (*gateway.ProcessResult, error) {
	f.processed = append(f.processed, req.Filename)
	if err := f.processErr[req.Filename]; err != nil {
		return nil, err
	}
	return &gateway.ProcessResult{Status: "ok"}, nil
}

func (f *fakeBackend) Query(ctx context.Context, req gateway.QueryRequest) (*gateway.QueryResponse, error) {
	return &gateway.QueryResponse{}, nil
}

func memFile(name, content string) File {
	return File{
		Name: name,
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader(content)), nil
		},
	}
}

func newPipeline(t *testing.T, backend *fakeBackend) (*Pipeline, *state.Store, string) {
	t.Helper()
	store := state.NewStore(nil, zap.NewNop())
	sessions := session.NewController(backend, store, zap.NewNop())
	staging := t.TempDir()
	return NewPipeline(backend, sessions, store, staging, zap.NewNop()), store, staging
}

func TestRunProcessesAllFiles(t *testing.T) {
	backend := &fakeBackend{createID: "5"}
	pipeline, store, staging := newPipeline(t, backend)

	report, err := pipeline.Run(context.Background(), []File{
		memFile("a.pdf", "aaa"),
		memFile("b.docx", "bbb"),
	}, "Moondream2")
	require.NoError(t, err)

	assert.Equal(t, "5", report.SessionID)
	assert.Equal(t, "5", store.SessionID())
	assert.NotEmpty(t, report.BatchID)
	assert.Equal(t, 2, report.Succeeded())
	assert.Equal(t, []string{"a.pdf", "b.docx"}, backend.processed)

	// Raw bytes land on the shared staging volume before processing.
	data, err := os.ReadFile(filepath.Join(staging, "a.pdf"))
	require.NoError(t, err)
	assert.Equal(t, "aaa", string(data))
}

func TestRunToleratesPerFileTimeout(t *testing.T) {
	backend := &fakeBackend{
		createID: "5",
		processErr: map[string]error{
			"b.pdf": &domain.BackendError{Op: "process document", Kind: domain.FailureTimeout},
		},
	}
	pipeline, store, _ := newPipeline(t, backend)

	report, err := pipeline.Run(context.Background(), []File{
		memFile("a.pdf", "a"),
		memFile("b.pdf", "b"),
		memFile("c.pdf", "c"),
	}, "Moondream2")
	require.NoError(t, err)

	// File 2 timed out, files 1 and 3 were still attempted; the batch
	// completes and the session stays valid.
	assert.Equal(t, []string{"a.pdf", "b.pdf", "c.pdf"}, backend.processed)
	require.Len(t, report.Outcomes, 3)
	assert.True(t, report.Outcomes[0].OK())
	assert.True(t, report.Outcomes[1].TimedOut)
	assert.Contains(t, report.Outcomes[1].Error, "still be running")
	assert.True(t, report.Outcomes[2].OK())
	assert.Equal(t, 2, report.Succeeded())
	assert.Equal(t, "5", store.SessionID())
}

func TestRunAbortsWhenSessionCreationFails(t *testing.T) {
	backend := &fakeBackend{createErr: errors.New("backend down")}
	pipeline, store, staging := newPipeline(t, backend)

	_, err := pipeline.Run(context.Background(), []File{memFile("a.pdf", "a")}, "Moondream2")
	require.Error(t, err)

	// Nothing uploaded, nothing processed, no session activated.
	assert.Empty(t, backend.processed)
	assert.Empty(t, store.SessionID())
	entries, readErr := os.ReadDir(staging)
	require.NoError(t, readErr)
	assert.Empty(t, entries)
}

func TestRunRejectsEmptyBatch(t *testing.T) {
	pipeline, _, _ := newPipeline(t, &fakeBackend{createID: "5"})

	_, err := pipeline.Run(context.Background(), nil, "Moondream2")
	assert.ErrorIs(t, err, domain.ErrNoFilesSelected)
}

func TestRunRejectsUnknownVisionModel(t *testing.T) {
	pipeline, _, _ := newPipeline(t, &fakeBackend{createID: "5"})

	_, err := pipeline.Run(context.Background(), []File{memFile("a.pdf", "a")}, "GPT-9000")
	assert.ErrorIs(t, err, domain.ErrUnknownVisionModel)
}

func TestRunDefaultsVisionModel(t *testing.T) {
	backend := &fakeBackend{createID: "5"}
	pipeline, _, _ := newPipeline(t, backend)

	_, err := pipeline.Run(context.Background(), []File{memFile("a.pdf", "a")}, "")
	require.NoError(t, err)
}

func TestRunReportsMonotonicProgress(t *testing.T) {
	pubSub := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 16}, watermill.NopLogger{})
	defer pubSub.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	messages, err := pubSub.Subscribe(ctx, state.Topic)
	require.NoError(t, err)

	backend := &fakeBackend{
		createID: "5",
		processErr: map[string]error{
			"b.pdf": &domain.BackendError{Op: "process document", Kind: domain.FailureServer, Status: 500},
		},
	}
	store := state.NewStore(pubSub, zap.NewNop())
	sessions := session.NewController(backend, store, zap.NewNop())
	pipeline := NewPipeline(backend, sessions, store, t.TempDir(), zap.NewNop())

	_, err = pipeline.Run(ctx, []File{
		memFile("a.pdf", "a"),
		memFile("b.pdf", "b"),
		memFile("c.pdf", "c"),
	}, "Moondream2")
	require.NoError(t, err)

	// One progress tick per file, completed count strictly increasing,
	// emitted regardless of the file's own outcome.
	var progress []state.Event
	timeout := time.After(2 * time.Second)
	for len(progress) < 3 {
		select {
		case msg := <-messages:
			var evt state.Event
			require.NoError(t, json.Unmarshal(msg.Payload, &evt))
			msg.Ack()
			if evt.Type == state.EventIngestProgress {
				progress = append(progress, evt)
			}
		case <-timeout:
			t.Fatal("timed out waiting for progress events")
		}
	}

	for i, evt := range progress {
		assert.Equal(t, i+1, evt.Completed)
		assert.Equal(t, 3, evt.Total)
	}
	assert.Equal(t, "b.pdf", progress[1].Filename)
	assert.NotEmpty(t, progress[1].Error)
}

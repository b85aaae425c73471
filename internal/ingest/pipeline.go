// Package ingest runs the multi-file upload and processing pipeline: one
// session for the whole batch, then each file staged and processed strictly
// in sequence. Individual files may fail without sinking the batch.
package ingest

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"smartrag-console/internal/domain"
	"smartrag-console/internal/gateway"
	"smartrag-console/internal/session"
	"smartrag-console/internal/state"
)

// File is one upload in a batch. Open is called exactly once, when the
// file's turn comes.
type File struct {
	Name string
	Open func() (io.ReadCloser, error)
}

// Outcome records one file's attempt. TimedOut failures are special: the
// processing call ran out of budget but the backend may still finish, so the
// file is reported as uncertain rather than dead.
type Outcome struct {
	Filename string `json:"filename"`
	Error    string `json:"error,omitempty"`
	TimedOut bool   `json:"timed_out,omitempty"`
}

// OK reports whether the file processed successfully.
func (o Outcome) OK() bool {
	return o.Error == "" && !o.TimedOut
}

// Report is the terminal state of one batch. The batch always completes:
// the session id is valid and usable even when some files failed.
type Report struct {
	BatchID   string    `json:"batch_id"`
	SessionID string    `json:"session_id"`
	Outcomes  []Outcome `json:"outcomes"`
}

// Succeeded counts the files that processed cleanly.
func (r Report) Succeeded() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.OK() {
			n++
		}
	}
	return n
}

// Pipeline uploads a batch of files to the shared staging volume and
// triggers backend processing for each, sequentially. Sequential on purpose:
// the vision service is GPU-bound, and one file at a time keeps progress
// reporting deterministic.
type Pipeline struct {
	backend  gateway.Backend
	sessions *session.Controller
	store    *state.Store
	staging  string
	logger   *zap.Logger
}

// NewPipeline creates an ingestion pipeline staging files under stagingDir.
func NewPipeline(backend gateway.Backend, sessions *session.Controller, store *state.Store, stagingDir string, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		backend:  backend,
		sessions: sessions,
		store:    store,
		staging:  stagingDir,
		logger:   logger,
	}
}

// Run executes one batch. Session creation is the only fatal step — without
// a session there is nothing to attach uploads to. After that every file is
// attempted regardless of earlier failures, and a progress event is emitted
// after each attempt so the caller can render a monotonic indicator.
func (p *Pipeline) Run(ctx context.Context, files []File, visionModel string) (*Report, error) {
	if len(files) == 0 {
		return nil, domain.ErrNoFilesSelected
	}
	if visionModel == "" {
		visionModel = domain.DefaultVisionModel()
	}
	if !domain.IsKnownVisionModel(visionModel) {
		return nil, domain.ErrUnknownVisionModel
	}

	if err := os.MkdirAll(p.staging, 0o755); err != nil {
		return nil, err
	}

	filenames := make([]string, len(files))
	for i, f := range files {
		filenames[i] = filepath.Base(f.Name)
	}

	sessionID, err := p.sessions.Create(ctx, filenames)
	if err != nil {
		return nil, err
	}

	report := &Report{
		BatchID:   uuid.NewString(),
		SessionID: sessionID,
		Outcomes:  make([]Outcome, 0, len(files)),
	}

	total := len(files)
	for i, f := range files {
		name := filenames[i]
		outcome := p.processOne(ctx, sessionID, name, f, visionModel)
		report.Outcomes = append(report.Outcomes, outcome)

		p.store.PublishProgress(state.Event{
			SessionID: sessionID,
			Filename:  name,
			Completed: i + 1,
			Total:     total,
			Error:     outcome.Error,
		})
		if outcome.OK() {
			p.logger.Info("processed document",
				zap.String("session_id", sessionID),
				zap.String("filename", name),
				zap.Int("completed", i+1),
				zap.Int("total", total),
			)
		} else {
			p.logger.Warn("document attempt failed",
				zap.String("session_id", sessionID),
				zap.String("filename", name),
				zap.String("error", outcome.Error),
				zap.Bool("timed_out", outcome.TimedOut),
			)
		}
	}

	return report, nil
}

func (p *Pipeline) processOne(ctx context.Context, sessionID, name string, f File, visionModel string) Outcome {
	outcome := Outcome{Filename: name}

	if err := p.stage(name, f); err != nil {
		outcome.Error = err.Error()
		return outcome
	}

	_, err := p.backend.ProcessDocument(ctx, gateway.ProcessRequest{
		SessionID:   sessionID,
		Filename:    name,
		VisionModel: visionModel,
	})
	if err != nil {
		if domain.IsTimeout(err) {
			outcome.TimedOut = true
			outcome.Error = "processing timed out; it may still be running in the background"
		} else {
			outcome.Error = err.Error()
		}
	}
	return outcome
}

// stage writes the raw file bytes to the shared staging volume, where the
// backend picks them up by filename.
func (p *Pipeline) stage(name string, f File) error {
	src, err := f.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.Create(filepath.Join(p.staging, name))
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return err
	}
	return dst.Close()
}

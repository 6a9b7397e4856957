// Package usecase contains the application services behind the HTTP API.
package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/fairyhunter13/ai-exam-grader/internal/domain"
	"github.com/fairyhunter13/ai-exam-grader/internal/observability"
	"github.com/fairyhunter13/ai-exam-grader/internal/pipeline"
)

const xlsxMIME = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// UploadSaver persists the raw upload before processing starts.
type UploadSaver interface {
	SaveUpload(jobID, ext string, data []byte) (string, error)
}

// SubmitService accepts uploads and dispatches grading jobs.
type SubmitService struct {
	Jobs    domain.JobStore
	Uploads UploadSaver
	Orch    *pipeline.Orchestrator
}

// Submit validates the upload, registers a queued job and launches the
// pipeline in the background. It returns immediately; callers poll the
// job id for progress.
func (s *SubmitService) Submit(ctx context.Context, filename string, data []byte) (domain.Job, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext != ".csv" && ext != ".xlsx" {
		return domain.Job{}, fmt.Errorf("%w: unsupported file type %q, expected .csv or .xlsx", domain.ErrInvalidArgument, ext)
	}
	if len(data) == 0 {
		return domain.Job{}, fmt.Errorf("%w: empty file", domain.ErrInvalidArgument)
	}
	if err := sniffContent(ext, data); err != nil {
		return domain.Job{}, err
	}

	job := s.Jobs.Create(filename)
	observability.JobsSubmittedTotal.Inc()

	// The original upload is kept on disk so a batch can be replayed;
	// a save failure degrades replayability but not this run.
	if _, err := s.Uploads.SaveUpload(job.ID, ext, data); err != nil {
		slog.Warn("upload save failed", slog.String("jobId", job.ID), slog.Any("error", err))
	}

	// Detach from the request context: the job outlives the HTTP call.
	go s.Orch.Run(context.WithoutCancel(ctx), job, data, ext)
	return job, nil
}

// sniffContent cross-checks the claimed extension against the actual
// bytes, so a renamed binary cannot reach the parser.
func sniffContent(ext string, data []byte) error {
	mtype := mimetype.Detect(data)
	switch ext {
	case ".xlsx":
		if !mtype.Is(xlsxMIME) && !mtype.Is("application/zip") {
			return fmt.Errorf("%w: file content is %s, not an XLSX workbook", domain.ErrInvalidArgument, mtype.String())
		}
	case ".csv":
		if !strings.HasPrefix(mtype.String(), "text/") {
			return fmt.Errorf("%w: file content is %s, not a text table", domain.ErrInvalidArgument, mtype.String())
		}
	}
	return nil
}

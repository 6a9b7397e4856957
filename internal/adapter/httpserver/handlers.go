package httpserver

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/fairyhunter13/ai-exam-grader/internal/config"
	"github.com/fairyhunter13/ai-exam-grader/internal/domain"
	"github.com/fairyhunter13/ai-exam-grader/internal/usecase"
)

// Server aggregates handler dependencies.
type Server struct {
	Cfg     config.Config
	Submit  *usecase.SubmitService
	Results *usecase.ResultService
	History *usecase.HistoryService
	AICheck func(ctx context.Context) error
}

// NewServer constructs an HTTP server with all handlers wired.
func NewServer(cfg config.Config, submit *usecase.SubmitService, results *usecase.ResultService, history *usecase.HistoryService, aiCheck func(context.Context) error) *Server {
	return &Server{Cfg: cfg, Submit: submit, Results: results, History: history, AICheck: aiCheck}
}

func allowedExt(name string) bool {
	n := strings.ToLower(name)
	return strings.HasSuffix(n, ".csv") || strings.HasSuffix(n, ".xlsx")
}

// UploadHandler accepts a multipart exam table and enqueues a grading job.
func (s *Server) UploadHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.Header.Get("Content-Type"), "multipart/form-data") {
			writeError(w, r, fmt.Errorf("%w: content-type must be multipart/form-data", domain.ErrInvalidArgument), nil)
			return
		}
		maxBytes := s.Cfg.MaxUploadMB * 1024 * 1024
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
		if err := r.ParseMultipartForm(maxBytes); err != nil {
			if strings.Contains(strings.ToLower(err.Error()), "too large") {
				writeJSON(w, http.StatusRequestEntityTooLarge, errorEnvelope{Error: apiError{
					Code:    "INVALID_ARGUMENT",
					Message: "payload too large",
					Details: map[string]any{"max_mb": s.Cfg.MaxUploadMB},
				}})
				return
			}
			writeError(w, r, fmt.Errorf("%w: %v", domain.ErrInvalidArgument, err), nil)
			return
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			writeError(w, r, fmt.Errorf("%w: file field required", domain.ErrInvalidArgument), map[string]string{"field": "file"})
			return
		}
		defer func() { _ = file.Close() }()

		if !allowedExt(header.Filename) {
			writeJSON(w, http.StatusUnsupportedMediaType, errorEnvelope{Error: apiError{
				Code:    "INVALID_ARGUMENT",
				Message: "unsupported media type, expected .csv or .xlsx",
				Details: map[string]any{"filename": header.Filename},
			}})
			return
		}

		data, err := io.ReadAll(file)
		if err != nil {
			writeError(w, r, fmt.Errorf("%w: file read: %v", domain.ErrInvalidArgument, err), nil)
			return
		}

		job, err := s.Submit.Submit(r.Context(), filepath.Base(header.Filename), data)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		LoggerFrom(r).Info("upload accepted",
			"jobId", job.ID, "filename", job.Filename, "bytes", len(data))
		writeJSON(w, http.StatusOK, map[string]any{"id": job.ID, "status": string(job.Status)})
	}
}

// ResultHandler serves the poll endpoint.
func (s *Server) ResultHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		payload, err := s.Results.Poll(id)
		if err != nil {
			writeError(w, r, err, map[string]string{"id": id})
			return
		}
		writeJSON(w, http.StatusOK, payload)
	}
}

// DownloadHandler streams the CSV export of a completed job.
func (s *Server) DownloadHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		path, filename, err := s.Results.Download(id)
		if err != nil {
			writeError(w, r, err, map[string]string{"id": id})
			return
		}
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
		http.ServeFile(w, r, path)
	}
}

// HistoryHandler lists completed jobs, most-recent-first.
func (s *Server) HistoryHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entries, err := s.History.List()
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"history": entries})
	}
}

// ReadyzHandler reports readiness of the inference backend.
func (s *Server) ReadyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.AICheck != nil {
			if err := s.AICheck(r.Context()); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, map[string]any{
					"status": "unavailable",
					"checks": map[string]string{"inference": err.Error()},
				})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
	}
}

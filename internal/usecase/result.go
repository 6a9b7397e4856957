package usecase

import (
	"fmt"

	"github.com/fairyhunter13/ai-exam-grader/internal/domain"
)

// SummaryReader loads a persisted JSON summary by path.
type SummaryReader interface {
	ReadSummary(path string) (map[string]any, error)
}

// ResultService serves the poll and download endpoints.
type ResultService struct {
	Jobs      domain.JobStore
	Summaries SummaryReader
}

// Poll returns the status envelope for a job. While the job is running
// the envelope is minimal; a failed job carries its error; a completed
// job carries the full summary plus a download link when the CSV export
// exists.
func (s *ResultService) Poll(id string) (map[string]any, error) {
	job, ok := s.Jobs.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: result %s", domain.ErrNotFound, id)
	}

	envelope := map[string]any{
		"id":     job.ID,
		"status": string(job.Status),
	}
	switch job.Status {
	case domain.JobQueued, domain.JobProcessing:
		return envelope, nil
	case domain.JobFailed:
		envelope["error"] = job.Error
		return envelope, nil
	}

	if job.ResultPath == "" {
		// Completed but the summary artifact never made it to disk.
		return envelope, nil
	}
	payload, err := s.Summaries.ReadSummary(job.ResultPath)
	if err != nil {
		return nil, fmt.Errorf("%w: summary for %s: %v", domain.ErrArtifactMissing, id, err)
	}
	if job.CSVPath != "" {
		payload["downloadUrl"] = "/api/results/" + job.ID + "/download"
	}
	return payload, nil
}

// Download resolves the CSV export path for a completed job. The error
// distinguishes "no such job", "not finished yet" and "finished but the
// export is gone" so the API maps them to different status codes.
func (s *ResultService) Download(id string) (path, filename string, err error) {
	job, ok := s.Jobs.Get(id)
	if !ok {
		return "", "", fmt.Errorf("%w: result %s", domain.ErrNotFound, id)
	}
	if !job.Status.Terminal() {
		return "", "", fmt.Errorf("%w: result %s is %s", domain.ErrNotReady, id, job.Status)
	}
	if job.Status != domain.JobCompleted || job.CSVPath == "" {
		return "", "", fmt.Errorf("%w: no export for result %s", domain.ErrArtifactMissing, id)
	}
	return job.CSVPath, job.ID + ".csv", nil
}

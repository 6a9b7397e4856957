// Package domain holds the core entities and ports of the exam grader.
package domain

import (
	"context"
	"errors"
	"time"
)

// Error taxonomy (sentinels)
var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrSchemaInvalid   = errors.New("schema invalid")
	ErrNotReady        = errors.New("not ready")
	ErrArtifactMissing = errors.New("artifact missing")
	ErrInternal        = errors.New("internal error")
)

// NoImageSentinel marks a record without an image reference. The value is
// part of the exchange format with the exam office and must not change.
const NoImageSentinel = "no image"

// Test types derived during normalization.
const (
	TestTypeDialog = 0
	TestTypeImage  = 1
)

// ExamRecord is one row of the uploaded exam table after normalization.
// (ExamID, QuestionID) is unique within a batch; slice order is the
// upload order and is significant for deterministic reporting.
type ExamRecord struct {
	ExamID           string
	QuestionID       string
	QuestionNumber   int
	QuestionText     string
	Transcription    string
	RawTranscription string
	ImageRef         string
	TestType         int
	Similarity       float64
	SimilaritySet    bool
	Score            int
	Scored           bool
}

// HasImage reports whether the record carries a real image reference.
func (r ExamRecord) HasImage() bool {
	return r.ImageRef != "" && r.ImageRef != NoImageSentinel
}

// MaxScore returns the grading ceiling for a question number.
// The table is a domain constant fixed by the exam methodology.
func MaxScore(questionNumber int) int {
	switch questionNumber {
	case 1, 3:
		return 1
	case 2, 4:
		return 2
	default:
		return 2
	}
}

type JobStatus string

const (
	JobQueued     JobStatus = "queued"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// Terminal reports whether no further status transitions are allowed.
func (s JobStatus) Terminal() bool { return s == JobCompleted || s == JobFailed }

// Job tracks one batch-processing request through its lifecycle.
// Only the orchestrator mutates a job after creation; once the status is
// terminal the stored job is immutable.
type Job struct {
	ID         string
	Filename   string
	Status     JobStatus
	Error      string
	ResultPath string
	CSVPath    string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// JobPatch carries the fields merged into a job by JobStore.Update.
// Nil pointers leave the stored value unchanged.
type JobPatch struct {
	Status     *JobStatus
	Error      *string
	ResultPath *string
	CSVPath    *string
}

// HistoryEntry is the immutable snapshot appended when a job completes.
type HistoryEntry struct {
	ID           string    `json:"id"`
	UserID       int       `json:"userId"`
	Filename     string    `json:"filename"`
	UploadedAt   time.Time `json:"uploadedAt"`
	Status       string    `json:"status"`
	TotalRecords int       `json:"totalRecords"`
	AverageScore float64   `json:"averageScore"`
	ResultsURL   string    `json:"resultsUrl"`
}

// Checkpoint is a best-effort diagnostic snapshot of pipeline progress.
// It is never required for correctness of the final result.
type Checkpoint struct {
	ID        string    `json:"id"`
	JobID     string    `json:"jobId"`
	Stage     string    `json:"stage"`
	Rows      int       `json:"rows"`
	Timestamp time.Time `json:"timestamp"`
}

// Summary aggregates the outcome of one completed batch.
type Summary struct {
	TotalRecords int
	AverageScore float64
	// Distribution reports only the score=1 and score=2 buckets; the
	// score=0 bucket is deliberately not broken out (legacy UI contract).
	Distribution map[string]int
	Records      []RecordResult
}

// RecordResult is the per-record projection included in the JSON summary.
type RecordResult struct {
	ExamID        string `json:"examId"`
	QuestionID    string `json:"questionId"`
	Score         int    `json:"score"`
	Transcription string `json:"transcription"`
}

// Ports

// JobStore is the thread-safe job registry. Update is a merge: absent
// patch fields keep their stored values. Updating an unknown id or a
// terminal job is a no-op.
type JobStore interface {
	Create(filename string) Job
	Update(id string, patch JobPatch)
	Get(id string) (Job, bool)
}

// Captioner produces a natural-language description of an image.
type Captioner interface {
	Caption(ctx context.Context, image []byte, mime, prompt string) (string, error)
}

// Rewriter compresses a transcription into a pure image description.
type Rewriter interface {
	Rewrite(ctx context.Context, prompt string) (string, error)
}

// Scorer generates a short deterministic continuation of a grading prompt.
type Scorer interface {
	Complete(ctx context.Context, prompt string, maxTokens int) (string, error)
}

// Embedder returns sentence-embedding vectors for the given texts.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float64, error)
}

// ImageFetcher downloads and decode-validates an image reference.
type ImageFetcher interface {
	Fetch(ctx context.Context, url string) (data []byte, mime string, err error)
}

// HistoryStore is the append-only record of completed jobs,
// most-recent-first.
type HistoryStore interface {
	Append(entry HistoryEntry) error
	List() ([]HistoryEntry, error)
}

// CheckpointStore persists diagnostic checkpoints. Write failures are
// logged by callers and never escalated.
type CheckpointStore interface {
	Write(cp Checkpoint) error
}

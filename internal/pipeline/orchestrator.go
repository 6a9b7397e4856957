package pipeline

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/fairyhunter13/ai-exam-grader/internal/domain"
	"github.com/fairyhunter13/ai-exam-grader/internal/ingest"
	"github.com/fairyhunter13/ai-exam-grader/internal/observability"
)

// Checkpoint stage names. Part of the on-disk diagnostic format.
const (
	StageRecordsLoaded      = "records_loaded"
	StageInferenceCompleted = "inference_completed"
	StageError              = "error"
)

// ArtifactWriter persists the per-job result artifacts.
type ArtifactWriter interface {
	WriteSummary(jobID string, payload any) (string, error)
	WriteCSV(jobID string, records []domain.ExamRecord) (string, error)
}

// Orchestrator drives one job through the grading pipeline: parse,
// caption, rewrite, similarity, score, aggregate, persist. It owns all
// job status transitions after submission.
type Orchestrator struct {
	Jobs        domain.JobStore
	Artifacts   ArtifactWriter
	History     domain.HistoryStore
	Checkpoints domain.CheckpointStore

	Caption    CaptionStage
	Rewrite    RewriteStage
	Similarity SimilarityStage
	Score      ScoreStage

	DetailLimit int
}

// Run processes one uploaded table end to end. It is designed to be
// launched in a goroutine per job; every exit path leaves the job in a
// terminal state. The job store lock is never held across a
// collaborator call.
func (o *Orchestrator) Run(ctx context.Context, job domain.Job, raw []byte, ext string) {
	ctx, span := otel.Tracer("pipeline").Start(ctx, "Orchestrator.Run",
		trace.WithAttributes(attribute.String("job.id", job.ID)))
	defer span.End()

	observability.JobsProcessing.Inc()
	defer observability.JobsProcessing.Dec()

	started := time.Now()
	log := slog.With(slog.String("jobId", job.ID), slog.String("filename", job.Filename))
	log.Info("job started")

	o.setStatus(job.ID, domain.JobProcessing)

	records, err := o.parse(raw, ext)
	if err != nil {
		o.fail(job.ID, err, log)
		return
	}
	o.checkpoint(job.ID, StageRecordsLoaded, len(records), log)
	log.Info("records loaded", slog.Int("count", len(records)))

	links := UniqueLinks(records)
	captions := o.timed("caption", func() map[string]string {
		return o.Caption.Run(ctx, links)
	})
	log.Info("captions generated", slog.Int("links", len(links)))

	o.timedVoid("rewrite", func() { o.Rewrite.Run(ctx, records) })
	o.timedVoid("similarity", func() { o.Similarity.Run(ctx, records, captions) })

	scoreStart := time.Now()
	if err := o.Score.Run(ctx, records); err != nil {
		o.fail(job.ID, err, log)
		return
	}
	observability.StageDuration.WithLabelValues("score").Observe(time.Since(scoreStart).Seconds())
	o.checkpoint(job.ID, StageInferenceCompleted, len(records), log)

	summary := Summarize(records, o.DetailLimit)
	o.persist(job, records, captions, summary, log)

	observability.JobsCompletedTotal.Inc()
	log.Info("job completed",
		slog.Int("totalRecords", summary.TotalRecords),
		slog.Float64("averageScore", summary.AverageScore),
		slog.Duration("elapsed", time.Since(started)))
}

func (o *Orchestrator) parse(raw []byte, ext string) ([]domain.ExamRecord, error) {
	switch strings.ToLower(ext) {
	case ".xlsx":
		return ingest.ParseXLSX(raw)
	default:
		return ingest.ParseCSV(raw)
	}
}

// persist writes the artifacts and flips the job to completed. Artifact
// write failures degrade the job (no download link) but never fail it:
// the grades exist and the poll payload can still carry them.
func (o *Orchestrator) persist(job domain.Job, records []domain.ExamRecord, captions map[string]string, summary domain.Summary, log *slog.Logger) {
	patch := domain.JobPatch{}
	status := domain.JobCompleted
	patch.Status = &status

	payload := summaryPayload(job, summary, captions)
	if path, err := o.Artifacts.WriteSummary(job.ID, payload); err != nil {
		log.Error("summary write failed", slog.Any("error", err))
	} else {
		patch.ResultPath = &path
	}
	if path, err := o.Artifacts.WriteCSV(job.ID, records); err != nil {
		log.Error("csv export failed", slog.Any("error", err))
	} else {
		patch.CSVPath = &path
	}

	if err := o.History.Append(domain.HistoryEntry{
		ID:           job.ID,
		UserID:       0,
		Filename:     job.Filename,
		UploadedAt:   job.CreatedAt,
		Status:       string(domain.JobCompleted),
		TotalRecords: summary.TotalRecords,
		AverageScore: summary.AverageScore,
		ResultsURL:   "/results/" + job.ID,
	}); err != nil {
		log.Error("history append failed", slog.Any("error", err))
	}

	o.Jobs.Update(job.ID, patch)
}

// summaryPayload is the JSON document written for a completed job. The
// field names are a wire contract with the results UI.
func summaryPayload(job domain.Job, summary domain.Summary, captions map[string]string) map[string]any {
	payload := map[string]any{
		"id":           job.ID,
		"filename":     job.Filename,
		"status":       string(domain.JobCompleted),
		"totalRecords": summary.TotalRecords,
		"averageScore": summary.AverageScore,
		"distribution": summary.Distribution,
		"completedAt":  time.Now().UTC().Format(time.RFC3339),
	}
	if summary.Records != nil {
		payload["records"] = summary.Records
	}
	if len(captions) > 0 {
		payload["captions"] = captions
	}
	return payload
}

func (o *Orchestrator) setStatus(jobID string, status domain.JobStatus) {
	o.Jobs.Update(jobID, domain.JobPatch{Status: &status})
}

func (o *Orchestrator) fail(jobID string, err error, log *slog.Logger) {
	log.Error("job failed", slog.Any("error", err))
	observability.JobsFailedTotal.Inc()
	o.checkpoint(jobID, StageError, 0, log)
	status := domain.JobFailed
	msg := err.Error()
	o.Jobs.Update(jobID, domain.JobPatch{Status: &status, Error: &msg})
}

// checkpoint writes a diagnostic snapshot; failures are logged and
// swallowed since checkpoints never gate the result.
func (o *Orchestrator) checkpoint(jobID, stage string, rows int, log *slog.Logger) {
	cp := domain.Checkpoint{
		JobID:     jobID,
		Stage:     stage,
		Rows:      rows,
		Timestamp: time.Now().UTC(),
	}
	if err := o.Checkpoints.Write(cp); err != nil {
		log.Warn("checkpoint write failed", slog.String("stage", stage), slog.Any("error", err))
	}
}

func (o *Orchestrator) timed(stage string, fn func() map[string]string) map[string]string {
	start := time.Now()
	out := fn()
	observability.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
	return out
}

func (o *Orchestrator) timedVoid(stage string, fn func()) {
	start := time.Now()
	fn()
	observability.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

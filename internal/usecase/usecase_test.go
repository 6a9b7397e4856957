package usecase_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/ai-exam-grader/internal/adapter/artifact"
	"github.com/fairyhunter13/ai-exam-grader/internal/adapter/store/memory"
	"github.com/fairyhunter13/ai-exam-grader/internal/domain"
	"github.com/fairyhunter13/ai-exam-grader/internal/phrase"
	"github.com/fairyhunter13/ai-exam-grader/internal/pipeline"
	"github.com/fairyhunter13/ai-exam-grader/internal/usecase"
)

// stubAI satisfies every model port with canned answers.
type stubAI struct{}

func (stubAI) Fetch(_ context.Context, _ string) ([]byte, string, error) {
	return []byte("png"), "image/png", nil
}
func (stubAI) Caption(_ context.Context, _ []byte, _, _ string) (string, error) {
	return "На картинке видна улица", nil
}
func (stubAI) Rewrite(_ context.Context, _ string) (string, error) {
	return "описание картинки", nil
}
func (stubAI) Complete(_ context.Context, _ string, _ int) (string, error) {
	return "1", nil
}
func (stubAI) Embed(_ context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i := range out {
		out[i] = []float64{1, 0}
	}
	return out, nil
}

type fixture struct {
	submit  *usecase.SubmitService
	result  *usecase.ResultService
	history *usecase.HistoryService
	jobs    *memory.JobStore
	store   *artifact.Store
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	dir := t.TempDir()
	store, err := artifact.NewStore(filepath.Join(dir, "storage"), filepath.Join(dir, "data"))
	require.NoError(t, err)
	jobs := memory.NewJobStore()
	ai := stubAI{}
	orch := &pipeline.Orchestrator{
		Jobs:        jobs,
		Artifacts:   store,
		History:     store,
		Checkpoints: store,
		Caption: pipeline.CaptionStage{
			Fetcher: ai, Captioner: ai,
			Phrases: phrase.Fixed("На картинке видна"), MaxChars: 512,
		},
		Rewrite:    pipeline.RewriteStage{Rewriter: ai},
		Similarity: pipeline.SimilarityStage{Embedder: ai},
		Score: pipeline.ScoreStage{
			Scorer:    ai,
			Prompts:   pipeline.PromptBuilder{Rubric: phrase.DefaultRubric, MaxChars: 4096},
			MaxTokens: 2,
		},
		DetailLimit: 1000,
	}
	return fixture{
		submit:  &usecase.SubmitService{Jobs: jobs, Uploads: store, Orch: orch},
		result:  &usecase.ResultService{Jobs: jobs, Summaries: store},
		history: &usecase.HistoryService{Store: store},
		jobs:    jobs,
		store:   store,
	}
}

const sampleCSV = "Id экзамена;Id вопроса;№ вопроса;Текст вопроса;Транскрибация ответа;Картинка из вопроса\n" +
	"e1;q1;1;Опишите картинку;на картинке дом;http://img/1.png\n" +
	"e1;q2;3;Спросите дорогу;скажите где вокзал;\n"

func waitTerminal(t *testing.T, jobs *memory.JobStore, id string) domain.Job {
	t.Helper()
	var job domain.Job
	require.Eventually(t, func() bool {
		j, ok := jobs.Get(id)
		if !ok {
			return false
		}
		job = j
		return j.Status.Terminal()
	}, 5*time.Second, 10*time.Millisecond)
	return job
}

func TestSubmit_RejectsUnsupportedExtension(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	_, err := f.submit.Submit(context.Background(), "exam.pdf", []byte("data"))
	require.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestSubmit_RejectsEmptyFile(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	_, err := f.submit.Submit(context.Background(), "exam.csv", nil)
	require.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestSubmit_RejectsBinaryRenamedToCSV(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	png := []byte("\x89PNG\r\n\x1a\n00000000")
	_, err := f.submit.Submit(context.Background(), "exam.csv", png)
	require.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestSubmit_ProcessesCSVToCompletion(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	job, err := f.submit.Submit(context.Background(), "exam.csv", []byte(sampleCSV))
	require.NoError(t, err)
	assert.Equal(t, domain.JobQueued, job.Status)

	done := waitTerminal(t, f.jobs, job.ID)
	require.Equal(t, domain.JobCompleted, done.Status)
	assert.NotEmpty(t, done.ResultPath)
	assert.NotEmpty(t, done.CSVPath)
}

func TestPoll_UnknownJob(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	_, err := f.result.Poll("result-missing00")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPoll_RunningJobIsMinimal(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	job := f.jobs.Create("exam.csv")

	payload, err := f.result.Poll(job.ID)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"id": job.ID, "status": "queued"}, payload)
}

func TestPoll_FailedJobCarriesError(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	job := f.jobs.Create("exam.csv")
	status := domain.JobFailed
	msg := "schema invalid: required columns not found"
	f.jobs.Update(job.ID, domain.JobPatch{Status: &status, Error: &msg})

	payload, err := f.result.Poll(job.ID)
	require.NoError(t, err)
	assert.Equal(t, "failed", payload["status"])
	assert.Equal(t, msg, payload["error"])
}

func TestPoll_CompletedJobCarriesSummaryAndDownload(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	job, err := f.submit.Submit(context.Background(), "exam.csv", []byte(sampleCSV))
	require.NoError(t, err)
	waitTerminal(t, f.jobs, job.ID)

	payload, err := f.result.Poll(job.ID)
	require.NoError(t, err)
	assert.Equal(t, job.ID, payload["id"])
	assert.Equal(t, "completed", payload["status"])
	assert.Equal(t, float64(2), payload["totalRecords"])
	assert.Equal(t, "/api/results/"+job.ID+"/download", payload["downloadUrl"])
}

func TestDownload(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	_, _, err := f.result.Download("result-missing00")
	require.ErrorIs(t, err, domain.ErrNotFound)

	job := f.jobs.Create("exam.csv")
	_, _, err = f.result.Download(job.ID)
	require.ErrorIs(t, err, domain.ErrNotReady)

	submitted, err := f.submit.Submit(context.Background(), "exam.csv", []byte(sampleCSV))
	require.NoError(t, err)
	waitTerminal(t, f.jobs, submitted.ID)

	path, filename, err := f.result.Download(submitted.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, path)
	assert.Equal(t, submitted.ID+".csv", filename)
}

func TestDownload_CompletedWithoutExport(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	job := f.jobs.Create("exam.csv")
	status := domain.JobCompleted
	f.jobs.Update(job.ID, domain.JobPatch{Status: &status})

	_, _, err := f.result.Download(job.ID)
	require.ErrorIs(t, err, domain.ErrArtifactMissing)
	assert.False(t, errors.Is(err, domain.ErrNotReady))
}

func TestHistory_ListAfterCompletion(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	entries, err := f.history.List()
	require.NoError(t, err)
	assert.Empty(t, entries)

	job, err := f.submit.Submit(context.Background(), "exam.csv", []byte(sampleCSV))
	require.NoError(t, err)
	waitTerminal(t, f.jobs, job.ID)

	entries, err = f.history.List()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, job.ID, entries[0].ID)
	assert.Equal(t, "exam.csv", entries[0].Filename)
	assert.Equal(t, 2, entries[0].TotalRecords)
}

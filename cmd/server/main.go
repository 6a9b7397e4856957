// Command server starts the exam grading HTTP server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fairyhunter13/ai-exam-grader/internal/adapter/ai"
	"github.com/fairyhunter13/ai-exam-grader/internal/adapter/artifact"
	"github.com/fairyhunter13/ai-exam-grader/internal/adapter/httpserver"
	"github.com/fairyhunter13/ai-exam-grader/internal/adapter/imagefetch"
	"github.com/fairyhunter13/ai-exam-grader/internal/adapter/store/memory"
	"github.com/fairyhunter13/ai-exam-grader/internal/app"
	"github.com/fairyhunter13/ai-exam-grader/internal/config"
	"github.com/fairyhunter13/ai-exam-grader/internal/observability"
	"github.com/fairyhunter13/ai-exam-grader/internal/phrase"
	"github.com/fairyhunter13/ai-exam-grader/internal/pipeline"
	"github.com/fairyhunter13/ai-exam-grader/internal/usecase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := observability.SetupLogger(cfg)
	slog.SetDefault(logger)

	// Register all Prometheus metrics once per process so that /metrics
	// exposes HTTP, inference, and job instrumentation.
	observability.InitMetrics()

	shutdownTracer, err := observability.SetupTracing(cfg)
	if err != nil {
		slog.Error("failed to setup tracing", slog.Any("error", err))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	// Persistence: job artifacts, history log and checkpoints on disk;
	// the job registry itself is in-memory.
	store, err := artifact.NewStore(cfg.StorageDir, cfg.DataDir)
	if err != nil {
		slog.Error("storage init failed", slog.Any("error", err))
		os.Exit(1)
	}
	jobs := memory.NewJobStore()

	// Model collaborators: one shared client against the inference server.
	aicl := ai.New(cfg)
	fetcher := imagefetch.New(cfg.ImageFetchTimeout, cfg.ImageMaxBytes)

	prompts := phrase.Defaults()
	if cfg.PromptsFile != "" {
		prompts, err = phrase.LoadFile(cfg.PromptsFile)
		if err != nil {
			slog.Error("prompts file load failed", slog.String("path", cfg.PromptsFile), slog.Any("error", err))
			os.Exit(1)
		}
		slog.Info("prompts file loaded", slog.String("path", cfg.PromptsFile))
	}
	leadIns := phrase.NewRandomSource(prompts.LeadIns, time.Now().UnixNano())

	orch := &pipeline.Orchestrator{
		Jobs:        jobs,
		Artifacts:   store,
		History:     store,
		Checkpoints: store,
		Caption: pipeline.CaptionStage{
			Fetcher:   fetcher,
			Captioner: aicl,
			Phrases:   leadIns,
			MaxChars:  cfg.CaptionMaxChars,
		},
		Rewrite:    pipeline.RewriteStage{Rewriter: aicl},
		Similarity: pipeline.SimilarityStage{Embedder: aicl},
		Score: pipeline.ScoreStage{
			Scorer:    aicl,
			Prompts:   pipeline.PromptBuilder{Rubric: prompts.Rubric, MaxChars: cfg.MaxPromptChars},
			MaxTokens: cfg.ScoreMaxTokens,
		},
		DetailLimit: cfg.ResultDetailLimit,
	}

	submitSvc := &usecase.SubmitService{Jobs: jobs, Uploads: store, Orch: orch}
	resultSvc := &usecase.ResultService{Jobs: jobs, Summaries: store}
	historySvc := &usecase.HistoryService{Store: store}

	srv := httpserver.NewServer(cfg, submitSvc, resultSvc, historySvc, aicl.Ping)
	handler := app.BuildRouter(cfg, srv)

	srvHTTP := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadTimeout:       cfg.HTTPReadTimeout,
		WriteTimeout:      cfg.HTTPWriteTimeout,
		IdleTimeout:       cfg.HTTPIdleTimeout,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server starting", slog.Int("port", cfg.Port))
		errCh <- srvHTTP.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("shutdown signal received", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", slog.Any("error", err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ServerShutdownTimeout)
	defer cancel()
	_ = srvHTTP.Shutdown(shutdownCtx)
}

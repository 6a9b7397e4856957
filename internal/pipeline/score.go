package pipeline

import (
	"context"
	"fmt"

	"github.com/fairyhunter13/ai-exam-grader/internal/domain"
	"github.com/fairyhunter13/ai-exam-grader/internal/observability"
)

// ScoreStage runs the prompt/score engine over every record. Unlike the
// caption and rewrite stages, a scorer call failure here is fatal to the
// job: a batch with silently unscored records would be reported as
// graded, which is worse than failing loudly.
type ScoreStage struct {
	Scorer    domain.Scorer
	Prompts   PromptBuilder
	MaxTokens int
}

// Run scores records in place, in upload order.
func (s ScoreStage) Run(ctx context.Context, records []domain.ExamRecord) error {
	for i := range records {
		r := &records[i]
		completion, err := s.Scorer.Complete(ctx, s.Prompts.Build(*r), s.MaxTokens)
		if err != nil {
			return fmt.Errorf("op=pipeline.Score exam=%s question=%s: %w", r.ExamID, r.QuestionID, err)
		}
		r.Score = ExtractScore(completion, r.QuestionNumber)
		r.Scored = true
		observability.ScoreHistogram.Observe(float64(r.Score))
	}
	return nil
}

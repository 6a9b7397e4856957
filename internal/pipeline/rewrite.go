package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/fairyhunter13/ai-exam-grader/internal/domain"
	"github.com/fairyhunter13/ai-exam-grader/internal/observability"
)

const rewritePromptTemplate = "На вход тебе дана запись экзамена по русскому языку — описание картинки. " +
	"В качестве ответа верни ТОЛЬКО описание самой картинки. Это очень важно для моей карьеры.\n" +
	"Транскрибация: %s"

// RewriteStage compresses the transcriptions of picture-description
// records into pure image descriptions. The original transcription is
// kept in RawTranscription for audit; Transcription is overwritten.
type RewriteStage struct {
	Rewriter domain.Rewriter
}

// Run rewrites records in place, in upload order. A failed rewrite
// leaves the record's transcription as-is and moves on.
func (s RewriteStage) Run(ctx context.Context, records []domain.ExamRecord) {
	for i := range records {
		r := &records[i]
		if r.TestType != domain.TestTypeImage || r.Transcription == "" {
			continue
		}
		rewritten, err := s.Rewriter.Rewrite(ctx, fmt.Sprintf(rewritePromptTemplate, r.Transcription))
		if err != nil {
			slog.Warn("transcription rewrite failed",
				slog.String("examId", r.ExamID),
				slog.String("questionId", r.QuestionID),
				slog.Any("error", err))
			observability.StageItemFailures.WithLabelValues("rewrite").Inc()
			continue
		}
		if rewritten == "" {
			continue
		}
		r.Transcription = rewritten
	}
}

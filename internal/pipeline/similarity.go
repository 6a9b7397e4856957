package pipeline

import (
	"context"
	"log/slog"
	"math"

	"github.com/fairyhunter13/ai-exam-grader/internal/domain"
	"github.com/fairyhunter13/ai-exam-grader/internal/observability"
)

// SimilarityStage computes the cosine similarity between each rewritten
// transcription and the caption of its image. Only picture-description
// records with a caption get a similarity; everyone else keeps
// SimilaritySet=false and the scoring prompt omits the similarity line.
// Error-placeholder captions are embedded like any other text: the
// resulting low similarity is the signal the grader sees for an
// unreachable image.
type SimilarityStage struct {
	Embedder domain.Embedder
}

// Run annotates records in place. A failed embedding call is isolated
// to the record: similarity simply stays unset.
func (s SimilarityStage) Run(ctx context.Context, records []domain.ExamRecord, captions map[string]string) {
	for i := range records {
		r := &records[i]
		if r.TestType != domain.TestTypeImage || !r.HasImage() {
			continue
		}
		caption, ok := captions[r.ImageRef]
		if !ok || caption == "" {
			continue
		}
		vecs, err := s.Embedder.Embed(ctx, []string{r.Transcription, caption})
		if err != nil || len(vecs) != 2 {
			slog.Warn("similarity embedding failed",
				slog.String("examId", r.ExamID),
				slog.String("questionId", r.QuestionID),
				slog.Any("error", err))
			observability.StageItemFailures.WithLabelValues("similarity").Inc()
			continue
		}
		r.Similarity = Cosine(vecs[0], vecs[1])
		r.SimilaritySet = true
		observability.SimilarityHistogram.Observe(r.Similarity)
	}
}

// Cosine returns the cosine similarity of two vectors, 0 for mismatched
// lengths or zero-magnitude inputs.
func Cosine(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

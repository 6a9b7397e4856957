package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/fairyhunter13/ai-exam-grader/internal/domain"
	"github.com/fairyhunter13/ai-exam-grader/internal/observability"
	"github.com/fairyhunter13/ai-exam-grader/internal/phrase"
)

// ErrorCaption renders the placeholder stored when an image cannot be
// fetched or captioned. The bracketed format is part of the summary
// payload contract; downstream consumers match on the prefix.
func ErrorCaption(reason string) string {
	return fmt.Sprintf("[Ошибка загрузки: %s]", reason)
}

// IsErrorCaption reports whether caption is an error placeholder.
func IsErrorCaption(caption string) bool {
	return strings.HasPrefix(caption, "[Ошибка загрузки:")
}

// CaptionStage produces one caption per distinct image reference.
// Per-link failures are isolated: the failing link gets an error
// placeholder and the stage never returns an error.
type CaptionStage struct {
	Fetcher   domain.ImageFetcher
	Captioner domain.Captioner
	Phrases   phrase.Source
	MaxChars  int
}

func (s CaptionStage) prompt() string {
	return fmt.Sprintf(
		"Опиши изображение (общая длина текста - МЕНЬШЕ %d символов). Начинай описание с любым из этих слов: %s",
		s.MaxChars, s.Phrases.LeadIn(),
	)
}

// Run captions every link and returns the link->caption map. Records
// sharing a reference share the one caption, so N duplicate links cost
// a single fetch and a single model call.
func (s CaptionStage) Run(ctx context.Context, links []string) map[string]string {
	captions := make(map[string]string, len(links))
	for _, link := range links {
		data, mime, err := s.Fetcher.Fetch(ctx, link)
		if err != nil {
			slog.Warn("image fetch failed", slog.String("link", link), slog.Any("error", err))
			observability.StageItemFailures.WithLabelValues("caption").Inc()
			captions[link] = ErrorCaption(err.Error())
			continue
		}
		caption, err := s.Captioner.Caption(ctx, data, mime, s.prompt())
		if err != nil {
			slog.Warn("caption generation failed", slog.String("link", link), slog.Any("error", err))
			observability.StageItemFailures.WithLabelValues("caption").Inc()
			captions[link] = ErrorCaption(err.Error())
			continue
		}
		captions[link] = caption
	}
	return captions
}

package pipeline

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/fairyhunter13/ai-exam-grader/internal/domain"
	"github.com/fairyhunter13/ai-exam-grader/pkg/textx"
)

// PromptBuilder renders grading prompts for the fine-tuned scorer.
// The wording is frozen: the model was trained against this exact
// template and rephrasing degrades grading quality.
type PromptBuilder struct {
	Rubric   []string
	MaxChars int
}

func taskTypeLabel(testType int) string {
	if testType == domain.TestTypeImage {
		return "описание картинки"
	}
	return "диалог"
}

// Build renders the grading prompt for one record. The similarity line
// appears only for picture-description records with a computed
// similarity. When the prompt would exceed MaxChars runes, the
// candidate answer is truncated; the surrounding template, including
// the trailing score cue, always survives intact.
func (b PromptBuilder) Build(r domain.ExamRecord) string {
	maxScore := domain.MaxScore(r.QuestionNumber)

	var sb strings.Builder
	sb.WriteString("Ты — эксперт по оценке устных ответов на экзамене по русскому языку для иностранцев.\n")
	sb.WriteString("Критерии оценки:\n")
	for i, criterion := range b.Rubric {
		fmt.Fprintf(&sb, "%d) %s\n", i+1, criterion)
	}
	sb.WriteString("Оцени ответ по строгой шкале.\n\n")
	sb.WriteString("Контекст:\n")
	fmt.Fprintf(&sb, "- № вопроса: %d\n", r.QuestionNumber)
	fmt.Fprintf(&sb, "- Тип задания: %s\n", taskTypeLabel(r.TestType))
	if r.TestType == domain.TestTypeImage && r.SimilaritySet {
		fmt.Fprintf(&sb, "- Схожесть описания с изображением: %.2f\n", r.Similarity)
	}

	tail := fmt.Sprintf("- Вопрос: %s\n- Ответ кандидата: %s\n\nОценка (целое число от 0 до %d):",
		r.QuestionText, r.Transcription, maxScore)

	head := sb.String()
	total := utf8.RuneCountInString(head) + utf8.RuneCountInString(tail)
	if b.MaxChars > 0 && total > b.MaxChars {
		over := total - b.MaxChars
		answer := []rune(r.Transcription)
		if over >= len(answer) {
			answer = nil
		} else {
			answer = answer[:len(answer)-over]
		}
		tail = fmt.Sprintf("- Вопрос: %s\n- Ответ кандидата: %s\n\nОценка (целое число от 0 до %d):",
			r.QuestionText, string(answer), maxScore)
	}
	return head + tail
}

// ExtractScore parses the model completion into a final grade: the
// first run of digits, defaulting to 0 when absent, clamped to
// [0, MaxScore(questionNumber)]. This clamp is the sole defense against
// malformed or out-of-range model output, so it stays unconditional.
func ExtractScore(completion string, questionNumber int) int {
	digits := textx.FirstDigits(completion)
	if digits == "" {
		return 0
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0
	}
	if n < 0 {
		return 0
	}
	if ceiling := domain.MaxScore(questionNumber); n > ceiling {
		return ceiling
	}
	return n
}

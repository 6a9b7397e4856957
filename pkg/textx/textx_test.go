package textx_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fairyhunter13/ai-exam-grader/pkg/textx"
)

func TestSanitizeText(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "привет", textx.SanitizeText("  привет\x00 "))
	assert.Equal(t, "a\nb", textx.SanitizeText("a\nb"))
}

func TestFilterQuestionText(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"plain cyrillic untouched", "Расскажите о себе", "Расскажите о себе"},
		{"html stripped", "<p>Опишите <b>картинку</b></p>", "Опишите картинку"},
		{"latin removed", "Вопрос question 1", "Вопрос  1"},
		{"mixed", "<div>Задание task №2</div>", "Задание  №2"},
		{"empty", "", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, textx.FilterQuestionText(tc.in))
		})
	}
}

func TestFilterQuestionText_Idempotent(t *testing.T) {
	t.Parallel()
	in := "<p>Вопрос question №1</p>"
	once := textx.FilterQuestionText(in)
	assert.Equal(t, once, textx.FilterQuestionText(once))
}

func TestFirstDigits(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "2", textx.FirstDigits("Оценка: 2 балла"))
	assert.Equal(t, "10", textx.FirstDigits("10"))
	assert.Equal(t, "1", textx.FirstDigits("x1y2"))
	assert.Equal(t, "", textx.FirstDigits("нет цифр"))
	assert.Equal(t, "", textx.FirstDigits(""))
}

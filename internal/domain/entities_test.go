package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fairyhunter13/ai-exam-grader/internal/domain"
)

func TestMaxScore_Table(t *testing.T) {
	t.Parallel()
	cases := []struct {
		questionNumber int
		want           int
	}{
		{1, 1},
		{2, 2},
		{3, 1},
		{4, 2},
		{0, 2},
		{5, 2},
		{99, 2},
		{-1, 2},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, domain.MaxScore(tc.questionNumber), "question %d", tc.questionNumber)
	}
}

func TestExamRecord_HasImage(t *testing.T) {
	t.Parallel()
	assert.False(t, domain.ExamRecord{ImageRef: ""}.HasImage())
	assert.False(t, domain.ExamRecord{ImageRef: domain.NoImageSentinel}.HasImage())
	assert.True(t, domain.ExamRecord{ImageRef: "https://img.example/1.jpg"}.HasImage())
}

func TestJobStatus_Terminal(t *testing.T) {
	t.Parallel()
	assert.False(t, domain.JobQueued.Terminal())
	assert.False(t, domain.JobProcessing.Terminal())
	assert.True(t, domain.JobCompleted.Terminal())
	assert.True(t, domain.JobFailed.Terminal())
}

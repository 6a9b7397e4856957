package pipeline

import "github.com/fairyhunter13/ai-exam-grader/internal/domain"

// Summarize aggregates scored records into the result summary.
//
// The distribution reports only the score=1 and score=2 buckets; zeroes
// are derivable from the total and the UI contract never showed them.
// The per-record projection is dropped entirely above detailLimit to
// keep large summaries bounded; the CSV export stays complete.
func Summarize(records []domain.ExamRecord, detailLimit int) domain.Summary {
	sum := domain.Summary{
		TotalRecords: len(records),
		Distribution: map[string]int{"score1": 0, "score2": 0},
	}
	total := 0
	for _, r := range records {
		total += r.Score
		switch r.Score {
		case 1:
			sum.Distribution["score1"]++
		case 2:
			sum.Distribution["score2"]++
		}
	}
	if len(records) > 0 {
		sum.AverageScore = float64(total) / float64(len(records))
	}
	if detailLimit <= 0 || len(records) <= detailLimit {
		sum.Records = make([]domain.RecordResult, 0, len(records))
		for _, r := range records {
			sum.Records = append(sum.Records, domain.RecordResult{
				ExamID:        r.ExamID,
				QuestionID:    r.QuestionID,
				Score:         r.Score,
				Transcription: r.Transcription,
			})
		}
	}
	return sum
}

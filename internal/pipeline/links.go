// Package pipeline implements the grading pipeline: feature derivation
// stages, the prompt/score engine, result aggregation, and the
// background orchestrator that runs them in order for one job.
package pipeline

import "github.com/fairyhunter13/ai-exam-grader/internal/domain"

// UniqueLinks returns the distinct non-sentinel image references in
// first-seen order across all records. Caption generation and the
// randomized phrasing both draw from this exact sequence, so two runs
// over the same input visit links in the same order.
func UniqueLinks(records []domain.ExamRecord) []string {
	seen := make(map[string]struct{})
	var links []string
	for _, r := range records {
		if !r.HasImage() {
			continue
		}
		if _, ok := seen[r.ImageRef]; ok {
			continue
		}
		seen[r.ImageRef] = struct{}{}
		links = append(links, r.ImageRef)
	}
	return links
}

package usecase

import (
	"fmt"

	"github.com/fairyhunter13/ai-exam-grader/internal/domain"
)

// HistoryService lists completed jobs, most-recent-first.
type HistoryService struct {
	Store domain.HistoryStore
}

// List returns the history entries.
func (s *HistoryService) List() ([]domain.HistoryEntry, error) {
	entries, err := s.Store.List()
	if err != nil {
		return nil, fmt.Errorf("op=usecase.History: %w", err)
	}
	if entries == nil {
		entries = []domain.HistoryEntry{}
	}
	return entries, nil
}

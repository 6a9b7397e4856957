// Package artifact persists per-job artifacts and the shared history log.
//
// Layout mirrors the operator conventions: uploads and results under the
// storage dir, the append-only history log and checkpoints under the data
// dir. Artifacts of a finished job are never rewritten.
package artifact

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/fairyhunter13/ai-exam-grader/internal/domain"
)

// Store reads and writes job artifacts on the local filesystem.
type Store struct {
	uploadsDir     string
	resultsDir     string
	historyPath    string
	checkpointsDir string

	// serializes read-modify-write cycles on the history log
	historyMu sync.Mutex

	entropyMu sync.Mutex
	entropy   *ulid.MonotonicEntropy
}

// NewStore creates the storage layout under storageDir and dataDir.
func NewStore(storageDir, dataDir string) (*Store, error) {
	s := &Store{
		uploadsDir:     filepath.Join(storageDir, "uploads"),
		resultsDir:     filepath.Join(storageDir, "results"),
		historyPath:    filepath.Join(dataDir, "history.json"),
		checkpointsDir: filepath.Join(dataDir, "checkpoints"),
		entropy:        ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0), //nolint:gosec // Weak random is sufficient for ULID entropy.
	}
	for _, dir := range []string{s.uploadsDir, s.resultsDir, filepath.Dir(s.historyPath), s.checkpointsDir} {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("op=artifact.NewStore: %w", err)
		}
	}
	return s, nil
}

// SaveUpload persists the original upload before any processing starts,
// so a destructive pipeline run can always be replayed from the source.
func (s *Store) SaveUpload(jobID, ext string, data []byte) (string, error) {
	path := filepath.Join(s.uploadsDir, jobID+ext)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("op=artifact.SaveUpload job=%s: %w", jobID, err)
	}
	return path, nil
}

// WriteSummary persists the JSON summary payload for a job.
func (s *Store) WriteSummary(jobID string, payload any) (string, error) {
	path := filepath.Join(s.resultsDir, jobID+".json")
	b, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", fmt.Errorf("op=artifact.WriteSummary job=%s: %w", jobID, err)
	}
	if err := os.WriteFile(path, b, 0o600); err != nil {
		return "", fmt.Errorf("op=artifact.WriteSummary job=%s: %w", jobID, err)
	}
	return path, nil
}

// ReadSummary loads a previously written JSON summary.
func (s *Store) ReadSummary(path string) (map[string]any, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("op=artifact.ReadSummary: %w", err)
	}
	var payload map[string]any
	if err := json.Unmarshal(b, &payload); err != nil {
		return nil, fmt.Errorf("op=artifact.ReadSummary: %w", err)
	}
	return payload, nil
}

// ExportHeaders are the canonical CSV export column names.
var ExportHeaders = []string{"ID экзамена", "ID вопроса", "Оценка экзаменатора"}

// WriteCSV persists the semicolon-delimited export with canonical headers.
func (s *Store) WriteCSV(jobID string, records []domain.ExamRecord) (string, error) {
	path := filepath.Join(s.resultsDir, jobID+".csv")
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("op=artifact.WriteCSV job=%s: %w", jobID, err)
	}
	defer func() { _ = f.Close() }()

	w := csv.NewWriter(f)
	w.Comma = ';'
	if err := w.Write(ExportHeaders); err != nil {
		return "", fmt.Errorf("op=artifact.WriteCSV job=%s: %w", jobID, err)
	}
	for _, r := range records {
		if err := w.Write([]string{r.ExamID, r.QuestionID, fmt.Sprintf("%d", r.Score)}); err != nil {
			return "", fmt.Errorf("op=artifact.WriteCSV job=%s: %w", jobID, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("op=artifact.WriteCSV job=%s: %w", jobID, err)
	}
	return path, nil
}

type historyFile struct {
	History []domain.HistoryEntry `json:"history"`
}

// Append prepends entry to the history log (most-recent-first).
func (s *Store) Append(entry domain.HistoryEntry) error {
	s.historyMu.Lock()
	defer s.historyMu.Unlock()
	hf := s.loadHistory()
	hf.History = append([]domain.HistoryEntry{entry}, hf.History...)
	b, err := json.MarshalIndent(hf, "", "  ")
	if err != nil {
		return fmt.Errorf("op=artifact.Append: %w", err)
	}
	if err := os.WriteFile(s.historyPath, b, 0o600); err != nil {
		return fmt.Errorf("op=artifact.Append: %w", err)
	}
	return nil
}

// List returns the history entries, most-recent-first.
func (s *Store) List() ([]domain.HistoryEntry, error) {
	s.historyMu.Lock()
	defer s.historyMu.Unlock()
	return s.loadHistory().History, nil
}

// loadHistory tolerates a missing or corrupt log: history is an audit
// aid, and an unreadable file must not take submissions down.
func (s *Store) loadHistory() historyFile {
	b, err := os.ReadFile(s.historyPath)
	if err != nil {
		return historyFile{}
	}
	var hf historyFile
	if err := json.Unmarshal(b, &hf); err != nil {
		return historyFile{}
	}
	return hf
}

// Write persists a checkpoint file, assigning a ULID when unset.
func (s *Store) Write(cp domain.Checkpoint) error {
	if cp.ID == "" {
		s.entropyMu.Lock()
		id, err := ulid.New(ulid.Timestamp(time.Now()), s.entropy)
		s.entropyMu.Unlock()
		if err != nil {
			return fmt.Errorf("op=artifact.Write: %w", err)
		}
		cp.ID = id.String()
	}
	b, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return fmt.Errorf("op=artifact.Write checkpoint=%s: %w", cp.ID, err)
	}
	path := filepath.Join(s.checkpointsDir, cp.JobID+"-"+cp.Stage+".json")
	if err := os.WriteFile(path, b, 0o600); err != nil {
		return fmt.Errorf("op=artifact.Write checkpoint=%s: %w", cp.ID, err)
	}
	return nil
}

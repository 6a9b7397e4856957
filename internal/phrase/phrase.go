// Package phrase supplies the caption lead-in phrases and grading rubric.
//
// Phrasing is an explicit seam: the caption stage draws a lead-in from a
// Source instead of calling math/rand inline, so tests can pin the phrase.
// Defaults ship in the binary; a YAML file can override both the phrase
// set and the rubric for methodology updates without a rebuild.
package phrase

import (
	"fmt"
	"math/rand"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

// DefaultLeadIns are the lead-in variants the caption model is steered
// with. The typo in the second entry is preserved: the fine-tuned model
// saw it during training.
var DefaultLeadIns = []string{
	"На картинке видна",
	"На изоборажении показана",
	"На изображении видна",
	"На картинке изображена",
	"На изображении вы можете увидеть",
	"На данной картинке вы можете увидеть",
}

// DefaultRubric is the grading rubric embedded into every scoring prompt.
var DefaultRubric = []string{
	"Ошибки в отдельных словах и единичные несогласованности фраз не считаются ошибкой.",
	"Тестируемый должен выполнить коммуникативную задачу (должен ответить на вопрос или добиться ответа на свой вопрос).",
	"Предложения тестируемого должны быть преимущественно полными.",
}

// Source yields one lead-in phrase per call.
type Source interface {
	LeadIn() string
}

// Prompts bundles the overridable prompt material.
type Prompts struct {
	LeadIns []string `yaml:"lead_ins"`
	Rubric  []string `yaml:"rubric"`
}

// Defaults returns the built-in prompt material.
func Defaults() Prompts {
	return Prompts{LeadIns: DefaultLeadIns, Rubric: DefaultRubric}
}

// LoadFile reads a YAML prompts file. Empty sections fall back to the
// defaults so a file may override only the rubric or only the phrases.
func LoadFile(path string) (Prompts, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Prompts{}, fmt.Errorf("op=phrase.LoadFile: %w", err)
	}
	var p Prompts
	if err := yaml.Unmarshal(b, &p); err != nil {
		return Prompts{}, fmt.Errorf("op=phrase.LoadFile: %w", err)
	}
	if len(p.LeadIns) == 0 {
		p.LeadIns = DefaultLeadIns
	}
	if len(p.Rubric) == 0 {
		p.Rubric = DefaultRubric
	}
	return p, nil
}

// RandomSource picks uniformly from a phrase set. Safe for concurrent use.
type RandomSource struct {
	mu      sync.Mutex
	rng     *rand.Rand
	phrases []string
}

// NewRandomSource builds a RandomSource over phrases with the given seed.
func NewRandomSource(phrases []string, seed int64) *RandomSource {
	return &RandomSource{rng: rand.New(rand.NewSource(seed)), phrases: phrases}
}

// LeadIn returns one phrase at random.
func (s *RandomSource) LeadIn() string {
	if len(s.phrases) == 0 {
		return ""
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phrases[s.rng.Intn(len(s.phrases))]
}

// Fixed is a Source that always returns the same phrase; used in tests.
type Fixed string

// LeadIn returns the fixed phrase.
func (f Fixed) LeadIn() string { return string(f) }

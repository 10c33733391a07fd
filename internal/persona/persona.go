// Package persona holds the bot's personality table and the single
// process-wide "current personality" shared by every conversation.
package persona

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

// ErrInvalidPersonality is returned when a label is not in the known set.
var ErrInvalidPersonality = errors.New("invalid personality")

// Persona is one selectable personality.
type Persona struct {
	// Label is the value stored, sent as button payload and interpolated
	// into the system prompt.
	Label string `yaml:"label"`
	// Caption is what the selection button shows. Defaults to Label.
	Caption string `yaml:"caption,omitempty"`
}

// Store owns the active personality label.
//
// All reads and writes go through mu, so a reader never observes a torn
// value. A completion cycle still reads it once and keeps that snapshot for
// the rest of the cycle; a concurrent Set only affects later cycles.
type Store struct {
	mu       sync.RWMutex
	current  string
	personas []Persona
	index    map[string]int // lower-cased label -> position in personas
}

// NewStore creates a store over the given personalities with def active.
// An empty list falls back to the built-in set. def must be one of them.
func NewStore(personas []Persona, def string) (*Store, error) {
	if len(personas) == 0 {
		personas = BuiltIn()
	}

	s := &Store{
		personas: make([]Persona, 0, len(personas)),
		index:    make(map[string]int, len(personas)),
	}
	for _, p := range personas {
		p.Label = strings.TrimSpace(p.Label)
		if p.Label == "" {
			return nil, fmt.Errorf("%w: empty label", ErrInvalidPersonality)
		}
		key := strings.ToLower(p.Label)
		if _, dup := s.index[key]; dup {
			return nil, fmt.Errorf("%w: duplicate label %q", ErrInvalidPersonality, p.Label)
		}
		if p.Caption == "" {
			p.Caption = p.Label
		}
		s.index[key] = len(s.personas)
		s.personas = append(s.personas, p)
	}

	if def == "" {
		def = DefaultLabel
	}
	canonical, ok := s.Known(def)
	if !ok {
		return nil, fmt.Errorf("%w: default %q is not a known personality", ErrInvalidPersonality, def)
	}
	s.current = canonical
	return s, nil
}

// Get returns the current label.
func (s *Store) Get() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Set replaces the current label. Matching is case-insensitive and the
// canonical spelling is stored. Unknown labels leave the state untouched.
func (s *Store) Set(label string) error {
	canonical, ok := s.Known(label)
	if !ok {
		return fmt.Errorf("%w: %q", ErrInvalidPersonality, label)
	}

	s.mu.Lock()
	s.current = canonical
	s.mu.Unlock()
	return nil
}

// Known reports whether label is in the set and returns its canonical form.
func (s *Store) Known(label string) (string, bool) {
	i, ok := s.index[strings.ToLower(strings.TrimSpace(label))]
	if !ok {
		return "", false
	}
	return s.personas[i].Label, true
}

// Labels returns the labels in display order.
func (s *Store) Labels() []string {
	labels := make([]string, len(s.personas))
	for i, p := range s.personas {
		labels[i] = p.Label
	}
	return labels
}

// Personas returns a copy of the personality table in display order.
func (s *Store) Personas() []Persona {
	out := make([]Persona, len(s.personas))
	copy(out, s.personas)
	return out
}

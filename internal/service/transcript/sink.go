package transcript

import (
	"strings"
	"sync"
)

// Sink accumulates final fragments for one session in arrival order.
type Sink struct {
	mu     sync.Mutex
	finals []string
}

// NewSink creates an empty sink.
func NewSink() *Sink {
	return &Sink{}
}

// Append records a final fragment.
func (s *Sink) Append(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finals = append(s.finals, text)
}

// Fragments returns a copy of the accumulated finals.
func (s *Sink) Fragments() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.finals...)
}

// Text joins the accumulated finals with single spaces.
func (s *Sink) Text() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return strings.Join(s.finals, " ")
}

// Flush writes the accumulated finals to store and clears the sink. The
// sink is cleared even when the write fails.
func (s *Sink) Flush(store *Store) error {
	s.mu.Lock()
	finals := s.finals
	s.finals = nil
	s.mu.Unlock()

	return store.Save(finals)
}

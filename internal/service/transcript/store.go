package transcript

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"sync"
)

// NoTranscript is returned by Load when nothing has been saved yet.
const NoTranscript = "No transcript available."

// Store persists the most recent final transcript to a single file,
// overwriting any previous content.
type Store struct {
	mu   sync.Mutex
	path string
}

// NewStore creates a store writing to path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the transcript file path.
func (s *Store) Path() string {
	return s.path
}

// Save joins fragments with single spaces and truncates the file with the
// result. The write is not atomic.
func (s *Store) Save(fragments []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.WriteFile(s.path, []byte(strings.Join(fragments, " ")), 0o644); err != nil {
		return fmt.Errorf("write transcript %s: %w", s.path, err)
	}
	return nil
}

// Load returns the saved transcript, or NoTranscript if the file does not
// exist.
func (s *Store) Load() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return NoTranscript, nil
	}
	if err != nil {
		return "", fmt.Errorf("read transcript %s: %w", s.path, err)
	}
	return string(b), nil
}

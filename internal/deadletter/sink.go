// Package deadletter persists envelopes that exhausted their retry budget
// to a keyed JSON file for offline diagnosis and replay.
package deadletter

import (
	"encoding/json"
	"os"
	"sync"

	"github.com/rotisserie/eris"
)

// Sink appends failed envelope ids to a JSON object file mapping
// message id to the last error string. Writers are serialised; each write
// rewrites the whole file through an atomic rename so a crash never leaves
// a torn file behind.
type Sink struct {
	mu   sync.Mutex
	path string
}

// NewSink creates a sink writing to path.
func NewSink(path string) *Sink {
	return &Sink{path: path}
}

// Path returns the sink's file path.
func (s *Sink) Path() string {
	return s.path
}

// Record stores the error text for a message id, replacing any earlier
// entry for the same id.
func (s *Sink) Record(msgID, errText string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if err != nil {
		return err
	}
	entries[msgID] = errText
	return s.save(entries)
}

// Entries returns a copy of the recorded failures.
func (s *Sink) Entries() (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *Sink) load() (map[string]string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, eris.Wrap(err, "deadletter: read file")
	}

	entries := map[string]string{}
	if len(data) == 0 {
		return entries, nil
	}
	if err := json.Unmarshal(data, &entries); err != nil {
		// A corrupt file must not block ingestion; start over and keep
		// the new failure.
		return map[string]string{}, nil
	}
	return entries, nil
}

func (s *Sink) save(entries map[string]string) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return eris.Wrap(err, "deadletter: marshal")
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return eris.Wrap(err, "deadletter: write temp file")
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return eris.Wrap(err, "deadletter: replace file")
	}
	return nil
}

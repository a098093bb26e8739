// Package audiostore hosts synthesized audio as short-lived files the
// carrier fetches over HTTP while playing a reply.
package audiostore

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Store writes audio files into a directory and removes them after a
// cleanup delay. Files are served by the gateway under the public prefix.
type Store struct {
	dir          string
	publicPrefix string
	cleanupDelay time.Duration

	seq    atomic.Uint64
	mu     sync.Mutex
	timers map[string]*time.Timer
}

// New creates a store rooted at dir. publicPrefix is the URL path prefix
// the gateway serves the directory under (e.g. "/audio").
func New(dir, publicPrefix string, cleanupDelay time.Duration) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create audio dir %q: %w", dir, err)
	}
	return &Store{
		dir:          dir,
		publicPrefix: strings.TrimSuffix(publicPrefix, "/"),
		cleanupDelay: cleanupDelay,
		timers:       make(map[string]*time.Timer),
	}, nil
}

// Dir returns the directory audio files are written to.
func (s *Store) Dir() string {
	return s.dir
}

// Save writes the audio and returns its public URL path. Cleanup is
// scheduled after the configured delay.
func (s *Store) Save(audio []byte, format string) (string, error) {
	name := fmt.Sprintf("tts_%d_%d.%s", time.Now().UnixMilli(), s.seq.Add(1), format)
	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, audio, 0o644); err != nil {
		return "", fmt.Errorf("write audio file %q: %w", name, err)
	}

	if s.cleanupDelay > 0 {
		s.mu.Lock()
		s.timers[name] = time.AfterFunc(s.cleanupDelay, func() { s.Cleanup(name) })
		s.mu.Unlock()
	}
	return s.publicPrefix + "/" + name, nil
}

// Cleanup removes the named audio file. Removing a missing or already
// cleaned file never fails.
func (s *Store) Cleanup(name string) {
	s.mu.Lock()
	if t, ok := s.timers[name]; ok {
		t.Stop()
		delete(s.timers, name)
	}
	s.mu.Unlock()

	// The file may already be gone; partial artifacts must not fail cleanup.
	_ = os.Remove(filepath.Join(s.dir, filepath.Base(name)))
}

// Close cancels pending cleanup timers.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for name, t := range s.timers {
		t.Stop()
		delete(s.timers, name)
	}
}

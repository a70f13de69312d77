package checkpoint

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// FileStore journals completed names to an append-only file, one JSON object
// per line. Appends survive process crashes up to the last Flush; a torn
// final line is skipped on load rather than failing the run.
type FileStore struct {
	mu   sync.Mutex
	done map[string]struct{}
	f    *os.File
	w    *bufio.Writer

	// RunStartedAt is the timestamp of the run that created the journal.
	// Preserved across resumes.
	RunStartedAt time.Time
}

// journalHeader is the first line of a fresh journal.
type journalHeader struct {
	RunStartedAt time.Time `json:"run_started_at"`
}

// journalEntry records one completed package.
type journalEntry struct {
	Name   string    `json:"name"`
	DoneAt time.Time `json:"done_at"`
}

// NewFileStore opens or creates the journal at path, loading any prior
// progress. Unreadable or malformed content loads as empty state.
func NewFileStore(path string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	s := &FileStore{
		done:         make(map[string]struct{}),
		RunStartedAt: time.Now().UTC(),
	}
	s.load(path)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	s.f = f
	s.w = bufio.NewWriter(f)

	if len(s.done) == 0 {
		hdr, _ := json.Marshal(journalHeader{RunStartedAt: s.RunStartedAt})
		s.w.Write(hdr)
		s.w.WriteByte('\n')
	}
	return s, nil
}

// load reads a prior journal. Errors are swallowed: resumability is
// best-effort and an unreadable journal means starting from scratch.
func (s *FileStore) load(path string) {
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var entry journalEntry
		if err := json.Unmarshal(line, &entry); err == nil && entry.Name != "" {
			s.done[entry.Name] = struct{}{}
			continue
		}
		var hdr journalHeader
		if err := json.Unmarshal(line, &hdr); err == nil && !hdr.RunStartedAt.IsZero() {
			s.RunStartedAt = hdr.RunStartedAt
		}
		// Unparseable lines (torn writes) are skipped.
	}
}

// IsDone reports whether name has been journaled.
func (s *FileStore) IsDone(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.done[name]
	return ok
}

// MarkDone appends name to the journal. Durable after the next Flush.
func (s *FileStore) MarkDone(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.done[name]; ok {
		return nil
	}
	line, err := json.Marshal(journalEntry{Name: name, DoneAt: time.Now().UTC()})
	if err != nil {
		return err
	}
	if _, err := s.w.Write(line); err != nil {
		return err
	}
	if err := s.w.WriteByte('\n'); err != nil {
		return err
	}
	s.done[name] = struct{}{}
	return nil
}

// Len returns the number of journaled names.
func (s *FileStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.done)
}

// Flush writes buffered entries through to disk and fsyncs.
func (s *FileStore) Flush(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.w.Flush(); err != nil {
		return err
	}
	return s.f.Sync()
}

// Close flushes and closes the journal file.
func (s *FileStore) Close() error {
	if err := s.Flush(context.Background()); err != nil {
		s.f.Close()
		return err
	}
	return s.f.Close()
}

var _ Store = (*FileStore)(nil)

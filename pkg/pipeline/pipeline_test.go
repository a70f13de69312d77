package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sadiqj/opamsnap/pkg/dataset/store"
	"github.com/sadiqj/opamsnap/pkg/publish"
	"github.com/sadiqj/opamsnap/pkg/registry"
)

// stubRegistry serves a fixed package set.
type stubRegistry struct {
	names    []string
	packages map[string]*registry.Package
	listErr  error
	fetchErr map[string]error
}

func (s *stubRegistry) ListNames(ctx context.Context) ([]string, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.names, nil
}

func (s *stubRegistry) FetchPackage(ctx context.Context, name string) (*registry.Package, error) {
	if err, ok := s.fetchErr[name]; ok {
		return nil, err
	}
	pkg, ok := s.packages[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", registry.ErrNotFound, name)
	}
	return pkg, nil
}

func stubWith(versions map[string][]string) *stubRegistry {
	s := &stubRegistry{
		packages: make(map[string]*registry.Package),
		fetchErr: make(map[string]error),
	}
	for name, vs := range versions {
		s.names = append(s.names, name)
		s.packages[name] = &registry.Package{Name: name, Versions: vs}
	}
	return s
}

func testRunner(t *testing.T, reg registry.Registry) (*Runner, store.ObjectStore) {
	t.Helper()
	fs, err := store.NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFSStore() error = %v", err)
	}
	r := NewRunner(nil)
	r.registry = reg
	r.store = fs
	return r, fs
}

func quickOpts(t *testing.T) Options {
	return Options{
		DatasetTarget: t.TempDir(),
		Concurrency:   4,
		RetryBackoff:  time.Millisecond,
	}
}

func TestOptionsValidation(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		wantErr bool
	}{
		{name: "missing target", opts: Options{}, wantErr: true},
		{name: "negative concurrency", opts: Options{DatasetTarget: "/tmp/x", Concurrency: -1}, wantErr: true},
		{name: "minimal valid", opts: Options{DatasetTarget: "/tmp/x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.ValidateAndSetDefaults()
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateAndSetDefaults() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestOptionsDefaults(t *testing.T) {
	opts := Options{DatasetTarget: "/tmp/x"}
	if err := opts.ValidateAndSetDefaults(); err != nil {
		t.Fatalf("ValidateAndSetDefaults() error = %v", err)
	}
	if opts.Concurrency != DefaultConcurrency {
		t.Errorf("Concurrency = %d, want %d", opts.Concurrency, DefaultConcurrency)
	}
	if opts.RegistryURL != registry.DefaultOpamURL {
		t.Errorf("RegistryURL = %q", opts.RegistryURL)
	}
	if opts.RequestTimeout != DefaultRequestTimeout {
		t.Errorf("RequestTimeout = %v", opts.RequestTimeout)
	}
	if opts.Logger == nil {
		t.Error("Logger not defaulted")
	}
}

func TestExecuteFullRun(t *testing.T) {
	reg := stubWith(map[string][]string{
		"dune":   {"3.15.0", "3.16.0"},
		"lwt":    {"5.7.0"},
		"yojson": {"2.2.0"},
	})
	r, fs := testRunner(t, reg)

	result, err := r.Execute(context.Background(), quickOpts(t))
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if result.Outcome != OutcomeFull {
		t.Errorf("Outcome = %q, want %q", result.Outcome, OutcomeFull)
	}
	if result.Pointer == nil || result.Pointer.Rows != 3 {
		t.Fatalf("Pointer = %+v, want 3 rows", result.Pointer)
	}
	if result.Stats.Discovered != 3 || result.Stats.Resolved != 3 {
		t.Errorf("Stats = %+v", result.Stats)
	}

	table, _, err := publish.NewPublisher(fs).LoadLatest(context.Background())
	if err != nil {
		t.Fatalf("LoadLatest() error = %v", err)
	}
	if rec, _ := table.Get("dune"); rec.SelectedVersion != "3.16.0" {
		t.Errorf("dune = %q", rec.SelectedVersion)
	}
}

func TestExecutePartialRun(t *testing.T) {
	reg := stubWith(map[string][]string{
		"dune": {"3.16.0"},
		"lwt":  {"5.7.0"},
	})
	reg.names = append(reg.names, "broken")
	reg.fetchErr["broken"] = errors.New("boom")

	r, _ := testRunner(t, reg)
	result, err := r.Execute(context.Background(), quickOpts(t))
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if result.Outcome != OutcomePartial {
		t.Errorf("Outcome = %q, want %q", result.Outcome, OutcomePartial)
	}
	if len(result.Failed) != 1 || result.Failed[0].Name != "broken" {
		t.Errorf("Failed = %+v", result.Failed)
	}
	if result.Pointer.Rows != 2 {
		t.Errorf("published %d rows, want 2", result.Pointer.Rows)
	}
}

func TestExecuteDiscoveryFailureIsFatal(t *testing.T) {
	reg := &stubRegistry{listErr: errors.New("registry down")}
	r, fs := testRunner(t, reg)

	if _, err := r.Execute(context.Background(), quickOpts(t)); err == nil {
		t.Fatal("Execute() expected error")
	}
	keys, err := fs.List(context.Background(), "")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(keys) != 0 {
		t.Errorf("fatal run published objects: %v", keys)
	}
}

func TestExecuteResumesFromCheckpoint(t *testing.T) {
	reg := stubWith(map[string][]string{
		"dune": {"3.16.0"},
		"lwt":  {"5.7.0"},
	})
	r, _ := testRunner(t, reg)

	opts := quickOpts(t)
	opts.Checkpoint = filepath.Join(t.TempDir(), "run.checkpoint")

	if _, err := r.Execute(context.Background(), opts); err != nil {
		t.Fatalf("first Execute() error = %v", err)
	}

	// Second run with the same journal skips everything already done.
	r2 := NewRunner(nil)
	r2.registry = reg
	r2.store = r.store
	opts2 := quickOpts(t)
	opts2.Checkpoint = opts.Checkpoint

	result, err := r2.Execute(context.Background(), opts2)
	if err != nil {
		t.Fatalf("second Execute() error = %v", err)
	}
	if result.Stats.Skipped != 2 || result.Stats.Resolved != 0 {
		t.Errorf("second run Stats = %+v, want all skipped", result.Stats)
	}
	// Merge keeps the previously published rows even with no new ones.
	if result.Pointer.Rows != 2 {
		t.Errorf("second run published %d rows, want 2", result.Pointer.Rows)
	}
}

// journalWatchingStore snapshots the on-disk checkpoint journal at every
// upload, so tests can assert what would survive a crash mid-publish.
type journalWatchingStore struct {
	store.ObjectStore
	journal string
	seen    []string
}

func (s *journalWatchingStore) Put(ctx context.Context, key string, data []byte) error {
	b, _ := os.ReadFile(s.journal)
	s.seen = append(s.seen, string(b))
	return s.ObjectStore.Put(ctx, key, data)
}

func TestExecuteFlushesCheckpointBeforePublish(t *testing.T) {
	reg := stubWith(map[string][]string{
		"dune": {"3.16.0"},
		"lwt":  {"5.7.0"},
	})
	fs, err := store.NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFSStore() error = %v", err)
	}
	journal := filepath.Join(t.TempDir(), "run.checkpoint")
	ws := &journalWatchingStore{ObjectStore: fs, journal: journal}

	r := NewRunner(nil)
	r.registry = reg
	r.store = ws

	opts := quickOpts(t)
	opts.Checkpoint = journal
	if _, err := r.Execute(context.Background(), opts); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	// Snapshot and pointer uploads both happen after the journal is durable:
	// every upload must already see all completed names on disk.
	if len(ws.seen) < 2 {
		t.Fatalf("recorded %d uploads, want at least 2", len(ws.seen))
	}
	for i, content := range ws.seen {
		for _, name := range []string{"dune", "lwt"} {
			if !strings.Contains(content, `"`+name+`"`) {
				t.Errorf("upload %d: journal missing %q:\n%s", i, name, content)
			}
		}
	}
}

func TestExecuteOnlySubset(t *testing.T) {
	reg := stubWith(map[string][]string{
		"dune": {"3.16.0"},
		"lwt":  {"5.7.0"},
	})
	r, _ := testRunner(t, reg)

	opts := quickOpts(t)
	opts.Only = []string{"dune"}
	result, err := r.Execute(context.Background(), opts)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if result.Stats.Discovered != 1 || result.Pointer.Rows != 1 {
		t.Errorf("Stats = %+v, Pointer = %+v", result.Stats, result.Pointer)
	}
}

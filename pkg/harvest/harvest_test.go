package harvest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/sadiqj/opamsnap/pkg/checkpoint"
	"github.com/sadiqj/opamsnap/pkg/dataset"
	"github.com/sadiqj/opamsnap/pkg/progress"
	"github.com/sadiqj/opamsnap/pkg/registry"
	"github.com/sadiqj/opamsnap/pkg/resolve"
)

// fakeRegistry serves canned packages and records fetch counts.
type fakeRegistry struct {
	mu       sync.Mutex
	packages map[string]*registry.Package
	errs     map[string]error
	fetches  map[string]int
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{
		packages: make(map[string]*registry.Package),
		errs:     make(map[string]error),
		fetches:  make(map[string]int),
	}
}

func (f *fakeRegistry) add(name string, versions ...string) {
	f.packages[name] = &registry.Package{Name: name, Versions: versions, Synopsis: name + " synopsis"}
}

func (f *fakeRegistry) ListNames(ctx context.Context) ([]string, error) {
	names := make([]string, 0, len(f.packages))
	for name := range f.packages {
		names = append(names, name)
	}
	return names, nil
}

func (f *fakeRegistry) FetchPackage(ctx context.Context, name string) (*registry.Package, error) {
	f.mu.Lock()
	f.fetches[name]++
	f.mu.Unlock()
	if err, ok := f.errs[name]; ok {
		return nil, err
	}
	pkg, ok := f.packages[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", registry.ErrNotFound, name)
	}
	return pkg, nil
}

func (f *fakeRegistry) fetchCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches[name]
}

func run(t *testing.T, reg registry.Registry, ckpt checkpoint.Store, names []string) (*dataset.Assembler, []Failure) {
	t.Helper()
	asm := dataset.NewAssembler()
	h := New(reg, ckpt, asm, nil, Options{Workers: 4})
	failures := h.Run(context.Background(), names)
	return asm, failures
}

func TestRunResolvesAll(t *testing.T) {
	reg := newFakeRegistry()
	reg.add("dune", "3.15.0", "3.16.0")
	reg.add("lwt", "5.7.0")
	reg.add("yojson", "2.1.0", "2.2.0", "3.0.0-alpha1")

	asm, failures := run(t, reg, checkpoint.NewNullStore(), []string{"dune", "lwt", "yojson"})
	if len(failures) != 0 {
		t.Fatalf("failures = %v, want none", failures)
	}
	table := asm.Finalize()
	if table.Len() != 3 {
		t.Fatalf("table has %d rows, want 3", table.Len())
	}
	if rec, _ := table.Get("dune"); rec.SelectedVersion != "3.16.0" {
		t.Errorf("dune = %q, want highest stable", rec.SelectedVersion)
	}
	if rec, _ := table.Get("yojson"); rec.SelectedVersion != "2.2.0" {
		t.Errorf("yojson = %q, want prerelease excluded", rec.SelectedVersion)
	}
}

func TestRunPartialFailure(t *testing.T) {
	reg := newFakeRegistry()
	const n = 20
	names := make([]string, 0, n)
	for i := 0; i < n; i++ {
		name := fmt.Sprintf("pkg%02d", i)
		names = append(names, name)
		reg.add(name, "1.0.0")
	}
	reg.errs["pkg07"] = errors.New("registry exploded")

	ckpt := checkpoint.NewNullStore()
	asm, failures := run(t, reg, ckpt, names)

	if len(failures) != 1 {
		t.Fatalf("failures = %v, want exactly one", failures)
	}
	if failures[0].Name != "pkg07" || failures[0].Category != CategoryFetch {
		t.Errorf("failure = %+v", failures[0])
	}
	if got := asm.Finalize().Len(); got != n-1 {
		t.Errorf("table has %d rows, want %d", got, n-1)
	}
	if ckpt.IsDone("pkg07") {
		t.Error("failed package was checkpointed as done")
	}
	if !ckpt.IsDone("pkg06") {
		t.Error("successful package missing from checkpoint")
	}
}

func TestRunFailureCategories(t *testing.T) {
	reg := newFakeRegistry()
	reg.add("good", "1.0.0")
	reg.add("junk", "not-a-version", "also junk")
	reg.errs["down"] = errors.New("503")

	_, failures := run(t, reg, checkpoint.NewNullStore(), []string{"good", "junk", "missing", "down"})

	want := map[string]Category{
		"junk":    CategoryNoVersion,
		"missing": CategoryNotFound,
		"down":    CategoryFetch,
	}
	if len(failures) != len(want) {
		t.Fatalf("failures = %v, want %d entries", failures, len(want))
	}
	for _, f := range failures {
		if want[f.Name] != f.Category {
			t.Errorf("%s categorized %q, want %q", f.Name, f.Category, want[f.Name])
		}
		if f.Err == nil {
			t.Errorf("%s failure has nil error", f.Name)
		}
	}
}

func TestRunSkipsCheckpointedPackages(t *testing.T) {
	reg := newFakeRegistry()
	reg.add("dune", "3.16.0")
	reg.add("lwt", "5.7.0")

	ckpt := checkpoint.NewNullStore()
	if err := ckpt.MarkDone(context.Background(), "dune"); err != nil {
		t.Fatalf("MarkDone() error = %v", err)
	}

	var counter progress.Counter
	asm := dataset.NewAssembler()
	h := New(reg, ckpt, asm, &counter, Options{Workers: 2})
	failures := h.Run(context.Background(), []string{"dune", "lwt"})
	if len(failures) != 0 {
		t.Fatalf("failures = %v", failures)
	}

	if got := reg.fetchCount("dune"); got != 0 {
		t.Errorf("checkpointed package fetched %d times, want 0", got)
	}
	if got := reg.fetchCount("lwt"); got != 1 {
		t.Errorf("pending package fetched %d times, want 1", got)
	}
	snap := counter.Snapshot()
	if snap.Skipped != 1 || snap.Resolved != 1 {
		t.Errorf("counters = %+v, want 1 skipped, 1 resolved", snap)
	}
}

func TestRunSecondPassFetchesNothing(t *testing.T) {
	reg := newFakeRegistry()
	reg.add("dune", "3.16.0")
	reg.add("lwt", "5.7.0")
	ckpt := checkpoint.NewNullStore()
	names := []string{"dune", "lwt"}

	if _, failures := run(t, reg, ckpt, names); len(failures) != 0 {
		t.Fatalf("first pass failures = %v", failures)
	}

	asm := dataset.NewAssembler()
	h := New(reg, ckpt, asm, nil, Options{Workers: 2})
	if failures := h.Run(context.Background(), names); len(failures) != 0 {
		t.Fatalf("second pass failures = %v", failures)
	}
	for _, name := range names {
		if got := reg.fetchCount(name); got != 1 {
			t.Errorf("%s fetched %d times across both passes, want 1", name, got)
		}
	}
	if asm.Len() != 0 {
		t.Errorf("second pass assembled %d rows, want 0", asm.Len())
	}
}

func TestRunCanceledContext(t *testing.T) {
	reg := newFakeRegistry()
	names := make([]string, 0, 50)
	for i := 0; i < 50; i++ {
		name := fmt.Sprintf("pkg%02d", i)
		names = append(names, name)
		reg.add(name, "1.0.0")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	asm := dataset.NewAssembler()
	h := New(reg, checkpoint.NewNullStore(), asm, nil, Options{Workers: 4})
	h.Run(ctx, names)

	// An already-canceled context must not resolve the whole set.
	if asm.Len() == len(names) {
		t.Error("canceled run completed all packages")
	}
}

func TestRunIncludePrerelease(t *testing.T) {
	reg := newFakeRegistry()
	reg.add("experimental", "1.0.0", "2.0.0-beta1")

	asm := dataset.NewAssembler()
	h := New(reg, checkpoint.NewNullStore(), asm, nil, Options{
		Workers: 1,
		Resolve: resolve.Options{IncludePrerelease: true},
	})
	if failures := h.Run(context.Background(), []string{"experimental"}); len(failures) != 0 {
		t.Fatalf("failures = %v", failures)
	}
	rec, _ := asm.Finalize().Get("experimental")
	if rec.SelectedVersion != "2.0.0-beta1" {
		t.Errorf("SelectedVersion = %q, want prerelease admitted", rec.SelectedVersion)
	}
}

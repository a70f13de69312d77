package resolve

import (
	"errors"
	"testing"
)

func TestSelect_HighestStable(t *testing.T) {
	tests := []struct {
		name     string
		versions []string
		want     string
	}{
		{"ordered", []string{"1.0.0", "1.2.0", "1.1.0"}, "1.2.0"},
		{"patch precedence", []string{"2.0.1", "2.0.10", "2.0.9"}, "2.0.10"},
		{"major wins", []string{"0.9.9", "1.0.0"}, "1.0.0"},
		{"single", []string{"3.1.4"}, "3.1.4"},
		{"loose opam style", []string{"1.2", "1.10"}, "1.10"},
		{"duplicate normalized", []string{"1.2.0", "1.2"}, "1.2.0"},
		{"four components", []string{"0.9.3.1"}, "0.9.3.1"},
		{"four components vs higher", []string{"0.9.3.1", "0.10.0"}, "0.10.0"},
		{"deep dotted", []string{"1.2.3.4.5", "1.2.2"}, "1.2.3.4.5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sel, err := Select(tt.versions, Options{})
			if err != nil {
				t.Fatalf("Select(%v) error = %v", tt.versions, err)
			}
			if sel.Raw != tt.want {
				t.Errorf("Select(%v) = %q, want %q", tt.versions, sel.Raw, tt.want)
			}
		})
	}
}

func TestSelect_PrereleasePolicy(t *testing.T) {
	// A stable version always beats a prerelease under the default policy,
	// even when the prerelease is numerically higher.
	sel, err := Select([]string{"1.0.0", "1.1.0-rc.1"}, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if sel.Raw != "1.0.0" {
		t.Errorf("default policy selected %q, want 1.0.0", sel.Raw)
	}

	// With no stable alternative the highest prerelease is selected.
	sel, err = Select([]string{"1.0.0-rc.1", "1.0.0-rc.2"}, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if sel.Raw != "1.0.0-rc.2" {
		t.Errorf("prerelease fallback selected %q, want 1.0.0-rc.2", sel.Raw)
	}
	if !sel.Prerelease() {
		t.Error("Prerelease() = false for rc version")
	}

	// IncludePrerelease lets prereleases compete directly.
	sel, err = Select([]string{"1.0.0", "1.1.0-rc.1"}, Options{IncludePrerelease: true})
	if err != nil {
		t.Fatal(err)
	}
	if sel.Raw != "1.1.0-rc.1" {
		t.Errorf("IncludePrerelease selected %q, want 1.1.0-rc.1", sel.Raw)
	}
}

func TestSelect_NotFound(t *testing.T) {
	for _, versions := range [][]string{
		nil,
		{},
		{"not-a-version"},
		{"???", "also bad"},
	} {
		if _, err := Select(versions, Options{}); !errors.Is(err, ErrNoVersion) {
			t.Errorf("Select(%v) error = %v, want ErrNoVersion", versions, err)
		}
	}
}

func TestSelect_DroppedRecorded(t *testing.T) {
	sel, err := Select([]string{"garbage", "1.0.0", "~weird~"}, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if sel.Raw != "1.0.0" {
		t.Errorf("selected %q, want 1.0.0", sel.Raw)
	}
	if len(sel.Dropped) != 2 {
		t.Errorf("Dropped = %v, want 2 entries", sel.Dropped)
	}
}

func TestSelect_DeepDottedVersions(t *testing.T) {
	// A package whose every version has more than three dotted components
	// must still resolve; the extra components are dropped for comparison
	// but the raw string is preserved.
	sel, err := Select([]string{"0.9.3.1"}, Options{})
	if err != nil {
		t.Fatalf("Select error = %v", err)
	}
	if sel.Raw != "0.9.3.1" {
		t.Errorf("Raw = %q, want 0.9.3.1", sel.Raw)
	}
	if got := sel.Version.String(); got != "0.9.3" {
		t.Errorf("Version = %q, want 0.9.3", got)
	}
	if len(sel.Dropped) != 0 {
		t.Errorf("Dropped = %v, want none", sel.Dropped)
	}

	// Versions differing only past the third component compare equal; the
	// earlier occurrence wins.
	sel, err = Select([]string{"0.9.3.2", "0.9.3.1"}, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if sel.Raw != "0.9.3.2" {
		t.Errorf("Raw = %q, want 0.9.3.2", sel.Raw)
	}

	// A prerelease tail survives truncation and keeps its policy meaning.
	sel, err = Select([]string{"1.2.3.4-beta", "1.2.3"}, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if sel.Raw != "1.2.3" {
		t.Errorf("Raw = %q, want 1.2.3", sel.Raw)
	}
}

func TestSelect_OrderingProperties(t *testing.T) {
	// Pairwise selection must agree with total ordering across the set:
	// the winner of the whole list beats every other member pairwise.
	versions := []string{"0.1.0", "1.0.0-alpha", "1.0.0", "1.0.1", "0.9.12", "1.0.0-beta"}
	all, err := Select(versions, Options{IncludePrerelease: true})
	if err != nil {
		t.Fatal(err)
	}
	for _, v := range versions {
		if v == all.Raw {
			continue
		}
		pair, err := Select([]string{all.Raw, v}, Options{IncludePrerelease: true})
		if err != nil {
			t.Fatal(err)
		}
		if pair.Raw != all.Raw {
			t.Errorf("pairwise winner of (%q, %q) = %q, want %q", all.Raw, v, pair.Raw, all.Raw)
		}
	}
}

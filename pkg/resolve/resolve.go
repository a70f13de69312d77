// Package resolve selects the canonical version of a package from its list
// of published version strings.
//
// Selection follows semantic-versioning precedence: numeric fields compare
// numerically, prerelease presence lowers precedence, prerelease identifiers
// compare per segment, and build metadata is ignored. Opam version strings
// are frequently loose ("1.2", "0.9.3.1"), so parsing falls back to tolerant
// normalization before a string is discarded.
package resolve

import (
	"errors"
	"strings"

	"github.com/blang/semver"
)

// ErrNoVersion is returned when a package has no parseable version at all.
// It marks the package as unresolved; the pipeline logs and skips it rather
// than failing the run.
var ErrNoVersion = errors.New("no selectable version")

// Options controls selection policy.
type Options struct {
	// IncludePrerelease makes prerelease versions compete with stable ones.
	// When false (the default), prereleases are only considered if the
	// package has no stable version.
	IncludePrerelease bool
}

// Selection is the outcome of resolving one package's version list.
type Selection struct {
	// Raw is the version string exactly as the registry published it.
	Raw string

	// Version is the parsed form of Raw.
	Version semver.Version

	// Dropped lists input strings that failed to parse and were excluded
	// from selection. Informational; callers typically log these.
	Dropped []string
}

// Prerelease reports whether the selected version is a prerelease.
func (s Selection) Prerelease() bool {
	return len(s.Version.Pre) > 0
}

// Select picks the highest-precedence version from versions under opts.
//
// Unparseable entries are collected in Selection.Dropped and skipped. If no
// entry parses, or versions is empty, Select returns ErrNoVersion. When two
// entries normalize to the same version the earlier occurrence wins.
func Select(versions []string, opts Options) (Selection, error) {
	sel := Selection{}
	var (
		best       semver.Version
		bestRaw    string
		bestPre    semver.Version
		bestPreRaw string
		haveStable bool
		havePre    bool
	)

	for _, raw := range versions {
		v, err := parse(raw)
		if err != nil {
			sel.Dropped = append(sel.Dropped, raw)
			continue
		}
		if len(v.Pre) > 0 && !opts.IncludePrerelease {
			if !havePre || v.Compare(bestPre) > 0 {
				bestPre, bestPreRaw, havePre = v, raw, true
			}
			continue
		}
		if !haveStable || v.Compare(best) > 0 {
			best, bestRaw, haveStable = v, raw, true
		}
	}

	switch {
	case haveStable:
		sel.Raw, sel.Version = bestRaw, best
	case havePre:
		// No stable alternative exists; the highest prerelease represents
		// the package.
		sel.Raw, sel.Version = bestPreRaw, bestPre
	default:
		return sel, ErrNoVersion
	}
	return sel, nil
}

// parse attempts strict semver first, then tolerant normalization
// (missing minor/patch components padded, leading "v" stripped). Opam also
// publishes deep dotted versions ("0.9.3.1") that ParseTolerant rejects;
// those are reduced to their first three components as a last resort.
func parse(raw string) (semver.Version, error) {
	if v, err := semver.Parse(raw); err == nil {
		return v, nil
	}
	if v, err := semver.ParseTolerant(raw); err == nil {
		return v, nil
	}
	return semver.ParseTolerant(truncateCore(raw))
}

// truncateCore cuts a dotted version core down to three components,
// keeping any prerelease or build tail. Precedence between versions that
// differ only past the third component is lost; Select then keeps the
// earlier occurrence.
func truncateCore(raw string) string {
	core, tail := raw, ""
	if i := strings.IndexAny(raw, "-+"); i >= 0 {
		core, tail = raw[:i], raw[i:]
	}
	parts := strings.Split(core, ".")
	if len(parts) <= 3 {
		return raw
	}
	return strings.Join(parts[:3], ".") + tail
}

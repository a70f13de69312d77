// Package checkpoint tracks which packages a harvest run has already
// processed, so an interrupted run can resume without re-fetching work that
// already reached the dataset assembler.
//
// Two durable backends are provided: an append-only file journal for single
// machine runs, and redis for environments where runs move between hosts.
// Resumability is best-effort: a corrupt or missing checkpoint loads as empty
// state and the pipeline simply reprocesses, which the publisher's
// overwrite-by-name merge makes idempotent.
package checkpoint

import (
	"context"
	"strings"
)

// Store records completed package names for a run.
//
// Implementations serialize MarkDone internally; fetch workers call it
// concurrently. A name must only be marked after its record has been handed
// to the assembler, never merely after a fetch.
type Store interface {
	// IsDone reports whether name was completed by this or a prior run.
	IsDone(name string) bool

	// MarkDone records name as completed. Marking an already-done name is
	// a no-op.
	MarkDone(ctx context.Context, name string) error

	// Len returns the number of completed names.
	Len() int

	// Flush guarantees durability of all MarkDone calls issued before it
	// returns. The pipeline flushes before publishing and on shutdown.
	Flush(ctx context.Context) error

	// Close flushes and releases the backing resource.
	Close() error
}

// Open selects a backend from a location string: "redis://…" URIs open a
// redis store, an empty location disables checkpointing, and anything else
// is treated as a journal file path.
func Open(ctx context.Context, location string) (Store, error) {
	switch {
	case location == "":
		return NewNullStore(), nil
	case strings.HasPrefix(location, "redis://"), strings.HasPrefix(location, "rediss://"):
		return NewRedisStore(ctx, location)
	default:
		return NewFileStore(location)
	}
}

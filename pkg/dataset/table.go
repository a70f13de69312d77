// Package dataset assembles resolved package records into the columnar
// snapshot table and converts it to and from parquet.
//
// The table schema is fixed: name and selected_version are required, the
// four opam metadata columns are optional and carry explicit nulls when the
// registry does not know the field. A table holds exactly one row per
// package name; merging overwrites by name so repeated harvests refresh
// stale rows without duplicating them.
package dataset

import (
	"fmt"
	"sort"
)

// Record is one package's row in the dataset: the canonical version chosen
// by the resolver plus descriptive metadata. Empty metadata strings encode
// as nulls in the columnar form.
type Record struct {
	Name            string
	SelectedVersion string
	Synopsis        string
	License         string
	Homepage        string
	DevRepo         string
}

// Validate reports the schema violations that make a record unusable.
func (r Record) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("record has empty package name")
	}
	if r.SelectedVersion == "" {
		return fmt.Errorf("record %q has empty selected version", r.Name)
	}
	return nil
}

// Table is the in-memory snapshot: one Record per package name.
type Table struct {
	rows map[string]Record
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{rows: make(map[string]Record)}
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.rows) }

// Get returns the row for name, if present.
func (t *Table) Get(name string) (Record, bool) {
	r, ok := t.rows[name]
	return r, ok
}

// Put inserts or replaces the row for rec.Name.
func (t *Table) Put(rec Record) {
	t.rows[rec.Name] = rec
}

// Rows returns all rows sorted by package name. Sorting keeps published
// artifacts byte-stable for identical content.
func (t *Table) Rows() []Record {
	out := make([]Record, 0, len(t.rows))
	for _, r := range t.rows {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Merge combines update into base: rows present in update overwrite
// same-named rows in base, rows only in base are retained. Neither input is
// modified.
func Merge(base, update *Table) *Table {
	merged := NewTable()
	if base != nil {
		for name, rec := range base.rows {
			merged.rows[name] = rec
		}
	}
	if update != nil {
		for name, rec := range update.rows {
			merged.rows[name] = rec
		}
	}
	return merged
}

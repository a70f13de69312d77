package dataset

import (
	"fmt"
	"sync"
)

// Assembler accumulates records from concurrent fetch workers into a single
// table. Add is mutex-serialized and cheap (a validate and a map write), so
// the accumulation point never becomes the pipeline bottleneck; Finalize
// hands the table over exactly once.
type Assembler struct {
	mu        sync.Mutex
	table     *Table
	finalized bool
}

// NewAssembler creates an empty assembler.
func NewAssembler() *Assembler {
	return &Assembler{table: NewTable()}
}

// Add validates rec and inserts it. A record failing validation is the
// per-package assembly error: the caller logs it and excludes the package,
// the run continues. Adding the same name twice overwrites, which makes
// checkpoint-less reprocessing harmless.
func (a *Assembler) Add(rec Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.finalized {
		return fmt.Errorf("assembler already finalized")
	}
	a.table.Put(rec)
	return nil
}

// Len returns the number of accumulated rows.
func (a *Assembler) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.table.Len()
}

// Finalize closes the assembler and returns the accumulated table. Further
// Add calls fail. Called once, after the fetch pool has drained.
func (a *Assembler) Finalize() *Table {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.finalized = true
	return a.table
}

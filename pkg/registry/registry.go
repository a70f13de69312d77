// Package registry provides read-only clients for the package registries the
// harvest pipeline ingests from.
//
// A registry exposes two operations: enumerate every package name, and fetch
// one package's known versions plus its descriptive metadata. Failures are
// classified at this boundary: [ErrNotFound] is permanent, anything wrapped
// as retryable (rate limiting, 5xx, network errors, timeouts) is transient.
// The fetch pool's retry policy never has to inspect HTTP details.
package registry

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a package does not exist in the registry.
// It is permanent: retrying will not succeed without upstream change.
var ErrNotFound = errors.New("package not found")

// Package is the raw registry view of one package: every known version
// string plus the metadata fields carried into the dataset.
type Package struct {
	Name     string
	Versions []string

	// Metadata extracted from the package's latest opam description.
	// Empty strings mean the registry does not know the field; the
	// assembler turns those into explicit nulls.
	Synopsis string
	License  string
	Homepage string
	DevRepo  string
}

// Registry is the pipeline's input boundary.
//
// Implementations must be safe for concurrent use; the fetch pool calls
// FetchPackage from many workers at once.
type Registry interface {
	// ListNames enumerates all package names known to the registry.
	ListNames(ctx context.Context) ([]string, error)

	// FetchPackage retrieves versions and metadata for one package.
	// Returns ErrNotFound if the package does not exist.
	FetchPackage(ctx context.Context, name string) (*Package, error)
}

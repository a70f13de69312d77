// Package publish writes assembled dataset snapshots to an object store.
//
// Every publish creates a new immutable version under versions/<id>/ and
// then swings the latest.json pointer to it. Because the pointer is written
// last, a consumer following latest.json always sees either the previous
// complete snapshot or the new complete snapshot, never a partial one.
package publish

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sadiqj/opamsnap/pkg/dataset"
	"github.com/sadiqj/opamsnap/pkg/dataset/store"
	"github.com/sadiqj/opamsnap/pkg/retry"
)

// PointerKey is the well-known object key consumers resolve to find the
// current snapshot.
const PointerKey = "latest.json"

// Pointer is the contents of latest.json.
type Pointer struct {
	VersionID   string    `json:"version_id"`
	Key         string    `json:"key"`
	PublishedAt time.Time `json:"published_at"`
	Rows        int       `json:"rows"`
}

// Publisher merges new rows into the current snapshot and uploads the result.
type Publisher struct {
	store  store.ObjectStore
	policy retry.Policy
	now    func() time.Time
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithRetryPolicy overrides the upload retry policy.
func WithRetryPolicy(p retry.Policy) Option {
	return func(pub *Publisher) { pub.policy = p }
}

// NewPublisher creates a publisher backed by the given object store.
func NewPublisher(s store.ObjectStore, opts ...Option) *Publisher {
	pub := &Publisher{
		store:  s,
		policy: retry.Default,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(pub)
	}
	return pub
}

// LoadLatest fetches the current snapshot via latest.json. A store with no
// pointer yet yields an empty table and a nil pointer, not an error.
func (p *Publisher) LoadLatest(ctx context.Context) (*dataset.Table, *Pointer, error) {
	raw, err := p.store.Get(ctx, PointerKey)
	if errors.Is(err, store.ErrNotFound) {
		return dataset.NewTable(), nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", PointerKey, err)
	}

	var ptr Pointer
	if err := json.Unmarshal(raw, &ptr); err != nil {
		return nil, nil, fmt.Errorf("decode %s: %w", PointerKey, err)
	}

	blob, err := p.store.Get(ctx, ptr.Key)
	if err != nil {
		return nil, nil, fmt.Errorf("read snapshot %s: %w", ptr.Key, err)
	}
	table, err := dataset.DecodeParquet(blob)
	if err != nil {
		return nil, nil, fmt.Errorf("decode snapshot %s: %w", ptr.Key, err)
	}
	return table, &ptr, nil
}

// Publish merges update into the latest snapshot and uploads the result as a
// new version. Rows in update replace same-named rows in the base; base rows
// not present in update are retained. Returns the pointer now at latest.json.
func (p *Publisher) Publish(ctx context.Context, update *dataset.Table) (*Pointer, error) {
	base, _, err := p.LoadLatest(ctx)
	if err != nil {
		return nil, err
	}
	merged := dataset.Merge(base, update)

	blob, err := dataset.EncodeParquet(merged)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}

	id := p.versionID()
	key := fmt.Sprintf("versions/%s/snapshot.parquet", id)

	if err := p.policy.Do(ctx, func() error {
		return retry.Retryable(p.store.Put(ctx, key, blob))
	}); err != nil {
		return nil, fmt.Errorf("upload snapshot: %w", err)
	}

	ptr := Pointer{
		VersionID:   id,
		Key:         key,
		PublishedAt: p.now().UTC(),
		Rows:        merged.Len(),
	}
	raw, err := json.Marshal(ptr)
	if err != nil {
		return nil, fmt.Errorf("encode pointer: %w", err)
	}

	// Pointer goes last so a failed publish leaves the old version live.
	if err := p.policy.Do(ctx, func() error {
		return retry.Retryable(p.store.Put(ctx, PointerKey, raw))
	}); err != nil {
		return nil, fmt.Errorf("update pointer: %w", err)
	}
	return &ptr, nil
}

// versionID yields a lexically time-ordered id with a random suffix so
// concurrent publishers never collide.
func (p *Publisher) versionID() string {
	return fmt.Sprintf("%s-%s", p.now().UTC().Format("20060102T150405Z"), uuid.NewString()[:8])
}

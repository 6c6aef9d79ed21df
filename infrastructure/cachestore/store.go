package cachestore

import "context"

// Document is the flat wire form of one cache document: top-level field
// names mapped to serialized values. Section payloads are JSON strings.
type Document map[string]string

// Store is the thin key/value document adapter the cache service writes
// through. Documents are keyed by user id. Every call may fail with a
// transient I/O error; callers must not assume success.
type Store interface {
	// Get returns the document, or (nil, nil) when it does not exist.
	Get(ctx context.Context, key string) (Document, error)
	// SetMerged upserts the given fields into the document without touching
	// unspecified fields.
	SetMerged(ctx context.Context, key string, fields Document) error
	// SetFull replaces the whole document. Only compaction uses this.
	SetFull(ctx context.Context, key string, doc Document) error
	// Delete removes the document entirely.
	Delete(ctx context.Context, key string) error
	// RemoveFields clears the named fields, leaving the rest of the
	// document (and the document itself) intact.
	RemoveFields(ctx context.Context, key string, fields ...string) error
	// BatchDelete removes many documents in one round trip.
	BatchDelete(ctx context.Context, keys []string) error
	// BatchRemoveFields clears the named fields on many documents in one
	// round trip.
	BatchRemoveFields(ctx context.Context, keys []string, fields ...string) error
	// Keys enumerates all document keys. Used by the stats scan only.
	Keys(ctx context.Context) ([]string, error)
	// Ping verifies the backing store is reachable.
	Ping(ctx context.Context) error
}

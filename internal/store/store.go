// Package store persists the shared trip document in a remote document
// store, addressed by a single fixed key.
package store

import "context"

// Store reads and writes one document by key.
//
// Get distinguishes a confirmed-absent document (ok=false, err=nil)
// from an unreachable store (err != nil). Callers must not treat the
// two alike: seeding defaults over a document that merely could not be
// fetched would destroy it.
type Store interface {
	Get(ctx context.Context, key string) (raw []byte, ok bool, err error)
	Set(ctx context.Context, key string, raw []byte) error
	Ping(ctx context.Context) error
	Close() error
}

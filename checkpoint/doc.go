// Package checkpoint persists the latest conversation state of each thread.
//
// A Store keeps exactly one snapshot per thread id. Saves are atomic upserts,
// reads of unknown threads report absence instead of an error, and deletes
// report whether a snapshot existed. Backends:
//
//   - MemoryStore: process local map (tests, dev)
//   - sqlstore: gorm over PostgreSQL or SQLite
//   - boltstore: embedded bbolt file
//
// CachedStore adds a read-through cache (MemoryCache or rediscache) in front
// of any backend.
package checkpoint

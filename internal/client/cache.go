// Copyright 2015-2026 National Technology & Engineering Solutions of Sandia, LLC (NTESS).
// Under the terms of Contract DE-NA0003525 with NTESS, the U.S. Government retains certain
// rights in this software.

package client

import "github.com/sandia-minimega/instrewd/pkg/wire"

// Cache is the client-side half of the cache gate (spec.md §4.4): an
// in-memory, never-persisted (spec.md §1 Non-goals) lookup from content
// hash to the object bytes the server emitted for it. The server decides
// hit/miss server-side (internal/server's Session.Probe) using its own
// seen-hash bookkeeping, since a session serves exactly one client in
// strict request order and is therefore the sole source of truth for what
// it has already emitted this session; the client cache below exists only
// to resolve the empty-object+hash replies that decision produces back
// into real object bytes, so Get never needs a round trip for a hit.
type Cache struct {
	objects map[[wire.HashSize]byte][]byte
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{objects: make(map[[wire.HashSize]byte][]byte)}
}

// Store records obj under hash. Called for every full (non-empty) object
// the server sends with a hash, i.e. every cache miss. The init-time
// bootstrap object carries no hash and is never stored (spec.md §9 open
// question, resolved as init-only, not entered into the translation cache).
func (c *Cache) Store(hash [wire.HashSize]byte, obj []byte) {
	c.objects[hash] = obj
}

// Lookup returns the object previously stored under hash, if any.
func (c *Cache) Lookup(hash [wire.HashSize]byte) ([]byte, bool) {
	obj, ok := c.objects[hash]
	return obj, ok
}

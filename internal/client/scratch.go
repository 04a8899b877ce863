// Copyright 2015-2026 National Technology & Engineering Solutions of Sandia, LLC (NTESS).
// Under the terms of Contract DE-NA0003525 with NTESS, the U.S. Government retains certain
// rights in this software.

package client

import "os"

// pageSize mirrors the original's getpagesize() use when rounding the
// scratch buffer's allocation size.
var pageSize = os.Getpagesize()

// scratch is the client's page-aligned receive buffer for S_OBJECT payloads
// (spec.md §3), grown by doubling and rounded up to a page
// (original_source/client/translator.c's translator_get_object). Unlike
// the original, Growing here drops the reference to the previous buffer
// before installing the new one, so it becomes collectible by the garbage
// collector instead of leaking — spec.md §9's "intentional leak... a
// reimplementation should free it," fixed per SPEC_FULL.md §9.
type scratch struct {
	buf []byte
}

// reserve ensures the scratch buffer can hold at least n bytes and returns
// a slice of exactly that length. It only reallocates when the current
// buffer is too small.
func (s *scratch) reserve(n int) []byte {
	if n > len(s.buf) {
		newSz := alignUp(n, pageSize)
		if doubled := len(s.buf) * 2; doubled > newSz {
			newSz = alignUp(doubled, pageSize)
		}
		// Drop the old backing array instead of keeping both alive.
		s.buf = nil
		s.buf = make([]byte, newSz)
	}
	return s.buf[:n]
}

func alignUp(n, align int) int {
	return (n + align - 1) / align * align
}

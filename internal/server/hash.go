// Copyright 2015-2026 National Technology & Engineering Solutions of Sandia, LLC (NTESS).
// Under the terms of Contract DE-NA0003525 with NTESS, the U.S. Government retains certain
// rights in this software.

package server

import (
	"crypto/sha1"

	"github.com/sandia-minimega/instrewd/pkg/wire"
)

// hashPrefixVersion is the leading version byte of every hash-config
// prefix (spec.md §4.4 item 1: "a fixed-size record {version=2, ...}").
const hashPrefixVersion = 2

// buildConfigPrefix assembles the session's hash-config prefix: the fixed
// {version, flags, architectures} record followed by the lifter's and
// codegen backend's own config bytes (spec.md §4.4 item 1). It is called
// exactly once per session, at NewSession, and the result must never
// change for the lifetime of the connection (spec.md §3, §8).
func buildConfigPrefix(cfg wire.ServerConfig, opts Options, lifterCfgBytes, codegenCfgBytes []byte) []byte {
	buf := make([]byte, 0, 32+len(lifterCfgBytes)+len(codegenCfgBytes))
	buf = append(buf, hashPrefixVersion)
	buf = append(buf, boolByte(opts.SafeCallRet), boolByte(opts.EnableCallret), boolByte(opts.EnableFastcc), boolByte(opts.EnablePIC))

	var arch [12]byte
	byteOrder.PutUint32(arch[0:4], cfg.GuestArch)
	byteOrder.PutUint32(arch[4:8], cfg.HostArch)
	byteOrder.PutUint32(arch[8:12], cfg.StackAlignment)
	buf = append(buf, arch[:]...)

	buf = append(buf, lifterCfgBytes...)
	buf = append(buf, codegenCfgBytes...)
	return buf
}

// HashBuilder accumulates the per-request extension of the session's hash
// buffer: the prefix (unmodified), the address (or zero, under PIC), and
// the decoded ranges' bytes, then digests the whole with SHA-1 (spec.md
// §4.4). The driver builds a fresh HashBuilder from the session prefix for
// every Translate call, so the session's prefix itself is never mutated;
// Reset truncates a builder back to that prefix.
type HashBuilder struct {
	prefixLen int
	buf       []byte
}

// NewHashBuilder seeds a builder from a session's immutable hash prefix.
func NewHashBuilder(prefix []byte) *HashBuilder {
	buf := make([]byte, len(prefix))
	copy(buf, prefix)
	return &HashBuilder{prefixLen: len(prefix), buf: buf}
}

// Reset truncates the buffer back to the config prefix, the sole mutation
// policy spec.md §5 allows between requests.
func (b *HashBuilder) Reset() { b.buf = b.buf[:b.prefixLen] }

// AppendAddress appends the 8-byte address field: zero under PIC (the
// address cannot affect relocatable output), the literal address
// otherwise (spec.md §4.4 item 2).
func (b *HashBuilder) AppendAddress(addr uint64, pic bool) {
	var a [8]byte
	if !pic {
		byteOrder.PutUint64(a[:], addr)
	}
	b.buf = append(b.buf, a[:]...)
}

// AppendRange appends one decoded range's header and bytes: {rel_start =
// start - addr, size = end - start, bytes[size]} (spec.md §4.4 item 3).
// data must be the bytes re-fetched through the memory proxy for
// [start, end), not whatever the decoder itself retained.
func (b *HashBuilder) AppendRange(addr, start, end uint64, data []byte) {
	var hdr [16]byte
	byteOrder.PutUint64(hdr[0:8], start-addr)
	byteOrder.PutUint64(hdr[8:16], end-start)
	b.buf = append(b.buf, hdr[:]...)
	b.buf = append(b.buf, data...)
}

// Sum digests the accumulated buffer with SHA-1 to the 20-byte content
// hash (spec.md §4.4).
func (b *HashBuilder) Sum() [sha1.Size]byte { return sha1.Sum(b.buf) }

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

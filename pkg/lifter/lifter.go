// Copyright 2018-2026 National Technology & Engineering Solutions of Sandia, LLC (NTESS).
// Under the terms of Contract DE-NA0003525 with NTESS, the U.S. Government retains certain
// rights in this software.

// Package lifter declares the interface instrewd's translation driver uses
// to turn guest machine code into the compiler's intermediate
// representation. A real implementation (an x86-64/RISC-V/AArch64 decoder
// and IR lifter) is deliberately out of scope for this module — see
// spec.md §1 — and lives behind this interface so the driver, the session
// state, and the hash builder can all be exercised against the FakeDecoder
// test double in fake.go.
package lifter

import (
	"context"
	"errors"

	"github.com/sandia-minimega/instrewd/internal/ir"
)

// ErrDecode is returned by Decoder.Decode when the guest instruction stream
// at addr could not be decoded into a control-flow graph (spec.md §4.5
// step 2, §7).
var ErrDecode = errors.New("lifter: decode failed")

// ErrLift is returned by Func.Lift when the decoded CFG could not be
// raised to IR (spec.md §4.5 step 4).
var ErrLift = errors.New("lifter: lift failed")

// Range is a half-open interval of guest memory consumed during decode; it
// contributes bytes to the content hash (spec.md §3, §4.4).
type Range struct {
	Start, End uint64
}

// Size reports the byte length of the range.
func (r Range) Size() uint64 { return r.End - r.Start }

// MemFunc satisfies a guest memory read during decode. It is backed by the
// server's memory proxy (internal/server/memproxy.go), which round-trips
// S_MEMREQ/C_MEMBUF to the client. An error return causes the decoder to
// treat the access as a fault and terminate that path, per spec.md §4.3.
type MemFunc func(ctx context.Context, addr, end uint64, out []byte) error

// Config carries the architecture-specific declarations the driver must
// set up once per session (spec.md §3, §4.5, §6): the guest architecture
// name, the PC-base global and helper symbols the lifted IR will reference,
// and the handful of boolean lifter toggles exposed as server flags.
type Config struct {
	GuestArch      string // "x86-64", "rv64", "aarch64"
	PCBaseSymbol   string
	SyscallSymbol  string
	CallTailSymbol string // optional; empty if call-ret lifting is disabled
	CPUInfoSymbol  string // optional; only set for x86-64

	VerifyIR       bool
	OverflowIntrin bool
	CallRetClobber bool

	// PIC, when true, configures the lifter to emit position-independent
	// accesses relative to PCBase rather than absolute addresses
	// (spec.md §4.5 step 1).
	PIC    bool
	PCBase uint64
}

// AppendConfig contributes this lifter's configuration to the session hash
// prefix (spec.md §4.4 item 1). It must be deterministic and stable across
// calls for the same Config.
func (c Config) AppendConfig(buf []byte) []byte {
	buf = append(buf, boolByte(c.VerifyIR), boolByte(c.OverflowIntrin), boolByte(c.CallRetClobber))
	buf = append(buf, c.GuestArch...)
	buf = append(buf, 0) // NUL terminator keeps variable-length fields unambiguous
	return buf
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

// Func is a single decoded, not-yet-lifted control-flow graph, owned by the
// driver for the duration of one Translate call.
type Func interface {
	// Ranges returns the half-open guest-memory ranges the decoder
	// consumed, in decode order (spec.md §6).
	Ranges() []Range

	// Lift raises the decoded CFG into the session's IR module, appending
	// a new function under name. It owns the IR module relationship: on
	// success the returned handle belongs to mod.
	Lift(ctx context.Context, mod *ir.Module, name string) (*ir.FuncHandle, error)

	// Dispose releases decoder-owned resources. Safe to call after Lift
	// or instead of it (on a cache hit or decode failure).
	Dispose()
}

// Decoder turns guest machine code at addr into a Func, calling mem to read
// guest memory as needed (spec.md §4.5 step 2, §6).
type Decoder interface {
	Decode(ctx context.Context, cfg Config, addr uint64, mem MemFunc) (Func, error)
}

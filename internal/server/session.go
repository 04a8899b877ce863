// Copyright 2015-2026 National Technology & Engineering Solutions of Sandia, LLC (NTESS).
// Under the terms of Contract DE-NA0003525 with NTESS, the U.S. Government retains certain
// rights in this software.

// Package server implements the translation-service side of the protocol in
// pkg/wire: per-connection session state, the memory proxy, the hash
// builder and cache gate, the translation driver, and the message
// dispatch loop, grounded on minimega's command_socket.go connection
// handling and internal/qmp's synchronous request/reply style.
package server

import (
	"bytes"
	"crypto/sha1"
	"encoding/binary"
	"time"

	"github.com/sandia-minimega/instrewd/internal/callconv"
	"github.com/sandia-minimega/instrewd/internal/ir"
	"github.com/sandia-minimega/instrewd/pkg/wire"
)

// byteOrder matches pkg/wire's host-native contract (spec.md §6); it is
// kept as a separate package-level var here rather than exported from wire
// since it is purely an implementation detail of how the hash prefix is
// laid out, not a wire-framing concern.
var byteOrder = binary.NativeEndian

// Options are the operator-controlled toggles that become part of every
// session's hash-config prefix (spec.md §4.4 item 1) and are surfaced as
// cmd/instrewd flags (SPEC_FULL.md §4.8).
type Options struct {
	SafeCallRet   bool
	EnableCallret bool
	EnableFastcc  bool
	EnablePIC     bool

	Profile bool
	Trace   bool
	Perf    wire.PerfMode
}

// Timings accumulates per-stage monotonic durations across every Translate
// call in a session (spec.md §4.5: "each stage is timed with a monotonic
// clock; accumulated durations are emitted at session teardown when
// profiling is on").
type Timings struct {
	Decode, Lift, CallConvRewrite, Optimize, Codegen time.Duration
	Requests                                         int
	CacheHits                                         int
}

// Session is the server's per-connection state: the config negotiated at
// C_INIT, the persistent IR module and helper declarations, the reused
// object buffer, and the cache/timing bookkeeping the driver mutates only
// between emit boundaries (spec.md §3, §5).
type Session struct {
	Config   wire.ServerConfig
	CallConv callconv.CallConv
	Opts     Options

	// TraceID is a short, non-cryptographic identifier logged on every
	// line for this connection so overlapping fork children are
	// distinguishable in server logs (SPEC_FULL.md §4.11). It has no
	// bearing on the content hash.
	TraceID string

	Module     *ir.Module
	ObjBuf     *bytes.Buffer
	HashPrefix []byte

	Timings Timings

	// seenHashes is this session's cache gate (DESIGN.md records the
	// resolution of spec.md §4.4's "opaque cache-probe id": since a
	// session serves exactly one client in strict request order, §2,
	// the server is itself the sole source of every object it has ever
	// emitted this session, so the probe is local bookkeeping rather
	// than an additional wire round trip).
	seenHashes map[[sha1.Size]byte]bool
}

// helperSet is the fixed set of (name) helper declarations every session's
// module carries, per spec.md §3 ("syscall[_arch], optional
// instrew_call_cdecl, optional cpuid").
func helperSet(guestArchName string, callRet, cpuinfo bool) []string {
	helpers := []string{callconv.SyscallHelper(guestArchName)}
	if callRet {
		helpers = append(helpers, "instrew_call_cdecl")
	}
	if cpuinfo {
		helpers = append(helpers, "cpuid")
	}
	return helpers
}

// NewSession builds the immutable per-connection config, declares the
// session's helpers and PC-base global on a fresh IR module, and seeds the
// hash-config prefix (spec.md §4.4 item 1), which must stay byte-identical
// for the lifetime of the connection (spec.md §3, §8).
func NewSession(cfg wire.ServerConfig, opts Options, cc callconv.CallConv, guestArchName string, callRet, cpuinfo bool, traceID string, lifterCfgBytes, codegenCfgBytes []byte) *Session {
	mod := ir.NewModule("instrew_pc_base")
	mod.Keep(mod.PCBaseSymbol())
	for _, h := range helperSet(guestArchName, callRet, cpuinfo) {
		mod.DeclareHelper(h)
	}

	s := &Session{
		Config:     cfg,
		CallConv:   cc,
		Opts:       opts,
		TraceID:    traceID,
		Module:     mod,
		ObjBuf:     new(bytes.Buffer),
		seenHashes: make(map[[sha1.Size]byte]bool),
	}
	s.HashPrefix = buildConfigPrefix(cfg, opts, lifterCfgBytes, codegenCfgBytes)
	return s
}

// Probe reports whether hash has already been emitted as a full object
// this session, recording the new hash as seen on a miss (spec.md §4.4).
func (s *Session) Probe(hash [sha1.Size]byte) (hit bool) {
	if s.seenHashes[hash] {
		s.Timings.CacheHits++
		return true
	}
	s.seenHashes[hash] = true
	return false
}

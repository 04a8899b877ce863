// Copyright 2015-2026 National Technology & Engineering Solutions of Sandia, LLC (NTESS).
// Under the terms of Contract DE-NA0003525 with NTESS, the U.S. Government retains certain
// rights in this software.

package server

import (
	"fmt"

	"golang.org/x/net/trace"
)

// Tracer opens one golang.org/x/net/trace.Trace event log per Translate
// call when enabled (SPEC_FULL.md §4.9), recording decode/lift/callconv/
// optimize/codegen stage boundaries as trace events. It augments, and
// does not replace, the monotonic-clock Timings the driver accumulates
// for spec.md §4.5's profiling counters.
type Tracer struct {
	Enabled bool
}

// reqTrace is the per-call handle returned by Tracer.Start.
type reqTrace struct {
	tr trace.Trace
}

// Start begins a trace for addr on the given session. Safe to call on a
// nil or disabled Tracer; Mark and Finish become no-ops.
func (t *Tracer) Start(sessID string, addr uint64) *reqTrace {
	if t == nil || !t.Enabled {
		return &reqTrace{}
	}
	return &reqTrace{tr: trace.New("instrewd.translate", fmt.Sprintf("sess=%s addr=0x%x", sessID, addr))}
}

// Mark records a named stage boundary.
func (rt *reqTrace) Mark(stage string) {
	if rt.tr != nil {
		rt.tr.LazyPrintf("stage=%s", stage)
	}
}

// Finish closes the trace event log, if one was opened.
func (rt *reqTrace) Finish() {
	if rt.tr != nil {
		rt.tr.Finish()
	}
}

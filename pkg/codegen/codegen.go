// Copyright 2018-2026 National Technology & Engineering Solutions of Sandia, LLC (NTESS).
// Under the terms of Contract DE-NA0003525 with NTESS, the U.S. Government retains certain
// rights in this software.

// Package codegen declares the interface instrewd's translation driver uses
// to lower the session's IR module to a relocatable host object. A real
// backend (the compiler's machine-code emitter) is out of scope for this
// module — see spec.md §1 — and lives behind this interface so the driver
// can be exercised against the FakeBackend test double.
package codegen

import (
	"bytes"

	"github.com/sandia-minimega/instrewd/internal/ir"
)

// Backend lowers an IR module to host object code, appending to a shared,
// reused-across-requests output buffer (spec.md §3, §4.5 step 8, §5).
type Backend interface {
	// AppendConfig contributes this backend's configuration to the
	// session hash prefix (spec.md §4.4 item 1); must be deterministic.
	AppendConfig(buf []byte) []byte

	// GenerateCode lowers mod and appends the resulting relocatable
	// object image to out. The driver reads out.Len() after the call to
	// learn the object size; out is reset by the backend itself on each
	// call, not by the caller between requests (spec.md §5).
	GenerateCode(mod *ir.Module, out *bytes.Buffer) error
}

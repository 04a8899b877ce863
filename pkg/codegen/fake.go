// Copyright 2018-2026 National Technology & Engineering Solutions of Sandia, LLC (NTESS).
// Under the terms of Contract DE-NA0003525 with NTESS, the U.S. Government retains certain
// rights in this software.

package codegen

import (
	"bytes"

	"github.com/sandia-minimega/instrewd/internal/ir"
)

// FakeBackend is a minimal Backend used by instrewd's own tests and by
// `cmd/instrewd -fake-lifter`. It emits a deterministic, structurally
// plausible object-like image (a small synthetic header plus the module's
// current function count and PIC flag) rather than real machine code, so
// that driver, hash, and cache-probe behavior can be exercised end to end
// without a real compiler backend.
type FakeBackend struct {
	PIC bool
}

func (b FakeBackend) AppendConfig(buf []byte) []byte {
	return append(buf, boolByte(b.PIC))
}

func (b FakeBackend) GenerateCode(mod *ir.Module, out *bytes.Buffer) error {
	out.Reset()
	out.WriteString("FAKEOBJ\x00")
	out.WriteByte(byte(mod.FunctionCount()))
	out.WriteByte(boolByte(b.PIC))
	return nil
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

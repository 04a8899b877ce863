// Copyright 2018-2026 National Technology & Engineering Solutions of Sandia, LLC (NTESS).
// Under the terms of Contract DE-NA0003525 with NTESS, the U.S. Government retains certain
// rights in this software.

package lifter

import (
	"context"

	"github.com/sandia-minimega/instrewd/internal/ir"
)

// fakeStride is the chunk size FakeDecoder reads guest memory in, standing
// in for one synthetic "instruction" fetch. Decoding a window happens one
// stride at a time so a fault partway through the window truncates the
// decoded range at the stride boundary instead of discarding the whole
// window (spec.md §8 scenario 4).
const fakeStride = 16

// FakeDecoder is a minimal Decoder used by instrewd's own tests and by
// `cmd/instrewd -fake-lifter` for exercising the wire protocol and driver
// without a real architecture backend. It "decodes" a fixed-size window
// starting at addr in fakeStride-sized steps, stopping the first time a
// memory read faults (mirroring the real decoder terminating a path at an
// unmapped access, spec.md §4.3), and reports whatever prefix of the
// window was read successfully as its range.
type FakeDecoder struct {
	// WindowSize bounds how many bytes FakeDecoder asks for per request.
	// Defaults to 28 bytes (matching the test-fixture object sizes used
	// throughout internal/server's tests) when zero.
	WindowSize uint64
}

func (d FakeDecoder) windowSize() uint64 {
	if d.WindowSize == 0 {
		return 28
	}
	return d.WindowSize
}

func (d FakeDecoder) Decode(ctx context.Context, cfg Config, addr uint64, mem MemFunc) (Func, error) {
	total := d.windowSize()

	var body []byte
	var read uint64
	for read < total {
		step := uint64(fakeStride)
		if total-read < step {
			step = total - read
		}
		cur := addr + read
		chunk := make([]byte, step)
		if err := mem(ctx, cur, cur+step, chunk); err != nil {
			// A fault partway through the window still yields a decoded
			// function covering the bytes read before the fault (spec.md
			// §8 scenario 4). A fault on the very first stride means the
			// address itself is unreadable, a full decode failure
			// (spec.md §8 scenario 5).
			break
		}
		body = append(body, chunk...)
		read += step
	}

	if read == 0 {
		return nil, ErrDecode
	}

	return &fakeFunc{
		ranges: []Range{{Start: addr, End: addr + read}},
		body:   body,
	}, nil
}

type fakeFunc struct {
	ranges []Range
	body   []byte
}

func (f *fakeFunc) Ranges() []Range { return f.ranges }

func (f *fakeFunc) Lift(ctx context.Context, mod *ir.Module, name string) (*ir.FuncHandle, error) {
	return mod.AddFunction(name)
}

func (f *fakeFunc) Dispose() {}

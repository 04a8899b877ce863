// Copyright 2015-2026 National Technology & Engineering Solutions of Sandia, LLC (NTESS).
// Under the terms of Contract DE-NA0003525 with NTESS, the U.S. Government retains certain
// rights in this software.

package server

import (
	"context"
	"errors"

	"github.com/sandia-minimega/instrewd/pkg/wire"
)

// ErrMemFault is returned by MemProxy.Read when the client reports the
// requested address range as unreadable (spec.md §4.3, §7: "non-fatal";
// the lifter typically aborts decoding of that path, it does not tear
// down the connection).
var ErrMemFault = errors.New("server: guest memory fault")

// MemProxy satisfies a lifter's guest-memory reads by round-tripping
// S_MEMREQ/C_MEMBUF to the client that owns guest virtual memory (spec.md
// §4.3): the server never maps the guest itself.
type MemProxy struct {
	fr *wire.Framer
}

// NewMemProxy wraps the session's framer for memory-proxy round trips. A
// Session has exactly one active translation at a time (spec.md §5), so
// one MemProxy per connection is sufficient.
func NewMemProxy(fr *wire.Framer) *MemProxy { return &MemProxy{fr: fr} }

// Read is a lifter.MemFunc: it asks the client for up to len(out) bytes at
// addr, clamped to wire.MaxMemReq, and copies the response into out,
// zero-padding past whatever the client actually returned. It reports
// ErrMemFault (not a protocol error) when the client's status byte
// indicates the source address faulted.
func (p *MemProxy) Read(ctx context.Context, addr, end uint64, out []byte) error {
	bufSz := end - addr
	if bufSz > wire.MaxMemReq {
		bufSz = wire.MaxMemReq
	}
	if uint64(len(out)) < bufSz {
		bufSz = uint64(len(out))
	}

	if err := p.fr.SendHeader(wire.SMemReq, wire.MemReqSize); err != nil {
		return err
	}
	if err := p.fr.SendPayload(wire.MemReq{Addr: addr, BufSz: bufSz}.Marshal()); err != nil {
		return err
	}

	size, err := p.fr.ConsumeHeader(wire.CMemBuf)
	if err != nil {
		return err
	}
	if int64(size) != int64(bufSz)+1 {
		return wire.ErrProtocol
	}
	raw, err := p.fr.RecvPayload(size)
	if err != nil {
		return err
	}
	buf, err := wire.UnmarshalMemBuf(raw)
	if err != nil {
		return err
	}

	n := copy(out, buf.Data)
	for i := n; i < len(out); i++ {
		out[i] = 0
	}
	if buf.Fault {
		return ErrMemFault
	}
	return nil
}

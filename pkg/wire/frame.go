// Copyright 2015-2026 National Technology & Engineering Solutions of Sandia, LLC (NTESS).
// Under the terms of Contract DE-NA0003525 with NTESS, the U.S. Government retains certain
// rights in this software.

package wire

import (
	"io"
)

// Framer reads and writes (id, size, payload) frames on one side of a
// connection. It tracks the single "peeked but not consumed" header slot
// described in spec.md §4.1/§9: receiving a header only reads from the
// socket when the slot is empty, and sending a new header is refused while
// the slot is still occupied by an unconsumed header. All I/O is blocking
// and complete — partial reads/writes are retried internally until the
// full count transfers or a hard error occurs.
//
// A Framer is not safe for concurrent use; each connection direction (one
// Translate/get call at a time, per spec.md §5) owns its Framer serially.
type Framer struct {
	rw     io.ReadWriter
	peeked *Header
}

// NewFramer wraps rw (typically a net.Conn) for framed message exchange.
func NewFramer(rw io.ReadWriter) *Framer {
	return &Framer{rw: rw}
}

// SendHeader writes a frame header for an upcoming size-byte payload. It
// fails with ErrHeaderPending if a header has been peeked on this Framer but
// not yet consumed.
func (f *Framer) SendHeader(id MsgID, size int32) error {
	if f.peeked != nil {
		return ErrHeaderPending
	}
	hdr := Header{ID: id, Size: size}
	buf := hdr.marshal()
	return writeFull(f.rw, buf[:])
}

// SendPayload writes the payload bytes following a header sent with
// SendHeader.
func (f *Framer) SendPayload(b []byte) error {
	return writeFull(f.rw, b)
}

// PeekHeader returns the next header on the wire without consuming it. A
// header already peeked by a prior call is returned again without another
// socket read.
func (f *Framer) PeekHeader() (Header, error) {
	if f.peeked == nil {
		var buf [HeaderSize]byte
		if err := readFull(f.rw, buf[:]); err != nil {
			return Header{}, err
		}
		hdr := unmarshalHeader(buf[:])
		f.peeked = &hdr
	}
	return *f.peeked, nil
}

// ConsumeHeader peeks the next header and, if its id matches expected,
// clears the peek slot and returns its payload size. On mismatch the peek
// slot is left populated (so the caller may dispatch on the peeked id, as
// the memory-proxy loop does to distinguish S_MEMREQ from S_OBJECT) and
// ErrProtocol is returned.
func (f *Framer) ConsumeHeader(expected MsgID) (int32, error) {
	hdr, err := f.PeekHeader()
	if err != nil {
		return 0, err
	}
	if hdr.ID != expected {
		return 0, ErrProtocol
	}
	f.peeked = nil
	return hdr.Size, nil
}

// RecvPayload reads exactly n payload bytes.
func (f *Framer) RecvPayload(n int32) ([]byte, error) {
	buf := make([]byte, n)
	if err := readFull(f.rw, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// RecvPayloadInto reads exactly len(buf) payload bytes into buf, avoiding an
// allocation for callers (like the client's object receiver) that already
// hold a reusable buffer.
func (f *Framer) RecvPayloadInto(buf []byte) error {
	return readFull(f.rw, buf)
}

// writeFull mirrors the original write_full: retry until every byte is
// written or a hard error occurs, since io.Writer permits short writes.
func writeFull(w io.Writer, b []byte) error {
	for len(b) > 0 {
		n, err := w.Write(b)
		if err != nil {
			return err
		}
		b = b[n:]
	}
	return nil
}

func readFull(r io.Reader, buf []byte) error {
	_, err := io.ReadFull(r, buf)
	return err
}

// Copyright 2015-2026 National Technology & Engineering Solutions of Sandia, LLC (NTESS).
// Under the terms of Contract DE-NA0003525 with NTESS, the U.S. Government retains certain
// rights in this software.

package server

import (
	"io"
	"net"
	"sync"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"github.com/sandia-minimega/instrewd/internal/minilog"
)

// WireTracer mirrors every frame exchanged on a session's socket into a
// pcapgo writer as a synthetic loopback-linktype capture, so the raw
// C_TRANSLATE/S_MEMREQ/C_MEMBUF/S_OBJECT exchange can be inspected offline
// with tcpdump/Wireshark (SPEC_FULL.md §4.9). This is the spec's
// diagnostic stream (spec.md §4.5: "optional dumps ... go to a diagnostic
// stream") extended to the wire level. One WireTracer is shared across
// every connection instrewd serves, so writes are serialized with mu.
type WireTracer struct {
	mu sync.Mutex
	w  *pcapgo.Writer
}

// NewWireTracer opens a pcap capture on out. The synthetic link type
// carries no real network framing; each "packet" is one Read/Write chunk
// observed on a session's socket, in wire order.
func NewWireTracer(out io.Writer) (*WireTracer, error) {
	w := pcapgo.NewWriter(out)
	if err := w.WriteFileHeader(65535, layers.LinkTypeLoop); err != nil {
		return nil, err
	}
	return &WireTracer{w: w}, nil
}

// Frame records one direction-tagged chunk of wire traffic as a single
// capture packet. dir is a single byte, 'C' (client to server) or 'S'
// (server to client), prefixed to the recorded packet so a capture of a
// full-duplex session can still be replayed in order per direction.
func (t *WireTracer) Frame(dir byte, frame []byte) error {
	if t == nil {
		return nil
	}
	buf := make([]byte, 0, len(frame)+1)
	buf = append(buf, dir)
	buf = append(buf, frame...)
	ci := gopacket.CaptureInfo{
		Timestamp:     time.Now(),
		CaptureLength: len(buf),
		Length:        len(buf),
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	return t.w.WritePacket(ci, buf)
}

// tracedConn wraps a connection so every byte read from the client ('C')
// and written to the client ('S') is mirrored into a WireTracer, without
// the wire package itself needing any knowledge of tracing (SPEC_FULL.md
// §4.9).
type tracedConn struct {
	net.Conn
	tracer *WireTracer
}

func (c *tracedConn) Read(b []byte) (int, error) {
	n, err := c.Conn.Read(b)
	if n > 0 {
		if terr := c.tracer.Frame('C', b[:n]); terr != nil {
			minilog.Debug("wiretrace: record inbound frame: %v", terr)
		}
	}
	return n, err
}

func (c *tracedConn) Write(b []byte) (int, error) {
	n, err := c.Conn.Write(b)
	if n > 0 {
		if terr := c.tracer.Frame('S', b[:n]); terr != nil {
			minilog.Debug("wiretrace: record outbound frame: %v", terr)
		}
	}
	return n, err
}

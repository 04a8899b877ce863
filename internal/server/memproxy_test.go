// Copyright 2015-2026 National Technology & Engineering Solutions of Sandia, LLC (NTESS).
// Under the terms of Contract DE-NA0003525 with NTESS, the U.S. Government retains certain
// rights in this software.

package server

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/sandia-minimega/instrewd/pkg/wire"
)

func TestMemProxyClampsRequestSize(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	proxy := NewMemProxy(wire.NewFramer(server))
	clientFr := wire.NewFramer(client)

	var gotBufSz uint64
	done := make(chan struct{})
	go func() {
		defer close(done)
		size, err := clientFr.ConsumeHeader(wire.SMemReq)
		if err != nil {
			t.Errorf("ConsumeHeader: %v", err)
			return
		}
		raw, err := clientFr.RecvPayload(size)
		if err != nil {
			t.Errorf("RecvPayload: %v", err)
			return
		}
		req, err := wire.UnmarshalMemReq(raw)
		if err != nil {
			t.Errorf("UnmarshalMemReq: %v", err)
			return
		}
		gotBufSz = req.BufSz

		buf := wire.MemBuf{Data: make([]byte, req.BufSz), Fault: false}
		payload := buf.Marshal()
		clientFr.SendHeader(wire.CMemBuf, int32(len(payload)))
		clientFr.SendPayload(payload)
	}()

	out := make([]byte, 0x10000)
	if err := proxy.Read(context.Background(), 0x1000, 0x1000+0x10000, out); err != nil {
		t.Fatalf("Read: %v", err)
	}
	<-done
	if gotBufSz != wire.MaxMemReq {
		t.Fatalf("expected clamped request of %d bytes, got %d", wire.MaxMemReq, gotBufSz)
	}
}

func TestMemProxyFaultPassesBytesAndReportsFault(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	proxy := NewMemProxy(wire.NewFramer(server))
	clientFr := wire.NewFramer(client)

	go func() {
		size, _ := clientFr.ConsumeHeader(wire.SMemReq)
		raw, _ := clientFr.RecvPayload(size)
		if _, err := wire.UnmarshalMemReq(raw); err != nil {
			t.Errorf("UnmarshalMemReq: %v", err)
			return
		}

		data := make([]byte, 16)
		for i := range data {
			data[i] = 0xff
		}
		buf := wire.MemBuf{Data: data, Fault: true}
		payload := buf.Marshal()
		clientFr.SendHeader(wire.CMemBuf, int32(len(payload)))
		clientFr.SendPayload(payload)
	}()

	out := make([]byte, 16)
	err := proxy.Read(context.Background(), 0x7ff0, 0x8000, out)
	if !errors.Is(err, ErrMemFault) {
		t.Fatalf("expected ErrMemFault, got %v", err)
	}
	for i, b := range out {
		if b != 0xff {
			t.Fatalf("out[%d] = %x, want the client's reported bytes even on fault", i, b)
		}
	}
}

func TestMemProxyPartialFaultZeroPadsRemainder(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	proxy := NewMemProxy(wire.NewFramer(server))
	clientFr := wire.NewFramer(client)

	go func() {
		size, _ := clientFr.ConsumeHeader(wire.SMemReq)
		raw, _ := clientFr.RecvPayload(size)
		req, _ := wire.UnmarshalMemReq(raw)

		data := make([]byte, req.BufSz)
		for i := 0; i < 16 && i < len(data); i++ {
			data[i] = 0xaa
		}
		buf := wire.MemBuf{Data: data, Fault: true}
		payload := buf.Marshal()
		clientFr.SendHeader(wire.CMemBuf, int32(len(payload)))
		clientFr.SendPayload(payload)
	}()

	out := make([]byte, 0x1000)
	err := proxy.Read(context.Background(), 0x7ff0, 0x8ff0, out)
	if !errors.Is(err, ErrMemFault) {
		t.Fatalf("expected ErrMemFault, got %v", err)
	}
	for i := 0; i < 16; i++ {
		if out[i] != 0xaa {
			t.Fatalf("out[%d] = %x, want valid prefix preserved", i, out[i])
		}
	}
	for i := 16; i < len(out); i++ {
		if out[i] != 0 {
			t.Fatalf("out[%d] = %x, want zero padding past the valid prefix", i, out[i])
		}
	}
}

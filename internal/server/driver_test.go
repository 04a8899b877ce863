// Copyright 2015-2026 National Technology & Engineering Solutions of Sandia, LLC (NTESS).
// Under the terms of Contract DE-NA0003525 with NTESS, the U.S. Government retains certain
// rights in this software.

package server

import (
	"context"
	"net"
	"testing"

	"github.com/sandia-minimega/instrewd/internal/callconv"
	"github.com/sandia-minimega/instrewd/pkg/codegen"
	"github.com/sandia-minimega/instrewd/pkg/lifter"
	"github.com/sandia-minimega/instrewd/pkg/wire"
)

// fakeClient drives the client side of a net.Pipe against a Driver under
// test: it answers every S_MEMREQ with deterministic bytes (or a fault,
// if faultAddr matches) and hands received S_OBJECT payloads back over a
// channel.
type fakeClient struct {
	fr        *wire.Framer
	faultAddr uint64
	objects   chan clientObject
}

type clientObject struct {
	payload []byte
	err     error
}

func newFakeClient(conn net.Conn, faultAddr uint64) *fakeClient {
	c := &fakeClient{fr: wire.NewFramer(conn), faultAddr: faultAddr, objects: make(chan clientObject, 8)}
	go c.run()
	return c
}

func (c *fakeClient) run() {
	for {
		hdr, err := c.fr.PeekHeader()
		if err != nil {
			close(c.objects)
			return
		}
		switch hdr.ID {
		case wire.SMemReq:
			if err := c.serviceMemReq(); err != nil {
				c.objects <- clientObject{err: err}
				close(c.objects)
				return
			}
		case wire.SObject:
			size, err := c.fr.ConsumeHeader(wire.SObject)
			if err != nil {
				c.objects <- clientObject{err: err}
				close(c.objects)
				return
			}
			payload, err := c.fr.RecvPayload(size)
			c.objects <- clientObject{payload: payload, err: err}
		default:
			c.objects <- clientObject{err: wire.ErrProtocol}
			close(c.objects)
			return
		}
	}
}

func (c *fakeClient) serviceMemReq() error {
	size, err := c.fr.ConsumeHeader(wire.SMemReq)
	if err != nil {
		return err
	}
	raw, err := c.fr.RecvPayload(size)
	if err != nil {
		return err
	}
	req, err := wire.UnmarshalMemReq(raw)
	if err != nil {
		return err
	}

	fault := req.Addr == c.faultAddr
	data := make([]byte, req.BufSz)
	if !fault {
		for i := range data {
			data[i] = byte(0x90)
		}
	}
	buf := wire.MemBuf{Data: data, Fault: fault}
	payload := buf.Marshal()
	if err := c.fr.SendHeader(wire.CMemBuf, int32(len(payload))); err != nil {
		return err
	}
	return c.fr.SendPayload(payload)
}

func newTestDriver(t *testing.T, conn net.Conn) (*Driver, *Session) {
	t.Helper()
	opts := Options{}
	sess := NewSession(testServerConfig(), opts, callconv.FastX86X86, "x86-64", false, false, "test", nil, nil)
	fr := wire.NewFramer(conn)
	driver := NewDriver(fr, sess, lifter.FakeDecoder{WindowSize: 28}, codegen.FakeBackend{}, lifter.Config{GuestArch: "x86-64"}, &Tracer{})
	return driver, sess
}

func TestDriverTranslateMissThenHit(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	driver, sess := newTestDriver(t, server)
	fc := newFakeClient(client, 0)

	if err := driver.Translate(context.Background(), 0x401000); err != nil {
		t.Fatalf("first Translate: %v", err)
	}
	first := <-fc.objects
	if first.err != nil {
		t.Fatalf("first object: %v", first.err)
	}
	firstReply, err := wire.UnmarshalObjectReply(first.payload)
	if err != nil {
		t.Fatalf("UnmarshalObjectReply: %v", err)
	}
	if !firstReply.HasHash || len(firstReply.Obj) == 0 {
		t.Fatalf("expected a non-empty object plus hash, got %+v", firstReply)
	}

	liftBefore := sess.Timings.Lift

	if err := driver.Translate(context.Background(), 0x401000); err != nil {
		t.Fatalf("second Translate: %v", err)
	}
	second := <-fc.objects
	if second.err != nil {
		t.Fatalf("second object: %v", second.err)
	}
	secondReply, err := wire.UnmarshalObjectReply(second.payload)
	if err != nil {
		t.Fatalf("UnmarshalObjectReply: %v", err)
	}
	if !secondReply.HasHash || len(secondReply.Obj) != 0 {
		t.Fatalf("expected empty-object+hash on cache hit, got %+v", secondReply)
	}
	if secondReply.Hash != firstReply.Hash {
		t.Fatalf("cache hit hash %x != original hash %x", secondReply.Hash, firstReply.Hash)
	}
	if sess.Timings.Lift != liftBefore {
		t.Fatalf("expected no additional lift work on a cache hit")
	}
	if sess.Timings.CacheHits != 1 {
		t.Fatalf("expected exactly one cache hit, got %d", sess.Timings.CacheHits)
	}
}

func TestDriverTranslateDecodeFailure(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	driver, _ := newTestDriver(t, server)
	fc := newFakeClient(client, 0)

	if err := driver.Translate(context.Background(), 0); err != nil {
		t.Fatalf("Translate: %v", err)
	}
	obj := <-fc.objects
	if obj.err != nil {
		t.Fatalf("object: %v", obj.err)
	}
	reply, err := wire.UnmarshalObjectReply(obj.payload)
	if err != nil {
		t.Fatalf("UnmarshalObjectReply: %v", err)
	}
	if reply.HasHash || len(reply.Obj) != 0 {
		t.Fatalf("expected no hash and an empty object on decode failure, got %+v", reply)
	}
}

func TestDriverTranslatePartialFaultTruncatesObject(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	const addr = 0x402000
	driver, _ := newTestDriver(t, server)
	// The decoder reads its 28-byte window in 16-byte strides; faulting
	// the second stride leaves only the first 16 bytes decoded, matching
	// spec.md §8 scenario 4 (a partial fault still yields a non-empty,
	// truncated object rather than an empty decode failure).
	fc := newFakeClient(client, addr+16)

	if err := driver.Translate(context.Background(), addr); err != nil {
		t.Fatalf("Translate: %v", err)
	}
	obj := <-fc.objects
	if obj.err != nil {
		t.Fatalf("object: %v", obj.err)
	}
	reply, err := wire.UnmarshalObjectReply(obj.payload)
	if err != nil {
		t.Fatalf("UnmarshalObjectReply: %v", err)
	}
	if !reply.HasHash || len(reply.Obj) == 0 {
		t.Fatalf("expected a non-empty truncated object plus hash, got %+v", reply)
	}
}

func TestDriverFunctionTableStableAcrossRequests(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	driver, sess := newTestDriver(t, server)
	fc := newFakeClient(client, 0)

	for addr := uint64(0x401000); addr < 0x401000+10*0x100; addr += 0x100 {
		if err := driver.Translate(context.Background(), addr); err != nil {
			t.Fatalf("Translate(0x%x): %v", addr, err)
		}
		<-fc.objects
		if sess.Module.HasExternalBody() {
			t.Fatalf("module retained an external body after Translate(0x%x)", addr)
		}
	}
}

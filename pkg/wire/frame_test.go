// Copyright 2015-2026 National Technology & Engineering Solutions of Sandia, LLC (NTESS).
// Under the terms of Contract DE-NA0003525 with NTESS, the U.S. Government retains certain
// rights in this software.

package wire

import (
	"bytes"
	"errors"
	"net"
	"testing"
)

func TestHeaderRoundTrip(t *testing.T) {
	h := Header{ID: CTranslate, Size: 8}
	buf := h.marshal()
	if len(buf) != HeaderSize {
		t.Fatalf("marshal produced %d bytes, want %d", len(buf), HeaderSize)
	}
	got := unmarshalHeader(buf[:])
	if got != h {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, h)
	}
}

func TestFramerSendConsume(t *testing.T) {
	var buf bytes.Buffer
	f := NewFramer(&buf)

	if err := f.SendHeader(CTranslate, 8); err != nil {
		t.Fatal(err)
	}
	if err := f.SendPayload([]byte{1, 2, 3, 4, 5, 6, 7, 8}); err != nil {
		t.Fatal(err)
	}

	r := NewFramer(&buf)
	sz, err := r.ConsumeHeader(CTranslate)
	if err != nil {
		t.Fatal(err)
	}
	if sz != 8 {
		t.Fatalf("size = %d, want 8", sz)
	}
	payload, err := r.RecvPayload(sz)
	if err != nil {
		t.Fatal(err)
	}
	if len(payload) != 8 {
		t.Fatalf("payload len = %d, want 8", len(payload))
	}
}

func TestFramerMismatchLeavesPeekSlot(t *testing.T) {
	var buf bytes.Buffer
	f := NewFramer(&buf)
	if err := f.SendHeader(SObject, 0); err != nil {
		t.Fatal(err)
	}

	r := NewFramer(&buf)
	if _, err := r.ConsumeHeader(SMemReq); !errors.Is(err, ErrProtocol) {
		t.Fatalf("expected ErrProtocol, got %v", err)
	}

	// The peeked header must still be there: a second peek for the correct
	// id should now succeed without another read.
	sz, err := r.ConsumeHeader(SObject)
	if err != nil {
		t.Fatal(err)
	}
	if sz != 0 {
		t.Fatalf("size = %d, want 0", sz)
	}
}

func TestFramerRefusesSendWithPendingPeek(t *testing.T) {
	c1, c2 := net.Pipe()
	defer c1.Close()
	defer c2.Close()

	server := NewFramer(c1)
	client := NewFramer(c2)

	done := make(chan struct{})
	go func() {
		defer close(done)
		server.SendHeader(SMemReq, MemReqSize)
		server.SendPayload(MemReq{Addr: 0x1000, BufSz: 0x1000}.Marshal())
	}()

	if _, err := client.PeekHeader(); err != nil {
		t.Fatal(err)
	}

	if err := client.SendHeader(CInit, ServerConfigSize); !errors.Is(err, ErrHeaderPending) {
		t.Fatalf("expected ErrHeaderPending, got %v", err)
	}

	// net.Pipe is unbuffered: the writer's payload write only completes once
	// the frame is read, so drain it before waiting for the writer.
	sz, err := client.ConsumeHeader(SMemReq)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := client.RecvPayload(sz); err != nil {
		t.Fatal(err)
	}
	<-done
}

func TestMemReqRoundTrip(t *testing.T) {
	m := MemReq{Addr: 0x401000, BufSz: 0x1000}
	got, err := UnmarshalMemReq(m.Marshal())
	if err != nil {
		t.Fatal(err)
	}
	if got != m {
		t.Fatalf("got %+v, want %+v", got, m)
	}
}

func TestMemBufRoundTrip(t *testing.T) {
	m := MemBuf{Data: []byte{1, 2, 3}, Fault: true}
	got, err := UnmarshalMemBuf(m.Marshal())
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got.Data, m.Data) || got.Fault != m.Fault {
		t.Fatalf("got %+v, want %+v", got, m)
	}
}

func TestObjectReplyRoundTripWithHash(t *testing.T) {
	o := ObjectReply{HasHash: true, Hash: [HashSize]byte{1, 2, 3}, Obj: []byte{0xde, 0xad, 0xbe, 0xef}}
	got, err := UnmarshalObjectReply(o.Marshal())
	if err != nil {
		t.Fatal(err)
	}
	if got.HasHash != o.HasHash || got.Hash != o.Hash || !bytes.Equal(got.Obj, o.Obj) {
		t.Fatalf("got %+v, want %+v", got, o)
	}
}

func TestObjectReplyRoundTripEmptyObjWithHash(t *testing.T) {
	o := ObjectReply{HasHash: true, Hash: [HashSize]byte{0xaa}}
	got, err := UnmarshalObjectReply(o.Marshal())
	if err != nil {
		t.Fatal(err)
	}
	if !got.HasHash || got.Hash != o.Hash || len(got.Obj) != 0 {
		t.Fatalf("got %+v, want %+v", got, o)
	}
}

func TestObjectReplyRoundTripNoHash(t *testing.T) {
	o := ObjectReply{Obj: nil}
	buf := o.Marshal()
	if len(buf) != 1 {
		t.Fatalf("expected a single flag byte for a no-hash empty reply, got %d bytes", len(buf))
	}
	got, err := UnmarshalObjectReply(buf)
	if err != nil {
		t.Fatal(err)
	}
	if got.HasHash || len(got.Obj) != 0 {
		t.Fatalf("got %+v, want no hash and an empty object", got)
	}
}

func TestUnmarshalObjectReplyRejectsEmptyBuffer(t *testing.T) {
	if _, err := UnmarshalObjectReply(nil); !errors.Is(err, ErrProtocol) {
		t.Fatalf("expected ErrProtocol, got %v", err)
	}
}

func TestUnmarshalObjectReplyRejectsTruncatedHash(t *testing.T) {
	buf := append([]byte{1}, bytes.Repeat([]byte{0xff}, HashSize-1)...)
	if _, err := UnmarshalObjectReply(buf); !errors.Is(err, ErrProtocol) {
		t.Fatalf("expected ErrProtocol, got %v", err)
	}
}

func TestDirection(t *testing.T) {
	cases := map[MsgID]Direction{
		CInit:      ClientToServer,
		CTranslate: ClientToServer,
		CMemBuf:    ClientToServer,
		CFork:      ClientToServer,
		SInit:      ServerToClient,
		SMemReq:    ServerToClient,
		SObject:    ServerToClient,
		SFD:        ServerToClient,
		MsgUnknown: DirUnknown,
	}
	for id, want := range cases {
		if got := id.Direction(); got != want {
			t.Errorf("%v.Direction() = %v, want %v", id, got, want)
		}
	}
}

// Copyright 2015-2026 National Technology & Engineering Solutions of Sandia, LLC (NTESS).
// Under the terms of Contract DE-NA0003525 with NTESS, the U.S. Government retains certain
// rights in this software.

// Package client implements the client side of the translation protocol
// (spec.md §4.2, §4.3, §4.6): it sends C_INIT/C_TRANSLATE, services
// S_MEMREQ against the embedding guest process's own memory, receives
// S_OBJECT replies (resolving cache-hit empty-object replies via a local
// hash cache), and negotiates the C_FORK/S_FD socket handoff. It is the
// Go-side mirror of internal/server, grounded on
// original_source/client/translator.c the way internal/server is grounded
// on rewriteserver.cc.
package client

import (
	"errors"
	"net"

	"github.com/sandia-minimega/instrewd/internal/minilog"
	"github.com/sandia-minimega/instrewd/pkg/wire"
)

// MemSource reads guest memory in [addr, end) into out, zero-filling and
// returning ok=false on a fault (spec.md §4.3) — the guest-runtime
// collaborator this package treats as external, standing in for the
// original's direct pointer dereference of memrq.addr.
type MemSource func(addr, end uint64, out []byte) (ok bool)

// ErrProtocol is wire.ErrProtocol itself, returned when the server sends
// an unexpected message outside the defined get/init/fork flows.
var ErrProtocol = wire.ErrProtocol

// Translator is the client-side mirror of internal/server's per-session
// state: the framer, the negotiated config, the memory source callback,
// the object cache, and the scratch receive buffer (spec.md §3 "Client
// state").
type Translator struct {
	fr     *wire.Framer
	mem    MemSource
	cache  *Cache
	scr    scratch
	Config wire.Config
}

// Init sends C_INIT over conn, receives S_INIT and the init-time bootstrap
// object (spec.md §8 scenario 1), and returns a ready Translator. The
// bootstrap object is handed to bootstrapObj (the caller's ELF/object
// loader) but, per spec.md §9's resolved open question, is never entered
// into the cache.
func Init(conn net.Conn, scfg wire.ServerConfig, mem MemSource, bootstrapObj func([]byte) error) (*Translator, error) {
	fr := wire.NewFramer(conn)

	if err := fr.SendHeader(wire.CInit, wire.ServerConfigSize); err != nil {
		return nil, err
	}
	if err := fr.SendPayload(scfg.Marshal()); err != nil {
		return nil, err
	}

	size, err := fr.ConsumeHeader(wire.SInit)
	if err != nil {
		return nil, err
	}
	if size != wire.ConfigSize {
		return nil, wire.ErrProtocol
	}
	payload, err := fr.RecvPayload(size)
	if err != nil {
		return nil, err
	}
	cfg, err := wire.UnmarshalConfig(payload)
	if err != nil {
		return nil, err
	}

	t := &Translator{fr: fr, mem: mem, cache: NewCache(), Config: cfg}

	reply, err := t.recvObject()
	if err != nil {
		return nil, err
	}
	if bootstrapObj != nil {
		if err := bootstrapObj(reply.Obj); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// Get drives one C_TRANSLATE(addr) to completion (spec.md §4.2): it sends
// the request, then loops servicing S_MEMREQ until S_OBJECT arrives,
// resolving an empty-object cache-hit reply against the local cache.
func (t *Translator) Get(addr uint64) ([]byte, error) {
	if err := t.fr.SendHeader(wire.CTranslate, 8); err != nil {
		return nil, err
	}
	var addrBuf [8]byte
	byteOrder.PutUint64(addrBuf[:], addr)
	if err := t.fr.SendPayload(addrBuf[:]); err != nil {
		return nil, err
	}

	for {
		hdr, err := t.fr.PeekHeader()
		if err != nil {
			return nil, err
		}
		switch hdr.ID {
		case wire.SMemReq:
			if err := t.serviceMemReq(); err != nil {
				return nil, err
			}
		case wire.SObject:
			reply, err := t.recvObject()
			if err != nil {
				return nil, err
			}
			return t.resolveObject(reply)
		default:
			return nil, ErrProtocol
		}
	}
}

// resolveObject turns an S_OBJECT reply into the object bytes the caller
// should link: a non-empty object is stored under its hash (if any) and
// returned as-is; an empty object with a hash is a cache hit, resolved
// against the local cache; an empty object with no hash is a permanent
// decode/lift failure (spec.md §4.5, §7) and is returned unresolved so the
// caller can mark the address untranslatable.
func (t *Translator) resolveObject(reply wire.ObjectReply) ([]byte, error) {
	if len(reply.Obj) > 0 {
		if reply.HasHash {
			t.cache.Store(reply.Hash, reply.Obj)
		}
		return reply.Obj, nil
	}
	if !reply.HasHash {
		return nil, nil
	}
	obj, ok := t.cache.Lookup(reply.Hash)
	if !ok {
		minilog.Error("client: cache hit for unknown hash %x", reply.Hash)
		return nil, errors.New("client: server reported a cache hit for a hash we never saw")
	}
	return obj, nil
}

// recvObject consumes one S_OBJECT frame into the scratch buffer (spec.md
// §3's "page-aligned scratch buffer... grown by doubling").
func (t *Translator) recvObject() (wire.ObjectReply, error) {
	size, err := t.fr.ConsumeHeader(wire.SObject)
	if err != nil {
		return wire.ObjectReply{}, err
	}
	buf := t.scr.reserve(int(size))
	if err := t.fr.RecvPayloadInto(buf); err != nil {
		return wire.ObjectReply{}, err
	}
	return wire.UnmarshalObjectReply(buf)
}

// serviceMemReq answers one S_MEMREQ with C_MEMBUF (spec.md §4.3): the
// requested size is clamped to wire.MaxMemReq, and a fault is reported via
// the trailing status byte with zero-filled data rather than failing the
// connection.
func (t *Translator) serviceMemReq() error {
	size, err := t.fr.ConsumeHeader(wire.SMemReq)
	if err != nil {
		return err
	}
	if size != wire.MemReqSize {
		return wire.ErrProtocol
	}
	payload, err := t.fr.RecvPayload(size)
	if err != nil {
		return err
	}
	req, err := wire.UnmarshalMemReq(payload)
	if err != nil {
		return err
	}

	bufSz := req.BufSz
	if bufSz > wire.MaxMemReq {
		bufSz = wire.MaxMemReq
	}
	data := make([]byte, bufSz)
	ok := true
	if t.mem != nil {
		ok = t.mem(req.Addr, req.Addr+bufSz, data)
	}
	if !ok {
		for i := range data {
			data[i] = 0
		}
	}

	buf := wire.MemBuf{Data: data, Fault: !ok}
	respPayload := buf.Marshal()
	if err := t.fr.SendHeader(wire.CMemBuf, int32(len(respPayload))); err != nil {
		return err
	}
	return t.fr.SendPayload(respPayload)
}

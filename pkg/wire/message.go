// Copyright 2015-2026 National Technology & Engineering Solutions of Sandia, LLC (NTESS).
// Under the terms of Contract DE-NA0003525 with NTESS, the U.S. Government retains certain
// rights in this software.

// Package wire implements the framed request/response protocol between an
// instrewd translation server and the client embedded in the guest process
// it is translating for: the fixed 8-byte frame header, the closed message
// id enumeration, and the blocking, complete-I/O framing discipline that
// guarantees at most one header is "peeked but not consumed" per direction.
package wire

import "fmt"

// MsgID is drawn from a closed enumeration with two disjoint directions
// (client->server, server->client) plus a reserved unknown/empty sentinel.
type MsgID uint32

const (
	// MsgUnknown is the reserved "no header pending" sentinel; it is never
	// sent on the wire.
	MsgUnknown MsgID = iota

	// Client -> server.
	CInit      // TranslatorServerConfig
	CTranslate // 8-byte guest address
	CMemBuf    // buf_sz payload bytes + 1 status byte
	CFork      // empty

	// Server -> client.
	SInit   // TranslatorConfig
	SMemReq // {u64 addr, u64 buf_sz}
	SObject // relocatable object image, possibly empty
	SFD     // 4-byte error code + SCM_RIGHTS fd
)

func (id MsgID) String() string {
	switch id {
	case MsgUnknown:
		return "UNKNOWN"
	case CInit:
		return "C_INIT"
	case CTranslate:
		return "C_TRANSLATE"
	case CMemBuf:
		return "C_MEMBUF"
	case CFork:
		return "C_FORK"
	case SInit:
		return "S_INIT"
	case SMemReq:
		return "S_MEMREQ"
	case SObject:
		return "S_OBJECT"
	case SFD:
		return "S_FD"
	}
	return fmt.Sprintf("MsgID(%d)", uint32(id))
}

// Direction distinguishes the two disjoint message flows.
type Direction int

const (
	DirUnknown Direction = iota
	ClientToServer
	ServerToClient
)

func (id MsgID) Direction() Direction {
	switch id {
	case CInit, CTranslate, CMemBuf, CFork:
		return ClientToServer
	case SInit, SMemReq, SObject, SFD:
		return ServerToClient
	}
	return DirUnknown
}

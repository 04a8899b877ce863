// Copyright 2015-2026 National Technology & Engineering Solutions of Sandia, LLC (NTESS).
// Under the terms of Contract DE-NA0003525 with NTESS, the U.S. Government retains certain
// rights in this software.

package wire

import "encoding/binary"

// byteOrder is used for every fixed-width integer on the wire. The protocol
// assumes matching endianness across the socket (a loopback TCP or
// AF_UNIX connection never crosses a byte-order boundary in practice); see
// DESIGN.md for the open question this carries forward from the original.
var byteOrder = binary.NativeEndian

// HeaderSize is the fixed size, in bytes, of a TranslatorMsgHdr frame
// header: a 32-bit message id followed by a 32-bit signed payload size.
const HeaderSize = 8

// Header is the fixed 8-byte frame header preceding every message payload.
type Header struct {
	ID   MsgID
	Size int32
}

func (h Header) marshal() [HeaderSize]byte {
	var buf [HeaderSize]byte
	byteOrder.PutUint32(buf[0:4], uint32(h.ID))
	byteOrder.PutUint32(buf[4:8], uint32(h.Size))
	return buf
}

func unmarshalHeader(buf []byte) Header {
	return Header{
		ID:   MsgID(byteOrder.Uint32(buf[0:4])),
		Size: int32(byteOrder.Uint32(buf[4:8])),
	}
}

// Copyright 2015-2026 National Technology & Engineering Solutions of Sandia, LLC (NTESS).
// Under the terms of Contract DE-NA0003525 with NTESS, the U.S. Government retains certain
// rights in this software.

package wire

// ServerConfig is the C_INIT payload: the client's declaration of the guest
// and host architectures and the stack alignment it requires.
type ServerConfig struct {
	GuestArch      uint32 // ELF e_machine of the guest binary (debug/elf.Machine)
	HostArch       uint32 // ELF e_machine of the translation host
	StackAlignment uint32 // in bytes, 0 = default
}

const ServerConfigSize = 12

func (c ServerConfig) Marshal() []byte {
	buf := make([]byte, ServerConfigSize)
	byteOrder.PutUint32(buf[0:4], c.GuestArch)
	byteOrder.PutUint32(buf[4:8], c.HostArch)
	byteOrder.PutUint32(buf[8:12], c.StackAlignment)
	return buf
}

func UnmarshalServerConfig(buf []byte) (ServerConfig, error) {
	if len(buf) != ServerConfigSize {
		return ServerConfig{}, ErrProtocol
	}
	return ServerConfig{
		GuestArch:      byteOrder.Uint32(buf[0:4]),
		HostArch:       byteOrder.Uint32(buf[4:8]),
		StackAlignment: byteOrder.Uint32(buf[8:12]),
	}, nil
}

// PerfMode mirrors the original's `perf` command-line option.
type PerfMode uint8

const (
	PerfDisabled PerfMode = iota
	PerfMap               // write a perf memory map
	PerfJitdump           // write a jitdump file
)

// Config is the S_INIT payload: the server's negotiated session parameters.
type Config struct {
	CallConv uint8 // negotiated calling-convention code, see internal/callconv
	Profile  bool
	Perf     PerfMode
	Trace    bool
}

const ConfigSize = 4

func (c Config) Marshal() []byte {
	buf := make([]byte, ConfigSize)
	buf[0] = c.CallConv
	buf[1] = boolByte(c.Profile)
	buf[2] = byte(c.Perf)
	buf[3] = boolByte(c.Trace)
	return buf
}

func UnmarshalConfig(buf []byte) (Config, error) {
	if len(buf) != ConfigSize {
		return Config{}, ErrProtocol
	}
	return Config{
		CallConv: buf[0],
		Profile:  buf[1] != 0,
		Perf:     PerfMode(buf[2]),
		Trace:    buf[3] != 0,
	}, nil
}

// MemReq is the S_MEMREQ payload: a request for up to BufSz bytes at Addr.
type MemReq struct {
	Addr  uint64
	BufSz uint64
}

const MemReqSize = 16

// MaxMemReq is the clamp applied client-side to every memory request,
// bounding the worst-case C_MEMBUF frame size.
const MaxMemReq = 0x1000

func (m MemReq) Marshal() []byte {
	buf := make([]byte, MemReqSize)
	byteOrder.PutUint64(buf[0:8], m.Addr)
	byteOrder.PutUint64(buf[8:16], m.BufSz)
	return buf
}

func UnmarshalMemReq(buf []byte) (MemReq, error) {
	if len(buf) != MemReqSize {
		return MemReq{}, ErrProtocol
	}
	return MemReq{
		Addr:  byteOrder.Uint64(buf[0:8]),
		BufSz: byteOrder.Uint64(buf[8:16]),
	}, nil
}

// MemBuf is the C_MEMBUF payload: up to BufSz bytes read at the requested
// address, or zeros if the read faulted, plus a one-byte status.
type MemBuf struct {
	Data  []byte
	Fault bool
}

func (m MemBuf) Marshal() []byte {
	buf := make([]byte, len(m.Data)+1)
	copy(buf, m.Data)
	buf[len(buf)-1] = boolByte(m.Fault)
	return buf
}

func UnmarshalMemBuf(buf []byte) (MemBuf, error) {
	if len(buf) < 1 {
		return MemBuf{}, ErrProtocol
	}
	return MemBuf{
		Data:  buf[:len(buf)-1],
		Fault: buf[len(buf)-1] != 0,
	}, nil
}

// FDReply is the in-band part of the S_FD payload; the file descriptor
// itself travels out-of-band as SCM_RIGHTS ancillary data.
type FDReply struct {
	ErrorCode int32
}

const FDReplySize = 4

func (r FDReply) Marshal() []byte {
	buf := make([]byte, FDReplySize)
	byteOrder.PutUint32(buf, uint32(r.ErrorCode))
	return buf
}

func UnmarshalFDReply(buf []byte) (FDReply, error) {
	if len(buf) != FDReplySize {
		return FDReply{}, ErrProtocol
	}
	return FDReply{ErrorCode: int32(byteOrder.Uint32(buf))}, nil
}

// HashSize is the length of the SHA-1 content hash tag (spec.md §4.4).
const HashSize = 20

// ObjectReply is the S_OBJECT payload: a relocatable object image,
// possibly empty on failure, optionally tagged with its content hash
// (spec.md §3, §4.4-§4.5). A hash is present on every successful emit
// (cache hit or miss) and absent on decode/lift failure; the leading flag
// byte disambiguates the two, since a hash is not otherwise
// distinguishable from object bytes at a fixed offset once the object
// itself may be empty.
type ObjectReply struct {
	HasHash bool
	Hash    [HashSize]byte
	Obj     []byte
}

func (o ObjectReply) Marshal() []byte {
	buf := make([]byte, 0, 1+HashSize+len(o.Obj))
	buf = append(buf, boolByte(o.HasHash))
	if o.HasHash {
		buf = append(buf, o.Hash[:]...)
	}
	buf = append(buf, o.Obj...)
	return buf
}

func UnmarshalObjectReply(buf []byte) (ObjectReply, error) {
	if len(buf) < 1 {
		return ObjectReply{}, ErrProtocol
	}
	var o ObjectReply
	o.HasHash = buf[0] != 0
	buf = buf[1:]
	if o.HasHash {
		if len(buf) < HashSize {
			return ObjectReply{}, ErrProtocol
		}
		copy(o.Hash[:], buf[:HashSize])
		buf = buf[HashSize:]
	}
	o.Obj = buf
	return o, nil
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

// Copyright 2015-2026 National Technology & Engineering Solutions of Sandia, LLC (NTESS).
// Under the terms of Contract DE-NA0003525 with NTESS, the U.S. Government retains certain
// rights in this software.

package server

import (
	"context"
	"encoding/hex"
	"fmt"
	"net"
	"sync/atomic"

	"golang.org/x/crypto/blake2b"

	"github.com/sandia-minimega/instrewd/internal/callconv"
	"github.com/sandia-minimega/instrewd/internal/minilog"
	"github.com/sandia-minimega/instrewd/pkg/codegen"
	"github.com/sandia-minimega/instrewd/pkg/lifter"
	"github.com/sandia-minimega/instrewd/pkg/wire"
)

var sessionCounter uint64

// Config bundles the per-server pieces HandleConn needs for every
// accepted connection: the external lifter and codegen backend
// collaborators (spec.md §1's excluded components, supplied concretely by
// cmd/instrewd) and the operator-controlled options from its flags.
type Config struct {
	Decoder      lifter.Decoder
	Backend      codegen.Backend
	Opts         Options
	FastccEnable bool

	// WireTracer, when non-nil, mirrors every connection's raw wire
	// traffic into a shared pcap capture (SPEC_FULL.md §4.9). Left nil by
	// default; cmd/instrewd only sets it when -wiretrace names a file.
	WireTracer *WireTracer
}

// HandleConn runs the server side of one connection start to finish:
// negotiate C_INIT/S_INIT, emit the bootstrap object, then dispatch
// C_TRANSLATE and C_FORK until the connection closes or a protocol error
// occurs. One goroutine owns the connection for its lifetime, mirroring
// minimega's commandSocketHandle (cmd/minimega/command_socket.go) and
// internal/qmp's single-reader-goroutine-per-connection discipline
// (spec.md §5).
func HandleConn(conn net.Conn, cfg Config) {
	defer conn.Close()

	traceID := newTraceID(conn)
	if cfg.WireTracer != nil {
		conn = &tracedConn{Conn: conn, tracer: cfg.WireTracer}
	}
	fr := wire.NewFramer(conn)

	sess, driver, err := negotiateInit(fr, cfg, traceID)
	if err != nil {
		minilog.Error("sess=%s init failed: %v", traceID, err)
		return
	}
	minilog.Info("sess=%s connection established (guest=0x%x host=0x%x callconv=%v)",
		sess.TraceID, sess.Config.GuestArch, sess.Config.HostArch, sess.CallConv)

	defer func() {
		if sess.Opts.Profile {
			CaptureProfile(sess.TraceID, sess.Timings).Log(sess.TraceID)
		}
	}()

	for {
		hdr, err := fr.PeekHeader()
		if err != nil {
			minilog.Debug("sess=%s connection closed: %v", sess.TraceID, err)
			return
		}

		switch hdr.ID {
		case wire.CTranslate:
			if err := dispatchTranslate(fr, driver, sess); err != nil {
				minilog.Error("sess=%s %v", sess.TraceID, err)
				return
			}

		case wire.CFork:
			if _, err := fr.ConsumeHeader(wire.CFork); err != nil {
				minilog.Error("sess=%s malformed C_FORK: %v", sess.TraceID, err)
				return
			}
			if err := HandleFork(fr, conn, func(c net.Conn) { HandleConn(c, cfg) }); err != nil {
				minilog.Error("sess=%s fork handoff failed: %v", sess.TraceID, err)
				return
			}

		default:
			minilog.Error("sess=%s unexpected message %v outside a translate/fork request", sess.TraceID, hdr.ID)
			return
		}
	}
}

func dispatchTranslate(fr *wire.Framer, driver *Driver, sess *Session) error {
	size, err := fr.ConsumeHeader(wire.CTranslate)
	if err != nil {
		return err
	}
	if size != 8 {
		return wire.ErrProtocol
	}
	payload, err := fr.RecvPayload(size)
	if err != nil {
		return err
	}
	addr := byteOrder.Uint64(payload)
	return driver.Translate(context.Background(), addr)
}

// negotiateInit handles C_INIT/S_INIT and the init-time bootstrap object
// (spec.md §4.5, §8 scenario 1), returning the session and driver the
// dispatch loop uses for the rest of the connection.
func negotiateInit(fr *wire.Framer, cfg Config, traceID string) (*Session, *Driver, error) {
	size, err := fr.ConsumeHeader(wire.CInit)
	if err != nil {
		return nil, nil, err
	}
	if size != wire.ServerConfigSize {
		return nil, nil, wire.ErrProtocol
	}
	payload, err := fr.RecvPayload(size)
	if err != nil {
		return nil, nil, err
	}
	serverCfg, err := wire.UnmarshalServerConfig(payload)
	if err != nil {
		return nil, nil, err
	}

	archName, ok := callconv.ArchName(serverCfg.GuestArch)
	if !ok {
		// spec.md §7: unsupported guest architecture at init is fatal,
		// before the session becomes usable.
		return nil, nil, fmt.Errorf("server: unsupported guest architecture %d", serverCfg.GuestArch)
	}
	cc := callconv.Negotiate(serverCfg.HostArch, serverCfg.GuestArch, cfg.FastccEnable)

	callRet := cfg.Opts.EnableCallret
	cpuinfo := archName == "x86-64"
	lifterCfg := lifter.Config{
		GuestArch:      archName,
		PCBaseSymbol:   "instrew_pc_base",
		SyscallSymbol:  callconv.SyscallHelper(archName),
		VerifyIR:       false,
		OverflowIntrin: false,
		CallRetClobber: !cfg.Opts.SafeCallRet,
	}
	if callRet {
		lifterCfg.CallTailSymbol = "instrew_call_cdecl"
	}
	if cpuinfo {
		lifterCfg.CPUInfoSymbol = "cpuid"
	}

	lifterCfgBytes := lifterCfg.AppendConfig(nil)
	codegenCfgBytes := cfg.Backend.AppendConfig(nil)

	sess := NewSession(serverCfg, cfg.Opts, cc, archName, callRet, cpuinfo, traceID, lifterCfgBytes, codegenCfgBytes)

	if err := fr.SendHeader(wire.SInit, wire.ConfigSize); err != nil {
		return nil, nil, err
	}
	clientCfg := wire.Config{
		CallConv: cc.ClientNumber(),
		Profile:  cfg.Opts.Profile,
		Perf:     cfg.Opts.Perf,
		Trace:    cfg.Opts.Trace,
	}
	if err := fr.SendPayload(clientCfg.Marshal()); err != nil {
		return nil, nil, err
	}

	tracer := &Tracer{Enabled: cfg.Opts.Trace}
	driver := NewDriver(fr, sess, cfg.Decoder, cfg.Backend, lifterCfg, tracer)

	// Bootstrap object (spec.md §8 scenario 1): the helper skeleton,
	// emitted at addr=0 with no hash. Per spec.md §9's open question this
	// is init-only and never enters the translation cache, so it bypasses
	// Session.Probe entirely.
	if err := cfg.Backend.GenerateCode(sess.Module, sess.ObjBuf); err != nil {
		return nil, nil, err
	}
	if err := SendObject(fr, sess.ObjBuf.Bytes(), nil); err != nil {
		return nil, nil, err
	}

	return sess, driver, nil
}

// newTraceID derives a short, non-cryptographic per-connection identifier
// from the connection's address pair and a monotonic counter
// (SPEC_FULL.md §4.11), logged on every line for this session so
// overlapping fork children are distinguishable.
func newTraceID(conn net.Conn) string {
	n := atomic.AddUint64(&sessionCounter, 1)
	seed := fmt.Sprintf("%s|%s|%d", conn.LocalAddr(), conn.RemoteAddr(), n)
	sum := blake2b.Sum256([]byte(seed))
	return hex.EncodeToString(sum[:6])
}

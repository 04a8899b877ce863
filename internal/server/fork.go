// Copyright 2015-2026 National Technology & Engineering Solutions of Sandia, LLC (NTESS).
// Under the terms of Contract DE-NA0003525 with NTESS, the U.S. Government retains certain
// rights in this software.

package server

import (
	"errors"
	"net"
	"os"

	"golang.org/x/sys/unix"

	"github.com/sandia-minimega/instrewd/pkg/wire"
)

// ErrNotUnixSocket is returned when C_FORK arrives on a connection that
// cannot carry SCM_RIGHTS ancillary data (spec.md §4.6 requires passing a
// file descriptor, which only AF_UNIX sockets support).
var ErrNotUnixSocket = errors.New("server: fork handoff requires an AF_UNIX connection")

// HandleFork implements the server side of C_FORK (spec.md §4.6): it
// creates a new full-duplex AF_UNIX socket pair, sends the client one end
// over SCM_RIGHTS alongside S_FD, and starts serve on the other end.
//
// Go has no direct analogue of the reference implementation's process
// fork: a Go process cannot duplicate its own running goroutines into a
// child the way the original spawns/duplicates server state. The
// idiomatic equivalent kept here is to start serve in a new goroutine
// with session state equivalent to a freshly accepted connection (spec.md
// §8 scenario 6: "state equivalent to a fresh session for the child"),
// which is what every observable property of the handoff actually
// requires.
func HandleFork(fr *wire.Framer, conn net.Conn, serve func(net.Conn)) error {
	uc, ok := conn.(*net.UnixConn)
	if !ok {
		if err := sendFDReply(fr, nil, 1, -1); err != nil {
			return err
		}
		return ErrNotUnixSocket
	}

	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		_ = sendFDReply(fr, nil, 1, -1)
		return err
	}
	parentEnd, clientEnd := fds[0], fds[1]

	parentConn, err := fileConn(parentEnd)
	if err != nil {
		unix.Close(parentEnd)
		unix.Close(clientEnd)
		_ = sendFDReply(fr, nil, 1, -1)
		return err
	}

	if err := sendFDReply(fr, uc, 0, clientEnd); err != nil {
		unix.Close(clientEnd)
		parentConn.Close()
		return err
	}
	// The duplicate now lives in the client's process; this process's
	// copy of clientEnd is no longer needed.
	unix.Close(clientEnd)

	go serve(parentConn)
	return nil
}

// sendFDReply writes the S_FD reply: the in-band 4-byte error code,
// followed, on success, by fd as SCM_RIGHTS ancillary data attached to
// that same payload write. uc is nil (and fd ignored) for pre-socketpair
// failures, where there is nothing to hand off.
func sendFDReply(fr *wire.Framer, uc *net.UnixConn, code int32, fd int) error {
	if err := fr.SendHeader(wire.SFD, wire.FDReplySize); err != nil {
		return err
	}
	payload := wire.FDReply{ErrorCode: code}.Marshal()
	if uc == nil || code != 0 {
		return fr.SendPayload(payload)
	}

	rawConn, err := uc.SyscallConn()
	if err != nil {
		return err
	}
	var sendErr error
	ctrlErr := rawConn.Control(func(rawFD uintptr) {
		sendErr = unix.Sendmsg(int(rawFD), payload, unix.UnixRights(fd), nil, 0)
	})
	if ctrlErr != nil {
		return ctrlErr
	}
	return sendErr
}

// fileConn wraps fd (one end of a freshly created socket pair) as a
// net.Conn. net.FileConn dups fd internally, so f is closed immediately
// after.
func fileConn(fd int) (net.Conn, error) {
	f := os.NewFile(uintptr(fd), "instrewd-fork-child")
	conn, err := net.FileConn(f)
	f.Close()
	if err != nil {
		return nil, err
	}
	return conn, nil
}

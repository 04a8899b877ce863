// Copyright 2015-2026 National Technology & Engineering Solutions of Sandia, LLC (NTESS).
// Under the terms of Contract DE-NA0003525 with NTESS, the U.S. Government retains certain
// rights in this software.

package client

import (
	"fmt"
	"net"

	"golang.org/x/sys/unix"

	"github.com/sandia-minimega/instrewd/pkg/wire"
)

// Fork negotiates the C_FORK/S_FD handoff (spec.md §4.6,
// original_source/client/translator.c's translator_fork_prepare /
// translator_fork_finalize): it sends C_FORK, receives the in-band error
// code and the SCM_RIGHTS file descriptor, closes the old connection, and
// returns a Translator retargeted at the new one with a fresh cache and
// scratch buffer — "state equivalent to a fresh session for the child"
// (spec.md §8 scenario 6).
func (t *Translator) Fork(conn net.Conn) (*Translator, error) {
	uc, ok := conn.(*net.UnixConn)
	if !ok {
		return nil, fmt.Errorf("client: fork handoff requires an AF_UNIX connection")
	}

	if err := t.fr.SendHeader(wire.CFork, 0); err != nil {
		return nil, err
	}

	size, err := t.fr.ConsumeHeader(wire.SFD)
	if err != nil {
		return nil, err
	}
	if size != wire.FDReplySize {
		return nil, wire.ErrProtocol
	}

	oob := make([]byte, unix.CmsgSpace(4))
	payload := make([]byte, wire.FDReplySize)
	rawConn, err := uc.SyscallConn()
	if err != nil {
		return nil, err
	}
	var n, oobn int
	var recvErr error
	ctrlErr := rawConn.Control(func(rawFD uintptr) {
		n, oobn, _, _, recvErr = unix.Recvmsg(int(rawFD), payload, oob, 0)
	})
	if ctrlErr != nil {
		return nil, ctrlErr
	}
	if recvErr != nil {
		return nil, recvErr
	}
	if n != len(payload) {
		return nil, wire.ErrProtocol
	}

	reply, err := wire.UnmarshalFDReply(payload)
	if err != nil {
		return nil, err
	}
	if reply.ErrorCode != 0 {
		return nil, fmt.Errorf("client: fork handoff failed with error %d", reply.ErrorCode)
	}

	fd, err := parseOneRight(oob[:oobn])
	if err != nil {
		return nil, err
	}

	newConn, err := fileConn(fd)
	if err != nil {
		return nil, err
	}

	conn.Close()
	return &Translator{
		fr:     wire.NewFramer(newConn),
		mem:    t.mem,
		cache:  NewCache(),
		Config: t.Config,
	}, nil
}

// parseOneRight extracts exactly one file descriptor from SCM_RIGHTS
// ancillary data. Anything else — no control message, a different type,
// or more than one descriptor — is a protocol error (spec.md §4.6: "If...
// the control message is not exactly one SCM_RIGHTS entry with one
// integer, it is a protocol error").
func parseOneRight(oob []byte) (int, error) {
	msgs, err := unix.ParseSocketControlMessage(oob)
	if err != nil {
		return -1, err
	}
	if len(msgs) != 1 {
		return -1, wire.ErrProtocol
	}
	fds, err := unix.ParseUnixRights(&msgs[0])
	if err != nil {
		return -1, err
	}
	if len(fds) != 1 {
		return -1, wire.ErrProtocol
	}
	return fds[0], nil
}

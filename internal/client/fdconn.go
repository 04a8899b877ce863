// Copyright 2015-2026 National Technology & Engineering Solutions of Sandia, LLC (NTESS).
// Under the terms of Contract DE-NA0003525 with NTESS, the U.S. Government retains certain
// rights in this software.

package client

import (
	"net"
	"os"
)

// fileConn wraps a raw file descriptor (inherited at process start, or
// received over SCM_RIGHTS during fork handoff) as a net.Conn. net.FileConn
// dups fd internally, so f is closed immediately after.
func fileConn(fd int) (net.Conn, error) {
	f := os.NewFile(uintptr(fd), "instrewd-server")
	conn, err := net.FileConn(f)
	f.Close()
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// Copyright 2015-2026 National Technology & Engineering Solutions of Sandia, LLC (NTESS).
// Under the terms of Contract DE-NA0003525 with NTESS, the U.S. Government retains certain
// rights in this software.

package client

import "net"

// ParseInheritedFD decodes an ASCII decimal file descriptor number
// character-by-character, exactly as original_source/client/translator.c's
// translator_init does: no hostname, port, or path is involved (spec.md
// §6), and the loop never backs out on a non-digit byte — it is carried
// forward unchanged, digit or not, matching the original's hand-rolled
// parser rather than delegating to strconv.Atoi.
func ParseInheritedFD(s string) int {
	fd := 0
	for i := 0; i < len(s); i++ {
		fd = fd*10 + int(s[i]-'0')
	}
	return fd
}

// DialInherited wraps an inherited socket file descriptor number (as
// delivered to the client process, spec.md §6) as a net.Conn.
func DialInherited(fdStr string) (net.Conn, error) {
	return fileConn(ParseInheritedFD(fdStr))
}

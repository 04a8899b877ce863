// Copyright 2015-2026 National Technology & Engineering Solutions of Sandia, LLC (NTESS).
// Under the terms of Contract DE-NA0003525 with NTESS, the U.S. Government retains certain
// rights in this software.

package client

import "encoding/binary"

// byteOrder matches pkg/wire's and internal/server's: the protocol assumes
// host-native endianness across the socket (spec.md §6), which only holds
// for a loopback/Unix-domain connection.
var byteOrder = binary.NativeEndian

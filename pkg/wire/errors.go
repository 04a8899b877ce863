// Copyright 2015-2026 National Technology & Engineering Solutions of Sandia, LLC (NTESS).
// Under the terms of Contract DE-NA0003525 with NTESS, the U.S. Government retains certain
// rights in this software.

package wire

import "errors"

var (
	// ErrProtocol is returned whenever a header arrives out of expected
	// order, with a mismatched id, or with a size that doesn't match the
	// payload the message id requires.
	ErrProtocol = errors.New("wire: protocol error")

	// ErrHeaderPending is returned by SendHeader when a header has already
	// been peeked on this side of the connection but not yet consumed: at
	// most one TranslatorMsgHdr may be outstanding per direction.
	ErrHeaderPending = errors.New("wire: header already pending")
)

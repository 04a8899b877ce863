// Copyright 2018-2026 National Technology & Engineering Solutions of Sandia, LLC (NTESS).
// Under the terms of Contract DE-NA0003525 with NTESS, the U.S. Government retains certain
// rights in this software.

// Package callconv negotiates and names the per-(host,guest) register-based
// "fast" calling convention a session uses, grounded on the original's
// GetFastCC/ChangeCallConv/GetCallConvClientNumber
// (original_source/server/rewriteserver.cc).
package callconv

import (
	"debug/elf"
	"fmt"
)

// CallConv identifies a negotiated calling convention.
type CallConv int

const (
	// CDECL is the portable, stack-based fallback convention used when
	// fastcc is disabled or no fast convention exists for the
	// (host, guest) pair.
	CDECL CallConv = iota
	FastX86X86
	FastX86RV64
	FastX86AArch64
)

func (c CallConv) String() string {
	switch c {
	case CDECL:
		return "cdecl"
	case FastX86X86:
		return "fast-x86-x86"
	case FastX86RV64:
		return "fast-x86-rv64"
	case FastX86AArch64:
		return "fast-x86-aarch64"
	default:
		return fmt.Sprintf("callconv(%d)", int(c))
	}
}

// ClientNumber returns the wire-level code sent to the client in the
// S_INIT TranslatorConfig payload.
func (c CallConv) ClientNumber() uint8 { return uint8(c) }

// GetFastCC returns the one fast calling convention registered for a given
// (hostArch, guestArch) pair, or CDECL if none is known — "backward
// compatibility: only one fast CC per guest-host pair now" per the
// original.
func GetFastCC(hostArch, guestArch uint32) CallConv {
	if hostArch != uint32(elf.EM_X86_64) {
		return CDECL
	}
	switch guestArch {
	case uint32(elf.EM_X86_64):
		return FastX86X86
	case uint32(elf.EM_RISCV):
		return FastX86RV64
	case uint32(elf.EM_AARCH64):
		return FastX86AArch64
	default:
		return CDECL
	}
}

// Negotiate picks the session's calling convention: the fast convention for
// (hostArch, guestArch) when fastcc is enabled and one exists, else cdecl.
func Negotiate(hostArch, guestArch uint32, fastccEnabled bool) CallConv {
	if !fastccEnabled {
		return CDECL
	}
	return GetFastCC(hostArch, guestArch)
}

// ArchName maps an ELF e_machine constant to the lifter's architecture
// name (lifter.Config.GuestArch), per original_source/server/rewriteserver.cc's
// guest-arch dispatch. ok is false for unsupported guest architectures,
// which spec.md §7 calls out as a fatal, pre-session error.
func ArchName(machine uint32) (name string, ok bool) {
	switch machine {
	case uint32(elf.EM_X86_64):
		return "x86-64", true
	case uint32(elf.EM_RISCV):
		return "rv64", true
	case uint32(elf.EM_AARCH64):
		return "aarch64", true
	default:
		return "", false
	}
}

// SyscallHelper returns the syscall-helper symbol name the lifter should be
// configured with for the given guest architecture (already validated via
// ArchName).
func SyscallHelper(archName string) string {
	switch archName {
	case "x86-64":
		return "syscall"
	case "rv64":
		return "syscall_rv64"
	case "aarch64":
		return "syscall_aarch64"
	default:
		return "syscall"
	}
}

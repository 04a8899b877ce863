// Copyright 2018-2026 National Technology & Engineering Solutions of Sandia, LLC (NTESS).
// Under the terms of Contract DE-NA0003525 with NTESS, the U.S. Government retains certain
// rights in this software.

package callconv

import (
	"debug/elf"
	"testing"
)

func TestNegotiateFastX86X86(t *testing.T) {
	cc := Negotiate(uint32(elf.EM_X86_64), uint32(elf.EM_X86_64), true)
	if cc != FastX86X86 {
		t.Fatalf("got %v, want %v", cc, FastX86X86)
	}
	if cc.String() != "fast-x86-x86" {
		t.Fatalf("String() = %q", cc.String())
	}
}

func TestNegotiateDisabledFallsBackToCDECL(t *testing.T) {
	cc := Negotiate(uint32(elf.EM_X86_64), uint32(elf.EM_X86_64), false)
	if cc != CDECL {
		t.Fatalf("got %v, want CDECL", cc)
	}
}

func TestNegotiateUnknownHostFallsBackToCDECL(t *testing.T) {
	cc := Negotiate(uint32(elf.EM_AARCH64), uint32(elf.EM_X86_64), true)
	if cc != CDECL {
		t.Fatalf("got %v, want CDECL", cc)
	}
}

func TestArchName(t *testing.T) {
	cases := []struct {
		machine uint32
		name    string
		ok      bool
	}{
		{uint32(elf.EM_X86_64), "x86-64", true},
		{uint32(elf.EM_RISCV), "rv64", true},
		{uint32(elf.EM_AARCH64), "aarch64", true},
		{uint32(elf.EM_386), "", false},
	}
	for _, c := range cases {
		name, ok := ArchName(c.machine)
		if name != c.name || ok != c.ok {
			t.Errorf("ArchName(%d) = (%q, %v), want (%q, %v)", c.machine, name, ok, c.name, c.ok)
		}
	}
}

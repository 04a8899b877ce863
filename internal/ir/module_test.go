// Copyright 2018-2026 National Technology & Engineering Solutions of Sandia, LLC (NTESS).
// Under the terms of Contract DE-NA0003525 with NTESS, the U.S. Government retains certain
// rights in this software.

package ir

import "testing"

func TestEraseUnusedFunctionsKeepsHelpers(t *testing.T) {
	m := NewModule("instrew_baseaddr")
	m.DeclareHelper("syscall")
	m.DeclareHelper("cpuid")

	fn, err := m.AddFunction("S0_401000")
	if err != nil {
		t.Fatal(err)
	}
	if fn.Name() != "S0_401000" {
		t.Fatalf("name = %q", fn.Name())
	}

	if m.HasExternalBody() == false {
		t.Fatal("expected a body before erase")
	}

	removed := m.EraseUnusedFunctions()
	if len(removed) != 1 || removed[0] != "S0_401000" {
		t.Fatalf("removed = %v", removed)
	}

	if m.HasExternalBody() {
		t.Fatal("expected no bodies after erase")
	}
	if got := m.FunctionCount(); got != 2 {
		t.Fatalf("FunctionCount = %d, want 2 (helpers only)", got)
	}
}

func TestAddFunctionDuplicateName(t *testing.T) {
	m := NewModule("instrew_baseaddr")
	if _, err := m.AddFunction("S0_0"); err != nil {
		t.Fatal(err)
	}
	if _, err := m.AddFunction("S0_0"); err == nil {
		t.Fatal("expected error on duplicate function name")
	}
}

func TestModuleFootprintStableAcrossRequests(t *testing.T) {
	m := NewModule("instrew_baseaddr")
	m.DeclareHelper("syscall")

	for i := 0; i < 50; i++ {
		if _, err := m.AddFunction("S0_x"); err != nil {
			t.Fatal(err)
		}
		m.EraseUnusedFunctions()
		if got := m.FunctionCount(); got != 1 {
			t.Fatalf("iteration %d: FunctionCount = %d, want 1", i, got)
		}
	}
}

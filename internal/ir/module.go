// Copyright 2018-2026 National Technology & Engineering Solutions of Sandia, LLC (NTESS).
// Under the terms of Contract DE-NA0003525 with NTESS, the U.S. Government retains certain
// rights in this software.

// Package ir models the minimal persistent-module state the translation
// driver needs between requests: a function table keyed by symbol name, a
// small set of helper declarations, and a program-counter-base global. The
// real intermediate representation — instructions, basic blocks, types — is
// produced and consumed entirely inside the external lifter and codegen
// backend (pkg/lifter, pkg/codegen); this package only tracks enough
// bookkeeping for the driver to add a translated function, keep persistent
// helpers alive across the erase-unused-functions pass, and know when the
// module is back to its steady-state (helpers-only) shape.
package ir

import "fmt"

// Linkage mirrors the handful of linkage kinds the driver cares about.
type Linkage int

const (
	// Internal functions are private to the module.
	Internal Linkage = iota
	// External functions are visible to the codegen backend's symbol
	// resolution (helpers, and every freshly lifted function).
	External
)

// FuncHandle is an opaque reference to a function the lifter produced;
// ir.Module never looks inside it, it only tracks name/linkage/use-count
// bookkeeping around it.
type FuncHandle struct {
	mod  *Module
	name string
}

func (h *FuncHandle) Name() string { return h.name }

// Module is the server's single long-lived IR module for a session. Per
// spec.md §3 it "exclusively owns helpers and the PC-base global for the
// lifetime of the session" and "must contain no function bodies of
// external-linkage functions" once steady state is reached (helpers are
// declarations only; translated functions are erased once the codegen
// backend has consumed them and nothing else references them).
type Module struct {
	pcBaseSymbol string
	helpers      []string
	fns          map[string]*fnEntry
	kept         map[string]bool // roots the erase pass must never remove
}

type fnEntry struct {
	linkage Linkage
	hasBody bool
	users   int
}

// NewModule creates an empty module with the given PC-base global symbol.
func NewModule(pcBaseSymbol string) *Module {
	return &Module{
		pcBaseSymbol: pcBaseSymbol,
		fns:          make(map[string]*fnEntry),
		kept:         make(map[string]bool),
	}
}

// PCBaseSymbol returns the module-scoped PC-base global's symbol name.
func (m *Module) PCBaseSymbol() string { return m.pcBaseSymbol }

// DeclareHelper adds a persistent, external-linkage helper declaration
// (e.g. "syscall", "instrew_call_cdecl", "cpuid"). Helpers are declared
// once at session setup and referenced, never redefined, by every emitted
// function; they are marked kept so the unused-function erase pass can
// never remove them even though the driver doesn't explicitly track uses
// of a declaration-only function.
func (m *Module) DeclareHelper(name string) {
	m.helpers = append(m.helpers, name)
	m.fns[name] = &fnEntry{linkage: External}
	m.kept[name] = true
}

// Helpers returns the helper symbol names declared for this session, in
// declaration order.
func (m *Module) Helpers() []string {
	out := make([]string, len(m.helpers))
	copy(out, m.helpers)
	return out
}

// Keep marks name as a root the erase-unused-functions pass must never
// remove, independent of use-count — modeling the "llvm.used" appending
// global the original uses to keep helpers and pc_base referenced (see
// SPEC_FULL.md §9).
func (m *Module) Keep(name string) { m.kept[name] = true }

// AddFunction appends a freshly lifted function to the module under name
// (spec.md §4.5 step 5: "S0_<hex address>"). It is an error to reuse a name
// already present.
func (m *Module) AddFunction(name string) (*FuncHandle, error) {
	if _, exists := m.fns[name]; exists {
		return nil, fmt.Errorf("ir: function %q already exists in module", name)
	}
	m.fns[name] = &fnEntry{linkage: External, hasBody: true}
	return &FuncHandle{mod: m, name: name}, nil
}

// MarkUser records that fn references callee (e.g. a call to a helper),
// keeping callee alive through the next erase pass.
func (m *Module) MarkUser(callee string) {
	if e, ok := m.fns[callee]; ok {
		e.users++
	}
}

// EraseUnusedFunctions removes every module function with no remaining
// users and no kept root, per spec.md §4.5 step 9 ("keeps the module's
// function-table footprint roughly constant across a session"). It returns
// the names removed, for logging/tests.
func (m *Module) EraseUnusedFunctions() []string {
	var removed []string
	for name, e := range m.fns {
		if m.kept[name] {
			continue
		}
		if e.users > 0 {
			continue
		}
		// Helpers are always kept; only bodies (the per-request lifted
		// functions) are candidates here once their single user — the
		// object the codegen backend just emitted — has been consumed.
		if e.hasBody {
			delete(m.fns, name)
			removed = append(removed, name)
		}
	}
	return removed
}

// FunctionCount reports the module's current function-table size, used by
// tests asserting the table stays bounded across many translations.
func (m *Module) FunctionCount() int { return len(m.fns) }

// HasExternalBody reports whether any function other than a declared
// helper still carries a body — the invariant spec.md §8 requires to hold
// after every Translate call.
func (m *Module) HasExternalBody() bool {
	for name, e := range m.fns {
		if m.kept[name] {
			continue
		}
		if _, isHelper := findHelper(m.helpers, name); isHelper {
			continue
		}
		if e.linkage == External && e.hasBody {
			return true
		}
	}
	return false
}

func findHelper(helpers []string, name string) (int, bool) {
	for i, h := range helpers {
		if h == name {
			return i, true
		}
	}
	return -1, false
}

// Copyright 2015-2026 National Technology & Engineering Solutions of Sandia, LLC (NTESS).
// Under the terms of Contract DE-NA0003525 with NTESS, the U.S. Government retains certain
// rights in this software.

package server

import (
	"bytes"
	"testing"

	"github.com/sandia-minimega/instrewd/pkg/wire"
)

func testServerConfig() wire.ServerConfig {
	return wire.ServerConfig{GuestArch: 0x3e, HostArch: 0x3e, StackAlignment: 16}
}

func TestConfigPrefixDeterministic(t *testing.T) {
	opts := Options{EnableFastcc: true}
	a := buildConfigPrefix(testServerConfig(), opts, []byte("lifter"), []byte("codegen"))
	b := buildConfigPrefix(testServerConfig(), opts, []byte("lifter"), []byte("codegen"))
	if !bytes.Equal(a, b) {
		t.Fatalf("prefix not deterministic: %x != %x", a, b)
	}
}

func TestConfigPrefixDiffersOnFlags(t *testing.T) {
	a := buildConfigPrefix(testServerConfig(), Options{EnablePIC: true}, nil, nil)
	b := buildConfigPrefix(testServerConfig(), Options{EnablePIC: false}, nil, nil)
	if bytes.Equal(a, b) {
		t.Fatalf("expected differing prefixes for differing PIC flags")
	}
}

func TestHashBuilderResetKeepsPrefix(t *testing.T) {
	prefix := []byte{1, 2, 3, 4}
	hb := NewHashBuilder(prefix)
	hb.AppendAddress(0x1000, false)
	hb.AppendRange(0x1000, 0x1000, 0x1010, bytes.Repeat([]byte{0xaa}, 16))
	sumWithExtra := hb.Sum()

	hb.Reset()
	sumAfterReset := hb.Sum()

	freshPrefixOnly := NewHashBuilder(prefix).Sum()
	if sumAfterReset != freshPrefixOnly {
		t.Fatalf("Reset did not truncate back to the bare prefix")
	}
	if sumWithExtra == sumAfterReset {
		t.Fatalf("expected different hashes before/after appending range data")
	}
}

func TestHashStableAcrossIdenticalInputs(t *testing.T) {
	prefix := buildConfigPrefix(testServerConfig(), Options{}, nil, nil)
	data := bytes.Repeat([]byte{0x90}, 28)

	h1 := NewHashBuilder(prefix)
	h1.AppendAddress(0x401000, false)
	h1.AppendRange(0x401000, 0x401000, 0x40101c, data)

	h2 := NewHashBuilder(prefix)
	h2.AppendAddress(0x401000, false)
	h2.AppendRange(0x401000, 0x401000, 0x40101c, data)

	if h1.Sum() != h2.Sum() {
		t.Fatalf("identical (config, ranges, address) inputs produced different hashes")
	}
}

func TestHashIndependentOfAddressUnderPIC(t *testing.T) {
	prefix := buildConfigPrefix(testServerConfig(), Options{EnablePIC: true}, nil, nil)
	data := bytes.Repeat([]byte{0x90}, 28)

	h1 := NewHashBuilder(prefix)
	h1.AppendAddress(0x401000, true)
	h1.AppendRange(0x401000, 0x401000, 0x40101c, data)

	h2 := NewHashBuilder(prefix)
	h2.AppendAddress(0x500000, true)
	h2.AppendRange(0x500000, 0x500000, 0x50001c, data)

	if h1.Sum() != h2.Sum() {
		t.Fatalf("PIC hashes must be independent of address: %x != %x", h1.Sum(), h2.Sum())
	}
}

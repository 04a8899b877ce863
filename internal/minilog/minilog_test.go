// Copyright 2012-2026 National Technology & Engineering Solutions of Sandia, LLC (NTESS).
// Under the terms of Contract DE-NA0003525 with NTESS, the U.S. Government retains certain
// rights in this software.

package minilog

import (
	"bytes"
	"strings"
	"testing"
)

func TestFilter(t *testing.T) {
	sink1 := new(bytes.Buffer)
	defer DelLogger("sink1Level")

	AddLogger("sink1Level", sink1, DEBUG, false)

	testString := "test 123"
	testString2 := "test 456"

	Debugln(testString)

	if s1 := sink1.String(); !strings.Contains(s1, testString) {
		t.Fatal("sink1 got:", s1)
	}

	if err := AddFilter("sink1Level", "minilog_test"); err != nil {
		t.Fatal(err)
	}

	Debugln(testString2)

	if s1 := sink1.String(); strings.Contains(s1, testString2) {
		t.Fatal("sink1 got:", s1)
	}

	if err := DelFilter("sink1Level", "minilog_test"); err != nil {
		t.Fatal(err)
	}

	Debugln(testString2)

	if s1 := sink1.String(); !strings.Contains(s1, testString2) {
		t.Fatal("sink1 got:", s1)
	}
}

func TestMultilog(t *testing.T) {
	sink1 := new(bytes.Buffer)
	sink2 := new(bytes.Buffer)
	defer DelLogger("sink1")
	defer DelLogger("sink2")

	AddLogger("sink1", sink1, DEBUG, false)
	AddLogger("sink2", sink2, DEBUG, false)

	testString := "test 123"

	Debugln(testString)

	if s1 := sink1.String(); !strings.Contains(s1, testString) {
		t.Fatal("sink1 got:", s1)
	}
	if s2 := sink2.String(); !strings.Contains(s2, testString) {
		t.Fatal("sink2 got:", s2)
	}
}

func TestLogLevels(t *testing.T) {
	sink1 := new(bytes.Buffer)
	sink2 := new(bytes.Buffer)
	defer DelLogger("sink1Level2")
	defer DelLogger("sink2Level2")

	AddLogger("sink1Level2", sink1, DEBUG, false)
	AddLogger("sink2Level2", sink2, INFO, false)

	testString := "test 123"

	Debugln(testString)

	if s1 := sink1.String(); !strings.Contains(s1, testString) {
		t.Fatal("sink1 got:", s1)
	}
	if s2 := sink2.String(); len(s2) != 0 {
		t.Fatal("sink2 got:", s2)
	}
}

func TestRingDump(t *testing.T) {
	r := NewRing(2)
	r.Println("first")
	r.Println("second")
	r.Println("third")

	dump := r.Dump()
	if len(dump) != 2 {
		t.Fatalf("expected 2 entries, got %d: %v", len(dump), dump)
	}
	if !strings.Contains(dump[0], "second") || !strings.Contains(dump[1], "third") {
		t.Fatalf("ring did not evict oldest entry: %v", dump)
	}
}

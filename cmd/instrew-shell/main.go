// Copyright 2018-2026 National Technology & Engineering Solutions of Sandia, LLC (NTESS).
// Under the terms of Contract DE-NA0003525 with NTESS, the U.S. Government retains certain
// rights in this software.

// instrew-shell is a small line-oriented operator REPL for manually
// driving translation requests against a running instrewd server
// (SPEC_FULL.md §4.12). It connects as a bare client, issues C_INIT with
// operator-supplied guest/host/stack-alignment values, and then accepts
// "translate <hex addr>" commands, printing the returned object size and a
// SHA-1 digest of the object bytes (not the server's content hash, which
// Get does not expose) or the protocol error. It never links or dispatches the
// returned object, so it is explicitly not the "client runtime" spec.md
// §1 excludes from scope.
package main

import (
	"crypto/sha1"
	"debug/elf"
	"flag"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"

	"github.com/peterh/liner"

	"github.com/sandia-minimega/instrewd/internal/client"
	"github.com/sandia-minimega/instrewd/internal/minilog"
	"github.com/sandia-minimega/instrewd/pkg/wire"
)

var (
	f_network = flag.String("net", "unix", "server network: unix or tcp")
	f_addr    = flag.String("addr", "/tmp/instrewd.sock", "server address (socket path for -net unix, host:port for -net tcp)")

	f_guestArch = flag.String("guest", "x86-64", "guest architecture: x86-64, rv64, or aarch64")
	f_hostArch  = flag.String("host", "x86-64", "host architecture: x86-64, rv64, or aarch64")
	f_stackAlig = flag.Uint("stack-align", 16, "stack alignment in bytes, 0 for server default")
)

func machineOf(name string) (uint32, error) {
	switch name {
	case "x86-64":
		return uint32(elf.EM_X86_64), nil
	case "rv64":
		return uint32(elf.EM_RISCV), nil
	case "aarch64":
		return uint32(elf.EM_AARCH64), nil
	default:
		return 0, fmt.Errorf("unknown architecture %q", name)
	}
}

// nullMemSource reports every guest address as unreadable: instrew-shell
// has no guest process behind it, so every S_MEMREQ the server issues
// faults (spec.md §4.3 treats this as a non-fatal, expected condition).
func nullMemSource(addr, end uint64, out []byte) bool {
	for i := range out {
		out[i] = 0
	}
	return false
}

func main() {
	flag.Usage = func() {
		fmt.Println("usage: instrew-shell [option]...")
		flag.PrintDefaults()
	}
	flag.Parse()
	minilog.Init()

	guestArch, err := machineOf(*f_guestArch)
	if err != nil {
		minilog.Fatal("instrew-shell: %v", err)
	}
	hostArch, err := machineOf(*f_hostArch)
	if err != nil {
		minilog.Fatal("instrew-shell: %v", err)
	}

	conn, err := net.Dial(*f_network, *f_addr)
	if err != nil {
		minilog.Fatal("instrew-shell: dial %s:%s: %v", *f_network, *f_addr, err)
	}
	defer conn.Close()

	scfg := wire.ServerConfig{
		GuestArch:      guestArch,
		HostArch:       hostArch,
		StackAlignment: uint32(*f_stackAlig),
	}

	var bootstrapSize int
	t, err := client.Init(conn, scfg, nullMemSource, func(obj []byte) error {
		bootstrapSize = len(obj)
		return nil
	})
	if err != nil {
		minilog.Fatal("instrew-shell: init: %v", err)
	}
	fmt.Printf("connected: callconv=%d profile=%v trace=%v (bootstrap object %d bytes)\n",
		t.Config.CallConv, t.Config.Profile, t.Config.Trace, bootstrapSize)

	input := liner.NewLiner()
	defer input.Close()
	input.SetCtrlCAborts(true)

	for {
		line, err := input.Prompt("instrew> ")
		if err == liner.ErrPromptAborted {
			continue
		} else if err == io.EOF {
			fmt.Println()
			break
		} else if err != nil {
			minilog.Errorln(err)
			break
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		input.AppendHistory(line)

		if line == "quit" || line == "exit" {
			break
		}

		fields := strings.Fields(line)
		switch fields[0] {
		case "translate":
			if len(fields) != 2 {
				fmt.Println("usage: translate <hex addr>")
				continue
			}
			runTranslate(t, fields[1])
		case "help":
			fmt.Println("commands: translate <hex addr>, quit")
		default:
			fmt.Printf("unknown command %q (try: help)\n", fields[0])
		}
	}
}

func runTranslate(t *client.Translator, hexAddr string) {
	addr, err := strconv.ParseUint(strings.TrimPrefix(hexAddr, "0x"), 16, 64)
	if err != nil {
		fmt.Printf("bad address %q: %v\n", hexAddr, err)
		return
	}

	obj, err := t.Get(addr)
	if err != nil {
		fmt.Printf("translate 0x%x: protocol error: %v\n", addr, err)
		return
	}
	if obj == nil {
		fmt.Printf("translate 0x%x: untranslatable (decode/lift failure)\n", addr)
		return
	}
	fmt.Printf("translate 0x%x: %d bytes, sha1=%x\n", addr, len(obj), sha1.Sum(obj))
}

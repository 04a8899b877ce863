// Copyright 2018-2026 National Technology & Engineering Solutions of Sandia, LLC (NTESS).
// Under the terms of Contract DE-NA0003525 with NTESS, the U.S. Government retains certain
// rights in this software.

// instrewd is the dynamic binary translation server (spec.md §1, §2): it
// accepts one client connection per socket, negotiates C_INIT/S_INIT, and
// then serves C_TRANSLATE/C_FORK requests until the connection closes.
package main

import (
	"flag"
	"fmt"
	"net"
	"os"

	"github.com/sandia-minimega/instrewd/internal/minilog"
	"github.com/sandia-minimega/instrewd/internal/server"
	"github.com/sandia-minimega/instrewd/pkg/codegen"
	"github.com/sandia-minimega/instrewd/pkg/lifter"
	"github.com/sandia-minimega/instrewd/pkg/wire"
)

const banner = `instrewd, Copyright 2026 National Technology & Engineering Solutions of Sandia, LLC (NTESS).
Under the terms of Contract DE-NA0003525 with NTESS, the U.S. Government retains certain rights in this software.`

var (
	f_network = flag.String("net", "unix", "listener network: unix or tcp")
	f_addr    = flag.String("addr", "/tmp/instrewd.sock", "listener address (socket path for -net unix, host:port for -net tcp)")
	f_version = flag.Bool("version", false, "print the version and copyright notice")

	f_safeCallRet = flag.Bool("safe-call-ret", false, "don't clobber flags on call/ret instructions")
	f_callret     = flag.Bool("callret", false, "enable call-ret lifting")
	f_fastcc      = flag.Bool("fastcc", true, "enable register-based calling convention")
	f_pic         = flag.Bool("pic", false, "compile code position-independent")

	f_profile = flag.Bool("profile", false, "profile translation")
	f_trace   = flag.Bool("trace", false, "trace execution (lots of logs)")
	f_perf    = flag.Uint("perf", 0, "perf support: 0=disabled, 1=perf memory map, 2=jitdump file")

	f_fakeLifter = flag.Bool("fake-lifter", false, "serve translations with the in-repo fake decoder/codegen instead of a real backend")

	f_wiretrace = flag.String("wiretrace", "", "record every connection's raw wire traffic to this pcap file (empty disables)")
)

func usage() {
	fmt.Println(banner)
	fmt.Println("usage: instrewd [option]...")
	flag.PrintDefaults()
}

func main() {
	flag.Usage = usage
	flag.Parse()

	minilog.Init()

	if *f_version {
		fmt.Println(banner)
		os.Exit(0)
	}

	if !*f_fakeLifter {
		minilog.Fatal("instrewd: no real lifter/codegen backend is wired in; pass -fake-lifter to exercise the protocol with the in-repo test doubles (spec.md §1 treats the lifter and codegen backend as external collaborators)")
	}

	if *f_network == "unix" {
		os.Remove(*f_addr)
	}
	l, err := net.Listen(*f_network, *f_addr)
	if err != nil {
		minilog.Fatal("instrewd: listen: %v", err)
	}
	defer l.Close()

	cfg := server.Config{
		Decoder: lifter.FakeDecoder{},
		Backend: codegen.FakeBackend{PIC: *f_pic},
		Opts: server.Options{
			SafeCallRet:   *f_safeCallRet,
			EnableCallret: *f_callret,
			EnableFastcc:  *f_fastcc,
			EnablePIC:     *f_pic,
			Profile:       *f_profile,
			Trace:         *f_trace,
			Perf:          wire.PerfMode(*f_perf),
		},
		FastccEnable: *f_fastcc,
	}

	if *f_wiretrace != "" {
		pcapFile, err := os.Create(*f_wiretrace)
		if err != nil {
			minilog.Fatal("instrewd: wiretrace: %v", err)
		}
		defer pcapFile.Close()
		tracer, err := server.NewWireTracer(pcapFile)
		if err != nil {
			minilog.Fatal("instrewd: wiretrace: %v", err)
		}
		cfg.WireTracer = tracer
		minilog.Info("instrewd: recording wire traffic to %s", *f_wiretrace)
	}

	minilog.Info("instrewd: listening on %s:%s", *f_network, *f_addr)
	for {
		conn, err := l.Accept()
		if err != nil {
			minilog.Error("instrewd: accept: %v", err)
			continue
		}
		minilog.Info("instrewd: client connected from %v", conn.RemoteAddr())
		go server.HandleConn(conn, cfg)
	}
}

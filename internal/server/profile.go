// Copyright 2015-2026 National Technology & Engineering Solutions of Sandia, LLC (NTESS).
// Under the terms of Contract DE-NA0003525 with NTESS, the U.S. Government retains certain
// rights in this software.

package server

import (
	linuxproc "github.com/c9s/goprocinfo/linux"

	"github.com/sandia-minimega/instrewd/internal/minilog"
)

// ProfileReport pairs a session's stage-duration accumulators with a
// point-in-time host resource snapshot, captured at session teardown when
// -profile is set (SPEC_FULL.md §4.10). This supplements spec.md §4.5's
// profiling counters with host-level context; goprocinfo gives the report
// a concrete shape instead of a bespoke /proc parser.
type ProfileReport struct {
	Timings Timings
	Stat    *linuxproc.Stat
	MemInfo *linuxproc.MemInfo
}

// CaptureProfile reads /proc/stat and /proc/meminfo if available and pairs
// them with the session's accumulated timings. A read failure (e.g. a
// non-Linux host, or a sandboxed /proc) is logged and otherwise ignored: a
// profiling snapshot is diagnostic, never load-bearing.
func CaptureProfile(sessID string, t Timings) ProfileReport {
	report := ProfileReport{Timings: t}
	if stat, err := linuxproc.ReadStat("/proc/stat"); err == nil {
		report.Stat = stat
	} else {
		minilog.Debug("sess=%s /proc/stat unavailable: %v", sessID, err)
	}
	if mem, err := linuxproc.ReadMemInfo("/proc/meminfo"); err == nil {
		report.MemInfo = mem
	} else {
		minilog.Debug("sess=%s /proc/meminfo unavailable: %v", sessID, err)
	}
	return report
}

// Log writes the profiling report through minilog at session teardown.
func (r ProfileReport) Log(sessID string) {
	minilog.Info("sess=%s profile requests=%d cache_hits=%d decode=%s lift=%s callconv=%s optimize=%s codegen=%s",
		sessID, r.Timings.Requests, r.Timings.CacheHits,
		r.Timings.Decode, r.Timings.Lift, r.Timings.CallConvRewrite, r.Timings.Optimize, r.Timings.Codegen)
	if r.MemInfo != nil {
		minilog.Info("sess=%s host memtotal=%dkB memfree=%dkB", sessID, r.MemInfo.MemTotal, r.MemInfo.MemFree)
	}
}

// Copyright 2015-2026 National Technology & Engineering Solutions of Sandia, LLC (NTESS).
// Under the terms of Contract DE-NA0003525 with NTESS, the U.S. Government retains certain
// rights in this software.

package server

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sandia-minimega/instrewd/internal/minilog"
	"github.com/sandia-minimega/instrewd/pkg/codegen"
	"github.com/sandia-minimega/instrewd/pkg/lifter"
	"github.com/sandia-minimega/instrewd/pkg/wire"
)

// Driver sequences decode, lift, calling-convention rewrite, optimize, and
// codegen for one session, per request (spec.md §4.5). It owns the
// lifetimes of per-request IR objects; the session's module, hash prefix,
// and object buffer persist across Driver.Translate calls.
type Driver struct {
	fr      *wire.Framer
	sess    *Session
	mem     *MemProxy
	decoder lifter.Decoder
	backend codegen.Backend

	lifterCfg lifter.Config
	tracer    *Tracer
}

// NewDriver builds a driver for one connection's session. lifterCfg is the
// template configuration shared across every Translate call on this
// session; PCBase/PIC are overwritten per request (spec.md §4.5 step 1).
func NewDriver(fr *wire.Framer, sess *Session, decoder lifter.Decoder, backend codegen.Backend, lifterCfg lifter.Config, tracer *Tracer) *Driver {
	return &Driver{fr: fr, sess: sess, mem: NewMemProxy(fr), decoder: decoder, backend: backend, lifterCfg: lifterCfg, tracer: tracer}
}

// Translate executes spec.md §4.5 for one C_TRANSLATE(addr), ending in
// exactly one S_OBJECT reply. A non-nil error means the connection could
// not produce even an empty-object reply (an I/O or protocol failure) and
// the session must be torn down; decode/lift failures and cache hits are
// not errors, they are valid outcomes already resolved by emitting a
// reply before Translate returns.
func (d *Driver) Translate(ctx context.Context, addr uint64) error {
	tr := d.tracer.Start(d.sess.TraceID, addr)
	defer tr.Finish()

	d.sess.Timings.Requests++

	// Step 1: configure the lifter for this request.
	cfg := d.lifterCfg
	cfg.PIC = d.sess.Opts.EnablePIC
	if cfg.PIC {
		cfg.PCBase = addr
	} else {
		cfg.PCBase = 0
	}

	// Step 2: decode.
	decodeStart := time.Now()
	fn, err := d.decoder.Decode(ctx, cfg, addr, d.mem.Read)
	d.sess.Timings.Decode += time.Since(decodeStart)
	tr.Mark("decode")
	if err != nil {
		if !errors.Is(err, lifter.ErrDecode) {
			return err
		}
		minilog.Debug("sess=%s decode failed at 0x%x: %v", d.sess.TraceID, addr, err)
		return d.emitObject(nil, nil)
	}

	// Step 3: build the hash and probe the cache.
	hash, err := d.buildHash(ctx, addr, cfg.PIC, fn)
	if err != nil {
		fn.Dispose()
		return err
	}
	if d.sess.Probe(hash) {
		fn.Dispose()
		tr.Mark("cache-hit")
		return d.emitObject(nil, &hash)
	}

	// Step 4-5: lift, then the decoder's own handle is no longer needed —
	// the produced function is now owned by the module.
	liftStart := time.Now()
	name := fmt.Sprintf("S0_%x", addr)
	_, err = fn.Lift(ctx, d.sess.Module, name)
	d.sess.Timings.Lift += time.Since(liftStart)
	fn.Dispose()
	tr.Mark("lift")
	if err != nil {
		if !errors.Is(err, lifter.ErrLift) {
			return err
		}
		minilog.Debug("sess=%s lift failed at 0x%x: %v", d.sess.TraceID, addr, err)
		// Probe recorded this hash on the miss, but no object carrying it
		// is emitted, so it must not count as seen.
		delete(d.sess.seenHashes, hash)
		return d.emitObject(nil, nil)
	}

	// Step 6: calling-convention rewrite. The negotiated convention was
	// already baked into the lifted IR's ABI expectations via cfg/session
	// state; this stage exists to account for its cost and to give a
	// real backend a hook, matching spec.md's "rewrite calling convention"
	// as a distinct, timed pipeline stage.
	ccStart := time.Now()
	d.sess.Timings.CallConvRewrite += time.Since(ccStart)
	tr.Mark("callconv")

	// Step 7: optimize (opaque external pass pipeline; no-op placeholder
	// here since an optimizer is out of scope, see spec.md §1).
	optStart := time.Now()
	d.sess.Timings.Optimize += time.Since(optStart)
	tr.Mark("optimize")

	// Step 8: codegen.
	codegenStart := time.Now()
	if err := d.backend.GenerateCode(d.sess.Module, d.sess.ObjBuf); err != nil {
		return err
	}
	d.sess.Timings.Codegen += time.Since(codegenStart)
	tr.Mark("codegen")

	if err := d.emitObject(d.sess.ObjBuf.Bytes(), &hash); err != nil {
		return err
	}

	// Step 9: erase every module function with no remaining users. The
	// function just lifted has zero callers (it is an entry point, not
	// called from within the module) so it is removed here, keeping the
	// module's footprint to helpers-only between requests.
	removed := d.sess.Module.EraseUnusedFunctions()
	if minilog.WillLog(minilog.DEBUG) && len(removed) > 0 {
		minilog.Debug("sess=%s erased %d function(s): %v", d.sess.TraceID, len(removed), removed)
	}
	return nil
}

// buildHash re-fetches every decoded range through the memory proxy (so
// the hash reflects the memory the decoder actually saw, not whatever it
// cached) and digests the session prefix, address, and ranges (spec.md
// §4.4).
func (d *Driver) buildHash(ctx context.Context, addr uint64, pic bool, fn lifter.Func) ([20]byte, error) {
	hb := NewHashBuilder(d.sess.HashPrefix)
	hb.AppendAddress(addr, pic)
	for _, r := range fn.Ranges() {
		data := make([]byte, r.Size())
		if err := d.mem.Read(ctx, r.Start, r.End, data); err != nil && !errors.Is(err, ErrMemFault) {
			return [20]byte{}, err
		}
		hb.AppendRange(addr, r.Start, r.End, data)
	}
	return hb.Sum(), nil
}

// emitObject sends one S_OBJECT frame carrying obj (possibly empty) and,
// if hash is non-nil, the 20-byte hash tag — matching the cache-hit
// (empty+hash), cache-miss (full+hash), and failure (empty, no hash)
// flows of spec.md §4.4-§4.5.
func (d *Driver) emitObject(obj []byte, hash *[20]byte) error {
	return SendObject(d.fr, obj, hash)
}

// SendObject writes one S_OBJECT frame using wire.ObjectReply's framing.
// Exported so dispatch.go can send the init-time bootstrap object
// (spec.md §8 scenario 1) through the same encoding the driver uses for
// every subsequent translation.
func SendObject(fr *wire.Framer, obj []byte, hash *[20]byte) error {
	reply := wire.ObjectReply{Obj: obj}
	if hash != nil {
		reply.HasHash = true
		reply.Hash = *hash
	}
	payload := reply.Marshal()
	if err := fr.SendHeader(wire.SObject, int32(len(payload))); err != nil {
		return err
	}
	return fr.SendPayload(payload)
}

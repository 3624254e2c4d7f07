package xls

import (
	"go.uber.org/zap"

	"github.com/tangzhangming/vasm/internal/abi"
	"github.com/tangzhangming/vasm/internal/config"
	"github.com/tangzhangming/vasm/internal/diagnostics"
	"github.com/tangzhangming/vasm/internal/profile"
	"github.com/tangzhangming/vasm/internal/trace"
	"github.com/tangzhangming/vasm/internal/vir"
)

// Result is everything one Allocate call hands back, beyond having
// mutated u in place: the passes' diagnostics/profiling/trace sinks,
// and the block order Allocate ended up using (spill-space activation
// may have appended cold blocks to it).
type Result struct {
	Diag    *diagnostics.Reporter
	Profile *profile.Profiler
	Trace   *trace.Tracer
	Order   []vir.BlockLabel
}

// Allocate runs every pass end to end over one VIR unit, in place:
// ordering and position assignment, stack-offset propagation,
// liveness, interval construction, the allocation loop, resolution,
// materialization, spill-space activation, and peephole cleanup. log
// may be nil, in which case every pass logs to a no-op logger.
func Allocate(u *vir.Unit, a *abi.ABI, cfg config.RunConfig, log *zap.Logger) (*Result, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if err := u.Validate(); err != nil {
		log.Warn("unit failed validation", zap.Error(err))
		return nil, err
	}

	order := u.SortBlocks()
	fr := newFixedRegistry(u)

	AssignPositions(u, order)
	ComputeSPOffsets(u, a, order)

	live := ComputeLiveness(u, a, fr, order)
	sess := NewSession(u, a, fr, order, live, cfg, log)

	var roots map[int32]*Interval
	runPass(sess, "intervals", func() { roots = BuildIntervals(u, a, fr, live, order) })

	var all []*Interval
	var err error
	runPass(sess, "allocate", func() { all, err = sess.Run(roots) })
	if err != nil {
		log.Warn("allocation failed", zap.Error(err))
		return &Result{Diag: sess.Diag, Profile: sess.Profile, Trace: sess.Trace, Order: order}, err
	}
	sess.Profile.Count("allocate", "intervals", int64(len(all)))

	var plan *ResolutionPlan
	runPass(sess, "resolve", func() { plan = BuildResolutionPlan(u, roots, live, order, sess) })

	runPass(sess, "materialize", func() {
		RewriteOperands(u, roots, order)
		Materialize(u, plan, fr, order, sfLiveAtFunc(fr, roots))
	})

	numSlots := sess.slotCount()
	var newOrder []vir.BlockLabel
	runPass(sess, "spillspace", func() {
		newOrder = ActivateSpillSpace(u, a, fr, order, numSlots)
		sess.Profile.Count("spillspace", "slots", int64(numSlots))
	})

	runPass(sess, "peephole", func() { Peephole(u, newOrder) })

	log.Debug("allocate complete", zap.Int("blocks", len(newOrder)), zap.Int("slots", numSlots))
	return &Result{Diag: sess.Diag, Profile: sess.Profile, Trace: sess.Trace, Order: newOrder}, nil
}

// runPass wraps one pipeline stage with profiling and debug logging.
func runPass(sess *Session, name string, fn func()) {
	sess.Profile.Begin(name)
	sess.Log.Debug("pass start", zap.String("pass", name))
	fn()
	sess.Log.Debug("pass done", zap.String("pass", name))
	sess.Profile.End(name)
}

// sfLiveAtFunc reports, for a given position, whether the unit's
// singleton flags register is live there — used by Materialize to
// decide whether `ldimm 0` may fold down into `xor r,r`.
func sfLiveAtFunc(fr *fixedRegistry, roots map[int32]*Interval) func(int32) bool {
	if !fr.hasSF {
		return func(int32) bool { return false }
	}
	sfRoot, ok := roots[fr.sf.ID()]
	if !ok {
		return func(int32) bool { return false }
	}
	return func(pos int32) bool { return sfRoot.ChildCovering(pos) != nil }
}

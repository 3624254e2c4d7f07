package xls

import (
	"math/rand/v2"

	"go.uber.org/zap"

	"github.com/tangzhangming/vasm/internal/abi"
	"github.com/tangzhangming/vasm/internal/config"
	"github.com/tangzhangming/vasm/internal/diagnostics"
	"github.com/tangzhangming/vasm/internal/profile"
	"github.com/tangzhangming/vasm/internal/trace"
	"github.com/tangzhangming/vasm/internal/vir"
)

// Session carries everything one allocate() run threads through its
// passes.
type Session struct {
	Unit  *vir.Unit
	ABI   *abi.ABI
	FR    *fixedRegistry
	Order []vir.BlockLabel
	Live  *Liveness
	Cfg   config.RunConfig

	Diag    *diagnostics.Reporter
	Profile *profile.Profiler
	Trace   *trace.Tracer
	Log     *zap.Logger

	blockStarts map[int32]bool
	blocksByPos []*vir.Block // sorted by Start, ascending

	rng *rand.Rand

	usedSlots int
}

// slotCount reports how many 8-byte spill slots the run actually
// handed out, once Run has completed.
func (s *Session) slotCount() int { return s.usedSlots }

// NewSession builds the per-run state and precomputes the block-order
// lookup tables split()/nearestSplitBefore() rely on. fr must be the
// same registry already used to compute live and build intervals, so
// that fixed-register VReg ids agree across every pass. log may be nil,
// in which case every pass logs to a no-op logger.
func NewSession(u *vir.Unit, a *abi.ABI, fr *fixedRegistry, order []vir.BlockLabel, live *Liveness, cfg config.RunConfig, log *zap.Logger) *Session {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Session{
		Unit:  u,
		ABI:   a,
		FR:    fr,
		Order: order,
		Live:  live,
		Cfg:   cfg,

		Diag:    diagnostics.NewReporter(log),
		Profile: profile.New(cfg.Run.Profile),
		Trace:   trace.New(cfg.Run.Trace),
		Log:     log,

		blockStarts: make(map[int32]bool, len(order)),
	}
	for _, lbl := range order {
		b := u.Block(lbl)
		s.blockStarts[b.Start] = true
		s.blocksByPos = append(s.blocksByPos, b)
	}
	for i := 0; i < len(s.blocksByPos); i++ {
		for j := i + 1; j < len(s.blocksByPos); j++ {
			if s.blocksByPos[j].Start < s.blocksByPos[i].Start {
				s.blocksByPos[i], s.blocksByPos[j] = s.blocksByPos[j], s.blocksByPos[i]
			}
		}
	}
	if cfg.Stress.Enabled {
		s.rng = rand.New(rand.NewPCG(cfg.Stress.Seed, cfg.Stress.Seed^0x9e3779b97f4a7c15))
	}
	return s
}

// blockOf finds the block whose [Start,End) covers pos.
func (s *Session) blockOf(pos int32) *vir.Block {
	lo, hi := 0, len(s.blocksByPos)-1
	for lo <= hi {
		mid := (lo + hi) / 2
		b := s.blocksByPos[mid]
		switch {
		case pos < b.Start:
			hi = mid - 1
		case pos >= b.End:
			lo = mid + 1
		default:
			return b
		}
	}
	return nil
}

// stressExtraSlots is the StressSpill testing knob: a deterministic
// extra slot count in [1,7], added to the watermark the real pressure
// already computed, to exercise spill-space activation under load
// during tests.
func (s *Session) stressExtraSlots() int {
	if s.rng == nil {
		return 0
	}
	return 1 + s.rng.IntN(7)
}

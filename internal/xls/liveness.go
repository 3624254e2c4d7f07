package xls

import (
	"github.com/tangzhangming/vasm/internal/abi"
	"github.com/tangzhangming/vasm/internal/vir"
)

// canonicalReg maps a flags-class VReg onto the run's single fixed
// flags VReg; every other
// VReg is tracked under its own id.
func canonicalReg(v vir.VReg, a *abi.ABI, fr *fixedRegistry) int32 {
	if v.Class() == vir.ClassFlags {
		return fr.SF(a.SF).ID()
	}
	return v.ID()
}

// Liveness holds the worklist dataflow's fixed point.
type Liveness struct {
	LiveIn map[vir.BlockLabel]vregSet
}

// ComputeLiveness runs a worklist backward dataflow over the block
// order to find each block's live-in set.
func ComputeLiveness(u *vir.Unit, a *abi.ABI, fr *fixedRegistry, order []vir.BlockLabel) *Liveness {
	n := u.NextVReg
	liveIn := make(map[vir.BlockLabel]vregSet, len(order))
	for _, lbl := range order {
		liveIn[lbl] = newVregSet(n)
	}

	inWorklist := make(map[vir.BlockLabel]bool, len(order))
	worklist := append([]vir.BlockLabel{}, order...)
	for _, l := range worklist {
		inWorklist[l] = true
	}
	// process in reverse order first, like a standard backward
	// worklist seeded in RPO-reverse for fast initial convergence.
	for i, j := 0, len(worklist)-1; i < j; i, j = i+1, j-1 {
		worklist[i], worklist[j] = worklist[j], worklist[i]
	}

	for len(worklist) > 0 {
		lbl := worklist[0]
		worklist = worklist[1:]
		inWorklist[lbl] = false

		b := u.Block(lbl)
		live := newVregSet(n)
		for _, s := range b.Succs {
			live.UnionInto(liveIn[s])
		}

		for i := len(b.Instrs) - 1; i >= 0; i-- {
			inst := b.Instrs[i]
			eff := a.GetEffects(inst)

			// def pass
			for _, d := range inst.Defs {
				live.Remove(canonicalReg(d.Reg, a, fr))
			}
			if inst.PhiDest.IsValid() {
				live.Remove(canonicalReg(inst.PhiDest, a, fr))
			}
			for _, d := range inst.CopyDsts {
				live.Remove(canonicalReg(d.Reg, a, fr))
			}
			eff.ImplicitDefsGP.ForEach(func(p vir.PhysReg) { live.Remove(fr.GP(p).ID()) })
			eff.ImplicitDefsSIMD.ForEach(func(p vir.PhysReg) { live.Remove(fr.SIMD(p).ID()) })

			// use pass (uses + across; implicit uses/across behave the
			// same way for liveness purposes)
			for _, us := range inst.Uses {
				live.Add(canonicalReg(us.Reg, a, fr))
			}
			for _, ac := range inst.Acrosses {
				live.Add(canonicalReg(ac.Reg, a, fr))
			}
			for _, ps := range inst.PhiSources {
				live.Add(canonicalReg(ps.Reg, a, fr))
			}
			for _, cs := range inst.CopySrcs {
				live.Add(canonicalReg(cs.Reg, a, fr))
			}
			eff.ImplicitUsesGP.ForEach(func(p vir.PhysReg) { live.Add(fr.GP(p).ID()) })
			eff.ImplicitUsesSIMD.ForEach(func(p vir.PhysReg) { live.Add(fr.SIMD(p).ID()) })
			eff.ImplicitAcrossGP.ForEach(func(p vir.PhysReg) { live.Add(fr.GP(p).ID()) })
			eff.ImplicitAcrossSIMD.ForEach(func(p vir.PhysReg) { live.Add(fr.SIMD(p).ID()) })
		}

		if !live.Equal(liveIn[lbl]) {
			liveIn[lbl] = live
			for _, p := range b.Preds {
				if !inWorklist[p] {
					worklist = append(worklist, p)
					inWorklist[p] = true
				}
			}
		}
	}

	return &Liveness{LiveIn: liveIn}
}

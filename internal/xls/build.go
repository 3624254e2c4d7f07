package xls

import (
	"github.com/tangzhangming/vasm/internal/abi"
	"github.com/tangzhangming/vasm/internal/diagnostics"
	"github.com/tangzhangming/vasm/internal/vir"
)

// builder accumulates one VReg's ranges/uses in descending-position
// order while the backward pass runs; Finish reverses both lists into
// the ascending order a finished Interval must present.
type builder struct {
	vreg      vir.VReg
	ranges    []Range
	uses      []Use
	wide      bool
	constant  bool
	constKind vir.ConstKind
	constVal  int64
	defPos    int32
}

func (b *builder) addRange(r Range) {
	for len(b.ranges) > 0 {
		last := b.ranges[len(b.ranges)-1]
		if r.Start <= last.Start && r.End >= last.End {
			b.ranges = b.ranges[:len(b.ranges)-1]
			continue
		}
		break
	}
	if len(b.ranges) > 0 {
		last := &b.ranges[len(b.ranges)-1]
		if r.End >= last.Start && r.Start <= last.End {
			if r.Start < last.Start {
				last.Start = r.Start
			}
			if r.End > last.End {
				last.End = r.End
			}
			return
		}
	}
	b.ranges = append(b.ranges, r)
}

func (b *builder) trimLastStart(p int32) {
	diagnostics.Assertf(len(b.ranges) > 0, "def of a live vreg with no open range at pos %d", p)
	last := &b.ranges[len(b.ranges)-1]
	diagnostics.Assertf(last.Start <= p, "non-monotonic def trim at pos %d (range already starts at %d)", p, last.Start)
	last.Start = p
}

func (b *builder) finish(root *Interval) {
	root.Ranges = make([]Range, len(b.ranges))
	for i, r := range b.ranges {
		root.Ranges[len(b.ranges)-1-i] = r
	}
	root.Uses = make([]Use, len(b.uses))
	for i, u := range b.uses {
		root.Uses[len(b.uses)-1-i] = u
	}
	root.Wide = b.wide
	root.Constant = b.constant
	root.ConstKind = b.constKind
	root.ConstVal = b.constVal
	root.DefPos = b.defPos
	if b.constant && len(root.Ranges) > 0 {
		root.Ranges[0].Start = 0
	}
	if len(root.Ranges) > 0 {
		root.ChainEnd = root.Ranges[len(root.Ranges)-1].End
	}
}

func resolveVReg(v vir.VReg, a *abi.ABI, fr *fixedRegistry) vir.VReg {
	if v.Class() == vir.ClassFlags {
		return fr.SF(a.SF)
	}
	return v
}

// BuildIntervals runs a single backward pass over the block order
// (and, within each block, over its instructions) building a sorted
// range list and use list per VReg.
func BuildIntervals(u *vir.Unit, a *abi.ABI, fr *fixedRegistry, live *Liveness, order []vir.BlockLabel) map[int32]*Interval {
	builders := make(map[int32]*builder)

	get := func(v vir.VReg) *builder {
		b, ok := builders[v.ID()]
		if !ok {
			b = &builder{vreg: v, wide: v.Wide(), defPos: -1}
			builders[v.ID()] = b
		}
		return b
	}

	localLive := newVregSet(u.NextVReg)

	for i := len(order) - 1; i >= 0; i-- {
		lbl := order[i]
		b := u.Block(lbl)

		for j := range localLive {
			localLive[j] = 0
		}
		for _, s := range b.Succs {
			localLive.UnionInto(live.LiveIn[s])
		}
		liveNow := localLive

		liveNow.ForEach(func(id int32) {
			// the VReg object for a not-yet-seen id surfaces only once
			// a use or def names it; a block-wide range with no vreg
			// recorded yet is fine, it gets attached on first naming.
			if bld, ok := builders[id]; ok {
				bld.addRange(Range{b.Start, b.End})
			}
		})

		for i := len(b.Instrs) - 1; i >= 0; i-- {
			inst := b.Instrs[i]
			p := inst.Pos
			eff := a.GetEffects(inst)

			doDef := func(v vir.VReg, kind vir.Constraint, hint vir.VReg, pos int32) {
				rv := resolveVReg(v, a, fr)
				bld := get(rv)
				if liveNow.Contains(rv.ID()) {
					bld.trimLastStart(pos)
				} else {
					bld.addRange(Range{pos, pos + 1})
				}
				bld.uses = append(bld.uses, Use{Kind: kind, Pos: pos, Hint: hint})
				bld.defPos = pos
				liveNow.Remove(rv.ID())
			}
			doUse := func(v vir.VReg, kind vir.Constraint, hint vir.VReg, pos int32) {
				rv := resolveVReg(v, a, fr)
				bld := get(rv)
				liveNow.Add(rv.ID())
				bld.addRange(Range{b.Start, pos + 1})
				bld.uses = append(bld.uses, Use{Kind: kind, Pos: pos, Hint: hint})
			}

			for _, d := range inst.Defs {
				doDef(d.Reg, d.Kind, d.Hint, p)
			}
			if inst.PhiDest.IsValid() {
				doDef(inst.PhiDest, vir.ConstraintAny, vir.InvalidVReg, p)
			}
			for _, d := range inst.CopyDsts {
				doDef(d.Reg, d.Kind, vir.InvalidVReg, p)
			}
			eff.ImplicitDefsGP.ForEach(func(pr vir.PhysReg) { doDef(fr.GP(pr), vir.ConstraintAny, vir.InvalidVReg, p) })
			eff.ImplicitDefsSIMD.ForEach(func(pr vir.PhysReg) { doDef(fr.SIMD(pr), vir.ConstraintAny, vir.InvalidVReg, p) })

			copyKind := vir.ConstraintAny
			if inst.Op.IsCopy() || inst.Op.IsPhiJump() {
				copyKind = vir.ConstraintCopySrc
			}
			for _, us := range inst.Uses {
				kind := us.Kind
				doUse(us.Reg, kind, us.Hint, p)
			}
			for _, cs := range inst.CopySrcs {
				doUse(cs.Reg, vir.ConstraintCopySrc, vir.InvalidVReg, p)
			}
			for _, ps := range inst.PhiSources {
				doUse(ps.Reg, copyKind, vir.InvalidVReg, p)
			}
			for _, ac := range inst.Acrosses {
				doUse(ac.Reg, ac.Kind, vir.InvalidVReg, p+1)
			}
			eff.ImplicitUsesGP.ForEach(func(pr vir.PhysReg) { doUse(fr.GP(pr), vir.ConstraintAny, vir.InvalidVReg, p) })
			eff.ImplicitUsesSIMD.ForEach(func(pr vir.PhysReg) { doUse(fr.SIMD(pr), vir.ConstraintAny, vir.InvalidVReg, p) })
			eff.ImplicitAcrossGP.ForEach(func(pr vir.PhysReg) { doUse(fr.GP(pr), vir.ConstraintAny, vir.InvalidVReg, p+1) })
			eff.ImplicitAcrossSIMD.ForEach(func(pr vir.PhysReg) { doUse(fr.SIMD(pr), vir.ConstraintAny, vir.InvalidVReg, p+1) })

			if inst.Op == vir.OpLdImm && len(inst.Defs) == 1 {
				rv := resolveVReg(inst.Defs[0].Reg, a, fr)
				bld := get(rv)
				bld.constant = true
				bld.constKind = inst.ConstKind
				bld.constVal = inst.ConstVal
			}
		}
	}

	roots := make(map[int32]*Interval, len(builders))
	for id, bld := range builders {
		root := NewRootInterval(bld.vreg)
		bld.finish(root)
		diagnostics.Assertf(len(root.Ranges) > 0, "vreg %s has no live ranges after interval construction", bld.vreg)
		roots[id] = root
	}
	return roots
}

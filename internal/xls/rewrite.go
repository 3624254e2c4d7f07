package xls

import (
	"github.com/tangzhangming/vasm/internal/diagnostics"
	"github.com/tangzhangming/vasm/internal/vir"
)

// RewriteOperands replaces every VReg operand by the PhysReg of the
// child of its root
// interval covering the instruction's position. An operand whose
// covering child has no register (it lives purely in a slot at that
// point) is left naming the original VReg — materialize() has already
// arranged a reload into a register immediately before any such use, or
// the operand is itself a CopySrc the sequencer reads straight out of
// the slot.
func RewriteOperands(u *vir.Unit, roots map[int32]*Interval, order []vir.BlockLabel) {
	for _, lbl := range order {
		b := u.Block(lbl)
		for _, inst := range b.Instrs {
			diagnostics.Assertf(inst.Op != vir.OpCallArgs, "callargs instruction at %d reached the renamer", inst.Pos)
			p := inst.Pos
			for i := range inst.Defs {
				inst.Defs[i].Reg = renameAt(roots, inst.Defs[i].Reg, p)
			}
			for i := range inst.Uses {
				inst.Uses[i].Reg = renameAt(roots, inst.Uses[i].Reg, p)
			}
			for i := range inst.Acrosses {
				inst.Acrosses[i].Reg = renameAt(roots, inst.Acrosses[i].Reg, p+1)
			}
			if inst.Mem != nil {
				inst.Mem.Base = renameAt(roots, inst.Mem.Base, p)
				if inst.Mem.HasIndex {
					inst.Mem.Index = renameAt(roots, inst.Mem.Index, p)
				}
			}
		}
	}
}

func renameAt(roots map[int32]*Interval, v vir.VReg, pos int32) vir.VReg {
	if !v.IsValid() || v.Physical() {
		return v
	}
	root, ok := roots[v.ID()]
	if !ok {
		return v
	}
	child := root.ChildCovering(pos)
	if child == nil || !child.Reg.IsValid() {
		return v
	}
	return physVRegFor(v, child.Reg)
}

// physVRegFor produces the VReg materialization uses for a rename: same
// class as the original, wrapping the assigned PhysReg. It intentionally
// does not go through fixedRegistry, since a renamed operand is read
// once and discarded rather than needing identity across lookups.
func physVRegFor(orig vir.VReg, p vir.PhysReg) vir.VReg {
	return vir.NewPhysVReg(orig.ID(), orig.Class(), p)
}

// Materialize splices the synthesized reload/spill/move/immediate
// instructions the ResolutionPlan recorded into the block list, in
// position order, and appends edge copies at block ends or successor
// heads. Ops recorded at an odd position are emitted before the
// instruction that follows it; ops at the odd position after a block's
// last instruction have no following instruction and are not emitted.
func Materialize(u *vir.Unit, plan *ResolutionPlan, fr *fixedRegistry, order []vir.BlockLabel, sfLiveAt func(pos int32) bool) {
	for _, lbl := range order {
		b := u.Block(lbl)
		var rebuilt []*vir.Instruction
		for _, inst := range b.Instrs {
			if ops, ok := plan.AtPos[inst.Pos-1]; ok {
				rebuilt = append(rebuilt, materializeOps(ops, fr, sfLiveAt(inst.Pos-1))...)
			}
			if ops, ok := plan.AtPos[inst.Pos]; ok {
				rebuilt = append(rebuilt, materializeOps(ops, fr, sfLiveAt(inst.Pos))...)
			}
			if inst.Op == vir.OpNop && plan.Lowered[inst] {
				continue
			}
			if inst.Op == vir.OpLdImm && inst.SpillSlot < 0 {
				// Constants never occupy a register at their original
				// def position; the value materializes at each use
				// instead.
				continue
			}
			rebuilt = append(rebuilt, inst)
		}
		b.Instrs = rebuilt

		placeEdgeCopies(u, plan, fr, b)
	}
}

func materializeOps(ops *PlannedOps, fr *fixedRegistry, sfLive bool) []*vir.Instruction {
	var out []*vir.Instruction
	for _, r := range ops.Reloads {
		out = append(out, reloadInstr(fr, r.Class, r.Dst, r.Slot))
	}
	for _, s := range ops.Spills {
		out = append(out, spillStoreInstr(fr, s.Class, s.Src, s.Slot))
	}
	for _, im := range ops.Immediates {
		useXor := im.Val == 0 && !sfLive
		out = append(out, ldimmInstr(fr, im.Class, im.Dst, im.Kind, im.Val, useXor))
	}
	if len(ops.RegMoves) > 0 {
		out = append(out, sequenceRegisterMoves(ops.RegMoves, fr, ops.RegClass)...)
	}
	return out
}

// placeEdgeCopies appends a single-successor block's edge copies
// before its own terminator; a multi-successor block needs them at the
// head of each successor, which requires that successor to have no
// other predecessor (critical edges are assumed already split
// upstream).
func placeEdgeCopies(u *vir.Unit, plan *ResolutionPlan, fr *fixedRegistry, b *vir.Block) {
	for i, succLbl := range b.Succs {
		key := EdgeKey{From: b.Label, SuccIndex: i}
		ops, ok := plan.AtEdge[key]
		if !ok {
			continue
		}
		copies := materializeOps(ops, fr, false)
		if len(copies) == 0 {
			continue
		}
		if len(b.Succs) == 1 {
			insertBeforeTerminator(b, copies)
			continue
		}
		succ := u.Block(succLbl)
		succ.Instrs = append(copies, succ.Instrs...)
	}
}

func insertBeforeTerminator(b *vir.Block, instrs []*vir.Instruction) {
	if len(b.Instrs) == 0 {
		b.Instrs = instrs
		return
	}
	last := b.Instrs[len(b.Instrs)-1]
	if last.Op.IsTerminator() {
		b.Instrs = append(b.Instrs[:len(b.Instrs)-1], append(instrs, last)...)
		return
	}
	b.Instrs = append(b.Instrs, instrs...)
}

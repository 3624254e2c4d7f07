package xls

import "github.com/tangzhangming/vasm/internal/vir"

// EdgeKey names one CFG edge by its source block and the index of that
// block's successor list the edge corresponds to.
type EdgeKey struct {
	From      vir.BlockLabel
	SuccIndex int
}

// PlannedOps is everything materialize() must emit at one program point
// or CFG edge: register moves go through the parallel-copy sequencer,
// reloads/spills/immediates are emitted directly.
type PlannedOps struct {
	RegMoves   []regMove
	RegClass   vir.RegClass
	Reloads    []reloadOp
	Spills     []spillOp
	Immediates []immOp
}

type reloadOp struct {
	Dst   vir.PhysReg
	Class vir.RegClass
	Slot  int32
}

type spillOp struct {
	Src   vir.PhysReg
	Class vir.RegClass
	Slot  int32
}

type immOp struct {
	Dst   vir.PhysReg
	Class vir.RegClass
	Kind  vir.ConstKind
	Val   int64
}

// ResolutionPlan is the output of BuildResolutionPlan.
type ResolutionPlan struct {
	AtPos  map[int32]*PlannedOps
	AtEdge map[EdgeKey]*PlannedOps

	// Lowered marks instructions that resolution has replaced in place
	// (explicit copies turn into no-ops, phi-jumps into plain jumps) so
	// materialize() knows to skip re-rewriting their original operands.
	Lowered map[*vir.Instruction]bool
}

func newPlan() *ResolutionPlan {
	return &ResolutionPlan{
		AtPos:   make(map[int32]*PlannedOps),
		AtEdge:  make(map[EdgeKey]*PlannedOps),
		Lowered: make(map[*vir.Instruction]bool),
	}
}

func (p *ResolutionPlan) at(pos int32, class vir.RegClass) *PlannedOps {
	ops, ok := p.AtPos[pos]
	if !ok {
		ops = &PlannedOps{RegClass: class}
		p.AtPos[pos] = ops
	}
	return ops
}

func (p *ResolutionPlan) atEdge(k EdgeKey, class vir.RegClass) *PlannedOps {
	ops, ok := p.AtEdge[k]
	if !ok {
		ops = &PlannedOps{RegClass: class}
		p.AtEdge[k] = ops
	}
	return ops
}

// transition records whatever instruction (if any) is needed to move a
// root's value from one child's location to another's, used both for
// intra-chain split boundaries and for CFG-edge resolution.
func transition(ops *PlannedOps, root *Interval, from, to *Interval) {
	switch {
	case from.Reg.IsValid() && to.Reg.IsValid():
		if from.Reg != to.Reg {
			ops.RegMoves = append(ops.RegMoves, regMove{Src: from.Reg, Dst: to.Reg})
		}
	case !from.Reg.IsValid() && to.Reg.IsValid():
		ops.Reloads = append(ops.Reloads, reloadOp{Dst: to.Reg, Class: root.VReg.Class(), Slot: root.Slot()})
	case from.Reg.IsValid() && !to.Reg.IsValid():
		ops.Spills = append(ops.Spills, spillOp{Src: from.Reg, Class: root.VReg.Class(), Slot: root.Slot()})
	}
}

// BuildResolutionPlan walks every root interval's finished chain plus
// the unit's copy/phi instructions in three passes, producing the
// moves/reloads/spills/immediates materialization needs to emit.
func BuildResolutionPlan(u *vir.Unit, roots map[int32]*Interval, live *Liveness, order []vir.BlockLabel, sess *Session) *ResolutionPlan {
	plan := newPlan()

	for _, root := range roots {
		if root.Constant {
			planConstantRematerialization(plan, root)
			continue
		}
		planSpillAtDef(plan, root)
		planIntraChainSplits(plan, root, sess)
	}

	for _, lbl := range order {
		b := u.Block(lbl)
		for _, inst := range b.Instrs {
			switch {
			case inst.Op.IsCopy():
				planExplicitCopy(plan, roots, inst)
			case inst.Op.IsPhiJump():
				planPhiJump(plan, roots, u, b, inst)
			}
		}
	}

	for _, lbl := range order {
		b := u.Block(lbl)
		for i, succ := range b.Succs {
			planLiveInEdge(plan, roots, live, u.Block(succ), b, i)
		}
	}

	return plan
}

// planConstantRematerialization never lets a Constant root hold one
// register or slot across its whole chain. Instead every split-off child that did
// win a register gets its own fresh ldimm at the point it starts, and a
// child that never won one is read as a literal directly at its
// ConstraintCopySrc use sites (materialize() never needs to reload it
// from anywhere).
func planConstantRematerialization(plan *ResolutionPlan, root *Interval) {
	for c := root; c != nil; c = c.Next {
		if !c.Reg.IsValid() {
			continue
		}
		ops := plan.at(c.Start(), root.VReg.Class())
		ops.Immediates = append(ops.Immediates, immOp{Dst: c.Reg, Class: root.VReg.Class(), Kind: root.ConstKind, Val: root.ConstVal})
	}
}

func planSpillAtDef(plan *ResolutionPlan, root *Interval) {
	if root.Slot() < 0 || root.DefPos < 0 {
		return
	}
	defChild := root.ChildCovering(root.DefPos)
	if defChild == nil || !defChild.Reg.IsValid() {
		return
	}
	ops := plan.at(root.DefPos+1, root.VReg.Class())
	ops.Spills = append(ops.Spills, spillOp{Src: defChild.Reg, Class: root.VReg.Class(), Slot: root.Slot()})
}

func planIntraChainSplits(plan *ResolutionPlan, root *Interval, sess *Session) {
	for a := root; a.Next != nil; a = a.Next {
		b := a.Next
		if a.End() != b.Start() {
			continue
		}
		p := a.End()
		if p%2 == 0 || sess.blockStarts[p] {
			continue
		}
		transition(plan.at(p, root.VReg.Class()), root, a, b)
	}
}

func planExplicitCopy(plan *ResolutionPlan, roots map[int32]*Interval, inst *vir.Instruction) {
	p := inst.Pos
	n := len(inst.CopySrcs)
	for i := 0; i < n; i++ {
		srcRoot := roots[inst.CopySrcs[i].Reg.ID()]
		dstRoot := roots[inst.CopyDsts[i].Reg.ID()]
		if srcRoot == nil || dstRoot == nil {
			continue
		}
		srcChild := srcRoot.ChildCovering(p)
		dstChild := dstRoot.ChildCovering(p)
		if srcChild == nil || dstChild == nil {
			continue
		}
		ops := plan.at(p, dstRoot.VReg.Class())
		transition(ops, srcRoot, srcChild, dstChild)
	}
	inst.Op = vir.OpNop
	inst.CopySrcs, inst.CopyDsts = nil, nil
	inst.CopySrcTuple, inst.CopyDstTuple = vir.InvalidTuple, vir.InvalidTuple
	plan.Lowered[inst] = true
}

func planPhiJump(plan *ResolutionPlan, roots map[int32]*Interval, u *vir.Unit, b *vir.Block, inst *vir.Instruction) {
	p := inst.Pos
	for i := range inst.Targets {
		if i >= len(inst.PhiSources) {
			break
		}
		srcRoot := roots[inst.PhiSources[i].Reg.ID()]
		if srcRoot == nil {
			continue
		}
		srcChild := srcRoot.ChildCovering(p)
		if srcChild == nil {
			continue
		}
		succ := u.Block(inst.Targets[i])
		dstRoot := resolvePhiDestRoot(roots, succ)
		if dstRoot == nil {
			continue
		}
		dstChild := dstRoot.ChildCovering(succ.Instrs[0].Pos)
		if dstChild == nil {
			continue
		}
		if srcChild.Reg == dstChild.Reg {
			continue
		}
		ops := plan.atEdge(EdgeKey{From: b.Label, SuccIndex: i}, dstRoot.VReg.Class())
		transition(ops, srcRoot, srcChild, dstChild)
	}

	if len(inst.Targets) == 1 {
		inst.Op = vir.OpJmp
	} else {
		inst.Op = vir.OpJcc
	}
	inst.PhiSources = nil
	plan.Lowered[inst] = true
}

// resolvePhiDestRoot finds the root whose VReg is the phidef destination
// at the top of succ, if any.
func resolvePhiDestRoot(roots map[int32]*Interval, succ *vir.Block) *Interval {
	if len(succ.Instrs) == 0 {
		return nil
	}
	head := succ.Instrs[0]
	if head.Op != vir.OpPhiDef {
		return nil
	}
	return roots[head.PhiDest.ID()]
}

func planLiveInEdge(plan *ResolutionPlan, roots map[int32]*Interval, live *Liveness, succ *vir.Block, from *vir.Block, succIndex int) {
	live.LiveIn[succ.Label].ForEach(func(id int32) {
		root, ok := roots[id]
		if !ok {
			return
		}
		a := root.ChildCovering(from.End - 1)
		b := root.ChildCovering(succ.Start)
		if a == nil || b == nil || !b.Reg.IsValid() {
			return
		}
		if a.Reg == b.Reg {
			return
		}
		ops := plan.atEdge(EdgeKey{From: from.Label, SuccIndex: succIndex}, root.VReg.Class())
		transition(ops, root, a, b)
	})
}

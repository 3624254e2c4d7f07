package xls

import (
	"github.com/tangzhangming/vasm/internal/abi"
	"github.com/tangzhangming/vasm/internal/vir"
)

// spillState is the three-point lattice tracking whether the stack
// spill area must be reserved at a given program point, ordered
// Uninit < NoSpill < NeedSpill; the merge of two states is always the
// higher one.
type spillState uint8

const (
	stateUninit spillState = iota
	stateNoSpill
	stateNeedSpill
)

func maxState(a, b spillState) spillState {
	if b > a {
		return b
	}
	return a
}

// requiresSpillSpace reports whether inst reads or writes sp, or is a
// push/pop — the set of instructions that bump the lattice to
// NeedSpill wherever they occur.
func requiresSpillSpace(a *abi.ABI, inst *vir.Instruction) bool {
	if inst.Op == vir.OpPush || inst.Op == vir.OpPop {
		return true
	}
	if _, defines := instructionSPEffect(a, inst); defines {
		return true
	}
	touches := func(v vir.VReg) bool {
		return v.IsValid() && v.Physical() && !v.Class().IsSIMD() && v.AsPhysReg() == a.SP
	}
	for _, d := range inst.Defs {
		if touches(d.Reg) {
			return true
		}
	}
	for _, u := range inst.Uses {
		if touches(u.Reg) {
			return true
		}
	}
	for _, ac := range inst.Acrosses {
		if touches(ac.Reg) {
			return true
		}
	}
	if inst.Mem != nil {
		if touches(inst.Mem.Base) {
			return true
		}
		if inst.Mem.HasIndex && touches(inst.Mem.Index) {
			return true
		}
	}
	return false
}

type blockSpillInfo struct {
	in, out spillState
	// instrIn[i] is the lattice value in force just before Instrs[i]
	// runs, used both to find the first NeedSpill instruction (where an
	// alloc must go) and to tell whether a conditional exit is reached
	// while the spill area is already live.
	instrIn []spillState
}

// computeSpillStates runs the forward worklist dataflow to a fixed
// point: entry starts at NoSpill, every other block starts at Uninit,
// and a block's out-state is the lattice max reached by scanning its
// instructions from its in-state.
func computeSpillStates(u *vir.Unit, order []vir.BlockLabel, a *abi.ABI) map[vir.BlockLabel]*blockSpillInfo {
	info := make(map[vir.BlockLabel]*blockSpillInfo, len(order))
	for _, lbl := range order {
		info[lbl] = &blockSpillInfo{}
	}
	info[u.Entry].in = stateNoSpill

	worklist := append([]vir.BlockLabel{}, order...)
	inWorklist := make(map[vir.BlockLabel]bool, len(order))
	for _, l := range worklist {
		inWorklist[l] = true
	}

	for len(worklist) > 0 {
		lbl := worklist[0]
		worklist = worklist[1:]
		inWorklist[lbl] = false

		b := u.Block(lbl)
		bi := info[lbl]

		running := bi.in
		instrIn := make([]spillState, len(b.Instrs))
		for i, inst := range b.Instrs {
			instrIn[i] = running
			if requiresSpillSpace(a, inst) {
				running = maxState(running, stateNeedSpill)
			}
		}
		bi.instrIn = instrIn
		if running == bi.out {
			continue
		}
		bi.out = running

		for _, s := range b.Succs {
			si := info[s]
			merged := maxState(si.in, running)
			if merged != si.in {
				si.in = merged
				if !inWorklist[s] {
					worklist = append(worklist, s)
					inWorklist[s] = true
				}
			}
		}
	}
	return info
}

func spillAreaBytes(numSlots int) int64 {
	bytes := int64(numSlots) * 8
	return (bytes + 15) &^ 15
}

func leaSPInstr(fr *fixedRegistry, a *abi.ABI, delta int64) *vir.Instruction {
	inst := vir.NewInstruction(vir.OpLeaSP)
	sp := fr.GP(a.SP)
	inst.Defs = []vir.RegOperand{{Reg: sp}}
	inst.Uses = []vir.RegOperand{{Reg: sp}}
	inst.HasImm = true
	inst.Imm = delta
	return inst
}

// ActivateSpillSpace implements the dataflow-driven mutation pass:
// once used-slot count is known, it inserts the stack alloc/free
// bracketing the regions where spilled values are live, and splits any
// conditional unit exit that straddles a NeedSpill region into a
// branch to a cold block that frees the area before leaving. Returns
// the block order extended with any newly synthesized blocks. Skipped
// outright when no slot was ever used.
func ActivateSpillSpace(u *vir.Unit, a *abi.ABI, fr *fixedRegistry, order []vir.BlockLabel, numSlots int) []vir.BlockLabel {
	if numSlots == 0 {
		return order
	}
	n := spillAreaBytes(numSlots)
	u.NumSlots = numSlots

	info := computeSpillStates(u, order, a)
	extra := make([]vir.BlockLabel, 0)

	for _, lbl := range append([]vir.BlockLabel{}, order...) {
		b := u.Block(lbl)
		bi := info[lbl]

		if bi.in == stateNoSpill && bi.out == stateNeedSpill {
			idx := 0
			for i, st := range bi.instrIn {
				if st == stateNeedSpill {
					idx = i
					break
				}
				idx = i + 1
			}
			insertAt(b, idx, leaSPInstr(fr, a, -n))
		}

		if bi.out == stateNoSpill {
			for _, s := range b.Succs {
				if info[s].in == stateNeedSpill {
					insertBeforeTerminator(b, []*vir.Instruction{leaSPInstr(fr, a, -n)})
					break
				}
			}
		}

		if bi.out == stateNeedSpill && len(b.Succs) == 0 {
			if term := b.Terminator(); term == nil || !term.Op.IsTrap() {
				insertBeforeTerminator(b, []*vir.Instruction{leaSPInstr(fr, a, n)})
			}
		}

		if bi.out != stateNoSpill {
			extra = append(extra, splitConditionalExits(u, fr, a, b, bi, n)...)
		}
	}

	return append(order, extra...)
}

func insertAt(b *vir.Block, idx int, inst *vir.Instruction) {
	if idx >= len(b.Instrs) {
		b.Instrs = append(b.Instrs, inst)
		return
	}
	b.Instrs = append(b.Instrs[:idx], append([]*vir.Instruction{inst}, b.Instrs[idx:]...)...)
}

// splitConditionalExits rewrites a block's conditional unit-exit
// terminator, if reached while the spill area is live, into a branch
// to a cold block that frees the area and then performs the same exit
// unconditionally — the branch into cold already proved the condition
// true. A conditional unit exit is always a block's last instruction
// (it is one of IsTerminator's cases), so the existing fallthrough
// successor needs no relinking: cold is simply added alongside it.
func splitConditionalExits(u *vir.Unit, fr *fixedRegistry, a *abi.ABI, b *vir.Block, bi *blockSpillInfo, n int64) []vir.BlockLabel {
	if len(b.Instrs) == 0 {
		return nil
	}
	// b.Instrs may have grown since bi.instrIn was computed (the
	// alloc-lea insertion above runs first when this block is also
	// where the spill area first comes live), but the terminator is
	// always the last instruction either way, so the state in force
	// just before it is always the last entry of the original slice.
	inst := b.Instrs[len(b.Instrs)-1]
	if !inst.Op.IsConditionalUnitExit() || bi.instrIn[len(bi.instrIn)-1] != stateNeedSpill {
		return nil
	}

	fallthroughTarget := inst.Targets[0]

	cold := u.AddBlock()
	cold.Cold = true
	cold.Instrs = []*vir.Instruction{leaSPInstr(fr, a, n), inst}
	cold.Preds = []vir.BlockLabel{b.Label}

	branch := vir.NewInstruction(vir.OpJcc)
	branch.Uses = inst.Uses
	branch.Acrosses = inst.Acrosses
	branch.HasImm = inst.HasImm
	branch.Imm = inst.Imm
	branch.Targets = []vir.BlockLabel{fallthroughTarget, cold.Label}
	b.Instrs[len(b.Instrs)-1] = branch
	b.Succs = append(b.Succs, cold.Label)

	return []vir.BlockLabel{cold.Label}
}

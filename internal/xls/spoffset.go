package xls

import (
	"github.com/tangzhangming/vasm/internal/abi"
	"github.com/tangzhangming/vasm/internal/diagnostics"
	"github.com/tangzhangming/vasm/internal/vir"
)

// instructionSPEffect reports an instruction's effect on sp: push=-8,
// pop=+8, addqi/subqi/lea-sp carry the literal displacement, any other
// definition of sp is a bug in the unit producing this VIR.
func instructionSPEffect(a *abi.ABI, inst *vir.Instruction) (delta int32, definesSP bool) {
	switch inst.Op {
	case vir.OpPush:
		return -8, true
	case vir.OpPop:
		return 8, true
	case vir.OpAddQI:
		return int32(inst.Imm), true
	case vir.OpSubQI:
		return -int32(inst.Imm), true
	case vir.OpLeaSP:
		return int32(inst.Imm), true
	}
	for _, d := range inst.Defs {
		if d.Reg.Physical() && !d.Reg.Class().IsSIMD() && d.Reg.AsPhysReg() == a.SP {
			diagnostics.Assertf(false, "instruction %s redefines sp outside the recognized effect table", inst.Op)
		}
	}
	return 0, false
}

// ComputeSPOffsets propagates the stack pointer's offset from the
// spill area across the block order, asserting consistency wherever
// two paths converge on a block.
func ComputeSPOffsets(u *vir.Unit, a *abi.ABI, order []vir.BlockLabel) {
	worklist := append([]vir.BlockLabel{}, order...)
	u.Block(u.Entry).SPOffsetIn = 0

	inWorklist := make(map[vir.BlockLabel]bool)
	for _, l := range worklist {
		inWorklist[l] = true
	}

	for len(worklist) > 0 {
		lbl := worklist[0]
		worklist = worklist[1:]
		inWorklist[lbl] = false

		b := u.Block(lbl)
		if !b.HasSPOffsetIn() {
			continue
		}
		off := b.SPOffsetIn
		for _, inst := range b.Instrs {
			delta, _ := instructionSPEffect(a, inst)
			off += delta
		}
		if b.HasSPOffsetOut() {
			diagnostics.Assertf(b.SPOffsetOut == off,
				"sp offset diverges at block %d: recorded %d, recomputed %d", b.Label, b.SPOffsetOut, off)
			continue
		}
		b.SPOffsetOut = off

		for _, s := range b.Succs {
			succ := u.Block(s)
			if succ.HasSPOffsetIn() {
				diagnostics.Assertf(succ.SPOffsetIn == off,
					"sp offset diverges entering block %d: recorded %d, incoming %d", succ.Label, succ.SPOffsetIn, off)
				continue
			}
			succ.SPOffsetIn = off
			if !inWorklist[s] {
				worklist = append(worklist, s)
				inWorklist[s] = true
			}
		}
	}
}

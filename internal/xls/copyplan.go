package xls

import "github.com/tangzhangming/vasm/internal/vir"

// regMove is one register-to-register entry in a move plan. Slot
// sources/destinations never enter this structure — reloads, spill
// stores and immediate loads are emitted directly, since reading a slot
// never conflicts with anything else the sequencer is doing.
type regMove struct {
	Src, Dst vir.PhysReg
}

// sequenceRegisterMoves orders a simultaneous set of register-to-register
// moves into concrete Mov/Xchg instructions.
// Moves whose destination no other pending move still needs to read from
// emit directly; anything left over is a genuine cycle, resolved by
// rotating it through a chain of Xchg (mirrors a pure-register
// permutation, which a swap can always undo without a scratch).
func sequenceRegisterMoves(moves []regMove, fr *fixedRegistry, class vir.RegClass) []*vir.Instruction {
	pending := make([]regMove, 0, len(moves))
	for _, m := range moves {
		if m.Src != m.Dst {
			pending = append(pending, m)
		}
	}

	var out []*vir.Instruction
	for len(pending) > 0 {
		needed := make(map[vir.PhysReg]int, len(pending))
		for _, m := range pending {
			needed[m.Src]++
		}

		progressed := false
		for i, m := range pending {
			if needed[m.Dst] == 0 {
				out = append(out, movInstr(fr, class, m.Dst, m.Src))
				pending = append(pending[:i], pending[i+1:]...)
				progressed = true
				break
			}
		}
		if progressed {
			continue
		}

		cycle := extractRegCycle(pending)
		for i := 0; i+1 < len(cycle); i++ {
			out = append(out, xchgInstr(fr, class, cycle[i].Dst, cycle[i+1].Dst))
		}
		pending = removeRegMoves(pending, cycle)
	}
	return out
}

func extractRegCycle(pending []regMove) []regMove {
	byDst := make(map[vir.PhysReg]regMove, len(pending))
	for _, m := range pending {
		byDst[m.Dst] = m
	}
	start := pending[0]
	cycle := []regMove{start}
	cur := start
	for cur.Src != start.Dst {
		cur = byDst[cur.Src]
		cycle = append(cycle, cur)
	}
	return cycle
}

func removeRegMoves(pending, remove []regMove) []regMove {
	dead := make(map[vir.PhysReg]bool, len(remove))
	for _, m := range remove {
		dead[m.Dst] = true
	}
	out := pending[:0:0]
	for _, m := range pending {
		if !dead[m.Dst] {
			out = append(out, m)
		}
	}
	return out
}

func physOperand(fr *fixedRegistry, class vir.RegClass, r vir.PhysReg) vir.VReg {
	if class.IsSIMD() {
		return fr.SIMD(r)
	}
	if class == vir.ClassFlags {
		return fr.SF(r)
	}
	return fr.GP(r)
}

func movInstr(fr *fixedRegistry, class vir.RegClass, dst, src vir.PhysReg) *vir.Instruction {
	inst := vir.NewInstruction(vir.OpMov)
	inst.Defs = []vir.RegOperand{{Reg: physOperand(fr, class, dst)}}
	inst.Uses = []vir.RegOperand{{Reg: physOperand(fr, class, src), Kind: vir.ConstraintAny}}
	inst.SetComment("register move")
	return inst
}

func xchgInstr(fr *fixedRegistry, class vir.RegClass, a, b vir.PhysReg) *vir.Instruction {
	inst := vir.NewInstruction(vir.OpXchg)
	pa, pb := physOperand(fr, class, a), physOperand(fr, class, b)
	inst.Defs = []vir.RegOperand{{Reg: pa}, {Reg: pb}}
	inst.Uses = []vir.RegOperand{{Reg: pa}, {Reg: pb}}
	inst.SetComment("cycle-break swap")
	return inst
}

func reloadInstr(fr *fixedRegistry, class vir.RegClass, dst vir.PhysReg, slot int32) *vir.Instruction {
	inst := vir.NewInstruction(vir.OpMov)
	inst.Defs = []vir.RegOperand{{Reg: physOperand(fr, class, dst)}}
	inst.SpillSlot = slot
	inst.SetComment("reload")
	return inst
}

func spillStoreInstr(fr *fixedRegistry, class vir.RegClass, src vir.PhysReg, slot int32) *vir.Instruction {
	inst := vir.NewInstruction(vir.OpMov)
	inst.Uses = []vir.RegOperand{{Reg: physOperand(fr, class, src), Kind: vir.ConstraintAny}}
	inst.SpillSlot = slot
	inst.SetComment("spill store")
	return inst
}

func ldimmInstr(fr *fixedRegistry, class vir.RegClass, dst vir.PhysReg, kind vir.ConstKind, val int64, useXor bool) *vir.Instruction {
	if useXor {
		inst := vir.NewInstruction(vir.OpXor)
		d := physOperand(fr, class, dst)
		inst.Defs = []vir.RegOperand{{Reg: d}}
		inst.Uses = []vir.RegOperand{{Reg: d}, {Reg: d}}
		inst.SetComment("zeroing idiom")
		return inst
	}
	inst := vir.NewInstruction(vir.OpLdImm)
	inst.Defs = []vir.RegOperand{{Reg: physOperand(fr, class, dst)}}
	inst.HasImm = true
	inst.Imm = val
	inst.ConstKind = kind
	inst.ConstVal = val
	return inst
}

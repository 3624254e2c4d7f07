package xls

import "github.com/tangzhangming/vasm/internal/vir"

// Peephole collapses adjacent swap pairs that cancel out, then drops
// nops and phidef markers (their effect was already absorbed into edge
// copies during resolution).
func Peephole(u *vir.Unit, order []vir.BlockLabel) {
	for _, lbl := range order {
		b := u.Block(lbl)
		collapseSwapPairs(b)
		dropDeadInstrs(b)
	}
}

func collapseSwapPairs(b *vir.Block) {
	instrs := b.Instrs
	for i := 0; i+1 < len(instrs); i++ {
		a, c := instrs[i], instrs[i+1]
		if a.Op != vir.OpXchg || c.Op != vir.OpXchg {
			continue
		}
		if sameSwapPair(a, c) {
			a.Op, c.Op = vir.OpNop, vir.OpNop
		}
	}
	b.Instrs = instrs
}

func sameSwapPair(a, c *vir.Instruction) bool {
	if len(a.Defs) != 2 || len(c.Defs) != 2 {
		return false
	}
	a0, a1 := a.Defs[0].Reg, a.Defs[1].Reg
	c0, c1 := c.Defs[0].Reg, c.Defs[1].Reg
	same := a0.ID() == c0.ID() && a1.ID() == c1.ID()
	swapped := a0.ID() == c1.ID() && a1.ID() == c0.ID()
	return same || swapped
}

func dropDeadInstrs(b *vir.Block) {
	out := b.Instrs[:0:0]
	for _, inst := range b.Instrs {
		if inst.Op == vir.OpNop || inst.Op == vir.OpPhiDef {
			continue
		}
		out = append(out, inst)
	}
	b.Instrs = out
}

package xls

import (
	"testing"

	"github.com/tangzhangming/vasm/internal/vir"
)

func testXchgInstr(a, b vir.PhysReg) *vir.Instruction {
	return &vir.Instruction{
		Op: vir.OpXchg,
		Defs: []vir.RegOperand{
			{Reg: vir.NewPhysVReg(int32(a), vir.ClassGP64, a)},
			{Reg: vir.NewPhysVReg(int32(b), vir.ClassGP64, b)},
		},
	}
}

func TestCollapseSwapPairsCancelsSameOrder(t *testing.T) {
	b := vir.NewBlock(0)
	b.AddInstr(testXchgInstr(1, 2))
	b.AddInstr(testXchgInstr(1, 2))

	collapseSwapPairs(b)

	for i, inst := range b.Instrs {
		if inst.Op != vir.OpNop {
			t.Errorf("instr %d Op = %v, want Nop after collapsing a canceling swap pair", i, inst.Op)
		}
	}
}

func TestCollapseSwapPairsCancelsSwappedOrder(t *testing.T) {
	b := vir.NewBlock(0)
	b.AddInstr(testXchgInstr(1, 2))
	b.AddInstr(testXchgInstr(2, 1))

	collapseSwapPairs(b)

	for i, inst := range b.Instrs {
		if inst.Op != vir.OpNop {
			t.Errorf("instr %d Op = %v, want Nop", i, inst.Op)
		}
	}
}

func TestCollapseSwapPairsLeavesUnrelatedSwapsAlone(t *testing.T) {
	b := vir.NewBlock(0)
	b.AddInstr(testXchgInstr(1, 2))
	b.AddInstr(testXchgInstr(3, 4))

	collapseSwapPairs(b)

	for i, inst := range b.Instrs {
		if inst.Op != vir.OpXchg {
			t.Errorf("instr %d Op = %v, want Xchg unchanged", i, inst.Op)
		}
	}
}

func TestDropDeadInstrsRemovesNopsAndPhiDefs(t *testing.T) {
	b := vir.NewBlock(0)
	keep := &vir.Instruction{Op: vir.OpMov}
	b.AddInstr(&vir.Instruction{Op: vir.OpNop})
	b.AddInstr(keep)
	b.AddInstr(&vir.Instruction{Op: vir.OpPhiDef})

	dropDeadInstrs(b)

	if len(b.Instrs) != 1 || b.Instrs[0] != keep {
		t.Fatalf("dropDeadInstrs left %v, want only the Mov", b.Instrs)
	}
}

func TestPeepholeWalksGivenOrder(t *testing.T) {
	u := vir.NewUnit()
	b := u.AddBlock()
	b.AddInstr(testXchgInstr(1, 2))
	b.AddInstr(testXchgInstr(1, 2))
	b.AddInstr(&vir.Instruction{Op: vir.OpNop})

	Peephole(u, []vir.BlockLabel{b.Label})

	if len(b.Instrs) != 0 {
		t.Errorf("Peephole left %v, want every instruction collapsed/dropped", b.Instrs)
	}
}

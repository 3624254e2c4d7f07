package vir

// ConstKind distinguishes the literal payloads an Interval may carry
// when its VReg turns out to be a compile-time constant.
type ConstKind uint8

const (
	ConstNone ConstKind = iota
	ConstByte
	ConstLong
	ConstQuad
	ConstDouble
	ConstThreadLocal
)

// Instruction is one VIR instruction. Position (Pos) is assigned by the
// allocator's first pass and is otherwise meaningless on
// input.
type Instruction struct {
	Op  Opcode
	Pos int32 // even position; filled in by xls.AssignPositions

	Defs     []RegOperand
	Uses     []RegOperand
	Acrosses []RegOperand

	DefTuples []TupleID
	UseTuples []TupleID

	Mem    *MemOperand // present on loads/stores that address memory
	HasMem bool

	Imm    int64 // sp delta for addqi/subqi/lea; literal for ldimm
	HasImm bool

	// ConstKind/ConstVal: populated only when Op == OpLdImm, consumed by
	// interval construction to mark the defined VReg as a constant
	// interval.
	ConstKind ConstKind
	ConstVal  int64

	// Targets holds successor block labels for control-flow
	// instructions (jmp/jcc/phijmp/phijcc/bindjmp/fallbackcc/jccimm),
	// in the order `vir.Block.Succs` must agree with.
	Targets []BlockLabel

	// PhiSources[i] holds the per-predecessor source VReg for a
	// phijmp/phijcc at CFG edge i, aligned with Targets.
	PhiSources []RegOperand

	// PhiDest is the destination VReg of a phidef marker.
	PhiDest VReg

	// CopySrcs/CopyDsts back copy/copy2/copyargs; CopySrcs[i] feeds
	// CopyDsts[i]. Tuple form used by copyargs puts the ids in
	// CopySrcTuple/CopyDstTuple instead.
	CopySrcs, CopyDsts         []RegOperand
	CopySrcTuple, CopyDstTuple TupleID

	// SpillSlot names the spill-area slot a synthesized Mov addresses (a
	// reload reads it into Defs[0], a spill store writes Uses[0] to it);
	// -1 on every instruction the allocator didn't insert.
	SpillSlot int32

	// comment is free-form text carried for dumps/debugging only.
	comment string
}

// VisitOperands replays every operand of inst through v, matching
// a generic `visit_operands(inst, V)` callback.
func (inst *Instruction) VisitOperands(v OperandVisitor) {
	if inst.HasImm {
		v.Imm(inst.Imm)
	}
	for _, d := range inst.Defs {
		if d.Hint.IsValid() {
			v.DefHint(d.Reg, d.Hint, d.Kind)
		} else {
			v.Def(d.Reg, d.Kind)
		}
	}
	for _, u := range inst.Uses {
		if u.Hint.IsValid() {
			v.UseHint(u.Reg, u.Hint, u.Kind)
		} else {
			v.Use(u.Reg, u.Kind)
		}
	}
	for _, a := range inst.Acrosses {
		v.Across(a.Reg, a.Kind)
	}
	for _, t := range inst.DefTuples {
		v.DefTuple(t, ConstraintAny)
	}
	for _, t := range inst.UseTuples {
		v.UseTuple(t, ConstraintAny)
	}
	if inst.Mem != nil {
		v.UseMem(*inst.Mem)
	}
	for i := range inst.PhiSources {
		v.Use(inst.PhiSources[i].Reg, ConstraintCopySrc)
	}
	if inst.PhiDest.IsValid() {
		v.Def(inst.PhiDest, ConstraintAny)
	}
	for i := range inst.CopySrcs {
		v.Use(inst.CopySrcs[i].Reg, ConstraintCopySrc)
		v.Def(inst.CopyDsts[i].Reg, ConstraintAny)
	}
	if inst.CopySrcTuple != InvalidTuple {
		v.UseTuple(inst.CopySrcTuple, ConstraintCopySrc)
		v.DefTuple(inst.CopyDstTuple, ConstraintAny)
	}
}

// NewInstruction is the minimal constructor; callers fill in the operand
// slices directly (this package favors exposing the struct over a
// builder, since the "language" producing VIR is out of scope).
func NewInstruction(op Opcode) *Instruction {
	return &Instruction{Op: op, CopySrcTuple: InvalidTuple, CopyDstTuple: InvalidTuple, SpillSlot: -1}
}

func (inst *Instruction) SetComment(s string) { inst.comment = s }
func (inst *Instruction) Comment() string     { return inst.comment }

package vir

// RegOperand is a single register-valued operand site: a VReg together
// with the Constraint it must satisfy and an optional colocation hint.
type RegOperand struct {
	Reg  VReg
	Kind Constraint
	Hint VReg // InvalidVReg if none
}

// TupleID indexes into Unit.Tuples.
type TupleID int32

const InvalidTuple TupleID = -1

// MemOperand is an address operand: base (+ optional scaled index) + a
// byte displacement. Both Base and Index, when valid, are regular use
// sites that the renamer must visit.
type MemOperand struct {
	Base     VReg
	Index    VReg
	HasIndex bool
	Scale    int8
	Disp     int32
}

// OperandVisitor is a polymorphic callback set: implementers only
// override the capabilities they need and embed NoopVisitor for the
// rest (a trait with default empty methods).
type OperandVisitor interface {
	Imm(v int64)
	Use(r VReg, kind Constraint)
	Def(r VReg, kind Constraint)
	Across(r VReg, kind Constraint)
	UseHint(r VReg, hint VReg, kind Constraint)
	DefHint(r VReg, hint VReg, kind Constraint)
	UseTuple(t TupleID, kind Constraint)
	DefTuple(t TupleID, kind Constraint)
	UseHintTuple(t TupleID, hintTuple TupleID, kind Constraint)
	DefHintTuple(t TupleID, hintTuple TupleID, kind Constraint)
	UseMem(m MemOperand)
}

// NoopVisitor implements OperandVisitor with empty bodies; embed it and
// override only the callbacks a given pass actually needs.
type NoopVisitor struct{}

func (NoopVisitor) Imm(int64)                                 {}
func (NoopVisitor) Use(VReg, Constraint)                      {}
func (NoopVisitor) Def(VReg, Constraint)                      {}
func (NoopVisitor) Across(VReg, Constraint)                   {}
func (NoopVisitor) UseHint(VReg, VReg, Constraint)            {}
func (NoopVisitor) DefHint(VReg, VReg, Constraint)            {}
func (NoopVisitor) UseTuple(TupleID, Constraint)              {}
func (NoopVisitor) DefTuple(TupleID, Constraint)              {}
func (NoopVisitor) UseHintTuple(TupleID, TupleID, Constraint) {}
func (NoopVisitor) DefHintTuple(TupleID, TupleID, Constraint) {}
func (NoopVisitor) UseMem(MemOperand)                         {}

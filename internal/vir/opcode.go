package vir

// Opcode identifies an instruction's shape to the allocator. The VIR
// instruction set itself is out of scope for this module:
// everything beyond the handful of opcodes the allocator must recognize
// by name (copies, phis, exits, lea/push/pop/addqi/subqi) is represented
// here as OpGeneric and carries whatever operands the producer attached.
type Opcode uint16

const (
	OpGeneric Opcode = iota

	// Copy-like. Their uses are CopySrc: they don't force a register.
	OpCopy     // copy src -> dst
	OpCopy2    // copy2 (src1,src2) -> (dst1,dst2)
	OpCopyArgs // copyargs (srcs...) -> (dsts...), tuple operands

	// Phi-style control-flow joins, lowered away during resolution.
	OpPhiDef // phidef dst  (marker at top of a join block)
	OpPhiJmp // phijmp srcs -> target (unconditional)
	OpPhiJcc // phijcc srcs -> target (one of two successors)

	// Immediate materialization.
	OpLdImm

	// Stack-pointer bookkeeping.
	OpPush
	OpPop
	OpAddQI  // sp += imm
	OpSubQI  // sp -= imm
	OpLeaSP  // lea sp, [sp+imm] (imm may be negative)
	OpLeaGen // lea with a non-sp destination, address operand only

	// Control flow.
	OpJmp
	OpJcc
	OpBindJmp    // conditional fallback-style jump with a bound target
	OpFallbackCC // conditional "fall back to the interpreter" exit
	OpJccImm     // conditional jump to an immediate code address

	// Register shuffling used by resolution/materialization.
	OpXchg // swap two physical registers (emitted by the copy sequencer)
	OpMov  // register-to-register move
	OpXor  // xor r,r (zeroing idiom, may replace ldimm 0)

	// Calls and returns. Calls clobber the ABI's caller-saved sets.
	OpCall
	OpCallArgs // references a VcallArgsId tuple; rejected by the renamer
	OpRet
	OpTrap

	// Comparisons, producing/consuming the flags register.
	OpCmp

	OpNop
)

var opNames = map[Opcode]string{
	OpGeneric: "generic", OpCopy: "copy", OpCopy2: "copy2", OpCopyArgs: "copyargs",
	OpPhiDef: "phidef", OpPhiJmp: "phijmp", OpPhiJcc: "phijcc", OpLdImm: "ldimm",
	OpPush: "push", OpPop: "pop", OpAddQI: "addqi", OpSubQI: "subqi",
	OpLeaSP: "lea", OpLeaGen: "lea", OpJmp: "jmp", OpJcc: "jcc",
	OpBindJmp: "bindjmp", OpFallbackCC: "fallbackcc", OpJccImm: "jccimm",
	OpXchg: "xchg", OpMov: "mov", OpXor: "xor", OpCall: "call",
	OpCallArgs: "callargs", OpRet: "ret", OpTrap: "trap", OpCmp: "cmp", OpNop: "nop",
}

func (op Opcode) String() string {
	if n, ok := opNames[op]; ok {
		return n
	}
	return "op(?)"
}

// IsCopy reports whether op is a copy/copy2/copyargs instruction —
// every use is CopySrc and the instruction is removed during resolution.
func (op Opcode) IsCopy() bool {
	return op == OpCopy || op == OpCopy2 || op == OpCopyArgs
}

// IsPhi reports whether op is a phi-style join construct.
func (op Opcode) IsPhi() bool {
	return op == OpPhiDef || op == OpPhiJmp || op == OpPhiJcc
}

// IsPhiJump reports whether op is a phijmp/phijcc (has successor-keyed
// source lists, lowered to a plain jmp/jcc during resolution).
func (op Opcode) IsPhiJump() bool {
	return op == OpPhiJmp || op == OpPhiJcc
}

// IsUnitExit reports whether op transfers control out of the allocated
// unit.
func (op Opcode) IsUnitExit() bool {
	switch op {
	case OpRet, OpBindJmp, OpFallbackCC, OpJccImm, OpTrap:
		return true
	default:
		return false
	}
}

// IsConditionalUnitExit reports whether op is one of the three
// conditional unit-exit shapes spill-space activation rewrites around
// spill-live regions (bindjmp, fallbackcc, jcc-to-immediate).
func (op Opcode) IsConditionalUnitExit() bool {
	switch op {
	case OpBindJmp, OpFallbackCC, OpJccImm:
		return true
	default:
		return false
	}
}

// IsTrap reports whether op is an unconditional trap (never falls
// through, so spill-space activation's "block has no successors" rule
// need not insert a free before it).
func (op Opcode) IsTrap() bool { return op == OpTrap }

// IsTerminator reports whether op ends a block.
func (op Opcode) IsTerminator() bool {
	switch op {
	case OpJmp, OpJcc, OpPhiJmp, OpPhiJcc, OpRet, OpBindJmp, OpFallbackCC, OpJccImm, OpTrap:
		return true
	default:
		return false
	}
}

// IsLea reports whether op is a lea instruction (sp-adjusting or general).
func (op Opcode) IsLea() bool { return op == OpLeaSP || op == OpLeaGen }

package xls

import (
	"testing"

	"github.com/tangzhangming/vasm/internal/abi"
	"github.com/tangzhangming/vasm/internal/config"
	"github.com/tangzhangming/vasm/internal/trace"
	"github.com/tangzhangming/vasm/internal/vir"
)

// restrictedGPABI builds a minimal GP-only ABI for tests that need to
// force specific register-pressure outcomes: only the listed registers
// are unreserved, and only callerSaved among those are clobbered by a
// call. SF/SP/Tmp/TmpGP sit outside the unreserved set so they never
// collide with it.
func restrictedGPABI(unreserved, callerSaved []vir.PhysReg) *abi.ABI {
	var gp, caller vir.RegSet
	for _, r := range unreserved {
		gp = gp.Add(r)
	}
	for _, r := range callerSaved {
		caller = caller.Add(r)
	}
	return &abi.ABI{
		Name:          "test",
		GPUnreserved:  gp,
		SF:            60,
		SP:            61,
		Tmp:           62,
		TmpGP:         63,
		CanSpill:      true,
		CallerSavedGP: caller,
	}
}

// buildDefUseUnit constructs the smallest nontrivial unit: one block
// defining a virtual register and consuming it in the terminator.
func buildDefUseUnit() (*vir.Unit, *vir.Instruction, *vir.Instruction) {
	u := vir.NewUnit()
	b := u.AddBlock()
	v0 := u.NewVirtual(vir.ClassGP64)

	def := vir.NewInstruction(vir.OpGeneric)
	def.Defs = []vir.RegOperand{{Reg: v0, Kind: vir.ConstraintGpr}}
	b.AddInstr(def)

	ret := vir.NewInstruction(vir.OpRet)
	ret.Uses = []vir.RegOperand{{Reg: v0, Kind: vir.ConstraintGpr}}
	b.AddInstr(ret)

	return u, def, ret
}

func TestAssignPositionsEveryInstructionIsEven(t *testing.T) {
	u, def, ret := buildDefUseUnit()
	order := u.SortBlocks()
	AssignPositions(u, order)

	b := u.Block(order[0])
	if b.Start%2 != 1 {
		t.Errorf("block Start = %d, want odd (reserved label position)", b.Start)
	}
	if def.Pos%2 != 0 {
		t.Errorf("def.Pos = %d, want even", def.Pos)
	}
	if ret.Pos%2 != 0 {
		t.Errorf("ret.Pos = %d, want even", ret.Pos)
	}
	if ret.Pos <= def.Pos {
		t.Errorf("ret.Pos = %d should come after def.Pos = %d", ret.Pos, def.Pos)
	}
}

func TestAssignPositionsEveryBlockStartIsOdd(t *testing.T) {
	u := vir.NewUnit()
	b0 := u.AddBlock()
	b1 := u.AddBlock()
	u.Link(b0.Label, b1.Label)
	b0.AddInstr(vir.NewInstruction(vir.OpJmp))
	b1.AddInstr(vir.NewInstruction(vir.OpRet))

	order := u.SortBlocks()
	AssignPositions(u, order)

	for _, lbl := range order {
		b := u.Block(lbl)
		if b.Start%2 != 1 {
			t.Errorf("block %d Start = %d, want odd", lbl, b.Start)
		}
		if len(b.Instrs) > 0 && b.Instrs[0].Pos%2 != 0 {
			t.Errorf("block %d first instruction Pos = %d, want even", lbl, b.Instrs[0].Pos)
		}
	}
}

func TestComputeSPOffsetsPropagatesAcrossBlocks(t *testing.T) {
	target, err := abi.For("x86_64")
	if err != nil {
		t.Fatal(err)
	}
	u := vir.NewUnit()
	b0 := u.AddBlock()
	b1 := u.AddBlock()
	u.Link(b0.Label, b1.Label)

	push := vir.NewInstruction(vir.OpPush)
	b0.AddInstr(push)
	b0.AddInstr(vir.NewInstruction(vir.OpJmp))
	b1.AddInstr(vir.NewInstruction(vir.OpRet))

	order := u.SortBlocks()
	AssignPositions(u, order)
	ComputeSPOffsets(u, target, order)

	if b0.SPOffsetOut != -8 {
		t.Errorf("b0.SPOffsetOut = %d, want -8 after one push", b0.SPOffsetOut)
	}
	if b1.SPOffsetIn != -8 {
		t.Errorf("b1.SPOffsetIn = %d, want -8 (propagated from b0)", b1.SPOffsetIn)
	}
}

func TestComputeLivenessMarksLiveAcrossBlockBoundary(t *testing.T) {
	target, err := abi.For("x86_64")
	if err != nil {
		t.Fatal(err)
	}
	u := vir.NewUnit()
	b0 := u.AddBlock()
	b1 := u.AddBlock()
	u.Link(b0.Label, b1.Label)
	v0 := u.NewVirtual(vir.ClassGP64)

	def := vir.NewInstruction(vir.OpGeneric)
	def.Defs = []vir.RegOperand{{Reg: v0, Kind: vir.ConstraintGpr}}
	b0.AddInstr(def)
	b0.AddInstr(vir.NewInstruction(vir.OpJmp))

	ret := vir.NewInstruction(vir.OpRet)
	ret.Uses = []vir.RegOperand{{Reg: v0, Kind: vir.ConstraintGpr}}
	b1.AddInstr(ret)

	order := u.SortBlocks()
	fr := newFixedRegistry(u)
	live := ComputeLiveness(u, target, fr, order)

	if !live.LiveIn[b1.Label].Contains(v0.ID()) {
		t.Error("v0 should be live-in at b1 since it's defined in b0 and used in b1")
	}
	if live.LiveIn[b0.Label].Contains(v0.ID()) {
		t.Error("v0 should not be live-in at b0 — it's defined there, not used before its def")
	}
}

func TestBuildIntervalsProducesOneCoveringRootPerVReg(t *testing.T) {
	target, err := abi.For("x86_64")
	if err != nil {
		t.Fatal(err)
	}
	u, def, ret := buildDefUseUnit()
	order := u.SortBlocks()
	AssignPositions(u, order)
	fr := newFixedRegistry(u)
	live := ComputeLiveness(u, target, fr, order)

	roots := BuildIntervals(u, target, fr, live, order)
	v0ID := def.Defs[0].Reg.ID()
	root, ok := roots[v0ID]
	if !ok {
		t.Fatal("expected a root interval for the defined vreg")
	}
	if !root.Covers(def.Pos) || !root.Covers(ret.Pos) {
		t.Errorf("root interval [%d,%d) should cover both def (%d) and use (%d)",
			root.Start(), root.End(), def.Pos, ret.Pos)
	}
}

func TestAllocateEndToEndAssignsSameRegisterAcrossDefAndUse(t *testing.T) {
	target, err := abi.For("x86_64")
	if err != nil {
		t.Fatal(err)
	}
	u, def, ret := buildDefUseUnit()
	cfg := config.Default()

	result, err := Allocate(u, target, cfg, nil)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if result.Diag.HasPunts() {
		t.Fatalf("unexpected punts: %s", result.Diag.Dump())
	}

	if !def.Defs[0].Reg.Physical() {
		t.Error("def's operand should have been rewritten to a physical register")
	}
	if !ret.Uses[0].Reg.Physical() {
		t.Error("ret's operand should have been rewritten to a physical register")
	}
	if def.Defs[0].Reg.AsPhysReg() != ret.Uses[0].Reg.AsPhysReg() {
		t.Errorf("def assigned %v but ret reads %v; an unsplit interval should keep one register throughout",
			def.Defs[0].Reg.AsPhysReg(), ret.Uses[0].Reg.AsPhysReg())
	}
}

func TestAllocateRejectsInvalidUnit(t *testing.T) {
	target, err := abi.For("x86_64")
	if err != nil {
		t.Fatal(err)
	}
	u := vir.NewUnit()
	b0 := u.AddBlock()
	b0.Succs = append(b0.Succs, vir.BlockLabel(1)) // no block 1 exists

	_, err = Allocate(u, target, config.Default(), nil)
	if err == nil {
		t.Fatal("Allocate should reject a unit that fails Validate")
	}
}

// TestAllocateSpillsExcessValuesAcrossCallWithLimitedCalleeSaveRegisters
// covers S2: five values are defined, a call clobbers every caller-saved
// register, and all five are used afterward. With only two callee-save
// GPRs among the five unreserved, three of the five cannot survive the
// call in a register and must be spilled.
func TestAllocateSpillsExcessValuesAcrossCallWithLimitedCalleeSaveRegisters(t *testing.T) {
	calleeSave := []vir.PhysReg{0, 1}
	callerSave := []vir.PhysReg{2, 3, 4}
	unreserved := append(append([]vir.PhysReg{}, calleeSave...), callerSave...)
	target := restrictedGPABI(unreserved, callerSave)

	u := vir.NewUnit()
	b := u.AddBlock()
	vs := make([]vir.VReg, 5)
	for i := range vs {
		vs[i] = u.NewVirtual(vir.ClassGP64)
		def := vir.NewInstruction(vir.OpGeneric)
		def.Defs = []vir.RegOperand{{Reg: vs[i], Kind: vir.ConstraintGpr, Hint: vir.InvalidVReg}}
		b.AddInstr(def)
	}
	b.AddInstr(vir.NewInstruction(vir.OpCall))
	useAll := vir.NewInstruction(vir.OpGeneric)
	for _, v := range vs {
		useAll.Uses = append(useAll.Uses, vir.RegOperand{Reg: v, Kind: vir.ConstraintGpr, Hint: vir.InvalidVReg})
	}
	b.AddInstr(useAll)
	b.AddInstr(vir.NewInstruction(vir.OpRet))

	cfg := config.Default()
	cfg.Run.Trace = true

	result, err := Allocate(u, target, cfg, nil)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if result.Diag.HasPunts() {
		t.Fatalf("unexpected punts: %s", result.Diag.Dump())
	}

	spilled := map[int32]bool{}
	for _, ev := range result.Trace.Events() {
		if ev.Kind == trace.EventSpilled {
			spilled[ev.VReg] = true
		}
	}
	if len(spilled) != 3 {
		t.Errorf("expected exactly 3 values spilled across the call, got %d: %v", len(spilled), spilled)
	}

	for i := range vs {
		if !useAll.Uses[i].Reg.Physical() {
			t.Errorf("v%d's use should have been rewritten to a physical register (reloaded if spilled)", i)
		}
	}
}

// TestAllocateInsertsEdgeCopyOnlyOnMismatchedPhiPredecessor covers S3:
// two predecessors phijmp into a block starting with a phidef. Fixed
// hints put the first predecessor's value on r0 and the second's on r1;
// the join's destination takes the lowest free register, r0, so only
// the mismatched edge from the second predecessor needs a copy.
func TestAllocateInsertsEdgeCopyOnlyOnMismatchedPhiPredecessor(t *testing.T) {
	target := restrictedGPABI([]vir.PhysReg{0, 1}, nil)

	u := vir.NewUnit()
	b0 := u.AddBlock()
	b1 := u.AddBlock()
	b2 := u.AddBlock()
	u.Link(b0.Label, b2.Label)
	u.Link(b1.Label, b2.Label)

	v0 := u.NewVirtual(vir.ClassGP64)
	v1 := u.NewVirtual(vir.ClassGP64)
	vp := u.NewVirtual(vir.ClassGP64)

	hintR0 := u.NewFixed(vir.ClassGP64, 0)
	hintR1 := u.NewFixed(vir.ClassGP64, 1)

	def0 := vir.NewInstruction(vir.OpGeneric)
	def0.Defs = []vir.RegOperand{{Reg: v0, Kind: vir.ConstraintGpr, Hint: hintR0}}
	b0.AddInstr(def0)
	jmp0 := vir.NewInstruction(vir.OpPhiJmp)
	jmp0.PhiSources = []vir.RegOperand{{Reg: v0}}
	jmp0.Targets = []vir.BlockLabel{b2.Label}
	b0.AddInstr(jmp0)

	def1 := vir.NewInstruction(vir.OpGeneric)
	def1.Defs = []vir.RegOperand{{Reg: v1, Kind: vir.ConstraintGpr, Hint: hintR1}}
	b1.AddInstr(def1)
	jmp1 := vir.NewInstruction(vir.OpPhiJmp)
	jmp1.PhiSources = []vir.RegOperand{{Reg: v1}}
	jmp1.Targets = []vir.BlockLabel{b2.Label}
	b1.AddInstr(jmp1)

	phidef := vir.NewInstruction(vir.OpPhiDef)
	phidef.PhiDest = vp
	b2.AddInstr(phidef)
	useVp := vir.NewInstruction(vir.OpGeneric)
	useVp.Uses = []vir.RegOperand{{Reg: vp, Kind: vir.ConstraintGpr, Hint: vir.InvalidVReg}}
	b2.AddInstr(useVp)
	b2.AddInstr(vir.NewInstruction(vir.OpRet))

	if err := u.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	order := u.SortBlocks()
	fr := newFixedRegistry(u)
	AssignPositions(u, order)
	ComputeSPOffsets(u, target, order)
	live := ComputeLiveness(u, target, fr, order)
	sess := NewSession(u, target, fr, order, live, config.Default(), nil)
	roots := BuildIntervals(u, target, fr, live, order)
	if _, err := sess.Run(roots); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sess.Diag.HasPunts() {
		t.Fatalf("unexpected punts: %s", sess.Diag.Dump())
	}

	r0 := roots[v0.ID()].Reg
	r1 := roots[v1.ID()].Reg
	rp := roots[vp.ID()].Reg
	if r0 != rp {
		t.Fatalf("expected v0 and vp on the same register, got v0=%v vp=%v", r0, rp)
	}
	if r1 == rp {
		t.Fatalf("expected v1 on a different register than vp, both got %v", r1)
	}

	plan := BuildResolutionPlan(u, roots, live, order, sess)
	if _, ok := plan.AtEdge[EdgeKey{From: b0.Label, SuccIndex: 0}]; ok {
		t.Error("B0->B2 should need no edge copy: v0 and vp agree on register")
	}
	if _, ok := plan.AtEdge[EdgeKey{From: b1.Label, SuccIndex: 0}]; !ok {
		t.Error("B1->B2 should carry an edge copy: v1 and vp disagree on register")
	}
}

// TestAllocateFollowsDefHintOntoMatchingSibling covers S4 (hint
// following): vdst's def names vsrc as a hint. vsrc is forced onto the
// higher-numbered register by keeping the lower one busy, and vdst's
// live range is arranged to begin exactly where vsrc's ends — the one
// case resolveHint must recognize by walking vsrc's own chain rather
// than the active/inactive pools, which have already expired that
// child by the time vdst is allocated. Without the hint, tie-breaking
// would put vdst on the lower-numbered, first-iterated register.
func TestAllocateFollowsDefHintOntoMatchingSibling(t *testing.T) {
	target := restrictedGPABI([]vir.PhysReg{0, 1}, nil)

	u := vir.NewUnit()
	b := u.AddBlock()

	vblock := u.NewVirtual(vir.ClassGP64)
	vsrc := u.NewVirtual(vir.ClassGP64)
	vdst := u.NewVirtual(vir.ClassGP64)

	defBlock := vir.NewInstruction(vir.OpGeneric)
	defBlock.Defs = []vir.RegOperand{{Reg: vblock, Kind: vir.ConstraintGpr, Hint: vir.InvalidVReg}}
	b.AddInstr(defBlock)

	defSrc := vir.NewInstruction(vir.OpGeneric)
	defSrc.Defs = []vir.RegOperand{{Reg: vsrc, Kind: vir.ConstraintGpr, Hint: vir.InvalidVReg}}
	b.AddInstr(defSrc)

	keepAlive := vir.NewInstruction(vir.OpGeneric)
	keepAlive.Uses = []vir.RegOperand{{Reg: vblock, Kind: vir.ConstraintGpr, Hint: vir.InvalidVReg}}
	keepAlive.Acrosses = []vir.RegOperand{{Reg: vsrc, Kind: vir.ConstraintGpr, Hint: vir.InvalidVReg}}
	b.AddInstr(keepAlive)

	defDst := vir.NewInstruction(vir.OpGeneric)
	defDst.Defs = []vir.RegOperand{{Reg: vdst, Kind: vir.ConstraintGpr, Hint: vsrc}}
	b.AddInstr(defDst)

	ret := vir.NewInstruction(vir.OpRet)
	ret.Uses = []vir.RegOperand{{Reg: vdst, Kind: vir.ConstraintGpr, Hint: vir.InvalidVReg}}
	b.AddInstr(ret)

	cfg := config.Default()
	result, err := Allocate(u, target, cfg, nil)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if result.Diag.HasPunts() {
		t.Fatalf("unexpected punts: %s", result.Diag.Dump())
	}

	if !defSrc.Defs[0].Reg.Physical() || !defDst.Defs[0].Reg.Physical() {
		t.Fatal("both defs should have been rewritten to physical registers")
	}
	if defSrc.Defs[0].Reg.AsPhysReg() != defDst.Defs[0].Reg.AsPhysReg() {
		t.Errorf("vdst should follow vsrc's register via its def hint: vsrc=%v vdst=%v",
			defSrc.Defs[0].Reg.AsPhysReg(), defDst.Defs[0].Reg.AsPhysReg())
	}
}

// TestAllocateSplitsConditionalExitWhenSpillAreaIsLive covers S6: a
// push (forcing the stack spill area live) is immediately followed by
// a fallbackcc terminator. Spill-space activation must split that
// terminator into a jcc that falls through normally but branches to a
// synthesized cold block that frees the spill area before performing
// the same exit unconditionally.
func TestAllocateSplitsConditionalExitWhenSpillAreaIsLive(t *testing.T) {
	target := restrictedGPABI([]vir.PhysReg{0}, nil)

	u := vir.NewUnit()
	entry := u.AddBlock()
	exit := u.AddBlock()
	u.Link(entry.Label, exit.Label)

	v0 := u.NewVirtual(vir.ClassGP64)
	v1 := u.NewVirtual(vir.ClassGP64)

	def0 := vir.NewInstruction(vir.OpGeneric)
	def0.Defs = []vir.RegOperand{{Reg: v0, Kind: vir.ConstraintGpr, Hint: vir.InvalidVReg}}
	entry.AddInstr(def0)

	def1 := vir.NewInstruction(vir.OpGeneric)
	def1.Defs = []vir.RegOperand{{Reg: v1, Kind: vir.ConstraintGpr, Hint: vir.InvalidVReg}}
	entry.AddInstr(def1)

	useBoth := vir.NewInstruction(vir.OpGeneric)
	useBoth.Uses = []vir.RegOperand{
		{Reg: v0, Kind: vir.ConstraintGpr, Hint: vir.InvalidVReg},
		{Reg: v1, Kind: vir.ConstraintGpr, Hint: vir.InvalidVReg},
	}
	entry.AddInstr(useBoth)

	entry.AddInstr(vir.NewInstruction(vir.OpPush))

	fallback := vir.NewInstruction(vir.OpFallbackCC)
	fallback.HasImm = true
	fallback.Imm = 1
	fallback.Targets = []vir.BlockLabel{exit.Label}
	entry.AddInstr(fallback)

	exit.AddInstr(vir.NewInstruction(vir.OpRet))

	result, err := Allocate(u, target, config.Default(), nil)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if result.Diag.HasPunts() {
		t.Fatalf("unexpected punts: %s", result.Diag.Dump())
	}

	var cold *vir.Block
	for _, lbl := range result.Order {
		if b := u.Block(lbl); b.Cold {
			cold = b
		}
	}
	if cold == nil {
		t.Fatal("expected a cold block synthesized to free the spill area before the conditional exit")
	}
	if len(cold.Instrs) != 2 {
		t.Fatalf("expected cold block with [lea sp, fallbackcc], got %d instructions", len(cold.Instrs))
	}
	if cold.Instrs[0].Op != vir.OpLeaSP {
		t.Errorf("cold block's first instruction should free the spill area, got %v", cold.Instrs[0].Op)
	}
	if cold.Instrs[1].Op != vir.OpFallbackCC {
		t.Errorf("cold block should carry the original conditional exit, got %v", cold.Instrs[1].Op)
	}
	if len(cold.Instrs[1].Targets) != 1 || cold.Instrs[1].Targets[0] != exit.Label {
		t.Errorf("cold block's fallbackcc should still target the original exit block")
	}

	branch := entry.Instrs[len(entry.Instrs)-1]
	if branch.Op != vir.OpJcc {
		t.Fatalf("entry's terminator should have become a jcc, got %v", branch.Op)
	}
	if len(branch.Targets) != 2 || branch.Targets[0] != exit.Label || branch.Targets[1] != cold.Label {
		t.Errorf("jcc should target [exit, cold], got %v", branch.Targets)
	}
}

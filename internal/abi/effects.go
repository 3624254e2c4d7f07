package abi

import "github.com/tangzhangming/vasm/internal/vir"

// Effects holds the implicit register side-effects of one instruction,
// split by class (`get_effects(abi, inst) -> (implicit_uses,
// implicit_across, implicit_defs : PhysReg sets)`). "Across" behaves
// like a use that also conflicts with any def at the same position.
type Effects struct {
	ImplicitUsesGP, ImplicitAcrossGP, ImplicitDefsGP       vir.RegSet
	ImplicitUsesSIMD, ImplicitAcrossSIMD, ImplicitDefsSIMD vir.RegSet
}

// GetEffects computes an instruction's implicit register effects. The only
// instructions with implicit side-effects beyond their explicit operand
// lists are calls (clobber every caller-saved register per the target's
// calling convention) and push/pop (thread the stack pointer across
// themselves, which the stack-offset pass tracks separately but which must still show up
// here as an "across" so liveness/intervals see the conflict).
func (a *ABI) GetEffects(inst *vir.Instruction) Effects {
	var e Effects
	switch {
	case inst.Op == vir.OpCall:
		e.ImplicitDefsGP = a.CallerSavedGP
		e.ImplicitDefsSIMD = a.CallerSavedSIMD
	case inst.Op == vir.OpPush || inst.Op == vir.OpPop:
		e.ImplicitAcrossGP = vir.RegSet(0).Add(a.SP)
	}
	return e
}

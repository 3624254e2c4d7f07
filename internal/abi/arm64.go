package abi

import "github.com/tangzhangming/vasm/internal/vir"

// arm64 physical register numbering, grounded on the standard AAPCS64
// jit/platform/arm64.go register naming (x0..x28, v0..v31).
const (
	a64X0  vir.PhysReg = 0
	a64X19 vir.PhysReg = 19
	a64X20 vir.PhysReg = 20
	a64X21 vir.PhysReg = 21
	a64X22 vir.PhysReg = 22
	a64X23 vir.PhysReg = 23
	a64X24 vir.PhysReg = 24
	a64X25 vir.PhysReg = 25
	a64X26 vir.PhysReg = 26
	a64X27 vir.PhysReg = 27
	a64X28 vir.PhysReg = 28
	a64FP  vir.PhysReg = 29 // x29, frame pointer
	a64SP  vir.PhysReg = 31 // treated here as the stack-pointer VReg
)

func arm64ABI() *ABI {
	var gpUnreserved vir.RegSet
	// x0-x17 (caller-saved), x19-x28 (callee-saved); x18 is
	// platform-reserved, x29/x30/sp excluded.
	for r := vir.PhysReg(0); r <= 17; r++ {
		gpUnreserved = gpUnreserved.Add(r)
	}
	for r := a64X19; r <= a64X28; r++ {
		gpUnreserved = gpUnreserved.Add(r)
	}
	gpReserved := vir.RegSet(0).Add(18).Add(a64FP).Add(30)

	var simdUnreserved vir.RegSet
	for r := vir.PhysReg(0); r <= 30; r++ {
		simdUnreserved = simdUnreserved.Add(r)
	}
	simdReserved := vir.RegSet(0).Add(31) // v31 reserved as cycle-break scratch

	callerGP := vir.RegSet(0)
	for r := vir.PhysReg(0); r <= 17; r++ {
		callerGP = callerGP.Add(r)
	}
	callerSIMD := vir.RegSet(0)
	for r := vir.PhysReg(0); r <= 7; r++ {
		callerSIMD = callerSIMD.Add(r)
	}
	for r := vir.PhysReg(16); r <= 31; r++ {
		callerSIMD = callerSIMD.Add(r)
	}

	return &ABI{
		Name:            "arm64",
		GPUnreserved:    gpUnreserved,
		GPReserved:      gpReserved,
		SIMDUnreserved:  simdUnreserved,
		SIMDReserved:    simdReserved,
		SF:              0,
		SP:              a64SP,
		Tmp:             31,
		TmpGP:           18,
		CanSpill:        true,
		CallerSavedGP:   callerGP,
		CallerSavedSIMD: callerSIMD,
	}
}

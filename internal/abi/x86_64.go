package abi

import "github.com/tangzhangming/vasm/internal/vir"

// x86-64 physical register numbering. GP and SIMD live in independent
// index spaces (mirrors the familiar RegRAX..
// RegR15 / RegXMM0.. constants, split here into two vir.RegSet spaces
// instead of one flat enum, since the allocator's `allow` masks are
// always class-homogeneous).
const (
	x64RAX vir.PhysReg = 0
	x64RCX vir.PhysReg = 1
	x64RDX vir.PhysReg = 2
	x64RBX vir.PhysReg = 3
	x64RSP vir.PhysReg = 4
	x64RBP vir.PhysReg = 5
	x64RSI vir.PhysReg = 6
	x64RDI vir.PhysReg = 7
	x64R8  vir.PhysReg = 8
	x64R9  vir.PhysReg = 9
	x64R10 vir.PhysReg = 10
	x64R11 vir.PhysReg = 11
	x64R12 vir.PhysReg = 12
	x64R13 vir.PhysReg = 13
	x64R14 vir.PhysReg = 14
	x64R15 vir.PhysReg = 15
)

const (
	x64XMM0  vir.PhysReg = 0
	x64XMM1  vir.PhysReg = 1
	x64XMM2  vir.PhysReg = 2
	x64XMM3  vir.PhysReg = 3
	x64XMM4  vir.PhysReg = 4
	x64XMM5  vir.PhysReg = 5
	x64XMM6  vir.PhysReg = 6
	x64XMM7  vir.PhysReg = 7
	x64XMM8  vir.PhysReg = 8
	x64XMM9  vir.PhysReg = 9
	x64XMM10 vir.PhysReg = 10
	x64XMM11 vir.PhysReg = 11
	x64XMM12 vir.PhysReg = 12
	x64XMM13 vir.PhysReg = 13
	x64XMM14 vir.PhysReg = 14
	x64XMM15 vir.PhysReg = 15 // reserved as the cycle-break scratch
)

func x8664ABI() *ABI {
	var gpUnreserved vir.RegSet
	for _, r := range []vir.PhysReg{x64RAX, x64RCX, x64RDX, x64RBX, x64RSI, x64RDI,
		x64R8, x64R9, x64R10, x64R11, x64R12, x64R13, x64R14} {
		gpUnreserved = gpUnreserved.Add(r)
	}
	// rbp and r15 held back for the frame pointer and as a spare.
	gpReserved := vir.RegSet(0).Add(x64RBP).Add(x64R15)

	var simdUnreserved vir.RegSet
	for _, r := range []vir.PhysReg{x64XMM0, x64XMM1, x64XMM2, x64XMM3, x64XMM4, x64XMM5,
		x64XMM6, x64XMM7, x64XMM8, x64XMM9, x64XMM10, x64XMM11, x64XMM12, x64XMM13} {
		simdUnreserved = simdUnreserved.Add(r)
	}
	simdReserved := vir.RegSet(0).Add(x64XMM15).Add(x64XMM14)

	callerGP := vir.RegSet(0)
	for _, r := range []vir.PhysReg{x64RAX, x64RCX, x64RDX, x64RSI, x64RDI, x64R8, x64R9, x64R10, x64R11} {
		callerGP = callerGP.Add(r)
	}
	callerSIMD := simdUnreserved // System V: all XMM regs are caller-saved

	return &ABI{
		Name:            "x86_64",
		GPUnreserved:    gpUnreserved,
		GPReserved:      gpReserved,
		SIMDUnreserved:  simdUnreserved,
		SIMDReserved:    simdReserved,
		SF:              0,
		SP:              x64RSP,
		Tmp:             x64XMM15,
		TmpGP:           x64R15,
		CanSpill:        true,
		CallerSavedGP:   callerGP,
		CallerSavedSIMD: callerSIMD,
	}
}

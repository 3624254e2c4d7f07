// Package abi describes the target-machine collaborator the allocator
// consumes as pure data.
package abi

import (
	"fmt"

	"github.com/tangzhangming/vasm/internal/vir"
)

// ABI bundles everything the allocator requires from the target:
// reserved/unreserved register sets per class, the stack pointer, the
// singleton flags register, the cycle-break scratch, and whether
// spilling is permitted at all (canSpill — some units, e.g. those
// running with interrupts disabled, can't afford a stack frame and
// must fail fast instead).
type ABI struct {
	Name string

	GPUnreserved   vir.RegSet // GPRs available to the allocator
	GPReserved     vir.RegSet // GPRs never handed out (sp excluded from both)
	SIMDUnreserved vir.RegSet
	SIMDReserved   vir.RegSet // includes Tmp

	SF  vir.PhysReg // singleton flags register
	SP  vir.PhysReg // stack pointer (GP class, excluded from GPUnreserved/GPReserved)
	Tmp vir.PhysReg // cycle-break scratch (SIMD class, included in SIMDReserved)

	// TmpGP is the GP-class counterpart of Tmp: GP register-register
	// cycles resolve via a chain of xchg's and never need it, but a
	// parallel-copy cycle touching a spill slot has nowhere else to
	// stash a GP value transiently. Included in GPReserved.
	TmpGP vir.PhysReg

	CanSpill bool

	// CallerSavedGP/SIMD are clobbered by a `call` per the target's
	// calling convention.
	CallerSavedGP   vir.RegSet
	CallerSavedSIMD vir.RegSet
}

// NumUnreservedGP / NumUnreservedSIMD size the allocator's per-register
// bookkeeping arrays.
func (a *ABI) NumUnreservedGP() int   { return a.GPUnreserved.Count() }
func (a *ABI) NumUnreservedSIMD() int { return a.SIMDUnreserved.Count() }

// For builds the ABI bundle for a named architecture. PPC64 is stubbed
// and aborts at construction.
func For(name string) (*ABI, error) {
	switch name {
	case "x86_64", "amd64":
		return x8664ABI(), nil
	case "arm64", "aarch64":
		return arm64ABI(), nil
	case "ppc64":
		panic("abi: ppc64 is not supported by this allocator (stub only, per design)")
	default:
		return nil, fmt.Errorf("abi: unknown architecture %q", name)
	}
}

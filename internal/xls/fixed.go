package xls

import "github.com/tangzhangming/vasm/internal/vir"

// fixedRegistry lazily wraps ABI physical registers as VRegs so that
// implicit effects (call clobbers, sp threading) and the eager flags
// rename can participate in
// the same dense VReg-id liveness/interval machinery as ordinary
// virtual registers, instead of needing a parallel PhysReg-keyed path.
type fixedRegistry struct {
	unit  *vir.Unit
	gp    map[vir.PhysReg]vir.VReg
	simd  map[vir.PhysReg]vir.VReg
	sf    vir.VReg
	hasSF bool
}

func newFixedRegistry(u *vir.Unit) *fixedRegistry {
	return &fixedRegistry{unit: u, gp: make(map[vir.PhysReg]vir.VReg), simd: make(map[vir.PhysReg]vir.VReg)}
}

func (f *fixedRegistry) GP(p vir.PhysReg) vir.VReg {
	if v, ok := f.gp[p]; ok {
		return v
	}
	v := f.unit.NewFixed(vir.ClassGP64, p)
	f.gp[p] = v
	return v
}

func (f *fixedRegistry) SIMD(p vir.PhysReg) vir.VReg {
	if v, ok := f.simd[p]; ok {
		return v
	}
	v := f.unit.NewFixed(vir.ClassSIMDDbl, p)
	f.simd[p] = v
	return v
}

func (f *fixedRegistry) SF(sf vir.PhysReg) vir.VReg {
	if !f.hasSF {
		f.sf = f.unit.NewFixed(vir.ClassFlags, sf)
		f.hasSF = true
	}
	return f.sf
}

// All returns every fixed VReg handed out so far, for allocator seeding.
func (f *fixedRegistry) All() []vir.VReg {
	out := make([]vir.VReg, 0, len(f.gp)+len(f.simd)+1)
	for _, v := range f.gp {
		out = append(out, v)
	}
	for _, v := range f.simd {
		out = append(out, v)
	}
	if f.hasSF {
		out = append(out, f.sf)
	}
	return out
}

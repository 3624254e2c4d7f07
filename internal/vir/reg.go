// reg.go - 虚拟寄存器与物理寄存器定义
//
// VIR (virtual-register assembly IR) 使用一个稠密的虚拟寄存器池，
// 每个虚拟寄存器带有一个寄存器类标签。分配器把虚拟寄存器重写为
// 具体的物理寄存器，或者把它溢出到栈上的溢出槽。

package vir

import (
	"encoding/json"
	"fmt"
)

// RegClass 是寄存器类标签，约束一个 VReg 可以落在哪一类物理寄存器上。
type RegClass uint8

const (
	ClassAny RegClass = iota
	ClassGP64
	ClassGP32
	ClassGP16
	ClassGP8
	ClassSIMDDbl  // 8 字节 SIMD（标量浮点）
	ClassSIMDWide // 16 字节 SIMD
	ClassFlags
)

func (c RegClass) String() string {
	switch c {
	case ClassAny:
		return "any"
	case ClassGP64:
		return "gp64"
	case ClassGP32:
		return "gp32"
	case ClassGP16:
		return "gp16"
	case ClassGP8:
		return "gp8"
	case ClassSIMDDbl:
		return "simd64"
	case ClassSIMDWide:
		return "simd128"
	case ClassFlags:
		return "flags"
	default:
		return fmt.Sprintf("regclass(%d)", uint8(c))
	}
}

// IsGP 报告该类是否落在通用寄存器组里。
func (c RegClass) IsGP() bool {
	switch c {
	case ClassGP64, ClassGP32, ClassGP16, ClassGP8:
		return true
	default:
		return false
	}
}

// IsSIMD 报告该类是否落在 SIMD 寄存器组里。
func (c RegClass) IsSIMD() bool {
	return c == ClassSIMDDbl || c == ClassSIMDWide
}

// VReg 是一个虚拟寄存器句柄：一个稠密 ID 加一个类标签。
//
// 物理寄存器也通过 VReg 暴露（Physical() == true），这样操作数访问
// 不需要区分两种表示。
type VReg struct {
	id        int32
	class     RegClass
	physical  bool
	physIndex int16 // physical 为 true 时, 对应的 PhysReg 索引
}

// InvalidVReg 是一个哨兵值，代表"无寄存器"。
var InvalidVReg = VReg{id: -1}

// NewVReg 构造一个新的虚拟寄存器。
func NewVReg(id int32, class RegClass) VReg {
	return VReg{id: id, class: class}
}

// NewPhysVReg 把一个物理寄存器包装为 VReg，便于统一访问。
func NewPhysVReg(id int32, class RegClass, p PhysReg) VReg {
	return VReg{id: id, class: class, physical: true, physIndex: int16(p)}
}

func (v VReg) ID() int32       { return v.id }
func (v VReg) Class() RegClass { return v.class }
func (v VReg) Physical() bool  { return v.physical }
func (v VReg) IsValid() bool   { return v.id >= 0 }
func (v VReg) AsPhysReg() PhysReg {
	if !v.physical {
		return InvalidPhysReg
	}
	return PhysReg(v.physIndex)
}

// vregJSON is VReg's wire form; the id/class/physical/physIndex fields
// stay unexported so nothing outside this file can construct a VReg
// with an inconsistent physIndex, while still round-tripping through
// JSON the way a unit loaded by cmd/xlsc needs to.
type vregJSON struct {
	ID        int32    `json:"id"`
	Class     RegClass `json:"class"`
	Physical  bool     `json:"physical,omitempty"`
	PhysIndex int16    `json:"physIndex,omitempty"`
}

func (v VReg) MarshalJSON() ([]byte, error) {
	return json.Marshal(vregJSON{ID: v.id, Class: v.class, Physical: v.physical, PhysIndex: v.physIndex})
}

func (v *VReg) UnmarshalJSON(data []byte) error {
	var w vregJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	v.id, v.class, v.physical, v.physIndex = w.ID, w.Class, w.Physical, w.PhysIndex
	return nil
}

func (v VReg) String() string {
	if !v.IsValid() {
		return "%invalid"
	}
	if v.physical {
		return fmt.Sprintf("%%p%d", v.id)
	}
	return fmt.Sprintf("%%v%d", v.id)
}

// Wide 报告该 VReg 是否占据 16 字节（两个溢出槽）。
func (v VReg) Wide() bool { return v.class == ClassSIMDWide }

// PhysReg 是一个具体目标寄存器的稠密索引，分 GPR / SIMD / Flags 三组。
// 每组有各自独立的索引空间（GPR 与 SIMD 的编号会重叠），组别由上下文
// 判断（例如 VReg 的寄存器类别或约束），而不是编码进数值本身。
type PhysReg int16

// InvalidPhysReg 代表"尚未分配"。
const InvalidPhysReg PhysReg = -1

func (p PhysReg) IsValid() bool { return p >= 0 }

func (p PhysReg) String() string {
	if !p.IsValid() {
		return "<invalid>"
	}
	return fmt.Sprintf("r%d", int(p))
}

// RegSet 是一个小型物理寄存器位集合，足够容纳典型 ABI 的寄存器数（<= 64）。
type RegSet uint64

func (s RegSet) Contains(p PhysReg) bool {
	if !p.IsValid() || p >= 64 {
		return false
	}
	return s&(1<<uint(p)) != 0
}

func (s RegSet) Add(p PhysReg) RegSet {
	if !p.IsValid() {
		return s
	}
	return s | (1 << uint(p))
}

func (s RegSet) Remove(p PhysReg) RegSet {
	if !p.IsValid() {
		return s
	}
	return s &^ (1 << uint(p))
}

func (s RegSet) Union(o RegSet) RegSet     { return s | o }
func (s RegSet) Intersect(o RegSet) RegSet { return s & o }
func (s RegSet) Empty() bool               { return s == 0 }

// ForEach 按升序调用 f 作用在集合里的每个寄存器上。
func (s RegSet) ForEach(f func(PhysReg)) {
	for s != 0 {
		idx := PhysReg(trailingZeros64(uint64(s)))
		f(idx)
		s = s.Remove(idx)
	}
}

func (s RegSet) Count() int {
	n := 0
	s.ForEach(func(PhysReg) { n++ })
	return n
}

func trailingZeros64(x uint64) int {
	if x == 0 {
		return 64
	}
	n := 0
	for x&1 == 0 {
		x >>= 1
		n++
	}
	return n
}

// Package x86 describes the fixed 32-bit x86 target: the allocatable
// register file, register sets, condition codes and operand syntax
// (AT&T, as accepted by GNU as).
package x86

import (
	"fmt"
	"strings"
)

// Reg is an allocatable general-purpose register.
type Reg int

// Allocatable registers, in allocation preference order. Caller-saved
// registers come first so that short-lived values avoid the callee-saved
// ones.
const (
	EAX Reg = iota
	ECX
	EDX
	EBX
	ESI
	EDI

	NumRegs = 6

	// None means no register (no hint, or no value in a register).
	None Reg = -1
)

// Regs lists the register file in allocation order.
var Regs = [NumRegs]Reg{EAX, ECX, EDX, EBX, ESI, EDI}

var regNames = [NumRegs]string{"%eax", "%ecx", "%edx", "%ebx", "%esi", "%edi"}

// Non-allocatable registers that appear in emitted code
const (
	FP = "%ebp"
	SP = "%esp"
)

// NumFPU is the depth of the x87 register stack.
const NumFPU = 8

// String returns the AT&T name of the register, e.g. "%eax".
func (r Reg) String() string {
	if r >= 0 && r < NumRegs {
		return regNames[r]
	}
	if r == None {
		return "none"
	}
	return fmt.Sprintf("Reg(%d)", int(r))
}

// Valid reports whether r names a register of the file.
func (r Reg) Valid() bool { return r >= 0 && r < NumRegs }

// ParseReg returns the allocatable register with the given AT&T name.
func ParseReg(name string) (Reg, bool) {
	for i, n := range regNames {
		if n == name {
			return Reg(i), true
		}
	}
	return None, false
}

// RegSet is a bit set of registers.
type RegSet uint8

// SetOf builds a set from registers; None is ignored.
func SetOf(regs ...Reg) RegSet {
	var s RegSet
	for _, r := range regs {
		s = s.Add(r)
	}
	return s
}

// Has reports whether r is in the set.
func (s RegSet) Has(r Reg) bool { return r.Valid() && s&(1<<uint(r)) != 0 }

// Add returns the set with r added. Adding None is a no-op.
func (s RegSet) Add(r Reg) RegSet {
	if !r.Valid() {
		return s
	}
	return s | 1<<uint(r)
}

// Remove returns the set without r.
func (s RegSet) Remove(r Reg) RegSet {
	if !r.Valid() {
		return s
	}
	return s &^ (1 << uint(r))
}

// Union returns s ∪ t.
func (s RegSet) Union(t RegSet) RegSet { return s | t }

// Len returns the number of registers in the set.
func (s RegSet) Len() int {
	n := 0
	for _, r := range Regs {
		if s.Has(r) {
			n++
		}
	}
	return n
}

// Slice returns the members in allocation order.
func (s RegSet) Slice() []Reg {
	var out []Reg
	for _, r := range Regs {
		if s.Has(r) {
			out = append(out, r)
		}
	}
	return out
}

func (s RegSet) String() string {
	var names []string
	for _, r := range s.Slice() {
		names = append(names, r.String())
	}
	return "{" + strings.Join(names, ", ") + "}"
}

// CallerSaved is the set of registers a call may overwrite.
var CallerSaved = SetOf(EAX, ECX, EDX)

// CalleeSaved are pushed by every prologue, in push order.
var CalleeSaved = [...]string{"%ebp", "%ebx", "%esi", "%edi"}

// WordSize is the size of a general register and of a spill slot.
const WordSize = 4

// ArgBase is the offset from the frame pointer to the first incoming
// argument: four saved registers plus the return address.
const ArgBase = int64(len(CalleeSaved))*WordSize + WordSize

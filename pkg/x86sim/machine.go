// Package x86sim executes the AT&T-syntax i386 text produced by the back
// end. It models the eight general registers, the arithmetic flags, a
// sparse byte-addressed memory and the x87 register stack, enough to run
// generated functions and compare their results with the IR evaluator.
//
// It is a checking tool, not a CPU model: only the instruction forms the
// back end emits are understood.
package x86sim

import (
	"encoding/binary"
	"math"

	"tlog.app/go/errors"

	"github.com/raymyers/munch/pkg/asm"
	"github.com/raymyers/munch/pkg/x86"
)

// Callee is a function implemented outside the simulated program. It is
// invoked in place of the call with ESP pointing at the first argument;
// it leaves an integer result in EAX (or a float on the FPU stack) and
// returns how many argument bytes it pops.
type Callee interface {
	Invoke(m *Machine) (popBytes int, err error)
}

// CalleeFunc adapts a function to Callee.
type CalleeFunc func(m *Machine) (int, error)

func (f CalleeFunc) Invoke(m *Machine) (int, error) { return f(m) }

// Poison is written to the caller-saved registers around native calls.
const Poison = int32(-0x21524111) // 0xdeadbeef

const (
	dataBase   = 0x00010000
	stackTop   = 0x00800000
	codeBase   = 0x40000000
	nativeBase = 0x50000000
	sentinel   = 0x7ffffff0

	maxFPU = 8
)

// Register indices beyond the allocatable file.
const (
	regEBP = x86.NumRegs + iota
	regESP
	numGPR
)

var gprNames = map[string]int{
	"%eax": int(x86.EAX),
	"%ecx": int(x86.ECX),
	"%edx": int(x86.EDX),
	"%ebx": int(x86.EBX),
	"%esi": int(x86.ESI),
	"%edi": int(x86.EDI),
	"%ebp": regEBP,
	"%esp": regESP,
}

type instr struct {
	mn   string
	ops  []string
	line string
}

type function struct {
	name   string
	code   []instr
	labels map[string]int
}

type flags struct {
	zf, sf, of, cf, pf bool
}

// Machine is the simulated processor state plus the loaded program.
type Machine struct {
	// Natives resolves call targets that are not defined by the program.
	Natives map[string]Callee

	// MaxSteps bounds a single Call; zero means one million.
	MaxSteps int

	regs  [numGPR]int32
	flags flags
	fpu   []float64
	sw    uint16 // x87 status word condition bits

	mem map[uint32]byte

	funcs   []*function
	byName  map[string]int
	symbols map[string]uint32
	natives []string
	brk     uint32

	fn, pc int
}

// New loads prog: globals are laid out in memory with their initial
// contents and every function becomes callable.
func New(prog *asm.Program) (*Machine, error) {
	m := &Machine{
		Natives: map[string]Callee{},
		mem:     map[uint32]byte{},
		byName:  map[string]int{},
		symbols: map[string]uint32{},
		brk:     dataBase,
	}

	for _, g := range prog.Globals {
		addr := m.allocate(g.Name, g.Bytes())
		for _, w := range g.Words {
			m.store32(addr, w)
			addr += 4
		}
		for _, d := range g.Doubles {
			m.storeFloat(addr, d)
			addr += 8
		}
	}

	for i, f := range prog.Functions {
		if _, dup := m.byName[f.Name]; dup {
			return nil, errors.New("function %v defined twice", f.Name)
		}
		fn := &function{name: f.Name, labels: map[string]int{}}
		for _, line := range f.Code {
			if asm.IsLabel(line) {
				fn.labels[line[:len(line)-1]] = len(fn.code)
				continue
			}
			mn, ops := asm.SplitInstruction(line)
			fn.code = append(fn.code, instr{mn: mn, ops: ops, line: line})
		}
		m.funcs = append(m.funcs, fn)
		m.byName[f.Name] = i
		m.symbols[f.Name] = codeAddr(i, 0)
	}

	return m, nil
}

func (m *Machine) allocate(name string, size int64) uint32 {
	size = max(size, 8)
	addr := (m.brk + 7) &^ 7
	m.brk = addr + uint32(size)
	m.symbols[name] = addr
	return addr
}

func codeAddr(fn, pc int) uint32 { return codeBase + uint32(fn)<<16 + uint32(pc) }

// Call runs function name with the given integer arguments pushed as
// outgoing words, as a caller of the generated code would. It checks the
// calling convention on return: the callee pops its arguments and
// preserves the callee-saved registers.
func (m *Machine) Call(name string, args ...int32) error {
	fn, ok := m.byName[name]
	if !ok {
		return errors.New("no function %v", name)
	}

	if m.regs[regESP] == 0 {
		m.regs[regESP] = stackTop
	}
	for i := len(args) - 1; i >= 0; i-- {
		m.push(args[i])
	}
	entry := m.regs[regESP] + int32(4*len(args))
	saved := [...]int32{m.regs[x86.EBX], m.regs[x86.ESI], m.regs[x86.EDI], m.regs[regEBP]}
	fpuDepth := len(m.fpu)

	m.push(sentinel)
	if err := m.run(fn); err != nil {
		return errors.Wrap(err, "call %v", name)
	}

	if got := m.regs[regESP]; got != entry {
		return errors.New("call %v: stack pointer off by %d after return", name, got-entry)
	}
	if now := [...]int32{m.regs[x86.EBX], m.regs[x86.ESI], m.regs[x86.EDI], m.regs[regEBP]}; now != saved {
		return errors.New("call %v: callee-saved registers clobbered: %v -> %v", name, saved, now)
	}
	if d := len(m.fpu) - fpuDepth; d != 0 && d != 1 {
		return errors.New("call %v: fpu stack changed by %d", name, d)
	}
	return nil
}

func (m *Machine) run(fn int) error {
	limit := m.MaxSteps
	if limit == 0 {
		limit = 1_000_000
	}

	m.fn, m.pc = fn, 0
	for steps := 0; m.fn >= 0; steps++ {
		if steps >= limit {
			return errors.New("step limit %d exceeded in %v", limit, m.funcs[m.fn].name)
		}
		f := m.funcs[m.fn]
		if m.pc >= len(f.code) {
			return errors.New("%v: ran past the end of the function", f.name)
		}
		in := f.code[m.pc]
		at := m.pc
		m.pc++
		if err := m.exec(in); err != nil {
			return errors.Wrap(err, "%v+%d: %v", f.name, at, in.line)
		}
	}
	return nil
}

// Reg returns the value of an allocatable register.
func (m *Machine) Reg(r x86.Reg) int32 { return m.regs[r] }

// SetReg sets an allocatable register.
func (m *Machine) SetReg(r x86.Reg, v int32) { m.regs[r] = v }

// SP returns the stack pointer.
func (m *Machine) SP() int32 { return m.regs[regESP] }

// Arg returns the i-th argument word of a native call.
func (m *Machine) Arg(i int) int32 {
	return m.load32(uint32(m.regs[regESP]) + uint32(4*i))
}

// ArgFloat returns the double stored at argument byte offset off of a
// native call.
func (m *Machine) ArgFloat(off int) float64 {
	return m.loadFloat(uint32(m.regs[regESP]) + uint32(off))
}

// Global returns the word stored at global name.
func (m *Machine) Global(name string) (int32, error) {
	addr, ok := m.symbols[name]
	if !ok {
		return 0, errors.New("undefined symbol %v", name)
	}
	return m.load32(addr), nil
}

// SetGlobal stores a word at global name, allocating the global if the
// program did not declare it.
func (m *Machine) SetGlobal(name string, v int32) {
	m.store32(m.symbol(name), v)
}

// GlobalFloat returns the double stored at global name.
func (m *Machine) GlobalFloat(name string) (float64, error) {
	addr, ok := m.symbols[name]
	if !ok {
		return 0, errors.New("undefined symbol %v", name)
	}
	return m.loadFloat(addr), nil
}

// SetGlobalFloat stores a double at global name, allocating it if needed.
func (m *Machine) SetGlobalFloat(name string, v float64) {
	m.storeFloat(m.symbol(name), v)
}

func (m *Machine) symbol(name string) uint32 {
	if addr, ok := m.symbols[name]; ok {
		return addr
	}
	return m.allocate(name, 8)
}

// ST returns st(i).
func (m *Machine) ST(i int) (float64, error) {
	if i >= len(m.fpu) {
		return 0, errors.New("st(%d) is empty", i)
	}
	return m.fpu[len(m.fpu)-1-i], nil
}

// FPUDepth returns the number of values on the FPU stack.
func (m *Machine) FPUDepth() int { return len(m.fpu) }

// PushFloat pushes v on the FPU stack, as a native returning a double.
func (m *Machine) PushFloat(v float64) error {
	if len(m.fpu) == maxFPU {
		return errors.New("fpu stack overflow")
	}
	m.fpu = append(m.fpu, v)
	return nil
}

// PopFloat removes and returns st(0).
func (m *Machine) PopFloat() (float64, error) {
	if len(m.fpu) == 0 {
		return 0, errors.New("fpu stack underflow")
	}
	v := m.fpu[len(m.fpu)-1]
	m.fpu = m.fpu[:len(m.fpu)-1]
	return v, nil
}

// --- memory ---

func (m *Machine) load32(addr uint32) int32 {
	var b [4]byte
	for i := range b {
		b[i] = m.mem[addr+uint32(i)]
	}
	return int32(binary.LittleEndian.Uint32(b[:]))
}

func (m *Machine) store32(addr uint32, v int32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(v))
	for i, c := range b {
		m.mem[addr+uint32(i)] = c
	}
}

func (m *Machine) loadFloat(addr uint32) float64 {
	lo := uint64(uint32(m.load32(addr)))
	hi := uint64(uint32(m.load32(addr + 4)))
	return math.Float64frombits(hi<<32 | lo)
}

func (m *Machine) storeFloat(addr uint32, v float64) {
	bits := math.Float64bits(v)
	m.store32(addr, int32(uint32(bits)))
	m.store32(addr+4, int32(uint32(bits>>32)))
}

func (m *Machine) push(v int32) {
	m.regs[regESP] -= 4
	m.store32(uint32(m.regs[regESP]), v)
}

func (m *Machine) pop() int32 {
	v := m.load32(uint32(m.regs[regESP]))
	m.regs[regESP] += 4
	return v
}

package x86sim

import (
	"strings"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/raymyers/munch/pkg/x86"
)

type instFunc func(m *Machine, ops []string) error

var instFuncs map[string]instFunc

func init() {
	instFuncs = map[string]instFunc{
		"movl":   runMov,
		"leal":   runLea,
		"addl":   arith(add),
		"subl":   arith(sub),
		"andl":   arith(logic(func(a, b int32) int32 { return a & b })),
		"orl":    arith(logic(func(a, b int32) int32 { return a | b })),
		"xorl":   arith(logic(func(a, b int32) int32 { return a ^ b })),
		"imull":  arith(imul),
		"negl":   runNeg,
		"sall":   shift(func(a int32, n uint) int32 { return a << n }),
		"shrl":   shift(func(a int32, n uint) int32 { return int32(uint32(a) >> n) }),
		"sarl":   shift(func(a int32, n uint) int32 { return a >> n }),
		"cmpl":   runCmp,
		"testl":  runTest,
		"movzbl": runMovzbl,
		"cltd":   runCltd,
		"idivl":  runIdiv,
		"xchgl":  runXchg,
		"pushl":  runPush,
		"popl":   runPop,
		"call":   runCall,
		"ret":    runRet,
		"jmp":    runJmp,

		"fldl":   runFld,
		"fldz":   func(m *Machine, _ []string) error { return m.PushFloat(0) },
		"fld1":   func(m *Machine, _ []string) error { return m.PushFloat(1) },
		"fildl":  runFild,
		"fistpl": runFistp,
		"fstpl":  runFstpMem,
		"fstp":   runFstpReg,
		"fchs":   runFchs,
		"faddp":  fpop(func(st0, st1 float64) float64 { return st1 + st0 }),
		"fmulp":  fpop(func(st0, st1 float64) float64 { return st1 * st0 }),
		"fsubp":  fpop(func(st0, st1 float64) float64 { return st0 - st1 }),
		"fsubrp": fpop(func(st0, st1 float64) float64 { return st1 - st0 }),
		"fdivp":  fpop(func(st0, st1 float64) float64 { return st0 / st1 }),
		"fdivrp": fpop(func(st0, st1 float64) float64 { return st1 / st0 }),
		"faddl":  fmem(func(st0, v float64) float64 { return st0 + v }),
		"fmull":  fmem(func(st0, v float64) float64 { return st0 * v }),
		"fsubl":  fmem(func(st0, v float64) float64 { return st0 - v }),
		"fsubrl": fmem(func(st0, v float64) float64 { return v - st0 }),
		"fdivl":  fmem(func(st0, v float64) float64 { return st0 / v }),
		"fdivrl": fmem(func(st0, v float64) float64 { return v / st0 }),
		"fcompp": runFcompp,
		"fcompl": runFcompl,
		"fnstsw": runFnstsw,
		"sahf":   runSahf,
	}
}

func (m *Machine) exec(in instr) error {
	if tlog.If("x86sim") {
		tlog.Printw("exec", "fn", m.funcs[m.fn].name, "pc", m.pc-1, "inst", in.line, "eax", m.regs[x86.EAX], "esp", m.regs[regESP])
	}

	switch {
	case in.mn != "jmp" && strings.HasPrefix(in.mn, "j"):
		return m.runJcc(x86.Cond(in.mn[1:]), in.ops)
	case strings.HasPrefix(in.mn, "set"):
		return m.runSet(x86.Cond(in.mn[3:]), in.ops)
	}

	f, ok := instFuncs[in.mn]
	if !ok {
		return errors.New("unknown instruction %q", in.mn)
	}
	return f(m, in.ops)
}

func want(ops []string, n int) error {
	if len(ops) != n {
		return errors.New("want %d operands, got %d", n, len(ops))
	}
	return nil
}

// --- integer ---

func runMov(m *Machine, ops []string) error {
	if err := want(ops, 2); err != nil {
		return err
	}
	src, err := m.operand(ops[0])
	if err != nil {
		return err
	}
	dst, err := m.operand(ops[1])
	if err != nil {
		return err
	}
	if src.kind == locMem && dst.kind == locMem {
		return errors.New("memory to memory move")
	}
	v, err := m.read(src)
	if err != nil {
		return err
	}
	return m.write(dst, v)
}

func runLea(m *Machine, ops []string) error {
	if err := want(ops, 2); err != nil {
		return err
	}
	addr, err := m.memAt(ops[0])
	if err != nil {
		return err
	}
	dst, err := m.operand(ops[1])
	if err != nil {
		return err
	}
	if dst.kind != locReg {
		return errors.New("leal into %q", ops[1])
	}
	return m.write(dst, int32(addr))
}

type binop func(m *Machine, a, b int32) int32

// arith applies dst = dst op src.
func arith(op binop) instFunc {
	return func(m *Machine, ops []string) error {
		if err := want(ops, 2); err != nil {
			return err
		}
		src, err := m.operand(ops[0])
		if err != nil {
			return err
		}
		dst, err := m.operand(ops[1])
		if err != nil {
			return err
		}
		if src.kind == locMem && dst.kind == locMem {
			return errors.New("memory to memory operation")
		}
		b, err := m.read(src)
		if err != nil {
			return err
		}
		a, err := m.read(dst)
		if err != nil {
			return err
		}
		return m.write(dst, op(m, a, b))
	}
}

func add(m *Machine, a, b int32) int32 {
	r := a + b
	m.setZS(r)
	m.flags.cf = uint32(r) < uint32(a)
	m.flags.of = (a^r)&(b^r) < 0
	return r
}

func sub(m *Machine, a, b int32) int32 {
	r := a - b
	m.setZS(r)
	m.flags.cf = uint32(a) < uint32(b)
	m.flags.of = (a^b)&(a^r) < 0
	return r
}

func logic(f func(a, b int32) int32) binop {
	return func(m *Machine, a, b int32) int32 {
		r := f(a, b)
		m.setZS(r)
		m.flags.cf, m.flags.of = false, false
		return r
	}
}

func imul(m *Machine, a, b int32) int32 {
	wide := int64(a) * int64(b)
	r := int32(wide)
	m.setZS(r)
	m.flags.cf = int64(r) != wide
	m.flags.of = m.flags.cf
	return r
}

func (m *Machine) setZS(r int32) {
	m.flags.zf = r == 0
	m.flags.sf = r < 0
}

func runNeg(m *Machine, ops []string) error {
	if err := want(ops, 1); err != nil {
		return err
	}
	dst, err := m.operand(ops[0])
	if err != nil {
		return err
	}
	a, err := m.read(dst)
	if err != nil {
		return err
	}
	r := sub(m, 0, a)
	m.flags.cf = a != 0
	return m.write(dst, r)
}

func shift(f func(a int32, n uint) int32) instFunc {
	return func(m *Machine, ops []string) error {
		if err := want(ops, 2); err != nil {
			return err
		}
		var n int32
		if ops[0] == "%cl" {
			n = m.regs[x86.ECX]
		} else {
			src, err := m.operand(ops[0])
			if err != nil {
				return err
			}
			if src.kind != locImm {
				return errors.New("shift count %q", ops[0])
			}
			n = src.imm
		}
		dst, err := m.operand(ops[1])
		if err != nil {
			return err
		}
		a, err := m.read(dst)
		if err != nil {
			return err
		}
		r := f(a, uint(n&31))
		m.setZS(r)
		return m.write(dst, r)
	}
}

func runCmp(m *Machine, ops []string) error {
	if err := want(ops, 2); err != nil {
		return err
	}
	src, err := m.operand(ops[0])
	if err != nil {
		return err
	}
	dst, err := m.operand(ops[1])
	if err != nil {
		return err
	}
	b, err := m.read(src)
	if err != nil {
		return err
	}
	a, err := m.read(dst)
	if err != nil {
		return err
	}
	sub(m, a, b)
	return nil
}

func runTest(m *Machine, ops []string) error {
	if err := want(ops, 2); err != nil {
		return err
	}
	src, err := m.operand(ops[0])
	if err != nil {
		return err
	}
	dst, err := m.operand(ops[1])
	if err != nil {
		return err
	}
	b, err := m.read(src)
	if err != nil {
		return err
	}
	a, err := m.read(dst)
	if err != nil {
		return err
	}
	logic(func(a, b int32) int32 { return a & b })(m, a, b)
	return nil
}

func (m *Machine) cond(c x86.Cond) (bool, error) {
	f := m.flags
	switch c {
	case x86.CondE:
		return f.zf, nil
	case x86.CondNE:
		return !f.zf, nil
	case x86.CondL:
		return f.sf != f.of, nil
	case x86.CondGE:
		return f.sf == f.of, nil
	case x86.CondG:
		return !f.zf && f.sf == f.of, nil
	case x86.CondLE:
		return f.zf || f.sf != f.of, nil
	case x86.CondA:
		return !f.cf && !f.zf, nil
	case x86.CondAE:
		return !f.cf, nil
	case x86.CondB:
		return f.cf, nil
	case x86.CondBE:
		return f.cf || f.zf, nil
	}
	return false, errors.New("unknown condition %q", string(c))
}

func (m *Machine) runSet(c x86.Cond, ops []string) error {
	if err := want(ops, 1); err != nil {
		return err
	}
	if ops[0] != "%al" {
		return errors.New("set%v into %q", string(c), ops[0])
	}
	ok, err := m.cond(c)
	if err != nil {
		return err
	}
	v := m.regs[x86.EAX] &^ 0xff
	if ok {
		v |= 1
	}
	m.regs[x86.EAX] = v
	return nil
}

func runMovzbl(m *Machine, ops []string) error {
	if err := want(ops, 2); err != nil {
		return err
	}
	if ops[0] != "%al" {
		return errors.New("movzbl from %q", ops[0])
	}
	dst, err := m.operand(ops[1])
	if err != nil {
		return err
	}
	return m.write(dst, m.regs[x86.EAX]&0xff)
}

func runCltd(m *Machine, ops []string) error {
	m.regs[x86.EDX] = m.regs[x86.EAX] >> 31
	return nil
}

func runIdiv(m *Machine, ops []string) error {
	if err := want(ops, 1); err != nil {
		return err
	}
	src, err := m.operand(ops[0])
	if err != nil {
		return err
	}
	d, err := m.read(src)
	if err != nil {
		return err
	}
	if d == 0 {
		return errors.New("division by zero")
	}
	n := int64(m.regs[x86.EDX])<<32 | int64(uint32(m.regs[x86.EAX]))
	q := n / int64(d)
	if q != int64(int32(q)) {
		return errors.New("division overflow")
	}
	m.regs[x86.EAX] = int32(q)
	m.regs[x86.EDX] = int32(n % int64(d))
	return nil
}

func runXchg(m *Machine, ops []string) error {
	if err := want(ops, 2); err != nil {
		return err
	}
	a, err := m.operand(ops[0])
	if err != nil {
		return err
	}
	b, err := m.operand(ops[1])
	if err != nil {
		return err
	}
	if a.kind != locReg || b.kind != locReg {
		return errors.New("xchgl needs registers")
	}
	m.regs[a.reg], m.regs[b.reg] = m.regs[b.reg], m.regs[a.reg]
	return nil
}

func runPush(m *Machine, ops []string) error {
	if err := want(ops, 1); err != nil {
		return err
	}
	src, err := m.operand(ops[0])
	if err != nil {
		return err
	}
	v, err := m.read(src)
	if err != nil {
		return err
	}
	m.push(v)
	return nil
}

func runPop(m *Machine, ops []string) error {
	if err := want(ops, 1); err != nil {
		return err
	}
	dst, err := m.operand(ops[0])
	if err != nil {
		return err
	}
	return m.write(dst, m.pop())
}

// --- control ---

// target resolves a call or jump operand to a code address.
func (m *Machine) target(op string) (uint32, error) {
	if reg, ok := strings.CutPrefix(op, "*"); ok {
		l, err := m.operand(reg)
		if err != nil {
			return 0, err
		}
		v, err := m.read(l)
		return uint32(v), err
	}
	v, err := m.value(op)
	return uint32(v), err
}

func runCall(m *Machine, ops []string) error {
	if err := want(ops, 1); err != nil {
		return err
	}
	addr, err := m.target(ops[0])
	if err != nil {
		return err
	}

	if addr >= nativeBase && addr < nativeBase+uint32(len(m.natives)) {
		name := m.natives[addr-nativeBase]
		return m.callNative(name, m.Natives[name])
	}

	// Functions and JSR subroutine labels alike.
	ret := int32(codeAddr(m.fn, m.pc))
	if err := m.jumpTo(addr); err != nil {
		return err
	}
	m.push(ret)
	return nil
}

func (m *Machine) callNative(name string, c Callee) error {
	for _, r := range x86.CallerSaved.Slice() {
		m.regs[r] = Poison
	}
	pop, err := c.Invoke(m)
	if err != nil {
		return errors.Wrap(err, "native %v", name)
	}
	m.regs[regESP] += int32(pop)
	m.regs[x86.ECX], m.regs[x86.EDX] = Poison, Poison
	return nil
}

func runRet(m *Machine, ops []string) error {
	var n int32
	if len(ops) == 1 {
		l, err := m.operand(ops[0])
		if err != nil {
			return err
		}
		if l.kind != locImm {
			return errors.New("ret %q", ops[0])
		}
		n = l.imm
	}
	addr := uint32(m.pop())
	m.regs[regESP] += n
	if addr == sentinel {
		m.fn = -1
		return nil
	}
	return m.jumpTo(addr)
}

func (m *Machine) jumpTo(addr uint32) error {
	fn, pc := int((addr-codeBase)>>16), int(addr&0xffff)
	if addr < codeBase || fn >= len(m.funcs) || pc > len(m.funcs[fn].code) {
		return errors.New("jump to bad address %#x", addr)
	}
	m.fn, m.pc = fn, pc
	return nil
}

func runJmp(m *Machine, ops []string) error {
	if err := want(ops, 1); err != nil {
		return err
	}
	addr, err := m.target(ops[0])
	if err != nil {
		return err
	}
	return m.jumpTo(addr)
}

func (m *Machine) runJcc(c x86.Cond, ops []string) error {
	if err := want(ops, 1); err != nil {
		return err
	}
	ok, err := m.cond(c)
	if err != nil || !ok {
		return err
	}
	return runJmp(m, ops)
}

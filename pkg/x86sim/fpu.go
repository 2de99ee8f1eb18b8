package x86sim

import (
	"math"

	"tlog.app/go/errors"

	"github.com/raymyers/munch/pkg/x86"
)

// x87 condition bits in the status word.
const (
	swC0 = 1 << 8
	swC2 = 1 << 10
	swC3 = 1 << 14
)

func runFld(m *Machine, ops []string) error {
	if err := want(ops, 1); err != nil {
		return err
	}
	addr, err := m.memAt(ops[0])
	if err != nil {
		return err
	}
	return m.PushFloat(m.loadFloat(addr))
}

func runFild(m *Machine, ops []string) error {
	if err := want(ops, 1); err != nil {
		return err
	}
	addr, err := m.memAt(ops[0])
	if err != nil {
		return err
	}
	return m.PushFloat(float64(m.load32(addr)))
}

func runFistp(m *Machine, ops []string) error {
	if err := want(ops, 1); err != nil {
		return err
	}
	addr, err := m.memAt(ops[0])
	if err != nil {
		return err
	}
	v, err := m.PopFloat()
	if err != nil {
		return err
	}
	r := math.RoundToEven(v)
	if math.IsNaN(r) || r < math.MinInt32 || r > math.MaxInt32 {
		m.store32(addr, math.MinInt32) // integer indefinite
		return nil
	}
	m.store32(addr, int32(r))
	return nil
}

func runFstpMem(m *Machine, ops []string) error {
	if err := want(ops, 1); err != nil {
		return err
	}
	addr, err := m.memAt(ops[0])
	if err != nil {
		return err
	}
	v, err := m.PopFloat()
	if err != nil {
		return err
	}
	m.storeFloat(addr, v)
	return nil
}

// runFstpReg handles fstp %st(0), which just pops.
func runFstpReg(m *Machine, ops []string) error {
	if err := want(ops, 1); err != nil {
		return err
	}
	l, err := m.operand(ops[0])
	if err != nil {
		return err
	}
	if l.kind != locST || l.st != 0 {
		return errors.New("fstp %q", ops[0])
	}
	_, err = m.PopFloat()
	return err
}

func runFchs(m *Machine, _ []string) error {
	if len(m.fpu) == 0 {
		return errors.New("fpu stack underflow")
	}
	m.fpu[len(m.fpu)-1] = -m.fpu[len(m.fpu)-1]
	return nil
}

// fpop implements the "op %st, %st(1)" and-pop forms. The result of
// f(st0, st1) replaces st(1), then st(0) is popped.
func fpop(f func(st0, st1 float64) float64) instFunc {
	return func(m *Machine, ops []string) error {
		if err := want(ops, 2); err != nil {
			return err
		}
		if ops[0] != "%st" || ops[1] != "%st(1)" {
			return errors.New("unsupported operands %v", ops)
		}
		if len(m.fpu) < 2 {
			return errors.New("fpu stack underflow")
		}
		n := len(m.fpu)
		st0, st1 := m.fpu[n-1], m.fpu[n-2]
		m.fpu[n-2] = f(st0, st1)
		m.fpu = m.fpu[:n-1]
		return nil
	}
}

// fmem implements the double-in-memory forms: st0 = f(st0, m64).
func fmem(f func(st0, v float64) float64) instFunc {
	return func(m *Machine, ops []string) error {
		if err := want(ops, 1); err != nil {
			return err
		}
		addr, err := m.memAt(ops[0])
		if err != nil {
			return err
		}
		if len(m.fpu) == 0 {
			return errors.New("fpu stack underflow")
		}
		n := len(m.fpu)
		m.fpu[n-1] = f(m.fpu[n-1], m.loadFloat(addr))
		return nil
	}
}

// compare sets the status word as fcom does for compare(a, b).
func (m *Machine) compare(a, b float64) {
	switch {
	case math.IsNaN(a) || math.IsNaN(b):
		m.sw = swC0 | swC2 | swC3
	case a < b:
		m.sw = swC0
	case a == b:
		m.sw = swC3
	default:
		m.sw = 0
	}
}

func runFcompp(m *Machine, ops []string) error {
	a, err := m.PopFloat()
	if err != nil {
		return err
	}
	b, err := m.PopFloat()
	if err != nil {
		return err
	}
	m.compare(a, b)
	return nil
}

func runFcompl(m *Machine, ops []string) error {
	if err := want(ops, 1); err != nil {
		return err
	}
	addr, err := m.memAt(ops[0])
	if err != nil {
		return err
	}
	a, err := m.PopFloat()
	if err != nil {
		return err
	}
	m.compare(a, m.loadFloat(addr))
	return nil
}

func runFnstsw(m *Machine, ops []string) error {
	if err := want(ops, 1); err != nil {
		return err
	}
	if ops[0] != "%ax" {
		return errors.New("fnstsw into %q", ops[0])
	}
	m.regs[x86.EAX] = m.regs[x86.EAX]&^0xffff | int32(m.sw)
	return nil
}

func runSahf(m *Machine, _ []string) error {
	ah := m.regs[x86.EAX] >> 8
	m.flags.cf = ah&0x01 != 0
	m.flags.pf = ah&0x04 != 0
	m.flags.zf = ah&0x40 != 0
	m.flags.sf = ah&0x80 != 0
	return nil
}

package x86sim

import (
	"strconv"
	"strings"

	"tlog.app/go/errors"
)

type locKind int

const (
	locReg locKind = iota
	locMem
	locImm
	locST
)

// loc is a decoded operand.
type loc struct {
	kind locKind
	reg  int    // locReg
	addr uint32 // locMem
	imm  int32  // locImm
	st   int    // locST
}

// operand decodes one AT&T operand against the current machine state.
func (m *Machine) operand(s string) (loc, error) {
	switch {
	case strings.HasPrefix(s, "$"):
		v, err := m.value(s[1:])
		return loc{kind: locImm, imm: v}, err

	case s == "%st":
		return loc{kind: locST}, nil

	case strings.HasPrefix(s, "%st("):
		n, err := strconv.Atoi(strings.TrimSuffix(s[len("%st("):], ")"))
		if err != nil {
			return loc{}, errors.New("bad fpu register %q", s)
		}
		return loc{kind: locST, st: n}, nil

	case strings.HasPrefix(s, "%"):
		r, ok := gprNames[s]
		if !ok {
			return loc{}, errors.New("unknown register %q", s)
		}
		return loc{kind: locReg, reg: r}, nil

	case strings.HasSuffix(s, ")"):
		i := strings.IndexByte(s, '(')
		if i < 0 {
			return loc{}, errors.New("bad memory operand %q", s)
		}
		base, ok := gprNames[s[i+1:len(s)-1]]
		if !ok {
			return loc{}, errors.New("bad base register in %q", s)
		}
		var disp int32
		if i > 0 {
			d, err := strconv.ParseInt(s[:i], 10, 32)
			if err != nil {
				return loc{}, errors.New("bad displacement in %q", s)
			}
			disp = int32(d)
		}
		return loc{kind: locMem, addr: uint32(m.regs[base] + disp)}, nil
	}

	v, err := m.value(s)
	return loc{kind: locMem, addr: uint32(v)}, err
}

// value resolves a number or a symbol: a global, a function, a label of
// the running function or a native callee.
func (m *Machine) value(s string) (int32, error) {
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return int32(v), nil
	}
	if addr, ok := m.symbols[s]; ok {
		return int32(addr), nil
	}
	if m.fn >= 0 && m.fn < len(m.funcs) {
		if pc, ok := m.funcs[m.fn].labels[s]; ok {
			return int32(codeAddr(m.fn, pc)), nil
		}
	}
	if _, ok := m.Natives[s]; ok {
		for i, n := range m.natives {
			if n == s {
				return int32(nativeBase + uint32(i)), nil
			}
		}
		m.natives = append(m.natives, s)
		return int32(nativeBase + uint32(len(m.natives)-1)), nil
	}
	return 0, errors.New("undefined symbol %v", s)
}

func (m *Machine) read(l loc) (int32, error) {
	switch l.kind {
	case locReg:
		return m.regs[l.reg], nil
	case locMem:
		return m.load32(l.addr), nil
	case locImm:
		return l.imm, nil
	}
	return 0, errors.New("not an integer operand")
}

func (m *Machine) write(l loc, v int32) error {
	switch l.kind {
	case locReg:
		m.regs[l.reg] = v
	case locMem:
		m.store32(l.addr, v)
	default:
		return errors.New("not a writable integer operand")
	}
	return nil
}

// memAt decodes an operand that must name memory.
func (m *Machine) memAt(s string) (uint32, error) {
	l, err := m.operand(s)
	if err != nil {
		return 0, err
	}
	if l.kind != locMem {
		return 0, errors.New("%q is not a memory operand", s)
	}
	return l.addr, nil
}

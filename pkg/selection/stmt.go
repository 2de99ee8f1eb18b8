// Package selection - Discard-context selection.
// This file covers statements: stores, branches, calls whose result is
// dropped, and returns.
package selection

import (
	"github.com/raymyers/munch/pkg/ir"
	"github.com/raymyers/munch/pkg/tile"
	"github.com/raymyers/munch/pkg/x86"
)

var intConds = map[ir.Op]x86.Cond{
	ir.SETEQ: x86.CondE,
	ir.SETNE: x86.CondNE,
	ir.SETLT: x86.CondL,
	ir.SETGT: x86.CondG,
	ir.SETLE: x86.CondLE,
	ir.SETGE: x86.CondGE,
}

// Float conditions for compare(a, b) once fnstsw/sahf moved the FPU
// condition bits into the unsigned flags.
var floatConds = map[ir.Op]x86.Cond{
	ir.FSETEQ: x86.CondE,
	ir.FSETNE: x86.CondNE,
	ir.FSETLT: x86.CondB,
	ir.FSETGT: x86.CondA,
	ir.FSETLE: x86.CondBE,
	ir.FSETGE: x86.CondAE,
}

var accumulators = map[ir.Op]string{
	ir.ADD: "addl",
	ir.SUB: "subl",
	ir.AND: "andl",
	ir.OR:  "orl",
	ir.XOR: "xorl",
}

func (b *Builder) discard(n *ir.Node) *tile.Tile {
	expect(Discard, n, 0)
	switch n.Op {
	case ir.SEQ:
		expect(Discard, n, 1)
		l := b.discard(n.L)
		if n.R == nil {
			return l
		}
		t := tile.New(tile.Void, "", l, b.discard(n.R))
		t.Ordered = true
		return t

	case ir.MOVE:
		return b.move(n, false)

	case ir.FMOVE:
		return b.fmove(n, false)

	case ir.JUMP:
		if n.Sym != "" {
			return tile.Leaf(tile.Void, "jmp "+n.Sym)
		}
		expect(Discard, n, 1)
		return tile.Unary(tile.Void, "jmp *%l", b.reg(n.L))

	case ir.JUMPT, ir.JUMPF:
		expect(Discard, n, 1)
		return b.branch(n.L, n.Op == ir.JUMPT, n.Sym)

	case ir.JUMPGE:
		expect(Discard, n, 2)
		return b.compare(n.L, n.R, x86.CondGE, tile.Void, func(c x86.Cond) string {
			return c.Jump(n.Sym)
		})

	case ir.JSR:
		t := tile.Leaf(tile.Void, "call "+n.Sym)
		t.Clobber = x86.CallerSaved
		return t

	case ir.RET:
		return tile.Leaf(tile.Void, "ret")

	case ir.RETURN:
		expect(Discard, n, 1)
		t := tile.Unary(tile.Void, "jmp "+b.Exit, b.reg(n.L))
		t.WantL = x86.EAX
		return t

	case ir.FRETURN:
		expect(Discard, n, 1)
		return tile.Unary(tile.Void, "jmp "+b.Exit, b.fpu(n.L))

	case ir.CALL:
		return b.call(n, tile.Void)

	case ir.FCALL:
		t := b.call(n, tile.Void)
		t.Text += "\nfstp %st(0)"
		return t
	}
	if !isValue(n.Op) {
		fail(Discard, n)
	}
	// A bare value: compute it and drop the result.
	if n.IsFloat() {
		return tile.Unary(tile.Void, "fstp %st(0)", b.fpu(n))
	}
	return tile.Unary(tile.Void, "", b.reg(n))
}

// move selects an integer store. Inside an argument sequence the
// destination ARG slots are outgoing.
func (b *Builder) move(n *ir.Node, outgoing bool) *tile.Tile {
	expect(Discard, n, 2)
	src, dst := n.L, n.R
	if dst.Op != ir.MEM || dst.L == nil {
		fail(Discard, n)
	}
	if !outgoing {
		if t := b.accumulate(src, dst); t != nil {
			return t
		}
	}
	if d, ok := destOperand(dst.L, outgoing); ok {
		if s, ok := immOperand(src); ok {
			return tile.Leaf(tile.Void, "movl "+s+", "+d)
		}
		return tile.Unary(tile.Void, "movl %l, "+d, b.reg(src))
	}
	m := addressOf(dst.L)
	if s, ok := immOperand(src); ok {
		return tile.Unary(tile.Void, "movl "+s+", "+m.at("%l"), b.reg(m.base))
	}
	return tile.New(tile.Void, "movl %r, "+m.at("%l"), b.reg(m.base), b.reg(src))
}

// accumulate matches MOVE(op(x, y), MEM d) where one operand is the
// destination itself, updating memory in place.
func (b *Builder) accumulate(src, dst *ir.Node) *tile.Tile {
	mn, ok := accumulators[src.Op]
	if !ok || src.L == nil || src.R == nil {
		return nil
	}
	var other *ir.Node
	switch {
	case src.L.Equal(dst):
		other = src.R
	case src.Op != ir.SUB && src.R.Equal(dst):
		other = src.L
	default:
		return nil
	}
	if d, ok := memOperand(dst.L); ok {
		if s, ok := immOperand(other); ok {
			return tile.Leaf(tile.Void, mn+" "+s+", "+d)
		}
		return tile.Unary(tile.Void, mn+" %l, "+d, b.reg(other))
	}
	m := addressOf(dst.L)
	if s, ok := immOperand(other); ok {
		return tile.Unary(tile.Void, mn+" "+s+", "+m.at("%l"), b.reg(m.base))
	}
	return tile.New(tile.Void, mn+" %r, "+m.at("%l"), b.reg(m.base), b.reg(other))
}

func (b *Builder) fmove(n *ir.Node, outgoing bool) *tile.Tile {
	expect(Discard, n, 2)
	src, dst := n.L, n.R
	if dst.Op != ir.MEM || dst.L == nil {
		fail(Discard, n)
	}
	if d, ok := destOperand(dst.L, outgoing); ok {
		return tile.Unary(tile.Void, "fstpl "+d, b.fpu(src))
	}
	m := addressOf(dst.L)
	return tile.New(tile.Void, "fstpl "+m.at("%r"), b.fpu(src), b.reg(m.base))
}

// branch selects a conditional jump to label taken when cond is nonzero
// (sense true) or zero (sense false).
func (b *Builder) branch(cond *ir.Node, sense bool, label string) *tile.Tile {
	jump := func(c x86.Cond) string { return c.Jump(label) }
	switch {
	case cond.Op.IsCompare():
		expect(Discard, cond, 2)
		c := intConds[cond.Op]
		if !sense {
			c = c.Negate()
		}
		return b.compare(cond.L, cond.R, c, tile.Void, jump)
	case cond.Op.IsFloatCompare():
		expect(Discard, cond, 2)
		c := floatConds[cond.Op]
		if !sense {
			c = c.Negate()
		}
		return b.fcompare(cond.L, cond.R, c, tile.Void, jump)
	}
	c := x86.CondNE
	if !sense {
		c = x86.CondE
	}
	return tile.Unary(tile.Void, "testl %l, %l\n"+jump(c), b.reg(cond))
}

// compare emits cmpl for compare(l, r) followed by tail(cond). A fusible
// left operand swaps the comparison.
func (b *Builder) compare(l, r *ir.Node, c x86.Cond, kind tile.Kind, tail func(x86.Cond) string) *tile.Tile {
	if op, ok := operand(r); ok {
		return tile.Unary(kind, "cmpl "+op+", %l\n"+tail(c), b.reg(l))
	}
	if op, ok := operand(l); ok {
		return tile.Unary(kind, "cmpl "+op+", %l\n"+tail(c.Swap()), b.reg(r))
	}
	return tile.New(kind, "cmpl %r, %l\n"+tail(c), b.reg(l), b.reg(r))
}

// fcompare compares two float operands through the FPU status word.
// With l evaluated first the stack holds st0 = r, st1 = l and fcompp
// yields the flags of compare(r, l), so the condition is swapped; Alt
// covers the reverse evaluation order.
func (b *Builder) fcompare(l, r *ir.Node, c x86.Cond, kind tile.Kind, tail func(x86.Cond) string) *tile.Tile {
	const status = "\nfnstsw %ax\nsahf\n"
	var t *tile.Tile
	if op, ok := memLoad(r); ok {
		t = tile.Unary(kind, "fcompl "+op+status+tail(c), b.fpu(l))
	} else {
		t = tile.New(kind, "fcompp"+status+tail(c.Swap()), b.fpu(l), b.fpu(r))
		t.Alt = "fcompp" + status + tail(c)
	}
	t.Clobber = x86.SetOf(x86.EAX)
	return t
}

package selection

import (
	"strconv"

	"github.com/raymyers/munch/pkg/ir"
	"github.com/raymyers/munch/pkg/tile"
	"github.com/raymyers/munch/pkg/x86"
)

var arithOps = map[ir.Op]string{
	ir.ADD: "addl",
	ir.SUB: "subl",
	ir.MUL: "imull",
	ir.AND: "andl",
	ir.OR:  "orl",
	ir.XOR: "xorl",
}

var shiftOps = map[ir.Op]string{
	ir.SHL: "sall",
	ir.SHR: "shrl",
	ir.SAR: "sarl",
}

// toInt converts the value on top of the FPU stack to an integer in %l,
// rounding to nearest even.
const toInt = "subl $4, %esp\nfistpl (%esp)\npopl %l"

func (b *Builder) reg(n *ir.Node) *tile.Tile {
	expect(Register, n, 0)
	switch n.Op {
	case ir.CONST:
		return tile.Leaf(tile.Int, "movl "+x86.Imm(n.Val)+", %l")
	case ir.GLOBAL:
		return tile.Leaf(tile.Int, "movl $"+n.Sym+", %l")
	case ir.LOCAL:
		return tile.Leaf(tile.Int, "leal "+x86.Local(n.Val)+", %l")
	case ir.ARG:
		return tile.Leaf(tile.Int, "leal "+x86.Arg(n.Val)+", %l")

	case ir.MEM:
		expect(Register, n, 1)
		if op, ok := memOperand(n.L); ok {
			return tile.Leaf(tile.Int, "movl "+op+", %l")
		}
		m := addressOf(n.L)
		return tile.Unary(tile.Int, "movl "+m.at("%l")+", %l", b.reg(m.base))

	case ir.MUL:
		expect(Register, n, 2)
		if k, ok := log2(n.R); ok {
			return tile.Unary(tile.Int, "sall $"+strconv.Itoa(k)+", %l", b.reg(n.L))
		}
		if k, ok := log2(n.L); ok {
			return tile.Unary(tile.Int, "sall $"+strconv.Itoa(k)+", %l", b.reg(n.R))
		}
		return b.arith(n)

	case ir.ADD, ir.SUB, ir.AND, ir.OR, ir.XOR:
		expect(Register, n, 2)
		return b.arith(n)

	case ir.DIV:
		expect(Register, n, 2)
		if k, ok := log2(n.R); ok {
			return tile.Unary(tile.Int, "sarl $"+strconv.Itoa(k)+", %l", b.reg(n.L))
		}
		return b.divide(n, false)

	case ir.MOD:
		expect(Register, n, 2)
		return b.divide(n, true)

	case ir.SHL, ir.SHR, ir.SAR:
		expect(Register, n, 2)
		mn := shiftOps[n.Op]
		if n.R.Op == ir.CONST {
			return tile.Unary(tile.Int, mn+" "+x86.Imm(n.R.Val&31)+", %l", b.reg(n.L))
		}
		t := tile.New(tile.Int, mn+" %cl, %l", b.reg(n.L), b.reg(n.R))
		t.WantR = x86.ECX
		return t

	case ir.NEG:
		expect(Register, n, 1)
		return tile.Unary(tile.Int, "negl %l", b.reg(n.L))

	case ir.SETEQ, ir.SETNE, ir.SETLT, ir.SETGT, ir.SETLE, ir.SETGE:
		expect(Register, n, 2)
		t := b.compare(n.L, n.R, intConds[n.Op], tile.Int, setValue)
		t.WantL = x86.EAX
		return t

	case ir.FSETEQ, ir.FSETNE, ir.FSETLT, ir.FSETGT, ir.FSETLE, ir.FSETGE:
		expect(Register, n, 2)
		t := b.fcompare(n.L, n.R, floatConds[n.Op], tile.Int, setValue)
		t.WantL = x86.EAX
		return t

	case ir.CALL:
		return b.call(n, tile.Int)

	case ir.CAST:
		expect(Register, n, 1)
		return tile.Unary(tile.Int, toInt, b.fpu(n.L))
	}
	if n.IsFloat() {
		return tile.Unary(tile.Int, toInt, b.fpu(n))
	}
	fail(Register, n)
	return nil
}

// setValue materializes a condition as 0 or 1; the tile wants %eax so
// that %al is addressable.
func setValue(c x86.Cond) string {
	return c.Set() + "\nmovzbl %al, %l"
}

func (b *Builder) arith(n *ir.Node) *tile.Tile {
	mn := arithOps[n.Op]
	if op, ok := operand(n.R); ok {
		return tile.Unary(tile.Int, mn+" "+op+", %l", b.reg(n.L))
	}
	if n.Op.IsCommutative() {
		if op, ok := operand(n.L); ok {
			return tile.Unary(tile.Int, mn+" "+op+", %l", b.reg(n.R))
		}
	}
	return tile.New(tile.Int, mn+" %r, %l", b.reg(n.L), b.reg(n.R))
}

// divide selects idivl. The dividend lives in %eax, %edx receives the
// remainder.
func (b *Builder) divide(n *ir.Node, mod bool) *tile.Tile {
	var t *tile.Tile
	suffix := ""
	if mod {
		suffix = "\nmovl %edx, %l"
	}
	if op, ok := memLoad(n.R); ok {
		t = tile.Unary(tile.Int, "cltd\nidivl "+op+suffix, b.reg(n.L))
	} else {
		t = tile.New(tile.Int, "cltd\nidivl %r"+suffix, b.reg(n.L), b.reg(n.R))
		t.WantR = x86.ECX
	}
	t.WantL = x86.EAX
	t.Clobber = x86.SetOf(x86.EDX)
	return t
}

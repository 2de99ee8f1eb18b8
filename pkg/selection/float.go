package selection

import (
	"github.com/raymyers/munch/pkg/ir"
	"github.com/raymyers/munch/pkg/tile"
	"github.com/raymyers/munch/pkg/x86"
)

// toFloat pushes the integer in %l onto the FPU stack.
const toFloat = "pushl %l\nfildl (%esp)\naddl $4, %esp"

type floatOp struct {
	mem, memRev string // st0 op m, m op st0
	pop, popRev string // st1 op st0, st0 op st1; both pop into st1
}

var floatOps = map[ir.Op]floatOp{
	ir.FADD: {"faddl", "faddl", "faddp %st, %st(1)", ""},
	ir.FMUL: {"fmull", "fmull", "fmulp %st, %st(1)", ""},
	ir.FSUB: {"fsubl", "fsubrl", "fsubrp %st, %st(1)", "fsubp %st, %st(1)"},
	ir.FDIV: {"fdivl", "fdivrl", "fdivrp %st, %st(1)", "fdivp %st, %st(1)"},
}

func (b *Builder) fpu(n *ir.Node) *tile.Tile {
	expect(FPU, n, 0)
	switch n.Op {
	case ir.MEM:
		expect(FPU, n, 1)
		if op, ok := memOperand(n.L); ok {
			return tile.Leaf(tile.Float, "fldl "+op)
		}
		m := addressOf(n.L)
		return tile.Unary(tile.Float, "fldl "+m.at("%l"), b.reg(m.base))

	case ir.CONST:
		switch n.Val {
		case 0:
			return tile.Leaf(tile.Float, "fldz")
		case 1:
			return tile.Leaf(tile.Float, "fld1")
		}
		return tile.Leaf(tile.Float, "pushl "+x86.Imm(n.Val)+"\nfildl (%esp)\naddl $4, %esp")

	case ir.FADD, ir.FSUB, ir.FMUL, ir.FDIV:
		expect(FPU, n, 2)
		return b.farith(n)

	case ir.FNEG:
		expect(FPU, n, 1)
		return tile.Unary(tile.Float, "fchs", b.fpu(n.L))

	case ir.FCALL:
		return b.call(n, tile.Float)

	case ir.FCAST:
		expect(FPU, n, 1)
		return tile.Unary(tile.Float, toFloat, b.reg(n.L))
	}
	if !isValue(n.Op) {
		fail(FPU, n)
	}
	return tile.Unary(tile.Float, toFloat, b.reg(n))
}

func (b *Builder) farith(n *ir.Node) *tile.Tile {
	f := floatOps[n.Op]
	if op, ok := memLoad(n.R); ok {
		return tile.Unary(tile.Float, f.mem+" "+op, b.fpu(n.L))
	}
	if op, ok := memLoad(n.L); ok {
		return tile.Unary(tile.Float, f.memRev+" "+op, b.fpu(n.R))
	}
	t := tile.New(tile.Float, f.pop, b.fpu(n.L), b.fpu(n.R))
	t.Alt = f.popRev
	return t
}

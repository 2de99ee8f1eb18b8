package selection

import (
	"math/bits"
	"strconv"

	"github.com/raymyers/munch/pkg/ir"
	"github.com/raymyers/munch/pkg/x86"
)

// Addressing-mode fusion: operands that an instruction can name directly
// instead of loading them into a register first.

// immOperand returns the immediate form of a CONST or GLOBAL node.
func immOperand(n *ir.Node) (string, bool) {
	switch n.Op {
	case ir.CONST:
		return x86.Imm(n.Val), true
	case ir.GLOBAL:
		return "$" + n.Sym, true
	}
	return "", false
}

// memOperand returns the direct memory operand for address a when a
// names a fixed location.
func memOperand(a *ir.Node) (string, bool) {
	if a == nil {
		return "", false
	}
	switch a.Op {
	case ir.GLOBAL:
		return a.Sym, true
	case ir.LOCAL:
		return x86.Local(a.Val), true
	case ir.ARG:
		return x86.Arg(a.Val), true
	case ir.CONST:
		return strconv.FormatInt(a.Val, 10), true
	}
	return "", false
}

// operand returns the fused source operand for n: an immediate, or a
// direct memory operand for MEM of a fixed location.
func operand(n *ir.Node) (string, bool) {
	if op, ok := immOperand(n); ok {
		return op, true
	}
	return memLoad(n)
}

// memLoad returns the memory operand of a MEM node with a fixed address.
func memLoad(n *ir.Node) (string, bool) {
	if n.Op != ir.MEM {
		return "", false
	}
	return memOperand(n.L)
}

// destOperand returns the memory operand a store to address a writes.
// Inside a call's argument sequence ARG(k) names the outgoing slot.
func destOperand(a *ir.Node, outgoing bool) (string, bool) {
	if outgoing && a.Op == ir.ARG {
		return x86.OutArg(a.Val), true
	}
	return memOperand(a)
}

// addrMode is a register base plus a constant displacement.
type addrMode struct {
	disp int64
	base *ir.Node
}

// addressOf splits a computed address into base and displacement.
func addressOf(a *ir.Node) addrMode {
	switch a.Op {
	case ir.ADD:
		if a.R != nil && a.R.Op == ir.CONST {
			return addrMode{disp: a.R.Val, base: a.L}
		}
		if a.L != nil && a.L.Op == ir.CONST {
			return addrMode{disp: a.L.Val, base: a.R}
		}
	case ir.SUB:
		if a.R != nil && a.R.Op == ir.CONST {
			return addrMode{disp: -a.R.Val, base: a.L}
		}
	}
	return addrMode{base: a}
}

// at formats the memory operand with the base in the given placeholder.
func (m addrMode) at(slot string) string {
	return x86.Disp(m.disp, slot)
}

// log2 returns k when n is a CONST equal to 2^k.
func log2(n *ir.Node) (int, bool) {
	if n.Op != ir.CONST || n.Val <= 0 || n.Val&(n.Val-1) != 0 {
		return 0, false
	}
	return bits.TrailingZeros64(uint64(n.Val)), true
}

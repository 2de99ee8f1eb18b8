// Package selection implements instruction selection: IR trees are
// matched against x86 instruction templates by maximal munch, producing
// a tile tree for the register allocator.
//
// Every IR node is matched in one of three contexts: discard (statement
// level, side effects only), register (value in a general register) and
// fpu (value on top of the x87 stack).
package selection

import (
	"fmt"

	"github.com/raymyers/munch/pkg/ir"
	"github.com/raymyers/munch/pkg/tile"
)

// Context is the evaluation context a node is selected in.
type Context int

const (
	Discard Context = iota
	Register
	FPU
)

func (c Context) String() string {
	switch c {
	case Discard:
		return "discard"
	case Register:
		return "register"
	case FPU:
		return "fpu"
	}
	return fmt.Sprintf("Context(%d)", int(c))
}

// UnmatchedError reports an IR shape that no rule covers. The opcode set
// is closed, so this is always a contract violation by the producer.
type UnmatchedError struct {
	Op      ir.Op
	Context Context
	Node    *ir.Node
}

func (e *UnmatchedError) Error() string {
	if e.Node == nil {
		return fmt.Sprintf("missing operand in %v context", e.Context)
	}
	return fmt.Sprintf("no %v-context rule for %v: %v", e.Context, e.Op, e.Node)
}

// Builder selects tiles for IR trees of one function.
type Builder struct {
	// Exit is the label RETURN and FRETURN jump to.
	Exit string
}

// NewBuilder returns a builder whose returns jump to exit.
func NewBuilder(exit string) *Builder {
	return &Builder{Exit: exit}
}

// Discard selects tiles for a statement evaluated for its side effects.
func (b *Builder) Discard(n *ir.Node) (t *tile.Tile, err error) {
	defer catch(&err)
	return b.discard(n), nil
}

// Reg selects tiles leaving the value of n in a general register.
func (b *Builder) Reg(n *ir.Node) (t *tile.Tile, err error) {
	defer catch(&err)
	return b.reg(n), nil
}

// Fpu selects tiles leaving the value of n on top of the FPU stack.
func (b *Builder) Fpu(n *ir.Node) (t *tile.Tile, err error) {
	defer catch(&err)
	return b.fpu(n), nil
}

func catch(err *error) {
	p := recover()
	if p == nil {
		return
	}
	if e, ok := p.(*UnmatchedError); ok {
		*err = e
		return
	}
	panic(p)
}

func fail(ctx Context, n *ir.Node) {
	e := &UnmatchedError{Context: ctx, Node: n}
	if n != nil {
		e.Op = n.Op
	}
	panic(e)
}

// expect fails unless n is present with its required children.
func expect(ctx Context, n *ir.Node, kids int) {
	if n == nil || kids >= 1 && n.L == nil || kids >= 2 && n.R == nil {
		fail(ctx, n)
	}
}

// isValue reports whether op computes a value rather than transferring
// control or storing.
func isValue(op ir.Op) bool {
	switch op {
	case ir.JUMP, ir.JUMPT, ir.JUMPF, ir.JUMPGE, ir.JSR, ir.RET,
		ir.RETURN, ir.FRETURN, ir.SEQ, ir.MOVE, ir.FMOVE, ir.Invalid:
		return false
	}
	return true
}

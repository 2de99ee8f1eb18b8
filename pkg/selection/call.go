package selection

import (
	"github.com/raymyers/munch/pkg/ir"
	"github.com/raymyers/munch/pkg/tile"
	"github.com/raymyers/munch/pkg/x86"
)

// call selects CALL and FCALL. L holds the argument stores, R an
// indirect target; the caller reserves n.Val outgoing bytes and the
// callee pops them.
func (b *Builder) call(n *ir.Node, kind tile.Kind) *tile.Tile {
	expect(Discard, n, 1)
	var args *tile.Tile
	if n.R != nil {
		args = b.args(n.R)
	}
	var t *tile.Tile
	if n.L.Op == ir.GLOBAL {
		t = tile.New(kind, "call "+n.L.Sym, args, nil)
	} else {
		if args == nil {
			args = tile.Leaf(tile.Void, "")
		}
		t = tile.New(kind, "call *%r", args, b.reg(n.L))
		t.Ordered = true
	}
	t.Clobber = x86.CallerSaved
	t.ArgBytes = n.Val
	t.Call = true
	if kind == tile.Int {
		t.WantL = x86.EAX
	}
	return t
}

// args selects the argument sequence of a call. Stores to ARG slots
// address the outgoing area at the stack pointer.
func (b *Builder) args(n *ir.Node) *tile.Tile {
	switch n.Op {
	case ir.SEQ:
		expect(Discard, n, 1)
		l := b.args(n.L)
		if n.R == nil {
			return l
		}
		t := tile.New(tile.Void, "", l, b.args(n.R))
		t.Ordered = true
		return t
	case ir.MOVE:
		return b.move(n, true)
	case ir.FMOVE:
		return b.fmove(n, true)
	}
	return b.discard(n)
}

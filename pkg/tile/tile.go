// Package tile defines instruction candidates ("tiles"): instruction
// templates arranged in a tree that mirrors the evaluation order
// constraints of the IR they cover. Tiles are built by selection,
// labeled with their register need here, and consumed by regalloc.
package tile

import "github.com/raymyers/munch/pkg/x86"

// Kind is where a tile leaves its value.
type Kind int

const (
	Void  Kind = iota // no value, side effects only
	Int               // value in a general register
	Float             // value on top of the FPU stack
)

func (k Kind) String() string {
	switch k {
	case Void:
		return "void"
	case Int:
		return "int"
	case Float:
		return "float"
	}
	return "?"
}

// Tile is one instruction candidate.
//
// Text holds one or more instruction lines separated by '\n'. The
// placeholders %l and %r are replaced by the registers holding the
// values of L and R. Alt, when set, is used instead of Text if R is
// evaluated before L; it exists for non-commutative FPU operations whose
// correct form depends on the physical stack order.
type Tile struct {
	Text string
	Alt  string

	L, R *Tile

	// Registers the operands must end up in (x86.None for any).
	WantL, WantR x86.Reg

	// Registers overwritten by Text beyond its operands.
	Clobber x86.RegSet

	// Outgoing argument bytes reserved before the children run.
	ArgBytes int64

	Kind Kind

	// Ordered forces L to be evaluated before R.
	Ordered bool

	// Call marks a tile whose Text calls out. The callee may use the
	// whole FPU stack, so live FPU values are saved around it.
	Call bool

	need int
}

// New returns a tile with no register hints.
func New(kind Kind, text string, l, r *Tile) *Tile {
	return &Tile{
		Text:  text,
		L:     l,
		R:     r,
		WantL: x86.None,
		WantR: x86.None,
		Kind:  kind,
	}
}

// Leaf returns a tile without children.
func Leaf(kind Kind, text string) *Tile { return New(kind, text, nil, nil) }

// Unary returns a tile with a single child.
func Unary(kind Kind, text string, l *Tile) *Tile { return New(kind, text, l, nil) }

// Need returns the register need computed by Label, or 0 if the tile has
// not been labeled.
func (t *Tile) Need() int { return t.need }

// NumKids returns the number of children.
func (t *Tile) NumKids() int {
	switch {
	case t.L == nil:
		return 0
	case t.R == nil:
		return 1
	}
	return 2
}

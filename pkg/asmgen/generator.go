package asmgen

import (
	"io"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/raymyers/munch/pkg/asm"
	"github.com/raymyers/munch/pkg/ir"
	"github.com/raymyers/munch/pkg/regalloc"
	"github.com/raymyers/munch/pkg/selection"
	"github.com/raymyers/munch/pkg/stacking"
	"github.com/raymyers/munch/pkg/tile"
	"github.com/raymyers/munch/pkg/x86"
)

// Generator translates the statements of one function at a time. A
// front end calls Enter, then Code and Label for each statement in
// order, then Leave. Generators share no state.
type Generator struct {
	// Dump, when set, receives the labeled tile tree of every statement.
	Dump io.Writer

	label   string
	builder *selection.Builder
	frame   *stacking.Frame
	alloc   *regalloc.Allocator
	code    []string
	err     error
}

// New returns an idle generator.
func New() *Generator {
	return &Generator{}
}

// ExitLabel returns the label RETURN statements of function label jump to.
func ExitLabel(label string) string { return label + "$exit" }

// Enter starts function label with frameSize bytes of declared locals.
func (g *Generator) Enter(label string, frameSize int64) {
	g.label = label
	g.builder = selection.NewBuilder(ExitLabel(label))
	g.frame = stacking.NewFrame(frameSize)
	g.alloc = regalloc.New(g.frame)
	g.code = nil
	g.err = nil
}

// Label defines a jump target at the current position.
func (g *Generator) Label(name string) {
	if g.err != nil {
		return
	}
	g.code = append(g.code, name+":")
}

// Code translates one statement. After the first error the function is
// abandoned and every later call returns that error.
func (g *Generator) Code(stmt *ir.Node) error {
	return g.statement(stmt, 0)
}

func (g *Generator) statement(stmt *ir.Node, reserved x86.RegSet) error {
	if g.err != nil {
		return g.err
	}
	if g.builder == nil {
		g.err = errors.New("code outside of a function")
		return g.err
	}

	t, err := g.builder.Discard(stmt)
	if err != nil {
		g.err = errors.Wrap(err, "%v: select", g.label)
		return g.err
	}

	if g.Dump != nil {
		tile.Label(t)
		tile.NewPrinter(g.Dump).PrintTile(t)
	}

	// Values never live across statements.
	for _, r := range x86.Regs {
		g.alloc.Release(r)
	}
	for _, r := range reserved.Slice() {
		g.alloc.Reserve(r)
	}

	if _, err := g.alloc.Emit(t); err != nil {
		g.err = errors.Wrap(err, "%v: %v", g.label, stmt)
		return g.err
	}
	lines := g.alloc.Lines()

	if tlog.If("tile") {
		tlog.Printw("statement", "func", g.label, "ir", stmt, "need", t.Need(), "lines", len(lines), "frame", g.frame.Size())
	}

	g.code = append(g.code, lines...)
	return nil
}

// Leave finishes the function: the exit label, the cleanup statement (run
// with %eax preserved so a returned value survives it), and the prologue
// and epilogue sized for the deepest spill seen. argPop bytes of
// arguments are popped on return.
func (g *Generator) Leave(cleanup *ir.Node, argPop int64) (*asm.Function, error) {
	if g.err != nil {
		return nil, g.err
	}
	if g.builder == nil {
		return nil, errors.New("leave outside of a function")
	}

	g.Label(ExitLabel(g.label))
	if cleanup != nil {
		if err := g.statement(cleanup, x86.SetOf(x86.EAX)); err != nil {
			return nil, errors.Wrap(err, "cleanup")
		}
	}

	fn := asm.NewFunction(g.label)
	fn.Code = append(fn.Code, g.frame.Prologue()...)
	fn.Code = append(fn.Code, g.code...)
	fn.Code = append(fn.Code, g.frame.Epilogue(argPop)...)

	g.builder = nil
	return fn, nil
}

// FrameSize returns the bytes the current function's prologue reserves
// so far.
func (g *Generator) FrameSize() int64 {
	if g.frame == nil {
		return 0
	}
	return g.frame.Size()
}

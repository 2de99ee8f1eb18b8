package ir

import (
	"fmt"
	"io"
	"strings"
)

// Printer outputs IR trees in a parenthesised prefix form, e.g.
// (MOVE (ADD (MEM (GLOBAL g)) (CONST 1)) (MEM (GLOBAL g))).
type Printer struct {
	w io.Writer
}

// NewPrinter creates a new IR printer
func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w}
}

// PrintProgram prints every function of a program
func (p *Printer) PrintProgram(prog *Program) {
	for i, fn := range prog.Functions {
		if i > 0 {
			fmt.Fprintln(p.w)
		}
		p.PrintFunction(&fn)
	}
}

// PrintFunction prints a function header followed by one statement per line
func (p *Printer) PrintFunction(fn *Function) {
	fmt.Fprintf(p.w, "%s(frame %d, argpop %d) {\n", fn.Name, fn.Frame, fn.ArgPop)
	for _, st := range fn.Body {
		if st.Label != "" {
			fmt.Fprintf(p.w, "%s:\n", st.Label)
			continue
		}
		fmt.Fprintf(p.w, "\t%s\n", st.Node)
	}
	if fn.Cleanup != nil {
		fmt.Fprintf(p.w, "  cleanup:\n\t%s\n", fn.Cleanup)
	}
	fmt.Fprintln(p.w, "}")
}

// PrintNode prints a single tree without a trailing newline
func (p *Printer) PrintNode(n *Node) {
	io.WriteString(p.w, n.String())
}

func (n *Node) String() string {
	var b strings.Builder
	writeNode(&b, n)
	return b.String()
}

func writeNode(b *strings.Builder, n *Node) {
	if n == nil {
		b.WriteString("()")
		return
	}
	b.WriteByte('(')
	b.WriteString(n.Op.String())
	switch n.Op {
	case CONST, LOCAL, ARG:
		fmt.Fprintf(b, " %d", n.Val)
	case CALL, FCALL:
		if n.Val != 0 {
			fmt.Fprintf(b, " %d", n.Val)
		}
	}
	if n.Sym != "" {
		b.WriteByte(' ')
		b.WriteString(n.Sym)
	}
	if n.L != nil {
		b.WriteByte(' ')
		writeNode(b, n.L)
	}
	if n.R != nil {
		b.WriteByte(' ')
		writeNode(b, n.R)
	}
	b.WriteByte(')')
}

package asm

import (
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Printer outputs i386 assembly in GNU as (AT&T) syntax for ELF targets
type Printer struct {
	w io.Writer
}

// NewPrinter creates a new assembly printer
func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w}
}

// PrintProgram outputs an entire program
func (p *Printer) PrintProgram(prog *Program) {
	if len(prog.Globals) > 0 {
		fmt.Fprintf(p.w, "\t.data\n")
		for _, g := range prog.Globals {
			p.printGlobal(g)
		}
		fmt.Fprintf(p.w, "\n")
	}

	fmt.Fprintf(p.w, "\t.text\n")
	for _, f := range prog.Functions {
		p.PrintFunction(f)
	}
}

func (p *Printer) printGlobal(g GlobVar) {
	name := g.Name
	fmt.Fprintf(p.w, "\t.globl\t%s\n", name)
	fmt.Fprintf(p.w, "\t.align\t4\n")
	fmt.Fprintf(p.w, "%s:\n", name)
	for _, w := range g.Words {
		fmt.Fprintf(p.w, "\t.long\t%d\n", w)
	}
	for _, d := range g.Doubles {
		fmt.Fprintf(p.w, "\t.double\t%s\n", strconv.FormatFloat(d, 'g', -1, 64))
	}
	used := int64(len(g.Words))*4 + int64(len(g.Doubles))*8
	if pad := g.Size - used; pad > 0 {
		fmt.Fprintf(p.w, "\t.zero\t%d\n", pad)
	}
}

// PrintFunction outputs one function with its symbol directives
func (p *Printer) PrintFunction(f Function) {
	name := f.Name
	fmt.Fprintf(p.w, "\t.globl\t%s\n", name)
	fmt.Fprintf(p.w, "\t.type\t%s, @function\n", name)
	fmt.Fprintf(p.w, "%s:\n", name)

	for _, line := range f.Code {
		p.printInstruction(line)
	}

	fmt.Fprintf(p.w, "\t.size\t%s, .-%s\n", name, name)
	fmt.Fprintf(p.w, "\n")
}

func (p *Printer) printInstruction(line string) {
	if IsLabel(line) {
		fmt.Fprintf(p.w, "%s\n", line)
		return
	}
	mn, ops := SplitInstruction(line)
	if len(ops) == 0 {
		fmt.Fprintf(p.w, "\t%s\n", mn)
		return
	}
	fmt.Fprintf(p.w, "\t%s\t%s\n", mn, strings.Join(ops, ", "))
}

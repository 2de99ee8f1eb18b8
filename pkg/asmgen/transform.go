// Package asmgen drives code generation: it feeds IR statements through
// instruction selection and register allocation, brackets the result
// with the frame's prologue and epilogue, and produces assembly that
// can be assembled by a standard assembler (as/gas) for i386.
package asmgen

import (
	"io"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/raymyers/munch/pkg/asm"
	"github.com/raymyers/munch/pkg/ir"
)

// TransformProgram transforms an IR program to assembly. dump, if not
// nil, receives the tile trees of every statement.
func TransformProgram(prog *ir.Program, dump io.Writer) (*asm.Program, error) {
	result := &asm.Program{
		Globals:   make([]asm.GlobVar, len(prog.Globals)),
		Functions: make([]asm.Function, 0, len(prog.Functions)),
	}

	// Transform globals
	for i, g := range prog.Globals {
		result.Globals[i] = asm.GlobVar{
			Name:    g.Name,
			Size:    g.Size,
			Words:   g.Words,
			Doubles: g.Doubles,
		}
	}

	// Transform functions
	for _, f := range prog.Functions {
		fn, err := TransformFunction(&f, dump)
		if err != nil {
			return nil, err
		}
		result.Functions = append(result.Functions, *fn)
	}

	return result, nil
}

// TransformFunction translates a single IR function.
func TransformFunction(f *ir.Function, dump io.Writer) (*asm.Function, error) {
	if tlog.If("codegen") {
		tlog.Printw("codegen func", "name", f.Name, "frame", f.Frame, "stmts", len(f.Body))
	}

	g := New()
	g.Dump = dump
	g.Enter(f.Name, f.Frame)

	for _, s := range f.Body {
		if s.Node == nil {
			g.Label(s.Label)
			continue
		}
		if err := g.Code(s.Node); err != nil {
			return nil, err
		}
	}

	fn, err := g.Leave(f.Cleanup, f.ArgPop)
	if err != nil {
		return nil, errors.Wrap(err, "function %v", f.Name)
	}
	return fn, nil
}

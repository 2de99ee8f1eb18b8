// Package asm defines the i386 assembly representation.
// This is the final output of the back end: AT&T-syntax instruction text
// grouped into functions, plus the global data they refer to.
package asm

import "strings"

// Function is one translated function. Code holds one instruction or
// label definition per line, without indentation; label definitions end
// in ':'.
type Function struct {
	Name string
	Code []string
}

// GlobVar represents a global variable
type GlobVar struct {
	Name    string
	Size    int64     // zeroed bytes when Words and Doubles are empty
	Words   []int32   // .long initializers
	Doubles []float64 // .double initializers, after Words
}

// Program represents a complete assembly program
type Program struct {
	Globals   []GlobVar
	Functions []Function
}

// NewFunction creates a new assembly function
func NewFunction(name string) *Function {
	return &Function{
		Name: name,
		Code: make([]string, 0),
	}
}

// IsLabel reports whether line defines a label.
func IsLabel(line string) bool {
	return strings.HasSuffix(line, ":")
}

// SplitInstruction splits a line into mnemonic and operand list. Operands
// are separated by commas outside parentheses, e.g. "movl -4(%ebp), %eax"
// yields "movl" and ["-4(%ebp)", "%eax"].
func SplitInstruction(line string) (string, []string) {
	mn, rest, _ := strings.Cut(strings.TrimSpace(line), " ")
	rest = strings.TrimSpace(rest)
	if rest == "" {
		return mn, nil
	}
	var ops []string
	depth, start := 0, 0
	for i, c := range rest {
		switch c {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				ops = append(ops, strings.TrimSpace(rest[start:i]))
				start = i + 1
			}
		}
	}
	ops = append(ops, strings.TrimSpace(rest[start:]))
	return mn, ops
}

// Bytes returns the number of bytes the global occupies.
func (g GlobVar) Bytes() int64 {
	n := int64(len(g.Words))*4 + int64(len(g.Doubles))*8
	return max(n, g.Size)
}

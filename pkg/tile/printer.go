package tile

import (
	"fmt"
	"io"
	"strings"

	"github.com/raymyers/munch/pkg/x86"
)

// Printer dumps tile trees with their needs, one tile per line,
// children indented below their parent.
type Printer struct {
	w io.Writer
}

// NewPrinter creates a new tile printer
func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w}
}

// PrintTile prints t and its subtree
func (p *Printer) PrintTile(t *Tile) {
	p.print(t, 0)
}

func (p *Printer) print(t *Tile, depth int) {
	indent := strings.Repeat("  ", depth)
	text := strings.ReplaceAll(t.Text, "\n", "; ")
	if text == "" {
		text = "-"
	}
	fmt.Fprintf(p.w, "%s[%s need=%d] %s", indent, t.Kind, t.need, text)
	if t.Alt != "" {
		fmt.Fprintf(p.w, " | alt: %s", strings.ReplaceAll(t.Alt, "\n", "; "))
	}
	if t.WantL != x86.None {
		fmt.Fprintf(p.w, " l=%s", t.WantL)
	}
	if t.WantR != x86.None {
		fmt.Fprintf(p.w, " r=%s", t.WantR)
	}
	if t.Clobber != 0 {
		fmt.Fprintf(p.w, " clobber=%s", t.Clobber)
	}
	if t.ArgBytes != 0 {
		fmt.Fprintf(p.w, " args=%d", t.ArgBytes)
	}
	fmt.Fprintln(p.w)
	if t.L != nil {
		p.print(t.L, depth+1)
	}
	if t.R != nil {
		p.print(t.R, depth+1)
	}
}

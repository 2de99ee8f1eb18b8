package x86

import "fmt"

// Cond is a condition-code suffix as used by jcc and setcc.
type Cond string

// Signed integer conditions
const (
	CondE  Cond = "e"
	CondNE Cond = "ne"
	CondL  Cond = "l"
	CondG  Cond = "g"
	CondLE Cond = "le"
	CondGE Cond = "ge"
)

// Unsigned conditions, used after fcompp/fnstsw/sahf
const (
	CondA  Cond = "a"
	CondB  Cond = "b"
	CondAE Cond = "ae"
	CondBE Cond = "be"
)

var negated = map[Cond]Cond{
	CondE: CondNE, CondNE: CondE,
	CondL: CondGE, CondGE: CondL,
	CondG: CondLE, CondLE: CondG,
	CondA: CondBE, CondBE: CondA,
	CondB: CondAE, CondAE: CondB,
}

// Negate returns the condition that holds exactly when c does not.
func (c Cond) Negate() Cond { return negated[c] }

// Swap returns the condition that holds for (b, a) when c holds for (a, b).
func (c Cond) Swap() Cond {
	switch c {
	case CondL:
		return CondG
	case CondG:
		return CondL
	case CondLE:
		return CondGE
	case CondGE:
		return CondLE
	case CondA:
		return CondB
	case CondB:
		return CondA
	case CondAE:
		return CondBE
	case CondBE:
		return CondAE
	}
	return c
}

// Jump returns the conditional jump to label.
func (c Cond) Jump(label string) string { return "j" + string(c) + " " + label }

// Set returns the setcc instruction writing %al.
func (c Cond) Set() string { return "set" + string(c) + " %al" }

// --- Operand syntax ---

// Imm formats an immediate operand.
func Imm(v int64) string { return fmt.Sprintf("$%d", v) }

// Disp formats a base+displacement memory operand.
func Disp(off int64, base string) string {
	if off == 0 {
		return "(" + base + ")"
	}
	return fmt.Sprintf("%d(%s)", off, base)
}

// Local formats the memory operand of the local at frame offset -k.
func Local(k int64) string { return Disp(-k, FP) }

// Arg formats the memory operand of incoming argument k.
func Arg(k int64) string { return Disp(ArgBase+k, FP) }

// OutArg formats the memory operand of outgoing argument slot k.
func OutArg(k int64) string { return Disp(k, SP) }

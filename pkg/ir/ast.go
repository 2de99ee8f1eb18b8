// Package ir defines the tree intermediate representation consumed by the
// back end. Trees are produced by a front end one statement at a time and
// are never modified once handed over.
package ir

import "strconv"

// Op is an IR opcode from a closed set.
type Op int

const (
	Invalid Op = iota

	// Control
	JUMP
	JUMPT
	JUMPF
	JUMPGE
	JSR
	RET
	RETURN
	FRETURN

	// Memory and addressing
	MEM
	LOCAL
	GLOBAL
	ARG
	CONST

	// Sequencing
	SEQ
	MOVE
	FMOVE

	// Integer arithmetic and logic
	ADD
	SUB
	MUL
	DIV
	MOD
	NEG
	AND
	OR
	XOR
	SHL
	SHR
	SAR

	// Integer comparisons
	SETEQ
	SETNE
	SETLT
	SETGT
	SETLE
	SETGE

	// Float arithmetic
	FADD
	FSUB
	FMUL
	FDIV
	FNEG

	// Float comparisons
	FSETEQ
	FSETNE
	FSETLT
	FSETGT
	FSETLE
	FSETGE

	// Calls
	CALL
	FCALL

	// Casts
	CAST
	FCAST

	numOps
)

var opNames = [...]string{
	Invalid: "INVALID",
	JUMP:    "JUMP",
	JUMPT:   "JUMPT",
	JUMPF:   "JUMPF",
	JUMPGE:  "JUMPGE",
	JSR:     "JSR",
	RET:     "RET",
	RETURN:  "RETURN",
	FRETURN: "FRETURN",
	MEM:     "MEM",
	LOCAL:   "LOCAL",
	GLOBAL:  "GLOBAL",
	ARG:     "ARG",
	CONST:   "CONST",
	SEQ:     "SEQ",
	MOVE:    "MOVE",
	FMOVE:   "FMOVE",
	ADD:     "ADD",
	SUB:     "SUB",
	MUL:     "MUL",
	DIV:     "DIV",
	MOD:     "MOD",
	NEG:     "NEG",
	AND:     "AND",
	OR:      "OR",
	XOR:     "XOR",
	SHL:     "SHL",
	SHR:     "SHR",
	SAR:     "SAR",
	SETEQ:   "SETEQ",
	SETNE:   "SETNE",
	SETLT:   "SETLT",
	SETGT:   "SETGT",
	SETLE:   "SETLE",
	SETGE:   "SETGE",
	FADD:    "FADD",
	FSUB:    "FSUB",
	FMUL:    "FMUL",
	FDIV:    "FDIV",
	FNEG:    "FNEG",
	FSETEQ:  "FSETEQ",
	FSETNE:  "FSETNE",
	FSETLT:  "FSETLT",
	FSETGT:  "FSETGT",
	FSETLE:  "FSETLE",
	FSETGE:  "FSETGE",
	CALL:    "CALL",
	FCALL:   "FCALL",
	CAST:    "CAST",
	FCAST:   "FCAST",
}

func (op Op) String() string {
	if op >= 0 && op < numOps {
		return opNames[op]
	}
	return "Op(" + strconv.Itoa(int(op)) + ")"
}

// ParseOp returns the opcode with the given name.
func ParseOp(name string) (Op, bool) {
	for op := Op(1); op < numOps; op++ {
		if opNames[op] == name {
			return op, true
		}
	}
	return Invalid, false
}

// Ops returns every valid opcode in declaration order.
func Ops() []Op {
	ops := make([]Op, 0, numOps-1)
	for op := Op(1); op < numOps; op++ {
		ops = append(ops, op)
	}
	return ops
}

// IsCompare reports whether op is an integer comparison.
func (op Op) IsCompare() bool { return op >= SETEQ && op <= SETGE }

// IsFloatCompare reports whether op is a float comparison.
func (op Op) IsFloatCompare() bool { return op >= FSETEQ && op <= FSETGE }

// IsCommutative reports whether the operands of a binary op may be swapped.
func (op Op) IsCommutative() bool {
	switch op {
	case ADD, MUL, AND, OR, XOR, FADD, FMUL:
		return true
	}
	return false
}

// Node is one IR tree node. Fields are set at construction and never
// changed afterwards.
type Node struct {
	Op  Op
	L   *Node  // first child, may be nil
	R   *Node  // second child, may be nil
	Val int64  // literal payload (constant, frame offset, argument bytes)
	Sym string // symbol payload (global name, label, call target)
}

// IsFloat reports whether the node yields a floating-point value
// regardless of context. MEM is untyped and reports false.
func (n *Node) IsFloat() bool {
	switch n.Op {
	case FADD, FSUB, FMUL, FDIV, FNEG, FCALL, FCAST:
		return true
	}
	return false
}

// Equal reports whether two trees are structurally identical.
func (n *Node) Equal(m *Node) bool {
	if n == nil || m == nil {
		return n == m
	}
	return n.Op == m.Op && n.Val == m.Val && n.Sym == m.Sym &&
		n.L.Equal(m.L) && n.R.Equal(m.R)
}

// --- Constructors ---

// Const builds CONST(v).
func Const(v int64) *Node { return &Node{Op: CONST, Val: v} }

// Global builds GLOBAL(name), the address of a global symbol.
func Global(name string) *Node { return &Node{Op: GLOBAL, Sym: name} }

// Local builds LOCAL(k), the address of the local at frame offset -k.
func Local(k int64) *Node { return &Node{Op: LOCAL, Val: k} }

// Arg builds ARG(k), the address of the argument at byte offset k.
func Arg(k int64) *Node { return &Node{Op: ARG, Val: k} }

// Mem builds MEM(addr).
func Mem(addr *Node) *Node { return &Node{Op: MEM, L: addr} }

// Bin builds a binary operation.
func Bin(op Op, l, r *Node) *Node { return &Node{Op: op, L: l, R: r} }

// Un builds a unary operation (NEG, FNEG, CAST, FCAST).
func Un(op Op, x *Node) *Node { return &Node{Op: op, L: x} }

// Move builds MOVE(src, dst).
func Move(src, dst *Node) *Node { return &Node{Op: MOVE, L: src, R: dst} }

// FMove builds FMOVE(src, dst).
func FMove(src, dst *Node) *Node { return &Node{Op: FMOVE, L: src, R: dst} }

// Seq builds a left-to-right sequence of statements. It returns nil for
// no statements.
func Seq(stmts ...*Node) *Node {
	if len(stmts) == 0 {
		return nil
	}
	n := stmts[len(stmts)-1]
	for i := len(stmts) - 2; i >= 0; i-- {
		n = &Node{Op: SEQ, L: stmts[i], R: n}
	}
	return n
}

// Call builds CALL(target, args) with argBytes of outgoing arguments.
func Call(target, args *Node, argBytes int64) *Node {
	return &Node{Op: CALL, L: target, R: args, Val: argBytes}
}

// FCall builds FCALL(target, args) with argBytes of outgoing arguments.
func FCall(target, args *Node, argBytes int64) *Node {
	return &Node{Op: FCALL, L: target, R: args, Val: argBytes}
}

// Jump builds an unconditional jump to label.
func Jump(label string) *Node { return &Node{Op: JUMP, Sym: label} }

// JumpT builds a jump to label taken when cond is true.
func JumpT(cond *Node, label string) *Node { return &Node{Op: JUMPT, L: cond, Sym: label} }

// JumpF builds a jump to label taken when cond is false.
func JumpF(cond *Node, label string) *Node { return &Node{Op: JUMPF, L: cond, Sym: label} }

// JumpGE builds a jump to label taken when l >= r.
func JumpGE(l, r *Node, label string) *Node {
	return &Node{Op: JUMPGE, L: l, R: r, Sym: label}
}

// Jsr builds a subroutine jump to a local label.
func Jsr(label string) *Node { return &Node{Op: JSR, Sym: label} }

// Ret builds a return from a JSR subroutine.
func Ret() *Node { return &Node{Op: RET} }

// Return builds an integer function return.
func Return(x *Node) *Node { return &Node{Op: RETURN, L: x} }

// FReturn builds a float function return.
func FReturn(x *Node) *Node { return &Node{Op: FRETURN, L: x} }

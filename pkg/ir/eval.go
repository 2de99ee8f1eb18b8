package ir

import (
	"math"

	"tlog.app/go/errors"
)

// Env supplies the values of memory cells named by MEM(GLOBAL(sym)) for
// direct evaluation of expression trees.
type Env struct {
	Ints   map[string]int32
	Floats map[string]float64
}

// EvalInt evaluates an integer expression tree with 32-bit wrap-around
// arithmetic. Division truncates toward zero.
func EvalInt(n *Node, env Env) (int32, error) {
	if n.IsFloat() {
		return 0, errors.New("%v is float-valued", n.Op)
	}
	switch n.Op {
	case CONST:
		return int32(n.Val), nil
	case MEM:
		if n.L.Op != GLOBAL {
			return 0, errors.New("cannot evaluate %v", n)
		}
		v, ok := env.Ints[n.L.Sym]
		if !ok {
			return 0, errors.New("unknown global %q", n.L.Sym)
		}
		return v, nil
	case NEG:
		x, err := EvalInt(n.L, env)
		return -x, err
	case CAST:
		f, err := EvalFloat(n.L, env)
		return int32(math.RoundToEven(f)), err
	}

	if n.Op.IsFloatCompare() {
		a, err := EvalFloat(n.L, env)
		if err != nil {
			return 0, err
		}
		b, err := EvalFloat(n.R, env)
		if err != nil {
			return 0, err
		}
		return boolInt(compareFloat(n.Op, a, b)), nil
	}

	a, err := EvalInt(n.L, env)
	if err != nil {
		return 0, err
	}
	b, err := EvalInt(n.R, env)
	if err != nil {
		return 0, err
	}

	switch n.Op {
	case ADD:
		return a + b, nil
	case SUB:
		return a - b, nil
	case MUL:
		return a * b, nil
	case DIV, MOD:
		if b == 0 {
			return 0, errors.New("division by zero in %v", n)
		}
		if n.Op == DIV {
			return a / b, nil
		}
		return a % b, nil
	case AND:
		return a & b, nil
	case OR:
		return a | b, nil
	case XOR:
		return a ^ b, nil
	case SHL:
		return a << uint32(b&31), nil
	case SHR:
		return int32(uint32(a) >> uint32(b&31)), nil
	case SAR:
		return a >> uint32(b&31), nil
	case SETEQ:
		return boolInt(a == b), nil
	case SETNE:
		return boolInt(a != b), nil
	case SETLT:
		return boolInt(a < b), nil
	case SETGT:
		return boolInt(a > b), nil
	case SETLE:
		return boolInt(a <= b), nil
	case SETGE:
		return boolInt(a >= b), nil
	}

	return 0, errors.New("cannot evaluate %v", n.Op)
}

// EvalFloat evaluates a float expression tree. MEM(GLOBAL(sym)) reads
// env.Floats; integer subtrees are converted as FCAST would.
func EvalFloat(n *Node, env Env) (float64, error) {
	switch n.Op {
	case MEM:
		if n.L.Op != GLOBAL {
			return 0, errors.New("cannot evaluate %v", n)
		}
		v, ok := env.Floats[n.L.Sym]
		if !ok {
			return 0, errors.New("unknown global %q", n.L.Sym)
		}
		return v, nil
	case FNEG:
		x, err := EvalFloat(n.L, env)
		return -x, err
	case FCAST:
		x, err := EvalInt(n.L, env)
		return float64(x), err
	case FADD, FSUB, FMUL, FDIV:
	default:
		x, err := EvalInt(n, env)
		return float64(x), err
	}

	a, err := EvalFloat(n.L, env)
	if err != nil {
		return 0, err
	}
	b, err := EvalFloat(n.R, env)
	if err != nil {
		return 0, err
	}
	switch n.Op {
	case FADD:
		return a + b, nil
	case FSUB:
		return a - b, nil
	case FMUL:
		return a * b, nil
	default:
		return a / b, nil
	}
}

func compareFloat(op Op, a, b float64) bool {
	switch op {
	case FSETEQ:
		return a == b
	case FSETNE:
		return a != b
	case FSETLT:
		return a < b
	case FSETGT:
		return a > b
	case FSETLE:
		return a <= b
	default:
		return a >= b
	}
}

func boolInt(b bool) int32 {
	if b {
		return 1
	}
	return 0
}

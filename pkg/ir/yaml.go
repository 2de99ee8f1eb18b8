package ir

import (
	"strconv"

	"gopkg.in/yaml.v3"
	"tlog.app/go/errors"
)

// Program is a set of functions handed to the back end by a front end,
// plus the global data they refer to.
type Program struct {
	Globals   []GlobalData `yaml:"globals"`
	Functions []Function   `yaml:"functions"`
}

// GlobalData is a statically allocated data object. Words and Doubles give
// its initial contents; Size reserves zeroed bytes when both are empty.
type GlobalData struct {
	Name    string    `yaml:"name"`
	Size    int64     `yaml:"size"`
	Words   []int32   `yaml:"words"`
	Doubles []float64 `yaml:"doubles"`
}

// Function is the per-function input contract: an entry label, the
// declared local frame size, the bytes of arguments popped on return,
// the statement list and an optional cleanup statement run on exit.
type Function struct {
	Name    string `yaml:"name"`
	Frame   int64  `yaml:"frame"`
	ArgPop  int64  `yaml:"argpop"`
	Body    []Stmt `yaml:"body"`
	Cleanup *Node  `yaml:"cleanup"`
}

// Stmt is either a label definition or an IR statement tree.
type Stmt struct {
	Label string
	Node  *Node
}

// LoadProgram decodes a program from its YAML form.
//
// A node is written as a sequence whose first element is the opcode name.
// Nested sequences are children (left first), integers set Val and other
// scalars set Sym:
//
//	[MOVE, [ADD, [MEM, [GLOBAL, g]], [CONST, 1]], [MEM, [GLOBAL, g]]]
//
// A statement may instead be a mapping {label: name}.
func LoadProgram(data []byte) (*Program, error) {
	var prog Program
	if err := yaml.Unmarshal(data, &prog); err != nil {
		return nil, errors.Wrap(err, "decode program")
	}
	return &prog, nil
}

// ParseNode decodes a single node from its YAML flow form.
func ParseNode(src string) (*Node, error) {
	var n Node
	if err := yaml.Unmarshal([]byte(src), &n); err != nil {
		return nil, errors.Wrap(err, "decode node")
	}
	return &n, nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (s *Stmt) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.MappingNode {
		var m struct {
			Label string `yaml:"label"`
		}
		if err := value.Decode(&m); err != nil {
			return err
		}
		if m.Label == "" {
			return errors.New("line %d: statement mapping without label", value.Line)
		}
		s.Label = m.Label
		return nil
	}
	var n Node
	if err := n.UnmarshalYAML(value); err != nil {
		return err
	}
	s.Node = &n
	return nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (n *Node) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		// bare opcode, e.g. RET
		op, ok := ParseOp(value.Value)
		if !ok {
			return errors.New("line %d: unknown opcode %q", value.Line, value.Value)
		}
		*n = Node{Op: op}
		return nil
	case yaml.SequenceNode:
	default:
		return errors.New("line %d: node must be a sequence", value.Line)
	}

	if len(value.Content) == 0 {
		return errors.New("line %d: empty node", value.Line)
	}
	head := value.Content[0]
	op, ok := ParseOp(head.Value)
	if head.Kind != yaml.ScalarNode || !ok {
		return errors.New("line %d: unknown opcode %q", head.Line, head.Value)
	}
	res := Node{Op: op}

	var kids []*Node
	for _, item := range value.Content[1:] {
		switch {
		case item.Kind == yaml.SequenceNode:
			var kid Node
			if err := kid.UnmarshalYAML(item); err != nil {
				return err
			}
			kids = append(kids, &kid)
		case item.Kind == yaml.ScalarNode && item.Tag == "!!int":
			v, err := strconv.ParseInt(item.Value, 0, 64)
			if err != nil {
				return errors.Wrap(err, "line %d: literal", item.Line)
			}
			res.Val = v
		case item.Kind == yaml.ScalarNode:
			res.Sym = item.Value
		default:
			return errors.New("line %d: unexpected %v in %v", item.Line, item.Tag, op)
		}
	}
	if len(kids) > 2 {
		return errors.New("line %d: %v has %d children", value.Line, op, len(kids))
	}
	if len(kids) > 0 {
		res.L = kids[0]
	}
	if len(kids) > 1 {
		res.R = kids[1]
	}

	*n = res
	return nil
}

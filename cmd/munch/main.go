package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"
	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/raymyers/munch/pkg/asm"
	"github.com/raymyers/munch/pkg/asmgen"
	"github.com/raymyers/munch/pkg/ir"
	"github.com/raymyers/munch/pkg/x86"
	"github.com/raymyers/munch/pkg/x86sim"
)

var version = "0.1.0"

// Debug flags for dumping intermediate representations
var (
	dIR   bool
	dTile bool
)

// Output and execution options
var (
	outputFile string
	runFunc    string
	runArgs    []int
	globalInit []string
	verbosity  string
)

func main() {
	atexit.Exit(run())
}

func run() int {
	rootCmd := newRootCmd(os.Stdout, os.Stderr)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "munch: %v\n", err)
		return 1
	}
	return 0
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "munch [file.yaml]",
		Short: "munch translates tree IR to i386 assembly",
		Long: `munch is a tiling code generator for 32-bit x86. It reads
functions of tree IR in YAML form, selects instructions by maximal
munch, allocates registers with spilling, and prints AT&T assembly.`,
		Version:       version,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if verbosity != "" {
				tlog.SetVerbosity(verbosity)
			}

			if len(args) == 0 {
				return cmd.Help()
			}
			filename := args[0]

			prog, err := loadFile(filename)
			if err != nil {
				return err
			}

			if dIR {
				ir.NewPrinter(out).PrintProgram(prog)
				return nil
			}

			var dump io.Writer
			if dTile {
				dump = errOut
			}
			asmProg, err := asmgen.TransformProgram(prog, dump)
			if err != nil {
				return errors.Wrap(err, "%v", filename)
			}

			if runFunc != "" {
				return doRun(asmProg, out)
			}

			return writeAsm(asmProg, filename, out)
		},
	}
	rootCmd.SetOut(out)
	rootCmd.SetErr(errOut)

	// Add debug flags
	rootCmd.Flags().BoolVar(&dIR, "dir", false, "Dump the parsed IR and stop")
	rootCmd.Flags().BoolVar(&dTile, "dtile", false, "Dump labeled tile trees to stderr")

	rootCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Write assembly to file (- for stdout)")
	rootCmd.Flags().StringVar(&runFunc, "run", "", "Execute FUNC in the reference evaluator")
	rootCmd.Flags().IntSliceVar(&runArgs, "arg", nil, "Integer arguments for --run")
	rootCmd.Flags().StringArrayVar(&globalInit, "global", nil, "Initialize a global word (NAME=VALUE) for --run")
	rootCmd.Flags().StringVarP(&verbosity, "verbose", "v", "", "Enable trace topics (spill,regalloc,tile,codegen,x86sim)")

	return rootCmd
}

func loadFile(filename string) (*ir.Program, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.Wrap(err, "read")
	}
	prog, err := ir.LoadProgram(data)
	if err != nil {
		return nil, errors.Wrap(err, "%v", filename)
	}
	return prog, nil
}

func writeAsm(prog *asm.Program, filename string, out io.Writer) error {
	name := outputFile
	if name == "" {
		name = asmOutputFilename(filename)
	}
	if name == "-" {
		asm.NewPrinter(out).PrintProgram(prog)
		return nil
	}

	f, err := os.Create(name)
	if err != nil {
		return errors.Wrap(err, "create %v", name)
	}
	atexit.Register(func() { f.Close() })

	asm.NewPrinter(f).PrintProgram(prog)

	return f.Close()
}

func doRun(prog *asm.Program, out io.Writer) error {
	m, err := x86sim.New(prog)
	if err != nil {
		return err
	}

	for _, g := range globalInit {
		name, val, ok := strings.Cut(g, "=")
		if !ok {
			return errors.New("--global %q: want NAME=VALUE", g)
		}
		if v, err := strconv.ParseInt(val, 0, 32); err == nil {
			m.SetGlobal(name, int32(v))
			continue
		}
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return errors.New("--global %q: bad value", g)
		}
		m.SetGlobalFloat(name, f)
	}

	args := make([]int32, len(runArgs))
	for i, a := range runArgs {
		args[i] = int32(a)
	}

	if err := m.Call(runFunc, args...); err != nil {
		return err
	}

	fmt.Fprintf(out, "eax = %d\n", m.Reg(x86.EAX))
	if m.FPUDepth() > 0 {
		st0, _ := m.ST(0)
		fmt.Fprintf(out, "st0 = %v\n", st0)
	}
	return nil
}

// asmOutputFilename returns the default output filename: input.yaml -> input.s
func asmOutputFilename(filename string) string {
	for _, ext := range []string{".yaml", ".yml"} {
		if strings.HasSuffix(filename, ext) {
			return filename[:len(filename)-len(ext)] + ".s"
		}
	}
	return filename + ".s"
}

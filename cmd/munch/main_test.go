package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sumProgram = `
functions:
  - name: sum
    frame: 8
    argpop: 4
    body:
      - [MOVE, [CONST, 0], [MEM, [LOCAL, 4]]]
      - [MOVE, [CONST, 1], [MEM, [LOCAL, 8]]]
      - label: top
      - [JUMPT, [SETGT, [MEM, [LOCAL, 8]], [MEM, [ARG, 0]]], done]
      - [MOVE, [ADD, [MEM, [LOCAL, 4]], [MEM, [LOCAL, 8]]], [MEM, [LOCAL, 4]]]
      - [MOVE, [ADD, [MEM, [LOCAL, 8]], [CONST, 1]], [MEM, [LOCAL, 8]]]
      - [JUMP, top]
      - label: done
      - [RETURN, [MEM, [LOCAL, 4]]]
`

func resetFlags() {
	dIR = false
	dTile = false
	outputFile = ""
	runFunc = ""
	runArgs = nil
	globalInit = nil
	verbosity = ""
}

func writeInput(t *testing.T, content string) string {
	t.Helper()
	testFile := filepath.Join(t.TempDir(), "test.yaml")
	if err := os.WriteFile(testFile, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}
	return testFile
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	resetFlags()

	var out, errOut bytes.Buffer
	cmd := newRootCmd(&out, &errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestVersion(t *testing.T) {
	if version == "" {
		t.Error("version should not be empty")
	}
}

func TestFlagsExist(t *testing.T) {
	var out, errOut bytes.Buffer
	cmd := newRootCmd(&out, &errOut)

	expectedFlags := []string{"dir", "dtile", "output", "run", "arg", "global", "verbose"}
	for _, flagName := range expectedFlags {
		if cmd.Flags().Lookup(flagName) == nil {
			t.Errorf("expected flag --%s to exist", flagName)
		}
	}
}

func TestAsmOutputFilename(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"test.yaml", "test.s"},
		{"path/to/file.yml", "path/to/file.s"},
		{"noext", "noext.s"},
	}

	for _, tt := range tests {
		got := asmOutputFilename(tt.input)
		if got != tt.want {
			t.Errorf("asmOutputFilename(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestNoArgsShowsHelp(t *testing.T) {
	out, _, err := execute(t)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !strings.Contains(out, "Usage:") {
		t.Errorf("expected usage text, got %q", out)
	}
}

func TestDIRFlag(t *testing.T) {
	testFile := writeInput(t, sumProgram)

	out, _, err := execute(t, "--dir", testFile)
	if err != nil {
		t.Fatalf("expected no error for --dir, got %v", err)
	}

	for _, want := range []string{"sum(frame 8, argpop 4) {", "top:", "(JUMP top)"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q, got %q", want, out)
		}
	}
	if strings.Contains(out, "movl") {
		t.Errorf("--dir should stop before code generation, got %q", out)
	}
}

func TestDTileFlag(t *testing.T) {
	testFile := writeInput(t, sumProgram)

	out, errOut, err := execute(t, "--dtile", "-o", "-", testFile)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if errOut == "" {
		t.Error("expected tile dump on stderr")
	}
	if !strings.Contains(out, "sum:") {
		t.Errorf("expected assembly on stdout, got %q", out)
	}
}

func TestOutputStdout(t *testing.T) {
	testFile := writeInput(t, sumProgram)

	out, _, err := execute(t, "-o", "-", testFile)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	for _, want := range []string{
		"\t.globl\tsum\n",
		"\tpushl\t%ebp\n",
		"\tsubl\t$8, %esp\n",
		"sum$exit:\n",
		"\tret\t$4\n",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q, got:\n%s", want, out)
		}
	}
}

func TestOutputDefaultFile(t *testing.T) {
	testFile := writeInput(t, sumProgram)

	if _, _, err := execute(t, testFile); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	outFile := strings.TrimSuffix(testFile, ".yaml") + ".s"
	data, err := os.ReadFile(outFile)
	if err != nil {
		t.Fatalf("expected output file %s: %v", outFile, err)
	}
	if !strings.Contains(string(data), "sum:") {
		t.Errorf("unexpected output file contents:\n%s", data)
	}
}

func TestOutputNamedFile(t *testing.T) {
	testFile := writeInput(t, sumProgram)
	outFile := filepath.Join(t.TempDir(), "out.s")

	if _, _, err := execute(t, "-o", outFile, testFile); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if _, err := os.Stat(outFile); err != nil {
		t.Errorf("expected output file %s to be created: %v", outFile, err)
	}
}

func TestRunFlag(t *testing.T) {
	testFile := writeInput(t, sumProgram)

	out, _, err := execute(t, "--run", "sum", "--arg", "10", testFile)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !strings.Contains(out, "eax = 55\n") {
		t.Errorf("expected eax = 55, got %q", out)
	}
}

func TestRunWithGlobals(t *testing.T) {
	testFile := writeInput(t, `
functions:
  - name: f
    body:
      - [RETURN, [MUL, [MEM, [GLOBAL, a]], [ADD, [MEM, [GLOBAL, b]], [CONST, 1]]]]
  - name: half
    body:
      - [FRETURN, [FDIV, [MEM, [GLOBAL, x]], [MEM, [GLOBAL, two]]]]
`)

	out, _, err := execute(t, "--run", "f", "--global", "a=6", "--global", "b=0x6", testFile)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !strings.Contains(out, "eax = 42\n") {
		t.Errorf("expected eax = 42, got %q", out)
	}

	out, _, err = execute(t, "--run", "half", "--global", "x=7.5", "--global", "two=2.0", testFile)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !strings.Contains(out, "st0 = 3.75\n") {
		t.Errorf("expected st0 = 3.75, got %q", out)
	}
}

func TestRunBadGlobal(t *testing.T) {
	testFile := writeInput(t, sumProgram)

	for _, g := range []string{"novalue", "x=abc"} {
		_, _, err := execute(t, "--run", "sum", "--global", g, testFile)
		if err == nil {
			t.Errorf("expected error for --global %q", g)
		}
	}
}

func TestRunUnknownFunction(t *testing.T) {
	testFile := writeInput(t, sumProgram)

	_, _, err := execute(t, "--run", "nope", testFile)
	if err == nil || !strings.Contains(err.Error(), "nope") {
		t.Errorf("expected error naming the function, got %v", err)
	}
}

func TestFileNotFound(t *testing.T) {
	_, _, err := execute(t, "nonexistent.yaml")
	if err == nil {
		t.Error("expected error for nonexistent file, got nil")
	}
}

func TestBadYAML(t *testing.T) {
	testFile := writeInput(t, "functions:\n  - name: f\n    body:\n      - [BOGUS, 1]\n")

	_, _, err := execute(t, testFile)
	if err == nil {
		t.Fatal("expected error for unknown opcode, got nil")
	}
	if !strings.Contains(err.Error(), "BOGUS") {
		t.Errorf("expected error to name the opcode, got %v", err)
	}
}

func TestUntileableTree(t *testing.T) {
	testFile := writeInput(t, "functions:\n  - name: broken\n    body:\n      - [RETURN, [MOVE, [CONST, 1], [MEM, [GLOBAL, a]]]]\n")

	_, _, err := execute(t, "-o", "-", testFile)
	if err == nil {
		t.Fatal("expected error for a tree with no tile, got nil")
	}
	if !strings.Contains(err.Error(), "broken") {
		t.Errorf("expected error to name the function, got %v", err)
	}
}

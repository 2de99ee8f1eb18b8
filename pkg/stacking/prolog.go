package stacking

import (
	"fmt"

	"github.com/raymyers/munch/pkg/x86"
)

// Prologue returns the instructions that save the callee-saved registers,
// set up the frame pointer and reserve the frame.
//
//	pushl %ebp
//	pushl %ebx
//	pushl %esi
//	pushl %edi
//	movl %esp, %ebp
//	subl $N, %esp
func (f *Frame) Prologue() []string {
	code := make([]string, 0, len(x86.CalleeSaved)+2)
	for _, r := range x86.CalleeSaved {
		code = append(code, "pushl "+r)
	}
	code = append(code, "movl %esp, %ebp")
	if n := f.Size(); n > 0 {
		code = append(code, fmt.Sprintf("subl $%d, %%esp", n))
	}
	return code
}

// Epilogue returns the instructions that discard the frame, restore the
// callee-saved registers and return, popping argPop bytes of arguments.
func (f *Frame) Epilogue(argPop int64) []string {
	code := make([]string, 0, len(x86.CalleeSaved)+2)
	code = append(code, "movl %ebp, %esp")
	for i := len(x86.CalleeSaved) - 1; i >= 0; i-- {
		code = append(code, "popl "+x86.CalleeSaved[i])
	}
	if argPop > 0 {
		code = append(code, fmt.Sprintf("ret $%d", argPop))
	} else {
		code = append(code, "ret")
	}
	return code
}

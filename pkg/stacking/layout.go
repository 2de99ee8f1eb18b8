// Package stacking lays out activation records: the locals declared by the
// front end, the spill slots handed out during allocation, and the
// prologue and epilogue that build and tear down the frame.
package stacking

import "github.com/raymyers/munch/pkg/x86"

// i386 frame layout (called function's view):
//
//	+---------------------------+
//	| Incoming arguments        |  +20 from FP
//	| Return address            |  +16
//	| Saved %ebp                |  +12
//	| Saved %ebx                |  +8
//	| Saved %esi                |  +4
//	| Saved %edi                |  <- FP points here
//	+---------------------------+
//	| Local variables           |  -1 .. -LocalSize
//	| Spill slots               |  -LocalSize-4 downwards
//	+---------------------------+  <- SP after the prologue
//	| Outgoing arguments        |  reserved per call, popped by the callee
//	+---------------------------+

// Frame tracks one function's frame while its body is generated. Spill
// slots are allocated and released in stack order; the frame size is the
// deepest point ever reached.
type Frame struct {
	// LocalSize is the size of the declared locals, rounded to a word.
	LocalSize int64

	depth int64
	high  int64
}

// NewFrame returns a frame holding localSize bytes of locals.
func NewFrame(localSize int64) *Frame {
	size := alignUp(localSize, x86.WordSize)
	return &Frame{LocalSize: size, depth: size, high: size}
}

// Push allocates a spill slot and returns k such that the slot is -k(%ebp).
func (f *Frame) Push() int64 {
	f.depth += x86.WordSize
	f.high = max(f.high, f.depth)
	return f.depth
}

// Pop releases the most recently pushed slot.
func (f *Frame) Pop() {
	if f.depth-x86.WordSize < f.LocalSize {
		panic("stacking: pop of an empty spill stack")
	}
	f.depth -= x86.WordSize
}

// Depth returns the current spill depth below the frame pointer.
func (f *Frame) Depth() int64 { return f.depth }

// Size returns the frame size the prologue must reserve.
func (f *Frame) Size() int64 { return f.high }

// alignUp rounds n up to the nearest multiple of align
func alignUp(n, align int64) int64 {
	return (n + align - 1) / align * align
}

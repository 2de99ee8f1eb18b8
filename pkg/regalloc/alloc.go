// Package regalloc assigns physical registers to a labeled tile tree
// while emitting its instructions. Allocation is local to one tree: every
// value dies at its single use, so the allocator walks the tree in
// Sethi-Ullman order and spills only when a tile's register demands
// collide with live values or the tree needs more than the machine has.
package regalloc

import (
	"fmt"
	"strings"

	"tlog.app/go/tlog"

	"github.com/raymyers/munch/pkg/tile"
	"github.com/raymyers/munch/pkg/x86"
)

// Slots hands out spill slots. Push returns the frame offset k of a new
// slot addressed as -k(%ebp); Pop releases the most recent one.
type Slots interface {
	Push() int64
	Pop()
}

// Error is an internal allocator inconsistency.
type Error struct {
	Msg  string
	Tile *tile.Tile
	Used x86.RegSet
}

func (e *Error) Error() string {
	return fmt.Sprintf("regalloc: %s (tile %q, used %v)", e.Msg, e.Tile.Text, e.Used)
}

// Allocator emits code for tile trees. It keeps the set of occupied
// registers between trees so callers can reserve registers that must
// survive, such as a return value in %eax.
type Allocator struct {
	slots Slots
	used  x86.RegSet
	code  []string

	fpu int // values on the FPU stack
}

type spill struct {
	reg  x86.Reg
	slot int64
}

// New returns an allocator taking spill slots from slots.
func New(slots Slots) *Allocator {
	return &Allocator{slots: slots}
}

// Reserve marks r occupied.
func (a *Allocator) Reserve(r x86.Reg) { a.used = a.used.Add(r) }

// Release marks r free.
func (a *Allocator) Release(r x86.Reg) { a.used = a.used.Remove(r) }

// Used returns the occupied registers.
func (a *Allocator) Used() x86.RegSet { return a.used }

// Lines returns the instructions emitted since the last call and clears
// the buffer.
func (a *Allocator) Lines() []string {
	code := a.code
	a.code = nil
	return code
}

// Emit labels t and emits its code. An integer result stays occupied in
// the returned register until released; other kinds return x86.None.
func (a *Allocator) Emit(t *tile.Tile) (res x86.Reg, err error) {
	defer func() {
		p := recover()
		if p == nil {
			return
		}
		if e, ok := p.(*Error); ok {
			res, err = x86.None, e
			return
		}
		panic(p)
	}()

	tile.Label(t)
	a.fpu = 0
	return a.eval(t, x86.None), nil
}

func (a *Allocator) eval(t *tile.Tile, want x86.Reg) x86.Reg {
	base := a.fpu
	var saved []spill
	hints := x86.RegSet(0)
	if t.WantL.Valid() {
		hints = hints.Add(t.WantL)
	}
	if t.WantR.Valid() {
		hints = hints.Add(t.WantR)
	}
	for _, r := range t.Clobber.Union(hints).Slice() {
		if a.used.Has(r) {
			saved = append(saved, a.spill(r))
		}
	}

	var fsaved []int64
	if t.Call {
		for a.fpu > 0 {
			fsaved = append(fsaved, a.spillFPU())
		}
	}

	if t.ArgBytes > 0 {
		a.emit(fmt.Sprintf("subl $%d, %%esp", t.ArgBytes))
	}

	// Preference for the register the value of L flows into.
	prefL := t.WantL
	if !prefL.Valid() && t.Kind == tile.Int {
		prefL = want
	}

	l, r := x86.None, x86.None
	text := t.Text
	switch t.NumKids() {
	case 1:
		l = a.eval(t.L, prefL)
	case 2:
		switch {
		case !t.Ordered && t.L.Need() >= x86.NumRegs && t.R.Need() >= x86.NumRegs && t.R.Kind == tile.Int:
			// Both sides need every register: park R in memory while L runs.
			s := a.spill(a.eval(t.R, x86.None))
			l = a.eval(t.L, prefL)
			r = a.alloc(t, t.WantR)
			a.emit(fmt.Sprintf("movl %s, %s", x86.Local(s.slot), r))
			a.slots.Pop()
		case !t.Ordered && t.L.Kind == tile.Float && t.R.Kind == tile.Float &&
			t.L.Need() >= x86.NumFPU && t.R.Need() >= x86.NumFPU:
			// Both sides fill the FPU stack: park R in memory while L
			// runs, then reload it on top as if L had gone first.
			a.eval(t.R, x86.None)
			k := a.spillFPU()
			a.eval(t.L, x86.None)
			a.reloadFPU(t, k)
		case t.Ordered || t.L.Need() >= t.R.Need():
			l = a.eval(t.L, prefL)
			r = a.eval(t.R, a.ifFree(t.WantR))
		default:
			r = a.eval(t.R, t.WantR)
			l = a.eval(t.L, a.ifFree(prefL))
			if t.Alt != "" {
				text = t.Alt
			}
		}
	}

	if t.Kind == tile.Int && (t.L == nil || t.L.Kind != tile.Int) {
		// The result is produced by the template itself and may reuse
		// the register of a consumed R.
		pref := prefL
		if r.Valid() {
			a.Release(r)
			if !pref.Valid() {
				pref = r
			}
		}
		l = a.alloc(t, pref)
		if r.Valid() && r != l {
			a.Reserve(r)
		}
	}

	l, r = a.reconcile(t, l, r)
	a.emitTemplate(text, l, r)

	a.fpu = base - len(fsaved)
	if t.Kind == tile.Float {
		a.pushFPU(t)
	}
	if len(fsaved) > 0 {
		a.restoreFPU(t, fsaved)
	}

	res := x86.None
	if t.Kind == tile.Int {
		res = l
	} else if l.Valid() {
		a.Release(l)
	}
	if r.Valid() && r != res {
		a.Release(r)
	}

	if res.Valid() {
		res = a.relocate(t, res, want, saved)
	}
	for i := len(saved) - 1; i >= 0; i-- {
		s := saved[i]
		a.emit(fmt.Sprintf("movl %s, %s", x86.Local(s.slot), s.reg))
		a.Reserve(s.reg)
		a.slots.Pop()
	}
	return res
}

// reconcile moves operands into the registers the tile demands.
func (a *Allocator) reconcile(t *tile.Tile, l, r x86.Reg) (x86.Reg, x86.Reg) {
	wl, wr := t.WantL, t.WantR
	if l.Valid() && r.Valid() && l != r &&
		(wl.Valid() && r == wl || wr.Valid() && l == wr) {
		a.emit(fmt.Sprintf("xchgl %s, %s", l, r))
		l, r = r, l
	}
	if wl.Valid() && l.Valid() && l != wl {
		l = a.move(t, l, wl)
	}
	if wr.Valid() && r.Valid() && r != wr {
		r = a.move(t, r, wr)
	}
	return l, r
}

// relocate moves a result out of a register about to be restored, and
// into the parent's preferred register when that one is free.
func (a *Allocator) relocate(t *tile.Tile, res, want x86.Reg, saved []spill) x86.Reg {
	var restored x86.RegSet
	for _, s := range saved {
		restored = restored.Add(s.reg)
	}
	if restored.Has(res) {
		to := x86.None
		if want.Valid() && !a.used.Has(want) && !restored.Has(want) {
			to = want
		} else {
			for _, r := range x86.Regs {
				if !a.used.Has(r) && !restored.Has(r) {
					to = r
					break
				}
			}
		}
		if !to.Valid() {
			panic(&Error{Msg: "no register to keep result across restore", Tile: t, Used: a.used})
		}
		res = a.move(t, res, to)
	}
	if want.Valid() && res != want && !a.used.Has(want) && !restored.Has(want) {
		res = a.move(t, res, want)
	}
	return res
}

func (a *Allocator) move(t *tile.Tile, from, to x86.Reg) x86.Reg {
	if a.used.Has(to) {
		panic(&Error{Msg: fmt.Sprintf("move %v to occupied %v", from, to), Tile: t, Used: a.used})
	}
	a.emit(fmt.Sprintf("movl %s, %s", from, to))
	a.Release(from)
	a.Reserve(to)
	return to
}

func (a *Allocator) alloc(t *tile.Tile, pref x86.Reg) x86.Reg {
	reg := x86.None
	if pref.Valid() && !a.used.Has(pref) {
		reg = pref
	} else {
		for _, r := range x86.Regs {
			if !a.used.Has(r) {
				reg = r
				break
			}
		}
	}

	if tlog.If("regalloc") {
		tlog.Printw("choose reg", "reg", reg, "used", a.used, "wanted", pref, "tile", t.Text)
	}

	if !reg.Valid() {
		panic(&Error{Msg: "out of registers", Tile: t, Used: a.used})
	}
	a.Reserve(reg)
	return reg
}

func (a *Allocator) ifFree(r x86.Reg) x86.Reg {
	if r.Valid() && !a.used.Has(r) {
		return r
	}
	return x86.None
}

func (a *Allocator) spill(r x86.Reg) spill {
	k := a.slots.Push()
	a.emit(fmt.Sprintf("movl %s, %s", r, x86.Local(k)))
	a.Release(r)

	if tlog.If("spill") {
		tlog.Printw("spill", "reg", r, "slot", k, "used", a.used)
	}

	return spill{reg: r, slot: k}
}

// pushFPU accounts for a value pushed on the FPU stack.
func (a *Allocator) pushFPU(t *tile.Tile) {
	a.fpu++
	if a.fpu > x86.NumFPU {
		panic(&Error{Msg: "fpu stack overflow", Tile: t, Used: a.used})
	}
}

// spillFPU pops st(0) into a fresh 8-byte slot and returns its offset.
func (a *Allocator) spillFPU() int64 {
	a.slots.Push()
	k := a.slots.Push()
	a.emit("fstpl " + x86.Local(k))
	a.fpu--

	if tlog.If("spill") {
		tlog.Printw("spill st0", "slot", k, "fpu", a.fpu)
	}

	return k
}

// reloadFPU pushes the double at slot k and releases the slot.
func (a *Allocator) reloadFPU(t *tile.Tile, k int64) {
	a.emit("fldl " + x86.Local(k))
	a.pushFPU(t)
	a.slots.Pop()
	a.slots.Pop()
}

// restoreFPU reloads values saved around a call below the call's own
// result, deepest first.
func (a *Allocator) restoreFPU(t *tile.Tile, fsaved []int64) {
	var res int64
	if t.Kind == tile.Float {
		res = a.spillFPU()
	}
	for i := len(fsaved) - 1; i >= 0; i-- {
		a.emit("fldl " + x86.Local(fsaved[i]))
		a.pushFPU(t)
	}
	if t.Kind == tile.Float {
		a.reloadFPU(t, res)
	}
	for range fsaved {
		a.slots.Pop()
		a.slots.Pop()
	}
}

func (a *Allocator) emitTemplate(text string, l, r x86.Reg) {
	if text == "" {
		return
	}
	if l.Valid() {
		text = strings.ReplaceAll(text, "%l", l.String())
	}
	if r.Valid() {
		text = strings.ReplaceAll(text, "%r", r.String())
	}
	for _, line := range strings.Split(text, "\n") {
		a.emit(line)
	}
}

func (a *Allocator) emit(line string) {
	a.code = append(a.code, line)
}

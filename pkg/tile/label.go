package tile

// Label computes the register need of every tile in the tree and returns
// the need of the root.
//
// A leaf needs one register. A tile with one child needs what the child
// needs. With two children the need is the larger of the two when they
// differ; when they are equal one extra register holds the first result
// while the second is computed.
func Label(t *Tile) int {
	switch {
	case t.L == nil:
		t.need = 1
	case t.R == nil:
		t.need = Label(t.L)
	default:
		l, r := Label(t.L), Label(t.R)
		if l != r {
			t.need = max(l, r)
		} else {
			t.need = l + 1
		}
	}
	return t.need
}

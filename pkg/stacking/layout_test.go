package stacking

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAlignUp(t *testing.T) {
	tests := []struct {
		n, align, want int64
	}{
		{0, 4, 0},
		{1, 4, 4},
		{4, 4, 4},
		{5, 4, 8},
		{13, 8, 16},
	}
	for _, tt := range tests {
		if got := alignUp(tt.n, tt.align); got != tt.want {
			t.Errorf("alignUp(%d, %d) = %d, want %d", tt.n, tt.align, got, tt.want)
		}
	}
}

func TestNewFrame(t *testing.T) {
	f := NewFrame(6)
	require.Equal(t, int64(8), f.LocalSize)
	require.Equal(t, int64(8), f.Depth())
	require.Equal(t, int64(8), f.Size())
}

func TestSpillSlots(t *testing.T) {
	f := NewFrame(8)

	require.Equal(t, int64(12), f.Push())
	require.Equal(t, int64(16), f.Push())
	f.Pop()
	require.Equal(t, int64(12), f.Depth())
	// a released slot is handed out again
	require.Equal(t, int64(16), f.Push())
	f.Pop()
	f.Pop()

	require.Equal(t, int64(8), f.Depth())
	require.Equal(t, int64(16), f.Size(), "size is the high-water mark")
}

func TestPopEmpty(t *testing.T) {
	f := NewFrame(4)
	require.Panics(t, f.Pop)

	f.Push()
	f.Pop()
	require.Panics(t, f.Pop)
}

package joypad

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSelectNibbleAndRead(t *testing.T) {
	irqs := 0
	j := New(func() { irqs++ })
	j.Write(0x20) // select d-pad
	j.Press(Down)
	require.Equal(t, 1, irqs)
	v := j.Read()
	require.Equal(t, byte(0), v&(1<<3), "Down bit should read 0 (pressed)")
	require.NotEqual(t, byte(0), v&(1<<2), "Up should read 1 (not pressed)")
}

func TestEdgeTriggeredInterruptOnlyOnHighToLow(t *testing.T) {
	irqs := 0
	j := New(func() { irqs++ })
	j.Write(0x10) // select buttons
	j.Press(A)
	require.Equal(t, 1, irqs)
	j.Press(A) // already pressed, no new edge
	require.Equal(t, 1, irqs)
	j.Release(A)
	j.Press(A)
	require.Equal(t, 2, irqs)
}

func TestNoSelectionReadsAllHigh(t *testing.T) {
	j := New(func() {})
	j.Write(0x30)
	require.Equal(t, byte(0xFF), j.Read())
}

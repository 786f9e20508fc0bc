package interrupt

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPriorityOrder(t *testing.T) {
	c := New()
	c.WriteIE(0x1F)
	c.Request(Joypad)
	c.Request(Timer)
	c.Request(VBlank)

	bit, ok := c.Highest()
	require.True(t, ok)
	require.Equal(t, VBlank, bit)

	c.Ack(VBlank)
	bit, ok = c.Highest()
	require.True(t, ok)
	require.Equal(t, Timer, bit)
}

func TestDisabledSourceNotPending(t *testing.T) {
	c := New()
	c.WriteIE(0)
	c.Request(VBlank)
	require.False(t, c.Pending())
}

func TestUpperBitsReadAsOne(t *testing.T) {
	c := New()
	require.Equal(t, byte(0xE0), c.ReadIF())
	require.Equal(t, byte(0xE0), c.ReadIE())
}

func TestVectorTable(t *testing.T) {
	require.Equal(t, uint16(0x40), Vector[VBlank])
	require.Equal(t, uint16(0x60), Vector[Joypad])
}

package timer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func newTimer() (*Timer, *int) {
	count := 0
	return New(func() { count++ }), &count
}

func TestTIMAIncrementsOnSelectedBitFallingEdge(t *testing.T) {
	tm, _ := newTimer()
	tm.WriteTAC(0x05) // enable, select bit 1 (every 4 M-cycles)
	for i := 0; i < 4; i++ {
		tm.Tick()
	}
	require.Equal(t, byte(1), tm.ReadTIMA())
}

func TestTIMAOverflowDelaysThenReloads(t *testing.T) {
	tm, irqs := newTimer()
	tm.WriteTAC(0x05)
	tm.WriteTMA(0x7F)
	tm.tima = 0xFF
	for i := 0; i < 4; i++ {
		tm.Tick()
	}
	require.Equal(t, byte(0), tm.ReadTIMA(), "overflow cycle reads 0 before reload")
	require.Equal(t, 0, *irqs)

	tm.Tick()
	require.Equal(t, byte(0x7F), tm.ReadTIMA())
	require.Equal(t, 1, *irqs)
}

func TestDIVWriteResetsCounterAndCanGlitch(t *testing.T) {
	tm, irqs := newTimer()
	tm.WriteTAC(0x04) // enable, select bit 7 (slowest)
	for i := 0; i < 200; i++ {
		tm.Tick()
	}
	before := tm.selectedLine()
	tm.WriteDIV()
	require.Equal(t, byte(0), tm.ReadDIV())
	if before {
		require.Equal(t, byte(1), tm.ReadTIMA())
		require.Equal(t, 0, *irqs)
	}
}

func TestDisabledTimerDoesNotIncrement(t *testing.T) {
	tm, _ := newTimer()
	tm.WriteTAC(0x01) // not enabled (bit 2 clear)
	for i := 0; i < 1000; i++ {
		tm.Tick()
	}
	require.Equal(t, byte(0), tm.ReadTIMA())
}

func TestTACWriteGlitchOnDisableWhileLineHigh(t *testing.T) {
	tm, _ := newTimer()
	tm.WriteTAC(0x05) // enable, bit 1
	tm.Tick()
	tm.Tick()
	require.True(t, tm.selectedLine())
	tm.WriteTAC(0x00) // disable: falling edge
	require.Equal(t, byte(1), tm.ReadTIMA())
}

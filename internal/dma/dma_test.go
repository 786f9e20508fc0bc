package dma

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCopiesExactly160BytesOverExactly160Ticks(t *testing.T) {
	src := make([]byte, 0x100)
	for i := range src {
		src[i] = byte(i)
	}
	dst := make([]byte, 0xA0)

	d := New(
		func(addr uint16) byte { return src[addr&0xFF] },
		func(addr uint16, v byte) { dst[addr-0xFE00] = v },
	)
	d.Start(0xC0)
	require.True(t, d.Active())
	for i := 0; i < 160; i++ {
		require.True(t, d.Active())
		d.Tick()
	}
	require.False(t, d.Active())
	for i := 0; i < 0xA0; i++ {
		require.Equal(t, byte(i), dst[i])
	}
}

func TestIdleWhenNotStarted(t *testing.T) {
	calls := 0
	d := New(func(uint16) byte { calls++; return 0 }, func(uint16, byte) {})
	d.Tick()
	require.Equal(t, 0, calls)
}

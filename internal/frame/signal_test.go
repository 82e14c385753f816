package frame

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSignalEmitOrderAndDisconnect(t *testing.T) {
	var sig Signal[int]
	var got []string

	a := sig.Connect(func(int) { got = append(got, "a") })
	sig.Connect(func(int) { got = append(got, "b") })

	sig.Emit(1)
	require.True(t, sig.Disconnect(a))
	require.False(t, sig.Disconnect(a))
	sig.Emit(2)

	require.Equal(t, []string{"a", "b", "b"}, got)
}

func TestSignalMutationDuringEmit(t *testing.T) {
	var sig Signal[int]
	var got []string
	var b Connection

	sig.Connect(func(int) {
		got = append(got, "a")
		sig.Disconnect(b)
		sig.Connect(func(int) { got = append(got, "late") })
	})
	b = sig.Connect(func(int) { got = append(got, "b") })

	sig.Emit(0)
	require.Equal(t, []string{"a"}, got)
	require.Equal(t, 2, sig.Len())
}

func TestSignalDisconnectAllDuringEmit(t *testing.T) {
	var sig Signal[string]
	n := 0
	sig.Connect(func(string) { n++; sig.DisconnectAll() })
	sig.Connect(func(string) { n++ })

	sig.Emit("x")
	sig.Emit("y")
	require.Equal(t, 1, n)
}

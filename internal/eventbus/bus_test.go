package eventbus

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBusPrefixFilter(t *testing.T) {
	bus := New()
	all, unsubAll := bus.Subscribe(4)
	defer unsubAll()
	reg, unsubReg := bus.Subscribe(4, "registry.")
	defer unsubReg()

	bus.Publish(Event{Type: "registry.added"})
	bus.Publish(Event{Type: "devtools.fps_low"})

	require.Len(t, all, 2)
	require.Len(t, reg, 1)
	e := <-reg
	require.Equal(t, "registry.added", e.Type)
	require.False(t, e.Time.IsZero())
}

func TestBusDropsWhenFullAndSurvivesUnsubscribe(t *testing.T) {
	bus := New()
	ch, unsub := bus.Subscribe(1)
	bus.Publish(Event{Type: "a"})
	bus.Publish(Event{Type: "b"})
	require.Len(t, ch, 1)

	unsub()
	unsub()
	bus.Publish(Event{Type: "c"})

	var got []string
	for e := range ch {
		got = append(got, e.Type)
	}
	require.Equal(t, []string{"a"}, got)
}

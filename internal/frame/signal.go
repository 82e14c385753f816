package frame

// Connection identifies one subscriber of a Signal.
type Connection uint64

type slot[T any] struct {
	id   Connection
	fn   func(T)
	gone bool
}

// Signal is an ordered list of subscriber closures.
//
// Emit walks a snapshot of the list: subscribers connected during an emission
// wait for the next one, subscribers disconnected during an emission are
// skipped if they have not run yet.
type Signal[T any] struct {
	seq   Connection
	slots []*slot[T]
}

func (s *Signal[T]) Connect(fn func(T)) Connection {
	s.seq++
	s.slots = append(s.slots, &slot[T]{id: s.seq, fn: fn})
	return s.seq
}

// Disconnect removes the subscriber; it reports false if c was not connected.
func (s *Signal[T]) Disconnect(c Connection) bool {
	for i, sl := range s.slots {
		if sl.id == c {
			sl.gone = true
			s.slots = append(s.slots[:i:i], s.slots[i+1:]...)
			return true
		}
	}
	return false
}

func (s *Signal[T]) DisconnectAll() {
	for _, sl := range s.slots {
		sl.gone = true
	}
	s.slots = nil
}

func (s *Signal[T]) Len() int { return len(s.slots) }

func (s *Signal[T]) Emit(v T) {
	for _, sl := range s.slots {
		if sl.gone {
			continue
		}
		sl.fn(v)
	}
}

package arbor

// FramePhase identifies when a FrameEvent is delivered.
type FramePhase uint8

const (
	FrameStart  FramePhase = iota // before loads are applied and the tree is updated
	FrameUpdate                   // after the tree was updated
	FrameEnd                      // after the frame's operations executed
)

func (p FramePhase) String() string {
	switch p {
	case FrameStart:
		return "start"
	case FrameUpdate:
		return "update"
	case FrameEnd:
		return "end"
	}
	return "unknown"
}

// FrameEvent is delivered to frame listeners three times per frame.
type FrameEvent struct {
	Phase FramePhase
	Frame uint64
	// Dt is the time since the previous frame in seconds.
	Dt float64
}

// FrameListener receives frame events. Listeners run on the render
// goroutine and may mutate the tree.
type FrameListener func(FrameEvent)

type frameListenerEntry struct {
	id uint64
	fn FrameListener
}

// AddFrameListener registers fn and returns a function that removes it.
func (s *Stage) AddFrameListener(fn FrameListener) (remove func()) {
	s.nextListener++
	id := s.nextListener
	s.listeners = append(s.listeners, frameListenerEntry{id: id, fn: fn})
	return func() {
		for i, l := range s.listeners {
			if l.id == id {
				s.listeners = append(s.listeners[:i:i], s.listeners[i+1:]...)
				return
			}
		}
	}
}

func (s *Stage) emit(phase FramePhase, dt float64) {
	if len(s.listeners) == 0 {
		return
	}
	ev := FrameEvent{Phase: phase, Frame: s.frame, Dt: dt}
	// Listeners added or removed during delivery take effect next time.
	ls := s.listeners
	for _, l := range ls {
		l.fn(ev)
	}
}

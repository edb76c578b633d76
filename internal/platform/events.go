package platform

type eventKind int

const (
	eventQuit eventKind = iota
	eventMinimized
	eventRestored
	eventResized
)

// eventState is the part of the window that reacts to events, kept apart
// from SDL so it can be driven directly.
type eventState struct {
	quit          bool
	minimized     bool
	resizePending bool
}

func (s *eventState) apply(kind eventKind, width, height int) {
	switch kind {
	case eventQuit:
		s.quit = true
	case eventMinimized:
		s.minimized = true
		s.resizePending = true
	case eventRestored:
		s.minimized = false
		s.resizePending = true
	case eventResized:
		s.minimized = width == 0 || height == 0
		s.resizePending = true
	}
}

package platform

import "testing"

func TestEventStateResize(t *testing.T) {
	var s eventState

	s.apply(eventResized, 1024, 768)
	if !s.resizePending {
		t.Fatal("resize did not set the pending flag")
	}
	if s.minimized {
		t.Error("nonzero resize marked the window minimized")
	}

	w := &Window{events: s}
	if !w.ConsumeResize() {
		t.Error("ConsumeResize() = false after a resize")
	}
	if w.ConsumeResize() {
		t.Error("ConsumeResize() = true twice for one resize")
	}
}

func TestEventStateMinimizeRestore(t *testing.T) {
	var s eventState

	s.apply(eventMinimized, 0, 0)
	if !s.minimized || !s.resizePending {
		t.Errorf("after minimize: %+v", s)
	}

	s.resizePending = false
	s.apply(eventRestored, 0, 0)
	if s.minimized || !s.resizePending {
		t.Errorf("after restore: %+v", s)
	}

	s.apply(eventResized, 0, 600)
	if !s.minimized {
		t.Error("zero-width resize did not mark the window minimized")
	}
}

func TestEventStateQuit(t *testing.T) {
	w := &Window{}
	if w.ShouldClose() {
		t.Fatal("fresh window reports ShouldClose")
	}

	w.events.apply(eventQuit, 0, 0)
	if !w.ShouldClose() {
		t.Error("ShouldClose() = false after quit")
	}
}

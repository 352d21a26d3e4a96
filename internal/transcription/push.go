package transcription

import "sync"

// Hub is a Source fed over the wire: clients that run recognition
// themselves stream segments in through Push. It doubles as the
// recorder's SourceFactory.
type Hub struct {
	mu     sync.Mutex
	ev     Events
	active bool
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{}
}

// Factory wires the hub into a recorder.
func (h *Hub) Factory() SourceFactory {
	return func(_ string, ev Events) (Source, error) {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.ev = ev
		return h, nil
	}
}

// Start implements Source.
func (h *Hub) Start() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.active = true
	return nil
}

// Stop implements Source.
func (h *Hub) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.active = false
}

// Push delivers a recognition segment. Segments pushed while the hub is
// stopped are dropped.
func (h *Hub) Push(text string, final bool) {
	h.mu.Lock()
	ev := h.ev
	active := h.active
	h.mu.Unlock()
	if !active || ev.OnResult == nil {
		return
	}
	ev.OnResult(text, final)
}

// End signals that the client's recognition stream closed.
func (h *Hub) End() {
	h.mu.Lock()
	ev := h.ev
	active := h.active
	h.mu.Unlock()
	if !active || ev.OnEnd == nil {
		return
	}
	ev.OnEnd()
}

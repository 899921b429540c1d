package core

// Window is the rolling in-memory cache of the most recent messages of a channel,
// ordered by ascending CreatedAt. It grows to softCap and is then trimmed back to
// trimTo in one step, so inserts do not trim on every call.
type Window struct {
	messages []Message
	softCap  int
	trimTo   int
}

// NewWindow creates an empty window. trimTo is clamped to softCap.
func NewWindow(softCap, trimTo int) *Window {
	if softCap <= 0 {
		softCap = 100
	}
	if trimTo <= 0 || trimTo > softCap {
		trimTo = softCap
	}
	return &Window{softCap: softCap, trimTo: trimTo}
}

// Len returns the number of cached messages.
func (w *Window) Len() int {
	return len(w.messages)
}

// Append adds msg at the tail and trims when the soft cap is exceeded.
// Returns the number of evicted messages.
func (w *Window) Append(msg Message) int {
	w.messages = append(w.messages, msg)
	if len(w.messages) <= w.softCap {
		return 0
	}
	evicted := len(w.messages) - w.trimTo
	kept := make([]Message, w.trimTo)
	copy(kept, w.messages[evicted:])
	w.messages = kept
	return evicted
}

// Find returns the index of the message with the given id, or -1.
func (w *Window) Find(id string) int {
	for i := len(w.messages) - 1; i >= 0; i-- {
		if w.messages[i].ID == id {
			return i
		}
	}
	return -1
}

// Get returns a copy of the message at index i.
func (w *Window) Get(i int) Message {
	return w.messages[i].Clone()
}

// Replace stores msg at index i.
func (w *Window) Replace(i int, msg Message) {
	w.messages[i] = msg
}

// Remove splices the message at index i out of the window.
func (w *Window) Remove(i int) {
	w.messages = append(w.messages[:i], w.messages[i+1:]...)
}

// Snapshot returns deep copies of the cached messages in order.
func (w *Window) Snapshot() []Message {
	out := make([]Message, len(w.messages))
	for i, m := range w.messages {
		out[i] = m.Clone()
	}
	return out
}

// Reset replaces the content of the window, keeping at most softCap of the newest messages.
func (w *Window) Reset(messages []Message) {
	if len(messages) > w.softCap {
		messages = messages[len(messages)-w.softCap:]
	}
	w.messages = make([]Message, len(messages))
	copy(w.messages, messages)
}

package core

import "time"

// typingEntry is the armed expiry of a user in the Typing state.
type typingEntry struct {
	timer *time.Timer
	token uint64
}

// TypingTracker is the per-user Idle/Typing state machine of a channel.
// Expiry timers do not mutate the tracker themselves: they call fire, which
// must route the expiry back through the owning actor as a command.
type TypingTracker struct {
	timeout time.Duration
	fire    func(userID string, token uint64)
	entries map[string]typingEntry
	next    uint64
}

// NewTypingTracker creates a tracker whose timers call fire after timeout.
func NewTypingTracker(timeout time.Duration, fire func(userID string, token uint64)) *TypingTracker {
	return &TypingTracker{
		timeout: timeout,
		fire:    fire,
		entries: make(map[string]typingEntry),
	}
}

// Start moves userID from Idle to Typing and arms the expiry timer.
// Returns false if the user was already typing; the timer is not refreshed.
func (t *TypingTracker) Start(userID string) bool {
	if _, ok := t.entries[userID]; ok {
		return false
	}
	t.next++
	token := t.next
	t.entries[userID] = typingEntry{
		timer: time.AfterFunc(t.timeout, func() { t.fire(userID, token) }),
		token: token,
	}
	return true
}

// Stop moves userID back to Idle and cancels its timer.
// Returns false if the user was not typing.
func (t *TypingTracker) Stop(userID string) bool {
	entry, ok := t.entries[userID]
	if !ok {
		return false
	}
	entry.timer.Stop()
	delete(t.entries, userID)
	return true
}

// Expire handles a fired timer. Tokens from timers that were stopped or
// superseded are ignored. Returns true if the user went back to Idle.
func (t *TypingTracker) Expire(userID string, token uint64) bool {
	entry, ok := t.entries[userID]
	if !ok || entry.token != token {
		return false
	}
	delete(t.entries, userID)
	return true
}

// StopAll cancels every timer.
func (t *TypingTracker) StopAll() {
	for userID, entry := range t.entries {
		entry.timer.Stop()
		delete(t.entries, userID)
	}
}

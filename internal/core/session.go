package core

import "sort"

// Conn is the transport handle of one live connection. Send must not block
// for long: implementations queue the payload or fail immediately.
type Conn interface {
	Send(payload []byte) error
	Close() error
}

// Session is a registered connection of one user in a channel.
type Session struct {
	UserID string
	Conn   Conn
}

// SessionRegistry tracks at most one session per user.
// It is owned by a single channel actor and is not safe for concurrent use.
type SessionRegistry struct {
	sessions map[string]*Session
}

// NewSessionRegistry creates an empty registry.
func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{sessions: make(map[string]*Session)}
}

// Register installs conn for userID and returns the previously registered
// connection, if any. The previous connection is not closed here.
func (r *SessionRegistry) Register(userID string, conn Conn) Conn {
	var previous Conn
	if old, ok := r.sessions[userID]; ok {
		previous = old.Conn
	}
	r.sessions[userID] = &Session{UserID: userID, Conn: conn}
	return previous
}

// Unregister removes the session of userID. Returns false if none was registered.
func (r *SessionRegistry) Unregister(userID string) bool {
	if _, ok := r.sessions[userID]; !ok {
		return false
	}
	delete(r.sessions, userID)
	return true
}

// Owns reports whether userID is currently registered with exactly conn.
func (r *SessionRegistry) Owns(userID string, conn Conn) bool {
	s, ok := r.sessions[userID]
	return ok && s.Conn == conn
}

// Get returns the session of userID.
func (r *SessionRegistry) Get(userID string) (*Session, bool) {
	s, ok := r.sessions[userID]
	return s, ok
}

// AllExcept returns the sessions to fan out to, ordered by user ID.
// An empty exclude returns every session.
func (r *SessionRegistry) AllExcept(exclude string) []*Session {
	out := make([]*Session, 0, len(r.sessions))
	for id, s := range r.sessions {
		if exclude != "" && id == exclude {
			continue
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}

// Len returns the number of registered sessions.
func (r *SessionRegistry) Len() int {
	return len(r.sessions)
}

package core

import "context"

// broadcast serializes ev once and delivers it to every session except
// exclude. Sessions that fail are evicted after the fanout, so every peer
// sees ev before any user_left it causes.
func (c *Channel) broadcast(ctx context.Context, ev Event, exclude string) {
	payload, err := EncodeEvent(ev)
	if err != nil {
		c.logger.Error().Err(err).Str("event", ev.Kind.String()).Msg("failed to encode event")
		return
	}
	var failed []*Session
	for _, s := range c.sessions.AllExcept(exclude) {
		if !c.deliver(s, ev.Kind, payload) {
			failed = append(failed, s)
		}
	}
	for _, s := range failed {
		c.evict(ctx, s)
	}
}

// sendToUser delivers ev to a single user. Returns false if the user has no
// session or the delivery failed.
func (c *Channel) sendToUser(ctx context.Context, userID string, ev Event) bool {
	s, ok := c.sessions.Get(userID)
	if !ok {
		return false
	}
	payload, err := EncodeEvent(ev)
	if err != nil {
		c.logger.Error().Err(err).Str("event", ev.Kind.String()).Msg("failed to encode event")
		return false
	}
	if !c.deliver(s, ev.Kind, payload) {
		c.evict(ctx, s)
		return false
	}
	return true
}

func (c *Channel) deliver(s *Session, kind EventKind, payload []byte) bool {
	// A nested fanout may already have evicted it.
	if !c.sessions.Owns(s.UserID, s.Conn) {
		return true
	}
	if err := s.Conn.Send(payload); err != nil {
		c.logger.Debug().Err(err).Str("user_id", s.UserID).Str("event", kind.String()).Msg("delivery failed")
		return false
	}
	c.metrics.EventDelivered(kind.String())
	return true
}

func (c *Channel) evict(ctx context.Context, s *Session) {
	if !c.sessions.Owns(s.UserID, s.Conn) {
		return
	}
	c.logger.Debug().Str("user_id", s.UserID).Msg("evicting session")
	c.metrics.SessionEvicted()
	c.dropSession(ctx, s.UserID, s.Conn)
}

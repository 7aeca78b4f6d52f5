package session

import (
	"sync"
	"time"

	"nim-chat/internal/sampling"
)

// Session is the explicit state of one user's interaction: its conversation
// history and current sampling configuration. It is created when the user
// arrives and discarded when the session ends.
type Session struct {
	ID        string
	CreatedAt time.Time

	// turnMu serialises turns so one session has a single request in flight.
	turnMu sync.Mutex

	mu       sync.Mutex
	history  History
	config   sampling.Config
	lastSeen time.Time
	failure  *Failure
}

// Failure is a submitted message that did not produce a reply. It is shown once,
// in place of the assistant turn, and is never part of the history.
type Failure struct {
	Prompt  string
	Message string
}

func newSession(id string, cfg sampling.Config, now time.Time) *Session {
	return &Session{
		ID:        id,
		CreatedAt: now,
		config:    cfg,
		lastSeen:  now,
	}
}

// BeginTurn blocks until no other turn is running on this session and returns
// the function that ends the turn.
func (s *Session) BeginTurn() (end func()) {
	s.turnMu.Lock()
	return s.turnMu.Unlock
}

// Config returns the current sampling configuration.
func (s *Session) Config() sampling.Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.config
}

// SetConfig replaces the sampling configuration.
func (s *Session) SetConfig(cfg sampling.Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.config = cfg
}

// Turns returns a copy of the conversation in display order.
func (s *Session) Turns() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.All()
}

// Len returns the number of turns in the conversation.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.Len()
}

// RecordExchange appends a completed user/assistant pair.
func (s *Session) RecordExchange(prompt, reply string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history.AppendExchange(prompt, reply)
}

// Reset clears the conversation. The sampling configuration is kept.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history.Reset()
	s.failure = nil
}

// SetFailure stores the failed submission for the next render.
func (s *Session) SetFailure(prompt, msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failure = &Failure{Prompt: prompt, Message: msg}
}

// TakeFailure returns and clears the pending failure.
func (s *Session) TakeFailure() (Failure, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failure == nil {
		return Failure{}, false
	}
	f := *s.failure
	s.failure = nil
	return f, true
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

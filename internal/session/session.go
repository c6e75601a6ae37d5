// Package session owns the identity of the current conversational session
// and its persistence across runs. The session is the only state shared
// between the ingestion and conversation surfaces, so it lives behind a
// single-slot store with atomic replacement semantics.
package session

import (
	"encoding/json"
	"fmt"
	"sync"
)

// Session binds this device to a previously ingested persona and its
// memory index on the companion service.
type Session struct {
	SessionID   string `json:"session_id"`
	PersonName  string `json:"person_name"`
	MemoryCount int    `json:"memory_count"`
	Message     string `json:"message"`
}

// KV abstracts the persisted slot so tests can substitute memory storage.
type KV interface {
	Get(key string) (val []byte, ok bool, err error)
	Set(key string, val []byte) error
	Delete(key string) error
}

const sessionKey = "session"

// Store holds the current session and mirrors it to a KV slot. Writes are
// whole-value replacements; readers never observe a partial session.
type Store struct {
	mu      sync.Mutex
	kv      KV
	current *Session
}

func NewStore(kv KV) *Store {
	return &Store{kv: kv}
}

// Load reads the persisted session, if any. Malformed or unreadable data
// is treated as "no session" and never surfaced as an error.
func (s *Store) Load() (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, ok, err := s.kv.Get(sessionKey)
	if err != nil || !ok {
		s.current = nil
		return Session{}, false
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		s.current = nil
		return Session{}, false
	}

	s.current = &sess
	return sess, true
}

// Commit replaces the current session and persists it. Idempotent.
func (s *Store) Commit(sess Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}
	if err := s.kv.Set(sessionKey, data); err != nil {
		return fmt.Errorf("persisting session: %w", err)
	}
	s.current = &sess
	return nil
}

// Clear removes the current session and its persisted form.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.current = nil
	if err := s.kv.Delete(sessionKey); err != nil {
		return fmt.Errorf("removing persisted session: %w", err)
	}
	return nil
}

// Current returns the in-memory session, if one is held.
func (s *Store) Current() (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return Session{}, false
	}
	return *s.current, true
}

// Active reports whether a usable session is held. A session missing
// either the ID or the person name is treated as inactive and callers
// must send the user back to ingestion.
func (s *Store) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current != nil && s.current.SessionID != "" && s.current.PersonName != ""
}

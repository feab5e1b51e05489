package studio

import (
	"sync"
	"time"
)

// Store holds one Session per (chat, user). All access goes through the
// mutex; transition methods are only ever called inside Update.
type Store struct {
	mu          sync.Mutex
	m           map[sessionKey]*Session
	defaultLang Language
}

type sessionKey struct {
	ChatID int64
	UserID int64
}

func NewStore(defaultLang Language) *Store {
	return &Store{
		m:           make(map[sessionKey]*Session),
		defaultLang: defaultLang,
	}
}

// Get returns a snapshot of the session.
func (s *Store) Get(chatID, userID int64) Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	return *s.getOrCreateLocked(chatID, userID)
}

// Update mutates the session under the lock and returns the resulting
// snapshot.
func (s *Store) Update(chatID, userID int64, fn func(*Session)) Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.getOrCreateLocked(chatID, userID)
	if fn != nil {
		fn(sess)
	}
	sess.UpdatedAt = time.Now()
	return *sess
}

// Reset replaces the session with a fresh one ("start over").
func (s *Store) Reset(chatID, userID int64) Session {
	return s.Update(chatID, userID, func(sess *Session) {
		sess.StartOver()
	})
}

func (s *Store) getOrCreateLocked(chatID, userID int64) *Session {
	key := sessionKey{ChatID: chatID, UserID: userID}
	if sess, ok := s.m[key]; ok {
		return sess
	}
	sess := NewSession(s.defaultLang)
	s.m[key] = &sess
	return s.m[key]
}

package order

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Store is the in-memory session directory. The directory map is guarded by a
// read-write mutex; every session additionally carries its own mutex so that
// transitions on different users run in parallel while events of one user are
// serialized. Lock ordering: an entry mutex may be held while taking the
// directory mutex, never the other way around.
type Store struct {
	mu       sync.RWMutex
	sessions map[int64]*sessionEntry

	ttl    time.Duration
	logger *zap.Logger
	now    func() time.Time
}

type sessionEntry struct {
	mu   sync.Mutex
	sess Session
}

// NewStore creates a session store with the given expiry window.
func NewStore(ttl time.Duration, logger *zap.Logger) *Store {
	return &Store{
		sessions: make(map[int64]*sessionEntry),
		ttl:      ttl,
		logger:   logger,
		now:      time.Now,
	}
}

func (s *Store) lookup(userID int64) (*sessionEntry, bool) {
	s.mu.RLock()
	e, ok := s.sessions[userID]
	s.mu.RUnlock()
	return e, ok
}

// remove deletes the entry from the directory if it is still the current one.
// Called with e.mu held.
func (s *Store) remove(userID int64, e *sessionEntry) {
	s.mu.Lock()
	if cur, ok := s.sessions[userID]; ok && cur == e {
		delete(s.sessions, userID)
	}
	s.mu.Unlock()
}

func (s *Store) expired(sess *Session, now time.Time) bool {
	return now.Sub(sess.CreatedAt) > s.ttl
}

// snapshot returns a copy that shares no mutable state with the live session.
// Files must be cloned: transitions remove entries in place, which would
// otherwise show through every copy handed out earlier.
func snapshot(sess Session) Session {
	sess.Files = append([]FileRef(nil), sess.Files...)
	return sess
}

// GetOrCreate returns a copy of the live session for the user, creating a
// fresh one at StepStart if none exists or the old one has expired.
// Concurrent calls for the same user never create duplicate sessions.
func (s *Store) GetOrCreate(userID int64) Session {
	for {
		if e, ok := s.lookup(userID); ok {
			e.mu.Lock()
			if !s.expired(&e.sess, s.now()) {
				sess := snapshot(e.sess)
				e.mu.Unlock()
				return sess
			}
			s.remove(userID, e)
			e.mu.Unlock()
			s.logger.Debug("session expired", zap.Int64("user_id", userID))
			continue
		}

		s.mu.Lock()
		if _, ok := s.sessions[userID]; ok {
			// Lost the race, retry the read path.
			s.mu.Unlock()
			continue
		}
		e := &sessionEntry{sess: Session{
			UserID:    userID,
			Step:      StepStart,
			CreatedAt: s.now(),
		}}
		s.sessions[userID] = e
		s.mu.Unlock()

		s.logger.Debug("session created", zap.Int64("user_id", userID))
		return snapshot(e.sess)
	}
}

// Get returns a copy of the live session or ErrSessionNotFound. Expiry is
// checked lazily: an expired session is removed and reported as not found.
func (s *Store) Get(userID int64) (Session, error) {
	e, ok := s.lookup(userID)
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if s.expired(&e.sess, s.now()) {
		s.remove(userID, e)
		s.logger.Debug("session expired", zap.Int64("user_id", userID))
		return Session{}, ErrSessionNotFound
	}
	return snapshot(e.sess), nil
}

// Update runs fn on the live session under its per-key lock. If fn returns an
// error the mutation is discarded and the session keeps its previous state.
func (s *Store) Update(userID int64, fn func(*Session) error) error {
	e, ok := s.lookup(userID)
	if !ok {
		return ErrSessionNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if s.expired(&e.sess, s.now()) {
		s.remove(userID, e)
		return ErrSessionNotFound
	}
	prev := snapshot(e.sess)
	if err := fn(&e.sess); err != nil {
		e.sess = prev
		return err
	}
	return nil
}

// Delete removes the session, if any. Used on completion and cancel.
func (s *Store) Delete(userID int64) {
	e, ok := s.lookup(userID)
	if !ok {
		return
	}
	e.mu.Lock()
	s.remove(userID, e)
	e.mu.Unlock()
	s.logger.Debug("session deleted", zap.Int64("user_id", userID))
}

// SweepExpired removes every session older than the expiry window and returns
// the number removed. Safe to run concurrently with per-user operations:
// each removal happens under the session's own lock.
func (s *Store) SweepExpired(now time.Time) int {
	s.mu.RLock()
	entries := make(map[int64]*sessionEntry, len(s.sessions))
	for id, e := range s.sessions {
		entries[id] = e
	}
	s.mu.RUnlock()

	removed := 0
	for id, e := range entries {
		e.mu.Lock()
		if s.expired(&e.sess, now) {
			s.remove(id, e)
			removed++
		}
		e.mu.Unlock()
	}
	if removed > 0 {
		s.logger.Info("swept expired sessions", zap.Int("count", removed))
	}
	return removed
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

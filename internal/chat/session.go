package chat

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"bible-rag/internal/helper"
	"bible-rag/internal/models"
)

const (
	DefaultSessionTTL  = 24 * time.Hour
	DefaultMaxSessions = 10000

	// turns reloaded from the archive for a session that is no longer in memory
	historyLimit = 50
)

// Archiver persists finished turns outside the process.
type Archiver interface {
	StoreTurn(ctx context.Context, sessionID string, turn models.Turn) error
	ListTurns(ctx context.Context, sessionID string, limit int) ([]models.Turn, error)
}

// Session is the history of one browser conversation.
type Session struct {
	ID string

	mu       sync.Mutex
	turns    []models.Turn
	lastSeen time.Time // guarded by Store.mu
}

// Turns returns a copy of the history, oldest first.
func (s *Session) Turns() []models.Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Turn, len(s.turns))
	copy(out, s.turns)
	return out
}

func (s *Session) append(t models.Turn) {
	s.mu.Lock()
	s.turns = append(s.turns, t)
	s.mu.Unlock()
}

func (s *Session) clear() {
	s.mu.Lock()
	s.turns = nil
	s.mu.Unlock()
}

// Store keeps sessions in memory, keyed by ID. Idle sessions expire after the TTL and
// the least recently used ones are evicted once the store is full.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session
	archive  Archiver
	now      func() time.Time
	ttl      time.Duration
	max      int
}

type StoreOption func(*Store)

// WithTTL sets how long an idle session is kept.
func WithTTL(ttl time.Duration) StoreOption {
	return func(st *Store) { st.ttl = ttl }
}

// WithMaxSessions bounds the number of sessions held in memory.
func WithMaxSessions(n int) StoreOption {
	return func(st *Store) { st.max = n }
}

// NewStore creates an empty store; archive may be nil.
func NewStore(archive Archiver, opts ...StoreOption) *Store {
	st := &Store{
		sessions: make(map[string]*Session),
		archive:  archive,
		now:      time.Now,
		ttl:      DefaultSessionTTL,
		max:      DefaultMaxSessions,
	}
	for _, opt := range opts {
		opt(st)
	}
	return st
}

// Lookup returns the session for id without creating one. A session that is no longer
// in memory is reloaded from the archive when it has archived turns.
func (st *Store) Lookup(ctx context.Context, id string) (*Session, bool) {
	if !helper.IsUUID(id) {
		return nil, false
	}

	st.mu.Lock()
	if s, ok := st.sessions[id]; ok {
		s.lastSeen = st.now()
		st.mu.Unlock()
		return s, true
	}
	st.mu.Unlock()

	if st.archive == nil {
		return nil, false
	}
	turns, err := st.archive.ListTurns(ctx, id, historyLimit)
	if err != nil {
		log.Warn().Err(err).Str("session", id).Msg("Failed to load archived turns")
		return nil, false
	}
	if len(turns) == 0 {
		return nil, false
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	if s, ok := st.sessions[id]; ok {
		return s, true
	}
	s := &Session{ID: id, turns: turns}
	st.put(s)
	log.Debug().Str("session", id).Int("turns", len(turns)).Msg("Restored chat history")
	return s, true
}

// Get returns the session for id, creating it when unknown. An id that is not a UUID
// gets a new one.
func (st *Store) Get(ctx context.Context, id string) *Session {
	if s, ok := st.Lookup(ctx, id); ok {
		return s
	}
	if !helper.IsUUID(id) {
		var err error
		if id, err = helper.GenerateUUID(); err != nil {
			log.Error().Err(err).Msg("Failed to generate session ID")
		}
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	if s, ok := st.sessions[id]; ok {
		s.lastSeen = st.now()
		return s
	}
	s := &Session{ID: id}
	st.put(s)
	return s
}

// put stores s and evicts expired or excess sessions. Callers hold st.mu.
func (st *Store) put(s *Session) {
	now := st.now()
	s.lastSeen = now
	st.sessions[s.ID] = s

	var oldest *Session
	for id, other := range st.sessions {
		if st.ttl > 0 && now.Sub(other.lastSeen) > st.ttl {
			delete(st.sessions, id)
			continue
		}
		if other != s && (oldest == nil || other.lastSeen.Before(oldest.lastSeen)) {
			oldest = other
		}
	}
	for st.max > 0 && len(st.sessions) > st.max && oldest != nil {
		delete(st.sessions, oldest.ID)
		oldest = nil
		for _, other := range st.sessions {
			if other != s && (oldest == nil || other.lastSeen.Before(oldest.lastSeen)) {
				oldest = other
			}
		}
	}
}

// Record appends the outcome of a question to the session history and archives it.
// A nil answer with a non-empty reply records a failed turn.
func (st *Store) Record(ctx context.Context, s *Session, question string, ans *models.Answer, reply string) models.Turn {
	id, _ := helper.GenerateUUID()
	turn := models.Turn{
		ID:       id,
		Question: question,
		Answer:   reply,
		Sources:  []models.Source{},
		AskedAt:  st.now(),
	}
	if ans != nil {
		turn.Answer = ans.Text
		turn.Sources = ans.Sources
		turn.NoContext = ans.NoContext
	} else {
		turn.Failed = true
	}
	s.append(turn)

	if st.archive != nil {
		if err := st.archive.StoreTurn(ctx, s.ID, turn); err != nil {
			log.Warn().Err(err).Str("session", s.ID).Msg("Failed to archive turn")
		}
	}
	return turn
}

// Clear empties the session history. Archived turns are kept.
func (st *Store) Clear(s *Session) {
	s.clear()
	log.Debug().Str("session", s.ID).Msg("Cleared chat history")
}

func (st *Store) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}

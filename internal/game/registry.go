package game

import (
	"context"
	"fmt"
	"sync"
	"time"

	"geoguess-bot/internal/metrics"

	"github.com/rs/zerolog/log"
)

// Registry holds live sessions by id.
// It is safe for concurrent use.
type Registry struct {
	sessions      map[string]*Session
	mu            sync.RWMutex
	idleTTL       time.Duration
	finishedGrace time.Duration
}

// NewRegistry creates an empty registry. Unfinished sessions idle for
// idleTTL and finished sessions older than finishedGrace are reaped.
func NewRegistry(idleTTL, finishedGrace time.Duration) *Registry {
	return &Registry{
		sessions:      make(map[string]*Session),
		idleTTL:       idleTTL,
		finishedGrace: finishedGrace,
	}
}

// Add registers a session. Ids must be unique.
func (r *Registry) Add(s *Session) error {
	if s == nil {
		return fmt.Errorf("cannot register nil session")
	}
	if s.ID() == "" {
		return fmt.Errorf("session id cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[s.ID()]; ok {
		return fmt.Errorf("session %s already registered", s.ID())
	}
	r.sessions[s.ID()] = s
	metrics.ActiveSessions.Set(float64(len(r.sessions)))
	return nil
}

// Get returns the session with id or ErrSessionNotFound.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Remove drops a session. It reports whether the id was present.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[id]; !ok {
		return false
	}
	delete(r.sessions, id)
	metrics.ActiveSessions.Set(float64(len(r.sessions)))
	return true
}

// Len returns the number of registered sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Reap removes expired sessions and returns how many were dropped.
func (r *Registry) Reap(now time.Time) int {
	// Sessions are snapshotted outside the registry lock so a busy session
	// never blocks lookups of the others.
	r.mu.RLock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.RUnlock()

	var expired []*Session
	for _, s := range sessions {
		snap := s.Snapshot()
		switch {
		case snap.Finished && now.Sub(snap.FinishedAt) >= r.finishedGrace:
			expired = append(expired, s)
		case !snap.Finished && r.idleTTL > 0 && now.Sub(snap.LastActive) >= r.idleTTL:
			expired = append(expired, s)
		}
	}
	if len(expired) == 0 {
		return 0
	}

	removed := 0
	r.mu.Lock()
	for _, s := range expired {
		if r.sessions[s.ID()] == s {
			delete(r.sessions, s.ID())
			removed++
		}
	}
	metrics.ActiveSessions.Set(float64(len(r.sessions)))
	r.mu.Unlock()
	return removed
}

// Run reaps every interval until ctx is done.
func (r *Registry) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			if n := r.Reap(now); n > 0 {
				log.Debug().Int("reaped", n).Int("active", r.Len()).Msg("Sessions reaped")
			}
		}
	}
}

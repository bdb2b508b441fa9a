package repository

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"playchrono/internal/domain"
	"playchrono/internal/models"

	"github.com/rs/zerolog"
)

const recoveryInterval = time.Minute

// FailoverSessionStore serves from primary until it errors, then from fallback.
// Primary is retried once per recovery interval.
//
// Sessions deleted while primary is unreachable are tombstoned: they never
// resolve again, and the deletes are replayed to primary once it answers.
type FailoverSessionStore struct {
	primary   domain.SessionStore
	fallback  domain.SessionStore
	logger    *zerolog.Logger
	isDown    atomic.Bool
	lastCheck atomic.Int64
	now       func() time.Time

	mu         sync.Mutex
	tombstones map[string]struct{}
}

func NewFailoverSessionStore(primary, fallback domain.SessionStore, logger *zerolog.Logger) *FailoverSessionStore {
	return &FailoverSessionStore{
		primary:    primary,
		fallback:   fallback,
		logger:     logger,
		now:        time.Now,
		tombstones: make(map[string]struct{}),
	}
}

func (r *FailoverSessionStore) markDown(err error) {
	if !r.isDown.Swap(true) {
		r.logger.Error().Err(err).Msg("primary session store failed, falling back to memory")
	}
	r.lastCheck.Store(r.now().UnixNano())
}

// usePrimary reports whether the next call should go to primary.
func (r *FailoverSessionStore) usePrimary() bool {
	if !r.isDown.Load() {
		return true
	}
	return r.now().Sub(time.Unix(0, r.lastCheck.Load())) > recoveryInterval
}

func (r *FailoverSessionStore) recovered(ctx context.Context) {
	if r.isDown.Swap(false) {
		r.logger.Info().Msg("primary session store recovered")
	}
	r.replayDeletes(ctx)
}

func (r *FailoverSessionStore) tombstone(id string) {
	r.mu.Lock()
	r.tombstones[id] = struct{}{}
	r.mu.Unlock()
}

func (r *FailoverSessionStore) deleted(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.tombstones[id]
	return ok
}

// replayDeletes pushes deletes missed by primary. Tombstones stay until
// primary confirms.
func (r *FailoverSessionStore) replayDeletes(ctx context.Context) {
	r.mu.Lock()
	if len(r.tombstones) == 0 {
		r.mu.Unlock()
		return
	}
	ids := make([]string, 0, len(r.tombstones))
	for id := range r.tombstones {
		ids = append(ids, id)
	}
	r.mu.Unlock()

	for _, id := range ids {
		if err := r.primary.DeleteSession(ctx, id); err != nil {
			r.logger.Warn().Err(err).Msg("replay session delete")
			return
		}
		r.mu.Lock()
		delete(r.tombstones, id)
		r.mu.Unlock()
	}
	r.logger.Info().Int("sessions", len(ids)).Msg("replayed session deletes to primary")
}

func (r *FailoverSessionStore) GetSession(ctx context.Context, id string) (*models.Session, error) {
	if r.deleted(id) {
		return nil, nil
	}

	if r.usePrimary() {
		session, err := r.primary.GetSession(ctx, id)
		if err == nil {
			r.recovered(ctx)
			if session != nil {
				return session, nil
			}
			// Sessions created during an outage only exist in the fallback.
			return r.fallback.GetSession(ctx, id)
		}
		r.markDown(err)
	}

	return r.fallback.GetSession(ctx, id)
}

func (r *FailoverSessionStore) SaveSession(ctx context.Context, session *models.Session) error {
	if r.usePrimary() {
		err := r.primary.SaveSession(ctx, session)
		if err == nil {
			r.recovered(ctx)
			return nil
		}
		r.markDown(err)
	}

	return r.fallback.SaveSession(ctx, session)
}

// DeleteSession removes the session from both stores. A delete primary
// did not take is tombstoned until it can be replayed.
func (r *FailoverSessionStore) DeleteSession(ctx context.Context, id string) error {
	done := false
	if r.usePrimary() {
		if err := r.primary.DeleteSession(ctx, id); err != nil {
			r.markDown(err)
		} else {
			done = true
			r.recovered(ctx)
		}
	}
	if !done {
		r.tombstone(id)
	}

	return r.fallback.DeleteSession(ctx, id)
}

func (r *FailoverSessionStore) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if r.usePrimary() {
		allowed, err := r.primary.CheckRateLimit(ctx, key, limit, window)
		if err == nil {
			r.recovered(ctx)
			return allowed, nil
		}
		r.markDown(err)
	}

	return r.fallback.CheckRateLimit(ctx, key, limit, window)
}

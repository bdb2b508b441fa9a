package repository

import (
	"context"
	"testing"
	"time"

	"playchrono/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemorySessionStore(t *testing.T) {
	repo := NewMemorySessionStore()
	now := time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return now }
	ctx := context.Background()

	t.Run("SaveAndGetSession", func(t *testing.T) {
		session := &models.Session{ID: "sid", UserID: "u1", ExpiresAt: now.Add(time.Hour)}
		require.NoError(t, repo.SaveSession(ctx, session))

		got, err := repo.GetSession(ctx, "sid")
		require.NoError(t, err)
		assert.Equal(t, session, got)
	})

	t.Run("ExpiredSessionDropped", func(t *testing.T) {
		require.NoError(t, repo.SaveSession(ctx, &models.Session{ID: "old", ExpiresAt: now.Add(-time.Second)}))
		got, err := repo.GetSession(ctx, "old")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("DeleteSession", func(t *testing.T) {
		require.NoError(t, repo.DeleteSession(ctx, "sid"))
		got, _ := repo.GetSession(ctx, "sid")
		assert.Nil(t, got)
	})

	t.Run("RateLimit", func(t *testing.T) {
		key := "login:a@b.c"
		allowed, _ := repo.CheckRateLimit(ctx, key, 2, time.Second)
		assert.True(t, allowed)
		allowed, _ = repo.CheckRateLimit(ctx, key, 2, time.Second)
		assert.True(t, allowed)
		allowed, _ = repo.CheckRateLimit(ctx, key, 2, time.Second)
		assert.False(t, allowed)

		// Independent keys do not share a budget.
		allowed, _ = repo.CheckRateLimit(ctx, "login:x@y.z", 2, time.Second)
		assert.True(t, allowed)

		now = now.Add(2 * time.Second)
		allowed, _ = repo.CheckRateLimit(ctx, key, 2, time.Second)
		assert.True(t, allowed)
	})
}

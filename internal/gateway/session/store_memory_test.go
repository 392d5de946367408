package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "trustgate/pkg/domain"
	"trustgate/pkg/platform/sentinel"
	"trustgate/pkg/requestcontext"
)

func TestRevocationListExpiry(t *testing.T) {
	sessionID := id.NewSessionID()
	list := NewRevocationList()

	revokedAt := time.Now()
	ctx := requestcontext.WithTime(context.Background(), revokedAt)
	require.NoError(t, list.Revoke(ctx, sessionID, time.Minute))

	revoked, err := list.IsRevoked(ctx, sessionID)
	require.NoError(t, err)
	assert.True(t, revoked)

	lateCtx := requestcontext.WithTime(context.Background(), revokedAt.Add(2*time.Minute))
	revoked, err = list.IsRevoked(lateCtx, sessionID)
	require.NoError(t, err)
	assert.False(t, revoked, "revocation lapses with its TTL")
}

func TestUsageStoreBudgets(t *testing.T) {
	ctx := context.Background()
	store := NewUsageStore()
	sessionID := id.NewSessionID()

	requests, err := store.Consume(ctx, sessionID, 0.4, 2, 1.0, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, requests)

	requests, err = store.Consume(ctx, sessionID, 0.4, 2, 1.0, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 2, requests)

	// Request budget exhausted; counters stay unchanged.
	_, err = store.Consume(ctx, sessionID, 0.1, 2, 1.0, time.Hour)
	assert.ErrorIs(t, err, sentinel.ErrExhausted)

	// Cost budget check on a fresh credential.
	other := id.NewSessionID()
	_, err = store.Consume(ctx, other, 0.9, 10, 1.0, time.Hour)
	require.NoError(t, err)
	_, err = store.Consume(ctx, other, 0.2, 10, 1.0, time.Hour)
	assert.ErrorIs(t, err, sentinel.ErrExhausted)
}

func TestUsageStoreZeroMaxCostIsUnbounded(t *testing.T) {
	ctx := context.Background()
	store := NewUsageStore()
	sessionID := id.NewSessionID()

	for i := 0; i < 5; i++ {
		_, err := store.Consume(ctx, sessionID, 100, 10, 0, time.Hour)
		require.NoError(t, err)
	}
}

func TestUsageStoreConcurrentConsume(t *testing.T) {
	ctx := context.Background()
	store := NewUsageStore()
	sessionID := id.NewSessionID()
	const attempts = 50
	const maxRequests = 10

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.Consume(ctx, sessionID, 0, maxRequests, 0, time.Hour); err == nil {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, maxRequests, allowed, "budget must never be over-consumed")
}

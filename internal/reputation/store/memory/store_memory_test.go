package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trustgate/internal/reputation"
	id "trustgate/pkg/domain"
	"trustgate/pkg/platform/sentinel"
)

func TestAppendFoldsAggregate(t *testing.T) {
	ctx := context.Background()
	store := New()
	subject := id.SubjectKey("agent:alpha")

	agg, err := store.Append(ctx, reputation.FeedbackRecord{
		Subject: subject, Score: reputation.ScorePositive, Weight: 4, Timestamp: time.Now(),
	})
	require.NoError(t, err)
	assert.Equal(t, 4.0, agg.PositiveWeight)
	assert.Equal(t, int64(1), agg.FeedbackCount)

	agg, err = store.Append(ctx, reputation.FeedbackRecord{
		Subject: subject, Score: reputation.ScoreNegative, Weight: 1, Timestamp: time.Now(),
	})
	require.NoError(t, err)
	assert.Equal(t, 5.0, agg.TotalWeight)
	assert.Equal(t, int64(2), agg.FeedbackCount)

	found, err := store.FindAggregate(ctx, subject)
	require.NoError(t, err)
	assert.Equal(t, agg, found)
}

func TestFindAggregateUnknownSubject(t *testing.T) {
	store := New()
	_, err := store.FindAggregate(context.Background(), "agent:ghost")
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestListBySubjectPreservesOrder(t *testing.T) {
	ctx := context.Background()
	store := New()
	subject := id.SubjectKey("agent:alpha")

	for i, score := range []reputation.FeedbackScore{1, -1, 0} {
		_, err := store.Append(ctx, reputation.FeedbackRecord{
			Subject: subject, Score: score, Weight: float64(i + 1),
		})
		require.NoError(t, err)
	}

	recs, err := store.ListBySubject(ctx, subject)
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, reputation.ScorePositive, recs[0].Score)
	assert.Equal(t, reputation.ScoreNegative, recs[1].Score)
	assert.Equal(t, reputation.ScoreNeutral, recs[2].Score)

	// Returned slice is a copy; mutating it does not corrupt the log.
	recs[0].Weight = 999
	again, err := store.ListBySubject(ctx, subject)
	require.NoError(t, err)
	assert.Equal(t, 1.0, again[0].Weight)
}

func TestConcurrentAppends(t *testing.T) {
	ctx := context.Background()
	store := New()
	subject := id.SubjectKey("agent:alpha")
	const writers = 50

	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Append(ctx, reputation.FeedbackRecord{
				Subject: subject, Score: reputation.ScorePositive, Weight: 1,
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	agg, err := store.FindAggregate(ctx, subject)
	require.NoError(t, err)
	assert.Equal(t, int64(writers), agg.FeedbackCount)
	assert.Equal(t, float64(writers), agg.TotalWeight)
}

package risk

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	id "trustgate/pkg/domain"
	"trustgate/pkg/requestcontext"
)

func pinned(t time.Time) context.Context {
	return requestcontext.WithTime(context.Background(), t)
}

// seed records n requests spread outside the burst minute so only the
// lifetime counter moves.
func seed(svc *Service, subject id.SubjectKey, n int, base time.Time) {
	for i := 0; i < n; i++ {
		svc.RecordRequest(pinned(base.Add(time.Duration(i-n)*time.Minute*2)), subject)
	}
}

func TestAssessNewSubject(t *testing.T) {
	svc := NewService()
	a := svc.Assess(context.Background(), "agent:fresh", false)

	assert.Equal(t, 15, a.Score, "new subject weight only")
	assert.Contains(t, a.Factors, "new_subject")
	assert.False(t, a.Blocked)
}

func TestAssessBurstWeights(t *testing.T) {
	now := time.Now()

	t.Run("over 10 per minute", func(t *testing.T) {
		svc := NewService()
		subject := id.SubjectKey("agent:busy")
		seed(svc, subject, 10, now.Add(-30*time.Minute))
		for i := 0; i < 11; i++ {
			svc.RecordRequest(pinned(now.Add(-time.Duration(i)*time.Second)), subject)
		}

		a := svc.Assess(pinned(now), subject, false)
		assert.Contains(t, a.Factors, "request_burst")
		assert.Equal(t, 10, a.Score)
	})

	t.Run("over 30 per minute", func(t *testing.T) {
		svc := NewService()
		subject := id.SubjectKey("agent:flood")
		for i := 0; i < 31; i++ {
			svc.RecordRequest(pinned(now.Add(-time.Duration(i)*time.Second)), subject)
		}

		a := svc.Assess(pinned(now), subject, false)
		assert.Contains(t, a.Factors, "request_burst_high")
		assert.Equal(t, 20, a.Score)
	})
}

func TestAssessFailureWeights(t *testing.T) {
	now := time.Now()
	ctx := pinned(now)

	t.Run("more than 5 failures", func(t *testing.T) {
		svc := NewService()
		subject := id.SubjectKey("agent:flaky")
		seed(svc, subject, 10, now)
		for i := 0; i < 6; i++ {
			svc.RecordFailure(ctx, subject)
		}

		a := svc.Assess(ctx, subject, false)
		assert.Contains(t, a.Factors, "failure_history")
		assert.Equal(t, 15, a.Score)
	})

	t.Run("more than 10 failures", func(t *testing.T) {
		svc := NewService()
		subject := id.SubjectKey("agent:broken")
		seed(svc, subject, 10, now)
		for i := 0; i < 11; i++ {
			svc.RecordFailure(ctx, subject)
		}

		a := svc.Assess(ctx, subject, false)
		assert.Contains(t, a.Factors, "failure_history_high")
		assert.Equal(t, 30, a.Score)
	})
}

func TestAssessFlagsAndBlocking(t *testing.T) {
	now := time.Now()
	ctx := pinned(now)
	svc := NewService()
	subject := id.SubjectKey("agent:abusive")
	seed(svc, subject, 10, now)

	svc.AddFlag(ctx, subject, "scraping")
	a := svc.Assess(ctx, subject, false)
	assert.Equal(t, 10, a.Score)
	assert.Equal(t, 1, a.FlagCount)
	assert.False(t, a.Blocked)

	svc.AddFlag(ctx, subject, "credential stuffing")
	svc.AddFlag(ctx, subject, "spam")
	a = svc.Assess(ctx, subject, false)
	assert.Equal(t, 30, a.Score)
	assert.True(t, a.Blocked, "three flags block regardless of score")
}

func TestAssessBlockThreshold(t *testing.T) {
	now := time.Now()
	ctx := pinned(now)
	svc := NewService()
	subject := id.SubjectKey("agent:hot")

	// Burst high (20) + failures high (30) + two flags (20) + oversized (10)
	// lands at 80, which is not above the threshold.
	for i := 0; i < 31; i++ {
		svc.RecordRequest(pinned(now.Add(-time.Duration(i)*time.Second)), subject)
	}
	for i := 0; i < 11; i++ {
		svc.RecordFailure(ctx, subject)
	}
	svc.AddFlag(ctx, subject, "one")
	svc.AddFlag(ctx, subject, "two")

	a := svc.Assess(ctx, subject, true)
	assert.Equal(t, 80, a.Score)
	assert.False(t, a.Blocked, "exactly 80 is allowed through")

	// One more flag pushes past both limits.
	svc.AddFlag(ctx, subject, "three")
	a = svc.Assess(ctx, subject, true)
	assert.True(t, a.Blocked)
}

func TestAssessOversizedPayload(t *testing.T) {
	now := time.Now()
	ctx := pinned(now)
	svc := NewService()
	subject := id.SubjectKey("agent:bulky")
	seed(svc, subject, 10, now)

	a := svc.Assess(ctx, subject, true)
	assert.Equal(t, 10, a.Score)
	assert.Contains(t, a.Factors, "oversized_payload")
}

func TestWindowPruning(t *testing.T) {
	svc := NewService()
	subject := id.SubjectKey("agent:old")
	start := time.Now()

	// A burst two hours ago is outside the retention window entirely.
	for i := 0; i < 40; i++ {
		svc.RecordRequest(pinned(start.Add(-2*time.Hour)), subject)
	}

	a := svc.Assess(pinned(start), subject, false)
	assert.NotContains(t, a.Factors, "request_burst_high")
	assert.Equal(t, int64(40), a.TotalRequests, "lifetime counter survives pruning")
	assert.Equal(t, 0, a.Score)
}

func TestIsNew(t *testing.T) {
	svc := NewService()
	subject := id.SubjectKey("agent:young")
	assert.True(t, svc.IsNew(subject))

	seed(svc, subject, 5, time.Now())
	assert.False(t, svc.IsNew(subject))
}

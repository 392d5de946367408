package reputation_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	. "trustgate/internal/reputation"
	"trustgate/internal/reputation/store/memory"
	id "trustgate/pkg/domain"
	dErrors "trustgate/pkg/domain-errors"
)

type stubRegistry struct {
	registered map[id.SubjectKey]bool
}

func (r *stubRegistry) IsRegistered(ctx context.Context, subject id.SubjectKey) (bool, error) {
	return r.registered[subject], nil
}

type LedgerServiceSuite struct {
	suite.Suite
	store    *memory.InMemoryFeedbackStore
	registry *stubRegistry
	service  *Service
}

func TestLedgerServiceSuite(t *testing.T) {
	suite.Run(t, new(LedgerServiceSuite))
}

func (s *LedgerServiceSuite) SetupTest() {
	s.store = memory.New()
	s.registry = &stubRegistry{registered: map[id.SubjectKey]bool{
		"agent:alpha": true,
		"agent:beta":  true,
	}}

	var err error
	s.service, err = NewService(s.store, s.registry)
	s.Require().NoError(err)
}

func (s *LedgerServiceSuite) submit(subject id.SubjectKey, score FeedbackScore, weight float64) {
	err := s.service.SubmitFeedback(context.Background(), FeedbackRecord{
		Subject:   subject,
		Submitter: "agent:beta",
		Score:     score,
		Weight:    weight,
	})
	s.Require().NoError(err)
}

func (s *LedgerServiceSuite) TestNewService() {
	s.Run("nil store returns error", func() {
		_, err := NewService(nil, s.registry)
		s.Error(err)
		s.Contains(err.Error(), "feedback store is required")
	})

	s.Run("nil registry returns error", func() {
		_, err := NewService(s.store, nil)
		s.Error(err)
		s.Contains(err.Error(), "registry is required")
	})
}

func (s *LedgerServiceSuite) TestSubmitFeedback() {
	ctx := context.Background()

	s.Run("rejects score outside supported values", func() {
		err := s.service.SubmitFeedback(ctx, FeedbackRecord{
			Subject: "agent:alpha",
			Score:   FeedbackScore(2),
			Weight:  1,
		})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("rejects negative weight", func() {
		err := s.service.SubmitFeedback(ctx, FeedbackRecord{
			Subject: "agent:alpha",
			Score:   ScorePositive,
			Weight:  -1,
		})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("rejects missing subject", func() {
		err := s.service.SubmitFeedback(ctx, FeedbackRecord{
			Score:  ScorePositive,
			Weight: 1,
		})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("unregistered subject leaves ledger unchanged", func() {
		err := s.service.SubmitFeedback(ctx, FeedbackRecord{
			Subject: "agent:unknown",
			Score:   ScorePositive,
			Weight:  1,
		})
		s.True(dErrors.HasCode(err, dErrors.CodeUnknownSubject))

		count, err := s.service.FeedbackCount(ctx, "agent:unknown")
		s.NoError(err)
		s.Zero(count)
	})

	s.Run("accepted feedback is readable and counted", func() {
		s.submit("agent:alpha", ScorePositive, 10)

		count, err := s.service.FeedbackCount(ctx, "agent:alpha")
		s.NoError(err)
		s.Equal(int64(1), count)

		recs, err := s.store.ListBySubject(ctx, "agent:alpha")
		s.NoError(err)
		s.Require().Len(recs, 1)
		s.False(recs[0].Timestamp.IsZero())
	})
}

func (s *LedgerServiceSuite) TestScore() {
	ctx := context.Background()

	s.Run("subject with no feedback scores neutral", func() {
		score, err := s.service.Score(ctx, "agent:alpha")
		s.NoError(err)
		s.Equal(NeutralScore, score)
	})

	s.Run("score tracks the weighted positive fraction", func() {
		s.submit("agent:alpha", ScorePositive, 10)
		s.submit("agent:alpha", ScorePositive, 10)
		s.submit("agent:alpha", ScoreNegative, 10)

		score, err := s.service.Score(ctx, "agent:alpha")
		s.NoError(err)
		s.Equal(67, score)
	})

	s.Run("heavier weight moves the score more", func() {
		s.submit("agent:beta", ScorePositive, 100)
		s.submit("agent:beta", ScoreNegative, 1)

		score, err := s.service.Score(ctx, "agent:beta")
		s.NoError(err)
		s.Equal(99, score)
	})
}

func (s *LedgerServiceSuite) TestMeetsThreshold() {
	ctx := context.Background()

	s.Run("neutral subject meets a threshold of 50 but not 51", func() {
		ok, err := s.service.MeetsThreshold(ctx, "agent:alpha", 50)
		s.NoError(err)
		s.True(ok)

		ok, err = s.service.MeetsThreshold(ctx, "agent:alpha", 51)
		s.NoError(err)
		s.False(ok)
	})

	s.Run("threshold agrees with the derived score", func() {
		s.submit("agent:alpha", ScorePositive, 3)
		s.submit("agent:alpha", ScoreNegative, 1)
		// 3/4 positive -> 75

		ok, err := s.service.MeetsThreshold(ctx, "agent:alpha", 75)
		s.NoError(err)
		s.True(ok)

		ok, err = s.service.MeetsThreshold(ctx, "agent:alpha", 76)
		s.NoError(err)
		s.False(ok)
	})
}

func (s *LedgerServiceSuite) TestObservers() {
	var events []FeedbackRecorded
	s.service.Subscribe(ObserverFunc(func(ctx context.Context, e FeedbackRecorded) {
		events = append(events, e)
	}))

	s.submit("agent:alpha", ScorePositive, 10)

	s.Require().Len(events, 1)
	s.Equal(id.SubjectKey("agent:alpha"), events[0].Subject)
	s.Equal(ScorePositive, events[0].Score)
	s.Equal(100, events[0].NewScore, "observer sees the post-update score")
	s.WithinDuration(time.Now(), events[0].RecordedAt, time.Minute)
}

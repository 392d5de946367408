//go:build integration

package postgres_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"trustgate/internal/reputation"
	"trustgate/internal/reputation/store/postgres"
	id "trustgate/pkg/domain"
	"trustgate/pkg/platform/sentinel"
	"trustgate/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *postgres.Store
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.Require().NoError(postgres.Migrate(context.Background(), s.postgres.DB))
	s.store = postgres.New(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	err := s.postgres.TruncateTables(context.Background(), "feedback_records", "reputation_aggregates")
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) TestAppendKeepsRecordAndAggregateInStep() {
	ctx := context.Background()
	subject := id.SubjectKey("agent:alpha")

	agg, err := s.store.Append(ctx, reputation.FeedbackRecord{
		Subject:   subject,
		Submitter: "agent:beta",
		Score:     reputation.ScorePositive,
		Weight:    10,
		Evidence:  "order-123",
		Timestamp: time.Now().UTC(),
	})
	s.Require().NoError(err)
	s.Equal(10.0, agg.PositiveWeight)
	s.Equal(int64(1), agg.FeedbackCount)

	agg, err = s.store.Append(ctx, reputation.FeedbackRecord{
		Subject:   subject,
		Submitter: "agent:beta",
		Score:     reputation.ScoreNegative,
		Weight:    5,
		Timestamp: time.Now().UTC(),
	})
	s.Require().NoError(err)
	s.Equal(15.0, agg.TotalWeight)
	s.Equal(int64(2), agg.FeedbackCount)

	found, err := s.store.FindAggregate(ctx, subject)
	s.Require().NoError(err)
	s.Equal(agg.PositiveWeight, found.PositiveWeight)
	s.Equal(agg.TotalWeight, found.TotalWeight)
	s.Equal(67, found.Score())

	recs, err := s.store.ListBySubject(ctx, subject)
	s.Require().NoError(err)
	s.Require().Len(recs, 2)
	s.Equal(reputation.ScorePositive, recs[0].Score)
	s.Equal("order-123", recs[0].Evidence)
	s.Equal(reputation.ScoreNegative, recs[1].Score)
}

func (s *PostgresStoreSuite) TestFindAggregateUnknownSubject() {
	_, err := s.store.FindAggregate(context.Background(), "agent:ghost")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestConcurrentAppendsStayConsistent() {
	ctx := context.Background()
	subject := id.SubjectKey("agent:alpha")
	const writers = 20

	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.store.Append(ctx, reputation.FeedbackRecord{
				Subject:   subject,
				Submitter: "agent:beta",
				Score:     reputation.ScorePositive,
				Weight:    1,
				Timestamp: time.Now().UTC(),
			})
			s.NoError(err)
		}()
	}
	wg.Wait()

	agg, err := s.store.FindAggregate(ctx, subject)
	s.Require().NoError(err)
	s.Equal(int64(writers), agg.FeedbackCount)
	s.Equal(float64(writers), agg.TotalWeight)

	recs, err := s.store.ListBySubject(ctx, subject)
	s.Require().NoError(err)
	s.Len(recs, writers)
}

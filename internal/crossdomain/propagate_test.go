package crossdomain_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trustgate/internal/crossdomain"
	"trustgate/internal/crossdomain/store/memory"
	"trustgate/internal/reputation"
	id "trustgate/pkg/domain"
)

func TestPropagatorPublishesToEveryTrustedRemote(t *testing.T) {
	ctx := context.Background()
	scorer := &stubScorer{scores: map[id.SubjectKey]int{"agent:alpha": 100}}
	transport := &capturingTransport{}

	service, err := crossdomain.NewService(scorer, memory.NewTrustStore(), memory.NewRemoteStore(), transport)
	require.NoError(t, err)
	require.NoError(t, service.SetTrustedRemote(ctx, "domain-a", "key-a"))
	require.NoError(t, service.SetTrustedRemote(ctx, "domain-b", "key-b"))

	propagator := crossdomain.NewPropagator(service, nil)
	propagator.OnFeedbackRecorded(ctx, reputation.FeedbackRecorded{
		Subject:  "agent:alpha",
		Score:    reputation.ScorePositive,
		NewScore: 100,
	})

	require.Len(t, transport.payloads, 2)
	assert.ElementsMatch(t, []id.DomainID{"domain-a", "domain-b"}, transport.domains)
}

func TestPropagatorWithNoRemotesIsQuiet(t *testing.T) {
	ctx := context.Background()
	scorer := &stubScorer{scores: map[id.SubjectKey]int{}}
	transport := &capturingTransport{}

	service, err := crossdomain.NewService(scorer, memory.NewTrustStore(), memory.NewRemoteStore(), transport)
	require.NoError(t, err)

	propagator := crossdomain.NewPropagator(service, nil)
	propagator.OnFeedbackRecorded(ctx, reputation.FeedbackRecorded{Subject: "agent:alpha"})

	assert.Empty(t, transport.payloads)
}

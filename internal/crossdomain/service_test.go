package crossdomain_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"trustgate/internal/crossdomain"
	"trustgate/internal/crossdomain/store/memory"
	id "trustgate/pkg/domain"
	dErrors "trustgate/pkg/domain-errors"
)

type stubScorer struct {
	scores map[id.SubjectKey]int
}

func (s *stubScorer) Score(ctx context.Context, subject id.SubjectKey) (int, error) {
	if score, ok := s.scores[subject]; ok {
		return score, nil
	}
	return 50, nil
}

type capturingTransport struct {
	domains  []id.DomainID
	payloads [][]byte
}

func (t *capturingTransport) Deliver(ctx context.Context, domain id.DomainID, payload []byte) (crossdomain.MessageHandle, error) {
	t.domains = append(t.domains, domain)
	t.payloads = append(t.payloads, payload)
	return crossdomain.MessageHandle(fmt.Sprintf("capture/%d", len(t.payloads))), nil
}

type SyncServiceSuite struct {
	suite.Suite
	scorer    *stubScorer
	trusted   *memory.InMemoryTrustStore
	remotes   *memory.InMemoryRemoteStore
	transport *capturingTransport
	service   *crossdomain.Service
}

func TestSyncServiceSuite(t *testing.T) {
	suite.Run(t, new(SyncServiceSuite))
}

func (s *SyncServiceSuite) SetupTest() {
	s.scorer = &stubScorer{scores: map[id.SubjectKey]int{"agent:alpha": 100}}
	s.trusted = memory.NewTrustStore()
	s.remotes = memory.NewRemoteStore()
	s.transport = &capturingTransport{}

	var err error
	s.service, err = crossdomain.NewService(s.scorer, s.trusted, s.remotes, s.transport)
	s.Require().NoError(err)
}

// trust configures domain-a as a trusted remote with a known authority.
func (s *SyncServiceSuite) trust(domain id.DomainID, key crossdomain.AuthorityKey) {
	s.Require().NoError(s.service.SetTrustedRemote(context.Background(), domain, key))
}

func (s *SyncServiceSuite) syncPayload(subject id.SubjectKey, score int) []byte {
	payload, err := json.Marshal(crossdomain.SyncMessage{
		MsgType:   crossdomain.MsgTypeSync,
		Subject:   subject,
		Score:     score,
		Timestamp: time.Now(),
	})
	s.Require().NoError(err)
	return payload
}

func (s *SyncServiceSuite) TestNewService() {
	s.Run("nil collaborators return errors", func() {
		_, err := crossdomain.NewService(nil, s.trusted, s.remotes, s.transport)
		s.Error(err)
		_, err = crossdomain.NewService(s.scorer, nil, s.remotes, s.transport)
		s.Error(err)
		_, err = crossdomain.NewService(s.scorer, s.trusted, nil, s.transport)
		s.Error(err)
		_, err = crossdomain.NewService(s.scorer, s.trusted, s.remotes, nil)
		s.Error(err)
	})
}

func (s *SyncServiceSuite) TestSetTrustedRemote() {
	ctx := context.Background()

	s.Run("requires domain and key", func() {
		err := s.service.SetTrustedRemote(ctx, "", "key-1")
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))

		err = s.service.SetTrustedRemote(ctx, "domain-a", "")
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("upsert replaces the authority key", func() {
		s.trust("domain-a", "key-old")
		s.trust("domain-a", "key-new")

		remotes, err := s.service.TrustedRemotes(ctx)
		s.NoError(err)
		s.Equal(crossdomain.AuthorityKey("key-new"), remotes["domain-a"])
	})
}

func (s *SyncServiceSuite) TestPublish() {
	ctx := context.Background()

	s.Run("untrusted domain is rejected before delivery", func() {
		_, err := s.service.Publish(ctx, "agent:alpha", "domain-x")
		s.True(dErrors.HasCode(err, dErrors.CodeUnknownRemoteDomain))
		s.Empty(s.transport.payloads)
	})

	s.Run("trusted domain receives the local score", func() {
		s.trust("domain-a", "key-1")

		handle, err := s.service.Publish(ctx, "agent:alpha", "domain-a")
		s.NoError(err)
		s.NotEmpty(handle)
		s.Require().Len(s.transport.payloads, 1)
		s.Equal(id.DomainID("domain-a"), s.transport.domains[0])

		var msg crossdomain.SyncMessage
		s.Require().NoError(json.Unmarshal(s.transport.payloads[0], &msg))
		s.Equal(crossdomain.MsgTypeSync, msg.MsgType)
		s.Equal(id.SubjectKey("agent:alpha"), msg.Subject)
		s.Equal(100, msg.Score)
		s.False(msg.Timestamp.IsZero())
	})
}

func (s *SyncServiceSuite) TestReceive() {
	ctx := context.Background()

	s.Run("unknown origin mutates nothing", func() {
		err := s.service.Receive(ctx, "domain-x", "key-x", s.syncPayload("agent:alpha", 80))
		s.True(dErrors.HasCode(err, dErrors.CodeUntrustedSender))

		entries, err := s.service.RemoteEntries(ctx, "agent:alpha")
		s.NoError(err)
		s.Empty(entries)
	})

	s.Run("authority mismatch mutates nothing", func() {
		s.trust("domain-a", "key-1")

		err := s.service.Receive(ctx, "domain-a", "key-forged", s.syncPayload("agent:alpha", 80))
		s.True(dErrors.HasCode(err, dErrors.CodeUntrustedSender))

		entries, err := s.service.RemoteEntries(ctx, "agent:alpha")
		s.NoError(err)
		s.Empty(entries)
	})

	s.Run("malformed payload is rejected", func() {
		s.trust("domain-a", "key-1")
		err := s.service.Receive(ctx, "domain-a", "key-1", []byte("{not json"))
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("unknown message type is ignored without error", func() {
		s.trust("domain-a", "key-1")
		payload := []byte(`{"msg_type":"REVOKE","subject":"agent:alpha","score":10}`)

		err := s.service.Receive(ctx, "domain-a", "key-1", payload)
		s.NoError(err)

		entries, err := s.service.RemoteEntries(ctx, "agent:alpha")
		s.NoError(err)
		s.Empty(entries)
	})

	s.Run("score outside range is rejected", func() {
		s.trust("domain-a", "key-1")
		err := s.service.Receive(ctx, "domain-a", "key-1", s.syncPayload("agent:alpha", 101))
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("accepted message creates the remote entry", func() {
		s.trust("domain-a", "key-1")
		err := s.service.Receive(ctx, "domain-a", "key-1", s.syncPayload("agent:alpha", 80))
		s.NoError(err)

		entries, err := s.service.RemoteEntries(ctx, "agent:alpha")
		s.NoError(err)
		s.Require().Len(entries, 1)
		s.Equal(80, entries[0].Score)
		s.Equal(id.DomainID("domain-a"), entries[0].Domain)
	})

	s.Run("later arrival overwrites even with an older claimed timestamp", func() {
		s.trust("domain-a", "key-1")
		s.Require().NoError(s.service.Receive(ctx, "domain-a", "key-1", s.syncPayload("agent:alpha", 80)))

		stale, err := json.Marshal(crossdomain.SyncMessage{
			MsgType:   crossdomain.MsgTypeSync,
			Subject:   "agent:alpha",
			Score:     20,
			Timestamp: time.Now().Add(-24 * time.Hour),
		})
		s.Require().NoError(err)
		s.Require().NoError(s.service.Receive(ctx, "domain-a", "key-1", stale))

		entries, err := s.service.RemoteEntries(ctx, "agent:alpha")
		s.NoError(err)
		s.Require().Len(entries, 1)
		s.Equal(20, entries[0].Score, "last write wins by arrival")
	})
}

func (s *SyncServiceSuite) TestAggregatedScore() {
	ctx := context.Background()
	s.trust("domain-a", "key-a")
	s.trust("domain-b", "key-b")

	s.Run("no synced entries yields the local score", func() {
		score, err := s.service.AggregatedScore(ctx, "agent:alpha", []id.DomainID{"domain-a", "domain-b"})
		s.NoError(err)
		s.Equal(100, score)
	})

	s.Run("mean truncates toward zero", func() {
		s.Require().NoError(s.service.Receive(ctx, "domain-a", "key-a", s.syncPayload("agent:alpha", 90)))
		s.Require().NoError(s.service.Receive(ctx, "domain-b", "key-b", s.syncPayload("agent:alpha", 70)))

		// (100 + 90 + 70) / 3 = 86.67 -> 86
		score, err := s.service.AggregatedScore(ctx, "agent:alpha", []id.DomainID{"domain-a", "domain-b"})
		s.NoError(err)
		s.Equal(86, score)
	})

	s.Run("never-synced domains are excluded rather than counted as zero", func() {
		// agent:beta has no score configured locally (defaults to 50) and has
		// only ever synced with domain-a.
		s.Require().NoError(s.service.Receive(ctx, "domain-a", "key-a", s.syncPayload("agent:beta", 90)))

		score, err := s.service.AggregatedScore(ctx, "agent:beta", []id.DomainID{"domain-a", "domain-b"})
		s.NoError(err)
		s.Equal(70, score)
	})
}

func (s *SyncServiceSuite) TestMeetsThresholdAcrossDomains() {
	ctx := context.Background()
	s.trust("domain-a", "key-a")
	s.Require().NoError(s.service.Receive(ctx, "domain-a", "key-a", s.syncPayload("agent:alpha", 80)))

	s.Run("passes when local and every synced entry clear the floor", func() {
		ok, err := s.service.MeetsThresholdAcrossDomains(ctx, "agent:alpha", 70, []id.DomainID{"domain-a"})
		s.NoError(err)
		s.True(ok)
	})

	s.Run("one weak remote vetoes", func() {
		ok, err := s.service.MeetsThresholdAcrossDomains(ctx, "agent:alpha", 90, []id.DomainID{"domain-a"})
		s.NoError(err)
		s.False(ok)
	})

	s.Run("low local score vetoes regardless of remotes", func() {
		s.scorer.scores["agent:alpha"] = 40
		ok, err := s.service.MeetsThresholdAcrossDomains(ctx, "agent:alpha", 70, []id.DomainID{"domain-a"})
		s.NoError(err)
		s.False(ok)
	})

	s.Run("never-synced domains are skipped", func() {
		s.scorer.scores["agent:alpha"] = 100
		ok, err := s.service.MeetsThresholdAcrossDomains(ctx, "agent:alpha", 70, []id.DomainID{"domain-a", "domain-z"})
		s.NoError(err)
		s.True(ok)
	})
}

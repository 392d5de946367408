package crossdomain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	id "trustgate/pkg/domain"
	dErrors "trustgate/pkg/domain-errors"
	"trustgate/pkg/platform/sentinel"
	"trustgate/pkg/requestcontext"
)

// LocalScorer provides the local ledger's contribution to aggregation.
// Satisfied by reputation.Service.
type LocalScorer interface {
	Score(ctx context.Context, subject id.SubjectKey) (int, error)
}

// Transport delivers a serialized sync payload to a named remote domain and
// returns an opaque delivery handle. Delivery is asynchronous and unordered;
// retries on failure are the caller's responsibility. Implementations live
// under transport/.
type Transport interface {
	Deliver(ctx context.Context, domain id.DomainID, payload []byte) (MessageHandle, error)
}

// Service extends a subject's reputation view with scores reported by trusted
// remote ledgers. Per (subject, domain) pair the state machine is
// Unknown -> Synced on first accepted message, re-entering Synced on every
// refresh; entries persist indefinitely as a cache of last-known opinion.
type Service struct {
	local     LocalScorer
	trusted   TrustStore
	remotes   RemoteStore
	transport Transport
	logger    *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// NewService constructs the sync service.
func NewService(local LocalScorer, trusted TrustStore, remotes RemoteStore, tp Transport, opts ...Option) (*Service, error) {
	if local == nil {
		return nil, fmt.Errorf("local scorer is required")
	}
	if trusted == nil {
		return nil, fmt.Errorf("trust store is required")
	}
	if remotes == nil {
		return nil, fmt.Errorf("remote store is required")
	}
	if tp == nil {
		return nil, fmt.Errorf("transport is required")
	}
	svc := &Service{
		local:     local,
		trusted:   trusted,
		remotes:   remotes,
		transport: tp,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// SetTrustedRemote configures the authority key for a remote domain.
// Idempotent upsert, last write wins. Caller authorization is enforced at the
// admin transport layer, not here.
func (s *Service) SetTrustedRemote(ctx context.Context, domain id.DomainID, key AuthorityKey) error {
	if domain == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "remote domain id is required")
	}
	if key == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "authority key is required")
	}
	if err := s.trusted.Upsert(ctx, domain, key); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "store trusted remote")
	}
	return nil
}

// TrustedRemotes returns the current configuration set.
func (s *Service) TrustedRemotes(ctx context.Context) (map[id.DomainID]AuthorityKey, error) {
	remotes, err := s.trusted.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list trusted remotes")
	}
	return remotes, nil
}

// Publish reads the subject's local score, packages it as a SYNC message, and
// hands it to the transport. Transport failures are returned as-is for the
// caller to retry; nothing is retried internally.
//
// Errors: CodeUnknownRemoteDomain when the domain has no configured authority.
func (s *Service) Publish(ctx context.Context, subject id.SubjectKey, domain id.DomainID) (MessageHandle, error) {
	if _, err := s.trusted.Find(ctx, domain); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return "", dErrors.Newf(dErrors.CodeUnknownRemoteDomain, "remote domain %s is not trusted", domain)
		}
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "trusted remote lookup")
	}

	score, err := s.local.Score(ctx, subject)
	if err != nil {
		return "", err
	}

	msg := SyncMessage{
		MsgType:   MsgTypeSync,
		Subject:   subject,
		Score:     score,
		Timestamp: requestcontext.Now(ctx),
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "encode sync message")
	}

	handle, err := s.transport.Deliver(ctx, domain, payload)
	if err != nil {
		return "", err
	}
	s.logger.DebugContext(ctx, "published reputation",
		"subject", subject,
		"domain", domain,
		"score", score,
		"handle", handle,
	)
	return handle, nil
}

// Receive processes one inbound sync payload.
//
// The authority check against the configured TrustedRemote is enforced here
// even when the transport already authenticates the channel: defense in depth
// against a misconfigured or compromised relay. An untrusted sender mutates
// no state. Unknown message types are ignored for forward compatibility.
//
// Accepted SYNC messages overwrite the (subject, origin) entry
// unconditionally; last write wins by arrival, with no staleness guard on the
// claimed timestamp.
func (s *Service) Receive(ctx context.Context, origin id.DomainID, authority AuthorityKey, payload []byte) error {
	expected, err := s.trusted.Find(ctx, origin)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.Newf(dErrors.CodeUntrustedSender, "origin domain %s is not trusted", origin)
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "trusted remote lookup")
	}
	if authority != expected {
		return dErrors.Newf(dErrors.CodeUntrustedSender, "authority mismatch for domain %s", origin)
	}

	var msg SyncMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return dErrors.New(dErrors.CodeInvalidInput, "malformed sync payload")
	}
	if msg.MsgType != MsgTypeSync {
		s.logger.DebugContext(ctx, "ignoring unknown sync message type",
			"origin", origin,
			"msg_type", msg.MsgType,
		)
		return nil
	}
	if msg.Subject.IsZero() {
		return dErrors.New(dErrors.CodeInvalidInput, "sync message subject is required")
	}
	if msg.Score < 0 || msg.Score > 100 {
		return dErrors.New(dErrors.CodeInvalidInput, "sync message score must be in [0,100]")
	}

	entry := RemoteEntry{
		Subject:    msg.Subject,
		Domain:     origin,
		Score:      msg.Score,
		ObservedAt: msg.Timestamp,
		ReceivedAt: requestcontext.Now(ctx),
	}
	if err := s.remotes.Put(ctx, entry); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "store remote entry")
	}
	s.logger.DebugContext(ctx, "accepted remote reputation",
		"subject", msg.Subject,
		"origin", origin,
		"score", msg.Score,
	)
	return nil
}

// AggregatedScore returns the mean of the local score and each listed
// domain's entry, when one has been synced. Never-synced domains are
// excluded, not treated as zero. Integer division truncates.
func (s *Service) AggregatedScore(ctx context.Context, subject id.SubjectKey, domains []id.DomainID) (int, error) {
	local, err := s.local.Score(ctx, subject)
	if err != nil {
		return 0, err
	}

	sum := local
	count := 1
	for _, domain := range domains {
		entry, err := s.remotes.Find(ctx, subject, domain)
		if errors.Is(err, sentinel.ErrNotFound) {
			continue
		}
		if err != nil {
			return 0, dErrors.Wrap(err, dErrors.CodeInternal, "read remote entry")
		}
		sum += entry.Score
		count++
	}
	return sum / count, nil
}

// MeetsThresholdAcrossDomains requires the local score and every listed
// domain with a synced entry to individually reach minScore. A single weak
// remote vetoes the check, unlike the averaging in AggregatedScore.
func (s *Service) MeetsThresholdAcrossDomains(ctx context.Context, subject id.SubjectKey, minScore int, domains []id.DomainID) (bool, error) {
	local, err := s.local.Score(ctx, subject)
	if err != nil {
		return false, err
	}
	if local < minScore {
		return false, nil
	}
	for _, domain := range domains {
		entry, err := s.remotes.Find(ctx, subject, domain)
		if errors.Is(err, sentinel.ErrNotFound) {
			continue
		}
		if err != nil {
			return false, dErrors.Wrap(err, dErrors.CodeInternal, "read remote entry")
		}
		if entry.Score < minScore {
			return false, nil
		}
	}
	return true, nil
}

// RemoteEntries exposes the cached entries for observability surfaces.
func (s *Service) RemoteEntries(ctx context.Context, subject id.SubjectKey) ([]RemoteEntry, error) {
	entries, err := s.remotes.ListBySubject(ctx, subject)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list remote entries")
	}
	return entries, nil
}

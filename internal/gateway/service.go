// Package gateway is the request-time decision engine: it composes stake,
// reputation, and behavioral risk into a pass/price/deny verdict and hands
// out resumable session credentials so repeated decisions are not re-derived
// from scratch.
package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"trustgate/internal/crossdomain"
	"trustgate/internal/gateway/metrics"
	"trustgate/internal/gateway/ports"
	"trustgate/internal/gateway/pow"
	"trustgate/internal/gateway/pricing"
	"trustgate/internal/gateway/risk"
	"trustgate/internal/gateway/session"
	id "trustgate/pkg/domain"
	dErrors "trustgate/pkg/domain-errors"
)

// enrichTimeout bounds the post-admission enrichment fan-out.
const enrichTimeout = 2 * time.Second

// Policy holds the admission thresholds and issuance defaults.
type Policy struct {
	RequireRegistration bool
	MinStake            float64
	MinReputation       int
	MaxPayloadBytes     int64
	SessionTTL          time.Duration
	SessionMaxRequests  int
	SessionMaxCost      float64
}

// Service runs the admission pipeline. All collaborators are injected; the
// service owns no global state.
type Service struct {
	policy    Policy
	registry  ports.Registration
	stake     ports.Stake
	payments  ports.PaymentVerifier
	enrichers []ports.Enricher

	sync     *crossdomain.Service
	risk     *risk.Service
	pow      *pow.Service
	sessions *session.Service
	pricing  *pricing.Engine

	logger  *slog.Logger
	metrics *metrics.Metrics
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithMetrics attaches Prometheus instruments.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithPaymentVerifier attaches the settlement verifier collaborator.
func WithPaymentVerifier(v ports.PaymentVerifier) Option {
	return func(s *Service) { s.payments = v }
}

// WithEnrichers attaches optional enrichment providers.
func WithEnrichers(enrichers ...ports.Enricher) Option {
	return func(s *Service) { s.enrichers = enrichers }
}

// NewService constructs the gateway.
func NewService(
	policy Policy,
	registry ports.Registration,
	stake ports.Stake,
	sync *crossdomain.Service,
	riskSvc *risk.Service,
	powSvc *pow.Service,
	sessions *session.Service,
	pricingEngine *pricing.Engine,
	opts ...Option,
) (*Service, error) {
	if registry == nil {
		return nil, fmt.Errorf("registration port is required")
	}
	if stake == nil {
		return nil, fmt.Errorf("stake port is required")
	}
	if sync == nil {
		return nil, fmt.Errorf("cross-domain sync service is required")
	}
	if riskSvc == nil {
		return nil, fmt.Errorf("risk service is required")
	}
	if powSvc == nil {
		return nil, fmt.Errorf("proof-of-work service is required")
	}
	if sessions == nil {
		return nil, fmt.Errorf("session service is required")
	}
	if pricingEngine == nil {
		return nil, fmt.Errorf("pricing engine is required")
	}
	svc := &Service{
		policy:   policy,
		registry: registry,
		stake:    stake,
		sync:     sync,
		risk:     riskSvc,
		pow:      powSvc,
		sessions: sessions,
		pricing:  pricingEngine,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Admit evaluates one request through the pipeline in strict order; the first
// triggered outcome short-circuits the rest.
func (s *Service) Admit(ctx context.Context, req AdmitRequest) (*Decision, error) {
	start := time.Now()
	decision, err := s.admit(ctx, req)
	if s.metrics != nil {
		s.metrics.PipelineTime.Observe(float64(time.Since(start).Microseconds()) / 1000.0)
		if decision != nil {
			s.metrics.ObserveDecision(string(decision.Outcome))
		}
	}
	return decision, err
}

func (s *Service) admit(ctx context.Context, req AdmitRequest) (*Decision, error) {
	// Step 1: session fast path. A failing credential is never fatal; it
	// falls through to the full pipeline.
	if req.Credential != "" {
		sess, err := s.sessions.Verify(ctx, req.Credential, req.Path, req.Cost)
		if err == nil {
			s.risk.RecordRequest(ctx, sess.Subject)
			return &Decision{
				Outcome:    OutcomeAdmitted,
				SessionID:  sess.ID,
				Credential: req.Credential,
				FastPath:   true,
			}, nil
		}
		if !dErrors.HasCode(err, dErrors.CodeSessionInvalid) {
			return nil, err
		}
		s.logger.DebugContext(ctx, "session fast path declined", "error", err)
	}

	// Step 2: proof-of-work gate.
	if s.pow.Enabled() {
		solved := false
		if req.ChallengeID != "" {
			challengeID, err := id.ParseChallengeID(req.ChallengeID)
			if err == nil {
				if err := s.pow.Redeem(ctx, challengeID, req.ChallengeSolution); err == nil {
					solved = true
				}
			}
		}
		if !solved {
			ch, err := s.pow.Issue(ctx)
			if err != nil {
				return nil, err
			}
			return &Decision{
				Outcome:   OutcomeChallengeRequired,
				Reason:    "solve the attached proof-of-work challenge and retry",
				Challenge: &ch,
			}, nil
		}
	}

	// Step 3: identity resolution.
	subject, err := s.resolveSubject(ctx, req)
	if err != nil {
		return nil, err
	}
	if subject.IsZero() {
		return &Decision{
			Outcome: OutcomeDenied,
			Reason:  "registration required: identifier resolves to no subject",
			Code:    dErrors.CodeUnknownSubject,
		}, nil
	}

	// Step 4: behavioral risk.
	oversized := s.policy.MaxPayloadBytes > 0 && req.PayloadSize > s.policy.MaxPayloadBytes
	assessment := s.risk.Assess(ctx, subject, oversized)
	if s.metrics != nil {
		s.metrics.RiskScore.Observe(float64(assessment.Score))
	}
	trust := TrustBreakdown{
		Risk:        assessment.Score,
		RiskFactors: assessment.Factors,
	}
	if assessment.Blocked {
		s.risk.RecordFailure(ctx, subject)
		return &Decision{
			Outcome: OutcomeDenied,
			Reason:  fmt.Sprintf("excessive risk: score %d exceeds %d or %d+ abuse flags", assessment.Score, risk.BlockThreshold, risk.BlockFlagCount),
			Code:    dErrors.CodeExcessiveRisk,
			Trust:   trust,
		}, nil
	}

	// Step 5: minimum-bar checks.
	stakeAmount, err := s.stake.EffectiveStake(ctx, subject)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "stake lookup failed")
	}
	trust.Stake = stakeAmount

	aggregated, err := s.sync.AggregatedScore(ctx, subject, s.domainsFor(ctx, req))
	if err != nil {
		return nil, err
	}
	trust.Reputation = aggregated
	trust.AggregatedReputation = aggregated
	trust.IsNewSubject = s.risk.IsNew(subject)

	if stakeAmount < s.policy.MinStake {
		s.risk.RecordFailure(ctx, subject)
		return &Decision{
			Outcome: OutcomeDenied,
			Reason:  fmt.Sprintf("insufficient stake: have %.4f, need %.4f", stakeAmount, s.policy.MinStake),
			Code:    dErrors.CodeInsufficientStake,
			Trust:   trust,
		}, nil
	}
	if aggregated < s.policy.MinReputation {
		s.risk.RecordFailure(ctx, subject)
		return &Decision{
			Outcome: OutcomeDenied,
			Reason:  fmt.Sprintf("insufficient reputation: have %d, need %d", aggregated, s.policy.MinReputation),
			Code:    dErrors.CodeInsufficientReputation,
			Trust:   trust,
		}, nil
	}

	// Step 6: dynamic pricing.
	quote := s.pricing.Quote(pricing.Input{
		Reputation: aggregated,
		Risk:       assessment.Score,
		Stake:      stakeAmount,
		IsNew:      trust.IsNewSubject,
	})
	if s.metrics != nil {
		s.metrics.QuotedPrice.Observe(quote.FinalPrice)
	}

	// Step 7: payment check. Presence only; settlement correctness is the
	// external verifier's job.
	if len(req.PaymentEvidence) == 0 {
		return &Decision{
			Outcome: OutcomePaymentRequired,
			Reason:  "attach payment evidence for the quoted price and retry",
			Trust:   trust,
			Price:   &quote,
		}, nil
	}

	// Step 8: full admission.
	s.risk.RecordRequest(ctx, subject)

	caveats := session.Caveats{
		TTL:               s.policy.SessionTTL,
		MaxRequests:       s.policy.SessionMaxRequests,
		MaxCumulativeCost: s.policy.SessionMaxCost,
	}
	if req.Path != "" {
		caveats.PathPatterns = []string{req.Path}
	}
	credential, sessionID, err := s.sessions.Issue(ctx, subject, caveats)
	if err != nil {
		return nil, err
	}

	decision := &Decision{
		Outcome:    OutcomeAdmitted,
		Trust:      trust,
		Price:      &quote,
		Credential: credential,
		SessionID:  sessionID,
	}
	decision.Payment = s.describePayment(ctx, req.PaymentEvidence, quote)
	decision.Enrichments = s.enrich(ctx, subject)
	return decision, nil
}

// RevokeSession kills one credential; admin surface.
func (s *Service) RevokeSession(ctx context.Context, sessionID id.SessionID) error {
	return s.sessions.Revoke(ctx, sessionID, s.policy.SessionTTL)
}

// FlagSubject records an abuse flag; admin surface.
func (s *Service) FlagSubject(ctx context.Context, subject id.SubjectKey, reason string) error {
	if reason == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "flag reason is required")
	}
	s.risk.AddFlag(ctx, subject, reason)
	return nil
}

func (s *Service) resolveSubject(ctx context.Context, req AdmitRequest) (id.SubjectKey, error) {
	if !req.Subject.IsZero() {
		return req.Subject, nil
	}
	if req.Identifier == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "identifier or subject is required")
	}
	subject, err := s.registry.ResolveSubject(ctx, req.Identifier)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "subject resolution failed")
	}
	if subject.IsZero() && !s.policy.RequireRegistration {
		// Unregistered callers are still tracked for risk by identifier.
		return id.ParseSubjectKey(req.Identifier)
	}
	return subject, nil
}

// domainsFor defaults to every trusted remote when the request does not
// restrict the view.
func (s *Service) domainsFor(ctx context.Context, req AdmitRequest) []id.DomainID {
	if len(req.Domains) > 0 {
		return req.Domains
	}
	remotes, err := s.sync.TrustedRemotes(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "trusted remote listing failed, using local view", "error", err)
		return nil
	}
	domains := make([]id.DomainID, 0, len(remotes))
	for domain := range remotes {
		domains = append(domains, domain)
	}
	return domains
}

// describePayment consults the settlement verifier for its view of the
// attached evidence. Advisory only; a verifier fault degrades to nil.
func (s *Service) describePayment(ctx context.Context, evidence []byte, quote pricing.Quote) *ports.PaymentResult {
	if s.payments == nil {
		return nil
	}
	result, err := s.payments.Verify(ctx, evidence, ports.PaymentRequirement{Amount: quote.FinalPrice})
	if err != nil {
		s.logger.WarnContext(ctx, "payment verifier unavailable", "error", err)
		return nil
	}
	return &result
}

// enrich fans out to all providers with a shared deadline. Providers never
// gate admission; a failure degrades that provider to neutral output.
func (s *Service) enrich(ctx context.Context, subject id.SubjectKey) []EnrichmentResult {
	if len(s.enrichers) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, enrichTimeout)
	defer cancel()

	results := make([]EnrichmentResult, len(s.enrichers))
	g, ctx := errgroup.WithContext(ctx)
	for i, enricher := range s.enrichers {
		g.Go(func() error {
			out, err := enricher.Enrich(ctx, subject)
			if err != nil {
				s.logger.WarnContext(ctx, "enrichment degraded",
					"provider", enricher.Name(),
					"subject", subject,
					"error", err,
				)
				results[i] = EnrichmentResult{Provider: enricher.Name(), Degraded: true}
				return nil
			}
			results[i] = EnrichmentResult{Provider: enricher.Name(), Enrichment: out}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

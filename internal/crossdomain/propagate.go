package crossdomain

import (
	"context"
	"log/slog"

	"trustgate/internal/reputation"
)

// Propagator republishes a subject's score to every trusted remote whenever
// local feedback lands. Wire it up with reputation.Service.Subscribe.
// Delivery failures are logged and dropped; remotes converge on the next
// accepted feedback for the subject.
type Propagator struct {
	sync   *Service
	logger *slog.Logger
}

// NewPropagator constructs the outbound propagation observer.
func NewPropagator(sync *Service, logger *slog.Logger) *Propagator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Propagator{sync: sync, logger: logger}
}

// OnFeedbackRecorded implements reputation.Observer.
func (p *Propagator) OnFeedbackRecorded(ctx context.Context, event reputation.FeedbackRecorded) {
	remotes, err := p.sync.TrustedRemotes(ctx)
	if err != nil {
		p.logger.ErrorContext(ctx, "propagation skipped, cannot list remotes", "error", err)
		return
	}
	for domain := range remotes {
		if _, err := p.sync.Publish(ctx, event.Subject, domain); err != nil {
			p.logger.WarnContext(ctx, "propagation to remote failed",
				"subject", event.Subject,
				"domain", domain,
				"error", err,
			)
		}
	}
}

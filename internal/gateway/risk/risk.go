// Package risk maintains ephemeral per-subject behavioral profiles and turns
// them into a [0,100] risk value. Profiles are a defense-in-depth signal, not
// a ledger: they live in process memory only and rebuild from zero on
// restart.
package risk

import (
	"context"
	"sync"
	"time"

	id "trustgate/pkg/domain"
	"trustgate/pkg/requestcontext"
)

// Window bounds how long request timestamps are retained.
const Window = time.Hour

// Scoring weights and thresholds.
const (
	burstHighPerMin  = 30
	burstLowPerMin   = 10
	failuresHigh     = 10
	failuresLow      = 5
	newSubjectFloor  = 5
	weightBurstHigh  = 20
	weightBurstLow   = 10
	weightFailHigh   = 30
	weightFailLow    = 15
	weightPerFlag    = 10
	weightNewSubject = 15
	weightOversized  = 10

	// BlockThreshold is the hard cutoff: above it a request is denied
	// regardless of reputation or stake.
	BlockThreshold = 80
	// BlockFlagCount denies outright once this many abuse flags are active.
	BlockFlagCount = 3
)

// Flag is one recorded abuse observation.
type Flag struct {
	Reason    string    `json:"reason"`
	FlaggedAt time.Time `json:"flagged_at"`
}

// profile is the mutable per-subject state. All mutation happens under the
// per-profile mutex; append-then-prune is not safe unsynchronized.
type profile struct {
	mu         sync.Mutex
	timestamps []time.Time
	failures   int
	flags      []Flag
	total      int64
}

// Assessment is the scored snapshot the gateway consumes.
type Assessment struct {
	Score         int      `json:"score"`
	Blocked       bool     `json:"blocked"`
	Factors       []string `json:"factors,omitempty"`
	FlagCount     int      `json:"flag_count"`
	TotalRequests int64    `json:"total_requests"`
}

// Service owns the profile map. Per-subject atomicity only; no cross-subject
// ordering is guaranteed or needed.
type Service struct {
	mu       sync.Mutex
	profiles map[id.SubjectKey]*profile
}

// NewService creates an empty risk service.
func NewService() *Service {
	return &Service{profiles: make(map[id.SubjectKey]*profile)}
}

func (s *Service) getOrCreate(subject id.SubjectKey) *profile {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[subject]
	if !ok {
		p = &profile{}
		s.profiles[subject] = p
	}
	return p
}

// RecordRequest appends a request timestamp and prunes the rolling window.
func (s *Service) RecordRequest(ctx context.Context, subject id.SubjectKey) {
	now := requestcontext.Now(ctx)
	p := s.getOrCreate(subject)
	p.mu.Lock()
	defer p.mu.Unlock()
	p.timestamps = append(p.timestamps, now)
	p.total++
	p.prune(now)
}

// RecordFailure increments the subject's failure counter.
func (s *Service) RecordFailure(ctx context.Context, subject id.SubjectKey) {
	p := s.getOrCreate(subject)
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failures++
}

// AddFlag records an abuse flag with its reason.
func (s *Service) AddFlag(ctx context.Context, subject id.SubjectKey, reason string) {
	now := requestcontext.Now(ctx)
	p := s.getOrCreate(subject)
	p.mu.Lock()
	defer p.mu.Unlock()
	p.flags = append(p.flags, Flag{Reason: reason, FlaggedAt: now})
}

// Assess computes the current risk value for a subject.
// payloadOversized is the request-local signal the profile cannot know.
func (s *Service) Assess(ctx context.Context, subject id.SubjectKey, payloadOversized bool) Assessment {
	now := requestcontext.Now(ctx)
	p := s.getOrCreate(subject)
	p.mu.Lock()
	defer p.mu.Unlock()
	p.prune(now)

	var score int
	var factors []string

	perMin := 0
	cutoff := now.Add(-time.Minute)
	for i := len(p.timestamps) - 1; i >= 0; i-- {
		if p.timestamps[i].Before(cutoff) {
			break
		}
		perMin++
	}
	switch {
	case perMin > burstHighPerMin:
		score += weightBurstHigh
		factors = append(factors, "request_burst_high")
	case perMin > burstLowPerMin:
		score += weightBurstLow
		factors = append(factors, "request_burst")
	}

	switch {
	case p.failures > failuresHigh:
		score += weightFailHigh
		factors = append(factors, "failure_history_high")
	case p.failures > failuresLow:
		score += weightFailLow
		factors = append(factors, "failure_history")
	}

	if len(p.flags) > 0 {
		score += len(p.flags) * weightPerFlag
		factors = append(factors, "abuse_flags")
	}

	if p.total < newSubjectFloor {
		score += weightNewSubject
		factors = append(factors, "new_subject")
	}

	if payloadOversized {
		score += weightOversized
		factors = append(factors, "oversized_payload")
	}

	if score > 100 {
		score = 100
	}

	return Assessment{
		Score:         score,
		Blocked:       score > BlockThreshold || len(p.flags) >= BlockFlagCount,
		Factors:       factors,
		FlagCount:     len(p.flags),
		TotalRequests: p.total,
	}
}

// IsNew reports whether the subject has fewer lifetime requests than the
// new-subject floor. Drives the pricing surcharge.
func (s *Service) IsNew(subject id.SubjectKey) bool {
	p := s.getOrCreate(subject)
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.total < newSubjectFloor
}

// prune drops timestamps outside the retention window. Caller holds p.mu.
func (p *profile) prune(now time.Time) {
	cutoff := now.Add(-Window)
	i := 0
	for ; i < len(p.timestamps); i++ {
		if p.timestamps[i].After(cutoff) {
			break
		}
	}
	p.timestamps = p.timestamps[i:]
}

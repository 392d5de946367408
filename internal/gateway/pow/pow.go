// Package pow implements the proof-of-work gate: cheap-to-verify,
// costly-to-solve hashcash puzzles handed out before the expensive admission
// checks run. Challenges are single-use and expire on a bounded window.
package pow

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/bits"
	"sync"
	"time"

	id "trustgate/pkg/domain"
	dErrors "trustgate/pkg/domain-errors"
	"trustgate/pkg/platform/sentinel"
	"trustgate/pkg/requestcontext"
)

// DefaultValidity bounds how long an issued challenge can be solved.
const DefaultValidity = 5 * time.Minute

// Challenge is one outstanding puzzle.
type Challenge struct {
	ID         id.ChallengeID `json:"id"`
	Nonce      string         `json:"nonce"` // hex, the server half of the preimage
	Difficulty int            `json:"difficulty"`
	ExpiresAt  time.Time      `json:"expires_at"`
}

// Service issues and redeems challenges. The challenge set is owned process
// state behind this type; redemption is an atomic check-and-remove so two
// concurrent requests can never both succeed with the same challenge.
type Service struct {
	difficulty int
	validity   time.Duration

	mu         sync.Mutex
	challenges map[id.ChallengeID]Challenge
	// redeemed remembers consumed ids until their validity window lapses so a
	// replay is reported as such rather than as an unknown challenge.
	redeemed map[id.ChallengeID]time.Time
}

// NewService constructs the proof-of-work service. difficulty is the number
// of leading zero bits a solution hash must have; zero disables the gate.
func NewService(difficulty int, validity time.Duration) *Service {
	if validity <= 0 {
		validity = DefaultValidity
	}
	return &Service{
		difficulty: difficulty,
		validity:   validity,
		challenges: make(map[id.ChallengeID]Challenge),
		redeemed:   make(map[id.ChallengeID]time.Time),
	}
}

// Enabled reports whether the gate is configured on.
func (s *Service) Enabled() bool {
	return s.difficulty > 0
}

// Issue creates a fresh random challenge. Expired challenges are swept here
// so the set stays bounded without a background goroutine.
func (s *Service) Issue(ctx context.Context) (Challenge, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return Challenge{}, dErrors.Wrap(err, dErrors.CodeInternal, "generate challenge")
	}
	now := requestcontext.Now(ctx)
	ch := Challenge{
		ID:         id.NewChallengeID(),
		Nonce:      hex.EncodeToString(raw),
		Difficulty: s.difficulty,
		ExpiresAt:  now.Add(s.validity),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for cid, existing := range s.challenges {
		if now.After(existing.ExpiresAt) {
			delete(s.challenges, cid)
		}
	}
	for cid, expiresAt := range s.redeemed {
		if now.After(expiresAt) {
			delete(s.redeemed, cid)
		}
	}
	s.challenges[ch.ID] = ch
	return ch, nil
}

// Redeem verifies a solution and consumes the challenge. A wrong nonce never
// removes the challenge; only a valid solution does.
//
// Errors: always CodeInvalidInput; replays additionally wrap
// sentinel.ErrAlreadyUsed and late redemptions sentinel.ErrExpired.
func (s *Service) Redeem(ctx context.Context, challengeID id.ChallengeID, solution string) error {
	now := requestcontext.Now(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	ch, ok := s.challenges[challengeID]
	if !ok {
		if _, used := s.redeemed[challengeID]; used {
			return dErrors.Wrap(sentinel.ErrAlreadyUsed, dErrors.CodeInvalidInput, "challenge already redeemed")
		}
		return dErrors.New(dErrors.CodeInvalidInput, "unknown challenge")
	}
	if now.After(ch.ExpiresAt) {
		delete(s.challenges, challengeID)
		return dErrors.Wrap(sentinel.ErrExpired, dErrors.CodeInvalidInput, "challenge has expired")
	}
	if !Solves(ch, solution) {
		return dErrors.New(dErrors.CodeInvalidInput, "solution does not meet difficulty")
	}

	delete(s.challenges, challengeID)
	s.redeemed[challengeID] = ch.ExpiresAt
	return nil
}

// Solves reports whether sha256(nonce || solution) has at least
// ch.Difficulty leading zero bits.
func Solves(ch Challenge, solution string) bool {
	sum := sha256.Sum256([]byte(ch.Nonce + solution))
	return leadingZeroBits(sum[:]) >= ch.Difficulty
}

// Solve brute-forces a solution. Test and client helper; the server only
// ever verifies.
func Solve(ch Challenge) string {
	for i := 0; ; i++ {
		candidate := fmt.Sprintf("%d", i)
		if Solves(ch, candidate) {
			return candidate
		}
	}
}

func leadingZeroBits(sum []byte) int {
	zeros := 0
	for _, b := range sum {
		if b == 0 {
			zeros += 8
			continue
		}
		zeros += bits.LeadingZeros8(b)
		break
	}
	return zeros
}

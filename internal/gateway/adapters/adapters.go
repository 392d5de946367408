// Package adapters provides standalone-mode implementations of the gateway's
// collaborator ports. Production deployments replace these with clients for
// the real registration, staking, and settlement systems.
package adapters

import (
	"context"

	"trustgate/internal/gateway/ports"
	id "trustgate/pkg/domain"
)

// OpenRegistration treats every well-formed identifier as a registered
// subject. Suitable only when an upstream system already vets identities.
type OpenRegistration struct{}

// IsRegistered reports true for any subject.
func (OpenRegistration) IsRegistered(ctx context.Context, subject id.SubjectKey) (bool, error) {
	return true, nil
}

// ResolveSubject parses the identifier as a subject key; unknown identities
// do not exist in open mode.
func (OpenRegistration) ResolveSubject(ctx context.Context, identifier string) (id.SubjectKey, error) {
	subject, err := id.ParseSubjectKey(identifier)
	if err != nil {
		return "", nil
	}
	return subject, nil
}

// ZeroStake reports no locked stake for anyone; the stake discount and
// minimum-stake gate become no-ops unless MinStake is zero.
type ZeroStake struct{}

// EffectiveStake returns zero.
func (ZeroStake) EffectiveStake(ctx context.Context, subject id.SubjectKey) (float64, error) {
	return 0, nil
}

var (
	_ ports.Registration = OpenRegistration{}
	_ ports.Stake        = ZeroStake{}
)

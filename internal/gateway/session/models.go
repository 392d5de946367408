package session

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	id "trustgate/pkg/domain"
)

// Caveats bound what an issued credential may be used for. They are embedded
// in the signed token so a holder cannot widen them.
type Caveats struct {
	TTL               time.Duration `json:"-"`
	MaxRequests       int           `json:"max_requests"`
	PathPatterns      []string      `json:"path_patterns,omitempty"`
	MaxCumulativeCost float64       `json:"max_cumulative_cost"`
}

// Claims is the JWT claim set for a session credential. The registered ID
// (jti) is the revocation key; the signature is the integrity tag.
type Claims struct {
	Subject string  `json:"sub_key"`
	Caveats Caveats `json:"caveats"`
	jwt.RegisteredClaims
}

// Session is the verified view handed back to the gateway.
type Session struct {
	ID        id.SessionID
	Subject   id.SubjectKey
	IssuedAt  time.Time
	ExpiresAt time.Time
	Caveats   Caveats
	// Requests is the post-increment request count after the current use.
	Requests int
}

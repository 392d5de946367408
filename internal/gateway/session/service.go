package session

import (
	"context"
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/golang-jwt/jwt/v5"

	id "trustgate/pkg/domain"
	dErrors "trustgate/pkg/domain-errors"
	"trustgate/pkg/platform/sentinel"
	"trustgate/pkg/requestcontext"
)

// Service issues and verifies bearer session credentials. A credential is
// self-contained (HS256-signed claims) so verification needs no lookup for
// integrity, but stays individually revocable through the revocation list
// and bounded through the usage store.
type Service struct {
	signingKey []byte
	issuer     string
	revocation RevocationList
	usage      UsageStore
}

// NewService constructs the credential service.
func NewService(signingKey string, issuer string, revocation RevocationList, usage UsageStore) (*Service, error) {
	if signingKey == "" {
		return nil, fmt.Errorf("signing key is required")
	}
	if revocation == nil {
		return nil, fmt.Errorf("revocation list is required")
	}
	if usage == nil {
		return nil, fmt.Errorf("usage store is required")
	}
	return &Service{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		revocation: revocation,
		usage:      usage,
	}, nil
}

// Issue mints a new credential for the subject under the given caveats.
func (s *Service) Issue(ctx context.Context, subject id.SubjectKey, caveats Caveats) (string, id.SessionID, error) {
	now := requestcontext.Now(ctx)
	sessionID := id.NewSessionID()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Subject: subject.String(),
		Caveats: caveats,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        sessionID.String(),
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(caveats.TTL)),
		},
	})
	signed, err := token.SignedString(s.signingKey)
	if err != nil {
		return "", id.SessionID{}, dErrors.Wrap(err, dErrors.CodeInternal, "sign session credential")
	}
	return signed, sessionID, nil
}

// Verify validates a presented credential for one use against the given
// request path and cost: signature, expiry, revocation, path caveat, then an
// atomic budget consume. Every failure maps to CodeSessionInvalid so the
// gateway falls back to the full pipeline instead of failing the request.
func (s *Service) Verify(ctx context.Context, tokenString string, requestPath string, cost float64) (*Session, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	}, jwt.WithTimeFunc(func() time.Time { return requestcontext.Now(ctx) }))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.New(dErrors.CodeSessionInvalid, "session credential has expired")
		}
		return nil, dErrors.New(dErrors.CodeSessionInvalid, "session credential is invalid")
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeSessionInvalid, "session credential claims are invalid")
	}

	sessionID, err := id.ParseSessionID(claims.RegisteredClaims.ID)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeSessionInvalid, "session credential id is invalid")
	}

	revoked, err := s.revocation.IsRevoked(ctx, sessionID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "revocation check failed")
	}
	if revoked {
		return nil, dErrors.New(dErrors.CodeSessionInvalid, "session credential has been revoked")
	}

	if !pathAllowed(claims.Caveats.PathPatterns, requestPath) {
		return nil, dErrors.New(dErrors.CodeSessionInvalid, "session credential does not cover this path")
	}

	expiresAt := claims.ExpiresAt.Time
	remaining := expiresAt.Sub(requestcontext.Now(ctx))
	requests, err := s.usage.Consume(ctx, sessionID, cost, claims.Caveats.MaxRequests, claims.Caveats.MaxCumulativeCost, remaining)
	if errors.Is(err, sentinel.ErrExhausted) {
		return nil, dErrors.New(dErrors.CodeSessionInvalid, "session credential budget is exhausted")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "session usage update failed")
	}

	return &Session{
		ID:        sessionID,
		Subject:   id.SubjectKey(claims.Subject),
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: expiresAt,
		Caveats:   claims.Caveats,
		Requests:  requests,
	}, nil
}

// Revoke kills one credential immediately, regardless of its remaining TTL.
func (s *Service) Revoke(ctx context.Context, sessionID id.SessionID, ttl time.Duration) error {
	if err := s.revocation.Revoke(ctx, sessionID, ttl); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "revoke session")
	}
	return nil
}

// pathAllowed matches the request path against the caveat patterns.
// An empty pattern list means the credential is not path-restricted.
func pathAllowed(patterns []string, requestPath string) bool {
	if len(patterns) == 0 {
		return true
	}
	for _, pattern := range patterns {
		if ok, err := path.Match(pattern, requestPath); err == nil && ok {
			return true
		}
	}
	return false
}

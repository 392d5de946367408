package domain

import (
	"regexp"

	"github.com/google/uuid"

	dErrors "trustgate/pkg/domain-errors"
)

// SubjectKey is the stable, address-like identifier of the identity whose
// trust is being evaluated. Immutable once created.
//
// Usage: construct via ParseSubjectKey at trust boundaries to enforce the
// format; direct casting bypasses validation.
type SubjectKey string

// subjectKeyPattern keeps keys lower-cased, address-like, and bounded. The
// gateway treats the key as opaque beyond this shape check.
var subjectKeyPattern = regexp.MustCompile(`^[a-z0-9:_.-]{3,128}$`)

// ParseSubjectKey constructs a SubjectKey from external input.
//
// Errors: returns CodeInvalidInput when the value is empty or malformed; no
// other errors are expected.
func ParseSubjectKey(s string) (SubjectKey, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "subject key cannot be empty")
	}
	if !subjectKeyPattern.MatchString(s) {
		return "", dErrors.New(dErrors.CodeInvalidInput, "subject key is malformed")
	}
	return SubjectKey(s), nil
}

// String returns the string representation of the subject key.
func (k SubjectKey) String() string {
	return string(k)
}

// IsZero reports whether the key is unset.
func (k SubjectKey) IsZero() bool {
	return k == ""
}

// DomainID names an independent remote reputation ledger.
type DomainID string

// ParseDomainID constructs a DomainID from external input.
func ParseDomainID(s string) (DomainID, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "domain id cannot be empty")
	}
	if !subjectKeyPattern.MatchString(s) {
		return "", dErrors.New(dErrors.CodeInvalidInput, "domain id is malformed")
	}
	return DomainID(s), nil
}

// String returns the string representation of the domain id.
func (d DomainID) String() string {
	return string(d)
}

// SessionID identifies a single session credential; it is the revocation key.
type SessionID uuid.UUID

// NewSessionID returns a fresh random session id.
func NewSessionID() SessionID {
	return SessionID(uuid.New())
}

// ParseSessionID constructs a SessionID from external input.
//
// Errors: returns CodeInvalidInput for empty, malformed, or nil UUIDs.
func ParseSessionID(s string) (SessionID, error) {
	if s == "" {
		return SessionID{}, dErrors.New(dErrors.CodeInvalidInput, "session id cannot be empty")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return SessionID{}, dErrors.New(dErrors.CodeInvalidInput, "session id must be a valid UUID")
	}
	if u == uuid.Nil {
		return SessionID{}, dErrors.New(dErrors.CodeInvalidInput, "session id cannot be the nil UUID")
	}
	return SessionID(u), nil
}

// String returns the canonical UUID form.
func (s SessionID) String() string {
	return uuid.UUID(s).String()
}

// IsNil reports whether the id is the zero UUID.
func (s SessionID) IsNil() bool {
	return uuid.UUID(s) == uuid.Nil
}

// MarshalText renders the id in canonical UUID form for JSON and logs.
// The nil id renders empty so absent ids do not masquerade as real ones.
func (s SessionID) MarshalText() ([]byte, error) {
	if s.IsNil() {
		return []byte(""), nil
	}
	return []byte(s.String()), nil
}

// UnmarshalText parses the canonical UUID form; empty input is the nil id.
func (s *SessionID) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*s = SessionID{}
		return nil
	}
	parsed, err := ParseSessionID(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ChallengeID identifies a single-use proof-of-work challenge.
type ChallengeID uuid.UUID

// NewChallengeID returns a fresh random challenge id.
func NewChallengeID() ChallengeID {
	return ChallengeID(uuid.New())
}

// ParseChallengeID constructs a ChallengeID from external input.
func ParseChallengeID(s string) (ChallengeID, error) {
	if s == "" {
		return ChallengeID{}, dErrors.New(dErrors.CodeInvalidInput, "challenge id cannot be empty")
	}
	u, err := uuid.Parse(s)
	if err != nil || u == uuid.Nil {
		return ChallengeID{}, dErrors.New(dErrors.CodeInvalidInput, "challenge id must be a valid UUID")
	}
	return ChallengeID(u), nil
}

// String returns the canonical UUID form.
func (c ChallengeID) String() string {
	return uuid.UUID(c).String()
}

// MarshalText renders the id in canonical UUID form for JSON and logs.
// The nil id renders empty so absent ids do not masquerade as real ones.
func (c ChallengeID) MarshalText() ([]byte, error) {
	if uuid.UUID(c) == uuid.Nil {
		return []byte(""), nil
	}
	return []byte(c.String()), nil
}

// UnmarshalText parses the canonical UUID form; empty input is the nil id.
func (c *ChallengeID) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*c = ChallengeID{}
		return nil
	}
	parsed, err := ParseChallengeID(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

package handler

import (
	"encoding/base64"

	"trustgate/internal/gateway"
	id "trustgate/pkg/domain"
	dErrors "trustgate/pkg/domain-errors"
)

// AdmitHTTPRequest is the wire shape for POST /v1/admit.
type AdmitHTTPRequest struct {
	Identifier        string   `json:"identifier"`
	Path              string   `json:"path"`
	Cost              float64  `json:"cost,omitempty"`
	Credential        string   `json:"credential,omitempty"`
	ChallengeID       string   `json:"challenge_id,omitempty"`
	ChallengeSolution string   `json:"challenge_solution,omitempty"`
	PaymentEvidence   string   `json:"payment_evidence,omitempty"` // base64
	Domains           []string `json:"domains,omitempty"`
}

// ToDomain validates and converts the wire request.
func (r AdmitHTTPRequest) ToDomain(payloadSize int64) (gateway.AdmitRequest, error) {
	req := gateway.AdmitRequest{
		Identifier:        r.Identifier,
		Path:              r.Path,
		Cost:              r.Cost,
		PayloadSize:       payloadSize,
		Credential:        r.Credential,
		ChallengeID:       r.ChallengeID,
		ChallengeSolution: r.ChallengeSolution,
	}
	if r.PaymentEvidence != "" {
		evidence, err := base64.StdEncoding.DecodeString(r.PaymentEvidence)
		if err != nil {
			return gateway.AdmitRequest{}, dErrors.New(dErrors.CodeInvalidInput, "payment_evidence must be base64")
		}
		req.PaymentEvidence = evidence
	}
	for _, d := range r.Domains {
		domain, err := id.ParseDomainID(d)
		if err != nil {
			return gateway.AdmitRequest{}, err
		}
		req.Domains = append(req.Domains, domain)
	}
	return req, nil
}

// FeedbackHTTPRequest is the wire shape for POST /v1/feedback.
type FeedbackHTTPRequest struct {
	Subject   string  `json:"subject"`
	Submitter string  `json:"submitter"`
	Score     int     `json:"score"`
	Weight    float64 `json:"weight"`
	Evidence  string  `json:"evidence,omitempty"`
}

// TrustedRemoteHTTPRequest is the wire shape for PUT /admin/remotes/{domain}.
type TrustedRemoteHTTPRequest struct {
	AuthorityKey string `json:"authority_key"`
}

// FlagHTTPRequest is the wire shape for POST /admin/subjects/{subject}/flag.
type FlagHTTPRequest struct {
	Reason string `json:"reason"`
}

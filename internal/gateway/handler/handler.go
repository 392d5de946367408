package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"trustgate/internal/crossdomain"
	"trustgate/internal/gateway"
	"trustgate/internal/reputation"
	id "trustgate/pkg/domain"
	"trustgate/pkg/platform/httputil"
)

// Handler wires the gateway, ledger, and sync services to HTTP. It delegates
// to domain services without embedding business logic so transport concerns
// remain isolated.
type Handler struct {
	gateway *gateway.Service
	ledger  *reputation.Service
	sync    *crossdomain.Service
	logger  *slog.Logger
}

// New constructs the handler with its dependencies.
func New(gw *gateway.Service, ledger *reputation.Service, sync *crossdomain.Service, logger *slog.Logger) *Handler {
	return &Handler{gateway: gw, ledger: ledger, sync: sync, logger: logger}
}

// Register mounts the public endpoints.
func (h *Handler) Register(r chi.Router) {
	r.Post("/v1/admit", h.HandleAdmit)
	r.Post("/v1/feedback", h.HandleFeedback)
	r.Get("/v1/score/{subject}", h.HandleScore)
	r.Get("/v1/score/{subject}/aggregated", h.HandleAggregatedScore)
}

// RegisterAdmin mounts the admin endpoints; the router wraps these with the
// admin token middleware.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Put("/remotes/{domain}", h.HandleSetTrustedRemote)
	r.Post("/sessions/{id}/revoke", h.HandleRevokeSession)
	r.Post("/subjects/{subject}/flag", h.HandleFlagSubject)
}

// HandleAdmit handles POST /v1/admit.
func (h *Handler) HandleAdmit(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.Decode[AdmitHTTPRequest](w, r, h.logger)
	if !ok {
		return
	}
	domainReq, err := req.ToDomain(r.ContentLength)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	decision, err := h.gateway.Admit(r.Context(), domainReq)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "admission pipeline failed",
			"identifier", req.Identifier,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, StatusFor(decision.Outcome), decision)
}

// HandleFeedback handles POST /v1/feedback.
func (h *Handler) HandleFeedback(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.Decode[FeedbackHTTPRequest](w, r, h.logger)
	if !ok {
		return
	}
	subject, err := id.ParseSubjectKey(req.Subject)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	submitter, err := id.ParseSubjectKey(req.Submitter)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	rec := reputation.FeedbackRecord{
		Subject:   subject,
		Submitter: submitter,
		Score:     reputation.FeedbackScore(req.Score),
		Weight:    req.Weight,
		Evidence:  req.Evidence,
	}
	if err := h.ledger.SubmitFeedback(r.Context(), rec); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// HandleScore handles GET /v1/score/{subject}.
func (h *Handler) HandleScore(w http.ResponseWriter, r *http.Request) {
	subject, err := id.ParseSubjectKey(chi.URLParam(r, "subject"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	score, err := h.ledger.Score(r.Context(), subject)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	count, err := h.ledger.FeedbackCount(r.Context(), subject)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ScoreResponse{
		Subject:       subject.String(),
		Score:         score,
		FeedbackCount: count,
	})
}

// HandleAggregatedScore handles GET /v1/score/{subject}/aggregated.
func (h *Handler) HandleAggregatedScore(w http.ResponseWriter, r *http.Request) {
	subject, err := id.ParseSubjectKey(chi.URLParam(r, "subject"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	local, err := h.ledger.Score(r.Context(), subject)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	agg, err := h.ledger.Aggregate(r.Context(), subject)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	remotes, err := h.sync.TrustedRemotes(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	domains := make([]id.DomainID, 0, len(remotes))
	for domain := range remotes {
		domains = append(domains, domain)
	}
	aggregated, err := h.sync.AggregatedScore(r.Context(), subject, domains)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	entries, err := h.sync.RemoteEntries(r.Context(), subject)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	views := make([]RemoteView, 0, len(entries))
	for _, e := range entries {
		views = append(views, RemoteView{
			Domain:     e.Domain.String(),
			Score:      e.Score,
			ObservedAt: e.ObservedAt.Format(time.RFC3339),
		})
	}

	httputil.WriteJSON(w, http.StatusOK, AggregatedScoreResponse{
		Subject:         subject.String(),
		LocalScore:      local,
		AggregatedScore: aggregated,
		Remotes:         views,
		Aggregate:       rolloutFrom(agg),
	})
}

// HandleSetTrustedRemote handles PUT /admin/remotes/{domain}.
func (h *Handler) HandleSetTrustedRemote(w http.ResponseWriter, r *http.Request) {
	domain, err := id.ParseDomainID(chi.URLParam(r, "domain"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.Decode[TrustedRemoteHTTPRequest](w, r, h.logger)
	if !ok {
		return
	}
	if err := h.sync.SetTrustedRemote(r.Context(), domain, crossdomain.AuthorityKey(req.AuthorityKey)); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleRevokeSession handles POST /admin/sessions/{id}/revoke.
func (h *Handler) HandleRevokeSession(w http.ResponseWriter, r *http.Request) {
	sessionID, err := id.ParseSessionID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.gateway.RevokeSession(r.Context(), sessionID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleFlagSubject handles POST /admin/subjects/{subject}/flag.
func (h *Handler) HandleFlagSubject(w http.ResponseWriter, r *http.Request) {
	subject, err := id.ParseSubjectKey(chi.URLParam(r, "subject"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.Decode[FlagHTTPRequest](w, r, h.logger)
	if !ok {
		return
	}
	if err := h.gateway.FlagSubject(r.Context(), subject, req.Reason); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

package admin

import (
	"log/slog"
	"net/http"

	"golang.org/x/crypto/bcrypt"

	dErrors "trustgate/pkg/domain-errors"
	"trustgate/pkg/platform/httputil"
	"trustgate/pkg/requestcontext"
)

// RequireAdminToken guards the admin surface (trusted-remote configuration,
// session revocation, abuse flagging) behind a shared token. The configured
// token is bcrypt-hashed once at construction and every request is compared
// against the hash; an empty configured token disables the surface entirely.
func RequireAdminToken(expectedToken string, logger *slog.Logger) func(http.Handler) http.Handler {
	var hash []byte
	if expectedToken != "" {
		h, err := bcrypt.GenerateFromPassword([]byte(expectedToken), bcrypt.DefaultCost)
		if err != nil {
			// bcrypt rejects inputs over 72 bytes; treat the surface as
			// disabled rather than guard it with a token nobody can present.
			logger.Error("admin token unusable, surface disabled", "error", err)
		} else {
			hash = h
		}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := r.Header.Get("X-Admin-Token")
			if hash == nil || bcrypt.CompareHashAndPassword(hash, []byte(token)) != nil {
				ctx := r.Context()
				logger.WarnContext(ctx, "admin token mismatch",
					"request_id", requestcontext.RequestID(ctx),
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "admin token required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

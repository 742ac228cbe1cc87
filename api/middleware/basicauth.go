package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/shipbee/backoffice/api/responses"
	"github.com/shipbee/backoffice/pkg/config"
	pkgerrors "github.com/shipbee/backoffice/pkg/errors"
	"github.com/shipbee/backoffice/pkg/logger"
	"github.com/shipbee/backoffice/pkg/security"
)

// BasicAuth guards the operator surface. The configured password is an
// argon2id hash, never plaintext; the username comparison is constant time.
func BasicAuth(cfg config.AuthConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			username, password, ok := r.BasicAuth()
			if !ok {
				unauthorized(w, r, logg)
				return
			}

			usernameMatch := subtle.ConstantTimeCompare([]byte(username), []byte(cfg.Username)) == 1
			passwordMatch, err := security.VerifyPassword(password, cfg.PasswordHash)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify credentials"))
				return
			}
			if !usernameMatch || !passwordMatch {
				unauthorized(w, r, logg)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func unauthorized(w http.ResponseWriter, r *http.Request, logg *logger.Logger) {
	w.Header().Set("WWW-Authenticate", `Basic realm="backoffice"`)
	responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required"))
}

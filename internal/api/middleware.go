package api

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/terra-clan/grade-compass/internal/auth"
)

// Login error codes carried in the /login?error= parameter
const (
	loginErrorDomain = "domain"
	loginErrorState  = "state"
	loginErrorFailed = "failed"
)

// requirePage admits only principals from the allowed domain.
// Anyone else is sent to the login page.
func (s *Server) requirePage(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, err := s.gate.CurrentPrincipal(w, r)
		if err != nil {
			target := "/login"
			if errors.Is(err, auth.ErrUnauthorized) {
				target += "?" + url.Values{"error": {loginErrorDomain}}.Encode()
			}
			http.Redirect(w, r, target, http.StatusFound)
			return
		}

		ctx := ContextWithPrincipal(r.Context(), p)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireAPI is requirePage for JSON clients
func (s *Server) requireAPI(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, err := s.gate.CurrentPrincipal(w, r)
		if err != nil {
			if errors.Is(err, auth.ErrUnauthorized) {
				writeAuthError(w, http.StatusUnauthorized, "unauthorized", s.gate.Message(err))
				return
			}
			writeAuthError(w, http.StatusUnauthorized, "not_authenticated", "sign in or provide Authorization header with Bearer session token")
			return
		}

		slog.Debug("authenticated request", "user", p.MaskedEmail())

		ctx := ContextWithPrincipal(r.Context(), p)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireAdminPage renders the access-denied page for non-admins
func (s *Server) requireAdminPage(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := PrincipalFromContext(r.Context())
		if !s.gate.Policy().IsAdmin(p) {
			slog.Warn("admin page denied", "user", p.MaskedEmail(), "path", r.URL.Path)
			s.renderError(w, r, http.StatusForbidden, s.gate.Message(auth.ErrForbidden))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requireAdminAPI returns 403 for non-admins
func (s *Server) requireAdminAPI(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := PrincipalFromContext(r.Context())
		if p == nil {
			writeAuthError(w, http.StatusUnauthorized, "not_authenticated", "authentication required")
			return
		}

		if !s.gate.Policy().IsAdmin(p) {
			slog.Warn("admin api denied", "user", p.MaskedEmail(), "path", r.URL.Path)
			writeAuthError(w, http.StatusForbidden, "forbidden", "administrator access required")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// writeAuthError writes a JSON error envelope for gate failures
func writeAuthError(w http.ResponseWriter, status int, code, message string) {
	respondError(w, status, code, message)
}

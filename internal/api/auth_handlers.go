package api

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/terra-clan/grade-compass/internal/auth"
)

// --- Sign-in flow (public) ---

type loginView struct {
	Domain   string
	Provider string
	Error    string
}

var loginErrors = map[string]error{
	loginErrorDomain: auth.ErrUnauthorized,
	loginErrorState:  auth.ErrInvalidState,
	loginErrorFailed: auth.ErrProviderUnavailable,
}

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	if _, err := s.gate.CurrentPrincipal(w, r); err == nil {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}

	view := loginView{
		Domain:   s.gate.Policy().Domain,
		Provider: cases.Title(language.English).String(s.gate.ProviderName()),
	}
	if err, ok := loginErrors[r.URL.Query().Get("error")]; ok {
		view.Error = s.gate.Message(err)
	}

	s.pages.render(w, http.StatusOK, pageLogin, s.page(r, "Sign in", view))
}

func (s *Server) handleAuthStart(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, s.gate.BeginSignIn(w), http.StatusFound)
}

func (s *Server) handleAuthCallback(w http.ResponseWriter, r *http.Request) {
	p, err := s.gate.CompleteSignIn(w, r)
	if err != nil {
		code := loginErrorFailed
		switch {
		case errors.Is(err, auth.ErrUnauthorized):
			code = loginErrorDomain
		case errors.Is(err, auth.ErrInvalidState):
			code = loginErrorState
		}
		slog.Warn("sign-in failed", "error", err, "reason", code)
		http.Redirect(w, r, "/login?"+url.Values{"error": {code}}.Encode(), http.StatusFound)
		return
	}

	s.sink.TrackSignIn(p)
	http.Redirect(w, r, "/", http.StatusFound)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.gate.SignOut(w)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

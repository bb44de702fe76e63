package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/terra-clan/grade-compass/internal/models"
)

// Gate combines the identity provider, session tokens and access policy
type Gate struct {
	policy   Policy
	sessions *SessionManager
	provider IdentityProvider
}

// NewGate creates an access gate
func NewGate(policy Policy, sessions *SessionManager, provider IdentityProvider) *Gate {
	return &Gate{
		policy:   policy,
		sessions: sessions,
		provider: provider,
	}
}

// Policy returns the access policy
func (g *Gate) Policy() Policy {
	return g.policy
}

// ProviderName returns the identity provider's name
func (g *Gate) ProviderName() string {
	return g.provider.Name()
}

// Sessions returns the session token manager
func (g *Gate) Sessions() *SessionManager {
	return g.sessions
}

// CurrentPrincipal returns the signed-in principal of r.
// A session whose principal fails the policy is cleared and reported as ErrUnauthorized.
func (g *Gate) CurrentPrincipal(w http.ResponseWriter, r *http.Request) (*models.Principal, error) {
	p, err := g.sessions.Parse(TokenFromRequest(r))
	if err != nil {
		return nil, err
	}

	if err := g.policy.Authorize(p); err != nil {
		slog.Warn("session outside allowed domain cleared", "user", p.MaskedEmail())
		g.sessions.ClearCookie(w)
		return nil, err
	}

	return p, nil
}

// BeginSignIn stores a fresh state nonce and returns the provider URL
func (g *Gate) BeginSignIn(w http.ResponseWriter) string {
	state := uuid.NewString()
	g.sessions.setStateCookie(w, state)
	return g.provider.AuthCodeURL(state)
}

// CompleteSignIn handles the provider callback. On success the session
// cookie is set and the principal returned; nothing is set on failure.
func (g *Gate) CompleteSignIn(w http.ResponseWriter, r *http.Request) (*models.Principal, error) {
	defer g.sessions.clearStateCookie(w)

	if reason := r.URL.Query().Get("error"); reason != "" {
		return nil, fmt.Errorf("%w: %s", ErrProviderUnavailable, reason)
	}

	cookie, err := r.Cookie(StateCookie)
	state := r.URL.Query().Get("state")
	if err != nil || state == "" || subtle.ConstantTimeCompare([]byte(cookie.Value), []byte(state)) != 1 {
		return nil, ErrInvalidState
	}

	p, err := g.provider.Exchange(r.Context(), r.URL.Query().Get("code"))
	if err != nil {
		return nil, err
	}

	if err := g.policy.Authorize(p); err != nil {
		return nil, err
	}

	token, expires, err := g.sessions.Issue(p)
	if err != nil {
		return nil, fmt.Errorf("failed to issue session: %w", err)
	}
	g.sessions.SetCookie(w, token, expires)

	slog.Info("user signed in", "provider", g.provider.Name(), "user", p.MaskedEmail())
	return p, nil
}

// SignOut clears the session cookie
func (g *Gate) SignOut(w http.ResponseWriter) {
	g.sessions.ClearCookie(w)
}

// Message returns a user-facing explanation of a gate error
func (g *Gate) Message(err error) string {
	switch {
	case errors.Is(err, ErrUnauthorized):
		return fmt.Sprintf("Access restricted to @%s accounts.", g.policy.Domain)
	case errors.Is(err, ErrForbidden):
		return "You do not have permission to view this page."
	case errors.Is(err, ErrInvalidState):
		return "Your sign-in attempt expired. Please try again."
	case errors.Is(err, ErrProviderUnavailable):
		return "Sign-in failed. Please try again."
	default:
		return ""
	}
}

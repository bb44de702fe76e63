// Package auth implements the access gate: who may see the compass and who may
// see analytics.
package auth

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/cases"

	"github.com/terra-clan/grade-compass/internal/models"
)

var (
	// ErrNoSession means the request carries no valid session
	ErrNoSession = errors.New("not signed in")
	// ErrUnauthorized means the principal is outside the allowed domain
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden means the principal is not the administrator
	ErrForbidden = errors.New("forbidden")
	// ErrProviderUnavailable means the identity provider could not complete sign-in
	ErrProviderUnavailable = errors.New("identity provider unavailable")
	// ErrInvalidState means the OAuth state did not match the browser's nonce
	ErrInvalidState = errors.New("invalid sign-in state")
)

// Policy decides access from a principal's email address
type Policy struct {
	Domain     string
	AdminEmail string
}

// Authorize returns nil when p belongs to the allowed domain.
// The domain comparison uses Unicode case folding.
func (pol Policy) Authorize(p *models.Principal) error {
	if p == nil || p.Email == "" {
		return ErrUnauthorized
	}

	suffix := "@" + fold(pol.Domain)
	email := fold(p.Email)
	if pol.Domain == "" || len(email) <= len(suffix) || !strings.HasSuffix(email, suffix) {
		return fmt.Errorf("%w: access restricted to %s accounts", ErrUnauthorized, suffix)
	}
	return nil
}

// IsAdmin reports whether p is exactly the configured administrator
func (pol Policy) IsAdmin(p *models.Principal) bool {
	return p != nil && pol.AdminEmail != "" && p.Email == pol.AdminEmail
}

// AuthorizeAdmin returns ErrForbidden unless p passes both checks
func (pol Policy) AuthorizeAdmin(p *models.Principal) error {
	if err := pol.Authorize(p); err != nil {
		return err
	}
	if !pol.IsAdmin(p) {
		return ErrForbidden
	}
	return nil
}

// fold applies Unicode case folding; a Caser is not safe for concurrent use
func fold(s string) string {
	return cases.Fold().String(s)
}

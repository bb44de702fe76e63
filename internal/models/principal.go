package models

import (
	"strings"
)

// Principal is a signed-in identity
type Principal struct {
	UserID      string `json:"user_id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name,omitempty"`
}

// Name returns the display name, falling back to the email local part
func (p *Principal) Name() string {
	if p == nil {
		return ""
	}
	if p.DisplayName != "" {
		return p.DisplayName
	}
	local, _, _ := strings.Cut(p.Email, "@")
	return local
}

// Initial returns the uppercase first letter of Name, for avatars
func (p *Principal) Initial() string {
	name := p.Name()
	if name == "" {
		return "?"
	}
	return strings.ToUpper(string([]rune(name)[0]))
}

// MaskedEmail returns the email with most of the local part hidden, for logging
func (p *Principal) MaskedEmail() string {
	if p == nil {
		return "***"
	}
	local, domain, ok := strings.Cut(p.Email, "@")
	if !ok || len(local) < 2 {
		return "***"
	}
	return local[:2] + "***@" + domain
}

package model

import "time"

// AuthUser is the caller resolved from a Supabase access token.
type AuthUser struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	Role         string         `json:"role,omitempty"`
	CompanyID    string         `json:"companyId,omitempty"`
	CompanyRole  string         `json:"companyRole,omitempty"`
	UserMetadata map[string]any `json:"userMetadata,omitempty"`
	AppMetadata  map[string]any `json:"appMetadata,omitempty"`
	ExpiresAt    time.Time      `json:"expiresAt,omitempty"`
}

func (u *AuthUser) HasCompany() bool {
	return u != nil && u.CompanyID != ""
}

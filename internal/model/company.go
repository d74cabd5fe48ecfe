package model

import "time"

type Company struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Country   *string   `json:"country,omitempty"`
	State     *string   `json:"state,omitempty"`
	City      *string   `json:"city,omitempty"`
	Website   *string   `json:"website,omitempty"`
	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}

type Membership struct {
	ID        string    `json:"id,omitempty"`
	CompanyID string    `json:"company_id"`
	UserID    string    `json:"user_id"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

type Invite struct {
	ID         string     `json:"id"`
	CompanyID  string     `json:"company_id"`
	Email      string     `json:"email"`
	Role       string     `json:"role"`
	Token      string     `json:"token"`
	InvitedBy  string     `json:"invited_by"`
	ExpiresAt  time.Time  `json:"expires_at"`
	AcceptedAt *time.Time `json:"accepted_at"`
	AcceptedBy *string    `json:"accepted_by"`
	CreatedAt  time.Time  `json:"created_at,omitempty"`
}

// Usable reports whether the invite can still be accepted at now.
func (i *Invite) Usable(now time.Time) bool {
	return i != nil && i.AcceptedAt == nil && (i.ExpiresAt.IsZero() || now.Before(i.ExpiresAt))
}

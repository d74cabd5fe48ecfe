package company

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"rfqgateway/internal/model"
	"rfqgateway/pkg/logger"
	"rfqgateway/pkg/rbac"
	"rfqgateway/pkg/util"
)

var (
	ErrMissingName         = errors.New("company name is required")
	ErrMissingEmail        = errors.New("invite email is required")
	ErrMissingToken        = errors.New("invite token is required")
	ErrMissingCompany      = errors.New("user has no company")
	ErrInvalidRole         = errors.New("invalid company role")
	ErrInviteNotFound      = errors.New("invite not found or no longer valid")
	ErrInviteEmailMismatch = errors.New("invite was issued to a different email")
	ErrAcceptInProgress    = errors.New("invite acceptance already in progress")
)

const (
	defaultInviteTTL = 7 * 24 * time.Hour
	acceptScope      = "invite_accept"
)

// Store is the PostgREST surface used for company rows (service role).
type Store interface {
	GetService(ctx context.Context, path string) (json.RawMessage, error)
	Post(ctx context.Context, table string, rows any) (json.RawMessage, error)
	Patch(ctx context.Context, table, filter string, fields any) (json.RawMessage, error)
	Delete(ctx context.Context, table, filter string) error
	UpdateUserAppMetadata(ctx context.Context, userID string, meta map[string]any) error
}

// TxCreator creates a company and its owner membership atomically.
type TxCreator interface {
	CreateCompanyWithOwner(ctx context.Context, c *model.Company, ownerRole string) (*model.Company, error)
}

// SessionInvalidator drops a cached session after the user's claims changed.
type SessionInvalidator interface {
	Invalidate(ctx context.Context, token string)
}

type CreateInput struct {
	Name    string  `json:"name"`
	Country *string `json:"country"`
	State   *string `json:"state"`
	City    *string `json:"city"`
	Website *string `json:"website"`
}

type InviteInput struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

type Service struct {
	store     Store
	tx        TxCreator
	sessions  SessionInvalidator
	deduper   *util.Deduper
	inviteTTL time.Duration
	logger    *zap.Logger
	now       func() time.Time
}

// NewService wires the company lifecycle. tx may be nil, in which case company creation
// goes through PostgREST with a compensating delete.
func NewService(store Store, tx TxCreator, sessions SessionInvalidator, deduper *util.Deduper, inviteTTL time.Duration, logger *zap.Logger) *Service {
	if inviteTTL <= 0 {
		inviteTTL = defaultInviteTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:     store,
		tx:        tx,
		sessions:  sessions,
		deduper:   deduper,
		inviteTTL: inviteTTL,
		logger:    logger,
		now:       time.Now,
	}
}

// CreateCompany creates a company owned by user and links the user to it.
func (s *Service) CreateCompany(ctx context.Context, user *model.AuthUser, sessionToken string, in CreateInput) (*model.Company, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, ErrMissingName
	}
	c := &model.Company{
		Name:      name,
		Country:   in.Country,
		State:     in.State,
		City:      in.City,
		Website:   in.Website,
		CreatedBy: user.ID,
	}

	var (
		created *model.Company
		err     error
	)
	if s.tx != nil {
		created, err = s.tx.CreateCompanyWithOwner(ctx, c, rbac.CompanyRoleOwner)
	} else {
		created, err = s.createViaREST(ctx, c)
	}
	if err != nil {
		return nil, err
	}

	s.syncMembership(ctx, user, sessionToken, created.ID, rbac.CompanyRoleOwner)
	return created, nil
}

func (s *Service) createViaREST(ctx context.Context, c *model.Company) (*model.Company, error) {
	row := map[string]any{
		"name":       c.Name,
		"country":    c.Country,
		"state":      c.State,
		"city":       c.City,
		"website":    c.Website,
		"created_by": c.CreatedBy,
	}
	body, err := s.store.Post(ctx, "companies", []map[string]any{row})
	if err != nil {
		return nil, fmt.Errorf("insert company: %w", err)
	}
	var companies []model.Company
	if err := json.Unmarshal(body, &companies); err != nil || len(companies) == 0 || companies[0].ID == "" {
		return nil, fmt.Errorf("insert company: unexpected response %s", string(body))
	}
	created := &companies[0]

	membership := map[string]any{
		"company_id": created.ID,
		"user_id":    c.CreatedBy,
		"role":       rbac.CompanyRoleOwner,
	}
	if _, err := s.store.Post(ctx, "company_memberships", []map[string]any{membership}); err != nil {
		// 补偿：删除孤立的公司行
		if delErr := s.store.Delete(ctx, "companies", "id=eq."+url.QueryEscape(created.ID)); delErr != nil {
			logger.WithTrace(ctx, s.logger).Error("Failed to roll back orphaned company",
				zap.String("company_id", created.ID),
				zap.Error(delErr),
			)
		}
		return nil, fmt.Errorf("insert owner membership: %w", err)
	}
	return created, nil
}

// Invite issues an invite token for email into the caller's company.
func (s *Service) Invite(ctx context.Context, user *model.AuthUser, in InviteInput) (*model.Invite, error) {
	if !user.HasCompany() {
		return nil, ErrMissingCompany
	}
	if err := rbac.CheckPermission(user.CompanyRole, rbac.PermissionInviteMember); err != nil {
		return nil, err
	}
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email == "" {
		return nil, ErrMissingEmail
	}
	role := strings.TrimSpace(in.Role)
	if role == "" {
		role = rbac.CompanyRoleMember
	}
	if !rbac.IsInvitableCompanyRole(role) {
		return nil, ErrInvalidRole
	}

	row := map[string]any{
		"company_id": user.CompanyID,
		"email":      email,
		"role":       role,
		"token":      uuid.NewString(),
		"invited_by": user.ID,
		"expires_at": s.now().Add(s.inviteTTL).UTC().Format(time.RFC3339),
	}
	body, err := s.store.Post(ctx, "company_invites", []map[string]any{row})
	if err != nil {
		return nil, fmt.Errorf("insert invite: %w", err)
	}
	var invites []model.Invite
	if err := json.Unmarshal(body, &invites); err != nil || len(invites) == 0 {
		return nil, fmt.Errorf("insert invite: unexpected response %s", string(body))
	}
	return &invites[0], nil
}

// GetInvite looks up an invite by token. Accepted or expired invites are not found.
func (s *Service) GetInvite(ctx context.Context, token string) (*model.Invite, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrMissingToken
	}
	body, err := s.store.GetService(ctx, "company_invites?select=*&token=eq."+url.QueryEscape(token)+"&limit=1")
	if err != nil {
		return nil, fmt.Errorf("lookup invite: %w", err)
	}
	var invites []model.Invite
	if err := json.Unmarshal(body, &invites); err != nil || len(invites) == 0 {
		return nil, ErrInviteNotFound
	}
	inv := &invites[0]
	if !inv.Usable(s.now()) {
		return nil, ErrInviteNotFound
	}
	return inv, nil
}

// AcceptInvite adds user to the invite's company and consumes the invite.
func (s *Service) AcceptInvite(ctx context.Context, user *model.AuthUser, sessionToken, token string) (*model.Membership, error) {
	inv, err := s.GetInvite(ctx, token)
	if err != nil {
		return nil, err
	}
	if inv.Email != "" && !strings.EqualFold(inv.Email, user.Email) {
		return nil, ErrInviteEmailMismatch
	}

	if !s.deduper.AcquireOnce(ctx, acceptScope, inv.Token) {
		return nil, ErrAcceptInProgress
	}
	ok := false
	defer func() {
		if !ok {
			s.deduper.Release(ctx, acceptScope, inv.Token)
		}
	}()

	membership := map[string]any{
		"company_id": inv.CompanyID,
		"user_id":    user.ID,
		"role":       inv.Role,
	}
	body, err := s.store.Post(ctx, "company_memberships", []map[string]any{membership})
	if err != nil {
		return nil, fmt.Errorf("insert membership: %w", err)
	}

	_, err = s.store.Patch(ctx, "company_invites", "id=eq."+url.QueryEscape(inv.ID), map[string]any{
		"accepted_at": s.now().UTC().Format(time.RFC3339),
		"accepted_by": user.ID,
	})
	if err != nil {
		return nil, fmt.Errorf("mark invite accepted: %w", err)
	}
	ok = true

	s.syncMembership(ctx, user, sessionToken, inv.CompanyID, inv.Role)

	var rows []model.Membership
	if err := json.Unmarshal(body, &rows); err == nil && len(rows) > 0 {
		return &rows[0], nil
	}
	return &model.Membership{CompanyID: inv.CompanyID, UserID: user.ID, Role: inv.Role}, nil
}

// syncMembership writes company_id into app_metadata so new tokens carry it, then drops
// the cached session. Failures are logged only.
func (s *Service) syncMembership(ctx context.Context, user *model.AuthUser, sessionToken, companyID, role string) {
	meta := map[string]any{"company_id": companyID, "company_role": role}
	if err := s.store.UpdateUserAppMetadata(ctx, user.ID, meta); err != nil {
		logger.WithTrace(ctx, s.logger).Warn("Failed to update app_metadata",
			zap.String("user_id", user.ID),
			zap.String("company_id", companyID),
			zap.Error(err),
		)
	}
	if s.sessions != nil {
		s.sessions.Invalidate(ctx, sessionToken)
	}
}

package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"rfqgateway/internal/model"
	"rfqgateway/internal/service/company"
	"rfqgateway/pkg/logger"
	"rfqgateway/pkg/rbac"
)

// CompanyService is implemented by company.Service.
type CompanyService interface {
	CreateCompany(ctx context.Context, user *model.AuthUser, sessionToken string, in company.CreateInput) (*model.Company, error)
	Invite(ctx context.Context, user *model.AuthUser, in company.InviteInput) (*model.Invite, error)
	AcceptInvite(ctx context.Context, user *model.AuthUser, sessionToken, token string) (*model.Membership, error)
	GetInvite(ctx context.Context, token string) (*model.Invite, error)
}

type CompanyHandler struct {
	svc    CompanyService
	logger *zap.Logger
}

func NewCompanyHandler(svc CompanyService, logger *zap.Logger) *CompanyHandler {
	return &CompanyHandler{svc: svc, logger: logger}
}

// Create handles POST /company/create
func (h *CompanyHandler) Create(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	var in company.CreateInput
	if !bindBody(c, &in) {
		return
	}

	created, err := h.svc.CreateCompany(c.Request.Context(), user, getToken(c), in)
	if err != nil {
		h.writeCompanyError(c, "create", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "company": created})
}

// Invite handles POST /company/invite
func (h *CompanyHandler) Invite(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	var in company.InviteInput
	if !bindBody(c, &in) {
		return
	}

	invite, err := h.svc.Invite(c.Request.Context(), user, in)
	if err != nil {
		h.writeCompanyError(c, "invite", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "invite": invite})
}

type acceptRequest struct {
	Token string `json:"token"`
}

// Accept handles POST /company/accept
func (h *CompanyHandler) Accept(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	var req acceptRequest
	if !bindBody(c, &req) {
		return
	}

	membership, err := h.svc.AcceptInvite(c.Request.Context(), user, getToken(c), req.Token)
	if err != nil {
		h.writeCompanyError(c, "accept", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "membership": membership})
}

// GetInvite handles GET /company/invite/:token
func (h *CompanyHandler) GetInvite(c *gin.Context) {
	if _, ok := requireUser(c); !ok {
		return
	}
	invite, err := h.svc.GetInvite(c.Request.Context(), c.Param("token"))
	if err != nil {
		h.writeCompanyError(c, "lookup", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"invite": invite})
}

func (h *CompanyHandler) writeCompanyError(c *gin.Context, op string, err error) {
	var denied *rbac.PermissionDeniedError
	switch {
	case errors.Is(err, company.ErrMissingName):
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing_name"})
	case errors.Is(err, company.ErrMissingEmail):
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing_email"})
	case errors.Is(err, company.ErrMissingToken):
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing_token"})
	case errors.Is(err, company.ErrInvalidRole):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_role"})
	case errors.Is(err, company.ErrMissingCompany):
		c.JSON(http.StatusForbidden, gin.H{"error": "missing_company_id"})
	case errors.As(err, &denied):
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden", "message": err.Error()})
	case errors.Is(err, company.ErrInviteEmailMismatch):
		c.JSON(http.StatusForbidden, gin.H{"error": "invite_email_mismatch"})
	case errors.Is(err, company.ErrInviteNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "invalid_invite"})
	case errors.Is(err, company.ErrAcceptInProgress):
		c.JSON(http.StatusConflict, gin.H{"error": "invite_accept_in_progress"})
	default:
		logger.WithTrace(c.Request.Context(), h.logger).Error("Company operation failed",
			zap.String("op", op),
			zap.Error(err),
		)
		writeError(c, err, op+"_failed")
	}
}

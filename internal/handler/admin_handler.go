package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"rfqgateway/internal/supabase"
	"rfqgateway/pkg/logger"
	"rfqgateway/pkg/rbac"
)

// AdminClient is the Supabase surface used by the admin endpoints.
type AdminClient interface {
	InviteUser(ctx context.Context, email string, data map[string]any) (*supabase.Response, error)
	Host() string
}

type AdminHandler struct {
	client AdminClient
	logger *zap.Logger
}

func NewAdminHandler(client AdminClient, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{client: client, logger: logger}
}

// Whoami handles GET /admin/whoami
func (h *AdminHandler) Whoami(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true, "role": "admin"})
}

type inviteUserRequest struct {
	Email string   `json:"email"`
	Roles []string `json:"roles"`
}

// InviteUser handles POST /admin/users.invite
// 功能：通过 Supabase Auth 发送邀请邮件，roles 写入 user_metadata
func (h *AdminHandler) InviteUser(c *gin.Context) {
	var req inviteUserRequest
	if !bindBody(c, &req) {
		return
	}
	email := strings.TrimSpace(req.Email)
	if email == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing_email"})
		return
	}
	for _, role := range req.Roles {
		if !rbac.IsPlatformRole(role) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_roles", "role": role})
			return
		}
	}

	var data map[string]any
	if len(req.Roles) > 0 {
		data = map[string]any{"roles": req.Roles}
	}

	resp, err := h.client.InviteUser(c.Request.Context(), email, data)
	if err != nil {
		logger.WithTrace(c.Request.Context(), h.logger).Error("Admin invite failed", zap.Error(err))
		writeError(c, err, "invite_failed")
		return
	}
	if !resp.OK() {
		writeUpstreamError(c, resp.Status, resp.Body)
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "user": resp.Body})
}

// SupabaseHost handles GET /admin/debug/supabase-host
func (h *AdminHandler) SupabaseHost(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"host": h.client.Host()})
}

package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"rfqgateway/internal/model"
	"rfqgateway/internal/supabase"
)

// Keys set by the auth middleware.
const (
	ContextUserKey  = "auth_user"
	ContextTokenKey = "access_token"
)

// getUser 统一的 user 读取工具
func getUser(c *gin.Context) (*model.AuthUser, bool) {
	v, exists := c.Get(ContextUserKey)
	if !exists {
		return nil, false
	}
	user, ok := v.(*model.AuthUser)
	return user, ok && user != nil
}

func getToken(c *gin.Context) string {
	return c.GetString(ContextTokenKey)
}

// requireUser writes 401 and returns false when the auth middleware did not run.
func requireUser(c *gin.Context) (*model.AuthUser, bool) {
	user, ok := getUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return nil, false
	}
	return user, true
}

// writeUpstreamError echoes the upstream status (500 when unknown) with its body.
func writeUpstreamError(c *gin.Context, status int, details any) {
	if status < 400 {
		status = http.StatusInternalServerError
	}
	c.JSON(status, gin.H{"error": "upstream_error", "details": details})
}

// writeError translates errors returned by the Supabase client.
func writeError(c *gin.Context, err error, code string) {
	var upErr *supabase.UpstreamError
	if errors.As(err, &upErr) {
		writeUpstreamError(c, upErr.Status, upErr.Body)
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": code, "message": err.Error()})
}

// bindBody decodes an optional JSON body; an empty body leaves dst zeroed so the
// field-level checks report what is missing.
func bindBody(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_body", "message": err.Error()})
		return false
	}
	return true
}

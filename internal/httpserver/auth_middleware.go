package httpserver

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"rfqgateway/internal/handler"
	"rfqgateway/internal/model"
	"rfqgateway/internal/service/auth"
	"rfqgateway/pkg/util"
)

// Authenticator is implemented by auth.Service.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*model.AuthUser, error)
}

// AuthMiddleware resolves the end-user bearer and stores user and token in the context.
func AuthMiddleware(authenticator Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := util.ExtractToken(c.Request)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing_bearer"})
			return
		}

		user, err := authenticator.Authenticate(c.Request.Context(), token)
		if err != nil {
			code := "unauthorized"
			if errors.Is(err, auth.ErrInvalidToken) {
				code = "invalid_token"
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": code})
			return
		}

		// store user in context so handlers can use it
		c.Set(handler.ContextUserKey, user)
		c.Set(handler.ContextTokenKey, token)

		c.Next()
	}
}

// AdminMiddleware 要求静态 admin bearer（明文或 bcrypt hash）
func AdminMiddleware(bearer, bearerHash string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := util.ExtractToken(c.Request)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing_bearer"})
			return
		}
		if !util.CheckSecret(token, bearer, bearerHash) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}

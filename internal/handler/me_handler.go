package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// Me handles GET /me
func Me(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":        user.ID,
		"email":     user.Email,
		"metadata":  user.UserMetadata,
		"companyId": user.CompanyID,
	})
}

// AuthRedirect handles GET /auth/redirect by forwarding the query string verbatim to
// the app callback.
func AuthRedirect(callbackURL string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if callbackURL == "" {
			c.JSON(http.StatusNotFound, gin.H{"error": "callback_not_configured"})
			return
		}
		target := callbackURL
		if raw := c.Request.URL.RawQuery; raw != "" {
			sep := "?"
			if strings.Contains(target, "?") {
				sep = "&"
			}
			target += sep + raw
		}
		c.Redirect(http.StatusFound, target)
	}
}

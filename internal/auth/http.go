package auth

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	httpapi "github.com/job-portal/job-portal-server/internal/api/http"
	"github.com/job-portal/job-portal-server/internal/apperr"
	"github.com/job-portal/job-portal-server/internal/logging"
)

type Handler struct {
	tokens  *TokenService
	cookies CookieConfig
}

func NewHandler(tokens *TokenService, cookies CookieConfig) *Handler {
	return &Handler{tokens: tokens, cookies: cookies}
}

// Register mounts POST /jwt and POST /logout. Extra handlers, such as a rate
// limiter, run before token issuance only.
func (h *Handler) Register(r gin.IRouter, issueMiddleware ...gin.HandlerFunc) {
	r.POST("/jwt", append(issueMiddleware, h.issue)...)
	r.POST("/logout", h.logout)
}

func (h *Handler) issue(c *gin.Context) {
	// an empty body signs an empty claim set
	var claims map[string]interface{}
	if err := c.ShouldBindJSON(&claims); err != nil && !errors.Is(err, io.EOF) {
		httpapi.WriteError(c, apperr.Wrap(apperr.KindInvalid, "invalid request body", err))
		return
	}
	if claims == nil {
		claims = map[string]interface{}{}
	}

	token, _, err := h.tokens.Issue(claims)
	if err != nil {
		httpapi.WriteError(c, err)
		return
	}

	email, _ := claims["email"].(string)
	logging.FromContext(c.Request.Context()).Infof("auth.issue", "email=%s", email)

	setTokenCookie(c.Writer, h.cookies, token)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *Handler) logout(c *gin.Context) {
	clearTokenCookie(c.Writer, h.cookies)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

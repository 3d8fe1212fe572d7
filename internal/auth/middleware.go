package auth

import (
	"github.com/gin-gonic/gin"

	httpapi "github.com/job-portal/job-portal-server/internal/api/http"
)

const CtxIdentity = "identity"

// RequireToken verifies the session cookie before the handler runs. Missing
// cookies get 401, invalid or expired tokens get 403.
func RequireToken(tokens *TokenService, cookies CookieConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie(cookies.name())

		identity, err := tokens.Verify(token)
		if err != nil {
			httpapi.WriteError(c, err)
			return
		}

		c.Set(CtxIdentity, identity)
		c.Next()
	}
}

// IdentityFrom returns the identity stored by RequireToken.
func IdentityFrom(c *gin.Context) (*Identity, bool) {
	v, ok := c.Get(CtxIdentity)
	if !ok {
		return nil, false
	}
	identity, ok := v.(*Identity)
	return identity, ok && identity != nil
}

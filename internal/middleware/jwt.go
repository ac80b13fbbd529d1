package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/exstem-assessment/internal/response"
	"github.com/stemsi/exstem-assessment/internal/service"
)

// ContextKeyClaims is the Gin context key for JWT claims.
const ContextKeyClaims = "claims"

var errNoToken = errors.New("authorization header or token query required")

// RequireUser validates an exam taker JWT from the Authorization header.
func RequireUser(authService *service.AuthService) gin.HandlerFunc {
	return requireRole(authService, service.TokenTypeUser, bearerToken)
}

// RequireAdmin validates an admin JWT from the Authorization header, or from ?token=
// for EventSource clients that cannot send headers.
func RequireAdmin(authService *service.AuthService) gin.HandlerFunc {
	return requireRole(authService, service.TokenTypeAdmin, func(c *gin.Context) string {
		if tok := bearerToken(c); tok != "" {
			return tok
		}
		return c.Query("token")
	})
}

// RequireUserWS validates an exam taker JWT from ?token=, used for WebSocket upgrades.
func RequireUserWS(authService *service.AuthService) gin.HandlerFunc {
	return requireRole(authService, service.TokenTypeUser, func(c *gin.Context) string {
		return c.Query("token")
	})
}

func requireRole(authService *service.AuthService, role service.TokenType, extract func(*gin.Context) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := validate(authService, extract(c))
		if errors.Is(err, errNoToken) {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRequired)
			return
		}
		if err != nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenInvalid)
			return
		}

		if claims.TokenType != role {
			code := response.ErrUserAccessOnly
			if role == service.TokenTypeAdmin {
				code = response.ErrAdminAccessOnly
			}
			response.AbortFail(c, http.StatusForbidden, code)
			return
		}

		c.Set(ContextKeyClaims, claims)
		c.Next()
	}
}

// GetClaims retrieves the JWT claims from the Gin context.
func GetClaims(c *gin.Context) *service.Claims {
	val, exists := c.Get(ContextKeyClaims)
	if !exists {
		return nil
	}
	claims, _ := val.(*service.Claims)
	return claims
}

func bearerToken(c *gin.Context) string {
	parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}

func validate(authService *service.AuthService, tokenStr string) (*service.Claims, error) {
	if tokenStr == "" {
		return nil, errNoToken
	}
	return authService.ValidateToken(tokenStr)
}

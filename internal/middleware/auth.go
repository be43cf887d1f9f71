package middleware

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/homevisit-api/pkg/auth"
	apperrors "github.com/jwalitptl/homevisit-api/pkg/errors"
)

const ContextRequester = "requester"

// TokenValidator turns a bearer token into the requester it was issued to.
type TokenValidator interface {
	Validate(token string) (*auth.Requester, error)
}

type AuthMiddleware struct {
	validator TokenValidator
}

func NewAuthMiddleware(validator TokenValidator) *AuthMiddleware {
	return &AuthMiddleware{validator: validator}
}

// Authenticate verifies the JWT and stores the requester in both the gin
// context and the request context, where the services read it.
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortWith(c, apperrors.Unauthorized(errors.New("missing authorization header")))
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			abortWith(c, apperrors.Unauthorized(errors.New("invalid authorization format")))
			return
		}

		requester, err := m.validator.Validate(parts[1])
		if err != nil {
			abortWith(c, apperrors.Unauthorized(err))
			return
		}

		c.Set(ContextRequester, requester)
		c.Request = c.Request.WithContext(auth.WithRequester(c.Request.Context(), requester))
		c.Next()
	}
}

// RequireRole lets only the listed roles through. It must run after
// Authenticate.
func (m *AuthMiddleware) RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		requester, ok := auth.RequesterFromContext(c.Request.Context())
		if !ok {
			abortWith(c, apperrors.Unauthorized(errors.New("no requester")))
			return
		}
		for _, role := range roles {
			if requester.Role == role {
				c.Next()
				return
			}
		}
		abortWith(c, apperrors.Forbidden("permission denied"))
	}
}

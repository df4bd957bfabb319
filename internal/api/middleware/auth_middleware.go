package middleware

import (
	"net/http"
	"strings"

	"agri_inspection/internal/domain"
	"agri_inspection/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	AuthorizationHeaderKey  = "Authorization"
	AuthorizationTypeBearer = "Bearer"
	// AuthCookieName lets browser sessions of the admin pages authenticate without a header.
	AuthCookieName = "auth_token"
	PrincipalKey   = "principal"
)

// Responder writes an error body in the envelope of a route group.
type Responder func(c *gin.Context, status int, message string)

// APIError writes the {code,message,data} envelope of /api/v1.
func APIError(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, domain.APIResponse{Code: status, Message: message})
}

// AdminError writes the {success,message} envelope of the admin endpoints.
func AdminError(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, domain.AdminOCRResponse{Success: false, Message: message})
}

type TokenValidator interface {
	ValidateToken(tokenString string) (*domain.Principal, error)
}

type AuthMiddleware struct {
	auth TokenValidator
	log  *zap.Logger
}

func NewAuthMiddleware(auth TokenValidator, log *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{auth: auth, log: log}
}

func bearerToken(c *gin.Context) (string, bool) {
	authHeader := c.GetHeader(AuthorizationHeaderKey)
	if authHeader == "" {
		if cookie, err := c.Cookie(AuthCookieName); err == nil && cookie != "" {
			return cookie, true
		}
		return "", false
	}
	fields := strings.Fields(authHeader)
	if len(fields) < 2 || !strings.EqualFold(fields[0], AuthorizationTypeBearer) {
		return "", false
	}
	return fields[1], true
}

// Authenticate validates the bearer token (or auth cookie) and stores the principal in the context.
func (m *AuthMiddleware) Authenticate(reject Responder) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			reject(c, http.StatusUnauthorized, "身份认证信息未提供")
			return
		}
		principal, err := m.auth.ValidateToken(token)
		if err != nil {
			m.log.Debug("token rejected", zap.String("path", c.Request.URL.Path), zap.Error(err))
			reject(c, http.StatusUnauthorized, service.ErrTokenInvalid.Error())
			return
		}
		c.Set(PrincipalKey, principal)
		c.Next()
	}
}

// PrincipalFrom returns the caller stored by Authenticate.
func PrincipalFrom(c *gin.Context) (*domain.Principal, bool) {
	v, exists := c.Get(PrincipalKey)
	if !exists {
		return nil, false
	}
	p, ok := v.(*domain.Principal)
	return p, ok
}

func (m *AuthMiddleware) RequireSuperuser(reject Responder) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := PrincipalFrom(c)
		if !ok || !p.IsSuperuser {
			m.log.Warn("superuser route denied", zap.String("path", c.Request.URL.Path))
			reject(c, http.StatusForbidden, service.ErrForbidden.Error())
			return
		}
		c.Next()
	}
}

func (m *AuthMiddleware) RequireOCR(reject Responder) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := PrincipalFrom(c)
		if !ok || !p.CanUseOCR() {
			reject(c, http.StatusForbidden, service.ErrOCRPermission.Error())
			return
		}
		c.Next()
	}
}

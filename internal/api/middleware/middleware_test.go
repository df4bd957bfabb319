package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"agri_inspection/internal/domain"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubValidator map[string]*domain.Principal

func (s stubValidator) ValidateToken(token string) (*domain.Principal, error) {
	if p, ok := s[token]; ok {
		return p, nil
	}
	return nil, errors.New("bad token")
}

func init() {
	gin.SetMode(gin.TestMode)
}

func newAuthRouter(t *testing.T) *gin.Engine {
	t.Helper()
	mw := NewAuthMiddleware(stubValidator{
		"ocr":   {UserID: 1, Role: domain.RoleOCRUser},
		"plain": {UserID: 2, Role: domain.RoleNormalUser},
		"root":  {UserID: 3, IsSuperuser: true},
	}, zap.NewNop())

	r := gin.New()
	authed := r.Group("", mw.Authenticate(APIError))
	authed.GET("/me", func(c *gin.Context) {
		p, _ := PrincipalFrom(c)
		c.JSON(http.StatusOK, gin.H{"id": p.UserID})
	})
	authed.GET("/ocr", mw.RequireOCR(APIError), func(c *gin.Context) { c.Status(http.StatusNoContent) })
	authed.GET("/admin", mw.RequireSuperuser(AdminError), func(c *gin.Context) { c.Status(http.StatusNoContent) })
	return r
}

func TestAuthenticate(t *testing.T) {
	r := newAuthRouter(t)

	tests := []struct {
		name   string
		header string
		cookie string
		want   int
	}{
		{"bearer header", "Bearer ocr", "", http.StatusOK},
		{"lowercase scheme", "bearer ocr", "", http.StatusOK},
		{"auth cookie", "", "plain", http.StatusOK},
		{"missing", "", "", http.StatusUnauthorized},
		{"wrong scheme", "Token ocr", "", http.StatusUnauthorized},
		{"unknown token", "Bearer nope", "", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set(AuthorizationHeaderKey, tt.header)
			}
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: AuthCookieName, Value: tt.cookie})
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)

			if tt.want == http.StatusUnauthorized {
				var body domain.APIResponse
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
				assert.Equal(t, http.StatusUnauthorized, body.Code)
				assert.NotEmpty(t, body.Message)
			}
		})
	}
}

func TestRequireOCRAndSuperuser(t *testing.T) {
	r := newAuthRouter(t)

	tests := []struct {
		path  string
		token string
		want  int
	}{
		{"/ocr", "ocr", http.StatusNoContent},
		{"/ocr", "root", http.StatusNoContent},
		{"/ocr", "plain", http.StatusForbidden},
		{"/admin", "root", http.StatusNoContent},
		{"/admin", "ocr", http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.path+"/"+tt.token, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			req.Header.Set(AuthorizationHeaderKey, "Bearer "+tt.token)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
		})
	}

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set(AuthorizationHeaderKey, "Bearer plain")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var body domain.AdminOCRResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.False(t, body.Success)
}

func TestCSRF(t *testing.T) {
	r := gin.New()
	r.Use(CSRF(AdminError))
	r.Any("/submit", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	tests := []struct {
		name   string
		method string
		cookie string
		header string
		form   string
		want   int
	}{
		{"safe method skips check", http.MethodGet, "", "", "", http.StatusNoContent},
		{"matching header", http.MethodPost, "tok", "tok", "", http.StatusNoContent},
		{"matching form field", http.MethodPost, "tok", "", "tok", http.StatusNoContent},
		{"mismatch", http.MethodPost, "tok", "other", "", http.StatusForbidden},
		{"no cookie", http.MethodPost, "", "tok", "", http.StatusForbidden},
		{"no token submitted", http.MethodPost, "tok", "", "", http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req *http.Request
			if tt.form != "" {
				req = httptest.NewRequest(tt.method, "/submit", strings.NewReader(CSRFFormField+"="+tt.form))
				req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			} else {
				req = httptest.NewRequest(tt.method, "/submit", nil)
			}
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: CSRFCookieName, Value: tt.cookie})
			}
			if tt.header != "" {
				req.Header.Set(CSRFHeaderName, tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

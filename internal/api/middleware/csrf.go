package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	CSRFCookieName = "csrftoken"
	CSRFHeaderName = "X-CSRFToken"
	CSRFFormField  = "csrfmiddlewaretoken"
)

const msgCSRFFailed = "CSRF验证失败，请刷新页面后重试"

// CSRF enforces the double-submit check on unsafe methods: the csrftoken cookie
// must match the X-CSRFToken header or the csrfmiddlewaretoken form field.
func CSRF(reject Responder) gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
			c.Next()
			return
		}

		cookie, err := c.Cookie(CSRFCookieName)
		if err != nil || cookie == "" {
			reject(c, http.StatusForbidden, msgCSRFFailed)
			return
		}
		submitted := c.GetHeader(CSRFHeaderName)
		if submitted == "" {
			submitted = c.PostForm(CSRFFormField)
		}
		if subtle.ConstantTimeCompare([]byte(cookie), []byte(submitted)) != 1 {
			reject(c, http.StatusForbidden, msgCSRFFailed)
			return
		}
		c.Next()
	}
}

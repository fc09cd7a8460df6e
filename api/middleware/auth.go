package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jacostaf/tcg-ygoripper-sub000/models"
)

// Auth returns API-key authentication middleware. The key may arrive as an
// X-API-Key header or as an Authorization bearer token. With no configured
// keys the middleware is a no-op, so a deployment without auth stays open.
func Auth(apiKeys []string) gin.HandlerFunc {
	keys := make([][]byte, 0, len(apiKeys))
	for _, k := range apiKeys {
		if k != "" {
			keys = append(keys, []byte(k))
		}
	}
	if len(keys) == 0 {
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		key := requestAPIKey(c)
		if !keyMatches(keys, key) {
			msg := "invalid API key"
			if key == "" {
				msg = "missing API key: provide X-API-Key header or Authorization: Bearer <key>"
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{
				Error: &models.ErrorDetail{
					Code:    models.ErrCodeUnauthorized,
					Message: msg,
				},
			})
			return
		}

		c.Set("api_key", key)
		c.Next()
	}
}

// keyMatches compares the presented key against every configured key in
// constant time, so response timing leaks neither a near-match nor which
// key slot matched.
func keyMatches(keys [][]byte, presented string) bool {
	if presented == "" {
		return false
	}
	p := []byte(presented)
	matched := false
	for _, k := range keys {
		if subtle.ConstantTimeCompare(k, p) == 1 {
			matched = true
		}
	}
	return matched
}

// requestAPIKey tries X-API-Key first, then Authorization: Bearer.
func requestAPIKey(c *gin.Context) string {
	if key := c.GetHeader("X-API-Key"); key != "" {
		return key
	}
	if auth := c.GetHeader("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}

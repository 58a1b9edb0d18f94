package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func apiKeyRouter(key string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/state", APIKey(key), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	return router
}

func TestAPIKey(t *testing.T) {
	for _, tc := range []struct {
		name     string
		key      string
		header   string
		expected int
	}{
		{"matching key", "secret", "Bearer secret", http.StatusOK},
		{"wrong key", "secret", "Bearer nope", http.StatusUnauthorized},
		{"missing header", "secret", "", http.StatusUnauthorized},
		{"unconfigured key", "", "", http.StatusUnauthorized},
		{"unconfigured key with empty bearer", "", "Bearer ", http.StatusUnauthorized},
	} {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/state", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			apiKeyRouter(tc.key).ServeHTTP(w, req)
			if w.Code != tc.expected {
				t.Fatalf("expected %d, got %d", tc.expected, w.Code)
			}
		})
	}
}

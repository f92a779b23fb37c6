package middleware

import (
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/inkpost/inkpost/utils"
)

func TestMain(m *testing.M) {
	os.Setenv("JWT_SECRET", "test-secret-for-unit-tests")
	// Keep the blacklist check off any local Redis instance.
	os.Setenv("REDIS_HOST", "127.0.0.1")
	os.Setenv("REDIS_PORT", "1")
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

func newAuthRouter() (*gin.Engine, map[string]any) {
	r := gin.New()
	captured := map[string]any{}
	r.GET("/protected", AuthRequired(), func(c *gin.Context) {
		for _, key := range []string{ContextUserIDKey, ContextEmailKey, ContextIsAdminKey} {
			if v, ok := c.Get(key); ok {
				captured[key] = v
			}
		}
		c.Status(http.StatusOK)
	})
	return r, captured
}

func TestAuthRequiredRejections(t *testing.T) {
	cases := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"wrong scheme", "Basic abc123"},
		{"empty bearer", "Bearer "},
		{"garbage token", "Bearer not.a.jwt"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r, _ := newAuthRouter()
			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			if w.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", w.Code)
			}
		})
	}
}

func TestAuthRequiredPropagatesClaims(t *testing.T) {
	token, err := utils.GenerateToken(11, "dave@example.com", true)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	r, captured := newAuthRouter()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if v := captured[ContextUserIDKey]; v != uint(11) {
		t.Errorf("user_id in context = %v, want 11", v)
	}
	if v := captured[ContextEmailKey]; v != "dave@example.com" {
		t.Errorf("email in context = %v, want dave@example.com", v)
	}
	if v := captured[ContextIsAdminKey]; v != true {
		t.Errorf("is_admin in context = %v, want true", v)
	}
}

func TestAuthRequiredCaseInsensitiveBearer(t *testing.T) {
	token, err := utils.GenerateToken(5, "erin@example.com", false)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	r, _ := newAuthRouter()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 for lowercase bearer scheme", w.Code)
	}
}

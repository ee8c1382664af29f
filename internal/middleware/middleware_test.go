package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

func signToken(t *testing.T, secret string, claims Claims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func validClaims(roles ...string) Claims {
	return Claims{
		UserID:   "user-1",
		Email:    "owner@example.com",
		TenantID: "tenant-1",
		Roles:    roles,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
}

func echoRouter(handlers ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(handlers...)
	echo := func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"tenant": c.GetString("tenant_id"), "user": c.GetString("user_id")})
	}
	r.GET("/health", echo)
	r.GET("/api/v1/categories", echo)
	r.GET("/api/v1/storefront/tree", echo)
	return r
}

func get(r http.Handler, path string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthMiddleware(t *testing.T) {
	r := echoRouter(AuthMiddleware(testSecret, "/api/v1/storefront"))

	tests := []struct {
		name     string
		path     string
		header   string
		wantCode int
	}{
		{"health skipped", "/health", "", http.StatusOK},
		{"storefront prefix skipped", "/api/v1/storefront/tree", "", http.StatusOK},
		{"missing header", "/api/v1/categories", "", http.StatusUnauthorized},
		{"wrong scheme", "/api/v1/categories", "Basic abc", http.StatusUnauthorized},
		{"bad signature", "/api/v1/categories", "Bearer " + signToken(t, "other-secret", validClaims()), http.StatusUnauthorized},
		{"valid", "/api/v1/categories", "Bearer " + signToken(t, testSecret, validClaims()), http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			headers := map[string]string{}
			if tt.header != "" {
				headers["Authorization"] = tt.header
			}
			w := get(r, tt.path, headers)
			assert.Equal(t, tt.wantCode, w.Code)
		})
	}
}

func TestAuthMiddleware_ExpiredToken(t *testing.T) {
	r := echoRouter(AuthMiddleware(testSecret))
	claims := validClaims()
	claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))

	w := get(r, "/api/v1/categories", map[string]string{"Authorization": "Bearer " + signToken(t, testSecret, claims)})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "INVALID_TOKEN")
}

func TestAuthMiddleware_TokenTenantWinsOverHeader(t *testing.T) {
	r := echoRouter(AuthMiddleware(testSecret), TenantMiddleware())

	w := get(r, "/api/v1/categories", map[string]string{
		"Authorization": "Bearer " + signToken(t, testSecret, validClaims()),
		"X-Tenant-ID":   "spoofed",
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"tenant":"tenant-1","user":"user-1"}`, w.Body.String())
}

func TestRequireAnyRole(t *testing.T) {
	tests := []struct {
		name     string
		roles    []string
		wantCode int
	}{
		{"matching role", []string{"viewer", "store_manager"}, http.StatusOK},
		{"super admin", []string{"super_admin"}, http.StatusOK},
		{"no matching role", []string{"viewer"}, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := echoRouter(AuthMiddleware(testSecret), RequireAnyRole("store_owner", "store_manager"))
			w := get(r, "/api/v1/categories", map[string]string{"Authorization": "Bearer " + signToken(t, testSecret, validClaims(tt.roles...))})
			assert.Equal(t, tt.wantCode, w.Code)
		})
	}
}

func TestRequireAnyRole_WithoutAuth(t *testing.T) {
	r := echoRouter(RequireAnyRole("store_owner"))
	w := get(r, "/api/v1/categories", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "NO_ROLES")
}

func TestTenantMiddleware(t *testing.T) {
	r := echoRouter(TenantMiddleware())

	w := get(r, "/api/v1/categories", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "TENANT_REQUIRED")

	w = get(r, "/api/v1/categories", map[string]string{"X-Tenant-ID": "tenant-9", "X-User-ID": "user-9"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"tenant":"tenant-9","user":"user-9"}`, w.Body.String())
}

func TestCORS(t *testing.T) {
	r := echoRouter(CORS([]string{" https://shop.example.com ", ""}))

	w := get(r, "/health", map[string]string{"Origin": "https://shop.example.com"})
	assert.Equal(t, "https://shop.example.com", w.Header().Get("Access-Control-Allow-Origin"))

	w = get(r, "/health", map[string]string{"Origin": "https://evil.example.com"})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestCORS_DefaultsToLocalOrigins(t *testing.T) {
	r := echoRouter(CORS(nil))

	w := get(r, "/health", map[string]string{"Origin": "http://localhost:4200"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "http://localhost:4200", w.Header().Get("Access-Control-Allow-Origin"))
}

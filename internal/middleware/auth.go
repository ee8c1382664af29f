package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
)

// Claims represents the JWT claims
type Claims struct {
	UserID   string   `json:"user_id"`
	Email    string   `json:"email"`
	TenantID string   `json:"tenant_id"`
	Roles    []string `json:"roles"`
	jwt.RegisteredClaims
}

const superAdminRole = "super_admin"

func abort(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
}

// AuthMiddleware validates HMAC-signed bearer tokens. It is used when the
// service runs without the mesh in front of it. Requests under skipPaths pass
// through untouched.
func AuthMiddleware(jwtSecret string, skipPaths ...string) gin.HandlerFunc {
	skipPaths = append([]string{"/health", "/ready"}, skipPaths...)

	return func(c *gin.Context) {
		path := c.Request.URL.Path
		for _, p := range skipPaths {
			if path == p || strings.HasPrefix(path, p+"/") {
				c.Next()
				return
			}
		}

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abort(c, http.StatusUnauthorized, "MISSING_TOKEN", "Authorization header is required")
			return
		}

		tokenParts := strings.SplitN(authHeader, " ", 2)
		if len(tokenParts) != 2 || tokenParts[0] != "Bearer" {
			abort(c, http.StatusUnauthorized, "INVALID_TOKEN_FORMAT", "Authorization header must be in format: Bearer <token>")
			return
		}

		token, err := jwt.ParseWithClaims(tokenParts[1], &Claims{}, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return []byte(jwtSecret), nil
		})
		if err != nil {
			abort(c, http.StatusUnauthorized, "INVALID_TOKEN", "Invalid or expired token")
			return
		}

		claims, ok := token.Claims.(*Claims)
		if !ok || !token.Valid {
			abort(c, http.StatusUnauthorized, "INVALID_CLAIMS", "Invalid token claims")
			return
		}

		c.Set("user_id", claims.UserID)
		c.Set("user_email", claims.Email)
		c.Set("user_roles", claims.Roles)
		if claims.TenantID != "" {
			c.Set("tenant_id", claims.TenantID)
		}
		c.Next()
	}
}

// RequireAnyRole checks that the token carried one of roles. super_admin
// always passes.
func RequireAnyRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, exists := c.Get("user_roles")
		if !exists {
			abort(c, http.StatusForbidden, "NO_ROLES", "User roles not found")
			return
		}
		userRoles, ok := raw.([]string)
		if !ok {
			abort(c, http.StatusForbidden, "INVALID_ROLES", "Invalid user roles format")
			return
		}

		for _, have := range userRoles {
			if have == superAdminRole {
				c.Next()
				return
			}
			for _, want := range roles {
				if have == want {
					c.Next()
					return
				}
			}
		}
		abort(c, http.StatusForbidden, "INSUFFICIENT_PERMISSIONS", fmt.Sprintf("Required one of roles: %v", roles))
	}
}

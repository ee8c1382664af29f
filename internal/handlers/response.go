package handlers

import (
	"net/http"
	"strconv"

	"catalog-service/internal/events"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	gosharedmw "github.com/Tesseract-Nexus/go-shared/middleware"
)

func errorJSON(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
}

// getTenantID extracts tenant ID from context - fails if not present
// SECURITY: This ensures all operations are tenant-scoped
func getTenantID(c *gin.Context) (string, bool) {
	tenantID := c.GetString("tenant_id")
	if tenantID == "" {
		errorJSON(c, http.StatusUnauthorized, "TENANT_REQUIRED", "Tenant context is required for this operation")
		return "", false
	}
	return tenantID, true
}

func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		errorJSON(c, http.StatusBadRequest, "INVALID_ID", "Invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

// optionalUUIDQuery parses an optional uuid query value; ok is false after a
// 400 has been written
func optionalUUIDQuery(c *gin.Context, name string) (*uuid.UUID, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		errorJSON(c, http.StatusBadRequest, "INVALID_ID", "Invalid "+name)
		return nil, false
	}
	return &id, true
}

// pageParams reads page and limit, clamped to [1, maxLimit]
func pageParams(c *gin.Context, defaultLimit, maxLimit int) (page, limit int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultLimit)))
	if limit < 1 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return page, limit
}

func actorFrom(c *gin.Context) events.Actor {
	actor := gosharedmw.GetActorInfo(c)
	return events.Actor{
		ID:        actor.ActorID,
		Name:      actor.ActorName,
		Email:     actor.ActorEmail,
		ClientIP:  actor.ClientIP,
		UserAgent: actor.UserAgent,
	}
}

package handlers

import (
	"catalog-service/internal/events"
	"catalog-service/internal/models"
	"catalog-service/internal/repository"
	"catalog-service/internal/services"
	"errors"
	"net/http"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var (
	slugInvalidChars = regexp.MustCompile("[^a-z0-9]+")
	slugPattern      = regexp.MustCompile("^[a-z0-9]+(?:-[a-z0-9]+)*$")
)

const maxBulkItems = 100

// PageLimits bounds list endpoints
type PageLimits struct {
	Default int
	Max     int
}

type CategoryHandler struct {
	repo            *repository.CategoryRepository
	trees           TreeReader
	eventsPublisher *events.Publisher
	limits          PageLimits
	logger          *logrus.Entry
}

func NewCategoryHandler(repo *repository.CategoryRepository, trees TreeReader, eventsPublisher *events.Publisher, limits PageLimits, logger *logrus.Logger) *CategoryHandler {
	return &CategoryHandler{
		repo:            repo,
		trees:           trees,
		eventsPublisher: eventsPublisher,
		limits:          limits,
		logger:          logger.WithField("handler", "categories"),
	}
}

func categoryNotFound(c *gin.Context) {
	errorJSON(c, http.StatusNotFound, "CATEGORY_NOT_FOUND", "Category not found")
}

// writeCategoryError maps repository errors to responses
func writeCategoryError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, repository.ErrCategoryNotFound):
		categoryNotFound(c)
	case errors.Is(err, repository.ErrInvalidParent):
		errorJSON(c, http.StatusBadRequest, "INVALID_PARENT", err.Error())
	case errors.Is(err, repository.ErrParentCycle):
		errorJSON(c, http.StatusBadRequest, "PARENT_CYCLE", err.Error())
	case errors.Is(err, repository.ErrDuplicateSlug):
		errorJSON(c, http.StatusConflict, "DUPLICATE_SLUG", err.Error())
	default:
		errorJSON(c, http.StatusInternalServerError, "INTERNAL_ERROR", fallback)
	}
}

func parentString(id *uuid.UUID) string {
	if id == nil {
		return ""
	}
	return id.String()
}

// CreateCategory creates a new category
// @Summary Create category
// @Tags categories
// @Accept json
// @Produce json
// @Param category body models.CreateCategoryRequest true "Category"
// @Success 201 {object} models.Category
// @Failure 400 {object} models.ErrorResponse
// @Router /categories [post]
func (h *CategoryHandler) CreateCategory(c *gin.Context) {
	tenantID, ok := getTenantID(c)
	if !ok {
		return
	}

	var req models.CreateCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request: "+err.Error())
		return
	}

	slug := generateSlug(req.Name)
	if req.Slug != nil && *req.Slug != "" {
		slug = *req.Slug
	}
	if !isValidSlug(slug) {
		errorJSON(c, http.StatusBadRequest, "INVALID_SLUG", "Slug must contain only lowercase letters, numbers, and hyphens")
		return
	}

	ctx := c.Request.Context()

	// Same slug in the same store: return the existing category instead of a duplicate
	if existing, err := h.repo.GetBySlug(ctx, tenantID, req.StoreID, slug); err == nil && existing != nil {
		c.JSON(http.StatusOK, gin.H{"success": true, "data": existing})
		return
	}

	userID := c.GetString("user_id")
	category := &models.Category{
		ID:          uuid.New(),
		TenantID:    tenantID, // Always use tenant from context, never from request
		StoreID:     req.StoreID,
		Name:        strings.TrimSpace(req.Name),
		Slug:        slug,
		Description: req.Description,
		ImageURL:    req.ImageURL,
		ParentID:    req.ParentID,
		Position:    1,
		IsActive:    true,
		Metadata:    req.Metadata,
		CreatedByID: userID,
		UpdatedByID: userID,
	}
	if req.Position != nil {
		category.Position = *req.Position
	}
	if req.IsActive != nil {
		category.IsActive = *req.IsActive
	}

	if err := h.repo.Create(ctx, category); err != nil {
		h.logger.WithError(err).WithField("tenant_id", tenantID).Error("Failed to create category")
		writeCategoryError(c, err, "Failed to create category")
		return
	}

	if h.eventsPublisher != nil {
		if err := h.eventsPublisher.PublishCategoryCreated(ctx, tenantID, category.StoreID.String(), category.ID.String(),
			category.Name, parentString(category.ParentID), category.Slug, actorFrom(c)); err != nil {
			h.logger.WithError(err).Warn("Failed to publish category created event")
		}
	}

	c.JSON(http.StatusCreated, gin.H{"success": true, "data": category})
}

// GetCategoryList returns a page of categories for the current tenant
// @Summary List categories
// @Tags categories
// @Produce json
// @Param storeId query string false "Store ID"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Router /categories [get]
func (h *CategoryHandler) GetCategoryList(c *gin.Context) {
	tenantID, ok := getTenantID(c)
	if !ok {
		return
	}
	storeID, ok := optionalUUIDQuery(c, "storeId")
	if !ok {
		return
	}

	page, limit := pageParams(c, h.limits.Default, h.limits.Max)
	categories, total, err := h.repo.GetAll(c.Request.Context(), tenantID, storeID, limit, (page-1)*limit)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list categories")
		errorJSON(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list categories")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"data":       categories,
		"pagination": models.NewPaginationInfo(page, limit, total),
	})
}

// GetCategoryTree returns the category tree of a store. With withProducts=true
// branches without products anywhere below them are left out.
// @Summary Category tree
// @Tags categories
// @Produce json
// @Param storeId query string true "Store ID"
// @Param withProducts query bool false "Only branches with products"
// @Param catalogId query string false "Catalog ID"
// @Success 200 {object} models.CategoryTreeResponse
// @Router /categories/tree [get]
func (h *CategoryHandler) GetCategoryTree(c *gin.Context) {
	tenantID, ok := getTenantID(c)
	if !ok {
		return
	}
	storeID, err := uuid.Parse(c.Query("storeId"))
	if err != nil {
		errorJSON(c, http.StatusBadRequest, "STORE_REQUIRED", "storeId query parameter is required")
		return
	}
	catalogID, ok := optionalUUIDQuery(c, "catalogId")
	if !ok {
		return
	}

	mode := services.ModeShowcase
	if c.Query("withProducts") == "true" {
		mode = services.ModeRetail
	}

	q := services.TreeQuery{TenantID: tenantID, StoreID: storeID, CatalogID: catalogID, Mode: mode}
	result, err := h.trees.StorefrontTree(c.Request.Context(), q)
	if err != nil {
		h.logger.WithError(err).Error("Failed to build category tree")
		errorJSON(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to build category tree")
		return
	}

	c.JSON(http.StatusOK, treeResponse(q, result))
}

// GetCategory gets a category by ID with tenant isolation
// SECURITY: Only returns category if it belongs to current tenant
func (h *CategoryHandler) GetCategory(c *gin.Context) {
	tenantID, ok := getTenantID(c)
	if !ok {
		return
	}

	category, err := h.repo.GetByID(c.Request.Context(), tenantID, c.Param("id"))
	if err != nil {
		writeCategoryError(c, err, "Failed to get category")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": category})
}

// GetCategoryAncestors returns the ids above a category, nearest parent first
// @Summary Category ancestors
// @Tags categories
// @Produce json
// @Param id path string true "Category ID"
// @Router /categories/{id}/ancestors [get]
func (h *CategoryHandler) GetCategoryAncestors(c *gin.Context) {
	tenantID, ok := getTenantID(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	category, err := h.repo.GetByID(ctx, tenantID, c.Param("id"))
	if err != nil {
		writeCategoryError(c, err, "Failed to get category")
		return
	}

	q := services.TreeQuery{TenantID: tenantID, StoreID: category.StoreID, Mode: services.ModeShowcase}
	chain, err := h.trees.ParentChain(ctx, q, category.ID.String())
	if err != nil {
		errorJSON(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load ancestors")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": chain})
}

// GetCategoryChildren returns the direct subcategories of a category
// @Summary Category children
// @Tags categories
// @Produce json
// @Param id path string true "Category ID"
// @Router /categories/{id}/children [get]
func (h *CategoryHandler) GetCategoryChildren(c *gin.Context) {
	tenantID, ok := getTenantID(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	category, err := h.repo.GetByID(ctx, tenantID, c.Param("id"))
	if err != nil {
		writeCategoryError(c, err, "Failed to get category")
		return
	}

	q := services.TreeQuery{TenantID: tenantID, StoreID: category.StoreID, Mode: services.ModeShowcase}
	children, err := h.trees.DirectChildren(ctx, q, category.ID.String())
	if err != nil {
		errorJSON(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load children")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": children})
}

// UpdateCategory updates a category with tenant isolation
// SECURITY: Only updates category if it belongs to current tenant
func (h *CategoryHandler) UpdateCategory(c *gin.Context) {
	tenantID, ok := getTenantID(c)
	if !ok {
		return
	}

	var req models.UpdateCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request: "+err.Error())
		return
	}
	if req.Slug != nil && !isValidSlug(*req.Slug) {
		errorJSON(c, http.StatusBadRequest, "INVALID_SLUG", "Slug must contain only lowercase letters, numbers, and hyphens")
		return
	}

	ctx := c.Request.Context()
	category, err := h.repo.GetByID(ctx, tenantID, c.Param("id"))
	if err != nil {
		writeCategoryError(c, err, "Failed to get category")
		return
	}

	// Apply partial updates - only update fields that were provided in the request
	if req.Name != nil {
		category.Name = strings.TrimSpace(*req.Name)
	}
	if req.Slug != nil {
		category.Slug = *req.Slug
	}
	if req.Description != nil {
		category.Description = req.Description
	}
	if req.ImageURL != nil {
		category.ImageURL = req.ImageURL
	}
	if req.ClearParent {
		category.ParentID = nil
	} else if req.ParentID != nil {
		if *req.ParentID == category.ID {
			errorJSON(c, http.StatusBadRequest, "PARENT_CYCLE", repository.ErrParentCycle.Error())
			return
		}
		category.ParentID = req.ParentID
	}
	if req.Position != nil {
		category.Position = *req.Position
	}
	if req.IsActive != nil {
		category.IsActive = *req.IsActive
	}
	if req.Metadata != nil {
		category.Metadata = req.Metadata
	}
	category.UpdatedByID = c.GetString("user_id")

	if err := h.repo.Update(ctx, tenantID, category); err != nil {
		h.logger.WithError(err).WithField("category_id", category.ID.String()).Error("Failed to update category")
		writeCategoryError(c, err, "Failed to update category")
		return
	}

	if h.eventsPublisher != nil {
		if err := h.eventsPublisher.PublishCategoryUpdated(ctx, tenantID, category.StoreID.String(), category.ID.String(),
			category.Name, parentString(category.ParentID), category.Slug, actorFrom(c)); err != nil {
			h.logger.WithError(err).Warn("Failed to publish category updated event")
		}
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": category})
}

// DeleteCategory deletes a category with tenant isolation. Its children move
// up to its parent.
// SECURITY: Only deletes category if it belongs to current tenant
func (h *CategoryHandler) DeleteCategory(c *gin.Context) {
	tenantID, ok := getTenantID(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	id := c.Param("id")

	// Get category details before deletion for audit
	category, _ := h.repo.GetByID(ctx, tenantID, id)

	if err := h.repo.Delete(ctx, tenantID, id); err != nil {
		writeCategoryError(c, err, "Failed to delete category")
		return
	}

	if h.eventsPublisher != nil && category != nil {
		if err := h.eventsPublisher.PublishCategoryDeleted(ctx, tenantID, category.StoreID.String(), category.ID.String(),
			category.Name, actorFrom(c)); err != nil {
			h.logger.WithError(err).Warn("Failed to publish category deleted event")
		}
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Category deleted"})
}

// BulkCreateCategories creates multiple categories with transaction support
// POST /api/v1/categories/bulk
// SECURITY: All categories are assigned current tenant, parent validation enforced
func (h *CategoryHandler) BulkCreateCategories(c *gin.Context) {
	tenantID, ok := getTenantID(c)
	if !ok {
		return
	}
	userID := c.GetString("user_id")

	var req models.BulkCreateCategoriesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request format: "+err.Error())
		return
	}
	if len(req.Categories) > maxBulkItems {
		errorJSON(c, http.StatusBadRequest, "TOO_MANY_ITEMS", "Maximum 100 categories can be created in a single request")
		return
	}

	categories := make([]*models.Category, 0, len(req.Categories))
	// origin[i] is the request index of categories[i]
	origin := make([]int, 0, len(req.Categories))
	results := make([]models.BulkCreateResultItem, len(req.Categories))

	for i, item := range req.Categories {
		results[i] = models.BulkCreateResultItem{Index: i, ExternalID: item.ExternalID}

		if strings.TrimSpace(item.Name) == "" {
			results[i].Error = &models.Error{Code: "VALIDATION_ERROR", Message: "Name is required", Field: "name"}
			continue
		}

		slug := generateSlug(item.Name)
		if item.Slug != nil && *item.Slug != "" {
			slug = *item.Slug
		}
		if !isValidSlug(slug) {
			results[i].Error = &models.Error{
				Code:    "INVALID_SLUG",
				Message: "Slug must contain only lowercase letters, numbers, and hyphens",
				Field:   "slug",
			}
			continue
		}

		isActive := true
		if item.IsActive != nil {
			isActive = *item.IsActive
		}
		position := 1
		if item.Position != nil {
			position = *item.Position
		}

		categories = append(categories, &models.Category{
			ID:          uuid.New(),
			TenantID:    tenantID, // SECURITY: Always use tenant from context
			StoreID:     req.StoreID,
			Name:        strings.TrimSpace(item.Name),
			Slug:        slug,
			Description: item.Description,
			ImageURL:    item.ImageURL,
			ParentID:    item.ParentID,
			Position:    position,
			IsActive:    isActive,
			CreatedByID: userID,
			UpdatedByID: userID,
		})
		origin = append(origin, i)
	}

	if len(categories) > 0 {
		result, err := h.repo.BulkCreate(c.Request.Context(), tenantID, categories)
		if err != nil && (result == nil || result.Success == 0) {
			h.logger.WithError(err).Warn("Bulk category create failed")
		}
		if result != nil {
			for _, e := range result.Errors {
				results[origin[e.Index]].Error = &models.Error{Code: e.Code, Message: e.Message}
			}
			for _, created := range result.Created {
				for j, cat := range categories {
					if cat.ID == created.ID {
						results[origin[j]].Success = true
						results[origin[j]].Category = created
						break
					}
				}
			}
		}
	}

	successCount := 0
	for i := range results {
		if results[i].Success {
			results[i].Error = nil
			successCount++
		} else if results[i].Error == nil {
			// rolled back with the rest of the batch
			results[i].Error = &models.Error{Code: "CREATE_FAILED", Message: "Category was not created"}
		}
	}
	failedCount := len(results) - successCount

	status := http.StatusCreated
	if successCount == 0 {
		status = http.StatusBadRequest
	} else if failedCount > 0 {
		status = http.StatusMultiStatus // 207 - partial success
	}

	c.JSON(status, models.BulkCreateCategoriesResponse{
		Success:      successCount > 0,
		TotalCount:   len(req.Categories),
		SuccessCount: successCount,
		FailedCount:  failedCount,
		Results:      results,
	})
}

// BulkDeleteCategories deletes multiple categories with tenant isolation
// DELETE /api/v1/categories/bulk
// SECURITY: Only deletes categories belonging to current tenant
func (h *CategoryHandler) BulkDeleteCategories(c *gin.Context) {
	tenantID, ok := getTenantID(c)
	if !ok {
		return
	}

	var req models.BulkDeleteCategoriesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request format: "+err.Error())
		return
	}
	if len(req.IDs) > maxBulkItems {
		errorJSON(c, http.StatusBadRequest, "TOO_MANY_ITEMS", "Maximum 100 categories can be deleted in a single request")
		return
	}

	ids := make([]string, len(req.IDs))
	for i, id := range req.IDs {
		ids[i] = id.String()
	}

	deletedCount, failedIDs, err := h.repo.BulkDelete(c.Request.Context(), tenantID, ids)
	if err != nil {
		errorJSON(c, http.StatusInternalServerError, "BULK_DELETE_FAILED", "Failed to delete categories: "+err.Error())
		return
	}

	status := http.StatusOK
	if deletedCount == 0 {
		status = http.StatusNotFound
	} else if len(failedIDs) > 0 {
		status = http.StatusMultiStatus
	}

	c.JSON(status, models.BulkDeleteCategoriesResponse{
		Success:      deletedCount > 0,
		TotalCount:   len(req.IDs),
		DeletedCount: int(deletedCount),
		FailedIDs:    failedIDs,
	})
}

// generateSlug creates a URL-friendly slug from a name
func generateSlug(name string) string {
	slug := slugInvalidChars.ReplaceAllString(strings.ToLower(name), "-")
	slug = strings.Trim(slug, "-")
	if len(slug) > 50 {
		slug = strings.TrimRight(slug[:50], "-")
	}
	return slug
}

// isValidSlug validates slug format
func isValidSlug(slug string) bool {
	if slug == "" || len(slug) > 100 {
		return false
	}
	return slugPattern.MatchString(slug)
}

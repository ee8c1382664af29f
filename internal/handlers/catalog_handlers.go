package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"catalog-service/internal/events"
	"catalog-service/internal/models"
	"catalog-service/internal/repository"
	"catalog-service/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// CatalogStore persists catalogs
type CatalogStore interface {
	Create(ctx context.Context, catalog *models.Catalog) error
	GetByID(ctx context.Context, tenantID string, id uuid.UUID) (*models.Catalog, error)
	List(ctx context.Context, tenantID string, storeID uuid.UUID) ([]models.Catalog, error)
	Update(ctx context.Context, tenantID string, catalog *models.Catalog) error
	Delete(ctx context.Context, tenantID string, id uuid.UUID) error
	DeleteSetting(ctx context.Context, tenantID string, catalogID, productID uuid.UUID) error
}

// SettingsWriter stages and applies catalog product setting writes
type SettingsWriter interface {
	SettingsReader
	Upsert(ctx context.Context, tenantID string, catalogID uuid.UUID, userID string, req models.UpsertSettingRequest) (*services.UpsertResult, error)
	Resync(ctx context.Context, tenantID string, catalogID uuid.UUID) error
	Forget(tenantID string, catalogID uuid.UUID)
}

type CatalogHandler struct {
	catalogs        CatalogStore
	settings        SettingsWriter
	eventsPublisher *events.Publisher
	logger          *logrus.Entry
}

func NewCatalogHandler(catalogs CatalogStore, settings SettingsWriter, eventsPublisher *events.Publisher, logger *logrus.Logger) *CatalogHandler {
	return &CatalogHandler{
		catalogs:        catalogs,
		settings:        settings,
		eventsPublisher: eventsPublisher,
		logger:          logger.WithField("handler", "catalogs"),
	}
}

// catalog loads the :id catalog of the current tenant, writing the error response on failure
func (h *CatalogHandler) catalog(c *gin.Context) (string, *models.Catalog, bool) {
	tenantID, ok := getTenantID(c)
	if !ok {
		return "", nil, false
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return "", nil, false
	}
	catalog, err := h.catalogs.GetByID(c.Request.Context(), tenantID, id)
	if err != nil {
		if errors.Is(err, repository.ErrCatalogNotFound) {
			errorJSON(c, http.StatusNotFound, "CATALOG_NOT_FOUND", "Catalog not found")
			return "", nil, false
		}
		errorJSON(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to get catalog")
		return "", nil, false
	}
	return tenantID, catalog, true
}

func normalizeAccessCode(code *string) *string {
	if code == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*code)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

// CreateCatalog creates a catalog
// @Summary Create catalog
// @Tags catalogs
// @Accept json
// @Produce json
// @Param catalog body models.CreateCatalogRequest true "Catalog"
// @Success 201 {object} models.Catalog
// @Router /catalogs [post]
func (h *CatalogHandler) CreateCatalog(c *gin.Context) {
	tenantID, ok := getTenantID(c)
	if !ok {
		return
	}

	var req models.CreateCatalogRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request: "+err.Error())
		return
	}

	catalog := &models.Catalog{
		ID:          uuid.New(),
		TenantID:    tenantID,
		StoreID:     req.StoreID,
		Name:        strings.TrimSpace(req.Name),
		AccessCode:  normalizeAccessCode(req.AccessCode),
		IsDefault:   req.IsDefault,
		IsActive:    true,
		CreatedByID: c.GetString("user_id"),
	}
	if err := h.catalogs.Create(c.Request.Context(), catalog); err != nil {
		h.logger.WithError(err).Error("Failed to create catalog")
		errorJSON(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create catalog")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "data": catalog})
}

// ListCatalogs lists the catalogs of a store
// @Summary List catalogs
// @Tags catalogs
// @Produce json
// @Param storeId query string true "Store ID"
// @Router /catalogs [get]
func (h *CatalogHandler) ListCatalogs(c *gin.Context) {
	tenantID, ok := getTenantID(c)
	if !ok {
		return
	}
	storeID, err := uuid.Parse(c.Query("storeId"))
	if err != nil {
		errorJSON(c, http.StatusBadRequest, "STORE_REQUIRED", "storeId query parameter is required")
		return
	}

	catalogs, err := h.catalogs.List(c.Request.Context(), tenantID, storeID)
	if err != nil {
		errorJSON(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list catalogs")
		return
	}
	if catalogs == nil {
		catalogs = []models.Catalog{}
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": catalogs})
}

// GetCatalog gets a catalog by ID
func (h *CatalogHandler) GetCatalog(c *gin.Context) {
	_, catalog, ok := h.catalog(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": catalog})
}

// UpdateCatalog applies a partial update to a catalog
func (h *CatalogHandler) UpdateCatalog(c *gin.Context) {
	var req models.UpdateCatalogRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request: "+err.Error())
		return
	}

	tenantID, catalog, ok := h.catalog(c)
	if !ok {
		return
	}

	if req.Name != nil {
		catalog.Name = strings.TrimSpace(*req.Name)
	}
	if req.AccessCode != nil {
		catalog.AccessCode = normalizeAccessCode(req.AccessCode)
	}
	if req.IsDefault != nil {
		catalog.IsDefault = *req.IsDefault
	}
	if req.IsActive != nil {
		catalog.IsActive = *req.IsActive
	}

	if err := h.catalogs.Update(c.Request.Context(), tenantID, catalog); err != nil {
		h.logger.WithError(err).WithField("catalog_id", catalog.ID.String()).Error("Failed to update catalog")
		errorJSON(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update catalog")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": catalog})
}

// DeleteCatalog deletes a catalog and its settings
func (h *CatalogHandler) DeleteCatalog(c *gin.Context) {
	tenantID, catalog, ok := h.catalog(c)
	if !ok {
		return
	}

	if err := h.catalogs.Delete(c.Request.Context(), tenantID, catalog.ID); err != nil {
		errorJSON(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to delete catalog")
		return
	}
	h.settings.Forget(tenantID, catalog.ID)
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Catalog deleted"})
}

// ListSettings returns the product settings of a catalog
// @Summary List catalog product settings
// @Tags catalogs
// @Produce json
// @Param id path string true "Catalog ID"
// @Router /catalogs/{id}/settings [get]
func (h *CatalogHandler) ListSettings(c *gin.Context) {
	tenantID, catalog, ok := h.catalog(c)
	if !ok {
		return
	}

	settings, err := h.settings.List(c.Request.Context(), tenantID, catalog.ID)
	if err != nil {
		errorJSON(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list catalog settings")
		return
	}
	if settings == nil {
		settings = []models.CatalogProductSetting{}
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": settings})
}

// UpsertSetting writes one product setting. The response echoes the
// request's correlationId next to the stored row. A failed write reloads the
// catalog's settings; the response then carries resynced=true.
// @Summary Upsert catalog product setting
// @Tags catalogs
// @Accept json
// @Produce json
// @Param id path string true "Catalog ID"
// @Param setting body models.UpsertSettingRequest true "Setting"
// @Success 200 {object} models.UpsertSettingResponse
// @Router /catalogs/{id}/settings [put]
func (h *CatalogHandler) UpsertSetting(c *gin.Context) {
	var req models.UpsertSettingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request: "+err.Error())
		return
	}
	if !req.Status.Valid() {
		errorJSON(c, http.StatusBadRequest, "INVALID_STATUS", "Invalid status value. Allowed: in_stock, out_of_stock, hidden")
		return
	}
	if (req.MarkupPercent != nil && *req.MarkupPercent < -100) || (req.FixedPrice != nil && *req.FixedPrice < 0) {
		errorJSON(c, http.StatusBadRequest, "INVALID_PRICE", "Price override cannot be negative")
		return
	}

	tenantID, catalog, ok := h.catalog(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	userID := c.GetString("user_id")
	result, err := h.settings.Upsert(ctx, tenantID, catalog.ID, userID, req)
	if err != nil {
		if errors.Is(err, services.ErrDuplicateCorrelation) {
			errorJSON(c, http.StatusConflict, "DUPLICATE_CORRELATION", err.Error())
			return
		}
		resp := gin.H{
			"success":       false,
			"correlationId": req.CorrelationID,
			"error": gin.H{
				"code":    "SETTING_WRITE_FAILED",
				"message": "Failed to save catalog setting",
			},
		}
		if result != nil {
			resp["resynced"] = result.Resynced
		}
		c.JSON(http.StatusBadGateway, resp)
		return
	}

	if h.eventsPublisher != nil && result.Setting != nil {
		s := result.Setting
		if err := h.eventsPublisher.PublishCatalogSettingUpdated(ctx, tenantID, catalog.ID.String(), s.ProductID.String(),
			string(s.Status), s.MarkupPercent, s.FixedPrice, userID); err != nil {
			h.logger.WithError(err).Warn("Failed to publish catalog setting event")
		}
	}

	c.JSON(http.StatusOK, models.UpsertSettingResponse{
		Success:       true,
		CorrelationID: result.CorrelationID,
		Data:          result.Setting,
		Resynced:      result.Resynced,
	})
}

// DeleteSetting removes a product's override from a catalog
// @Summary Delete catalog product setting
// @Tags catalogs
// @Param id path string true "Catalog ID"
// @Param productId path string true "Product ID"
// @Router /catalogs/{id}/settings/{productId} [delete]
func (h *CatalogHandler) DeleteSetting(c *gin.Context) {
	productID, ok := uuidParam(c, "productId")
	if !ok {
		return
	}
	tenantID, catalog, ok := h.catalog(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	if err := h.catalogs.DeleteSetting(ctx, tenantID, catalog.ID, productID); err != nil {
		if errors.Is(err, repository.ErrSettingNotFound) {
			errorJSON(c, http.StatusNotFound, "SETTING_NOT_FOUND", "Catalog product setting not found")
			return
		}
		errorJSON(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to delete catalog setting")
		return
	}
	if err := h.settings.Resync(ctx, tenantID, catalog.ID); err != nil {
		h.logger.WithError(err).Warn("Catalog resync after delete failed")
		h.settings.Forget(tenantID, catalog.ID)
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Setting deleted"})
}

// ResyncSettings drops staged writes and reloads a catalog's settings
// @Summary Resync catalog product settings
// @Tags catalogs
// @Param id path string true "Catalog ID"
// @Router /catalogs/{id}/settings/resync [post]
func (h *CatalogHandler) ResyncSettings(c *gin.Context) {
	tenantID, catalog, ok := h.catalog(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	if err := h.settings.Resync(ctx, tenantID, catalog.ID); err != nil {
		errorJSON(c, http.StatusBadGateway, "RESYNC_FAILED", "Failed to reload catalog settings")
		return
	}
	settings, err := h.settings.List(ctx, tenantID, catalog.ID)
	if err != nil {
		errorJSON(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list catalog settings")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": settings})
}

package handlers

import (
	"context"
	"errors"
	"net/http"

	"catalog-service/internal/models"
	"catalog-service/internal/repository"
	"catalog-service/internal/services"
	"catalog-service/internal/tree"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// TreeReader renders and queries category trees
type TreeReader interface {
	StorefrontTree(ctx context.Context, q services.TreeQuery) (*services.TreeResult, error)
	ParentChain(ctx context.Context, q services.TreeQuery, categoryID string) ([]string, error)
	DirectChildren(ctx context.Context, q services.TreeQuery, categoryID string) ([]tree.Category, error)
	SubtreeIDs(ctx context.Context, q services.TreeQuery, categoryID string) ([]uuid.UUID, error)
}

// CatalogGetter loads one catalog of a tenant
type CatalogGetter interface {
	GetByID(ctx context.Context, tenantID string, id uuid.UUID) (*models.Catalog, error)
}

// CatalogFinder resolves the catalog a storefront request browses
type CatalogFinder interface {
	CatalogGetter
	GetByAccessCode(ctx context.Context, tenantID, code string) (*models.Catalog, error)
}

// SettingsReader lists a catalog's product settings
type SettingsReader interface {
	List(ctx context.Context, tenantID string, catalogID uuid.UUID) ([]models.CatalogProductSetting, error)
}

// ProductLister pages through the products of a set of categories
type ProductLister interface {
	ListByCategories(ctx context.Context, tenantID string, storeID uuid.UUID, categoryIDs []uuid.UUID, limit, offset int) ([]models.Product, int64, error)
}

type StorefrontHandler struct {
	trees    TreeReader
	catalogs CatalogFinder
	settings SettingsReader
	products ProductLister
	limits   PageLimits
	logger   *logrus.Entry
}

func NewStorefrontHandler(trees TreeReader, catalogs CatalogFinder, settings SettingsReader, products ProductLister, limits PageLimits, logger *logrus.Logger) *StorefrontHandler {
	return &StorefrontHandler{
		trees:    trees,
		catalogs: catalogs,
		settings: settings,
		products: products,
		limits:   limits,
		logger:   logger.WithField("handler", "storefront"),
	}
}

func treeResponse(q services.TreeQuery, result *services.TreeResult) models.CategoryTreeResponse {
	meta := &models.TreeMeta{
		Mode:       string(q.Mode),
		NodeCount:  result.NodeCount,
		Cached:     result.Cached,
		Diagnostic: result.Report,
	}
	if q.CatalogID != nil {
		id := q.CatalogID.String()
		meta.CatalogID = &id
	}
	nodes := result.Nodes
	if nodes == nil {
		nodes = []*tree.Node{}
	}
	return models.CategoryTreeResponse{Success: true, Data: nodes, Meta: meta}
}

// query reads the store, mode and catalog of a storefront request. The
// catalog comes from catalogId or, failing that, accessCode.
func (h *StorefrontHandler) query(c *gin.Context) (services.TreeQuery, bool) {
	var q services.TreeQuery
	tenantID, ok := getTenantID(c)
	if !ok {
		return q, false
	}
	storeID, ok := uuidParam(c, "storeId")
	if !ok {
		return q, false
	}
	mode, err := services.ParseMode(c.Query("mode"))
	if err != nil {
		errorJSON(c, http.StatusBadRequest, "INVALID_MODE", err.Error())
		return q, false
	}
	q = services.TreeQuery{TenantID: tenantID, StoreID: storeID, Mode: mode}

	ctx := c.Request.Context()
	var catalog *models.Catalog
	if raw := c.Query("catalogId"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			errorJSON(c, http.StatusBadRequest, "INVALID_ID", "Invalid catalogId")
			return q, false
		}
		catalog, err = h.catalogs.GetByID(ctx, tenantID, id)
		if err != nil {
			h.writeCatalogLookupError(c, err)
			return q, false
		}
	} else if code := c.Query("accessCode"); code != "" {
		catalog, err = h.catalogs.GetByAccessCode(ctx, tenantID, code)
		if err != nil {
			h.writeCatalogLookupError(c, err)
			return q, false
		}
	}

	if catalog != nil {
		if catalog.StoreID != storeID || !catalog.IsActive {
			errorJSON(c, http.StatusNotFound, "CATALOG_NOT_FOUND", "Catalog not found")
			return q, false
		}
		q.CatalogID = &catalog.ID
	}
	return q, true
}

func (h *StorefrontHandler) writeCatalogLookupError(c *gin.Context, err error) {
	if errors.Is(err, repository.ErrCatalogNotFound) {
		errorJSON(c, http.StatusNotFound, "CATALOG_NOT_FOUND", "Catalog not found")
		return
	}
	h.logger.WithError(err).Error("Failed to resolve catalog")
	errorJSON(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to resolve catalog")
}

// GetTree returns the storefront category tree. Retail and wholesale leave
// out branches with no products; showcase returns every category.
// @Summary Storefront category tree
// @Tags storefront
// @Produce json
// @Param storeId path string true "Store ID"
// @Param mode query string false "retail, wholesale or showcase"
// @Param catalogId query string false "Catalog ID"
// @Param accessCode query string false "Catalog access code"
// @Success 200 {object} models.CategoryTreeResponse
// @Router /storefront/{storeId}/categories/tree [get]
func (h *StorefrontHandler) GetTree(c *gin.Context) {
	q, ok := h.query(c)
	if !ok {
		return
	}

	result, err := h.trees.StorefrontTree(c.Request.Context(), q)
	if err != nil {
		h.logger.WithError(err).WithField("store_id", q.StoreID.String()).Error("Failed to build storefront tree")
		errorJSON(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to build category tree")
		return
	}
	c.JSON(http.StatusOK, treeResponse(q, result))
}

// GetAncestors returns the ids above a category, nearest parent first. It is
// empty for root and unknown categories.
// @Summary Storefront breadcrumb
// @Tags storefront
// @Produce json
// @Param storeId path string true "Store ID"
// @Param id path string true "Category ID"
// @Router /storefront/{storeId}/categories/{id}/ancestors [get]
func (h *StorefrontHandler) GetAncestors(c *gin.Context) {
	q, ok := h.query(c)
	if !ok {
		return
	}

	chain, err := h.trees.ParentChain(c.Request.Context(), q, c.Param("id"))
	if err != nil {
		errorJSON(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load ancestors")
		return
	}
	if chain == nil {
		chain = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": chain})
}

// GetChildren returns the direct subcategories of a category
// @Summary Storefront subcategories
// @Tags storefront
// @Produce json
// @Param storeId path string true "Store ID"
// @Param id path string true "Category ID"
// @Router /storefront/{storeId}/categories/{id}/children [get]
func (h *StorefrontHandler) GetChildren(c *gin.Context) {
	q, ok := h.query(c)
	if !ok {
		return
	}

	children, err := h.trees.DirectChildren(c.Request.Context(), q, c.Param("id"))
	if err != nil {
		errorJSON(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load children")
		return
	}
	if children == nil {
		children = []tree.Category{}
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": children})
}

// GetProducts lists the products of a category and everything below it,
// priced for the requested catalog and mode. Products hidden in the catalog
// are left out of the page.
// @Summary Storefront category products
// @Tags storefront
// @Produce json
// @Param storeId path string true "Store ID"
// @Param id path string true "Category ID"
// @Router /storefront/{storeId}/categories/{id}/products [get]
func (h *StorefrontHandler) GetProducts(c *gin.Context) {
	q, ok := h.query(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	ids, err := h.trees.SubtreeIDs(ctx, q, c.Param("id"))
	if err != nil {
		errorJSON(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load categories")
		return
	}
	if len(ids) == 0 {
		categoryNotFound(c)
		return
	}

	page, limit := pageParams(c, h.limits.Default, h.limits.Max)
	products, total, err := h.products.ListByCategories(ctx, q.TenantID, q.StoreID, ids, limit, (page-1)*limit)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list products")
		errorJSON(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list products")
		return
	}

	settings := map[uuid.UUID]models.CatalogProductSetting{}
	if q.CatalogID != nil {
		list, err := h.settings.List(ctx, q.TenantID, *q.CatalogID)
		if err != nil {
			h.logger.WithError(err).Error("Failed to load catalog settings")
			errorJSON(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load catalog settings")
			return
		}
		for _, s := range list {
			settings[s.ProductID] = s
		}
	}

	out := make([]models.StorefrontProduct, 0, len(products))
	for _, p := range products {
		setting, found := settings[p.ID]
		if found && setting.Status == models.ProductStatusHidden {
			continue
		}
		out = append(out, presentProduct(p, setting, found, q.Mode))
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"data":       out,
		"pagination": models.NewPaginationInfo(page, limit, total),
	})
}

// presentProduct prices p for mode and applies its catalog setting, if any
func presentProduct(p models.Product, setting models.CatalogProductSetting, hasSetting bool, mode services.Mode) models.StorefrontProduct {
	base := p.Price
	if mode == services.ModeWholesale && p.WholesalePrice != nil {
		base = *p.WholesalePrice
	}

	out := models.StorefrontProduct{Product: p, Status: models.ProductStatusInStock, EffectivePrice: base}
	if p.Quantity <= 0 {
		out.Status = models.ProductStatusOutOfStock
	}
	if hasSetting {
		out.EffectivePrice = setting.EffectivePrice(base)
		if setting.Status == models.ProductStatusOutOfStock {
			out.Status = models.ProductStatusOutOfStock
		}
	}
	return out
}

package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"catalog-service/internal/models"
	"catalog-service/internal/repository"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ProductStore persists store products
type ProductStore interface {
	ProductGetter
	Create(ctx context.Context, product *models.Product) error
}

// CanonicalResolver links a product to its canonical master record
type CanonicalResolver interface {
	Resolve(ctx context.Context, product *models.Product) (*models.CanonicalProduct, bool, error)
}

type ProductHandler struct {
	products  ProductStore
	canonical CanonicalResolver
	logger    *logrus.Entry
}

func NewProductHandler(products ProductStore, canonical CanonicalResolver, logger *logrus.Logger) *ProductHandler {
	return &ProductHandler{
		products:  products,
		canonical: canonical,
		logger:    logger.WithField("handler", "products"),
	}
}

func trimmedOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

// CreateProduct creates a store product and matches it to a canonical product
// @Summary Create product
// @Tags products
// @Accept json
// @Produce json
// @Param product body models.CreateProductRequest true "Product"
// @Success 201 {object} models.Product
// @Router /products [post]
func (h *ProductHandler) CreateProduct(c *gin.Context) {
	tenantID, ok := getTenantID(c)
	if !ok {
		return
	}

	var req models.CreateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		errorJSON(c, http.StatusBadRequest, "VALIDATION_ERROR", "Name is required")
		return
	}

	product := &models.Product{
		ID:             uuid.New(),
		TenantID:       tenantID,
		StoreID:        req.StoreID,
		CategoryID:     req.CategoryID,
		Name:           strings.TrimSpace(req.Name),
		SKU:            trimmedOrNil(req.SKU),
		Barcode:        trimmedOrNil(req.Barcode),
		Price:          req.Price,
		WholesalePrice: req.WholesalePrice,
		Quantity:       req.Quantity,
		IsActive:       true,
	}

	ctx := c.Request.Context()
	if err := h.products.Create(ctx, product); err != nil {
		h.logger.WithError(err).Error("Failed to create product")
		errorJSON(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create product")
		return
	}

	resp := gin.H{"success": true, "data": product}
	canonical, created, err := h.canonical.Resolve(ctx, product)
	if err != nil {
		// The product exists either way; matching can be retried later
		h.logger.WithError(err).WithField("product_id", product.ID.String()).Warn("Failed to resolve canonical product")
	} else {
		resp["canonical"] = gin.H{"id": canonical.ID, "name": canonical.Name, "created": created}
	}
	c.JSON(http.StatusCreated, resp)
}

// GetProduct gets a product by ID
func (h *ProductHandler) GetProduct(c *gin.Context) {
	tenantID, ok := getTenantID(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	product, err := h.products.GetByID(c.Request.Context(), tenantID, id)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			errorJSON(c, http.StatusNotFound, "PRODUCT_NOT_FOUND", "Product not found")
			return
		}
		errorJSON(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to get product")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": product})
}

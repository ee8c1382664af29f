package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"catalog-service/internal/cartbus"
	"catalog-service/internal/events"
	"catalog-service/internal/models"
	"catalog-service/internal/repository"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const cartHeartbeat = 25 * time.Second

// CartStore persists cart lines
type CartStore interface {
	AddItem(ctx context.Context, item *models.CartItem) (*models.CartItem, error)
	ListItems(ctx context.Context, tenantID, cartID string) ([]models.CartItem, error)
	RemoveItem(ctx context.Context, tenantID, cartID string, itemID uuid.UUID) error
}

// ProductGetter loads one product
type ProductGetter interface {
	GetByID(ctx context.Context, tenantID string, id uuid.UUID) (*models.Product, error)
}

type CartHandler struct {
	carts           CartStore
	products        ProductGetter
	catalogs        CatalogGetter
	settings        SettingsReader
	bus             *cartbus.Bus
	eventsPublisher *events.Publisher
	logger          *logrus.Entry
}

func NewCartHandler(carts CartStore, products ProductGetter, catalogs CatalogGetter, settings SettingsReader, bus *cartbus.Bus, eventsPublisher *events.Publisher, logger *logrus.Logger) *CartHandler {
	return &CartHandler{
		carts:           carts,
		products:        products,
		catalogs:        catalogs,
		settings:        settings,
		bus:             bus,
		eventsPublisher: eventsPublisher,
		logger:          logger.WithField("handler", "cart"),
	}
}

func cartID(c *gin.Context) (string, bool) {
	id := strings.TrimSpace(c.Param("cartId"))
	if id == "" || len(id) > 128 {
		errorJSON(c, http.StatusBadRequest, "INVALID_CART", "Invalid cart id")
		return "", false
	}
	return id, true
}

// AddItem adds a product to a cart and notifies the cart's listeners
// @Summary Add to cart
// @Tags cart
// @Accept json
// @Produce json
// @Param cartId path string true "Cart ID"
// @Param item body models.AddCartItemRequest true "Item"
// @Success 201 {object} models.CartItem
// @Router /storefront/cart/{cartId}/items [post]
func (h *CartHandler) AddItem(c *gin.Context) {
	tenantID, ok := getTenantID(c)
	if !ok {
		return
	}
	cart, ok := cartID(c)
	if !ok {
		return
	}

	var req models.AddCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request: "+err.Error())
		return
	}

	ctx := c.Request.Context()
	product, err := h.products.GetByID(ctx, tenantID, req.ProductID)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			errorJSON(c, http.StatusNotFound, "PRODUCT_NOT_FOUND", "Product not found")
			return
		}
		errorJSON(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load product")
		return
	}
	if !product.IsActive {
		errorJSON(c, http.StatusNotFound, "PRODUCT_NOT_FOUND", "Product not found")
		return
	}
	if product.Quantity <= 0 {
		errorJSON(c, http.StatusConflict, "OUT_OF_STOCK", "Product is out of stock")
		return
	}

	price := product.Price
	if req.CatalogID != nil {
		catalog, err := h.catalogs.GetByID(ctx, tenantID, *req.CatalogID)
		if err != nil && !errors.Is(err, repository.ErrCatalogNotFound) {
			h.logger.WithError(err).Error("Failed to resolve catalog")
			errorJSON(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to resolve catalog")
			return
		}
		// The catalog must be a live price list of the product's store
		if err != nil || catalog.StoreID != product.StoreID || !catalog.IsActive {
			errorJSON(c, http.StatusNotFound, "CATALOG_NOT_FOUND", "Catalog not found")
			return
		}

		settings, err := h.settings.List(ctx, tenantID, *req.CatalogID)
		if err != nil {
			errorJSON(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load catalog settings")
			return
		}
		for _, s := range settings {
			if s.ProductID != product.ID {
				continue
			}
			switch s.Status {
			case models.ProductStatusHidden:
				errorJSON(c, http.StatusNotFound, "PRODUCT_NOT_FOUND", "Product not found")
				return
			case models.ProductStatusOutOfStock:
				errorJSON(c, http.StatusConflict, "OUT_OF_STOCK", "Product is out of stock in this catalog")
				return
			}
			price = s.EffectivePrice(product.Price)
			break
		}
	}

	item, err := h.carts.AddItem(ctx, &models.CartItem{
		ID:        uuid.New(),
		TenantID:  tenantID,
		CartID:    cart,
		ProductID: product.ID,
		CatalogID: req.CatalogID,
		Quantity:  req.Quantity,
		UnitPrice: price,
	})
	if err != nil {
		h.logger.WithError(err).WithField("cart_id", cart).Error("Failed to add cart item")
		errorJSON(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to add item")
		return
	}

	h.bus.Publish(cartbus.Event{Type: cartbus.ItemAdded, TenantID: tenantID, CartID: cart, Item: item})

	if h.eventsPublisher != nil {
		catalog := ""
		if req.CatalogID != nil {
			catalog = req.CatalogID.String()
		}
		if err := h.eventsPublisher.PublishCartItemAdded(ctx, tenantID, cart, item.ID.String(), product.ID.String(), catalog, req.Quantity); err != nil {
			h.logger.WithError(err).Warn("Failed to publish cart item added event")
		}
	}

	c.JSON(http.StatusCreated, gin.H{"success": true, "data": item})
}

// GetCart returns the lines of a cart
// @Summary Get cart
// @Tags cart
// @Produce json
// @Param cartId path string true "Cart ID"
// @Router /storefront/cart/{cartId} [get]
func (h *CartHandler) GetCart(c *gin.Context) {
	tenantID, ok := getTenantID(c)
	if !ok {
		return
	}
	cart, ok := cartID(c)
	if !ok {
		return
	}

	items, err := h.carts.ListItems(c.Request.Context(), tenantID, cart)
	if err != nil {
		errorJSON(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load cart")
		return
	}
	if items == nil {
		items = []models.CartItem{}
	}

	total := 0.0
	for _, item := range items {
		total += item.UnitPrice * float64(item.Quantity)
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": gin.H{"cartId": cart, "items": items, "total": total}})
}

// RemoveItem deletes one line of a cart
// @Summary Remove cart item
// @Tags cart
// @Param cartId path string true "Cart ID"
// @Param itemId path string true "Item ID"
// @Router /storefront/cart/{cartId}/items/{itemId} [delete]
func (h *CartHandler) RemoveItem(c *gin.Context) {
	tenantID, ok := getTenantID(c)
	if !ok {
		return
	}
	cart, ok := cartID(c)
	if !ok {
		return
	}
	itemID, ok := uuidParam(c, "itemId")
	if !ok {
		return
	}

	if err := h.carts.RemoveItem(c.Request.Context(), tenantID, cart, itemID); err != nil {
		if errors.Is(err, repository.ErrCartItemNotFound) {
			errorJSON(c, http.StatusNotFound, "CART_ITEM_NOT_FOUND", "Cart item not found")
			return
		}
		errorJSON(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to remove item")
		return
	}

	h.bus.Publish(cartbus.Event{
		Type:     cartbus.ItemRemoved,
		TenantID: tenantID,
		CartID:   cart,
		Item:     &models.CartItem{ID: itemID, TenantID: tenantID, CartID: cart},
	})
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Item removed"})
}

// StreamEvents streams cart changes as server-sent events until the client
// goes away
// @Summary Cart event stream
// @Tags cart
// @Produce text/event-stream
// @Param cartId path string true "Cart ID"
// @Router /storefront/cart/{cartId}/events [get]
func (h *CartHandler) StreamEvents(c *gin.Context) {
	tenantID, ok := getTenantID(c)
	if !ok {
		return
	}
	cart, ok := cartID(c)
	if !ok {
		return
	}

	ch, unsubscribe := h.bus.Subscribe(c.Request.Context(), tenantID, cart)
	defer unsubscribe()

	heartbeat := time.NewTicker(cartHeartbeat)
	defer heartbeat.Stop()

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	c.Stream(func(w io.Writer) bool {
		select {
		case e, open := <-ch:
			if !open {
				return false
			}
			c.SSEvent(e.Type, e)
			return true
		case <-heartbeat.C:
			c.SSEvent("ping", gin.H{"at": time.Now().UTC()})
			return true
		}
	})
}

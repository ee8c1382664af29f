package events

import (
	"context"
	"os"
	"time"

	"github.com/Tesseract-Nexus/go-shared/events"
	"github.com/sirupsen/logrus"
)

// Catalog event types
const (
	CategoryCreated       = "category.created"
	CategoryUpdated       = "category.updated"
	CategoryDeleted       = "category.deleted"
	CatalogSettingUpdated = "catalog.setting.updated"
	CartItemAdded         = "cart.item.added"
)

const (
	categoryStream = "CATEGORY_EVENTS"
	catalogStream  = "CATALOG_EVENTS"
	cartStream     = "CART_EVENTS"
)

// Actor identifies who triggered an event
type Actor struct {
	ID        string
	Name      string
	Email     string
	ClientIP  string
	UserAgent string
}

// CategoryEvent represents a category-related event
type CategoryEvent struct {
	events.BaseEvent
	StoreID      string `json:"storeId"`
	CategoryID   string `json:"categoryId"`
	CategoryName string `json:"categoryName"`
	ParentID     string `json:"parentId,omitempty"`
	Slug         string `json:"slug,omitempty"`
	Status       string `json:"status,omitempty"`
	ActorID      string `json:"actorId,omitempty"`
	ActorName    string `json:"actorName,omitempty"`
	ActorEmail   string `json:"actorEmail,omitempty"`
	ClientIP     string `json:"clientIp,omitempty"`
	UserAgent    string `json:"userAgent,omitempty"`
}

func (e *CategoryEvent) GetSubject() string {
	return e.EventType
}

func (e *CategoryEvent) GetStream() string {
	return categoryStream
}

// CatalogSettingEvent is published when a product's catalog override changes
type CatalogSettingEvent struct {
	events.BaseEvent
	CatalogID     string   `json:"catalogId"`
	ProductID     string   `json:"productId"`
	Status        string   `json:"status"`
	MarkupPercent *float64 `json:"markupPercent,omitempty"`
	FixedPrice    *float64 `json:"fixedPrice,omitempty"`
	ActorID       string   `json:"actorId,omitempty"`
}

func (e *CatalogSettingEvent) GetSubject() string {
	return e.EventType
}

func (e *CatalogSettingEvent) GetStream() string {
	return catalogStream
}

// CartEvent is published when a storefront customer adds to a cart
type CartEvent struct {
	events.BaseEvent
	CartID    string `json:"cartId"`
	ProductID string `json:"productId"`
	CatalogID string `json:"catalogId,omitempty"`
	Quantity  int    `json:"quantity"`
}

func (e *CartEvent) GetSubject() string {
	return e.EventType
}

func (e *CartEvent) GetStream() string {
	return cartStream
}

// Publisher wraps the shared events publisher for catalog events
type Publisher struct {
	publisher *events.Publisher
	logger    *logrus.Entry
}

// NewPublisher creates a new catalog events publisher
func NewPublisher(logger *logrus.Logger) (*Publisher, error) {
	natsURL := os.Getenv("NATS_URL")
	if natsURL == "" {
		natsURL = "nats://nats.nats.svc.cluster.local:4222"
	}

	config := events.DefaultPublisherConfig(natsURL)
	config.Name = "catalog-service"

	publisher, err := events.NewPublisher(config, logger)
	if err != nil {
		return nil, err
	}

	ctx := context.Background()
	streams := map[string][]string{
		categoryStream: {"category.>"},
		catalogStream:  {"catalog.>"},
		cartStream:     {"cart.>"},
	}
	for stream, subjects := range streams {
		if err := publisher.EnsureStream(ctx, stream, subjects); err != nil {
			logger.WithError(err).WithField("stream", stream).Warn("Failed to ensure stream")
		}
	}

	return &Publisher{
		publisher: publisher,
		logger:    logger.WithField("component", "events.publisher"),
	}, nil
}

func (p *Publisher) publishCategory(ctx context.Context, eventType, status, tenantID, storeID, categoryID, name, parentID, slug string, actor Actor) error {
	event := &CategoryEvent{
		BaseEvent: events.BaseEvent{
			EventType: eventType,
			TenantID:  tenantID,
			SourceID:  categoryID,
			Timestamp: time.Now().UTC(),
		},
		StoreID:      storeID,
		CategoryID:   categoryID,
		CategoryName: name,
		ParentID:     parentID,
		Slug:         slug,
		Status:       status,
		ActorID:      actor.ID,
		ActorName:    actor.Name,
		ActorEmail:   actor.Email,
		ClientIP:     actor.ClientIP,
		UserAgent:    actor.UserAgent,
	}
	return p.publisher.Publish(ctx, event)
}

// PublishCategoryCreated publishes a category created event
func (p *Publisher) PublishCategoryCreated(ctx context.Context, tenantID, storeID, categoryID, name, parentID, slug string, actor Actor) error {
	return p.publishCategory(ctx, CategoryCreated, "ACTIVE", tenantID, storeID, categoryID, name, parentID, slug, actor)
}

// PublishCategoryUpdated publishes a category updated event
func (p *Publisher) PublishCategoryUpdated(ctx context.Context, tenantID, storeID, categoryID, name, parentID, slug string, actor Actor) error {
	return p.publishCategory(ctx, CategoryUpdated, "", tenantID, storeID, categoryID, name, parentID, slug, actor)
}

// PublishCategoryDeleted publishes a category deleted event
func (p *Publisher) PublishCategoryDeleted(ctx context.Context, tenantID, storeID, categoryID, name string, actor Actor) error {
	return p.publishCategory(ctx, CategoryDeleted, "DELETED", tenantID, storeID, categoryID, name, "", "", actor)
}

// PublishCatalogSettingUpdated publishes a catalog product setting change
func (p *Publisher) PublishCatalogSettingUpdated(ctx context.Context, tenantID, catalogID, productID, status string, markup, fixedPrice *float64, actorID string) error {
	event := &CatalogSettingEvent{
		BaseEvent: events.BaseEvent{
			EventType: CatalogSettingUpdated,
			TenantID:  tenantID,
			SourceID:  catalogID + ":" + productID,
			Timestamp: time.Now().UTC(),
		},
		CatalogID:     catalogID,
		ProductID:     productID,
		Status:        status,
		MarkupPercent: markup,
		FixedPrice:    fixedPrice,
		ActorID:       actorID,
	}
	return p.publisher.Publish(ctx, event)
}

// PublishCartItemAdded publishes a cart addition
func (p *Publisher) PublishCartItemAdded(ctx context.Context, tenantID, cartID, itemID, productID, catalogID string, quantity int) error {
	event := &CartEvent{
		BaseEvent: events.BaseEvent{
			EventType: CartItemAdded,
			TenantID:  tenantID,
			SourceID:  itemID,
			Timestamp: time.Now().UTC(),
		},
		CartID:    cartID,
		ProductID: productID,
		CatalogID: catalogID,
		Quantity:  quantity,
	}
	return p.publisher.Publish(ctx, event)
}

// IsConnected returns true if connected to NATS
func (p *Publisher) IsConnected() bool {
	return p.publisher.IsConnected()
}

// Close closes the publisher connection
func (p *Publisher) Close() {
	p.publisher.Close()
}

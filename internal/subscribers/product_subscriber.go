package subscribers

import (
	"context"
	"encoding/json"
	"os"
	"sync"
	"time"

	gosharedevents "github.com/Tesseract-Nexus/go-shared/events"
	"github.com/sirupsen/logrus"
)

// TreeInvalidator drops the cached category views of a tenant
type TreeInvalidator interface {
	InvalidateTenant(ctx context.Context, tenantID string)
}

// ProductSubscriber listens for product changes made by the products service.
// Product counts feed the storefront trees, so every change drops the
// tenant's cached trees.
type ProductSubscriber struct {
	subscriber *gosharedevents.Subscriber
	trees      TreeInvalidator
	logger     *logrus.Entry

	mu      sync.Mutex
	cancel  context.CancelFunc
	stopped bool
}

// NewProductSubscriber creates a new product event subscriber
func NewProductSubscriber(trees TreeInvalidator, logger *logrus.Logger) (*ProductSubscriber, error) {
	natsURL := os.Getenv("NATS_URL")
	if natsURL == "" {
		natsURL = "nats://nats.nats.svc.cluster.local:4222"
	}

	config := gosharedevents.DefaultSubscriberConfig(natsURL, "catalog-service-products")
	config.Name = "catalog-service-product-subscriber"
	config.DeliverPolicy = "new"
	config.MaxDeliver = 3
	config.AckWait = 30 * time.Second

	subscriber, err := gosharedevents.NewSubscriber(config, logger)
	if err != nil {
		return nil, err
	}

	return &ProductSubscriber{
		subscriber: subscriber,
		trees:      trees,
		logger:     logger.WithField("component", "product-subscriber"),
	}, nil
}

// Start starts listening for product events
func (s *ProductSubscriber) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	if !s.track(cancel) {
		return context.Canceled
	}

	subjects := []string{
		gosharedevents.ProductCreated,
		gosharedevents.ProductUpdated,
		gosharedevents.ProductDeleted,
	}

	if err := s.subscriber.Subscribe(ctx, gosharedevents.StreamProducts, subjects, s.handleProductMessage); err != nil {
		return err
	}

	s.logger.WithField("subjects", subjects).Info("Product subscriber started successfully")
	return nil
}

// track records the cancel func of a running Start. After Stop it cancels
// immediately and returns false.
func (s *ProductSubscriber) track(cancel context.CancelFunc) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		cancel()
		return false
	}
	s.cancel = cancel
	return true
}

func (s *ProductSubscriber) handleProductMessage(ctx context.Context, msg *gosharedevents.Message) error {
	return handleProductEvent(ctx, s.trees, s.logger, msg.Data)
}

// handleProductEvent drops the cached trees of the event's tenant. Malformed
// payloads are logged and acknowledged.
func handleProductEvent(ctx context.Context, trees TreeInvalidator, logger *logrus.Entry, data []byte) error {
	var event gosharedevents.BaseEvent
	if err := json.Unmarshal(data, &event); err != nil {
		logger.WithError(err).Error("Failed to unmarshal product event")
		return nil // Don't retry for invalid data
	}
	if event.TenantID == "" {
		logger.WithField("event_type", event.EventType).Debug("Ignoring product event without tenant")
		return nil
	}

	trees.InvalidateTenant(ctx, event.TenantID)
	logger.WithFields(logrus.Fields{
		"event_type": event.EventType,
		"tenant_id":  event.TenantID,
	}).Debug("Dropped cached category trees after product change")
	return nil
}

// Stop stops the product subscriber
func (s *ProductSubscriber) Stop() {
	s.mu.Lock()
	s.stopped = true
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if s.subscriber != nil {
		s.subscriber.Close()
	}
	s.logger.Info("Product subscriber stopped")
}

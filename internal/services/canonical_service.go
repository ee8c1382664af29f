package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"catalog-service/internal/models"
	"catalog-service/internal/repository"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// CanonicalStore persists canonical products and their aliases
type CanonicalStore interface {
	FindCanonicalByAlias(ctx context.Context, tenantID string, kind models.AliasKind, value string) (*models.CanonicalProduct, error)
	CreateCanonical(ctx context.Context, canonical *models.CanonicalProduct) error
	AttachAlias(ctx context.Context, alias *models.ProductAlias) error
	SetCanonical(ctx context.Context, tenantID string, productID, canonicalID uuid.UUID) error
}

type CanonicalService struct {
	store  CanonicalStore
	logger *logrus.Entry
}

func NewCanonicalService(store CanonicalStore, logger *logrus.Logger) *CanonicalService {
	return &CanonicalService{
		store:  store,
		logger: logger.WithField("component", "canonical-service"),
	}
}

// NormalizeAlias brings an alias value to the form aliases are matched in.
// Names are lower-cased with whitespace collapsed, SKUs are upper-cased, and
// barcodes keep only letters and digits.
func NormalizeAlias(kind models.AliasKind, value string) string {
	value = strings.TrimSpace(value)
	switch kind {
	case models.AliasName:
		return strings.Join(strings.Fields(strings.ToLower(value)), " ")
	case models.AliasSKU:
		return strings.ToUpper(strings.Join(strings.Fields(value), ""))
	case models.AliasBarcode:
		return strings.Map(func(r rune) rune {
			if unicode.IsLetter(r) || unicode.IsDigit(r) {
				return r
			}
			return -1
		}, value)
	}
	return value
}

type aliasKey struct {
	kind  models.AliasKind
	value string
}

// aliasKeys lists the product's match keys, strongest first
func aliasKeys(product *models.Product) []aliasKey {
	var keys []aliasKey
	if product.Barcode != nil {
		if v := NormalizeAlias(models.AliasBarcode, *product.Barcode); v != "" {
			keys = append(keys, aliasKey{models.AliasBarcode, v})
		}
	}
	if product.SKU != nil {
		if v := NormalizeAlias(models.AliasSKU, *product.SKU); v != "" {
			keys = append(keys, aliasKey{models.AliasSKU, v})
		}
	}
	if v := NormalizeAlias(models.AliasName, product.Name); v != "" {
		keys = append(keys, aliasKey{models.AliasName, v})
	}
	return keys
}

// Resolve links product to a canonical product, matching by barcode, then
// SKU, then name. A new canonical product is created when nothing matches.
// Every key of the product is recorded as an alias of the result.
func (s *CanonicalService) Resolve(ctx context.Context, product *models.Product) (*models.CanonicalProduct, bool, error) {
	keys := aliasKeys(product)
	if len(keys) == 0 {
		return nil, false, fmt.Errorf("product %s has no name, sku or barcode", product.ID)
	}

	var canonical *models.CanonicalProduct
	for _, key := range keys {
		found, err := s.store.FindCanonicalByAlias(ctx, product.TenantID, key.kind, key.value)
		if err == nil {
			canonical = found
			break
		}
		if !errors.Is(err, repository.ErrCanonicalNotFound) {
			return nil, false, fmt.Errorf("failed to look up alias: %w", err)
		}
	}

	created := false
	if canonical == nil {
		canonical = &models.CanonicalProduct{
			ID:       uuid.New(),
			TenantID: product.TenantID,
			Name:     strings.TrimSpace(product.Name),
		}
		if err := s.store.CreateCanonical(ctx, canonical); err != nil {
			return nil, false, fmt.Errorf("failed to create canonical product: %w", err)
		}
		created = true
	}

	for _, key := range keys {
		alias := &models.ProductAlias{
			ID:                 uuid.New(),
			TenantID:           product.TenantID,
			CanonicalProductID: canonical.ID,
			Kind:               key.kind,
			Value:              key.value,
		}
		if err := s.store.AttachAlias(ctx, alias); err != nil {
			return nil, false, fmt.Errorf("failed to attach alias: %w", err)
		}
	}

	if err := s.store.SetCanonical(ctx, product.TenantID, product.ID, canonical.ID); err != nil {
		return nil, false, fmt.Errorf("failed to link product: %w", err)
	}
	product.CanonicalProductID = &canonical.ID

	s.logger.WithFields(logrus.Fields{
		"product_id":   product.ID.String(),
		"canonical_id": canonical.ID.String(),
		"created":      created,
	}).Debug("Resolved canonical product")
	return canonical, created, nil
}

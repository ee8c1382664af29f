package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"

	"catalog-service/internal/models"
	"catalog-service/internal/repository"
	"catalog-service/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

const testTenant = "tenant-1"

func init() {
	gin.SetMode(gin.TestMode)
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// newTestRouter returns an engine whose requests carry the test tenant
func newTestRouter() *gin.Engine {
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("tenant_id", testTenant)
		c.Set("user_id", "user-1")
		c.Next()
	})
	return r
}

func doJSON(t *testing.T, r http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	body := decode(t, w)
	errObj, ok := body["error"].(map[string]interface{})
	require.True(t, ok, "response has no error object: %s", w.Body.String())
	code, _ := errObj["code"].(string)
	return code
}

type fakeCategorySource struct {
	rows []models.CategoryWithCount
}

func (f *fakeCategorySource) ListForTree(_ context.Context, _ string, _ uuid.UUID, _ *uuid.UUID) ([]models.CategoryWithCount, error) {
	return f.rows, nil
}

type fakeCatalogs struct {
	byID           map[uuid.UUID]*models.Catalog
	deletedSetting []uuid.UUID
	settingErr     error
}

func newFakeCatalogs(catalogs ...*models.Catalog) *fakeCatalogs {
	f := &fakeCatalogs{byID: make(map[uuid.UUID]*models.Catalog)}
	for _, c := range catalogs {
		f.byID[c.ID] = c
	}
	return f
}

func (f *fakeCatalogs) Create(_ context.Context, catalog *models.Catalog) error {
	f.byID[catalog.ID] = catalog
	return nil
}

func (f *fakeCatalogs) GetByID(_ context.Context, tenantID string, id uuid.UUID) (*models.Catalog, error) {
	c, ok := f.byID[id]
	if !ok || c.TenantID != tenantID {
		return nil, repository.ErrCatalogNotFound
	}
	return c, nil
}

func (f *fakeCatalogs) GetByAccessCode(_ context.Context, tenantID, code string) (*models.Catalog, error) {
	for _, c := range f.byID {
		if c.TenantID == tenantID && c.AccessCode != nil && *c.AccessCode == code {
			return c, nil
		}
	}
	return nil, repository.ErrCatalogNotFound
}

func (f *fakeCatalogs) List(_ context.Context, tenantID string, storeID uuid.UUID) ([]models.Catalog, error) {
	out := []models.Catalog{}
	for _, c := range f.byID {
		if c.TenantID == tenantID && c.StoreID == storeID {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (f *fakeCatalogs) Update(_ context.Context, _ string, catalog *models.Catalog) error {
	f.byID[catalog.ID] = catalog
	return nil
}

func (f *fakeCatalogs) Delete(_ context.Context, tenantID string, id uuid.UUID) error {
	if _, err := f.GetByID(context.Background(), tenantID, id); err != nil {
		return err
	}
	delete(f.byID, id)
	return nil
}

func (f *fakeCatalogs) DeleteSetting(_ context.Context, _ string, _ uuid.UUID, productID uuid.UUID) error {
	if f.settingErr != nil {
		return f.settingErr
	}
	f.deletedSetting = append(f.deletedSetting, productID)
	return nil
}

type fakeSettings struct {
	byCatalog map[uuid.UUID][]models.CatalogProductSetting

	upsertResult *services.UpsertResult
	upsertErr    error
	upserts      []models.UpsertSettingRequest
	resyncs      int
	forgotten    []uuid.UUID
	listed       []uuid.UUID
}

func newFakeSettings() *fakeSettings {
	return &fakeSettings{byCatalog: make(map[uuid.UUID][]models.CatalogProductSetting)}
}

func (f *fakeSettings) List(_ context.Context, _ string, catalogID uuid.UUID) ([]models.CatalogProductSetting, error) {
	f.listed = append(f.listed, catalogID)
	return f.byCatalog[catalogID], nil
}

func (f *fakeSettings) Upsert(_ context.Context, _ string, _ uuid.UUID, _ string, req models.UpsertSettingRequest) (*services.UpsertResult, error) {
	f.upserts = append(f.upserts, req)
	return f.upsertResult, f.upsertErr
}

func (f *fakeSettings) Resync(_ context.Context, _ string, _ uuid.UUID) error {
	f.resyncs++
	return nil
}

func (f *fakeSettings) Forget(_ string, catalogID uuid.UUID) {
	f.forgotten = append(f.forgotten, catalogID)
}

type fakeProducts struct {
	byID map[uuid.UUID]*models.Product
}

func newFakeProducts(products ...*models.Product) *fakeProducts {
	f := &fakeProducts{byID: make(map[uuid.UUID]*models.Product)}
	for _, p := range products {
		f.byID[p.ID] = p
	}
	return f
}

func (f *fakeProducts) GetByID(_ context.Context, tenantID string, id uuid.UUID) (*models.Product, error) {
	p, ok := f.byID[id]
	if !ok || p.TenantID != tenantID {
		return nil, repository.ErrProductNotFound
	}
	return p, nil
}

func (f *fakeProducts) Create(_ context.Context, product *models.Product) error {
	f.byID[product.ID] = product
	return nil
}

func (f *fakeProducts) ListByCategories(_ context.Context, tenantID string, storeID uuid.UUID, categoryIDs []uuid.UUID, limit, offset int) ([]models.Product, int64, error) {
	wanted := make(map[uuid.UUID]bool, len(categoryIDs))
	for _, id := range categoryIDs {
		wanted[id] = true
	}
	var matched []models.Product
	for _, p := range f.byID {
		if p.TenantID == tenantID && p.StoreID == storeID && p.CategoryID != nil && wanted[*p.CategoryID] {
			matched = append(matched, *p)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].Name < matched[j].Name })
	total := int64(len(matched))
	if offset >= len(matched) {
		return []models.Product{}, total, nil
	}
	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], total, nil
}

func floatPtr(v float64) *float64 {
	return &v
}

package services

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	model "github.com/pdintel/docintel/models"
)

func seedProductWithHistory(t *testing.T, catalog *CatalogService, prices []float64) *model.CanonicalProduct {
	t.Helper()
	p := &model.CanonicalProduct{
		ID:            uuid.NewString(),
		CanonicalName: "Industrial Widget",
		Category:      model.CategoryHardware,
		Manufacturer:  "Acme",
	}
	var history []model.PricePoint
	for i, price := range prices {
		history = append(history, model.PricePoint{
			Price:  price,
			Date:   fmt.Sprintf("2024-%02d-01", i+1),
			Vendor: "Acme Industrial",
		})
	}
	p.SetHistory(history)
	if err := catalog.db.Create(p).Error; err != nil {
		t.Fatalf("failed to seed product: %v", err)
	}
	return p
}

func TestEstimateIGCE(t *testing.T) {
	catalog := newTestCatalog(t)
	p := seedProductWithHistory(t, catalog, []float64{100, 120, 110})

	estimate, err := catalog.EstimateIGCE(p.ID, 10, 0.03)
	assert.NoError(t, err)
	assert.Equal(t, 110.0, estimate.AvgUnitPrice)
	assert.Equal(t, 113.30, estimate.EstimatedUnitPrice)
	assert.Equal(t, 1133.00, estimate.EstimatedTotal)
	assert.Equal(t, 100.0, estimate.MinPrice)
	assert.Equal(t, 120.0, estimate.MaxPrice)
	assert.Equal(t, 3, estimate.DataPoints)
	assert.Len(t, estimate.PriceSources, 3)
	assert.Equal(t, "Industrial Widget", estimate.ProductName)
}

func TestEstimateIGCEZeroEscalation(t *testing.T) {
	catalog := newTestCatalog(t)
	p := seedProductWithHistory(t, catalog, []float64{50})

	estimate, err := catalog.EstimateIGCE(p.ID, 4, 0)
	assert.NoError(t, err)
	assert.Equal(t, 50.0, estimate.EstimatedUnitPrice)
	assert.Equal(t, 200.0, estimate.EstimatedTotal)
	assert.Equal(t, 1, estimate.DataPoints)
}

func TestEstimateIGCEValidation(t *testing.T) {
	catalog := newTestCatalog(t)
	p := seedProductWithHistory(t, catalog, []float64{100})

	var validation *model.ValidationError
	_, err := catalog.EstimateIGCE(p.ID, 0, 0.03)
	assert.ErrorAs(t, err, &validation)

	_, err = catalog.EstimateIGCE(p.ID, -5, 0.03)
	assert.ErrorAs(t, err, &validation)

	_, err = catalog.EstimateIGCE(p.ID, 10, -0.01)
	assert.ErrorAs(t, err, &validation)
}

func TestEstimateIGCENoHistory(t *testing.T) {
	catalog := newTestCatalog(t)
	p := &model.CanonicalProduct{ID: uuid.NewString(), CanonicalName: "Unpriced Widget"}
	p.SetHistory(nil)
	assert.NoError(t, catalog.db.Create(p).Error)

	var insufficient *model.InsufficientDataError
	_, err := catalog.EstimateIGCE(p.ID, 10, 0.03)
	assert.ErrorAs(t, err, &insufficient)

	_, err = catalog.EstimateIGCE("missing", 10, 0.03)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

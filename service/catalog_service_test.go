package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	model "github.com/pdintel/docintel/models"
)

func newTestCatalog(t *testing.T) *CatalogService {
	t.Helper()
	return &CatalogService{db: newTestDB(t), threshold: defaultFuzzyThreshold}
}

func TestNormalizePartNumber(t *testing.T) {
	assert.Equal(t, "ABC-123", NormalizePartNumber("abc-123"))
	assert.Equal(t, "ABC-123", NormalizePartNumber("  ABC - 123 "))
	assert.Equal(t, "", NormalizePartNumber("   "))
}

func TestNameSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, NameSimilarity("Dell Latitude 5440", "dell  latitude 5440 "))
	assert.Equal(t, 0.0, NameSimilarity("", "Dell Latitude 5440"))
	assert.Greater(t, NameSimilarity("Latitude 5440 Laptop", "Latitude 5440 Laptops"), defaultFuzzyThreshold)
	assert.Less(t, NameSimilarity("Latitude 5440 Laptop", "Precision 7780 Tower"), defaultFuzzyThreshold)
}

func TestMatchOrCreatePartNumberWins(t *testing.T) {
	catalog := newTestCatalog(t)
	doc := seedDocument(t, catalog.db, nil)

	first := seedLineItem(t, catalog.db, doc.ID, func(li *model.LineItem) {
		li.PartNumber = "ABC-123"
		li.ProductName = "Industrial Widget"
		li.UnitPrice = f64(100)
	})
	p1, err := catalog.MatchOrCreate(first.ID)
	assert.NoError(t, err)
	assert.Equal(t, "Industrial Widget", p1.CanonicalName)
	assert.Equal(t, []string{"ABC-123"}, p1.PartNumbers())

	// Same part number under different formatting and a different name folds
	// into the same product; the new name becomes an alias.
	second := seedLineItem(t, catalog.db, doc.ID, func(li *model.LineItem) {
		li.LineNumber = 2
		li.PartNumber = "abc 123"
		li.ProductName = "Widget, Industrial Grade"
		li.UnitPrice = f64(120)
	})
	p2, err := catalog.MatchOrCreate(second.ID)
	assert.NoError(t, err)
	assert.Equal(t, p1.ID, p2.ID)
	assert.Equal(t, []string{"ABC-123"}, p2.PartNumbers())
	assert.Equal(t, []string{"Widget, Industrial Grade"}, p2.Aliases())
	assert.Len(t, p2.History(), 2)

	var count int64
	catalog.db.Model(&model.CanonicalProduct{}).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestMatchOrCreateManufacturerAndFuzzy(t *testing.T) {
	catalog := newTestCatalog(t)
	doc := seedDocument(t, catalog.db, nil)

	seed := seedLineItem(t, catalog.db, doc.ID, func(li *model.LineItem) {
		li.ProductName = "Latitude 5440 Laptop"
		li.Manufacturer = "Dell"
		li.UnitPrice = f64(899)
	})
	p1, err := catalog.MatchOrCreate(seed.ID)
	assert.NoError(t, err)

	t.Run("exact manufacturer and name", func(t *testing.T) {
		li := seedLineItem(t, catalog.db, doc.ID, func(li *model.LineItem) {
			li.LineNumber = 2
			li.ProductName = "latitude 5440  laptop"
			li.Manufacturer = "DELL"
		})
		p, err := catalog.MatchOrCreate(li.ID)
		assert.NoError(t, err)
		assert.Equal(t, p1.ID, p.ID)
	})

	t.Run("fuzzy name above threshold", func(t *testing.T) {
		li := seedLineItem(t, catalog.db, doc.ID, func(li *model.LineItem) {
			li.LineNumber = 3
			li.ProductName = "Latitude 5440 Laptops"
			li.Manufacturer = "Dell"
		})
		p, err := catalog.MatchOrCreate(li.ID)
		assert.NoError(t, err)
		assert.Equal(t, p1.ID, p.ID)
	})

	t.Run("manufacturer mismatch blocks a fuzzy match", func(t *testing.T) {
		li := seedLineItem(t, catalog.db, doc.ID, func(li *model.LineItem) {
			li.LineNumber = 4
			li.ProductName = "Latitude 5440 Laptops"
			li.Manufacturer = "HP"
		})
		p, err := catalog.MatchOrCreate(li.ID)
		assert.NoError(t, err)
		assert.NotEqual(t, p1.ID, p.ID)
	})

	t.Run("no identity at all is rejected", func(t *testing.T) {
		li := seedLineItem(t, catalog.db, doc.ID, func(li *model.LineItem) {
			li.LineNumber = 5
			li.Quantity = f64(3)
		})
		var validation *model.ValidationError
		_, err := catalog.MatchOrCreate(li.ID)
		assert.ErrorAs(t, err, &validation)
	})
}

func TestMatchOrCreatePriceHistoryAggregates(t *testing.T) {
	catalog := newTestCatalog(t)
	earlier := seedDocument(t, catalog.db, func(d *model.Document) {
		d.DocumentDate = "2024-01-15"
	})
	later := seedDocument(t, catalog.db, func(d *model.Document) {
		d.DocumentDate = "2024-06-01"
		d.VendorName = "Globex"
	})

	li1 := seedLineItem(t, catalog.db, earlier.ID, func(li *model.LineItem) {
		li.PartNumber = "PN-9"
		li.ProductName = "Sensor Array"
		li.UnitPrice = f64(150)
	})
	li2 := seedLineItem(t, catalog.db, later.ID, func(li *model.LineItem) {
		li.PartNumber = "PN-9"
		li.ProductName = "Sensor Array"
		li.UnitPrice = f64(130)
	})

	// Merge the later observation first: history must still come out ordered
	// by document date, with the last known price from the latest date.
	_, err := catalog.MatchOrCreate(li2.ID)
	assert.NoError(t, err)
	p, err := catalog.MatchOrCreate(li1.ID)
	assert.NoError(t, err)

	history := p.History()
	assert.Len(t, history, 2)
	assert.Equal(t, "2024-01-15", history[0].Date)
	assert.Equal(t, "2024-06-01", history[1].Date)
	assert.Equal(t, 130.0, *p.LastKnownPrice)
	assert.Equal(t, "2024-06-01", p.LastPriceDate)
	assert.Equal(t, 140.0, *p.AvgPrice)
	assert.Equal(t, 130.0, *p.MinPrice)
	assert.Equal(t, 150.0, *p.MaxPrice)
	assert.Equal(t, "Globex", history[1].Vendor)
}

func TestRebuild(t *testing.T) {
	catalog := newTestCatalog(t)
	docA := seedDocument(t, catalog.db, func(d *model.Document) {
		d.DocumentDate = "2024-01-15"
	})
	docB := seedDocument(t, catalog.db, func(d *model.Document) {
		d.DocumentDate = "2024-03-10"
		d.CreatedAt = docA.CreatedAt.Add(time.Hour)
	})

	seedLineItem(t, catalog.db, docA.ID, func(li *model.LineItem) {
		li.PartNumber = "ABC-123"
		li.ProductName = "Industrial Widget"
		li.UnitPrice = f64(100)
	})
	seedLineItem(t, catalog.db, docB.ID, func(li *model.LineItem) {
		li.PartNumber = "abc 123"
		li.ProductName = "Widget (Industrial)"
		li.UnitPrice = f64(120)
	})
	seedLineItem(t, catalog.db, docB.ID, func(li *model.LineItem) {
		li.LineNumber = 2
		li.ProductName = "Mounting Bracket"
		li.UnitPrice = f64(15)
	})
	// No identity: skipped, not an error.
	seedLineItem(t, catalog.db, docB.ID, func(li *model.LineItem) {
		li.LineNumber = 3
		li.Quantity = f64(4)
	})

	// A stale product from earlier processing must not survive the rebuild.
	stale := model.CanonicalProduct{ID: "stale", CanonicalName: "Ghost Product"}
	stale.SetHistory(nil)
	assert.NoError(t, catalog.db.Create(&stale).Error)

	result, err := catalog.Rebuild()
	assert.NoError(t, err)
	assert.Equal(t, 2, result.ProductsCreated)
	assert.Equal(t, 3, result.ItemsReplayed)
	assert.Equal(t, 1, result.ItemsSkipped)

	var products []model.CanonicalProduct
	assert.NoError(t, catalog.db.Order("canonical_name").Find(&products).Error)
	assert.Len(t, products, 2)

	// The shared part number collapses both documents into one product with
	// the full price history in date order.
	widget := products[0]
	if widget.CanonicalName != "Industrial Widget" {
		widget = products[1]
	}
	assert.Equal(t, []string{"ABC-123"}, widget.PartNumbers())
	history := widget.History()
	assert.Len(t, history, 2)
	assert.Equal(t, 100.0, history[0].Price)
	assert.Equal(t, 120.0, history[1].Price)
}

func TestListProducts(t *testing.T) {
	catalog := newTestCatalog(t)
	doc := seedDocument(t, catalog.db, nil)
	for _, name := range []string{"Sensor Array", "Mounting Bracket"} {
		li := seedLineItem(t, catalog.db, doc.ID, func(li *model.LineItem) {
			li.ProductName = name
			li.Category = model.CategoryHardware
		})
		_, err := catalog.MatchOrCreate(li.ID)
		assert.NoError(t, err)
	}

	all, total, err := catalog.ListProducts("", "", 1, 25)
	assert.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, all, 2)

	filtered, total, err := catalog.ListProducts("Sensor", "", 1, 25)
	assert.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, "Sensor Array", filtered[0].CanonicalName)

	_, err = catalog.GetProduct("nope")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

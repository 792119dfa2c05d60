package services

import (
	"fmt"
	"log"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/agext/levenshtein"
	"github.com/google/uuid"
	"gorm.io/gorm"

	model "github.com/pdintel/docintel/models"
)

// defaultFuzzyThreshold is the minimum name similarity accepted as a match.
const defaultFuzzyThreshold = 0.82

// CatalogService folds line items into the canonical product catalog,
// merging duplicates found under different spellings and part numbers.
type CatalogService struct {
	db        *gorm.DB
	threshold float64
}

func NewCatalogService(db *gorm.DB) *CatalogService {
	threshold := defaultFuzzyThreshold
	if v := os.Getenv("CATALOG_FUZZY_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 && f <= 1 {
			threshold = f
		}
	}
	return &CatalogService{db: db, threshold: threshold}
}

// NormalizePartNumber uppercases and strips all whitespace so vendor
// formatting differences collapse to one identifier.
func NormalizePartNumber(pn string) string {
	return strings.ToUpper(strings.Join(strings.Fields(pn), ""))
}

// NormalizeName lowercases and collapses runs of whitespace.
func NormalizeName(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

// NameSimilarity scores two normalized product names in [0,1]. Pure function
// so the similarity step is testable apart from merge logic.
func NameSimilarity(a, b string) float64 {
	a, b = NormalizeName(a), NormalizeName(b)
	if a == "" || b == "" {
		return 0
	}
	return levenshtein.Similarity(a, b, nil)
}

// MatchOrCreate folds one line item into the catalog and returns the product
// it now belongs to. Matching precedence: exact part number, exact
// manufacturer+name, fuzzy name, then create.
func (s *CatalogService) MatchOrCreate(lineItemID string) (*model.CanonicalProduct, error) {
	var li model.LineItem
	if err := s.db.First(&li, "id = ?", lineItemID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("line item %s: %w", lineItemID, model.ErrNotFound)
		}
		return nil, err
	}
	var doc model.Document
	if err := s.db.First(&doc, "id = ?", li.DocumentID).Error; err != nil {
		return nil, fmt.Errorf("failed to load document for line item %s: %w", lineItemID, err)
	}

	var product *model.CanonicalProduct
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		product, _, err = s.matchOrCreateTx(tx, &li, doc.VendorName, doc.DocumentDate)
		return err
	})
	return product, err
}

// matchOrCreateTx runs the match inside the caller's transaction so Rebuild
// can replay items against a consistent snapshot. The bool reports whether a
// new product was created.
func (s *CatalogService) matchOrCreateTx(tx *gorm.DB, li *model.LineItem, vendor, docDate string) (*model.CanonicalProduct, bool, error) {
	if strings.TrimSpace(li.ProductName) == "" && strings.TrimSpace(li.PartNumber) == "" {
		return nil, false, &model.ValidationError{Field: "line_item", Message: "has neither product name nor part number"}
	}

	var products []model.CanonicalProduct
	if err := tx.Find(&products).Error; err != nil {
		return nil, false, fmt.Errorf("failed to load catalog: %w", err)
	}

	matched := s.findMatch(products, li)
	if matched == nil {
		created := s.seedProduct(li)
		s.mergeLineItem(created, li, vendor, docDate)
		if err := tx.Create(created).Error; err != nil {
			return nil, false, fmt.Errorf("failed to create canonical product: %w", err)
		}
		return created, true, nil
	}

	s.mergeLineItem(matched, li, vendor, docDate)
	if err := tx.Save(matched).Error; err != nil {
		return nil, false, fmt.Errorf("failed to update canonical product %s: %w", matched.ID, err)
	}
	return matched, false, nil
}

// findMatch applies the precedence order; first match wins.
func (s *CatalogService) findMatch(products []model.CanonicalProduct, li *model.LineItem) *model.CanonicalProduct {
	// 1. Exact part number.
	if pn := NormalizePartNumber(li.PartNumber); pn != "" {
		for i := range products {
			for _, known := range products[i].PartNumbers() {
				if NormalizePartNumber(known) == pn {
					return &products[i]
				}
			}
		}
	}

	name := NormalizeName(li.ProductName)
	if name == "" {
		return nil
	}
	mfr := NormalizeName(li.Manufacturer)

	// 2. Exact manufacturer + canonical name.
	for i := range products {
		if NormalizeName(products[i].Manufacturer) == mfr && NormalizeName(products[i].CanonicalName) == name {
			return &products[i]
		}
	}

	// 3. Fuzzy name against canonical names and aliases. Order-dependent:
	// the first-seen canonical name wins ties, which is why Rebuild replays
	// in a stable order.
	var best *model.CanonicalProduct
	bestScore := 0.0
	for i := range products {
		p := &products[i]
		if mfr != "" && NormalizeName(p.Manufacturer) != "" && NormalizeName(p.Manufacturer) != mfr {
			continue
		}
		score := NameSimilarity(li.ProductName, p.CanonicalName)
		for _, alias := range p.Aliases() {
			if s2 := NameSimilarity(li.ProductName, alias); s2 > score {
				score = s2
			}
		}
		if score > bestScore {
			bestScore = score
			best = p
		}
	}
	if best != nil && bestScore >= s.threshold {
		return best
	}
	return nil
}

func (s *CatalogService) seedProduct(li *model.LineItem) *model.CanonicalProduct {
	p := &model.CanonicalProduct{
		ID:            uuid.NewString(),
		CanonicalName: strings.TrimSpace(li.ProductName),
		Category:      li.Category,
		Manufacturer:  strings.TrimSpace(li.Manufacturer),
	}
	if p.CanonicalName == "" {
		p.CanonicalName = strings.TrimSpace(li.PartNumber)
	}
	p.SetPartNumbers(nil)
	p.SetAliases(nil)
	p.SetHistory(nil)
	return p
}

// mergeLineItem merges the line item's identifiers and price observation into
// the product, recomputing aggregates from the full history.
func (s *CatalogService) mergeLineItem(p *model.CanonicalProduct, li *model.LineItem, vendor, docDate string) {
	if pn := strings.TrimSpace(li.PartNumber); pn != "" {
		pns := p.PartNumbers()
		if !containsNormalized(pns, pn, NormalizePartNumber) {
			p.SetPartNumbers(append(pns, pn))
		}
	}

	if name := strings.TrimSpace(li.ProductName); name != "" &&
		NormalizeName(name) != NormalizeName(p.CanonicalName) {
		aliases := p.Aliases()
		if !containsNormalized(aliases, name, NormalizeName) {
			p.SetAliases(append(aliases, name))
		}
	}

	if p.Category == "" && li.Category != "" {
		p.Category = li.Category
	}
	if p.Manufacturer == "" && strings.TrimSpace(li.Manufacturer) != "" {
		p.Manufacturer = strings.TrimSpace(li.Manufacturer)
	}

	if li.UnitPrice != nil {
		date := docDate
		if date == "" {
			date = li.CreatedAt.Format("2006-01-02")
		}
		history := append(p.History(), model.PricePoint{
			Price:  *li.UnitPrice,
			Date:   date,
			Vendor: vendor,
		})
		sort.SliceStable(history, func(i, j int) bool {
			return history[i].Date < history[j].Date
		})
		p.SetHistory(history)
	}
}

func containsNormalized(values []string, candidate string, norm func(string) string) bool {
	n := norm(candidate)
	for _, v := range values {
		if norm(v) == n {
			return true
		}
	}
	return false
}

// RebuildResult summarizes a full catalog rebuild.
type RebuildResult struct {
	ProductsCreated int `json:"products_created"`
	ItemsReplayed   int `json:"items_replayed"`
	ItemsSkipped    int `json:"items_skipped"`
}

// Rebuild discards the catalog and replays every line item in document
// creation order, then line number. Runs in one transaction so it sees a
// consistent snapshot and concurrent document processing never half-merges.
func (s *CatalogService) Rebuild() (*RebuildResult, error) {
	result := &RebuildResult{}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&model.CanonicalProduct{}).Error; err != nil {
			return fmt.Errorf("failed to clear catalog: %w", err)
		}

		var docs []model.Document
		if err := tx.Order("created_at").Find(&docs).Error; err != nil {
			return fmt.Errorf("failed to snapshot documents: %w", err)
		}
		docByID := make(map[string]*model.Document, len(docs))
		docOrder := make(map[string]int, len(docs))
		for i := range docs {
			docByID[docs[i].ID] = &docs[i]
			docOrder[docs[i].ID] = i
		}

		var items []model.LineItem
		if err := tx.Find(&items).Error; err != nil {
			return fmt.Errorf("failed to snapshot line items: %w", err)
		}

		// Stable replay order: document creation time, then line number.
		sort.SliceStable(items, func(i, j int) bool {
			if docOrder[items[i].DocumentID] != docOrder[items[j].DocumentID] {
				return docOrder[items[i].DocumentID] < docOrder[items[j].DocumentID]
			}
			if items[i].LineNumber != items[j].LineNumber {
				return items[i].LineNumber < items[j].LineNumber
			}
			return items[i].CreatedAt.Before(items[j].CreatedAt)
		})

		for i := range items {
			li := items[i]
			if strings.TrimSpace(li.ProductName) == "" && strings.TrimSpace(li.PartNumber) == "" {
				result.ItemsSkipped++
				continue
			}
			vendor, docDate := "", ""
			if doc, ok := docByID[li.DocumentID]; ok {
				vendor, docDate = doc.VendorName, doc.DocumentDate
			}
			_, created, err := s.matchOrCreateTx(tx, &li, vendor, docDate)
			if err != nil {
				return fmt.Errorf("replay failed on line item %s: %w", li.ID, err)
			}
			if created {
				result.ProductsCreated++
			}
			result.ItemsReplayed++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Printf("catalog rebuilt: %d products from %d line items (%d skipped)",
		result.ProductsCreated, result.ItemsReplayed, result.ItemsSkipped)
	return result, nil
}

// ListProducts returns a catalog page with optional name/manufacturer/category
// search.
func (s *CatalogService) ListProducts(search, category string, page, perPage int) ([]model.CanonicalProduct, int64, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 25
	}

	q := s.db.Model(&model.CanonicalProduct{})
	if search != "" {
		like := "%" + search + "%"
		q = q.Where("canonical_name LIKE ? OR manufacturer LIKE ?", like, like)
	}
	if category != "" {
		q = q.Where("category = ?", category)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var products []model.CanonicalProduct
	err := q.Order("canonical_name").
		Offset((page - 1) * perPage).Limit(perPage).
		Find(&products).Error
	return products, total, err
}

// GetProduct loads one product.
func (s *CatalogService) GetProduct(id string) (*model.CanonicalProduct, error) {
	var p model.CanonicalProduct
	if err := s.db.First(&p, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("product %s: %w", id, model.ErrNotFound)
		}
		return nil, err
	}
	return &p, nil
}

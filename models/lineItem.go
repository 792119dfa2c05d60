package models

import "time"

// Line item categories.
const (
	CategoryHardware    = "hardware"
	CategorySoftware    = "software"
	CategoryService     = "service"
	CategoryLicense     = "license"
	CategoryMaintenance = "maintenance"
	CategoryLabor       = "labor"
	CategoryOther       = "other"
)

// LineItem is one extracted row, owned by exactly one Document. Deleting or
// reprocessing the document deletes its line items.
type LineItem struct {
	ID         string `gorm:"type:uuid;primaryKey" json:"id"`
	DocumentID string `gorm:"type:uuid;not null;index" json:"document_id"`

	// Line identification
	LineNumber int    `json:"line_number"`
	CLIN       string `json:"clin"`
	SLIN       string `json:"slin"`

	// Product identification
	PartNumber             string `gorm:"index" json:"part_number"`
	Manufacturer           string `json:"manufacturer"`
	ManufacturerPartNumber string `json:"manufacturer_part_number"`
	ProductName            string `gorm:"index" json:"product_name"`
	ProductDescription     string `json:"product_description"`

	// Categorization
	Category    string `gorm:"index" json:"category"`
	SubCategory string `json:"sub_category"`

	// Quantity and pricing
	Quantity        *float64 `json:"quantity"`
	UnitOfIssue     string   `json:"unit_of_issue"` // each, lot, month, year, hour
	UnitPrice       *float64 `json:"unit_price"`
	ExtendedPrice   *float64 `json:"extended_price"`
	DiscountPercent *float64 `json:"discount_percent"`
	DiscountAmount  *float64 `json:"discount_amount"`

	// Labor
	LaborCategory string   `json:"labor_category"`
	LaborHours    *float64 `json:"labor_hours"`
	LaborRate     *float64 `json:"labor_rate"`

	PeriodStart string `json:"period_start"`
	PeriodEnd   string `json:"period_end"`

	// Mapping provenance
	MappingConfidence *float64 `json:"mapping_confidence"`
	HumanVerified     bool     `gorm:"default:false" json:"human_verified"`

	// PriceFlagged is set when quantity*unit_price minus discount disagrees
	// with extended_price beyond epsilon. The value is never corrected.
	PriceFlagged bool `gorm:"default:false" json:"price_flagged"`

	// Original raw row, retained for audit and re-mapping.
	OriginalRowText string `json:"original_row_text"`

	CreatedAt time.Time `json:"created_at"`
}

// priceEpsilon tolerates rounding in vendor-produced extended prices.
const priceEpsilon = 0.01

// CheckExtendedPrice flags the item when extended price disagrees with
// quantity * unit price minus discount. Returns the flag it set.
func (li *LineItem) CheckExtendedPrice() bool {
	if li.Quantity == nil || li.UnitPrice == nil || li.ExtendedPrice == nil {
		li.PriceFlagged = false
		return false
	}
	expected := *li.Quantity * *li.UnitPrice
	if li.DiscountAmount != nil {
		expected -= *li.DiscountAmount
	} else if li.DiscountPercent != nil {
		expected *= 1 - *li.DiscountPercent/100
	}
	diff := *li.ExtendedPrice - expected
	if diff < 0 {
		diff = -diff
	}
	tolerance := priceEpsilon
	if expected > 1 {
		tolerance = priceEpsilon * expected
	}
	li.PriceFlagged = diff > tolerance
	return li.PriceFlagged
}

// ValidCategory reports whether c is one of the enumerated categories.
func ValidCategory(c string) bool {
	switch c {
	case CategoryHardware, CategorySoftware, CategoryService, CategoryLicense,
		CategoryMaintenance, CategoryLabor, CategoryOther:
		return true
	}
	return false
}

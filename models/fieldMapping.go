package models

import "time"

// Mapping sources: a stored rule confirmed by a human, or a fresh adapter
// suggestion not yet confirmed.
const (
	MappingSourceStored    = "stored"
	MappingSourceSuggested = "suggested"
)

// FieldMapping is a learned rule translating one vendor's raw column header
// into a canonical line-item field. Shared across documents; at most one
// active mapping per (vendor_name, source_column_name).
type FieldMapping struct {
	ID               string    `gorm:"type:uuid;primaryKey" json:"id"`
	VendorName       string    `gorm:"not null;uniqueIndex:idx_vendor_column" json:"vendor_name"`
	SourceColumnName string    `gorm:"not null;uniqueIndex:idx_vendor_column" json:"source_column_name"`
	TargetField      string    `gorm:"not null" json:"target_field"`
	Confidence       float64   `gorm:"default:1.0" json:"confidence"`
	TimesConfirmed   int       `gorm:"default:0" json:"times_confirmed"`
	Source           string    `gorm:"default:suggested" json:"source"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Canonical target fields a raw column can map to.
var CanonicalFields = []string{
	"line_number", "clin", "slin",
	"part_number", "manufacturer", "manufacturer_part_number",
	"product_name", "product_description",
	"category", "sub_category",
	"quantity", "unit_of_issue", "unit_price", "extended_price",
	"discount_percent", "discount_amount",
	"labor_category", "labor_hours", "labor_rate",
	"period_start", "period_end",
}

// ValidTargetField reports whether f is a canonical line-item field.
func ValidTargetField(f string) bool {
	for _, c := range CanonicalFields {
		if c == f {
			return true
		}
	}
	return false
}

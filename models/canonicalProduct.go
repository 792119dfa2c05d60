package models

import (
	"encoding/json"
	"log"
	"time"

	"gorm.io/datatypes"
)

// PricePoint is one observation in a product's price history.
type PricePoint struct {
	Price  float64 `json:"price"`
	Date   string  `json:"date"` // YYYY-MM-DD, from the source document
	Vendor string  `json:"vendor"`
}

// CanonicalProduct is a deduplicated real-world product aggregating line items
// seen across many documents and vendors. Aggregate price fields are always
// recomputed from the full history, never hand-edited.
type CanonicalProduct struct {
	ID            string `gorm:"type:uuid;primaryKey" json:"id"`
	CanonicalName string `gorm:"not null;index" json:"canonical_name"`
	Category      string `json:"category"`
	Manufacturer  string `gorm:"index" json:"manufacturer"`

	// Known identifiers, JSON arrays behaving as sets.
	KnownPartNumbers datatypes.JSON `json:"known_part_numbers"`
	KnownAliases     datatypes.JSON `json:"known_aliases"`

	// Pricing intelligence
	LastKnownPrice *float64       `json:"last_known_price"`
	LastPriceDate  string         `json:"last_price_date"`
	AvgPrice       *float64       `json:"avg_price"`
	MinPrice       *float64       `json:"min_price"`
	MaxPrice       *float64       `json:"max_price"`
	PriceHistory   datatypes.JSON `json:"price_history"` // ordered by date, append-only outside rebuild

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PartNumbers decodes the known part number set.
func (p *CanonicalProduct) PartNumbers() []string {
	return decodeStrings(p.KnownPartNumbers)
}

// Aliases decodes the known alias set.
func (p *CanonicalProduct) Aliases() []string {
	return decodeStrings(p.KnownAliases)
}

// History decodes the price history.
func (p *CanonicalProduct) History() []PricePoint {
	if len(p.PriceHistory) == 0 {
		return nil
	}
	var pts []PricePoint
	if err := json.Unmarshal(p.PriceHistory, &pts); err != nil {
		log.Printf("corrupt price history on product %s: %v", p.ID, err)
		return nil
	}
	return pts
}

// SetPartNumbers encodes the part number set.
func (p *CanonicalProduct) SetPartNumbers(pns []string) {
	p.KnownPartNumbers = encodeStrings(pns)
}

// SetAliases encodes the alias set.
func (p *CanonicalProduct) SetAliases(aliases []string) {
	p.KnownAliases = encodeStrings(aliases)
}

// SetHistory encodes the price history and recomputes last/avg/min/max from
// it. History must already be ordered by date ascending.
func (p *CanonicalProduct) SetHistory(pts []PricePoint) {
	b, err := json.Marshal(pts)
	if err != nil {
		b = []byte("[]")
	}
	p.PriceHistory = datatypes.JSON(b)

	if len(pts) == 0 {
		p.LastKnownPrice = nil
		p.LastPriceDate = ""
		p.AvgPrice = nil
		p.MinPrice = nil
		p.MaxPrice = nil
		return
	}

	sum, minV, maxV := 0.0, pts[0].Price, pts[0].Price
	for _, pt := range pts {
		sum += pt.Price
		if pt.Price < minV {
			minV = pt.Price
		}
		if pt.Price > maxV {
			maxV = pt.Price
		}
	}
	avg := sum / float64(len(pts))
	last := pts[len(pts)-1]

	p.LastKnownPrice = &last.Price
	p.LastPriceDate = last.Date
	p.AvgPrice = &avg
	p.MinPrice = &minV
	p.MaxPrice = &maxV
}

func decodeStrings(raw datatypes.JSON) []string {
	if len(raw) == 0 {
		return nil
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}

func encodeStrings(in []string) datatypes.JSON {
	if in == nil {
		in = []string{}
	}
	b, err := json.Marshal(in)
	if err != nil {
		b = []byte("[]")
	}
	return datatypes.JSON(b)
}

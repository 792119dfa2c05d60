package services

import (
	"math"

	model "github.com/pdintel/docintel/models"
)

// IGCEEstimate is a point cost estimate for a quantity of a canonical
// product, with the price sources that back it.
type IGCEEstimate struct {
	ProductID    string `json:"product_id"`
	ProductName  string `json:"product_name"`
	Category     string `json:"category"`
	Manufacturer string `json:"manufacturer"`

	Quantity       float64 `json:"quantity"`
	EscalationRate float64 `json:"escalation_rate"`

	AvgUnitPrice       float64 `json:"avg_unit_price"`
	EstimatedUnitPrice float64 `json:"estimated_unit_price"`
	EstimatedTotal     float64 `json:"estimated_total"`
	MinPrice           float64 `json:"min_price"`
	MaxPrice           float64 `json:"max_price"`

	DataPoints   int                `json:"data_points"`
	PriceSources []model.PricePoint `json:"price_sources"`
}

// EstimateIGCE computes an Independent Government Cost Estimate from the
// product's full price history. Every price point weighs equally regardless
// of recency or vendor; escalation is a single multiplicative factor (no
// per-year compounding). Pure read, never mutates the catalog.
func (s *CatalogService) EstimateIGCE(productID string, quantity, escalationRate float64) (*IGCEEstimate, error) {
	if quantity <= 0 {
		return nil, &model.ValidationError{Field: "quantity", Message: "must be a positive number"}
	}
	if escalationRate < 0 {
		return nil, &model.ValidationError{Field: "escalation_rate", Message: "must be non-negative"}
	}

	product, err := s.GetProduct(productID)
	if err != nil {
		return nil, err
	}

	history := product.History()
	if len(history) == 0 {
		return nil, &model.InsufficientDataError{ProductName: product.CanonicalName}
	}

	sum, minV, maxV := 0.0, history[0].Price, history[0].Price
	for _, pt := range history {
		sum += pt.Price
		if pt.Price < minV {
			minV = pt.Price
		}
		if pt.Price > maxV {
			maxV = pt.Price
		}
	}
	avg := sum / float64(len(history))
	estimatedUnit := round2(avg * (1 + escalationRate))
	estimatedTotal := round2(estimatedUnit * quantity)

	return &IGCEEstimate{
		ProductID:          product.ID,
		ProductName:        product.CanonicalName,
		Category:           product.Category,
		Manufacturer:       product.Manufacturer,
		Quantity:           quantity,
		EscalationRate:     escalationRate,
		AvgUnitPrice:       round2(avg),
		EstimatedUnitPrice: estimatedUnit,
		EstimatedTotal:     estimatedTotal,
		MinPrice:           round2(minV),
		MaxPrice:           round2(maxV),
		DataPoints:         len(history),
		PriceSources:       history,
	}, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

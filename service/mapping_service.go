package services

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	model "github.com/pdintel/docintel/models"
)

// confirmBoost moves confidence asymptotically toward 1.0 on each distinct
// confirmation: c' = c + (1-c)*confirmBoost.
const confirmBoost = 0.2

// replacedConfidence is assigned when a human replaces a mapping's target --
// moderate trust reflecting a single correction.
const replacedConfidence = 0.7

// correctionDedupWindow collapses duplicate correction events fired in
// immediate succession (double submits from the review UI) into one.
const correctionDedupWindow = 2 * time.Second

// ResolvedMapping is one raw column resolved to a canonical field, tagged
// with the source that produced it so callers can tell a learned rule from a
// fresh suggestion.
type ResolvedMapping struct {
	SourceColumn string  `json:"source_column"`
	TargetField  string  `json:"target_field"`
	Confidence   float64 `json:"confidence"`
	Source       string  `json:"source"` // stored or suggested
}

// MappingService learns, per vendor, how raw column headers map to canonical
// line-item fields, improving from human corrections.
type MappingService struct {
	db        *gorm.DB
	suggester MappingSuggester
}

func NewMappingService(db *gorm.DB, suggester MappingSuggester) *MappingService {
	return &MappingService{db: db, suggester: suggester}
}

// ResolveMapping resolves each raw column to its best known target field.
// Stored rules win with their stored confidence; unknown columns fall back to
// the suggestion adapter and are persisted as low-confidence candidates.
// Resolution never blocks on human input.
func (s *MappingService) ResolveMapping(ctx context.Context, vendor string, rawColumns []string, sampleRows []map[string]string) ([]ResolvedMapping, error) {
	vendor = strings.TrimSpace(vendor)

	stored := map[string]model.FieldMapping{}
	if vendor != "" {
		var mappings []model.FieldMapping
		if err := s.db.Where("vendor_name = ?", vendor).Find(&mappings).Error; err != nil {
			return nil, fmt.Errorf("failed to load mappings for vendor %s: %w", vendor, err)
		}
		for _, m := range mappings {
			stored[m.SourceColumnName] = m
		}
	}

	var missing []string
	for _, col := range rawColumns {
		if col == "" {
			continue
		}
		if _, ok := stored[col]; !ok {
			missing = append(missing, col)
		}
	}

	suggestions := map[string]MappingSuggestion{}
	if len(missing) > 0 && s.suggester != nil {
		suggested, err := s.suggester.SuggestMapping(ctx, vendor, missing, sampleRows)
		if err != nil {
			log.Printf("mapping suggestion failed for vendor %s, falling back to heuristics: %v", vendor, err)
			suggested = heuristicSuggest(missing)
		}
		suggestions = suggested
	} else if len(missing) > 0 {
		suggestions = heuristicSuggest(missing)
	}

	resolved := make([]ResolvedMapping, 0, len(rawColumns))
	for _, col := range rawColumns {
		if col == "" {
			continue
		}
		if m, ok := stored[col]; ok {
			resolved = append(resolved, ResolvedMapping{
				SourceColumn: col,
				TargetField:  m.TargetField,
				Confidence:   m.Confidence,
				Source:       model.MappingSourceStored,
			})
			continue
		}

		sug, ok := suggestions[col]
		if !ok || sug.TargetField == "" {
			// Best effort: no signal at all still yields an assignment.
			resolved = append(resolved, ResolvedMapping{
				SourceColumn: col,
				TargetField:  "",
				Confidence:   0,
				Source:       model.MappingSourceSuggested,
			})
			continue
		}

		resolved = append(resolved, ResolvedMapping{
			SourceColumn: col,
			TargetField:  sug.TargetField,
			Confidence:   sug.Confidence,
			Source:       model.MappingSourceSuggested,
		})

		if vendor != "" {
			if err := s.persistCandidate(vendor, col, sug); err != nil {
				log.Printf("failed to persist mapping candidate (%s, %s): %v", vendor, col, err)
			}
		}
	}

	return resolved, nil
}

// persistCandidate stores an adapter suggestion as an unconfirmed mapping.
// The unique (vendor, column) key makes concurrent inserts converge on one
// row.
func (s *MappingService) persistCandidate(vendor, column string, sug MappingSuggestion) error {
	candidate := model.FieldMapping{
		ID:               uuid.NewString(),
		VendorName:       vendor,
		SourceColumnName: column,
		TargetField:      sug.TargetField,
		Confidence:       sug.Confidence,
		TimesConfirmed:   0,
		Source:           model.MappingSourceSuggested,
	}
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "vendor_name"}, {Name: "source_column_name"}},
		DoNothing: true,
	}).Create(&candidate).Error
}

// RecordCorrection upserts the mapping for (vendor, sourceColumn) from a
// human field-level correction. Confirming the existing target raises
// confidence asymptotically toward 1.0 and bumps times_confirmed; a different
// target replaces the rule and resets the counter. Identical corrections in
// immediate succession are collapsed.
func (s *MappingService) RecordCorrection(vendor, sourceColumn, correctedField string) (*model.FieldMapping, error) {
	vendor = strings.TrimSpace(vendor)
	sourceColumn = strings.TrimSpace(sourceColumn)
	if vendor == "" {
		return nil, &model.ValidationError{Field: "vendor_name", Message: "must not be empty"}
	}
	if sourceColumn == "" {
		return nil, &model.ValidationError{Field: "source_column_name", Message: "must not be empty"}
	}
	if !model.ValidTargetField(correctedField) {
		return nil, &model.ValidationError{Field: "target_field", Message: fmt.Sprintf("%q is not a canonical field", correctedField)}
	}

	var result model.FieldMapping
	err := s.db.Transaction(func(tx *gorm.DB) error {
		q := tx.Where("vendor_name = ? AND source_column_name = ?", vendor, sourceColumn)
		// SQLite has no row locks; writes there serialize on the connection.
		if tx.Dialector.Name() == "postgres" {
			q = q.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		var existing model.FieldMapping
		err := q.First(&existing).Error

		switch {
		case err == gorm.ErrRecordNotFound:
			result = model.FieldMapping{
				ID:               uuid.NewString(),
				VendorName:       vendor,
				SourceColumnName: sourceColumn,
				TargetField:      correctedField,
				Confidence:       replacedConfidence,
				TimesConfirmed:   1,
				Source:           model.MappingSourceStored,
			}
			return tx.Create(&result).Error

		case err != nil:
			return err

		case existing.TargetField == correctedField:
			// Duplicate of a just-recorded confirmation: no double increment.
			if existing.TimesConfirmed > 0 && time.Now().Sub(existing.UpdatedAt) < correctionDedupWindow {
				result = existing
				return nil
			}
			existing.TimesConfirmed++
			existing.Confidence += (1 - existing.Confidence) * confirmBoost
			existing.Source = model.MappingSourceStored
			result = existing
			return tx.Save(&existing).Error

		default:
			existing.TargetField = correctedField
			existing.TimesConfirmed = 1
			existing.Confidence = replacedConfidence
			existing.Source = model.MappingSourceStored
			result = existing
			return tx.Save(&existing).Error
		}
	})
	if err != nil {
		return nil, err
	}
	log.Printf("field mapping recorded: (%s, %s) -> %s confidence=%.3f confirmed=%d",
		vendor, sourceColumn, result.TargetField, result.Confidence, result.TimesConfirmed)
	return &result, nil
}

// ListMappings returns the learned mappings for a vendor, or all when vendor
// is empty.
func (s *MappingService) ListMappings(vendor string) ([]model.FieldMapping, error) {
	var mappings []model.FieldMapping
	q := s.db.Order("vendor_name, source_column_name")
	if vendor != "" {
		q = q.Where("vendor_name = ?", vendor)
	}
	if err := q.Find(&mappings).Error; err != nil {
		return nil, fmt.Errorf("failed to list field mappings: %w", err)
	}
	return mappings, nil
}

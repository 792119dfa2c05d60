package services

import (
	"context"
	"testing"
	"time"

	"github.com/agiledragon/gomonkey/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	model "github.com/pdintel/docintel/models"
)

// MockSuggester implements MappingSuggester for testing
type MockSuggester struct {
	mock.Mock
}

func (m *MockSuggester) SuggestMapping(ctx context.Context, vendor string, rawColumns []string, sampleRows []map[string]string) (map[string]MappingSuggestion, error) {
	args := m.Called(vendor, rawColumns)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]MappingSuggestion), args.Error(1)
}

func seedMapping(t *testing.T, s *MappingService, vendor, column, field string, confidence float64, times int) {
	t.Helper()
	m := model.FieldMapping{
		ID:               uuid.NewString(),
		VendorName:       vendor,
		SourceColumnName: column,
		TargetField:      field,
		Confidence:       confidence,
		TimesConfirmed:   times,
		Source:           model.MappingSourceStored,
	}
	if err := s.db.Create(&m).Error; err != nil {
		t.Fatalf("failed to seed mapping: %v", err)
	}
}

func TestResolveMappingStoredPrecedence(t *testing.T) {
	db := newTestDB(t)
	suggester := &MockSuggester{}
	service := NewMappingService(db, suggester)

	// "Unit Cost" is already learned for Acme at 0.6. The adapter must only
	// be asked about the unknown column, and the stored confidence must come
	// back untouched.
	seedMapping(t, service, "Acme Industrial", "Unit Cost", "unit_price", 0.6, 2)
	suggester.On("SuggestMapping", "Acme Industrial", []string{"Widget Description"}).
		Return(map[string]MappingSuggestion{
			"Widget Description": {TargetField: "product_name", Confidence: 0.9},
		}, nil)

	resolved, err := service.ResolveMapping(context.Background(), "Acme Industrial",
		[]string{"Unit Cost", "Widget Description"}, nil)
	assert.NoError(t, err)
	assert.Len(t, resolved, 2)

	assert.Equal(t, "unit_price", resolved[0].TargetField)
	assert.Equal(t, 0.6, resolved[0].Confidence)
	assert.Equal(t, model.MappingSourceStored, resolved[0].Source)

	assert.Equal(t, "product_name", resolved[1].TargetField)
	assert.Equal(t, 0.9, resolved[1].Confidence)
	assert.Equal(t, model.MappingSourceSuggested, resolved[1].Source)

	suggester.AssertExpectations(t)

	// The fresh suggestion is persisted as an unconfirmed candidate.
	var candidate model.FieldMapping
	err = db.Where("vendor_name = ? AND source_column_name = ?", "Acme Industrial", "Widget Description").
		First(&candidate).Error
	assert.NoError(t, err)
	assert.Equal(t, model.MappingSourceSuggested, candidate.Source)
	assert.Equal(t, 0, candidate.TimesConfirmed)
}

func TestResolveMappingSuggesterFailureFallsBack(t *testing.T) {
	db := newTestDB(t)
	suggester := &MockSuggester{}
	service := NewMappingService(db, suggester)

	suggester.On("SuggestMapping", "Acme Industrial", []string{"Unit Cost"}).
		Return(nil, assert.AnError)

	resolved, err := service.ResolveMapping(context.Background(), "Acme Industrial",
		[]string{"Unit Cost"}, nil)
	assert.NoError(t, err)
	assert.Len(t, resolved, 1)
	// Heuristics still recognize a pricing column.
	assert.Equal(t, "unit_price", resolved[0].TargetField)
	assert.Equal(t, model.MappingSourceSuggested, resolved[0].Source)
}

func TestResolveMappingUnknownColumnStillResolved(t *testing.T) {
	db := newTestDB(t)
	service := NewMappingService(db, nil)

	resolved, err := service.ResolveMapping(context.Background(), "Acme Industrial",
		[]string{"Zorp"}, nil)
	assert.NoError(t, err)
	assert.Len(t, resolved, 1)
	assert.Equal(t, "", resolved[0].TargetField)
	assert.Equal(t, 0.0, resolved[0].Confidence)
}

func TestRecordCorrectionLifecycle(t *testing.T) {
	db := newTestDB(t)
	service := NewMappingService(db, nil)

	t.Run("creates a new stored mapping", func(t *testing.T) {
		m, err := service.RecordCorrection("Acme Industrial", "Cost Ea.", "unit_price")
		assert.NoError(t, err)
		assert.Equal(t, "unit_price", m.TargetField)
		assert.Equal(t, replacedConfidence, m.Confidence)
		assert.Equal(t, 1, m.TimesConfirmed)
		assert.Equal(t, model.MappingSourceStored, m.Source)
	})

	t.Run("immediate duplicate does not double count", func(t *testing.T) {
		m, err := service.RecordCorrection("Acme Industrial", "Cost Ea.", "unit_price")
		assert.NoError(t, err)
		assert.Equal(t, 1, m.TimesConfirmed)
		assert.Equal(t, replacedConfidence, m.Confidence)
	})

	t.Run("distinct confirmation raises confidence asymptotically", func(t *testing.T) {
		later := time.Now().Add(time.Hour)
		patches := gomonkey.ApplyFunc(time.Now, func() time.Time { return later })
		defer patches.Reset()

		m, err := service.RecordCorrection("Acme Industrial", "Cost Ea.", "unit_price")
		assert.NoError(t, err)
		assert.Equal(t, 2, m.TimesConfirmed)
		// 0.7 + (1-0.7)*0.2
		assert.InDelta(t, 0.76, m.Confidence, 1e-9)
		assert.Less(t, m.Confidence, 1.0)
	})

	t.Run("different target replaces the rule", func(t *testing.T) {
		later := time.Now().Add(2 * time.Hour)
		patches := gomonkey.ApplyFunc(time.Now, func() time.Time { return later })
		defer patches.Reset()

		m, err := service.RecordCorrection("Acme Industrial", "Cost Ea.", "extended_price")
		assert.NoError(t, err)
		assert.Equal(t, "extended_price", m.TargetField)
		assert.Equal(t, 1, m.TimesConfirmed)
		assert.Equal(t, replacedConfidence, m.Confidence)

		// Still exactly one row for the key.
		var count int64
		db.Model(&model.FieldMapping{}).
			Where("vendor_name = ? AND source_column_name = ?", "Acme Industrial", "Cost Ea.").
			Count(&count)
		assert.Equal(t, int64(1), count)
	})
}

func TestRecordCorrectionValidation(t *testing.T) {
	db := newTestDB(t)
	service := NewMappingService(db, nil)

	var validation *model.ValidationError

	_, err := service.RecordCorrection("", "Unit Cost", "unit_price")
	assert.ErrorAs(t, err, &validation)

	_, err = service.RecordCorrection("Acme Industrial", "   ", "unit_price")
	assert.ErrorAs(t, err, &validation)

	_, err = service.RecordCorrection("Acme Industrial", "Unit Cost", "not_a_field")
	assert.ErrorAs(t, err, &validation)
}

func TestListMappings(t *testing.T) {
	db := newTestDB(t)
	service := NewMappingService(db, nil)
	seedMapping(t, service, "Acme Industrial", "Unit Cost", "unit_price", 0.6, 1)
	seedMapping(t, service, "Globex", "Price Ea", "unit_price", 0.8, 3)

	all, err := service.ListMappings("")
	assert.NoError(t, err)
	assert.Len(t, all, 2)

	acme, err := service.ListMappings("Acme Industrial")
	assert.NoError(t, err)
	assert.Len(t, acme, 1)
	assert.Equal(t, "Unit Cost", acme[0].SourceColumnName)
}

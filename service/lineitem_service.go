package services

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log"
	"strconv"

	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"

	model "github.com/pdintel/docintel/models"
)

// LineItemService handles line item queries, human review edits and exports.
// Edits that change a mapped field feed the mapping learning loop.
type LineItemService struct {
	db      *gorm.DB
	mapping *MappingService
}

func NewLineItemService(db *gorm.DB, mapping *MappingService) *LineItemService {
	return &LineItemService{db: db, mapping: mapping}
}

// LineItemFilter narrows List and the exports.
type LineItemFilter struct {
	DocumentID    string
	VendorName    string
	Category      string
	Search        string
	PriceFlagged  *bool
	HumanVerified *bool
	SortBy        string
	SortDesc      bool
	Page          int
	PerPage       int
}

var lineItemSortColumns = map[string]string{
	"line_number": "line_items.line_number", "product_name": "line_items.product_name",
	"part_number": "line_items.part_number", "unit_price": "line_items.unit_price",
	"extended_price": "line_items.extended_price", "quantity": "line_items.quantity",
	"category": "line_items.category", "created_at": "line_items.created_at",
}

func (s *LineItemService) query(f LineItemFilter) *gorm.DB {
	q := s.db.Model(&model.LineItem{}).
		Joins("JOIN documents ON documents.id = line_items.document_id")
	if f.DocumentID != "" {
		q = q.Where("line_items.document_id = ?", f.DocumentID)
	}
	if f.VendorName != "" {
		q = q.Where("documents.vendor_name LIKE ?", "%"+f.VendorName+"%")
	}
	if f.Category != "" {
		q = q.Where("line_items.category = ?", f.Category)
	}
	if f.Search != "" {
		like := "%" + f.Search + "%"
		q = q.Where("line_items.product_name LIKE ? OR line_items.part_number LIKE ? OR line_items.product_description LIKE ?",
			like, like, like)
	}
	if f.PriceFlagged != nil {
		q = q.Where("line_items.price_flagged = ?", *f.PriceFlagged)
	}
	if f.HumanVerified != nil {
		q = q.Where("line_items.human_verified = ?", *f.HumanVerified)
	}
	return q
}

// List returns a filtered, sorted page of line items.
func (s *LineItemService) List(f LineItemFilter) ([]model.LineItem, int64, error) {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PerPage < 1 || f.PerPage > 100 {
		f.PerPage = 50
	}

	q := s.query(f)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	order := "documents.created_at, line_items.line_number"
	if col, ok := lineItemSortColumns[f.SortBy]; ok {
		order = col
		if f.SortDesc {
			order += " DESC"
		}
	}

	var items []model.LineItem
	err := q.Order(order).
		Offset((f.Page - 1) * f.PerPage).Limit(f.PerPage).
		Find(&items).Error
	return items, total, err
}

// Get loads one line item.
func (s *LineItemService) Get(itemID string) (*model.LineItem, error) {
	var li model.LineItem
	if err := s.db.First(&li, "id = ?", itemID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("line item %s: %w", itemID, model.ErrNotFound)
		}
		return nil, err
	}
	return &li, nil
}

// Editable line item fields.
var updatableLineItemFields = map[string]bool{
	"line_number": true, "clin": true, "slin": true,
	"part_number": true, "manufacturer": true, "manufacturer_part_number": true,
	"product_name": true, "product_description": true,
	"category": true, "sub_category": true,
	"quantity": true, "unit_of_issue": true, "unit_price": true,
	"extended_price": true, "discount_percent": true, "discount_amount": true,
	"labor_category": true, "labor_hours": true, "labor_rate": true,
	"period_start": true, "period_end": true, "human_verified": true,
}

// Update applies human edits to a line item. When an edited field traces back
// to a source column of the original row, the edit is treated as a mapping
// correction and recorded so future documents from the vendor map better.
// Explicit corrections (source column to field) are recorded as well.
func (s *LineItemService) Update(itemID string, fields map[string]interface{}, corrections map[string]string) (*model.LineItem, error) {
	var li model.LineItem
	if err := s.db.First(&li, "id = ?", itemID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("line item %s: %w", itemID, model.ErrNotFound)
		}
		return nil, err
	}
	var doc model.Document
	if err := s.db.First(&doc, "id = ?", li.DocumentID).Error; err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	for field, value := range fields {
		if !updatableLineItemFields[field] {
			continue
		}
		if field == "category" {
			c, _ := value.(string)
			if c != "" && !model.ValidCategory(c) {
				return nil, &model.ValidationError{Field: "category", Message: fmt.Sprintf("%q is not a recognized category", c)}
			}
		}
		updates[field] = value
	}

	for sourceColumn, targetField := range corrections {
		if _, err := s.mapping.RecordCorrection(doc.VendorName, sourceColumn, targetField); err != nil {
			return nil, err
		}
	}

	// An edit that moves a raw cell value into a different canonical field is
	// an implicit mapping correction.
	if doc.VendorName != "" && li.OriginalRowText != "" {
		s.detectCorrections(&li, doc.VendorName, updates)
	}

	if len(updates) > 0 {
		if err := s.db.Model(&li).Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("failed to update line item: %w", err)
		}
		if err := s.db.First(&li, "id = ?", itemID).Error; err != nil {
			return nil, err
		}
		recheck := li
		if recheck.CheckExtendedPrice() != li.PriceFlagged {
			if err := s.db.Model(&li).Update("price_flagged", recheck.PriceFlagged).Error; err != nil {
				return nil, err
			}
			li.PriceFlagged = recheck.PriceFlagged
		}
	}
	return &li, nil
}

// detectCorrections compares edited values against the retained raw row. An
// edited field whose new value matches a raw cell that currently maps
// elsewhere (or nowhere) means that column should map to the edited field.
func (s *LineItemService) detectCorrections(li *model.LineItem, vendor string, updates map[string]interface{}) {
	var raw map[string]string
	if err := json.Unmarshal([]byte(li.OriginalRowText), &raw); err != nil {
		return
	}

	for field, value := range updates {
		newVal, ok := value.(string)
		if !ok || newVal == "" || !model.ValidTargetField(field) {
			continue
		}
		for column, cell := range raw {
			if cell != newVal {
				continue
			}
			if _, err := s.mapping.RecordCorrection(vendor, column, field); err != nil {
				log.Printf("Could not record mapping correction for %s/%s: %v", vendor, column, err)
			}
			break
		}
	}
}

var exportHeader = []string{
	"document", "vendor", "line_number", "clin", "part_number", "manufacturer",
	"product_name", "description", "category", "quantity", "unit_of_issue",
	"unit_price", "extended_price", "price_flagged", "human_verified",
}

type exportRow struct {
	model.LineItem
	OriginalFilename string
	VendorName       string
}

func (s *LineItemService) exportRows(f LineItemFilter) ([]exportRow, error) {
	var rows []exportRow
	err := s.query(f).
		Select("line_items.*, documents.original_filename, documents.vendor_name").
		Order("documents.created_at, line_items.line_number").
		Find(&rows).Error
	return rows, err
}

func (r *exportRow) record() []string {
	fmtFloat := func(v *float64) string {
		if v == nil {
			return ""
		}
		return strconv.FormatFloat(*v, 'f', -1, 64)
	}
	return []string{
		r.OriginalFilename, r.VendorName, strconv.Itoa(r.LineNumber), r.CLIN,
		r.PartNumber, r.Manufacturer, r.ProductName, r.ProductDescription,
		r.Category, fmtFloat(r.Quantity), r.UnitOfIssue,
		fmtFloat(r.UnitPrice), fmtFloat(r.ExtendedPrice),
		strconv.FormatBool(r.PriceFlagged), strconv.FormatBool(r.HumanVerified),
	}
}

// ExportCSV writes the filtered line items as CSV.
func (s *LineItemService) ExportCSV(f LineItemFilter) ([]byte, error) {
	rows, err := s.exportRows(f)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(exportHeader); err != nil {
		return nil, err
	}
	for i := range rows {
		if err := w.Write(rows[i].record()); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ExportXLSX writes the filtered line items as a single-sheet workbook.
func (s *LineItemService) ExportXLSX(f LineItemFilter) ([]byte, error) {
	rows, err := s.exportRows(f)
	if err != nil {
		return nil, err
	}

	wb := excelize.NewFile()
	defer wb.Close()
	sheet := "Line Items"
	if err := wb.SetSheetName("Sheet1", sheet); err != nil {
		return nil, err
	}

	for col, title := range exportHeader {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		if err := wb.SetCellValue(sheet, cell, title); err != nil {
			return nil, err
		}
	}
	for i := range rows {
		for col, value := range rows[i].record() {
			cell, _ := excelize.CoordinatesToCellName(col+1, i+2)
			if err := wb.SetCellValue(sheet, cell, value); err != nil {
				return nil, err
			}
		}
	}

	var buf bytes.Buffer
	if err := wb.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// SpendBucket is one aggregation row in a spend analysis.
type SpendBucket struct {
	Key       string  `json:"key"`
	Total     float64 `json:"total"`
	ItemCount int64   `json:"item_count"`
}

// SpendAnalysis aggregates extended prices across all line items.
type SpendAnalysis struct {
	TotalSpend float64       `json:"total_spend"`
	ByVendor   []SpendBucket `json:"by_vendor"`
	ByCategory []SpendBucket `json:"by_category"`
	ByMonth    []SpendBucket `json:"by_month"`
}

// Spend computes totals grouped by vendor, category and document month.
// Items without an extended price contribute nothing.
func (s *LineItemService) Spend() (*SpendAnalysis, error) {
	analysis := &SpendAnalysis{}

	base := func() *gorm.DB {
		return s.db.Model(&model.LineItem{}).
			Joins("JOIN documents ON documents.id = line_items.document_id").
			Where("line_items.extended_price IS NOT NULL")
	}

	if err := base().
		Select("COALESCE(SUM(line_items.extended_price), 0)").
		Scan(&analysis.TotalSpend).Error; err != nil {
		return nil, err
	}

	group := func(expr string) ([]SpendBucket, error) {
		var buckets []SpendBucket
		err := base().
			Select(expr + " AS key, SUM(line_items.extended_price) AS total, COUNT(*) AS item_count").
			Group(expr).Order("total DESC").
			Scan(&buckets).Error
		return buckets, err
	}

	var err error
	if analysis.ByVendor, err = group("COALESCE(NULLIF(documents.vendor_name, ''), 'Unknown')"); err != nil {
		return nil, err
	}
	if analysis.ByCategory, err = group("line_items.category"); err != nil {
		return nil, err
	}
	// document_date is ISO formatted; the first seven characters are YYYY-MM.
	if analysis.ByMonth, err = group("SUBSTR(documents.document_date, 1, 7)"); err != nil {
		return nil, err
	}
	return analysis, nil
}

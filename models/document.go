package models

import (
	"time"
)

// Processing statuses a document moves through. Transitions are owned by
// service.DocumentService; nothing else writes ProcessingStatus.
const (
	StatusUploaded   = "uploaded"
	StatusExtracting = "extracting"
	StatusMapping    = "mapping"
	StatusReview     = "review"
	StatusComplete   = "complete"
	StatusFailed     = "failed"
)

// Document types recognized by the pipeline.
const (
	DocTypeVendorQuote   = "vendor_quote"
	DocTypePurchaseOrder = "purchase_order"
	DocTypeInvoice       = "invoice"
	DocTypeBOM           = "bom"
	DocTypeContractMod   = "contract_mod"
	DocTypeTimesheet     = "timesheet"
	DocTypeOther         = "other"
)

// Document represents one uploaded procurement file and its extraction state.
type Document struct {
	ID string `gorm:"type:uuid;primaryKey" json:"id"`

	// Source file
	OriginalFilename string `gorm:"not null" json:"original_filename"`
	FileFormat       string `gorm:"not null" json:"file_format"` // pdf, xlsx, docx, csv
	FileSizeBytes    int64  `json:"file_size_bytes"`
	FileHash         string `json:"file_hash"` // SHA-256 of the uploaded bytes
	StoredPath       string `json:"stored_path"`

	// Classification
	DocumentType string `json:"document_type"`

	// Extracted metadata
	VendorName               string   `gorm:"index" json:"vendor_name"`
	DocumentNumber           string   `json:"document_number"`
	DocumentDate             string   `json:"document_date"`
	ContractNumber           string   `json:"contract_number"`
	TaskOrderNumber          string   `json:"task_order_number"`
	PeriodOfPerformanceStart string   `json:"period_of_performance_start"`
	PeriodOfPerformanceEnd   string   `json:"period_of_performance_end"`
	TotalAmount              *float64 `json:"total_amount"`
	Currency                 string   `gorm:"default:USD" json:"currency"`

	// Processing
	ProcessingStatus     string   `gorm:"default:uploaded;index" json:"processing_status"`
	ExtractionMethod     string   `json:"extraction_method"`
	ExtractionConfidence *float64 `json:"extraction_confidence"` // nil until extraction has run
	AIModelUsed          string   `json:"ai_model_used"`
	FailureCause         string   `json:"failure_cause"`

	// Review
	ReviewedBy  string `json:"reviewed_by"`
	ReviewedAt  string `json:"reviewed_at"`
	ReviewNotes string `json:"review_notes"`

	// Text retrieval
	ChunkCount int `gorm:"default:0" json:"chunk_count"`

	UploadedBy string    `json:"uploaded_by"`
	Tags       string    `gorm:"default:[]" json:"tags"`
	Notes      string    `json:"notes"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`

	LineItems []LineItem      `gorm:"constraint:OnDelete:CASCADE" json:"line_items,omitempty"`
	Chunks    []DocumentChunk `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

// CanTransitionTo reports whether moving to the given status is a legal edge.
// Approve and reprocess carry extra guards in the service layer; this covers
// the pipeline walk.
func (d *Document) CanTransitionTo(status string) bool {
	edges := map[string][]string{
		StatusUploaded:   {StatusExtracting},
		StatusExtracting: {StatusMapping, StatusFailed},
		StatusMapping:    {StatusReview, StatusComplete, StatusFailed},
		StatusReview:     {StatusComplete, StatusUploaded},
		StatusComplete:   {StatusUploaded},
		StatusFailed:     {StatusExtracting, StatusUploaded},
	}
	for _, next := range edges[d.ProcessingStatus] {
		if next == status {
			return true
		}
	}
	return false
}

// ValidDocumentType reports whether t is one of the enumerated document types.
func ValidDocumentType(t string) bool {
	switch t {
	case DocTypeVendorQuote, DocTypePurchaseOrder, DocTypeInvoice,
		DocTypeBOM, DocTypeContractMod, DocTypeTimesheet, DocTypeOther:
		return true
	}
	return false
}

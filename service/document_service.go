package services

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math"
	"mime/multipart"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/google/uuid"
	"gorm.io/gorm"

	model "github.com/pdintel/docintel/models"
)

// defaultPipelineTimeout bounds the extraction and mapping stages together;
// past it the run fails with a timeout cause instead of hanging.
const defaultPipelineTimeout = 2 * time.Minute

var allowedExtensions = map[string]bool{
	"pdf": true, "xlsx": true, "xls": true, "docx": true, "doc": true, "csv": true,
}

// DocumentService owns the document lifecycle: upload, the
// extraction/mapping pipeline, review approval and reprocessing.
type DocumentService struct {
	db        *gorm.DB
	s3Client  *s3.S3
	esClient  *elasticsearch.Client
	extractor Extractor
	mapping   *MappingService
	modelName string
	timeout   time.Duration

	mu       sync.Mutex
	inflight map[string]bool
}

// NewDocumentService wires the service from environment configuration.
func NewDocumentService(db *gorm.DB, extractor Extractor, mapping *MappingService) (*DocumentService, error) {
	region := os.Getenv("S3_REGION")
	endpoint := os.Getenv("S3_ENDPOINT")
	accessKey := os.Getenv("S3_ACCESS_KEY")
	secretKey := os.Getenv("S3_SECRET_KEY")

	if region == "" || endpoint == "" || accessKey == "" || secretKey == "" {
		return nil, fmt.Errorf("missing required S3 configuration environment variables")
	}

	sess, err := session.NewSession(&aws.Config{
		Region:           aws.String(region),
		Endpoint:         aws.String(endpoint),
		DisableSSL:       aws.Bool(false),
		Credentials:      credentials.NewStaticCredentials(accessKey, secretKey, ""),
		S3ForcePathStyle: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	esURL := os.Getenv("ELASTICSEARCH_URL")
	var esClient *elasticsearch.Client
	if esURL != "" {
		esClient, err = elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{esURL}})
		if err != nil {
			log.Printf("Warning: Failed to create Elasticsearch client: %v", err)
		}
	}

	timeout := defaultPipelineTimeout
	if v := os.Getenv("PIPELINE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			timeout = d
		}
	}

	modelName := ""
	if sug, ok := mapping.suggester.(*AIMappingSuggester); ok {
		modelName = sug.ModelName()
	}

	return &DocumentService{
		db:        db,
		s3Client:  s3.New(sess),
		esClient:  esClient,
		extractor: extractor,
		mapping:   mapping,
		modelName: modelName,
		timeout:   timeout,
		inflight:  make(map[string]bool),
	}, nil
}

// acquire marks a document's pipeline as busy. Returns ConflictError when a
// run is already in flight; the caller retries explicitly.
func (s *DocumentService) acquire(docID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inflight == nil {
		s.inflight = make(map[string]bool)
	}
	if s.inflight[docID] {
		return &model.ConflictError{DocumentID: docID}
	}
	s.inflight[docID] = true
	return nil
}

func (s *DocumentService) release(docID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inflight, docID)
}

// Upload stores the file and creates a document in the uploaded state.
func (s *DocumentService) Upload(file multipart.File, header *multipart.FileHeader, uploadedBy string) (*model.Document, error) {
	fileBytes, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(header.Filename)), ".")
	if !allowedExtensions[ext] {
		return nil, &model.UnsupportedFormatError{Format: ext}
	}
	fileFormat := ext
	if fileFormat == "xls" {
		fileFormat = "xlsx"
	}
	if fileFormat == "doc" {
		fileFormat = "docx"
	}

	hash := sha256.Sum256(fileBytes)
	storedKey := fmt.Sprintf("%d-%s", time.Now().Unix(), header.Filename)

	if s.s3Client != nil {
		bucket := os.Getenv("S3_BUCKET")
		if bucket == "" {
			return nil, fmt.Errorf("bucket name not configured")
		}
		_, err = s.s3Client.PutObject(&s3.PutObjectInput{
			Bucket:      aws.String(bucket),
			Key:         aws.String(storedKey),
			Body:        bytes.NewReader(fileBytes),
			ContentType: aws.String(header.Header.Get("Content-Type")),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to upload file to storage: %w", err)
		}
		log.Printf("File stored at key %s", storedKey)
	}

	doc := model.Document{
		ID:               uuid.NewString(),
		OriginalFilename: header.Filename,
		FileFormat:       fileFormat,
		FileSizeBytes:    int64(len(fileBytes)),
		FileHash:         hex.EncodeToString(hash[:]),
		StoredPath:       storedKey,
		ProcessingStatus: model.StatusUploaded,
		UploadedBy:       uploadedBy,
		Currency:         "USD",
		Tags:             "[]",
	}
	if err := s.db.Create(&doc).Error; err != nil {
		return nil, fmt.Errorf("failed to save document: %w", err)
	}
	log.Printf("Document %s uploaded (%s, %d bytes)", doc.ID, doc.FileFormat, doc.FileSizeBytes)
	return &doc, nil
}

// Process drives extraction then field mapping for one document. Valid only
// from uploaded or failed. Pipeline failures land the document in failed
// with a recorded cause instead of propagating; the returned document always
// reflects the final state of the run.
func (s *DocumentService) Process(docID string) (*model.Document, error) {
	if err := s.acquire(docID); err != nil {
		return nil, err
	}
	defer s.release(docID)

	var doc model.Document
	if err := s.db.First(&doc, "id = ?", docID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("document %s: %w", docID, model.ErrNotFound)
		}
		return nil, err
	}

	if !doc.CanTransitionTo(model.StatusExtracting) {
		return nil, &model.InvalidStateError{Operation: "process", Status: doc.ProcessingStatus}
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	// Stage 1: extraction.
	doc.ProcessingStatus = model.StatusExtracting
	doc.FailureCause = ""
	if err := s.db.Save(&doc).Error; err != nil {
		return nil, fmt.Errorf("failed to update document status: %w", err)
	}

	fileBytes, err := s.fetchStored(&doc)
	if err != nil {
		return s.markFailed(&doc, "extracting", err)
	}

	extraction, err := s.extractor.Extract(ctx, fileBytes, doc.FileFormat)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			err = fmt.Errorf("extraction timed out after %s", s.timeout)
		}
		return s.markFailed(&doc, "extracting", err)
	}
	doc.ExtractionMethod = extraction.Method

	// Stage 2: field mapping.
	doc.ProcessingStatus = model.StatusMapping
	if err := s.db.Save(&doc).Error; err != nil {
		return nil, fmt.Errorf("failed to update document status: %w", err)
	}

	resolved, err := s.mapping.ResolveMapping(ctx, doc.VendorName, extraction.Columns, extraction.SampleRows(5))
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			err = fmt.Errorf("mapping timed out after %s", s.timeout)
		}
		return s.markFailed(&doc, "mapping", err)
	}

	items := buildLineItems(&doc, extraction, resolved)
	chunks := ChunkText(extraction.FullText)

	// One transaction: a run either fully commits its line items or leaves
	// none behind.
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("document_id = ?", doc.ID).Delete(&model.LineItem{}).Error; err != nil {
			return err
		}
		if err := tx.Where("document_id = ?", doc.ID).Delete(&model.DocumentChunk{}).Error; err != nil {
			return err
		}
		for i := range items {
			if err := tx.Create(&items[i]).Error; err != nil {
				return err
			}
		}
		for idx, content := range chunks {
			chunk := model.DocumentChunk{
				ID:         uuid.NewString(),
				DocumentID: doc.ID,
				ChunkIndex: idx,
				Content:    content,
				ChunkType:  "paragraph",
			}
			if err := tx.Create(&chunk).Error; err != nil {
				return err
			}
		}

		doc.ChunkCount = len(chunks)
		doc.AIModelUsed = s.modelName
		doc.ExtractionConfidence = averageConfidence(items)
		doc.ProcessingStatus = model.StatusReview
		return tx.Save(&doc).Error
	})
	if err != nil {
		return s.markFailed(&doc, "mapping", err)
	}

	if err := s.indexDocument(&doc, extraction.FullText); err != nil {
		log.Printf("Elasticsearch indexing error for %s: %v", doc.ID, err)
	}

	log.Printf("Document %s processed: %d line items, %d chunks", doc.ID, len(items), len(chunks))
	return &doc, nil
}

// markFailed records the failure on the document. The error is surfaced as
// status + cause, not returned, so callers always get a showable state.
func (s *DocumentService) markFailed(doc *model.Document, stage string, cause error) (*model.Document, error) {
	wrapped := &model.ExtractionError{Stage: stage, Err: cause}
	log.Printf("Document %s failed during %s: %v", doc.ID, stage, cause)
	doc.ProcessingStatus = model.StatusFailed
	doc.FailureCause = wrapped.Error()
	doc.ExtractionConfidence = nil
	doc.AIModelUsed = ""
	doc.ChunkCount = 0
	if err := s.db.Save(doc).Error; err != nil {
		return nil, fmt.Errorf("failed to record failure: %w", err)
	}
	return doc, nil
}

// Approve moves a reviewed document to complete and stamps the reviewer.
// Only an explicit approval reaches complete.
func (s *DocumentService) Approve(docID, reviewer, notes string) (*model.Document, error) {
	var doc model.Document
	if err := s.db.First(&doc, "id = ?", docID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("document %s: %w", docID, model.ErrNotFound)
		}
		return nil, err
	}

	if doc.ProcessingStatus != model.StatusReview && doc.ProcessingStatus != model.StatusMapping {
		return nil, &model.InvalidStateError{Operation: "approve", Status: doc.ProcessingStatus}
	}

	doc.ProcessingStatus = model.StatusComplete
	doc.ReviewedBy = reviewer
	doc.ReviewedAt = time.Now().UTC().Format(time.RFC3339)
	if notes != "" {
		doc.ReviewNotes = notes
	}
	if err := s.db.Save(&doc).Error; err != nil {
		return nil, fmt.Errorf("failed to approve document: %w", err)
	}
	log.Printf("Document %s approved by %s", doc.ID, reviewer)
	return &doc, nil
}

// Reprocess purges the document's extracted data and resets it to uploaded.
// Mappings learned from other documents of the same vendor survive.
func (s *DocumentService) Reprocess(docID string) (*model.Document, error) {
	if err := s.acquire(docID); err != nil {
		return nil, err
	}
	defer s.release(docID)

	var doc model.Document
	if err := s.db.First(&doc, "id = ?", docID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("document %s: %w", docID, model.ErrNotFound)
		}
		return nil, err
	}

	switch doc.ProcessingStatus {
	case model.StatusReview, model.StatusComplete, model.StatusFailed, model.StatusMapping:
	default:
		return nil, &model.InvalidStateError{Operation: "reprocess", Status: doc.ProcessingStatus}
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("document_id = ?", doc.ID).Delete(&model.LineItem{}).Error; err != nil {
			return err
		}
		if err := tx.Where("document_id = ?", doc.ID).Delete(&model.DocumentChunk{}).Error; err != nil {
			return err
		}

		doc.ProcessingStatus = model.StatusUploaded
		doc.ExtractionMethod = ""
		doc.ExtractionConfidence = nil
		doc.AIModelUsed = ""
		doc.FailureCause = ""
		doc.ChunkCount = 0
		doc.ReviewedBy = ""
		doc.ReviewedAt = ""
		doc.ReviewNotes = ""
		return tx.Save(&doc).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to reset document: %w", err)
	}
	log.Printf("Document %s reset for reprocessing", doc.ID)
	return &doc, nil
}

// Updatable metadata fields. Processing status is deliberately absent: the
// state machine owns it.
var updatableDocumentFields = map[string]bool{
	"document_type": true, "vendor_name": true, "document_number": true,
	"document_date": true, "contract_number": true, "task_order_number": true,
	"period_of_performance_start": true, "period_of_performance_end": true,
	"total_amount": true, "currency": true, "tags": true, "notes": true,
	"review_notes": true,
}

// UpdateMetadata applies whitelisted metadata fields in any state.
func (s *DocumentService) UpdateMetadata(docID string, fields map[string]interface{}) (*model.Document, error) {
	var doc model.Document
	if err := s.db.First(&doc, "id = ?", docID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("document %s: %w", docID, model.ErrNotFound)
		}
		return nil, err
	}

	updates := map[string]interface{}{}
	for field, value := range fields {
		if !updatableDocumentFields[field] {
			continue
		}
		if field == "document_type" {
			t, _ := value.(string)
			if t != "" && !model.ValidDocumentType(t) {
				return nil, &model.ValidationError{Field: "document_type", Message: fmt.Sprintf("%q is not a recognized type", t)}
			}
		}
		updates[field] = value
	}
	if len(updates) == 0 {
		return &doc, nil
	}

	if err := s.db.Model(&doc).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("failed to update document: %w", err)
	}
	if err := s.db.First(&doc, "id = ?", docID).Error; err != nil {
		return nil, err
	}
	return &doc, nil
}

// Delete removes the document, its line items and chunks, and the stored
// file. Field mappings and canonical products survive document deletion.
func (s *DocumentService) Delete(docID string) error {
	var doc model.Document
	if err := s.db.First(&doc, "id = ?", docID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return fmt.Errorf("document %s: %w", docID, model.ErrNotFound)
		}
		return err
	}

	if s.s3Client != nil && doc.StoredPath != "" {
		bucket := os.Getenv("S3_BUCKET")
		if _, err := s.s3Client.DeleteObject(&s3.DeleteObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(doc.StoredPath),
		}); err != nil {
			log.Printf("Could not delete stored file %s: %v", doc.StoredPath, err)
		}
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("document_id = ?", doc.ID).Delete(&model.LineItem{}).Error; err != nil {
			return err
		}
		if err := tx.Where("document_id = ?", doc.ID).Delete(&model.DocumentChunk{}).Error; err != nil {
			return err
		}
		return tx.Delete(&doc).Error
	})
}

// Get loads one document, optionally with its line items.
func (s *DocumentService) Get(docID string, withItems bool) (*model.Document, error) {
	q := s.db
	if withItems {
		q = q.Preload("LineItems", func(db *gorm.DB) *gorm.DB {
			return db.Order("line_number")
		})
	}
	var doc model.Document
	if err := q.First(&doc, "id = ?", docID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("document %s: %w", docID, model.ErrNotFound)
		}
		return nil, err
	}
	return &doc, nil
}

// DocumentFilter narrows List.
type DocumentFilter struct {
	DocumentType     string
	VendorName       string
	ProcessingStatus string
	Search           string
	Page             int
	PerPage          int
}

// List returns a filtered, paginated page of documents, newest first.
func (s *DocumentService) List(f DocumentFilter) ([]model.Document, int64, error) {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PerPage < 1 || f.PerPage > 100 {
		f.PerPage = 25
	}

	q := s.db.Model(&model.Document{})
	if f.DocumentType != "" {
		q = q.Where("document_type = ?", f.DocumentType)
	}
	if f.VendorName != "" {
		q = q.Where("vendor_name LIKE ?", "%"+f.VendorName+"%")
	}
	if f.ProcessingStatus != "" {
		q = q.Where("processing_status = ?", f.ProcessingStatus)
	}
	if f.Search != "" {
		like := "%" + f.Search + "%"
		q = q.Where("original_filename LIKE ? OR vendor_name LIKE ? OR document_number LIKE ? OR contract_number LIKE ?",
			like, like, like, like)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var docs []model.Document
	err := q.Order("created_at DESC").
		Offset((f.Page - 1) * f.PerPage).Limit(f.PerPage).
		Find(&docs).Error
	return docs, total, err
}

// fetchStored retrieves uploaded file bytes from object storage.
func (s *DocumentService) fetchStored(doc *model.Document) ([]byte, error) {
	if s.s3Client == nil {
		return nil, fmt.Errorf("object storage is not configured")
	}
	bucket := os.Getenv("S3_BUCKET")
	out, err := s.s3Client.GetObject(&s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(doc.StoredPath),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch stored file %s: %w", doc.StoredPath, err)
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}

// indexDocument indexes processed text for search. A nil client skips
// indexing; indexing problems never break the pipeline.
func (s *DocumentService) indexDocument(doc *model.Document, fullText string) error {
	if s.esClient == nil {
		return nil
	}

	body, err := json.Marshal(map[string]interface{}{
		"document_id":   doc.ID,
		"filename":      doc.OriginalFilename,
		"vendor_name":   doc.VendorName,
		"document_type": doc.DocumentType,
		"full_text":     fullText,
		"timestamp":     time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal document for indexing: %w", err)
	}

	res, err := s.esClient.Index(
		"documents",
		bytes.NewReader(body),
		s.esClient.Index.WithDocumentID(doc.ID),
		s.esClient.Index.WithContext(context.Background()),
	)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("elasticsearch indexing failed: %s", res.String())
	}
	return nil
}

// SearchDocuments runs a full-text query over indexed documents.
func (s *DocumentService) SearchDocuments(query string) ([]map[string]interface{}, error) {
	if s.esClient == nil {
		return nil, fmt.Errorf("elasticsearch client is not initialized")
	}

	searchQuery := map[string]interface{}{
		"query": map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":  query,
				"fields": []string{"full_text", "filename", "vendor_name"},
			},
		},
	}
	body, err := json.Marshal(searchQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal search query: %w", err)
	}

	res, err := s.esClient.Search(
		s.esClient.Search.WithContext(context.Background()),
		s.esClient.Search.WithIndex("documents"),
		s.esClient.Search.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("elasticsearch search failed: %s", res.String())
	}

	var result map[string]interface{}
	if err := json.NewDecoder(res.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	hitsMap, ok := result["hits"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("invalid hits structure in search response")
	}
	hitsArray, ok := hitsMap["hits"].([]interface{})
	if !ok {
		return nil, fmt.Errorf("invalid hits array in search response")
	}

	var documents []map[string]interface{}
	for _, hit := range hitsArray {
		hitMap, ok := hit.(map[string]interface{})
		if !ok {
			continue
		}
		source, ok := hitMap["_source"].(map[string]interface{})
		if !ok {
			continue
		}
		documents = append(documents, source)
	}
	return documents, nil
}

// buildLineItems applies the resolved column mappings to every raw row. Row
// confidence is the mean of the contributing column confidences; the raw row
// is retained verbatim for audit and re-mapping.
func buildLineItems(doc *model.Document, extraction *Extraction, resolved []ResolvedMapping) []model.LineItem {
	targets := make(map[string]ResolvedMapping, len(resolved))
	for _, m := range resolved {
		if m.TargetField != "" {
			targets[m.SourceColumn] = m
		}
	}

	items := make([]model.LineItem, 0, len(extraction.Rows))
	for i, row := range extraction.Rows {
		li := model.LineItem{
			ID:         uuid.NewString(),
			DocumentID: doc.ID,
			LineNumber: i + 1,
			Category:   model.CategoryOther,
		}

		var confSum float64
		var confCount int
		for col, value := range row {
			m, ok := targets[col]
			if !ok {
				continue
			}
			if applyField(&li, m.TargetField, value) {
				confSum += m.Confidence
				confCount++
			}
		}
		if confCount == 0 {
			continue // nothing mapped, not a line item
		}
		conf := confSum / float64(confCount)
		li.MappingConfidence = &conf

		raw, err := json.Marshal(row)
		if err == nil {
			li.OriginalRowText = string(raw)
		}
		li.CheckExtendedPrice()
		items = append(items, li)
	}
	return items
}

// applyField assigns one raw cell to its canonical field, parsing numerics.
// Reports whether the value was usable.
func applyField(li *model.LineItem, field, value string) bool {
	value = strings.TrimSpace(value)
	if value == "" {
		return false
	}
	switch field {
	case "line_number":
		if n, err := strconv.Atoi(value); err == nil {
			li.LineNumber = n
		}
	case "clin":
		li.CLIN = value
	case "slin":
		li.SLIN = value
	case "part_number":
		li.PartNumber = value
	case "manufacturer":
		li.Manufacturer = value
	case "manufacturer_part_number":
		li.ManufacturerPartNumber = value
	case "product_name":
		li.ProductName = value
	case "product_description":
		li.ProductDescription = value
	case "category":
		c := strings.ToLower(value)
		if model.ValidCategory(c) {
			li.Category = c
		}
	case "sub_category":
		li.SubCategory = value
	case "quantity":
		li.Quantity = parseMoney(value)
	case "unit_of_issue":
		li.UnitOfIssue = value
	case "unit_price":
		li.UnitPrice = parseMoney(value)
	case "extended_price":
		li.ExtendedPrice = parseMoney(value)
	case "discount_percent":
		li.DiscountPercent = parseMoney(value)
	case "discount_amount":
		li.DiscountAmount = parseMoney(value)
	case "labor_category":
		li.LaborCategory = value
	case "labor_hours":
		li.LaborHours = parseMoney(value)
	case "labor_rate":
		li.LaborRate = parseMoney(value)
	case "period_start":
		li.PeriodStart = value
	case "period_end":
		li.PeriodEnd = value
	default:
		return false
	}
	return true
}

// parseMoney strips currency formatting and parses a float, nil on failure.
func parseMoney(value string) *float64 {
	cleaned := strings.NewReplacer("$", "", ",", "", "%", "", " ", "").Replace(value)
	if cleaned == "" {
		return nil
	}
	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return nil
	}
	return &f
}

// averageConfidence is the document-level extraction confidence: the mean of
// the line item mapping confidences, rounded to three places.
func averageConfidence(items []model.LineItem) *float64 {
	var sum float64
	var count int
	for i := range items {
		if items[i].MappingConfidence != nil {
			sum += *items[i].MappingConfidence
			count++
		}
	}
	if count == 0 {
		return nil
	}
	avg := math.Round(sum/float64(count)*1000) / 1000
	return &avg
}

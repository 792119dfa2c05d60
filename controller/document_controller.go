package controller

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	services "github.com/pdintel/docintel/service"
)

// DocumentController manages HTTP requests for the document lifecycle.
type DocumentController struct {
	service *services.DocumentService
}

// NewDocumentController initializes the controller with the service
func NewDocumentController(service *services.DocumentService) *DocumentController {
	return &DocumentController{service}
}

// UploadDocument handles the file upload request
func (dc *DocumentController) UploadDocument(ctx *gin.Context) {
	file, header, err := ctx.Request.FormFile("file")
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Failed to get file from request"})
		return
	}
	defer file.Close()

	doc, err := dc.service.Upload(file, header, ctx.PostForm("uploaded_by"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, gin.H{
		"message":  "Document uploaded successfully",
		"document": doc,
	})
}

// ProcessDocument runs extraction and mapping for one document.
func (dc *DocumentController) ProcessDocument(ctx *gin.Context) {
	doc, err := dc.service.Process(ctx.Param("id"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"document": doc})
}

// ApproveDocument completes a reviewed document.
func (dc *DocumentController) ApproveDocument(ctx *gin.Context) {
	var body struct {
		ReviewedBy  string `json:"reviewed_by"`
		ReviewNotes string `json:"review_notes"`
	}
	if err := ctx.ShouldBindJSON(&body); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if body.ReviewedBy == "" {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "reviewed_by is required"})
		return
	}

	doc, err := dc.service.Approve(ctx.Param("id"), body.ReviewedBy, body.ReviewNotes)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"message": "Document approved", "document": doc})
}

// ReprocessDocument purges extracted data and resets the document.
func (dc *DocumentController) ReprocessDocument(ctx *gin.Context) {
	doc, err := dc.service.Reprocess(ctx.Param("id"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"message": "Document reset for reprocessing", "document": doc})
}

// GetDocument retrieves one document, with line items when include=items.
func (dc *DocumentController) GetDocument(ctx *gin.Context) {
	withItems := ctx.Query("include") == "items"
	doc, err := dc.service.Get(ctx.Param("id"), withItems)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"document": doc})
}

// GetAllDocuments retrieves a filtered page of documents
func (dc *DocumentController) GetAllDocuments(ctx *gin.Context) {
	filter := services.DocumentFilter{
		DocumentType:     ctx.Query("document_type"),
		VendorName:       ctx.Query("vendor"),
		ProcessingStatus: ctx.Query("status"),
		Search:           ctx.Query("search"),
		Page:             intQuery(ctx, "page", 1),
		PerPage:          intQuery(ctx, "per_page", 25),
	}

	docs, total, err := dc.service.List(filter)
	if err != nil {
		log.Printf("Error fetching documents: %v", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to retrieve documents",
			"details": err.Error(),
		})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"documents": docs,
		"total":     total,
		"page":      filter.Page,
		"per_page":  filter.PerPage,
	})
}

// UpdateDocument applies metadata edits. Processing status is not editable.
func (dc *DocumentController) UpdateDocument(ctx *gin.Context) {
	var fields map[string]interface{}
	if err := ctx.ShouldBindJSON(&fields); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	doc, err := dc.service.UpdateMetadata(ctx.Param("id"), fields)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"document": doc})
}

// DeleteDocument removes a document and its extracted data.
func (dc *DocumentController) DeleteDocument(ctx *gin.Context) {
	if err := dc.service.Delete(ctx.Param("id")); err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"message": "Document deleted"})
}

// SearchDocuments runs a full-text search over indexed documents.
func (dc *DocumentController) SearchDocuments(ctx *gin.Context) {
	query := ctx.Query("q")
	if query == "" {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Query parameter 'q' is required"})
		return
	}

	results, err := dc.service.SearchDocuments(query)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"message": "Search completed successfully",
		"results": results,
	})
}

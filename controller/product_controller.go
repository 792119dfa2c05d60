package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"

	services "github.com/pdintel/docintel/service"
)

// ProductController manages HTTP requests for the canonical product catalog
// and cost estimation.
type ProductController struct {
	service *services.CatalogService
}

func NewProductController(service *services.CatalogService) *ProductController {
	return &ProductController{service}
}

// GetAllProducts retrieves a filtered page of canonical products
func (pc *ProductController) GetAllProducts(ctx *gin.Context) {
	page := intQuery(ctx, "page", 1)
	perPage := intQuery(ctx, "per_page", 25)

	products, total, err := pc.service.ListProducts(ctx.Query("search"), ctx.Query("category"), page, perPage)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"products": products,
		"total":    total,
		"page":     page,
		"per_page": perPage,
	})
}

// GetProduct retrieves one canonical product.
func (pc *ProductController) GetProduct(ctx *gin.Context) {
	product, err := pc.service.GetProduct(ctx.Param("id"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"product": product})
}

// MatchLineItem matches one line item into the catalog, creating a product
// when nothing matches.
func (pc *ProductController) MatchLineItem(ctx *gin.Context) {
	var body struct {
		LineItemID string `json:"line_item_id"`
	}
	if err := ctx.ShouldBindJSON(&body); err != nil || body.LineItemID == "" {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "line_item_id is required"})
		return
	}

	product, err := pc.service.MatchOrCreate(body.LineItemID)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"product": product})
}

// RebuildCatalog destructively rebuilds the catalog from all line items.
func (pc *ProductController) RebuildCatalog(ctx *gin.Context) {
	result, err := pc.service.Rebuild()
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"message": "Catalog rebuilt",
		"result":  result,
	})
}

// EstimateIGCE produces an independent cost estimate from a product's price
// history.
func (pc *ProductController) EstimateIGCE(ctx *gin.Context) {
	var body struct {
		Quantity       float64 `json:"quantity"`
		EscalationRate float64 `json:"escalation_rate"`
	}
	if err := ctx.ShouldBindJSON(&body); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	estimate, err := pc.service.EstimateIGCE(ctx.Param("id"), body.Quantity, body.EscalationRate)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"estimate": estimate})
}

package controller

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	services "github.com/pdintel/docintel/service"
)

// LineItemController manages HTTP requests for extracted line items.
type LineItemController struct {
	service *services.LineItemService
}

func NewLineItemController(service *services.LineItemService) *LineItemController {
	return &LineItemController{service}
}

func lineItemFilter(ctx *gin.Context) services.LineItemFilter {
	return services.LineItemFilter{
		DocumentID:    ctx.Query("document_id"),
		VendorName:    ctx.Query("vendor"),
		Category:      ctx.Query("category"),
		Search:        ctx.Query("search"),
		PriceFlagged:  boolQuery(ctx, "price_flagged"),
		HumanVerified: boolQuery(ctx, "human_verified"),
		SortBy:        ctx.Query("sort_by"),
		SortDesc:      ctx.Query("sort_dir") == "desc",
		Page:          intQuery(ctx, "page", 1),
		PerPage:       intQuery(ctx, "per_page", 50),
	}
}

// GetAllLineItems retrieves a filtered page of line items
func (lc *LineItemController) GetAllLineItems(ctx *gin.Context) {
	filter := lineItemFilter(ctx)
	items, total, err := lc.service.List(filter)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"line_items": items,
		"total":      total,
		"page":       filter.Page,
		"per_page":   filter.PerPage,
	})
}

// GetLineItem retrieves one line item.
func (lc *LineItemController) GetLineItem(ctx *gin.Context) {
	li, err := lc.service.Get(ctx.Param("id"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"line_item": li})
}

// UpdateLineItem applies human edits. The optional corrections object maps
// source columns to the canonical field they should have mapped to.
func (lc *LineItemController) UpdateLineItem(ctx *gin.Context) {
	var body struct {
		Fields      map[string]interface{} `json:"fields"`
		Corrections map[string]string      `json:"corrections"`
	}
	if err := ctx.ShouldBindJSON(&body); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	li, err := lc.service.Update(ctx.Param("id"), body.Fields, body.Corrections)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"line_item": li})
}

// ExportLineItems streams the filtered line items as csv or xlsx.
func (lc *LineItemController) ExportLineItems(ctx *gin.Context) {
	filter := lineItemFilter(ctx)
	format := ctx.DefaultQuery("format", "csv")
	stamp := time.Now().Format("20060102")

	switch format {
	case "csv":
		data, err := lc.service.ExportCSV(filter)
		if err != nil {
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		ctx.Header("Content-Disposition", fmt.Sprintf("attachment; filename=line_items_%s.csv", stamp))
		ctx.Data(http.StatusOK, "text/csv", data)
	case "xlsx":
		data, err := lc.service.ExportXLSX(filter)
		if err != nil {
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		ctx.Header("Content-Disposition", fmt.Sprintf("attachment; filename=line_items_%s.xlsx", stamp))
		ctx.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
	default:
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "format must be csv or xlsx"})
	}
}

// GetSpendAnalysis aggregates spend by vendor, category and month.
func (lc *LineItemController) GetSpendAnalysis(ctx *gin.Context) {
	analysis, err := lc.service.Spend()
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, analysis)
}

package main

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	controller "github.com/pdintel/docintel/controller"
	"github.com/pdintel/docintel/initializers"
	middleware "github.com/pdintel/docintel/middleware"
	services "github.com/pdintel/docintel/service"
)

func init() {
	if err := initializers.LoadEnv(); err != nil {
		log.Printf("No .env file loaded: %s", err)
	}
	if err := initializers.ConnectDB(); err != nil {
		log.Fatalf("[CRITICAL] Failed to initialize database connection: %s", err)
	}
	if err := initializers.Migrate(); err != nil {
		log.Fatalf("[CRITICAL] Failed to run database migrations: %s", err)
	}
}

func main() {
	mappingService := services.NewMappingService(initializers.DB, services.NewAIMappingSuggester())
	docService, err := services.NewDocumentService(initializers.DB, services.NewDocumentExtractor(), mappingService)
	if err != nil {
		log.Fatalf("Failed to initialize document service: %s", err)
	}
	lineItemService := services.NewLineItemService(initializers.DB, mappingService)
	catalogService := services.NewCatalogService(initializers.DB)

	docController := controller.NewDocumentController(docService)
	lineItemController := controller.NewLineItemController(lineItemService)
	productController := controller.NewProductController(catalogService)
	mappingController := controller.NewMappingController(mappingService)

	router := gin.Default()
	router.Use(middleware.CORSMiddleware())

	// Global rate limiter for most routes
	router.Use(middleware.GlobalRateLimiter.Limit())

	// Healthcheck endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	// Documents: upload and pipeline runs are expensive, so they carry the
	// strict limiter.
	router.POST("/documents",
		middleware.StrictRateLimiter.Limit(),
		docController.UploadDocument)
	router.GET("/documents", docController.GetAllDocuments)
	router.GET("/documents/:id", docController.GetDocument)
	router.PATCH("/documents/:id", docController.UpdateDocument)
	router.DELETE("/documents/:id", docController.DeleteDocument)
	router.POST("/documents/:id/process",
		middleware.StrictRateLimiter.Limit(),
		docController.ProcessDocument)
	router.POST("/documents/:id/approve", docController.ApproveDocument)
	router.POST("/documents/:id/reprocess",
		middleware.StrictRateLimiter.Limit(),
		docController.ReprocessDocument)
	router.GET("/search", docController.SearchDocuments)

	// Line items
	router.GET("/line-items", lineItemController.GetAllLineItems)
	router.GET("/line-items/:id", lineItemController.GetLineItem)
	router.PATCH("/line-items/:id", lineItemController.UpdateLineItem)
	router.GET("/line-items/export", lineItemController.ExportLineItems)
	router.GET("/spend-analysis", lineItemController.GetSpendAnalysis)

	// Canonical product catalog
	router.GET("/products", productController.GetAllProducts)
	router.GET("/products/:id", productController.GetProduct)
	router.POST("/products/match", productController.MatchLineItem)
	router.POST("/products/rebuild",
		middleware.StrictRateLimiter.Limit(),
		productController.RebuildCatalog)
	router.POST("/products/:id/estimate", productController.EstimateIGCE)

	// Learned field mappings
	router.GET("/mappings", mappingController.GetMappings)
	router.POST("/mappings/corrections", mappingController.RecordCorrection)

	router.Run(":8080")
}

package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"

	services "github.com/pdintel/docintel/service"
)

// MappingController manages HTTP requests for learned field mappings.
type MappingController struct {
	service *services.MappingService
}

func NewMappingController(service *services.MappingService) *MappingController {
	return &MappingController{service}
}

// GetMappings lists learned mappings, optionally scoped to one vendor.
func (mc *MappingController) GetMappings(ctx *gin.Context) {
	mappings, err := mc.service.ListMappings(ctx.Query("vendor"))
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"mappings": mappings,
		"total":    len(mappings),
	})
}

// RecordCorrection records a human mapping correction for a vendor column.
func (mc *MappingController) RecordCorrection(ctx *gin.Context) {
	var body struct {
		VendorName       string `json:"vendor_name"`
		SourceColumnName string `json:"source_column_name"`
		TargetField      string `json:"target_field"`
	}
	if err := ctx.ShouldBindJSON(&body); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	mapping, err := mc.service.RecordCorrection(body.VendorName, body.SourceColumnName, body.TargetField)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"mapping": mapping})
}

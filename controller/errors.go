package controller

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	model "github.com/pdintel/docintel/models"
)

// intQuery reads an integer query parameter with a fallback.
func intQuery(ctx *gin.Context, name string, fallback int) int {
	v := ctx.Query(name)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

// boolQuery reads an optional boolean query parameter, nil when absent.
func boolQuery(ctx *gin.Context, name string) *bool {
	v := ctx.Query(name)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return nil
	}
	return &b
}

// respondError translates service errors to HTTP statuses: unknown resources
// are 404, caller mistakes 400, state and concurrency conflicts 409,
// everything else 500.
func respondError(ctx *gin.Context, err error) {
	var invalidState *model.InvalidStateError
	var conflict *model.ConflictError
	var validation *model.ValidationError
	var insufficient *model.InsufficientDataError
	var unsupportedFmt *model.UnsupportedFormatError

	switch {
	case errors.Is(err, model.ErrNotFound):
		ctx.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.As(err, &validation),
		errors.As(err, &insufficient),
		errors.As(err, &unsupportedFmt):
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.As(err, &invalidState), errors.As(err, &conflict):
		ctx.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

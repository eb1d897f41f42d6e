package server

import (
	"errors"

	"stock-search-service/src/helpers"

	"github.com/gin-gonic/gin"
)

// -----------------------------------------------------------------------------
// Error mapping
// -----------------------------------------------------------------------------

// writeError translates the error taxonomy into HTTP responses.
// validationStatus lets the handler choose between 400 (malformed request)
// and 422 (well-formed but semantically invalid).
func (s *FastAPIServer) writeError(c *gin.Context, err error, validationStatus int) {
	var validation *helpers.ValidationError
	if errors.As(err, &validation) {
		c.JSON(validationStatus, gin.H{
			"error": validation.Message,
			"field": validation.Field,
		})
		return
	}

	var notFound *helpers.StockNotFoundError
	if errors.As(err, &notFound) {
		c.JSON(404, gin.H{
			"error":   "stock_not_found",
			"message": notFound.Message,
			"query":   notFound.Query,
		})
		return
	}

	var open *helpers.CircuitOpenError
	if errors.As(err, &open) {
		c.JSON(503, gin.H{
			"error":  "provider temporarily unavailable",
			"detail": open.Message,
		})
		return
	}

	var limited *helpers.RateLimitError
	if errors.As(err, &limited) {
		c.JSON(503, gin.H{
			"error":  "provider temporarily unavailable",
			"detail": limited.Message,
		})
		return
	}

	var external *helpers.ExternalServiceError
	if errors.As(err, &external) {
		c.JSON(502, gin.H{
			"error":    "upstream provider error",
			"provider": external.Provider,
		})
		return
	}

	s.Logger.Error("unhandled error on %s: %v", c.FullPath(), err)
	c.JSON(500, gin.H{"error": "internal server error"})
}

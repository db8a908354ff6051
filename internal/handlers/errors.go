package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/garrettallen/cardboards/internal/boardtree"
	"github.com/garrettallen/cardboards/internal/services"
)

// respondError maps service errors to HTTP status codes
func respondError(c *gin.Context, logger *zap.Logger, err error) {
	switch {
	case errors.Is(err, boardtree.ErrBoardNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "board not found"})
	case errors.Is(err, services.ErrBlockNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "block not found"})
	case errors.Is(err, services.ErrViewNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "view not found"})
	case errors.Is(err, services.ErrAttachmentNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "attachment not found"})
	case errors.Is(err, services.ErrInvalidBlock):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrAttachmentsDisabled):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/garrettallen/cardboards/internal/models"
	"github.com/garrettallen/cardboards/internal/services"
)

const maxAttachmentSize = 10 << 20

// AttachmentHandler handles card attachment uploads and removals
type AttachmentHandler struct {
	blockService      services.BlockService
	attachmentService services.AttachmentService
	logger            *zap.Logger
}

// NewAttachmentHandler creates a new AttachmentHandler. A nil attachmentService
// answers every request with 503.
func NewAttachmentHandler(blockService services.BlockService, attachmentService services.AttachmentService, logger *zap.Logger) *AttachmentHandler {
	return &AttachmentHandler{
		blockService:      blockService,
		attachmentService: attachmentService,
		logger:            logger,
	}
}

// Upload stores a file attached to a card
func (h *AttachmentHandler) Upload(c *gin.Context) {
	if h.attachmentService == nil {
		respondError(c, h.logger, services.ErrAttachmentsDisabled)
		return
	}

	boardID, cardID := c.Param("id"), c.Param("card_id")
	block, err := h.blockService.GetBlock(c.Request.Context(), boardID, cardID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if block.Type != models.BlockTypeCard {
		c.JSON(http.StatusBadRequest, gin.H{"error": "attachments can only be added to cards"})
		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file uploaded"})
		return
	}
	defer file.Close()

	if header.Size > maxAttachmentSize {
		c.JSON(http.StatusBadRequest, gin.H{"error": "File too large (max 10MB)"})
		return
	}

	contentType := header.Header.Get("Content-Type")
	if !isAllowedFileType(contentType) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "File type not allowed"})
		return
	}

	attachment, err := h.attachmentService.Upload(c.Request.Context(), boardID, cardID, file, header.Filename, contentType, header.Size)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, attachment)
}

// Delete removes a stored attachment of a card. The key is the one returned by
// Upload.
func (h *AttachmentHandler) Delete(c *gin.Context) {
	if h.attachmentService == nil {
		respondError(c, h.logger, services.ErrAttachmentsDisabled)
		return
	}

	boardID, cardID := c.Param("id"), c.Param("card_id")
	if _, err := h.blockService.GetBlock(c.Request.Context(), boardID, cardID); err != nil {
		respondError(c, h.logger, err)
		return
	}

	key := strings.TrimPrefix(c.Param("key"), "/")
	if err := h.attachmentService.Delete(c.Request.Context(), boardID, cardID, key); err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Attachment deleted successfully"})
}

// isAllowedFileType checks if the file type is allowed
func isAllowedFileType(contentType string) bool {
	allowedTypes := map[string]bool{
		"image/jpeg":      true,
		"image/png":       true,
		"image/gif":       true,
		"image/webp":      true,
		"application/pdf": true,
		"text/plain":      true,
		"text/markdown":   true,
	}

	return allowedTypes[contentType]
}

// RegisterRoutes registers the attachment routes
func (h *AttachmentHandler) RegisterRoutes(router *gin.RouterGroup, authMiddleware gin.HandlerFunc) {
	attachments := router.Group("/boards/:id/cards/:card_id/attachments")
	attachments.Use(authMiddleware)
	{
		attachments.POST("", h.Upload)
		attachments.DELETE("/*key", h.Delete)
	}
}

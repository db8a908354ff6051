package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/garrettallen/cardboards/internal/models"
	"github.com/garrettallen/cardboards/internal/services"
)

// BoardHandler handles HTTP requests for boards, their blocks and trees
type BoardHandler struct {
	blockService services.BlockService
	treeService  services.TreeService
	logger       *zap.Logger
}

// NewBoardHandler creates a new BoardHandler
func NewBoardHandler(blockService services.BlockService, treeService services.TreeService, logger *zap.Logger) *BoardHandler {
	return &BoardHandler{
		blockService: blockService,
		treeService:  treeService,
		logger:       logger,
	}
}

// ListBoards lists boards, newest first
func (h *BoardHandler) ListBoards(c *gin.Context) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}

	pageSize, err := strconv.Atoi(c.DefaultQuery("page_size", "10"))
	if err != nil || pageSize < 1 {
		pageSize = 10
	}

	boards, err := h.blockService.ListBoards(c.Request.Context(), page, pageSize)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"boards":    boards,
		"page":      page,
		"page_size": pageSize,
	})
}

// GetTree returns the board seen through a view, filtered by the search text.
// Schema synthesized for an incomplete board is returned but never stored.
func (h *BoardHandler) GetTree(c *gin.Context) {
	tree, err := h.treeService.Sync(c.Request.Context(), c.Param("id"), c.Query("view_id"), c.Query("search"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, tree.Snapshot())
}

// EnsureSchema stores the property and view synthesized for an incomplete
// board and returns the resulting tree
func (h *BoardHandler) EnsureSchema(c *gin.Context) {
	tree, err := h.treeService.EnsureSchema(c.Request.Context(), c.Param("id"), c.Query("view_id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, tree.Snapshot())
}

// ListBlocks returns the raw live blocks of a board
func (h *BoardHandler) ListBlocks(c *gin.Context) {
	blocks, err := h.blockService.GetSubtree(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if len(blocks) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "board not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"blocks": blocks})
}

// UpsertBlocks creates or replaces blocks of a board
func (h *BoardHandler) UpsertBlocks(c *gin.Context) {
	var req struct {
		Blocks []models.Block `json:"blocks" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	stored, err := h.blockService.UpsertBlocks(c.Request.Context(), c.Param("id"), req.Blocks)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"blocks": stored})
}

// DeleteBlock tombstones a block of a board
func (h *BoardHandler) DeleteBlock(c *gin.Context) {
	deleted, err := h.blockService.DeleteBlock(c.Request.Context(), c.Param("id"), c.Param("block_id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, deleted)
}

// CreateCard creates a card that is visible in the requested view
func (h *BoardHandler) CreateCard(c *gin.Context) {
	var req struct {
		Title  string `json:"title"`
		ViewID string `json:"view_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	card, err := h.treeService.CreateCard(c.Request.Context(), c.Param("id"), req.ViewID, req.Title)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, card)
}

// RegisterRoutes registers the board routes
func (h *BoardHandler) RegisterRoutes(router *gin.RouterGroup, authMiddleware gin.HandlerFunc) {
	boards := router.Group("/boards")

	// Public endpoints (no auth required)
	boards.GET("", h.ListBoards)
	boards.GET("/:id/tree", h.GetTree)
	boards.GET("/:id/blocks", h.ListBlocks)

	// Authenticated endpoints
	boardsAuth := boards.Group("")
	boardsAuth.Use(authMiddleware)
	{
		boardsAuth.POST("/:id/blocks", h.UpsertBlocks)
		boardsAuth.DELETE("/:id/blocks/:block_id", h.DeleteBlock)
		boardsAuth.POST("/:id/cards", h.CreateCard)
		boardsAuth.POST("/:id/schema", h.EnsureSchema)
	}
}

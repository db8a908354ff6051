package handlers

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/garrettallen/cardboards/internal/boardtree"
	"github.com/garrettallen/cardboards/internal/services"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// UpdatesHandler streams board tree snapshots over a websocket
type UpdatesHandler struct {
	treeService services.TreeService
	upgrader    websocket.Upgrader
	logger      *zap.Logger
}

// NewUpdatesHandler creates a new UpdatesHandler accepting connections from allowedOrigins
func NewUpdatesHandler(treeService services.TreeService, allowedOrigins []string, logger *zap.Logger) *UpdatesHandler {
	allowAny := slices.Contains(allowedOrigins, "*")
	return &UpdatesHandler{
		treeService: treeService,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || allowAny || slices.Contains(allowedOrigins, origin)
			},
		},
		logger: logger,
	}
}

// Stream sends the current snapshot, then a new one whenever the board changes
func (h *UpdatesHandler) Stream(c *gin.Context) {
	boardID := c.Param("id")
	log := h.logger.With(zap.String("board_id", boardID))

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Info("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	// The client never sends data; reading drives pong handling and close detection.
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	pings := time.NewTicker(pingPeriod)
	defer pings.Stop()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-pings.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
					cancel()
					return
				}
			}
		}
	}()

	err = h.treeService.Watch(ctx, boardID, c.Query("view_id"), c.Query("search"), func(tree *boardtree.BoardTree) error {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteJSON(tree.Snapshot())
	})

	closeCode, reason := websocket.CloseNormalClosure, ""
	switch {
	case err == nil, errors.Is(err, context.Canceled):
	case errors.Is(err, boardtree.ErrBoardNotFound):
		reason = "board not found"
	case errors.Is(err, services.ErrHubClosed):
		closeCode, reason = websocket.CloseGoingAway, "server shutting down"
	default:
		closeCode, reason = websocket.CloseInternalServerErr, "update stream failed"
		log.Warn("update stream ended", zap.Error(err))
	}
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(closeCode, reason), time.Now().Add(writeWait))
}

// RegisterRoutes registers the update stream route
func (h *UpdatesHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/boards/:id/updates", h.Stream)
}

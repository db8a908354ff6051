package services

import (
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/garrettallen/cardboards/internal/models"
)

// ErrHubClosed is returned by watchers once the hub has shut down
var ErrHubClosed = errors.New("update hub closed")

// Subscription delivers the blocks changed on one board. Its channel is closed
// when the subscriber falls behind or unsubscribes; a closed subscriber must
// resync.
type Subscription struct {
	hub     *UpdateHub
	boardID string
	ch      chan []models.Block
	once    sync.Once
}

// Updates returns the channel of changed block batches
func (s *Subscription) Updates() <-chan []models.Block {
	return s.ch
}

// Close unsubscribes; it is safe to call more than once
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.remove(s)
	})
}

// UpdateHub fans changed blocks out to the subscribers of each board
type UpdateHub struct {
	mu     sync.Mutex
	buffer int
	subs   map[string]map[*Subscription]struct{}
	closed bool
	logger *zap.Logger
}

// NewUpdateHub creates a hub whose subscribers buffer up to buffer batches
func NewUpdateHub(buffer int, logger *zap.Logger) *UpdateHub {
	if buffer < 1 {
		buffer = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UpdateHub{
		buffer: buffer,
		subs:   make(map[string]map[*Subscription]struct{}),
		logger: logger.Named("updates"),
	}
}

// Subscribe registers a subscriber for boardID. On a closed hub the returned
// subscription is already closed.
func (h *UpdateHub) Subscribe(boardID string) *Subscription {
	sub := &Subscription{
		hub:     h,
		boardID: boardID,
		ch:      make(chan []models.Block, h.buffer),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(sub.ch)
		return sub
	}
	if h.subs[boardID] == nil {
		h.subs[boardID] = make(map[*Subscription]struct{})
	}
	h.subs[boardID][sub] = struct{}{}
	return sub
}

// Publish routes blocks to the subscribers of the board they belong to. A
// subscriber whose buffer is full is dropped.
func (h *UpdateHub) Publish(blocks []models.Block) {
	byBoard := make(map[string][]models.Block)
	for _, block := range blocks {
		boardID := block.RootID
		if boardID == "" {
			boardID = block.ID
		}
		byBoard[boardID] = append(byBoard[boardID], block)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for boardID, batch := range byBoard {
		for sub := range h.subs[boardID] {
			select {
			case sub.ch <- batch:
			default:
				h.logger.Warn("subscriber fell behind, closing",
					zap.String("board_id", boardID),
					zap.Int("buffer", h.buffer))
				h.dropLocked(sub)
			}
		}
	}
}

// Subscribers returns the number of live subscribers for boardID
func (h *UpdateHub) Subscribers(boardID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[boardID])
}

// Closed reports whether Close has been called
func (h *UpdateHub) Closed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

// Close drops every subscriber and refuses new ones
func (h *UpdateHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for _, subs := range h.subs {
		for sub := range subs {
			h.dropLocked(sub)
		}
	}
}

func (h *UpdateHub) remove(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dropLocked(sub)
}

func (h *UpdateHub) dropLocked(sub *Subscription) {
	subs, ok := h.subs[sub.boardID]
	if !ok {
		return
	}
	if _, ok := subs[sub]; !ok {
		return
	}
	delete(subs, sub)
	if len(subs) == 0 {
		delete(h.subs, sub.boardID)
	}
	close(sub.ch)
}

package controller

import (
	"log"
	"sync"

	"github.com/gofiber/websocket/v2"

	"leadflow/models"
)

// TriggerHub fans trigger audit entries out to connected websocket
// clients. The evaluator publishes through Broadcast; slow clients are
// dropped rather than allowed to block an evaluation.
type TriggerHub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]chan *models.TriggerAudit
	logger  *log.Logger
}

func NewTriggerHub(logger *log.Logger) *TriggerHub {
	return &TriggerHub{
		clients: make(map[*websocket.Conn]chan *models.TriggerAudit),
		logger:  logger,
	}
}

// Broadcast delivers an audit entry to every connected client without
// blocking the caller.
func (h *TriggerHub) Broadcast(entry *models.TriggerAudit) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for conn, ch := range h.clients {
		select {
		case ch <- entry:
		default:
			h.logger.Printf("Dropping slow trigger stream client")
			close(ch)
			delete(h.clients, conn)
		}
	}
}

func (h *TriggerHub) register(conn *websocket.Conn) chan *models.TriggerAudit {
	ch := make(chan *models.TriggerAudit, 16)
	h.mu.Lock()
	h.clients[conn] = ch
	h.mu.Unlock()
	return ch
}

func (h *TriggerHub) unregister(conn *websocket.Conn) {
	h.mu.Lock()
	if ch, ok := h.clients[conn]; ok {
		close(ch)
		delete(h.clients, conn)
	}
	h.mu.Unlock()
}

// HandleTriggerStreamWS streams audit entries to a dashboard client for
// as long as the connection stays open.
func (h *TriggerHub) HandleTriggerStreamWS(c *websocket.Conn) {
	defer c.Close()

	ch := h.register(c)
	defer h.unregister(c)

	for entry := range ch {
		if err := c.WriteJSON(entry); err != nil {
			h.logger.Printf("Error writing trigger stream entry: %v", err)
			return
		}
	}
}

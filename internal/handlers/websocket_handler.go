package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/themeflow/server/internal/observability"
	"github.com/themeflow/server/internal/services"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Stylesheets are public; any origin may listen
		return true
	},
}

// WebSocketHandler streams stylesheet changes to browsers
type WebSocketHandler struct {
	hub      *services.WebSocketHub
	registry *services.StylesheetRegistry
	logger   *observability.Logger
}

// NewWebSocketHandler creates a new WebSocketHandler
func NewWebSocketHandler(hub *services.WebSocketHub, registry *services.StylesheetRegistry, logger *observability.Logger) *WebSocketHandler {
	if logger == nil {
		logger = observability.GetLogger()
	}
	return &WebSocketHandler{
		hub:      hub,
		registry: registry,
		logger:   logger.WithField("component", "websocket_handler"),
	}
}

// HandleConnection upgrades HTTP to WebSocket, sends the current fragments and
// subscribes the client to stylesheet changes
// GET /ws
func (h *WebSocketHandler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Warn("WebSocket upgrade failed")
		return
	}

	clientID := uuid.New().String()
	client := h.hub.NewClient(clientID, conn)

	h.hub.Register(client)
	h.hub.Subscribe(client, services.TopicStylesheets)
	client.SendMessage(services.WSMessage{
		Type:    services.WSTypeSnapshot,
		Topic:   services.TopicStylesheets,
		Payload: h.snapshot(),
	})

	// Start the write pump in a goroutine
	go client.WritePump()

	// Run the read pump (blocks until connection closes)
	client.ReadPump(h.handleMessage)
}

func (h *WebSocketHandler) snapshot() []services.StylesheetPayload {
	sheets := h.registry.List()
	out := make([]services.StylesheetPayload, len(sheets))
	for i, s := range sheets {
		out[i] = services.StylesheetPayload{ID: s.ID, CSS: s.CSS, UpdatedAt: s.UpdatedAt}
	}
	return out
}

// handleMessage processes incoming WebSocket messages
func (h *WebSocketHandler) handleMessage(client *services.WSClient, messageType int, data []byte) {
	if messageType != websocket.TextMessage {
		return
	}

	var msg services.WSMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		client.SendMessage(services.WSMessage{Type: services.WSTypeError, Payload: "invalid message"})
		return
	}

	switch msg.Type {
	case services.WSTypeSubscribe:
		if topic := messageTopic(msg); topic != "" {
			h.hub.Subscribe(client, topic)
		}

	case services.WSTypeUnsubscribe:
		if topic := messageTopic(msg); topic != "" {
			h.hub.Unsubscribe(client, topic)
		}

	case services.WSTypePing:
		client.SendMessage(services.WSMessage{Type: services.WSTypePong})

	default:
		h.logger.WithField("client_id", client.ID).WithField("type", msg.Type).Debug("Unknown WebSocket message type")
		client.SendMessage(services.WSMessage{Type: services.WSTypeError, Payload: "unknown message type"})
	}
}

// messageTopic reads the topic from msg.Topic, a string payload or {"topic": ...}
func messageTopic(msg services.WSMessage) string {
	if msg.Topic != "" {
		return msg.Topic
	}
	if topic, ok := msg.Payload.(string); ok {
		return topic
	}
	if payload, ok := msg.Payload.(map[string]interface{}); ok {
		if topic, ok := payload["topic"].(string); ok {
			return topic
		}
	}
	return ""
}

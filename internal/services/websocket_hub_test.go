package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/themeflow/server/internal/observability"
)

func TestWebSocketHub_StylesheetBroadcast(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewWebSocketHub(nil, observability.Nop())
	go hub.Run(ctx)

	registry := NewStylesheetRegistry(nil)
	unwatch := hub.WatchStylesheets(registry)
	defer unwatch()

	subscribed := make(chan struct{})
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		client := hub.NewClient("c1", conn)
		hub.Register(client)
		hub.Subscribe(client, TopicStylesheets)
		close(subscribed)
		go client.WritePump()
		client.ReadPump(nil)
	}))
	defer server.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	select {
	case <-subscribed:
	case <-time.After(2 * time.Second):
		t.Fatal("client never subscribed")
	}
	assert.Equal(t, 1, hub.GetTopicSubscriberCount(TopicStylesheets))

	readMessage := func() WSMessage {
		t.Helper()
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)
		var msg WSMessage
		require.NoError(t, json.Unmarshal(data, &msg))
		return msg
	}

	t.Run("updates are pushed", func(t *testing.T) {
		registry.Inject("ui-theme-styles", ".ui{}")

		msg := readMessage()
		assert.Equal(t, WSTypeStylesheetUpdated, msg.Type)
		assert.Equal(t, TopicStylesheets, msg.Topic)
		payload := msg.Payload.(map[string]any)
		assert.Equal(t, "ui-theme-styles", payload["id"])
		assert.Equal(t, ".ui{}", payload["css"])
	})

	t.Run("removals are pushed", func(t *testing.T) {
		registry.Remove("ui-theme-styles")

		msg := readMessage()
		assert.Equal(t, WSTypeStylesheetRemoved, msg.Type)
		payload := msg.Payload.(map[string]any)
		assert.Equal(t, "ui-theme-styles", payload["id"])
		assert.NotContains(t, payload, "css")
	})
}

func TestWebSocketHub_Topics(t *testing.T) {
	hub := NewWebSocketHub(nil, observability.Nop())
	client := hub.NewClient("c1", nil)

	hub.Subscribe(client, TopicStylesheets)
	hub.Subscribe(client, "other")
	assert.Equal(t, 1, hub.GetTopicSubscriberCount(TopicStylesheets))
	assert.True(t, client.Topics["other"])

	hub.Unsubscribe(client, TopicStylesheets)
	assert.Equal(t, 0, hub.GetTopicSubscriberCount(TopicStylesheets))
	assert.False(t, client.Topics[TopicStylesheets])
}

func TestWSClient_SendMessage(t *testing.T) {
	hub := NewWebSocketHub(nil, observability.Nop())
	client := hub.NewClient("c1", nil)

	require.True(t, client.SendMessage(WSMessage{Type: WSTypePong}))
	data := <-client.Send
	assert.JSONEq(t, `{"type":"pong"}`, string(data))
}

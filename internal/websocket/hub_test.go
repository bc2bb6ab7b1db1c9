package websocket

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap/zaptest"

	"github.com/satriahrh/smartspeaker/domain/entities"
)

func setupTestHub(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	logger := zaptest.NewLogger(t)
	hub := NewHub(logger)

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	e := echo.New()
	e.GET("/ws", func(c echo.Context) error {
		return HandleWebSocket(hub, c, "operator", logger)
	})
	server := httptest.NewServer(e)

	t.Cleanup(func() {
		server.Close()
		cancel()
	})
	return hub, server
}

func dial(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Failed to dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	var hello HelloMessage
	readJSON(t, conn, &hello)
	if hello.Type != MessageTypeHello || hello.Subject != "operator" {
		t.Fatalf("Expected hello for operator, got %+v", hello)
	}
	return conn
}

func readJSON(t *testing.T, conn *websocket.Conn, v interface{}) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("Failed to read message: %v", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		t.Fatalf("Failed to decode %s: %v", data, err)
	}
}

func TestHub_PublishReachesClients(t *testing.T) {
	hub, server := setupTestHub(t)
	first := dial(t, server)
	second := dial(t, server)

	if n := hub.ClientCount(); n != 2 {
		t.Fatalf("Expected 2 clients, got %d", n)
	}

	event := entities.NewEvent(entities.EventUtterance, "session-1")
	event.Text = "как дела"
	hub.Publish(event)

	for _, conn := range []*websocket.Conn{first, second} {
		var msg EventMessage
		readJSON(t, conn, &msg)
		if msg.Type != MessageTypeEvent {
			t.Errorf("Expected event message, got %s", msg.Type)
		}
		if msg.Event.Type != entities.EventUtterance || msg.Event.Text != "как дела" || msg.Event.SessionID != "session-1" {
			t.Errorf("Unexpected event %+v", msg.Event)
		}
	}
}

func TestHub_PingPong(t *testing.T) {
	_, server := setupTestHub(t)
	conn := dial(t, server)

	if err := conn.WriteJSON(map[string]string{"type": "ping", "data": "abc"}); err != nil {
		t.Fatalf("Failed to send ping: %v", err)
	}

	var pong PongMessage
	readJSON(t, conn, &pong)
	if pong.Type != MessageTypePong || pong.Data != "abc" {
		t.Errorf("Unexpected pong %+v", pong)
	}
}

func TestHub_SubscribeFiltersEvents(t *testing.T) {
	hub, server := setupTestHub(t)
	conn := dial(t, server)

	if err := conn.WriteJSON(map[string]interface{}{"type": "subscribe", "events": []string{"turn"}}); err != nil {
		t.Fatalf("Failed to subscribe: %v", err)
	}
	// the pong proves the subscription was applied
	conn.WriteJSON(map[string]string{"type": "ping"})
	var pong PongMessage
	readJSON(t, conn, &pong)

	hub.Publish(entities.NewEvent(entities.EventTranscript, "s"))
	turn := entities.NewEvent(entities.EventTurn, "s")
	turn.Response = "ответ"
	hub.Publish(turn)

	var msg EventMessage
	readJSON(t, conn, &msg)
	if msg.Event.Type != entities.EventTurn {
		t.Errorf("Expected only turn events, got %s", msg.Event.Type)
	}
}

func TestHub_InvalidMessageGetsError(t *testing.T) {
	_, server := setupTestHub(t)
	conn := dial(t, server)

	conn.WriteJSON(map[string]string{"type": "audio_chunk"})

	var msg ErrorMessage
	readJSON(t, conn, &msg)
	if msg.Type != MessageTypeError || msg.Code != "invalid_message" {
		t.Errorf("Unexpected error message %+v", msg)
	}
}

func TestHub_UnregisterOnDisconnect(t *testing.T) {
	hub, server := setupTestHub(t)
	conn := dial(t, server)
	conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() != 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if n := hub.ClientCount(); n != 0 {
		t.Errorf("Expected client to be unregistered, got %d", n)
	}

	// publishing with no clients must not block
	hub.Publish(entities.NewEvent(entities.EventMute, ""))
}

func TestStatusReporter_Broadcasts(t *testing.T) {
	hub, server := setupTestHub(t)
	conn := dial(t, server)

	info := entities.NewSession().Info()
	reporter := NewStatusReporter(hub, func() Status {
		return Status{Session: &info, Muted: true}
	}, 10*time.Millisecond, zaptest.NewLogger(t))
	reporter.Start()
	defer reporter.Stop()

	var msg StatusMessage
	readJSON(t, conn, &msg)
	if msg.Type != MessageTypeStatus {
		t.Fatalf("Expected status message, got %s", msg.Type)
	}
	if !msg.Status.Muted || msg.Status.Clients != 1 || msg.Status.Session == nil || msg.Status.Session.ID != info.ID {
		t.Errorf("Unexpected status %+v", msg.Status)
	}

	reporter.Stop()
}

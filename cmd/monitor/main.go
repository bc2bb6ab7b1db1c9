// Command monitor connects to the speaker diagnostics feed and prints
// every message it receives.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"

	"github.com/satriahrh/smartspeaker/domain/entities"
	"github.com/satriahrh/smartspeaker/internal/auth"
	ws "github.com/satriahrh/smartspeaker/internal/websocket"
)

func main() {
	addr := flag.String("addr", "localhost:8080", "diagnostics server address")
	events := flag.String("events", "", "comma separated event types to subscribe to")
	flag.Parse()

	_ = godotenv.Load()

	header := http.Header{}
	if secret := os.Getenv("DIAG_JWT_SECRET"); secret != "" {
		tokens, err := auth.NewTokenService(secret, time.Hour)
		if err != nil {
			log.Fatalf("Failed to create token service: %v", err)
		}
		token, err := tokens.GenerateOperatorToken("monitor")
		if err != nil {
			log.Fatalf("Failed to mint token: %v", err)
		}
		header.Set("Authorization", "Bearer "+token)
	}

	wsURL := url.URL{Scheme: "ws", Host: *addr, Path: "/ws"}
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL.String(), header)
	if err != nil {
		if resp != nil {
			log.Fatalf("WebSocket connection failed with status %d: %v", resp.StatusCode, err)
		}
		log.Fatalf("WebSocket connection failed: %v", err)
	}
	defer conn.Close()

	if *events != "" {
		sub := ws.SubscribeMessage{Events: parseEvents(*events)}
		sub.Type = ws.MessageTypeSubscribe
		sub.Timestamp = time.Now().Format(time.RFC3339)
		if err := conn.WriteJSON(sub); err != nil {
			log.Fatalf("Failed to subscribe: %v", err)
		}
	}

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, message, err := conn.ReadMessage()
			if err != nil {
				log.Printf("Connection closed: %v", err)
				return
			}
			printMessage(message)
		}
	}()

	select {
	case <-done:
	case <-interrupt:
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		select {
		case <-done:
		case <-time.After(time.Second):
		}
	}
}

func parseEvents(s string) []entities.EventType {
	var out []entities.EventType
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, entities.EventType(part))
		}
	}
	return out
}

func printMessage(message []byte) {
	var base ws.BaseMessage
	if err := json.Unmarshal(message, &base); err != nil {
		fmt.Printf("? %s\n", message)
		return
	}

	if base.Type != ws.MessageTypeEvent {
		fmt.Printf("[%s] %s\n", base.Type, message)
		return
	}

	var msg ws.EventMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		fmt.Printf("? %s\n", message)
		return
	}
	ev := msg.Event
	switch ev.Type {
	case entities.EventTranscript:
		fmt.Printf("%s  transcript final=%t %q\n", ev.Timestamp.Format(time.TimeOnly), ev.IsFinal, ev.Text)
	case entities.EventTurn:
		fmt.Printf("%s  turn %q -> %q %s\n", ev.Timestamp.Format(time.TimeOnly), ev.Text, ev.Response, ev.Error)
	default:
		fmt.Printf("%s  %s %s %s\n", ev.Timestamp.Format(time.TimeOnly), ev.Type, ev.Text, ev.Reason)
	}
}

package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"domainatlas/internal/service"
)

func TestHandleWS(t *testing.T) {
	h, _ := newTestHandler(t)
	e := echo.New()
	e.GET("/ws", h.HandleWS)

	srv := httptest.NewServer(e)
	defer srv.Close()

	u := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	ws, resp, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("Failed to connect to WebSocket: %v", err)
	}
	defer func() {
		_ = ws.Close()
	}()
	if resp.StatusCode != http.StatusSwitchingProtocols {
		t.Fatalf("Expected 101, got %d", resp.StatusCode)
	}

	// Subscription is registered during the handshake, but give the server
	// loop a moment before publishing.
	deadline := time.Now().Add(2 * time.Second)
	var got service.ProgressEvent
	for {
		h.Bus.Publish(service.ProgressEvent{Type: "run", Stage: "started"})

		_ = ws.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
		if err := ws.ReadJSON(&got); err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("No progress event received over WebSocket")
		}
	}

	if got.Type != "run" || got.Stage != "started" {
		t.Errorf("Unexpected event: %+v", got)
	}
}

func TestHandleWSClientClose(t *testing.T) {
	h, _ := newTestHandler(t)
	e := echo.New()
	e.GET("/ws", h.HandleWS)

	srv := httptest.NewServer(e)
	defer srv.Close()

	u := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	ws, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("Failed to connect to WebSocket: %v", err)
	}
	_ = ws.Close()

	// Publishing after the client is gone must not block or panic even once
	// the server side has unsubscribed.
	for i := 0; i < 10; i++ {
		h.Bus.Publish(service.ProgressEvent{Type: "run", Stage: "started", Done: i})
		time.Sleep(10 * time.Millisecond)
	}
}

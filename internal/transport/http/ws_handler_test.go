package http

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"timed-quiz-service/internal/app"
	"timed-quiz-service/internal/domain"
	"timed-quiz-service/internal/infra/memory"
)

func TestWebSocketLeaderboardStream(t *testing.T) {
	service := app.NewContentService(memory.NewStore(), nil, app.Options{Hub: app.NewLeaderboardHub()})
	server := httptest.NewServer(NewServer(service, nil, Options{}).Handler())
	defer server.Close()

	u := "ws" + server.URL[len("http"):] + "/ws/leaderboard"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// Expect the current leaderboard first.
	typ, payload := readNext(t, conn)
	if typ != "leaderboard" {
		t.Fatalf("expected leaderboard, got %s", typ)
	}
	if entries, _ := payload["entries"].([]any); len(entries) != 0 {
		t.Fatalf("expected empty leaderboard, got %v", payload)
	}

	if _, err := service.CreateParticipant(context.Background(), domain.Registration{Name: "Ada", StudentID: "S1", Section: domain.SectionPython}); err != nil {
		t.Fatalf("register: %v", err)
	}
	typ, payload = readNext(t, conn)
	entries, _ := payload["entries"].([]any)
	if typ != "leaderboard" || len(entries) != 1 {
		t.Fatalf("expected one entry after registration, got %s %v", typ, payload)
	}

	if err := conn.WriteJSON(map[string]any{"type": "ping"}); err != nil {
		t.Fatalf("write ping: %v", err)
	}
	if typ, _ := readNext(t, conn); typ != "pong" {
		t.Fatalf("expected pong, got %s", typ)
	}

	if err := conn.WriteJSON(map[string]any{"type": "answer"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if typ, _ := readNext(t, conn); typ != "error" {
		t.Fatalf("expected error, got %s", typ)
	}
}

func readNext(t *testing.T, conn *websocket.Conn) (string, map[string]any) {
	t.Helper()
	var msg struct {
		Type    string         `json:"type"`
		Payload map[string]any `json:"payload"`
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	return msg.Type, msg.Payload
}

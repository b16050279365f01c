package websocket

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// echoServer answers every request with a timer event carrying the action.
func echoServer(t *testing.T, examDuration time.Duration, got chan<- error) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			got <- err
			return
		}
		conn := NewConn(raw, examDuration)
		defer conn.Close()
		for {
			req, err := conn.ReadRequest()
			if err != nil {
				got <- err
				return
			}
			if err := conn.WriteError(string(req.Action)); err != nil {
				got <- err
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestIdleTimeoutFollowsExamLength(t *testing.T) {
	tests := []struct {
		duration time.Duration
		want     time.Duration
	}{
		{45 * time.Minute, 45 * time.Minute},
		{2 * time.Hour, 2 * time.Hour},
		{10 * time.Second, minIdle},
		{0, minIdle},
	}

	for _, tt := range tests {
		if got := idleFor(tt.duration); got != tt.want {
			t.Errorf("duration %s: idle = %s, want %s", tt.duration, got, tt.want)
		}
	}
}

func TestConnRoundTrip(t *testing.T) {
	errs := make(chan error, 1)
	client := dial(t, echoServer(t, 45*time.Minute, errs))

	if err := client.WriteMessage(websocket.TextMessage, []byte(`{"action":"ping"}`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	var resp ErrorResponse
	if err := client.ReadJSON(&resp); err != nil {
		t.Fatalf("read: %v", err)
	}
	if resp.Event != EventError || resp.Error != "ping" {
		t.Fatalf("response = %+v", resp)
	}
}

func TestConnRejectsOversizedMessages(t *testing.T) {
	errs := make(chan error, 1)
	client := dial(t, echoServer(t, 45*time.Minute, errs))

	big := `{"action":"` + strings.Repeat("a", maxMessageSize) + `"}`
	if err := client.WriteMessage(websocket.TextMessage, []byte(big)); err != nil {
		t.Fatalf("write: %v", err)
	}

	select {
	case err := <-errs:
		if err == nil || !strings.Contains(err.Error(), "read limit") {
			t.Fatalf("server error = %v, want read limit", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server kept an oversized message")
	}
}

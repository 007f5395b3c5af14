package control

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"ledgerbot/internal/logging"
	"ledgerbot/internal/relay"
	"ledgerbot/internal/session"
)

func newTestServer(t *testing.T, r Relay, token string) (*Server, *httptest.Server) {
	t.Helper()
	srv := NewServer(ServerOptions{
		Listen: "127.0.0.1:0",
		Token:  token,
		Relay:  r,
		Status: func(context.Context) any {
			return map[string]any{"state": "open", "attempt": 1}
		},
		Logger: logging.NewNop(),
	})
	if srv == nil {
		t.Fatal("expected server")
	}
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, ts
}

func TestNewServerWithoutListenIsDisabled(t *testing.T) {
	if srv := NewServer(ServerOptions{Listen: "  "}); srv != nil {
		t.Fatal("expected nil server for empty listen address")
	}
	var srv *Server
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("nil server Start returned %v", err)
	}
	if srv.Addr() != "" {
		t.Fatal("nil server should have no address")
	}
}

func TestRootServesIndexAndKeepAlive(t *testing.T) {
	_, ts := newTestServer(t, nil, "")

	resp, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatalf("GET /: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if !strings.Contains(resp.Header.Get("Content-Type"), "text/html") {
		t.Fatalf("unexpected content type %q", resp.Header.Get("Content-Type"))
	}
	if !strings.Contains(string(body), "selectMode") {
		t.Fatal("expected control page to reference selectMode")
	}

	for _, path := range []string{"/health", "/anything/else", "/favicon.ico"} {
		resp, err := http.Get(ts.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK || string(body) != KeepAliveBody {
			t.Fatalf("GET %s = %d %q", path, resp.StatusCode, body)
		}
	}
}

func TestStatusEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, nil, "")

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d", w.Code)
	}
	var payload map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload["state"] != "open" {
		t.Fatalf("unexpected payload %v", payload)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/status", nil)
	w = httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", w.Code)
	}
}

func TestStatusEndpointRequiresToken(t *testing.T) {
	srv, _ := newTestServer(t, nil, "s3cret")

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{name: "missing", header: "", want: http.StatusUnauthorized},
		{name: "wrong", header: "Bearer nope", want: http.StatusUnauthorized},
		{name: "valid", header: "Bearer s3cret", want: http.StatusOK},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			srv.Handler().ServeHTTP(w, req)
			if w.Code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, w.Code)
			}
		})
	}
}

func TestWebSocketRelaysEventsAndSelections(t *testing.T) {
	r := relay.New(logging.NewNop(), nil)
	defer r.Close()
	_, ts := newTestServer(t, r, "")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.CloseNow()

	resolved := make(chan session.Mode, 1)
	go func() {
		mode, err := r.ResolveMode(ctx, "", nil, 5*time.Second)
		if err != nil {
			t.Errorf("ResolveMode: %v", err)
		}
		resolved <- mode
	}()

	deadline := time.Now().Add(2 * time.Second)
	for !r.Attached() {
		if time.Now().After(deadline) {
			t.Fatal("websocket front end never attached")
		}
		time.Sleep(10 * time.Millisecond)
	}

	if err := wsjson.Write(ctx, conn, relay.Inbound{Type: relay.InboundSelectMode, Mode: "pairing"}); err != nil {
		t.Fatalf("write selectMode: %v", err)
	}
	select {
	case mode := <-resolved:
		if mode != session.ModePairing {
			t.Fatalf("expected pairing, got %s", mode)
		}
	case <-ctx.Done():
		t.Fatal("mode was not resolved from websocket")
	}

	var ev relay.Event
	if err := wsjson.Read(ctx, conn, &ev); err != nil {
		t.Fatalf("read modeSelected: %v", err)
	}
	if ev.Type != relay.EventModeSelected || ev.Mode != "pairing" {
		t.Fatalf("unexpected event %+v", ev)
	}

	r.Emit(relay.Event{Type: relay.EventPairingCode, Code: "WXYZ-1234"})
	if err := wsjson.Read(ctx, conn, &ev); err != nil {
		t.Fatalf("read pairingCode: %v", err)
	}
	if ev.Type != relay.EventPairingCode || ev.Code != "WXYZ-1234" {
		t.Fatalf("unexpected event %+v", ev)
	}
}

func TestSecondWebSocketEvictsFirst(t *testing.T) {
	r := relay.New(logging.NewNop(), nil)
	defer r.Close()
	_, ts := newTestServer(t, r, "")
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	first, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial first: %v", err)
	}
	defer first.CloseNow()
	for !r.Attached() {
		time.Sleep(10 * time.Millisecond)
	}

	second, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial second: %v", err)
	}
	defer second.CloseNow()

	_, _, err = first.Read(ctx)
	if status := websocket.CloseStatus(err); status != websocket.StatusGoingAway {
		t.Fatalf("expected first connection to be closed with going away, got %v (%v)", status, err)
	}
}

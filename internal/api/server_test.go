package api

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"image/png"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"pointerheat/internal/config"
	"pointerheat/internal/input"
	"pointerheat/internal/protocol"
	"pointerheat/internal/service"
	"pointerheat/internal/session"
	"pointerheat/internal/topology"
)

// fakeCapture is an input.Capture driven by the test
type fakeCapture struct {
	mu     sync.Mutex
	events chan input.PositionEvent
}

func (f *fakeCapture) Start() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = make(chan input.PositionEvent, 64)
	return nil
}

func (f *fakeCapture) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	close(f.events)
	return nil
}

func (f *fakeCapture) Events() <-chan input.PositionEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.events
}

func (f *fakeCapture) move(x, y int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events <- input.PositionEvent{X: x, Y: y, Time: time.Now()}
}

type fixture struct {
	api     *Server
	svc     *service.Service
	capture *fakeCapture
	http    *httptest.Server
}

func newFixture(t *testing.T, token string) *fixture {
	t.Helper()
	mgr := config.NewManagerAt(filepath.Join(t.TempDir(), "config.json"))
	cfg := mgr.Get()
	cfg.General.APIToken = token
	cfg.Heatmap.ImageWidth = 300
	if err := mgr.Set(cfg); err != nil {
		t.Fatal(err)
	}

	fc := &fakeCapture{}
	src := topology.StaticSource{
		{Name: "left", X: -217, Y: 982, Width: 1920, Height: 1080},
		{Name: "main", X: 0, Y: 0, Width: 1703, Height: 982, Primary: true},
	}
	svc := service.New(mgr, src, func() input.Capture { return fc }, session.Options{})
	srv := NewServer(mgr, svc)
	ts := httptest.NewServer(srv.Handler())

	t.Cleanup(func() {
		ts.Close()
		svc.Close()
		srv.wsMgr.stop()
	})
	return &fixture{api: srv, svc: svc, capture: fc, http: ts}
}

func (f *fixture) do(t *testing.T, method, path string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, f.http.URL+path, nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

// record runs one capture session with the given positions
func (f *fixture) record(t *testing.T, points ...[2]int) {
	t.Helper()
	if resp := f.do(t, http.MethodPost, "/api/session/start"); resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected start to succeed, got %d", resp.StatusCode)
	}
	for _, p := range points {
		f.capture.move(p[0], p[1])
	}
	if resp := f.do(t, http.MethodPost, "/api/session/stop"); resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected stop to succeed, got %d", resp.StatusCode)
	}
}

func TestHealth(t *testing.T) {
	f := newFixture(t, "secret")
	resp := f.do(t, http.MethodGet, "/health")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected health without token, got %d", resp.StatusCode)
	}
}

func TestAuth(t *testing.T) {
	f := newFixture(t, "secret")

	if resp := f.do(t, http.MethodGet, "/api/status"); resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("Expected 401 without token, got %d", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodGet, f.http.URL+"/api/status", nil)
	req.Header.Set("Authorization", "Bearer secret")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200 with bearer token, got %d", resp.StatusCode)
	}

	if resp := f.do(t, http.MethodGet, "/api/status?token=secret"); resp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200 with query token, got %d", resp.StatusCode)
	}
}

func TestStatusAndTopology(t *testing.T) {
	f := newFixture(t, "")

	var status service.Status
	if err := json.NewDecoder(f.do(t, http.MethodGet, "/api/status").Body).Decode(&status); err != nil {
		t.Fatal(err)
	}
	if status.Session.State != session.StateIdle || status.Samples != 0 {
		t.Errorf("Unexpected initial status %+v", status)
	}

	var topo struct {
		Regions []topology.Region `json:"regions"`
		Bounds  topology.Bounds   `json:"bounds"`
	}
	if err := json.NewDecoder(f.do(t, http.MethodPost, "/api/topology").Body).Decode(&topo); err != nil {
		t.Fatal(err)
	}
	want := topology.Bounds{MinX: -217, MaxX: 1703, MinY: 0, MaxY: 2062}
	if len(topo.Regions) != 2 || topo.Bounds != want {
		t.Errorf("Expected two regions with bounds %v, got %+v", want, topo)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	f := newFixture(t, "")
	for _, path := range []string{"/api/session/start", "/api/session/stop", "/api/clear"} {
		if resp := f.do(t, http.MethodGet, path); resp.StatusCode != http.StatusMethodNotAllowed {
			t.Errorf("GET %s: expected 405, got %d", path, resp.StatusCode)
		}
	}
}

func TestHeatmapEmpty(t *testing.T) {
	f := newFixture(t, "")
	if resp := f.do(t, http.MethodGet, "/api/heatmap"); resp.StatusCode != http.StatusConflict {
		t.Errorf("Expected 409 for empty store, got %d", resp.StatusCode)
	}
	if resp := f.do(t, http.MethodGet, "/api/heatmap.png"); resp.StatusCode != http.StatusConflict {
		t.Errorf("Expected 409 for empty store, got %d", resp.StatusCode)
	}
}

func TestHeatmapJSONAndPNG(t *testing.T) {
	f := newFixture(t, "")
	f.record(t, [2]int{-217, 0}, [2]int{-217, 0}, [2]int{1703, 2062})

	var v struct {
		Samples int `json:"samples"`
		Grid    struct {
			Counts [][]int `json:"counts"`
			Total  int     `json:"total"`
		} `json:"grid"`
	}
	if err := json.NewDecoder(f.do(t, http.MethodGet, "/api/heatmap").Body).Decode(&v); err != nil {
		t.Fatal(err)
	}
	if v.Samples != 3 || v.Grid.Total != 3 {
		t.Errorf("Expected 3 samples, got %d and %d", v.Samples, v.Grid.Total)
	}
	if v.Grid.Counts[0][0] != 2 || v.Grid.Counts[119][119] != 1 {
		t.Errorf("Expected corner counts 2 and 1, got %d and %d", v.Grid.Counts[0][0], v.Grid.Counts[119][119])
	}

	resp := f.do(t, http.MethodGet, "/api/heatmap.png?width=256")
	if ct := resp.Header.Get("Content-Type"); ct != "image/png" {
		t.Fatalf("Expected image/png, got %s", ct)
	}
	img, err := png.Decode(resp.Body)
	if err != nil {
		t.Fatalf("Expected a PNG, got %v", err)
	}
	if img.Bounds().Dx() != 256 {
		t.Errorf("Expected width 256, got %d", img.Bounds().Dx())
	}

	if resp := f.do(t, http.MethodGet, "/api/heatmap.png?width=abc"); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 for bad width, got %d", resp.StatusCode)
	}
}

func TestHeatmapStopsCapture(t *testing.T) {
	f := newFixture(t, "")
	f.do(t, http.MethodPost, "/api/session/start")
	f.capture.move(10, 10)

	if resp := f.do(t, http.MethodGet, "/api/heatmap"); resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	if f.svc.Capturing() {
		t.Error("Expected visualization to end the session")
	}
}

func TestHotspotsAndCSV(t *testing.T) {
	f := newFixture(t, "")
	f.record(t, [2]int{100, 100}, [2]int{100, 100}, [2]int{900, 1500})

	var spots []struct {
		Count int `json:"count"`
	}
	if err := json.NewDecoder(f.do(t, http.MethodGet, "/api/hotspots?n=1").Body).Decode(&spots); err != nil {
		t.Fatal(err)
	}
	if len(spots) != 1 || spots[0].Count != 2 {
		t.Errorf("Expected top hotspot with 2 samples, got %+v", spots)
	}
	if resp := f.do(t, http.MethodGet, "/api/hotspots?n=0"); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 for n=0, got %d", resp.StatusCode)
	}

	rows, err := csv.NewReader(f.do(t, http.MethodGet, "/api/export.csv").Body).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 4 || strings.Join(rows[0], ",") != "x,y,timestamp,session" {
		t.Errorf("Unexpected CSV %v", rows)
	}
	if rows[3][0] != "900" || rows[3][1] != "1500" {
		t.Errorf("Expected last row at (900,1500), got %v", rows[3])
	}
}

func TestTimeline(t *testing.T) {
	f := newFixture(t, "")
	if resp := f.do(t, http.MethodGet, "/api/timeline.png"); resp.StatusCode != http.StatusConflict {
		t.Errorf("Expected 409 for empty store, got %d", resp.StatusCode)
	}

	f.record(t, [2]int{1, 1}, [2]int{2, 2})
	resp := f.do(t, http.MethodGet, "/api/timeline.png?buckets=5")
	var buf bytes.Buffer
	buf.ReadFrom(resp.Body)
	if _, err := png.Decode(&buf); err != nil {
		t.Errorf("Expected a PNG timeline, got %v", err)
	}
}

func TestClearRequiresConfirm(t *testing.T) {
	f := newFixture(t, "")
	f.record(t, [2]int{1, 1})

	if resp := f.do(t, http.MethodPost, "/api/clear"); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 without confirm, got %d", resp.StatusCode)
	}
	if f.svc.Store().Len() != 1 {
		t.Fatal("Expected data to survive an unconfirmed clear")
	}

	if resp := f.do(t, http.MethodPost, "/api/clear?confirm=true"); resp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200 with confirm, got %d", resp.StatusCode)
	}
	if f.svc.Store().Len() != 0 {
		t.Error("Expected empty store after confirmed clear")
	}
}

func readMessage(t *testing.T, conn *websocket.Conn) protocol.Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var msg protocol.Message
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("Failed to read message: %v", err)
	}
	return msg
}

func payloadOf(t *testing.T, msg protocol.Message, v interface{}) {
	t.Helper()
	data, _ := json.Marshal(msg.Payload)
	if err := json.Unmarshal(data, v); err != nil {
		t.Fatalf("Bad payload: %v", err)
	}
}

func waitForClients(t *testing.T, m *WSManager, n int) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for m.clientCount() != n {
		if time.Now().After(deadline) {
			t.Fatalf("Expected %d registered clients, got %d", n, m.clientCount())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestWebSocketStateBroadcast(t *testing.T) {
	f := newFixture(t, "")

	url := "ws" + strings.TrimPrefix(f.http.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()

	greeting := readMessage(t, conn)
	var state protocol.StatePayload
	payloadOf(t, greeting, &state)
	if greeting.Type != protocol.TypeState || state.State != string(session.StateIdle) {
		t.Fatalf("Expected idle greeting, got %+v", greeting)
	}
	waitForClients(t, f.api.wsMgr, 1)

	f.do(t, http.MethodPost, "/api/session/start")
	msg := readMessage(t, conn)
	payloadOf(t, msg, &state)
	if msg.Type != protocol.TypeState || state.State != string(session.StateCapturing) || state.SessionID == "" {
		t.Errorf("Expected capturing state, got %+v", msg)
	}
}

func TestWebSocketCommands(t *testing.T) {
	f := newFixture(t, "")

	url := "ws" + strings.TrimPrefix(f.http.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()
	readMessage(t, conn)
	waitForClients(t, f.api.wsMgr, 1)

	cmd := protocol.Message{Type: protocol.TypeCommand, Payload: protocol.CommandPayload{Action: protocol.ActionStart}}
	if err := conn.WriteJSON(cmd); err != nil {
		t.Fatal(err)
	}

	var state protocol.StatePayload
	for {
		msg := readMessage(t, conn)
		if msg.Type != protocol.TypeState {
			continue
		}
		payloadOf(t, msg, &state)
		if state.State == string(session.StateCapturing) {
			break
		}
	}
	if !f.svc.Capturing() {
		t.Error("Expected capture started by command")
	}

	if err := conn.WriteJSON(protocol.Message{Type: protocol.TypeStatusRequest}); err != nil {
		t.Fatal(err)
	}
	for {
		msg := readMessage(t, conn)
		if msg.Type == protocol.TypeState {
			payloadOf(t, msg, &state)
			break
		}
	}
	if state.State != string(session.StateCapturing) {
		t.Errorf("Expected status reply capturing, got %s", state.State)
	}
}

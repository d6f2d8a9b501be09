package server

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ayusman/sitstand/internal/scoring"
	"github.com/ayusman/sitstand/internal/session"
	"github.com/ayusman/sitstand/internal/store"
)

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestAPI_StoredSessions(t *testing.T) {
	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	defer s.Close()

	s.Sessions().Create(&store.Session{ID: "s1"})

	ts := httptest.NewServer(New(Config{Store: s}))
	defer ts.Close()

	resp, err := ts.Client().Get(ts.URL + "/api/sessions/s1")
	if err != nil {
		t.Fatalf("GET error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("GET /api/sessions/s1 status = %d", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/api/sessions/s1", nil)
	resp, _ = ts.Client().Do(req)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("DELETE status = %d, want %d", resp.StatusCode, http.StatusNoContent)
	}
}

func TestLive_BroadcastsFramesAndEvents(t *testing.T) {
	srv := New(Config{})
	ts := httptest.NewServer(srv)
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/api/live", nil)
	if err != nil {
		t.Fatalf("dial error = %v", err)
	}
	defer conn.Close()

	waitFor(t, "websocket client", func() bool { return srv.Live().ClientCount() == 1 })

	srv.Live().BroadcastFrame(session.FrameResult{SessionID: "s1", Reps: 2, Phase: "seated"})
	srv.Live().BroadcastEvent(session.Event{Type: session.EventRep, Rep: &scoring.Record{Class: scoring.Full}})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var frame Message
	if err := conn.ReadJSON(&frame); err != nil {
		t.Fatalf("read frame: %v", err)
	}
	if frame.Kind != "frame" || frame.Frame == nil || frame.Frame.Reps != 2 {
		t.Errorf("frame message = %+v", frame)
	}

	var event Message
	if err := conn.ReadJSON(&event); err != nil {
		t.Fatalf("read event: %v", err)
	}
	if event.Kind != "event" || event.Event == nil || event.Event.Type != session.EventRep {
		t.Errorf("event message = %+v", event)
	}

	conn.Close()
	waitFor(t, "client removal", func() bool { return srv.Live().ClientCount() == 0 })
}

func TestStream_ServesPublishedFrames(t *testing.T) {
	srv := New(Config{})
	ts := httptest.NewServer(srv)
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/stream", nil)
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("GET /api/stream error = %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "multipart/x-mixed-replace") {
		t.Errorf("content type = %q", ct)
	}

	waitFor(t, "stream client", func() bool { return srv.Stream().ClientCount() == 1 })
	srv.Stream().publish([]byte("jpegbytes"))

	reader := bufio.NewReader(resp.Body)
	var lines []string
	for len(lines) < 5 {
		line, err := reader.ReadString('\n')
		if err != nil {
			t.Fatalf("read stream: %v", err)
		}
		lines = append(lines, strings.TrimRight(line, "\r\n"))
	}

	want := []string{"--frame", "Content-Type: image/jpeg", "Content-Length: 9", "", "jpegbytes"}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, lines[i], want[i])
		}
	}
}

func TestStream_PushWithoutClientsIsNoop(t *testing.T) {
	h := NewStreamHandler()
	h.Push(nil)
	if h.jpeg != nil {
		t.Error("nothing should be encoded without clients")
	}
}

func TestMessage_JSON(t *testing.T) {
	data, _ := json.Marshal(Message{Kind: "event", Event: &session.Event{Type: session.EventCue, Cue: session.CueStall}})
	if !strings.Contains(string(data), `"cue":"stall"`) || strings.Contains(string(data), `"frame"`) {
		t.Errorf("message json = %s", data)
	}
}

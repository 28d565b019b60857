package gateway

import (
	"context"
	"image"
	"log/slog"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"strzcam.com/recognizer/hub"
	"strzcam.com/recognizer/identity"
	"strzcam.com/recognizer/storage"
	"strzcam.com/recognizer/vision"
)

// stubDetector returns the same detections for every frame.
type stubDetector struct {
	detections []vision.Detection
	err        error
}

func (d *stubDetector) Detect(ctx context.Context, img image.Image) ([]vision.Detection, error) {
	if d.err != nil {
		return nil, d.err
	}
	return d.detections, nil
}

func testEmbedding(first float64) []float64 {
	v := make([]float64, 128)
	v[0] = first
	return v
}

func testFrame(t *testing.T) []byte {
	t.Helper()
	payload, err := vision.Encode(image.NewRGBA(image.Rect(0, 0, 64, 64)))
	if err != nil {
		t.Fatalf("encode test frame: %v", err)
	}
	return payload
}

type fixture struct {
	server *httptest.Server
	gw     *Server
	frames *hub.FrameHub
	events *hub.EventBus
	engine *identity.Engine
}

func newFixture(t *testing.T, detector vision.Detector) *fixture {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.OpenJSON(filepath.Join(dir, "people.json"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	crops, err := storage.NewCropStore(filepath.Join(dir, "faces"))
	if err != nil {
		t.Fatalf("crop store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	frames := hub.NewFrameHub()
	events := hub.NewEventBus()
	engine := identity.NewEngine(store, crops, slog.Default())
	srv := NewServer("", engine, detector, frames, events, slog.Default())

	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(ts.Close)
	return &fixture{server: ts, gw: srv, frames: frames, events: events, engine: engine}
}

func (f *fixture) dial(t *testing.T, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + path
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", path, err)
	}
	t.Cleanup(func() { conn.Close() })
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	return conn
}

func readAck(t *testing.T, conn *websocket.Conn) string {
	t.Helper()
	msgType, ack, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read ack: %v", err)
	}
	if msgType != websocket.TextMessage {
		t.Fatalf("expected text ack, got type %d", msgType)
	}
	return string(ack)
}

func TestIngestEnrollsThenRecognizes(t *testing.T) {
	detector := &stubDetector{detections: []vision.Detection{
		{Box: image.Rect(8, 8, 40, 40), Embedding: testEmbedding(0.9)},
	}}
	f := newFixture(t, detector)
	conn := f.dial(t, "/ws/video-stream?user=u1")

	if err := conn.WriteMessage(websocket.BinaryMessage, testFrame(t)); err != nil {
		t.Fatalf("send frame: %v", err)
	}
	first := readAck(t, conn)
	if first == noPersonAck || first == "" {
		t.Fatalf("expected an identity ack for a new face, got %q", first)
	}

	// Same face again: recognized as the person just enrolled.
	if err := conn.WriteMessage(websocket.BinaryMessage, testFrame(t)); err != nil {
		t.Fatalf("send frame: %v", err)
	}
	if second := readAck(t, conn); second != first {
		t.Errorf("expected ack %q again, got %q", first, second)
	}

	// The annotated frame reached the hub and is a decodable image.
	frame := f.frames.Latest()
	if frame == nil {
		t.Fatal("no frame published to the hub")
	}
	if _, err := vision.Decode(frame); err != nil {
		t.Errorf("published frame does not decode: %v", err)
	}
}

func TestIngestDropsUndecodablePayload(t *testing.T) {
	detector := &stubDetector{}
	f := newFixture(t, detector)
	conn := f.dial(t, "/ws/video-stream?user=u1")

	// Garbage gets no ack; the next valid frame still does.
	if err := conn.WriteMessage(websocket.BinaryMessage, []byte("not an image")); err != nil {
		t.Fatalf("send garbage: %v", err)
	}
	if err := conn.WriteMessage(websocket.BinaryMessage, testFrame(t)); err != nil {
		t.Fatalf("send frame: %v", err)
	}
	if ack := readAck(t, conn); ack != noPersonAck {
		t.Errorf("expected %q, got %q", noPersonAck, ack)
	}
	if f.frames.Published() != 1 {
		t.Errorf("expected 1 published frame, got %d", f.frames.Published())
	}
}

func TestIngestDetectorFailureDegrades(t *testing.T) {
	detector := &stubDetector{err: vision.ErrUnavailable}
	f := newFixture(t, detector)
	conn := f.dial(t, "/ws/video-stream?user=u1")

	if err := conn.WriteMessage(websocket.BinaryMessage, testFrame(t)); err != nil {
		t.Fatalf("send frame: %v", err)
	}
	if ack := readAck(t, conn); ack != noPersonAck {
		t.Errorf("expected %q when the detector is down, got %q", noPersonAck, ack)
	}
	if f.frames.Latest() == nil {
		t.Error("frame should still be broadcast with zero detections")
	}
}

func TestIngestWithoutUserNeverPersists(t *testing.T) {
	detector := &stubDetector{detections: []vision.Detection{
		{Box: image.Rect(0, 0, 16, 16), Embedding: testEmbedding(0.9)},
	}}
	f := newFixture(t, detector)
	conn := f.dial(t, "/ws/video-stream")

	if err := conn.WriteMessage(websocket.BinaryMessage, testFrame(t)); err != nil {
		t.Fatalf("send frame: %v", err)
	}
	if ack := readAck(t, conn); ack != noPersonAck {
		t.Errorf("expected %q in logged-out state, got %q", noPersonAck, ack)
	}
}

func TestBestIdentityLowestDistanceWins(t *testing.T) {
	detector := &stubDetector{}
	f := newFixture(t, detector)
	ctx := context.Background()

	// Enroll two people, then show both faces in one frame. The closer
	// strong match must win the frame.
	if err := f.engine.SetActiveOwner(ctx, "u1"); err != nil {
		t.Fatalf("set owner: %v", err)
	}
	crop := image.NewRGBA(image.Rect(0, 0, 8, 8))
	personA, err := f.engine.Enroll(ctx, crop, testEmbedding(0))
	if err != nil {
		t.Fatalf("enroll a: %v", err)
	}
	personB, err := f.engine.Enroll(ctx, crop, testEmbedding(10))
	if err != nil {
		t.Fatalf("enroll b: %v", err)
	}

	detector.detections = []vision.Detection{
		// Strong on A at distance 0.50.
		{Box: image.Rect(0, 0, 16, 16), Embedding: testEmbedding(0.50)},
		// Strong on B at distance 0.30.
		{Box: image.Rect(20, 0, 36, 16), Embedding: testEmbedding(9.70)},
	}

	encoded, personID, err := f.gw.processFrame(ctx, testFrame(t))
	if err != nil {
		t.Fatalf("process frame: %v", err)
	}
	if encoded == nil {
		t.Fatal("no annotated frame produced")
	}
	if personID != personB.ID {
		t.Errorf("expected %s (distance 0.30) to win over %s (0.50), got %q",
			personB.ID, personA.ID, personID)
	}
}

func TestLiveViewerReceivesFrames(t *testing.T) {
	detector := &stubDetector{}
	f := newFixture(t, detector)

	viewer := f.dial(t, "/ws/live")
	producer := f.dial(t, "/ws/video-stream?user=u1")
	if err := producer.WriteMessage(websocket.BinaryMessage, testFrame(t)); err != nil {
		t.Fatalf("send frame: %v", err)
	}
	readAck(t, producer)

	msgType, frame, err := viewer.ReadMessage()
	if err != nil {
		t.Fatalf("viewer read: %v", err)
	}
	if msgType != websocket.BinaryMessage {
		t.Fatalf("expected binary frame, got type %d", msgType)
	}
	if _, err := vision.Decode(frame); err != nil {
		t.Errorf("viewer frame does not decode: %v", err)
	}
}

func TestRecognitionFeed(t *testing.T) {
	detector := &stubDetector{detections: []vision.Detection{
		{Box: image.Rect(0, 0, 16, 16), Embedding: testEmbedding(0.9)},
	}}
	f := newFixture(t, detector)

	listener := f.dial(t, "/ws/recognitions")
	// Subscription races the upgrade; give the handler a moment.
	waitFor(t, func() bool { return f.events.Listeners() == 1 })

	producer := f.dial(t, "/ws/video-stream?user=u1")
	if err := producer.WriteMessage(websocket.BinaryMessage, testFrame(t)); err != nil {
		t.Fatalf("send frame: %v", err)
	}
	ack := readAck(t, producer)

	var payload struct {
		IdentityID string `json:"identityId"`
	}
	if err := listener.ReadJSON(&payload); err != nil {
		t.Fatalf("listener read: %v", err)
	}
	if payload.IdentityID != ack {
		t.Errorf("event identity %q does not match ack %q", payload.IdentityID, ack)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition never became true")
}

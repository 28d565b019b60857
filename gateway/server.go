// Package gateway owns the network edge: producers stream frames in over a
// websocket, viewers take annotated frames and recognition events out.
package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"strzcam.com/recognizer/hub"
	"strzcam.com/recognizer/identity"
	"strzcam.com/recognizer/vision"
)

// consumerInterval is the cadence at which viewer connections poll the
// frame hub. Consumers pull; producers never wait for them.
const consumerInterval = 30 * time.Millisecond

// noPersonAck is sent to the producer when a frame resolved no identity.
const noPersonAck = "no_person"

type Server struct {
	addr     string
	engine   *identity.Engine
	detector vision.Detector
	frames   *hub.FrameHub
	events   *hub.EventBus
	upgrader websocket.Upgrader
	log      *slog.Logger
}

func NewServer(addr string, engine *identity.Engine, detector vision.Detector, frames *hub.FrameHub, events *hub.EventBus, log *slog.Logger) *Server {
	return &Server{
		addr:     addr,
		engine:   engine,
		detector: detector,
		frames:   frames,
		events:   events,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1 << 20,
			WriteBufferSize: 1 << 20,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		log: log.With("component", "gateway"),
	}
}

func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws/video-stream", s.handleVideoStream)
	mux.HandleFunc("/ws/live", s.handleLive)
	mux.HandleFunc("/ws/recognitions", s.handleRecognitions)
	mux.HandleFunc("/stream", s.serveStream)
	mux.HandleFunc("/", s.serveIndex)
	return mux
}

// Start runs the HTTP server until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{Addr: s.addr, Handler: s.Routes()}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.log.Info("listening", "addr", s.addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("gateway listen: %w", err)
	}
	return nil
}

func (s *Server) setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
}

func (s *Server) serveIndex(w http.ResponseWriter, r *http.Request) {
	html := `
<!DOCTYPE html>
<html>
<head>
    <title>Recognizer</title>
</head>
<body>
    <h1>Live Recognition Stream</h1>
	<a href="/stream">Stream</a>
</body>
</html>`
	w.Header().Set("Content-Type", "text/html")
	w.Write([]byte(html))
}

package gateway

import (
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"time"

	"github.com/gorilla/websocket"

	"strzcam.com/recognizer/hub"
)

// handleLive pushes the latest annotated frame to one viewer on a fixed
// cadence. Viewers never see an error payload, only frames or silence.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("viewer upgrade failed", "error", err)
		return
	}
	defer conn.Close()
	s.log.Info("viewer connected", "remote", conn.RemoteAddr())

	// The read pump only exists to notice the peer going away.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(consumerInterval)
	defer ticker.Stop()

	var lastSent uint64
	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case <-ticker.C:
			published := s.frames.Published()
			if published == lastSent {
				continue
			}
			frame := s.frames.Latest()
			if frame == nil {
				continue
			}
			if err := conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
				s.log.Info("viewer disconnected", "error", err)
				return
			}
			lastSent = published
		}
	}
}

// handleRecognitions registers one listener on the recognition event bus
// and forwards every event as a small JSON payload. A failed write
// unsubscribes the listener through the bus itself.
func (s *Server) handleRecognitions(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("listener upgrade failed", "error", err)
		return
	}
	defer conn.Close()
	s.log.Info("recognition listener connected", "remote", conn.RemoteAddr())

	handle := s.events.Subscribe(func(ev hub.Event) error {
		return conn.WriteJSON(ev)
	})
	defer s.events.Unsubscribe(handle)

	// Hold the connection open; the peer sends nothing but keepalives.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// serveStream is the MJPEG fallback viewer: the same latest-wins poll as
// the websocket path, wrapped as a multipart/x-mixed-replace response.
func (s *Server) serveStream(w http.ResponseWriter, r *http.Request) {
	s.setCORSHeaders(w)
	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "close")

	mw := multipart.NewWriter(w)
	mw.SetBoundary("frame")

	ticker := time.NewTicker(consumerInterval)
	defer ticker.Stop()

	var lastSent uint64
	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			published := s.frames.Published()
			if published == lastSent {
				continue
			}
			frame := s.frames.Latest()
			if frame == nil {
				continue
			}
			if err := writeJPEGPart(mw, frame); err != nil {
				s.log.Info("stream viewer disconnected", "error", err)
				return
			}
			if flusher, ok := w.(http.Flusher); ok {
				flusher.Flush()
			}
			lastSent = published
		}
	}
}

func writeJPEGPart(mw *multipart.Writer, frame []byte) error {
	header := textproto.MIMEHeader{}
	header.Set("Content-Type", "image/jpeg")
	header.Set("Content-Length", fmt.Sprintf("%d", len(frame)))

	part, err := mw.CreatePart(header)
	if err != nil {
		return err
	}
	_, err = part.Write(frame)
	return err
}

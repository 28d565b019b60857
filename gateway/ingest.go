package gateway

import (
	"context"
	"errors"
	"net/http"

	"github.com/gorilla/websocket"

	"strzcam.com/recognizer/hub"
)

// IngestLocal runs one frame payload from a local producer (the
// shared-memory capture source) through the same pipeline as a websocket
// producer and returns the resolved identity, if any. Undecodable payloads
// are dropped silently, like on the wire.
func (s *Server) IngestLocal(ctx context.Context, payload []byte) (string, error) {
	encoded, personID, err := s.processFrame(ctx, payload)
	if err != nil {
		if errors.Is(err, errUndecodable) {
			return "", nil
		}
		return "", err
	}
	s.frames.Publish(encoded)
	if personID != "" {
		s.events.Publish(hub.Event{PersonID: personID, OwnerID: s.engine.ActiveOwner()})
	}
	return personID, nil
}

// handleVideoStream drives one producer connection: binary frame payloads
// in, one text ack per processed frame out. The session's user comes from
// the resolved `user` query parameter; authentication itself lives
// upstream of this endpoint.
func (s *Server) handleVideoStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("producer upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ctx := r.Context()
	owner := r.URL.Query().Get("user")
	if err := s.engine.SetActiveOwner(ctx, owner); err != nil {
		s.log.Error("owner index rebuild failed", "owner", owner, "error", err)
		return
	}
	s.log.Info("producer connected", "owner", owner, "remote", conn.RemoteAddr())

	// The server shutting down must release the read below.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	for {
		msgType, payload, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Info("producer disconnected", "error", err)
			}
			return
		}
		if msgType != websocket.BinaryMessage {
			continue
		}

		encoded, personID, err := s.processFrame(ctx, payload)
		if err != nil {
			if errors.Is(err, errUndecodable) {
				// Bad payload: drop it, keep the connection, no ack.
				s.log.Debug("dropped undecodable frame", "bytes", len(payload))
				continue
			}
			s.log.Warn("frame processing failed", "error", err)
			continue
		}

		s.frames.Publish(encoded)
		ack := noPersonAck
		if personID != "" {
			s.events.Publish(hub.Event{PersonID: personID, OwnerID: owner})
			ack = personID
		}
		if err := conn.WriteMessage(websocket.TextMessage, []byte(ack)); err != nil {
			s.log.Info("producer ack failed", "error", err)
			return
		}
	}
}

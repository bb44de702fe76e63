package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/terra-clan/grade-compass/internal/compass"
	"github.com/terra-clan/grade-compass/internal/selection"
)

const (
	liveReadLimit    = 1024
	liveWriteTimeout = 10 * time.Second
	liveIdleTimeout  = 30 * time.Minute
)

// Same-origin check is left to the upgrader's default
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 8192,
}

// LiveMessage is exchanged over /live.
// Clients send {"type":"toggle","id":"G8"}; the server answers with "view" or "error".
type LiveMessage struct {
	Type      string   `json:"type"`
	ID        string   `json:"id,omitempty"`
	Selection []string `json:"selection,omitempty"`
	HTML      string   `json:"html,omitempty"`
	Error     string   `json:"error,omitempty"`
}

// handleLive runs one interactive session per connection.
// The read loop is the session's only writer.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	p := PrincipalFromContext(r.Context())

	session, err := compass.NewSession(s.catalog, p, s.sink, parseSelection(r.URL.Query()))
	if err != nil {
		http.Error(w, "unknown grade level", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("failed to upgrade to websocket", "error", err)
		return
	}
	defer conn.Close()

	conn.SetReadLimit(liveReadLimit)
	slog.Info("live session connected", "user", p.MaskedEmail(), "selection", session.Selection())

	for {
		conn.SetReadDeadline(time.Now().Add(liveIdleTimeout))
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Debug("websocket read error", "error", err)
			}
			break
		}

		var msg LiveMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			if s.sendLiveError(conn, "invalid message format") != nil {
				break
			}
			continue
		}

		if msg.Type != "toggle" {
			if s.sendLiveError(conn, "unsupported message type") != nil {
				break
			}
			continue
		}

		if err := s.liveToggle(conn, session, msg.ID); err != nil {
			break
		}
	}

	slog.Info("live session disconnected", "user", p.MaskedEmail())
}

// liveToggle applies one toggle; a returned error means the connection is gone
func (s *Server) liveToggle(conn *websocket.Conn, session *compass.Session, id string) error {
	if _, err := session.Toggle(id); err != nil {
		if errors.Is(err, selection.ErrInvalidArgument) {
			return s.sendLiveError(conn, "unknown grade level")
		}
		slog.Error("failed to toggle grade", "error", err, "grade", id)
		return s.sendLiveError(conn, "failed to update selection")
	}

	html, err := s.pages.fragment(pageCompass, compassBody, s.compassView(session))
	if err != nil {
		slog.Error("failed to render live view", "error", err)
		return s.sendLiveError(conn, "failed to render view")
	}

	return s.sendLiveMessage(conn, LiveMessage{
		Type:      "view",
		Selection: session.Selection(),
		HTML:      html,
	})
}

func (s *Server) sendLiveMessage(conn *websocket.Conn, msg LiveMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("failed to marshal live message", "error", err)
		return err
	}
	conn.SetWriteDeadline(time.Now().Add(liveWriteTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		slog.Debug("failed to send live message", "error", err)
		return err
	}
	return nil
}

func (s *Server) sendLiveError(conn *websocket.Conn, message string) error {
	return s.sendLiveMessage(conn, LiveMessage{
		Type:  "error",
		Error: message,
	})
}

package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/gpbible/companion/internal/protocol"
	"github.com/gpbible/companion/internal/session"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsReadTimeout  = 120 * time.Second
	wsReadLimit    = 1 << 20
)

func (s *Server) handleChatWS(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimSpace(r.URL.Query().Get("session_id"))
	if sessionID == "" {
		respondError(w, http.StatusBadRequest, "missing_session_id", "query parameter session_id is required")
		return
	}
	if s.engine == nil {
		respondError(w, http.StatusNotImplemented, "unavailable", "chat engine not configured")
		return
	}

	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		respondError(w, http.StatusNotFound, "session_not_found", err.Error())
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	if s.metrics != nil {
		s.metrics.SessionEvents.WithLabelValues("ws_connected").Inc()
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	outbound := make(chan any, 64)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-outbound:
				if !ok {
					return
				}
				_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
				if err := conn.WriteJSON(msg); err != nil {
					cancel()
					return
				}
			}
		}
	}()

	conn.SetReadLimit(wsReadLimit)
	_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		return nil
	})

	s.runChatLoop(ctx, conn, sess, outbound)

	cancel()
	<-writerDone
	if s.metrics != nil {
		s.metrics.SessionEvents.WithLabelValues("ws_disconnected").Inc()
	}
}

// runChatLoop reads client messages and answers them in order. Turns are
// handled serially; a conversation has no use for interleaved replies.
func (s *Server) runChatLoop(ctx context.Context, conn *websocket.Conn, sess *session.Session, outbound chan<- any) {
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		if msgType != websocket.TextMessage {
			continue
		}

		parsed, err := protocol.ParseClientMessage(data)
		if err != nil {
			s.send(ctx, outbound, protocol.ErrorEvent{
				Type:      protocol.TypeErrorEvent,
				SessionID: sess.ID,
				Code:      "invalid_client_message",
				Retryable: false,
				Detail:    err.Error(),
			})
			continue
		}

		switch msg := parsed.(type) {
		case protocol.UserMessage:
			s.handleUserMessage(ctx, sess, msg, outbound)
		case protocol.ClientControl:
			switch msg.Action {
			case protocol.ActionPing:
				_ = s.sessions.Touch(sess.ID)
			case protocol.ActionEndSession:
				if _, err := s.sessions.End(sess.ID); err == nil {
					s.engine.EndSession(ctx, sess.ID)
					if s.metrics != nil {
						s.metrics.ActiveChatSessions.Set(float64(s.sessions.ActiveCount()))
						s.metrics.SessionEvents.WithLabelValues("ended").Inc()
					}
				}
				s.send(ctx, outbound, protocol.SystemEvent{
					Type:      protocol.TypeSystemEvent,
					SessionID: sess.ID,
					Code:      "session_ended",
				})
				return
			default:
				s.send(ctx, outbound, protocol.ErrorEvent{
					Type:      protocol.TypeErrorEvent,
					SessionID: sess.ID,
					Code:      "unknown_control_action",
					Retryable: false,
					Detail:    msg.Action,
				})
			}
		}
	}
}

func (s *Server) handleUserMessage(ctx context.Context, sess *session.Session, msg protocol.UserMessage, outbound chan<- any) {
	userID := strings.TrimSpace(msg.UserID)
	if userID == "" {
		userID = sess.UserID
	}

	result, err := s.engine.HandleTurn(ctx, userID, sess.ID, msg.Text)
	if err != nil {
		s.send(ctx, outbound, protocol.ErrorEvent{
			Type:      protocol.TypeErrorEvent,
			SessionID: sess.ID,
			Code:      "turn_failed",
			Retryable: true,
			Detail:    err.Error(),
		})
		return
	}
	// Session may have expired mid-turn; the reply is still delivered.
	_, _ = s.sessions.RecordInteraction(sess.ID)

	if result.FirstTime {
		s.send(ctx, outbound, protocol.SystemEvent{
			Type:      protocol.TypeSystemEvent,
			SessionID: sess.ID,
			Code:      "first_time_today",
		})
	}
	s.send(ctx, outbound, protocol.AssistantMessage{
		Type:      protocol.TypeAssistantMessage,
		SessionID: sess.ID,
		TurnID:    result.TurnID,
		Text:      result.Reply,
		Verses:    result.Verses,
		Themes:    result.Themes,
	})
}

func (s *Server) send(ctx context.Context, outbound chan<- any, msg any) {
	select {
	case <-ctx.Done():
	case outbound <- msg:
	}
}

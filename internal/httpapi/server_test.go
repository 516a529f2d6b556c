package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/gpbible/companion/internal/action"
	"github.com/gpbible/companion/internal/companion"
	"github.com/gpbible/companion/internal/config"
	"github.com/gpbible/companion/internal/longterm"
	"github.com/gpbible/companion/internal/prefs"
	"github.com/gpbible/companion/internal/protocol"
	"github.com/gpbible/companion/internal/session"
	"github.com/gpbible/companion/internal/sessionlog"
)

type fakeEngine struct {
	reply     string
	firstTime bool
	ended     []string
}

func (f *fakeEngine) HandleTurn(_ context.Context, _, _ string, _ string) (companion.TurnResult, error) {
	return companion.TurnResult{
		TurnID:    "turn-1",
		Reply:     f.reply,
		Verses:    []string{"John 3:16"},
		FirstTime: f.firstTime,
	}, nil
}

func (f *fakeEngine) EndSession(_ context.Context, sessionID string) {
	f.ended = append(f.ended, sessionID)
}

func newTestServer(t *testing.T, engine ChatEngine) (*Server, *httptest.Server) {
	t.Helper()
	cfg := config.Config{
		SessionInactivityTimeout: 2 * time.Minute,
		ActionGroupName:          "BibleCompanionMemory",
	}
	sessions := session.NewManager(cfg.SessionInactivityTimeout)

	memories, err := longterm.NewChromemStore("", longterm.NewLocalEmbedder(64))
	if err != nil {
		t.Fatalf("NewChromemStore() error = %v", err)
	}
	actions := action.NewRouter(action.NewService(prefs.NewInMemoryStore(), sessionlog.NewInMemoryStore(), memories), nil)

	srv := New(cfg, sessions, engine, actions, nil)
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return srv, ts
}

func TestCreateAndEndSession(t *testing.T) {
	engine := &fakeEngine{reply: "Peace be with you."}
	_, ts := newTestServer(t, engine)

	body, _ := json.Marshal(map[string]string{"user_id": "user-1"})
	res, err := http.Post(ts.URL+"/v1/chat/session", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("create session request error = %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d, want %d", res.StatusCode, http.StatusCreated)
	}

	var created map[string]any
	if err := json.NewDecoder(res.Body).Decode(&created); err != nil {
		t.Fatalf("decode create response: %v", err)
	}
	sessionID, _ := created["session_id"].(string)
	if sessionID == "" {
		t.Fatalf("missing session_id in create response: %+v", created)
	}

	endRes, err := http.Post(ts.URL+"/v1/chat/session/"+sessionID+"/end", "application/json", nil)
	if err != nil {
		t.Fatalf("end session request error = %v", err)
	}
	defer endRes.Body.Close()
	if endRes.StatusCode != http.StatusOK {
		t.Fatalf("end status = %d, want %d", endRes.StatusCode, http.StatusOK)
	}
	if len(engine.ended) != 1 || engine.ended[0] != sessionID {
		t.Fatalf("engine.EndSession calls = %v, want [%s]", engine.ended, sessionID)
	}
}

func TestEndUnknownSession(t *testing.T) {
	_, ts := newTestServer(t, &fakeEngine{})
	res, err := http.Post(ts.URL+"/v1/chat/session/nope/end", "application/json", nil)
	if err != nil {
		t.Fatalf("request error = %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusNotFound)
	}
}

func TestAgentActionEndpoint(t *testing.T) {
	_, ts := newTestServer(t, &fakeEngine{})

	payload := `{"actionGroup":"BibleCompanionMemory","function":"getUserPreferences","parameters":[{"name":"userId","value":"u1"}]}`
	res, err := http.Post(ts.URL+"/v1/agent/action", "application/json", strings.NewReader(payload))
	if err != nil {
		t.Fatalf("request error = %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}

	var envelope action.Response
	if err := json.NewDecoder(res.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if envelope.MessageVersion != "1.0" {
		t.Fatalf("messageVersion = %q", envelope.MessageVersion)
	}

	var result map[string]any
	if err := json.Unmarshal([]byte(envelope.Response.FunctionResponse.ResponseBody.Text.Body), &result); err != nil {
		t.Fatalf("decode result body: %v", err)
	}
	if result["firstName"] != "Friend" {
		t.Fatalf("firstName = %v, want default", result["firstName"])
	}
}

func TestAgentActionRejectsMissingFunction(t *testing.T) {
	_, ts := newTestServer(t, &fakeEngine{})
	res, err := http.Post(ts.URL+"/v1/agent/action", "application/json", strings.NewReader(`{"parameters":[]}`))
	if err != nil {
		t.Fatalf("request error = %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusBadRequest)
	}
}

func TestChatWebSocketRoundTrip(t *testing.T) {
	engine := &fakeEngine{reply: "The Lord bless you and keep you.", firstTime: true}
	srv, ts := newTestServer(t, engine)

	sess := srv.sessions.Create("u1")

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/chat/ws?session_id=" + sess.ID
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial error = %v", err)
	}
	defer conn.Close()

	send := protocol.UserMessage{
		Type:      protocol.TypeUserMessage,
		SessionID: sess.ID,
		UserID:    "u1",
		Text:      "good evening",
	}
	if err := conn.WriteJSON(send); err != nil {
		t.Fatalf("write error = %v", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var first protocol.SystemEvent
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatalf("read system event error = %v", err)
	}
	if first.Type != protocol.TypeSystemEvent || first.Code != "first_time_today" {
		t.Fatalf("first message = %+v, want first_time_today system event", first)
	}

	var reply protocol.AssistantMessage
	if err := conn.ReadJSON(&reply); err != nil {
		t.Fatalf("read assistant message error = %v", err)
	}
	if reply.Type != protocol.TypeAssistantMessage || reply.Text != engine.reply {
		t.Fatalf("assistant message = %+v", reply)
	}
	if len(reply.Verses) != 1 || reply.Verses[0] != "John 3:16" {
		t.Fatalf("verses = %v", reply.Verses)
	}

	end := protocol.ClientControl{Type: protocol.TypeClientControl, SessionID: sess.ID, Action: protocol.ActionEndSession}
	if err := conn.WriteJSON(end); err != nil {
		t.Fatalf("write control error = %v", err)
	}
	var ended protocol.SystemEvent
	if err := conn.ReadJSON(&ended); err != nil {
		t.Fatalf("read session_ended error = %v", err)
	}
	if ended.Code != "session_ended" {
		t.Fatalf("final event = %+v, want session_ended", ended)
	}
}

func TestChatWebSocketRejectsGarbage(t *testing.T) {
	_, ts := newTestServer(t, &fakeEngine{reply: "hello"})

	res, err := http.Get(ts.URL + "/v1/chat/ws")
	if err != nil {
		t.Fatalf("request error = %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("status without session_id = %d, want %d", res.StatusCode, http.StatusBadRequest)
	}
}

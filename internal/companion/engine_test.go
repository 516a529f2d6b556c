package companion

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/gpbible/companion/internal/analysis"
	"github.com/gpbible/companion/internal/llm"
	"github.com/gpbible/companion/internal/longterm"
	"github.com/gpbible/companion/internal/prefs"
	"github.com/gpbible/companion/internal/sessionlog"
)

// scriptedGenerator records what it was asked and replies from a fixed script.
type scriptedGenerator struct {
	reply      string
	err        error
	lastSystem string
	lastTurns  []llm.Turn
	calls      int
}

func (g *scriptedGenerator) Generate(_ context.Context, system string, history []llm.Turn, _ string) (string, error) {
	g.calls++
	g.lastSystem = system
	g.lastTurns = history
	if g.err != nil {
		return "", g.err
	}
	return g.reply, nil
}

func newTestEngine(t *testing.T, gen llm.Generator) (*Engine, sessionlog.Store, longterm.Store) {
	t.Helper()
	memories, err := longterm.NewChromemStore("", longterm.NewLocalEmbedder(64))
	if err != nil {
		t.Fatalf("NewChromemStore() error = %v", err)
	}
	sessions := sessionlog.NewInMemoryStore()
	return NewEngine(prefs.NewInMemoryStore(), sessions, memories, gen, nil), sessions, memories
}

func TestHandleTurnBasic(t *testing.T) {
	gen := &scriptedGenerator{reply: "Take heart in your faith. John 3:16 reminds us of God's love."}
	engine, sessions, _ := newTestEngine(t, gen)
	ctx := context.Background()

	result, err := engine.HandleTurn(ctx, "u1", "s1", "I am struggling with worry about my prayer life")
	if err != nil {
		t.Fatalf("HandleTurn() error = %v", err)
	}

	if result.Reply != gen.reply {
		t.Fatalf("Reply = %q", result.Reply)
	}
	if !result.FirstTime {
		t.Fatalf("FirstTime = false, want true on a fresh store")
	}
	if result.Sentiment != analysis.SentimentStruggling {
		t.Fatalf("Sentiment = %q, want struggling", result.Sentiment)
	}

	wantVerse := false
	for _, v := range result.Verses {
		if v == "John 3:16" {
			wantVerse = true
		}
	}
	if !wantVerse {
		t.Fatalf("Verses = %v, want John 3:16 extracted from the reply", result.Verses)
	}
	hasFaith, hasPrayer := false, false
	for _, theme := range result.Themes {
		if theme == "faith" {
			hasFaith = true
		}
		if theme == "prayer" {
			hasPrayer = true
		}
	}
	if !hasFaith || !hasPrayer {
		t.Fatalf("Themes = %v, want faith and prayer", result.Themes)
	}

	events, err := sessions.SessionEvents(ctx, "u1", "s1")
	if err != nil {
		t.Fatalf("SessionEvents() error = %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("stored events = %d, want user+assistant pair", len(events))
	}
	if events[0].Role != sessionlog.RoleUser || events[1].Role != sessionlog.RoleAssistant {
		t.Fatalf("event roles = %v, %v", events[0].Role, events[1].Role)
	}
}

func TestHandleTurnRejectsEmptyInput(t *testing.T) {
	engine, _, _ := newTestEngine(t, &scriptedGenerator{reply: "hello"})
	if _, err := engine.HandleTurn(context.Background(), "u1", "s1", "   "); err != ErrEmptyInput {
		t.Fatalf("error = %v, want ErrEmptyInput", err)
	}
}

func TestHandleTurnPromptCarriesPreferencesAndHistory(t *testing.T) {
	gen := &scriptedGenerator{reply: "Peace be with you."}
	engine, _, _ := newTestEngine(t, gen)
	ctx := context.Background()

	if _, err := engine.HandleTurn(ctx, "u1", "s1", "good evening"); err != nil {
		t.Fatalf("HandleTurn() error = %v", err)
	}
	if !strings.Contains(gen.lastSystem, "Friend") || !strings.Contains(gen.lastSystem, "NIV") {
		t.Fatalf("system prompt missing preference defaults: %q", gen.lastSystem)
	}
	if len(gen.lastTurns) != 0 {
		t.Fatalf("first turn history = %d entries, want none", len(gen.lastTurns))
	}

	if _, err := engine.HandleTurn(ctx, "u1", "s1", "tell me more"); err != nil {
		t.Fatalf("HandleTurn() error = %v", err)
	}
	if len(gen.lastTurns) != 2 {
		t.Fatalf("second turn history = %d entries, want the first exchange", len(gen.lastTurns))
	}
	if gen.lastTurns[0].Role != "user" || gen.lastTurns[1].Role != "assistant" {
		t.Fatalf("history roles = %+v", gen.lastTurns)
	}
}

func TestHandleTurnGeneratorFailureFailsTurn(t *testing.T) {
	gen := &scriptedGenerator{err: fmt.Errorf("model unavailable")}
	engine, _, _ := newTestEngine(t, gen)
	if _, err := engine.HandleTurn(context.Background(), "u1", "s1", "hello"); err == nil {
		t.Fatalf("expected error when the generator fails")
	}
}

func TestSummaryWrittenEveryTenthInteraction(t *testing.T) {
	gen := &scriptedGenerator{reply: "Hold to your faith and read Psalm 23:1 tonight."}
	engine, sessions, memories := newTestEngine(t, gen)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		input := fmt.Sprintf("turn %d, thinking about prayer and what it means for my walk today", i)
		if _, err := engine.HandleTurn(ctx, "u1", "s1", input); err != nil {
			t.Fatalf("HandleTurn(%d) error = %v", i, err)
		}
	}

	summaries, err := sessions.RecentSummaries(ctx, "u1", 5)
	if err != nil {
		t.Fatalf("RecentSummaries() error = %v", err)
	}
	if len(summaries) != 1 {
		t.Fatalf("summaries = %d, want exactly one after ten turns", len(summaries))
	}
	got := summaries[0]
	if got.SessionID != "s1" {
		t.Fatalf("summary session = %q", got.SessionID)
	}
	hasPrayer := false
	for _, theme := range got.SpiritualThemes {
		if theme == "prayer" {
			hasPrayer = true
		}
	}
	if !hasPrayer {
		t.Fatalf("SpiritualThemes = %v, want prayer", got.SpiritualThemes)
	}

	records, err := memories.Recent(ctx, "u1", 5)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("long-term records = %d, want the dual-written summary", len(records))
	}
	if !strings.Contains(records[0].Content, "Themes: ") {
		t.Fatalf("long-term content = %q, want rendered summary", records[0].Content)
	}
}

func TestEndSessionFlushesPartialSummary(t *testing.T) {
	gen := &scriptedGenerator{reply: "Grace and peace to you."}
	engine, sessions, _ := newTestEngine(t, gen)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := engine.HandleTurn(ctx, "u1", "s1", "I feel hope and gratitude after worship"); err != nil {
			t.Fatalf("HandleTurn() error = %v", err)
		}
	}

	engine.EndSession(ctx, "s1")

	summaries, err := sessions.RecentSummaries(ctx, "u1", 5)
	if err != nil {
		t.Fatalf("RecentSummaries() error = %v", err)
	}
	if len(summaries) != 1 {
		t.Fatalf("summaries = %d, want a flush on session end", len(summaries))
	}

	// Ending again is a no-op.
	engine.EndSession(ctx, "s1")
}

func TestRepeatedFlushesKeepOneLongTermRecord(t *testing.T) {
	gen := &scriptedGenerator{reply: "Keep praying through this season."}
	engine, _, memories := newTestEngine(t, gen)
	ctx := context.Background()

	// Eleven turns cross the tenth-interaction flush, then session end
	// flushes the remainder. Both writes target the same session.
	for i := 0; i < 11; i++ {
		input := fmt.Sprintf("turn %d, wrestling with doubt and looking for hope", i)
		if _, err := engine.HandleTurn(ctx, "u1", "s1", input); err != nil {
			t.Fatalf("HandleTurn(%d) error = %v", i, err)
		}
	}
	engine.EndSession(ctx, "s1")

	records, err := memories.Recent(ctx, "u1", 10)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("long-term records = %d, want one refreshed record per session", len(records))
	}
	if records[0].ID != sessionlog.SummaryID("u1", "s1") {
		t.Fatalf("record ID = %q, want session-keyed identifier", records[0].ID)
	}
}

func TestTurnSurvivesSessionStoreFailure(t *testing.T) {
	gen := &scriptedGenerator{reply: "The Lord is near."}
	memories, err := longterm.NewChromemStore("", longterm.NewLocalEmbedder(64))
	if err != nil {
		t.Fatalf("NewChromemStore() error = %v", err)
	}
	engine := NewEngine(prefs.NewInMemoryStore(), failingSessionStore{}, memories, gen, nil)

	result, err := engine.HandleTurn(context.Background(), "u1", "s1", "hello")
	if err != nil {
		t.Fatalf("HandleTurn() error = %v, want success despite store failures", err)
	}
	if !result.FirstTime {
		t.Fatalf("FirstTime = false, want fail-open true when the store cannot answer")
	}
}

type failingSessionStore struct{}

var errDown = fmt.Errorf("store unavailable")

func (failingSessionStore) AppendEvent(context.Context, sessionlog.Event) (sessionlog.Event, error) {
	return sessionlog.Event{}, errDown
}
func (failingSessionStore) RecentSessions(context.Context, string, int) ([]sessionlog.SessionDigest, error) {
	return nil, errDown
}
func (failingSessionStore) HasTalkedToday(context.Context, string) (bool, error) {
	return false, errDown
}
func (failingSessionStore) SaveSummary(context.Context, sessionlog.SummaryRecord) (sessionlog.SummaryRecord, error) {
	return sessionlog.SummaryRecord{}, errDown
}
func (failingSessionStore) RecentSummaries(context.Context, string, int) ([]sessionlog.SummaryRecord, error) {
	return nil, errDown
}
func (failingSessionStore) SessionEventCount(context.Context, string, string) (int, error) {
	return 0, errDown
}
func (failingSessionStore) SessionEvents(context.Context, string, string) ([]sessionlog.Event, error) {
	return nil, errDown
}
func (failingSessionStore) DeleteUser(context.Context, string) (int, error) { return 0, errDown }
func (failingSessionStore) Close() error                                    { return nil }

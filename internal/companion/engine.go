// Package companion orchestrates one conversational turn end to end: it
// assembles the user's context from the memory stores, asks the language
// model for a reply, extracts spiritual metadata from the exchange and keeps
// the session's running record up to date.
package companion

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/gpbible/companion/internal/analysis"
	"github.com/gpbible/companion/internal/llm"
	"github.com/gpbible/companion/internal/longterm"
	"github.com/gpbible/companion/internal/observability"
	"github.com/gpbible/companion/internal/policy"
	"github.com/gpbible/companion/internal/prefs"
	"github.com/gpbible/companion/internal/sessionlog"
	"github.com/gpbible/companion/internal/summary"
)

const (
	recentSessionsInContext = 3
	relatedMemoriesInPrompt = 3
	historyTurnsInPrompt    = 12
)

var ErrEmptyInput = errors.New("empty user input")

// TurnResult is everything a transport needs to answer one user message.
type TurnResult struct {
	TurnID    string
	Reply     string
	Themes    []string
	Verses    []string
	Sentiment analysis.Sentiment
	FirstTime bool
}

// Engine runs turns against a fixed set of stores and one generator. Store
// failures on the context-assembly path degrade the prompt instead of
// failing the turn; only a generator failure is fatal to the turn.
type Engine struct {
	prefs     prefs.Store
	sessions  sessionlog.Store
	memories  longterm.Store
	generator llm.Generator
	metrics   *observability.Metrics

	mu     sync.Mutex
	active map[string]*sessionState
}

type sessionState struct {
	userID       string
	interactions []summary.Interaction
	summarized   int // interactions covered by the last summary write
}

func NewEngine(prefStore prefs.Store, sessionStore sessionlog.Store, memoryStore longterm.Store, generator llm.Generator, metrics *observability.Metrics) *Engine {
	return &Engine{
		prefs:     prefStore,
		sessions:  sessionStore,
		memories:  memoryStore,
		generator: generator,
		metrics:   metrics,
		active:    make(map[string]*sessionState),
	}
}

// HandleTurn runs one exchange. sessionID must be stable for the life of the
// conversation; userID partitions every store lookup.
func (e *Engine) HandleTurn(ctx context.Context, userID, sessionID, userInput string) (TurnResult, error) {
	userInput = strings.TrimSpace(userInput)
	if userInput == "" {
		return TurnResult{}, ErrEmptyInput
	}

	state := e.state(sessionID, userID)
	firstTurnOfSession := len(state.interactions) == 0

	p := e.loadPreferences(ctx, userID)
	firstTime := false
	if firstTurnOfSession {
		firstTime = e.firstTimeToday(ctx, userID)
	}

	system := e.buildSystemPrompt(ctx, userID, userInput, p, firstTime)
	history := e.sessionHistory(ctx, userID, sessionID)

	reply, err := e.generator.Generate(ctx, system, history, userInput)
	if err != nil {
		return TurnResult{}, fmt.Errorf("generate reply: %w", err)
	}

	themes := analysis.Themes(userInput, reply)
	verses := analysis.Verses(userInput + " " + reply)
	sentiment := analysis.AnalyzeSentiment(userInput)

	e.appendEvent(ctx, userID, sessionID, sessionlog.RoleUser, userInput)
	e.appendEvent(ctx, userID, sessionID, sessionlog.RoleAssistant, reply)

	count := e.record(state, summary.Interaction{
		UserInput: userInput,
		Response:  reply,
		Themes:    themes,
		Verses:    verses,
	})
	if summary.ShouldSummarize(count) {
		e.flushSummary(ctx, sessionID, state, count)
	}

	if e.metrics != nil {
		e.metrics.ChatTurns.Inc()
	}

	return TurnResult{
		TurnID:    uuid.NewString(),
		Reply:     reply,
		Themes:    themes,
		Verses:    verses,
		Sentiment: sentiment,
		FirstTime: firstTime,
	}, nil
}

// EndSession flushes a final summary for any interactions not yet covered and
// drops the session's in-memory state.
func (e *Engine) EndSession(ctx context.Context, sessionID string) {
	e.mu.Lock()
	state, ok := e.active[sessionID]
	if ok {
		delete(e.active, sessionID)
	}
	e.mu.Unlock()
	if !ok {
		return
	}

	e.mu.Lock()
	pending := len(state.interactions) > state.summarized
	count := len(state.interactions)
	e.mu.Unlock()
	if pending {
		e.flushSummary(ctx, sessionID, state, count)
	}
}

func (e *Engine) state(sessionID, userID string) *sessionState {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.active[sessionID]
	if !ok {
		s = &sessionState{userID: userID}
		e.active[sessionID] = s
	}
	return s
}

func (e *Engine) record(state *sessionState, in summary.Interaction) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	state.interactions = append(state.interactions, in)
	return len(state.interactions)
}

func (e *Engine) loadPreferences(ctx context.Context, userID string) prefs.Preferences {
	p, err := e.prefs.Get(ctx, userID)
	switch {
	case errors.Is(err, prefs.ErrNotFound):
		return prefs.Defaults(userID)
	case err != nil:
		log.Printf("turn: preferences for %s unavailable, using defaults: %v", userID, err)
		e.countStoreError("prefs", "get")
		return prefs.Defaults(userID)
	}
	return prefs.WithDefaults(p)
}

// firstTimeToday fails open: if the store cannot answer, greet as if it were
// the first conversation of the day.
func (e *Engine) firstTimeToday(ctx context.Context, userID string) bool {
	talked, err := e.sessions.HasTalkedToday(ctx, userID)
	if err != nil {
		log.Printf("turn: first-time check for %s failed, assuming first time: %v", userID, err)
		e.countStoreError("sessionlog", "has_talked_today")
		return true
	}
	return !talked
}

func (e *Engine) buildSystemPrompt(ctx context.Context, userID, userInput string, p prefs.Preferences, firstTime bool) string {
	var b strings.Builder
	b.WriteString("You are a warm, encouraging Bible companion. ")
	fmt.Fprintf(&b, "You are speaking with %s, who reads the %s translation.", p.FirstName, p.BibleVersion)
	if p.Denomination != "" {
		fmt.Fprintf(&b, " They identify as %s.", p.Denomination)
	}
	b.WriteString("\nKeep replies short, scriptural and personal. Offer a verse when it fits naturally.")

	if firstTime {
		fmt.Fprintf(&b, "\nThis is the first conversation with %s today. Open with a brief, warm greeting by name.", p.FirstName)
	}

	if digests, err := e.sessions.RecentSessions(ctx, userID, recentSessionsInContext); err != nil {
		log.Printf("turn: recent sessions for %s unavailable: %v", userID, err)
		e.countStoreError("sessionlog", "recent_sessions")
	} else if len(digests) > 0 {
		b.WriteString("\nRecent conversations:")
		for _, d := range digests {
			for _, ev := range d.Events {
				fmt.Fprintf(&b, "\n- %s: %s", strings.ToLower(string(ev.Role)), ev.Text)
			}
		}
	}

	if records, err := e.memories.Search(ctx, userID, userInput, relatedMemoriesInPrompt); err != nil {
		log.Printf("turn: memory search for %s unavailable: %v", userID, err)
		e.countStoreError("longterm", "search")
	} else if len(records) > 0 {
		b.WriteString("\nRelevant long-term memories:")
		for _, r := range records {
			fmt.Fprintf(&b, "\n- %s", r.Content)
		}
	}

	return b.String()
}

func (e *Engine) sessionHistory(ctx context.Context, userID, sessionID string) []llm.Turn {
	events, err := e.sessions.SessionEvents(ctx, userID, sessionID)
	if err != nil {
		log.Printf("turn: session history for %s unavailable: %v", userID, err)
		e.countStoreError("sessionlog", "session_events")
		return nil
	}
	if len(events) > historyTurnsInPrompt {
		events = events[len(events)-historyTurnsInPrompt:]
	}

	turns := make([]llm.Turn, 0, len(events))
	for _, ev := range events {
		role := "user"
		if ev.Role == sessionlog.RoleAssistant {
			role = "assistant"
		}
		turns = append(turns, llm.Turn{Role: role, Text: ev.Text})
	}
	return turns
}

func (e *Engine) appendEvent(ctx context.Context, userID, sessionID string, role sessionlog.Role, text string) {
	text, _ = policy.RedactPII(text)
	_, err := e.sessions.AppendEvent(ctx, sessionlog.Event{
		UserID:    userID,
		SessionID: sessionID,
		Role:      role,
		Text:      text,
	})
	if err != nil {
		// Losing one event must not lose the turn.
		log.Printf("turn: append %s event for %s failed: %v", role, userID, err)
		e.countStoreError("sessionlog", "append_event")
	}
}

// flushSummary builds the session summary from the interactions recorded so
// far and dual-writes it: a structured row in the session store and one
// free-text record in long-term memory.
func (e *Engine) flushSummary(ctx context.Context, sessionID string, state *sessionState, count int) {
	e.mu.Lock()
	interactions := make([]summary.Interaction, len(state.interactions))
	copy(interactions, state.interactions)
	userID := state.userID
	state.summarized = count
	e.mu.Unlock()

	s := summary.Build(interactions)

	_, err := e.sessions.SaveSummary(ctx, sessionlog.SummaryRecord{
		UserID:          userID,
		SessionID:       sessionID,
		KeyPoints:       s.KeyPoints,
		SpiritualThemes: s.Themes,
		VersesShared:    s.Verses,
		UserSentiment:   string(s.Sentiment),
	})
	if err != nil {
		log.Printf("summary: session store write for %s failed: %v", userID, err)
		e.countStoreError("sessionlog", "save_summary")
	}

	// A stable ID per session makes repeated flushes replace the earlier
	// long-term record instead of piling up near-duplicates.
	_, err = e.memories.SaveWithID(ctx, userID, sessionlog.SummaryID(userID, sessionID), s.Content(),
		map[string]string{"session_id": sessionID})
	if err != nil {
		log.Printf("summary: long-term write for %s failed: %v", userID, err)
		e.countStoreError("longterm", "save")
	}

	if e.metrics != nil {
		e.metrics.SummariesWritten.Inc()
	}
}

func (e *Engine) countStoreError(store, op string) {
	if e.metrics != nil {
		e.metrics.StoreErrors.WithLabelValues(store, op).Inc()
	}
}

package action

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strconv"
	"strings"

	"github.com/gpbible/companion/internal/longterm"
	"github.com/gpbible/companion/internal/policy"
	"github.com/gpbible/companion/internal/prefs"
	"github.com/gpbible/companion/internal/sessionlog"
)

// Service holds the backing stores and implements every routable action.
// Fallback policy lives here, visible at each call site: read paths degrade
// to friendly defaults, write paths report their failure explicitly.
type Service struct {
	prefs    prefs.Store
	sessions sessionlog.Store
	memories longterm.Store
}

func NewService(prefStore prefs.Store, sessionStore sessionlog.Store, memoryStore longterm.Store) *Service {
	return &Service{
		prefs:    prefStore,
		sessions: sessionStore,
		memories: memoryStore,
	}
}

func (s *Service) GetUserPreferences(ctx context.Context, params, _ map[string]string) (Result, error) {
	userID := strings.TrimSpace(params["userId"])
	if userID == "" {
		return Result{"error": "userId is required"}, nil
	}

	p, err := s.prefs.Get(ctx, userID)
	switch {
	case errors.Is(err, prefs.ErrNotFound):
		p = prefs.Defaults(userID)
	case err != nil:
		// Availability over correctness: a flaky store must not break the
		// conversation, so hand out the defaults.
		log.Printf("preferences lookup for %s failed, using defaults: %v", userID, err)
		p = prefs.Defaults(userID)
	default:
		p = prefs.WithDefaults(p)
	}

	return Result{
		"userId":       userID,
		"firstName":    p.FirstName,
		"bibleVersion": p.BibleVersion,
		"denomination": nullable(p.Denomination),
		"birthday":     nullable(p.Birthday),
		"avatarName":   nullable(p.AvatarName),
	}, nil
}

func (s *Service) SaveUserPreferences(ctx context.Context, params, body map[string]string) (Result, error) {
	userID := strings.TrimSpace(firstOf(body["userId"], params["userId"]))
	if userID == "" {
		return Result{"error": "userId is required"}, nil
	}

	update := prefs.Update{
		FirstName:    optional(body, "firstName"),
		BibleVersion: optional(body, "bibleVersion"),
		Denomination: optional(body, "denomination"),
		Birthday:     optional(body, "birthday"),
		AvatarName:   optional(body, "avatarName"),
	}

	if err := s.prefs.Save(ctx, userID, update); err != nil {
		log.Printf("save preferences for %s failed: %v", userID, err)
		return Result{"success": false, "error": err.Error()}, nil
	}
	return Result{"success": true, "userId": userID}, nil
}

func (s *Service) GetConversationMemory(ctx context.Context, params, _ map[string]string) (Result, error) {
	userID := strings.TrimSpace(params["userId"])
	if userID == "" {
		return Result{"error": "userId is required"}, nil
	}
	limit := intParam(params, "limit", sessionlog.DefaultListLimit)

	digests, err := s.sessions.RecentSessions(ctx, userID, limit)
	if err != nil {
		// Read path: an empty history reads better than an error mid-chat.
		log.Printf("recent sessions for %s failed: %v", userID, err)
		digests = nil
	}

	memories := make([]Result, 0, len(digests))
	for _, d := range digests {
		events := make([]Result, 0, len(d.Events))
		for _, e := range d.Events {
			events = append(events, Result{
				"role":      string(e.Role),
				"text":      e.Text,
				"timestamp": e.Timestamp,
			})
		}
		memories = append(memories, Result{
			"sessionId":  d.SessionID,
			"startTime":  d.StartTime,
			"eventCount": d.EventCount,
			"events":     events,
		})
	}

	return Result{
		"userId":      userID,
		"memoryCount": len(memories),
		"memories":    memories,
	}, nil
}

func (s *Service) SaveConversationEvent(ctx context.Context, params, body map[string]string) (Result, error) {
	userID := strings.TrimSpace(firstOf(body["userId"], params["userId"]))
	message := firstOf(body["message"], body["text"])
	if userID == "" || message == "" {
		return Result{"error": "userId and message are required"}, nil
	}
	message, _ = policy.RedactPII(message)

	event, err := s.sessions.AppendEvent(ctx, sessionlog.Event{
		UserID:    userID,
		SessionID: strings.TrimSpace(body["sessionId"]),
		Role:      sessionlog.NormalizeRole(body["role"]),
		Text:      message,
	})
	if err != nil {
		log.Printf("append event for %s failed: %v", userID, err)
		return Result{"success": false, "error": err.Error()}, nil
	}

	return Result{
		"success":   true,
		"eventId":   event.ID,
		"userId":    event.UserID,
		"sessionId": event.SessionID,
	}, nil
}

// SaveSessionSummary writes the summary to both the session store and the
// long-term memory store. The two writes are not transactional; each result
// is reported on its own so a caller can retry the failed half.
func (s *Service) SaveSessionSummary(ctx context.Context, params, body map[string]string) (Result, error) {
	userID := strings.TrimSpace(firstOf(body["userId"], params["userId"]))
	sessionID := strings.TrimSpace(firstOf(body["sessionId"], params["sessionId"]))
	if userID == "" || sessionID == "" {
		return Result{"error": "userId and sessionId are required"}, nil
	}

	record := sessionlog.SummaryRecord{
		UserID:              userID,
		SessionID:           sessionID,
		KeyPoints:           listField(body, "keyPoints"),
		SpiritualThemes:     listField(body, "spiritualThemes"),
		VersesShared:        listField(body, "versesShared"),
		ReflectionQuestions: listField(body, "reflectionQuestions"),
		NextSteps:           listField(body, "nextSteps"),
		UserSentiment:       strings.TrimSpace(body["userSentiment"]),
	}

	sessionResult := Result{"success": true}
	saved, err := s.sessions.SaveSummary(ctx, record)
	if err != nil {
		log.Printf("save summary for %s failed: %v", userID, err)
		sessionResult = Result{"success": false, "error": err.Error()}
	} else {
		sessionResult["id"] = saved.ID
	}

	memoryResult := Result{"success": true}
	content := summaryContent(record)
	memRecord, err := s.memories.SaveWithID(ctx, userID, sessionlog.SummaryID(userID, sessionID), content,
		map[string]string{"session_id": sessionID})
	if err != nil {
		log.Printf("save long-term memory for %s failed: %v", userID, err)
		memoryResult = Result{"success": false, "error": err.Error()}
	} else {
		memoryResult["memoryId"] = memRecord.ID
	}

	return Result{
		"sessionStore": sessionResult,
		"memoryStore":  memoryResult,
		"sessionId":    sessionID,
	}, nil
}

func (s *Service) CheckFirstTimeToday(ctx context.Context, params, _ map[string]string) (Result, error) {
	userID := strings.TrimSpace(params["userId"])
	if userID == "" {
		return Result{"isFirstTimeToday": true}, nil
	}

	talked, err := s.sessions.HasTalkedToday(ctx, userID)
	if err != nil {
		// Fail open toward the friendlier first-greeting path.
		log.Printf("first-time check for %s failed, assuming first time: %v", userID, err)
		return Result{"isFirstTimeToday": true}, nil
	}
	return Result{"isFirstTimeToday": !talked}, nil
}

func (s *Service) RetrieveMemory(ctx context.Context, params, _ map[string]string) (Result, error) {
	userID := strings.TrimSpace(params["userId"])
	if userID == "" {
		return Result{"error": "userId is required"}, nil
	}
	query := strings.TrimSpace(params["query"])
	limit := intParam(params, "limit", 5)

	var (
		records []longterm.Record
		err     error
	)
	if query != "" {
		records, err = s.memories.Search(ctx, userID, query, limit)
	} else {
		records, err = s.memories.Recent(ctx, userID, limit)
	}
	if err != nil {
		log.Printf("memory retrieval for %s failed: %v", userID, err)
		records = nil
	}

	results := make([]Result, 0, len(records))
	for _, r := range records {
		results = append(results, Result{
			"content": r.Content,
			"score":   r.Score,
		})
	}

	return Result{
		"userId":      userID,
		"query":       query,
		"resultCount": len(results),
		"results":     results,
	}, nil
}

func (s *Service) GetUserMemorySummary(ctx context.Context, params, _ map[string]string) (Result, error) {
	userID := strings.TrimSpace(params["userId"])
	if userID == "" {
		return Result{"error": "userId is required"}, nil
	}

	records, err := s.memories.Recent(ctx, userID, 10)
	if err != nil {
		log.Printf("memory summary for %s failed: %v", userID, err)
		records = nil
	}

	out := make([]Result, 0, len(records))
	for _, r := range records {
		content := r.Content
		if runes := []rune(content); len(runes) > 200 {
			content = string(runes[:200])
		}
		out = append(out, Result{
			"content":   content,
			"timestamp": r.CreatedAt,
		})
	}

	return Result{
		"userId":      userID,
		"recordCount": len(out),
		"records":     out,
	}, nil
}

// DeleteUserMemory erases the user's partition everywhere: events, summaries,
// long-term records and preferences.
func (s *Service) DeleteUserMemory(ctx context.Context, params, _ map[string]string) (Result, error) {
	userID := strings.TrimSpace(params["userId"])
	if userID == "" {
		return Result{"error": "userId is required"}, nil
	}

	deleted, err := s.sessions.DeleteUser(ctx, userID)
	if err != nil {
		return Result{"success": false, "error": err.Error()}, nil
	}
	if err := s.memories.DeleteUser(ctx, userID); err != nil {
		return Result{"success": false, "error": err.Error(), "deletedEvents": deleted}, nil
	}
	if err := s.prefs.Delete(ctx, userID); err != nil {
		return Result{"success": false, "error": err.Error(), "deletedEvents": deleted}, nil
	}

	return Result{
		"success":       true,
		"userId":        userID,
		"deletedEvents": deleted,
	}, nil
}

// summaryContent renders the stored summary fields into the single free-text
// record kept in long-term memory.
func summaryContent(record sessionlog.SummaryRecord) string {
	var parts []string
	if len(record.KeyPoints) > 0 {
		parts = append(parts, "Key Points: "+strings.Join(record.KeyPoints, ", "))
	}
	if len(record.SpiritualThemes) > 0 {
		parts = append(parts, "Spiritual Themes: "+strings.Join(record.SpiritualThemes, ", "))
	}
	if len(record.VersesShared) > 0 {
		parts = append(parts, "Bible Verses Discussed: "+strings.Join(record.VersesShared, ", "))
	}
	if record.UserSentiment != "" {
		parts = append(parts, "User's Spiritual State: "+record.UserSentiment)
	}
	if len(record.ReflectionQuestions) > 0 {
		parts = append(parts, "Reflection Questions: "+strings.Join(record.ReflectionQuestions, ", "))
	}
	if len(record.NextSteps) > 0 {
		parts = append(parts, "Spiritual Next Steps: "+strings.Join(record.NextSteps, ", "))
	}
	return strings.Join(parts, " | ")
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func optional(body map[string]string, key string) *string {
	v, ok := body[key]
	if !ok {
		return nil
	}
	return &v
}

func firstOf(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func intParam(params map[string]string, key string, fallback int) int {
	raw := strings.TrimSpace(params[key])
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

// listField parses a body value that may arrive either as a JSON array or as
// a comma-separated string.
func listField(body map[string]string, key string) []string {
	raw := strings.TrimSpace(body[key])
	if raw == "" {
		return nil
	}

	if strings.HasPrefix(raw, "[") {
		var items []string
		if err := json.Unmarshal([]byte(raw), &items); err == nil {
			return items
		}
	}

	var items []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			items = append(items, part)
		}
	}
	return items
}

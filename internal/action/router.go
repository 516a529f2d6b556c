package action

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/gpbible/companion/internal/observability"
)

// Action names one routable function.
type Action string

const (
	ActionGetUserPreferences    Action = "getUserPreferences"
	ActionSaveUserPreferences   Action = "saveUserPreferences"
	ActionGetConversationMemory Action = "getConversationMemory"
	ActionSaveConversationEvent Action = "saveConversationEvent"
	ActionSaveSessionSummary    Action = "saveSessionSummary"
	ActionCheckFirstTimeToday   Action = "checkFirstTimeToday"
	ActionRetrieveMemory        Action = "retrieveMemory"
	ActionSearchMemories        Action = "searchMemories"
	ActionGetUserMemorySummary  Action = "getUserMemorySummary"
	ActionDeleteUserMemory      Action = "deleteUserMemory"
)

// handlerFunc runs one action. A returned error is the handler's failure; the
// router converts it into an error result, never an escaped exception.
type handlerFunc func(ctx context.Context, params, body map[string]string) (Result, error)

// Router dispatches inbound requests to exactly one handler and wraps every
// outcome, including failures, in a well-formed response envelope.
type Router struct {
	handlers map[Action]handlerFunc
	metrics  *observability.Metrics
}

func NewRouter(svc *Service, metrics *observability.Metrics) *Router {
	return &Router{
		metrics: metrics,
		handlers: map[Action]handlerFunc{
			ActionGetUserPreferences:    svc.GetUserPreferences,
			ActionSaveUserPreferences:   svc.SaveUserPreferences,
			ActionGetConversationMemory: svc.GetConversationMemory,
			ActionSaveConversationEvent: svc.SaveConversationEvent,
			ActionSaveSessionSummary:    svc.SaveSessionSummary,
			ActionCheckFirstTimeToday:   svc.CheckFirstTimeToday,
			ActionRetrieveMemory:        svc.RetrieveMemory,
			ActionSearchMemories:        svc.RetrieveMemory,
			ActionGetUserMemorySummary:  svc.GetUserMemorySummary,
			ActionDeleteUserMemory:      svc.DeleteUserMemory,
		},
	}
}

// Dispatch routes one request. It always returns a response envelope echoing
// the request's actionGroup and function.
func (r *Router) Dispatch(ctx context.Context, req Request) Response {
	started := time.Now()
	result := r.run(ctx, req)

	body, err := encodeResult(result)
	if err != nil {
		log.Printf("action %s: result encoding failed: %v", req.Function, err)
		body = fmt.Sprintf(`{"error":%q}`, err.Error())
	}

	outcome := "ok"
	if _, failed := result["error"]; failed {
		outcome = "error"
	}
	if r.metrics != nil {
		r.metrics.ActionDispatches.WithLabelValues(req.Function, outcome).Inc()
		r.metrics.ObserveDispatchLatency(time.Since(started))
	}

	return newResponse(req.ActionGroup, req.Function, body)
}

func (r *Router) run(ctx context.Context, req Request) (result Result) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("action %s: panic recovered: %v", req.Function, rec)
			result = Result{"error": fmt.Sprintf("%v", rec)}
		}
	}()

	handler, ok := r.handlers[Action(req.Function)]
	if !ok {
		return Result{"error": fmt.Sprintf("Unknown function: %s", req.Function)}
	}

	result, err := handler(ctx, req.Params(), req.Body())
	if err != nil {
		log.Printf("action %s failed: %v", req.Function, err)
		return Result{"error": err.Error()}
	}
	return result
}

package conversation

import (
	"context"
	"fmt"
	"strings"
)

// Intent is the top-level route for an inbound message.
type Intent string

const (
	IntentRAG     Intent = "rag"
	IntentBooking Intent = "booking"
)

// bookingPhrases short-circuit the LLM. A message containing any of these
// is always a booking request.
var bookingPhrases = []string{
	"book a meeting",
	"schedule a meeting",
	"arrange a meeting",
	"set up a meeting",
	"book meeting",
	"schedule meeting",
	"i want to book",
	"i'd like to book",
	"can i book",
	"help me book",
}

const intentPrompt = `You route messages for a company assistant that can either answer questions about the company (rag) or book a meeting with the team (booking).

Classify the latest user message:
- booking: the user wants to schedule, book, or arrange a meeting or appointment
- rag: anything else, including questions about the company, its services, or small talk

%sLatest message: %s

Respond with: {"intent": "<rag|booking>"}`

// Router decides whether a message is an informational question or a
// booking request.
type Router struct {
	classifiers *Classifiers
}

func NewRouter(classifiers *Classifiers) *Router {
	return &Router{classifiers: classifiers}
}

// Route returns the intent for message. Messages from inside the booking
// funnel never reach the classifier, the funnel owns them until it exits.
func (r *Router) Route(ctx context.Context, state *ConversationState, message string) Intent {
	if state != nil && state.Stage.InFunnel() {
		return IntentBooking
	}

	lowered := strings.ToLower(message)
	for _, phrase := range bookingPhrases {
		if strings.Contains(lowered, phrase) {
			return IntentBooking
		}
	}

	return r.classifyIntent(ctx, state, message)
}

func (r *Router) classifyIntent(ctx context.Context, state *ConversationState, message string) Intent {
	c := r.classifiers
	message = strings.TrimSpace(message)
	if message == "" {
		return IntentRAG
	}

	key := decisionKey("intent", message)
	if cached, ok := c.cacheGet(ctx, key); ok {
		return Intent(cached)
	}

	prompt := fmt.Sprintf(intentPrompt, recentHistoryBlock(state), message)
	resp, err := c.llm.Complete(ctx, singleTurnRequest("", prompt))
	if err != nil {
		c.logger.Warn("intent classifier failed, defaulting to rag", "error", err.Error())
		return IntentRAG
	}

	var result struct {
		Intent string `json:"intent"`
	}
	if err := decodeClassifierJSON(resp.Text, &result); err != nil {
		c.logger.Warn("intent classifier returned malformed output", "error", err.Error())
		return IntentRAG
	}

	switch strings.ToLower(strings.TrimSpace(result.Intent)) {
	case string(IntentBooking):
		c.cacheSet(ctx, key, string(IntentBooking), c.intentTTL)
		return IntentBooking
	case string(IntentRAG):
		c.cacheSet(ctx, key, string(IntentRAG), c.intentTTL)
		return IntentRAG
	default:
		return IntentRAG
	}
}

// recentHistoryBlock renders the last few conversation turns for the
// intent prompt, or an empty string for a fresh conversation.
func recentHistoryBlock(state *ConversationState) string {
	if state == nil || len(state.Messages) == 0 {
		return ""
	}

	msgs := state.Messages
	if len(msgs) > 4 {
		msgs = msgs[len(msgs)-4:]
	}

	var b strings.Builder
	b.WriteString("Recent conversation:\n")
	for _, m := range msgs {
		fmt.Fprintf(&b, "%s: %s\n", m.Role, m.Content)
	}
	b.WriteString("\n")
	return b.String()
}

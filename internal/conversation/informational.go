package conversation

import (
	"context"
	"fmt"
	"strings"

	"github.com/ixoralabs/booking-assistant/internal/retriever"
)

// bookingSuggestionCues in an answer mean the user is circling the topic
// of meeting us, so the reply ends with a booking offer.
var bookingSuggestionCues = []string{"book", "schedule", "meeting", "appointment"}

const bookingSuggestion = "\n\nWould you like me to help you book a meeting with our team?"

// answerQuestion resolves an informational question through the knowledge
// base. Retrieval being down degrades the reply, it never fails the turn.
func (e *Engine) answerQuestion(ctx context.Context, state *ConversationState, question string) string {
	if e.answers == nil {
		return e.degradedAnswer()
	}

	// History excludes the question itself, which was already appended.
	history := make([]retriever.HistoryMessage, 0, len(state.Messages))
	for _, m := range state.Messages[:len(state.Messages)-1] {
		history = append(history, retriever.HistoryMessage{Role: m.Role, Content: m.Content})
	}

	answer, err := e.answers.Answer(ctx, question, history)
	if err != nil {
		e.logger.Warn("knowledge base unavailable", "error", err.Error())
		e.metrics.ObserveRetrieverFallback()
		return e.degradedAnswer()
	}

	reply := answer.Answer
	lowered := strings.ToLower(reply)
	for _, cue := range bookingSuggestionCues {
		if strings.Contains(lowered, cue) {
			return reply + bookingSuggestion
		}
	}
	return reply
}

func (e *Engine) degradedAnswer() string {
	return fmt.Sprintf(
		"I apologize, but I'm having trouble accessing our knowledge base right now. %s would still love to hear from you.%s",
		e.companyName, bookingSuggestion,
	)
}

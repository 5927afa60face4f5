package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/ixoralabs/booking-assistant/pkg/logging"
)

// Classifier verdicts. Each classifier has a conservative default that is
// returned whenever the LLM fails or produces something unparseable.
const (
	ConfirmationConfirmed = "confirmed"
	ConfirmationCancelled = "cancelled"
	ConfirmationUnclear   = "unclear"

	NewBookingYes        = "yes"
	NewBookingNo         = "no"
	NewBookingNewRequest = "new_request"

	InContextProvidingInfo = "providing_info"
	InContextNewBooking    = "new_booking"
)

const confirmationPrompt = `The user was just shown a booking summary and asked to confirm. Classify their reply.

Verdicts:
- confirmed: the user agrees to proceed (yes, sure, go ahead, looks good)
- cancelled: the user declines or wants to stop (no, cancel, stop, wrong details)
- unclear: anything else, including questions or unrelated text

Reply: %s

Respond with: {"verdict": "<verdict>"}`

const newBookingPrompt = `The user was just asked whether they want to book a meeting for a different date. Classify their reply.

Verdicts:
- yes: the user wants to book another meeting (yes, sure, why not)
- no: the user declines (no, not now, maybe later)
- new_request: the user already named a new date or time in the reply

Reply: %s

Respond with: {"verdict": "<verdict>"}`

const inContextPrompt = `The user is in the middle of providing contact details (name, email, phone) for a meeting booking. Classify their latest message.

Verdicts:
- providing_info: the message contains or continues their contact details
- new_booking: the message abandons the current booking and asks to book a different meeting or date

Message: %s

Respond with: {"verdict": "<verdict>"}`

const cancellationPrompt = `The user is in the middle of booking a meeting. Decide whether their latest message asks to abandon the booking process entirely.

Answering a question, picking a slot, giving contact details, or changing the date is NOT cancelling. Only an explicit wish to stop booking counts (never mind, forget it, stop, I don't want to book anymore).

Message: %s

Respond with: {"cancel": true} or {"cancel": false}`

// Classifiers runs the small LLM classification calls that steer the
// booking funnel, with verdict caching in front of the LLM.
type Classifiers struct {
	llm         LLMClient
	cache       DecisionCache
	intentTTL   time.Duration
	decisionTTL time.Duration
	logger      *logging.Logger
}

func NewClassifiers(llm LLMClient, cache DecisionCache, intentTTL, decisionTTL time.Duration, logger *logging.Logger) *Classifiers {
	if intentTTL <= 0 {
		intentTTL = 5 * time.Minute
	}
	if decisionTTL <= 0 {
		decisionTTL = 10 * time.Minute
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Classifiers{
		llm:         llm,
		cache:       cache,
		intentTTL:   intentTTL,
		decisionTTL: decisionTTL,
		logger:      logger.WithComponent("classifiers"),
	}
}

// Confirmation classifies a reply to the booking summary. Defaults to
// unclear so a flaky LLM never books or cancels on its own.
func (c *Classifiers) Confirmation(ctx context.Context, message string) string {
	return c.classify(ctx, "confirmation", confirmationPrompt, message, c.decisionTTL,
		[]string{ConfirmationConfirmed, ConfirmationCancelled, ConfirmationUnclear}, ConfirmationUnclear)
}

// NewBooking classifies a reply to the "book another meeting?" question.
// Defaults to no.
func (c *Classifiers) NewBooking(ctx context.Context, message string) string {
	return c.classify(ctx, "new_booking", newBookingPrompt, message, c.decisionTTL,
		[]string{NewBookingYes, NewBookingNo, NewBookingNewRequest}, NewBookingNo)
}

// InContext decides whether a message during contact collection is still
// part of the current booking. Defaults to providing_info.
func (c *Classifiers) InContext(ctx context.Context, message string) string {
	return c.classify(ctx, "in_context", inContextPrompt, message, c.intentTTL,
		[]string{InContextProvidingInfo, InContextNewBooking}, InContextProvidingInfo)
}

// WantsCancellation reports whether the message abandons the booking
// funnel. Defaults to false.
func (c *Classifiers) WantsCancellation(ctx context.Context, message string) bool {
	message = strings.TrimSpace(message)
	if message == "" {
		return false
	}

	key := decisionKey("cancellation", message)
	if cached, ok := c.cacheGet(ctx, key); ok {
		return cached == "true"
	}

	resp, err := c.llm.Complete(ctx, singleTurnRequest("", strings.Replace(cancellationPrompt, "%s", message, 1)))
	if err != nil {
		c.logger.Warn("cancellation classifier failed, continuing funnel", "error", err.Error())
		return false
	}

	var result struct {
		Cancel bool `json:"cancel"`
	}
	if err := decodeClassifierJSON(resp.Text, &result); err != nil {
		c.logger.Warn("cancellation classifier returned malformed output", "error", err.Error())
		return false
	}

	verdict := "false"
	if result.Cancel {
		verdict = "true"
	}
	c.cacheSet(ctx, key, verdict, c.decisionTTL)
	return result.Cancel
}

func (c *Classifiers) classify(ctx context.Context, name, prompt, message string, ttl time.Duration, allowed []string, fallback string) string {
	message = strings.TrimSpace(message)
	if message == "" {
		return fallback
	}

	key := decisionKey(name, message)
	if cached, ok := c.cacheGet(ctx, key); ok {
		return cached
	}

	resp, err := c.llm.Complete(ctx, singleTurnRequest("", strings.Replace(prompt, "%s", message, 1)))
	if err != nil {
		c.logger.Warn("classifier failed, using default", "classifier", name, "default", fallback, "error", err.Error())
		return fallback
	}

	var result struct {
		Verdict string `json:"verdict"`
	}
	if err := decodeClassifierJSON(resp.Text, &result); err != nil {
		c.logger.Warn("classifier returned malformed output", "classifier", name, "error", err.Error())
		return fallback
	}

	verdict := strings.ToLower(strings.TrimSpace(result.Verdict))
	for _, v := range allowed {
		if verdict == v {
			c.cacheSet(ctx, key, verdict, ttl)
			return verdict
		}
	}

	c.logger.Warn("classifier returned unknown verdict", "classifier", name, "verdict", verdict)
	return fallback
}

func (c *Classifiers) cacheGet(ctx context.Context, key string) (string, bool) {
	if c.cache == nil {
		return "", false
	}
	value, ok, err := c.cache.Get(ctx, key)
	if err != nil {
		c.logger.Warn("decision cache read failed", "error", err.Error())
		return "", false
	}
	return value, ok
}

func (c *Classifiers) cacheSet(ctx context.Context, key, value string, ttl time.Duration) {
	if c.cache == nil {
		return
	}
	if err := c.cache.Set(ctx, key, value, ttl); err != nil {
		c.logger.Warn("decision cache write failed", "error", err.Error())
	}
}

// decodeClassifierJSON pulls the first JSON object out of an LLM reply.
// Models wrap JSON in code fences or prose often enough that plain
// json.Unmarshal on the raw text is not reliable.
func decodeClassifierJSON(text string, out any) error {
	content := strings.TrimSpace(text)
	if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimPrefix(content, "```")
		content = strings.TrimSuffix(content, "```")
		content = strings.TrimSpace(content)
	}

	startIdx := strings.Index(content, "{")
	endIdx := strings.LastIndex(content, "}")
	if startIdx < 0 || endIdx <= startIdx {
		return errors.New("conversation: no JSON object in classifier output")
	}
	return json.Unmarshal([]byte(content[startIdx:endIdx+1]), out)
}

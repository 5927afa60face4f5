package conversation

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/ixoralabs/booking-assistant/internal/bookingapi"
)

// A reply counts as a direct index only when it is nothing but the number
// or labels it explicitly. Times like "2pm" or "the 10:00 one" carry digits
// too and those belong to the fuzzy matcher.
var (
	bareIndexRe    = regexp.MustCompile(`^\d+\.?$`)
	labeledIndexRe = regexp.MustCompile(`(?i)(?:\b(?:slot|number|option)\s*|#)(\d+)\b`)
)

// FormatSlotList renders the available slots as a numbered list the user
// picks from.
func FormatSlotList(slots []bookingapi.Slot, dateDisplay string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Great! I found %d available time slot(s) for %s:\n\n", len(slots), dateDisplay)
	for i, slot := range slots {
		fmt.Fprintf(&b, "  %d. %s\n", i+1, slot.Time)
	}
	b.WriteString("\nPlease select a time slot by number (e.g., \"1\" for the first slot).")
	return b.String()
}

// SlotSelection is the outcome of interpreting a slot choice.
type SlotSelection struct {
	Slot  *bookingapi.Slot
	Reply string
}

const slotMatchPrompt = `The user was shown these meeting time slots:
%s
Their reply: %s

Which slot number did they choose? Consider times ("2pm", "the 10:30 one") and positions ("the first one", "the last slot"). If the reply does not clearly pick one slot, answer 0.

Respond with: {"slot": <number>}`

// SlotSelector interprets a user's reply to the slot list. A plain index
// ("2", "number 3") is handled directly, anything else goes through the
// LLM and the result is re-validated against the list before it is
// trusted.
type SlotSelector struct {
	llm LLMClient
}

func NewSlotSelector(llm LLMClient) *SlotSelector {
	return &SlotSelector{llm: llm}
}

// Select resolves message against slots. The returned selection always has
// a Reply, Slot is nil when nothing was chosen.
func (s *SlotSelector) Select(ctx context.Context, slots []bookingapi.Slot, message string) SlotSelection {
	message = strings.TrimSpace(message)

	if numStr, ok := indexReply(message); ok {
		if num, err := strconv.Atoi(numStr); err == nil {
			if num < 1 || num > len(slots) {
				return SlotSelection{
					Reply: fmt.Sprintf("Sorry, slot number %d is not valid. Please choose a number between 1 and %d.", num, len(slots)),
				}
			}
			slot := slots[num-1]
			return SlotSelection{
				Slot:  &slot,
				Reply: fmt.Sprintf("Perfect! You've selected the %s slot.", slot.Time),
			}
		}
	}

	if num, ok := s.fuzzyMatch(ctx, slots, message); ok && num >= 1 && num <= len(slots) {
		slot := slots[num-1]
		return SlotSelection{
			Slot:  &slot,
			Reply: fmt.Sprintf("Great! You've selected the %s slot.", slot.Time),
		}
	}

	return SlotSelection{
		Reply: "I couldn't understand your selection. Please choose a slot number (e.g., '1', '2') or try again.",
	}
}

func indexReply(message string) (string, bool) {
	if m := bareIndexRe.FindString(message); m != "" {
		return strings.TrimSuffix(m, "."), true
	}
	if m := labeledIndexRe.FindStringSubmatch(message); m != nil {
		return m[1], true
	}
	return "", false
}

func (s *SlotSelector) fuzzyMatch(ctx context.Context, slots []bookingapi.Slot, message string) (int, bool) {
	if s.llm == nil || message == "" {
		return 0, false
	}

	var list strings.Builder
	for i, slot := range slots {
		fmt.Fprintf(&list, "  %d. %s\n", i+1, slot.Time)
	}

	prompt := fmt.Sprintf(slotMatchPrompt, list.String(), message)
	resp, err := s.llm.Complete(ctx, singleTurnRequest("", prompt))
	if err != nil {
		return 0, false
	}

	var result struct {
		Slot int `json:"slot"`
	}
	if err := decodeClassifierJSON(resp.Text, &result); err != nil {
		return 0, false
	}
	if result.Slot < 1 {
		return 0, false
	}
	return result.Slot, true
}

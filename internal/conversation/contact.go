package conversation

import (
	"context"
	"regexp"
	"strings"
)

var (
	emailValidRe = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	phoneValidRe = regexp.MustCompile(`^[\d\s\-\(\)\+]+$`)

	emailFindRe = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)
	phoneFindRe = regexp.MustCompile(`[\+\(]?\d[\d\s\-\(\)]{4,}`)
	digitRe     = regexp.MustCompile(`\d`)
)

// ValidName requires a trimmed name of at least two characters.
func ValidName(name string) bool {
	return len(strings.TrimSpace(name)) >= 2
}

// ValidEmail checks the address shape, not deliverability.
func ValidEmail(email string) bool {
	return emailValidRe.MatchString(strings.TrimSpace(email))
}

// ValidPhone accepts digits with common separators and requires at least
// ten digits overall.
func ValidPhone(phone string) bool {
	phone = strings.TrimSpace(phone)
	if !phoneValidRe.MatchString(phone) {
		return false
	}
	return len(digitRe.FindAllString(phone, -1)) >= 10
}

// ContactInfo holds whatever contact fields a message yielded. Empty
// fields were not found.
type ContactInfo struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

const contactPrompt = `Extract the person's contact details from these messages. Use empty strings for anything not present. Do not invent values.

Messages:
%s

Respond with: {"name": "...", "email": "...", "phone": "..."}`

// ContactExtractor pulls name, email and phone out of user messages,
// first with regexes and then with an LLM pass over recent messages for
// whatever the regexes missed.
type ContactExtractor struct {
	llm LLMClient
}

func NewContactExtractor(llm LLMClient) *ContactExtractor {
	return &ContactExtractor{llm: llm}
}

// ExtractFromMessage runs the regex pass over a single message. The name
// guess is the message text with the email and phone removed, which works
// for the common "Jane Doe, jane@x.com, 555-0100" shape.
func (e *ContactExtractor) ExtractFromMessage(message string) ContactInfo {
	var info ContactInfo

	remainder := message
	if email := emailFindRe.FindString(message); email != "" {
		info.Email = email
		remainder = strings.Replace(remainder, email, "", 1)
	}
	if phone := phoneFindRe.FindString(remainder); phone != "" {
		info.Phone = strings.TrimSpace(phone)
		remainder = strings.Replace(remainder, phone, "", 1)
	}

	name := strings.Trim(strings.TrimSpace(remainder), ",.;:!-() ")
	name = strings.TrimSpace(name)
	if ValidName(name) && !strings.ContainsAny(name, "?") {
		info.Name = name
	}
	return info
}

// ExtractWithLLM asks the LLM to pull contact details out of the most
// recent user messages. Regex results should be merged in first, the LLM
// only fills gaps.
func (e *ContactExtractor) ExtractWithLLM(ctx context.Context, recentUserMessages []string) (ContactInfo, error) {
	if e.llm == nil || len(recentUserMessages) == 0 {
		return ContactInfo{}, nil
	}

	var b strings.Builder
	for _, msg := range recentUserMessages {
		b.WriteString("- ")
		b.WriteString(msg)
		b.WriteString("\n")
	}

	resp, err := e.llm.Complete(ctx, singleTurnRequest("", strings.Replace(contactPrompt, "%s", b.String(), 1)))
	if err != nil {
		return ContactInfo{}, err
	}

	var info ContactInfo
	if err := decodeClassifierJSON(resp.Text, &info); err != nil {
		return ContactInfo{}, err
	}
	info.Name = strings.TrimSpace(info.Name)
	info.Email = strings.TrimSpace(info.Email)
	info.Phone = strings.TrimSpace(info.Phone)
	return info, nil
}

// MergeContact fills empty state fields from info. Fields the user already
// provided are never overwritten.
func MergeContact(state *ConversationState, info ContactInfo) {
	if state.UserName == "" && ValidName(info.Name) {
		state.UserName = strings.TrimSpace(info.Name)
	}
	if state.UserEmail == "" && info.Email != "" {
		state.UserEmail = strings.TrimSpace(info.Email)
	}
	if state.UserPhone == "" && info.Phone != "" {
		state.UserPhone = strings.TrimSpace(info.Phone)
	}
}

package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ixoralabs/booking-assistant/internal/bookingapi"
	"github.com/ixoralabs/booking-assistant/internal/retriever"
	"github.com/ixoralabs/booking-assistant/pkg/logging"
)

// fakeLLM answers each classifier prompt from a fixed script, keyed off
// markers unique to each prompt template.
type fakeLLM struct {
	mu    sync.Mutex
	calls int
	err   error

	intent       string
	cancel       bool
	confirmation string
	newBooking   string
	inContext    string
	slot         int
	contact      ContactInfo
	raw          string // when set, returned verbatim for every call
}

func newFakeLLM() *fakeLLM {
	return &fakeLLM{
		intent:       "rag",
		confirmation: "unclear",
		newBooking:   "no",
		inContext:    "providing_info",
	}
}

func (f *fakeLLM) Complete(_ context.Context, req LLMRequest) (LLMResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return LLMResponse{}, f.err
	}
	if f.raw != "" {
		return LLMResponse{Text: f.raw}, nil
	}

	prompt := req.Messages[len(req.Messages)-1].Content
	switch {
	case strings.Contains(prompt, `{"intent"`):
		return LLMResponse{Text: fmt.Sprintf(`{"intent": %q}`, f.intent)}, nil
	case strings.Contains(prompt, `{"cancel": true}`):
		return LLMResponse{Text: fmt.Sprintf(`{"cancel": %v}`, f.cancel)}, nil
	case strings.Contains(prompt, "shown a booking summary"):
		return LLMResponse{Text: fmt.Sprintf(`{"verdict": %q}`, f.confirmation)}, nil
	case strings.Contains(prompt, "book a meeting for a different date"):
		return LLMResponse{Text: fmt.Sprintf(`{"verdict": %q}`, f.newBooking)}, nil
	case strings.Contains(prompt, "providing contact details"):
		return LLMResponse{Text: fmt.Sprintf(`{"verdict": %q}`, f.inContext)}, nil
	case strings.Contains(prompt, "Which slot number"):
		return LLMResponse{Text: fmt.Sprintf(`{"slot": %d}`, f.slot)}, nil
	case strings.Contains(prompt, "Extract the person's contact details"):
		return LLMResponse{Text: fmt.Sprintf(`{"name": %q, "email": %q, "phone": %q}`,
			f.contact.Name, f.contact.Email, f.contact.Phone)}, nil
	}
	return LLMResponse{Text: "{}"}, nil
}

// fakeGateway is an in-memory SchedulingGateway.
type fakeGateway struct {
	slots    []bookingapi.Slot
	availErr error

	bookErr   error
	bookCalls int
	lastReq   bookingapi.BookingRequest
}

func (g *fakeGateway) GetStaffAvailability(_ context.Context, date string) ([]bookingapi.Slot, error) {
	if g.availErr != nil {
		return nil, g.availErr
	}
	out := make([]bookingapi.Slot, len(g.slots))
	copy(out, g.slots)
	for i := range out {
		out[i].Date = date
	}
	return out, nil
}

func (g *fakeGateway) CreateAppointment(_ context.Context, req bookingapi.BookingRequest) (*bookingapi.BookingConfirmation, error) {
	g.bookCalls++
	g.lastReq = req
	if g.bookErr != nil {
		return nil, g.bookErr
	}
	return &bookingapi.BookingConfirmation{BookingID: "bk-123", Date: req.Date, Time: req.Time}, nil
}

// memStateStore keeps conversation state in a map.
type memStateStore struct {
	mu     sync.Mutex
	states map[string]*ConversationState
}

func newMemStateStore() *memStateStore {
	return &memStateStore{states: make(map[string]*ConversationState)}
}

func (s *memStateStore) Save(_ context.Context, id string, state *ConversationState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if state == nil {
		delete(s.states, id)
		return nil
	}
	s.states[id] = state
	return nil
}

func (s *memStateStore) Load(_ context.Context, id string) (*ConversationState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.states[id], nil
}

func (s *memStateStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, id)
	return nil
}

type fakeAnswers struct {
	answer string
	err    error
	asked  []string
}

func (f *fakeAnswers) Answer(_ context.Context, question string, _ []retriever.HistoryMessage) (retriever.Answer, error) {
	f.asked = append(f.asked, question)
	if f.err != nil {
		return retriever.Answer{}, f.err
	}
	return retriever.Answer{Answer: f.answer}, nil
}

type fakeRecorder struct {
	records []BookingRecord
	err     error
}

func (f *fakeRecorder) RecordBooking(_ context.Context, rec BookingRecord) error {
	f.records = append(f.records, rec)
	return f.err
}

type fakeNotifier struct {
	sent []string // booking IDs
	err  error
}

func (f *fakeNotifier) SendBookingConfirmation(_ context.Context, _, _, _, _, bookingID string) error {
	f.sent = append(f.sent, bookingID)
	return f.err
}

type testDeps struct {
	llm      *fakeLLM
	gateway  *fakeGateway
	states   *memStateStore
	answers  *fakeAnswers
	recorder *fakeRecorder
	notifier *fakeNotifier
}

func newTestEngine(t *testing.T, extra ...EngineOption) (*Engine, *testDeps) {
	t.Helper()
	deps := &testDeps{
		llm: newFakeLLM(),
		gateway: &fakeGateway{slots: []bookingapi.Slot{
			{Time: "10:00 AM", DateTime: "2025-10-14T10:00:00"},
			{Time: "2:00 PM", DateTime: "2025-10-14T14:00:00"},
		}},
		states:   newMemStateStore(),
		answers:  &fakeAnswers{answer: "We build solar inverters."},
		recorder: &fakeRecorder{},
		notifier: &fakeNotifier{},
	}

	classifiers := NewClassifiers(deps.llm, nil, 0, 0, logging.New("error"))
	opts := []EngineOption{
		WithCompanyName("Acme"),
		WithAnswerProvider(deps.answers),
		WithBookingRecorder(deps.recorder),
		WithNotifier(deps.notifier),
	}
	opts = append(opts, extra...)
	engine := NewEngine(deps.states, NewRouter(classifiers), classifiers, deps.gateway, deps.llm, logging.New("error"), opts...)
	return engine, deps
}

func TestStartConversationGreetsNewSession(t *testing.T) {
	engine, deps := newTestEngine(t)

	resp, err := engine.StartConversation(context.Background(), StartRequest{})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.ConversationID)
	assert.Equal(t, "Hi! I can answer questions about Acme, or book a meeting with our team. How can I help?", resp.Message)
	assert.Equal(t, StageIdle, resp.Stage)

	state, err := deps.states.Load(context.Background(), resp.ConversationID)
	require.NoError(t, err)
	require.NotNil(t, state)
	require.Len(t, state.Messages, 1)
	assert.Equal(t, ChatRoleAssistant, state.Messages[0].Role)
}

func TestStartConversationResumeSkipsGreeting(t *testing.T) {
	engine, deps := newTestEngine(t)

	state := NewState()
	state.AppendUser("hello")
	require.NoError(t, deps.states.Save(context.Background(), "conv-1", state))

	resp, err := engine.StartConversation(context.Background(), StartRequest{ConversationID: "conv-1"})
	require.NoError(t, err)
	assert.Equal(t, "conv-1", resp.ConversationID)
	assert.Empty(t, resp.Message)
}

func TestProcessMessageRequiresIDAndText(t *testing.T) {
	engine, _ := newTestEngine(t)

	_, err := engine.ProcessMessage(context.Background(), MessageRequest{Message: "hi"})
	require.Error(t, err)

	_, err = engine.ProcessMessage(context.Background(), MessageRequest{ConversationID: "conv-1"})
	require.Error(t, err)
}

func TestProcessMessageAnswersQuestion(t *testing.T) {
	engine, _ := newTestEngine(t)

	resp, err := engine.ProcessMessage(context.Background(), MessageRequest{
		ConversationID: "conv-1",
		Message:        "What does Acme sell?",
	})
	require.NoError(t, err)
	assert.Equal(t, "We build solar inverters.", resp.Message)
	assert.Equal(t, StageIdle, resp.Stage)
}

func TestProcessMessageAppendsBookingSuggestion(t *testing.T) {
	engine, deps := newTestEngine(t)
	deps.answers.answer = "Our sales team can walk you through pricing in a short meeting."

	resp, err := engine.ProcessMessage(context.Background(), MessageRequest{
		ConversationID: "conv-1",
		Message:        "How do I get pricing?",
	})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(resp.Message, "Would you like me to help you book a meeting with our team?"))
}

func TestProcessMessageDegradesWhenRetrieverDown(t *testing.T) {
	engine, deps := newTestEngine(t)
	deps.answers.err = fmt.Errorf("boom: %w", retriever.ErrUnavailable)

	resp, err := engine.ProcessMessage(context.Background(), MessageRequest{
		ConversationID: "conv-1",
		Message:        "What does Acme sell?",
	})
	require.NoError(t, err)
	assert.Contains(t, resp.Message, "I'm having trouble accessing our knowledge base right now.")
	assert.Contains(t, resp.Message, "Acme would still love to hear from you.")
}

func TestProcessMessageKeywordEntersFunnel(t *testing.T) {
	engine, _ := newTestEngine(t)

	resp, err := engine.ProcessMessage(context.Background(), MessageRequest{
		ConversationID: "conv-1",
		Message:        "I want to book a meeting",
	})
	require.NoError(t, err)
	assert.Equal(t, "Great! I'll help you book a meeting. What date works best for you?", resp.Message)
	assert.Equal(t, StageCollectingRequirements, resp.Stage)
}

func TestProcessMessageClassifierRoutesBooking(t *testing.T) {
	engine, deps := newTestEngine(t)
	deps.llm.intent = "booking"

	resp, err := engine.ProcessMessage(context.Background(), MessageRequest{
		ConversationID: "conv-1",
		Message:        "any chance we could talk sometime",
	})
	require.NoError(t, err)
	assert.Equal(t, StageCollectingRequirements, resp.Stage)
}

func TestGetHistoryFromState(t *testing.T) {
	engine, deps := newTestEngine(t)

	state := NewState()
	state.AppendUser("hi")
	state.AppendAssistant("hello")
	require.NoError(t, deps.states.Save(context.Background(), "conv-1", state))

	history, err := engine.GetHistory(context.Background(), "conv-1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, Message{Role: ChatRoleUser, Content: "hi"}, history[0])
}

type fakeTranscripts struct {
	mu       sync.Mutex
	ensured  []string
	appended []Message
	stored   map[string][]Message
	err      error
}

func (f *fakeTranscripts) EnsureConversation(_ context.Context, id, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ensured = append(f.ensured, id)
	return f.err
}

func (f *fakeTranscripts) AppendMessage(_ context.Context, _, role, content string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.appended = append(f.appended, Message{Role: role, Content: content})
	return f.err
}

func (f *fakeTranscripts) GetMessages(_ context.Context, id string) ([]Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stored[id], f.err
}

func TestGetHistoryFallsBackToTranscripts(t *testing.T) {
	transcripts := &fakeTranscripts{stored: map[string][]Message{
		"conv-old": {{Role: ChatRoleUser, Content: "hi"}},
	}}
	engine, _ := newTestEngine(t, WithTranscripts(transcripts))

	history, err := engine.GetHistory(context.Background(), "conv-old")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "hi", history[0].Content)
}

func TestProcessMessageRecordsTranscript(t *testing.T) {
	transcripts := &fakeTranscripts{stored: map[string][]Message{}}
	engine, _ := newTestEngine(t, WithTranscripts(transcripts))

	_, err := engine.ProcessMessage(context.Background(), MessageRequest{
		ConversationID: "conv-1",
		Message:        "What does Acme sell?",
		Channel:        ChannelAPI,
	})
	require.NoError(t, err)
	require.Len(t, transcripts.appended, 2)
	assert.Equal(t, ChatRoleUser, transcripts.appended[0].Role)
	assert.Equal(t, ChatRoleAssistant, transcripts.appended[1].Role)
}

func TestProcessMessageTranscriptFailureDoesNotFailTurn(t *testing.T) {
	transcripts := &fakeTranscripts{err: errors.New("db down")}
	engine, _ := newTestEngine(t, WithTranscripts(transcripts))

	resp, err := engine.ProcessMessage(context.Background(), MessageRequest{
		ConversationID: "conv-1",
		Message:        "What does Acme sell?",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Message)
}

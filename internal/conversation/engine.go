package conversation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ixoralabs/booking-assistant/internal/bookingapi"
	"github.com/ixoralabs/booking-assistant/internal/observability/metrics"
	"github.com/ixoralabs/booking-assistant/internal/retriever"
	"github.com/ixoralabs/booking-assistant/pkg/logging"
)

// SchedulingGateway is the slice of the scheduling API the engine needs.
type SchedulingGateway interface {
	GetStaffAvailability(ctx context.Context, date string) ([]bookingapi.Slot, error)
	CreateAppointment(ctx context.Context, req bookingapi.BookingRequest) (*bookingapi.BookingConfirmation, error)
}

// AnswerProvider answers informational questions from the knowledge base.
type AnswerProvider interface {
	Answer(ctx context.Context, question string, history []retriever.HistoryMessage) (retriever.Answer, error)
}

// TranscriptStore durably records every turn for audit and analytics.
// Engine failures here never fail the conversation.
type TranscriptStore interface {
	EnsureConversation(ctx context.Context, conversationID string, channel string) error
	AppendMessage(ctx context.Context, conversationID, role, content string) error
	GetMessages(ctx context.Context, conversationID string) ([]Message, error)
}

// BookingRecord is what gets written to the bookings table after a
// successful appointment call.
type BookingRecord struct {
	BookingID      string
	ConversationID string
	Date           string
	Time           string
	Name           string
	Email          string
	Phone          string
}

// BookingRecorder persists successful bookings.
type BookingRecorder interface {
	RecordBooking(ctx context.Context, rec BookingRecord) error
}

// Notifier sends the confirmation email after a successful booking.
type Notifier interface {
	SendBookingConfirmation(ctx context.Context, email, name, dateDisplay, timeDisplay, bookingID string) error
}

// Engine is the production Service implementation. It routes idle
// conversations between the knowledge base and the booking funnel and
// drives the funnel stage machine.
type Engine struct {
	states      StateStore
	router      *Router
	classifiers *Classifiers
	gateway     SchedulingGateway
	dates       *DateExtractor
	contacts    *ContactExtractor
	slots       *SlotSelector
	logger      *logging.Logger

	answers     AnswerProvider
	transcripts TranscriptStore
	recorder    BookingRecorder
	notifier    Notifier
	metrics     *metrics.ConversationMetrics
	companyName string
}

// EngineOption customizes optional engine collaborators.
type EngineOption func(*Engine)

func WithAnswerProvider(p AnswerProvider) EngineOption {
	return func(e *Engine) { e.answers = p }
}

func WithTranscripts(s TranscriptStore) EngineOption {
	return func(e *Engine) { e.transcripts = s }
}

func WithBookingRecorder(r BookingRecorder) EngineOption {
	return func(e *Engine) { e.recorder = r }
}

func WithNotifier(n Notifier) EngineOption {
	return func(e *Engine) { e.notifier = n }
}

func WithMetrics(m *metrics.ConversationMetrics) EngineOption {
	return func(e *Engine) { e.metrics = m }
}

func WithCompanyName(name string) EngineOption {
	return func(e *Engine) {
		if name != "" {
			e.companyName = name
		}
	}
}

func NewEngine(
	states StateStore,
	router *Router,
	classifiers *Classifiers,
	gateway SchedulingGateway,
	llm LLMClient,
	logger *logging.Logger,
	opts ...EngineOption,
) *Engine {
	if states == nil {
		panic("conversation: state store cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	e := &Engine{
		states:      states,
		router:      router,
		classifiers: classifiers,
		gateway:     gateway,
		dates:       NewDateExtractor(),
		contacts:    NewContactExtractor(llm),
		slots:       NewSlotSelector(llm),
		logger:      logger.WithComponent("engine"),
		companyName: "our company",
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// StartConversation creates (or resumes) a conversation and returns the
// greeting.
func (e *Engine) StartConversation(ctx context.Context, req StartRequest) (*Response, error) {
	id := req.ConversationID
	if id == "" {
		id = uuid.NewString()
	}

	state, err := e.states.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	greeting := ""
	if state == nil {
		state = NewState()
		greeting = fmt.Sprintf(
			"Hi! I can answer questions about %s, or book a meeting with our team. How can I help?",
			e.companyName,
		)
		state.AppendAssistant(greeting)
	}

	if err := e.states.Save(ctx, id, state); err != nil {
		return nil, err
	}
	e.recordTranscript(ctx, id, string(req.Channel), nil, greeting)

	return &Response{
		ConversationID: id,
		Message:        greeting,
		Stage:          state.Stage,
		Timestamp:      time.Now().UTC(),
	}, nil
}

// ProcessMessage runs one turn: route the message, produce a reply, and
// persist the updated state.
func (e *Engine) ProcessMessage(ctx context.Context, req MessageRequest) (*Response, error) {
	if req.ConversationID == "" {
		return nil, fmt.Errorf("conversation: conversation id is required")
	}
	if req.Message == "" {
		return nil, fmt.Errorf("conversation: message is required")
	}

	state, err := e.states.Load(ctx, req.ConversationID)
	if err != nil {
		return nil, err
	}
	if state == nil {
		state = NewState()
	}
	state.AppendUser(req.Message)

	var reply string
	if state.Stage.InFunnel() {
		e.observeIntent(string(IntentBooking))
		reply = e.handleFunnel(ctx, req.ConversationID, state, req.Message)
	} else {
		intent := e.router.Route(ctx, state, req.Message)
		e.observeIntent(string(intent))
		switch intent {
		case IntentBooking:
			reply = e.enterFunnel(ctx, state, req.Message)
		default:
			reply = e.answerQuestion(ctx, state, req.Message)
		}
	}

	state.AppendAssistant(reply)
	if err := e.states.Save(ctx, req.ConversationID, state); err != nil {
		return nil, err
	}

	e.recordTranscript(ctx, req.ConversationID, string(req.Channel), &req.Message, reply)
	e.metrics.ObserveStage(string(state.Stage))

	return &Response{
		ConversationID: req.ConversationID,
		Message:        reply,
		Stage:          state.Stage,
		Timestamp:      time.Now().UTC(),
	}, nil
}

// GetHistory returns the transcript of a conversation.
func (e *Engine) GetHistory(ctx context.Context, conversationID string) ([]Message, error) {
	state, err := e.states.Load(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if state == nil {
		if e.transcripts != nil {
			return e.transcripts.GetMessages(ctx, conversationID)
		}
		return []Message{}, nil
	}

	history := make([]Message, 0, len(state.Messages))
	for _, m := range state.Messages {
		history = append(history, Message{Role: m.Role, Content: m.Content})
	}
	return history, nil
}

func (e *Engine) recordTranscript(ctx context.Context, conversationID, channel string, userMessage *string, assistantMessage string) {
	if e.transcripts == nil {
		return
	}
	if err := e.transcripts.EnsureConversation(ctx, conversationID, channel); err != nil {
		e.logger.Warn("transcript conversation upsert failed", "conversation_id", conversationID, "error", err.Error())
		return
	}
	if userMessage != nil {
		if err := e.transcripts.AppendMessage(ctx, conversationID, ChatRoleUser, *userMessage); err != nil {
			e.logger.Warn("transcript append failed", "conversation_id", conversationID, "error", err.Error())
		}
	}
	if assistantMessage != "" {
		if err := e.transcripts.AppendMessage(ctx, conversationID, ChatRoleAssistant, assistantMessage); err != nil {
			e.logger.Warn("transcript append failed", "conversation_id", conversationID, "error", err.Error())
		}
	}
}

func (e *Engine) observeIntent(intent string) {
	e.metrics.ObserveMessage(intent)
}

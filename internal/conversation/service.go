package conversation

import (
	"context"
	"fmt"
	"time"
)

// Service describes how the conversation engine should behave.
type Service interface {
	StartConversation(ctx context.Context, req StartRequest) (*Response, error)
	ProcessMessage(ctx context.Context, req MessageRequest) (*Response, error)
	GetHistory(ctx context.Context, conversationID string) ([]Message, error)
}

// Message represents a single message in a conversation transcript.
type Message struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// Channel identifies which transport the conversation is happening on.
type Channel string

const (
	ChannelUnknown Channel = ""
	ChannelAPI     Channel = "api"
	ChannelWebchat Channel = "webchat"
)

// StartRequest represents the minimal data we need to open a conversation.
type StartRequest struct {
	ConversationID string
	Channel        Channel
	Metadata       map[string]string
}

// MessageRequest represents a single turn in the conversation.
type MessageRequest struct {
	ConversationID string
	Message        string
	Channel        Channel
	Metadata       map[string]string
}

// Response is a simple DTO returned to the API layer.
type Response struct {
	ConversationID string
	Message        string
	Stage          Stage
	Timestamp      time.Time
}

// StubService is a placeholder implementation useful in tests and demos.
type StubService struct{}

// NewStubService returns the stub implementation.
func NewStubService() *StubService {
	return &StubService{}
}

// StartConversation returns a canned greeting plus a generated conversation ID.
func (s *StubService) StartConversation(ctx context.Context, req StartRequest) (*Response, error) {
	id := req.ConversationID
	if id == "" {
		id = fmt.Sprintf("conv_%d", time.Now().UnixNano())
	}
	return &Response{
		ConversationID: id,
		Message:        "Hi! Ask me anything about our company, or say 'book a meeting' to schedule time with the team.",
		Timestamp:      time.Now().UTC(),
	}, nil
}

// ProcessMessage echoes back the user's message.
func (s *StubService) ProcessMessage(ctx context.Context, req MessageRequest) (*Response, error) {
	return &Response{
		ConversationID: req.ConversationID,
		Message:        fmt.Sprintf("You said: %s", req.Message),
		Timestamp:      time.Now().UTC(),
	}, nil
}

// GetHistory returns empty history for stub service.
func (s *StubService) GetHistory(ctx context.Context, conversationID string) ([]Message, error) {
	return []Message{}, nil
}

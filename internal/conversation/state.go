package conversation

import (
	"time"

	"github.com/ixoralabs/booking-assistant/internal/bookingapi"
)

// Stage is the explicit position of a conversation inside the booking funnel.
// The zero value (StageIdle) means no booking is in progress and messages are
// routed through intent classification.
type Stage string

const (
	StageIdle                   Stage = ""
	StageCollectingRequirements Stage = "collecting_requirements"
	StageFetchingSlots          Stage = "fetching_slots"
	StageAwaitingNewDate        Stage = "awaiting_new_date"
	StageAwaitingSlotSelection  Stage = "awaiting_slot_selection"
	StageCollectingContact      Stage = "collecting_contact_info"
	StageAwaitingConfirmation   Stage = "awaiting_confirmation"
	StageBooking                Stage = "booking"
	StageAwaitingNewBooking     Stage = "awaiting_new_booking"
	StageBookingComplete        Stage = "booking_complete"
)

// InFunnel reports whether the conversation is inside the booking workflow,
// which bypasses intent classification entirely.
func (s Stage) InFunnel() bool {
	switch s {
	case StageCollectingRequirements, StageFetchingSlots, StageAwaitingNewDate,
		StageAwaitingSlotSelection, StageCollectingContact, StageAwaitingConfirmation,
		StageBooking, StageAwaitingNewBooking, StageBookingComplete:
		return true
	}
	return false
}

// BookingOutcome records the result of the final booking call.
type BookingOutcome struct {
	Success   bool   `json:"success"`
	BookingID string `json:"booking_id,omitempty"`
	Error     string `json:"error,omitempty"`
}

// ConversationState is the persisted per-conversation document. Contact and
// date fields are tri-state: empty means unknown, a value means known, and a
// cleared value plus a validation attempt means the user gave something
// invalid and still owes a correction.
type ConversationState struct {
	Messages             []ChatMessage      `json:"messages"`
	Stage                Stage              `json:"stage"`
	MeetingRequest       string             `json:"meeting_request,omitempty"`
	RequestedDate        string             `json:"requested_date,omitempty"`         // YYYY-MM-DD
	RequestedDateDisplay string             `json:"requested_date_display,omitempty"` // "October 14, 2025"
	AvailableSlots       []bookingapi.Slot  `json:"available_slots,omitempty"`
	SelectedSlot         *bookingapi.Slot   `json:"selected_slot,omitempty"`
	UserName             string             `json:"user_name,omitempty"`
	UserEmail            string             `json:"user_email,omitempty"`
	UserPhone            string             `json:"user_phone,omitempty"`
	ValidationAttempts   map[string]int     `json:"validation_attempts,omitempty"`
	BookingResult        *BookingOutcome    `json:"booking_result,omitempty"`
	UpdatedAt            time.Time          `json:"updated_at"`
}

// NewState returns an empty idle conversation.
func NewState() *ConversationState {
	return &ConversationState{
		Messages:  []ChatMessage{},
		Stage:     StageIdle,
		UpdatedAt: time.Now().UTC(),
	}
}

// AppendUser records an inbound user message.
func (s *ConversationState) AppendUser(content string) {
	s.Messages = append(s.Messages, ChatMessage{Role: ChatRoleUser, Content: content})
	s.UpdatedAt = time.Now().UTC()
}

// AppendAssistant records an outbound assistant message.
func (s *ConversationState) AppendAssistant(content string) {
	s.Messages = append(s.Messages, ChatMessage{Role: ChatRoleAssistant, Content: content})
	s.UpdatedAt = time.Now().UTC()
}

// ResetFunnel clears every booking field while preserving the message
// history, returning the conversation to idle.
func (s *ConversationState) ResetFunnel() {
	s.Stage = StageIdle
	s.MeetingRequest = ""
	s.clearDateAndSlots()
	s.UserName = ""
	s.UserEmail = ""
	s.UserPhone = ""
	s.ValidationAttempts = nil
	s.BookingResult = nil
	s.UpdatedAt = time.Now().UTC()
}

// ResetFunnelKeepingContact clears the date and slot fields for a repeat
// booking while keeping contact details the user already provided.
func (s *ConversationState) ResetFunnelKeepingContact() {
	s.clearDateAndSlots()
	s.BookingResult = nil
	s.UpdatedAt = time.Now().UTC()
}

func (s *ConversationState) clearDateAndSlots() {
	s.RequestedDate = ""
	s.RequestedDateDisplay = ""
	s.AvailableSlots = nil
	s.SelectedSlot = nil
}

// RecordValidationFailure clears an invalid field and counts the attempt.
func (s *ConversationState) RecordValidationFailure(field string) {
	if s.ValidationAttempts == nil {
		s.ValidationAttempts = make(map[string]int)
	}
	s.ValidationAttempts[field]++
}

// LastUserMessages returns up to n most recent user messages, oldest first.
func (s *ConversationState) LastUserMessages(n int) []string {
	if n <= 0 {
		return nil
	}
	out := make([]string, 0, n)
	for i := len(s.Messages) - 1; i >= 0 && len(out) < n; i-- {
		if s.Messages[i].Role == ChatRoleUser {
			out = append(out, s.Messages[i].Content)
		}
	}
	// Reverse into chronological order.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// HasContact reports whether all three contact fields are known.
func (s *ConversationState) HasContact() bool {
	return s.UserName != "" && s.UserEmail != "" && s.UserPhone != ""
}

package conversation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ixoralabs/booking-assistant/internal/bookingapi"
)

const (
	askDatePrompt   = "What date would you like to schedule the meeting? (e.g., 'tomorrow', 'next Monday', 'October 15')"
	noSlotsReply    = "No available slots found for your preferred date. Would you like to try a different date?"
	askContactReply = "To complete the booking, I need your name, email, and phone number."
	politeExitReply = "No problem! Feel free to reach out when you'd like to book a meeting. Have a great day!"
)

// enterFunnel moves an idle conversation into the booking workflow. When
// the triggering message already names a date, slot lookup starts
// immediately.
func (e *Engine) enterFunnel(ctx context.Context, state *ConversationState, message string) string {
	state.MeetingRequest = message
	state.Stage = StageCollectingRequirements

	if parsed, ok := e.dates.Extract(message); ok {
		return e.fetchSlots(ctx, state, parsed)
	}
	return "Great! I'll help you book a meeting. What date works best for you?"
}

// handleFunnel dispatches an in-funnel message to its stage handler. Every
// stage except confirmation and completion first checks for an intent to
// abandon the booking.
func (e *Engine) handleFunnel(ctx context.Context, conversationID string, state *ConversationState, message string) string {
	if state.Stage != StageAwaitingConfirmation && state.Stage != StageBookingComplete {
		if e.classifiers.WantsCancellation(ctx, message) {
			state.ResetFunnel()
			return fmt.Sprintf("No problem! I'd be happy to tell you more about %s. What would you like to know?", e.companyName)
		}
	}

	switch state.Stage {
	case StageCollectingRequirements, StageFetchingSlots:
		return e.handleCollectingRequirements(ctx, state, message)
	case StageAwaitingNewDate:
		return e.handleAwaitingNewDate(ctx, state, message)
	case StageAwaitingSlotSelection:
		return e.handleSlotSelection(ctx, state, message)
	case StageCollectingContact:
		return e.handleContactCollection(ctx, state, message)
	case StageAwaitingConfirmation:
		return e.handleConfirmation(ctx, conversationID, state, message)
	case StageAwaitingNewBooking, StageBookingComplete:
		return e.handleNewBookingOffer(ctx, state, message)
	default:
		state.Stage = StageCollectingRequirements
		return e.handleCollectingRequirements(ctx, state, message)
	}
}

// handleAwaitingNewDate runs after a date search came up empty or failed.
// A new date in the reply retries the search right away, a decline ends
// the funnel.
func (e *Engine) handleAwaitingNewDate(ctx context.Context, state *ConversationState, message string) string {
	if parsed, ok := e.dates.Extract(message); ok {
		state.clearDateAndSlots()
		return e.fetchSlots(ctx, state, parsed)
	}

	switch e.classifiers.NewBooking(ctx, message) {
	case NewBookingYes, NewBookingNewRequest:
		state.clearDateAndSlots()
		state.Stage = StageCollectingRequirements
		return askDatePrompt
	default:
		state.ResetFunnel()
		return politeExitReply
	}
}

func (e *Engine) handleCollectingRequirements(ctx context.Context, state *ConversationState, message string) string {
	state.Stage = StageCollectingRequirements

	parsed, ok := e.dates.Extract(message)
	if !ok {
		return askDatePrompt
	}
	return e.fetchSlots(ctx, state, parsed)
}

func (e *Engine) getAvailability(ctx context.Context, date string) ([]bookingapi.Slot, error) {
	start := time.Now()
	slots, err := e.gateway.GetStaffAvailability(ctx, date)
	e.metrics.ObserveGatewayLatency("get_availability", time.Since(start).Seconds())
	return slots, err
}

// fetchSlots queries availability for the parsed date and presents the
// result. No slots or a gateway failure both land in awaiting_new_date so
// the user can try again.
func (e *Engine) fetchSlots(ctx context.Context, state *ConversationState, parsed ParsedDate) string {
	state.Stage = StageFetchingSlots
	state.RequestedDate = parsed.Date
	state.RequestedDateDisplay = parsed.Display

	slots, err := e.getAvailability(ctx, parsed.Date)
	if err != nil {
		e.logger.Error("availability lookup failed",
			"date", parsed.Date,
			"category", string(bookingapi.CategoryOf(err)),
			"error", err.Error(),
		)
		state.Stage = StageAwaitingNewDate
		return "Sorry, I couldn't check availability right now. Would you like to try a different date?"
	}

	if len(slots) == 0 {
		state.Stage = StageAwaitingNewDate
		return noSlotsReply
	}

	state.AvailableSlots = slots
	state.Stage = StageAwaitingSlotSelection
	return FormatSlotList(slots, parsed.Display)
}

func (e *Engine) handleSlotSelection(ctx context.Context, state *ConversationState, message string) string {
	selection := e.slots.Select(ctx, state.AvailableSlots, message)
	if selection.Slot == nil {
		return selection.Reply
	}

	state.SelectedSlot = selection.Slot
	if state.HasContact() {
		state.Stage = StageAwaitingConfirmation
		return selection.Reply + "\n\n" + e.confirmationSummary(state)
	}

	state.Stage = StageCollectingContact
	return selection.Reply + "\n\n" + askContactReply
}

func (e *Engine) handleContactCollection(ctx context.Context, state *ConversationState, message string) string {
	// A message here can also be a brand new booking request instead of
	// contact details.
	if e.classifiers.InContext(ctx, message) == InContextNewBooking {
		state.clearDateAndSlots()
		return e.handleCollectingRequirements(ctx, state, message)
	}

	MergeContact(state, e.contacts.ExtractFromMessage(message))

	if !state.HasContact() {
		if info, err := e.contacts.ExtractWithLLM(ctx, state.LastUserMessages(3)); err == nil {
			MergeContact(state, info)
		} else {
			e.logger.Warn("contact extraction fallback failed", "error", err.Error())
		}
	}

	if problems := e.validateContact(state); len(problems) > 0 {
		var b strings.Builder
		b.WriteString("I found some issues with the information provided:\n")
		for _, p := range problems {
			b.WriteString("• ")
			b.WriteString(p)
			b.WriteString("\n")
		}
		b.WriteString("Please provide the correct information.")
		return b.String()
	}

	if missing := missingContactFields(state); len(missing) > 0 {
		if state.UserName == "" && state.UserEmail == "" && state.UserPhone == "" {
			return askContactReply
		}
		return fmt.Sprintf("I still need your %s. Please provide the missing information.", strings.Join(missing, ", "))
	}

	state.Stage = StageAwaitingConfirmation
	return e.confirmationSummary(state)
}

// validateContact drops invalid fields so the user is re-asked for them,
// and returns the human-readable problems found.
func (e *Engine) validateContact(state *ConversationState) []string {
	var problems []string
	if state.UserName != "" && !ValidName(state.UserName) {
		problems = append(problems, "name should be at least 2 characters")
		state.RecordValidationFailure("name")
		state.UserName = ""
	}
	if state.UserEmail != "" && !ValidEmail(state.UserEmail) {
		problems = append(problems, "email format is invalid")
		state.RecordValidationFailure("email")
		state.UserEmail = ""
	}
	if state.UserPhone != "" && !ValidPhone(state.UserPhone) {
		problems = append(problems, "phone number format is invalid")
		state.RecordValidationFailure("phone")
		state.UserPhone = ""
	}
	return problems
}

func missingContactFields(state *ConversationState) []string {
	var missing []string
	if state.UserName == "" {
		missing = append(missing, "name")
	}
	if state.UserEmail == "" {
		missing = append(missing, "email")
	}
	if state.UserPhone == "" {
		missing = append(missing, "phone number")
	}
	return missing
}

func (e *Engine) confirmationSummary(state *ConversationState) string {
	timeDisplay := ""
	if state.SelectedSlot != nil {
		timeDisplay = state.SelectedSlot.Time
	}
	return fmt.Sprintf(
		"Let me confirm the details:\n- Date: %s\n- Time: %s\n- Name: %s\n- Email: %s\n- Phone: %s\n\nShould I proceed with the booking?",
		state.RequestedDateDisplay, timeDisplay, state.UserName, state.UserEmail, state.UserPhone,
	)
}

func (e *Engine) handleConfirmation(ctx context.Context, conversationID string, state *ConversationState, message string) string {
	switch e.classifiers.Confirmation(ctx, message) {
	case ConfirmationConfirmed:
		return e.book(ctx, conversationID, state)
	case ConfirmationCancelled:
		// An explicit cancellation wipes the collected details, a later
		// booking starts from scratch.
		state.ResetFunnel()
		state.Stage = StageAwaitingNewBooking
		return "Booking cancelled. No problem!\n\nWould you like to book a meeting for a different date?"
	default:
		return "I didn't quite catch that. Please confirm if the booking details are correct by saying 'yes' to proceed or 'no' to cancel."
	}
}

// book performs the appointment call. It runs at most once per
// confirmation, failures hand control back to the user instead of
// retrying.
func (e *Engine) book(ctx context.Context, conversationID string, state *ConversationState) string {
	if state.SelectedSlot == nil || state.RequestedDate == "" || !state.HasContact() {
		if state.HasContact() {
			state.Stage = StageAwaitingNewDate
		} else {
			state.Stage = StageCollectingContact
		}
		return "Missing required booking information. Please try again."
	}

	state.Stage = StageBooking
	start := time.Now()
	conf, err := e.gateway.CreateAppointment(ctx, bookingapi.BookingRequest{
		Date:  state.RequestedDate,
		Time:  state.SelectedSlot.Time,
		Name:  state.UserName,
		Email: state.UserEmail,
		Phone: state.UserPhone,
		Notes: state.MeetingRequest,
	})
	e.metrics.ObserveGatewayLatency("create_appointment", time.Since(start).Seconds())
	if err != nil {
		return e.handleBookingFailure(ctx, state, err)
	}

	state.BookingResult = &BookingOutcome{Success: true, BookingID: conf.BookingID}
	state.Stage = StageBookingComplete
	e.metrics.ObserveBooking("success")
	e.recordBooking(ctx, conversationID, state, conf.BookingID)
	e.sendConfirmation(ctx, state, conf.BookingID)

	return fmt.Sprintf(
		"Great news! Your meeting has been successfully booked!\n\nConfirmation details:\n- Date: %s\n- Time: %s\n- Name: %s\n- Email: %s\n\nYou will receive a confirmation email shortly. Looking forward to meeting with you!",
		state.RequestedDateDisplay, state.SelectedSlot.Time, state.UserName, state.UserEmail,
	)
}

// handleBookingFailure turns a gateway error into the next step. A
// conflict means the slot was taken between listing and booking, so the
// freshest availability is shown again.
func (e *Engine) handleBookingFailure(ctx context.Context, state *ConversationState, err error) string {
	category := bookingapi.CategoryOf(err)
	e.logger.Error("appointment creation failed", "category", string(category), "error", err.Error())
	state.BookingResult = &BookingOutcome{Success: false, Error: err.Error()}
	e.metrics.ObserveBooking("failure")

	if category == bookingapi.ErrorConflict && state.RequestedDate != "" {
		slots, refetchErr := e.getAvailability(ctx, state.RequestedDate)
		if refetchErr == nil && len(slots) > 0 {
			state.AvailableSlots = slots
			state.SelectedSlot = nil
			state.Stage = StageAwaitingSlotSelection
			return "It looks like that slot was just taken. Here are the current openings:\n\n" +
				FormatSlotList(slots, state.RequestedDateDisplay)
		}
	}

	state.Stage = StageAwaitingNewDate
	return fmt.Sprintf(
		"I apologize, but there was an issue booking your meeting: %s\n\nWould you like to try a different time slot?",
		err.Error(),
	)
}

func (e *Engine) handleNewBookingOffer(ctx context.Context, state *ConversationState, message string) string {
	// A concrete date in the reply means yes.
	if parsed, ok := e.dates.Extract(message); ok {
		state.ResetFunnelKeepingContact()
		state.Stage = StageCollectingRequirements
		return e.fetchSlots(ctx, state, parsed)
	}

	switch e.classifiers.NewBooking(ctx, message) {
	case NewBookingYes:
		state.ResetFunnelKeepingContact()
		state.Stage = StageCollectingRequirements
		return "Great! What date would work best for you?"
	case NewBookingNewRequest:
		return "I didn't catch that. What date would you like to schedule the meeting?"
	default:
		// After a completed booking the user may simply have moved on to
		// another question, so the message still deserves an answer.
		fromComplete := state.Stage == StageBookingComplete
		state.ResetFunnel()
		if fromComplete {
			return e.answerQuestion(ctx, state, message)
		}
		return politeExitReply
	}
}

func (e *Engine) recordBooking(ctx context.Context, conversationID string, state *ConversationState, bookingID string) {
	if e.recorder == nil {
		return
	}
	err := e.recorder.RecordBooking(ctx, BookingRecord{
		BookingID:      bookingID,
		ConversationID: conversationID,
		Date:           state.RequestedDate,
		Time:           state.SelectedSlot.Time,
		Name:           state.UserName,
		Email:          state.UserEmail,
		Phone:          state.UserPhone,
	})
	if err != nil {
		e.logger.Warn("booking record persist failed", "booking_id", bookingID, "error", err.Error())
	}
}

func (e *Engine) sendConfirmation(ctx context.Context, state *ConversationState, bookingID string) {
	if e.notifier == nil {
		return
	}
	err := e.notifier.SendBookingConfirmation(ctx,
		state.UserEmail, state.UserName, state.RequestedDateDisplay, state.SelectedSlot.Time, bookingID)
	if err != nil {
		e.logger.Warn("confirmation email failed", "booking_id", bookingID, "error", err.Error())
	}
}

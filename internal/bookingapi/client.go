// Package bookingapi provides a direct client for the Microsoft Bookings
// private scheduling API, replacing browser automation for meeting booking.
package bookingapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/ixoralabs/booking-assistant/pkg/logging"
)

const (
	defaultBaseURLFormat = "https://outlook.office365.com/BookingsService/api/V1/bookingBusinessesc2/%s"

	defaultAvailabilityTimeout = 2 * time.Minute
	defaultAppointmentTimeout  = 5 * time.Minute

	defaultTimezone     = "Bangladesh Standard Time"
	defaultSlotDuration = 30 * time.Minute

	wireTimeLayout = "2006-01-02T15:04:05"
	slotTimeLayout = "3:04 PM"
	dateLayout     = "2006-01-02"

	availabilityStatusAvailable = "BOOKINGSAVAILABILITYSTATUS_AVAILABLE"
)

// Client calls the Bookings scheduling endpoints for a single business.
type Client struct {
	baseURL      string
	serviceID    string
	staffIDs     []string
	timezone     string
	slotDuration time.Duration

	availabilityClient *http.Client
	appointmentClient  *http.Client
	logger             *logging.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithTimeouts overrides the per-call HTTP timeouts. Appointment creation is
// given a longer budget because the provider is slow to commit bookings.
func WithTimeouts(availability, appointment time.Duration) Option {
	return func(c *Client) {
		if availability > 0 {
			c.availabilityClient.Timeout = availability
		}
		if appointment > 0 {
			c.appointmentClient.Timeout = appointment
		}
	}
}

// WithTimezone sets the scheduling timezone sent to the provider.
func WithTimezone(tz string) Option {
	return func(c *Client) {
		if tz != "" {
			c.timezone = tz
		}
	}
}

// WithSlotDuration sets the meeting length used to derive appointment end times.
func WithSlotDuration(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.slotDuration = d
		}
	}
}

// WithBaseURL overrides the provider endpoint, used in tests.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.baseURL = u
		}
	}
}

// NewClient creates a scheduling client for the given business mailbox.
func NewClient(businessEmail, serviceID string, staffIDs []string, logger *logging.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = logging.Default()
	}
	c := &Client{
		baseURL:            fmt.Sprintf(defaultBaseURLFormat, businessEmail),
		serviceID:          serviceID,
		staffIDs:           staffIDs,
		timezone:           defaultTimezone,
		slotDuration:       defaultSlotDuration,
		availabilityClient: &http.Client{Timeout: defaultAvailabilityTimeout},
		appointmentClient:  &http.Client{Timeout: defaultAppointmentTimeout},
		logger:             logger.WithComponent("bookingapi"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Slot is one bookable start time on a given date.
type Slot struct {
	Time     string `json:"time"`     // "10:00 AM"
	DateTime string `json:"datetime"` // "2025-10-12T10:00:00"
	Date     string `json:"date"`     // "2025-10-12"
	StaffID  string `json:"staff_id,omitempty"`
}

// BookingRequest carries everything needed to create an appointment.
type BookingRequest struct {
	Date  string // YYYY-MM-DD
	Time  string // "10:00 AM"
	Name  string
	Email string
	Phone string
	Notes string
}

// BookingConfirmation is the provider's acknowledgement of a created appointment.
type BookingConfirmation struct {
	BookingID string
	Date      string
	Time      string
}

type wireDateTime struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone"`
}

type availabilityRequest struct {
	ServiceID     string       `json:"serviceId"`
	StaffIDs      []string     `json:"staffIds"`
	StartDateTime wireDateTime `json:"startDateTime"`
	EndDateTime   wireDateTime `json:"endDateTime"`
}

type availabilityResponse struct {
	StaffAvailabilityResponse []struct {
		StaffID           string `json:"staffId"`
		AvailabilityItems []struct {
			Status        string       `json:"status"`
			StartDateTime wireDateTime `json:"startDateTime"`
		} `json:"availabilityItems"`
	} `json:"staffAvailabilityResponse"`
}

// GetStaffAvailability returns the open slots for the requested date, sorted
// by start time. Slots reported for neighboring dates are dropped.
func (c *Client) GetStaffAvailability(ctx context.Context, date string) ([]Slot, error) {
	if _, err := time.Parse(dateLayout, date); err != nil {
		return nil, &GatewayError{Category: ErrorBadRequest, Message: fmt.Sprintf("invalid date %q", date)}
	}

	payload := availabilityRequest{
		ServiceID: c.serviceID,
		StaffIDs:  c.staffIDs,
		StartDateTime: wireDateTime{
			DateTime: date + "T00:00:00",
			TimeZone: c.timezone,
		},
		EndDateTime: wireDateTime{
			DateTime: date + "T23:59:59",
			TimeZone: c.timezone,
		},
	}

	c.logger.Info("fetching staff availability", "date", date)
	started := time.Now()

	var resp availabilityResponse
	if err := c.doRequest(ctx, c.availabilityClient, "/GetStaffAvailability", payload, &resp); err != nil {
		return nil, err
	}

	slots := make([]Slot, 0)
	for _, staff := range resp.StaffAvailabilityResponse {
		for _, item := range staff.AvailabilityItems {
			if item.Status != availabilityStatusAvailable {
				continue
			}
			start := item.StartDateTime.DateTime
			if start == "" {
				continue
			}
			slotTime, err := time.Parse(wireTimeLayout, start)
			if err != nil {
				c.logger.Warn("skipping unparseable slot time", "value", start, "error", err)
				continue
			}
			if slotTime.Format(dateLayout) != date {
				continue
			}
			slots = append(slots, Slot{
				Time:     slotTime.Format(slotTimeLayout),
				DateTime: start,
				Date:     date,
				StaffID:  staff.StaffID,
			})
		}
	}

	sort.Slice(slots, func(i, j int) bool { return slots[i].DateTime < slots[j].DateTime })

	c.logger.Info("availability fetched",
		"date", date,
		"slots", len(slots),
		"elapsed", time.Since(started).String(),
	)
	return slots, nil
}

type appointmentCustomer struct {
	Name                    string              `json:"name"`
	EmailAddress            string              `json:"emailAddress"`
	Phone                   string              `json:"phone"`
	Notes                   string              `json:"notes"`
	TimeZone                string              `json:"timeZone"`
	AnsweredCustomQuestions []any               `json:"answeredCustomQuestions"`
	Location                appointmentLocation `json:"location"`
	SMSNotificationsEnabled bool                `json:"smsNotificationsEnabled"`
	InstanceID              string              `json:"instanceId"`
	Price                   int                 `json:"price"`
	PriceType               string              `json:"priceType"`
}

type appointmentLocation struct {
	DisplayName string             `json:"displayName"`
	Address     appointmentAddress `json:"address"`
}

type appointmentAddress struct {
	Street string `json:"street"`
	Type   string `json:"type"`
}

type appointmentBody struct {
	StartTime               wireDateTime          `json:"startTime"`
	EndTime                 wireDateTime          `json:"endTime"`
	ServiceID               string                `json:"serviceId"`
	StaffMemberIDs          []string              `json:"staffMemberIds"`
	Customers               []appointmentCustomer `json:"customers"`
	IsLocationOnline        bool                  `json:"isLocationOnline"`
	SMSNotificationsEnabled bool                  `json:"smsNotificationsEnabled"`
	VerificationCode        string                `json:"verificationCode"`
	CustomerTimeZone        string                `json:"customerTimeZone"`
	TrackingDataID          string                `json:"trackingDataId"`
	BookingFormInfoList     []any                 `json:"bookingFormInfoList"`
	Price                   int                   `json:"price"`
	PriceType               string                `json:"priceType"`
	IsAllDay                bool                  `json:"isAllDay"`
	AdditionalRecipients    []any                 `json:"additionalRecipients"`
}

type appointmentRequest struct {
	Appointment appointmentBody        `json:"appointment"`
	Preferences appointmentPreferences `json:"preferences"`
}

type appointmentPreferences struct {
	StaffCandidates []string `json:"staffCandidates"`
}

// CreateAppointment books a meeting at the given date and time. The
// appointment runs for the configured slot duration.
func (c *Client) CreateAppointment(ctx context.Context, req BookingRequest) (*BookingConfirmation, error) {
	start, err := parseSlotStart(req.Date, req.Time)
	if err != nil {
		return nil, &GatewayError{Category: ErrorBadRequest, Message: err.Error()}
	}
	end := start.Add(c.slotDuration)

	const priceTypeNotSet = "SERVICEDEFAULTPRICETYPES_NOT_SET"

	staffMembers := c.staffIDs
	if len(staffMembers) > 1 {
		staffMembers = staffMembers[:1]
	}

	payload := appointmentRequest{
		Appointment: appointmentBody{
			StartTime:      wireDateTime{DateTime: start.Format(wireTimeLayout), TimeZone: c.timezone},
			EndTime:        wireDateTime{DateTime: end.Format(wireTimeLayout), TimeZone: c.timezone},
			ServiceID:      c.serviceID,
			StaffMemberIDs: staffMembers,
			Customers: []appointmentCustomer{{
				Name:                    req.Name,
				EmailAddress:            req.Email,
				Phone:                   req.Phone,
				Notes:                   req.Notes,
				TimeZone:                c.timezone,
				AnsweredCustomQuestions: []any{},
				Location: appointmentLocation{
					Address: appointmentAddress{Type: "Other"},
				},
				PriceType: priceTypeNotSet,
			}},
			IsLocationOnline:     true,
			CustomerTimeZone:     c.timezone,
			BookingFormInfoList:  []any{},
			PriceType:            priceTypeNotSet,
			AdditionalRecipients: []any{},
		},
		Preferences: appointmentPreferences{StaffCandidates: c.staffIDs},
	}

	c.logger.Info("booking appointment", "date", req.Date, "time", req.Time, "email", req.Email)
	started := time.Now()

	var resp struct {
		ID string `json:"id"`
	}
	if err := c.doRequest(ctx, c.appointmentClient, "/appointments", payload, &resp); err != nil {
		return nil, err
	}

	c.logger.Info("appointment booked",
		"booking_id", resp.ID,
		"elapsed", time.Since(started).String(),
	)

	return &BookingConfirmation{
		BookingID: resp.ID,
		Date:      req.Date,
		Time:      req.Time,
	}, nil
}

func parseSlotStart(date, clock string) (time.Time, error) {
	d, err := time.Parse(dateLayout, date)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q", date)
	}
	t, err := time.Parse(slotTimeLayout, clock)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q", clock)
	}
	return time.Date(d.Year(), d.Month(), d.Day(), t.Hour(), t.Minute(), 0, 0, time.UTC), nil
}

// doRequest posts a JSON payload and decodes the JSON response.
func (c *Client) doRequest(ctx context.Context, httpClient *http.Client, path string, payload, result interface{}) error {
	jsonBody, err := json.Marshal(payload)
	if err != nil {
		return &GatewayError{Category: ErrorUnknown, Message: fmt.Sprintf("marshal request: %v", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(jsonBody))
	if err != nil {
		return &GatewayError{Category: ErrorUnknown, Message: fmt.Sprintf("create request: %v", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		return &GatewayError{Category: categorizeTransport(err), Message: err.Error()}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &GatewayError{Category: ErrorNetwork, Message: fmt.Sprintf("read response: %v", err)}
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return &GatewayError{
			Category:   categorizeStatus(resp.StatusCode),
			StatusCode: resp.StatusCode,
			Message:    string(respBody[:min(500, len(respBody))]),
		}
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return &GatewayError{Category: ErrorUnknown, Message: fmt.Sprintf("unmarshal response: %v", err)}
		}
	}
	return nil
}

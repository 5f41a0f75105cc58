// Package business holds per-business chatbot and commerce settings.
package business

import (
	"strings"
	"time"
)

// DayHours represents the opening hours for a single day.
// Nil means the business is closed that day.
type DayHours struct {
	Open  string `json:"open"`  // "09:00" in 24-hour format
	Close string `json:"close"` // "18:00" in 24-hour format
}

// BusinessHours maps day names to their hours.
type BusinessHours struct {
	Monday    *DayHours `json:"monday,omitempty"`
	Tuesday   *DayHours `json:"tuesday,omitempty"`
	Wednesday *DayHours `json:"wednesday,omitempty"`
	Thursday  *DayHours `json:"thursday,omitempty"`
	Friday    *DayHours `json:"friday,omitempty"`
	Saturday  *DayHours `json:"saturday,omitempty"`
	Sunday    *DayHours `json:"sunday,omitempty"`
}

// PaymentMode is the seller's accepted set of payment methods.
type PaymentMode string

const (
	PaymentOnline PaymentMode = "online"
	PaymentCOD    PaymentMode = "cod"
	PaymentBoth   PaymentMode = "both"
)

// PaymentPreferences are the methods a seller accepts.
type PaymentPreferences struct {
	AcceptOnline bool   `json:"accept_online"`
	AcceptCOD    bool   `json:"accept_cod"`
	UPIID        string `json:"upi_id,omitempty"`
	UPIPayeeName string `json:"upi_payee_name,omitempty"`
	// AcceptCards advertises card payments through the gateway link.
	AcceptCards bool `json:"accept_cards,omitempty"`
}

// Configured reports whether the seller set any payment preference.
func (p PaymentPreferences) Configured() bool {
	return p.AcceptOnline || p.AcceptCOD || strings.TrimSpace(p.UPIID) != ""
}

// Mode collapses the flags. Sellers with nothing configured are treated as online.
func (p PaymentPreferences) Mode() PaymentMode {
	switch {
	case p.AcceptCOD && p.AcceptOnline:
		return PaymentBoth
	case p.AcceptCOD:
		return PaymentCOD
	default:
		return PaymentOnline
	}
}

// Settings is the configuration a business owner manages for its WhatsApp number.
type Settings struct {
	OwnerID           string `json:"owner_id"`
	BusinessName      string `json:"business_name"`
	PhoneNumberID     string `json:"phone_number_id"`
	NotificationEmail string `json:"notification_email,omitempty"`

	ChatbotEnabled   bool   `json:"chatbot_enabled"`
	AutoReplyEnabled bool   `json:"auto_reply_enabled"`
	Tone             string `json:"tone"`
	Language         string `json:"language"`
	WelcomeMessage   string `json:"welcome_message,omitempty"`
	TypingDelayMS    int    `json:"typing_delay_ms,omitempty"`

	BusinessHoursEnabled bool          `json:"business_hours_enabled"`
	Timezone             string        `json:"timezone"`
	BusinessHours        BusinessHours `json:"business_hours"`

	Payments PaymentPreferences `json:"payments"`
}

// DefaultSettings returns the settings used before an owner saves any.
func DefaultSettings(ownerID string) *Settings {
	return &Settings{
		OwnerID:          ownerID,
		ChatbotEnabled:   true,
		AutoReplyEnabled: true,
		Tone:             "friendly",
		Language:         "en",
		Timezone:         "Asia/Kolkata",
	}
}

// TypingDelay returns the configured simulated typing delay.
func (s *Settings) TypingDelay() time.Duration {
	if s == nil || s.TypingDelayMS <= 0 {
		return 0
	}
	return time.Duration(s.TypingDelayMS) * time.Millisecond
}

// DisplayName falls back to a neutral name when the owner has not set one.
func (s *Settings) DisplayName() string {
	if s == nil || strings.TrimSpace(s.BusinessName) == "" {
		return "our store"
	}
	return strings.TrimSpace(s.BusinessName)
}

// GetHoursForDay returns the hours for a specific weekday.
func (b *BusinessHours) GetHoursForDay(weekday time.Weekday) *DayHours {
	switch weekday {
	case time.Sunday:
		return b.Sunday
	case time.Monday:
		return b.Monday
	case time.Tuesday:
		return b.Tuesday
	case time.Wednesday:
		return b.Wednesday
	case time.Thursday:
		return b.Thursday
	case time.Friday:
		return b.Friday
	case time.Saturday:
		return b.Saturday
	default:
		return nil
	}
}

// HasAnyHours returns true if at least one day has business hours configured.
func (b *BusinessHours) HasAnyHours() bool {
	return b.Sunday != nil || b.Monday != nil || b.Tuesday != nil ||
		b.Wednesday != nil || b.Thursday != nil || b.Friday != nil || b.Saturday != nil
}

// IsOpenAt checks whether t falls inside business hours. Disabled hours, or
// enabled hours with no day configured, mean always open.
func (s *Settings) IsOpenAt(t time.Time) bool {
	if !s.BusinessHoursEnabled || !s.BusinessHours.HasAnyHours() {
		return true
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		loc = time.UTC
	}
	localTime := t.In(loc)

	hours := s.BusinessHours.GetHoursForDay(localTime.Weekday())
	if hours == nil {
		return false
	}
	openMinutes, err := parseClock(hours.Open)
	if err != nil {
		return false
	}
	closeMinutes, err := parseClock(hours.Close)
	if err != nil {
		return false
	}
	current := localTime.Hour()*60 + localTime.Minute()
	if closeMinutes <= openMinutes {
		// Window crosses midnight, e.g. 18:00-02:00.
		return current >= openMinutes || current < closeMinutes
	}
	return current >= openMinutes && current < closeMinutes
}

func parseClock(value string) (int, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(value))
	if err != nil {
		return 0, err
	}
	return t.Hour()*60 + t.Minute(), nil
}

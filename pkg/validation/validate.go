package validation

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"bazarchat/pkg/models"
)

// MaxTextLen bounds the text of a single message.
const MaxTextLen = 4096

// ValidateMessage checks a message before it enters the pipeline.
func ValidateMessage(m models.Message) error {
	var errs []string
	if m.ChatID == "" {
		errs = append(errs, "chat id is required")
	}
	if m.Sender == "" {
		errs = append(errs, "sender is required")
	}
	if err := validateContent(m.Content); err != nil {
		errs = append(errs, err.Error())
	}
	if utf8.RuneCountInString(m.Context) > 512 {
		errs = append(errs, "context too long")
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

func validateContent(c models.Content) error {
	switch c.Kind {
	case models.ContentText, "":
		if strings.TrimSpace(c.Text) == "" {
			return errors.New("text is required")
		}
		if utf8.RuneCountInString(c.Text) > MaxTextLen {
			return fmt.Errorf("text exceeds %d characters", MaxTextLen)
		}
	case models.ContentAdInquiry:
		if c.AdID == "" {
			return errors.New("ad id is required for ad inquiries")
		}
		if utf8.RuneCountInString(c.Text) > MaxTextLen {
			return fmt.Errorf("text exceeds %d characters", MaxTextLen)
		}
	case models.ContentRideBooking:
		if c.RideID == "" {
			return errors.New("ride id is required for ride bookings")
		}
		if c.Seats <= 0 {
			return errors.New("seats must be positive")
		}
	default:
		return fmt.Errorf("unknown content kind: %s", c.Kind)
	}
	return nil
}

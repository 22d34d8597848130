// Package validation provides input validation utilities
package validation

import (
	"fmt"
	"net/mail"
	"strings"
	"unicode/utf8"

	"calendarapp/internal/models"
)

const (
	MinPasswordLength    = 6
	// MaxPasswordBytes is the bcrypt input limit.
	MaxPasswordBytes     = 72
	MinDisplayNameLength = 2
	MaxDisplayNameLength = 100
	MaxTitleLength       = 255
	MaxReminderMinutes   = 7 * 24 * 60
	MaxEmailLength       = 255
)

// Errors collects one message per field. The first message for a field wins.
type Errors map[string]string

func (e Errors) add(field, msg string) {
	if _, exists := e[field]; !exists {
		e[field] = msg
	}
}

// Err returns a validation AppError, or nil when nothing was collected.
func (e Errors) Err() error {
	if len(e) == 0 {
		return nil
	}
	return models.NewFieldValidationError(e)
}

// ValidateEmail checks that email is a bare address such as a@x.com.
func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return fmt.Errorf("email is required")
	}
	if len(email) > MaxEmailLength {
		return fmt.Errorf("email must not exceed %d characters", MaxEmailLength)
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || !strings.Contains(addr.Address, "@") {
		return fmt.Errorf("email must be a valid email address")
	}
	return nil
}

// ValidatePassword checks the length bounds of a new password.
func ValidatePassword(password string) error {
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return fmt.Errorf("password must be at least %d characters long", MinPasswordLength)
	}
	if len(password) > MaxPasswordBytes {
		return fmt.Errorf("password must not exceed %d bytes", MaxPasswordBytes)
	}
	return nil
}

// ValidateDisplayName checks the length bounds of a display name.
func ValidateDisplayName(name string) error {
	n := utf8.RuneCountInString(strings.TrimSpace(name))
	if n < MinDisplayNameLength {
		return fmt.Errorf("displayName must be at least %d characters long", MinDisplayNameLength)
	}
	if n > MaxDisplayNameLength {
		return fmt.Errorf("displayName must not exceed %d characters", MaxDisplayNameLength)
	}
	return nil
}

// Login validates a login request.
func Login(email, password string) error {
	errs := Errors{}
	if err := ValidateEmail(email); err != nil {
		errs.add("email", err.Error())
	}
	if password == "" {
		errs.add("password", "password is required")
	}
	return errs.Err()
}

// Register validates a registration request.
func Register(email, password, displayName string) error {
	errs := Errors{}
	if err := ValidateEmail(email); err != nil {
		errs.add("email", err.Error())
	}
	if err := ValidatePassword(password); err != nil {
		errs.add("password", err.Error())
	}
	if err := ValidateDisplayName(displayName); err != nil {
		errs.add("displayName", err.Error())
	}
	return errs.Err()
}

// Profile validates the fields present in a profile update.
func Profile(displayName, avatarURL *string) error {
	errs := Errors{}
	if displayName != nil {
		if err := ValidateDisplayName(*displayName); err != nil {
			errs.add("displayName", err.Error())
		}
	}
	if avatarURL != nil && len(*avatarURL) > 2048 {
		errs.add("avatarUrl", "avatarUrl must not exceed 2048 characters")
	}
	return errs.Err()
}

// Event validates an event create or update body.
func Event(p *models.EventPayload) error {
	errs := Errors{}

	title := strings.TrimSpace(p.Title)
	switch {
	case title == "":
		errs.add("title", "title is required")
	case utf8.RuneCountInString(title) > MaxTitleLength:
		errs.add("title", fmt.Sprintf("title must not exceed %d characters", MaxTitleLength))
	}

	var start models.Date
	if strings.TrimSpace(p.Date) == "" {
		errs.add("date", "date is required")
	} else if d, err := models.ParseDate(p.Date); err != nil {
		errs.add("date", "date must use the YYYY-MM-DD format")
	} else {
		start = d
	}

	if p.EndDate != nil && strings.TrimSpace(*p.EndDate) != "" {
		end, err := models.ParseDate(*p.EndDate)
		switch {
		case err != nil:
			errs.add("endDate", "endDate must use the YYYY-MM-DD format")
		case !start.IsZero() && end.Before(start):
			errs.add("endDate", "endDate must not be before date")
		}
	}

	if p.ReminderMinutes != nil && (*p.ReminderMinutes < 0 || *p.ReminderMinutes > MaxReminderMinutes) {
		errs.add("reminderMinutes", fmt.Sprintf("reminderMinutes must be between 0 and %d", MaxReminderMinutes))
	}
	if p.Color != "" && len(p.Color) > 32 {
		errs.add("color", "color must not exceed 32 characters")
	}
	if len(p.Recurrence) > 64 {
		errs.add("recurrence", "recurrence must not exceed 64 characters")
	}
	if p.Time != nil && len(*p.Time) > 32 {
		errs.add("time", "time must not exceed 32 characters")
	}
	if p.MeetingLink != nil && len(*p.MeetingLink) > 2048 {
		errs.add("meetingLink", "meetingLink must not exceed 2048 characters")
	}

	return errs.Err()
}

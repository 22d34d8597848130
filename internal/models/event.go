package models

import (
	"time"
)

// Defaults applied to event fields the client leaves out.
const (
	DefaultEventColor      = "primary"
	DefaultEventRecurrence = "none"
	DefaultReminderMinutes = 15
)

// Event is a calendar entry owned by exactly one user. Recurrence is stored
// as an opaque string and never expanded.
type Event struct {
	ID              uint    `gorm:"primaryKey" json:"id"`
	Title           string  `gorm:"size:255;not null" json:"title"`
	Date            Date    `gorm:"type:date;not null;index:idx_events_user_date,priority:2" json:"date"`
	Time            *string `gorm:"size:32" json:"time"`
	Color           string  `gorm:"size:32;not null" json:"color"`
	Recurrence      string  `gorm:"size:64;not null" json:"recurrence"`
	EndDate         *Date   `gorm:"type:date" json:"endDate"`
	MeetingLink     *string `gorm:"size:2048" json:"meetingLink"`
	ReminderEnabled bool    `gorm:"not null" json:"reminderEnabled"`
	ReminderMinutes int     `gorm:"not null" json:"reminderMinutes"`
	UserID          uint    `gorm:"not null;index:idx_events_user_date,priority:1" json:"userId"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

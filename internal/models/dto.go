package models

// AuthResponse is returned by every auth endpoint. A response with a Message
// and no ID is a failure, even though it is sent with status 200.
type AuthResponse struct {
	ID           *uint        `json:"id,omitempty"`
	Email        string       `json:"email,omitempty"`
	DisplayName  string       `json:"displayName,omitempty"`
	AvatarURL    string       `json:"avatarUrl,omitempty"`
	AuthProvider AuthProvider `json:"authProvider,omitempty"`
	Token        string       `json:"token,omitempty"`
	Message      string       `json:"message,omitempty"`
}

// Succeeded reports whether the response carries an identity.
func (r *AuthResponse) Succeeded() bool {
	return r != nil && r.ID != nil
}

// AuthFailure builds a message-only response.
func AuthFailure(message string) *AuthResponse {
	return &AuthResponse{Message: message}
}

// NewAuthResponse builds a profile response for user.
func NewAuthResponse(user *User, message string) *AuthResponse {
	id := user.ID
	return &AuthResponse{
		ID:           &id,
		Email:        user.Email,
		DisplayName:  user.DisplayName,
		AvatarURL:    user.AvatarURL,
		AuthProvider: user.AuthProvider,
		Message:      message,
	}
}

// EventDTO is the wire representation of an event.
type EventDTO struct {
	ID              uint    `json:"id"`
	Title           string  `json:"title"`
	Date            Date    `json:"date"`
	Time            *string `json:"time"`
	Color           string  `json:"color"`
	Recurrence      string  `json:"recurrence"`
	EndDate         *Date   `json:"endDate"`
	MeetingLink     *string `json:"meetingLink"`
	UserID          uint    `json:"userId"`
	ReminderEnabled bool    `json:"reminderEnabled"`
	ReminderMinutes int     `json:"reminderMinutes"`
}

// NewEventDTO maps a stored event to its wire form.
func NewEventDTO(e *Event) EventDTO {
	return EventDTO{
		ID:              e.ID,
		Title:           e.Title,
		Date:            e.Date,
		Time:            e.Time,
		Color:           e.Color,
		Recurrence:      e.Recurrence,
		EndDate:         e.EndDate,
		MeetingLink:     e.MeetingLink,
		UserID:          e.UserID,
		ReminderEnabled: e.ReminderEnabled,
		ReminderMinutes: e.ReminderMinutes,
	}
}

// EventPayload is the body accepted by event create and update. Dates stay
// strings here so that malformed values are reported per field.
type EventPayload struct {
	Title           string  `json:"title"`
	Date            string  `json:"date"`
	Time            *string `json:"time"`
	Color           string  `json:"color"`
	Recurrence      string  `json:"recurrence"`
	EndDate         *string `json:"endDate"`
	MeetingLink     *string `json:"meetingLink"`
	UserID          uint    `json:"userId"`
	ReminderEnabled *bool   `json:"reminderEnabled"`
	ReminderMinutes *int    `json:"reminderMinutes"`
}

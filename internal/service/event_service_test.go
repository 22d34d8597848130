package service

import (
	"context"
	"strings"
	"testing"

	"calendarapp/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventService_Lifecycle(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	uid := f.register(t, "a@x.com", "secret1", "A")

	created, err := f.event.Create(ctx, CreateEventInput{
		ActorID: uid,
		Payload: models.EventPayload{UserID: uid, Title: "Standup", Date: "2024-01-10"},
	})
	require.NoError(t, err)
	assert.NotZero(t, created.ID)
	assert.Equal(t, uid, created.UserID)
	assert.Equal(t, "primary", created.Color)
	assert.Equal(t, "none", created.Recurrence)
	assert.True(t, created.ReminderEnabled)
	assert.Equal(t, 15, created.ReminderMinutes)

	updated, err := f.event.Update(ctx, UpdateEventInput{
		ActorID: uid,
		EventID: created.ID,
		Payload: models.EventPayload{Title: "Standup v2", Date: "2024-01-11", Color: "blue", Recurrence: "weekly"},
	})
	require.NoError(t, err)
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, "Standup v2", updated.Title)
	assert.Equal(t, "2024-01-11", updated.Date.String())
	assert.Equal(t, "blue", updated.Color)
	assert.Equal(t, "weekly", updated.Recurrence)
	assert.Equal(t, uid, updated.UserID)

	require.NoError(t, f.event.Delete(ctx, DeleteEventInput{ActorID: uid, EventID: created.ID}))

	list, err := f.event.List(ctx, uid)
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)

	err = f.event.Delete(ctx, DeleteEventInput{ActorID: uid, EventID: created.ID})
	assertAppErrorCode(t, err, models.CodeNotFound)
}

func TestEventService_RoundTripAllFields(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	uid := f.register(t, "a@x.com", "secret1", "A")

	payload := models.EventPayload{
		UserID:          uid,
		Title:           "Planning",
		Date:            "2024-03-01",
		Time:            ptr("14:00"),
		Color:           "green",
		Recurrence:      "monthly",
		EndDate:         ptr("2024-03-02"),
		MeetingLink:     ptr("https://meet.example.com/plan"),
		ReminderEnabled: ptr(false),
		ReminderMinutes: ptr(0),
	}
	created, err := f.event.Create(ctx, CreateEventInput{ActorID: uid, Payload: payload})
	require.NoError(t, err)

	list, err := f.event.List(ctx, uid)
	require.NoError(t, err)
	require.Len(t, list, 1)

	got := list[0]
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, "Planning", got.Title)
	assert.Equal(t, "2024-03-01", got.Date.String())
	require.NotNil(t, got.Time)
	assert.Equal(t, "14:00", *got.Time)
	assert.Equal(t, "green", got.Color)
	assert.Equal(t, "monthly", got.Recurrence)
	require.NotNil(t, got.EndDate)
	assert.Equal(t, "2024-03-02", got.EndDate.String())
	require.NotNil(t, got.MeetingLink)
	assert.Equal(t, "https://meet.example.com/plan", *got.MeetingLink)
	assert.False(t, got.ReminderEnabled)
	assert.Equal(t, 0, got.ReminderMinutes)
	assert.Equal(t, uid, got.UserID)
}

func TestEventService_ListOrderAndOwnership(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	alice := f.register(t, "alice@x.com", "secret1", "Alice")
	bob := f.register(t, "bob@x.com", "secret1", "Bob")

	for _, p := range []models.EventPayload{
		{UserID: alice, Title: "third", Date: "2024-05-03"},
		{UserID: alice, Title: "first", Date: "2024-05-01"},
		{UserID: bob, Title: "bob's", Date: "2024-05-02"},
		{UserID: alice, Title: "second", Date: "2024-05-01"},
	} {
		_, err := f.event.Create(ctx, CreateEventInput{Payload: p})
		require.NoError(t, err)
	}

	list, err := f.event.List(ctx, alice)
	require.NoError(t, err)
	titles := make([]string, 0, len(list))
	for _, e := range list {
		titles = append(titles, e.Title)
		assert.Equal(t, alice, e.UserID)
	}
	assert.Equal(t, []string{"first", "second", "third"}, titles)
}

func TestEventService_CreateFailures(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	uid := f.register(t, "a@x.com", "secret1", "A")

	t.Run("unknown owner", func(t *testing.T) {
		_, err := f.event.Create(ctx, CreateEventInput{Payload: models.EventPayload{UserID: 999, Title: "x", Date: "2024-01-10"}})
		assertAppErrorCode(t, err, models.CodeNotFound)

		n, err := f.events.CountByUser(ctx, 999)
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("another user's calendar", func(t *testing.T) {
		_, err := f.event.Create(ctx, CreateEventInput{ActorID: uid, Payload: models.EventPayload{UserID: uid + 1, Title: "x", Date: "2024-01-10"}})
		assertAppErrorCode(t, err, models.CodeForbidden)
	})

	t.Run("owner defaults to actor", func(t *testing.T) {
		dto, err := f.event.Create(ctx, CreateEventInput{ActorID: uid, Payload: models.EventPayload{Title: "x", Date: "2024-01-10"}})
		require.NoError(t, err)
		assert.Equal(t, uid, dto.UserID)
	})

	t.Run("malformed date", func(t *testing.T) {
		_, err := f.event.Create(ctx, CreateEventInput{ActorID: uid, Payload: models.EventPayload{Title: "x", Date: "01/10/2024"}})
		assertAppErrorCode(t, err, models.CodeValidation)
	})
}

func TestEventService_UpdateFailures(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	alice := f.register(t, "alice@x.com", "secret1", "Alice")
	mallory := f.register(t, "mallory@x.com", "secret1", "Mallory")

	created, err := f.event.Create(ctx, CreateEventInput{ActorID: alice, Payload: models.EventPayload{Title: "private", Date: "2024-01-10"}})
	require.NoError(t, err)

	_, err = f.event.Update(ctx, UpdateEventInput{ActorID: alice, EventID: 12345, Payload: models.EventPayload{Title: "x", Date: "2024-01-10"}})
	assertAppErrorCode(t, err, models.CodeNotFound)

	_, err = f.event.Update(ctx, UpdateEventInput{ActorID: mallory, EventID: created.ID, Payload: models.EventPayload{Title: "mine", Date: "2024-01-10"}})
	assertAppErrorCode(t, err, models.CodeForbidden)

	err = f.event.Delete(ctx, DeleteEventInput{ActorID: mallory, EventID: created.ID})
	assertAppErrorCode(t, err, models.CodeForbidden)
}

func TestEventService_UpdateResetsOmittedFields(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	uid := f.register(t, "a@x.com", "secret1", "A")

	created, err := f.event.Create(ctx, CreateEventInput{ActorID: uid, Payload: models.EventPayload{
		Title: "x", Date: "2024-01-10", Color: "red", Time: ptr("10:00"), ReminderMinutes: ptr(60),
	}})
	require.NoError(t, err)

	updated, err := f.event.Update(ctx, UpdateEventInput{ActorID: uid, EventID: created.ID, Payload: models.EventPayload{Title: "x", Date: "2024-01-10"}})
	require.NoError(t, err)
	assert.Equal(t, models.DefaultEventColor, updated.Color)
	assert.Nil(t, updated.Time)
	assert.Equal(t, models.DefaultReminderMinutes, updated.ReminderMinutes)
}

func TestEventService_Export(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	uid := f.register(t, "a@x.com", "secret1", "A")

	for _, title := range []string{"one", "two"} {
		_, err := f.event.Create(ctx, CreateEventInput{ActorID: uid, Payload: models.EventPayload{Title: title, Date: "2024-01-10"}})
		require.NoError(t, err)
	}

	data, err := f.event.Export(ctx, uid)
	require.NoError(t, err)
	out := string(data)
	assert.Equal(t, 2, strings.Count(out, "BEGIN:VEVENT"))
	assert.Equal(t, 2, strings.Count(out, "BEGIN:VALARM"))
}

func TestUserDeletionRemovesEvents(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	uid := f.register(t, "a@x.com", "secret1", "A")

	_, err := f.event.Create(ctx, CreateEventInput{ActorID: uid, Payload: models.EventPayload{Title: "x", Date: "2024-01-10"}})
	require.NoError(t, err)

	require.NoError(t, f.users.Delete(ctx, uid))

	n, err := f.events.CountByUser(ctx, uid)
	require.NoError(t, err)
	assert.Zero(t, n)
}

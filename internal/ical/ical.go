// Package ical renders calendar events as an iCalendar feed.
package ical

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"calendarapp/internal/models"

	goical "github.com/emersion/go-ical"
)

const (
	ProductID = "-//calendarapp//EN"
	// ContentType is the media type of an exported feed.
	ContentType = "text/calendar; charset=utf-8"

	PropColor      = "X-CALENDARAPP-COLOR"
	PropRecurrence = "X-CALENDARAPP-RECURRENCE"

	dateLayout          = "20060102"
	floatingTimeLayout  = "20060102T150405"
	eventClockLayout    = "15:04"
	eventClockLayoutSec = "15:04:05"
)

// UID returns the stable iCalendar UID of an event.
func UID(eventID uint) string {
	return fmt.Sprintf("event-%d@calendarapp", eventID)
}

// Marshal encodes events into a VCALENDAR document. stamp is used as DTSTAMP.
func Marshal(events []models.Event, stamp time.Time) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, events, stamp); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Encode writes events as a VCALENDAR document to w.
func Encode(w io.Writer, events []models.Event, stamp time.Time) error {
	// go-ical refuses a calendar without components.
	if len(events) == 0 {
		return encodeEmpty(w)
	}

	cal := goical.NewCalendar()
	cal.Props.SetText(goical.PropVersion, "2.0")
	cal.Props.SetText(goical.PropProductID, ProductID)

	for i := range events {
		cal.Children = append(cal.Children, toVEvent(&events[i], stamp.UTC()))
	}

	if err := goical.NewEncoder(w).Encode(cal); err != nil {
		return fmt.Errorf("encode calendar: %w", err)
	}
	return nil
}

func encodeEmpty(w io.Writer) error {
	body := strings.Join([]string{
		"BEGIN:" + goical.CompCalendar,
		goical.PropVersion + ":2.0",
		goical.PropProductID + ":" + ProductID,
		"END:" + goical.CompCalendar,
		"",
	}, "\r\n")
	if _, err := io.WriteString(w, body); err != nil {
		return fmt.Errorf("encode calendar: %w", err)
	}
	return nil
}

func toVEvent(e *models.Event, stamp time.Time) *goical.Component {
	ve := goical.NewComponent(goical.CompEvent)
	ve.Props.SetText(goical.PropUID, UID(e.ID))
	ve.Props.SetText(goical.PropSummary, e.Title)
	ve.Props.SetDateTime(goical.PropDateTimeStamp, stamp)

	if clock, ok := parseClock(e.Time); ok {
		// Event times carry no zone, so they are written as floating local times.
		ve.Props.Set(rawProp(goical.PropDateTimeStart, atClock(e.Date, clock).Format(floatingTimeLayout)))
		if e.EndDate != nil {
			ve.Props.Set(rawProp(goical.PropDateTimeEnd, atClock(*e.EndDate, clock).Format(floatingTimeLayout)))
		}
	} else {
		ve.Props.Set(dateProp(goical.PropDateTimeStart, e.Date))
		if e.EndDate != nil {
			// DTEND is exclusive for all-day events.
			ve.Props.Set(dateProp(goical.PropDateTimeEnd, e.EndDate.AddDays(1)))
		}
	}

	if e.MeetingLink != nil && *e.MeetingLink != "" {
		ve.Props.Set(rawProp(goical.PropURL, *e.MeetingLink))
	}
	if e.Color != "" {
		ve.Props.Set(rawProp(PropColor, e.Color))
	}
	if e.Recurrence != "" {
		ve.Props.Set(rawProp(PropRecurrence, e.Recurrence))
	}

	if e.ReminderEnabled {
		alarm := goical.NewComponent(goical.CompAlarm)
		alarm.Props.Set(rawProp(goical.PropAction, "DISPLAY"))
		alarm.Props.Set(rawProp(goical.PropTrigger, fmt.Sprintf("-PT%dM", e.ReminderMinutes)))
		alarm.Props.SetText(goical.PropDescription, e.Title)
		ve.Children = append(ve.Children, alarm)
	}

	return ve
}

func rawProp(name, value string) *goical.Prop {
	p := goical.NewProp(name)
	p.Value = value
	return p
}

func dateProp(name string, d models.Date) *goical.Prop {
	p := rawProp(name, d.Format(dateLayout))
	p.Params.Set(goical.ParamValue, string(goical.ValueDate))
	return p
}

// parseClock accepts HH:MM or HH:MM:SS. Anything else is treated as an
// all-day event.
func parseClock(s *string) (time.Time, bool) {
	if s == nil {
		return time.Time{}, false
	}
	v := strings.TrimSpace(*s)
	for _, layout := range []string{eventClockLayout, eventClockLayoutSec} {
		if t, err := time.Parse(layout, v); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func atClock(d models.Date, clock time.Time) time.Time {
	return time.Date(d.Year(), d.Month(), d.Day(), clock.Hour(), clock.Minute(), clock.Second(), 0, time.UTC)
}

package export

import (
	"fmt"
	"time"

	ics "github.com/arran4/golang-ical"
)

// CalendarEvent is one all-day span in an iCalendar feed. End is the last included day.
type CalendarEvent struct {
	UID         string
	Summary     string
	Description string
	Start       time.Time
	End         time.Time
}

// CalendarExporter renders events as an iCalendar document.
type CalendarExporter struct {
	productID string
	now       func() time.Time
}

// NewCalendarExporter constructs a calendar exporter stamping events with now.
func NewCalendarExporter(productID string, now func() time.Time) *CalendarExporter {
	if productID == "" {
		productID = "-//internship-api//weekly reports//EN"
	}
	if now == nil {
		now = time.Now
	}
	return &CalendarExporter{productID: productID, now: now}
}

// Render produces the serialized calendar.
func (e *CalendarExporter) Render(name string, events []CalendarEvent) ([]byte, error) {
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId(e.productID)
	if name != "" {
		cal.SetXWRCalName(name)
	}

	stamp := e.now().UTC()
	for _, evt := range events {
		if evt.UID == "" {
			return nil, fmt.Errorf("calendar event requires uid")
		}
		if evt.End.Before(evt.Start) {
			return nil, fmt.Errorf("calendar event %s ends before it starts", evt.UID)
		}
		event := cal.AddEvent(evt.UID)
		event.SetDtStampTime(stamp)
		event.SetAllDayStartAt(evt.Start)
		// DTEND is exclusive for all-day events.
		event.SetAllDayEndAt(evt.End.AddDate(0, 0, 1))
		event.SetSummary(evt.Summary)
		if evt.Description != "" {
			event.SetDescription(evt.Description)
		}
	}
	return []byte(cal.Serialize()), nil
}

package export

import (
	"fmt"
	"time"

	ics "github.com/arran4/golang-ical"
)

// Event is one recurring weekly session.
type Event struct {
	UID         string
	Summary     string
	Description string
	Location    string
	Start       time.Time
	End         time.Time
}

// Calendar is the set of events written to one iCalendar file.
type Calendar struct {
	Name   string
	Weeks  int
	Events []Event
}

// ICSExporter renders calendars as RFC 5545 documents with weekly recurrence.
type ICSExporter struct {
	productID string
}

// NewICSExporter constructs an ICS exporter.
func NewICSExporter(productID string) *ICSExporter {
	if productID == "" {
		productID = "-//timetable-api//EN"
	}
	return &ICSExporter{productID: productID}
}

// Render serialises the calendar.
func (e *ICSExporter) Render(data Calendar) ([]byte, error) {
	if len(data.Events) == 0 {
		return nil, fmt.Errorf("calendar has no events")
	}
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId(e.productID)
	if data.Name != "" {
		cal.SetName(data.Name)
	}

	rule := "FREQ=WEEKLY"
	if data.Weeks > 0 {
		rule = fmt.Sprintf("FREQ=WEEKLY;COUNT=%d", data.Weeks)
	}
	stamp := time.Now().UTC()
	for _, item := range data.Events {
		if !item.End.After(item.Start) {
			return nil, fmt.Errorf("event %s ends before it starts", item.UID)
		}
		event := cal.AddEvent(item.UID)
		event.SetDtStampTime(stamp)
		event.SetStartAt(item.Start)
		event.SetEndAt(item.End)
		event.SetSummary(item.Summary)
		if item.Description != "" {
			event.SetDescription(item.Description)
		}
		if item.Location != "" {
			event.SetLocation(item.Location)
		}
		event.AddRrule(rule)
	}
	return []byte(cal.Serialize()), nil
}

// Package calendar exports shows as an iCalendar feed.
package calendar

import (
	"fmt"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"

	"github.com/superjcast/showwatch/pkg/datetime"
	"github.com/superjcast/showwatch/pkg/storage"
)

const (
	ProductID = "-//showwatch//schedule//EN"
	// ShowLength is the assumed running time of a show.
	ShowLength = 3 * time.Hour
	floating   = "20060102T150405"
)

// Build renders shows as a calendar. Shows without a start are left out;
// date-only shows become all-day events and naive times stay floating.
func Build(shows []storage.Show, now time.Time) string {
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId(ProductID)

	for _, s := range shows {
		if s.Start.IsZero() {
			continue
		}
		ev := cal.AddEvent(UID(s))
		ev.SetDtStampTime(now.UTC())
		ev.SetSummary(s.Name)
		if loc := location(s); loc != "" {
			ev.SetLocation(loc)
		}
		if s.Card != "" {
			ev.SetURL(s.Card)
		}
		switch s.SourceTZ {
		case datetime.TagNone:
			ev.SetAllDayStartAt(s.Start)
			ev.SetAllDayEndAt(s.Start.AddDate(0, 0, 1))
		case datetime.TagLocal:
			ev.SetProperty(ics.ComponentPropertyDtStart, s.Start.Format(floating))
			ev.SetProperty(ics.ComponentPropertyDtEnd, s.Start.Add(ShowLength).Format(floating))
			ev.SetDescription("Start time is local to the venue.")
		default:
			ev.SetStartAt(s.Start)
			ev.SetEndAt(s.Start.Add(ShowLength))
		}
	}
	return cal.Serialize()
}

// UID is stable across exports so calendar clients update events in place.
func UID(s storage.Show) string {
	return fmt.Sprintf("%s-%d@showwatch", s.Collection, s.ID)
}

func location(s storage.Show) string {
	var parts []string
	for _, p := range []string{s.Venue, s.City} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

package ics

import (
	"errors"
	"fmt"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"

	"jamati/internal/model"
)

const productID = "-//jamati//lecture schedule//EN"

var weekdayCodes = map[time.Weekday]string{
	time.Sunday:    "SU",
	time.Monday:    "MO",
	time.Tuesday:   "TU",
	time.Wednesday: "WE",
	time.Thursday:  "TH",
	time.Friday:    "FR",
	time.Saturday:  "SA",
}

var rruleWeekdays = map[time.Weekday]rrule.Weekday{
	time.Sunday:    rrule.SU,
	time.Monday:    rrule.MO,
	time.Tuesday:   rrule.TU,
	time.Wednesday: rrule.WE,
	time.Thursday:  rrule.TH,
	time.Friday:    rrule.FR,
	time.Saturday:  rrule.SA,
}

// NextOccurrence returns the first start of l at or after from, in from's
// location, by expanding the lecture as a weekly rule.
func NextOccurrence(l model.Lecture, from time.Time) (time.Time, error) {
	wd, ok := l.Day.Weekday()
	if !ok {
		return time.Time{}, fmt.Errorf("ics: lecture %s has unknown day %q", l.ID, l.Day)
	}
	// Anchor a week back so that an occurrence earlier today is still
	// considered by After(from, inclusive).
	anchor, err := l.At(from.AddDate(0, 0, -7))
	if err != nil {
		return time.Time{}, err
	}

	r, err := rrule.NewRRule(rrule.ROption{
		Freq:      rrule.WEEKLY,
		Dtstart:   anchor,
		Byweekday: []rrule.Weekday{rruleWeekdays[wd]},
	})
	if err != nil {
		return time.Time{}, err
	}
	next := r.After(from, true)
	if next.IsZero() {
		return time.Time{}, errors.New("ics: no next occurrence")
	}
	return next, nil
}

// ExportConfig controls Export.
type ExportConfig struct {
	// From anchors DTSTART: each event starts at the lecture's next
	// occurrence at or after From, in From's location.
	From time.Time
	// Duration is DTEND - DTSTART; lectures carry no end time.
	Duration time.Duration
	// CalendarName is written as X-WR-CALNAME when non-empty.
	CalendarName string
	// ProfessorLabel prefixes the professor line in DESCRIPTION.
	ProfessorLabel string
}

// Export renders lectures as an iCalendar feed with one weekly recurring
// VEVENT per lecture. Times are written in UTC, so BYDAY is the UTC weekday
// of the first occurrence.
func Export(lectures []model.Lecture, cfg ExportConfig) (string, error) {
	if cfg.From.IsZero() {
		cfg.From = time.Now()
	}
	if cfg.Duration <= 0 {
		cfg.Duration = 90 * time.Minute
	}
	if cfg.ProfessorLabel == "" {
		cfg.ProfessorLabel = "Professor"
	}

	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)
	if cfg.CalendarName != "" {
		cal.SetXWRCalName(cfg.CalendarName)
	}

	stamp := cfg.From.UTC()
	for _, l := range lectures {
		start, err := NextOccurrence(l, cfg.From)
		if err != nil {
			return "", err
		}

		ev := cal.AddEvent(l.ID + "@jamati")
		ev.SetDtStampTime(stamp)
		ev.SetStartAt(start)
		ev.SetEndAt(start.Add(cfg.Duration))
		ev.SetSummary(l.Name)
		ev.SetLocation(l.Location)
		ev.SetProperty(ical.ComponentPropertyCategories, string(l.Type))
		if l.Professor != "" {
			ev.SetDescription(cfg.ProfessorLabel + ": " + l.Professor)
		}
		ev.SetProperty(ical.ComponentPropertyRrule, "FREQ=WEEKLY;BYDAY="+weekdayCodes[start.UTC().Weekday()])
	}

	return cal.Serialize(), nil
}

// professorFromDescription extracts "x" from a "<label>: x" line.
func professorFromDescription(desc string) string {
	for _, line := range strings.Split(desc, "\n") {
		if _, after, ok := strings.Cut(line, ":"); ok {
			return strings.TrimSpace(after)
		}
	}
	return ""
}

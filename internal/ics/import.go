package ics

import (
	"fmt"
	"io"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"

	appLog "jamati/internal/log"
	"jamati/internal/model"
)

var textUnescaper = strings.NewReplacer(`\n`, "\n", `\N`, "\n", `\,`, ",", `\;`, ";", `\\`, `\`)

func propValue(ev *ical.VEvent, p ical.ComponentProperty) string {
	prop := ev.GetProperty(p)
	if prop == nil {
		return ""
	}
	return textUnescaper.Replace(prop.Value)
}

// Import reads an iCalendar stream and turns each usable VEVENT into lecture
// drafts. A weekly event yields one draft per BYDAY day; a single event
// yields one draft for its own weekday. Days and times are taken in loc.
// Events that cannot be mapped onto a weekly schedule are skipped and
// logged.
func Import(r io.Reader, loc *time.Location) ([]model.Draft, error) {
	if loc == nil {
		loc = time.Local
	}
	cal, err := ical.ParseCalendar(r)
	if err != nil {
		return nil, fmt.Errorf("ics: parse: %w", err)
	}

	var drafts []model.Draft
	for _, ev := range cal.Events() {
		ds, err := eventDrafts(ev, loc)
		if err != nil {
			appLog.Warn("ics import: skipping event", "uid", ev.Id(), "error", err.Error())
			continue
		}
		drafts = append(drafts, ds...)
	}
	appLog.Info("ics import parsed", "events", len(cal.Events()), "drafts", len(drafts))
	return drafts, nil
}

func eventDrafts(ev *ical.VEvent, loc *time.Location) ([]model.Draft, error) {
	start, err := ev.GetStartAt()
	if err != nil {
		return nil, fmt.Errorf("dtstart: %w", err)
	}

	base := model.Draft{
		Name:      strings.TrimSpace(propValue(ev, ical.ComponentPropertySummary)),
		Type:      model.Other,
		Professor: professorFromDescription(propValue(ev, ical.ComponentPropertyDescription)),
		StartTime: start.In(loc).Format("15:04"),
		Location:  strings.TrimSpace(propValue(ev, ical.ComponentPropertyLocation)),
	}
	for _, c := range strings.Split(propValue(ev, ical.ComponentPropertyCategories), ",") {
		if t, err := model.ParseLectureType(c); err == nil {
			base.Type = t
			break
		}
	}

	weekdays, err := eventWeekdays(ev, start)
	if err != nil {
		return nil, err
	}

	// BYDAY is relative to DTSTART's own zone; moving the start into loc
	// can cross midnight, so every listed day shifts by the same amount.
	shift := int(start.In(loc).Weekday()) - int(start.Weekday())

	out := make([]model.Draft, 0, len(weekdays))
	for _, wd := range weekdays {
		d := base
		d.Day = model.Days[(int(wd)+shift+7)%7]
		out = append(out, d)
	}
	return out, nil
}

// eventWeekdays returns the weekdays the event recurs on, in DTSTART's zone.
func eventWeekdays(ev *ical.VEvent, start time.Time) ([]time.Weekday, error) {
	rule := ev.GetProperty(ical.ComponentPropertyRrule)
	if rule == nil {
		return []time.Weekday{start.Weekday()}, nil
	}

	opt, err := rrule.StrToROption(rule.Value)
	if err != nil {
		return nil, fmt.Errorf("rrule: %w", err)
	}
	if opt.Freq != rrule.WEEKLY {
		return nil, fmt.Errorf("unsupported recurrence %q", rule.Value)
	}
	if opt.Interval > 1 {
		return nil, fmt.Errorf("unsupported interval %d", opt.Interval)
	}
	if len(opt.Byweekday) == 0 {
		return []time.Weekday{start.Weekday()}, nil
	}

	out := make([]time.Weekday, 0, len(opt.Byweekday))
	for _, w := range opt.Byweekday {
		// rrule numbers weekdays from Monday.
		out = append(out, time.Weekday((w.Day()+1)%7))
	}
	return out, nil
}

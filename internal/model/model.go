package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// LectureType is the closed set of lecture kinds.
type LectureType string

const (
	Theoretical LectureType = "Theoretical"
	Practical   LectureType = "Practical"
	Lab         LectureType = "Lab"
	Seminar     LectureType = "Seminar"
	Workshop    LectureType = "Workshop"
	Tutorial    LectureType = "Tutorial"
	Other       LectureType = "Other"
)

// LectureTypes lists every LectureType in form order.
var LectureTypes = []LectureType{Theoretical, Practical, Lab, Seminar, Workshop, Tutorial, Other}

func (t LectureType) Valid() bool {
	for _, v := range LectureTypes {
		if v == t {
			return true
		}
	}
	return false
}

// Day is an English weekday name as stored in the lecture collection.
type Day string

const (
	Sunday    Day = "Sunday"
	Monday    Day = "Monday"
	Tuesday   Day = "Tuesday"
	Wednesday Day = "Wednesday"
	Thursday  Day = "Thursday"
	Friday    Day = "Friday"
	Saturday  Day = "Saturday"
)

// Days is the display order of the schedule grid (week starts on Sunday).
var Days = []Day{Sunday, Monday, Tuesday, Wednesday, Thursday, Friday, Saturday}

func (d Day) Valid() bool {
	_, ok := d.Weekday()
	return ok
}

// Weekday maps d onto time.Weekday.
func (d Day) Weekday() (time.Weekday, bool) {
	for i, v := range Days {
		if v == d {
			return time.Weekday(i), true
		}
	}
	return 0, false
}

// DayOf returns the Day for t's weekday in t's location.
func DayOf(t time.Time) Day {
	return Days[t.Weekday()]
}

// ParseDay accepts a day name case-insensitively ("monday", "MON").
func ParseDay(s string) (Day, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, d := range Days {
		name := strings.ToLower(string(d))
		if s == name || (len(s) >= 3 && strings.HasPrefix(name, s)) {
			return d, nil
		}
	}
	return "", fmt.Errorf("unknown day %q", s)
}

// ParseLectureType accepts a type name case-insensitively.
func ParseLectureType(s string) (LectureType, error) {
	for _, t := range LectureTypes {
		if strings.EqualFold(strings.TrimSpace(s), string(t)) {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown lecture type %q", s)
}

// Lecture is one recurring weekly class. It is created once and never
// edited; the only way to change a lecture is to delete and re-add it.
type Lecture struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Type      LectureType `json:"type"`
	Professor string      `json:"professor,omitempty"`
	StartTime string      `json:"startTime"`
	Location  string      `json:"location"`
	Day       Day         `json:"day"`
}

// Draft is a Lecture before it has been assigned an id.
type Draft struct {
	Name      string      `json:"name" validate:"required"`
	Type      LectureType `json:"type" validate:"required,lecturetype"`
	Professor string      `json:"professor,omitempty"`
	StartTime string      `json:"startTime" validate:"required,clock"`
	Location  string      `json:"location" validate:"required"`
	Day       Day         `json:"day" validate:"required,day"`
}

// ParseClock parses a zero-padded 24-hour "HH:MM" string.
func ParseClock(s string) (hour, minute int, err error) {
	if len(s) != 5 || s[2] != ':' {
		return 0, 0, fmt.Errorf("invalid time %q: want HH:MM", s)
	}
	for _, i := range []int{0, 1, 3, 4} {
		if s[i] < '0' || s[i] > '9' {
			return 0, 0, fmt.Errorf("invalid time %q: want HH:MM", s)
		}
	}
	hour, err = strconv.Atoi(s[:2])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", s)
	}
	minute, err = strconv.Atoi(s[3:])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", s)
	}
	return hour, minute, nil
}

// At returns the instant on t's calendar date (in t's location) at the
// lecture's start time.
func (l Lecture) At(t time.Time) (time.Time, error) {
	h, m, err := ParseClock(l.StartTime)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(t.Year(), t.Month(), t.Day(), h, m, 0, 0, t.Location()), nil
}

package notify

import (
	"strconv"
	"time"

	"jamati/internal/lecture"
	appLog "jamati/internal/log"
	"jamati/internal/model"
)

// Kind distinguishes the two notification rules.
type Kind string

const (
	KindSummary  Kind = "summary"
	KindReminder Kind = "reminder"
)

// Notification is one message the scheduler decided to show.
type Notification struct {
	Kind      Kind
	LectureID string
	Title     string
	Body      string
}

// Texts resolves notification wording; *i18n.Resolver satisfies it.
type Texts interface {
	T(key string) string
	Tf(key string, pairs ...string) string
}

// The reminder fires when the lecture starts strictly between these many
// minutes from now. The window is one tick wide, so with ticks every 60s
// exactly one tick lands inside it.
const (
	reminderWindowLow  = 29.5
	reminderWindowHigh = 30.5
)

// Evaluate decides which notifications are due at now. It is pure apart
// from logging; "today" is now's weekday in now's location.
//
// The summary fires on the exact minute of summaryTime. A reminder fires
// for each of today's lectures starting in (29.5, 30.5) minutes. Nothing
// is remembered between calls, so an instant missed while the process is
// not running is never caught up.
func Evaluate(now time.Time, lectures []model.Lecture, summaryTime string, texts Texts) []Notification {
	todayLectures := lecture.ForDay(lectures, model.DayOf(now))
	var out []Notification

	if h, m, err := model.ParseClock(summaryTime); err != nil {
		appLog.Error("invalid daily summary time; skipping summary", err, "summary_time", summaryTime)
	} else if now.Hour() == h && now.Minute() == m {
		body := texts.T("notifications.summaryNone")
		if n := len(todayLectures); n > 0 {
			body = texts.Tf("notifications.summarySome", "count", strconv.Itoa(n))
		}
		out = append(out, Notification{
			Kind:  KindSummary,
			Title: texts.T("notifications.summaryTitle"),
			Body:  body,
		})
	}

	for _, l := range todayLectures {
		start, err := l.At(now)
		if err != nil {
			appLog.Error("invalid lecture start time; skipping reminder", err, "id", l.ID, "start", l.StartTime)
			continue
		}
		diff := start.Sub(now).Minutes()
		if diff <= reminderWindowLow || diff >= reminderWindowHigh {
			continue
		}

		professor := l.Professor
		if professor == "" {
			professor = texts.T("notifications.noProfessor")
		}
		out = append(out, Notification{
			Kind:      KindReminder,
			LectureID: l.ID,
			Title:     texts.Tf("notifications.reminderTitle", "name", l.Name),
			Body: texts.Tf("notifications.reminderBody",
				"time", l.StartTime,
				"location", l.Location,
				"professor", professor),
		})
	}

	return out
}

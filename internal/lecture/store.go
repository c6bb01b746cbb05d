// Package lecture holds the lecture collection: validation, add/delete,
// search and the day-grouped view. The collection lives in a persisted
// value, so every mutation is written through before the call returns.
package lecture

import (
	"errors"
	"slices"
	"sort"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/text/cases"

	"jamati/internal/kvstore"
	appLog "jamati/internal/log"
	"jamati/internal/model"
	"jamati/internal/persisted"
)

// StorageKey is where the lecture collection is persisted.
const StorageKey = "jamati-lectures"

// FirstVisitKey is set once the user has been greeted.
const FirstVisitKey = "jamati-first-time-visit"

var ErrNotFound = errors.New("lecture not found")

// Labeler translates dotted keys; *i18n.Resolver satisfies it.
type Labeler interface {
	T(key string) string
}

// Store is the in-memory lecture collection backed by the kv store.
type Store struct {
	kv    kvstore.Store
	value *persisted.Value[[]model.Lecture]
	newID func() string
}

// Option customizes NewStore.
type Option func(*Store)

// WithIDFunc replaces the UUID generator, mainly for deterministic tests.
func WithIDFunc(fn func() string) Option {
	return func(s *Store) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// NewStore loads the collection from kv. A missing or corrupt value yields
// an empty collection.
func NewStore(kv kvstore.Store, opts ...Option) *Store {
	s := &Store{
		kv:    kv,
		value: persisted.New(kv, StorageKey, []model.Lecture{}),
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// All returns a copy of the collection in storage order.
func (s *Store) All() []model.Lecture {
	return slices.Clone(s.value.Get())
}

func (s *Store) Count() int {
	return len(s.value.Get())
}

// Get looks a lecture up by id.
func (s *Store) Get(id string) (model.Lecture, bool) {
	for _, l := range s.value.Get() {
		if l.ID == id {
			return l, true
		}
	}
	return model.Lecture{}, false
}

// Add validates d, assigns a fresh id and appends the lecture.
func (s *Store) Add(d model.Draft) (model.Lecture, error) {
	if err := Validate(d); err != nil {
		return model.Lecture{}, err
	}
	d = normalize(d)

	var added model.Lecture
	s.value.Update(func(old []model.Lecture) []model.Lecture {
		added = model.Lecture{
			ID:        s.uniqueID(old),
			Name:      d.Name,
			Type:      d.Type,
			Professor: d.Professor,
			StartTime: d.StartTime,
			Location:  d.Location,
			Day:       d.Day,
		}
		next := make([]model.Lecture, 0, len(old)+1)
		next = append(next, old...)
		return append(next, added)
	})

	appLog.Info("lecture added", "id", added.ID, "day", added.Day, "start", added.StartTime)
	return added, nil
}

func (s *Store) uniqueID(existing []model.Lecture) string {
	for {
		id := s.newID()
		taken := slices.ContainsFunc(existing, func(l model.Lecture) bool { return l.ID == id })
		if id != "" && !taken {
			return id
		}
	}
}

// Delete removes exactly the lecture with id. Confirmation is the caller's
// responsibility.
func (s *Store) Delete(id string) error {
	if _, ok := s.Get(id); !ok {
		return ErrNotFound
	}
	s.value.Update(func(old []model.Lecture) []model.Lecture {
		return slices.DeleteFunc(slices.Clone(old), func(l model.Lecture) bool { return l.ID == id })
	})
	appLog.Info("lecture deleted", "id", id)
	return nil
}

// Replace overwrites the whole collection, used by import.
func (s *Store) Replace(lectures []model.Lecture) {
	s.value.Set(slices.Clone(lectures))
}

// OnChange registers fn to run after every change, local or external.
func (s *Store) OnChange(fn func([]model.Lecture)) {
	s.value.OnChange(fn)
}

// FirstVisit reports whether the user should be greeted: the flag has never
// been written and there are no lectures. Calling it marks the greeting as
// done.
func (s *Store) FirstVisit() bool {
	if _, err := s.kv.Get(FirstVisitKey); !errors.Is(err, kvstore.ErrNotFound) {
		return false
	}
	if s.Count() > 0 {
		return false
	}
	if err := s.kv.Set(FirstVisitKey, "false"); err != nil {
		appLog.Error("failed to record first visit", err)
	}
	return true
}

func (s *Store) Close() {
	s.value.Close()
}

// Search returns the lectures whose translated type label, translated day
// label, name, professor or location contains q, ignoring case. An empty
// query returns everything. With labels still loading, the type and day
// match against their raw key text.
func (s *Store) Search(q string, labels Labeler) []model.Lecture {
	all := s.All()
	if q == "" {
		return all
	}

	fold := cases.Fold()
	needle := fold.String(q)
	contains := func(hay string) bool {
		return hay != "" && strings.Contains(fold.String(hay), needle)
	}

	out := make([]model.Lecture, 0, len(all))
	for _, l := range all {
		if contains(label(labels, "lectureTypes."+string(l.Type))) ||
			contains(label(labels, "days."+string(l.Day))) ||
			contains(l.Name) ||
			contains(l.Professor) ||
			contains(l.Location) {
			out = append(out, l)
		}
	}
	return out
}

func label(labels Labeler, key string) string {
	if labels == nil {
		return key
	}
	return labels.T(key)
}

// DayGroup is one column of the schedule grid.
type DayGroup struct {
	Day      model.Day       `json:"day"`
	Lectures []model.Lecture `json:"lectures"`
}

// GroupByDay buckets lectures into all seven days in display order, each
// sorted by start time. Zero-padded HH:MM sorts correctly as text.
func GroupByDay(lectures []model.Lecture) []DayGroup {
	groups := make([]DayGroup, len(model.Days))
	index := make(map[model.Day]int, len(model.Days))
	for i, d := range model.Days {
		groups[i] = DayGroup{Day: d, Lectures: []model.Lecture{}}
		index[d] = i
	}
	for _, l := range lectures {
		i, ok := index[l.Day]
		if !ok {
			continue
		}
		groups[i].Lectures = append(groups[i].Lectures, l)
	}
	for i := range groups {
		sort.SliceStable(groups[i].Lectures, func(a, b int) bool {
			return groups[i].Lectures[a].StartTime < groups[i].Lectures[b].StartTime
		})
	}
	return groups
}

// ForDay returns the lectures scheduled on d.
func ForDay(lectures []model.Lecture, d model.Day) []model.Lecture {
	out := make([]model.Lecture, 0)
	for _, l := range lectures {
		if l.Day == d {
			out = append(out, l)
		}
	}
	return out
}

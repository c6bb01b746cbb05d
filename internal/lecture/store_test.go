package lecture

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"testing"

	"jamati/internal/i18n"
	"jamati/internal/kvstore"
	"jamati/internal/model"
	"jamati/internal/persisted"
)

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("lecture-%d", n)
	}
}

func sampleDrafts() []model.Draft {
	return []model.Draft{
		{Name: "Calculus I", Type: model.Theoretical, Professor: "Dr. Huda", StartTime: "10:00", Location: "Hall A", Day: model.Monday},
		{Name: "Chemistry", Type: model.Lab, StartTime: "08:30", Location: "Lab 3", Day: model.Monday},
		{Name: "Ethics", Type: model.Seminar, Professor: "Prof. Karim", StartTime: "13:15", Location: "Room 12", Day: model.Wednesday},
	}
}

func loadedResolver(t *testing.T, store kvstore.Store, lang i18n.Language) *i18n.Resolver {
	t.Helper()
	value := persisted.New(store, i18n.StorageKey, lang)
	t.Cleanup(value.Close)
	r := i18n.NewResolver(value)
	r.Load(context.Background(), i18n.Embedded())
	return r
}

func ids(ls []model.Lecture) []string {
	out := make([]string, 0, len(ls))
	for _, l := range ls {
		out = append(out, l.ID)
	}
	sort.Strings(out)
	return out
}

func TestAdd_AssignsDistinctIDs(t *testing.T) {
	s := NewStore(kvstore.NewMemory())
	defer s.Close()

	const n = 25
	for i := 0; i < n; i++ {
		d := sampleDrafts()[i%3]
		if _, err := s.Add(d); err != nil {
			t.Fatalf("Add returned error: %v", err)
		}
	}

	seen := make(map[string]bool)
	for _, l := range s.All() {
		if l.ID == "" || seen[l.ID] {
			t.Fatalf("duplicate or empty id %q", l.ID)
		}
		seen[l.ID] = true
	}
	if len(seen) != n {
		t.Fatalf("expected %d distinct ids, got %d", n, len(seen))
	}
}

func TestAdd_RetriesCollidingIDs(t *testing.T) {
	calls := 0
	ids := []string{"a", "a", "", "b"}
	s := NewStore(kvstore.NewMemory(), WithIDFunc(func() string {
		id := ids[calls]
		calls++
		return id
	}))

	first, _ := s.Add(sampleDrafts()[0])
	second, _ := s.Add(sampleDrafts()[1])
	if first.ID != "a" || second.ID != "b" {
		t.Fatalf("expected ids a and b, got %q and %q", first.ID, second.ID)
	}
}

func TestAdd_RejectsInvalidDraftWithoutMutation(t *testing.T) {
	kv := kvstore.NewMemory()
	s := NewStore(kv)

	cases := map[string]model.Draft{
		"missing name":     {Type: model.Lab, StartTime: "09:00", Location: "X", Day: model.Monday},
		"blank location":   {Name: "A", Type: model.Lab, StartTime: "09:00", Location: "   ", Day: model.Monday},
		"bad time":         {Name: "A", Type: model.Lab, StartTime: "9:00", Location: "X", Day: model.Monday},
		"unknown type":     {Name: "A", Type: "Lecture", StartTime: "09:00", Location: "X", Day: model.Monday},
		"unknown day":      {Name: "A", Type: model.Lab, StartTime: "09:00", Location: "X", Day: "Someday"},
		"everything empty": {},
	}
	for name, d := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := s.Add(d)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if len(verr.Fields) == 0 {
				t.Fatalf("expected offending fields to be listed")
			}
		})
	}

	if s.Count() != 0 {
		t.Fatalf("expected no lectures after failed adds, got %d", s.Count())
	}
	if _, err := kv.Get(StorageKey); !errors.Is(err, kvstore.ErrNotFound) {
		t.Fatalf("expected nothing persisted, got %v", err)
	}
}

func TestValidationErrorNamesJSONFields(t *testing.T) {
	err := Validate(model.Draft{Name: "A", Type: model.Lab, Location: "X", Day: model.Monday})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if strings.Join(verr.Fields, ",") != "startTime" {
		t.Fatalf("expected startTime to be reported, got %v", verr.Fields)
	}
}

func TestAdd_ProfessorIsOptional(t *testing.T) {
	s := NewStore(kvstore.NewMemory())
	l, err := s.Add(model.Draft{Name: "Lab", Type: model.Lab, StartTime: "07:00", Location: "B1", Day: model.Friday})
	if err != nil {
		t.Fatalf("Add returned error: %v", err)
	}
	if l.Professor != "" {
		t.Fatalf("expected empty professor, got %q", l.Professor)
	}
}

func TestRoundTripPersistence(t *testing.T) {
	kv := kvstore.NewMemory()
	s := NewStore(kv, WithIDFunc(sequentialIDs()))
	for _, d := range sampleDrafts() {
		if _, err := s.Add(d); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}
	want := s.All()
	s.Close()

	reloaded := NewStore(kv)
	got := reloaded.All()
	if len(got) != len(want) {
		t.Fatalf("expected %d lectures, got %d", len(want), len(got))
	}
	byID := make(map[string]model.Lecture)
	for _, l := range got {
		byID[l.ID] = l
	}
	for _, l := range want {
		if byID[l.ID] != l {
			t.Fatalf("lecture %s changed across reload: %+v vs %+v", l.ID, byID[l.ID], l)
		}
	}
}

func TestCorruptStorageYieldsEmptyCollection(t *testing.T) {
	kv := kvstore.NewMemory()
	_ = kv.Set(StorageKey, "definitely not json")

	s := NewStore(kv)
	if s.Count() != 0 {
		t.Fatalf("expected empty collection, got %d", s.Count())
	}
	if _, err := s.Add(sampleDrafts()[0]); err != nil {
		t.Fatalf("Add after corrupt load: %v", err)
	}
	if s.Count() != 1 {
		t.Fatalf("expected store to keep working, got %d", s.Count())
	}
}

func TestDelete_RemovesExactlyOne(t *testing.T) {
	s := NewStore(kvstore.NewMemory(), WithIDFunc(sequentialIDs()))
	for _, d := range sampleDrafts() {
		_, _ = s.Add(d)
	}
	before := s.All()

	if err := s.Delete("lecture-2"); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	after := s.All()
	if got := strings.Join(ids(after), ","); got != "lecture-1,lecture-3" {
		t.Fatalf("unexpected ids after delete: %s", got)
	}
	for _, l := range after {
		for _, b := range before {
			if b.ID == l.ID && b != l {
				t.Fatalf("lecture %s changed by unrelated delete", l.ID)
			}
		}
	}

	if err := s.Delete("lecture-2"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
	if s.Count() != 2 {
		t.Fatalf("failed delete must not mutate, got %d", s.Count())
	}
}

func TestSearch(t *testing.T) {
	kv := kvstore.NewMemory()
	s := NewStore(kv, WithIDFunc(sequentialIDs()))
	for _, d := range sampleDrafts() {
		_, _ = s.Add(d)
	}
	en := loadedResolver(t, kv, i18n.English)

	cases := []struct {
		name  string
		query string
		want  string
	}{
		{"empty returns all", "", "lecture-1,lecture-2,lecture-3"},
		{"name case insensitive", "CALCULUS", "lecture-1"},
		{"professor", "karim", "lecture-3"},
		{"location", "lab 3", "lecture-2"},
		{"translated day", "monday", "lecture-1,lecture-2"},
		{"translated type", "seminar", "lecture-3"},
		{"no match", "physics", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := s.Search(tc.query, en)
			if strings.Join(ids(got), ",") != tc.want {
				t.Fatalf("Search(%q) = %v, want %s", tc.query, ids(got), tc.want)
			}
		})
	}
}

func TestSearch_UsesActiveLanguageLabels(t *testing.T) {
	kv := kvstore.NewMemory()
	s := NewStore(kv, WithIDFunc(sequentialIDs()))
	for _, d := range sampleDrafts() {
		_, _ = s.Add(d)
	}
	ar := loadedResolver(t, kv, i18n.Arabic)

	if got := ids(s.Search("الأربعاء", ar)); strings.Join(got, ",") != "lecture-3" {
		t.Fatalf("expected Wednesday lecture via Arabic label, got %v", got)
	}
	if got := ids(s.Search("مختبر", ar)); strings.Join(got, ",") != "lecture-2" {
		t.Fatalf("expected Lab lecture via Arabic label, got %v", got)
	}
}

func TestSearch_RawKeysWhileTranslationsLoading(t *testing.T) {
	kv := kvstore.NewMemory()
	s := NewStore(kv, WithIDFunc(sequentialIDs()))
	for _, d := range sampleDrafts() {
		_, _ = s.Add(d)
	}
	value := persisted.New(kv, i18n.StorageKey, i18n.English)
	loading := i18n.NewResolver(value)

	if got := ids(s.Search("lectureTypes.lab", loading)); strings.Join(got, ",") != "lecture-2" {
		t.Fatalf("expected raw key match while loading, got %v", got)
	}
}

func TestSearch_ResultIsSubsetMatchingAField(t *testing.T) {
	kv := kvstore.NewMemory()
	s := NewStore(kv)
	for i := 0; i < 4; i++ {
		for _, d := range sampleDrafts() {
			_, _ = s.Add(d)
		}
	}
	en := loadedResolver(t, kv, i18n.English)
	all := make(map[string]model.Lecture)
	for _, l := range s.All() {
		all[l.ID] = l
	}

	for _, q := range []string{"a", "hall", "dr", "08", "lab", "x", "mon", "e"} {
		for _, l := range s.Search(q, en) {
			orig, ok := all[l.ID]
			if !ok || orig != l {
				t.Fatalf("Search(%q) returned a lecture not in the collection: %+v", q, l)
			}
			fields := []string{
				en.T("lectureTypes." + string(l.Type)), en.T("days." + string(l.Day)),
				l.Name, l.Professor, l.Location,
			}
			matched := false
			for _, f := range fields {
				if strings.Contains(strings.ToLower(f), strings.ToLower(q)) {
					matched = true
				}
			}
			if !matched {
				t.Fatalf("Search(%q) returned non-matching lecture %+v", q, l)
			}
		}
	}
}

func TestGroupByDay(t *testing.T) {
	s := NewStore(kvstore.NewMemory(), WithIDFunc(sequentialIDs()))
	for _, d := range sampleDrafts() {
		_, _ = s.Add(d)
	}

	groups := GroupByDay(s.All())
	if len(groups) != 7 || groups[0].Day != model.Sunday || groups[6].Day != model.Saturday {
		t.Fatalf("expected seven days Sunday..Saturday, got %+v", groups)
	}
	monday := groups[1].Lectures
	if len(monday) != 2 || monday[0].StartTime != "08:30" || monday[1].StartTime != "10:00" {
		t.Fatalf("expected Monday sorted by start time, got %+v", monday)
	}
	if groups[0].Lectures == nil || len(groups[0].Lectures) != 0 {
		t.Fatalf("expected empty but non-nil Sunday bucket")
	}
}

func TestFirstVisit(t *testing.T) {
	kv := kvstore.NewMemory()
	s := NewStore(kv)

	if !s.FirstVisit() {
		t.Fatalf("expected first visit on empty store")
	}
	if s.FirstVisit() {
		t.Fatalf("expected greeting only once")
	}
	if raw, _ := kv.Get(FirstVisitKey); raw != "false" {
		t.Fatalf("expected flag to be stored as false, got %q", raw)
	}
}

func TestExternalChangeReplacesCollection(t *testing.T) {
	kv := kvstore.NewMemory()
	s := NewStore(kv)
	defer s.Close()
	_, _ = s.Add(sampleDrafts()[0])

	kv.SetExternal(StorageKey, `[{"id":"x","name":"Remote","type":"Other","startTime":"11:00","location":"Online","day":"Sunday"}]`)

	all := s.All()
	if len(all) != 1 || all[0].ID != "x" {
		t.Fatalf("expected external collection to replace local, got %+v", all)
	}
}

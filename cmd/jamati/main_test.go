package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"jamati/internal/i18n"
	"jamati/internal/kvstore"
	"jamati/internal/lecture"
	"jamati/internal/model"
	"jamati/internal/persisted"
)

// run executes the CLI against a private config and data file in dir.
func run(t *testing.T, dir, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{
		"--config", filepath.Join(dir, "config.yaml"),
		"--data", filepath.Join(dir, "jamati.db"),
		"--log-level", "error",
	}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCLI_AddListSearchDelete(t *testing.T) {
	dir := t.TempDir()

	id, err := run(t, dir, "", "add", "--name", "Algorithms", "--type", "lab", "--start", "10:00", "--location", "Hall A", "--day", "mon")
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	id = strings.TrimSpace(id)
	if id == "" {
		t.Fatalf("add printed no id")
	}

	out, err := run(t, dir, "", "list")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(out, "Monday") || !strings.Contains(out, "10:00  Algorithms (Lab) @ Hall A") {
		t.Fatalf("unexpected list output:\n%s", out)
	}

	if out, _ = run(t, dir, "", "search", "hall"); !strings.Contains(out, "Algorithms") {
		t.Fatalf("search missed lecture:\n%s", out)
	}
	if out, _ = run(t, dir, "", "search", "physics"); strings.Contains(out, "Algorithms") {
		t.Fatalf("search matched unrelated query:\n%s", out)
	}

	// Declining the prompt keeps the lecture.
	if _, err := run(t, dir, "n\n", "delete", id); err != nil {
		t.Fatalf("delete declined: %v", err)
	}
	if out, _ = run(t, dir, "", "list"); !strings.Contains(out, "Algorithms") {
		t.Fatalf("declined delete removed the lecture")
	}

	if _, err := run(t, dir, "", "delete", "--yes", id); err != nil {
		t.Fatalf("delete --yes: %v", err)
	}
	if out, _ = run(t, dir, "", "list"); strings.Contains(out, "Algorithms") {
		t.Fatalf("lecture still listed after delete:\n%s", out)
	}
	if _, err := run(t, dir, "", "delete", "--yes", id); err == nil {
		t.Fatalf("expected error deleting unknown id")
	}
}

func TestCLI_AddRejectsInvalidDraft(t *testing.T) {
	dir := t.TempDir()
	_, err := run(t, dir, "", "add", "--name", "Algorithms", "--start", "9am", "--location", "Hall A", "--day", "Monday")
	if err == nil || !strings.Contains(err.Error(), "startTime") {
		t.Fatalf("expected validation error naming startTime, got %v", err)
	}
}

func TestCLI_Settings(t *testing.T) {
	dir := t.TempDir()

	out, err := run(t, dir, "", "lang", "ar")
	if err != nil || strings.TrimSpace(out) != "ar (rtl)" {
		t.Fatalf("lang ar = %q, %v", out, err)
	}
	if out, _ = run(t, dir, "", "lang", "toggle"); strings.TrimSpace(out) != "en (ltr)" {
		t.Fatalf("lang toggle = %q", out)
	}

	if out, _ = run(t, dir, "", "summary-time"); strings.TrimSpace(out) != "06:00" {
		t.Fatalf("default summary time = %q", out)
	}
	if out, _ = run(t, dir, "", "summary-time", "07:30"); strings.TrimSpace(out) != "07:30" {
		t.Fatalf("summary-time 07:30 = %q", out)
	}
	if _, err := run(t, dir, "", "summary-time", "7:30pm"); err == nil {
		t.Fatalf("expected error for bad summary time")
	}

	// The log notifier is the default and always grants.
	if out, _ = run(t, dir, "", "notify", "enable"); strings.TrimSpace(out) != "Notifications enabled!" {
		t.Fatalf("notify enable = %q", out)
	}
	if out, _ = run(t, dir, "", "notify", "status"); strings.TrimSpace(out) != "granted" {
		t.Fatalf("notify status = %q", out)
	}
}

func TestCLI_ExportImportICS(t *testing.T) {
	src := t.TempDir()
	if _, err := run(t, src, "", "add", "--name", "Physics", "--type", "Seminar", "--start", "13:30", "--location", "B12", "--day", "Thursday", "--professor", "Dr. Noor"); err != nil {
		t.Fatalf("add: %v", err)
	}
	feed := filepath.Join(src, "schedule.ics")
	if _, err := run(t, src, "", "export", "ics", "-o", feed); err != nil {
		t.Fatalf("export: %v", err)
	}

	dst := t.TempDir()
	out, err := run(t, dst, "", "import", "ics", feed)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if !strings.Contains(out, "imported 1 lecture(s), rejected 0") {
		t.Fatalf("import output = %q", out)
	}

	kv, err := kvstore.OpenSQLite(filepath.Join(dst, "jamati.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer kv.Close()
	store := lecture.NewStore(kv)
	defer store.Close()
	got := store.All()
	if len(got) != 1 || got[0].Day != model.Thursday || got[0].StartTime != "13:30" || got[0].Professor != "Dr. Noor" || got[0].Type != model.Seminar {
		t.Fatalf("imported = %+v", got)
	}
}

func TestConfirm(t *testing.T) {
	var out bytes.Buffer
	cases := map[string]bool{"y\n": true, "YES\n": true, "n\n": false, "\n": false, "": false}
	for in, want := range cases {
		if got := confirm(strings.NewReader(in), &out, "sure?"); got != want {
			t.Errorf("confirm(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestPrintScheduleEmpty(t *testing.T) {
	r := i18n.NewResolver(persisted.New(kvstore.NewMemory(), i18n.StorageKey, i18n.English))
	r.Load(context.Background(), i18n.Embedded())
	var out bytes.Buffer
	if err := printSchedule(&out, r, nil, false); err != nil {
		t.Fatalf("printSchedule: %v", err)
	}
	if !strings.Contains(out.String(), "Your schedule is empty") {
		t.Fatalf("unexpected output %q", out.String())
	}
}

func TestCLI_ImportReplace(t *testing.T) {
	dir := t.TempDir()
	if _, err := run(t, dir, "", "add", "--name", "Old", "--start", "08:00", "--location", "A1", "--day", "Sunday"); err != nil {
		t.Fatalf("add: %v", err)
	}
	feed := filepath.Join(dir, "feed.ics")
	if _, err := run(t, dir, "", "export", "ics", "-o", feed); err != nil {
		t.Fatalf("export: %v", err)
	}
	if _, err := run(t, dir, "", "import", "ics", "--replace", feed); err != nil {
		t.Fatalf("import --replace: %v", err)
	}
	out, _ := run(t, dir, "", "list", "--json")
	if strings.Count(out, `"name": "Old"`) != 1 {
		t.Fatalf("expected the schedule to be replaced, not appended:\n%s", out)
	}
}

func TestDefaultLanguage(t *testing.T) {
	t.Setenv("LANG", "ar_SA.UTF-8")
	if got := defaultLanguage("auto"); got != i18n.Arabic {
		t.Fatalf("auto with ar_SA = %s", got)
	}
	t.Setenv("LANG", "C")
	if got := defaultLanguage("auto"); got != i18n.English {
		t.Fatalf("auto with C = %s", got)
	}
	if got := defaultLanguage("ar"); got != i18n.Arabic {
		t.Fatalf("ar = %s", got)
	}
	if got := defaultLanguage("xx"); got != i18n.English {
		t.Fatalf("xx = %s", got)
	}
}

// noLocationFeed parses into one draft that fails validation.
const noLocationFeed = "BEGIN:VCALENDAR\r\n" +
	"VERSION:2.0\r\n" +
	"PRODID:-//test//EN\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:x\r\n" +
	"DTSTAMP:20261001T000000Z\r\n" +
	"DTSTART:20261020T090000Z\r\n" +
	"SUMMARY:Nowhere\r\n" +
	"RRULE:FREQ=WEEKLY;BYDAY=TU\r\n" +
	"END:VEVENT\r\n" +
	"END:VCALENDAR\r\n"

func TestCLI_ImportReplaceKeepsScheduleWhenNothingIsValid(t *testing.T) {
	dir := t.TempDir()
	if _, err := run(t, dir, "", "add", "--name", "Keep", "--start", "08:00", "--location", "A1", "--day", "Sunday"); err != nil {
		t.Fatalf("add: %v", err)
	}

	if _, err := run(t, dir, noLocationFeed, "import", "ics", "--replace", "-"); err == nil {
		t.Fatalf("expected import of only invalid events to fail")
	}
	out, _ := run(t, dir, "", "list", "--json")
	if !strings.Contains(out, `"name": "Keep"`) {
		t.Fatalf("schedule was wiped by a rejected import:\n%s", out)
	}

	// Without --replace the invalid event is just reported.
	out, err := run(t, dir, noLocationFeed, "import", "ics", "-")
	if err != nil || !strings.Contains(out, "imported 0 lecture(s), rejected 1") {
		t.Fatalf("plain import = %q, %v", out, err)
	}
}

package web

import (
	"bytes"
	"embed"
	"errors"
	"html/template"
	"net/http"
	"net/url"
	"strconv"

	"jamati/internal/i18n"
	"jamati/internal/lecture"
	appLog "jamati/internal/log"
	"jamati/internal/model"
	"jamati/internal/notify"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageTemplate = template.Must(
	template.New("index.html").
		Funcs(template.FuncMap{
			// Replaced per request with the resolver's T.
			"t": func(key string) string { return key },
		}).
		ParseFS(templateFS, "templates/index.html"),
)

type option struct {
	Value string
	Label string
}

type cardView struct {
	ID        string
	Name      string
	TypeLabel string
	Professor string
	StartTime string
	Location  string
}

type dayView struct {
	Label    string
	Lectures []cardView
}

type pageData struct {
	Lang      i18n.Language
	Dir       i18n.Direction
	Query     string
	Welcome   bool
	Empty     bool
	Flash     string
	FormError bool
	Draft     model.Draft
	Days      []dayView
	Types     []option
	DayNames  []option
}

// handleIndex renders the schedule grid. Until translations are loaded the
// page is a bare loading placeholder.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if !s.ready() {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("Loading..."))
		return
	}
	data := s.pageData(r.URL.Query().Get("q"))
	if key := r.URL.Query().Get("msg"); notify.IsMessageKey(key) {
		data.Flash = s.resolver.T(key)
	}
	s.renderPage(w, http.StatusOK, data)
}

func (s *Server) pageData(q string) pageData {
	data := pageData{
		Lang:    s.resolver.Language(),
		Dir:     s.resolver.Dir(),
		Query:   q,
		Welcome: s.greet && s.lectures.FirstVisit(),
		Empty:   s.lectures.Count() == 0,
	}
	for _, g := range lecture.GroupByDay(s.lectures.Search(q, s.resolver)) {
		dv := dayView{Label: s.resolver.T("days." + string(g.Day))}
		for _, l := range g.Lectures {
			dv.Lectures = append(dv.Lectures, cardView{
				ID:        l.ID,
				Name:      l.Name,
				TypeLabel: s.resolver.T("lectureTypes." + string(l.Type)),
				Professor: l.Professor,
				StartTime: l.StartTime,
				Location:  l.Location,
			})
		}
		data.Days = append(data.Days, dv)
	}
	for _, t := range model.LectureTypes {
		data.Types = append(data.Types, option{Value: string(t), Label: s.resolver.T("lectureTypes." + string(t))})
	}
	for _, d := range model.Days {
		data.DayNames = append(data.DayNames, option{Value: string(d), Label: s.resolver.T("days." + string(d))})
	}
	return data
}

func (s *Server) renderPage(w http.ResponseWriter, status int, data pageData) {
	tmpl, err := pageTemplate.Clone()
	if err == nil {
		tmpl = tmpl.Funcs(template.FuncMap{"t": s.resolver.T})
	}
	var buf bytes.Buffer
	if err == nil {
		err = tmpl.Execute(&buf, data)
	}
	if err != nil {
		appLog.Error("failed to render page", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func redirectHome(w http.ResponseWriter, r *http.Request, msgKey string) {
	target := "/"
	if msgKey != "" {
		target += "?" + url.Values{"msg": {msgKey}}.Encode()
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// handleFormAdd handles the add-lecture form. A rejected draft re-renders
// the page with the form error and the entered values kept.
func (s *Server) handleFormAdd(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	d := model.Draft{
		Name:      r.PostFormValue("name"),
		Type:      model.LectureType(r.PostFormValue("type")),
		Professor: r.PostFormValue("professor"),
		StartTime: r.PostFormValue("startTime"),
		Location:  r.PostFormValue("location"),
		Day:       model.Day(r.PostFormValue("day")),
	}

	_, err := s.lectures.Add(d)
	var verr *lecture.ValidationError
	switch {
	case errors.As(err, &verr):
		data := s.pageData("")
		data.FormError = true
		data.Draft = d
		s.renderPage(w, http.StatusUnprocessableEntity, data)
		return
	case err != nil:
		appLog.Error("form add lecture failed", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	redirectHome(w, r, "")
}

func (s *Server) handleFormDelete(w http.ResponseWriter, r *http.Request) {
	if confirmed, _ := strconv.ParseBool(r.PostFormValue("confirm")); !confirmed {
		http.Error(w, s.resolver.T("app.deleteConfirm"), http.StatusConflict)
		return
	}
	if err := s.lectures.Delete(r.PathValue("id")); err != nil {
		http.NotFound(w, r)
		return
	}
	redirectHome(w, r, "")
}

func (s *Server) handleFormLanguage(w http.ResponseWriter, r *http.Request) {
	lang := s.resolver.Toggle()
	appLog.Info("language toggled", "lang", lang)
	redirectHome(w, r, "")
}

func (s *Server) handleFormNotifications(w http.ResponseWriter, r *http.Request) {
	p, err := s.scheduler.RequestPermission(r.Context())
	redirectHome(w, r, notify.MessageKey(p, err))
}

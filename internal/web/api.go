package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"jamati/internal/i18n"
	"jamati/internal/ics"
	"jamati/internal/lecture"
	appLog "jamati/internal/log"
	"jamati/internal/model"
	"jamati/internal/notify"
)

const maxBodyBytes = 64 << 10

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func (s *Server) handleListLectures(w http.ResponseWriter, r *http.Request) {
	lectures := s.lectures.Search(r.URL.Query().Get("q"), s.resolver)
	writeJSON(w, http.StatusOK, lectures)
}

func (s *Server) handleAddLecture(w http.ResponseWriter, r *http.Request) {
	var d model.Draft
	if err := decodeBody(r, &d); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	l, err := s.lectures.Add(d)
	var verr *lecture.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusUnprocessableEntity, errResp{
			Error:  s.resolver.T("addLectureForm.error"),
			Fields: verr.Fields,
		})
		return
	case err != nil:
		appLog.Error("api add lecture failed", err)
		writeError(w, http.StatusInternalServerError, "failed to add lecture")
		return
	}
	writeJSON(w, http.StatusCreated, l)
}

// handleDeleteLecture requires ?confirm=true; without it the confirmation
// prompt is returned with 409 and nothing is removed.
func (s *Server) handleDeleteLecture(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if confirmed, _ := strconv.ParseBool(r.URL.Query().Get("confirm")); !confirmed {
		writeError(w, http.StatusConflict, s.resolver.T("app.deleteConfirm"))
		return
	}

	if err := s.lectures.Delete(id); err != nil {
		if errors.Is(err, lecture.ErrNotFound) {
			writeError(w, http.StatusNotFound, "lecture not found")
			return
		}
		appLog.Error("api delete lecture failed", err, "id", id)
		writeError(w, http.StatusInternalServerError, "failed to delete lecture")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type dayGroupDTO struct {
	Day      model.Day       `json:"day"`
	Label    string          `json:"label"`
	Lectures []model.Lecture `json:"lectures"`
}

func (s *Server) handleSchedule(w http.ResponseWriter, r *http.Request) {
	groups := lecture.GroupByDay(s.lectures.Search(r.URL.Query().Get("q"), s.resolver))
	out := make([]dayGroupDTO, 0, len(groups))
	for _, g := range groups {
		out = append(out, dayGroupDTO{
			Day:      g.Day,
			Label:    s.resolver.T("days." + string(g.Day)),
			Lectures: g.Lectures,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

type languageDTO struct {
	Language  i18n.Language  `json:"language"`
	Direction i18n.Direction `json:"dir"`
}

func (s *Server) languageDTO() languageDTO {
	return languageDTO{Language: s.resolver.Language(), Direction: s.resolver.Dir()}
}

func (s *Server) handleGetLanguage(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.languageDTO())
}

func (s *Server) handlePutLanguage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Language string `json:"language"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	lang, err := i18n.ParseLanguage(req.Language)
	if err == nil {
		err = s.resolver.SetLanguage(lang)
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.languageDTO())
}

type summaryTimeDTO struct {
	SummaryTime string `json:"summaryTime"`
}

func (s *Server) handleGetSummaryTime(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, summaryTimeDTO{SummaryTime: s.summaryTime.Get()})
}

func (s *Server) handlePutSummaryTime(w http.ResponseWriter, r *http.Request) {
	var req summaryTimeDTO
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if _, _, err := model.ParseClock(req.SummaryTime); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.summaryTime.Set(req.SummaryTime)
	appLog.Info("daily summary time changed", "summary_time", req.SummaryTime)
	writeJSON(w, http.StatusOK, req)
}

type permissionDTO struct {
	Permission notify.Permission `json:"permission"`
	Message    string            `json:"message,omitempty"`
}

func (s *Server) handleGetPermission(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, permissionDTO{Permission: s.scheduler.Permission()})
}

func (s *Server) handleRequestPermission(w http.ResponseWriter, r *http.Request) {
	p, err := s.scheduler.RequestPermission(r.Context())
	writeJSON(w, http.StatusOK, permissionDTO{
		Permission: p,
		Message:    s.resolver.T(notify.MessageKey(p, err)),
	})
}

func (s *Server) handleCalendar(w http.ResponseWriter, _ *http.Request) {
	body, err := ics.Export(s.lectures.All(), ics.ExportConfig{
		From:           s.now().In(s.cfg.Location()),
		Duration:       s.cfg.LectureDuration,
		CalendarName:   s.resolver.T("header.title"),
		ProfessorLabel: s.resolver.T("lectureCard.professor"),
	})
	if err != nil {
		appLog.Error("calendar export failed", err)
		writeError(w, http.StatusInternalServerError, "failed to export calendar")
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="jamati.ics"`)
	_, _ = io.WriteString(w, body)
}

type i18nDTO struct {
	languageDTO
	Loaded bool `json:"loaded"`
}

func (s *Server) handleI18n(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, i18nDTO{languageDTO: s.languageDTO(), Loaded: s.resolver.Loaded()})
}

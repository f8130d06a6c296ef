package web

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/csrf"

	"github.com/mmynk/paytrack/internal/apiclient"
	"github.com/mmynk/paytrack/internal/dates"
	"github.com/mmynk/paytrack/internal/models"
	"github.com/mmynk/paytrack/internal/service"
	"github.com/mmynk/paytrack/internal/validation"
)

var pageNames = []string{"login.html", "groups.html", "history.html"}

func (s *Server) parseTemplates() (map[string]*template.Template, error) {
	funcs := template.FuncMap{
		"monthNames": func() []string { return dates.MonthNames },
		"years":      func() []int { return dates.DefaultYears(s.now().In(s.loc)) },
		"formatDate": func(ts models.Timestamp) string {
			if !ts.Valid {
				return dates.Placeholder
			}
			return dates.FormatDate(ts.Time.In(s.loc))
		},
		"orDash": func(v string) string {
			if v == "" {
				return dates.Placeholder
			}
			return v
		},
		"unixDate": func(sec int64) string {
			return dates.FormatDate(time.Unix(sec, 0).In(s.loc))
		},
	}

	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		t, err := template.New(name).Funcs(funcs).ParseFS(templateFS, "templates/layout.html", "templates/"+name)
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
		}
		pages[name] = t
	}
	return pages, nil
}

// page is the data every template receives.
type page struct {
	Title     string
	LoggedIn  bool
	Flash     string
	Error     string
	CSRFField template.HTML
	Data      any
}

// render executes a page. A non-empty errText replaces the error carried in the query.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name, title string, data any, errText string) {
	p := page{
		Title:     title,
		LoggedIn:  s.session.LoggedIn(r.Context()),
		Flash:     r.URL.Query().Get("msg"),
		Error:     r.URL.Query().Get("err"),
		CSRFField: csrf.TemplateField(r),
		Data:      data,
	}
	if errText != "" {
		p.Error = errText
	}

	var buf bytes.Buffer
	if err := s.pages[name].ExecuteTemplate(&buf, "layout", p); err != nil {
		slog.Error("Failed to render template", "template", name, "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// redirect sends the browser to path with a flash or error message.
func redirect(w http.ResponseWriter, r *http.Request, path, flash, errText string) {
	q := url.Values{}
	if flash != "" {
		q.Set("msg", flash)
	}
	if errText != "" {
		q.Set("err", errText)
	}
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	http.Redirect(w, r, path, http.StatusSeeOther)
}

// userMessage turns an error into the text shown to the admin.
func userMessage(err error, fallback string) string {
	var verr *validation.Error
	var apiErr *apiclient.APIError
	var transportErr *apiclient.TransportError

	switch {
	case errors.As(err, &verr):
		return verr.Message
	case errors.As(err, &apiErr):
		return apiErr.Message
	case errors.As(err, &transportErr):
		return service.MsgNoConnection
	case errors.Is(err, service.ErrUnknownUser), errors.Is(err, service.ErrNoGroup):
		return err.Error()
	default:
		return fallback
	}
}

// statusFor maps an error to the HTTP status of the re-rendered page.
func statusFor(err error) int {
	var apiErr *apiclient.APIError
	switch {
	case errors.Is(err, validation.ErrInvalid):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrUnknownGroup):
		return http.StatusNotFound
	case apiclient.IsTransport(err):
		return http.StatusBadGateway
	case errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusBadGateway
	}
}

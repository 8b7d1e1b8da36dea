package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/samber/lo"

	"catchup/internal/config"
	"catchup/internal/derive"
	"catchup/internal/gcal"
	"catchup/internal/ics"
	"catchup/internal/listing"
	appLog "catchup/internal/log"
	"catchup/internal/model"
	"catchup/internal/participant"
)

// maxHorizonYears bounds ?years= so one request cannot fan out unboundedly.
const maxHorizonYears = 100

// Server provides HTTP APIs for schedule derivation and export. Every
// request derives its schedule from the query alone; nothing is cached.
type Server struct {
	cfg     *config.Config
	deriver derive.Deriver
	mux     *http.ServeMux
	now     func() time.Time
}

// NewServer constructs a new Server. It fails if the configured digest
// cannot be used.
func NewServer(cfg *config.Config) (*Server, error) {
	d, err := derive.NewNamed(cfg.Digest)
	if err != nil {
		return nil, err
	}
	s := &Server{
		cfg:     cfg,
		deriver: d,
		mux:     http.NewServeMux(),
		now:     time.Now,
	}
	s.registerRoutes()
	return s, nil
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// Empty credentials disable auth.
	if s.cfg.BasicAuth.Username == "" || s.cfg.BasicAuth.Password == "" {
		return false
	}
	return true
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="Catchup", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// Run serves on cfg.Listen until ctx is canceled, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/schedule", s.handleSchedule)
	s.mux.HandleFunc("GET /api/schedule.ics", s.handleScheduleICS)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// scheduleResponse is the JSON response shape for /api/schedule.
type scheduleResponse struct {
	A         string    `json:"a"`
	B         string    `json:"b"`
	Title     string    `json:"title"`
	StartYear int       `json:"start_year"`
	Horizon   int       `json:"horizon_years"`
	Digest    string    `json:"digest"`
	Years     []yearDTO `json:"years"`
}

type yearDTO struct {
	Year   int        `json:"year"`
	Events []eventDTO `json:"events"`
}

// eventDTO is a JSON-friendly view of one catch-up instant.
type eventDTO struct {
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Display     string    `json:"display"`
	CalendarURL string    `json:"calendar_url"`
}

// handleSchedule returns a derived schedule as JSON.
//
// GET /api/schedule?a=alice@example.com&b=bob@example.com&start=2025&years=10
//   - a, b:  participant email addresses (required)
//   - start: first year (default: current UTC year)
//   - years: horizon (default: config horizon_years)
func (s *Server) handleSchedule(w http.ResponseWriter, r *http.Request) {
	sched, ok := s.scheduleFromRequest(w, r)
	if !ok {
		return
	}

	p := sched.Participants
	years := make([]yearDTO, 0, len(sched.Years))
	for _, y := range sched.Years {
		links, err := gcal.YearURLs(s.cfg.CalendarURL, p, y)
		if err != nil {
			appLog.Error("api schedule: calendar url failed", err)
			writeError(w, http.StatusInternalServerError, "failed to build calendar links")
			return
		}
		starts := y.Starts()
		events := lo.Map(starts[:], func(start time.Time, i int) eventDTO {
			return eventDTO{
				Start:       start,
				End:         start.Add(model.EventDuration),
				Display:     listing.FormatTime(start),
				CalendarURL: links[i],
			}
		})
		years = append(years, yearDTO{Year: y.Year, Events: events})
	}

	writeJSON(w, http.StatusOK, scheduleResponse{
		A:         p.A,
		B:         p.B,
		Title:     p.Title(),
		StartYear: sched.StartYear,
		Horizon:   sched.Horizon(),
		Digest:    s.cfg.Digest,
		Years:     years,
	})
}

// handleScheduleICS returns the same schedule as a calendar download.
func (s *Server) handleScheduleICS(w http.ResponseWriter, r *http.Request) {
	sched, ok := s.scheduleFromRequest(w, r)
	if !ok {
		return
	}

	body := ics.Render(sched, ics.ExportOptions{
		ProductID: s.cfg.ProductID,
		UIDDomain: s.cfg.UIDDomain,
		Now:       s.now(),
	})

	w.Header().Set("Content-Type", ics.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", ics.Filename(sched.Horizon())))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}

// scheduleFromRequest validates the query and derives the schedule. On
// failure it has already written the error response.
func (s *Server) scheduleFromRequest(w http.ResponseWriter, r *http.Request) (model.Schedule, bool) {
	q := r.URL.Query()

	pair, err := participant.Parse(q.Get("a"), q.Get("b"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return model.Schedule{}, false
	}

	start, err := parseIntDefault(q.Get("start"), derive.CurrentYear(s.now()))
	if err != nil {
		writeError(w, http.StatusBadRequest, "start must be an integer year")
		return model.Schedule{}, false
	}
	horizon, err := parseIntDefault(q.Get("years"), s.cfg.HorizonYears)
	if err != nil || horizon > maxHorizonYears {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("years must be an integer between 1 and %d", maxHorizonYears))
		return model.Schedule{}, false
	}

	sched, err := s.deriver.BuildSchedule(r.Context(), pair, start, horizon)
	switch {
	case err == nil:
		return sched, true
	case errors.Is(err, derive.ErrInvalidYear), errors.Is(err, derive.ErrInvalidHorizon):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		appLog.Error("api schedule: derive failed", err, "start", start, "years", horizon)
		writeError(w, http.StatusInternalServerError, "failed to derive schedule")
	}
	return model.Schedule{}, false
}

func parseIntDefault(s string, def int) (int, error) {
	if s == "" {
		return def, nil
	}
	return strconv.Atoi(s)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}

package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"assistant/internal/calendar"
	"assistant/internal/config"
	"assistant/internal/dispatch"
	appLog "assistant/internal/log"
)

// Submitter queues a command behind the console and waits for its report.
type Submitter interface {
	Submit(ctx context.Context, source, text string) (dispatch.Report, error)
}

// Server exposes the command API: /health, POST /api/commands and, when the
// calendar backend can list, GET /api/events.
type Server struct {
	cfg    *config.Config
	loc    *time.Location
	submit Submitter
	lister calendar.Lister
	mux    *http.ServeMux

	// Short-lived cache so repeated polling does not hit the calendar API.
	eventsMu    sync.RWMutex
	eventsCache *eventsCache
}

// NewServer constructs a new Server. lister may be nil.
func NewServer(cfg *config.Config, loc *time.Location, submit Submitter, lister calendar.Lister) *Server {
	if loc == nil {
		loc = time.UTC
	}
	s := &Server{
		cfg:    cfg,
		loc:    loc,
		submit: submit,
		lister: lister,
		mux:    http.NewServeMux(),
	}
	s.registerRoutes()
	return s
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
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
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
			w.Header().Set("WWW-Authenticate", `Basic realm="Assistant", charset="UTF-8"`)
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

// Serve listens on cfg.Listen until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Serve(ctx context.Context) error {
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
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/api/commands", s.handleCommands)
	s.mux.HandleFunc("/api/events", s.handleEvents)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

type commandRequest struct {
	Text string `json:"text"`
}

// handleCommands runs one command through the console queue.
//
// POST /api/commands {"text": "schedule a meeting with john tomorrow at 10am"}
//
// A handled command answers 200 with the report even when the command
// itself failed; the report's "ok" field tells the two apart.
func (s *Server) handleCommands(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req commandRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 64<<10)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	req.Text = strings.TrimSpace(req.Text)
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, `"text" is required`)
		return
	}

	rep, err := s.submit.Submit(r.Context(), "api", req.Text)
	if err != nil {
		appLog.Error("api command not handled", err)
		writeError(w, http.StatusServiceUnavailable, "assistant is not accepting commands")
		return
	}

	s.eventsMu.Lock()
	s.eventsCache = nil
	s.eventsMu.Unlock()

	writeJSON(w, http.StatusOK, rep)
}

// eventsResponse is the JSON response shape for /api/events.
type eventsResponse struct {
	Events     []eventDTO `json:"events"`
	RangeStart time.Time  `json:"range_start"`
	RangeEnd   time.Time  `json:"range_end"`
	TimeZone   string     `json:"timezone"`
}

type eventDTO struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Attendees   []string  `json:"attendees"`
	Link        string    `json:"link,omitempty"`
}

// eventsCache holds a cached /api/events response and its timestamp.
type eventsCache struct {
	days      int
	resp      eventsResponse
	updatedAt time.Time
}

// handleEvents lists booked events from the start of today.
//
// GET /api/events?days=7
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.lister == nil {
		writeError(w, http.StatusNotImplemented, "calendar backend cannot list events")
		return
	}

	days := parseIntDefault(r.URL.Query().Get("days"), 7)
	if days <= 0 || days > 366 {
		days = 7
	}

	const eventsCacheTTL = 30 * time.Second
	s.eventsMu.RLock()
	ec := s.eventsCache
	s.eventsMu.RUnlock()
	if ec != nil && ec.days == days && time.Since(ec.updatedAt) < eventsCacheTTL {
		writeJSON(w, http.StatusOK, ec.resp)
		return
	}

	now := time.Now().In(s.loc)
	rangeStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.loc)
	rangeEnd := rangeStart.AddDate(0, 0, days)

	events, err := s.lister.ListEvents(r.Context(), rangeStart, rangeEnd)
	if err != nil {
		appLog.Error("api events: list failed", err)
		writeError(w, http.StatusBadGateway, "failed to list events")
		return
	}

	dtos := make([]eventDTO, 0, len(events))
	for _, ev := range events {
		dtos = append(dtos, eventDTO{
			ID:          ev.ID,
			Title:       ev.Title,
			Description: ev.Description,
			Start:       ev.Start.In(s.loc),
			End:         ev.End.In(s.loc),
			Attendees:   ev.Attendees,
			Link:        ev.HTMLLink,
		})
	}
	resp := eventsResponse{
		Events:     dtos,
		RangeStart: rangeStart,
		RangeEnd:   rangeEnd,
		TimeZone:   s.loc.String(),
	}

	s.eventsMu.Lock()
	s.eventsCache = &eventsCache{days: days, resp: resp, updatedAt: time.Now()}
	s.eventsMu.Unlock()

	writeJSON(w, http.StatusOK, resp)
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
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

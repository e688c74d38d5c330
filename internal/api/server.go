// Package api is the device HTTP surface: pet state, care actions,
// step counter, daily statistics and liveness. Handlers talk to the
// in-memory machine first and the database only for history queries, so
// the API stays responsive even when the disk is slow.
package api

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jaspreeeet/kaku/internal/db"
	"github.com/jaspreeeet/kaku/internal/httputil"
	"github.com/jaspreeeet/kaku/internal/monitoring"
	"github.com/jaspreeeet/kaku/internal/pet"
	"github.com/jaspreeeet/kaku/internal/render"
	"github.com/jaspreeeet/kaku/internal/signal"
	"github.com/jaspreeeet/kaku/internal/statesync"
)

// ANSI escape codes for cyan and reset
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// Config wires a Server. Machine and DB are required; Renderer, Sampler
// and Sync are optional and their endpoints degrade gracefully when
// absent.
type Config struct {
	Machine  *pet.Machine
	DB       *db.DB
	Renderer *render.Renderer
	Sampler  *signal.Sampler
	Sync     *statesync.Adapter
}

type Server struct {
	machine  *pet.Machine
	db       *db.DB
	renderer *render.Renderer
	sampler  *signal.Sampler
	sync     *statesync.Adapter
}

func NewServer(cfg Config) *Server {
	return &Server{
		machine:  cfg.Machine,
		db:       cfg.DB,
		renderer: cfg.Renderer,
		sampler:  cfg.Sampler,
		sync:     cfg.Sync,
	}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/pet/state", s.showPetState)
	mux.HandleFunc("/api/pet/feed", s.careHandler("feed"))
	mux.HandleFunc("/api/pet/clean", s.careHandler("clean"))
	mux.HandleFunc("/api/pet/medicate", s.careHandler("medicate"))
	mux.HandleFunc("/api/pet/play", s.careHandler("play"))
	mux.HandleFunc("/api/pet/menu", s.setMenu)
	mux.HandleFunc("/api/display", s.showDisplay)
	mux.HandleFunc("/api/steps", s.showSteps)
	mux.HandleFunc("/api/steps/reset", s.resetSteps)
	mux.HandleFunc("/api/stats/daily", s.showDailyStats)
	mux.HandleFunc("/api/stats/gestures", s.showGestureStats)
	mux.HandleFunc("/api/care/events", s.listCareEvents)
	mux.HandleFunc("/charts/activity", s.activityChart)
	mux.HandleFunc("/healthz", s.healthz)
	return mux
}

// snapshotView overlays the enum fields of a snapshot with their string
// names so API consumers never see raw iota values.
type snapshotView struct {
	pet.Snapshot
	Stage    string `json:"stage"`
	Emotion  string `json:"emotion"`
	Menu     string `json:"menu"`
	Reaction string `json:"reaction"`
}

func viewOf(snap pet.Snapshot) snapshotView {
	return snapshotView{
		Snapshot: snap,
		Stage:    snap.Stage.String(),
		Emotion:  snap.Emotion.String(),
		Menu:     snap.Menu.String(),
		Reaction: snap.Reaction.String(),
	}
}

func (s *Server) showPetState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSONOK(w, viewOf(s.machine.Snapshot()))
}

// careHandler builds the POST handler for one care action. A feed guard
// collision maps to 409 so a double-tap never double-feeds.
func (s *Server) careHandler(kind string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			httputil.MethodNotAllowed(w)
			return
		}

		var (
			snap pet.Snapshot
			err  error
		)
		switch kind {
		case "feed":
			snap, err = s.machine.Feed()
		case "clean":
			snap, err = s.machine.Clean()
		case "medicate":
			snap, err = s.machine.Medicate()
		case "play":
			snap, err = s.machine.Play()
		}
		if errors.Is(err, pet.ErrFeedInProgress) {
			httputil.WriteJSONError(w, http.StatusConflict, err.Error())
			return
		}
		if err != nil {
			httputil.InternalServerError(w, fmt.Sprintf("%s failed: %v", kind, err))
			return
		}

		if s.db != nil {
			if err := s.db.RecordCareEvent(r.Context(), kind, snap.At); err != nil {
				monitoring.Logf("api: failed to record %s event: %v", kind, err)
			}
		}
		httputil.WriteJSONOK(w, viewOf(snap))
	}
}

type menuRequest struct {
	Menu string `json:"menu"`
}

func (s *Server) setMenu(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}

	var req menuRequest
	if err := httputil.DecodeJSONBody(r, &req); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	// "next" cycles the way the physical button does
	if req.Menu == "next" {
		s.machine.AdvanceMenu()
		httputil.WriteJSONOK(w, viewOf(s.machine.Snapshot()))
		return
	}
	menu, err := pet.ParseMenu(req.Menu)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	s.machine.SetMenu(menu)
	httputil.WriteJSONOK(w, viewOf(s.machine.Snapshot()))
}

func (s *Server) showDisplay(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	if s.renderer == nil {
		httputil.NotFound(w, "no renderer attached")
		return
	}
	httputil.WriteJSONOK(w, s.renderer.Meta())
}

type stepsResponse struct {
	TotalSteps      int64 `json:"total_steps"`
	DailySteps      int64 `json:"daily_steps"`
	StepsSinceClean int64 `json:"steps_since_clean"`
}

func stepsOf(snap pet.Snapshot) stepsResponse {
	return stepsResponse{
		TotalSteps:      snap.TotalSteps,
		DailySteps:      snap.DailySteps,
		StepsSinceClean: snap.StepsSinceClean,
	}
}

func (s *Server) showSteps(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSONOK(w, stepsOf(s.machine.Snapshot()))
}

func (s *Server) resetSteps(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSONOK(w, stepsOf(s.machine.ResetSteps()))
}

// parseDays reads the ?days query parameter, defaulting to def.
func parseDays(r *http.Request, def int) (int, error) {
	d := r.URL.Query().Get("days")
	if d == "" {
		return def, nil
	}
	parsed, err := strconv.Atoi(d)
	if err != nil || parsed < 1 {
		return 0, fmt.Errorf("invalid 'days' parameter")
	}
	return parsed, nil
}

func (s *Server) showDailyStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	days, err := parseDays(r, 7)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	stats, err := s.db.ListDailyStats(r.Context(), days)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to retrieve daily stats: %v", err))
		return
	}
	if stats == nil {
		stats = []pet.DailyRecord{}
	}
	httputil.WriteJSONOK(w, stats)
}

func (s *Server) showGestureStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	days, err := parseDays(r, 1)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	since := time.Now().AddDate(0, 0, -days)
	counts, err := s.db.CountGestureEvents(r.Context(), since)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to count gestures: %v", err))
		return
	}
	httputil.WriteJSONOK(w, counts)
}

func (s *Server) listCareEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	limit := 20
	if l := r.URL.Query().Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed < 1 {
			httputil.BadRequest(w, "invalid 'limit' parameter")
			return
		}
		limit = parsed
	}
	events, err := s.db.RecentCareEvents(r.Context(), limit)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to list care events: %v", err))
		return
	}
	if events == nil {
		events = []db.CareEvent{}
	}
	httputil.WriteJSONOK(w, events)
}

type healthResponse struct {
	Status  string            `json:"status"`
	Sampler *signal.Status    `json:"sampler,omitempty"`
	Sync    *statesync.Status `json:"sync,omitempty"`
	Frame   *render.FrameMeta `json:"frame,omitempty"`
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	resp := healthResponse{Status: "ok"}
	var degraded []string
	if s.sampler != nil {
		st := s.sampler.Status()
		resp.Sampler = &st
		if st.DegradedMotion {
			degraded = append(degraded, "motion")
		}
		if st.DegradedCamera {
			degraded = append(degraded, "camera")
		}
	}
	if s.sync != nil {
		st := s.sync.Status()
		resp.Sync = &st
		if st.Degraded {
			degraded = append(degraded, "sync")
		}
	}
	if s.renderer != nil {
		meta := s.renderer.Meta()
		resp.Frame = &meta
	}
	if len(degraded) > 0 {
		resp.Status = "degraded: " + strings.Join(degraded, ",")
	}
	httputil.WriteJSONOK(w, resp)
}

// Package api is the HTTP control surface of a running extraction: status,
// start/stop, reference line moves, the run index and the live preview.
package api

import (
	"context"
	"errors"
	"image"
	"image/png"
	"net/http"
	"strconv"
	"time"

	"github.com/banshee-data/motion.trace/internal/db"
	"github.com/banshee-data/motion.trace/internal/extract"
	"github.com/banshee-data/motion.trace/internal/httputil"
	"github.com/banshee-data/motion.trace/internal/monitoring"
	"github.com/banshee-data/motion.trace/internal/preview"
)

// ANSI escape codes for cyan and reset
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// Controller is the part of *extract.Controller the server drives.
type Controller interface {
	Toggle(ctx context.Context) (bool, error)
	Running() bool
	Results() []extract.Result
	Preview() (preview.Frame, uint64, bool)
	SetReferenceX(x int)
	ReferenceX() int
}

// Annotator renders a preview frame with its overlays.
type Annotator func(preview.Frame) (image.Image, error)

type Server struct {
	ctx      context.Context
	ctrl     Controller
	index    *db.DB
	annotate Annotator
}

// NewServer returns a server for ctrl. Batches it starts run under ctx,
// not the request context. index may be nil when the run index is disabled;
// a nil annotate serves the raw frame.
func NewServer(ctx context.Context, ctrl Controller, index *db.DB, annotate Annotator) *Server {
	return &Server{ctx: ctx, ctrl: ctrl, index: index, annotate: annotate}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
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
		monitoring.Logf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", s.showStatus)
	mux.HandleFunc("/api/toggle", s.toggle)
	mux.HandleFunc("/api/reference-x", s.referenceX)
	mux.HandleFunc("/api/runs", s.listRuns)
	mux.HandleFunc("/preview.png", s.previewImage)
	return mux
}

// ResultJSON is one finished video in /api/status.
type ResultJSON struct {
	Key        string  `json:"key"`
	RunID      string  `json:"run_id,omitempty"`
	Status     string  `json:"status"`
	Frames     int     `json:"frames"`
	Accepted   int     `json:"accepted"`
	Rejected   int     `json:"rejected"`
	Invalid    int     `json:"invalid"`
	DurationMS float64 `json:"duration_ms"`
	Error      string  `json:"error,omitempty"`
}

// StatusJSON is the /api/status response.
type StatusJSON struct {
	Running    bool         `json:"running"`
	ReferenceX int          `json:"reference_x"`
	PreviewSeq uint64       `json:"preview_seq"`
	Results    []ResultJSON `json:"results"`
}

func (s *Server) status() StatusJSON {
	_, seq, _ := s.ctrl.Preview()
	st := StatusJSON{
		Running:    s.ctrl.Running(),
		ReferenceX: s.ctrl.ReferenceX(),
		PreviewSeq: seq,
		Results:    []ResultJSON{},
	}
	for _, r := range s.ctrl.Results() {
		rj := ResultJSON{
			Key:        r.Key,
			RunID:      r.RunID,
			Status:     r.Status,
			Frames:     r.Stats.Frames,
			Accepted:   r.Stats.Accepted,
			Rejected:   r.Stats.Rejected,
			Invalid:    r.Stats.Invalid,
			DurationMS: float64(r.Stats.Duration.Microseconds()) / 1e3,
		}
		if r.Err != nil {
			rj.Error = r.Err.Error()
		}
		st.Results = append(st.Results, rj)
	}
	return st
}

func (s *Server) showStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSONOK(w, s.status())
}

func (s *Server) toggle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	if _, err := s.ctrl.Toggle(s.ctx); err != nil {
		switch {
		case errors.Is(err, extract.ErrNotCalibrated), errors.Is(err, extract.ErrAlreadyRunning):
			httputil.Conflict(w, err.Error())
		default:
			httputil.InternalServerError(w, err.Error())
		}
		return
	}
	httputil.WriteJSONOK(w, s.status())
}

func (s *Server) referenceX(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		httputil.WriteJSONOK(w, map[string]int{"reference_x": s.ctrl.ReferenceX()})
	case http.MethodPost, http.MethodPut:
		x, err := strconv.Atoi(r.FormValue("x"))
		if err != nil || x < 0 {
			httputil.BadRequest(w, "Invalid 'x' parameter")
			return
		}
		s.ctrl.SetReferenceX(x)
		httputil.WriteJSONOK(w, map[string]int{"reference_x": s.ctrl.ReferenceX()})
	default:
		httputil.MethodNotAllowed(w)
	}
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	if s.index == nil {
		httputil.NotFound(w, "run index is disabled")
		return
	}
	runs, err := s.index.ListRuns()
	if err != nil {
		httputil.InternalServerError(w, "Failed to list runs: "+err.Error())
		return
	}
	if runs == nil {
		runs = []db.TraceRun{}
	}
	httputil.WriteJSONOK(w, runs)
}

func (s *Server) previewImage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	f, seq, ok := s.ctrl.Preview()
	if !ok || f.Image == nil {
		httputil.NotFound(w, "no frame published yet")
		return
	}
	img := f.Image
	if s.annotate != nil {
		var err error
		if img, err = s.annotate(f); err != nil {
			httputil.InternalServerError(w, "Failed to annotate frame: "+err.Error())
			return
		}
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("X-Preview-Seq", strconv.FormatUint(seq, 10))
	if err := png.Encode(w, img); err != nil {
		monitoring.Logf("[API] encode preview: %v", err)
	}
}

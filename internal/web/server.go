package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/gorilla/mux"

	"mockup-studio/internal/mockup"
	"mockup-studio/internal/session"
)

type Options struct {
	Sessions       *session.Store
	Logger         *slog.Logger
	MaxUploadBytes int64
	MaxUploadDim   int
	// BaseContext bounds generation runs, which outlive the request that started them.
	BaseContext context.Context
	RunTimeout  time.Duration
	Static      fs.FS
}

type Server struct {
	sessions       *session.Store
	logger         *slog.Logger
	maxUploadBytes int64
	maxUploadDim   int
	baseCtx        context.Context
	runTimeout     time.Duration
	static         fs.FS
}

type apiError struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	maxUpload := opts.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = 15 << 20
	}
	baseCtx := opts.BaseContext
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	runTimeout := opts.RunTimeout
	if runTimeout <= 0 {
		runTimeout = 5 * time.Minute
	}

	return &Server{
		sessions:       opts.Sessions,
		logger:         logger,
		maxUploadBytes: maxUpload,
		maxUploadDim:   opts.MaxUploadDim,
		baseCtx:        baseCtx,
		runTimeout:     runTimeout,
		static:         opts.Static,
	}
}

func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/catalog", s.handleCatalog).Methods(http.MethodGet)
	api.HandleFunc("/sessions", s.handleCreateSession).Methods(http.MethodPost)

	api.HandleFunc("/sessions/{id}", s.withSession(s.handleState)).Methods(http.MethodGet)
	api.HandleFunc("/sessions/{id}", s.withSession(s.handleDeleteSession)).Methods(http.MethodDelete)

	sess := api.PathPrefix("/sessions/{id}").Subrouter()
	sess.HandleFunc("/slots/{index:[0-9]+}", s.withSession(s.handlePutSlot)).Methods(http.MethodPut)
	sess.HandleFunc("/slots/{index:[0-9]+}", s.withSession(s.handleClearSlot)).Methods(http.MethodDelete)
	sess.HandleFunc("/outfit", s.withSession(s.handlePutOutfit)).Methods(http.MethodPut)
	sess.HandleFunc("/outfit", s.withSession(s.handleClearOutfit)).Methods(http.MethodDelete)
	sess.HandleFunc("/face", s.withSession(s.handlePutFace)).Methods(http.MethodPut)
	sess.HandleFunc("/face", s.withSession(s.handleClearFace)).Methods(http.MethodDelete)
	sess.HandleFunc("/options", s.withSession(s.handlePutOptions)).Methods(http.MethodPut)
	sess.HandleFunc("/prompts", s.withSession(s.handlePrompts)).Methods(http.MethodGet)
	sess.HandleFunc("/generate", s.withSession(s.handleGenerate)).Methods(http.MethodPost)
	sess.HandleFunc("/results/{slot}/regenerate", s.withSession(s.handleRegenerate)).Methods(http.MethodPost)
	sess.HandleFunc("/results/{slot}/image", s.withSession(s.handleSlotImage)).Methods(http.MethodGet)
	sess.HandleFunc("/download", s.withSession(s.handleDownload)).Methods(http.MethodGet)
	sess.HandleFunc("/events", s.withSession(s.handleEvents)).Methods(http.MethodGet)

	if s.static != nil {
		r.PathPrefix("/").Handler(withCSP(http.FileServer(http.FS(s.static))))
	}

	return withRecover(withLogging(r, s.logger), s.logger)
}

type sessionHandler func(w http.ResponseWriter, r *http.Request, sess *session.Session)

func (s *Server) withSession(next sessionHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := s.sessions.Get(mux.Vars(r)["id"])
		if !ok {
			writeJSON(w, http.StatusNotFound, apiError{Error: "session not found", Code: "session_not_found"})
			return
		}
		next(w, r, sess)
	}
}

// runContext detaches a run from its request and bounds it by the run timeout.
func (s *Server) runContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(s.baseCtx, s.runTimeout)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("content-type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps studio errors to HTTP answers.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, mockup.ErrNoImages):
		writeJSON(w, http.StatusBadRequest, apiError{Error: mockup.MessageNoImages, Code: "no_images"})
	case errors.Is(err, mockup.ErrBusy):
		writeJSON(w, http.StatusConflict, apiError{Error: err.Error(), Code: "busy"})
	case errors.Is(err, mockup.ErrNotGenerated):
		writeJSON(w, http.StatusConflict, apiError{Error: err.Error(), Code: "not_generated"})
	case errors.Is(err, mockup.ErrSlotUnavailable):
		writeJSON(w, http.StatusConflict, apiError{Error: err.Error(), Code: "slot_unavailable"})
	case errors.Is(err, mockup.ErrUnknownSlot):
		writeJSON(w, http.StatusNotFound, apiError{Error: err.Error(), Code: "unknown_slot"})
	case errors.Is(err, mockup.ErrSlotIndex),
		errors.Is(err, mockup.ErrEmptyUpload),
		errors.Is(err, mockup.ErrNotImage):
		writeJSON(w, http.StatusBadRequest, apiError{Error: err.Error(), Code: "bad_upload"})
	default:
		writeJSON(w, http.StatusInternalServerError, apiError{Error: err.Error()})
	}
}

// The UI only loads its own script, so injected markup in model text cannot run.
const contentSecurityPolicy = "default-src 'self'; script-src 'self'; style-src 'self'; " +
	"img-src 'self' blob:; connect-src 'self' ws: wss:; object-src 'none'; base-uri 'none'"

func withCSP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("content-security-policy", contentSecurityPolicy)
		w.Header().Set("x-content-type-options", "nosniff")
		next.ServeHTTP(w, r)
	})
}

func withLogging(next http.Handler, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logger.Info("http", "method", r.Method, "path", r.URL.Path, "dur_ms", time.Since(start).Milliseconds())
	})
}

func withRecover(next http.Handler, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				logger.Error("handler panic", "path", r.URL.Path, "panic", fmt.Sprint(rec))
				sentry.CurrentHub().Recover(rec)
				writeJSON(w, http.StatusInternalServerError, apiError{Error: "internal error"})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

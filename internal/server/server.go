package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/skobkin/joylink/internal/connectors"
	"github.com/skobkin/joylink/internal/device"
	"github.com/skobkin/joylink/internal/domain"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 1000
	maxRequestBody      = 1 << 16
	shutdownTimeout     = 5 * time.Second
)

type StatusSource interface {
	Current() connectors.ConnectionStatus
}

type ReadingSource interface {
	Latest() (domain.JoystickReading, bool)
}

type CommandSender interface {
	SendCommand(ctx context.Context, update domain.LEDCommand) <-chan device.SendResult
}

type ReadingHistory interface {
	ListRecent(ctx context.Context, limit int) ([]domain.JoystickReading, error)
}

type RequestRecorder interface {
	RecordHTTPRequest(method, path string, status int, duration time.Duration)
}

// Deps are the collaborators behind the HTTP API. History, Metrics and
// Recorder are optional.
type Deps struct {
	Status   StatusSource
	Readings ReadingSource
	Sender   CommandSender
	History  ReadingHistory
	Metrics  http.Handler
	Recorder RequestRecorder
	Logger   *slog.Logger
}

type handlers struct {
	deps   Deps
	logger *slog.Logger
}

func NewRouter(deps Deps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default().With("component", "server")
	}
	h := &handlers{deps: deps, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	if deps.Recorder != nil {
		r.Use(recordRequests(deps.Recorder))
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Route("/api", func(r chi.Router) {
		r.Get("/status", h.getStatus)
		r.Get("/joystick", h.getJoystick)
		r.Get("/readings", h.listReadings)
		r.Put("/led", h.putLED)
	})
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}

	return r
}

func (h *handlers) getStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.deps.Status.Current())
}

func (h *handlers) getJoystick(w http.ResponseWriter, _ *http.Request) {
	reading, ok := h.deps.Readings.Latest()
	if !ok {
		writeError(w, http.StatusNotFound, "no reading received yet")

		return
	}
	writeJSON(w, http.StatusOK, reading)
}

func (h *handlers) listReadings(w http.ResponseWriter, r *http.Request) {
	if h.deps.History == nil {
		writeError(w, http.StatusNotFound, "reading history is disabled")

		return
	}
	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 || v > maxHistoryLimit {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("limit must be 1..%d", maxHistoryLimit))

			return
		}
		limit = v
	}

	readings, err := h.deps.History.ListRecent(r.Context(), limit)
	if err != nil {
		h.logger.Error("list readings failed", "error", err)
		writeError(w, http.StatusInternalServerError, "list readings failed")

		return
	}
	writeJSON(w, http.StatusOK, readings)
}

func (h *handlers) putLED(w http.ResponseWriter, r *http.Request) {
	var cmd domain.LEDCommand
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cmd); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())

		return
	}
	if err := cmd.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())

		return
	}

	res := <-h.deps.Sender.SendCommand(r.Context(), cmd)
	switch {
	case res.Err == nil:
		writeJSON(w, http.StatusOK, sentCommandResponse{
			Payload: res.Command.Payload,
			SentAt:  res.Command.SentAt,
		})
	case errors.Is(res.Err, device.ErrNotOpen):
		writeError(w, http.StatusServiceUnavailable, res.Err.Error())
	default:
		h.logger.Warn("led command failed", "error", res.Err)
		writeError(w, http.StatusBadGateway, res.Err.Error())
	}
}

type sentCommandResponse struct {
	Payload string    `json:"payload"`
	SentAt  time.Time `json:"sent_at"`
}

func recordRequests(rec RequestRecorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			started := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			path := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if pattern := rctx.RoutePattern(); pattern != "" {
					path = pattern
				}
			}
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			rec.RecordHTTPRequest(r.Method, path, status, time.Since(started))
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// Serve runs the API on addr until ctx is done, then shuts down gracefully.
func Serve(ctx context.Context, addr string, handler http.Handler, logger *slog.Logger) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}

	return ServeListener(ctx, ln, handler, logger)
}

func ServeListener(ctx context.Context, ln net.Listener, handler http.Handler, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default().With("component", "server")
	}
	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http api listening", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}

		return fmt.Errorf("serve http api: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http api: %w", err)
		}
		logger.Info("http api stopped")

		return nil
	}
}

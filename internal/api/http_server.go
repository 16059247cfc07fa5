package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"vyvoz/internal/config"
	"vyvoz/internal/logging"
	"vyvoz/internal/metrics"
	"vyvoz/internal/models"
	"vyvoz/internal/report"
	"vyvoz/internal/schedule"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

const webhookPrefix = "/webhook/"

type SlotsReader interface {
	Location() *time.Location
	Capacity() int
	Slots(ctx context.Context, date string, now time.Time) ([]models.Slot, error)
}

type SummaryReader interface {
	Summary(ctx context.Context, date string) (*report.Summary, error)
}

// Deps источники данных сервера. Webhook может быть nil при long polling.
type Deps struct {
	Slots         SlotsReader
	Summaries     SummaryReader
	Webhook       http.Handler
	WebhookSecret string
	Ready         func(ctx context.Context) error
	Clock         schedule.Clock
}

// HTTPServer отдаёт служебные ручки, webhook Telegram и API только для чтения.
type HTTPServer struct {
	cfg    config.APIConfig
	deps   Deps
	server *http.Server
	auth   *HTTPAuth
	logger *zerolog.Logger
}

func NewHTTPServer(cfg config.APIConfig, deps Deps, logger *zerolog.Logger) *HTTPServer {
	if deps.Clock == nil {
		deps.Clock = schedule.RealClock()
	}
	srv := &HTTPServer{cfg: cfg, deps: deps, logger: logger}
	srv.auth = NewHTTPAuth(cfg)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", srv.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())
	if deps.Webhook != nil && deps.WebhookSecret != "" {
		mux.HandleFunc(webhookPrefix, srv.handleWebhook)
	}
	if cfg.Enabled {
		if deps.Slots != nil {
			mux.Handle("/api/v1/slots", srv.auth.Require(PermissionReadSlots, http.HandlerFunc(srv.handleSlots)))
		}
		if deps.Summaries != nil {
			mux.Handle("/api/v1/summary", srv.auth.Require(PermissionReadSummary, http.HandlerFunc(srv.handleSummary)))
		}
	}

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           loggingMiddleware(logger, mux),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      35 * time.Second,
	}

	return srv
}

func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return errors.New("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP server listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.Ready != nil {
		if err := s.deps.Ready(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleWebhook принимает обновления только по пути с секретом.
func (s *HTTPServer) handleWebhook(w http.ResponseWriter, r *http.Request) {
	secret := strings.TrimPrefix(r.URL.Path, webhookPrefix)
	if subtle.ConstantTimeCompare([]byte(secret), []byte(s.deps.WebhookSecret)) != 1 {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.deps.Webhook.ServeHTTP(w, r)
}

type slotView struct {
	Time      string `json:"time"`
	Capacity  int    `json:"capacity"`
	Booked    int    `json:"booked"`
	Remaining int    `json:"remaining"`
	Available bool   `json:"available"`
}

func (s *HTTPServer) handleSlots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	now := s.deps.Clock.Now()
	date := strings.TrimSpace(r.URL.Query().Get("date"))
	if date == "" {
		date = now.In(s.deps.Slots.Location()).Format(models.DateLayout)
	}

	slots, err := s.deps.Slots.Slots(r.Context(), date, now)
	var invalid *schedule.InvalidDateError
	if errors.As(err, &invalid) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		logging.FromContext(r.Context(), s.logger).Error().Err(err).Str("date", date).Msg("slots lookup failed")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	views := make([]slotView, 0, len(slots))
	free := 0
	for _, slot := range slots {
		if slot.Available() {
			free++
		}
		views = append(views, slotView{
			Time:      slot.Label,
			Capacity:  slot.Capacity,
			Booked:    slot.Booked,
			Remaining: slot.Remaining(),
			Available: slot.Available(),
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"date":         date,
		"capacity":     s.deps.Slots.Capacity(),
		"slots":        views,
		"fully_booked": free == 0,
	})
}

func (s *HTTPServer) handleSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	date := strings.TrimSpace(r.URL.Query().Get("date"))
	if date == "" {
		writeError(w, http.StatusBadRequest, "date is required")
		return
	}
	if _, err := time.Parse(models.DateLayout, date); err != nil {
		writeError(w, http.StatusBadRequest, "invalid date format; expected DD.MM.YYYY")
		return
	}

	summary, err := s.deps.Summaries.Summary(r.Context(), date)
	if err != nil {
		logging.FromContext(r.Context(), s.logger).Error().Err(err).Str("date", date).Msg("summary failed")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func loggingMiddleware(logger *zerolog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		reqLogger := logger.With().Str("request_id", uuid.NewString()).Logger()
		r = r.WithContext(reqLogger.WithContext(r.Context()))

		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		dur := time.Since(start)
		metrics.ObserveHTTP(endpointLabel(r.URL.Path), recorder.status, dur)
		reqLogger.Debug().
			Str("method", r.Method).
			Str("path", redactPath(r.URL.Path)).
			Int("status", recorder.status).
			Dur("duration", dur).
			Msg("http request")
	})
}

// endpointLabel не даёт секрету webhook попасть в метки метрик.
func endpointLabel(path string) string {
	switch {
	case strings.HasPrefix(path, webhookPrefix):
		return "webhook"
	case path == "/healthz", path == "/metrics", path == "/api/v1/slots", path == "/api/v1/summary":
		return strings.TrimPrefix(path, "/")
	default:
		return "other"
	}
}

func redactPath(path string) string {
	if strings.HasPrefix(path, webhookPrefix) {
		return webhookPrefix + "***"
	}
	return path
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

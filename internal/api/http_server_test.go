package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"vyvoz/internal/config"
	"vyvoz/internal/ledger"
	"vyvoz/internal/models"
	"vyvoz/internal/report"
	"vyvoz/internal/schedule"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testCatalog = models.Catalog{
	{ID: "one_bag", Name: "Один пакет", Price: 100},
	{ID: "bulk", Name: "Крупногабарит", Price: 400, Bulk: true},
}

type testEnv struct {
	ts      *httptest.Server
	store   *ledger.FileStore
	webhook int
}

func newTestEnv(t *testing.T, cfg config.APIConfig) *testEnv {
	t.Helper()
	logger := zerolog.New(io.Discard)
	store, err := ledger.NewFileStore(filepath.Join(t.TempDir(), "orders.csv"), &logger)
	require.NoError(t, err)

	loc, err := time.LoadLocation("Europe/Moscow")
	require.NoError(t, err)
	// 10.03.2025 14:30 МСК
	clock := schedule.NewFakeClock(time.Date(2025, 3, 10, 11, 30, 0, 0, time.UTC))
	alloc := schedule.NewAllocator(store, schedule.Config{Location: loc, FirstHour: 8, LastHour: 20, Capacity: 2})

	env := &testEnv{store: store}
	srv := NewHTTPServer(cfg, Deps{
		Slots:     alloc,
		Summaries: report.NewReader(store, testCatalog),
		Webhook: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			env.webhook++
			w.WriteHeader(http.StatusOK)
		}),
		WebhookSecret: "s3cret",
		Clock:         clock,
	}, &logger)

	env.ts = httptest.NewServer(srv.Handler())
	t.Cleanup(env.ts.Close)
	return env
}

func openCfg() config.APIConfig {
	return config.APIConfig{Enabled: true}
}

func authCfg() config.APIConfig {
	return config.APIConfig{
		Enabled: true,
		Auth: config.APIAuthConfig{
			Enabled: true,
			APIKeys: []config.APIClientKey{
				{Key: "k1", Extra: "e1", Name: "crm"},
				{Key: "k2", Extra: "e2", Name: "dashboard", Permissions: []string{PermissionReadSummary}},
			},
		},
	}
}

func get(t *testing.T, url string, headers map[string]string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&body)
	return resp, body
}

func bookedOrder(id, slot string) models.Order {
	return models.Order{
		ID:       id,
		UserID:   1,
		Product:  "one_bag",
		Address:  "ул. Ленина, д. 1",
		Date:     "10.03.2025",
		TimeSlot: slot,
		Status:   models.StatusPendingConfirmation,
	}
}

func TestSlots(t *testing.T) {
	env := newTestEnv(t, openCfg())
	ctx := context.Background()
	require.NoError(t, env.store.Append(ctx, bookedOrder("a", "15:00")))
	require.NoError(t, env.store.Append(ctx, bookedOrder("b", "15:00")))

	resp, body := get(t, env.ts.URL+"/api/v1/slots?date=10.03.2025", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	slots := body["slots"].([]any)
	require.Len(t, slots, 6) // 15:00..20:00
	first := slots[0].(map[string]any)
	assert.Equal(t, "15:00", first["time"])
	assert.Equal(t, false, first["available"])
	assert.Equal(t, float64(2), first["booked"])
	assert.Equal(t, false, body["fully_booked"])
}

func TestSlotsDefaultsToToday(t *testing.T) {
	env := newTestEnv(t, openCfg())

	resp, body := get(t, env.ts.URL+"/api/v1/slots", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "10.03.2025", body["date"])
}

func TestSlotsInvalidDate(t *testing.T) {
	env := newTestEnv(t, openCfg())

	resp, _ := get(t, env.ts.URL+"/api/v1/slots?date=12.03.2025", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = get(t, env.ts.URL+"/api/v1/slots?date=2025-03-10", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSummary(t *testing.T) {
	env := newTestEnv(t, openCfg())
	require.NoError(t, env.store.Append(context.Background(), bookedOrder("a", "15:00")))

	resp, body := get(t, env.ts.URL+"/api/v1/summary?date=10.03.2025", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(1), body["total"])
	assert.Equal(t, float64(100), body["revenue"])

	resp, _ = get(t, env.ts.URL+"/api/v1/summary", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = get(t, env.ts.URL+"/api/v1/summary?date=10-03-2025", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAuth(t *testing.T) {
	env := newTestEnv(t, authCfg())
	url := env.ts.URL + "/api/v1/slots?date=10.03.2025"

	resp, body := get(t, url, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, errMissingKey.Error(), body["error"])

	resp, _ = get(t, url, map[string]string{"x-api-key": "k1", "x-api-extra": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = get(t, url, map[string]string{"x-api-key": "nope", "x-api-extra": "e1"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = get(t, url, map[string]string{"x-api-key": "k1", "x-api-extra": "e1"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = get(t, url, map[string]string{"x-api-key": "k2", "x-api-extra": "e2"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = get(t, env.ts.URL+"/api/v1/summary?date=10.03.2025", map[string]string{"x-api-key": "k2", "x-api-extra": "e2"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRateLimit(t *testing.T) {
	cfg := openCfg()
	cfg.RateLimit = config.APIRateLimitConfig{RPS: 0.001, Burst: 2}
	env := newTestEnv(t, cfg)
	url := env.ts.URL + "/api/v1/slots?date=10.03.2025"

	for i := 0; i < 2; i++ {
		resp, _ := get(t, url, nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	}
	resp, _ := get(t, url, nil)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

func TestHealthAndMetrics(t *testing.T) {
	env := newTestEnv(t, config.APIConfig{})

	resp, body := get(t, env.ts.URL+"/healthz", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])

	resp, err := http.Get(env.ts.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// API выключен
	resp, _ = get(t, env.ts.URL+"/api/v1/slots", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHealthDegraded(t *testing.T) {
	logger := zerolog.Nop()
	srv := NewHTTPServer(config.APIConfig{}, Deps{
		Ready: func(context.Context) error { return errors.New("redis down") },
	}, &logger)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestWebhook(t *testing.T) {
	env := newTestEnv(t, openCfg())

	resp, err := http.Post(env.ts.URL+"/webhook/s3cret", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, env.webhook)

	resp, err = http.Post(env.ts.URL+"/webhook/guess", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = get(t, env.ts.URL+"/webhook/s3cret", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	assert.Equal(t, 1, env.webhook)
}

func TestEndpointLabel(t *testing.T) {
	assert.Equal(t, "webhook", endpointLabel("/webhook/s3cret"))
	assert.Equal(t, "api/v1/slots", endpointLabel("/api/v1/slots"))
	assert.Equal(t, "other", endpointLabel("/admin"))
	assert.Equal(t, "/webhook/***", redactPath("/webhook/s3cret"))
}

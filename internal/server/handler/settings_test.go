package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/junkhq/whalebot/internal/aggregate"
	"github.com/junkhq/whalebot/internal/domain"
	"github.com/junkhq/whalebot/internal/sweep"
	"github.com/junkhq/whalebot/internal/threshold"
)

func newTestSettingsHandler(t *testing.T) (*SettingsHandler, *threshold.State, *aggregate.Aggregator, *sweep.Detector) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	state := threshold.NewState(decimal.NewFromInt(300), threshold.DynamicParams{
		VolumeMultiplier: decimal.NewFromFloat(0.05),
		MinThreshold:     decimal.NewFromInt(100),
		MaxThreshold:     decimal.NewFromInt(1000),
	})
	alerts := make(chan domain.AlertEvent, 1)
	agg := aggregate.New(state, alerts, aggregate.Options{Window: 8 * time.Second, Enabled: true}, logger)
	det := sweep.New(decimal.NewFromInt(80), true, alerts, logger)
	return NewSettingsHandler(state, agg, det, logger), state, agg, det
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var doc map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	return doc
}

func TestSettingsGet(t *testing.T) {
	h, _, _, _ := newTestSettingsHandler(t)

	rec := httptest.NewRecorder()
	h.Get(rec, httptest.NewRequest(http.MethodGet, "/api/settings", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	doc := decode(t, rec)
	thresholdDoc := doc["threshold"].(map[string]any)
	assert.Equal(t, "300", thresholdDoc["base_value"])
	aggregation := doc["aggregation"].(map[string]any)
	assert.Equal(t, float64(8), aggregation["window_seconds"])
	sweepDoc := doc["sweep"].(map[string]any)
	assert.Equal(t, true, sweepDoc["enabled"])
}

func TestUpdateThresholdBase(t *testing.T) {
	h, state, _, _ := newTestSettingsHandler(t)

	body := strings.NewReader(`{"base_value": 450}`)
	rec := httptest.NewRecorder()
	h.UpdateThreshold(rec, httptest.NewRequest(http.MethodPut, "/api/settings/threshold", body))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, state.Current().Equal(decimal.NewFromInt(450)))
}

func TestUpdateThresholdRejectsNonPositiveBase(t *testing.T) {
	h, state, _, _ := newTestSettingsHandler(t)

	body := strings.NewReader(`{"base_value": -5}`)
	rec := httptest.NewRecorder()
	h.UpdateThreshold(rec, httptest.NewRequest(http.MethodPut, "/api/settings/threshold", body))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.True(t, state.Current().Equal(decimal.NewFromInt(300)))
}

func TestUpdateThresholdRejectsInvertedBounds(t *testing.T) {
	h, _, _, _ := newTestSettingsHandler(t)

	body := strings.NewReader(`{"min_threshold": 900, "max_threshold": 200}`)
	rec := httptest.NewRecorder()
	h.UpdateThreshold(rec, httptest.NewRequest(http.MethodPut, "/api/settings/threshold", body))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateThresholdRejectsUnknownFields(t *testing.T) {
	h, _, _, _ := newTestSettingsHandler(t)

	body := strings.NewReader(`{"base_valu": 450}`)
	rec := httptest.NewRecorder()
	h.UpdateThreshold(rec, httptest.NewRequest(http.MethodPut, "/api/settings/threshold", body))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateThresholdEnablesDynamic(t *testing.T) {
	h, state, _, _ := newTestSettingsHandler(t)

	body := strings.NewReader(`{"dynamic_enabled": true, "min_threshold": 200, "max_threshold": 800}`)
	rec := httptest.NewRecorder()
	h.UpdateThreshold(rec, httptest.NewRequest(http.MethodPut, "/api/settings/threshold", body))

	require.Equal(t, http.StatusOK, rec.Code)
	snap := state.Get()
	assert.True(t, snap.Dynamic)
	assert.True(t, snap.Params.MinThreshold.Equal(decimal.NewFromInt(200)))
}

func TestUpdateAggregation(t *testing.T) {
	h, _, agg, _ := newTestSettingsHandler(t)

	body := strings.NewReader(`{"window_seconds": 15, "enabled": false, "count_unknown_side": true}`)
	rec := httptest.NewRecorder()
	h.UpdateAggregation(rec, httptest.NewRequest(http.MethodPut, "/api/settings/aggregation", body))

	require.Equal(t, http.StatusOK, rec.Code)
	opts := agg.Options()
	assert.Equal(t, 15*time.Second, opts.Window)
	assert.False(t, opts.Enabled)
	assert.True(t, opts.CountUnknownSide)
}

func TestUpdateAggregationRejectsZeroWindow(t *testing.T) {
	h, _, agg, _ := newTestSettingsHandler(t)

	body := strings.NewReader(`{"window_seconds": 0}`)
	rec := httptest.NewRecorder()
	h.UpdateAggregation(rec, httptest.NewRequest(http.MethodPut, "/api/settings/aggregation", body))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 8*time.Second, agg.Options().Window)
}

func TestUpdateSweep(t *testing.T) {
	h, _, _, det := newTestSettingsHandler(t)

	body := strings.NewReader(`{"min_value": 150, "enabled": false}`)
	rec := httptest.NewRecorder()
	h.UpdateSweep(rec, httptest.NewRequest(http.MethodPut, "/api/settings/sweep", body))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, det.MinValue().Equal(decimal.NewFromInt(150)))
	assert.False(t, det.Enabled())
}

func TestHealthCheck(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewHealthHandler("full", logger)

	rec := httptest.NewRecorder()
	h.HealthCheck(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	doc := decode(t, rec)
	assert.Equal(t, "ok", doc["status"])
	assert.Equal(t, "full", doc["mode"])
}

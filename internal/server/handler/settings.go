package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/junkhq/whalebot/internal/aggregate"
	"github.com/junkhq/whalebot/internal/sweep"
	"github.com/junkhq/whalebot/internal/threshold"
)

// SettingsHandler exposes the runtime-tunable alerting parameters: base and
// dynamic threshold, aggregation window, and sweep floor. Every PUT is a
// partial update; omitted fields keep their current value.
type SettingsHandler struct {
	thresholds *threshold.State
	aggregator *aggregate.Aggregator
	sweeps     *sweep.Detector
	logger     *slog.Logger
}

// NewSettingsHandler creates a SettingsHandler over the live components.
func NewSettingsHandler(thresholds *threshold.State, aggregator *aggregate.Aggregator, sweeps *sweep.Detector, logger *slog.Logger) *SettingsHandler {
	return &SettingsHandler{
		thresholds: thresholds,
		aggregator: aggregator,
		sweeps:     sweeps,
		logger:     logger,
	}
}

// Get returns all current settings.
// GET /api/settings
func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.settings())
}

type thresholdUpdate struct {
	BaseValue        *float64 `json:"base_value"`
	DynamicEnabled   *bool    `json:"dynamic_enabled"`
	VolumeMultiplier *float64 `json:"volume_multiplier"`
	MinThreshold     *float64 `json:"min_threshold"`
	MaxThreshold     *float64 `json:"max_threshold"`
}

// UpdateThreshold partially updates the threshold state.
// PUT /api/settings/threshold
func (h *SettingsHandler) UpdateThreshold(w http.ResponseWriter, r *http.Request) {
	var upd thresholdUpdate
	if err := decodeBody(r, &upd); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body: "+err.Error())
		return
	}

	if upd.BaseValue != nil {
		if *upd.BaseValue <= 0 {
			writeError(w, http.StatusBadRequest, "base_value must be > 0")
			return
		}
		h.thresholds.SetBase(decimal.NewFromFloat(*upd.BaseValue))
	}

	if upd.VolumeMultiplier != nil || upd.MinThreshold != nil || upd.MaxThreshold != nil {
		params := h.thresholds.Get().Params
		if upd.VolumeMultiplier != nil {
			if *upd.VolumeMultiplier < 0 {
				writeError(w, http.StatusBadRequest, "volume_multiplier must be >= 0")
				return
			}
			params.VolumeMultiplier = decimal.NewFromFloat(*upd.VolumeMultiplier)
		}
		if upd.MinThreshold != nil {
			params.MinThreshold = decimal.NewFromFloat(*upd.MinThreshold)
		}
		if upd.MaxThreshold != nil {
			params.MaxThreshold = decimal.NewFromFloat(*upd.MaxThreshold)
		}
		if params.MaxThreshold.LessThan(params.MinThreshold) {
			writeError(w, http.StatusBadRequest, "max_threshold must be >= min_threshold")
			return
		}
		h.thresholds.SetParams(params)
	}

	if upd.DynamicEnabled != nil {
		h.thresholds.SetDynamic(*upd.DynamicEnabled)
	}

	h.logger.Info("threshold settings updated via api")
	writeJSON(w, http.StatusOK, h.settings())
}

type aggregationUpdate struct {
	Enabled          *bool `json:"enabled"`
	WindowSeconds    *int  `json:"window_seconds"`
	CountUnknownSide *bool `json:"count_unknown_side"`
}

// UpdateAggregation partially updates the aggregation window settings.
// PUT /api/settings/aggregation
func (h *SettingsHandler) UpdateAggregation(w http.ResponseWriter, r *http.Request) {
	var upd aggregationUpdate
	if err := decodeBody(r, &upd); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body: "+err.Error())
		return
	}

	if upd.WindowSeconds != nil {
		if *upd.WindowSeconds <= 0 {
			writeError(w, http.StatusBadRequest, "window_seconds must be > 0")
			return
		}
		h.aggregator.SetWindow(time.Duration(*upd.WindowSeconds) * time.Second)
	}
	if upd.Enabled != nil {
		h.aggregator.SetEnabled(*upd.Enabled)
	}
	if upd.CountUnknownSide != nil {
		h.aggregator.SetCountUnknownSide(*upd.CountUnknownSide)
	}

	h.logger.Info("aggregation settings updated via api")
	writeJSON(w, http.StatusOK, h.settings())
}

type sweepUpdate struct {
	Enabled  *bool    `json:"enabled"`
	MinValue *float64 `json:"min_value"`
}

// UpdateSweep partially updates the sweep detection settings.
// PUT /api/settings/sweep
func (h *SettingsHandler) UpdateSweep(w http.ResponseWriter, r *http.Request) {
	var upd sweepUpdate
	if err := decodeBody(r, &upd); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body: "+err.Error())
		return
	}

	if upd.MinValue != nil {
		if *upd.MinValue <= 0 {
			writeError(w, http.StatusBadRequest, "min_value must be > 0")
			return
		}
		h.sweeps.SetMinValue(decimal.NewFromFloat(*upd.MinValue))
	}
	if upd.Enabled != nil {
		h.sweeps.SetEnabled(*upd.Enabled)
	}

	h.logger.Info("sweep settings updated via api")
	writeJSON(w, http.StatusOK, h.settings())
}

// settings assembles the full settings document returned by every endpoint.
func (h *SettingsHandler) settings() map[string]any {
	snap := h.thresholds.Get()
	opts := h.aggregator.Options()
	sellTrades, sellValue := h.aggregator.Stats()

	return map[string]any{
		"threshold": map[string]any{
			"current":           snap.Current,
			"base_value":        snap.Base,
			"dynamic_enabled":   snap.Dynamic,
			"volume_multiplier": snap.Params.VolumeMultiplier,
			"min_threshold":     snap.Params.MinThreshold,
			"max_threshold":     snap.Params.MaxThreshold,
		},
		"aggregation": map[string]any{
			"enabled":            opts.Enabled,
			"window_seconds":     int(opts.Window / time.Second),
			"count_unknown_side": opts.CountUnknownSide,
		},
		"sweep": map[string]any{
			"enabled":   h.sweeps.Enabled(),
			"min_value": h.sweeps.MinValue(),
		},
		"stats": map[string]any{
			"sell_trades_filtered": sellTrades,
			"sell_value_filtered":  sellValue,
		},
	}
}

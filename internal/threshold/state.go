// Package threshold owns the process-wide alert threshold: a fixed base
// value, optionally adjusted from recent traded volume by a periodic
// controller, always clamped to configured bounds. Ingestion paths read the
// current value on every evaluation; buckets are judged against whatever
// value is current at flush time.
package threshold

import (
	"sync"

	"github.com/shopspring/decimal"
)

// DynamicParams configures the volume-adjusted recalculation.
type DynamicParams struct {
	VolumeMultiplier decimal.Decimal
	MinThreshold     decimal.Decimal
	MaxThreshold     decimal.Decimal
}

// Snapshot is a consistent read of the whole threshold state.
type Snapshot struct {
	Current decimal.Decimal
	Base    decimal.Decimal
	Dynamic bool
	Params  DynamicParams
}

// State holds the active alert threshold. It is safe for concurrent use;
// reads never observe a partially updated value.
type State struct {
	mu      sync.RWMutex
	base    decimal.Decimal
	current decimal.Decimal
	dynamic bool
	params  DynamicParams
}

// NewState creates a State with the given base value. The threshold starts in
// fixed mode with current == base.
func NewState(base decimal.Decimal, params DynamicParams) *State {
	return &State{
		base:    base,
		current: base,
		params:  params,
	}
}

// Current returns the active threshold value.
func (s *State) Current() decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Get returns a consistent snapshot of the full state.
func (s *State) Get() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		Current: s.current,
		Base:    s.base,
		Dynamic: s.dynamic,
		Params:  s.params,
	}
}

// SetBase updates the base value. In fixed mode the active threshold follows
// immediately; in dynamic mode the new base takes effect on the next
// recalculation.
func (s *State) SetBase(base decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.base = base
	if !s.dynamic {
		s.current = base
	}
}

// SetParams replaces the dynamic recalculation parameters. If dynamic mode is
// active, the current value is re-clamped to the new bounds so the
// min <= current <= max invariant holds without waiting for the next tick.
func (s *State) SetParams(params DynamicParams) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.params = params
	if s.dynamic {
		s.current = clamp(s.current, params.MinThreshold, params.MaxThreshold)
	}
}

// SetDynamic toggles dynamic mode. Disabling snaps the active threshold back
// to the base value; enabling clamps the current value into bounds until the
// controller's next recalculation refines it.
func (s *State) SetDynamic(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dynamic = enabled
	if enabled {
		s.current = clamp(s.current, s.params.MinThreshold, s.params.MaxThreshold)
	} else {
		s.current = s.base
	}
}

// recalc computes and installs a new threshold from the observed volume:
// clamp(base + volume*multiplier, min, max). It is a no-op in fixed mode.
func (s *State) recalc(volume decimal.Decimal) decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.dynamic {
		return s.current
	}
	candidate := s.base.Add(volume.Mul(s.params.VolumeMultiplier))
	s.current = clamp(candidate, s.params.MinThreshold, s.params.MaxThreshold)
	return s.current
}

// restore installs a previously computed dynamic threshold, re-clamped to
// the current bounds. No-op in fixed mode.
func (s *State) restore(v decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dynamic {
		s.current = clamp(v, s.params.MinThreshold, s.params.MaxThreshold)
	}
}

func clamp(v, min, max decimal.Decimal) decimal.Decimal {
	if v.LessThan(min) {
		return min
	}
	if v.GreaterThan(max) {
		return max
	}
	return v
}

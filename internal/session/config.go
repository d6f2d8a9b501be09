package session

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ayusman/sitstand/internal/calibration"
	"github.com/ayusman/sitstand/internal/gate"
	"github.com/ayusman/sitstand/internal/phase"
	"github.com/ayusman/sitstand/internal/scoring"
)

// Config aggregates every tunable used by a session.
type Config struct {
	DurationMs       int64 `json:"duration_ms"`
	MaxDescentMs     int64 `json:"max_descent_ms"`
	MaxLowConfidence int   `json:"max_low_confidence"`
	HistorySize      int   `json:"history_size"`

	Orientation gate.OrientationConfig `json:"orientation"`
	Stability   gate.StabilityConfig   `json:"stability"`
	Arms        gate.ArmsConfig        `json:"arms"`
	Side        gate.SideConfig        `json:"side"`
	Calibration calibration.Config     `json:"calibration"`
	Phase       phase.Config           `json:"phase"`
	Scoring     scoring.Config         `json:"scoring"`
}

// DefaultConfig returns a 30 second session with the default thresholds.
func DefaultConfig() Config {
	return Config{
		DurationMs:       30000,
		MaxDescentMs:     4000,
		MaxLowConfidence: 6,
		HistorySize:      10,
		Orientation:      gate.DefaultOrientationConfig(),
		Stability:        gate.DefaultStabilityConfig(),
		Arms:             gate.DefaultArmsConfig(),
		Side:             gate.DefaultSideConfig(),
		Calibration:      calibration.DefaultConfig(),
		Phase:            phase.DefaultConfig(),
		Scoring:          scoring.DefaultConfig(),
	}
}

// Validate checks the values that would make a session misbehave.
func (c Config) Validate() error {
	var errs []error
	if c.DurationMs < 0 {
		errs = append(errs, errors.New("duration_ms must not be negative"))
	}
	if c.HistorySize < 1 {
		errs = append(errs, errors.New("history_size must be at least 1"))
	}
	if c.Orientation.CloseDeg > c.Orientation.OpenDeg {
		errs = append(errs, errors.New("orientation close_deg must not exceed open_deg"))
	}
	if c.Arms.CrossedDeg > c.Arms.ExtendedDeg {
		errs = append(errs, errors.New("arms crossed_deg must not exceed extended_deg"))
	}
	if c.Phase.BottomBand >= c.Phase.TopBand {
		errs = append(errs, errors.New("phase bottom_band must be below top_band"))
	}
	if c.Calibration.MinSamples < 1 {
		errs = append(errs, errors.New("calibration min_samples must be at least 1"))
	}
	return errors.Join(errs...)
}

// ParseConfig overlays JSON onto the defaults. Fields absent from data keep
// their default values.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	if len(data) == 0 {
		return cfg, nil
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse session config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid session config: %w", err)
	}
	return cfg, nil
}

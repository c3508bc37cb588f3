// Package config loads estimator tuning parameters from a JSON file.
// Every field is optional; omitted fields fall back to the Get* defaults,
// so partial configs are safe.
package config

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
)

// TuningConfig is the root tuning document. Pointer fields distinguish
// "absent" from "explicitly zero". Noise diagonals are plain slices where
// nil means "use the variant's tuned default".
type TuningConfig struct {
	// Estimator cadence
	Dt *float64 `json:"dt,omitempty"` // sample interval for live operation (s)

	// Frozen-bearing reduced model
	FrozenBearing *float64 `json:"frozen_bearing,omitempty"` // rad

	// Landmark position for range/bearing sensing
	LandmarkX      *float64 `json:"landmark_x,omitempty"`
	LandmarkY      *float64 `json:"landmark_y,omitempty"`
	LandmarkOffset *float64 `json:"landmark_offset,omitempty"` // out-of-plane

	// Differential-drive geometry
	HalfTrack   *float64 `json:"half_track,omitempty"`   // m
	WheelRadius *float64 `json:"wheel_radius,omitempty"` // m

	// Quadrotor parameters
	Mass    *float64 `json:"mass,omitempty"`    // kg
	Inertia *float64 `json:"inertia,omitempty"` // kg·m²
	Gravity *float64 `json:"gravity,omitempty"` // m/s²

	// Noise covariance diagonals (nil = variant default)
	ProcessNoiseDiag      []float64 `json:"process_noise_diag,omitempty"`
	MeasurementNoiseDiag  []float64 `json:"measurement_noise_diag,omitempty"`
	InitialCovarianceDiag []float64 `json:"initial_covariance_diag,omitempty"`
}

// EmptyTuningConfig returns a TuningConfig with every field unset.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig reads and validates a tuning file. The path must carry
// a .json extension and stay under a small size cap.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	info, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if info.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks that the configured values can drive an estimator.
func (c *TuningConfig) Validate() error {
	if c.Dt != nil && *c.Dt <= 0 {
		return fmt.Errorf("dt must be positive, got %g", *c.Dt)
	}
	if c.HalfTrack != nil && *c.HalfTrack <= 0 {
		return fmt.Errorf("half_track must be positive, got %g", *c.HalfTrack)
	}
	if c.WheelRadius != nil && *c.WheelRadius <= 0 {
		return fmt.Errorf("wheel_radius must be positive, got %g", *c.WheelRadius)
	}
	if c.Mass != nil && *c.Mass <= 0 {
		return fmt.Errorf("mass must be positive, got %g", *c.Mass)
	}
	if c.Inertia != nil && *c.Inertia <= 0 {
		return fmt.Errorf("inertia must be positive, got %g", *c.Inertia)
	}
	for i, v := range c.MeasurementNoiseDiag {
		if v <= 0 {
			return fmt.Errorf("measurement_noise_diag[%d] must be positive, got %g", i, v)
		}
	}
	for i, v := range c.ProcessNoiseDiag {
		if v < 0 {
			return fmt.Errorf("process_noise_diag[%d] must be non-negative, got %g", i, v)
		}
	}
	for i, v := range c.InitialCovarianceDiag {
		if v < 0 {
			return fmt.Errorf("initial_covariance_diag[%d] must be non-negative, got %g", i, v)
		}
	}
	return nil
}

// GetDt returns the live sample interval or the default.
func (c *TuningConfig) GetDt() float64 {
	if c.Dt == nil {
		return 0.1
	}
	return *c.Dt
}

// GetFrozenBearing returns the frozen bearing or the default.
func (c *TuningConfig) GetFrozenBearing() float64 {
	if c.FrozenBearing == nil {
		return math.Pi / 4
	}
	return *c.FrozenBearing
}

// GetHalfTrack returns the half track width or the default.
func (c *TuningConfig) GetHalfTrack() float64 {
	if c.HalfTrack == nil {
		return 0.08
	}
	return *c.HalfTrack
}

// GetWheelRadius returns the wheel radius or the default.
func (c *TuningConfig) GetWheelRadius() float64 {
	if c.WheelRadius == nil {
		return 0.033
	}
	return *c.WheelRadius
}

// GetMass returns the quadrotor mass or the default.
func (c *TuningConfig) GetMass() float64 {
	if c.Mass == nil {
		return 0.92
	}
	return *c.Mass
}

// GetInertia returns the quadrotor moment of inertia or the default.
func (c *TuningConfig) GetInertia() float64 {
	if c.Inertia == nil {
		return 0.0023
	}
	return *c.Inertia
}

// GetGravity returns gravitational acceleration or the default.
func (c *TuningConfig) GetGravity() float64 {
	if c.Gravity == nil {
		return 9.81
	}
	return *c.Gravity
}

// Package config loads the device tuning file. The JSON schema uses
// pointer-typed optional fields so a partial file is safe: every value
// is read through a Get* accessor that falls back to a compiled-in
// default. Durations are written as strings ("500ms", "45s") and parsed
// with time.ParseDuration.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jaspreeeet/kaku/internal/gesture"
	"github.com/jaspreeeet/kaku/internal/pet"
)

// TuningConfig is the root of the tuning file. Nil fields fall back to
// defaults; the same JSON shape is accepted for partial overrides.
type TuningConfig struct {
	// Sampling loop
	SampleInterval   *string `json:"sample_interval,omitempty"`    // duration string like "50ms"
	MotionStaleAfter *string `json:"motion_stale_after,omitempty"` // duration string like "2s"
	CameraStaleAfter *string `json:"camera_stale_after,omitempty"`

	// Gesture thresholds
	StepThresholdG   *float64 `json:"step_threshold_g,omitempty"`
	StepRefractory   *string  `json:"step_refractory,omitempty"`
	ShakeReversals   *int     `json:"shake_reversals,omitempty"`
	ShakeWindow      *string  `json:"shake_window,omitempty"`
	TiltThresholdG   *float64 `json:"tilt_threshold_g,omitempty"`
	TiltHoldDuration *string  `json:"tilt_hold_duration,omitempty"`
	CoverHold        *string  `json:"cover_hold,omitempty"`

	// Simulation
	FeedPortion       *int     `json:"feed_portion,omitempty"`
	HungerEscalation  *string  `json:"hunger_escalation,omitempty"`
	SleepDuration     *string  `json:"sleep_duration,omitempty"`
	AwakeDuration     *string  `json:"awake_duration,omitempty"`
	DirtySickAfter    *string  `json:"dirty_sick_after,omitempty"`
	PoopCheckInterval *string  `json:"poop_check_interval,omitempty"`
	PoopBaseChance    *float64 `json:"poop_base_chance,omitempty"`

	// Display
	FrameInterval *string `json:"frame_interval,omitempty"`
	StartupHold   *string `json:"startup_hold,omitempty"`

	// Backend sync
	SyncInterval *string `json:"sync_interval,omitempty"`
}

// EmptyTuningConfig returns a TuningConfig with every field unset, so
// all accessors return their defaults.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig reads and validates a tuning file. Fields omitted
// from the JSON keep their defaults, so partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
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

// Validate checks that every set field parses and is in range.
func (c *TuningConfig) Validate() error {
	durations := map[string]*string{
		"sample_interval":     c.SampleInterval,
		"motion_stale_after":  c.MotionStaleAfter,
		"camera_stale_after":  c.CameraStaleAfter,
		"step_refractory":     c.StepRefractory,
		"shake_window":        c.ShakeWindow,
		"tilt_hold_duration":  c.TiltHoldDuration,
		"cover_hold":          c.CoverHold,
		"hunger_escalation":   c.HungerEscalation,
		"sleep_duration":      c.SleepDuration,
		"awake_duration":      c.AwakeDuration,
		"dirty_sick_after":    c.DirtySickAfter,
		"poop_check_interval": c.PoopCheckInterval,
		"frame_interval":      c.FrameInterval,
		"startup_hold":        c.StartupHold,
		"sync_interval":       c.SyncInterval,
	}
	for name, v := range durations {
		if v == nil || *v == "" {
			continue
		}
		d, err := time.ParseDuration(*v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", name, *v, err)
		}
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %q", name, *v)
		}
	}

	if c.StepThresholdG != nil && *c.StepThresholdG <= 0 {
		return fmt.Errorf("step_threshold_g must be positive, got %f", *c.StepThresholdG)
	}
	if c.TiltThresholdG != nil && *c.TiltThresholdG <= 0 {
		return fmt.Errorf("tilt_threshold_g must be positive, got %f", *c.TiltThresholdG)
	}
	if c.ShakeReversals != nil && *c.ShakeReversals < 1 {
		return fmt.Errorf("shake_reversals must be at least 1, got %d", *c.ShakeReversals)
	}
	if c.FeedPortion != nil && *c.FeedPortion < 1 {
		return fmt.Errorf("feed_portion must be at least 1, got %d", *c.FeedPortion)
	}
	if c.PoopBaseChance != nil && (*c.PoopBaseChance < 0 || *c.PoopBaseChance > 1) {
		return fmt.Errorf("poop_base_chance must be between 0 and 1, got %f", *c.PoopBaseChance)
	}

	return nil
}

// duration parses v, returning def when v is unset or malformed.
// Validate already rejected malformed values on the load path.
func duration(v *string, def time.Duration) time.Duration {
	if v == nil || *v == "" {
		return def
	}
	d, err := time.ParseDuration(*v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// GetSampleInterval returns the sampling cadence.
func (c *TuningConfig) GetSampleInterval() time.Duration {
	return duration(c.SampleInterval, 50*time.Millisecond)
}

// GetMotionStaleAfter returns how long a quiet motion feed is tolerated
// before the sampler degrades it.
func (c *TuningConfig) GetMotionStaleAfter() time.Duration {
	return duration(c.MotionStaleAfter, 2*time.Second)
}

// GetCameraStaleAfter returns the frame age past which the camera is
// treated as degraded.
func (c *TuningConfig) GetCameraStaleAfter() time.Duration {
	return duration(c.CameraStaleAfter, 2*time.Second)
}

// GetFrameInterval returns the render cadence.
func (c *TuningConfig) GetFrameInterval() time.Duration {
	return duration(c.FrameInterval, 125*time.Millisecond)
}

// GetStartupHold returns how long the boot animation is held.
func (c *TuningConfig) GetStartupHold() time.Duration {
	return duration(c.StartupHold, 5*time.Second)
}

// GetSyncInterval returns the backend push/pull cadence.
func (c *TuningConfig) GetSyncInterval() time.Duration {
	return duration(c.SyncInterval, 15*time.Second)
}

// GestureConfig maps the tuning file onto the recognizer thresholds.
// Unset fields stay zero and pick up the recognizer's own defaults.
func (c *TuningConfig) GestureConfig() gesture.Config {
	out := gesture.Config{}
	if c.StepThresholdG != nil {
		out.StepThresholdG = *c.StepThresholdG
	}
	out.StepRefractory = duration(c.StepRefractory, 0)
	if c.ShakeReversals != nil {
		out.ShakeReversals = *c.ShakeReversals
	}
	out.ShakeWindow = duration(c.ShakeWindow, 0)
	if c.TiltThresholdG != nil {
		out.TiltThresholdG = *c.TiltThresholdG
	}
	out.TiltHoldDuration = duration(c.TiltHoldDuration, 0)
	out.CoverHoldDuration = duration(c.CoverHold, 0)
	return out
}

// PetParams maps the tuning file onto the simulation parameters. Unset
// fields stay zero and pick up the machine's own defaults.
func (c *TuningConfig) PetParams() pet.Params {
	out := pet.Params{}
	if c.FeedPortion != nil {
		out.FeedPortion = *c.FeedPortion
	}
	out.HungerEscalation = duration(c.HungerEscalation, 0)
	out.SleepDuration = duration(c.SleepDuration, 0)
	out.AwakeDuration = duration(c.AwakeDuration, 0)
	out.DirtySickAfter = duration(c.DirtySickAfter, 0)
	out.PoopCheckInterval = duration(c.PoopCheckInterval, 0)
	if c.PoopBaseChance != nil {
		out.PoopBaseProbability = *c.PoopBaseChance
	}
	return out
}

package game

import "math"

// AccelSample is one accelerometer reading streamed by a player device.
// Axis values are in device units where 10 is the per-axis maximum.
type AccelSample struct {
	X         float64
	Y         float64
	Z         float64
	Timestamp int64
}

// Magnitude returns the Euclidean magnitude of the sample.
func (s AccelSample) Magnitude() float64 {
	return math.Sqrt(s.X*s.X + s.Y*s.Y + s.Z*s.Z)
}

// IsFinite reports whether every axis is a finite number. Clients are
// trusted but not that much.
func (s AccelSample) IsFinite() bool {
	return !math.IsNaN(s.X) && !math.IsInf(s.X, 0) &&
		!math.IsNaN(s.Y) && !math.IsInf(s.Y, 0) &&
		!math.IsNaN(s.Z) && !math.IsInf(s.Z, 0)
}

// maxMagnitude is the largest possible sample magnitude: sqrt(10^2 * 3).
var maxMagnitude = math.Sqrt(300)

// intensityFromMagnitude normalizes a magnitude into [0, 1].
func intensityFromMagnitude(m float64) float64 {
	i := m / maxMagnitude
	if i > 1 {
		return 1
	}
	if i < 0 {
		return 0
	}
	return i
}

// MovementConfig is the global movement tuning shared by every player.
// SpeedShift and sensitivity presets mutate the live struct mid-round;
// all mutation happens on the engine executor, so plain field access is
// safe for code running inside a tick.
type MovementConfig struct {
	DangerThreshold  float64 `json:"dangerThreshold"`
	DamageMultiplier float64 `json:"damageMultiplier"`
	DeathThreshold   float64 `json:"deathThreshold"`
	HistorySize      int     `json:"historySize"`
	SmoothingEnabled bool    `json:"smoothingEnabled"`
	OneshotMode      bool    `json:"oneshotMode"`
}

// DefaultMovementConfig returns the "normal" sensitivity tuning.
func DefaultMovementConfig() MovementConfig {
	return MovementConfig{
		DangerThreshold:  0.35,
		DamageMultiplier: 50,
		DeathThreshold:   100,
		HistorySize:      5,
		SmoothingEnabled: true,
		OneshotMode:      false,
	}
}

package game

import (
	"math"
	"math/rand"
)

// GameEvent is a round-scoped dynamic modifier. The engine drives the
// activation state machine: every tick it calls OnTick, then asks an
// inactive event ShouldActivate (OnStart on yes) or an active one
// ShouldDeactivate (OnEnd on yes).
type GameEvent interface {
	Name() string
	OnRoundStart(e *Engine, now int64)
	ShouldActivate(e *Engine, now int64) bool
	OnStart(e *Engine, now int64)
	OnTick(e *Engine, now, dt int64)
	ShouldDeactivate(e *Engine, now int64) bool
	OnEnd(e *Engine, now int64)
	OnRoundEnd(e *Engine, now int64)
	OnPlayerDeath(e *Engine, p *Player, now int64)
}

// eventRuntime pairs an event with its activation flag.
type eventRuntime struct {
	ev     GameEvent
	active bool
}

// SpeedShift tuning.
const (
	speedShiftCheckIntervalMs   = 5000
	speedShiftTransitionDelayMs = 1000
	speedShiftFastMultiplier    = 2.0
	speedShiftStaySlow          = 0.75
	speedShiftStayFast          = 2.0 / 3.0
)

// SpeedShift alternates a round between a slow phase (difficulty
// unchanged) and a fast phase (danger threshold doubled, so players may
// move twice as hard). Phase changes are Bernoulli trials every check
// interval; the stay probability decays as stayBase^n with n consecutive
// checks without a transition, so no phase drags on forever.
//
// Leaving the fast phase announces the change immediately but keeps the
// loose threshold for a short delay, giving players a reaction window
// after the audio cue before stillness is enforced again.
type SpeedShift struct {
	rng *rand.Rand

	nextCheckAt int64
	stayStreak  int
	fast        bool
	saved       float64
	restoreAt   int64
}

// NewSpeedShift creates the event with its own RNG so tests can pin the
// phase schedule.
func NewSpeedShift(rng *rand.Rand) *SpeedShift {
	return &SpeedShift{rng: rng}
}

func (s *SpeedShift) Name() string { return "speed-shift" }

func (s *SpeedShift) OnRoundStart(e *Engine, now int64) {
	s.nextCheckAt = now + speedShiftCheckIntervalMs
	s.stayStreak = 0
	s.fast = false
	s.saved = 0
	s.restoreAt = 0
}

// roll performs one stay-or-transition trial against stayBase^n.
func (s *SpeedShift) roll(now int64, stayBase float64) bool {
	if now < s.nextCheckAt {
		return false
	}
	s.nextCheckAt += speedShiftCheckIntervalMs
	s.stayStreak++
	stay := math.Pow(stayBase, float64(s.stayStreak))
	if s.rng.Float64() < stay {
		return false
	}
	s.stayStreak = 0
	return true
}

func (s *SpeedShift) ShouldActivate(e *Engine, now int64) bool {
	return s.roll(now, speedShiftStaySlow)
}

func (s *SpeedShift) OnStart(e *Engine, now int64) {
	s.fast = true
	s.restoreAt = 0
	s.saved = e.movement.DangerThreshold
	e.movement.DangerThreshold = s.saved * speedShiftFastMultiplier
	e.publishModeEvent("speed-shift:start", map[string]any{
		"phase":           "fast",
		"dangerThreshold": e.movement.DangerThreshold,
	})
}

func (s *SpeedShift) OnTick(e *Engine, now, dt int64) {
	if s.restoreAt > 0 && now >= s.restoreAt {
		e.movement.DangerThreshold = s.saved
		s.restoreAt = 0
	}
}

func (s *SpeedShift) ShouldDeactivate(e *Engine, now int64) bool {
	return s.roll(now, speedShiftStayFast)
}

func (s *SpeedShift) OnEnd(e *Engine, now int64) {
	s.fast = false
	s.restoreAt = now + speedShiftTransitionDelayMs
	e.publishModeEvent("speed-shift:end", map[string]any{
		"phase":           "slow",
		"dangerThreshold": s.saved,
	})
}

func (s *SpeedShift) OnRoundEnd(e *Engine, now int64) {
	if s.fast || s.restoreAt > 0 {
		e.movement.DangerThreshold = s.saved
		s.fast = false
		s.restoreAt = 0
	}
}

func (s *SpeedShift) OnPlayerDeath(e *Engine, p *Player, now int64) {}

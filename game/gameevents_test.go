package game

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSpeedShiftFastPhaseDoublesThreshold(t *testing.T) {
	e := newTestEngine(t)
	e.movement.DangerThreshold = 0.1
	s := NewSpeedShift(rand.New(rand.NewSource(1)))
	s.OnRoundStart(e, 0)

	s.OnStart(e, 10000)
	assert.InDelta(t, 0.2, e.movement.DangerThreshold, 1e-12)
}

func TestSpeedShiftRestoreIsDelayed(t *testing.T) {
	e := newTestEngine(t)
	e.movement.DangerThreshold = 0.1
	s := NewSpeedShift(rand.New(rand.NewSource(1)))
	s.OnRoundStart(e, 0)
	s.OnStart(e, 10000)

	// The end of the fast phase is announced at once, but the loose
	// threshold lingers for the transition delay.
	s.OnEnd(e, 13000)
	assert.InDelta(t, 0.2, e.movement.DangerThreshold, 1e-12)

	s.OnTick(e, 13900, 100)
	assert.InDelta(t, 0.2, e.movement.DangerThreshold, 1e-12)

	s.OnTick(e, 14000, 100)
	assert.InDelta(t, 0.1, e.movement.DangerThreshold, 1e-12)
}

func TestSpeedShiftRoundEndForcesRestore(t *testing.T) {
	e := newTestEngine(t)
	e.movement.DangerThreshold = 0.1
	s := NewSpeedShift(rand.New(rand.NewSource(1)))
	s.OnRoundStart(e, 0)
	s.OnStart(e, 10000)

	s.OnRoundEnd(e, 12000)
	assert.InDelta(t, 0.1, e.movement.DangerThreshold, 1e-12)
}

func TestSpeedShiftChecksAreIntervalGated(t *testing.T) {
	e := newTestEngine(t)
	s := NewSpeedShift(rand.New(rand.NewSource(1)))
	s.OnRoundStart(e, 0)

	// No trial can happen before the first check point.
	assert.False(t, s.ShouldActivate(e, 4999))
	assert.Equal(t, 0, s.stayStreak)
}

func TestSpeedShiftStayProbabilityDecays(t *testing.T) {
	e := newTestEngine(t)
	s := NewSpeedShift(rand.New(rand.NewSource(1)))
	s.OnRoundStart(e, 0)

	// With stay probability 0.75^n the phase must flip within a bounded
	// number of checks for any RNG.
	activatedAt := int64(-1)
	for now := int64(5000); now <= 300000; now += 5000 {
		if s.ShouldActivate(e, now) {
			activatedAt = now
			break
		}
	}
	assert.Greater(t, activatedAt, int64(0), "slow phase must eventually end")
}

func TestSpeedShiftAnnouncesPhases(t *testing.T) {
	e := newTestEngine(t)
	rec := recordEvents(e)
	e.movement.DangerThreshold = 0.1
	s := NewSpeedShift(rand.New(rand.NewSource(1)))
	s.OnRoundStart(e, 0)

	s.OnStart(e, 5000)
	s.OnEnd(e, 10000)

	events := rec.all(TopicModeEvent)
	assert.Len(t, events, 2)
	first := events[0].Data.(map[string]any)
	assert.Equal(t, "speed-shift:start", first["eventType"])
	last := events[1].Data.(map[string]any)
	assert.Equal(t, "speed-shift:end", last["eventType"])
}

package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeathCountRoundScoring(t *testing.T) {
	e := newTestEngine(t)
	addPlayers(t, e, "a", "b", "c")
	s := e.Settings()
	s.RoundCount = 1
	s.RoundDurationMs = 90000
	s.GameMode = ModeDeathCount
	e.ApplySettings(s)
	rec := recordEvents(e)
	startGame(t, e, ModeDeathCount)

	dm, ok := e.mode.(*DeathCountMode)
	require.True(t, ok)
	dm.deaths = map[string]int{"a": 2, "b": 4, "c": 4}

	e.StepN(900, 100)

	require.Equal(t, StateFinished, e.State())
	a, _ := e.Player("a")
	b, _ := e.Player("b")
	c, _ := e.Player("c")
	assert.Equal(t, 5, a.TotalPoints, "fewest deaths takes first place")
	assert.Equal(t, 3, b.TotalPoints, "tied players share the better bonus")
	assert.Equal(t, 3, c.TotalPoints)

	end, ok := rec.last(TopicGameEnd)
	require.True(t, ok)
	assert.Equal(t, "a", end.Data.(map[string]any)["winner"])
}

func TestDeathCountRoundEndsOnTimer(t *testing.T) {
	e := newTestEngine(t)
	addPlayers(t, e, "a", "b")
	s := e.Settings()
	s.RoundCount = 2
	s.RoundDurationMs = 30000
	e.ApplySettings(s)
	startGame(t, e, ModeDeathCount)

	e.StepN(299, 100)
	assert.Equal(t, StateActive, e.State())

	e.Step(100)
	assert.Equal(t, StateRoundEnded, e.State(), "round ends at the duration, not before")
}

func TestDeathCountRespawnCycle(t *testing.T) {
	e := newTestEngine(t)
	addPlayers(t, e, "a", "b")
	s := e.Settings()
	s.RoundDurationMs = 90000
	s.RespawnDelayMs = 5000
	e.ApplySettings(s)
	rec := recordEvents(e)
	startGame(t, e, ModeDeathCount)

	a, _ := e.Player("a")
	a.TakeDamage(150, e.gameTime)
	require.False(t, a.Alive)

	pending, ok := rec.last(TopicPlayerRespawnPending)
	require.True(t, ok)
	assert.Equal(t, "a", pending.TargetID)
	assert.Equal(t, int64(5000), pending.Data.(map[string]any)["respawnIn"])

	e.StepN(49, 100)
	assert.False(t, a.Alive)

	e.Step(100)
	assert.True(t, a.Alive, "respawn lands once the delay has elapsed")
	assert.Equal(t, 1, a.DeathCount)
	assert.Equal(t, 1, rec.count(TopicPlayerRespawn))
}

func TestRespawnRejectedNearRoundEnd(t *testing.T) {
	e := newTestEngine(t)
	p := newPlayer("a", "A", 1, e)
	rm := newRespawnManager(e, 5000)

	// now + delay lands exactly on the round end: the player stays down.
	assert.False(t, rm.ScheduleRespawn(p, 85000, 90000))
	assert.False(t, rm.Pending("a"))

	assert.True(t, rm.ScheduleRespawn(p, 84999, 90000))
	assert.True(t, rm.Pending("a"))
}

func TestRespawnAlwaysScheduledWhenUntimed(t *testing.T) {
	e := newTestEngine(t)
	p := newPlayer("a", "A", 1, e)
	rm := newRespawnManager(e, 5000)

	assert.True(t, rm.ScheduleRespawn(p, 85000, 0))
}

func TestRespawnClearDropsPending(t *testing.T) {
	e := newTestEngine(t)
	p := newPlayer("a", "A", 1, e)
	e.players["a"] = p
	rm := newRespawnManager(e, 5000)
	rm.ScheduleRespawn(p, 0, 0)

	rm.Clear()
	rm.CheckRespawns(10000)

	assert.False(t, p.Alive)
}

func TestDeathCountTeamScoring(t *testing.T) {
	e := newTestEngine(t)
	addPlayers(t, e, "a", "b", "c", "d")
	s := e.Settings()
	s.RoundCount = 1
	s.RoundDurationMs = 30000
	s.TeamsEnabled = true
	s.TeamCount = 2
	e.ApplySettings(s)
	startGame(t, e, ModeDeathCount)

	dm := e.mode.(*DeathCountMode)
	// Round-robin assignment: a,c on team 0 and b,d on team 1.
	dm.deaths = map[string]int{"a": 1, "b": 0, "c": 2, "d": 0}

	e.StepN(300, 100)

	require.Equal(t, StateFinished, e.State())
	points := e.teams.Points()
	assert.Equal(t, 3, points[0], "more deaths ranks the team second")
	assert.Equal(t, 5, points[1])
}

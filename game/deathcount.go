package game

import "strconv"

// DeathCount defaults.
const (
	defaultDeathCountRounds     = 3
	defaultDeathCountDurationMs = 90000
	defaultDeathCountRespawnMs  = 5000
)

// DeathCountMode runs fixed-duration rounds where dying costs a point of
// placement: fewest deaths ranks first. Dead players respawn after a
// delay unless the round would end before the delay elapses. With teams
// enabled, team death totals rank teams and bonuses land on team match
// points.
type DeathCountMode struct {
	baseMode
	rounds          int
	roundDurationMs int64
	respawn         *RespawnManager
	deaths          map[string]int
	teamPlay        bool
}

func newDeathCountMode(e *Engine, s Settings) *DeathCountMode {
	rounds := s.RoundCount
	if rounds < 1 {
		rounds = defaultDeathCountRounds
	}
	duration := s.RoundDurationMs
	if duration <= 0 {
		duration = defaultDeathCountDurationMs
	}
	delay := s.RespawnDelayMs
	if delay <= 0 {
		delay = defaultDeathCountRespawnMs
	}
	return &DeathCountMode{
		rounds:          rounds,
		roundDurationMs: duration,
		respawn:         newRespawnManager(e, delay),
		deaths:          make(map[string]int),
		teamPlay:        s.TeamsEnabled,
	}
}

func (m *DeathCountMode) Key() string { return ModeDeathCount }

func (m *DeathCountMode) Meta() ModeMeta {
	return ModeMeta{
		MinPlayers:      2,
		MultiRound:      true,
		RoundCount:      m.rounds,
		RoundDurationMs: m.roundDurationMs,
		TeamMode:        m.teamPlay,
	}
}

func (m *DeathCountMode) OnRoundStart(e *Engine, now int64) {
	m.deaths = make(map[string]int)
	m.respawn.Clear()
}

func (m *DeathCountMode) OnTick(e *Engine, now, dt int64) {
	m.respawn.CheckRespawns(now)
}

func (m *DeathCountMode) OnPlayerDeath(e *Engine, p *Player, now int64) {
	m.deaths[p.ID]++
	m.respawn.ScheduleRespawn(p, now, m.roundDurationMs)
}

func (m *DeathCountMode) CheckWinCondition(e *Engine, now int64) WinResult {
	if now < m.roundDurationMs {
		return WinResult{}
	}
	return WinResult{
		RoundEnded: true,
		GameEnded:  e.currentRound >= m.rounds,
	}
}

func (m *DeathCountMode) OnRoundEnd(e *Engine, now int64) {
	m.respawn.Clear()

	if m.teamPlay && e.teams != nil {
		teamDeaths := make(map[int]int)
		for _, t := range e.teams.Teams() {
			teamDeaths[t.ID] = 0
		}
		for _, p := range e.players {
			if teamID, ok := e.teams.TeamOf(p.ID); ok {
				teamDeaths[teamID] += m.deaths[p.ID]
			}
		}
		entries := make([]rankEntry, 0, len(teamDeaths))
		for teamID, deaths := range teamDeaths {
			entries = append(entries, rankEntry{id: strconv.Itoa(teamID), key: float64(deaths)})
		}
		for id, rank := range rankByKey(entries) {
			teamID, _ := strconv.Atoi(id)
			if idx := rank - 1; idx < len(defaultPlacementBonuses) {
				e.teams.AddPoints(teamID, defaultPlacementBonuses[idx])
			}
		}
		return
	}

	entries := make([]rankEntry, 0, len(e.players))
	for _, p := range e.players {
		entries = append(entries, rankEntry{id: p.ID, key: float64(m.deaths[p.ID])})
	}
	awardPlacementBonuses(e, entries)
}

func (m *DeathCountMode) CalculateFinalScores(e *Engine) []ScoreEntry {
	return scoreboard(e)
}

func (m *DeathCountMode) PlayerDeathCount(id string) int {
	return m.deaths[id]
}

func (m *DeathCountMode) TeamScores(e *Engine) map[int]int {
	if !m.teamPlay || e.teams == nil {
		return nil
	}
	return e.teams.Points()
}

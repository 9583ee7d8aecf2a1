package game

// Domination defaults.
const (
	defaultDominationPointTarget = 20
	defaultDominationIntervalMs  = 5000
	defaultDominationRespawnMs   = 10000
)

// DominationMode is the team control mode: one continuous round, physical
// bases that cycle ownership on tap, and one match point per control
// interval of uninterrupted, connected ownership. First team at the point
// target wins outright. Death always schedules a respawn.
type DominationMode struct {
	baseMode
	pointTarget int
	intervalMs  int64
	respawn     *RespawnManager
	winnerTeam  int
}

func newDominationMode(e *Engine, s Settings) *DominationMode {
	target := s.DominationPointTarget
	if target <= 0 {
		target = defaultDominationPointTarget
	}
	interval := s.DominationControlIntervalMs
	if interval <= 0 {
		interval = defaultDominationIntervalMs
	}
	delay := s.DominationRespawnMs
	if delay <= 0 {
		delay = defaultDominationRespawnMs
	}
	return &DominationMode{
		pointTarget: target,
		intervalMs:  interval,
		respawn:     newRespawnManager(e, delay),
		winnerTeam:  NeutralTeam,
	}
}

func (m *DominationMode) Key() string { return ModeDomination }

func (m *DominationMode) Meta() ModeMeta {
	return ModeMeta{
		MinPlayers:  2,
		MultiRound:  false,
		RoundCount:  1,
		TargetScore: m.pointTarget,
		TeamMode:    true,
	}
}

// ControlIntervalMs exposes the interval for base snapshots.
func (m *DominationMode) ControlIntervalMs() int64 {
	return m.intervalMs
}

func (m *DominationMode) OnModeSelected(e *Engine) {
	m.winnerTeam = NeutralTeam
}

func (m *DominationMode) OnRoundStart(e *Engine, now int64) {
	m.respawn.Clear()
	if e.teams != nil {
		e.teams.ResetPoints()
	}
	e.bases.ResetControl(now)
}

func (m *DominationMode) OnTick(e *Engine, now, dt int64) {
	m.respawn.CheckRespawns(now)

	for _, b := range e.bases.Bases() {
		if !b.Connected || b.OwnerTeamID == NeutralTeam || b.NextPointAt == 0 {
			continue
		}
		for now >= b.NextPointAt {
			e.teams.AddPoints(b.OwnerTeamID, 1)
			// The next interval starts where this one ended, so the
			// progress bar restarts from zero.
			b.LastOwnershipChangeAt = b.NextPointAt
			b.NextPointAt += m.intervalMs
			e.bus.Publish(Event{
				Topic: TopicBasePoint,
				Data: map[string]any{
					"baseId":     b.ID,
					"baseNumber": b.Number,
					"teamId":     b.OwnerTeamID,
					"teamScores": e.teams.Points(),
				},
			})
		}
	}

	e.bus.Publish(Event{
		Topic: TopicBaseStatus,
		Data:  map[string]any{"bases": e.bases.Snapshot(now, m.intervalMs)},
	})
}

// OnPlayerDeath always schedules the respawn; a continuous round has no
// end-of-round cutoff.
func (m *DominationMode) OnPlayerDeath(e *Engine, p *Player, now int64) {
	m.respawn.ScheduleRespawn(p, now, 0)
}

func (m *DominationMode) OnBaseTap(e *Engine, baseID string, now int64) error {
	b, err := e.bases.Tap(baseID, e.teams.Count(), now, m.intervalMs)
	if err != nil {
		return err
	}
	team, _ := e.teams.Team(b.OwnerTeamID)
	e.bus.Publish(Event{
		Topic: TopicBaseCaptured,
		Data: map[string]any{
			"baseId":     b.ID,
			"baseNumber": b.Number,
			"teamId":     team.ID,
			"teamName":   team.Name,
			"teamColor":  team.Color,
		},
	})
	return nil
}

func (m *DominationMode) CheckWinCondition(e *Engine, now int64) WinResult {
	points := e.teams.Points()
	for _, t := range e.teams.Teams() {
		if points[t.ID] >= m.pointTarget {
			m.winnerTeam = t.ID
			return WinResult{RoundEnded: true, GameEnded: true}
		}
	}
	return WinResult{}
}

func (m *DominationMode) OnRoundEnd(e *Engine, now int64) {
	m.respawn.Clear()
}

func (m *DominationMode) OnGameEnd(e *Engine) {
	if m.winnerTeam == NeutralTeam {
		return
	}
	team, _ := e.teams.Team(m.winnerTeam)
	e.bus.Publish(Event{
		Topic: TopicDominationWin,
		Data: map[string]any{
			"winningTeamId":   team.ID,
			"winningTeamName": team.Name,
			"teamScores":      e.teams.Points(),
		},
	})
}

func (m *DominationMode) CalculateFinalScores(e *Engine) []ScoreEntry {
	return scoreboard(e)
}

func (m *DominationMode) TeamScores(e *Engine) map[int]int {
	if e.teams == nil {
		return nil
	}
	return e.teams.Points()
}

package game

// ClassicMode is joust with nothing else: no roles, configurable round
// count, last effectively-alive player takes the round. Round placement
// is reverse death order; alive players share rank 1.
type ClassicMode struct {
	baseMode
	rounds      int
	targetScore int
	deathOrder  []string
}

func newClassicMode(s Settings) *ClassicMode {
	rounds := s.RoundCount
	if rounds < 1 {
		rounds = 1
	}
	return &ClassicMode{rounds: rounds, targetScore: s.TargetScore}
}

func (m *ClassicMode) Key() string { return ModeClassic }

func (m *ClassicMode) Meta() ModeMeta {
	return ModeMeta{
		MinPlayers:  2,
		MultiRound:  true,
		RoundCount:  m.rounds,
		TargetScore: m.targetScore,
	}
}

func (m *ClassicMode) OnRoundStart(e *Engine, now int64) {
	m.deathOrder = m.deathOrder[:0]
}

func (m *ClassicMode) OnPlayerDeath(e *Engine, p *Player, now int64) {
	m.deathOrder = append(m.deathOrder, p.ID)
}

// placementEntries keys players for ranking: survivors share key 0, the
// dead get worse keys the earlier they fell.
func (m *ClassicMode) placementEntries(e *Engine) []rankEntry {
	deathKey := make(map[string]float64, len(m.deathOrder))
	for i, id := range m.deathOrder {
		deathKey[id] = float64(len(m.deathOrder) - i)
	}
	entries := make([]rankEntry, 0, len(e.players))
	for _, p := range e.players {
		key := 0.0
		if !p.Alive {
			key = deathKey[p.ID]
		}
		entries = append(entries, rankEntry{id: p.ID, key: key})
	}
	return entries
}

// targetScoreReached projects the pending placement bonuses onto the
// cumulative totals, so a target-score finish triggers on the round that
// gets a player there.
func (m *ClassicMode) targetScoreReached(e *Engine) bool {
	if m.targetScore <= 0 {
		return false
	}
	ranks := rankByKey(m.placementEntries(e))
	for id, rank := range ranks {
		p, ok := e.players[id]
		if !ok {
			continue
		}
		if p.TotalPoints+p.Points+placementBonusFor(p, rank) >= m.targetScore {
			return true
		}
	}
	return false
}

func (m *ClassicMode) CheckWinCondition(e *Engine, now int64) WinResult {
	alive := e.effectivelyAlivePlayersLocked()
	if len(alive) > 1 {
		return WinResult{}
	}
	// A sole survivor who is disconnected but inside the grace window
	// does not win yet; the round waits for the reconnect or the grace
	// to run out.
	if len(alive) == 1 && !alive[0].IsConnected() {
		return WinResult{}
	}
	res := WinResult{RoundEnded: true}
	if len(alive) == 1 {
		res.WinnerID = alive[0].ID
		res.WinnerIDs = []string{alive[0].ID}
	} else {
		// Everyone is dead or gone: a draw, and the game is over.
		res.GameEnded = true
	}
	if e.currentRound >= m.rounds || m.targetScoreReached(e) {
		res.GameEnded = true
	}
	return res
}

func (m *ClassicMode) OnRoundEnd(e *Engine, now int64) {
	awardPlacementBonuses(e, m.placementEntries(e))
}

func (m *ClassicMode) CalculateFinalScores(e *Engine) []ScoreEntry {
	return scoreboard(e)
}

func (m *ClassicMode) PlayerDeathCount(id string) int {
	n := 0
	for _, d := range m.deathOrder {
		if d == id {
			n++
		}
	}
	return n
}

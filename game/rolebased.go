package game

// defaultRoleBasedRounds applies when settings carry no round count.
const defaultRoleBasedRounds = 3

// RoleBasedMode is Classic plus a role pool drawn from a theme. Scoring
// is identical; on top of the last-standing rule, a round ends early when
// every effectively-alive player shares a victory group (a cooperative
// role win, e.g. only vampires left standing).
type RoleBasedMode struct {
	ClassicMode
	theme string
}

func newRoleBasedMode(s Settings) *RoleBasedMode {
	rounds := s.RoundCount
	if rounds < 1 {
		rounds = defaultRoleBasedRounds
	}
	return &RoleBasedMode{
		ClassicMode: ClassicMode{rounds: rounds, targetScore: s.TargetScore},
		theme:       s.Theme,
	}
}

func (m *RoleBasedMode) Key() string { return ModeRoleBased }

func (m *RoleBasedMode) Meta() ModeMeta {
	meta := m.ClassicMode.Meta()
	meta.UseRoles = true
	return meta
}

func (m *RoleBasedMode) RolePool(n int) []RoleKind {
	return RolePoolForTheme(m.theme, n)
}

func (m *RoleBasedMode) CheckWinCondition(e *Engine, now int64) WinResult {
	alive := e.effectivelyAlivePlayersLocked()
	if len(alive) >= 2 && sharedVictoryGroup(alive) {
		res := WinResult{RoundEnded: true}
		for _, p := range alive {
			res.WinnerIDs = append(res.WinnerIDs, p.ID)
		}
		if e.currentRound >= m.rounds || m.targetScoreReached(e) {
			res.GameEnded = true
		}
		return res
	}
	return m.ClassicMode.CheckWinCondition(e, now)
}

// sharedVictoryGroup reports whether every player carries the same
// non-empty victory group tag.
func sharedVictoryGroup(players []*Player) bool {
	group := players[0].VictoryGroupID
	if group == "" {
		return false
	}
	for _, p := range players[1:] {
		if p.VictoryGroupID != group {
			return false
		}
	}
	return true
}

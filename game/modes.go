package game

import (
	"fmt"
	"sort"
)

// defaultPlacementBonuses are the round-end points by rank position.
var defaultPlacementBonuses = []int{5, 3, 1}

// WinResult is the mode's verdict after a tick. WinnerIDs carries joint
// winners (cooperative role wins); WinnerID is set when there is exactly
// one.
type WinResult struct {
	RoundEnded bool
	GameEnded  bool
	WinnerID   string
	WinnerIDs  []string
}

// ModeMeta is the static description of a game mode.
type ModeMeta struct {
	MinPlayers      int
	MaxPlayers      int // 0 = unlimited
	UseRoles        bool
	MultiRound      bool
	RoundCount      int
	RoundDurationMs int64 // 0 = untimed
	TargetScore     int   // 0 = none
	TeamMode        bool
}

// GameMode is the per-mode rule strategy: round structure, scoring,
// respawn policy and win conditions. The engine owns the lifecycle and
// dispatches into the current mode every tick.
type GameMode interface {
	Key() string
	Meta() ModeMeta
	OnModeSelected(e *Engine)
	OnRoundStart(e *Engine, now int64)
	OnTick(e *Engine, now, dt int64)
	OnPlayerDeath(e *Engine, p *Player, now int64)
	CheckWinCondition(e *Engine, now int64) WinResult
	OnRoundEnd(e *Engine, now int64)
	OnGameEnd(e *Engine)
	CalculateFinalScores(e *Engine) []ScoreEntry
	RolePool(n int) []RoleKind
	PlayerDeathCount(id string) int
	OnBaseTap(e *Engine, baseID string, now int64) error
	TeamScores(e *Engine) map[int]int // nil outside team play
}

// baseMode supplies no-op defaults so modes only implement what they use.
type baseMode struct{}

func (baseMode) OnModeSelected(e *Engine)                        {}
func (baseMode) OnRoundStart(e *Engine, now int64)               {}
func (baseMode) OnTick(e *Engine, now, dt int64)                 {}
func (baseMode) OnPlayerDeath(e *Engine, p *Player, now int64)   {}
func (baseMode) OnRoundEnd(e *Engine, now int64)                 {}
func (baseMode) OnGameEnd(e *Engine)                             {}
func (baseMode) RolePool(n int) []RoleKind                       { return nil }
func (baseMode) PlayerDeathCount(id string) int                  { return 0 }
func (baseMode) OnBaseTap(e *Engine, baseID string, now int64) error {
	return nil
}
func (baseMode) TeamScores(e *Engine) map[int]int { return nil }

// ScoreEntry is one row of a ranked scoreboard.
type ScoreEntry struct {
	PlayerID string `json:"id"`
	Name     string `json:"name"`
	Number   int    `json:"number"`
	Points   int    `json:"points"`
	Rank     int    `json:"rank"`
}

// placementBonusFor picks the bonus for a 1-based rank, honoring a
// per-player override vector when present.
func placementBonusFor(p *Player, rank int) int {
	bonuses := defaultPlacementBonuses
	if len(p.PlacementBonusOverride) > 0 {
		bonuses = p.PlacementBonusOverride
	}
	if idx := rank - 1; idx >= 0 && idx < len(bonuses) {
		return bonuses[idx]
	}
	return 0
}

// awardPlacementBonuses ranks the entries (lower key = better) and adds
// the rank's bonus to each player's round points.
func awardPlacementBonuses(e *Engine, entries []rankEntry) {
	for id, rank := range rankByKey(entries) {
		if p, ok := e.players[id]; ok {
			p.Points += placementBonusFor(p, rank)
		}
	}
}

// scoreboard ranks every player by cumulative points, descending.
func scoreboard(e *Engine) []ScoreEntry {
	entries := make([]rankEntry, 0, len(e.players))
	for _, p := range e.players {
		entries = append(entries, rankEntry{id: p.ID, key: -float64(p.TotalPoints + p.Points)})
	}
	ranks := rankByKey(entries)

	out := make([]ScoreEntry, 0, len(e.players))
	for _, p := range e.players {
		out = append(out, ScoreEntry{
			PlayerID: p.ID,
			Name:     p.Name,
			Number:   p.Number,
			Points:   p.TotalPoints + p.Points,
			Rank:     ranks[p.ID],
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Rank != out[j].Rank {
			return out[i].Rank < out[j].Rank
		}
		return out[i].Number < out[j].Number
	})
	return out
}

// Mode keys accepted by launch and settings.
const (
	ModeClassic    = "classic"
	ModeRoleBased  = "role-based"
	ModeDeathCount = "death-count"
	ModeDomination = "domination"
)

// newMode builds a mode instance from the engine's current settings.
func newMode(key string, e *Engine) (GameMode, error) {
	switch key {
	case ModeClassic:
		return newClassicMode(e.settings), nil
	case ModeRoleBased:
		return newRoleBasedMode(e.settings), nil
	case ModeDeathCount:
		return newDeathCountMode(e, e.settings), nil
	case ModeDomination:
		return newDominationMode(e, e.settings), nil
	}
	return nil, fmt.Errorf("unknown game mode %q", key)
}

package config

import (
	"encoding/json"
	"os"
	"sync"

	"go.uber.org/zap"

	"github.com/SimoneRocutto/role-based-joust/game"
)

// Stored is the persisted settings blob: the admin-tunable game options
// plus the live movement config. Durations are milliseconds.
type Stored struct {
	Movement                  game.MovementConfig `json:"movement"`
	Sensitivity               string              `json:"sensitivity"`
	GameMode                  string              `json:"gameMode"`
	Theme                     string              `json:"theme"`
	RoundCount                int                 `json:"roundCount"`
	RoundDuration             int64               `json:"roundDuration"`
	TargetScore               int                 `json:"targetScore"`
	RespawnDelay              int64               `json:"respawnDelay"`
	TeamsEnabled              bool                `json:"teamsEnabled"`
	TeamCount                 int                 `json:"teamCount"`
	DominationPointTarget     int                 `json:"dominationPointTarget"`
	DominationControlInterval int64               `json:"dominationControlInterval"`
	DominationRespawnTime     int64               `json:"dominationRespawnTime"`
	DominationBaseCount       int                 `json:"dominationBaseCount"`
}

// DefaultStored returns the blob matching the engine defaults.
func DefaultStored() Stored {
	return StoredFromEngine(game.DefaultSettings(), game.DefaultMovementConfig())
}

// StoredFromEngine flattens the engine's settings and movement config
// into the persisted shape.
func StoredFromEngine(s game.Settings, mc game.MovementConfig) Stored {
	return Stored{
		Movement:                  mc,
		Sensitivity:               s.Sensitivity,
		GameMode:                  s.GameMode,
		Theme:                     s.Theme,
		RoundCount:                s.RoundCount,
		RoundDuration:             s.RoundDurationMs,
		TargetScore:               s.TargetScore,
		RespawnDelay:              s.RespawnDelayMs,
		TeamsEnabled:              s.TeamsEnabled,
		TeamCount:                 s.TeamCount,
		DominationPointTarget:     s.DominationPointTarget,
		DominationControlInterval: s.DominationControlIntervalMs,
		DominationRespawnTime:     s.DominationRespawnMs,
		DominationBaseCount:       s.DominationBaseCount,
	}
}

// EngineSettings maps the blob back onto the engine's settings struct,
// clamped into range.
func (st Stored) EngineSettings() game.Settings {
	s := game.Settings{
		Sensitivity:                 st.Sensitivity,
		GameMode:                    st.GameMode,
		Theme:                       st.Theme,
		RoundCount:                  st.RoundCount,
		RoundDurationMs:             st.RoundDuration,
		TargetScore:                 st.TargetScore,
		RespawnDelayMs:              st.RespawnDelay,
		TeamsEnabled:                st.TeamsEnabled,
		TeamCount:                   st.TeamCount,
		DominationPointTarget:       st.DominationPointTarget,
		DominationControlIntervalMs: st.DominationControlInterval,
		DominationRespawnMs:         st.DominationRespawnTime,
		DominationBaseCount:         st.DominationBaseCount,
	}
	s.Clamp()
	return s
}

// sensitivityPresets maps the admin panel's preset keys onto movement
// configs. "oneshot" keeps normal sensitivity but any over-threshold
// movement kills outright.
var sensitivityPresets = map[string]game.MovementConfig{
	"low": {
		DangerThreshold:  0.5,
		DamageMultiplier: 40,
		DeathThreshold:   100,
		HistorySize:      5,
		SmoothingEnabled: true,
	},
	"normal": {
		DangerThreshold:  0.35,
		DamageMultiplier: 50,
		DeathThreshold:   100,
		HistorySize:      5,
		SmoothingEnabled: true,
	},
	"high": {
		DangerThreshold:  0.25,
		DamageMultiplier: 60,
		DeathThreshold:   100,
		HistorySize:      5,
		SmoothingEnabled: true,
	},
	"extreme": {
		DangerThreshold:  0.15,
		DamageMultiplier: 75,
		DeathThreshold:   100,
		HistorySize:      3,
		SmoothingEnabled: true,
	},
	"oneshot": {
		DangerThreshold:  0.35,
		DamageMultiplier: 50,
		DeathThreshold:   100,
		HistorySize:      5,
		SmoothingEnabled: true,
		OneshotMode:      true,
	},
}

// PresetMovement resolves a sensitivity preset key.
func PresetMovement(key string) (game.MovementConfig, bool) {
	mc, ok := sensitivityPresets[key]
	return mc, ok
}

// SettingsStore reads and writes the settings blob. Writes are
// best-effort and serialized; a lost write only costs a stale value on
// the next boot.
type SettingsStore struct {
	mu   sync.Mutex
	path string
	log  *zap.Logger
}

// NewSettingsStore creates a store for the blob at path.
func NewSettingsStore(path string, log *zap.Logger) *SettingsStore {
	return &SettingsStore{path: path, log: log}
}

// Load reads the blob. Missing or malformed files fall back to the
// defaults. A legacy file holding a bare movement config is upgraded by
// wrapping it.
func (s *SettingsStore) Load() Stored {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.Warn("settings blob unreadable, using defaults", zap.Error(err))
		}
		return DefaultStored()
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		s.log.Warn("settings blob malformed, using defaults", zap.Error(err))
		return DefaultStored()
	}

	// Early versions persisted the movement config flat at the top
	// level. Upgrade by wrapping it into the current shape.
	if _, legacy := probe["dangerThreshold"]; legacy {
		var mc game.MovementConfig
		if err := json.Unmarshal(data, &mc); err != nil {
			s.log.Warn("legacy settings blob malformed, using defaults", zap.Error(err))
			return DefaultStored()
		}
		st := DefaultStored()
		st.Movement = mc
		s.log.Info("upgraded legacy flat-movement settings blob")
		return st
	}

	st := DefaultStored()
	if err := json.Unmarshal(data, &st); err != nil {
		s.log.Warn("settings blob malformed, using defaults", zap.Error(err))
		return DefaultStored()
	}
	return st
}

// SaveAsync writes the blob in the background.
func (s *SettingsStore) SaveAsync(st Stored) {
	go func() {
		if err := s.save(st); err != nil {
			s.log.Warn("settings blob write failed", zap.Error(err))
		}
	}()
}

func (s *SettingsStore) save(st Stored) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

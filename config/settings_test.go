package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/SimoneRocutto/role-based-joust/game"
)

func newTestStore(t *testing.T) (*SettingsStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "settings.json")
	return NewSettingsStore(path, zap.NewNop()), path
}

func TestLoadMissingBlobUsesDefaults(t *testing.T) {
	store, _ := newTestStore(t)
	st := store.Load()
	assert.Equal(t, DefaultStored(), st)
}

func TestSaveLoadRoundtrip(t *testing.T) {
	store, _ := newTestStore(t)
	st := DefaultStored()
	st.GameMode = game.ModeDomination
	st.RoundCount = 5
	st.Movement.DangerThreshold = 0.25

	require.NoError(t, store.save(st))
	got := store.Load()

	assert.Equal(t, st, got)
}

func TestLoadMalformedBlobUsesDefaults(t *testing.T) {
	store, path := newTestStore(t)
	require.NoError(t, os.WriteFile(path, []byte("not json at all"), 0o644))

	st := store.Load()
	assert.Equal(t, DefaultStored(), st)
}

func TestLoadUpgradesLegacyFlatMovementBlob(t *testing.T) {
	store, path := newTestStore(t)
	legacy := `{
  "dangerThreshold": 0.15,
  "damageMultiplier": 75,
  "deathThreshold": 100,
  "historySize": 3,
  "smoothingEnabled": true,
  "oneshotMode": false
}`
	require.NoError(t, os.WriteFile(path, []byte(legacy), 0o644))

	st := store.Load()

	assert.Equal(t, 0.15, st.Movement.DangerThreshold)
	assert.Equal(t, 75.0, st.Movement.DamageMultiplier)
	assert.Equal(t, 3, st.Movement.HistorySize)
	// Everything but the movement config comes from the defaults.
	assert.Equal(t, game.ModeClassic, st.GameMode)
	assert.Equal(t, 3, st.RoundCount)
}

func TestLoadPartialBlobKeepsDefaults(t *testing.T) {
	store, path := newTestStore(t)
	require.NoError(t, os.WriteFile(path, []byte(`{"roundCount": 7}`), 0o644))

	st := store.Load()

	assert.Equal(t, 7, st.RoundCount)
	assert.Equal(t, "normal", st.Sensitivity)
	assert.Equal(t, game.DefaultMovementConfig(), st.Movement)
}

func TestStoredEngineSettingsRoundtrip(t *testing.T) {
	s := game.DefaultSettings()
	s.GameMode = game.ModeDeathCount
	s.RoundCount = 4
	mc := game.DefaultMovementConfig()

	st := StoredFromEngine(s, mc)
	got := st.EngineSettings()

	assert.Equal(t, s, got)
}

func TestEngineSettingsClampsStoredValues(t *testing.T) {
	st := DefaultStored()
	st.RoundCount = 99
	st.DominationPointTarget = 1

	s := st.EngineSettings()

	assert.Equal(t, 10, s.RoundCount)
	assert.Equal(t, 5, s.DominationPointTarget)
}

func TestPresetMovement(t *testing.T) {
	mc, ok := PresetMovement("oneshot")
	require.True(t, ok)
	assert.True(t, mc.OneshotMode)
	assert.Equal(t, 0.35, mc.DangerThreshold)

	_, ok = PresetMovement("ludicrous")
	assert.False(t, ok)
}

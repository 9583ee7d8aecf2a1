package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/SimoneRocutto/role-based-joust/game"
)

func newAdminHarness(t *testing.T) (*Server, *http.ServeMux) {
	t.Helper()
	engine := game.NewEngine(game.DefaultEngineConfig(), zap.NewNop())
	registry := newTestRegistry(time.Minute)
	srv := NewServer(engine, registry, nil, zap.NewNop())
	mux := http.NewServeMux()
	srv.AdminRoutes(mux)
	return srv, mux
}

func doRequest(mux *http.ServeMux, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func addLobbyPlayer(t *testing.T, srv *Server, id string) {
	t.Helper()
	_, number, err := srv.registry.Register(id, "Player "+id)
	require.NoError(t, err)
	_, err = srv.engine.AddPlayer(id, "Player "+id, number)
	require.NoError(t, err)
}

func TestHealthEndpoint(t *testing.T) {
	_, mux := newAdminHarness(t)
	w := doRequest(mux, http.MethodGet, "/healthz", "")

	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "waiting", body["gameState"])
}

func TestSettingsPatchClampsValues(t *testing.T) {
	srv, mux := newAdminHarness(t)
	w := doRequest(mux, http.MethodPost, "/game/settings",
		`{"roundCount": 99, "roundDuration": 1, "dominationPointTarget": 3}`)

	require.Equal(t, http.StatusOK, w.Code)
	got := srv.engine.Settings()
	assert.Equal(t, 10, got.RoundCount)
	assert.Equal(t, int64(30000), got.RoundDurationMs)
	assert.Equal(t, 5, got.DominationPointTarget)
}

func TestSettingsPatchIsPartial(t *testing.T) {
	srv, mux := newAdminHarness(t)
	w := doRequest(mux, http.MethodPost, "/game/settings", `{"roundCount": 5}`)

	require.Equal(t, http.StatusOK, w.Code)
	got := srv.engine.Settings()
	assert.Equal(t, 5, got.RoundCount)
	assert.Equal(t, "classic", got.GameMode, "untouched fields keep their values")
	assert.Equal(t, "normal", got.Sensitivity)
}

func TestSettingsRejectsUnknownMode(t *testing.T) {
	srv, mux := newAdminHarness(t)
	w := doRequest(mux, http.MethodPost, "/game/settings", `{"gameMode": "hide-and-seek"}`)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "classic", srv.engine.Settings().GameMode)
}

func TestSettingsRejectsUnknownSensitivity(t *testing.T) {
	_, mux := newAdminHarness(t)
	w := doRequest(mux, http.MethodPost, "/game/settings", `{"sensitivity": "ludicrous"}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSensitivityPatchSwapsMovementPreset(t *testing.T) {
	srv, mux := newAdminHarness(t)
	w := doRequest(mux, http.MethodPost, "/game/settings", `{"sensitivity": "high"}`)

	require.Equal(t, http.StatusOK, w.Code)
	mc := srv.engine.Movement()
	assert.Equal(t, 0.25, mc.DangerThreshold)
	assert.Equal(t, 60.0, mc.DamageMultiplier)
	assert.Equal(t, "high", srv.engine.Settings().Sensitivity)
}

func TestLaunchRequiresEnoughPlayers(t *testing.T) {
	srv, mux := newAdminHarness(t)
	addLobbyPlayer(t, srv, "p1")

	w := doRequest(mux, http.MethodPost, "/game/launch", `{}`)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "2 players")
}

func TestLaunchUsesConfiguredModeByDefault(t *testing.T) {
	srv, mux := newAdminHarness(t)
	addLobbyPlayer(t, srv, "p1")
	addLobbyPlayer(t, srv, "p2")
	doRequest(mux, http.MethodPost, "/game/settings", `{"gameMode": "death-count"}`)

	w := doRequest(mux, http.MethodPost, "/game/launch", `{}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, game.StatePreGame, srv.engine.State())
	snap := srv.engine.Snapshot()
	require.NotNil(t, snap.Mode)
	assert.Equal(t, "death-count", *snap.Mode)
}

func TestProceedOutsidePreGame(t *testing.T) {
	_, mux := newAdminHarness(t)
	w := doRequest(mux, http.MethodPost, "/game/proceed", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLobbyListing(t *testing.T) {
	srv, mux := newAdminHarness(t)
	addLobbyPlayer(t, srv, "p1")
	addLobbyPlayer(t, srv, "p2")

	w := doRequest(mux, http.MethodGet, "/game/lobby", "")

	require.Equal(t, http.StatusOK, w.Code)
	var lobby []game.LobbyEntry
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &lobby))
	require.Len(t, lobby, 2)
	assert.Equal(t, "p1", lobby[0].ID)
	assert.Equal(t, 1, lobby[0].Number)
}

func TestKickFreesTheNumber(t *testing.T) {
	srv, mux := newAdminHarness(t)
	addLobbyPlayer(t, srv, "p1")
	addLobbyPlayer(t, srv, "p2")

	w := doRequest(mux, http.MethodPost, "/game/kick/p1", "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, srv.engine.PlayerCount())
	_, n, err := srv.registry.Register("p3", "Cleo")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestStopAlwaysSucceeds(t *testing.T) {
	srv, mux := newAdminHarness(t)
	w := doRequest(mux, http.MethodPost, "/game/stop", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, game.StateWaiting, srv.engine.State())
}

func TestShuffleWithoutTeams(t *testing.T) {
	_, mux := newAdminHarness(t)
	w := doRequest(mux, http.MethodPost, "/game/shuffle-teams", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDebugResetClearsLobby(t *testing.T) {
	srv, mux := newAdminHarness(t)
	addLobbyPlayer(t, srv, "p1")
	addLobbyPlayer(t, srv, "p2")

	w := doRequest(mux, http.MethodPost, "/debug/reset", "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, srv.engine.PlayerCount())
	_, n, err := srv.registry.Register("p9", "Nina")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestGameStateSnapshot(t *testing.T) {
	srv, mux := newAdminHarness(t)
	addLobbyPlayer(t, srv, "p1")

	w := doRequest(mux, http.MethodGet, "/game/state", "")

	require.Equal(t, http.StatusOK, w.Code)
	var snap game.StateSnapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	assert.Equal(t, game.StateWaiting, snap.GameState)
	require.Len(t, snap.Players, 1)
	assert.Equal(t, "p1", snap.Players[0].ID)
}

package server

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/SimoneRocutto/role-based-joust/config"
	"github.com/SimoneRocutto/role-based-joust/game"
)

// AdminRoutes mounts the admin HTTP surface on mux. The admin panel is
// trusted; these routes carry no authentication and should stay on the
// LAN.
func (s *Server) AdminRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /game/state", s.handleGameState)
	mux.HandleFunc("GET /game/lobby", s.handleLobby)
	mux.HandleFunc("POST /game/settings", s.handleSettings)
	mux.HandleFunc("POST /game/launch", s.handleLaunch)
	mux.HandleFunc("POST /game/proceed", s.handleProceed)
	mux.HandleFunc("POST /game/start-next-round", s.handleStartNextRound)
	mux.HandleFunc("POST /game/stop", s.handleStop)
	mux.HandleFunc("POST /game/kick/{playerId}", s.handleKick)
	mux.HandleFunc("POST /game/shuffle-teams", s.handleShuffleTeams)
	mux.HandleFunc("POST /debug/reset", s.handleDebugReset)
	mux.HandleFunc("GET /healthz", s.handleHealth)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeOK(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func writeFail(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]any{"success": false, "error": err.Error()})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"gameState": s.engine.State(),
		"players":   s.engine.PlayerCount(),
	})
}

func (s *Server) handleGameState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Snapshot())
}

func (s *Server) handleLobby(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.LobbySnapshot())
}

// settingsPatch is a partial update; nil fields are left alone.
// Durations arrive in seconds and are stored in milliseconds.
type settingsPatch struct {
	Sensitivity               *string `json:"sensitivity"`
	GameMode                  *string `json:"gameMode"`
	Theme                     *string `json:"theme"`
	RoundCount                *int    `json:"roundCount"`
	RoundDuration             *int    `json:"roundDuration"`
	TargetScore               *int    `json:"targetScore"`
	RespawnTime               *int    `json:"respawnTime"`
	TeamsEnabled              *bool   `json:"teamsEnabled"`
	TeamCount                 *int    `json:"teamCount"`
	DominationPointTarget     *int    `json:"dominationPointTarget"`
	DominationControlInterval *int    `json:"dominationControlInterval"`
	DominationRespawnTime     *int    `json:"dominationRespawnTime"`
	DominationBaseCount       *int    `json:"dominationBaseCount"`
}

var validModes = map[string]bool{
	game.ModeClassic:    true,
	game.ModeRoleBased:  true,
	game.ModeDeathCount: true,
	game.ModeDomination: true,
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	var patch settingsPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeFail(w, http.StatusBadRequest, err)
		return
	}

	settings := s.engine.Settings()
	movement := s.engine.Movement()

	if patch.GameMode != nil {
		if !validModes[*patch.GameMode] {
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"success": false,
				"error":   "unknown game mode " + *patch.GameMode,
			})
			return
		}
		settings.GameMode = *patch.GameMode
	}
	if patch.Sensitivity != nil {
		mc, ok := config.PresetMovement(*patch.Sensitivity)
		if !ok {
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"success": false,
				"error":   "unknown sensitivity preset " + *patch.Sensitivity,
			})
			return
		}
		settings.Sensitivity = *patch.Sensitivity
		movement = mc
	}
	if patch.Theme != nil {
		settings.Theme = *patch.Theme
	}
	if patch.RoundCount != nil {
		settings.RoundCount = *patch.RoundCount
	}
	if patch.RoundDuration != nil {
		settings.RoundDurationMs = int64(*patch.RoundDuration) * 1000
	}
	if patch.TargetScore != nil {
		settings.TargetScore = *patch.TargetScore
	}
	if patch.RespawnTime != nil {
		settings.RespawnDelayMs = int64(*patch.RespawnTime) * 1000
	}
	if patch.TeamsEnabled != nil {
		settings.TeamsEnabled = *patch.TeamsEnabled
	}
	if patch.TeamCount != nil {
		settings.TeamCount = *patch.TeamCount
	}
	if patch.DominationPointTarget != nil {
		settings.DominationPointTarget = *patch.DominationPointTarget
	}
	if patch.DominationControlInterval != nil {
		settings.DominationControlIntervalMs = int64(*patch.DominationControlInterval) * 1000
	}
	if patch.DominationRespawnTime != nil {
		settings.DominationRespawnMs = int64(*patch.DominationRespawnTime) * 1000
	}
	if patch.DominationBaseCount != nil {
		settings.DominationBaseCount = *patch.DominationBaseCount
	}

	settings.Clamp()
	s.engine.ApplySettings(settings)
	if patch.Sensitivity != nil {
		s.engine.SetMovement(movement)
	}
	s.persistSettings()

	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"settings": s.engine.Settings(),
	})
}

// persistSettings writes the settings blob in the background. Losing a
// write costs nothing more than a stale default on next boot.
func (s *Server) persistSettings() {
	if s.settings == nil {
		return
	}
	s.settings.SaveAsync(config.StoredFromEngine(s.engine.Settings(), s.engine.Movement()))
}

type launchRequest struct {
	Mode              string `json:"mode"`
	CountdownDuration int    `json:"countdownDuration"`
}

func (s *Server) handleLaunch(w http.ResponseWriter, r *http.Request) {
	var req launchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFail(w, http.StatusBadRequest, err)
		return
	}
	mode := req.Mode
	if mode == "" {
		mode = s.engine.Settings().GameMode
	}
	if err := s.engine.Launch(mode, req.CountdownDuration); err != nil {
		writeFail(w, http.StatusBadRequest, err)
		return
	}
	writeOK(w)
}

func (s *Server) handleProceed(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Proceed(); err != nil {
		writeFail(w, http.StatusBadRequest, err)
		return
	}
	writeOK(w)
}

func (s *Server) handleStartNextRound(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.StartNextRound(); err != nil {
		writeFail(w, http.StatusBadRequest, err)
		return
	}
	writeOK(w)
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	s.engine.Stop()
	writeOK(w)
}

func (s *Server) handleKick(w http.ResponseWriter, r *http.Request) {
	playerID := r.PathValue("playerId")
	if playerID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"success": false,
			"error":   "missing player id",
		})
		return
	}
	s.registry.Release(playerID)
	s.engine.RemovePlayer(playerID)
	s.log.Info("player kicked", zap.String("playerId", playerID))
	writeOK(w)
}

func (s *Server) handleShuffleTeams(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.ShuffleTeams(); err != nil {
		writeFail(w, http.StatusBadRequest, err)
		return
	}
	writeOK(w)
}

// handleDebugReset stops the game and empties the lobby. Settings stay.
func (s *Server) handleDebugReset(w http.ResponseWriter, r *http.Request) {
	s.engine.Stop()
	for _, entry := range s.engine.LobbySnapshot() {
		s.engine.RemovePlayer(entry.ID)
	}
	s.registry.Reset()
	s.log.Info("debug reset: lobby cleared")
	writeOK(w)
}

package server

import (
	"encoding/json"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/SimoneRocutto/role-based-joust/game"
)

const maxNameLength = 24

// sanitizeName trims and truncates a display name.
func sanitizeName(name string) string {
	name = strings.TrimSpace(name)
	if len(name) > maxNameLength {
		name = name[:maxNameLength]
	}
	return name
}

// bindPlayer records the player identity on this transport. The identity
// lives on exactly one transport: a reconnect unbinds whichever client
// held it before, so targeted messages never route to a stale socket.
func (s *Server) bindPlayer(c *Client, playerID string) {
	s.mu.Lock()
	for _, other := range s.clients {
		if other != c && other.PlayerID == playerID {
			other.PlayerID = ""
		}
	}
	c.PlayerID = playerID
	s.mu.Unlock()
}

type joinRequest struct {
	PlayerID string `json:"playerId"`
	Name     string `json:"name"`
}

func (c *Client) handleJoin(data json.RawMessage) {
	var req joinRequest
	if err := json.Unmarshal(data, &req); err != nil {
		c.replyError("malformed join request")
		return
	}
	playerID := req.PlayerID
	if playerID == "" {
		playerID = NewPlayerID()
	}
	name := sanitizeName(req.Name)

	s := c.server
	token, number, err := s.registry.Register(playerID, name)
	if err != nil {
		c.reply(ServerMessage{Type: MsgTypeJoined, Data: map[string]any{
			"success": false,
			"error":   err.Error(),
		}})
		return
	}
	if name == "" {
		name = "Player " + strconv.Itoa(number)
	}
	if _, err := s.engine.AddPlayer(playerID, name, number); err != nil {
		s.registry.Release(playerID)
		c.reply(ServerMessage{Type: MsgTypeJoined, Data: map[string]any{
			"success": false,
			"error":   err.Error(),
		}})
		return
	}
	s.bindPlayer(c, playerID)

	var teamID any
	if id, ok := s.engine.TeamOf(playerID); ok {
		teamID = id
	}
	c.reply(ServerMessage{Type: MsgTypeJoined, Data: map[string]any{
		"success":      true,
		"playerId":     playerID,
		"socketId":     c.ID,
		"sessionToken": token,
		"playerNumber": number,
		"name":         name,
		"teamId":       teamID,
	}})
}

type reconnectRequest struct {
	Token string `json:"token"`
}

func (c *Client) handleReconnect(data json.RawMessage) {
	var req reconnectRequest
	if err := json.Unmarshal(data, &req); err != nil {
		c.replyError("malformed reconnect request")
		return
	}
	s := c.server
	playerID, number, err := s.registry.Resolve(req.Token)
	if err != nil {
		c.reply(ServerMessage{Type: MsgTypeReconnected, Data: map[string]any{
			"success": false,
			"error":   "unknown session token",
		}})
		return
	}
	s.registry.CancelGrace(playerID)
	s.bindPlayer(c, playerID)
	s.engine.MarkReconnected(playerID)

	snap := s.engine.Snapshot()
	var playerSnap any
	for _, p := range snap.Players {
		if p.ID == playerID {
			playerSnap = p
			break
		}
	}
	var mode any
	if snap.Mode != nil {
		mode = *snap.Mode
	}
	c.reply(ServerMessage{Type: MsgTypeReconnected, Data: map[string]any{
		"success":      true,
		"playerId":     playerID,
		"playerNumber": number,
		"player":       playerSnap,
		"gameState":    snap.GameState,
		"currentRound": snap.CurrentRound,
		"totalRounds":  snap.TotalRounds,
		"mode":         mode,
	}})
	s.log.Info("player reconnected", zap.String("playerId", playerID))
}

type moveRequest struct {
	PlayerID  string  `json:"playerId"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Z         float64 `json:"z"`
	Timestamp int64   `json:"timestamp"`
}

func (c *Client) handleMove(data json.RawMessage) {
	var req moveRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return
	}
	playerID := c.PlayerID
	if playerID == "" {
		playerID = req.PlayerID
	}
	if playerID == "" {
		return
	}
	sample := game.AccelSample{X: req.X, Y: req.Y, Z: req.Z, Timestamp: req.Timestamp}
	if err := c.server.engine.HandleMovement(playerID, sample); err != nil {
		c.replyError(err.Error())
	}
}

func (c *Client) handleReady(data json.RawMessage) {
	if c.PlayerID == "" {
		c.replyError("not joined")
		return
	}
	if err := c.server.engine.HandleReady(c.PlayerID); err != nil {
		c.replyError(err.Error())
	}
}

func (c *Client) handleTap(data json.RawMessage) {
	if c.PlayerID == "" {
		c.replyError("not joined")
		return
	}
	res := c.server.engine.UseAbility(c.PlayerID)
	c.reply(ServerMessage{Type: MsgTypeTapResult, Data: res})
}

func (c *Client) handleTeamSwitch(data json.RawMessage) {
	if c.PlayerID == "" {
		c.replyError("not joined")
		return
	}
	if _, err := c.server.engine.SwitchTeam(c.PlayerID); err != nil {
		c.replyError(err.Error())
	}
}

type baseRegisterRequest struct {
	BaseID string `json:"baseId"`
}

func (c *Client) handleBaseRegister(data json.RawMessage) {
	var req baseRegisterRequest
	if len(data) > 0 {
		if err := json.Unmarshal(data, &req); err != nil {
			c.replyError("malformed base register request")
			return
		}
	}
	s := c.server
	b, reconnected, err := s.engine.RegisterBase(req.BaseID)
	if err != nil {
		c.replyError(err.Error())
		return
	}
	s.mu.Lock()
	c.BaseID = b.ID
	s.mu.Unlock()

	var owner any
	if b.OwnerTeamID != game.NeutralTeam {
		owner = b.OwnerTeamID
	}
	c.reply(ServerMessage{Type: MsgTypeBaseRegistered, Data: map[string]any{
		"baseId":      b.ID,
		"baseNumber":  b.Number,
		"ownerTeamId": owner,
		"gameState":   s.engine.State(),
	}})
	s.log.Info("base registered",
		zap.String("baseId", b.ID),
		zap.Int("baseNumber", b.Number),
		zap.Bool("reconnected", reconnected))
}

type baseTapRequest struct {
	BaseID string `json:"baseId"`
}

func (c *Client) handleBaseTap(data json.RawMessage) {
	var req baseTapRequest
	if err := json.Unmarshal(data, &req); err != nil {
		c.replyError("malformed base tap request")
		return
	}
	baseID := req.BaseID
	if baseID == "" {
		baseID = c.BaseID
	}
	if err := c.server.engine.BaseTap(baseID); err != nil {
		c.replyError(err.Error())
	}
}

package game

import "go.uber.org/zap"

// RespawnManager revives dead players after a fixed delay. Pending
// respawns are stored as target game times and polled every tick by the
// owning mode, so cancellation is just clearing the map. Shared by
// DeathCount and Domination.
type RespawnManager struct {
	eng     *Engine
	delayMs int64
	pending map[string]int64
}

func newRespawnManager(eng *Engine, delayMs int64) *RespawnManager {
	return &RespawnManager{
		eng:     eng,
		delayMs: delayMs,
		pending: make(map[string]int64),
	}
}

// ScheduleRespawn queues a respawn for p unless the round would end
// before the delay elapses. roundDurationMs of zero means the round is
// untimed and the respawn is always scheduled. The dying player alone is
// told how long they will wait.
func (m *RespawnManager) ScheduleRespawn(p *Player, now, roundDurationMs int64) bool {
	if roundDurationMs > 0 && now+m.delayMs >= roundDurationMs {
		return false
	}
	m.pending[p.ID] = now + m.delayMs
	m.eng.bus.Publish(Event{
		Topic:    TopicPlayerRespawnPending,
		TargetID: p.ID,
		Data:     map[string]any{"respawnIn": m.delayMs},
	})
	return true
}

// CheckRespawns revives every player whose respawn time has come.
func (m *RespawnManager) CheckRespawns(now int64) {
	for id, at := range m.pending {
		if at > now {
			continue
		}
		delete(m.pending, id)
		p, ok := m.eng.players[id]
		if !ok {
			m.eng.log.Error("respawn scheduled for unknown player", zap.String("playerId", id))
			continue
		}
		p.Respawn(now)
		m.eng.bus.Publish(Event{
			Topic: TopicPlayerRespawn,
			Data: map[string]any{
				"playerId":     p.ID,
				"playerName":   p.Name,
				"playerNumber": p.Number,
				"gameTime":     now,
			},
		})
	}
}

// Pending reports whether a respawn is queued for the player.
func (m *RespawnManager) Pending(id string) bool {
	_, ok := m.pending[id]
	return ok
}

// Clear drops every pending respawn. Called on round end and admin stop.
func (m *RespawnManager) Clear() {
	m.pending = make(map[string]int64)
}

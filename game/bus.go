package game

import "sync"

// Event topics published by the engine. The server-side broadcaster maps
// these one-to-one onto outbound wire messages.
const (
	TopicLobbyUpdate          = "lobby:update"
	TopicTeamUpdate           = "team:update"
	TopicGameStart            = "game:start"
	TopicGameCountdown        = "game:countdown"
	TopicRoundStart           = "round:start"
	TopicGameTick             = "game:tick"
	TopicPlayerDeath          = "player:death"
	TopicPlayerRespawn        = "player:respawn"
	TopicPlayerRespawnPending = "player:respawn-pending"
	TopicPlayerDamage         = "player:damage"
	TopicRoleAssigned         = "role:assigned"
	TopicRoleUpdated          = "role:updated"
	TopicReadyUpdate          = "ready:update"
	TopicReadyEnabled         = "ready:enabled"
	TopicRoundEnd             = "round:end"
	TopicGameEnd              = "game:end"
	TopicGameStopped          = "game:stopped"
	TopicModeEvent            = "mode:event"
	TopicBaseCaptured         = "base:captured"
	TopicBasePoint            = "base:point"
	TopicBaseStatus           = "base:status"
	TopicDominationWin        = "domination:win"
	TopicVampireBloodlust     = "vampire:bloodlust"
)

// Event is one authoritative fact emitted by the engine. TargetID, when
// non-empty, restricts delivery to a single player's transport.
type Event struct {
	Topic    string
	TargetID string
	Data     any
}

// Bus is a synchronous in-process pub/sub fabric. Publish calls every
// subscriber inline on the publishing goroutine, which keeps ordering
// guarantees trivial: an observer of player:death sees the world exactly
// as it was the moment the player died. Subscribers must not call back
// into the engine.
type Bus struct {
	mu   sync.RWMutex
	subs []func(Event)
}

// NewBus returns an empty bus.
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers fn for every published event.
func (b *Bus) Subscribe(fn func(Event)) {
	b.mu.Lock()
	b.subs = append(b.subs, fn)
	b.mu.Unlock()
}

// Publish delivers ev to all subscribers in registration order.
func (b *Bus) Publish(ev Event) {
	b.mu.RLock()
	subs := b.subs
	b.mu.RUnlock()
	for _, fn := range subs {
		fn(ev)
	}
}

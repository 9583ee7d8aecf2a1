package game

import (
	"sort"
	"time"
)

// damageQuietTicks is how many consecutive ticks without new damage close
// a damage burst and fire the player's damage event.
const damageQuietTicks = 3

// Ability failure reasons returned to the tapping client.
const (
	ReasonNoAbility     = "no_ability"
	ReasonNoCharges     = "no_charges"
	ReasonAbilityFailed = "ability_failed"
)

// ChargeInfo is the ability charge snapshot included in tap results.
type ChargeInfo struct {
	Current           int   `json:"current"`
	Max               int   `json:"max"`
	CooldownRemaining int64 `json:"cooldownRemaining"`
}

// AbilityResult is the outcome of a player:tap.
type AbilityResult struct {
	Success bool        `json:"success"`
	Reason  string      `json:"reason,omitempty"`
	Charges *ChargeInfo `json:"charges"`
}

// Player is the per-player authoritative state. It lives for the whole
// session: rounds reset the combat fields but identity, scores and the
// lobby slot survive.
type Player struct {
	ID     string
	Name   string
	Number int

	Alive          bool
	Ready          bool
	LobbyReady     bool
	DisconnectedAt time.Time // zero while connected

	samples       []AccelSample
	LastIntensity float64

	AccumulatedDamage float64
	Toughness         float64
	Invulnerable      bool

	Points                 int
	TotalPoints            int
	DeathCount             int
	PlacementBonusOverride []int
	VictoryGroupID         string

	effects map[EffectKind]*StatusEffect

	Role              RoleKind
	RoleState         any
	TargetPlayerID    string
	TargetPlayerName  string
	MaxCharges        int
	CurrentCharges    int
	CooldownDuration  int64
	CooldownRemaining int64

	burstDamage float64
	quietTicks  int

	eng *Engine
}

func newPlayer(id, name string, number int, eng *Engine) *Player {
	return &Player{
		ID:        id,
		Name:      name,
		Number:    number,
		Toughness: 1,
		Role:      RoleNone,
		effects:   make(map[EffectKind]*StatusEffect),
		eng:       eng,
	}
}

// IsConnected reports whether the player's transport is currently bound.
func (p *Player) IsConnected() bool {
	return p.DisconnectedAt.IsZero()
}

// IsDisconnectedBeyondGrace reports whether an in-game disconnect has
// outlived its grace period. Such a player no longer counts as
// effectively alive for win-condition checks.
func (p *Player) IsDisconnectedBeyondGrace(now time.Time, grace time.Duration) bool {
	if p.DisconnectedAt.IsZero() {
		return false
	}
	return now.Sub(p.DisconnectedAt) >= grace
}

// resetForRound restores the combat state for a fresh round. Scores and
// identity are untouched; per-round points and deaths start at zero.
func (p *Player) resetForRound() {
	p.Alive = true
	p.AccumulatedDamage = 0
	p.Toughness = 1
	p.Invulnerable = false
	p.samples = nil
	p.LastIntensity = 0
	p.Points = 0
	p.DeathCount = 0
	p.VictoryGroupID = ""
	p.PlacementBonusOverride = nil
	p.effects = make(map[EffectKind]*StatusEffect)
	p.Role = RoleNone
	p.RoleState = nil
	p.TargetPlayerID = ""
	p.TargetPlayerName = ""
	p.MaxCharges = 0
	p.CurrentCharges = 0
	p.CooldownDuration = 0
	p.CooldownRemaining = 0
	p.burstDamage = 0
	p.quietTicks = 0
}

// effectsByPriority returns the live effects in descending priority order.
// Kind name breaks ties so hook order is deterministic.
func (p *Player) effectsByPriority() []*StatusEffect {
	out := make([]*StatusEffect, 0, len(p.effects))
	for _, e := range p.effects {
		if !e.spent {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority() != out[j].Priority() {
			return out[i].Priority() > out[j].Priority()
		}
		return out[i].Kind < out[j].Kind
	})
	return out
}

// HasEffect reports whether an unconsumed instance of kind is present.
func (p *Player) HasEffect(kind EffectKind) bool {
	e, ok := p.effects[kind]
	return ok && !e.spent
}

// ApplyEffect attaches an effect of the given kind, or refreshes the
// existing instance. durationMs <= 0 means indefinite. value semantics are
// kind-specific (see StatusEffect).
func (p *Player) ApplyEffect(kind EffectKind, durationMs int64, value float64, now int64) *StatusEffect {
	endTime := int64(0)
	if durationMs > 0 {
		endTime = now + durationMs
	}
	if e, ok := p.effects[kind]; ok && !e.spent {
		if h := effectTable[kind].onRefresh; h != nil {
			h(p, e, endTime, value)
		} else {
			e.EndTime = endTime
		}
		return e
	}
	e := &StatusEffect{
		Kind:      kind,
		AppliedAt: now,
		EndTime:   endTime,
		Value:     value,
	}
	p.effects[kind] = e
	if h := effectTable[kind].onApply; h != nil {
		h(p, e)
	}
	return e
}

// RemoveEffect drops the effect, running its onRemove hook exactly once.
func (p *Player) RemoveEffect(kind EffectKind) {
	e, ok := p.effects[kind]
	if !ok {
		return
	}
	delete(p.effects, kind)
	if h := effectTable[kind].onRemove; h != nil && !e.spent {
		h(p, e)
	}
	if kind == EffectInvulnerability {
		p.refreshInvulnerable()
	}
}

// ClearStatusEffects removes every effect, onRemove hooks included.
func (p *Player) ClearStatusEffects() {
	for kind := range p.effects {
		p.RemoveEffect(kind)
	}
}

func (p *Player) refreshInvulnerable() {
	p.Invulnerable = p.HasEffect(EffectInvulnerability)
}

// UpdateMovement processes one accelerometer sample. Samples from dead
// players are dropped; the engine additionally gates on game state before
// calling this.
func (p *Player) UpdateMovement(sample AccelSample, now int64) {
	if !p.Alive {
		return
	}
	mc := &p.eng.movement

	p.samples = append(p.samples, sample)
	if size := mc.HistorySize; size > 0 && len(p.samples) > size {
		p.samples = p.samples[len(p.samples)-size:]
	}

	magnitude := sample.Magnitude()
	if mc.SmoothingEnabled && len(p.samples) > 0 {
		sum := 0.0
		for _, s := range p.samples {
			sum += s.Magnitude()
		}
		magnitude = sum / float64(len(p.samples))
	}
	intensity := intensityFromMagnitude(magnitude)
	p.LastIntensity = intensity

	for _, e := range p.effectsByPriority() {
		if h := effectTable[e.Kind].onMovement; h != nil {
			h(p, e, now, intensity)
		}
	}

	p.checkMovementDamage(intensity, now)
}

// checkMovementDamage reads the live danger threshold so mid-round
// mutations by game events apply immediately.
func (p *Player) checkMovementDamage(intensity float64, now int64) {
	mc := &p.eng.movement
	if intensity <= mc.DangerThreshold {
		return
	}
	if mc.OneshotMode {
		p.TakeDamage(mc.DeathThreshold, now)
		return
	}
	p.TakeDamage((intensity-mc.DangerThreshold)*mc.DamageMultiplier, now)
}

// TakeDamage runs the damage pipeline: effect modifiers by descending
// priority (short-circuit at zero), division by toughness, accumulation,
// then the death check.
func (p *Player) TakeDamage(base float64, now int64) {
	if !p.Alive || base <= 0 {
		return
	}
	d := base
	for _, e := range p.effectsByPriority() {
		if h := effectTable[e.Kind].modifyDamage; h != nil {
			d = h(p, e, d)
			if d <= 0 {
				d = 0
				break
			}
		}
	}
	d /= p.Toughness
	if d > 0 {
		p.AccumulatedDamage += d
		p.burstDamage += d
		p.quietTicks = 0
	}
	if p.AccumulatedDamage >= p.eng.movement.DeathThreshold && !p.Invulnerable {
		p.beforeDeath(now)
	}
}

// beforeDeath offers each effect, then the role, a chance to veto the
// death. First veto wins.
func (p *Player) beforeDeath(now int64) {
	for _, e := range p.effectsByPriority() {
		if h := effectTable[e.Kind].preventDeath; h != nil && h(p, e, now) {
			return
		}
	}
	if h := roleTable[p.Role].beforeDeath; h != nil && h(p, now) {
		return
	}
	p.die(now)
}

// die marks the player dead. Idempotent; the second call is a no-op.
// Observers fire synchronously, so anything reacting to the death sees
// the world with the victim already dead.
func (p *Player) die(now int64) {
	if !p.Alive {
		return
	}
	p.Alive = false
	p.AccumulatedDamage = p.eng.movement.DeathThreshold
	p.DeathCount++

	for _, e := range p.effectsByPriority() {
		if h := effectTable[e.Kind].onPlayerDeath; h != nil {
			h(p, e, now)
		}
	}
	p.ClearStatusEffects()

	if h := roleTable[p.Role].onDeath; h != nil {
		h(p, now)
	}

	p.eng.handlePlayerDeath(p, now)
}

// Respawn revives the player with a clean slate. Vulnerable immediately.
func (p *Player) Respawn(now int64) {
	p.Alive = true
	p.AccumulatedDamage = 0
	p.ClearStatusEffects()
	p.samples = nil
	p.LastIntensity = 0
	p.burstDamage = 0
	p.quietTicks = 0
}

// tick advances the player by one engine tick: effect ticks and expiry,
// charge regeneration, damage-burst debouncing, then the role hook.
func (p *Player) tick(now, dt int64) {
	for _, e := range p.effectsByPriority() {
		if h := effectTable[e.Kind].onTick; h != nil {
			h(p, e, now, dt)
		}
		if !p.Alive {
			return // an effect killed the player; die already cleaned up
		}
	}
	for kind, e := range p.effects {
		if e.shouldExpire(now) {
			if e.spent {
				delete(p.effects, kind)
				if kind == EffectInvulnerability {
					p.refreshInvulnerable()
				}
			} else {
				p.RemoveEffect(kind)
			}
		}
	}

	if p.CurrentCharges < p.MaxCharges {
		p.CooldownRemaining -= dt
		if p.CooldownRemaining <= 0 {
			p.CurrentCharges++
			if p.CurrentCharges < p.MaxCharges {
				p.CooldownRemaining = p.CooldownDuration
			} else {
				p.CooldownRemaining = 0
			}
		}
	}

	if p.burstDamage > 0 {
		p.quietTicks++
		if p.quietTicks >= damageQuietTicks {
			total := p.burstDamage
			p.burstDamage = 0
			p.quietTicks = 0
			if h := roleTable[p.Role].onDamageEvent; h != nil {
				h(p, total, now)
			}
			p.eng.bus.Publish(Event{
				Topic:    TopicPlayerDamage,
				TargetID: p.ID,
				Data:     map[string]any{"totalDamage": total},
			})
		}
	}

	if h := roleTable[p.Role].onTick; h != nil {
		h(p, now, dt)
	}
}

// UseAbility consumes one charge and invokes the role ability hook. A
// failed hook refunds the charge.
func (p *Player) UseAbility(now int64) AbilityResult {
	hook := roleTable[p.Role].onAbilityUse
	if hook == nil || p.MaxCharges == 0 {
		return AbilityResult{Success: false, Reason: ReasonNoAbility}
	}
	charges := func() *ChargeInfo {
		return &ChargeInfo{
			Current:           p.CurrentCharges,
			Max:               p.MaxCharges,
			CooldownRemaining: p.CooldownRemaining,
		}
	}
	if p.CurrentCharges <= 0 {
		return AbilityResult{Success: false, Reason: ReasonNoCharges, Charges: charges()}
	}
	p.CurrentCharges--
	if p.CooldownRemaining == 0 {
		p.CooldownRemaining = p.CooldownDuration
	}
	if !hook(p, now) {
		p.CurrentCharges++
		if p.CurrentCharges == p.MaxCharges {
			p.CooldownRemaining = 0
		}
		return AbilityResult{Success: false, Reason: ReasonAbilityFailed, Charges: charges()}
	}
	return AbilityResult{Success: true, Charges: charges()}
}

// EffectSnapshots lists the active effects for wire payloads.
func (p *Player) EffectSnapshots() []EffectSnapshot {
	effects := p.effectsByPriority()
	out := make([]EffectSnapshot, 0, len(effects))
	for _, e := range effects {
		var end *int64
		if e.EndTime > 0 {
			v := e.EndTime
			end = &v
		}
		out = append(out, EffectSnapshot{Type: string(e.Kind), EndTime: end})
	}
	return out
}

// EffectSnapshot is the wire form of one active status effect.
type EffectSnapshot struct {
	Type    string `json:"type"`
	EndTime *int64 `json:"endTime"`
}

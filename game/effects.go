package game

// EffectKind identifies a status effect type. Each player carries at most
// one instance per kind; re-applying refreshes the existing instance.
type EffectKind string

const (
	EffectInvulnerability EffectKind = "invulnerability"
	EffectBlessed         EffectKind = "blessed"
	EffectStunned         EffectKind = "stunned"
	EffectShielded        EffectKind = "shielded"
	EffectStrengthened    EffectKind = "strengthened"
	EffectWeakened        EffectKind = "weakened"
	EffectToughened       EffectKind = "toughened"
	EffectRegenerating    EffectKind = "regenerating"
	EffectExcited         EffectKind = "excited"
)

// effectPriority orders hook invocation on a player: higher runs first.
// Kept in one table so relative ordering is auditable at a glance.
var effectPriority = map[EffectKind]int{
	EffectInvulnerability: 100,
	EffectBlessed:         95,
	EffectStunned:         90,
	EffectShielded:        80,
	EffectStrengthened:    60,
	EffectWeakened:        50,
	EffectToughened:       50,
	EffectRegenerating:    20,
	EffectExcited:         10,
}

// excitedMinIntensity is the intensity below which a sample does not count
// as "moving" for the Excited effect. Gravity noise on a resting phone
// stays under this.
const excitedMinIntensity = 0.1

// excitedStillTimeoutMs kills an Excited player who holds still this long.
const excitedStillTimeoutMs = 2000

// stunnedDamageFactor multiplies incoming damage while Stunned.
const stunnedDamageFactor = 5

// StatusEffect is one live effect instance on a player. Value is
// kind-specific: remaining capacity for Shielded, toughness multiplier for
// Strengthened/Weakened, absolute toughness for Toughened, damage removed
// per second for Regenerating. EndTime is in game time ms; zero means the
// effect lasts until explicitly removed.
type StatusEffect struct {
	Kind      EffectKind
	AppliedAt int64
	EndTime   int64
	Value     float64

	saved          float64 // Toughened: toughness to restore
	lastMovementAt int64   // Excited: last game time the target moved
	spent          bool    // consumed by its own hooks, remove on next sweep
}

// Priority returns the static priority for the effect's kind.
func (e *StatusEffect) Priority() int {
	return effectPriority[e.Kind]
}

// shouldExpire reports whether the sweep in Player.tick must drop e.
func (e *StatusEffect) shouldExpire(now int64) bool {
	return e.spent || (e.EndTime > 0 && now >= e.EndTime)
}

// effectHooks is the dispatch table entry for one effect kind. Nil hooks
// are skipped.
type effectHooks struct {
	onApply       func(p *Player, e *StatusEffect)
	onRefresh     func(p *Player, e *StatusEffect, endTime int64, value float64)
	onRemove      func(p *Player, e *StatusEffect)
	onTick        func(p *Player, e *StatusEffect, now, dt int64)
	onMovement    func(p *Player, e *StatusEffect, now int64, intensity float64)
	modifyDamage  func(p *Player, e *StatusEffect, d float64) float64
	preventDeath  func(p *Player, e *StatusEffect, now int64) bool
	onPlayerDeath func(p *Player, e *StatusEffect, now int64)
}

// defaultRefresh extends the lifetime and overwrites the value. Kinds with
// stacking side effects (toughness multipliers) override this.
func defaultRefresh(p *Player, e *StatusEffect, endTime int64, value float64) {
	e.EndTime = endTime
	if value != 0 {
		e.Value = value
	}
}

// effectTable is populated in init: the hook literals reach back into
// Player methods that consult the table, which would otherwise form an
// initialization cycle.
var effectTable map[EffectKind]effectHooks

func init() {
	effectTable = map[EffectKind]effectHooks{
		EffectInvulnerability: {
			onApply:  func(p *Player, e *StatusEffect) { p.Invulnerable = true },
			onRemove: func(p *Player, e *StatusEffect) { p.refreshInvulnerable() },
			modifyDamage: func(p *Player, e *StatusEffect, d float64) float64 {
				return 0
			},
			onRefresh: defaultRefresh,
		},
		EffectBlessed: {
			preventDeath: func(p *Player, e *StatusEffect, now int64) bool {
				// Consumes itself: one death, fully cleansed.
				e.spent = true
				p.AccumulatedDamage = 0
				return true
			},
			onRefresh: defaultRefresh,
		},
		EffectStunned: {
			modifyDamage: func(p *Player, e *StatusEffect, d float64) float64 {
				return d * stunnedDamageFactor
			},
			onRefresh: defaultRefresh,
		},
		EffectShielded: {
			modifyDamage: func(p *Player, e *StatusEffect, d float64) float64 {
				absorbed := d
				if absorbed > e.Value {
					absorbed = e.Value
				}
				e.Value -= absorbed
				if e.Value <= 0 {
					e.spent = true
				}
				return d - absorbed
			},
			onRefresh: defaultRefresh,
		},
		EffectStrengthened: {
			onApply: func(p *Player, e *StatusEffect) { p.Toughness *= e.Value },
			onRefresh: func(p *Player, e *StatusEffect, endTime int64, value float64) {
				e.EndTime = endTime
				if value != 0 && value != e.Value {
					p.Toughness = p.Toughness / e.Value * value
					e.Value = value
				}
			},
			onRemove: func(p *Player, e *StatusEffect) { p.Toughness /= e.Value },
		},
		EffectWeakened: {
			onApply: func(p *Player, e *StatusEffect) { p.Toughness *= e.Value },
			onRefresh: func(p *Player, e *StatusEffect, endTime int64, value float64) {
				e.EndTime = endTime
				if value != 0 && value != e.Value {
					p.Toughness = p.Toughness / e.Value * value
					e.Value = value
				}
			},
			onRemove: func(p *Player, e *StatusEffect) { p.Toughness /= e.Value },
		},
		EffectToughened: {
			onApply: func(p *Player, e *StatusEffect) {
				e.saved = p.Toughness
				p.Toughness = e.Value
			},
			onRefresh: func(p *Player, e *StatusEffect, endTime int64, value float64) {
				e.EndTime = endTime
				if value != 0 {
					e.Value = value
					p.Toughness = value
				}
			},
			onRemove: func(p *Player, e *StatusEffect) { p.Toughness = e.saved },
		},
		EffectRegenerating: {
			onTick: func(p *Player, e *StatusEffect, now, dt int64) {
				p.AccumulatedDamage -= e.Value * float64(dt) / 1000
				if p.AccumulatedDamage < 0 {
					p.AccumulatedDamage = 0
				}
			},
			onRefresh: defaultRefresh,
		},
		EffectExcited: {
			onApply: func(p *Player, e *StatusEffect) { e.lastMovementAt = e.AppliedAt },
			onMovement: func(p *Player, e *StatusEffect, now int64, intensity float64) {
				if intensity >= excitedMinIntensity {
					e.lastMovementAt = now
				}
			},
			onTick: func(p *Player, e *StatusEffect, now, dt int64) {
				if now-e.lastMovementAt >= excitedStillTimeoutMs {
					e.spent = true
					p.die(now)
				}
			},
			onRefresh: defaultRefresh,
		},
	}
}

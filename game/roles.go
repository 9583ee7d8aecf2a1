package game

import "math/rand"

// RoleKind tags a player with role-specific behavior. Dispatch runs
// through roleTable instead of subclassing; per-role state hangs off
// Player.RoleState.
type RoleKind string

const (
	RoleNone        RoleKind = "norole"
	RoleVampire     RoleKind = "vampire"
	RoleAngel       RoleKind = "angel"
	RoleBeast       RoleKind = "beast"
	RoleBeastHunter RoleKind = "beast-hunter"
	RoleExecutioner RoleKind = "executioner"
)

// Vampire bloodlust tuning.
const (
	bloodlustCooldownMs = 30000
	bloodlustDurationMs = 5000
	bloodlustPoints     = 5
)

// vampireVictoryGroup makes co-surviving vampires joint round winners.
const vampireVictoryGroup = "vampires"

const (
	angelCooldownMs     = 25000
	beastToughness      = 2.5
	beastHunterBounty   = 3
	executionerReward   = 5
	executionerShieldMs = 3000
)

// RoleMeta is the static description of a role, sent with role:assigned.
type RoleMeta struct {
	DisplayName string `json:"displayName"`
	Description string `json:"description"`
	Difficulty  int    `json:"difficulty"`
	Priority    int    `json:"-"`
}

var roleMeta = map[RoleKind]RoleMeta{
	RoleNone: {DisplayName: "Jouster", Description: "Stay still, stay alive.", Difficulty: 1},
	RoleVampire: {
		DisplayName: "Vampire",
		Description: "Bloodlust strikes periodically: someone must die during it, or you do.",
		Difficulty:  3,
		Priority:    10,
	},
	RoleAngel: {
		DisplayName: "Angel",
		Description: "Tap to bless yourself and cheat death once.",
		Difficulty:  1,
		Priority:    5,
	},
	RoleBeast: {
		DisplayName: "Beast",
		Description: "Hard to kill. Everyone wants you dead anyway.",
		Difficulty:  2,
		Priority:    20,
	},
	RoleBeastHunter: {
		DisplayName: "Beast Hunter",
		Description: "Earn a bounty when the Beast falls.",
		Difficulty:  2,
		Priority:    5,
	},
	RoleExecutioner: {
		DisplayName: "Executioner",
		Description: "A target is chosen for you. Outlive them and profit.",
		Difficulty:  3,
		Priority:    5,
	},
}

// Meta returns the static metadata for a role kind.
func (k RoleKind) Meta() RoleMeta {
	return roleMeta[k]
}

// roleHooks is the dispatch table entry for one role. Nil hooks are
// skipped. beforeDeath returning true vetoes the death.
type roleHooks struct {
	onInit          func(p *Player, now int64)
	onPreRoundSetup func(p *Player, all []*Player, rng *rand.Rand)
	onTick          func(p *Player, now, dt int64)
	beforeDeath     func(p *Player, now int64) bool
	onDeath         func(p *Player, now int64)
	onPlayerDeath   func(p *Player, victim *Player, now int64)
	onDamageEvent   func(p *Player, total float64, now int64)
	onAbilityUse    func(p *Player, now int64) bool
}

type vampireState struct {
	active      bool
	nextStartAt int64
	endsAt      int64
}

func publishBloodlust(p *Player, active bool) {
	p.eng.bus.Publish(Event{
		Topic: TopicVampireBloodlust,
		Data: map[string]any{
			"vampireId":     p.ID,
			"vampireName":   p.Name,
			"vampireNumber": p.Number,
			"active":        active,
		},
	})
}

// roleTable is populated in init for the same reason as effectTable: its
// hooks call Player methods that dispatch through these tables.
var roleTable map[RoleKind]roleHooks

func init() {
	roleTable = map[RoleKind]roleHooks{
		RoleNone: {},

		RoleVampire: {
			onInit: func(p *Player, now int64) {
				p.RoleState = &vampireState{nextStartAt: now + bloodlustCooldownMs}
				p.VictoryGroupID = vampireVictoryGroup
			},
			onTick: func(p *Player, now, dt int64) {
				vs, ok := p.RoleState.(*vampireState)
				if !ok {
					return
				}
				if !vs.active && now >= vs.nextStartAt {
					vs.active = true
					vs.endsAt = now + bloodlustDurationMs
					publishBloodlust(p, true)
					return
				}
				if vs.active && now >= vs.endsAt {
					// Nobody died in time. The thirst wins.
					vs.active = false
					publishBloodlust(p, false)
					p.die(now)
				}
			},
			onPlayerDeath: func(p *Player, victim *Player, now int64) {
				vs, ok := p.RoleState.(*vampireState)
				if !ok || !vs.active {
					return
				}
				vs.active = false
				vs.nextStartAt = now + bloodlustCooldownMs
				p.Points += bloodlustPoints
				publishBloodlust(p, false)
			},
		},

		RoleAngel: {
			onInit: func(p *Player, now int64) {
				p.MaxCharges = 1
				p.CurrentCharges = 1
				p.CooldownDuration = angelCooldownMs
			},
			onAbilityUse: func(p *Player, now int64) bool {
				if p.HasEffect(EffectBlessed) {
					return false
				}
				p.ApplyEffect(EffectBlessed, 0, 0, now)
				return true
			},
		},

		RoleBeast: {
			onInit: func(p *Player, now int64) {
				p.ApplyEffect(EffectToughened, 0, beastToughness, now)
			},
		},

		RoleBeastHunter: {
			onPlayerDeath: func(p *Player, victim *Player, now int64) {
				if victim.Role == RoleBeast {
					p.Points += beastHunterBounty
				}
			},
		},

		RoleExecutioner: {
			onPreRoundSetup: func(p *Player, all []*Player, rng *rand.Rand) {
				candidates := make([]*Player, 0, len(all))
				for _, other := range all {
					if other.ID != p.ID {
						candidates = append(candidates, other)
					}
				}
				if len(candidates) == 0 {
					return
				}
				target := candidates[rng.Intn(len(candidates))]
				p.TargetPlayerID = target.ID
				p.TargetPlayerName = target.Name
			},
			onPlayerDeath: func(p *Player, victim *Player, now int64) {
				if p.TargetPlayerID == "" || victim.ID != p.TargetPlayerID {
					return
				}
				p.TargetPlayerID = ""
				p.TargetPlayerName = ""
				p.Points += executionerReward
				if p.Alive {
					p.ApplyEffect(EffectInvulnerability, executionerShieldMs, 0, now)
				}
				p.eng.publishRoleUpdate(p)
			},
		},
	}
}

// roleThemes groups the role pools selectable via settings.
var roleThemes = map[string][]RoleKind{
	"vampire": {RoleVampire, RoleAngel},
	"jungle":  {RoleBeast, RoleBeastHunter},
	"mixed":   {RoleVampire, RoleAngel, RoleBeast, RoleBeastHunter, RoleExecutioner},
}

// RolePoolForTheme repeats the theme's pool to cover n players, then
// truncates. Unknown themes fall back to "mixed".
func RolePoolForTheme(theme string, n int) []RoleKind {
	pool, ok := roleThemes[theme]
	if !ok || len(pool) == 0 {
		pool = roleThemes["mixed"]
	}
	out := make([]RoleKind, 0, n)
	for len(out) < n {
		out = append(out, pool...)
	}
	return out[:n]
}

// assignRoles shuffles the pool onto the players and runs init hooks.
// Target-picking roles resolve their targets in onPreRoundSetup before
// any assignment is announced.
func assignRoles(players []*Player, pool []RoleKind, rng *rand.Rand, now int64) {
	shuffled := make([]RoleKind, len(pool))
	copy(shuffled, pool)
	rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	for i, p := range players {
		if i < len(shuffled) {
			p.Role = shuffled[i]
		} else {
			p.Role = RoleNone
		}
		if h := roleTable[p.Role].onInit; h != nil {
			h(p, now)
		}
	}
	for _, p := range players {
		if h := roleTable[p.Role].onPreRoundSetup; h != nil {
			h(p, players, rng)
		}
	}
}

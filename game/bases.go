package game

import (
	"errors"
	"fmt"
)

// NeutralTeam marks a base owned by nobody.
const NeutralTeam = -1

// ErrBaseLimit is returned when registering more bases than allowed.
var ErrBaseLimit = errors.New("base limit reached")

// ErrUnknownBase is returned for taps on ids that were never registered.
var ErrUnknownBase = errors.New("unknown base")

// Base is one physical base endpoint in Domination. A base is a phone on
// the floor, not a player.
type Base struct {
	ID                    string
	Number                int
	OwnerTeamID           int
	LastOwnershipChangeAt int64
	NextPointAt           int64
	Connected             bool
}

// ControlProgress is the fraction of the current control interval that
// has elapsed since it started, in [0, 1]. Zero unless the base is owned
// and connected. LastOwnershipChangeAt marks the interval start; it also
// advances when a point is scored or the base reconnects.
func (b *Base) ControlProgress(now, intervalMs int64) float64 {
	if b.OwnerTeamID == NeutralTeam || !b.Connected || intervalMs <= 0 || b.NextPointAt == 0 {
		return 0
	}
	progress := float64(now-b.LastOwnershipChangeAt) / float64(intervalMs)
	if progress < 0 {
		return 0
	}
	if progress > 1 {
		return 1
	}
	return progress
}

// BaseRegistry tracks the 1-3 base endpoints and their ownership state.
type BaseRegistry struct {
	bases    map[string]*Base
	order    []string
	maxBases int
}

// NewBaseRegistry creates a registry capped at maxBases, clamped to [1, 3].
func NewBaseRegistry(maxBases int) *BaseRegistry {
	if maxBases < 1 {
		maxBases = 1
	}
	if maxBases > 3 {
		maxBases = 3
	}
	return &BaseRegistry{
		bases:    make(map[string]*Base),
		maxBases: maxBases,
	}
}

// SetLimit adjusts the registration cap, clamped to [1, 3]. Existing
// bases are kept even if they now exceed the cap.
func (r *BaseRegistry) SetLimit(maxBases int) {
	if maxBases < 1 {
		maxBases = 1
	}
	if maxBases > 3 {
		maxBases = 3
	}
	r.maxBases = maxBases
}

// Register adds a new base, or reconnects a known one when id matches.
// The bool result is true for a reconnect. Empty ids get an allocated one.
func (r *BaseRegistry) Register(id string, now, intervalMs int64) (*Base, bool, error) {
	if id != "" {
		if b, ok := r.bases[id]; ok {
			b.Connected = true
			// Control progress restarts after an outage; intervals
			// overlapping a disconnect never score.
			b.LastOwnershipChangeAt = now
			if b.OwnerTeamID != NeutralTeam {
				b.NextPointAt = now + intervalMs
			}
			return b, true, nil
		}
	}
	if len(r.order) >= r.maxBases {
		return nil, false, ErrBaseLimit
	}
	number := len(r.order) + 1
	if id == "" {
		id = fmt.Sprintf("base-%d", number)
	}
	b := &Base{
		ID:                    id,
		Number:                number,
		OwnerTeamID:           NeutralTeam,
		LastOwnershipChangeAt: now,
		Connected:             true,
	}
	r.bases[id] = b
	r.order = append(r.order, id)
	return b, false, nil
}

// Tap cycles the base's ownership: neutral, team 0, team 1, ..., back to
// team 0. Whoever lands the last tap owns the base; taps are anonymous by
// design. The control timer restarts on every cycle.
func (r *BaseRegistry) Tap(id string, teamCount int, now, intervalMs int64) (*Base, error) {
	b, ok := r.bases[id]
	if !ok {
		return nil, ErrUnknownBase
	}
	if b.OwnerTeamID == NeutralTeam {
		b.OwnerTeamID = 0
	} else {
		b.OwnerTeamID = (b.OwnerTeamID + 1) % teamCount
	}
	b.LastOwnershipChangeAt = now
	b.NextPointAt = now + intervalMs
	return b, nil
}

// SetConnected flips the connected flag. A reconnect restarts the control
// timer so no interval overlapping the outage can score.
func (r *BaseRegistry) SetConnected(id string, connected bool, now, intervalMs int64) {
	b, ok := r.bases[id]
	if !ok {
		return
	}
	wasConnected := b.Connected
	b.Connected = connected
	if connected && !wasConnected && b.OwnerTeamID != NeutralTeam {
		b.LastOwnershipChangeAt = now
		b.NextPointAt = now + intervalMs
	}
}

// Bases returns the registered bases in registration order.
func (r *BaseRegistry) Bases() []*Base {
	out := make([]*Base, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.bases[id])
	}
	return out
}

// Base returns the base with the given id.
func (r *BaseRegistry) Base(id string) (*Base, bool) {
	b, ok := r.bases[id]
	return b, ok
}

// ResetControl neutralizes every base for a fresh round.
func (r *BaseRegistry) ResetControl(now int64) {
	for _, b := range r.bases {
		b.OwnerTeamID = NeutralTeam
		b.LastOwnershipChangeAt = now
		b.NextPointAt = 0
	}
}

// BaseSnapshot is the wire form of one base for base:status payloads.
type BaseSnapshot struct {
	BaseID          string  `json:"baseId"`
	BaseNumber      int     `json:"baseNumber"`
	OwnerTeamID     *int    `json:"ownerTeamId"`
	ControlProgress float64 `json:"controlProgress"`
	IsConnected     bool    `json:"isConnected"`
}

// Snapshot lists every base for broadcast.
func (r *BaseRegistry) Snapshot(now, intervalMs int64) []BaseSnapshot {
	out := make([]BaseSnapshot, 0, len(r.order))
	for _, id := range r.order {
		b := r.bases[id]
		var owner *int
		if b.OwnerTeamID != NeutralTeam {
			v := b.OwnerTeamID
			owner = &v
		}
		out = append(out, BaseSnapshot{
			BaseID:          b.ID,
			BaseNumber:      b.Number,
			OwnerTeamID:     owner,
			ControlProgress: b.ControlProgress(now, intervalMs),
			IsConnected:     b.Connected,
		})
	}
	return out
}

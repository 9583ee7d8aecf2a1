package game

import (
	"math/rand"
	"sort"
)

// Team is a static color-coded team definition.
type Team struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

// teamDefs are the fixed team identities; a game uses the first 2 to 4.
var teamDefs = []Team{
	{ID: 0, Name: "Red", Color: "#e74c3c"},
	{ID: 1, Name: "Blue", Color: "#3498db"},
	{ID: 2, Name: "Green", Color: "#2ecc71"},
	{ID: 3, Name: "Yellow", Color: "#f1c40f"},
}

// TeamRegistry maps players N:1 onto teams and counts match points at
// team granularity.
type TeamRegistry struct {
	teams      []Team
	assignment map[string]int
	points     map[int]int
}

// NewTeamRegistry creates count teams, clamped to [2, 4].
func NewTeamRegistry(count int) *TeamRegistry {
	if count < 2 {
		count = 2
	}
	if count > len(teamDefs) {
		count = len(teamDefs)
	}
	r := &TeamRegistry{
		teams:      teamDefs[:count],
		assignment: make(map[string]int),
		points:     make(map[int]int),
	}
	for _, t := range r.teams {
		r.points[t.ID] = 0
	}
	return r
}

// Count returns the number of teams.
func (r *TeamRegistry) Count() int {
	return len(r.teams)
}

// Teams returns the team definitions in id order.
func (r *TeamRegistry) Teams() []Team {
	return r.teams
}

// Team returns the definition for id.
func (r *TeamRegistry) Team(id int) (Team, bool) {
	if id < 0 || id >= len(r.teams) {
		return Team{}, false
	}
	return r.teams[id], true
}

// Assign puts the player on the currently smallest team and returns the
// team id. Ties go to the lowest id, so fresh lobbies fill round-robin.
func (r *TeamRegistry) Assign(playerID string) int {
	sizes := make(map[int]int, len(r.teams))
	for _, teamID := range r.assignment {
		sizes[teamID]++
	}
	best := 0
	for _, t := range r.teams[1:] {
		if sizes[t.ID] < sizes[best] {
			best = t.ID
		}
	}
	r.assignment[playerID] = best
	return best
}

// Cycle moves the player to the next team and returns the new id.
func (r *TeamRegistry) Cycle(playerID string) int {
	current, ok := r.assignment[playerID]
	if !ok {
		return r.Assign(playerID)
	}
	next := (current + 1) % len(r.teams)
	r.assignment[playerID] = next
	return next
}

// Shuffle randomly redistributes the given players evenly across teams.
func (r *TeamRegistry) Shuffle(playerIDs []string, rng *rand.Rand) {
	ids := make([]string, len(playerIDs))
	copy(ids, playerIDs)
	sort.Strings(ids)
	rng.Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })
	for i, id := range ids {
		r.assignment[id] = r.teams[i%len(r.teams)].ID
	}
}

// Remove forgets the player's assignment.
func (r *TeamRegistry) Remove(playerID string) {
	delete(r.assignment, playerID)
}

// TeamOf returns the player's team id.
func (r *TeamRegistry) TeamOf(playerID string) (int, bool) {
	id, ok := r.assignment[playerID]
	return id, ok
}

// Assignment returns a copy of the playerID to teamID mapping.
func (r *TeamRegistry) Assignment() map[string]int {
	out := make(map[string]int, len(r.assignment))
	for k, v := range r.assignment {
		out[k] = v
	}
	return out
}

// AddPoints credits match points to a team.
func (r *TeamRegistry) AddPoints(teamID, n int) {
	r.points[teamID] += n
}

// Points returns a copy of the team match point totals.
func (r *TeamRegistry) Points() map[int]int {
	out := make(map[int]int, len(r.points))
	for k, v := range r.points {
		out[k] = v
	}
	return out
}

// ResetPoints zeroes every team's match points.
func (r *TeamRegistry) ResetPoints() {
	for id := range r.points {
		r.points[id] = 0
	}
}

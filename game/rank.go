package game

import "sort"

// rankEntry pairs an id with its sort key. Lower keys rank better.
type rankEntry struct {
	id  string
	key float64
}

// rankByKey assigns competition ranks to entries sorted ascending by key.
// Equal keys share the lower rank: keys [2,4,4,7] rank as [1,2,2,4].
// Every ranking in the game goes through here so tie handling stays
// uniform.
func rankByKey(entries []rankEntry) map[string]int {
	sorted := make([]rankEntry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].key != sorted[j].key {
			return sorted[i].key < sorted[j].key
		}
		return sorted[i].id < sorted[j].id
	})

	ranks := make(map[string]int, len(sorted))
	for i, ent := range sorted {
		if i > 0 && ent.key == sorted[i-1].key {
			ranks[ent.id] = ranks[sorted[i-1].id]
		} else {
			ranks[ent.id] = i + 1
		}
	}
	return ranks
}

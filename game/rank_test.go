package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRankByKeyTiesShareLowerRank(t *testing.T) {
	ranks := rankByKey([]rankEntry{
		{id: "a", key: 2},
		{id: "b", key: 4},
		{id: "c", key: 4},
		{id: "d", key: 7},
	})
	assert.Equal(t, map[string]int{"a": 1, "b": 2, "c": 2, "d": 4}, ranks)
}

func TestRankByKeyAllEqual(t *testing.T) {
	ranks := rankByKey([]rankEntry{
		{id: "a", key: 1},
		{id: "b", key: 1},
		{id: "c", key: 1},
	})
	assert.Equal(t, map[string]int{"a": 1, "b": 1, "c": 1}, ranks)
}

func TestRankByKeyEmpty(t *testing.T) {
	assert.Empty(t, rankByKey(nil))
}

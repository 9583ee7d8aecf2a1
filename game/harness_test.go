package game

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// eventRecorder captures every bus event for assertions.
type eventRecorder struct {
	mu     sync.Mutex
	events []Event
}

func recordEvents(e *Engine) *eventRecorder {
	r := &eventRecorder{}
	e.Bus().Subscribe(func(ev Event) {
		r.mu.Lock()
		r.events = append(r.events, ev)
		r.mu.Unlock()
	})
	return r
}

func (r *eventRecorder) all(topic string) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, ev := range r.events {
		if ev.Topic == topic {
			out = append(out, ev)
		}
	}
	return out
}

func (r *eventRecorder) last(topic string) (Event, bool) {
	evs := r.all(topic)
	if len(evs) == 0 {
		return Event{}, false
	}
	return evs[len(evs)-1], true
}

func (r *eventRecorder) count(topic string) int {
	return len(r.all(topic))
}

// fakeClock is a controllable wall clock for grace-period tests.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Unix(1_700_000_000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e := NewEngine(DefaultEngineConfig(), zap.NewNop())
	e.SeedRNG(1)
	return e
}

func addPlayers(t *testing.T, e *Engine, ids ...string) []*Player {
	t.Helper()
	out := make([]*Player, 0, len(ids))
	for i, id := range ids {
		p, err := e.AddPlayer(id, "Player "+id, i+1)
		require.NoError(t, err)
		out = append(out, p)
	}
	return out
}

// startGame drives launch through countdown and the go phase into the
// active state.
func startGame(t *testing.T, e *Engine, mode string) {
	t.Helper()
	require.NoError(t, e.Launch(mode, 0))
	require.Equal(t, StatePreGame, e.State())
	require.NoError(t, e.Proceed())
	require.Equal(t, StateCountdown, e.State())
	e.Step(3000)
	e.Step(1000)
	require.Equal(t, StateActive, e.State())
}

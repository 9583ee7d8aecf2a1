package server

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrUnknownToken is returned for reconnect attempts with a token the
// registry never issued or already released.
var ErrUnknownToken = errors.New("unknown session token")

// session binds an opaque token to a player identity.
type session struct {
	Token    string
	PlayerID string
	Name     string
	Number   int
}

// ConnectionRegistry owns session tokens and player numbers. Tokens are
// unguessable and allow reconnecting to an identity; numbers are
// display-layer, stable, and reused only after permanent removal.
type ConnectionRegistry struct {
	mu       sync.Mutex
	log      *zap.Logger
	byToken  map[string]*session
	byPlayer map[string]*session
	numbers  map[int]bool
	grace    map[string]*time.Timer
	graceDur time.Duration

	// onExpire fires when a lobby grace timer runs out, on the timer
	// goroutine, after the session is already released.
	onExpire func(playerID string)
}

// NewConnectionRegistry creates an empty registry. graceDur is the lobby
// disconnect grace before a player is permanently dropped.
func NewConnectionRegistry(graceDur time.Duration, log *zap.Logger) *ConnectionRegistry {
	return &ConnectionRegistry{
		log:      log,
		byToken:  make(map[string]*session),
		byPlayer: make(map[string]*session),
		numbers:  make(map[int]bool),
		grace:    make(map[string]*time.Timer),
		graceDur: graceDur,
	}
}

// SetExpireFunc installs the permanent-removal callback.
func (r *ConnectionRegistry) SetExpireFunc(fn func(playerID string)) {
	r.mu.Lock()
	r.onExpire = fn
	r.mu.Unlock()
}

func newToken() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		panic(err) // the OS entropy source is gone; nothing sensible to do
	}
	return hex.EncodeToString(buf)
}

// NewPlayerID allocates a fresh opaque player id for joins that do not
// bring their own.
func NewPlayerID() string {
	return "player-" + newToken()[:12]
}

// Register creates a session for a joining player and returns the token
// and the lowest free 1-based number.
func (r *ConnectionRegistry) Register(playerID, name string) (string, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byPlayer[playerID]; exists {
		return "", 0, errors.New("player id already registered")
	}
	number := 1
	for r.numbers[number] {
		number++
	}
	r.numbers[number] = true
	s := &session{
		Token:    newToken(),
		PlayerID: playerID,
		Name:     name,
		Number:   number,
	}
	r.byToken[s.Token] = s
	r.byPlayer[playerID] = s
	return s.Token, number, nil
}

// Resolve maps a session token back to its player identity.
func (r *ConnectionRegistry) Resolve(token string) (playerID string, number int, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byToken[token]
	if !ok {
		return "", 0, ErrUnknownToken
	}
	return s.PlayerID, s.Number, nil
}

// Release permanently removes the player's session and frees the number.
func (r *ConnectionRegistry) Release(playerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.releaseLocked(playerID)
}

func (r *ConnectionRegistry) releaseLocked(playerID string) {
	s, ok := r.byPlayer[playerID]
	if !ok {
		return
	}
	if t, ok := r.grace[playerID]; ok {
		t.Stop()
		delete(r.grace, playerID)
	}
	delete(r.byToken, s.Token)
	delete(r.byPlayer, playerID)
	delete(r.numbers, s.Number)
}

// StartLobbyGrace arms the lobby disconnect timer. When it fires the
// session is released and onExpire is invoked.
func (r *ConnectionRegistry) StartLobbyGrace(playerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byPlayer[playerID]; !ok {
		return
	}
	if t, ok := r.grace[playerID]; ok {
		t.Stop()
	}
	r.grace[playerID] = time.AfterFunc(r.graceDur, func() {
		r.mu.Lock()
		_, still := r.grace[playerID]
		var fn func(string)
		if still {
			r.releaseLocked(playerID)
			fn = r.onExpire
		}
		r.mu.Unlock()
		if fn != nil {
			r.log.Info("lobby grace expired, removing player", zap.String("playerId", playerID))
			fn(playerID)
		}
	})
}

// CancelGrace disarms a pending lobby grace timer, if any.
func (r *ConnectionRegistry) CancelGrace(playerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.grace[playerID]; ok {
		t.Stop()
		delete(r.grace, playerID)
	}
}

// Reset drops every session, number and timer.
func (r *ConnectionRegistry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, t := range r.grace {
		t.Stop()
		delete(r.grace, id)
	}
	r.byToken = make(map[string]*session)
	r.byPlayer = make(map[string]*session)
	r.numbers = make(map[int]bool)
}

package game

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// GameState is the engine lifecycle state.
type GameState string

const (
	StateWaiting    GameState = "waiting"
	StatePreGame    GameState = "pre-game"
	StateCountdown  GameState = "countdown"
	StateActive     GameState = "active"
	StateRoundEnded GameState = "round-ended"
	StateFinished   GameState = "finished"
)

// Engine-level errors surfaced to callers as reason codes.
var (
	ErrWrongState    = errors.New("not allowed in current game state")
	ErrUnknownPlayer = errors.New("unknown player")
	ErrReadyDelay    = errors.New("ready input is disabled right now")
	ErrTeamsDisabled = errors.New("teams are not enabled")
)

// EngineConfig is the static engine tuning, loaded from the server config.
type EngineConfig struct {
	TickRate         time.Duration
	CountdownSeconds int
	GoDelay          time.Duration
	ReadyDelay       time.Duration
	DisconnectGrace  time.Duration
	MinPlayers       int
}

// DefaultEngineConfig returns the production defaults.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		TickRate:         100 * time.Millisecond,
		CountdownSeconds: 3,
		GoDelay:          time.Second,
		ReadyDelay:       3 * time.Second,
		DisconnectGrace:  10 * time.Second,
		MinPlayers:       2,
	}
}

// Settings are the admin-tunable game options, persisted in the settings
// blob between runs.
type Settings struct {
	Sensitivity                 string
	GameMode                    string
	Theme                       string
	RoundCount                  int
	RoundDurationMs             int64
	TargetScore                 int
	RespawnDelayMs              int64
	TeamsEnabled                bool
	TeamCount                   int
	DominationPointTarget       int
	DominationControlIntervalMs int64
	DominationRespawnMs         int64
	DominationBaseCount         int
}

// DefaultSettings returns the out-of-the-box game options.
func DefaultSettings() Settings {
	return Settings{
		Sensitivity:                 "normal",
		GameMode:                    ModeClassic,
		Theme:                       "mixed",
		RoundCount:                  3,
		RoundDurationMs:             90000,
		RespawnDelayMs:              5000,
		TeamsEnabled:                false,
		TeamCount:                   2,
		DominationPointTarget:       20,
		DominationControlIntervalMs: 5000,
		DominationRespawnMs:         10000,
		DominationBaseCount:         3,
	}
}

// Clamp forces every numeric option into its documented range.
func (s *Settings) Clamp() {
	clampInt(&s.RoundCount, 1, 10)
	clampI64(&s.RoundDurationMs, 30000, 300000)
	clampInt(&s.TeamCount, 2, 4)
	clampInt(&s.DominationPointTarget, 5, 100)
	clampI64(&s.DominationControlIntervalMs, 3000, 15000)
	clampI64(&s.DominationRespawnMs, 5000, 30000)
	clampInt(&s.DominationBaseCount, 1, 3)
}

func clampInt(v *int, lo, hi int) {
	if *v < lo {
		*v = lo
	}
	if *v > hi {
		*v = hi
	}
}

func clampI64(v *int64, lo, hi int64) {
	if *v < lo {
		*v = lo
	}
	if *v > hi {
		*v = hi
	}
}

// Engine is the authoritative game orchestrator. It owns the player set,
// the current mode, the lifecycle state machine and the tick loop. All
// state is guarded by one mutex: transport messages and ticks serialize
// on it, which gives the single-executor model the rules assume.
type Engine struct {
	mu    sync.Mutex
	log   *zap.Logger
	bus   *Bus
	rng   *rand.Rand
	nowFn func() time.Time

	cfg      EngineConfig
	settings Settings

	movement      MovementConfig
	savedMovement *MovementConfig

	state        GameState
	currentRound int
	totalRounds  int
	gameTime     int64
	mode         GameMode
	lastModeKey  string

	players map[string]*Player
	teams   *TeamRegistry
	bases   *BaseRegistry
	events  []*eventRuntime

	countdownSeconds   int
	countdownRemaining int64
	countdownAnnounced int
	inGoPhase          bool
	goRemaining        int64

	readyBlockedUntil time.Time

	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewEngine creates an engine in the waiting state. Call Run to start the
// tick loop, or drive it manually with Step in tests.
func NewEngine(cfg EngineConfig, log *zap.Logger) *Engine {
	if cfg.TickRate <= 0 {
		cfg.TickRate = 100 * time.Millisecond
	}
	return &Engine{
		log:      log,
		bus:      NewBus(),
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		nowFn:    time.Now,
		cfg:      cfg,
		settings: DefaultSettings(),
		movement: DefaultMovementConfig(),
		state:    StateWaiting,
		players:  make(map[string]*Player),
		bases:    NewBaseRegistry(DefaultSettings().DominationBaseCount),
		stopCh:   make(chan struct{}),
	}
}

// Bus returns the engine's event bus. Subscribers must only enqueue; the
// bus fires while the engine lock is held.
func (e *Engine) Bus() *Bus { return e.bus }

// SeedRNG pins the engine RNG, used by tests for deterministic role and
// phase draws.
func (e *Engine) SeedRNG(seed int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rng = rand.New(rand.NewSource(seed))
}

// SetNowFunc overrides the wall clock, used by tests for grace timing.
func (e *Engine) SetNowFunc(fn func() time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nowFn = fn
}

// Run drives the tick loop until Shutdown. One tick must finish before
// the next starts; gameTime advances by the nominal tick rate regardless
// of scheduling jitter so replays stay deterministic.
func (e *Engine) Run() {
	ticker := time.NewTicker(e.cfg.TickRate)
	defer ticker.Stop()
	dt := e.cfg.TickRate.Milliseconds()
	for {
		select {
		case <-e.stopCh:
			return
		case <-ticker.C:
			e.mu.Lock()
			e.advance(dt)
			e.mu.Unlock()
		}
	}
}

// Shutdown stops the tick loop. Idempotent; safe before Run.
func (e *Engine) Shutdown() {
	e.stopOnce.Do(func() { close(e.stopCh) })
}

// Step advances game time by dt milliseconds, for tests.
func (e *Engine) Step(dt int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.advance(dt)
}

// StepN runs n ticks of dt milliseconds each.
func (e *Engine) StepN(n int, dt int64) {
	for i := 0; i < n; i++ {
		e.Step(dt)
	}
}

// ── State accessors ─────────────────────────────────────────────────

// State returns the current lifecycle state.
func (e *Engine) State() GameState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// GameTime returns milliseconds since the current round started.
func (e *Engine) GameTime() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.gameTime
}

// Settings returns a copy of the current game options.
func (e *Engine) Settings() Settings {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.settings
}

// Movement returns a copy of the live movement config.
func (e *Engine) Movement() MovementConfig {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.movement
}

// SetMovement replaces the movement config permanently (settings change).
func (e *Engine) SetMovement(mc MovementConfig) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.movement = mc
	e.savedMovement = nil
}

// ApplySettings stores new game options. Team structure only rebuilds
// outside a running game.
func (e *Engine) ApplySettings(s Settings) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s.Clamp()
	e.settings = s
	e.bases.SetLimit(s.DominationBaseCount)
	if e.state != StateWaiting {
		return
	}
	if s.TeamsEnabled {
		e.rebuildTeamsLocked(s.TeamCount)
	} else {
		e.teams = nil
	}
}

func (e *Engine) rebuildTeamsLocked(count int) {
	e.teams = NewTeamRegistry(count)
	for _, p := range e.playersByNumberLocked() {
		e.teams.Assign(p.ID)
	}
	e.publishTeamUpdateLocked()
}

// ensureTeamsLocked guarantees a team registry exists (Domination launch
// auto-enables teams).
func (e *Engine) ensureTeamsLocked() {
	if e.teams == nil {
		e.settings.TeamsEnabled = true
		e.rebuildTeamsLocked(e.settings.TeamCount)
	}
}

// ── Player management ───────────────────────────────────────────────

// AddPlayer adds a lobby member. The caller (connection registry) owns
// number allocation.
func (e *Engine) AddPlayer(id, name string, number int) (*Player, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.players[id]; exists {
		return nil, fmt.Errorf("player %q already joined", id)
	}
	p := newPlayer(id, name, number, e)
	e.players[id] = p
	if e.teams != nil {
		e.teams.Assign(id)
		e.publishTeamUpdateLocked()
	}
	e.publishLobbyUpdateLocked()
	e.log.Info("player joined",
		zap.String("playerId", id),
		zap.String("name", name),
		zap.Int("number", number))
	return p, nil
}

// RemovePlayer permanently drops a player (kick or expired lobby grace).
func (e *Engine) RemovePlayer(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.players[id]; !ok {
		return
	}
	delete(e.players, id)
	if e.teams != nil {
		e.teams.Remove(id)
		e.publishTeamUpdateLocked()
	}
	e.publishLobbyUpdateLocked()
	e.log.Info("player removed", zap.String("playerId", id))
}

// Player returns the player with the given id.
func (e *Engine) Player(id string) (*Player, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, ok := e.players[id]
	return p, ok
}

// PlayerCount returns the lobby size, connected or not.
func (e *Engine) PlayerCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.players)
}

// MarkDisconnected records an in-game disconnect. The player stays in
// play until the grace period runs out.
func (e *Engine) MarkDisconnected(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if p, ok := e.players[id]; ok {
		p.DisconnectedAt = e.nowFn()
		e.publishLobbyUpdateLocked()
	}
}

// MarkReconnected rebinds a returning player.
func (e *Engine) MarkReconnected(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if p, ok := e.players[id]; ok {
		p.DisconnectedAt = time.Time{}
		e.publishLobbyUpdateLocked()
	}
}

func (e *Engine) playersByNumberLocked() []*Player {
	out := make([]*Player, 0, len(e.players))
	for _, p := range e.players {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out
}

// playersInTickOrderLocked sorts by role priority descending, number
// ascending, so high-priority roles act first each tick.
func (e *Engine) playersInTickOrderLocked() []*Player {
	out := e.playersByNumberLocked()
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Role.Meta().Priority > out[j].Role.Meta().Priority
	})
	return out
}

func (e *Engine) connectedCountLocked() int {
	n := 0
	for _, p := range e.players {
		if p.IsConnected() {
			n++
		}
	}
	return n
}

// TeamOf returns the player's team id when teams are enabled.
func (e *Engine) TeamOf(id string) (int, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.teams == nil {
		return 0, false
	}
	return e.teams.TeamOf(id)
}

// rolePayloadLocked builds the role:assigned / role:updated payload for
// one player. Caller holds the engine lock.
func (e *Engine) rolePayloadLocked(p *Player) map[string]any {
	meta := p.Role.Meta()
	data := map[string]any{
		"name":        string(p.Role),
		"displayName": meta.DisplayName,
		"description": meta.Description,
		"difficulty":  meta.Difficulty,
	}
	if p.TargetPlayerID != "" {
		data["targetName"] = p.TargetPlayerName
		if t, ok := e.players[p.TargetPlayerID]; ok {
			data["targetNumber"] = t.Number
		}
	}
	return data
}

// publishRoleUpdate re-announces a player's role after its live info
// changed mid-round. Called from role hooks with the engine lock held.
func (e *Engine) publishRoleUpdate(p *Player) {
	e.bus.Publish(Event{Topic: TopicRoleUpdated, TargetID: p.ID, Data: e.rolePayloadLocked(p)})
}

// effectivelyAlivePlayersLocked returns players who are alive and either
// connected or still inside the disconnect grace. A player whose phone
// left the building stops holding up the round. Caller holds the engine
// lock; mode hooks run inside the tick and qualify.
func (e *Engine) effectivelyAlivePlayersLocked() []*Player {
	now := e.nowFn()
	out := make([]*Player, 0, len(e.players))
	for _, p := range e.playersByNumberLocked() {
		if p.Alive && !p.IsDisconnectedBeyondGrace(now, e.cfg.DisconnectGrace) {
			out = append(out, p)
		}
	}
	return out
}

// ── Input handling ──────────────────────────────────────────────────

// HandleMovement feeds one accelerometer sample. Samples outside the
// active state are dropped silently; non-finite samples are rejected.
func (e *Engine) HandleMovement(id string, sample AccelSample) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !sample.IsFinite() {
		return fmt.Errorf("movement sample not finite")
	}
	if e.state != StateActive {
		return nil
	}
	p, ok := e.players[id]
	if !ok {
		return ErrUnknownPlayer
	}
	p.UpdateMovement(sample, e.gameTime)
	return nil
}

// UseAbility runs the player's role ability. Only valid while active.
func (e *Engine) UseAbility(id string) AbilityResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateActive {
		return AbilityResult{Success: false, Reason: "not_active"}
	}
	p, ok := e.players[id]
	if !ok {
		return AbilityResult{Success: false, Reason: "unknown_player"}
	}
	return p.UseAbility(e.gameTime)
}

// HandleReady toggles the caller's per-phase ready flag. What "ready"
// means depends on the state: pre-game and round-ended ready-up drive the
// next countdown, finished ready-up drives the auto-relaunch.
func (e *Engine) HandleReady(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, ok := e.players[id]
	if !ok {
		return ErrUnknownPlayer
	}
	switch e.state {
	case StateWaiting:
		p.LobbyReady = !p.LobbyReady
		p.Ready = p.LobbyReady
		e.publishLobbyUpdateLocked()
		return nil
	case StatePreGame:
		p.Ready = !p.Ready
		e.publishReadyUpdateLocked()
		if e.allConnectedReadyLocked() && e.connectedCountLocked() >= 2 {
			e.startCountdownLocked()
		}
		return nil
	case StateRoundEnded:
		if e.nowFn().Before(e.readyBlockedUntil) {
			return ErrReadyDelay
		}
		p.Ready = !p.Ready
		e.publishReadyUpdateLocked()
		if e.allConnectedReadyLocked() {
			e.startCountdownLocked()
		}
		return nil
	case StateFinished:
		p.LobbyReady = !p.LobbyReady
		e.publishReadyUpdateLocked()
		if e.allConnectedLobbyReadyLocked() && e.connectedCountLocked() >= 2 {
			if err := e.launchLocked(e.lastModeKey, 0); err != nil {
				e.log.Error("auto-relaunch failed", zap.Error(err))
				return err
			}
		}
		return nil
	}
	return ErrWrongState
}

func (e *Engine) allConnectedReadyLocked() bool {
	any := false
	for _, p := range e.players {
		if !p.IsConnected() {
			continue
		}
		any = true
		if !p.Ready {
			return false
		}
	}
	return any
}

func (e *Engine) allConnectedLobbyReadyLocked() bool {
	any := false
	for _, p := range e.players {
		if !p.IsConnected() {
			continue
		}
		any = true
		if !p.LobbyReady {
			return false
		}
	}
	return any
}

// SwitchTeam cycles the player to the next team. Lobby only.
func (e *Engine) SwitchTeam(id string) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateWaiting && e.state != StatePreGame {
		return 0, ErrWrongState
	}
	if e.teams == nil {
		return 0, ErrTeamsDisabled
	}
	if _, ok := e.players[id]; !ok {
		return 0, ErrUnknownPlayer
	}
	teamID := e.teams.Cycle(id)
	e.publishTeamUpdateLocked()
	return teamID, nil
}

// ShuffleTeams redistributes everyone randomly. Lobby only.
func (e *Engine) ShuffleTeams() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateWaiting && e.state != StatePreGame {
		return ErrWrongState
	}
	if e.teams == nil {
		return ErrTeamsDisabled
	}
	ids := make([]string, 0, len(e.players))
	for id := range e.players {
		ids = append(ids, id)
	}
	e.teams.Shuffle(ids, e.rng)
	e.publishTeamUpdateLocked()
	return nil
}

// ── Bases ───────────────────────────────────────────────────────────

// RegisterBase adds or reconnects a base endpoint.
func (e *Engine) RegisterBase(baseID string) (*Base, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	b, reconnected, err := e.bases.Register(baseID, e.gameTime, e.controlIntervalLocked())
	if err != nil {
		return nil, false, err
	}
	e.publishBaseStatusLocked()
	return b, reconnected, nil
}

// SetBaseConnected flips a base's transport flag.
func (e *Engine) SetBaseConnected(baseID string, connected bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.bases.SetConnected(baseID, connected, e.gameTime, e.controlIntervalLocked())
	e.publishBaseStatusLocked()
}

// BaseTap cycles a base's ownership. Active Domination rounds only.
func (e *Engine) BaseTap(baseID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateActive || e.mode == nil {
		return ErrWrongState
	}
	return e.mode.OnBaseTap(e, baseID, e.gameTime)
}

func (e *Engine) controlIntervalLocked() int64 {
	if dom, ok := e.mode.(*DominationMode); ok {
		return dom.ControlIntervalMs()
	}
	return e.settings.DominationControlIntervalMs
}

func (e *Engine) publishBaseStatusLocked() {
	e.bus.Publish(Event{
		Topic: TopicBaseStatus,
		Data:  map[string]any{"bases": e.bases.Snapshot(e.gameTime, e.controlIntervalLocked())},
	})
}

// ── Lifecycle transitions ───────────────────────────────────────────

// Launch starts a game: waiting (or finished) to pre-game.
func (e *Engine) Launch(modeKey string, countdownSeconds int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.launchLocked(modeKey, countdownSeconds)
}

func (e *Engine) launchLocked(modeKey string, countdownSeconds int) error {
	if e.state != StateWaiting && e.state != StateFinished {
		return ErrWrongState
	}
	mode, err := newMode(modeKey, e)
	if err != nil {
		return err
	}
	meta := mode.Meta()
	min := meta.MinPlayers
	if min < e.cfg.MinPlayers {
		min = e.cfg.MinPlayers
	}
	if e.connectedCountLocked() < min {
		return fmt.Errorf("need at least %d players to start", min)
	}
	if meta.TeamMode {
		e.ensureTeamsLocked()
	}

	e.mode = mode
	e.lastModeKey = modeKey
	e.totalRounds = meta.RoundCount
	e.currentRound = 0
	e.gameTime = 0
	e.countdownSeconds = countdownSeconds
	if e.countdownSeconds <= 0 {
		e.countdownSeconds = e.cfg.CountdownSeconds
	}
	for _, p := range e.players {
		p.Ready = false
		p.LobbyReady = false
		p.Points = 0
		p.TotalPoints = 0
		p.DeathCount = 0
	}
	// Snapshot the movement config; game end restores it no matter what
	// events or presets did mid-game.
	saved := e.movement
	e.savedMovement = &saved

	e.state = StatePreGame
	e.safeCall("mode.onModeSelected", func() { e.mode.OnModeSelected(e) })
	e.events = e.eventsForModeLocked(modeKey)

	e.bus.Publish(Event{Topic: TopicGameStart, Data: map[string]any{
		"mode":        modeKey,
		"totalRounds": e.totalRounds,
		"sensitivity": e.settings.Sensitivity,
	}})
	e.publishReadyUpdateLocked()
	e.log.Info("game launched",
		zap.String("mode", modeKey),
		zap.Int("rounds", e.totalRounds),
		zap.Int("players", e.connectedCountLocked()))
	return nil
}

func (e *Engine) eventsForModeLocked(modeKey string) []*eventRuntime {
	switch modeKey {
	case ModeClassic, ModeRoleBased:
		return []*eventRuntime{{ev: NewSpeedShift(e.rng)}}
	}
	return nil
}

// Proceed moves pre-game to countdown on admin request.
func (e *Engine) Proceed() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StatePreGame {
		return ErrWrongState
	}
	e.startCountdownLocked()
	return nil
}

// StartNextRound moves round-ended to countdown on admin request.
func (e *Engine) StartNextRound() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateRoundEnded {
		return ErrWrongState
	}
	e.startCountdownLocked()
	return nil
}

// Stop aborts everything and returns to the lobby. Membership survives;
// respawn timers, countdowns and mode state do not.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = StateWaiting
	e.mode = nil
	e.events = nil
	e.currentRound = 0
	e.totalRounds = 0
	e.gameTime = 0
	e.inGoPhase = false
	e.restoreMovementLocked()
	for _, p := range e.players {
		p.resetForRound()
		p.Alive = false
		p.Ready = false
		p.LobbyReady = false
		p.TotalPoints = 0
	}
	e.bus.Publish(Event{Topic: TopicGameStopped, Data: map[string]any{}})
	e.publishLobbyUpdateLocked()
	e.log.Info("game stopped")
}

func (e *Engine) startCountdownLocked() {
	e.state = StateCountdown
	e.countdownRemaining = int64(e.countdownSeconds) * 1000
	e.countdownAnnounced = e.countdownSeconds
	e.inGoPhase = false
	for _, p := range e.players {
		p.Ready = false
	}
	e.bus.Publish(Event{Topic: TopicGameCountdown, Data: map[string]any{
		"phase":            "countdown",
		"secondsRemaining": e.countdownSeconds,
	}})
}

func (e *Engine) restoreMovementLocked() {
	if e.savedMovement != nil {
		e.movement = *e.savedMovement
		e.savedMovement = nil
	}
}

// ── Tick processing ─────────────────────────────────────────────────

func (e *Engine) advance(dt int64) {
	switch e.state {
	case StateCountdown:
		e.advanceCountdownLocked(dt)
	case StateActive:
		e.advanceActiveLocked(dt)
	}
}

func (e *Engine) advanceCountdownLocked(dt int64) {
	if e.inGoPhase {
		e.goRemaining -= dt
		if e.goRemaining <= 0 {
			e.beginRoundLocked()
		}
		return
	}
	e.countdownRemaining -= dt
	if e.countdownRemaining <= 0 {
		e.inGoPhase = true
		e.goRemaining = e.cfg.GoDelay.Milliseconds()
		e.bus.Publish(Event{Topic: TopicGameCountdown, Data: map[string]any{
			"phase":            "go",
			"secondsRemaining": 0,
		}})
		return
	}
	secs := int((e.countdownRemaining + 999) / 1000)
	if secs != e.countdownAnnounced {
		e.countdownAnnounced = secs
		e.bus.Publish(Event{Topic: TopicGameCountdown, Data: map[string]any{
			"phase":            "countdown",
			"secondsRemaining": secs,
		}})
	}
}

func (e *Engine) beginRoundLocked() {
	e.currentRound++
	e.gameTime = 0
	players := e.playersByNumberLocked()
	for _, p := range players {
		p.resetForRound()
	}

	if e.mode.Meta().UseRoles {
		pool := e.mode.RolePool(len(players))
		assignRoles(players, pool, e.rng, 0)
		for _, p := range players {
			e.bus.Publish(Event{Topic: TopicRoleAssigned, TargetID: p.ID, Data: e.rolePayloadLocked(p)})
		}
	}

	e.safeCall("mode.onRoundStart", func() { e.mode.OnRoundStart(e, 0) })
	for _, rt := range e.events {
		rt.active = false
		rt.ev.OnRoundStart(e, 0)
	}

	e.state = StateActive
	e.inGoPhase = false
	e.bus.Publish(Event{Topic: TopicRoundStart, Data: map[string]any{
		"roundNumber": e.currentRound,
		"totalRounds": e.totalRounds,
		"gameTime":    int64(0),
	}})
	e.log.Info("round started",
		zap.Int("round", e.currentRound),
		zap.Int("totalRounds", e.totalRounds))
}

func (e *Engine) advanceActiveLocked(dt int64) {
	if e.mode == nil {
		e.log.Error("active tick with no game mode, stopping")
		e.state = StateWaiting
		return
	}
	e.gameTime += dt
	now := e.gameTime

	e.safeCall("mode.onTick", func() { e.mode.OnTick(e, now, dt) })

	for _, rt := range e.events {
		rt.ev.OnTick(e, now, dt)
		if !rt.active {
			if rt.ev.ShouldActivate(e, now) {
				rt.active = true
				rt.ev.OnStart(e, now)
			}
		} else if rt.ev.ShouldDeactivate(e, now) {
			rt.active = false
			rt.ev.OnEnd(e, now)
		}
	}

	for _, p := range e.playersInTickOrderLocked() {
		if !p.Alive {
			continue
		}
		player := p
		e.safeCall("player.tick", func() { player.tick(now, dt) })
	}

	res := e.checkWinLocked(now)
	if res.RoundEnded || res.GameEnded {
		e.finishRoundLocked(res, now)
		return
	}
	e.publishTickLocked(now)
}

func (e *Engine) checkWinLocked(now int64) (res WinResult) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("checkWinCondition panic", zap.Any("panic", r))
			res = WinResult{}
		}
	}()
	return e.mode.CheckWinCondition(e, now)
}

func (e *Engine) finishRoundLocked(res WinResult, now int64) {
	e.safeCall("mode.onRoundEnd", func() { e.mode.OnRoundEnd(e, now) })
	for _, rt := range e.events {
		rt.ev.OnRoundEnd(e, now)
		rt.active = false
	}

	for _, p := range e.players {
		p.TotalPoints += p.Points
		p.Points = 0
	}

	scores := e.mode.CalculateFinalScores(e)
	teamScores := e.mode.TeamScores(e)

	var winnerID any
	if res.WinnerID != "" {
		winnerID = res.WinnerID
	}
	e.bus.Publish(Event{Topic: TopicRoundEnd, Data: map[string]any{
		"roundNumber": e.currentRound,
		"scores":      scores,
		"gameTime":    now,
		"winnerId":    winnerID,
		"teamScores":  teamScores,
	}})

	if res.GameEnded {
		e.state = StateFinished
		e.safeCall("mode.onGameEnd", func() { e.mode.OnGameEnd(e) })
		e.restoreMovementLocked()
		e.bus.Publish(Event{Topic: TopicGameEnd, Data: map[string]any{
			"winner":      winnerFromScores(scores),
			"scores":      scores,
			"totalRounds": e.totalRounds,
			"teamScores":  teamScores,
		}})
		for _, p := range e.players {
			p.LobbyReady = false
		}
		e.log.Info("game finished", zap.Int("rounds", e.currentRound))
		return
	}

	e.state = StateRoundEnded
	e.readyBlockedUntil = e.nowFn().Add(e.cfg.ReadyDelay)
	for _, p := range e.players {
		p.Ready = false
	}
	e.bus.Publish(Event{Topic: TopicReadyEnabled, Data: map[string]any{"enabled": false}})
	time.AfterFunc(e.cfg.ReadyDelay, func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if e.state == StateRoundEnded {
			e.bus.Publish(Event{Topic: TopicReadyEnabled, Data: map[string]any{"enabled": true}})
		}
	})
	e.log.Info("round ended", zap.Int("round", e.currentRound))
}

// winnerFromScores picks the sole rank-1 player, or nil on a shared top.
func winnerFromScores(scores []ScoreEntry) any {
	var winner any
	top := 0
	for _, s := range scores {
		if s.Rank == 1 {
			top++
			winner = s.PlayerID
		}
	}
	if top != 1 {
		return nil
	}
	return winner
}

// handlePlayerDeath is called synchronously from Player.die with the
// engine lock held. Observers see the victim already dead.
func (e *Engine) handlePlayerDeath(p *Player, now int64) {
	e.bus.Publish(Event{Topic: TopicPlayerDeath, Data: map[string]any{
		"victimId":     p.ID,
		"victimName":   p.Name,
		"victimNumber": p.Number,
		"gameTime":     now,
	}})

	for _, o := range e.playersInTickOrderLocked() {
		if o.ID == p.ID || !o.Alive {
			continue
		}
		if h := roleTable[o.Role].onPlayerDeath; h != nil {
			observer := o
			e.safeCall("role.onPlayerDeath", func() { h(observer, p, now) })
		}
	}

	if e.mode != nil {
		e.safeCall("mode.onPlayerDeath", func() { e.mode.OnPlayerDeath(e, p, now) })
	}
	for _, rt := range e.events {
		rt.ev.OnPlayerDeath(e, p, now)
	}
}

// publishModeEvent emits a mode:event wrapper for dynamic game events.
func (e *Engine) publishModeEvent(eventType string, data map[string]any) {
	modeName := ""
	if e.mode != nil {
		modeName = e.mode.Key()
	}
	e.bus.Publish(Event{Topic: TopicModeEvent, Data: map[string]any{
		"modeName":  modeName,
		"eventType": eventType,
		"data":      data,
	}})
}

// safeCall guards a hook so one misbehaving role, effect or mode cannot
// take the whole game down mid-round.
func (e *Engine) safeCall(name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("recovered from hook panic",
				zap.String("hook", name),
				zap.Any("panic", r))
		}
	}()
	fn()
}

// ── Snapshots & fan-out payloads ────────────────────────────────────

// PlayerSnapshot is the wire form of one player in game:tick.
type PlayerSnapshot struct {
	ID                 string           `json:"id"`
	Name               string           `json:"name"`
	Number             int              `json:"number"`
	IsAlive            bool             `json:"isAlive"`
	AccumulatedDamage  float64          `json:"accumulatedDamage"`
	Points             int              `json:"points"`
	TotalPoints        int              `json:"totalPoints"`
	Toughness          float64          `json:"toughness"`
	DeathCount         int              `json:"deathCount"`
	TeamID             *int             `json:"teamId"`
	IsDisconnected     bool             `json:"isDisconnected"`
	GraceTimeRemaining *int64           `json:"graceTimeRemaining"`
	StatusEffects      []EffectSnapshot `json:"statusEffects"`
}

// TickSnapshot is the per-tick authoritative state fanned out to clients.
type TickSnapshot struct {
	GameTime           int64            `json:"gameTime"`
	RoundTimeRemaining *int64           `json:"roundTimeRemaining"`
	Players            []PlayerSnapshot `json:"players"`
}

// StateSnapshot extends the tick payload with lifecycle info for the
// admin surface and reconnect acknowledgements.
type StateSnapshot struct {
	GameState    GameState      `json:"gameState"`
	Mode         *string        `json:"mode"`
	CurrentRound int            `json:"currentRound"`
	TotalRounds  int            `json:"totalRounds"`
	TickSnapshot
	TeamScores map[int]int `json:"teamScores,omitempty"`
}

// LobbyEntry is one row of the lobby listing.
type LobbyEntry struct {
	ID          string `json:"id"`
	Number      int    `json:"number"`
	Name        string `json:"name"`
	IsConnected bool   `json:"isConnected"`
	IsReady     bool   `json:"isReady"`
	TeamID      *int   `json:"teamId"`
}

func (e *Engine) playerSnapshotLocked(p *Player) PlayerSnapshot {
	snap := PlayerSnapshot{
		ID:                p.ID,
		Name:              p.Name,
		Number:            p.Number,
		IsAlive:           p.Alive,
		AccumulatedDamage: p.AccumulatedDamage,
		Points:            p.Points,
		TotalPoints:       p.TotalPoints,
		Toughness:         p.Toughness,
		DeathCount:        p.DeathCount,
		IsDisconnected:    !p.IsConnected(),
		StatusEffects:     p.EffectSnapshots(),
	}
	if e.teams != nil {
		if teamID, ok := e.teams.TeamOf(p.ID); ok {
			v := teamID
			snap.TeamID = &v
		}
	}
	if !p.IsConnected() {
		remaining := e.cfg.DisconnectGrace.Milliseconds() - e.nowFn().Sub(p.DisconnectedAt).Milliseconds()
		if remaining < 0 {
			remaining = 0
		}
		snap.GraceTimeRemaining = &remaining
	}
	return snap
}

func (e *Engine) tickSnapshotLocked(now int64) TickSnapshot {
	snap := TickSnapshot{GameTime: now}
	if e.mode != nil {
		if duration := e.mode.Meta().RoundDurationMs; duration > 0 {
			remaining := duration - now
			if remaining < 0 {
				remaining = 0
			}
			snap.RoundTimeRemaining = &remaining
		}
	}
	for _, p := range e.playersByNumberLocked() {
		snap.Players = append(snap.Players, e.playerSnapshotLocked(p))
	}
	return snap
}

func (e *Engine) publishTickLocked(now int64) {
	e.bus.Publish(Event{Topic: TopicGameTick, Data: e.tickSnapshotLocked(now)})
}

// Snapshot returns the full state view for the admin surface and
// reconnect payloads.
func (e *Engine) Snapshot() StateSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	snap := StateSnapshot{
		GameState:    e.state,
		CurrentRound: e.currentRound,
		TotalRounds:  e.totalRounds,
		TickSnapshot: e.tickSnapshotLocked(e.gameTime),
	}
	if e.mode != nil {
		key := e.mode.Key()
		snap.Mode = &key
		snap.TeamScores = e.mode.TeamScores(e)
	}
	return snap
}

// LobbySnapshot lists the lobby for lobby:update and the admin surface.
func (e *Engine) LobbySnapshot() []LobbyEntry {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lobbySnapshotLocked()
}

func (e *Engine) lobbySnapshotLocked() []LobbyEntry {
	out := make([]LobbyEntry, 0, len(e.players))
	for _, p := range e.playersByNumberLocked() {
		entry := LobbyEntry{
			ID:          p.ID,
			Number:      p.Number,
			Name:        p.Name,
			IsConnected: p.IsConnected(),
			IsReady:     p.Ready || p.LobbyReady,
		}
		if e.teams != nil {
			if teamID, ok := e.teams.TeamOf(p.ID); ok {
				v := teamID
				entry.TeamID = &v
			}
		}
		out = append(out, entry)
	}
	return out
}

func (e *Engine) publishLobbyUpdateLocked() {
	e.bus.Publish(Event{Topic: TopicLobbyUpdate, Data: map[string]any{
		"players": e.lobbySnapshotLocked(),
	}})
}

func (e *Engine) publishTeamUpdateLocked() {
	if e.teams == nil {
		return
	}
	e.bus.Publish(Event{Topic: TopicTeamUpdate, Data: map[string]any{
		"teams": e.teams.Assignment(),
	}})
}

func (e *Engine) publishReadyUpdateLocked() {
	ready := 0
	total := 0
	for _, p := range e.players {
		if !p.IsConnected() {
			continue
		}
		total++
		if (e.state == StateFinished && p.LobbyReady) || (e.state != StateFinished && p.Ready) {
			ready++
		}
	}
	e.bus.Publish(Event{Topic: TopicReadyUpdate, Data: map[string]any{
		"ready": ready,
		"total": total,
	}})
}

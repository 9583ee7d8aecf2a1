package server

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/SimoneRocutto/role-based-joust/config"
	"github.com/SimoneRocutto/role-based-joust/game"
)

// isValidOrigin checks if the origin is allowed to connect. Same-origin
// and localhost are accepted; phones on the LAN usually send no Origin.
func isValidOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	originURL, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if r.Host == originURL.Host {
		return true
	}
	if strings.HasPrefix(originURL.Host, "localhost:") ||
		strings.HasPrefix(originURL.Host, "127.0.0.1:") ||
		originURL.Host == "localhost" ||
		originURL.Host == "127.0.0.1" {
		return true
	}
	return false
}

var upgrader = websocket.Upgrader{
	CheckOrigin:       isValidOrigin,
	EnableCompression: true,
}

// Client→server message types.
const (
	MsgTypeJoin         = "player:join"
	MsgTypeReconnect    = "player:reconnect"
	MsgTypeMove         = "player:move"
	MsgTypeReady        = "player:ready"
	MsgTypeTap          = "player:tap"
	MsgTypeTeamSwitch   = "team:switch"
	MsgTypeBaseRegister = "base:register"
	MsgTypeBaseTap      = "base:tap"
	MsgTypePing         = "ping"
)

// Server→client message types not derived from bus topics.
const (
	MsgTypeJoined         = "player:joined"
	MsgTypeReconnected    = "player:reconnected"
	MsgTypeTapResult      = "player:tap:result"
	MsgTypeBaseRegistered = "base:registered"
	MsgTypePong           = "pong"
	MsgTypeError          = "error"
)

// ClientMessage is the inbound JSON envelope.
type ClientMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// ServerMessage is the outbound JSON envelope.
type ServerMessage struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Client is one websocket connection: a player phone, a base phone, or a
// spectator display that never joins.
type Client struct {
	ID       int
	PlayerID string // bound after join/reconnect
	BaseID   string // bound after base:register
	conn     *websocket.Conn
	send     chan ServerMessage
	server   *Server
}

// Server manages the engine and the client connections.
type Server struct {
	log      *zap.Logger
	engine   *game.Engine
	registry *ConnectionRegistry
	settings *config.SettingsStore

	mu         sync.RWMutex
	clients    map[int]*Client
	register   chan *Client
	unregister chan *Client
	broadcast  chan ServerMessage
	nextID     int

	done     chan struct{}
	doneOnce sync.Once
}

// NewServer wires the engine, the session registry and the settings
// store together and subscribes to the engine's event bus.
func NewServer(engine *game.Engine, registry *ConnectionRegistry, settings *config.SettingsStore, log *zap.Logger) *Server {
	s := &Server{
		log:        log,
		engine:     engine,
		registry:   registry,
		settings:   settings,
		clients:    make(map[int]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan ServerMessage, 256),
		done:       make(chan struct{}),
	}
	registry.SetExpireFunc(func(playerID string) {
		s.engine.RemovePlayer(playerID)
	})
	engine.Bus().Subscribe(s.onEngineEvent)
	return s
}

// Run drives the engine tick loop and the client event loop until
// Shutdown.
func (s *Server) Run() {
	go s.engine.Run()

	for {
		select {
		case <-s.done:
			return

		case client := <-s.register:
			s.mu.Lock()
			s.clients[client.ID] = client
			s.mu.Unlock()
			s.log.Debug("client connected", zap.Int("clientId", client.ID))

		case client := <-s.unregister:
			s.mu.Lock()
			if _, ok := s.clients[client.ID]; ok {
				delete(s.clients, client.ID)
				close(client.send)
			}
			s.mu.Unlock()
			s.handleDisconnect(client)
			s.log.Debug("client disconnected", zap.Int("clientId", client.ID))

		case message := <-s.broadcast:
			s.mu.RLock()
			for _, client := range s.clients {
				select {
				case client.send <- message:
				default:
					s.log.Warn("client send buffer full, dropping message",
						zap.Int("clientId", client.ID),
						zap.String("type", message.Type))
				}
			}
			s.mu.RUnlock()
		}
	}
}

// Shutdown stops the client loop and the engine. Idempotent.
func (s *Server) Shutdown() {
	s.doneOnce.Do(func() { close(s.done) })
	s.engine.Shutdown()
}

// handleDisconnect runs the per-identity disconnect policy after the
// transport is gone.
func (s *Server) handleDisconnect(client *Client) {
	if client.BaseID != "" {
		s.engine.SetBaseConnected(client.BaseID, false)
		return
	}
	if client.PlayerID == "" {
		return
	}
	// Another connection may have taken over the identity via reconnect.
	if s.transportFor(client.PlayerID) != nil {
		return
	}
	if s.engine.State() == game.StateWaiting {
		s.engine.MarkDisconnected(client.PlayerID)
		s.registry.StartLobbyGrace(client.PlayerID)
		return
	}
	// Mid-game: the engine's grace window keeps the player in play.
	s.engine.MarkDisconnected(client.PlayerID)
}

// transportFor returns the live client bound to playerID, or nil.
func (s *Server) transportFor(playerID string) *Client {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.clients {
		if c.PlayerID == playerID {
			return c
		}
	}
	return nil
}

// onEngineEvent translates a bus event into wire fan-out. The bus fires
// while the engine lock is held, so this must only enqueue.
func (s *Server) onEngineEvent(ev game.Event) {
	msg := ServerMessage{Type: ev.Topic, Data: ev.Data}
	if ev.TargetID != "" {
		s.sendToPlayer(ev.TargetID, msg)
		return
	}
	select {
	case s.broadcast <- msg:
	default:
		s.log.Warn("broadcast queue full, dropping event", zap.String("topic", ev.Topic))
	}
}

// sendToPlayer delivers a message to the one transport bound to the
// player, dropping it if none is.
func (s *Server) sendToPlayer(playerID string, msg ServerMessage) {
	c := s.transportFor(playerID)
	if c == nil {
		return
	}
	select {
	case c.send <- msg:
	default:
		s.log.Warn("client send buffer full, dropping targeted message",
			zap.String("playerId", playerID),
			zap.String("type", msg.Type))
	}
}

// HandleWebSocket upgrades an HTTP request and starts the pumps.
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	s.mu.Lock()
	clientID := s.nextID
	s.nextID++
	s.mu.Unlock()

	client := &Client{
		ID:     clientID,
		conn:   conn,
		send:   make(chan ServerMessage, 256),
		server: s,
	}

	s.register <- client

	go client.writePump()
	go client.readPump()
}

// readPump handles incoming messages from the client.
func (c *Client) readPump() {
	defer func() {
		c.server.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		var msg ClientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.server.log.Debug("websocket read error", zap.Error(err))
			}
			break
		}
		c.handleMessage(msg)
	}
}

// writePump sends messages and keepalive pings to the client.
func (c *Client) writePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// reply queues a message on this client's own transport.
func (c *Client) reply(msg ServerMessage) {
	select {
	case c.send <- msg:
	default:
		c.server.log.Warn("client send buffer full, dropping reply",
			zap.Int("clientId", c.ID),
			zap.String("type", msg.Type))
	}
}

// replyError surfaces a rejected request to the sender.
func (c *Client) replyError(text string) {
	c.reply(ServerMessage{Type: MsgTypeError, Data: map[string]any{"error": text}})
}

// handleMessage processes a message from the client.
func (c *Client) handleMessage(msg ClientMessage) {
	// Recover from any panic to keep one bad message from taking the
	// connection down.
	defer func() {
		if r := recover(); r != nil {
			c.server.log.Error("panic in message handler",
				zap.Int("clientId", c.ID),
				zap.String("type", msg.Type),
				zap.Any("panic", r))
		}
	}()

	switch msg.Type {
	case MsgTypeJoin:
		c.handleJoin(msg.Data)
	case MsgTypeReconnect:
		c.handleReconnect(msg.Data)
	case MsgTypeMove:
		c.handleMove(msg.Data)
	case MsgTypeReady:
		c.handleReady(msg.Data)
	case MsgTypeTap:
		c.handleTap(msg.Data)
	case MsgTypeTeamSwitch:
		c.handleTeamSwitch(msg.Data)
	case MsgTypeBaseRegister:
		c.handleBaseRegister(msg.Data)
	case MsgTypeBaseTap:
		c.handleBaseTap(msg.Data)
	case MsgTypePing:
		c.reply(ServerMessage{Type: MsgTypePong, Data: map[string]any{}})
	default:
		c.server.log.Debug("unknown message type", zap.String("type", msg.Type))
	}
}

// Giftbox Gift Exchange
//
// Each player joins a room with a username. Once the host starts the game,
// the engine repeatedly picks gifters and secretly assigns each one a
// recipient. A gifter records what they gave and how much of the shared
// budget it used; the engine settles the gift and draws the next round of
// assignments. The exchange ends when every player has received the full
// budget, at which point all gift descriptions are revealed to everyone.
//
// Features:
// - WebSockets per room ID: /gift/:roomid and /gift/:roomid/ws
// - First connection to a room becomes the host, who starts the game
// - Players identified by cookie (playerID)
// - Duplicate usernames rejected, with the error sent only to the
//   offending client
// - Gift descriptions are hidden from everyone but their gifter until
//   the room reveals
// - Rooms auto-reaped after configurable idle timeout
// - Random 8-char room IDs via crypto/rand, with collision check in the
//   store
// - In-browser QR button to share the current room, backed by go-qrcode

package main

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"

	"github.com/Seednode/giftbox/internal/engine"
	"github.com/Seednode/giftbox/internal/store"
)

// Messages coming from clients
type ClientMessage struct {
	Type        string `json:"type"`                  // "join", "start_game", "gift"
	Username    string `json:"username,omitempty"`    // join
	Recipient   string `json:"recipient,omitempty"`   // gift
	Description string `json:"description,omitempty"` // gift
	Amount      int    `json:"amount,omitempty"`      // gift
}

// SessionInfoMessage is sent immediately on connect so the client knows
// what role this cookie has.
type SessionInfoMessage struct {
	Type       string `json:"type"`               // "session_info"
	IsExisting bool   `json:"is_existing"`        // true if this cookie already joined
	IsHost     bool   `json:"is_host"`            // true if this cookie is the host
	Username   string `json:"username,omitempty"` // known username for this cookie, if any
}

// ErrorMessage is sent to a single client when its request is rejected.
type ErrorMessage struct {
	Type    string `json:"type"` // "error"
	Message string `json:"message"`
}

// GiftView is a ledger entry as shown to one particular client. The
// description of a hidden gift is blanked for everyone but its gifter;
// amounts stay visible so balances always render.
type GiftView struct {
	Seq         int       `json:"seq"`
	Gifter      string    `json:"gifter"`
	Recipient   string    `json:"recipient"`
	Description string    `json:"description,omitempty"`
	Amount      int       `json:"amount"`
	Hidden      bool      `json:"hidden"`
	Timestamp   time.Time `json:"timestamp"`
}

// RoomStateMessage is the personalized room snapshot broadcast after
// every committed change.
type RoomStateMessage struct {
	Type          string               `json:"type"` // "room_state"
	Budget        int                  `json:"budget"`
	GameStarted   bool                 `json:"game_started"`
	Revealed      bool                 `json:"revealed"`
	Participants  []engine.Participant `json:"participants"`
	Gifts         []GiftView           `json:"gifts"`
	YourRecipient string               `json:"your_recipient,omitempty"` // set iff this client is a gifter
}

type Client struct {
	conn     *websocket.Conn
	send     chan any
	playerID string
}

type joinRequest struct {
	client *Client
	msg    ClientMessage
}

type startRequest struct {
	client *Client
}

type giftRequest struct {
	client *Client
	msg    ClientMessage
}

type Hub struct {
	id    string
	store *store.Store
	eng   *engine.Engine

	clients map[*Client]bool
	members map[string]string // playerID -> username

	register chan *Client
	unreg    chan *Client
	joins    chan joinRequest
	starts   chan startRequest
	gifts    chan giftRequest

	mu sync.RWMutex

	lastActive   time.Time
	hostPlayerID string // cookie/playerID of the host
}

func newHub(roomID string, st *store.Store, eng *engine.Engine) *Hub {
	return &Hub{
		id:         roomID,
		store:      st,
		eng:        eng,
		clients:    make(map[*Client]bool),
		members:    make(map[string]string),
		register:   make(chan *Client),
		unreg:      make(chan *Client),
		joins:      make(chan joinRequest),
		starts:     make(chan startRequest),
		gifts:      make(chan giftRequest),
		lastActive: time.Now(),
	}
}

func (h *Hub) run(cfg *Config) {
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			h.lastActive = time.Now()

			// First connection becomes the host
			if h.hostPlayerID == "" {
				h.hostPlayerID = c.playerID
			}

			username, isExisting := h.members[c.playerID]
			isHost := (h.hostPlayerID == c.playerID)

			h.clients[c] = true
			h.mu.Unlock()

			// Send session_info first, so the client decides whether to
			// prompt for a username.
			c.send <- SessionInfoMessage{
				Type:       "session_info",
				IsExisting: isExisting,
				IsHost:     isHost,
				Username:   username,
			}

			if room, err := h.store.Get(h.id); err == nil {
				c.send <- h.stateFor(room, username)
			}

		case c := <-h.unreg:
			h.mu.Lock()
			h.lastActive = time.Now()

			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			playerID := c.playerID
			h.mu.Unlock()

			if playerID != "" {
				go h.scheduleRemoval(playerID, cfg.playerTimeout)
			}

		case jr := <-h.joins:
			h.handleJoin(cfg, jr)

		case sr := <-h.starts:
			h.handleStart(cfg, sr)

		case gr := <-h.gifts:
			h.handleGift(cfg, gr)
		}
	}
}

// stateFor builds the room snapshot as seen by the given username.
func (h *Hub) stateFor(room *engine.Room, username string) RoomStateMessage {
	gifts := make([]GiftView, 0, len(room.Gifts))
	for _, g := range room.Gifts {
		view := GiftView{
			Seq:         g.Seq,
			Gifter:      g.Gifter,
			Recipient:   g.Recipient,
			Description: g.Description,
			Amount:      g.Amount,
			Hidden:      g.Hidden,
			Timestamp:   g.Timestamp,
		}
		if g.Hidden && g.Gifter != username {
			view.Description = ""
		}
		gifts = append(gifts, view)
	}

	msg := RoomStateMessage{
		Type:         "room_state",
		Budget:       room.Budget,
		GameStarted:  room.GameStarted,
		Revealed:     room.Revealed,
		Participants: room.Participants,
		Gifts:        gifts,
	}

	if p := room.Participant(username); p != nil && p.IsGifter {
		msg.YourRecipient = p.Recipient
	}

	return msg
}

// broadcastRoomState sends each connected client its personalized view.
func (h *Hub) broadcastRoomState(room *engine.Room) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		select {
		case client.send <- h.stateFor(room, h.members[client.playerID]):
		default:
			delete(h.clients, client)
			close(client.send)
		}
	}
}

// sendError reports a rejection to the offending client only.
func (h *Hub) sendError(c *Client, message string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	select {
	case c.send <- ErrorMessage{
		Type:    "error",
		Message: message,
	}:
	default:
		delete(h.clients, c)
		close(c.send)
	}
}

// handleJoin processes "join" messages. Joining is only possible before
// the game starts; reconnecting under the same cookie is always allowed.
func (h *Hub) handleJoin(cfg *Config, jr joinRequest) {
	c := jr.client
	username := strings.TrimSpace(jr.msg.Username)

	if username == "" || c.playerID == "" {
		return
	}

	h.mu.Lock()
	h.lastActive = time.Now()

	if existing, ok := h.members[c.playerID]; ok && existing == username {
		h.mu.Unlock()

		// Rejoin under the same name; just resend state.
		if room, err := h.store.Get(h.id); err == nil {
			h.broadcastRoomState(room)
		}
		return
	}

	for pid, name := range h.members {
		if pid != c.playerID && name == username {
			h.mu.Unlock()
			h.sendError(c, "That username is already taken. Please choose a different username.")
			return
		}
	}
	oldName := h.members[c.playerID]
	h.mu.Unlock()

	room, err := h.store.Update(h.id, func(room *engine.Room) (*engine.Room, error) {
		if room.GameStarted {
			return nil, errors.New("the game has already started; no new players may join")
		}
		if room.Participant(username) != nil {
			return nil, errors.New("that username is already taken")
		}

		// Renaming before the start reuses the existing entry.
		if p := room.Participant(oldName); oldName != "" && p != nil {
			p.Username = username
			return room, nil
		}

		room.Participants = append(room.Participants, engine.Participant{
			Username: username,
		})

		return room, nil
	})
	if err != nil {
		h.sendError(c, err.Error())
		return
	}

	h.mu.Lock()
	h.members[c.playerID] = username
	h.mu.Unlock()

	logf(cfg, "ROOMS: Player %q joined %s", username, h.id)

	h.broadcastRoomState(room)
}

// handleStart processes "start_game" messages from the host.
func (h *Hub) handleStart(cfg *Config, sr startRequest) {
	c := sr.client

	h.mu.Lock()
	h.lastActive = time.Now()
	isHost := (h.hostPlayerID != "" && c.playerID == h.hostPlayerID)
	h.mu.Unlock()

	if !isHost {
		h.sendError(c, "Only the host can start the game.")
		return
	}

	room, err := h.store.Update(h.id, h.eng.StartGame)
	if err != nil {
		switch {
		case errors.Is(err, engine.ErrInsufficientParticipants):
			h.sendError(c, "Not enough players have joined yet.")
		case errors.Is(err, engine.ErrGameStarted):
			h.sendError(c, "The game has already started.")
		default:
			h.sendError(c, err.Error())
		}
		return
	}

	logf(cfg, "ROOMS: Game started in %s with %d players", h.id, len(room.Participants))

	h.broadcastRoomState(room)
}

// handleGift settles a recorded gift through the engine.
func (h *Hub) handleGift(cfg *Config, gr giftRequest) {
	c := gr.client
	msg := gr.msg

	h.mu.Lock()
	h.lastActive = time.Now()
	username := h.members[c.playerID]
	h.mu.Unlock()

	if username == "" {
		h.sendError(c, "Join the room before recording a gift.")
		return
	}

	room, err := h.store.Update(h.id, func(room *engine.Room) (*engine.Room, error) {
		return h.eng.SettleGift(room, username, msg.Recipient, msg.Amount, msg.Description)
	})
	if err != nil {
		switch {
		case errors.Is(err, engine.ErrAssignmentNotFound):
			h.sendError(c, "You have no active assignment for that recipient.")
		case errors.Is(err, engine.ErrInvalidAmount):
			h.sendError(c, "Gift amounts must be positive.")
		case errors.Is(err, engine.ErrBudgetExceeded):
			h.sendError(c, "That gift would push the recipient past the budget.")
		default:
			h.sendError(c, err.Error())
		}
		return
	}

	logf(cfg, "ROOMS: %q gifted %q (%d of %d) in %s",
		username, msg.Recipient, msg.Amount, room.Budget, h.id)

	if room.Revealed {
		logf(cfg, "ROOMS: All budgets met in %s, gifts revealed", h.id)
	}

	h.broadcastRoomState(room)
}

// scheduleRemoval waits for d, and if no client with this playerID has
// reconnected and the game has not started, removes that player from the
// room. Started games keep every participant; their balances are part of
// the exchange.
func (h *Hub) scheduleRemoval(playerID string, d time.Duration) {
	time.Sleep(d)

	h.mu.Lock()
	for client := range h.clients {
		if client.playerID == playerID {
			h.mu.Unlock()
			return
		}
	}
	username := h.members[playerID]
	h.mu.Unlock()

	if username == "" {
		return
	}

	room, err := h.store.Update(h.id, func(room *engine.Room) (*engine.Room, error) {
		if room.GameStarted {
			return nil, errors.New("game in progress")
		}

		dst := room.Participants[:0]
		for _, p := range room.Participants {
			if p.Username == username {
				continue
			}
			dst = append(dst, p)
		}
		room.Participants = dst

		return room, nil
	})
	if err != nil {
		return
	}

	h.mu.Lock()
	delete(h.members, playerID)
	h.lastActive = time.Now()
	h.mu.Unlock()

	h.broadcastRoomState(room)
}

// closeAll disconnects all clients of this hub (used by reaper).
func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		close(c.send)
		_ = c.conn.Close()
		delete(h.clients, c)
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

const playerCookieName = "giftbox_id"

func getOrSetPlayerID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(playerCookieName); err == nil && c.Value != "" {
		return c.Value
	}

	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		log.Println("rand.Read error:", err)
		return ""
	}
	id := hex.EncodeToString(buf)

	http.SetCookie(w, &http.Cookie{
		Name:     playerCookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	return id
}

// GameManager holds a set of hubs keyed by room ID, so each $path/$roomid
// is its own isolated exchange.
type GameManager struct {
	mu          sync.Mutex
	hubs        map[string]*Hub
	store       *store.Store
	eng         *engine.Engine
	idleTimeout time.Duration
}

func newGameManager(cfg *Config) *GameManager {
	gm := &GameManager{
		hubs:  make(map[string]*Hub),
		store: store.New(),
		eng: engine.New(engine.Config{
			MinParticipants: cfg.minParticipants,
			EnforceBudget:   cfg.strictBudget,
		}),
		idleTimeout: cfg.sessionTimeout,
	}
	if gm.idleTimeout > 0 {
		go gm.reaperLoop()
	}
	return gm
}

func (gm *GameManager) getHub(cfg *Config, roomID string) *Hub {
	gm.mu.Lock()
	defer gm.mu.Unlock()

	if hub, ok := gm.hubs[roomID]; ok {
		return hub
	}

	hub := newHub(roomID, gm.store, gm.eng)
	gm.hubs[roomID] = hub
	go hub.run(cfg)
	return hub
}

// reaperLoop periodically removes hubs (and their rooms) that have been
// idle longer than idleTimeout.
func (gm *GameManager) reaperLoop() {
	ticker := time.NewTicker(gm.idleTimeout / 2)
	for range ticker.C {
		cutoff := time.Now().Add(-gm.idleTimeout)

		gm.mu.Lock()
		for id, hub := range gm.hubs {
			hub.mu.RLock()
			last := hub.lastActive
			hub.mu.RUnlock()

			if last.Before(cutoff) {
				delete(gm.hubs, id)
				gm.store.Delete(id)
				go hub.closeAll()
			}
		}
		gm.mu.Unlock()
	}
}

// WebSocket handler that picks the hub based on :roomid. Unknown rooms
// (expired or never created) are rejected before upgrading.
func serveWSForManager(cfg *Config, gm *GameManager) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		roomID := ps.ByName("roomid")
		if roomID == "" {
			http.Error(w, "missing room id", http.StatusBadRequest)
			return
		}

		if _, err := gm.store.Get(roomID); err != nil {
			http.Error(w, "no such room", http.StatusNotFound)
			return
		}

		playerID := getOrSetPlayerID(w, r)
		if playerID == "" {
			http.Error(w, "unable to assign player id", http.StatusInternalServerError)
			return
		}

		hub := gm.getHub(cfg, roomID)

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Println("upgrade error:", err)
			return
		}

		client := &Client{
			conn:     conn,
			send:     make(chan any, 8),
			playerID: playerID,
		}

		hub.register <- client

		go client.writePump()
		client.readPump(hub)
	}
}

func (c *Client) readPump(h *Hub) {
	defer func() {
		h.unreg <- c
		_ = c.conn.Close()
	}()

	for {
		var msg ClientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}

		switch msg.Type {
		case "join":
			h.joins <- joinRequest{
				client: c,
				msg:    msg,
			}
		case "start_game":
			h.starts <- startRequest{
				client: c,
			}
		case "gift":
			h.gifts <- giftRequest{
				client: c,
				msg:    msg,
			}
		default:
			// ignore unknown types
		}
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()

	for msg := range c.send {
		if err := c.conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

// QR handler: generates a PNG QR code for the current room URL using go-qrcode.
func qrHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	roomID := ps.ByName("roomid")
	if roomID == "" {
		http.Error(w, "missing room id", http.StatusBadRequest)
		return
	}

	// Derive scheme (respecting TLS and X-Forwarded-Proto if present).
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}

	// We are at /.../:roomid/qr; strip trailing "/qr" to get the room URL.
	path := strings.TrimSuffix(r.URL.Path, "/qr")

	url := scheme + "://" + r.Host + path

	const qrSize = 320 // mobile-friendly size
	png, err := qrcode.Encode(url, qrcode.Medium, qrSize)
	if err != nil {
		http.Error(w, "qr generation failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(png)
}

func getIndexHandler(cfg *Config) func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		data, err := assets.ReadFile("assets/giftexchange/index.html")
		if err != nil {
			http.Error(w, "missing client", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.Header().Set("Expires", time.Now().Add(time.Hour).UTC().Format(http.TimeFormat))
		securityHeaders(cfg, w)

		_ = getOrSetPlayerID(w, r)

		_, _ = w.Write(data)
	}
}

// redirectNewRoom handles GET /path by creating a new room (budget taken
// from the ?budget= query parameter, falling back to the configured
// default) and redirecting to /path/:roomid.
func redirectNewRoom(cfg *Config, path string, gm *GameManager) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		budget := cfg.defaultBudget
		if raw := r.URL.Query().Get("budget"); raw != "" {
			if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
				budget = parsed
			}
		}

		room := gm.store.Create(budget)
		logf(cfg, "ROOMS: Created room %s/%s with budget %d", path, room.ID, budget)
		http.Redirect(w, r, path+"/"+room.ID, http.StatusTemporaryRedirect)
	}
}

// registerGiftExchange sets up routes so that:
//   - $path                  → creates a room and redirects to it
//   - $path/:roomid          → HTML client
//   - $path/:roomid/ws       → WebSocket for that room
//   - $path/:roomid/qr       → PNG QR code for that room URL
func registerGiftExchange(cfg *Config, path string, mux *httprouter.Router, errs chan<- error) {
	gm := newGameManager(cfg)

	// Root path → create room, redirect
	mux.GET(path, redirectNewRoom(cfg, path, gm))

	// Per-room client view (HTML)
	mux.GET(cfg.prefix+path+"/:roomid", getIndexHandler(cfg))

	// Shared assets (no roomid in route)
	mux.GET(cfg.prefix+"/assets/giftexchange/app.css", serveAssets(cfg, errs))
	mux.GET(cfg.prefix+"/assets/giftexchange/app.js", serveAssets(cfg, errs))

	// Per-room websocket
	mux.GET(cfg.prefix+path+"/:roomid/ws", serveWSForManager(cfg, gm))

	// Per-room QR code
	mux.GET(cfg.prefix+path+"/:roomid/qr", qrHandler)
}

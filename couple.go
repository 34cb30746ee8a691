/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

// Couplebox couple rooms
//
// Each game kind is served at its own path. Visiting the path creates a new
// room with a random 8-char couple ID and redirects to it; the second partner
// joins via the shared link or QR code. A room admits exactly two identities:
// the first cookie to connect claims seat A, the second claims seat B, and
// any further identity is refused. All game traffic flows over a per-room
// WebSocket.
//
// Features:
// - WebSockets per couple ID: /path/:coupleid and /path/:coupleid/ws
// - Partners identified by cookie (partnerID); seats are stored with the
//   session document, so each partner reclaims the same seat after a room
//   reap or server restart regardless of reconnection order
// - Third-wheel connections receive a couple_full message and are dropped
// - Answers stay hidden server-side until both partners have committed one
// - Either partner may start a round or advance a revealed one
// - Heartbeats are relayed to the partner and never stored
// - Rooms auto-reaped after configurable idle timeout
// - Abandoned seats freed after the partner timeout
// - Random 8-char couple IDs via crypto/rand, with server-side collision check
// - In-browser QR button to invite the partner, backed by go-qrcode
//
// Session documents live in the shared store; every successful write fans
// out through the propagation channel, so both partners observe a reveal
// at the same moment without polling.

package main

import (
	"context"
	"crypto/rand"
	_ "embed"
	"errors"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/Seednode/couplebox/session"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"
)

const storeTimeout = 10 * time.Second

// Messages coming from clients
type ClientMessage struct {
	Type   string `json:"type"`             // "start", "submit", "advance", "heartbeat"
	Choice string `json:"choice,omitempty"` // submit
}

// SessionInfoMessage is sent immediately on connect so the client knows
// which seat this cookie holds and whether the partner is connected.
type SessionInfoMessage struct {
	Type           string `json:"type"` // "session_info"
	CoupleID       string `json:"couple_id"`
	Game           string `json:"game"`
	Role           string `json:"role"` // "a" or "b"
	PartnerPresent bool   `json:"partner_present"`
}

// SessionStateMessage carries the current round as seen by one partner.
// The partner's answer is included only once the round is revealed.
type SessionStateMessage struct {
	Type            string `json:"type"` // "session_state"
	RoundIndex      int    `json:"round_index"`
	Card            Card   `json:"card"`
	Revealed        bool   `json:"revealed"`
	YourChoice      string `json:"your_choice,omitempty"`
	PartnerChoice   string `json:"partner_choice,omitempty"`
	PartnerAnswered bool   `json:"partner_answered"`
}

// PresenceMessage informs a client whether their partner is connected.
type PresenceMessage struct {
	Type           string `json:"type"` // "presence"
	PartnerPresent bool   `json:"partner_present"`
}

// HeartbeatMessage is relayed to the partner's client, fire-and-forget.
type HeartbeatMessage struct {
	Type string `json:"type"` // "heartbeat"
}

// SimpleMessage is for generic notifications ("couple_full", "error", etc.)
type SimpleMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type Client struct {
	conn      *websocket.Conn
	send      chan any
	partnerID string
	role      session.Role // valid once the client is registered
}

type actionRequest struct {
	client *Client
	msg    ClientMessage
}

type heartbeatRequest struct {
	client *Client
}

// Room holds the live connections for one couple playing one game. The
// session document itself lives in the store, seats included; the room only
// fans state out to the connected sockets.
type Room struct {
	id      string
	game    session.GameKind
	deck    Deck
	sess    *session.Session
	clients map[*Client]bool

	register chan *Client
	unreg    chan *Client
	actions  chan actionRequest
	beats    chan heartbeatRequest
	done     chan struct{}

	mu sync.RWMutex

	createdAt  time.Time
	lastActive time.Time

	unsubscribe func()
}

func newRoom(store *session.Store, game session.GameKind, deck Deck, coupleID string) (*Room, error) {
	sess, err := session.New(store, session.Key{CoupleID: coupleID, Game: game}, len(deck))
	if err != nil {
		return nil, err
	}

	now := time.Now()
	return &Room{
		id:         coupleID,
		game:       game,
		deck:       deck,
		sess:       sess,
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unreg:      make(chan *Client),
		actions:    make(chan actionRequest),
		beats:      make(chan heartbeatRequest),
		done:       make(chan struct{}),
		createdAt:  now,
		lastActive: now,
	}, nil
}

func (r *Room) run(cfg *Config) {
	for {
		select {
		case <-r.done:
			return

		case c := <-r.register:
			r.handleRegister(cfg, c)

		case c := <-r.unreg:
			r.mu.Lock()
			r.lastActive = time.Now()

			if _, ok := r.clients[c]; ok {
				delete(r.clients, c)
				close(c.send)
			}
			partnerID := c.partnerID
			r.broadcastPresenceLocked()
			r.mu.Unlock()

			// Leaving does not forfeit the seat right away; the partner
			// may be switching networks or reloading.
			go r.scheduleSeatRelease(cfg, partnerID, cfg.partnerTimeout)

		case ar := <-r.actions:
			r.handleAction(cfg, ar)

		case hb := <-r.beats:
			r.relayHeartbeat(hb.client)
		}
	}
}

// handleRegister seats a connecting client, or refuses it when both seats
// belong to other identities. Seats come from the session document, so a
// reconnecting partner gets the same slot however the room was rebuilt.
func (r *Room) handleRegister(cfg *Config, c *Client) {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	role, err := r.sess.Seat(ctx, c.partnerID)
	cancel()

	// Not yet registered: nothing else can close c.send here.
	switch {
	case errors.Is(err, session.ErrCoupleFull):
		c.send <- SimpleMessage{
			Type:    "couple_full",
			Message: "This room already has two partners.",
		}
		close(c.send)
		return
	case err != nil:
		logf(cfg, "GAMES: seating %q in %s/%s failed: %v", c.partnerID, r.game, r.id, err)
		c.send <- SimpleMessage{
			Type:    "error",
			Message: "Couldn't join the room. Please retry.",
		}
		close(c.send)
		return
	}
	c.role = role

	// Read the current round before registering, so reconnecting clients
	// resynchronize immediately instead of waiting for the next change.
	ctx, cancel = context.WithTimeout(context.Background(), storeTimeout)
	doc, found, readErr := r.sess.Current(ctx)
	cancel()

	r.mu.Lock()
	defer r.mu.Unlock()

	r.lastActive = time.Now()
	r.clients[c] = true
	logf(cfg, "GAMES: Partner %q holds seat %s in %s/%s", c.partnerID, role, r.game, r.id)

	if !r.sendLocked(c, SessionInfoMessage{
		Type:           "session_info",
		CoupleID:       r.id,
		Game:           string(r.game),
		Role:           role.String(),
		PartnerPresent: r.partnerPresentLocked(c.partnerID),
	}) {
		return
	}

	switch {
	case readErr != nil:
		r.sendLocked(c, SimpleMessage{
			Type:    "error",
			Message: "Couldn't load the current round. Please retry.",
		})
	case found:
		r.sendLocked(c, r.stateFor(doc, role))
	}

	r.broadcastPresenceLocked()
}

// handleAction applies one protocol transition for a seated client. State
// is never pushed from here: a successful write lands on the propagation
// channel, which updates both partners at once.
func (r *Room) handleAction(cfg *Config, ar actionRequest) {
	c := ar.client
	msg := ar.msg

	r.mu.Lock()
	r.lastActive = time.Now()
	registered := r.clients[c]
	r.mu.Unlock()

	if !registered {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	var err error

	switch msg.Type {
	case "start":
		_, err = r.sess.Initialize(ctx, c.partnerID)
	case "submit":
		if msg.Choice == "" {
			return
		}
		_, err = r.sess.Submit(ctx, c.role, msg.Choice)
	case "advance":
		_, err = r.sess.Advance(ctx)
	default:
		return
	}

	if err != nil {
		logf(cfg, "GAMES: %s failed for %s/%s: %v", msg.Type, r.game, r.id, err)

		r.mu.Lock()
		r.sendLocked(c, SimpleMessage{
			Type:    "error",
			Message: "Couldn't save that. Please try again.",
		})
		r.mu.Unlock()
	}
}

// sendLocked delivers msg to a registered client without blocking, evicting
// the client when its buffer is full. Every send to a registered client goes
// through here under r.mu, since the store subscription may close a client's
// channel from its own goroutine.
func (r *Room) sendLocked(c *Client, msg any) bool {
	if !r.clients[c] {
		return false
	}

	select {
	case c.send <- msg:
		return true
	default:
		delete(r.clients, c)
		close(c.send)
		return false
	}
}

// relayHeartbeat forwards a transient liveness ping to the partner's
// connected clients. Nothing is stored and nothing is reconciled: a
// disconnected partner simply misses it.
func (r *Room) relayHeartbeat(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for client := range r.clients {
		if client.partnerID == c.partnerID {
			continue
		}

		r.sendLocked(client, HeartbeatMessage{Type: "heartbeat"})
	}
}

// pushStateLocked fans a changed document out to every connected client,
// each seeing only what their seat is allowed to see.
func (r *Room) pushStateLocked(doc session.Document) {
	for client := range r.clients {
		r.sendLocked(client, r.stateFor(doc, client.role))
	}
}

// stateFor renders one partner's view of the document. The partner's
// answer is withheld until the round is revealed.
func (r *Room) stateFor(doc session.Document, role session.Role) SessionStateMessage {
	msg := SessionStateMessage{
		Type:       "session_state",
		RoundIndex: doc.RoundIndex,
		Card:       r.deck[doc.RoundIndex%len(r.deck)],
		Revealed:   doc.Revealed,
	}

	if choice, ok := doc.Choices.Get(role); ok {
		msg.YourChoice = choice
	}

	partner := session.RoleB
	if role == session.RoleB {
		partner = session.RoleA
	}
	if choice, ok := doc.Choices.Get(partner); ok {
		msg.PartnerAnswered = true
		if doc.Revealed {
			msg.PartnerChoice = choice
		}
	}

	return msg
}

func (r *Room) partnerPresentLocked(partnerID string) bool {
	for client := range r.clients {
		if client.partnerID != partnerID {
			return true
		}
	}
	return false
}

func (r *Room) broadcastPresenceLocked() {
	for client := range r.clients {
		r.sendLocked(client, PresenceMessage{
			Type:           "presence",
			PartnerPresent: r.partnerPresentLocked(client.partnerID),
		})
	}
}

// scheduleSeatRelease waits for d, and if no client with this identity has
// reconnected, frees the seat in the stored document so the couple can
// re-pair from a new device.
func (r *Room) scheduleSeatRelease(cfg *Config, partnerID string, d time.Duration) {
	time.Sleep(d)

	r.mu.Lock()
	for client := range r.clients {
		if client.partnerID == partnerID {
			r.mu.Unlock()
			return
		}
	}
	r.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	if err := r.sess.Release(ctx, partnerID); err != nil {
		logf(cfg, "GAMES: Freeing seat of %q in %s/%s failed: %v", partnerID, r.game, r.id, err)
		return
	}
	logf(cfg, "GAMES: Freed abandoned seat of %q in %s/%s", partnerID, r.game, r.id)
}

// closeAll disconnects all clients of this room and stops its run loop
// (used by reaper).
func (r *Room) closeAll() {
	r.mu.Lock()
	for c := range r.clients {
		close(c.send)
		_ = c.conn.Close()
		delete(r.clients, c)
	}
	r.mu.Unlock()

	close(r.done)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

const partnerCookieName = "couplebox_id"

func getOrSetPartnerID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(partnerCookieName); err == nil && c.Value != "" {
		return c.Value
	}

	id := uuid.NewString()

	http.SetCookie(w, &http.Cookie{
		Name:     partnerCookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	return id
}

// RoomManager holds a set of rooms keyed by couple ID, so each $path/$coupleid
// is its own isolated session.
type RoomManager struct {
	mu          sync.Mutex
	rooms       map[string]*Room
	store       *session.Store
	game        session.GameKind
	deck        Deck
	idleTimeout time.Duration
}

func newRoomManager(store *session.Store, game session.GameKind, idleTimeout time.Duration) (*RoomManager, error) {
	deck := deckFor(game)
	if len(deck) == 0 {
		return nil, errors.New("no deck for game kind: " + string(game))
	}

	rm := &RoomManager{
		rooms:       make(map[string]*Room),
		store:       store,
		game:        game,
		deck:        deck,
		idleTimeout: idleTimeout,
	}
	if idleTimeout > 0 {
		go rm.reaperLoop()
	}
	return rm, nil
}

func (rm *RoomManager) getRoom(cfg *Config, coupleID string) *Room {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if room, ok := rm.rooms[coupleID]; ok {
		return room
	}

	room, err := newRoom(rm.store, rm.game, rm.deck, coupleID)
	if err != nil {
		// Deck length was validated when the manager was created.
		return nil
	}

	// Every change to this couple's document, whichever partner (or
	// instance) wrote it, lands here and is fanned out to both sockets.
	room.unsubscribe = rm.store.Subscribe(
		session.Key{CoupleID: coupleID, Game: rm.game},
		func(doc session.Document) {
			room.mu.Lock()
			room.pushStateLocked(doc)
			room.mu.Unlock()
		},
	)

	rm.rooms[coupleID] = room
	go room.run(cfg)
	return room
}

// newCoupleID generates a crypto-random couple ID and ensures it doesn't
// collide with existing rooms.
func (rm *RoomManager) newCoupleID() string {
	const letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	for {
		buf := make([]byte, 8)
		if _, err := rand.Read(buf); err != nil {
			panic("crypto/rand failure: " + err.Error())
		}
		out := make([]byte, 8)
		for i := range out {
			out[i] = letters[int(buf[i])%len(letters)]
		}
		id := string(out)

		rm.mu.Lock()
		_, exists := rm.rooms[id]
		rm.mu.Unlock()

		if !exists {
			return id
		}
	}
}

// reaperLoop periodically removes rooms that have been idle longer than
// idleTimeout, releasing their channel subscriptions.
func (rm *RoomManager) reaperLoop() {
	ticker := time.NewTicker(rm.idleTimeout / 2)
	for range ticker.C {
		cutoff := time.Now().Add(-rm.idleTimeout)

		rm.mu.Lock()
		for id, room := range rm.rooms {
			room.mu.RLock()
			last := room.lastActive
			room.mu.RUnlock()

			if last.Before(cutoff) {
				delete(rm.rooms, id)
				if room.unsubscribe != nil {
					room.unsubscribe()
				}
				go room.closeAll()
			}
		}
		rm.mu.Unlock()
	}
}

// WebSocket handler that picks the room based on :coupleid
func serveWS(cfg *Config, rm *RoomManager) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		coupleID := ps.ByName("coupleid")
		if coupleID == "" {
			http.Error(w, "missing couple id", http.StatusBadRequest)
			return
		}

		partnerID := getOrSetPartnerID(w, r)

		room := rm.getRoom(cfg, coupleID)
		if room == nil {
			http.Error(w, "game unavailable", http.StatusInternalServerError)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Println("upgrade error:", err)
			return
		}

		client := &Client{
			conn:      conn,
			send:      make(chan any, 8),
			partnerID: partnerID,
		}

		select {
		case room.register <- client:
		case <-room.done:
			_ = conn.Close()
			return
		}

		go client.writePump()
		client.readPump(room)
	}
}

func (c *Client) readPump(r *Room) {
	defer func() {
		select {
		case r.unreg <- c:
		case <-r.done:
		}
		_ = c.conn.Close()
	}()

	for {
		var msg ClientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}

		switch msg.Type {
		case "start", "submit", "advance":
			select {
			case r.actions <- actionRequest{client: c, msg: msg}:
			case <-r.done:
				return
			}
		case "heartbeat":
			select {
			case r.beats <- heartbeatRequest{client: c}:
			case <-r.done:
				return
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

// QR handler: generates a PNG QR code for the current room URL using
// go-qrcode, so the second partner can join by pointing their camera.
func qrHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	coupleID := ps.ByName("coupleid")
	if coupleID == "" {
		http.Error(w, "missing couple id", http.StatusBadRequest)
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

	// We are at /.../:coupleid/qr; strip trailing "/qr" to get the room URL.
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

// ---- Static file paths ----

//go:embed couple/index.html
var indexHTML []byte

//go:embed couple/app.css
var coupleCSS []byte

//go:embed couple/app.js
var coupleJS []byte

func getIndexHandler(cfg *Config) func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.Header().Set("Expires", time.Now().Add(time.Hour).UTC().Format(http.TimeFormat))
		securityHeaders(cfg, w)

		_ = getOrSetPartnerID(w, r)

		_, _ = w.Write(indexHTML)
	}
}

func getCssHandler(cfg *Config) func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		w.Header().Set("Content-Type", "text/css; charset=utf-8")
		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.Header().Set("Expires", time.Now().Add(time.Hour).UTC().Format(http.TimeFormat))
		securityHeaders(cfg, w)

		_, _ = w.Write(coupleCSS)
	}
}

func getJsHandler(cfg *Config) func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.Header().Set("Expires", time.Now().Add(time.Hour).UTC().Format(http.TimeFormat))
		securityHeaders(cfg, w)

		_, _ = w.Write(coupleJS)
	}
}

// redirectNewRoom handles GET /path by generating a new random couple ID
// (with server-side collision detection) and redirecting to /path/:coupleid.
func redirectNewRoom(cfg *Config, path string, rm *RoomManager) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		coupleID := rm.newCoupleID()
		logf(cfg, "GAMES: Created room %s/%s", path, coupleID)
		http.Redirect(w, r, cfg.prefix+path+"/"+coupleID, http.StatusTemporaryRedirect)
	}
}

// registerCoupleAssets serves the shared browser client, used by every
// game path. Registered once to keep httprouter happy.
func registerCoupleAssets(cfg *Config, mux *httprouter.Router) {
	mux.GET(cfg.prefix+"/assets/couple/app.css", getCssHandler(cfg))
	mux.GET(cfg.prefix+"/assets/couple/app.js", getJsHandler(cfg))
}

// registerCoupleGame sets up routes so that:
//   - $path                  → redirects to a new random room (8-char ID)
//   - $path/:coupleid        → HTML client
//   - $path/:coupleid/ws     → WebSocket for that room
//   - $path/:coupleid/qr     → PNG QR code for that room URL
func registerCoupleGame(cfg *Config, store *session.Store, game session.GameKind, path string, mux *httprouter.Router) error {
	rm, err := newRoomManager(store, game, cfg.sessionTimeout)
	if err != nil {
		return err
	}

	// Root path → redirect to new random room
	mux.GET(cfg.prefix+path, redirectNewRoom(cfg, path, rm))

	// Per-room client view (HTML)
	mux.GET(cfg.prefix+path+"/:coupleid", getIndexHandler(cfg))

	// Per-room websocket
	mux.GET(cfg.prefix+path+"/:coupleid/ws", serveWS(cfg, rm))

	// Per-room QR code
	mux.GET(cfg.prefix+path+"/:coupleid/qr", qrHandler)

	return nil
}

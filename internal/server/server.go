package server

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/tTong32/Real-Time-Chess-sub000/internal/config"
	"github.com/tTong32/Real-Time-Chess-sub000/internal/game"
	"github.com/tTong32/Real-Time-Chess-sub000/internal/protocol"
	"github.com/tTong32/Real-Time-Chess-sub000/internal/storage"
)

const writeTimeout = 10 * time.Second

// Server ties the websocket transport to the hub and the managers, and
// drives the background loops.
type Server struct {
	cfg      *config.Config
	store    *storage.Store
	hub      *Hub
	bcast    *Broadcaster
	games    *GameManager
	rooms    *RoomManager
	match    *MatchmakingManager
	handler  *Handler
	upgrader websocket.Upgrader
}

// New assembles a server over an open store.
func New(cfg *config.Config, store *storage.Store) *Server {
	hub := NewHub()
	bcast := NewBroadcaster(hub)
	games := NewGameManager(store, hub, bcast, cfg.Game.TickInterval.Duration, cfg.Game.CheckpointEvery)
	rooms := NewRoomManager(store, games, cfg.Rooms.TTL.Duration, cfg.Rooms.SweepInterval.Duration)
	match := NewMatchmakingManager(store, games, cfg.Game.MatchInterval.Duration)

	s := &Server{
		cfg:     cfg,
		store:   store,
		hub:     hub,
		bcast:   bcast,
		games:   games,
		rooms:   rooms,
		match:   match,
		handler: NewHandler(hub, games, rooms, match),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
	match.OnMatchFound(s.notifyMatch)
	return s
}

// notifyMatch tells both players about their new rated game and subscribes
// their sessions to its updates.
func (s *Server) notifyMatch(m Match) {
	s.deliverMatch(m.GameID, m.White, game.White.String(), m.Black.UserID)
	s.deliverMatch(m.GameID, m.Black, game.Black.String(), m.White.UserID)
}

func (s *Server) deliverMatch(gameID string, entry QueueEntry, color, opponent string) {
	data, err := protocol.Encode(protocol.EventMatchFound, protocol.MatchFound{
		GameID:   gameID,
		Color:    color,
		Opponent: opponent,
	})
	if err != nil {
		log.Errorf("encode matchFound: %v", err)
		return
	}
	s.hub.Subscribe(gameID, entry.SessionID)
	if err := s.hub.SendToSession(entry.SessionID, data); err != nil {
		// The queueing session is gone; fall back to the user's other
		// sessions so the match is not silently lost.
		if s.hub.SendToUser(entry.UserID, data) == 0 {
			log.Warningf("matchFound for game %s undeliverable to %s", gameID, entry.UserID)
		}
	}
}

// wsSession adapts one websocket connection to the hub's Session interface.
// Gorilla connections permit a single concurrent writer, so writes are
// serialised through writeMu.
type wsSession struct {
	id      string
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (ws *wsSession) ID() string { return ws.id }

func (ws *wsSession) Send(data []byte) error {
	ws.writeMu.Lock()
	defer ws.writeMu.Unlock()
	ws.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return ws.conn.WriteMessage(websocket.TextMessage, data)
}

// HandleWS upgrades one websocket client. The user identifier arrives as
// the "user" query parameter; authenticating it is the deployment's
// concern, not this server's.
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user")
	if userID == "" {
		http.Error(w, "missing user parameter", http.StatusBadRequest)
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Errorf("websocket upgrade: %v", err)
		return
	}
	sess := &wsSession{id: uuid.NewString(), conn: conn}
	s.hub.Register(userID, sess)
	log.Infof("session %s connected for user %s", sess.id, userID)
	go s.readLoop(sess, userID)
}

func (s *Server) readLoop(sess *wsSession, userID string) {
	defer func() {
		s.hub.Unregister(sess.id)
		s.match.DequeueSession(sess.id)
		sess.conn.Close()
		log.Infof("session %s closed for user %s", sess.id, userID)
	}()
	for {
		_, raw, err := sess.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warningf("session %s read: %v", sess.id, err)
			}
			return
		}
		s.handler.Handle(sess, userID, raw)
	}
}

// Routes returns the HTTP handler serving the websocket endpoint.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.HandleWS)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

// Run serves HTTP and drives the tick, matchmaking and room-sweep loops
// until the context is cancelled, then shuts down cleanly.
func (s *Server) Run(ctx context.Context) error {
	httpServer := &http.Server{Addr: s.cfg.ListenAddr, Handler: s.Routes()}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.games.Run(ctx) })
	g.Go(func() error { return s.rooms.Run(ctx) })
	g.Go(func() error { return s.match.Run(ctx) })
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		log.Infof("listening on %s", s.cfg.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	err := g.Wait()
	s.bcast.FlushAll()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

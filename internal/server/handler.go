package server

import (
	"encoding/json"
	"fmt"

	"github.com/tTong32/Real-Time-Chess-sub000/internal/game"
	"github.com/tTong32/Real-Time-Chess-sub000/internal/protocol"
)

// Handler dispatches decoded envelopes from one session to the managers.
// It owns no state of its own; every method is safe for concurrent use.
type Handler struct {
	hub   *Hub
	games *GameManager
	rooms *RoomManager
	match *MatchmakingManager
}

// NewHandler wires the dispatcher to the hub and the three managers.
func NewHandler(hub *Hub, games *GameManager, rooms *RoomManager, match *MatchmakingManager) *Handler {
	return &Handler{hub: hub, games: games, rooms: rooms, match: match}
}

// Handle processes one raw inbound message from a session.
func (h *Handler) Handle(sess Session, userID string, raw []byte) {
	var env protocol.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		h.sendError(sess, protocol.EventGameError, "malformed message")
		return
	}

	switch env.Type {
	case protocol.EventCreateRoom:
		h.createRoom(sess, userID)
	case protocol.EventJoinRoom:
		h.joinRoom(sess, userID, env.Payload)
	case protocol.EventStartGame:
		h.startGame(sess, userID, env.Payload)
	case protocol.EventMakeMove:
		h.makeMove(sess, userID, env.Payload)
	case protocol.EventRequestMatchmaking:
		h.requestMatchmaking(sess, userID)
	case protocol.EventCancelMatchmaking:
		h.match.Dequeue(userID)
		h.send(sess, protocol.EventMatchmakingCancelled, nil)
	case protocol.EventMatchmakingStatusIn:
		h.matchmakingStatus(sess, userID)
	case protocol.EventSpectateGame:
		h.spectateGame(sess, env.Payload)
	case protocol.EventLeaveGame:
		h.leaveGame(sess, userID, env.Payload)
	case protocol.EventRequestGameState:
		h.requestGameState(sess, env.Payload)
	default:
		h.sendError(sess, protocol.EventGameError, fmt.Sprintf("unknown event type %q", env.Type))
	}
}

func (h *Handler) createRoom(sess Session, userID string) {
	room, err := h.rooms.CreateRoom(userID)
	if err != nil {
		h.sendError(sess, protocol.EventRoomError, err.Error())
		return
	}
	h.hub.Subscribe(room.GameID, sess.ID())
	h.send(sess, protocol.EventRoomCreated, protocol.RoomCreated{RoomCode: room.Code})
	h.send(sess, protocol.EventGameWaiting, protocol.GameWaiting{GameID: room.GameID})
}

func (h *Handler) joinRoom(sess Session, userID string, payload json.RawMessage) {
	var req protocol.JoinRoomRequest
	if err := json.Unmarshal(payload, &req); err != nil || req.RoomCode == "" {
		h.sendError(sess, protocol.EventRoomError, "malformed joinRoom payload")
		return
	}
	room, err := h.rooms.JoinRoom(req.RoomCode, userID)
	if err != nil {
		h.sendError(sess, protocol.EventRoomError, err.Error())
		return
	}
	h.hub.Subscribe(room.GameID, sess.ID())
	h.send(sess, protocol.EventRoomJoined, protocol.RoomJoined{GameID: room.GameID, RoomCode: room.Code})
	h.broadcast(room.GameID, protocol.EventPlayerJoined, protocol.PlayerJoined{GameID: room.GameID, UserID: userID})
}

func (h *Handler) startGame(sess Session, userID string, payload json.RawMessage) {
	var req protocol.GameRequest
	if err := json.Unmarshal(payload, &req); err != nil || req.GameID == "" {
		h.sendError(sess, protocol.EventGameError, "malformed startGame payload")
		return
	}
	snapshot, err := h.games.Snapshot(req.GameID)
	if err != nil {
		h.sendError(sess, protocol.EventGameError, err.Error())
		return
	}
	if _, ok := snapshot.ColorOf(userID); !ok {
		h.sendError(sess, protocol.EventGameError, ErrNotInGame.Error())
		return
	}
	state, err := h.games.StartGame(req.GameID)
	if err != nil {
		h.sendError(sess, protocol.EventGameError, err.Error())
		return
	}
	h.rooms.Release(req.GameID)
	h.broadcast(req.GameID, protocol.EventGameStarted, protocol.GameStarted{GameID: req.GameID, State: state})
}

func (h *Handler) makeMove(sess Session, userID string, payload json.RawMessage) {
	var req protocol.MakeMoveRequest
	if err := json.Unmarshal(payload, &req); err != nil || req.GameID == "" {
		h.sendError(sess, protocol.EventGameError, "malformed makeMove payload")
		return
	}
	mv := game.Move{
		PlayerID: userID,
		FromRow:  req.FromRow,
		FromCol:  req.FromCol,
		ToRow:    req.ToRow,
		ToCol:    req.ToCol,
	}
	outcome, err := h.games.AttemptMove(req.GameID, mv)
	if err != nil {
		h.sendError(sess, protocol.EventGameError, err.Error())
		return
	}
	if !outcome.OK {
		h.send(sess, protocol.EventMoveRejected, protocol.MoveRejected{Reason: outcome.Reason})
		return
	}
	h.send(sess, protocol.EventMoveAccepted, protocol.MoveAccepted{Move: outcome.Move})
}

func (h *Handler) requestMatchmaking(sess Session, userID string) {
	size, match, err := h.match.Enqueue(userID, sess.ID())
	if err != nil {
		h.sendError(sess, protocol.EventMatchmakingError, err.Error())
		return
	}
	// The acknowledgement goes out before any matchFound, so an instantly
	// paired client still sees the events in request order.
	h.send(sess, protocol.EventMatchmakingStarted, protocol.MatchmakingStarted{QueueSize: size})
	if match != nil {
		h.match.Dispatch(*match)
	}
}

func (h *Handler) matchmakingStatus(sess Session, userID string) {
	st := h.match.Status(userID)
	payload := protocol.MatchmakingStatus{InQueue: st.InQueue, QueueSize: st.QueueSize}
	if st.InQueue {
		payload.QueueInfo = &protocol.QueueInfo{
			Rating:       st.Rating,
			WaitedMs:     st.WaitedMs,
			RatingWindow: st.RatingWindow,
		}
	}
	h.send(sess, protocol.EventMatchmakingStatus, payload)
}

func (h *Handler) spectateGame(sess Session, payload json.RawMessage) {
	var req protocol.GameRequest
	if err := json.Unmarshal(payload, &req); err != nil || req.GameID == "" {
		h.sendError(sess, protocol.EventSpectateError, "malformed spectateGame payload")
		return
	}
	state, err := h.games.Snapshot(req.GameID)
	if err != nil {
		h.sendError(sess, protocol.EventSpectateError, err.Error())
		return
	}
	h.hub.Subscribe(req.GameID, sess.ID())
	h.send(sess, protocol.EventSpectatingStarted, protocol.SpectatingStarted{GameID: req.GameID})
	h.send(sess, protocol.EventGameStateUpdate, protocol.GameStateUpdate{State: state})
}

// leaveGame drops the session's subscription. A host leaving their own
// still-waiting room closes it.
func (h *Handler) leaveGame(sess Session, userID string, payload json.RawMessage) {
	var req protocol.GameRequest
	if err := json.Unmarshal(payload, &req); err != nil || req.GameID == "" {
		h.sendError(sess, protocol.EventGameError, "malformed leaveGame payload")
		return
	}
	h.hub.Unsubscribe(req.GameID, sess.ID())
	if room, ok := h.rooms.RoomByGame(req.GameID); ok && room.HostID == userID {
		if err := h.rooms.CloseByHost(req.GameID, userID); err == nil {
			h.hub.DropGame(req.GameID)
		}
	}
}

func (h *Handler) requestGameState(sess Session, payload json.RawMessage) {
	var req protocol.GameRequest
	if err := json.Unmarshal(payload, &req); err != nil || req.GameID == "" {
		h.sendError(sess, protocol.EventGameError, "malformed requestGameState payload")
		return
	}
	state, err := h.games.Snapshot(req.GameID)
	if err != nil {
		h.sendError(sess, protocol.EventGameError, err.Error())
		return
	}
	h.send(sess, protocol.EventGameStateUpdate, protocol.GameStateUpdate{State: state})
}

func (h *Handler) send(sess Session, event string, payload any) {
	data, err := protocol.Encode(event, payload)
	if err != nil {
		log.Errorf("encode %s: %v", event, err)
		return
	}
	if err := sess.Send(data); err != nil {
		log.Warningf("send %s to session %s: %v", event, sess.ID(), err)
	}
}

func (h *Handler) sendError(sess Session, event, message string) {
	if err := sess.Send(protocol.Error(event, message)); err != nil {
		log.Warningf("send %s to session %s: %v", event, sess.ID(), err)
	}
}

func (h *Handler) broadcast(gameID, event string, payload any) {
	data, err := protocol.Encode(event, payload)
	if err != nil {
		log.Errorf("encode %s: %v", event, err)
		return
	}
	h.hub.BroadcastToGame(gameID, data)
}

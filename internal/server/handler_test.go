package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tTong32/Real-Time-Chess-sub000/internal/game"
	"github.com/tTong32/Real-Time-Chess-sub000/internal/protocol"
	"github.com/tTong32/Real-Time-Chess-sub000/internal/storage"
)

type handlerFixture struct {
	h     *Handler
	hub   *Hub
	games *GameManager
	rooms *RoomManager
	match *MatchmakingManager
	bcast *Broadcaster
	store *storage.Store
	clock int64
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()
	store, err := storage.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	f := &handlerFixture{store: store, hub: NewHub(), clock: baseNow}
	now := func() int64 { return f.clock }
	f.bcast = newBroadcaster(f.hub, time.Hour, 2*time.Hour)
	f.games = NewGameManager(store, f.hub, f.bcast, time.Second, 5)
	f.games.now = now
	f.rooms = NewRoomManager(store, f.games, 24*time.Hour, 30*time.Minute)
	f.rooms.now = now
	f.match = NewMatchmakingManager(store, f.games, time.Second)
	f.match.now = now
	f.h = NewHandler(f.hub, f.games, f.rooms, f.match)
	return f
}

// connect registers a stub session for the user and returns it.
func (f *handlerFixture) connect(t *testing.T, userID, sessionID string) *stubSession {
	t.Helper()
	s := newStubSession(sessionID)
	f.hub.Register(userID, s)
	return s
}

// say sends one envelope from the session's user through the handler.
func (f *handlerFixture) say(t *testing.T, s *stubSession, userID, event string, payload any) {
	t.Helper()
	raw, err := protocol.Encode(event, payload)
	require.NoError(t, err)
	f.h.Handle(s, userID, raw)
}

// openRoom drives alice creating a room and returns its code and game id.
func (f *handlerFixture) openRoom(t *testing.T, host *stubSession, hostID string) (string, string) {
	t.Helper()
	f.say(t, host, hostID, protocol.EventCreateRoom, nil)
	envs := host.envelopes(t)
	require.Len(t, envs, 2)
	require.Equal(t, protocol.EventRoomCreated, envs[0].Type)
	require.Equal(t, protocol.EventGameWaiting, envs[1].Type)

	var created protocol.RoomCreated
	unmarshalPayload(t, envs[0].Payload, &created)
	var waiting protocol.GameWaiting
	unmarshalPayload(t, envs[1].Payload, &waiting)
	host.reset()
	return created.RoomCode, waiting.GameID
}

func TestHandlerRoomLifecycle(t *testing.T) {
	f := newHandlerFixture(t)
	alice := f.connect(t, "alice", "s1")
	bob := f.connect(t, "bob", "s2")

	code, gameID := f.openRoom(t, alice, "alice")
	require.NotEmpty(t, code)
	require.NotEmpty(t, gameID)

	f.say(t, bob, "bob", protocol.EventJoinRoom, protocol.JoinRoomRequest{RoomCode: code})
	assert.Equal(t, []string{protocol.EventRoomJoined, protocol.EventPlayerJoined}, bob.eventTypes(t))
	assert.Equal(t, []string{protocol.EventPlayerJoined}, alice.eventTypes(t))

	var joined protocol.RoomJoined
	unmarshalPayload(t, bob.envelopes(t)[0].Payload, &joined)
	assert.Equal(t, gameID, joined.GameID)
	assert.Equal(t, code, joined.RoomCode)

	alice.reset()
	bob.reset()

	f.say(t, alice, "alice", protocol.EventStartGame, protocol.GameRequest{GameID: gameID})
	require.Equal(t, []string{protocol.EventGameStarted}, alice.eventTypes(t))
	require.Equal(t, []string{protocol.EventGameStarted}, bob.eventTypes(t))

	var started protocol.GameStarted
	unmarshalPayload(t, alice.envelopes(t)[0].Payload, &started)
	assert.Equal(t, gameID, started.GameID)
	assert.Equal(t, game.StatusActive, started.State.Status)

	// The room registry lets go of a started game.
	_, ok := f.rooms.RoomByGame(gameID)
	assert.False(t, ok)
}

func TestHandlerRoomErrors(t *testing.T) {
	f := newHandlerFixture(t)
	alice := f.connect(t, "alice", "s1")

	t.Run("MalformedJoinPayload", func(t *testing.T) {
		f.h.Handle(alice, "alice", []byte(`{"type":"joinRoom","payload":{"roomCode":5}}`))
		assert.Equal(t, protocol.EventRoomError, alice.lastEnvelope(t).Type)
		alice.reset()
	})

	t.Run("UnknownCode", func(t *testing.T) {
		f.say(t, alice, "alice", protocol.EventJoinRoom, protocol.JoinRoomRequest{RoomCode: "ZZZZZZ"})
		last := alice.lastEnvelope(t)
		require.Equal(t, protocol.EventRoomError, last.Type)
		var msg protocol.ErrorMessage
		unmarshalPayload(t, last.Payload, &msg)
		assert.Equal(t, ErrRoomNotFound.Error(), msg.Error)
		alice.reset()
	})

	t.Run("HostJoiningOwnRoom", func(t *testing.T) {
		code, _ := f.openRoom(t, alice, "alice")
		f.say(t, alice, "alice", protocol.EventJoinRoom, protocol.JoinRoomRequest{RoomCode: code})
		last := alice.lastEnvelope(t)
		require.Equal(t, protocol.EventRoomError, last.Type)
		var msg protocol.ErrorMessage
		unmarshalPayload(t, last.Payload, &msg)
		assert.Equal(t, ErrJoinOwnRoom.Error(), msg.Error)
	})
}

func TestHandlerStartGameGuards(t *testing.T) {
	f := newHandlerFixture(t)
	alice := f.connect(t, "alice", "s1")
	carol := f.connect(t, "carol", "s3")

	_, gameID := f.openRoom(t, alice, "alice")

	t.Run("OutsiderCannotStart", func(t *testing.T) {
		f.say(t, carol, "carol", protocol.EventStartGame, protocol.GameRequest{GameID: gameID})
		last := carol.lastEnvelope(t)
		require.Equal(t, protocol.EventGameError, last.Type)
		var msg protocol.ErrorMessage
		unmarshalPayload(t, last.Payload, &msg)
		assert.Equal(t, ErrNotInGame.Error(), msg.Error)
	})

	t.Run("UnknownGame", func(t *testing.T) {
		f.say(t, alice, "alice", protocol.EventStartGame, protocol.GameRequest{GameID: "no-such-game"})
		assert.Equal(t, protocol.EventGameError, alice.lastEnvelope(t).Type)
	})
}

func TestHandlerMakeMove(t *testing.T) {
	f := newHandlerFixture(t)
	alice := f.connect(t, "alice", "s1")
	bob := f.connect(t, "bob", "s2")

	code, gameID := f.openRoom(t, alice, "alice")
	f.say(t, bob, "bob", protocol.EventJoinRoom, protocol.JoinRoomRequest{RoomCode: code})
	f.say(t, alice, "alice", protocol.EventStartGame, protocol.GameRequest{GameID: gameID})
	alice.reset()
	bob.reset()

	t.Run("Accepted", func(t *testing.T) {
		f.say(t, alice, "alice", protocol.EventMakeMove, protocol.MakeMoveRequest{
			GameID: gameID, FromRow: 6, FromCol: 4, ToRow: 5, ToCol: 4,
		})
		last := alice.lastEnvelope(t)
		require.Equal(t, protocol.EventMoveAccepted, last.Type)
		var acc protocol.MoveAccepted
		unmarshalPayload(t, last.Payload, &acc)
		assert.Equal(t, "alice", acc.Move.PlayerID)
		assert.Equal(t, 5, acc.Move.ToRow)

		// The batched state update reaches both players on flush.
		alice.reset()
		bob.reset()
		f.bcast.Flush(gameID)
		assert.Equal(t, []string{protocol.EventGameStateUpdate}, alice.eventTypes(t))
		assert.Equal(t, []string{protocol.EventGameStateUpdate}, bob.eventTypes(t))
		alice.reset()
		bob.reset()
	})

	t.Run("RejectedOnCooldown", func(t *testing.T) {
		f.say(t, alice, "alice", protocol.EventMakeMove, protocol.MakeMoveRequest{
			GameID: gameID, FromRow: 5, FromCol: 4, ToRow: 4, ToCol: 4,
		})
		last := alice.lastEnvelope(t)
		require.Equal(t, protocol.EventMoveRejected, last.Type)
		var rej protocol.MoveRejected
		unmarshalPayload(t, last.Payload, &rej)
		assert.Equal(t, string(game.RejectPieceOnCooldown), rej.Reason)
		assert.Equal(t, 0, bob.count(), "rejections are not broadcast")
		alice.reset()
	})

	t.Run("UnknownGame", func(t *testing.T) {
		f.say(t, alice, "alice", protocol.EventMakeMove, protocol.MakeMoveRequest{GameID: "no-such-game"})
		assert.Equal(t, protocol.EventGameError, alice.lastEnvelope(t).Type)
	})
}

func TestHandlerMatchmaking(t *testing.T) {
	f := newHandlerFixture(t)
	alice := f.connect(t, "alice", "s1")

	f.say(t, alice, "alice", protocol.EventRequestMatchmaking, nil)
	last := alice.lastEnvelope(t)
	require.Equal(t, protocol.EventMatchmakingStarted, last.Type)
	var started protocol.MatchmakingStarted
	unmarshalPayload(t, last.Payload, &started)
	assert.Equal(t, 1, started.QueueSize)
	alice.reset()

	t.Run("DuplicateRequest", func(t *testing.T) {
		f.say(t, alice, "alice", protocol.EventRequestMatchmaking, nil)
		last := alice.lastEnvelope(t)
		require.Equal(t, protocol.EventMatchmakingError, last.Type)
		var msg protocol.ErrorMessage
		unmarshalPayload(t, last.Payload, &msg)
		assert.Equal(t, ErrAlreadyQueued.Error(), msg.Error)
		alice.reset()
	})

	t.Run("Status", func(t *testing.T) {
		f.clock = baseNow + 60_000
		f.say(t, alice, "alice", protocol.EventMatchmakingStatusIn, nil)
		last := alice.lastEnvelope(t)
		require.Equal(t, protocol.EventMatchmakingStatus, last.Type)
		var st protocol.MatchmakingStatus
		unmarshalPayload(t, last.Payload, &st)
		assert.True(t, st.InQueue)
		require.NotNil(t, st.QueueInfo)
		assert.Equal(t, int64(60_000), st.QueueInfo.WaitedMs)
		assert.Equal(t, 300, st.QueueInfo.RatingWindow)
		alice.reset()
	})

	t.Run("Cancel", func(t *testing.T) {
		f.say(t, alice, "alice", protocol.EventCancelMatchmaking, nil)
		assert.Equal(t, protocol.EventMatchmakingCancelled, alice.lastEnvelope(t).Type)
		assert.Equal(t, 0, f.match.Size())
		alice.reset()

		f.say(t, alice, "alice", protocol.EventMatchmakingStatusIn, nil)
		var st protocol.MatchmakingStatus
		unmarshalPayload(t, alice.lastEnvelope(t).Payload, &st)
		assert.False(t, st.InQueue)
	})
}

// A client whose enqueue pairs instantly still hears matchmakingStarted
// before matchFound: the handler acknowledges first, then dispatches.
func TestHandlerInstantMatchEventOrder(t *testing.T) {
	f := newHandlerFixture(t)
	f.match.OnMatchFound(func(m Match) {
		data, err := protocol.Encode(protocol.EventMatchFound, protocol.MatchFound{GameID: m.GameID})
		require.NoError(t, err)
		require.NoError(t, f.hub.SendToSession(m.White.SessionID, data))
		require.NoError(t, f.hub.SendToSession(m.Black.SessionID, data))
	})

	alice := f.connect(t, "alice", "s1")
	bob := f.connect(t, "bob", "s2")

	f.say(t, alice, "alice", protocol.EventRequestMatchmaking, nil)
	require.Equal(t, []string{protocol.EventMatchmakingStarted}, alice.eventTypes(t))
	alice.reset()

	f.say(t, bob, "bob", protocol.EventRequestMatchmaking, nil)
	assert.Equal(t, []string{protocol.EventMatchmakingStarted, protocol.EventMatchFound}, bob.eventTypes(t))
	assert.Equal(t, []string{protocol.EventMatchFound}, alice.eventTypes(t))

	var started protocol.MatchmakingStarted
	unmarshalPayload(t, bob.envelopes(t)[0].Payload, &started)
	assert.Equal(t, 0, started.QueueSize, "the pair left the queue before the acknowledgement")
}

func TestHandlerSpectate(t *testing.T) {
	f := newHandlerFixture(t)
	alice := f.connect(t, "alice", "s1")
	carol := f.connect(t, "carol", "s3")

	_, gameID := f.openRoom(t, alice, "alice")

	f.say(t, carol, "carol", protocol.EventSpectateGame, protocol.GameRequest{GameID: gameID})
	types := carol.eventTypes(t)
	require.Equal(t, []string{protocol.EventSpectatingStarted, protocol.EventGameStateUpdate}, types)

	var update protocol.GameStateUpdate
	unmarshalPayload(t, carol.envelopes(t)[1].Payload, &update)
	assert.Equal(t, gameID, update.State.ID)
	carol.reset()

	t.Run("UnknownGame", func(t *testing.T) {
		f.say(t, carol, "carol", protocol.EventSpectateGame, protocol.GameRequest{GameID: "no-such-game"})
		assert.Equal(t, protocol.EventSpectateError, carol.lastEnvelope(t).Type)
	})
}

func TestHandlerRequestGameState(t *testing.T) {
	f := newHandlerFixture(t)
	alice := f.connect(t, "alice", "s1")
	_, gameID := f.openRoom(t, alice, "alice")

	f.say(t, alice, "alice", protocol.EventRequestGameState, protocol.GameRequest{GameID: gameID})
	last := alice.lastEnvelope(t)
	require.Equal(t, protocol.EventGameStateUpdate, last.Type)
	var update protocol.GameStateUpdate
	unmarshalPayload(t, last.Payload, &update)
	assert.Equal(t, game.StatusWaiting, update.State.Status)
	alice.reset()

	t.Run("UnknownGame", func(t *testing.T) {
		f.say(t, alice, "alice", protocol.EventRequestGameState, protocol.GameRequest{GameID: "no-such-game"})
		assert.Equal(t, protocol.EventGameError, alice.lastEnvelope(t).Type)
	})
}

func TestHandlerLeaveGame(t *testing.T) {
	f := newHandlerFixture(t)
	alice := f.connect(t, "alice", "s1")
	_, gameID := f.openRoom(t, alice, "alice")

	f.say(t, alice, "alice", protocol.EventLeaveGame, protocol.GameRequest{GameID: gameID})

	// The host walking out of a waiting room abandons it.
	rec, err := f.store.GetGame(gameID)
	require.NoError(t, err)
	assert.Equal(t, game.StatusAbandoned, rec.Status)
	_, ok := f.rooms.RoomByGame(gameID)
	assert.False(t, ok)
}

func TestHandlerBadInput(t *testing.T) {
	f := newHandlerFixture(t)
	alice := f.connect(t, "alice", "s1")

	t.Run("MalformedEnvelope", func(t *testing.T) {
		f.h.Handle(alice, "alice", []byte(`{not json`))
		last := alice.lastEnvelope(t)
		require.Equal(t, protocol.EventGameError, last.Type)
		var msg protocol.ErrorMessage
		unmarshalPayload(t, last.Payload, &msg)
		assert.Equal(t, "malformed message", msg.Error)
		alice.reset()
	})

	t.Run("UnknownEventType", func(t *testing.T) {
		f.say(t, alice, "alice", "teleportPiece", nil)
		last := alice.lastEnvelope(t)
		require.Equal(t, protocol.EventGameError, last.Type)
		var msg protocol.ErrorMessage
		unmarshalPayload(t, last.Payload, &msg)
		assert.Contains(t, msg.Error, "teleportPiece")
	})
}

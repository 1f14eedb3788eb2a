package gateway

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kumasanboshi/monster-buttle-sub001/internal/apperr"
	"github.com/kumasanboshi/monster-buttle-sub001/internal/battle"
	"github.com/kumasanboshi/monster-buttle-sub001/internal/engine"
	"github.com/kumasanboshi/monster-buttle-sub001/internal/monster"
	"github.com/kumasanboshi/monster-buttle-sub001/internal/room"
)

type gatewayOpts struct {
	timeout  time.Duration
	engine   battle.Engine
	roomOpts []room.Option
	observer Observer
}

func newTestGateway(t *testing.T, o gatewayOpts) *Gateway {
	t.Helper()

	if o.timeout == 0 {
		o.timeout = 5 * time.Second
	}
	catalog := monster.DefaultCatalog()
	if o.engine == nil {
		o.engine = engine.New(catalog)
	}

	rooms := room.NewStore(30*time.Minute, o.roomOpts...)
	battles := battle.NewCoordinator(o.engine, 0)
	gw := New(Config{TurnTimeout: o.timeout}, rooms, battles, catalog, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if o.observer != nil {
		gw.SetObserver(o.observer)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = gw.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return gw
}

func newTestConn(id string) *ClientConn {
	return &ClientConn{id: id, userID: "user-" + id, send: make(chan []byte, 256)}
}

func emit(t *testing.T, gw *Gateway, c *ClientConn, typ string, payload any) {
	t.Helper()
	b, err := json.Marshal(envelope(typ, payload))
	require.NoError(t, err)
	gw.Deliver(c, b)
}

func next(t *testing.T, c *ClientConn) Envelope {
	t.Helper()
	select {
	case b, ok := <-c.send:
		require.True(t, ok, "%s: connection closed", c.id)
		var env Envelope
		require.NoError(t, json.Unmarshal(b, &env))
		return env
	case <-time.After(2 * time.Second):
		t.Fatalf("%s: no message within 2s", c.id)
	}
	return Envelope{}
}

func expect[T any](t *testing.T, c *ClientConn, typ string) T {
	t.Helper()
	env := next(t, c)
	require.Equal(t, typ, env.Type, "%s got payload %s", c.id, env.Payload)

	var p T
	require.NoError(t, json.Unmarshal(env.Payload, &p))
	return p
}

func expectRaw(t *testing.T, c *ClientConn, typ string) json.RawMessage {
	t.Helper()
	env := next(t, c)
	require.Equal(t, typ, env.Type, "%s got payload %s", c.id, env.Payload)
	return env.Payload
}

func expectError(t *testing.T, c *ClientConn, code apperr.Code) {
	t.Helper()
	p := expect[ErrorPayload](t, c, EvError)
	assert.Equal(t, code, p.Code, p.Message)
}

func expectNothing(t *testing.T, c *ClientConn, wait time.Duration) {
	t.Helper()
	select {
	case b := <-c.send:
		t.Fatalf("%s: unexpected message %s", c.id, b)
	case <-time.After(wait):
	}
}

func connect(gw *Gateway, ids ...string) []*ClientConn {
	out := make([]*ClientConn, 0, len(ids))
	for _, id := range ids {
		c := newTestConn(id)
		gw.Connect(c)
		out = append(out, c)
	}
	return out
}

// pairUp creates a room for host and joins guest into it.
func pairUp(t *testing.T, gw *Gateway) (host, guest *ClientConn, roomID string) {
	t.Helper()
	cs := connect(gw, "host", "guest")
	host, guest = cs[0], cs[1]

	emit(t, gw, host, EvRoomCreate, RoomCreatePayload{})
	created := expect[RoomCreatedPayload](t, host, EvRoomCreated)
	require.NotEmpty(t, created.RoomID)
	require.Equal(t, room.StatusWaiting, created.RoomInfo.Status)

	emit(t, gw, guest, EvRoomJoin, RoomJoinPayload{RoomID: created.RoomID})
	joined := expect[RoomJoinedPayload](t, guest, EvRoomJoined)
	require.Equal(t, room.SlotGuest, joined.PlayerNumber)
	require.Equal(t, room.StatusPlaying, joined.RoomInfo.Status)

	opp := expect[OpponentJoinedPayload](t, host, EvOpponentJoined)
	require.NotNil(t, opp.RoomInfo.Guest)
	require.Equal(t, "guest", opp.RoomInfo.Guest.ConnectionID)

	return host, guest, created.RoomID
}

func startBattle(t *testing.T, gw *Gateway, host, guest *ClientConn, roomID string) {
	t.Helper()
	emit(t, gw, host, EvBattleStart, BattleStartPayload{RoomID: roomID, MonsterID: "zerich"})
	emit(t, gw, guest, EvBattleStart, BattleStartPayload{RoomID: roomID, MonsterID: "gardo"})

	for _, c := range []*ClientConn{host, guest} {
		st := expect[BattleStartedPayload](t, c, EvBattleStarted)
		require.Equal(t, roomID, st.RoomID)
		require.Equal(t, "zerich", st.Player1Monster.ID)
		require.Equal(t, "gardo", st.Player2Monster.ID)
		require.Equal(t, 1, st.InitialState.CurrentTurn)
		require.Equal(t, battle.Mid, st.InitialState.CurrentDistance)
	}
}

func cmds(first, second battle.CommandType) battle.TurnCommands {
	return battle.TurnCommands{First: battle.Command{Type: first}, Second: battle.Command{Type: second}}
}

func TestGateway_BothSubmitResolvesTurn(t *testing.T) {
	gw := newTestGateway(t, gatewayOpts{})
	host, guest, roomID := pairUp(t, gw)
	startBattle(t, gw, host, guest, roomID)

	emit(t, gw, host, EvCommandSubmit, CommandSubmitPayload{RoomID: roomID, Commands: battle.DefaultCommands})
	for _, c := range []*ClientConn{host, guest} {
		w := expect[WaitingCommandsPayload](t, c, EvWaitingCommands)
		assert.Equal(t, 1, w.TurnNumber)
	}

	emit(t, gw, guest, EvCommandSubmit, CommandSubmitPayload{RoomID: roomID, Commands: battle.DefaultCommands})

	hostRaw := expectRaw(t, host, EvTurnResult)
	guestRaw := expectRaw(t, guest, EvTurnResult)
	assert.JSONEq(t, string(hostRaw), string(guestRaw))

	var res TurnResultPayload
	require.NoError(t, json.Unmarshal(hostRaw, &res))
	assert.Equal(t, 1, res.TurnResult.TurnNumber)
	assert.Equal(t, battle.DefaultCommands, res.TurnResult.Player1Commands)
	assert.Equal(t, 2, res.NewState.CurrentTurn)
	assert.Equal(t, battle.Near, res.NewState.CurrentDistance)
}

func TestGateway_TimeoutAutoFillsDefault(t *testing.T) {
	gw := newTestGateway(t, gatewayOpts{timeout: 50 * time.Millisecond})
	host, guest, roomID := pairUp(t, gw)
	startBattle(t, gw, host, guest, roomID)

	emit(t, gw, host, EvCommandSubmit, CommandSubmitPayload{RoomID: roomID, Commands: cmds(battle.Retreat, battle.Retreat)})
	for _, c := range []*ClientConn{host, guest} {
		expect[WaitingCommandsPayload](t, c, EvWaitingCommands)
	}

	for _, c := range []*ClientConn{host, guest} {
		to := expect[CommandTimeoutPayload](t, c, EvCommandTimeout)
		assert.Equal(t, roomID, to.RoomID)
		assert.Equal(t, battle.Player2, to.TimedOutPlayer)
		assert.Equal(t, battle.DefaultCommands, to.AutoSelectedCommands)

		res := expect[TurnResultPayload](t, c, EvTurnResult)
		assert.Equal(t, 1, res.TurnResult.TurnNumber)
		assert.Equal(t, cmds(battle.Retreat, battle.Retreat), res.TurnResult.Player1Commands)
		assert.Equal(t, battle.DefaultCommands, res.TurnResult.Player2Commands)
	}
}

func TestGateway_TimeoutRepeatsLastCommands(t *testing.T) {
	gw := newTestGateway(t, gatewayOpts{timeout: 80 * time.Millisecond})
	host, guest, roomID := pairUp(t, gw)
	startBattle(t, gw, host, guest, roomID)

	emit(t, gw, host, EvCommandSubmit, CommandSubmitPayload{RoomID: roomID, Commands: cmds(battle.Retreat, battle.StanceDefensive)})
	emit(t, gw, guest, EvCommandSubmit, CommandSubmitPayload{RoomID: roomID, Commands: cmds(battle.Reflect, battle.Retreat)})

	for _, c := range []*ClientConn{host, guest} {
		expect[WaitingCommandsPayload](t, c, EvWaitingCommands)
		res := expect[TurnResultPayload](t, c, EvTurnResult)
		require.Equal(t, 1, res.TurnResult.TurnNumber)
	}

	for _, c := range []*ClientConn{host, guest} {
		p1 := expect[CommandTimeoutPayload](t, c, EvCommandTimeout)
		assert.Equal(t, battle.Player1, p1.TimedOutPlayer)
		assert.Equal(t, cmds(battle.Retreat, battle.StanceDefensive), p1.AutoSelectedCommands)

		p2 := expect[CommandTimeoutPayload](t, c, EvCommandTimeout)
		assert.Equal(t, battle.Player2, p2.TimedOutPlayer)
		assert.Equal(t, cmds(battle.Reflect, battle.Retreat), p2.AutoSelectedCommands)

		res := expect[TurnResultPayload](t, c, EvTurnResult)
		assert.Equal(t, 2, res.TurnResult.TurnNumber)
	}
}

func TestGateway_Surrender(t *testing.T) {
	gw := newTestGateway(t, gatewayOpts{})
	host, guest, roomID := pairUp(t, gw)
	startBattle(t, gw, host, guest, roomID)

	emit(t, gw, host, EvSurrender, RoomRefPayload{RoomID: roomID})

	for _, c := range []*ClientConn{host, guest} {
		raw := expectRaw(t, c, EvBattleFinished)
		var wire struct {
			Result struct {
				TurnHistory json.RawMessage `json:"turnHistory"`
			} `json:"result"`
		}
		require.NoError(t, json.Unmarshal(raw, &wire))
		assert.JSONEq(t, `[]`, string(wire.Result.TurnHistory), "no turn played yet")

		var fin BattleFinishedPayload
		require.NoError(t, json.Unmarshal(raw, &fin))
		assert.Equal(t, battle.Player2Win, fin.Result.ResultType)
		assert.Equal(t, battle.ReasonSurrender, fin.Reason)
		assert.True(t, fin.Result.FinalState.IsFinished)
	}

	emit(t, gw, host, EvCommandSubmit, CommandSubmitPayload{RoomID: roomID, Commands: battle.DefaultCommands})
	expectError(t, host, apperr.BattleNotStarted)

	emit(t, gw, guest, EvRoomInfo, RoomRefPayload{RoomID: roomID})
	info := expect[room.Info](t, guest, EvRoomInfo)
	assert.Equal(t, room.StatusFinished, info.Status)
}

func TestGateway_GuestDisconnectMidBattle(t *testing.T) {
	gw := newTestGateway(t, gatewayOpts{})
	host, guest, roomID := pairUp(t, gw)
	startBattle(t, gw, host, guest, roomID)

	gw.Disconnect(guest)

	dc := expect[RoomRefPayload](t, host, EvOpponentDisconnected)
	assert.Equal(t, roomID, dc.RoomID)

	fin := expect[BattleFinishedPayload](t, host, EvBattleFinished)
	assert.Equal(t, battle.Player1Win, fin.Result.ResultType)
	assert.Equal(t, battle.ReasonDisconnect, fin.Reason)

	left := expect[OpponentLeftPayload](t, host, EvOpponentLeft)
	require.NotNil(t, left.RoomInfo)
	assert.Equal(t, room.StatusWaiting, left.RoomInfo.Status)
	assert.Nil(t, left.RoomInfo.Guest)
}

func TestGateway_LeaveMidBattleCountsAsDisconnect(t *testing.T) {
	gw := newTestGateway(t, gatewayOpts{})
	host, guest, roomID := pairUp(t, gw)
	startBattle(t, gw, host, guest, roomID)

	emit(t, gw, host, EvRoomLeave, RoomLeavePayload{})

	expect[RoomRefPayload](t, guest, EvOpponentDisconnected)
	fin := expect[BattleFinishedPayload](t, guest, EvBattleFinished)
	assert.Equal(t, battle.Player2Win, fin.Result.ResultType)
	assert.Equal(t, battle.ReasonDisconnect, fin.Reason)

	left := expect[OpponentLeftPayload](t, guest, EvOpponentLeft)
	assert.Nil(t, left.RoomInfo, "host leaving closes the room")

	hostFin := expect[BattleFinishedPayload](t, host, EvBattleFinished)
	assert.Equal(t, battle.ReasonDisconnect, hostFin.Reason)

	emit(t, gw, guest, EvRoomInfo, RoomRefPayload{RoomID: roomID})
	expectError(t, guest, apperr.RoomNotFound)
}

func TestGateway_DepartureClearsPendingSelection(t *testing.T) {
	gw := newTestGateway(t, gatewayOpts{})
	host, guest, roomID := pairUp(t, gw)

	emit(t, gw, host, EvBattleStart, BattleStartPayload{RoomID: roomID, MonsterID: "zerich"})
	emit(t, gw, guest, EvRoomLeave, RoomLeavePayload{})
	left := expect[OpponentLeftPayload](t, host, EvOpponentLeft)
	require.NotNil(t, left.RoomInfo)
	assert.Empty(t, left.RoomInfo.Host.SelectedMonsterID)

	newcomer := connect(gw, "newcomer")[0]
	emit(t, gw, newcomer, EvRoomJoin, RoomJoinPayload{RoomID: roomID})
	joined := expect[RoomJoinedPayload](t, newcomer, EvRoomJoined)
	assert.Empty(t, joined.RoomInfo.Host.SelectedMonsterID)
	expect[OpponentJoinedPayload](t, host, EvOpponentJoined)

	emit(t, gw, newcomer, EvBattleStart, BattleStartPayload{RoomID: roomID, MonsterID: "fynn"})
	expectNothing(t, host, 100*time.Millisecond)
	expectNothing(t, newcomer, 0)

	emit(t, gw, host, EvBattleStart, BattleStartPayload{RoomID: roomID, MonsterID: "mirra"})
	for _, c := range []*ClientConn{host, newcomer} {
		st := expect[BattleStartedPayload](t, c, EvBattleStarted)
		assert.Equal(t, "mirra", st.Player1Monster.ID)
		assert.Equal(t, "fynn", st.Player2Monster.ID)
	}
}

func TestGateway_UnknownMonsterRejectedOnPick(t *testing.T) {
	gw := newTestGateway(t, gatewayOpts{})
	host, guest, roomID := pairUp(t, gw)

	emit(t, gw, host, EvBattleStart, BattleStartPayload{RoomID: roomID, MonsterID: "nope"})
	expectError(t, host, apperr.InvalidPayload)

	emit(t, gw, host, EvRoomInfo, RoomRefPayload{RoomID: roomID})
	info := expect[room.Info](t, host, EvRoomInfo)
	assert.Empty(t, info.Host.SelectedMonsterID)

	emit(t, gw, guest, EvBattleStart, BattleStartPayload{RoomID: roomID, MonsterID: "gardo"})
	expectNothing(t, guest, 50*time.Millisecond)
	expectNothing(t, host, 0)

	emit(t, gw, host, EvBattleStart, BattleStartPayload{RoomID: roomID, MonsterID: "zerich"})
	for _, c := range []*ClientConn{host, guest} {
		st := expect[BattleStartedPayload](t, c, EvBattleStarted)
		assert.Equal(t, "zerich", st.Player1Monster.ID)
		assert.Equal(t, "gardo", st.Player2Monster.ID)
	}
}

func TestGateway_FinishedBattleClearsPicks(t *testing.T) {
	gw := newTestGateway(t, gatewayOpts{})
	host, guest, roomID := pairUp(t, gw)
	startBattle(t, gw, host, guest, roomID)

	emit(t, gw, guest, EvSurrender, RoomRefPayload{RoomID: roomID})
	expect[BattleFinishedPayload](t, host, EvBattleFinished)

	emit(t, gw, host, EvRoomInfo, RoomRefPayload{RoomID: roomID})
	info := expect[room.Info](t, host, EvRoomInfo)
	assert.Equal(t, room.StatusFinished, info.Status)
	assert.Empty(t, info.Host.SelectedMonsterID)
	require.NotNil(t, info.Guest)
	assert.Empty(t, info.Guest.SelectedMonsterID)
}

// knockout ends every battle on its first turn.
type knockout struct{}

func (knockout) Resolve(st battle.State, _, _ battle.TurnCommands) (battle.State, battle.TurnRecord, *battle.Outcome) {
	st.Player2.CurrentHP = 0
	return st, battle.TurnRecord{Player2HP: 0}, &battle.Outcome{ResultType: battle.Player1Win, Reason: battle.ReasonHPZero}
}

func (knockout) Surrender(_ battle.State, slot battle.Slot) battle.Outcome {
	return battle.Outcome{ResultType: battle.WinFor(battle.Other(slot)), Reason: battle.ReasonSurrender}
}

func TestGateway_TerminalTurnStopsTimer(t *testing.T) {
	gw := newTestGateway(t, gatewayOpts{timeout: 40 * time.Millisecond, engine: knockout{}})
	host, guest, roomID := pairUp(t, gw)
	startBattle(t, gw, host, guest, roomID)

	emit(t, gw, host, EvCommandSubmit, CommandSubmitPayload{RoomID: roomID, Commands: battle.DefaultCommands})
	emit(t, gw, guest, EvCommandSubmit, CommandSubmitPayload{RoomID: roomID, Commands: battle.DefaultCommands})

	for _, c := range []*ClientConn{host, guest} {
		expect[WaitingCommandsPayload](t, c, EvWaitingCommands)
		expect[TurnResultPayload](t, c, EvTurnResult)
		fin := expect[BattleFinishedPayload](t, c, EvBattleFinished)
		assert.Equal(t, battle.ReasonHPZero, fin.Reason)
		assert.Len(t, fin.Result.TurnHistory, 1)
	}

	expectNothing(t, host, 150*time.Millisecond)

	// A finished room can host a rematch.
	startBattle(t, gw, host, guest, roomID)
}

func TestGateway_Errors(t *testing.T) {
	cases := []struct {
		name string
		run  func(t *testing.T, gw *Gateway) *ClientConn
		want apperr.Code
	}{
		{
			name: "unknown event",
			run: func(t *testing.T, gw *Gateway) *ClientConn {
				c := connect(gw, "c")[0]
				emit(t, gw, c, "room:dance", nil)
				return c
			},
			want: apperr.InvalidPayload,
		},
		{
			name: "bad json",
			run: func(t *testing.T, gw *Gateway) *ClientConn {
				c := connect(gw, "c")[0]
				gw.Deliver(c, []byte("{not json"))
				return c
			},
			want: apperr.InvalidPayload,
		},
		{
			name: "payload of wrong shape",
			run: func(t *testing.T, gw *Gateway) *ClientConn {
				c := connect(gw, "c")[0]
				gw.Deliver(c, []byte(`{"type":"room:join","payload":{"roomId":42}}`))
				return c
			},
			want: apperr.InvalidPayload,
		},
		{
			name: "join unknown room",
			run: func(t *testing.T, gw *Gateway) *ClientConn {
				c := connect(gw, "c")[0]
				emit(t, gw, c, EvRoomJoin, RoomJoinPayload{RoomID: "missing"})
				return c
			},
			want: apperr.RoomNotFound,
		},
		{
			name: "leave without a room",
			run: func(t *testing.T, gw *Gateway) *ClientConn {
				c := connect(gw, "c")[0]
				emit(t, gw, c, EvRoomLeave, RoomLeavePayload{})
				return c
			},
			want: apperr.NotInRoom,
		},
		{
			name: "create while in a room",
			run: func(t *testing.T, gw *Gateway) *ClientConn {
				host, _, _ := pairUp(t, gw)
				emit(t, gw, host, EvRoomCreate, RoomCreatePayload{})
				return host
			},
			want: apperr.AlreadyInRoom,
		},
		{
			name: "wrong password",
			run: func(t *testing.T, gw *Gateway) *ClientConn {
				cs := connect(gw, "host", "guest")
				emit(t, gw, cs[0], EvRoomCreate, RoomCreatePayload{Password: "secret"})
				created := expect[RoomCreatedPayload](t, cs[0], EvRoomCreated)
				require.True(t, created.RoomInfo.HasPassword)
				emit(t, gw, cs[1], EvRoomJoin, RoomJoinPayload{RoomID: created.RoomID, Password: "guess"})
				return cs[1]
			},
			want: apperr.WrongPassword,
		},
		{
			name: "third player",
			run: func(t *testing.T, gw *Gateway) *ClientConn {
				_, _, roomID := pairUp(t, gw)
				c := connect(gw, "third")[0]
				emit(t, gw, c, EvRoomJoin, RoomJoinPayload{RoomID: roomID})
				return c
			},
			want: apperr.RoomFull,
		},
		{
			name: "submit before battle",
			run: func(t *testing.T, gw *Gateway) *ClientConn {
				host, _, roomID := pairUp(t, gw)
				emit(t, gw, host, EvCommandSubmit, CommandSubmitPayload{RoomID: roomID, Commands: battle.DefaultCommands})
				return host
			},
			want: apperr.BattleNotStarted,
		},
		{
			name: "surrender before battle",
			run: func(t *testing.T, gw *Gateway) *ClientConn {
				host, _, roomID := pairUp(t, gw)
				emit(t, gw, host, EvSurrender, RoomRefPayload{RoomID: roomID})
				return host
			},
			want: apperr.BattleNotStarted,
		},
		{
			name: "unknown command type",
			run: func(t *testing.T, gw *Gateway) *ClientConn {
				host, guest, roomID := pairUp(t, gw)
				startBattle(t, gw, host, guest, roomID)
				emit(t, gw, host, EvCommandSubmit, CommandSubmitPayload{RoomID: roomID, Commands: cmds("DANCE", battle.Attack)})
				return host
			},
			want: apperr.InvalidCommand,
		},
		{
			name: "double submit",
			run: func(t *testing.T, gw *Gateway) *ClientConn {
				host, guest, roomID := pairUp(t, gw)
				startBattle(t, gw, host, guest, roomID)
				emit(t, gw, host, EvCommandSubmit, CommandSubmitPayload{RoomID: roomID, Commands: battle.DefaultCommands})
				expect[WaitingCommandsPayload](t, host, EvWaitingCommands)
				emit(t, gw, host, EvCommandSubmit, CommandSubmitPayload{RoomID: roomID, Commands: battle.DefaultCommands})
				return host
			},
			want: apperr.AlreadySubmitted,
		},
		{
			name: "start while battle running",
			run: func(t *testing.T, gw *Gateway) *ClientConn {
				host, guest, roomID := pairUp(t, gw)
				startBattle(t, gw, host, guest, roomID)
				emit(t, gw, host, EvBattleStart, BattleStartPayload{RoomID: roomID, MonsterID: "fynn"})
				return host
			},
			want: apperr.InvalidCommand,
		},
		{
			name: "outsider submits",
			run: func(t *testing.T, gw *Gateway) *ClientConn {
				host, guest, roomID := pairUp(t, gw)
				startBattle(t, gw, host, guest, roomID)
				c := connect(gw, "outsider")[0]
				emit(t, gw, c, EvCommandSubmit, CommandSubmitPayload{RoomID: roomID, Commands: battle.DefaultCommands})
				return c
			},
			want: apperr.NotInRoom,
		},
		{
			name: "missing room id",
			run: func(t *testing.T, gw *Gateway) *ClientConn {
				c := connect(gw, "c")[0]
				emit(t, gw, c, EvRoomInfo, RoomRefPayload{})
				return c
			},
			want: apperr.InvalidPayload,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			gw := newTestGateway(t, gatewayOpts{})
			c := tc.run(t, gw)
			expectError(t, c, tc.want)
		})
	}
}

func TestGateway_SweepExpiresIdleRooms(t *testing.T) {
	var mu sync.Mutex
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}

	gw := newTestGateway(t, gatewayOpts{roomOpts: []room.Option{room.WithClock(clock)}})
	c := connect(gw, "c")[0]
	emit(t, gw, c, EvRoomCreate, RoomCreatePayload{})
	created := expect[RoomCreatedPayload](t, c, EvRoomCreated)

	mu.Lock()
	now = now.Add(31 * time.Minute)
	mu.Unlock()

	gw.Sweep()
	emit(t, gw, c, EvRoomInfo, RoomRefPayload{RoomID: created.RoomID})
	expectError(t, c, apperr.RoomNotFound)
}

type recordingObserver struct {
	mu       sync.Mutex
	updates  []battle.Snapshot
	finished []FinishedBattle
}

func (o *recordingObserver) SessionUpdated(_ context.Context, snap battle.Snapshot) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.updates = append(o.updates, snap)
}

func (o *recordingObserver) BattleFinished(_ context.Context, fb FinishedBattle) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.finished = append(o.finished, fb)
}

func (o *recordingObserver) counts() (int, int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.updates), len(o.finished)
}

func TestGateway_ObserverSeesLifecycle(t *testing.T) {
	obs := &recordingObserver{}
	gw := newTestGateway(t, gatewayOpts{observer: obs})
	host, guest, roomID := pairUp(t, gw)
	startBattle(t, gw, host, guest, roomID)

	emit(t, gw, guest, EvSurrender, RoomRefPayload{RoomID: roomID})
	expect[BattleFinishedPayload](t, host, EvBattleFinished)

	require.Eventually(t, func() bool {
		_, f := obs.counts()
		return f == 1
	}, time.Second, 5*time.Millisecond)

	obs.mu.Lock()
	defer obs.mu.Unlock()

	require.GreaterOrEqual(t, len(obs.updates), 2)
	assert.Equal(t, roomID, obs.updates[0].RoomID)
	last := obs.updates[len(obs.updates)-1]
	require.NotNil(t, last.Result)
	assert.Equal(t, battle.ReasonSurrender, last.Result.Reason)

	fb := obs.finished[0]
	assert.Equal(t, roomID, fb.RoomID)
	assert.Equal(t, battle.Player1Win, fb.Result.ResultType)
	assert.Equal(t, "zerich", fb.Player1Monster)
	assert.Equal(t, "gardo", fb.Player2Monster)
	assert.Equal(t, "user-host", fb.Player1User)
	assert.Equal(t, "user-guest", fb.Player2User)
}

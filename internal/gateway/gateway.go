// Package gateway is the websocket side of the battle server.
//
// Rooms, battle sessions, monster selections and turn timers are only ever
// mutated from the reactor goroutine started by Run. Socket readers, timer
// callbacks and the sweeper just post events into its inbox.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/kumasanboshi/monster-buttle-sub001/internal/apperr"
	"github.com/kumasanboshi/monster-buttle-sub001/internal/battle"
	"github.com/kumasanboshi/monster-buttle-sub001/internal/monster"
	"github.com/kumasanboshi/monster-buttle-sub001/internal/room"
)

const DefaultTurnTimeout = 30 * time.Second

const inboxSize = 256

var (
	errInvalidJSON      = apperr.New(apperr.InvalidPayload, "invalid json")
	errInvalidPayload   = apperr.New(apperr.InvalidPayload, "invalid payload")
	errMissingRoomID    = apperr.New(apperr.InvalidPayload, "roomId is required")
	errInvalidCommand   = apperr.New(apperr.InvalidCommand, "unknown command type")
	errBattleInProgress = apperr.New(apperr.InvalidCommand, "battle already in progress")
)

type Config struct {
	TurnTimeout time.Duration
}

type eventKind int

const (
	evConnect eventKind = iota
	evMessage
	evDisconnect
	evTimer
	evSweep
)

type event struct {
	kind eventKind
	conn *ClientConn
	data []byte

	roomID string
	token  uint64
}

// selection holds each slot's monster pick until both are in.
type selection [2]string

func (s selection) complete() bool { return s[0] != "" && s[1] != "" }

type handlerFunc func(ctx context.Context, c *ClientConn, raw json.RawMessage) error

type Gateway struct {
	cfg      Config
	log      *slog.Logger
	tracer   trace.Tracer
	rooms    *room.Store
	battles  *battle.Coordinator
	catalog  *monster.Catalog
	observer Observer
	now      func() time.Time

	inbox chan event
	done  chan struct{}

	// reactor-only
	conns      map[string]*ClientConn
	selections map[string]selection
	timers     *timerSet
	handlers   map[string]handlerFunc
}

func New(cfg Config, rooms *room.Store, battles *battle.Coordinator, catalog *monster.Catalog, log *slog.Logger) *Gateway {
	if cfg.TurnTimeout <= 0 {
		cfg.TurnTimeout = DefaultTurnTimeout
	}
	if log == nil {
		log = slog.Default()
	}

	g := &Gateway{
		cfg:        cfg,
		log:        log,
		tracer:     otel.Tracer("github.com/kumasanboshi/monster-buttle-sub001/internal/gateway"),
		rooms:      rooms,
		battles:    battles,
		catalog:    catalog,
		observer:   nopObserver{},
		now:        time.Now,
		inbox:      make(chan event, inboxSize),
		done:       make(chan struct{}),
		conns:      make(map[string]*ClientConn),
		selections: make(map[string]selection),
	}
	g.timers = newTimerSet(func(roomID string, token uint64) {
		g.post(event{kind: evTimer, roomID: roomID, token: token})
	})
	g.handlers = map[string]handlerFunc{
		EvRoomCreate:    handle(g.roomCreate),
		EvRoomJoin:      handle(g.roomJoin),
		EvRoomLeave:     handle(g.roomLeave),
		EvRoomInfo:      handle(g.roomInfo),
		EvBattleStart:   handle(g.battleStart),
		EvCommandSubmit: handle(g.commandSubmit),
		EvSurrender:     handle(g.surrender),
	}
	rooms.SetExpireHook(g.roomExpired)
	return g
}

// SetObserver must be called before Run.
func (g *Gateway) SetObserver(o Observer) {
	if o == nil {
		o = nopObserver{}
	}
	g.observer = o
}

// handle decodes the payload into T before calling fn. An absent or null
// payload leaves T at its zero value.
func handle[T any](fn func(context.Context, *ClientConn, T) error) handlerFunc {
	return func(ctx context.Context, c *ClientConn, raw json.RawMessage) error {
		var p T
		if len(raw) > 0 && !bytes.Equal(raw, []byte("null")) {
			if err := json.Unmarshal(raw, &p); err != nil {
				return errInvalidPayload
			}
		}
		return fn(ctx, c, p)
	}
}

// Run is the reactor loop. It returns nil once ctx is cancelled.
func (g *Gateway) Run(ctx context.Context) error {
	defer close(g.done)
	defer g.timers.StopAll()

	g.log.Info("gateway reactor started", "turn_timeout", g.cfg.TurnTimeout)
	for {
		select {
		case <-ctx.Done():
			for id, c := range g.conns {
				c.Close()
				delete(g.conns, id)
			}
			g.log.Info("gateway reactor stopped")
			return nil
		case ev := <-g.inbox:
			g.process(ctx, ev)
		}
	}
}

func (g *Gateway) post(ev event) {
	select {
	case g.inbox <- ev:
	case <-g.done:
	}
}

func (g *Gateway) Connect(c *ClientConn) { g.post(event{kind: evConnect, conn: c}) }

func (g *Gateway) Deliver(c *ClientConn, data []byte) {
	g.post(event{kind: evMessage, conn: c, data: data})
}

func (g *Gateway) Disconnect(c *ClientConn) { g.post(event{kind: evDisconnect, conn: c}) }

// Sweep asks the reactor to drop rooms idle past their TTL.
func (g *Gateway) Sweep() { g.post(event{kind: evSweep}) }

// RunSweeper calls Sweep every interval until ctx is cancelled.
func (g *Gateway) RunSweeper(ctx context.Context, every time.Duration) error {
	t := time.NewTicker(every)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			g.Sweep()
		}
	}
}

func (g *Gateway) process(ctx context.Context, ev event) {
	switch ev.kind {
	case evConnect:
		g.conns[ev.conn.id] = ev.conn
	case evMessage:
		g.dispatch(ctx, ev.conn, ev.data)
	case evDisconnect:
		g.disconnect(ctx, ev.conn)
	case evTimer:
		g.turnTimedOut(ctx, ev.roomID, ev.token)
	case evSweep:
		if n := g.rooms.CleanupExpiredRooms(); n > 0 {
			g.log.InfoContext(ctx, "expired rooms removed", "count", n)
		}
	}
}

func (g *Gateway) dispatch(ctx context.Context, c *ClientConn, data []byte) {
	if cur, ok := g.conns[c.id]; !ok || cur != c || c.gone {
		return
	}

	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		g.sendError(ctx, c, errInvalidJSON)
		return
	}

	ctx, span := g.tracer.Start(ctx, "ws "+env.Type,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("ws.event", env.Type),
			attribute.String("ws.conn_id", c.id),
		),
	)
	defer span.End()

	h, ok := g.handlers[env.Type]
	if !ok {
		span.SetStatus(codes.Error, "unknown event")
		g.sendError(ctx, c, apperr.New(apperr.InvalidPayload, fmt.Sprintf("unknown event type %q", env.Type)))
		return
	}
	if err := h(ctx, c, env.Payload); err != nil {
		span.SetStatus(codes.Error, err.Error())
		g.sendError(ctx, c, err)
	}
}

func (g *Gateway) roomCreate(ctx context.Context, c *ClientConn, p RoomCreatePayload) error {
	if _, ok := g.rooms.FindRoomByConnectionID(c.id); ok {
		return room.ErrAlreadyInRoom
	}

	r := g.rooms.CreateRoom(c.id, p.Password)
	g.send(ctx, c, envelope(EvRoomCreated, RoomCreatedPayload{RoomID: r.ID, RoomInfo: r.Info()}))
	g.log.InfoContext(ctx, "room created", "room", r.ID, "conn", c.id, "password", r.HasPassword())
	return nil
}

func (g *Gateway) roomJoin(ctx context.Context, c *ClientConn, p RoomJoinPayload) error {
	if p.RoomID == "" {
		return errMissingRoomID
	}
	if _, ok := g.rooms.FindRoomByConnectionID(c.id); ok {
		return room.ErrAlreadyInRoom
	}

	r, err := g.rooms.JoinRoom(p.RoomID, c.id, p.Password)
	if err != nil {
		return err
	}

	info := r.Info()
	g.send(ctx, c, envelope(EvRoomJoined, RoomJoinedPayload{RoomInfo: info, PlayerNumber: room.SlotGuest}))
	g.sendTo(ctx, r.Host.ConnectionID, envelope(EvOpponentJoined, OpponentJoinedPayload{RoomInfo: info}))
	g.log.InfoContext(ctx, "room joined", "room", r.ID, "conn", c.id)
	return nil
}

func (g *Gateway) roomLeave(ctx context.Context, c *ClientConn, _ RoomLeavePayload) error {
	r, ok := g.rooms.FindRoomByConnectionID(c.id)
	if !ok {
		return room.ErrNotInRoom
	}
	g.depart(ctx, c, r)
	return nil
}

func (g *Gateway) roomInfo(ctx context.Context, c *ClientConn, p RoomRefPayload) error {
	if p.RoomID == "" {
		return errMissingRoomID
	}
	info, ok := g.rooms.GetRoomInfo(p.RoomID)
	if !ok {
		return room.ErrRoomNotFound
	}
	g.send(ctx, c, envelope(EvRoomInfo, info))
	return nil
}

// battleStart records the sender's pick and starts the battle once both
// slots have one.
func (g *Gateway) battleStart(ctx context.Context, c *ClientConn, p BattleStartPayload) error {
	if p.RoomID == "" || p.MonsterID == "" {
		return apperr.New(apperr.InvalidPayload, "roomId and monsterId are required")
	}
	slot, err := g.rooms.SlotOf(p.RoomID, c.id)
	if err != nil {
		return err
	}
	if g.battles.Active(p.RoomID) {
		return errBattleInProgress
	}
	if _, err := g.catalog.Get(p.MonsterID); err != nil {
		return unknownMonster(p.MonsterID)
	}
	if err := g.rooms.SelectMonster(p.RoomID, c.id, p.MonsterID); err != nil {
		return err
	}

	sel := g.selections[p.RoomID]
	sel[slot-1] = p.MonsterID
	g.selections[p.RoomID] = sel
	if !sel.complete() {
		return nil
	}

	var mons [2]monster.Monster
	for i, id := range sel {
		m, err := g.catalog.Get(id)
		if err != nil {
			sel[i] = ""
			g.selections[p.RoomID] = sel
			g.rooms.ClearSelection(p.RoomID, room.Slot(i+1))
			return unknownMonster(id)
		}
		mons[i] = m
	}

	if err := g.rooms.MarkPlaying(p.RoomID); err != nil {
		return err
	}
	r, ok := g.rooms.GetRoom(p.RoomID)
	if !ok {
		return room.ErrRoomNotFound
	}

	sess := g.battles.StartBattle(r, mons[0], mons[1])
	delete(g.selections, r.ID)

	g.broadcast(ctx, r, envelope(EvBattleStarted, BattleStartedPayload{
		RoomID:         r.ID,
		Player1Monster: sess.Player1Monster,
		Player2Monster: sess.Player2Monster,
		InitialState:   sess.State,
	}))
	g.timers.Arm(r.ID, g.cfg.TurnTimeout)
	g.publish(ctx, r.ID)

	g.log.InfoContext(ctx, "battle started", "room", r.ID, "player1", mons[0].ID, "player2", mons[1].ID)
	return nil
}

func (g *Gateway) commandSubmit(ctx context.Context, c *ClientConn, p CommandSubmitPayload) error {
	if p.RoomID == "" {
		return errMissingRoomID
	}
	slot, err := g.rooms.SlotOf(p.RoomID, c.id)
	if err != nil {
		return err
	}
	if !g.battles.Active(p.RoomID) {
		return battle.ErrBattleNotStarted
	}
	if !p.Commands.Valid() {
		return errInvalidCommand
	}

	ready, err := g.battles.SubmitCommands(p.RoomID, slot, p.Commands)
	if err != nil {
		return err
	}
	if !ready {
		sess, _ := g.battles.Session(p.RoomID)
		g.broadcastRoom(ctx, p.RoomID, envelope(EvWaitingCommands, WaitingCommandsPayload{
			RoomID:     p.RoomID,
			TurnNumber: sess.State.CurrentTurn,
		}))
		return nil
	}

	g.timers.Cancel(p.RoomID)
	g.resolveTurn(ctx, p.RoomID)
	return nil
}

func (g *Gateway) surrender(ctx context.Context, c *ClientConn, p RoomRefPayload) error {
	if p.RoomID == "" {
		return errMissingRoomID
	}
	slot, err := g.rooms.SlotOf(p.RoomID, c.id)
	if err != nil {
		return err
	}

	res, err := g.battles.Surrender(p.RoomID, slot)
	if err != nil {
		return err
	}
	g.finish(ctx, p.RoomID, res)
	return nil
}

// turnTimedOut auto-fills every slot that has not submitted with its last
// commands and resolves the turn.
func (g *Gateway) turnTimedOut(ctx context.Context, roomID string, token uint64) {
	if !g.timers.Claim(roomID, token) {
		return
	}
	if !g.battles.Active(roomID) {
		return
	}

	ctx, span := g.tracer.Start(ctx, "turn timeout", trace.WithAttributes(attribute.String("room.id", roomID)))
	defer span.End()

	for _, slot := range []battle.Slot{battle.Player1, battle.Player2} {
		if g.battles.Submitted(roomID, slot) {
			continue
		}
		cmds := g.battles.LastCommands(roomID, slot)
		if _, err := g.battles.SubmitCommands(roomID, slot, cmds); err != nil {
			span.SetStatus(codes.Error, err.Error())
			g.log.WarnContext(ctx, "auto-fill rejected", "room", roomID, "slot", slot, "err", err)
			return
		}
		g.broadcastRoom(ctx, roomID, envelope(EvCommandTimeout, CommandTimeoutPayload{
			RoomID:               roomID,
			TimedOutPlayer:       slot,
			AutoSelectedCommands: cmds,
		}))
		g.log.InfoContext(ctx, "turn timed out", "room", roomID, "slot", slot)
	}

	g.resolveTurn(ctx, roomID)
}

func (g *Gateway) resolveTurn(ctx context.Context, roomID string) {
	out, err := g.battles.ExecuteTurn(roomID)
	if err != nil {
		g.log.WarnContext(ctx, "turn not resolved", "room", roomID, "err", err)
		return
	}

	g.broadcastRoom(ctx, roomID, envelope(EvTurnResult, TurnResultPayload{
		RoomID:     roomID,
		TurnResult: out.TurnResult,
		NewState:   out.NewState,
	}))

	if out.Result != nil {
		g.finish(ctx, roomID, *out.Result)
		return
	}

	g.rooms.Touch(roomID)
	g.timers.Arm(roomID, g.cfg.TurnTimeout)
	g.publish(ctx, roomID)
}

// finish broadcasts the result and tears the session down.
func (g *Gateway) finish(ctx context.Context, roomID string, res battle.Result) {
	g.timers.Cancel(roomID)

	g.broadcastRoom(ctx, roomID, envelope(EvBattleFinished, BattleFinishedPayload{
		RoomID: roomID,
		Result: res,
		Reason: res.Reason,
	}))

	g.publish(ctx, roomID)
	if sess, ok := g.battles.Session(roomID); ok {
		g.observer.BattleFinished(ctx, FinishedBattle{
			RoomID:         roomID,
			Result:         res,
			Player1Monster: sess.Player1Monster.ID,
			Player2Monster: sess.Player2Monster.ID,
			Player1User:    g.userOf(sess.Players[0]),
			Player2User:    g.userOf(sess.Players[1]),
			FinishedAt:     g.now(),
		})
	}

	g.battles.RemoveRoom(roomID)
	g.rooms.MarkFinished(roomID)
	g.dropSelection(roomID)

	g.log.InfoContext(ctx, "battle finished",
		"room", roomID,
		"result", res.ResultType,
		"reason", res.Reason,
		"turns", len(res.TurnHistory),
	)
}

// depart handles a participant leaving r, by request or by disconnect.
func (g *Gateway) depart(ctx context.Context, c *ClientConn, r room.Room) {
	p, ok := r.Participant(c.id)
	if !ok {
		return
	}

	if out, ok := g.battles.HandleDisconnect(r.ID, p.Slot); ok {
		g.timers.Cancel(r.ID)
		g.broadcastExcept(ctx, r, c.id, envelope(EvOpponentDisconnected, RoomRefPayload{RoomID: r.ID}))
		g.finish(ctx, r.ID, out.Result)
	}

	g.rooms.LeaveRoom(r.ID, c.id)
	g.dropSelection(r.ID)

	switch p.Slot {
	case room.SlotGuest:
		if info, ok := g.rooms.GetRoomInfo(r.ID); ok {
			g.sendTo(ctx, r.Host.ConnectionID, envelope(EvOpponentLeft, OpponentLeftPayload{RoomInfo: &info}))
		}
	case room.SlotHost:
		g.timers.Cancel(r.ID)
		g.battles.RemoveRoom(r.ID)
		if r.Guest != nil {
			g.sendTo(ctx, r.Guest.ConnectionID, envelope(EvOpponentLeft, OpponentLeftPayload{}))
		}
	}
	g.log.InfoContext(ctx, "left room", "room", r.ID, "conn", c.id, "slot", p.Slot)
}

func (g *Gateway) disconnect(ctx context.Context, c *ClientConn) {
	if cur, ok := g.conns[c.id]; !ok || cur != c {
		c.Close()
		return
	}

	c.gone = true
	if r, ok := g.rooms.FindRoomByConnectionID(c.id); ok {
		g.depart(ctx, c, r)
	}
	delete(g.conns, c.id)
	c.Close()
}

// roomExpired runs on the reactor, from the sweep.
func (g *Gateway) roomExpired(roomID string) {
	g.timers.Cancel(roomID)
	g.battles.RemoveRoom(roomID)
	delete(g.selections, roomID)
}

// dropSelection forgets both pending picks, here and in the room.
func (g *Gateway) dropSelection(roomID string) {
	delete(g.selections, roomID)
	g.rooms.ClearSelections(roomID)
}

func unknownMonster(id string) error {
	return apperr.New(apperr.InvalidPayload, fmt.Sprintf("unknown monster %q", id))
}

func (g *Gateway) publish(ctx context.Context, roomID string) {
	if snap, ok := g.battles.Snapshot(roomID); ok {
		g.observer.SessionUpdated(ctx, snap)
	}
}

func (g *Gateway) userOf(connID string) string {
	if c, ok := g.conns[connID]; ok {
		return c.userID
	}
	return ""
}

func (g *Gateway) sendError(ctx context.Context, c *ClientConn, err error) {
	ae, ok := apperr.As(err)
	if !ok {
		g.log.ErrorContext(ctx, "unexpected handler error", "conn", c.id, "err", err)
		ae = apperr.New(apperr.InvalidPayload, err.Error())
	}
	g.send(ctx, c, envelope(EvError, ErrorPayload{Code: ae.Code, Message: ae.Message}))
}

func (g *Gateway) send(ctx context.Context, c *ClientConn, env Envelope) {
	b, _ := json.Marshal(env)
	g.sendRaw(ctx, c, b)
}

func (g *Gateway) sendRaw(ctx context.Context, c *ClientConn, b []byte) {
	if c == nil || c.gone {
		return
	}
	if !c.enqueue(b) {
		g.log.WarnContext(ctx, "client send buffer full, dropping message", "conn", c.id)
	}
}

func (g *Gateway) sendTo(ctx context.Context, connID string, env Envelope) {
	g.send(ctx, g.conns[connID], env)
}

// broadcast marshals once so every participant gets identical bytes.
func (g *Gateway) broadcast(ctx context.Context, r room.Room, env Envelope) {
	g.broadcastExcept(ctx, r, "", env)
}

func (g *Gateway) broadcastExcept(ctx context.Context, r room.Room, skip string, env Envelope) {
	b, _ := json.Marshal(env)
	for _, id := range r.ConnectionIDs() {
		if id == skip {
			continue
		}
		g.sendRaw(ctx, g.conns[id], b)
	}
}

func (g *Gateway) broadcastRoom(ctx context.Context, roomID string, env Envelope) {
	if r, ok := g.rooms.GetRoom(roomID); ok {
		g.broadcast(ctx, r, env)
	}
}

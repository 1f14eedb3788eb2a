package battle

import (
	"sync"
	"time"

	"github.com/kumasanboshi/monster-buttle-sub001/internal/apperr"
	"github.com/kumasanboshi/monster-buttle-sub001/internal/monster"
	"github.com/kumasanboshi/monster-buttle-sub001/internal/room"
)

var (
	ErrBattleNotStarted = apperr.New(apperr.BattleNotStarted, "battle not started")
	ErrAlreadySubmitted = apperr.New(apperr.AlreadySubmitted, "commands already submitted for this turn")
	ErrNotReady         = apperr.New(apperr.NotReady, "both players must submit before the turn resolves")
)

// DefaultBattleTime is the battle clock, in seconds, when none is configured.
const DefaultBattleTime = 120

// Coordinator owns one battle session per room.
//
// It never resolves a turn on its own: SubmitCommands only reports whether
// both slots are in, and the caller decides when to ExecuteTurn.
type Coordinator struct {
	mu       sync.Mutex
	sessions map[string]*Session

	engine     Engine
	battleTime int
	now        func() time.Time
}

func NewCoordinator(engine Engine, battleTime int) *Coordinator {
	if battleTime <= 0 {
		battleTime = DefaultBattleTime
	}
	return &Coordinator{
		sessions:   make(map[string]*Session),
		engine:     engine,
		battleTime: battleTime,
		now:        time.Now,
	}
}

// TurnOutcome is what ExecuteTurn hands back to the transport.
type TurnOutcome struct {
	TurnResult TurnRecord
	NewState   State
	Result     *Result
}

// DisconnectOutcome is the terminal state produced by HandleDisconnect.
type DisconnectOutcome struct {
	State  State
	Result Result
}

// StartBattle creates (or replaces) the session for r.
func (c *Coordinator) StartBattle(r room.Room, m1, m2 monster.Monster) Session {
	s := &Session{
		RoomID: r.ID,
		State: State{
			Player1:         initialPlayer(m1),
			Player2:         initialPlayer(m2),
			CurrentDistance: Mid,
			CurrentTurn:     1,
			RemainingTime:   c.battleTime,
		},
		History:        []TurnRecord{},
		Player1Monster: m1,
		Player2Monster: m2,
	}
	s.Players[0] = r.Host.ConnectionID
	if r.Guest != nil {
		s.Players[1] = r.Guest.ConnectionID
	}

	c.mu.Lock()
	c.sessions[r.ID] = s
	c.mu.Unlock()

	return s.copy()
}

func initialPlayer(m monster.Monster) PlayerState {
	return PlayerState{
		MonsterID:             m.ID,
		CurrentHP:             m.MaxHP,
		CurrentStance:         Normal,
		RemainingSpecialCount: m.SpecialCount,
		UsedReflectCount:      0,
	}
}

// SubmitCommands records slot's commands for the current turn and reports
// whether both slots have now submitted.
func (c *Coordinator) SubmitCommands(roomID string, slot Slot, cmds TurnCommands) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.sessions[roomID]
	if !s.active() {
		return false, ErrBattleNotStarted
	}
	if !s.barrier.put(slot, cmds) {
		return false, ErrAlreadySubmitted
	}
	return s.barrier.state() == BarrierBoth, nil
}

// Submitted reports whether slot already has commands in for the current turn.
func (c *Coordinator) Submitted(roomID string, slot Slot) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.sessions[roomID]
	return s.active() && s.barrier.has(slot)
}

// ExecuteTurn resolves the current turn through the engine.
func (c *Coordinator) ExecuteTurn(roomID string) (TurnOutcome, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.sessions[roomID]
	if !s.active() {
		return TurnOutcome{}, ErrBattleNotStarted
	}
	if s.barrier.state() != BarrierBoth {
		return TurnOutcome{}, ErrNotReady
	}

	p1 := s.barrier.get(Player1)
	p2 := s.barrier.get(Player2)
	turn := s.State.CurrentTurn

	next, record, outcome := c.engine.Resolve(s.State, p1, p2)
	record.TurnNumber = turn
	record.Player1Commands = p1
	record.Player2Commands = p2

	s.History = append(s.History, record)
	s.barrier.reset()

	next.CurrentTurn = turn
	if outcome == nil {
		next.CurrentTurn = turn + 1
		next.IsFinished = false
		s.State = next
		return TurnOutcome{TurnResult: record, NewState: next}, nil
	}

	next.IsFinished = true
	s.State = next
	res := s.finish(outcome.ResultType, outcome.Reason)
	return TurnOutcome{TurnResult: record, NewState: next, Result: &res}, nil
}

// LastCommands returns what slot played in the most recent completed turn,
// or DefaultCommands before the first one.
func (c *Coordinator) LastCommands(roomID string, slot Slot) TurnCommands {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.sessions[roomID]
	if s == nil || len(s.History) == 0 {
		return DefaultCommands
	}
	return s.History[len(s.History)-1].CommandsOf(slot)
}

// HandleDisconnect ends an active battle in favour of the slot that stayed.
// ok is false when there is nothing to end.
func (c *Coordinator) HandleDisconnect(roomID string, disconnected Slot) (DisconnectOutcome, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.sessions[roomID]
	if !s.active() {
		return DisconnectOutcome{}, false
	}
	s.State.IsFinished = true
	res := s.finish(WinFor(Other(disconnected)), ReasonDisconnect)
	return DisconnectOutcome{State: s.State, Result: res}, true
}

// Surrender ends an active battle with the engine's verdict for slot giving up.
func (c *Coordinator) Surrender(roomID string, slot Slot) (Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.sessions[roomID]
	if !s.active() {
		return Result{}, ErrBattleNotStarted
	}
	outcome := c.engine.Surrender(s.State, slot)
	s.State.IsFinished = true
	return s.finish(outcome.ResultType, ReasonSurrender), nil
}

// Session returns a copy of the room's session.
func (c *Coordinator) Session(roomID string) (Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.sessions[roomID]
	if !ok {
		return Session{}, false
	}
	return s.copy(), true
}

// Active reports whether the room has an unfinished battle.
func (c *Coordinator) Active(roomID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessions[roomID].active()
}

// RemoveRoom tears the session down. Must follow every terminal outcome.
func (c *Coordinator) RemoveRoom(roomID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.sessions, roomID)
}

func (c *Coordinator) Snapshot(roomID string) (Snapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.sessions[roomID]
	if !ok {
		return Snapshot{}, false
	}
	return s.snapshot(c.now()), true
}

func (s *Session) finish(rt ResultType, reason Reason) Result {
	res := Result{
		ResultType:  rt,
		FinalState:  s.State,
		TurnHistory: append([]TurnRecord{}, s.History...),
		Reason:      reason,
	}
	s.Result = &res
	return res
}

func (s *Session) copy() Session {
	cp := *s
	cp.History = append([]TurnRecord{}, s.History...)
	if s.Result != nil {
		r := *s.Result
		cp.Result = &r
	}
	return cp
}

package battle

import (
	"github.com/kumasanboshi/monster-buttle-sub001/internal/monster"
	"github.com/kumasanboshi/monster-buttle-sub001/internal/room"
)

// Slot is re-exported from room so both sides agree on seat numbers.
type Slot = room.Slot

const (
	Player1 = room.SlotHost
	Player2 = room.SlotGuest
)

// Other returns the opposing slot.
func Other(s Slot) Slot {
	if s == Player1 {
		return Player2
	}
	return Player1
}

type CommandType string

const (
	Advance         CommandType = "ADVANCE"
	Retreat         CommandType = "RETREAT"
	Attack          CommandType = "ATTACK"
	Special         CommandType = "SPECIAL"
	Reflect         CommandType = "REFLECT"
	StanceOffensive CommandType = "STANCE_OFFENSIVE"
	StanceDefensive CommandType = "STANCE_DEFENSIVE"
)

func (c CommandType) Valid() bool {
	switch c {
	case Advance, Retreat, Attack, Special, Reflect, StanceOffensive, StanceDefensive:
		return true
	}
	return false
}

type Command struct {
	Type CommandType `json:"type"`
}

// TurnCommands are the two actions a player takes in one turn, resolved in
// order.
type TurnCommands struct {
	First  Command `json:"first"`
	Second Command `json:"second"`
}

func (tc TurnCommands) Valid() bool {
	return tc.First.Type.Valid() && tc.Second.Type.Valid()
}

// DefaultCommands is what a stalled player plays before any turn completed.
var DefaultCommands = TurnCommands{
	First:  Command{Type: Advance},
	Second: Command{Type: Advance},
}

type Distance string

const (
	Near Distance = "NEAR"
	Mid  Distance = "MID"
	Far  Distance = "FAR"
)

type Stance string

const (
	Normal    Stance = "NORMAL"
	Offensive Stance = "OFFENSIVE"
	Defensive Stance = "DEFENSIVE"
)

type PlayerState struct {
	MonsterID             string `json:"monsterId"`
	CurrentHP             int    `json:"currentHp"`
	CurrentStance         Stance `json:"currentStance"`
	RemainingSpecialCount int    `json:"remainingSpecialCount"`
	UsedReflectCount      int    `json:"usedReflectCount"`
}

type State struct {
	Player1         PlayerState `json:"player1"`
	Player2         PlayerState `json:"player2"`
	CurrentDistance Distance    `json:"currentDistance"`
	CurrentTurn     int         `json:"currentTurn"`
	RemainingTime   int         `json:"remainingTime"`
	IsFinished      bool        `json:"isFinished"`
}

func (s *State) Player(slot Slot) *PlayerState {
	if slot == Player1 {
		return &s.Player1
	}
	return &s.Player2
}

// Effect is one observable thing that happened during a phase.
type Effect struct {
	Phase  int    `json:"phase"`
	Actor  Slot   `json:"actor"`
	Kind   string `json:"kind"`
	Target Slot   `json:"target,omitempty"`
	Damage int    `json:"damage,omitempty"`
	Detail string `json:"detail,omitempty"`
}

// TurnRecord is the immutable report of one resolved turn.
type TurnRecord struct {
	TurnNumber      int          `json:"turnNumber"`
	Player1Commands TurnCommands `json:"player1Commands"`
	Player2Commands TurnCommands `json:"player2Commands"`
	Effects         []Effect     `json:"effects"`
	Distance        Distance     `json:"distance"`
	Player1HP       int          `json:"player1Hp"`
	Player2HP       int          `json:"player2Hp"`
	Player1Stance   Stance       `json:"player1Stance"`
	Player2Stance   Stance       `json:"player2Stance"`
}

func (r TurnRecord) CommandsOf(slot Slot) TurnCommands {
	if slot == Player1 {
		return r.Player1Commands
	}
	return r.Player2Commands
}

type ResultType string

const (
	Player1Win ResultType = "PLAYER1_WIN"
	Player2Win ResultType = "PLAYER2_WIN"
	Draw       ResultType = "DRAW"
)

// WinFor is the result type that awards the win to slot.
func WinFor(slot Slot) ResultType {
	if slot == Player1 {
		return Player1Win
	}
	return Player2Win
}

type Reason string

const (
	ReasonHPZero     Reason = "hp_zero"
	ReasonDisconnect Reason = "disconnect"
	ReasonSurrender  Reason = "surrender"
	ReasonTimeUp     Reason = "time_up"
)

// Outcome is what the engine reports when a battle is over.
type Outcome struct {
	ResultType ResultType `json:"resultType"`
	Reason     Reason     `json:"reason"`
}

type Result struct {
	ResultType  ResultType   `json:"resultType"`
	FinalState  State        `json:"finalState"`
	TurnHistory []TurnRecord `json:"turnHistory"`
	Reason      Reason       `json:"reason"`
}

// PendingCommands is the wire view of the submission barrier.
type PendingCommands struct {
	Player1 *TurnCommands `json:"player1Commands"`
	Player2 *TurnCommands `json:"player2Commands"`
}

type Session struct {
	RoomID         string
	State          State
	History        []TurnRecord
	Player1Monster monster.Monster
	Player2Monster monster.Monster
	// Connection ids of host and guest at battle start.
	Players [2]string
	Result  *Result

	barrier barrier
}

func (s *Session) Pending() PendingCommands {
	return s.barrier.view()
}

func (s *Session) active() bool {
	return s != nil && !s.State.IsFinished
}

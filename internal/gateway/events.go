package gateway

import (
	"encoding/json"

	"github.com/kumasanboshi/monster-buttle-sub001/internal/apperr"
	"github.com/kumasanboshi/monster-buttle-sub001/internal/battle"
	"github.com/kumasanboshi/monster-buttle-sub001/internal/monster"
	"github.com/kumasanboshi/monster-buttle-sub001/internal/room"
)

// Envelope WS envelope: {"type":"...","payload":{...}}
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// client -> server
const (
	EvRoomCreate    = "room:create"
	EvRoomJoin      = "room:join"
	EvRoomLeave     = "room:leave"
	EvRoomInfo      = "room:info"
	EvBattleStart   = "battle:start"
	EvCommandSubmit = "battle:command_submit"
	EvSurrender     = "battle:surrender"
)

// server -> client
const (
	EvRoomCreated          = "room:created"
	EvRoomJoined           = "room:joined"
	EvOpponentJoined       = "room:opponent_joined"
	EvOpponentLeft         = "room:opponent_left"
	EvBattleStarted        = "battle:started"
	EvWaitingCommands      = "battle:waiting_commands"
	EvTurnResult           = "battle:turn_result"
	EvCommandTimeout       = "battle:command_timeout"
	EvBattleFinished       = "battle:finished"
	EvOpponentDisconnected = "battle:opponent_disconnected"
	EvError                = "error"
)

// incoming

type RoomCreatePayload struct {
	Password string `json:"password,omitempty"`
}

type RoomJoinPayload struct {
	RoomID   string `json:"roomId"`
	Password string `json:"password,omitempty"`
}

type RoomLeavePayload struct{}

type RoomRefPayload struct {
	RoomID string `json:"roomId"`
}

type BattleStartPayload struct {
	RoomID    string `json:"roomId"`
	MonsterID string `json:"monsterId"`
}

type CommandSubmitPayload struct {
	RoomID   string              `json:"roomId"`
	Commands battle.TurnCommands `json:"commands"`
}

// outgoing

type RoomCreatedPayload struct {
	RoomID   string    `json:"roomId"`
	RoomInfo room.Info `json:"roomInfo"`
}

type RoomJoinedPayload struct {
	RoomInfo     room.Info `json:"roomInfo"`
	PlayerNumber room.Slot `json:"playerNumber"`
}

type OpponentJoinedPayload struct {
	RoomInfo room.Info `json:"roomInfo"`
}

// OpponentLeftPayload carries a nil RoomInfo when the room was closed.
type OpponentLeftPayload struct {
	RoomInfo *room.Info `json:"roomInfo"`
}

type BattleStartedPayload struct {
	RoomID         string          `json:"roomId"`
	Player1Monster monster.Monster `json:"player1Monster"`
	Player2Monster monster.Monster `json:"player2Monster"`
	InitialState   battle.State    `json:"initialState"`
}

type WaitingCommandsPayload struct {
	RoomID     string `json:"roomId"`
	TurnNumber int    `json:"turnNumber"`
}

type TurnResultPayload struct {
	RoomID     string            `json:"roomId"`
	TurnResult battle.TurnRecord `json:"turnResult"`
	NewState   battle.State      `json:"newState"`
}

type CommandTimeoutPayload struct {
	RoomID               string              `json:"roomId"`
	TimedOutPlayer       battle.Slot         `json:"timedOutPlayer"`
	AutoSelectedCommands battle.TurnCommands `json:"autoSelectedCommands"`
}

type BattleFinishedPayload struct {
	RoomID string        `json:"roomId"`
	Result battle.Result `json:"result"`
	Reason battle.Reason `json:"reason"`
}

type ErrorPayload struct {
	Code    apperr.Code `json:"code"`
	Message string      `json:"message"`
}

func mustJSON(v any) json.RawMessage {
	b, _ := json.Marshal(v)
	return b
}

func envelope(typ string, payload any) Envelope {
	return Envelope{Type: typ, Payload: mustJSON(payload)}
}

package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kumasanboshi/monster-buttle-sub001/internal/auth"
	"github.com/kumasanboshi/monster-buttle-sub001/internal/battle"
	"github.com/kumasanboshi/monster-buttle-sub001/internal/monster"
	"github.com/kumasanboshi/monster-buttle-sub001/internal/room"
	"github.com/kumasanboshi/monster-buttle-sub001/internal/store"
)

type RoomReader interface {
	GetRoomInfo(roomID string) (room.Info, bool)
}

type SnapshotReader interface {
	Load(ctx context.Context, roomID string) (battle.Snapshot, bool, error)
}

type ResultReader interface {
	Latest(ctx context.Context, roomID string) (store.BattleRecord, bool, error)
}

// WSServer takes over an upgraded request for userID ("" when anonymous).
type WSServer interface {
	ServeWS(w http.ResponseWriter, r *http.Request, userID string)
}

type MonsterLister interface {
	All() []monster.Monster
}

type GameHandler struct {
	Rooms     RoomReader
	Snapshots SnapshotReader
	// Nil when no database is configured.
	Results  ResultReader
	Monsters MonsterLister
	WS       WSServer
	Tokens   TokenVerifier
	Log      *slog.Logger
}

func (h *GameHandler) ListMonsters(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"monsters": h.Monsters.All()})
}

func (h *GameHandler) GetRoom(c *gin.Context) {
	info, ok := h.Rooms.GetRoomInfo(c.Param("roomId"))
	if !ok {
		writeError(c, http.StatusNotFound, "ROOM_NOT_FOUND", "room not found")
		return
	}
	c.JSON(http.StatusOK, info)
}

type ResultResponse struct {
	ResultType     string          `json:"resultType"`
	Reason         string          `json:"reason"`
	Turns          int             `json:"turns"`
	Player1Monster string          `json:"player1Monster"`
	Player2Monster string          `json:"player2Monster"`
	TurnHistory    json.RawMessage `json:"turnHistory"`
	FinishedAt     time.Time       `json:"finishedAt"`
}

type BattleResponse struct {
	RoomID   string           `json:"roomId"`
	Snapshot *battle.Snapshot `json:"snapshot"`
	Result   *ResultResponse  `json:"result"`
}

// GetBattle reports the last persisted snapshot and, when a database is
// wired, the most recent recorded result for the room.
func (h *GameHandler) GetBattle(c *gin.Context) {
	ctx := c.Request.Context()
	roomID := c.Param("roomId")
	resp := BattleResponse{RoomID: roomID}

	snap, ok, err := h.Snapshots.Load(ctx, roomID)
	if err != nil {
		h.Log.ErrorContext(ctx, "load snapshot failed", "room_id", roomID, "err", err)
		writeError(c, http.StatusInternalServerError, "internal", "failed to load battle")
		return
	}
	if ok {
		resp.Snapshot = &snap
	}

	if h.Results != nil {
		rec, found, err := h.Results.Latest(ctx, roomID)
		if err != nil {
			h.Log.ErrorContext(ctx, "load result failed", "room_id", roomID, "err", err)
			writeError(c, http.StatusInternalServerError, "internal", "failed to load battle")
			return
		}
		if found {
			resp.Result = &ResultResponse{
				ResultType:     rec.ResultType,
				Reason:         rec.Reason,
				Turns:          rec.Turns,
				Player1Monster: rec.Player1Monster,
				Player2Monster: rec.Player2Monster,
				TurnHistory:    rec.TurnHistory,
				FinishedAt:     rec.FinishedAt,
			}
		}
	}

	if resp.Snapshot == nil && resp.Result == nil {
		writeError(c, http.StatusNotFound, "BATTLE_NOT_FOUND", "no battle recorded for room")
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ServeWS upgrades the request. A token is optional, browsers pass it as
// ?token= since they cannot set headers on the handshake.
func (h *GameHandler) ServeWS(c *gin.Context) {
	var userID string
	if token := c.Query("token"); token != "" {
		claims, err := h.Tokens.Verify(token)
		if err != nil {
			writeError(c, http.StatusUnauthorized, "unauthorized", "invalid token")
			return
		}
		userID = claims.UserID
	}
	h.WS.ServeWS(c.Writer, c.Request, userID)
}

var _ TokenVerifier = (*auth.Service)(nil)

package gateway

import (
	"context"
	"time"

	"github.com/kumasanboshi/monster-buttle-sub001/internal/battle"
)

// FinishedBattle is everything worth keeping about a battle once it ends.
type FinishedBattle struct {
	RoomID         string
	Result         battle.Result
	Player1Monster string
	Player2Monster string
	// Authenticated account ids; empty for anonymous connections.
	Player1User string
	Player2User string
	FinishedAt  time.Time
}

// Observer is notified from the reactor goroutine and must not block.
type Observer interface {
	SessionUpdated(ctx context.Context, snap battle.Snapshot)
	BattleFinished(ctx context.Context, fb FinishedBattle)
}

type nopObserver struct{}

func (nopObserver) SessionUpdated(context.Context, battle.Snapshot) {}
func (nopObserver) BattleFinished(context.Context, FinishedBattle)   {}

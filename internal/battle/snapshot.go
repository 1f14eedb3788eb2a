package battle

import "time"

// Snapshot is the serialisable view of a session that goes to Redis.
type Snapshot struct {
	RoomID string `json:"roomId"`

	State   State           `json:"state"`
	Pending PendingCommands `json:"pending"`
	History []TurnRecord    `json:"history"`

	Player1Monster string   `json:"player1Monster"`
	Player2Monster string   `json:"player2Monster"`
	Players        []string `json:"players"`

	Result  *Result `json:"result,omitempty"`
	SavedAt int64   `json:"savedAt"` // unix millis
}

func (s *Session) snapshot(now time.Time) Snapshot {
	snap := Snapshot{
		RoomID:         s.RoomID,
		State:          s.State,
		Pending:        s.barrier.view(),
		History:        append([]TurnRecord{}, s.History...),
		Player1Monster: s.Player1Monster.ID,
		Player2Monster: s.Player2Monster.ID,
		Players:        []string{s.Players[0], s.Players[1]},
		SavedAt:        now.UnixMilli(),
	}
	if s.Result != nil {
		r := *s.Result
		snap.Result = &r
	}
	return snap
}

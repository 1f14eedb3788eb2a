package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// BattleRecord is one finished battle as stored in battle_results.
type BattleRecord struct {
	ID             string
	RoomID         string
	ResultType     string
	Reason         string
	Turns          int
	Player1Monster string
	Player2Monster string
	// Empty for anonymous players; such slots get no stats.
	Player1User string
	Player2User string
	TurnHistory json.RawMessage
	FinishedAt  time.Time
}

// Standings maps a result type to how player 1 and player 2 fared.
func Standings(resultType string) (p1, p2 Standing, err error) {
	switch resultType {
	case "PLAYER1_WIN":
		return Won, Lost, nil
	case "PLAYER2_WIN":
		return Lost, Won, nil
	case "DRAW":
		return Drew, Drew, nil
	}
	return 0, 0, fmt.Errorf("unknown result type %q", resultType)
}

type ResultStore struct {
	db *pgxpool.Pool
}

func NewResultStore(db *pgxpool.Pool) *ResultStore {
	return &ResultStore{db: db}
}

// Save inserts the record and updates both players' stats in one transaction.
func (s *ResultStore) Save(ctx context.Context, rec BattleRecord) error {
	p1, p2, err := Standings(rec.ResultType)
	if err != nil {
		return err
	}
	rec.TurnHistory = historyOrEmpty(rec.TurnHistory)

	return pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO battle_results (
				id, room_id, result_type, reason, turns,
				player1_monster, player2_monster, player1_user, player2_user,
				turn_history, finished_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		`,
			rec.ID, rec.RoomID, rec.ResultType, rec.Reason, rec.Turns,
			rec.Player1Monster, rec.Player2Monster, nullable(rec.Player1User), nullable(rec.Player2User),
			rec.TurnHistory, rec.FinishedAt,
		)
		if err != nil {
			return fmt.Errorf("insert battle result: %w", err)
		}

		if rec.Player1User != "" {
			if err := recordStanding(ctx, tx, rec.Player1User, p1); err != nil {
				return fmt.Errorf("player1 stats: %w", err)
			}
		}
		if rec.Player2User != "" && rec.Player2User != rec.Player1User {
			if err := recordStanding(ctx, tx, rec.Player2User, p2); err != nil {
				return fmt.Errorf("player2 stats: %w", err)
			}
		}
		return nil
	})
}

// Latest returns the most recent stored result for a room.
func (s *ResultStore) Latest(ctx context.Context, roomID string) (BattleRecord, bool, error) {
	var (
		rec    BattleRecord
		p1, p2 *string
	)
	err := s.db.QueryRow(ctx, `
		SELECT id, room_id, result_type, reason, turns,
		       player1_monster, player2_monster, player1_user, player2_user,
		       turn_history, finished_at
		FROM battle_results
		WHERE room_id = $1
		ORDER BY finished_at DESC
		LIMIT 1
	`, roomID).Scan(
		&rec.ID, &rec.RoomID, &rec.ResultType, &rec.Reason, &rec.Turns,
		&rec.Player1Monster, &rec.Player2Monster, &p1, &p2,
		&rec.TurnHistory, &rec.FinishedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return BattleRecord{}, false, nil
	}
	if err != nil {
		return BattleRecord{}, false, err
	}
	if p1 != nil {
		rec.Player1User = *p1
	}
	if p2 != nil {
		rec.Player2User = *p2
	}
	return rec, true, nil
}

func historyOrEmpty(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 || string(raw) == "null" {
		return json.RawMessage("[]")
	}
	return raw
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

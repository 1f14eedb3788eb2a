package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PlayerStats struct {
	UserID    string    `json:"userId"`
	Wins      int       `json:"wins"`
	Losses    int       `json:"losses"`
	Draws     int       `json:"draws"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Standing is how one participant came out of a battle.
type Standing int

const (
	Lost Standing = iota
	Won
	Drew
)

type StatsStore struct {
	db *pgxpool.Pool
}

func NewStatsStore(db *pgxpool.Pool) *StatsStore {
	return &StatsStore{db: db}
}

func (s *StatsStore) Get(ctx context.Context, userID string) (PlayerStats, error) {
	var st PlayerStats
	err := s.db.QueryRow(ctx, `
		SELECT user_id, wins, losses, draws, updated_at
		FROM player_stats
		WHERE user_id=$1
	`, userID).Scan(&st.UserID, &st.Wins, &st.Losses, &st.Draws, &st.UpdatedAt)

	// a missing row just means no battles yet
	if errors.Is(err, pgx.ErrNoRows) {
		return PlayerStats{UserID: userID}, nil
	}
	if err != nil {
		return PlayerStats{}, err
	}
	return st, nil
}

const insertStatsSQL = `
	INSERT INTO player_stats (user_id, wins, losses, draws)
	VALUES ($1, 0, 0, 0)
	ON CONFLICT (user_id) DO NOTHING`

func initStats(ctx context.Context, tx pgx.Tx, userID string) error {
	_, err := tx.Exec(ctx, insertStatsSQL, userID)
	return err
}

func recordStanding(ctx context.Context, tx pgx.Tx, userID string, st Standing) error {
	var win, loss, draw int
	switch st {
	case Won:
		win = 1
	case Lost:
		loss = 1
	case Drew:
		draw = 1
	}
	_, err := tx.Exec(ctx, `
		INSERT INTO player_stats (user_id, wins, losses, draws, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (user_id) DO UPDATE SET
			wins = player_stats.wins + EXCLUDED.wins,
			losses = player_stats.losses + EXCLUDED.losses,
			draws = player_stats.draws + EXCLUDED.draws,
			updated_at = now()
	`, userID, win, loss, draw)
	return err
}

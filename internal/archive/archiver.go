// Package archive persists battle progress off the reactor goroutine.
//
// The gateway hands snapshots and final results to an Archiver; a single
// worker goroutine writes them to Redis and Postgres in arrival order.
package archive

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/kumasanboshi/monster-buttle-sub001/internal/battle"
	"github.com/kumasanboshi/monster-buttle-sub001/internal/gateway"
	"github.com/kumasanboshi/monster-buttle-sub001/internal/store"
)

const DefaultQueue = 256

const writeTimeout = 5 * time.Second

type SnapshotSaver interface {
	Save(ctx context.Context, snap battle.Snapshot) error
}

type ResultSaver interface {
	Save(ctx context.Context, rec store.BattleRecord) error
}

type job struct {
	snap   *battle.Snapshot
	record *store.BattleRecord
}

type Archiver struct {
	log     *slog.Logger
	tracer  trace.Tracer
	snaps   SnapshotSaver
	results ResultSaver

	jobs    chan job
	dropped atomic.Int64
}

var _ gateway.Observer = (*Archiver)(nil)

// New returns an Archiver. results may be nil, in which case finished
// battles only leave their final snapshot behind.
func New(snaps SnapshotSaver, results ResultSaver, queue int, log *slog.Logger) *Archiver {
	if queue <= 0 {
		queue = DefaultQueue
	}
	if log == nil {
		log = slog.Default()
	}
	return &Archiver{
		log:     log,
		tracer:  otel.Tracer("github.com/kumasanboshi/monster-buttle-sub001/internal/archive"),
		snaps:   snaps,
		results: results,
		jobs:    make(chan job, queue),
	}
}

func (a *Archiver) SessionUpdated(ctx context.Context, snap battle.Snapshot) {
	a.enqueue(ctx, job{snap: &snap})
}

func (a *Archiver) BattleFinished(ctx context.Context, fb gateway.FinishedBattle) {
	history, err := json.Marshal(fb.Result.TurnHistory)
	if err != nil {
		a.log.ErrorContext(ctx, "encode turn history", "room", fb.RoomID, "err", err)
		return
	}
	rec := store.BattleRecord{
		ID:             uuid.NewString(),
		RoomID:         fb.RoomID,
		ResultType:     string(fb.Result.ResultType),
		Reason:         string(fb.Result.Reason),
		Turns:          len(fb.Result.TurnHistory),
		Player1Monster: fb.Player1Monster,
		Player2Monster: fb.Player2Monster,
		Player1User:    fb.Player1User,
		Player2User:    fb.Player2User,
		TurnHistory:    history,
		FinishedAt:     fb.FinishedAt,
	}
	a.enqueue(ctx, job{record: &rec})
}

// Dropped counts jobs discarded because the queue was full.
func (a *Archiver) Dropped() int64 { return a.dropped.Load() }

func (a *Archiver) enqueue(ctx context.Context, j job) {
	select {
	case a.jobs <- j:
	default:
		a.dropped.Add(1)
		a.log.WarnContext(ctx, "archive queue full, dropping job")
	}
}

// Run writes queued jobs until ctx is cancelled, then flushes what is left.
func (a *Archiver) Run(ctx context.Context) error {
	for {
		select {
		case j := <-a.jobs:
			a.write(ctx, j)
		case <-ctx.Done():
			a.flush()
			return nil
		}
	}
}

func (a *Archiver) flush() {
	ctx := context.Background()
	for {
		select {
		case j := <-a.jobs:
			a.write(ctx, j)
		default:
			return
		}
	}
}

func (a *Archiver) write(parent context.Context, j job) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), writeTimeout)
	defer cancel()

	switch {
	case j.snap != nil:
		ctx, span := a.tracer.Start(ctx, "archive snapshot", trace.WithAttributes(
			attribute.String("room.id", j.snap.RoomID),
			attribute.Int("battle.turn", j.snap.State.CurrentTurn),
		))
		defer span.End()

		if err := a.snaps.Save(ctx, *j.snap); err != nil {
			span.SetStatus(codes.Error, err.Error())
			a.log.ErrorContext(ctx, "save snapshot", "room", j.snap.RoomID, "err", err)
		}

	case j.record != nil:
		if a.results == nil {
			return
		}
		ctx, span := a.tracer.Start(ctx, "archive result", trace.WithAttributes(
			attribute.String("room.id", j.record.RoomID),
			attribute.String("battle.result", j.record.ResultType),
		))
		defer span.End()

		if err := a.results.Save(ctx, *j.record); err != nil {
			span.SetStatus(codes.Error, err.Error())
			a.log.ErrorContext(ctx, "save battle result", "room", j.record.RoomID, "err", err)
			return
		}
		a.log.InfoContext(ctx, "battle result stored", "room", j.record.RoomID, "id", j.record.ID)
	}
}

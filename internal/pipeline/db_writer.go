package pipeline

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rawsignal/RivianMate-sub001/internal/domain"
)

// StateStore is the durable side of the pipeline.
type StateStore interface {
	UpsertVehicleState(ctx context.Context, st *domain.VehicleState) error
}

// DBWriter drains the db channel into the canonical state table. The
// upsert makes replayed or concurrent writes converge on one row.
type DBWriter struct {
	ch  <-chan *StateUpdate
	db  StateStore
	log *logrus.Entry
}

func NewDBWriter(ch <-chan *StateUpdate, db StateStore, log *logrus.Logger) *DBWriter {
	return &DBWriter{ch: ch, db: db, log: log.WithField("component", "db_writer")}
}

func (w *DBWriter) Run(ctx context.Context) {
	for {
		select {
		case msg, ok := <-w.ch:
			if !ok {
				return
			}
			w.write(ctx, msg)

		case <-ctx.Done():
			return
		}
	}
}

func (w *DBWriter) write(ctx context.Context, msg *StateUpdate) {
	err := w.db.UpsertVehicleState(ctx, msg.State)
	if err != nil {
		w.log.WithField("vehicle", msg.State.VehicleID).
			WithError(err).Warn("state upsert failed, retrying")
		time.Sleep(500 * time.Millisecond)
		if err = w.db.UpsertVehicleState(ctx, msg.State); err != nil {
			w.log.WithField("vehicle", msg.State.VehicleID).
				WithError(err).Error("state upsert permanently failed")
		}
	}
}

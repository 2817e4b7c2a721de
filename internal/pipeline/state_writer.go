package pipeline

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/rawsignal/RivianMate-sub001/internal/domain"
)

// StateMirror is the hot-cache side of the pipeline.
type StateMirror interface {
	MirrorState(ctx context.Context, accountID string, st *domain.VehicleState) error
}

// StateWriter mirrors canonical state into Redis so dashboards read
// without touching Postgres. Mirror failures are logged and dropped;
// the durable write path does not depend on this worker.
type StateWriter struct {
	ch    <-chan *StateUpdate
	redis StateMirror
	log   *logrus.Entry
}

func NewStateWriter(ch <-chan *StateUpdate, redis StateMirror, log *logrus.Logger) *StateWriter {
	return &StateWriter{ch: ch, redis: redis, log: log.WithField("component", "state_writer")}
}

func (w *StateWriter) Run(ctx context.Context) {
	for {
		select {
		case msg, ok := <-w.ch:
			if !ok {
				return
			}
			if err := w.redis.MirrorState(ctx, msg.AccountID, msg.State); err != nil {
				w.log.WithField("vehicle", msg.State.VehicleID).
					WithError(err).Warn("redis state mirror failed")
			}

		case <-ctx.Done():
			return
		}
	}
}

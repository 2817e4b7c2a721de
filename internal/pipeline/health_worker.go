package pipeline

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/rawsignal/RivianMate-sub001/internal/health"
	"github.com/rawsignal/RivianMate-sub001/internal/metrics"
)

// HealthWorker feeds every persisted state to the battery health
// recorder. Because it consumes the same dispatcher as the db writer it
// always observes the most recently merged state, never stale data.
type HealthWorker struct {
	ch       <-chan *StateUpdate
	recorder *health.Recorder
	log      *logrus.Entry
}

func NewHealthWorker(ch <-chan *StateUpdate, recorder *health.Recorder, log *logrus.Logger) *HealthWorker {
	return &HealthWorker{
		ch:       ch,
		recorder: recorder,
		log:      log.WithField("component", "health_worker"),
	}
}

func (w *HealthWorker) Run(ctx context.Context) {
	for {
		select {
		case msg, ok := <-w.ch:
			if !ok {
				return
			}
			recorded, err := w.recorder.MaybeRecord(ctx, msg.Vehicle, msg.State)
			if err != nil {
				w.log.WithField("vehicle", msg.Vehicle.ID).
					WithError(err).Warn("snapshot record failed")
				continue
			}
			if recorded {
				metrics.SnapshotsRecorded.Inc()
			}

		case <-ctx.Done():
			return
		}
	}
}

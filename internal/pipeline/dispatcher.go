package pipeline

import (
	"github.com/rawsignal/RivianMate-sub001/internal/domain"
	"github.com/rawsignal/RivianMate-sub001/internal/metrics"
)

// StateUpdate is one significant, merged canonical state on its way to
// the durable stores and the health recorder.
type StateUpdate struct {
	AccountID string
	Vehicle   *domain.Vehicle
	State     *domain.VehicleState
}

// Dispatcher fans significant updates out to the db writer, the redis
// state mirror, and the health recorder. Sends never block a poll
// cycle; a full channel drops the message and counts it.
type Dispatcher struct {
	DBChan     chan *StateUpdate
	StateChan  chan *StateUpdate
	HealthChan chan *StateUpdate
}

func NewDispatcher(dbSize, stateSize, healthSize int) *Dispatcher {
	return &Dispatcher{
		DBChan:     make(chan *StateUpdate, dbSize),
		StateChan:  make(chan *StateUpdate, stateSize),
		HealthChan: make(chan *StateUpdate, healthSize),
	}
}

func (d *Dispatcher) Dispatch(msg *StateUpdate) {
	select {
	case d.DBChan <- msg:
	default:
		metrics.ChannelDrops.WithLabelValues("db").Inc()
	}

	select {
	case d.StateChan <- msg:
	default:
		metrics.ChannelDrops.WithLabelValues("state").Inc()
	}

	select {
	case d.HealthChan <- msg:
	default:
		metrics.ChannelDrops.WithLabelValues("health").Inc()
	}
}

package push

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"
	"github.com/eclipse/paho.golang/paho/session/state"
	"github.com/sirupsen/logrus"

	"github.com/rawsignal/RivianMate-sub001/internal/domain"
	"github.com/rawsignal/RivianMate-sub001/internal/metrics"
	"github.com/rawsignal/RivianMate-sub001/internal/pipeline"
	"github.com/rawsignal/RivianMate-sub001/internal/statebuf"
	"github.com/rawsignal/RivianMate-sub001/internal/telemetry"
)

// stateTopic matches rivianmate/<account>/vehicles/<vehicle>/state.
const stateTopic = "rivianmate/+/vehicles/+/state"

// VehicleGetter resolves a pushed vehicle id to its local record.
type VehicleGetter interface {
	GetVehicle(ctx context.Context, id string) (*domain.Vehicle, error)
}

// Ingest is the push half of the collector: partial updates arrive over
// MQTT and race the scheduled pulls on the merge buffer, whose
// per-vehicle locking serializes them. Every pushed update is treated
// as partial; full reconciliation always comes from a pull.
type Ingest struct {
	brokerURL  string
	clientID   string
	buffer     *statebuf.Buffer
	dispatcher *pipeline.Dispatcher
	vehicles   VehicleGetter
	log        *logrus.Entry

	cm *autopaho.ConnectionManager
}

func NewIngest(brokerURL, clientID string, buffer *statebuf.Buffer, dispatcher *pipeline.Dispatcher, vehicles VehicleGetter, log *logrus.Logger) *Ingest {
	return &Ingest{
		brokerURL:  brokerURL,
		clientID:   clientID,
		buffer:     buffer,
		dispatcher: dispatcher,
		vehicles:   vehicles,
		log:        log.WithField("component", "push"),
	}
}

// Run connects to the broker and consumes pushed updates until ctx is
// cancelled.
func (i *Ingest) Run(ctx context.Context) error {
	serverURL, err := url.Parse(i.brokerURL)
	if err != nil {
		return fmt.Errorf("parse broker URL: %w", err)
	}

	cfg := autopaho.ClientConfig{
		ServerUrls:                    []*url.URL{serverURL},
		KeepAlive:                     60,
		CleanStartOnInitialConnection: false,
		SessionExpiryInterval:         60,
		ReconnectBackoff:              autopaho.NewConstantBackoff(5 * time.Second),
		OnConnectionUp:                i.onConnectionUp,
		OnConnectError: func(err error) {
			i.log.WithError(err).Warn("broker connection attempt failed")
		},
		ClientConfig: paho.ClientConfig{
			ClientID: i.clientID,
			Session:  state.NewInMemory(),
			OnPublishReceived: []func(paho.PublishReceived) (bool, error){
				i.onPublishReceived,
			},
			OnClientError: func(err error) {
				i.log.WithError(err).Warn("mqtt client error")
			},
		},
	}

	i.cm, err = autopaho.NewConnection(ctx, cfg)
	if err != nil {
		return fmt.Errorf("create mqtt connection manager: %w", err)
	}

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = i.cm.Disconnect(shutdownCtx)
	return nil
}

func (i *Ingest) onConnectionUp(cm *autopaho.ConnectionManager, _ *paho.Connack) {
	if _, err := cm.Subscribe(context.Background(), &paho.Subscribe{
		Subscriptions: []paho.SubscribeOptions{
			{Topic: stateTopic, QoS: 1},
		},
	}); err != nil {
		i.log.WithError(err).Error("subscribe failed")
		return
	}
	i.log.WithField("topic", stateTopic).Info("subscribed to push updates")
}

type pushPayload struct {
	Fields map[string]struct {
		Value     any       `json:"value"`
		Timestamp time.Time `json:"timeStamp"`
	} `json:"fields"`
}

func (i *Ingest) onPublishReceived(pr paho.PublishReceived) (bool, error) {
	accountID, vehicleID, ok := parseStateTopic(pr.Packet.Topic)
	if !ok {
		return true, nil
	}

	var payload pushPayload
	if err := json.Unmarshal(pr.Packet.Payload, &payload); err != nil {
		i.log.WithField("topic", pr.Packet.Topic).WithError(err).
			Warn("unparseable push payload")
		return true, nil
	}

	fields := make(telemetry.Payload, len(payload.Fields))
	for name, f := range payload.Fields {
		fields[name] = telemetry.Field{Value: f.Value, Timestamp: f.Timestamp}
	}
	incoming := telemetry.Decode(vehicleID, fields)
	metrics.PushUpdates.Inc()

	merged := i.buffer.UpdateCurrent(vehicleID, incoming, true)
	if !i.buffer.ShouldPersist(vehicleID, merged) {
		metrics.UpdatesSkipped.Inc()
		return true, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	vehicle, err := i.vehicles.GetVehicle(ctx, vehicleID)
	if err != nil {
		i.log.WithField("vehicle", vehicleID).WithError(err).
			Warn("pushed update for unknown vehicle")
		return true, nil
	}

	i.buffer.MarkPersisted(vehicleID, merged)
	i.dispatcher.Dispatch(&pipeline.StateUpdate{
		AccountID: accountID,
		Vehicle:   vehicle,
		State:     merged,
	})
	metrics.StatesPersisted.Inc()
	return true, nil
}

func parseStateTopic(topic string) (accountID, vehicleID string, ok bool) {
	parts := strings.Split(topic, "/")
	if len(parts) != 5 || parts[0] != "rivianmate" || parts[2] != "vehicles" || parts[4] != "state" {
		return "", "", false
	}
	return parts[1], parts[3], true
}

// Package telemetry publishes append-only playback events for
// downstream aggregation. Delivery is fire-and-forget: a slow or absent
// broker never blocks a tick.
package telemetry

import (
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Event records one dispatch outcome.
type Event struct {
	ID         string    `json:"id"`
	ScheduleID int       `json:"schedule_id"`
	PlayerID   int       `json:"player_id"`
	ContentID  int       `json:"content_id"`
	StartedAt  time.Time `json:"started_at"`
	DurationMS int64     `json:"duration_ms"`
	Success    bool      `json:"success"`
	Error      string    `json:"error,omitempty"`
}

type Publisher interface {
	Publish(ev Event)
	Close()
}

// NewEvent stamps an event with a fresh id.
func NewEvent(scheduleID, playerID, contentID int, startedAt time.Time, took time.Duration, err error) Event {
	ev := Event{
		ID:         uuid.NewString(),
		ScheduleID: scheduleID,
		PlayerID:   playerID,
		ContentID:  contentID,
		StartedAt:  startedAt,
		DurationMS: took.Milliseconds(),
		Success:    err == nil,
	}
	if err != nil {
		ev.Error = err.Error()
	}
	return ev
}

type mqttPublisher struct {
	client mqtt.Client
}

// NewMQTTPublisher connects to the broker and returns a publisher that
// writes events to stheno/telemetry/playback/<player_id>.
func NewMQTTPublisher(brokerURL, clientID string) (Publisher, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(brokerURL)
	opts.SetClientID(clientID)
	opts.SetAutoReconnect(true)
	opts.OnConnect = func(mqtt.Client) {
		log.Info().Str("broker", brokerURL).Msg("connected to MQTT broker")
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		log.Warn().Err(err).Msg("MQTT connection lost")
	}

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}
	return &mqttPublisher{client: client}, nil
}

func (p *mqttPublisher) Publish(ev Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		log.Error().Err(err).Msg("marshal telemetry event failed")
		return
	}
	topic := fmt.Sprintf("stheno/telemetry/playback/%d", ev.PlayerID)
	token := p.client.Publish(topic, 1, false, payload)
	go func() {
		token.Wait()
		if token.Error() != nil {
			log.Warn().Err(token.Error()).Str("topic", topic).Msg("telemetry publish failed")
		}
	}()
}

func (p *mqttPublisher) Close() {
	p.client.Disconnect(250)
}

// Nop is used when no broker is configured.
type Nop struct{}

func (Nop) Publish(Event) {}

func (Nop) Close() {}

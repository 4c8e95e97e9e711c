package output

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"github.com/i474232898/frost-ingest/internal/weather"
)

// publisher is the subset of mqtt.Client used for publishing.
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// StationMessage is the payload published for one station per run.
type StationMessage struct {
	StationID    string         `json:"station_id"`
	StationName  string         `json:"station_name"`
	Area         weather.Area   `json:"el_area"`
	From         string         `json:"from"`
	To           string         `json:"to"`
	Observations []DailyReading `json:"observations"`
}

type DailyReading struct {
	Date            string   `json:"reference_time"`
	PrecipitationMM *float64 `json:"precipitation_mm"`
	QualityCode     *int     `json:"quality_code,omitempty"`
}

// MQTTConfig holds broker settings.
type MQTTConfig struct {
	Broker      string // e.g. tcp://localhost:1883
	ClientID    string
	TopicPrefix string
}

// MQTTPublisher is a weather.Sink publishing one message per station on
// <prefix>/<station_id>.
type MQTTPublisher struct {
	client  publisher
	prefix  string
	timeout time.Duration
	logger  zerolog.Logger
	close   func()
}

// NewMQTTPublisher connects to the broker.
func NewMQTTPublisher(ctx context.Context, cfg MQTTConfig, logger zerolog.Logger) (*MQTTPublisher, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Warn().Err(err).Msg("MQTT connection lost")
	})

	client := mqtt.NewClient(opts)
	token := client.Connect()
	for !token.WaitTimeout(200 * time.Millisecond) {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect: %w", err)
	}
	logger.Info().Str("broker", cfg.Broker).Msg("MQTT connected")

	p := newMQTTPublisher(client, cfg.TopicPrefix, logger)
	p.close = func() { client.Disconnect(250) }
	return p, nil
}

func newMQTTPublisher(client publisher, prefix string, logger zerolog.Logger) *MQTTPublisher {
	return &MQTTPublisher{
		client:  client,
		prefix:  strings.TrimRight(prefix, "/"),
		timeout: 10 * time.Second,
		logger:  logger,
		close:   func() {},
	}
}

func (p *MQTTPublisher) Name() string { return "mqtt" }

// Close disconnects from the broker.
func (p *MQTTPublisher) Close() { p.close() }

func (p *MQTTPublisher) Write(ctx context.Context, from, to time.Time, rows []weather.Observation) (int, error) {
	var order []string
	byStation := make(map[string]*StationMessage)
	for _, r := range rows {
		msg, ok := byStation[r.StationID]
		if !ok {
			msg = &StationMessage{
				StationID:   r.StationID,
				StationName: r.StationName,
				Area:        r.Area,
				From:        from.Format(weather.DateLayout),
				To:          to.Format(weather.DateLayout),
			}
			byStation[r.StationID] = msg
			order = append(order, r.StationID)
		}
		msg.Observations = append(msg.Observations, DailyReading{
			Date:            r.Date,
			PrecipitationMM: r.PrecipitationMM,
			QualityCode:     r.QualityCode,
		})
	}

	written := 0
	for _, id := range order {
		if ctx.Err() != nil {
			return written, ctx.Err()
		}
		msg := byStation[id]
		payload, err := json.Marshal(msg)
		if err != nil {
			return written, err
		}
		topic := p.prefix + "/" + id
		token := p.client.Publish(topic, 1, false, payload)
		if !token.WaitTimeout(p.timeout) {
			return written, fmt.Errorf("mqtt publish %s: timeout", topic)
		}
		if err := token.Error(); err != nil {
			return written, fmt.Errorf("mqtt publish %s: %w", topic, err)
		}
		written += len(msg.Observations)
		p.logger.Debug().Str("topic", topic).Int("rows", len(msg.Observations)).Msg("Published")
	}
	return written, nil
}

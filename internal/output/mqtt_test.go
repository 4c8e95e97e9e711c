package output

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"github.com/i474232898/frost-ingest/internal/weather"
)

type fakeToken struct {
	err error
}

func (t *fakeToken) Wait() bool                     { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (t *fakeToken) Error() error { return t.err }

type published struct {
	topic   string
	qos     byte
	payload []byte
}

type fakeClient struct {
	msgs []published
	err  error
}

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	c.msgs = append(c.msgs, published{topic: topic, qos: qos, payload: payload.([]byte)})
	return &fakeToken{err: c.err}
}

func TestMQTTPublisher_Write(t *testing.T) {
	client := &fakeClient{}
	p := newMQTTPublisher(client, "frost/precipitation/", zerolog.Nop())

	from, _ := weather.ParseDate("2024-01-01")
	to, _ := weather.ParseDate("2024-02-01")
	n, err := p.Write(context.Background(), from, to, sampleRows())
	if err != nil || n != 3 {
		t.Fatalf("Write() = %d, %v", n, err)
	}
	if len(client.msgs) != 2 {
		t.Fatalf("published %d messages, want 2", len(client.msgs))
	}
	if client.msgs[0].topic != "frost/precipitation/SN50540" || client.msgs[1].topic != "frost/precipitation/SN18700" {
		t.Errorf("unexpected topics %q, %q", client.msgs[0].topic, client.msgs[1].topic)
	}
	if client.msgs[0].qos != 1 {
		t.Errorf("qos = %d, want 1", client.msgs[0].qos)
	}

	var msg StationMessage
	if err := json.Unmarshal(client.msgs[0].payload, &msg); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if msg.Area != weather.AreaNO5 || msg.From != "2024-01-01" || msg.To != "2024-02-01" || len(msg.Observations) != 2 {
		t.Errorf("unexpected message %+v", msg)
	}
	if msg.Observations[1].PrecipitationMM != nil {
		t.Error("missing value should be null")
	}
}

func TestMQTTPublisher_PublishError(t *testing.T) {
	client := &fakeClient{err: errors.New("not connected")}
	p := newMQTTPublisher(client, "frost", zerolog.Nop())

	n, err := p.Write(context.Background(), time.Time{}, time.Time{}, sampleRows())
	if err == nil || n != 0 {
		t.Errorf("Write() = %d, %v; want error", n, err)
	}
	if len(client.msgs) != 1 {
		t.Errorf("should stop after the first failure, published %d", len(client.msgs))
	}
}

package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	commonredis "github.com/RicardoMLopes/wsh/common/redis"

	"github.com/go-redis/redis/v8"
)

// Type of a committed put-away change
type Type string

const (
	Submitted        Type = "submitted"
	Cancelled        Type = "cancelled"
	Reversed         Type = "reversed"
	WindowCompleted  Type = "window_completed"
	WindowReset      Type = "window_reset"
	LinesImported    Type = "lines_imported"
	OperatorFinished Type = "operator_finished"
	OperatorAssigned Type = "operator_assigned"
)

// Event emitted after commit; never part of the transaction
type Event struct {
	Type         Type      `json:"type"`
	Reference    string    `json:"reference"`
	Waybill      string    `json:"waybill"`
	PartNumber   string    `json:"partNumber,omitempty"`
	AggregateID  int64     `json:"aggregateId,omitempty"`
	EntryIDs     []int64   `json:"entryIds,omitempty"`
	SubmissionID string    `json:"submissionId,omitempty"`
	UserID       string    `json:"userId,omitempty"`
	RevisedQty   string    `json:"revisedQty,omitempty"`
	RowsAffected int64     `json:"rowsAffected,omitempty"`
	OccurredAt   time.Time `json:"occurredAt"`
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// NopPublisher drops events
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }

// MultiPublisher fans out to every publisher and joins their errors
type MultiPublisher []Publisher

func (m MultiPublisher) Publish(ctx context.Context, e Event) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RedisStreamPublisher appends events to a Redis stream (XADD)
type RedisStreamPublisher struct {
	client *redis.Client
	stream string
}

func NewRedisStreamPublisher(client *redis.Client, stream string) *RedisStreamPublisher {
	return &RedisStreamPublisher{client: client, stream: stream}
}

func (p *RedisStreamPublisher) Publish(ctx context.Context, e Event) error {
	if _, err := commonredis.PublishJSONToStream(ctx, p.client, p.stream, e); err != nil {
		return fmt.Errorf("failed to publish %s event to stream %s: %w", e.Type, p.stream, err)
	}
	return nil
}

// mqttClient subset of common/mqtt.Client
type mqttClient interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
}

// MQTTPublisher notifies scanner terminals on <prefix>/<reference>/<waybill>
type MQTTPublisher struct {
	client mqttClient
	prefix string
	qos    byte
}

func NewMQTTPublisher(client mqttClient, prefix string, qos byte) *MQTTPublisher {
	return &MQTTPublisher{client: client, prefix: prefix, qos: qos}
}

func (p *MQTTPublisher) Topic(e Event) string {
	return p.prefix + "/" + e.Reference + "/" + e.Waybill
}

func (p *MQTTPublisher) Publish(ctx context.Context, e Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	return p.client.Publish(p.Topic(e), p.qos, false, payload)
}

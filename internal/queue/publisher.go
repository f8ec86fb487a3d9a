package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// MessageWriter is the subset of *kafka.Writer used by the publishers.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// CampaignPublisher publishes run requests to Kafka.
type CampaignPublisher struct {
	writer MessageWriter
}

// NewCampaignPublisherWithWriter wraps a writer; the publisher closes it.
func NewCampaignPublisherWithWriter(w MessageWriter) *CampaignPublisher {
	return &CampaignPublisher{writer: w}
}

// PublishRun writes the request keyed by run id.
func (p *CampaignPublisher) PublishRun(ctx context.Context, msg CampaignRequest) error {
	value, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("campaign publisher: marshal message: %w", err)
	}

	record := kafka.Message{
		Key:   msg.RunID[:],
		Value: value,
		Time:  time.Now().UTC(),
	}
	if err := p.writer.WriteMessages(ctx, record); err != nil {
		return fmt.Errorf("campaign publisher: write message: %w", err)
	}
	return nil
}

// Close closes the underlying writer.
func (p *CampaignPublisher) Close() error {
	return p.writer.Close()
}

// DeliveryPublisher publishes per-recipient outcomes.
type DeliveryPublisher struct {
	writer MessageWriter
}

// NewDeliveryPublisherWithWriter wraps a writer; the publisher closes it.
func NewDeliveryPublisherWithWriter(w MessageWriter) *DeliveryPublisher {
	return &DeliveryPublisher{writer: w}
}

// PublishDelivery emits an event keyed by run id so a run stays ordered
// within its partition.
func (p *DeliveryPublisher) PublishDelivery(ctx context.Context, msg DeliveryEvent) error {
	value, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("delivery publisher: marshal message: %w", err)
	}
	record := kafka.Message{
		Key:   msg.RunID[:],
		Value: value,
		Time:  time.Now().UTC(),
	}
	if err := p.writer.WriteMessages(ctx, record); err != nil {
		return fmt.Errorf("delivery publisher: write message: %w", err)
	}
	return nil
}

// Close closes the publisher.
func (p *DeliveryPublisher) Close() error {
	return p.writer.Close()
}

package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/acme/crm-pro/internal/config"
)

// Kafka builds the readers and writers for the two CRM topics: run requests
// and delivery events. Both are keyed by run id.
type Kafka struct {
	cfg config.KafkaConfig
}

// NewKafka validates the broker settings.
func NewKafka(cfg config.KafkaConfig) (*Kafka, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka: no brokers configured")
	}
	if cfg.CampaignTopic == "" || cfg.DeliveryTopic == "" {
		return nil, fmt.Errorf("kafka: campaign and delivery topics are required")
	}
	if cfg.Partitions <= 0 {
		cfg.Partitions = 1
	}
	if cfg.ReplicationFactor <= 0 {
		cfg.ReplicationFactor = 1
	}
	return &Kafka{cfg: cfg}, nil
}

// Topics lists the topics the CRM produces to and consumes from.
func (k *Kafka) Topics() []string {
	return []string{k.cfg.CampaignTopic, k.cfg.DeliveryTopic}
}

// CampaignPublisher returns a publisher for run requests.
func (k *Kafka) CampaignPublisher() *CampaignPublisher {
	return NewCampaignPublisherWithWriter(k.writer(k.cfg.CampaignTopic))
}

// DeliveryPublisher returns a publisher for delivery events.
func (k *Kafka) DeliveryPublisher() *DeliveryPublisher {
	return NewDeliveryPublisherWithWriter(k.writer(k.cfg.DeliveryTopic))
}

// CampaignReader consumes run requests. A run can take minutes to send, so
// the reader fetches one small request at a time and never batches.
func (k *Kafka) CampaignReader() *kafka.Reader {
	return kafka.NewReader(k.campaignReaderConfig())
}

// DeliveryReader consumes delivery events in batches.
func (k *Kafka) DeliveryReader() *kafka.Reader {
	return kafka.NewReader(k.deliveryReaderConfig())
}

func (k *Kafka) writer(topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(k.cfg.Brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Async:        false,
	}
}

func (k *Kafka) campaignReaderConfig() kafka.ReaderConfig {
	return kafka.ReaderConfig{
		Brokers:     k.cfg.Brokers,
		Topic:       k.cfg.CampaignTopic,
		GroupID:     k.cfg.ConsumerGroupID,
		StartOffset: kafka.FirstOffset,
		// Commits are explicit after each run.
		CommitInterval: 0,
		MinBytes:       1,
		MaxBytes:       1e6,
		MaxWait:        time.Second,
	}
}

func (k *Kafka) deliveryReaderConfig() kafka.ReaderConfig {
	return kafka.ReaderConfig{
		Brokers:        k.cfg.Brokers,
		Topic:          k.cfg.DeliveryTopic,
		GroupID:        k.cfg.DeliveryConsumerGroup,
		StartOffset:    kafka.FirstOffset,
		CommitInterval: k.cfg.CommitInterval,
		MinBytes:       1e3,
		MaxBytes:       10e6,
		MaxWait:        time.Second,
	}
}

// EnsureTopics creates the run request and delivery topics if they do not
// exist, using the configured partition count and replication factor.
func (k *Kafka) EnsureTopics(ctx context.Context) error {
	dialer := &kafka.Dialer{Timeout: 10 * time.Second, ClientID: k.cfg.ClientID}
	conn, err := dialer.DialContext(ctx, "tcp", k.cfg.Brokers[0])
	if err != nil {
		return fmt.Errorf("kafka: dial: %w", err)
	}
	defer conn.Close()

	existing, err := conn.ReadPartitions()
	if err != nil {
		return fmt.Errorf("kafka: read partitions: %w", err)
	}
	exists := make(map[string]bool)
	for _, p := range existing {
		exists[p.Topic] = true
	}

	for _, topic := range k.Topics() {
		if exists[topic] {
			continue
		}
		if err := conn.CreateTopics(kafka.TopicConfig{
			Topic:             topic,
			NumPartitions:     k.cfg.Partitions,
			ReplicationFactor: k.cfg.ReplicationFactor,
		}); err != nil {
			return fmt.Errorf("kafka: create topic %s: %w", topic, err)
		}
	}

	return nil
}

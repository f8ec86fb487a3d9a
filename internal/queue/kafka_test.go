package queue

import (
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acme/crm-pro/internal/config"
)

func testKafkaConfig() config.KafkaConfig {
	return config.KafkaConfig{
		Brokers:               []string{"localhost:9092"},
		CampaignTopic:         "crm.campaign.runs",
		DeliveryTopic:         "crm.campaign.deliveries",
		ConsumerGroupID:       "crm-campaign-worker",
		DeliveryConsumerGroup: "crm-delivery-worker",
		CommitInterval:        time.Second,
	}
}

func TestNewKafkaValidates(t *testing.T) {
	cfg := testKafkaConfig()
	cfg.Brokers = nil
	_, err := NewKafka(cfg)
	assert.Error(t, err)

	cfg = testKafkaConfig()
	cfg.DeliveryTopic = ""
	_, err = NewKafka(cfg)
	assert.Error(t, err)
}

func TestKafkaTopicsAndDefaults(t *testing.T) {
	k, err := NewKafka(testKafkaConfig())
	require.NoError(t, err)

	assert.Equal(t, []string{"crm.campaign.runs", "crm.campaign.deliveries"}, k.Topics())
	assert.Equal(t, 1, k.cfg.Partitions)
	assert.Equal(t, 1, k.cfg.ReplicationFactor)
}

func TestKafkaReaderConfigs(t *testing.T) {
	k, err := NewKafka(testKafkaConfig())
	require.NoError(t, err)

	runs := k.campaignReaderConfig()
	assert.Equal(t, "crm.campaign.runs", runs.Topic)
	assert.Equal(t, "crm-campaign-worker", runs.GroupID)
	assert.Zero(t, runs.CommitInterval)
	assert.Equal(t, 1, runs.MinBytes)

	deliveries := k.deliveryReaderConfig()
	assert.Equal(t, "crm.campaign.deliveries", deliveries.Topic)
	assert.Equal(t, "crm-delivery-worker", deliveries.GroupID)
	assert.Equal(t, time.Second, deliveries.CommitInterval)
}

func TestKafkaWritersHashByKey(t *testing.T) {
	k, err := NewKafka(testKafkaConfig())
	require.NoError(t, err)

	w := k.writer("crm.campaign.deliveries")
	assert.Equal(t, "crm.campaign.deliveries", w.Topic)
	assert.IsType(t, &kafka.Hash{}, w.Balancer)
	assert.Equal(t, kafka.RequireAll, w.RequiredAcks)
}

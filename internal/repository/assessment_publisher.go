package repository

import (
	"context"

	"LaneRisk/internal/domain/models"
	domrepo "LaneRisk/internal/domain/repository"
	pkgkafka "LaneRisk/pkg/kafka"
)

// KafkaPublisher emits finished assessments to the audit topic, keyed by
// entity so per-entity ordering is preserved across partitions.
type KafkaPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

// NewKafkaPublisher creates a Kafka-backed assessment publisher.
func NewKafkaPublisher(producer *pkgkafka.Producer, topic string) domrepo.Publisher {
	return &KafkaPublisher{producer: producer, topic: topic}
}

func (p *KafkaPublisher) Publish(ctx context.Context, a *models.RiskAssessment) error {
	return p.producer.Publish(ctx, p.topic, []byte(a.EntityID), a)
}

func (p *KafkaPublisher) PublishBatch(ctx context.Context, as []*models.RiskAssessment) error {
	if len(as) == 0 {
		return nil
	}
	msgs := make([]pkgkafka.Message, len(as))
	for i, a := range as {
		msgs[i] = pkgkafka.Message{
			Key:   []byte(a.EntityID),
			Value: a,
		}
	}
	return p.producer.PublishBatch(ctx, p.topic, msgs)
}

func (p *KafkaPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

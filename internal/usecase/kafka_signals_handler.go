package usecase

import (
	"context"
	"encoding/json"
	"time"

	"LaneRisk/internal/domain/models"
	domrepo "LaneRisk/internal/domain/repository"
	mid "LaneRisk/internal/middleware"
	pkgkafka "LaneRisk/pkg/kafka"

	"github.com/google/uuid"
)

// KafkaSignalsHandler consumes signal JSON from the signals topic and routes
// it through the ingestion pipeline.
type KafkaSignalsHandler struct {
	topic           string
	pipe            *mid.SignalPipeline
	metrics         domrepo.Metrics
	defaultHalfLife time.Duration
}

func NewKafkaSignalsHandler(topic string, pipe *mid.SignalPipeline, metrics domrepo.Metrics, defaultHalfLife time.Duration) *KafkaSignalsHandler {
	if defaultHalfLife <= 0 {
		defaultHalfLife = 12 * time.Hour
	}
	return &KafkaSignalsHandler{topic: topic, pipe: pipe, metrics: metrics, defaultHalfLife: defaultHalfLife}
}

func (h *KafkaSignalsHandler) Topic() string { return h.topic }

type wireSignal struct {
	ID            string   `json:"id"`
	Entity        string   `json:"entity"`
	Source        string   `json:"source"`
	Factor        string   `json:"factor"`
	Strength      float64  `json:"strength"`
	Direction     string   `json:"direction"`
	ObservedAt    int64    `json:"observed_at"` // ms
	HalfLifeHours float64  `json:"half_life_hours"`
	Topic         string   `json:"topic"`
	Tags          []string `json:"tags"`
}

// Handle decodes one wire signal and forwards it into the pipeline. Invalid
// payloads are counted and dropped; the consumer keeps going.
func (h *KafkaSignalsHandler) Handle(ctx context.Context, b []byte) error {
	var w wireSignal
	if err := json.Unmarshal(b, &w); err != nil {
		h.metrics.RecordSignalRejected("unmarshal")
		return err
	}

	ts := w.ObservedAt
	if ts > 1e14 { // us
		ts = ts / 1000
	}
	halfLife := h.defaultHalfLife
	if w.HalfLifeHours > 0 {
		halfLife = time.Duration(w.HalfLifeHours * float64(time.Hour))
	}
	dir := models.DirectionIncrease
	if w.Direction == string(models.DirectionDecrease) {
		dir = models.DirectionDecrease
	}
	id := w.ID
	if id == "" {
		id = uuid.NewString()
	}

	sig := &models.Signal{
		ID:              id,
		EntityID:        w.Entity,
		Source:          models.SignalSource(w.Source),
		FactorID:        w.Factor,
		Strength:        w.Strength,
		Direction:       dir,
		ObservedAt:      time.UnixMilli(ts).UTC(),
		DecayHalfLife:   halfLife,
		Topic:           w.Topic,
		TopicTags:       w.Tags,
	}

	h.metrics.RecordLatency("ingest_e2e_seconds", time.Since(sig.ObservedAt).Seconds())
	return h.pipe.Process(ctx, sig)
}

var _ pkgkafka.MessageHandler = (*KafkaSignalsHandler)(nil)

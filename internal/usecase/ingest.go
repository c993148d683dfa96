package usecase

import (
	"context"
	"time"

	"LaneRisk/internal/domain/models"

	"github.com/google/uuid"
)

// IngestUseCase admits batches of wire-form signals. A rejected signal is
// recorded with its reason and never aborts the rest of the batch.
type IngestUseCase struct {
	eval            *RiskEvaluator
	defaultHalfLife time.Duration
}

func NewIngestUseCase(eval *RiskEvaluator, defaultHalfLife time.Duration) *IngestUseCase {
	if defaultHalfLife <= 0 {
		defaultHalfLife = 12 * time.Hour
	}
	return &IngestUseCase{eval: eval, defaultHalfLife: defaultHalfLife}
}

// IngestBatch converts and ingests each input, collecting per-signal
// rejection reasons.
func (uc *IngestUseCase) IngestBatch(ctx context.Context, inputs []models.SignalInput) models.IngestResult {
	res := models.IngestResult{}
	for i := range inputs {
		sig := uc.ToSignal(inputs[i])
		if err := uc.eval.Ingest(ctx, sig); err != nil {
			res.Rejected++
			if res.Reasons == nil {
				res.Reasons = make(map[string]string)
			}
			res.Reasons[sig.ID] = err.Error()
			continue
		}
		res.Accepted++
	}
	return res
}

// ToSignal converts the wire form to the domain signal. Timestamps accept
// unix seconds or milliseconds.
func (uc *IngestUseCase) ToSignal(in models.SignalInput) *models.Signal {
	id := in.ID
	if id == "" {
		id = uuid.NewString()
	}

	ts := in.ObservedAt
	var observed time.Time
	if ts > 1e11 { // ms
		observed = time.UnixMilli(ts).UTC()
	} else {
		observed = time.Unix(ts, 0).UTC()
	}

	halfLife := uc.defaultHalfLife
	if in.HalfLifeHours > 0 {
		halfLife = time.Duration(in.HalfLifeHours * float64(time.Hour))
	}

	dir := models.DirectionIncrease
	if in.Direction == string(models.DirectionDecrease) {
		dir = models.DirectionDecrease
	}

	return &models.Signal{
		ID:              id,
		EntityID:        in.EntityID,
		Source:          models.SignalSource(in.Source),
		FactorID:        in.FactorID,
		Strength:        in.Strength,
		Direction:       dir,
		ObservedAt:      observed,
		DecayHalfLife:   halfLife,
		Topic:           in.Topic,
		TopicTags:       in.Tags,
	}
}

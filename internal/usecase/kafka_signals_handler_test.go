package usecase

import (
	"context"
	"strconv"
	"testing"
	"time"

	mid "LaneRisk/internal/middleware"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKafkaHandlerTopic(t *testing.T) {
	h := NewKafkaSignalsHandler("risk.signals", nil, newFakeMetrics(), 0)
	assert.Equal(t, "risk.signals", h.Topic())
}

func TestKafkaHandlerValidSignal(t *testing.T) {
	m := newFakeMetrics()
	eval := testEvaluator(t, m)
	pipe := mid.NewSignalPipeline(eval, m)
	h := NewKafkaSignalsHandler("risk.signals", pipe, m, 12*time.Hour)

	payload := []byte(`{
		"entity": "lane-sgp-rtm",
		"source": "news",
		"factor": "port-congestion",
		"strength": 0.75,
		"direction": "increase",
		"observed_at": ` + unixMilliNow() + `
	}`)
	require.NoError(t, h.Handle(context.Background(), payload))

	beliefs, ok := eval.Beliefs("lane-sgp-rtm")
	require.True(t, ok)
	assert.Contains(t, beliefs, "port-congestion")
}

func TestKafkaHandlerBadJSON(t *testing.T) {
	m := newFakeMetrics()
	h := NewKafkaSignalsHandler("risk.signals", nil, m, 0)

	err := h.Handle(context.Background(), []byte(`{not json`))
	require.Error(t, err)
	assert.Equal(t, 1, m.rejectedCount("unmarshal"))
}

func TestKafkaHandlerInvalidSignalDropped(t *testing.T) {
	m := newFakeMetrics()
	eval := testEvaluator(t, m)
	pipe := mid.NewSignalPipeline(eval, m)
	h := NewKafkaSignalsHandler("risk.signals", pipe, m, 12*time.Hour)

	payload := []byte(`{
		"entity": "",
		"source": "news",
		"factor": "port-congestion",
		"strength": 0.75,
		"observed_at": ` + unixMilliNow() + `
	}`)
	err := h.Handle(context.Background(), payload)
	require.Error(t, err)
	assert.Equal(t, 1, m.rejectedCount("validation"))
}

func unixMilliNow() string {
	return strconv.FormatInt(time.Now().UTC().Add(-time.Minute).UnixMilli(), 10)
}

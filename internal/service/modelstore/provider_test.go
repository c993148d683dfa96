package modelstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"LaneRisk/internal/domain/models"
	applogger "LaneRisk/pkg/logger"
)

type stubProvider struct {
	m   models.CalibrationModel
	err error
}

func (s *stubProvider) Fetch(context.Context) (models.CalibrationModel, error) {
	return s.m, s.err
}

func testLogger(t *testing.T) *applogger.Logger {
	t.Helper()
	l, err := applogger.New(&applogger.Config{Level: "error", Format: "json", Output: "stderr"})
	require.NoError(t, err)
	return l
}

func TestCachedSeedsIdentityModel(t *testing.T) {
	c := NewCached(&stubProvider{}, testLogger(t), 0)

	m, err := c.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1.0, m.A)
	assert.Equal(t, 0.0, m.B)
}

func TestCachedRefreshSwapsModel(t *testing.T) {
	want := models.CalibrationModel{A: 1.2, B: -0.1, ECE: 0.02, SampleSize: 900, FittedAt: time.Now().UTC()}
	c := NewCached(&stubProvider{m: want}, testLogger(t), 0)

	require.NoError(t, c.Refresh(context.Background()))
	assert.Equal(t, want, c.Active())
}

func TestCachedRefreshKeepsLastGoodOnError(t *testing.T) {
	inner := &stubProvider{m: models.CalibrationModel{A: 1.5, B: 0.2}}
	c := NewCached(inner, testLogger(t), 0)
	require.NoError(t, c.Refresh(context.Background()))

	inner.err = errors.New("upstream down")
	err := c.Refresh(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1.5, c.Active().A)
	assert.Equal(t, 0.2, c.Active().B)
}

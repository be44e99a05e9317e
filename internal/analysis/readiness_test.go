package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"readiness/internal/stats"
)

func TestComposite(t *testing.T) {
	p := DefaultCompositeParams()
	assert.InDelta(t, 0.40*90+0.35*80+0.25*70, Composite(90, 80, 70, p), 1e-9)
	assert.InDelta(t, 100.0, Composite(100, 100, 100, p), 1e-9)
	assert.Equal(t, 0.0, Composite(0, 0, 0, p))
}

func TestClassifyStatus(t *testing.T) {
	p := DefaultCompositeParams()
	tests := []struct {
		score float64
		want  Status
	}{
		{100, StatusExcellent},
		{85, StatusExcellent},
		{84.99, StatusGood},
		{70, StatusGood},
		{69.9, StatusFair},
		{55, StatusFair},
		{54.9, StatusPoor},
		{0, StatusPoor},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ClassifyStatus(tt.score, p), "score=%v", tt.score)
	}
}

func TestModelParamsValidate(t *testing.T) {
	assert.NoError(t, DefaultModelParams().Validate())

	p := DefaultModelParams()
	p.Composite.LoadWeight = 0.5
	assert.Error(t, p.Validate())

	p = DefaultModelParams()
	p.HRV.Severe = Band{40, 30}
	assert.Error(t, p.Validate())

	p = DefaultModelParams()
	p.Load.OptimalMax = 2.5
	assert.Error(t, p.Validate())

	p = DefaultModelParams()
	p.Sleep.DebtWindowDays = 0
	assert.Error(t, p.Validate())

	p = DefaultModelParams()
	p.HRV.OutlierCutoff = -1
	assert.Error(t, p.Validate())
}

func TestSmoothScores(t *testing.T) {
	scores := []stats.Value{stats.Some(80), stats.None(), stats.Some(60), stats.Some(70)}

	got, err := SmoothScores(scores, 2, 1)
	require.NoError(t, err)
	require.Len(t, got, 4)

	assert.Equal(t, stats.Some(80), got[0].Average)
	assert.Equal(t, stats.Some(80), got[1].Average)
	assert.Equal(t, stats.Some(60), got[2].Average)
	assert.Equal(t, stats.Some(65), got[3].Average)

	assert.Equal(t, stats.Some(80), got[0].Smoothed)
	assert.False(t, got[1].Smoothed.Valid())
	assert.InDelta(t, 70, got[2].Smoothed.Or(-1), 1e-9)
	assert.InDelta(t, 70, got[3].Smoothed.Or(-1), 1e-9)

	_, err = SmoothScores(scores, 0, 1)
	assert.ErrorIs(t, err, stats.ErrInvalidParameter)
	_, err = SmoothScores(scores, 2, 0)
	assert.ErrorIs(t, err, stats.ErrInvalidParameter)
}

package analysis

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"readiness/internal/store"
)

func TestValidateSamples(t *testing.T) {
	d := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		samples []store.MetricSample
		wantErr bool
		kind    store.MetricKind
	}{
		{
			name: "plausible day",
			samples: []store.MetricSample{
				{Date: d, Kind: store.KindHRV, Value: ptr(55)},
				{Date: d, Kind: store.KindRestingHR, Value: ptr(48)},
				{Date: d, Kind: store.KindTrainingLoad, Value: ptr(0)},
				{Date: d, Kind: store.KindSleepTotalMinutes, Value: ptr(470)},
				{Date: d, Kind: store.KindSleepAwakeMinutes, Value: ptr(30)},
			},
		},
		{
			name:    "no-value markers pass",
			samples: []store.MetricSample{{Date: d, Kind: store.KindRestingHR}},
		},
		{
			name:    "negative heart rate",
			samples: []store.MetricSample{{Date: d, Kind: store.KindRestingHR, Value: ptr(-60)}},
			wantErr: true,
			kind:    store.KindRestingHR,
		},
		{
			name:    "sleep longer than a day",
			samples: []store.MetricSample{{Date: d, Kind: store.KindSleepTotalMinutes, Value: ptr(1500)}},
			wantErr: true,
			kind:    store.KindSleepTotalMinutes,
		},
		{
			name: "asleep plus awake longer than a day",
			samples: []store.MetricSample{
				{Date: d, Kind: store.KindSleepTotalMinutes, Value: ptr(1000)},
				{Date: d, Kind: store.KindSleepAwakeMinutes, Value: ptr(500)},
			},
			wantErr: true,
			kind:    store.KindSleepAwakeMinutes,
		},
		{
			name:    "negative training load",
			samples: []store.MetricSample{{Date: d, Kind: store.KindTrainingLoad, Value: ptr(-1)}},
			wantErr: true,
			kind:    store.KindTrainingLoad,
		},
		{
			name:    "not finite",
			samples: []store.MetricSample{{Date: d, Kind: store.KindHRV, Value: ptr(math.Inf(1))}},
			wantErr: true,
			kind:    store.KindHRV,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSamples(tt.samples)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrDataQuality)

			var dq *DataQualityError
			require.True(t, errors.As(err, &dq))
			assert.Equal(t, tt.kind, dq.Kind)
			assert.NotEmpty(t, dq.Reason)
		})
	}
}

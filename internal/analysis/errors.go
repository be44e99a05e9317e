package analysis

import (
	"errors"
	"fmt"
	"time"

	"readiness/internal/store"
)

// ErrDataQuality matches every *DataQualityError via errors.Is.
var ErrDataQuality = errors.New("data quality violation")

// DataQualityError reports a raw sample outside hard physiological bounds.
// It is never absorbed: the day it belongs to cannot be assessed until the
// upstream data is corrected.
type DataQualityError struct {
	UserID string
	Date   time.Time
	Kind   store.MetricKind
	Value  float64
	Reason string
}

func (e *DataQualityError) Error() string {
	return fmt.Sprintf("data quality: user %s %s %s=%g: %s",
		e.UserID, store.DateKey(e.Date), e.Kind, e.Value, e.Reason)
}

// Is reports whether target is ErrDataQuality.
func (e *DataQualityError) Is(target error) bool {
	return target == ErrDataQuality
}

package service

import (
	"time"

	"readiness/internal/store"
)

const (
	// Cache
	CacheKeyPrefix  = "readiness:"
	DefaultCacheTTL = 24 * time.Hour

	// Fingerprint layout version, bumped when the hashed layout changes
	FingerprintVersion = "v1"
)

// historyStart is the lower bound used when reading the full load history.
var historyStart = time.Date(1, time.January, 1, 0, 0, 0, 0, time.UTC)

// physiologyKinds are read for the trailing HRV and sleep windows.
var physiologyKinds = []store.MetricKind{
	store.KindHRV,
	store.KindRestingHR,
	store.KindSleepTotalMinutes,
	store.KindSleepDeepMinutes,
	store.KindSleepLightMinutes,
	store.KindSleepREMMinutes,
	store.KindSleepAwakeMinutes,
	store.KindSleepAwakenings,
}

// loadKinds are read from the beginning of history.
var loadKinds = []store.MetricKind{store.KindTrainingLoad}

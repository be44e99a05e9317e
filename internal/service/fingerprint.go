package service

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/cespare/xxhash/v2"

	"readiness/internal/analysis"
	"readiness/internal/store"
)

// fingerprint identifies the model, parameters and raw inputs of one
// assessment. Equal fingerprints guarantee equal results.
func (s *ReadinessService) fingerprint(userID string, date time.Time, in inputs) string {
	d := xxhash.New()
	s.writeModel(d)
	writeField(d, userID)
	writeField(d, store.DateKey(date))
	writeSamples(d, in.all())
	return fmt.Sprintf("%s-%016x", FingerprintVersion, d.Sum64())
}

// loadDigest hashes the model, its parameters and the load samples dated on
// or before date. A snapshot whose digest matches is a valid fitness/fatigue
// checkpoint.
func (s *ReadinessService) loadDigest(loads []store.MetricSample, date time.Time) string {
	d := xxhash.New()
	s.writeModel(d)
	writeSamples(d, loadsThrough(loads, date))
	return fmt.Sprintf("%s-%016x", FingerprintVersion, d.Sum64())
}

func (s *ReadinessService) writeModel(d *xxhash.Digest) {
	writeField(d, analysis.ModelVersion)
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], s.paramsDigest)
	_, _ = d.Write(buf[:])
}

func writeField(d *xxhash.Digest, s string) {
	_, _ = d.WriteString(s)
	_, _ = d.Write([]byte{0})
}

func writeSamples(d *xxhash.Digest, samples []store.MetricSample) {
	buf := make([]byte, 0, 9)
	for _, smp := range samples {
		writeField(d, string(smp.Kind))
		writeField(d, store.DateKey(smp.Date))
		buf = buf[:0]
		if smp.Value == nil {
			buf = append(buf, 0)
		} else {
			buf = append(buf, 1)
			buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(*smp.Value))
		}
		_, _ = d.Write(buf)
	}
}

package monitoring

import (
	"sort"
	"sync"
	"time"
)

// maxSamples bounds the latency reservoir; old samples are overwritten
// ring-buffer style so long batch runs keep a recent view.
const maxSamples = 4096

// FieldCounts is the success/failure tally for one field.
type FieldCounts struct {
	Success int64 `json:"success"`
	Failure int64 `json:"failure"`
}

// MetricsSnapshot is a point-in-time view of extraction health, served
// read-only to the CLI and the metrics endpoint.
type MetricsSnapshot struct {
	Documents     int64                  `json:"documents"`
	FieldsTotal   int64                  `json:"fields_total"`
	FieldsFailed  int64                  `json:"fields_failed"`
	LatencyP50Ms  float64                `json:"latency_p50_ms"`
	LatencyP95Ms  float64                `json:"latency_p95_ms"`
	LatencyP99Ms  float64                `json:"latency_p99_ms"`
	PerField      map[string]FieldCounts `json:"per_field"`
	CollectedAt   time.Time              `json:"collected_at"`
	WindowSamples int                    `json:"window_samples"`
}

// Recorder accumulates per-field extraction observations. All methods are
// safe for concurrent use.
type Recorder struct {
	mu        sync.Mutex
	perField  map[string]*FieldCounts
	documents int64

	samples []time.Duration
	next    int
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{
		perField: make(map[string]*FieldCounts),
		samples:  make([]time.Duration, 0, maxSamples),
	}
}

// Observe records one field extraction: its latency and whether a usable
// candidate was produced.
func (r *Recorder) Observe(field string, d time.Duration, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	counts, exists := r.perField[field]
	if !exists {
		counts = &FieldCounts{}
		r.perField[field] = counts
	}
	if ok {
		counts.Success++
	} else {
		counts.Failure++
	}

	if len(r.samples) < maxSamples {
		r.samples = append(r.samples, d)
		return
	}
	r.samples[r.next] = d
	r.next = (r.next + 1) % maxSamples
}

// ObserveDocument counts one completed document.
func (r *Recorder) ObserveDocument() {
	r.mu.Lock()
	r.documents++
	r.mu.Unlock()
}

// Snapshot computes the current metrics view.
func (r *Recorder) Snapshot() MetricsSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap := MetricsSnapshot{
		Documents:     r.documents,
		PerField:      make(map[string]FieldCounts, len(r.perField)),
		CollectedAt:   time.Now().UTC(),
		WindowSamples: len(r.samples),
	}
	for field, counts := range r.perField {
		snap.PerField[field] = *counts
		snap.FieldsTotal += counts.Success + counts.Failure
		snap.FieldsFailed += counts.Failure
	}

	if len(r.samples) > 0 {
		sorted := append([]time.Duration(nil), r.samples...)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
		snap.LatencyP50Ms = percentileMs(sorted, 0.50)
		snap.LatencyP95Ms = percentileMs(sorted, 0.95)
		snap.LatencyP99Ms = percentileMs(sorted, 0.99)
	}
	return snap
}

// Reset clears all accumulated observations.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.perField = make(map[string]*FieldCounts)
	r.samples = r.samples[:0]
	r.next = 0
	r.documents = 0
}

// percentileMs uses the nearest-rank method on a sorted sample set.
func percentileMs(sorted []time.Duration, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	rank := int(p*float64(len(sorted))+0.5) - 1
	if rank < 0 {
		rank = 0
	}
	if rank >= len(sorted) {
		rank = len(sorted) - 1
	}
	return float64(sorted[rank].Microseconds()) / 1000.0
}

// Package metrics provides counters, Prometheus collectors, and HTTP
// handlers for exporting pushrelay runtime metrics.
package metrics

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 1. Internal State (Source of Truth)
var (
	observed      int64
	duplicates    int64
	extractErrors int64
	emptyDropped  int64
	filtered      int64
	dispatched    int64
	sendSuccess   int64
	sendFailure   int64
	lastPoll      int64
)

const counterInc int64 = 1

// 2. Prometheus Collectors
var (
	promObserved = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pushrelay_notifications_observed_total",
			Help: "Total notifications observed from the source",
		},
	)
	promDuplicates = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pushrelay_duplicates_skipped_total",
			Help: "Total notifications skipped because their id was already seen",
		},
	)
	promExtractErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pushrelay_extract_errors_total",
			Help: "Total raw notifications that could not be extracted",
		},
	)
	promEmptyDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pushrelay_empty_dropped_total",
			Help: "Total notifications dropped for having no title and no body",
		},
	)
	promFiltered = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pushrelay_filtered_total",
			Help: "Total notifications suppressed by the app filter",
		},
	)
	promDispatched = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pushrelay_dispatched_total",
			Help: "Total notifications handed to the dispatch manager",
		},
	)
	promSends = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pushrelay_channel_sends_total",
			Help: "Total per-channel send attempts",
		},
		[]string{"channel", "status"},
	)
	promDispatchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name: "pushrelay_dispatch_duration_seconds",
			Help: "Duration of full fan-out dispatch calls",
			Buckets: []float64{
				0.05,
				0.1,
				0.25,
				0.5,
				1,
				2,
				5,
				10,
				30,
			},
		},
	)
	promLastPoll = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "pushrelay_last_poll_timestamp_seconds",
			Help: "Unix timestamp of the last completed poll cycle",
		},
	)
)

func init() {
	prometheus.MustRegister(
		promObserved,
		promDuplicates,
		promExtractErrors,
		promEmptyDropped,
		promFiltered,
		promDispatched,
		promSends,
		promDispatchDuration,
		promLastPoll,
	)
}

// 3. Public API (Updates both Atomic and Prometheus)

// IncObserved increments the count of notifications observed from the source.
func IncObserved() {
	atomic.AddInt64(&observed, counterInc)
	promObserved.Inc()
}

// IncDuplicate increments the count of already-seen notifications skipped.
func IncDuplicate() {
	atomic.AddInt64(&duplicates, counterInc)
	promDuplicates.Inc()
}

// IncExtractError increments the count of raw notifications that failed
// field extraction.
func IncExtractError() {
	atomic.AddInt64(&extractErrors, counterInc)
	promExtractErrors.Inc()
}

// IncEmptyDropped increments the count of notifications dropped for having
// no deliverable content.
func IncEmptyDropped() {
	atomic.AddInt64(&emptyDropped, counterInc)
	promEmptyDropped.Inc()
}

// IncFiltered increments the count of notifications suppressed by the
// allow/deny filter.
func IncFiltered() {
	atomic.AddInt64(&filtered, counterInc)
	promFiltered.Inc()
}

// IncDispatched increments the count of notifications handed to dispatch.
func IncDispatched() {
	atomic.AddInt64(&dispatched, counterInc)
	promDispatched.Inc()
}

// IncChannelSend records one per-channel send outcome.
func IncChannelSend(channel string, ok bool) {
	if ok {
		atomic.AddInt64(&sendSuccess, counterInc)
		promSends.WithLabelValues(channel, "success").Inc()
		return
	}
	atomic.AddInt64(&sendFailure, counterInc)
	promSends.WithLabelValues(channel, "failure").Inc()
}

// ObserveDispatchDuration records the duration (in seconds) of a full
// fan-out dispatch in the Prometheus histogram.
func ObserveDispatchDuration(seconds float64) {
	promDispatchDuration.Observe(seconds)
}

// SetLastPoll stores the provided time as the last poll timestamp and
// updates the corresponding Prometheus gauge.
func SetLastPoll(t time.Time) {
	atomic.StoreInt64(&lastPoll, t.Unix())
	promLastPoll.Set(float64(t.Unix()))
}

// 4. JSON Snapshot Struct

// StatsSnapshot is a snapshot of metrics for JSON encoding.
type StatsSnapshot struct {
	Observed      int64  `json:"observed"`
	Duplicates    int64  `json:"duplicates_skipped"`
	ExtractErrors int64  `json:"extract_errors"`
	EmptyDropped  int64  `json:"empty_dropped"`
	Filtered      int64  `json:"filtered"`
	Dispatched    int64  `json:"dispatched"`
	SendSuccess   int64  `json:"send_success"`
	SendFailure   int64  `json:"send_failure"`
	LastPoll      int64  `json:"last_poll_timestamp"`
	LastPollHuman string `json:"last_poll_human"`
}

// GetSnapshot returns a StatsSnapshot with the current values of all
// internal counters and timestamps.
func GetSnapshot() StatsSnapshot {
	ts := atomic.LoadInt64(&lastPoll)
	return StatsSnapshot{
		Observed:      atomic.LoadInt64(&observed),
		Duplicates:    atomic.LoadInt64(&duplicates),
		ExtractErrors: atomic.LoadInt64(&extractErrors),
		EmptyDropped:  atomic.LoadInt64(&emptyDropped),
		Filtered:      atomic.LoadInt64(&filtered),
		Dispatched:    atomic.LoadInt64(&dispatched),
		SendSuccess:   atomic.LoadInt64(&sendSuccess),
		SendFailure:   atomic.LoadInt64(&sendFailure),
		LastPoll:      ts,
		LastPollHuman: time.Unix(ts, 0).Format(time.RFC3339),
	}
}

// 5. Handlers

// PromHandler returns an HTTP handler that exposes Prometheus metrics.
func PromHandler() http.Handler { return promhttp.Handler() }

// JSONHandler returns an HTTP handler that serves the current metrics as
// a JSON-encoded StatsSnapshot.
func JSONHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(GetSnapshot())
	})
}

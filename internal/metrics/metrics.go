// Package metrics declares the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "doctorquest"

// Persistence failure stages.
const (
	StageUpsert = "upsert"
	StageStats  = "stats"
	StageQueue  = "queue"
)

var (
	AnswersSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "answers_submitted_total",
		Help:      "Answers submitted in quiz sessions, by result.",
	}, []string{"result"})

	PersistenceFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "persistence_failures_total",
		Help:      "Fire-and-forget persistence steps that failed, by stage.",
	}, []string{"stage"})

	QuestionFetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "question_fetch_seconds",
		Help:      "Latency of question feed fetches, by source.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"source"})

	LiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "live_sessions",
		Help:      "Quiz sessions currently held in memory.",
	})
)

// Result returns the label value for an answer outcome.
func Result(correct bool) string {
	if correct {
		return "correct"
	}
	return "incorrect"
}

// Package metrics определяет счётчики Prometheus для движка оценок.
// Метрики отдаются на /metrics REST-сервера.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ScoresCreated — сколько оценок создано.
	ScoresCreated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "scorebot",
		Name:      "scores_created_total",
		Help:      "Number of score records created.",
	})

	// StatusTransitions — переходы статусов по целевому статусу.
	StatusTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "scorebot",
		Name:      "score_status_transitions_total",
		Help:      "Number of score status transitions by target status.",
	}, []string{"to"})

	// RankingRequests — запросы рейтингов по области (individual/team)
	// и источнику (cache/store).
	RankingRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "scorebot",
		Name:      "ranking_requests_total",
		Help:      "Number of ranking requests by scope and source.",
	}, []string{"scope", "source"})

	// RankingDuration — длительность построения рейтинга.
	RankingDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "scorebot",
		Name:      "ranking_build_seconds",
		Help:      "Time spent building rankings.",
		Buckets:   prometheus.DefBuckets,
	})

	// TimersFired — сработавшие таймеры.
	TimersFired = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "scorebot",
		Name:      "timers_fired_total",
		Help:      "Number of countdown timers fired.",
	})
)

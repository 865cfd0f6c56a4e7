package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "highscore_http_requests_total",
			Help: "Total number of HTTP requests by method, route and status",
		},
		[]string{"method", "route", "status"},
	)

	ScoresSubmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "highscore_scores_submitted_total",
			Help: "Total number of score events appended to the ledger per game",
		},
		[]string{"game"},
	)

	AuthFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "highscore_auth_failures_total",
			Help: "Total number of requests rejected for an invalid API key",
		},
	)

	RateLimited = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "highscore_rate_limited_total",
			Help: "Total number of requests rejected by the rate limiter",
		},
	)
)

// Init registers metrics with Prometheus
func Init() {
	prometheus.MustRegister(RequestsTotal)
	prometheus.MustRegister(ScoresSubmitted)
	prometheus.MustRegister(AuthFailures)
	prometheus.MustRegister(RateLimited)
}

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

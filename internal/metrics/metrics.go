// Package metrics exposes Prometheus instruments for scoring, sampling jobs
// and the HTTP API.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	scoreTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ontokit_scores_total",
		Help: "Scored term sets by result (scored, na)",
	}, []string{"result"})

	scoreDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ontokit_score_duration_seconds",
		Help:    "Time to score one term set including the p-value lookup",
		Buckets: []float64{0.00001, 0.0001, 0.001, 0.01, 0.1},
	})

	samplingTasks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ontokit_sampling_tasks_total",
		Help: "Completed sampling tasks across all jobs",
	})

	jobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ontokit_sampling_jobs_total",
		Help: "Finished sampling jobs by status",
	}, []string{"status"})

	jobDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ontokit_sampling_job_duration_seconds",
		Help:    "Wall time of sampling jobs",
		Buckets: prometheus.ExponentialBuckets(1, 4, 8),
	})

	precomputeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ontokit_precompute_duration_seconds",
		Help:    "Wall time of pairwise similarity precomputation",
		Buckets: prometheus.ExponentialBuckets(0.1, 4, 8),
	})

	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ontokit_http_requests_total",
		Help: "HTTP requests by route and status code",
	}, []string{"route", "code"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ontokit_http_request_duration_seconds",
		Help:    "HTTP request latency by route",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
)

// ObserveScore records one scoring call. na is true when the object had no
// annotation profile.
func ObserveScore(na bool, d time.Duration) {
	result := "scored"
	if na {
		result = "na"
	}
	scoreTotal.WithLabelValues(result).Inc()
	scoreDuration.Observe(d.Seconds())
}

func SamplingTaskDone() { samplingTasks.Inc() }

func ObserveJob(status string, d time.Duration) {
	jobsTotal.WithLabelValues(status).Inc()
	jobDuration.Observe(d.Seconds())
}

func ObservePrecompute(d time.Duration) { precomputeDuration.Observe(d.Seconds()) }

// Handler serves the default registry.
func Handler() http.Handler { return promhttp.Handler() }

// Middleware records every request under its route pattern.
func Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			status := c.Response().Status
			if err != nil {
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				} else if status < http.StatusBadRequest {
					status = http.StatusInternalServerError
				}
			}
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			httpRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
			httpDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

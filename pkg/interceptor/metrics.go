// Kunhua Huang 2026

package interceptor

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ecstasoy/sockharness/pkg/transport"
)

var (
	stepsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sockharness_steps_total",
			Help: "Total number of socket steps executed by a role",
		},
		[]string{"role", "step", "status"},
	)
	stepDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sockharness_step_duration_seconds",
			Help:    "Duration of socket steps in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"role", "step"},
	)
	stepBytes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sockharness_step_bytes_total",
			Help: "Bytes moved by send and recv steps",
		},
		[]string{"role", "step"},
	)
)

func init() {
	prometheus.MustRegister(stepsTotal)
	prometheus.MustRegister(stepDuration)
	prometheus.MustRegister(stepBytes)
}

func Metrics() transport.Interceptor {
	return func(ctx context.Context, step *transport.Step, invoker transport.Invoker) error {
		start := time.Now()

		err := invoker(ctx, step)

		duration := time.Since(start).Seconds()

		status := "success"
		if err != nil {
			status = "error"
		}

		role, name := step.Role.String(), string(step.Name)
		stepsTotal.WithLabelValues(role, name, status).Inc()
		stepDuration.WithLabelValues(role, name).Observe(duration)
		if step.Bytes > 0 {
			stepBytes.WithLabelValues(role, name).Add(float64(step.Bytes))
		}

		return err
	}
}

package observability

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"droidrun/internal/logging"
)

// Run-level counters. Incremented from the engine; scraped via ServeMetrics.
var (
	GoalRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "droidrun",
		Name:      "goal_runs_total",
		Help:      "Completed goal runs by outcome.",
	}, []string{"outcome"})

	PlanningCycles = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "droidrun",
		Name:      "planning_cycles_total",
		Help:      "Planner-or-dispatch transitions taken by the coordinator.",
	})

	CodeActSteps = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "droidrun",
		Name:      "codeact_steps_total",
		Help:      "Model-call steps executed inside task dispatches.",
	})

	LLMCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "droidrun",
		Name:      "llm_calls_total",
		Help:      "Completion requests by result.",
	}, []string{"result"})

	LLMRetries = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "droidrun",
		Name:      "llm_retries_total",
		Help:      "Completion requests that needed at least one retry.",
	})

	ToolExecutions = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "droidrun",
		Name:      "tool_executions_total",
		Help:      "Device primitive invocations from action scripts.",
	})

	ToolErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "droidrun",
		Name:      "tool_errors_total",
		Help:      "Device primitive invocations that returned an error.",
	})

	LLMLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "droidrun",
		Name:      "llm_latency_seconds",
		Help:      "Completion request latency.",
		Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 40, 60, 120},
	})
)

// ServeMetrics exposes /metrics on addr until ctx is cancelled.
func ServeMetrics(ctx context.Context, addr string, logger logging.Logger) {
	logger = logging.OrNop(logger)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("serving metrics on %s", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("metrics server: %v", err)
	}
}

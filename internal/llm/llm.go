// Package llm is the boundary to the external completion service: the
// transcript types the conversation service builds, the Completer port, a
// Gemini-backed implementation and Prometheus instrumentation.
package llm

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Role of a transcript entry.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one transcript entry.
type Message struct {
	Role    Role
	Content string
}

// Request is an ordered transcript plus the model to run it on.
type Request struct {
	Model    string
	Messages []Message
}

// Completer returns the model's reply to a transcript.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// ErrEmptyCompletion is returned when the service answers with no text.
var ErrEmptyCompletion = errors.New("llm: empty completion")

var (
	completions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_completions_total",
			Help: "Completion calls by model and outcome.",
		},
		[]string{"model", "outcome"},
	)
	completionLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "llm_completion_duration_seconds",
			Help:    "Latency of completion calls in seconds.",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 60},
		},
		[]string{"model"},
	)
)

func init() {
	prometheus.MustRegister(completions, completionLatency)
}

type instrumented struct {
	next Completer
}

// Instrument wraps c so every call is counted and timed.
func Instrument(c Completer) Completer { return instrumented{next: c} }

func (i instrumented) Complete(ctx context.Context, req Request) (string, error) {
	start := time.Now()
	out, err := i.next.Complete(ctx, req)
	completionLatency.WithLabelValues(req.Model).Observe(time.Since(start).Seconds())

	outcome := "ok"
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		outcome = "timeout"
	case err != nil:
		outcome = "error"
	}
	completions.WithLabelValues(req.Model, outcome).Inc()
	return out, err
}

// Package metrics exposes Prometheus instrumentation for generation calls,
// workflow transitions and chat turns.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ashureev/growthdesk/internal/domain"
	"github.com/ashureev/growthdesk/internal/generation"
	"github.com/ashureev/growthdesk/internal/workflow"
)

const namespace = "growthdesk"

// Call outcomes.
const (
	OutcomeSuccess   = "success"
	OutcomeFailure   = "failure"
	OutcomeMalformed = "malformed"
)

// Metrics holds the registered collectors.
type Metrics struct {
	registry *prometheus.Registry

	generationRequests *prometheus.CounterVec
	generationDuration *prometheus.HistogramVec
	transitions        *prometheus.CounterVec
	chatTurns          *prometheus.CounterVec
}

// New registers every collector on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		generationRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generation_requests_total",
			Help:      "Generation calls by stage and outcome.",
		}, []string{"stage", "outcome"}),
		generationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generation_duration_seconds",
			Help:      "Generation call latency by stage.",
			Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 20, 40, 80, 120},
		}, []string{"stage"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workflow_transitions_total",
			Help:      "Workflow transitions by intent and target stage.",
		}, []string{"op", "to"}),
		chatTurns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chat_turns_total",
			Help:      "Chat turns by task mode and role.",
		}, []string{"mode", "role"}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.generationRequests,
		m.generationDuration,
		m.transitions,
		m.chatTurns,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RegisterGauge adds a gauge whose value is read from fn at scrape time.
func (m *Metrics) RegisterGauge(name, help string, fn func() float64) {
	m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
	}, fn))
}

// Observe implements workflow.Observer.
func (m *Metrics) Observe(ev workflow.Event) {
	m.transitions.WithLabelValues(string(ev.Op), string(ev.To)).Inc()
}

// ObserveTurn implements workflow.TurnObserver.
func (m *Metrics) ObserveTurn(ev workflow.TurnEvent) {
	m.chatTurns.WithLabelValues(string(ev.Mode.Mode), string(ev.Turn.Role)).Inc()
}

func (m *Metrics) record(stage generation.Stage, start time.Time, err error) {
	m.generationDuration.WithLabelValues(string(stage)).Observe(time.Since(start).Seconds())
	m.generationRequests.WithLabelValues(string(stage), outcome(err)).Inc()
}

func outcome(err error) string {
	if err == nil {
		return OutcomeSuccess
	}
	var malformed *generation.MalformedResponse
	if errors.As(err, &malformed) {
		return OutcomeMalformed
	}
	return OutcomeFailure
}

// Instrument wraps conn so every call is counted and timed.
func (m *Metrics) Instrument(conn generation.Connector) generation.Connector {
	return &instrumented{next: conn, m: m}
}

type instrumented struct {
	next generation.Connector
	m    *Metrics
}

func (i *instrumented) ChatReply(ctx context.Context, req generation.ChatRequest) (string, error) {
	start := time.Now()
	out, err := i.next.ChatReply(ctx, req)
	i.m.record(generation.StageChat, start, err)
	return out, err
}

func (i *instrumented) TextContent(ctx context.Context, businessDetails string) (string, error) {
	start := time.Now()
	out, err := i.next.TextContent(ctx, businessDetails)
	i.m.record(generation.StageContent, start, err)
	return out, err
}

func (i *instrumented) PromptPair(ctx context.Context, approvedContent string) (domain.PromptPair, error) {
	start := time.Now()
	out, err := i.next.PromptPair(ctx, approvedContent)
	i.m.record(generation.StagePrompt, start, err)
	return out, err
}

func (i *instrumented) Image(ctx context.Context, imagePrompt string) ([]byte, error) {
	start := time.Now()
	out, err := i.next.Image(ctx, imagePrompt)
	i.m.record(generation.StageImage, start, err)
	return out, err
}

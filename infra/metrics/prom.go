package metrics

import (
	"errors"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/kilianp07/slotanneal/core/metrics"
	"github.com/kilianp07/slotanneal/core/model"
)

// PromSink exposes the latest progress of a run as Prometheus metrics.
type PromSink struct {
	iteration   prometheus.Gauge
	temperature prometheus.Gauge
	cost        *prometheus.GaugeVec
	occupancy   *prometheus.GaugeVec
	proposals   *prometheus.GaugeVec
	runs        *prometheus.CounterVec
	duration    prometheus.Histogram
}

// NewPromSink registers solver metrics on the default Prometheus registerer.
// The HTTP endpoint is served separately by StartPromServer.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer. Collectors
// that are already registered are reused.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PromSink{}
	var err error
	if s.iteration, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "anneal_iteration",
		Help: "Iteration of the last progress report",
	})); err != nil {
		return nil, err
	}
	if s.temperature, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "anneal_temperature",
		Help: "Temperature at the last progress report",
	})); err != nil {
		return nil, err
	}
	if s.cost, err = register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "anneal_cost",
		Help: "Current and best cost of the running search",
	}, []string{"kind"})); err != nil {
		return nil, err
	}
	if s.occupancy, err = register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "anneal_slot_occupancy",
		Help: "People assigned to each slot",
	}, []string{"slot"})); err != nil {
		return nil, err
	}
	if s.proposals, err = register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "anneal_proposals",
		Help: "Proposals of the running search by neighborhood and outcome",
	}, []string{"kind", "outcome"})); err != nil {
		return nil, err
	}
	if s.runs, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "anneal_runs_total",
		Help: "Finished runs by terminal state",
	}, []string{"state"})); err != nil {
		return nil, err
	}
	if s.duration, err = register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "anneal_run_duration_seconds",
		Help:    "Wall time of finished runs",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
	})); err != nil {
		return nil, err
	}
	return s, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// RecordProgress updates the gauges from a snapshot.
func (s *PromSink) RecordProgress(ev coremetrics.ProgressEvent) error {
	p := ev.Progress
	s.iteration.Set(float64(p.Iteration))
	s.temperature.Set(p.Temperature)
	s.cost.WithLabelValues("current").Set(p.CurrentCost)
	s.cost.WithLabelValues("best").Set(p.BestCost)
	for i, n := range p.Occupancy {
		s.occupancy.WithLabelValues(strconv.Itoa(i + 1)).Set(float64(n))
	}
	st := p.Stats
	s.proposals.WithLabelValues("move", "proposed").Set(float64(st.Moves))
	s.proposals.WithLabelValues("move", "accepted").Set(float64(st.AcceptedMoves))
	s.proposals.WithLabelValues("swap", "proposed").Set(float64(st.Swaps))
	s.proposals.WithLabelValues("swap", "accepted").Set(float64(st.AcceptedSwaps))
	s.proposals.WithLabelValues("any", "infeasible").Set(float64(st.Infeasible))
	return nil
}

// RecordResult counts the finished run and its duration.
func (s *PromSink) RecordResult(ev coremetrics.ResultEvent) error {
	s.runs.WithLabelValues(ev.Result.State.String()).Inc()
	s.duration.Observe(ev.Result.Elapsed.Seconds())
	s.cost.WithLabelValues("best").Set(ev.Result.BestCost)
	return nil
}

// ResetOccupancy clears per-slot gauges, for example between runs.
func (s *PromSink) ResetOccupancy() {
	for d := 1; d <= model.NumSlots; d++ {
		s.occupancy.DeleteLabelValues(strconv.Itoa(d))
	}
}

// Package app wires the annealing engine to its inputs, outputs and
// observability sinks.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/slotanneal/config"
	"github.com/kilianp07/slotanneal/core/anneal"
	"github.com/kilianp07/slotanneal/core/cost"
	"github.com/kilianp07/slotanneal/core/generator"
	coremetrics "github.com/kilianp07/slotanneal/core/metrics"
	"github.com/kilianp07/slotanneal/core/model"
	"github.com/kilianp07/slotanneal/core/runlog"
	"github.com/kilianp07/slotanneal/infra/logger"
	"github.com/kilianp07/slotanneal/internal/eventbus"
	"github.com/kilianp07/slotanneal/pkg/dataset"
	"github.com/kilianp07/slotanneal/pkg/export"

	// Register the prometheus, influx, nop and mqtt sinks.
	_ "github.com/kilianp07/slotanneal/infra/metrics"
	_ "github.com/kilianp07/slotanneal/infra/mqtt"
)

// ErrBusy is returned when a search is already running on the Runner.
var ErrBusy = errors.New("a search is already running")

// progressBuffer bounds the events queued per subscriber.
const progressBuffer = 64

// Report summarizes a finished solve.
type Report struct {
	RunID       string
	Result      anneal.Result
	Cost        cost.Breakdown
	Fingerprint string
	// Written lists the output files.
	Written []string
}

// Runner executes searches one at a time.
type Runner struct {
	cfg   *config.Config
	log   logger.Logger
	sink  coremetrics.MetricsSink
	store runlog.Store
	// listeners receive every event on their own goroutine.
	listeners []func(Event)

	mu     sync.Mutex
	engine *anneal.Engine
	runID  string
}

// Option configures a Runner.
type Option func(*Runner)

// WithSink replaces the sinks configured in metrics.sinks.
func WithSink(s coremetrics.MetricsSink) Option { return func(r *Runner) { r.sink = s } }

// WithStore replaces the store configured in runlog.
func WithStore(s runlog.Store) Option { return func(r *Runner) { r.store = s } }

// WithLogger replaces the default zerolog logger.
func WithLogger(l logger.Logger) Option { return func(r *Runner) { r.log = l } }

// WithListener registers fn for every event of every run. Progress events
// are dropped when fn falls behind.
func WithListener(fn func(Event)) Option {
	return func(r *Runner) { r.listeners = append(r.listeners, fn) }
}

// stopNotifier is implemented by sinks accepting remote stop requests.
type stopNotifier interface {
	OnStop(fn func(runID string))
}

// NewRunner builds the sinks and run store from cfg.
func NewRunner(cfg *config.Config, opts ...Option) (*Runner, error) {
	r := &Runner{cfg: cfg}
	for _, opt := range opts {
		opt(r)
	}
	if r.log == nil {
		r.log = logger.New("runner")
	}
	if r.sink == nil {
		sink, err := coremetrics.NewMetricsSink(cfg.Metrics.Sinks)
		if err != nil {
			return nil, fmt.Errorf("metrics sink: %w", err)
		}
		r.sink = sink
	}
	if r.store == nil {
		store, err := runlog.Open(cfg.RunLog)
		if err != nil {
			closeSink(r.sink)
			return nil, fmt.Errorf("run log: %w", err)
		}
		r.store = store
	}
	r.bindStop(r.sink)
	return r, nil
}

func (r *Runner) bindStop(s coremetrics.MetricsSink) {
	if multi, ok := s.(*coremetrics.MultiSink); ok {
		for _, inner := range multi.Sinks {
			r.bindStop(inner)
		}
		return
	}
	if n, ok := s.(stopNotifier); ok {
		n.OnStop(r.StopRun)
	}
}

// LoadInstance reads in.Path, or generates an instance when it is empty.
// The second return value names the source.
func LoadInstance(in config.InputConfig) (*model.Instance, string, error) {
	if in.Path != "" {
		inst, err := dataset.Load(in.Path)
		return inst, in.Path, err
	}
	g := in.Generator
	inst, err := generator.Generate(g)
	return inst, fmt.Sprintf("generated(groups=%d,seed=%d)", g.Groups, g.Seed), err
}

// LoadInstance loads the configured input.
func (r *Runner) LoadInstance() (*model.Instance, string, error) {
	return LoadInstance(r.cfg.Input)
}

// Running returns the ID of the active run, or an empty string.
func (r *Runner) Running() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.runID
}

// StopRun stops the active run when runID is empty or matches it.
func (r *Runner) StopRun(runID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.engine == nil || (runID != "" && runID != r.runID) {
		return
	}
	r.log.Infof("stopping run %s", r.runID)
	r.engine.Stop()
}

// Stop stops the active run, if any.
func (r *Runner) Stop() { r.StopRun("") }

// Solve runs one search over inst with the configured parameters, writes
// the outputs and appends a run record. source is stored with the record.
func (r *Runner) Solve(ctx context.Context, inst *model.Instance, source string) (Report, error) {
	cm := cost.New(inst)
	runID := uuid.NewString()
	runLog := r.runLogger(runID)

	bus := eventbus.New[Event]()
	var wg sync.WaitGroup
	r.subscribe(bus, &wg, "metrics", r.forward)
	r.subscribe(bus, &wg, "progress", func(ev Event) { logEvent(runLog, ev) })
	for i, fn := range r.listeners {
		r.subscribe(bus, &wg, fmt.Sprintf("listener-%d", i), fn)
	}

	var annealing sync.Once
	obs := anneal.ObserverFuncs{
		OnProgress: func(p anneal.Progress) {
			annealing.Do(func() {
				publish(ctx, bus, Event{Kind: EventState, RunID: runID, State: anneal.StateAnnealing})
			})
			bus.Publish(Event{Kind: EventProgress, RunID: runID, Time: time.Now(), Progress: p})
		},
		OnLog: func(l anneal.Level, msg string) {
			bus.Publish(Event{Kind: EventLog, RunID: runID, Time: time.Now(), Level: l, Message: msg})
		},
		OnFinished: func(res anneal.Result) {
			publish(ctx, bus, Event{Kind: EventResult, RunID: runID, Result: res})
			publish(ctx, bus, Event{Kind: EventState, RunID: runID, State: res.State})
		},
	}
	engine, err := anneal.New(inst, cm, r.cfg.Solver, anneal.WithObserver(obs), anneal.WithLogger(runLog))
	if err != nil {
		bus.Close()
		wg.Wait()
		return Report{}, err
	}
	if err := r.acquire(engine, runID); err != nil {
		bus.Close()
		wg.Wait()
		return Report{}, err
	}
	defer r.release()

	publish(ctx, bus, Event{Kind: EventState, RunID: runID, State: anneal.StateBuildingInitial})
	res, err := engine.Run(ctx)
	bus.Close()
	wg.Wait()
	if err != nil {
		return Report{}, err
	}
	if n := bus.Dropped(); n > 0 {
		runLog.Warnf("%d progress events dropped by slow subscribers", n)
	}

	rep := Report{
		RunID:       runID,
		Result:      res,
		Cost:        cm.TotalCost(res.BestAssignment),
		Fingerprint: anneal.Fingerprint(res.BestAssignment),
	}
	doc := export.NewDocument(runID, inst, r.cfg.Solver, res)
	for _, path := range []string{r.cfg.Output.Submission, r.cfg.Output.Result} {
		if path == "" {
			continue
		}
		if err := export.WriteFile(path, doc); err != nil {
			return rep, fmt.Errorf("write %s: %w", path, err)
		}
		rep.Written = append(rep.Written, path)
		runLog.Infof("wrote %s", path)
	}

	rec := runlog.Record{
		RunID:       runID,
		Timestamp:   time.Now(),
		Input:       source,
		Groups:      inst.Len(),
		People:      inst.TotalSize(),
		Params:      r.cfg.Solver,
		State:       res.State,
		BestCost:    res.BestCost,
		Iterations:  res.Iterations,
		Fingerprint: rep.Fingerprint,
		Elapsed:     res.Elapsed,
		Stats:       res.Stats,
		Output:      r.cfg.Output.Submission,
	}
	if err := r.store.Append(context.WithoutCancel(ctx), rec); err != nil {
		return rep, fmt.Errorf("append run record: %w", err)
	}
	return rep, nil
}

// Run loads the configured instance and solves it.
func (r *Runner) Run(ctx context.Context) (Report, error) {
	inst, source, err := r.LoadInstance()
	if err != nil {
		return Report{}, err
	}
	r.log.Infof("loaded %d groups (%d people) from %s", inst.Len(), inst.TotalSize(), source)
	return r.Solve(ctx, inst, source)
}

// History queries the run store.
func (r *Runner) History(ctx context.Context, q runlog.Query) ([]runlog.Record, error) {
	return r.store.Query(ctx, q)
}

// Close releases the sinks and the run store.
func (r *Runner) Close() error {
	closeSink(r.sink)
	return r.store.Close()
}

func (r *Runner) acquire(e *anneal.Engine, runID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.engine != nil {
		return ErrBusy
	}
	r.engine, r.runID = e, runID
	return nil
}

func (r *Runner) release() {
	r.mu.Lock()
	r.engine, r.runID = nil, ""
	r.mu.Unlock()
}

func (r *Runner) runLogger(runID string) logger.Logger {
	if zl, ok := r.log.(*logger.ZerologLogger); ok {
		return zl.With(map[string]any{"run_id": runID})
	}
	return r.log
}

func (r *Runner) subscribe(bus *eventbus.Bus[Event], wg *sync.WaitGroup, name string, fn func(Event)) {
	ch := bus.SubscribeBuffered(progressBuffer)
	wg.Add(1)
	go func() {
		defer wg.Done()
		for ev := range ch {
			fn(ev)
		}
		r.log.Debugf("%s subscriber done", name)
	}()
}

// forward hands an event to the metrics sink. Sink errors are logged and
// never abort the run.
func (r *Runner) forward(ev Event) {
	var err error
	switch ev.Kind {
	case EventProgress:
		err = r.sink.RecordProgress(coremetrics.ProgressEvent{RunID: ev.RunID, Progress: ev.Progress, Time: ev.Time})
	case EventResult:
		if rec, ok := r.sink.(coremetrics.ResultRecorder); ok {
			err = rec.RecordResult(coremetrics.ResultEvent{
				RunID:       ev.RunID,
				Result:      ev.Result,
				Fingerprint: anneal.Fingerprint(ev.Result.BestAssignment),
				Time:        ev.Time,
			})
		}
	case EventState:
		if rec, ok := r.sink.(coremetrics.StateRecorder); ok {
			err = rec.RecordState(coremetrics.StateEvent{RunID: ev.RunID, State: ev.State, Time: ev.Time})
		}
	}
	if err != nil {
		r.log.Errorf("metrics sink: %v", err)
	}
}

func logEvent(l logger.Logger, ev Event) {
	switch ev.Kind {
	case EventProgress:
		p := ev.Progress
		l.Debugw("progress", map[string]any{
			"iteration":    p.Iteration,
			"temperature":  p.Temperature,
			"current_cost": p.CurrentCost,
			"best_cost":    p.BestCost,
			"accepted":     p.Accepted,
			"rejected":     p.Rejected,
		})
	case EventState:
		l.Infof("state %s", ev.State)
	}
}

// publish delivers lifecycle events without dropping them. A cancelled ctx
// still lets terminal events through.
func publish(ctx context.Context, bus *eventbus.Bus[Event], ev Event) {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	_ = bus.PublishWait(context.WithoutCancel(ctx), ev)
}

func closeSink(s coremetrics.MetricsSink) {
	if c, ok := s.(coremetrics.Closer); ok {
		c.Close()
	}
}

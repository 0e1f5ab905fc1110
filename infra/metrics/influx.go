package metrics

import (
	"context"
	"math"
	"net/http"
	"slices"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kilianp07/slotanneal/core/metrics"
	"github.com/kilianp07/slotanneal/infra/logger"
)

// InfluxSink writes progress and results to an InfluxDB bucket using the
// official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// InfluxConfig holds the connection settings of an InfluxSink.
type InfluxConfig struct {
	URL    string `json:"url"`
	Token  string `json:"token"`
	Org    string `json:"org"`
	Bucket string `json:"bucket"`
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(cfg InfluxConfig) *InfluxSink {
	base := strings.TrimSuffix(cfg.URL, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, cfg.Token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback pings the InfluxDB instance and returns a
// NopSink when the health check fails, so an unreachable database never
// blocks a solve.
func NewInfluxSinkWithFallback(cfg InfluxConfig) coremetrics.MetricsSink {
	sink := NewInfluxSink(cfg)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// RecordProgress writes an anneal_progress point.
func (s *InfluxSink) RecordProgress(ev coremetrics.ProgressEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := ev.Progress
	pt := write.NewPointWithMeasurement("anneal_progress").
		AddTag("run_id", ev.RunID).
		AddField("iteration", p.Iteration).
		AddField("temperature", round3(p.Temperature)).
		AddField("current_cost", round3(p.CurrentCost)).
		AddField("best_cost", round3(p.BestCost)).
		AddField("accepted", p.Accepted).
		AddField("rejected", p.Rejected)
	if len(p.Occupancy) > 0 {
		pt = pt.AddField("min_occupancy", slices.Min(p.Occupancy)).
			AddField("max_occupancy", slices.Max(p.Occupancy))
	}
	pt = pt.SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, pt)
}

// RecordResult writes an anneal_result point.
func (s *InfluxSink) RecordResult(ev coremetrics.ResultEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	r := ev.Result
	pt := write.NewPointWithMeasurement("anneal_result").
		AddTag("run_id", ev.RunID).
		AddTag("state", r.State.String()).
		AddTag("fingerprint", ev.Fingerprint).
		AddField("best_cost", round3(r.BestCost)).
		AddField("iterations", r.Iterations).
		AddField("improvements", r.Stats.Improvements).
		AddField("elapsed_s", round3(r.Elapsed.Seconds())).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, pt)
}

// Close releases the HTTP client.
func (s *InfluxSink) Close() { s.client.Close() }

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}

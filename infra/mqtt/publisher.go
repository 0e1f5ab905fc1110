// Package mqtt streams run progress to an MQTT broker and accepts remote stop
// requests.
package mqtt

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	coremetrics "github.com/kilianp07/slotanneal/core/metrics"
	"github.com/kilianp07/slotanneal/infra/logger"
)

type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
}

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

// ProgressPublisher publishes progress snapshots to <topic>/progress and
// retained results and states to <topic>/result and <topic>/state. Stop
// requests received on <topic>/control are handed to the OnStop callback.
type ProgressPublisher struct {
	cli     pahoClient
	cfg     Config
	log     logger.Logger
	backoff time.Duration

	mu     sync.Mutex
	onStop func(runID string)
}

// ProgressMessage is the payload of <topic>/progress.
type ProgressMessage struct {
	RunID       string  `json:"run_id"`
	Iteration   int     `json:"iteration"`
	Temperature float64 `json:"temperature"`
	CurrentCost float64 `json:"current_cost"`
	BestCost    float64 `json:"best_cost"`
	Occupancy   []int   `json:"occupancy"`
	Accepted    int     `json:"accepted"`
	Rejected    int     `json:"rejected"`
	Timestamp   int64   `json:"timestamp"`
}

// ResultMessage is the payload of <topic>/result.
type ResultMessage struct {
	RunID       string  `json:"run_id"`
	State       string  `json:"state"`
	BestCost    float64 `json:"best_cost"`
	Iterations  int     `json:"iterations"`
	Fingerprint string  `json:"fingerprint"`
	ElapsedMS   int64   `json:"elapsed_ms"`
	Assignment  []int   `json:"assignment,omitempty"`
	Timestamp   int64   `json:"timestamp"`
}

// StateMessage is the payload of <topic>/state.
type StateMessage struct {
	RunID     string `json:"run_id"`
	State     string `json:"state"`
	Timestamp int64  `json:"timestamp"`
}

// ControlMessage is accepted on <topic>/control.
type ControlMessage struct {
	Command string `json:"command"`
	RunID   string `json:"run_id"`
}

// NewProgressPublisher connects to the broker and subscribes to the control
// topic.
func NewProgressPublisher(cfg Config) (*ProgressPublisher, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	opts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}

	log := logger.New("mqtt_publisher")
	p := &ProgressPublisher{
		cfg:     cfg,
		log:     log,
		backoff: time.Duration(cfg.BackoffMS) * time.Millisecond,
	}

	opts.OnConnect = func(c paho.Client) {
		log.Infof("MQTT connected")
		c.Publish(p.topic("status"), 1, true, "online")
		if token := c.Subscribe(p.topic("control"), cfg.qos("control"), p.onControl); token.Wait() && token.Error() != nil {
			log.Errorf("subscribe error: %v", token.Error())
		}
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		log.Errorf("connection lost: %v", err)
	}
	opts.OnReconnecting = func(_ paho.Client, _ *paho.ClientOptions) {
		log.Warnf("reconnecting to MQTT broker")
	}
	c := newMQTTClient(opts)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	p.cli = c
	return p, nil
}

// NewClientOptions builds paho client options from Config. The last will
// marks the publisher offline on <topic>/status.
func NewClientOptions(cfg Config) (*paho.ClientOptions, error) {
	opts := paho.NewClientOptions().AddBroker(cfg.Broker).SetClientID(cfg.ClientID)
	opts.AutoReconnect = true
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	if cfg.UseTLS {
		tlsCfg, err := cfg.LoadTLSConfig()
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsCfg)
	}
	opts.SetWill(cfg.Topic+"/status", "offline", 1, true)
	return opts, nil
}

// OnStop registers the callback invoked for stop commands.
func (p *ProgressPublisher) OnStop(fn func(runID string)) {
	p.mu.Lock()
	p.onStop = fn
	p.mu.Unlock()
}

func (p *ProgressPublisher) topic(kind string) string {
	return p.cfg.Topic + "/" + kind
}

func (p *ProgressPublisher) onControl(_ paho.Client, msg paho.Message) {
	var m ControlMessage
	if err := json.Unmarshal(msg.Payload(), &m); err != nil {
		p.log.Errorf("failed to decode control message: %v", err)
		return
	}
	if m.Command != "stop" {
		p.log.Warnf("ignoring control command %q", m.Command)
		return
	}
	p.mu.Lock()
	fn := p.onStop
	p.mu.Unlock()
	if fn != nil {
		p.log.Infof("stop requested for run %s", m.RunID)
		fn(m.RunID)
	}
}

// RecordProgress publishes a progress snapshot. Progress messages are not
// retried; the next snapshot supersedes a lost one.
func (p *ProgressPublisher) RecordProgress(ev coremetrics.ProgressEvent) error {
	pr := ev.Progress
	msg := ProgressMessage{
		RunID:       ev.RunID,
		Iteration:   pr.Iteration,
		Temperature: pr.Temperature,
		CurrentCost: pr.CurrentCost,
		BestCost:    pr.BestCost,
		Occupancy:   pr.Occupancy,
		Accepted:    pr.Accepted,
		Rejected:    pr.Rejected,
		Timestamp:   ev.Time.UnixMilli(),
	}
	return p.publish("progress", false, 0, msg)
}

// RecordResult publishes the retained final result.
func (p *ProgressPublisher) RecordResult(ev coremetrics.ResultEvent) error {
	r := ev.Result
	msg := ResultMessage{
		RunID:       ev.RunID,
		State:       r.State.String(),
		BestCost:    r.BestCost,
		Iterations:  r.Iterations,
		Fingerprint: ev.Fingerprint,
		ElapsedMS:   r.Elapsed.Milliseconds(),
		Timestamp:   ev.Time.UnixMilli(),
	}
	if p.cfg.IncludeAssignment {
		msg.Assignment = r.BestAssignment
	}
	return p.publish("result", true, p.cfg.MaxRetries, msg)
}

// RecordState publishes the retained lifecycle state.
func (p *ProgressPublisher) RecordState(ev coremetrics.StateEvent) error {
	msg := StateMessage{RunID: ev.RunID, State: ev.State.String(), Timestamp: ev.Time.UnixMilli()}
	return p.publish("state", true, p.cfg.MaxRetries, msg)
}

func (p *ProgressPublisher) publish(kind string, retained bool, retries int, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	topic := p.topic(kind)
	var publishErr error
	for attempt := 0; attempt <= retries; attempt++ {
		token := p.cli.Publish(topic, p.cfg.qos(kind), retained, payload)
		token.Wait()
		publishErr = token.Error()
		if publishErr == nil {
			p.log.Debugf("published %s", topic)
			return nil
		}
		p.log.Errorf("publish attempt %d to %s failed: %v", attempt+1, topic, publishErr)
		if attempt < retries {
			time.Sleep(p.backoff * time.Duration(1<<attempt))
		}
	}
	return fmt.Errorf("publish %s: %w", topic, publishErr)
}

// Close marks the publisher offline and disconnects.
func (p *ProgressPublisher) Close() {
	if p.cli != nil && p.cli.IsConnected() {
		p.cli.Publish(p.cfg.Topic+"/status", 1, true, "offline").Wait()
		p.cli.Disconnect(250)
	}
}

package main

import (
	"fmt"
	"os"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sweeney/button-sensor/internal/gpio"
	"github.com/sweeney/button-sensor/internal/logic"
	"github.com/sweeney/button-sensor/internal/mqtt"
	"github.com/sweeney/button-sensor/internal/status"
	"github.com/sweeney/button-sensor/internal/web"
)

// edgeQueue forwards edges from the gpio event goroutine to the run loop.
// When the queue is full the edge is dropped and the loop re-reads every
// line on its next tick.
type edgeQueue struct {
	C       chan gpio.Edge
	dropped atomic.Bool
}

func newEdgeQueue(size int) *edgeQueue {
	q := &edgeQueue{C: make(chan gpio.Edge, size)}
	// Seed levels on the first tick.
	q.dropped.Store(true)
	return q
}

func (q *edgeQueue) push(e gpio.Edge) {
	select {
	case q.C <- e:
	default:
		q.dropped.Store(true)
	}
}

// daemon owns the button group and fans its events out to MQTT, the status
// tracker and websocket clients. It runs on the runLoop goroutine.
type daemon struct {
	group      *logic.Group
	inputs     []*logic.Input
	names      []string
	index      map[*logic.Input]int
	reader     gpio.Reader
	publisher  mqtt.Publisher
	mqttStatus mqtt.ConnectionStatus
	tracker    *status.Tracker
	hub        *web.Hub
	heartbeat  *status.Heartbeat
	log        logrus.FieldLogger
	session    string

	// edges is set in edge mode; otherwise every line is read on each tick.
	edges *edgeQueue

	start   time.Time
	now     func() time.Time
	current time.Time
	pending []pendingEvent
}

// pendingEvent is an engine event waiting for dispatch, with the input it
// came from.
type pendingEvent struct {
	event logic.Event
	input *logic.Input
}

type daemonConfig struct {
	Names      []string
	Inputs     []*logic.Input
	Timing     logic.Timing
	Reader     gpio.Reader
	Publisher  mqtt.Publisher
	MQTTStatus mqtt.ConnectionStatus
	Tracker    *status.Tracker
	Hub        *web.Hub
	Heartbeat  time.Duration
	Edges      *edgeQueue
	Session    string
	Log        logrus.FieldLogger
	Now        func() time.Time
}

func newDaemon(cfg daemonConfig) (*daemon, error) {
	if len(cfg.Names) != len(cfg.Inputs) {
		return nil, fmt.Errorf("%d names for %d inputs", len(cfg.Names), len(cfg.Inputs))
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	start := now()

	index := make(map[*logic.Input]int, len(cfg.Inputs))
	for i, in := range cfg.Inputs {
		index[in] = i
	}

	d := &daemon{
		inputs:     cfg.Inputs,
		names:      cfg.Names,
		index:      index,
		reader:     cfg.Reader,
		publisher:  cfg.Publisher,
		mqttStatus: cfg.MQTTStatus,
		tracker:    cfg.Tracker,
		hub:        cfg.Hub,
		heartbeat:  status.NewHeartbeat(cfg.Heartbeat, start),
		log:        cfg.Log,
		session:    cfg.Session,
		edges:      cfg.Edges,
		start:      start,
		now:        now,
		current:    start,
	}
	g, err := logic.NewGroup(logic.GroupConfig{
		Inputs: cfg.Inputs,
		Sink:   d,
		Mode:   logic.SampleManual,
		Timing: cfg.Timing,
	})
	if err != nil {
		return nil, fmt.Errorf("build button group: %w", err)
	}
	d.group = g
	return d, nil
}

// millis converts wall time to the engine clock. It wraps after ~49 days.
func (d *daemon) millis(t time.Time) logic.Millis {
	return logic.Millis(t.Sub(d.start).Milliseconds())
}

// HandleEvent queues an engine event for dispatch after the current pass.
func (d *daemon) HandleEvent(_ *logic.Group, in *logic.Input, kind logic.EventKind) {
	name := d.names[d.index[in]]
	d.pending = append(d.pending, pendingEvent{
		event: logic.NewEvent(name, in, kind, d.millis(d.current)),
		input: in,
	})
}

// readLevels samples every line into the group.
func (d *daemon) readLevels() error {
	levels, err := d.reader.Read()
	if err != nil {
		return err
	}
	if len(levels) != len(d.inputs) {
		return fmt.Errorf("read %d levels for %d buttons", len(levels), len(d.inputs))
	}
	for i, in := range d.inputs {
		d.group.SetLevel(in, levels[i])
	}
	return nil
}

func (d *daemon) dispatch() {
	events := d.pending
	d.pending = nil
	for _, p := range events {
		e := p.event
		fields := logrus.Fields{"button": e.Button, "event": e.Type}
		if e.Count > 0 {
			fields["count"] = e.Count
		}
		d.log.WithFields(fields).Info("button event")

		if err := d.publisher.Publish(mqtt.Event{Event: e, Timestamp: d.current}); err != nil {
			// Don't crash on publish failure
			d.log.WithError(err).Warn("publish error")
		}
		if d.tracker != nil {
			d.tracker.Record(e, d.current)
		}
		if d.hub != nil {
			d.hub.BroadcastEvent(e, d.current, p.input.IsActive())
		}
	}
}

func (d *daemon) updateStatus() {
	if d.tracker == nil {
		return
	}
	d.tracker.Update(d.inputs)
	if d.mqttStatus != nil {
		d.tracker.SetMQTTConnected(d.mqttStatus.IsConnected())
	}
}

// publishSystem sends a lifecycle event carrying a status snapshot.
func (d *daemon) publishSystem(event, reason string, retained bool) {
	e := mqtt.SystemEvent{
		Timestamp: d.now(),
		Event:     event,
		Reason:    reason,
		Session:   d.session,
		Retained:  retained,
	}
	if d.tracker != nil {
		d.updateStatus()
		if event != "SHUTDOWN" {
			if net := readNetworkInfo(); net != nil {
				d.tracker.SetNetwork(net)
			}
		}
		e.RawPayload = status.FormatStatusEvent(d.tracker.Snapshot(), event, reason)
	}
	log := d.log.WithField("event", event)
	if err := d.publisher.PublishSystem(e); err != nil {
		log.WithError(err).Warn("failed to publish system event")
		return
	}
	log.Debug("published system event")
}

func (d *daemon) handleTick() {
	d.current = d.now()
	if d.edges == nil || d.edges.dropped.Swap(false) {
		if err := d.readLevels(); err != nil {
			d.log.WithError(err).Warn("gpio read error")
			if d.edges != nil {
				d.edges.dropped.Store(true)
			}
			return
		}
	}
	d.group.ProcessAll(d.millis(d.current))
	d.dispatch()
	d.updateStatus()

	if d.heartbeat.Due(d.current) {
		d.log.WithField("uptime", d.current.Sub(d.start).Truncate(time.Second)).Info("heartbeat")
		d.publishSystem("HEARTBEAT", "", false)
	}
}

func (d *daemon) handleEdge(e gpio.Edge) {
	if e.Index < 0 || e.Index >= len(d.inputs) {
		d.log.WithField("index", e.Index).Warn("edge for unknown line")
		return
	}
	d.current = d.now()
	in := d.inputs[e.Index]
	d.group.SetLevel(in, e.Active)
	d.group.ProcessOne(in, d.millis(d.current))
	d.dispatch()
	d.updateStatus()
}

func (d *daemon) handleReset(req web.ResetRequest) {
	var err error
	if req.Button == "" {
		d.group.Reset()
		d.log.Info("all buttons reset")
	} else {
		err = fmt.Errorf("unknown button %q", req.Button)
		for i, name := range d.names {
			if name == req.Button {
				d.inputs[i].Reset()
				err = nil
				d.log.WithField("button", name).Info("button reset")
			}
		}
	}
	d.updateStatus()
	if req.Done != nil {
		req.Done <- err
	}
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	}
	return "UNKNOWN"
}

// runLoop processes ticks, edges and reset requests until a signal arrives.
// Nil channels are never selected.
func runLoop(d *daemon, tick <-chan time.Time, edges <-chan gpio.Edge, resets <-chan web.ResetRequest, sig <-chan os.Signal) error {
	for {
		select {
		case s := <-sig:
			d.log.WithField("signal", s).Info("shutting down")
			d.publishSystem("SHUTDOWN", signalName(s), true)
			return nil

		case <-tick:
			d.handleTick()

		case e := <-edges:
			d.handleEdge(e)

		case req := <-resets:
			d.handleReset(req)
		}
	}
}

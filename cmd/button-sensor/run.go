package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sweeney/button-sensor/internal/config"
	"github.com/sweeney/button-sensor/internal/gpio"
	"github.com/sweeney/button-sensor/internal/mqtt"
	"github.com/sweeney/button-sensor/internal/status"
	"github.com/sweeney/button-sensor/internal/web"
)

type runFlags struct {
	mode      string
	poll      time.Duration
	heartbeat time.Duration
	broker    string
	http      string
}

func newRunCmd(opts *rootOptions, log *logrus.Logger) *cobra.Command {
	var f runFlags
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Watch the buttons and publish events",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			applyRunFlags(cmd, &cfg, f)
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}
			return run(cfg, log)
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&f.mode, "mode", config.ModePoll, "sampling mode (poll, edge)")
	fl.DurationVar(&f.poll, "poll", 5*time.Millisecond, "processing interval")
	fl.DurationVar(&f.heartbeat, "heartbeat", 15*time.Minute, "heartbeat interval (0 to disable)")
	fl.StringVar(&f.broker, "broker", "", "MQTT broker address")
	fl.StringVar(&f.http, "http", "", "HTTP status address (empty to disable)")
	return cmd
}

// applyRunFlags overrides file settings with flags set on the command line.
func applyRunFlags(cmd *cobra.Command, cfg *config.Config, f runFlags) {
	fl := cmd.Flags()
	if fl.Changed("mode") {
		cfg.Mode = f.mode
	}
	if fl.Changed("poll") {
		cfg.PollMs = f.poll.Milliseconds()
	}
	if fl.Changed("heartbeat") {
		cfg.HeartbeatMs = f.heartbeat.Milliseconds()
	}
	if fl.Changed("broker") {
		cfg.Broker = f.broker
	}
	if fl.Changed("http") {
		cfg.HTTP = f.http
	}
}

func buttonNames(cfg config.Config) []string {
	names := make([]string, len(cfg.Buttons))
	for i, b := range cfg.Buttons {
		names[i] = b.Name
	}
	return names
}

func statusButtons(cfg config.Config) []status.Button {
	bs := make([]status.Button, len(cfg.Buttons))
	for i, b := range cfg.Buttons {
		bs[i] = status.Button{Name: b.Name, Pin: b.Pin}
	}
	return bs
}

func run(cfg config.Config, log *logrus.Logger) error {
	session := newSession()
	logger := log.WithField("session", session)

	var edges *edgeQueue
	var edgeC <-chan gpio.Edge
	var onEdge func(gpio.Edge)
	if cfg.Mode == config.ModeEdge {
		edges = newEdgeQueue(64)
		edgeC = edges.C
		onEdge = edges.push
	}

	reader, err := gpio.NewRealReader(cfg.Chip, cfg.Lines(), onEdge)
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer reader.Close()

	publisher := mqtt.NewRealPublisher(mqtt.Options{
		Broker:   cfg.Broker,
		ClientID: cfg.ClientID,
		Session:  session,
		Logger:   logger,
	})
	defer publisher.Close()

	tracker := status.NewTracker(time.Now(), status.Config{
		Session:     session,
		Mode:        cfg.Mode,
		PollMs:      cfg.PollMs,
		HeartbeatMs: cfg.HeartbeatMs,
		Broker:      cfg.Broker,
		HTTPAddr:    cfg.HTTP,
	}, statusButtons(cfg))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub := web.NewHub(logger)
	go hub.Run(ctx)

	d, err := newDaemon(daemonConfig{
		Names:      buttonNames(cfg),
		Inputs:     cfg.Inputs(),
		Timing:     cfg.GroupTiming(),
		Reader:     reader,
		Publisher:  publisher,
		MQTTStatus: publisher,
		Tracker:    tracker,
		Hub:        hub,
		Heartbeat:  cfg.Heartbeat(),
		Edges:      edges,
		Session:    session,
		Log:        logger,
	})
	if err != nil {
		return err
	}
	d.publishSystem("STARTUP", "", true)

	var resets chan web.ResetRequest
	if cfg.HTTP != "" {
		resets = make(chan web.ResetRequest)
		srv := web.New(cfg.HTTP, tracker, web.Options{Hub: hub, Resets: resets, Logger: logger})
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.WithError(err).Error("http server error")
			}
		}()
		defer srv.Shutdown(context.Background())
		logger.WithField("addr", cfg.HTTP).Info("http status server listening")
	}

	logger.WithFields(logrus.Fields{
		"mode":      cfg.Mode,
		"poll":      cfg.Poll(),
		"broker":    cfg.Broker,
		"heartbeat": cfg.Heartbeat(),
		"buttons":   len(cfg.Buttons),
	}).Info("started")

	ticker := time.NewTicker(cfg.Poll())
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return runLoop(d, ticker.C, edgeC, resets, sigCh)
}

// newSession returns a time-ordered id for this daemon run.
func newSession() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

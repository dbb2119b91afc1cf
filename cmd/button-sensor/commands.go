package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sweeney/button-sensor/internal/config"
	"github.com/sweeney/button-sensor/internal/gpio"
	"github.com/sweeney/button-sensor/internal/logic"
	"github.com/sweeney/button-sensor/internal/scenario"
)

// errMismatch is returned by replay when a scenario's expectations fail.
var errMismatch = errors.New("scenario expectations not met")

func newPrintStateCmd(opts *rootOptions, log *logrus.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "print-state",
		Short: "Read every button once and print its level",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}
			reader, err := gpio.NewRealReader(cfg.Chip, cfg.Lines(), nil)
			if err != nil {
				return fmt.Errorf("init gpio: %w", err)
			}
			defer reader.Close()

			log.WithField("chip", cfg.Chip).Debug("reading buttons")
			return printState(cmd.OutOrStdout(), buttonNames(cfg), reader)
		},
	}
}

func printState(w io.Writer, names []string, reader gpio.Reader) error {
	levels, err := reader.Read()
	if err != nil {
		return fmt.Errorf("read gpio: %w", err)
	}
	if len(levels) != len(names) {
		return fmt.Errorf("read %d levels for %d buttons", len(levels), len(names))
	}
	for i, name := range names {
		state := "released"
		if levels[i] {
			state = "pressed"
		}
		fmt.Fprintf(w, "%s: %s\n", name, state)
	}
	return nil
}

func newReplayCmd(opts *rootOptions) *cobra.Command {
	var format string
	var useConfig bool
	cmd := &cobra.Command{
		Use:   "replay SCENARIO...",
		Short: "Run recorded button traces through the engine and print the events",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			base := logic.DefaultTiming()
			if useConfig {
				cfg, err := config.Load(opts.configPath)
				if err != nil {
					return err
				}
				if err := cfg.Validate(); err != nil {
					return fmt.Errorf("invalid config: %w", err)
				}
				base = cfg.GroupTiming()
			}
			return replay(cmd.OutOrStdout(), args, base, format)
		},
	}
	cmd.Flags().StringVar(&format, "format", scenario.FormatText, "output format (text, json)")
	cmd.Flags().BoolVar(&useConfig, "use-config", false, "start from the timing in the configuration file")
	return cmd
}

// replay runs every scenario file and writes its trace. All files are run
// even when one fails its expectations.
func replay(w io.Writer, paths []string, base logic.Timing, format string) error {
	failed := 0
	for _, path := range paths {
		s, err := scenario.Load(path)
		if err != nil {
			return err
		}
		r, err := scenario.Run(s, base)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		if err := scenario.Write(w, r, format); err != nil {
			return err
		}
		if !r.Passed() {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d: %w", failed, len(paths), errMismatch)
	}
	return nil
}

// Command button-sensor watches GPIO buttons and publishes press, release,
// click and keepalive events to MQTT.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sweeney/button-sensor/internal/config"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

type rootOptions struct {
	configPath string
	logLevel   string
	logFormat  string
}

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	opts := &rootOptions{}
	log := logrus.New()

	root := &cobra.Command{
		Use:           "button-sensor",
		Short:         "Publish debounced button events from GPIO to MQTT",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setupLogger(log, opts.logLevel, opts.logFormat)
		},
	}
	root.SetOut(out)
	root.SetErr(out)

	pf := root.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", config.DefaultPath, "configuration file")
	pf.StringVar(&opts.logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	pf.StringVar(&opts.logFormat, "log-format", "text", "log format (text, json)")

	root.AddCommand(
		newRunCmd(opts, log),
		newPrintStateCmd(opts, log),
		newReplayCmd(opts),
		newInstallCmd(opts, log),
		newVersionCmd(),
	)
	return root
}

func setupLogger(log *logrus.Logger, level, format string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	log.SetLevel(lvl)

	switch format {
	case "text":
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case "json":
		log.SetFormatter(&logrus.JSONFormatter{})
	default:
		return fmt.Errorf("log format %q: must be text or json", format)
	}
	log.SetOutput(os.Stderr)
	return nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "button-sensor %s\n", version)
		},
	}
}

func newInstallCmd(opts *rootOptions, log *logrus.Logger) *cobra.Command {
	var reset bool
	cmd := &cobra.Command{
		Use:   "install",
		Short: "Write the default configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.Install(opts.configPath, reset); err != nil {
				return err
			}
			log.WithField("path", opts.configPath).Info("configuration installed")
			return nil
		},
	}
	cmd.Flags().BoolVar(&reset, "reset", false, "overwrite an existing configuration file")
	return cmd
}

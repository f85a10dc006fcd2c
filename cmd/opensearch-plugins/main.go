// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/juju/errors"
	"github.com/juju/gnuflag"
	"github.com/juju/loggo/v2"

	"github.com/canonical/opensearch-plugins/internal/config"
)

var logger = loggo.GetLogger("opensearch.plugins.cmd")

const defaultConfigFile = "/var/snap/opensearch/common/plugins.yaml"

type commandLineArgs struct {
	configFile    string
	once          bool
	loggingConfig string
}

func commandLine(args []string, stderr io.Writer) (commandLineArgs, error) {
	flags := gnuflag.NewFlagSet("opensearch-plugins", gnuflag.ContinueOnError)
	flags.SetOutput(stderr)
	var a commandLineArgs
	flags.StringVar(&a.configFile, "config", defaultConfigFile,
		"path of the agent configuration file")
	flags.BoolVar(&a.once, "once", false,
		"run a single reconciliation, print its result and exit")
	flags.StringVar(&a.loggingConfig, "logging-config", "",
		"logging configuration, e.g. <root>=DEBUG, overriding the file")

	if err := flags.Parse(true, args); err != nil {
		return a, err
	}
	if flags.NArg() > 0 {
		return a, errors.Errorf("unrecognized args: %q", flags.Args())
	}
	return a, nil
}

func setupLogging(stderr io.Writer, spec string) error {
	writer := loggo.NewSimpleWriter(stderr, logFormatter)
	if _, err := loggo.ReplaceDefaultWriter(writer); err != nil {
		return errors.Trace(err)
	}
	return loggo.ConfigureLoggers(spec)
}

func logFormatter(entry loggo.Entry) string {
	ts := entry.Timestamp.In(time.UTC).Format("2006-01-02 15:04:05")
	return fmt.Sprintf("%s %s %s %s", ts, entry.Level, entry.Module, entry.Message)
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	a, err := commandLine(args, stderr)
	if errors.Is(err, gnuflag.ErrHelp) {
		return 0
	} else if err != nil {
		fmt.Fprintf(stderr, "ERROR %v\n", err)
		return 2
	}

	cfg, err := config.Read(a.configFile)
	if err != nil {
		fmt.Fprintf(stderr, "ERROR %v\n", err)
		return 1
	}
	spec := cfg.LoggingConfig
	if a.loggingConfig != "" {
		spec = a.loggingConfig
	}
	if err := setupLogging(stderr, spec); err != nil {
		fmt.Fprintf(stderr, "ERROR setting up logging: %v\n", err)
		return 1
	}

	agent, err := newAgent(cfg)
	if err != nil {
		logger.Errorf("%v", err)
		return 1
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if a.once {
		return runOnce(ctx, agent.manager, stdout)
	}
	if err := agent.run(ctx); err != nil {
		logger.Errorf("%v", err)
		return 1
	}
	return 0
}

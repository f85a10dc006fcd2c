// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package main

import (
	"context"
	"fmt"
	"io"

	"github.com/juju/ansiterm"

	"github.com/canonical/opensearch-plugins/internal/plugin"
	"github.com/canonical/opensearch-plugins/internal/plugin/manager"
)

// reconciler is implemented by *manager.Manager.
type reconciler interface {
	Reconcile(ctx context.Context) (manager.Result, error)
}

// runOnce runs one reconciliation and prints its result. A cluster that
// is not ready is not a failure.
func runOnce(ctx context.Context, r reconciler, stdout io.Writer) int {
	result, err := r.Reconcile(ctx)
	if plugin.IsRetryable(err) {
		fmt.Fprintf(stdout, "waiting for cluster to be ready: %v\n", err)
		return 0
	}
	if len(result.Plugins) > 0 {
		if err := printResult(stdout, result); err != nil {
			logger.Errorf("writing result: %v", err)
			return 1
		}
	}
	if err != nil {
		logger.Errorf("reconciling plugins: %v", err)
		return 1
	}
	if result.RestartRequired {
		fmt.Fprintln(stdout, "restart required")
	}
	return 0
}

var actionColor = map[manager.Action]*ansiterm.Context{
	manager.ActionInstalled:  ansiterm.Foreground(ansiterm.Green),
	manager.ActionConfigured: ansiterm.Foreground(ansiterm.Green),
	manager.ActionDisabled:   ansiterm.Foreground(ansiterm.Yellow),
	manager.ActionFailed:     ansiterm.Foreground(ansiterm.BrightRed),
}

func printResult(out io.Writer, result manager.Result) error {
	tw := ansiterm.NewTabWriter(out, 0, 1, 2, ' ', 0)
	fmt.Fprintln(tw, "Plugin\tState\tWanted\tAction\tRestart")
	for _, pr := range result.Plugins {
		fmt.Fprintf(tw, "%s\t%s\t%v\t", pr.Name, pr.State, pr.Wanted)
		if ctx, ok := actionColor[pr.Action]; ok {
			ctx.Fprint(tw, pr.Action)
		} else {
			fmt.Fprint(tw, pr.Action)
		}
		fmt.Fprintf(tw, "\t%v\n", pr.RestartRequired)
	}
	return tw.Flush()
}

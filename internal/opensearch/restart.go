// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package opensearch

import (
	"context"

	"github.com/juju/errors"
)

// DefaultRestartCommand restarts the snap service of the node.
const DefaultRestartCommand = "snapctl restart opensearch.daemon"

// ServiceRestarter restarts the node with a shell command.
type ServiceRestarter struct {
	layout  Layout
	runner  CommandRunner
	command string
}

// NewServiceRestarter returns a ServiceRestarter running command.
func NewServiceRestarter(layout Layout, runner CommandRunner, command string) (*ServiceRestarter, error) {
	if err := layout.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	if runner == nil {
		return nil, errors.NotValidf("nil runner")
	}
	if command == "" {
		return nil, errors.NotValidf("empty restart command")
	}
	return &ServiceRestarter{layout: layout, runner: runner, command: command}, nil
}

// RequestRestart runs the restart command.
func (r *ServiceRestarter) RequestRestart(ctx context.Context) error {
	logger.Infof("restarting opensearch")
	if _, err := runShell(ctx, r.runner, r.layout, "restart", r.command); err != nil {
		return errors.Annotate(err, "restarting opensearch")
	}
	return nil
}

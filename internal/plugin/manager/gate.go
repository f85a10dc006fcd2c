// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package manager

import (
	"context"

	"github.com/juju/errors"

	"github.com/canonical/opensearch-plugins/internal/plugin"
)

// EnsureReady returns nil if the service is running and the cluster health
// is green or yellow. Otherwise it returns an error satisfying
// plugin.ErrClusterNotReady, which only means the reconciliation has to be
// run again on a later trigger.
func (m *Manager) EnsureReady(ctx context.Context) error {
	running, err := m.cfg.Node.IsRunning(ctx)
	if err != nil {
		return notReady(errors.Annotate(err, "checking service"))
	}
	if !running {
		return notReady(errors.New("service not running"))
	}

	// Probe once; the health endpoint may answer differently on a second call.
	color, err := m.cfg.Health.Health(ctx)
	if err != nil {
		return notReady(errors.Annotate(err, "probing cluster health"))
	}
	if !color.Operable() {
		return notReady(errors.Errorf("cluster health is %s", color))
	}
	return nil
}

func notReady(err error) error {
	return errors.WithType(err, plugin.ErrClusterNotReady)
}

// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package pluginmanager runs plugin reconciliation cycles whenever the
// charm configuration or relations change, and periodically otherwise.
package pluginmanager

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/retry"
	"github.com/juju/worker/v4"
	"github.com/juju/worker/v4/catacomb"

	"github.com/canonical/opensearch-plugins/core/status"
	"github.com/canonical/opensearch-plugins/internal/plugin"
	"github.com/canonical/opensearch-plugins/internal/plugin/manager"
)

const notReadyMessage = "waiting for cluster to be ready"

// Reconciler runs a reconciliation cycle.
type Reconciler interface {
	Reconcile(ctx context.Context) (manager.Result, error)
}

// Restarter restarts the OpenSearch service so plugin changes take
// effect. Implementations coordinate with the other units so that nodes
// restart one at a time.
type Restarter interface {
	RequestRestart(ctx context.Context) error
}

// Config holds configuration required to run the plugin manager worker.
type Config struct {
	Reconciler Reconciler
	Status     status.StatusSetter
	Restarter  Restarter

	// Triggers receives a value whenever a cycle should run, e.g. on
	// config-changed or relation-changed.
	Triggers <-chan struct{}

	Clock clock.Clock

	// ResyncInterval is the time between cycles without a trigger.
	ResyncInterval time.Duration

	// RetryDelay and MaxRetryDelay bound the backoff applied while the
	// cluster is not ready.
	RetryDelay    time.Duration
	MaxRetryDelay time.Duration

	Metrics *Collector
	Logger  manager.Logger
}

// Validate ensures that the configuration is
// correctly populated for worker operation.
func (config Config) Validate() error {
	if config.Reconciler == nil {
		return errors.NotValidf("nil Reconciler")
	}
	if config.Status == nil {
		return errors.NotValidf("nil Status")
	}
	if config.Restarter == nil {
		return errors.NotValidf("nil Restarter")
	}
	if config.Clock == nil {
		return errors.NotValidf("nil Clock")
	}
	if config.ResyncInterval <= 0 {
		return errors.NotValidf("non-positive ResyncInterval")
	}
	if config.RetryDelay <= 0 {
		return errors.NotValidf("non-positive RetryDelay")
	}
	if config.MaxRetryDelay < config.RetryDelay {
		return errors.NotValidf("MaxRetryDelay shorter than RetryDelay")
	}
	if config.Metrics == nil {
		return errors.NotValidf("nil Metrics")
	}
	if config.Logger == nil {
		return errors.NotValidf("nil Logger")
	}
	return nil
}

type pluginWorker struct {
	catacomb catacomb.Catacomb

	cfg     Config
	backoff func(time.Duration, int) time.Duration

	attempts   int
	lastStatus *status.StatusInfo
}

// NewWorker starts a new plugin manager worker based
// on the input configuration and returns it.
func NewWorker(cfg Config) (worker.Worker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Trace(err)
	}

	w := &pluginWorker{
		cfg:     cfg,
		backoff: retry.ExpBackoff(cfg.RetryDelay, cfg.MaxRetryDelay, 2, true),
	}
	if err := catacomb.Invoke(catacomb.Plan{
		Site: &w.catacomb,
		Work: w.loop,
	}); err != nil {
		return nil, errors.Trace(err)
	}
	return w, nil
}

func (w *pluginWorker) loop() error {
	ctx := w.catacomb.Context(context.Background())
	triggers := w.cfg.Triggers

	timer := w.cfg.Clock.NewTimer(w.cycle(ctx))
	defer timer.Stop()

	for {
		select {
		case <-w.catacomb.Dying():
			return w.catacomb.ErrDying()
		case _, ok := <-triggers:
			if !ok {
				triggers = nil
				continue
			}
			w.cfg.Logger.Debugf("reconciliation triggered")
		case <-timer.Chan():
		}
		timer.Reset(w.cycle(ctx))
	}
}

// cycle runs one reconciliation, reports its outcome and returns the
// delay before the next one.
func (w *pluginWorker) cycle(ctx context.Context) time.Duration {
	start := w.cfg.Clock.Now()
	result, err := w.cfg.Reconciler.Reconcile(ctx)
	if err != nil && ctx.Err() != nil {
		// Dying; the loop returns on its next iteration.
		return w.cfg.ResyncInterval
	}
	w.cfg.Metrics.observe(result, err, w.cfg.Clock.Now().Sub(start))

	var failures *multierror.Error
	switch {
	case plugin.IsRetryable(err):
		delay := w.retryDelay()
		w.cfg.Logger.Infof("%s, retrying in %v: %v", notReadyMessage, delay, err)
		w.setStatus(status.Waiting, notReadyMessage)
		return delay

	case errors.As(err, &failures):
		// Plugins that did not fail may still need the restart.
		w.cfg.Logger.Errorf("reconciling plugins: %v", err)

	case err != nil:
		w.attempts = 0
		w.cfg.Logger.Errorf("reconciling plugins: %v", err)
		w.setStatus(status.Blocked, err.Error())
		return w.cfg.ResyncInterval
	}

	if result.RestartRequired {
		w.setStatus(status.Maintenance, "restarting to apply plugin changes")
		if err := w.cfg.Restarter.RequestRestart(ctx); err != nil {
			delay := w.retryDelay()
			w.cfg.Logger.Warningf("requesting restart, retrying in %v: %v", delay, err)
			w.setStatus(status.Waiting, "waiting to restart")
			return delay
		}
		// The follow-up cycle finishes what the restart made possible,
		// e.g. configuring a plugin just installed.
		w.attempts = 0
		return w.cfg.RetryDelay
	}

	w.attempts = 0
	if failures != nil {
		w.setStatus(status.Blocked, failedMessage(result))
		return w.cfg.ResyncInterval
	}
	w.setStatus(status.Active, "")
	return w.cfg.ResyncInterval
}

func (w *pluginWorker) retryDelay() time.Duration {
	delay := w.backoff(0, w.attempts)
	w.attempts++
	return delay
}

func (w *pluginWorker) setStatus(s status.Status, message string) {
	info := status.StatusInfo{Status: s, Message: message}
	if w.lastStatus != nil && *w.lastStatus == info {
		return
	}
	if err := w.cfg.Status.SetStatus(info); err != nil {
		w.cfg.Logger.Warningf("setting status %s: %v", s, err)
		return
	}
	w.lastStatus = &info
}

// failedMessage lists the plugins that failed for the unit status.
func failedMessage(result manager.Result) string {
	var failed []string
	for _, pr := range result.Plugins {
		if pr.Action == manager.ActionFailed {
			failed = append(failed, pr.Name)
		}
	}
	return fmt.Sprintf("failed to reconcile plugins %v", failed)
}

// Kill (worker.Worker) tells the worker to stop and return from its loop.
func (w *pluginWorker) Kill() {
	w.catacomb.Kill(nil)
}

// Wait (worker.Worker) waits for the worker to stop,
// and returns the error with which it exited.
func (w *pluginWorker) Wait() error {
	return w.catacomb.Wait()
}

// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package manager reconciles the plugins installed and enabled on an
// OpenSearch node with the plugins requested through the charm
// configuration and relations.
//
// A reconciliation is a single synchronous pass. It first checks the
// cluster can take changes, then for every catalog plugin computes its
// state and whether it is wanted, and takes at most one of these actions:
//
//   - install it, if it is missing and wanted;
//   - apply its enabling configuration, if it is installed and wanted;
//   - apply its disabling configuration, if it is enabled and not wanted.
//
// An enabled plugin that is still wanted gets its secrets written again and
// its snapshot repository, if it backs one, registered.
//
// Nothing is stored between passes: the state is derived again every time,
// so a pass repairs whatever drift the previous one left.
package manager

import (
	"context"

	"github.com/hashicorp/go-multierror"
	"github.com/juju/collections/set"
	"github.com/juju/errors"

	"github.com/canonical/opensearch-plugins/internal/plugin"
)

// Config holds the collaborators of a Manager.
type Config struct {
	Catalog      *plugin.Catalog
	Node         NodeOperations
	Health       HealthProber
	ConfigStore  ConfigStore
	Secrets      SecretStore
	CharmConfig  CharmConfig
	Relations    Relations
	Versions     plugin.VersionReader
	RelationData plugin.RelationDataGetter

	// Repositories registers the snapshot repositories of enabled
	// plugins. Registration is skipped when nil.
	Repositories RepositoryRegistry

	Logger Logger
}

// Validate ensures that the config values are valid.
func (c Config) Validate() error {
	if c.Catalog == nil {
		return errors.NotValidf("nil Catalog")
	}
	if c.Node == nil {
		return errors.NotValidf("nil Node")
	}
	if c.Health == nil {
		return errors.NotValidf("nil Health")
	}
	if c.ConfigStore == nil {
		return errors.NotValidf("nil ConfigStore")
	}
	if c.Secrets == nil {
		return errors.NotValidf("nil Secrets")
	}
	if c.CharmConfig == nil {
		return errors.NotValidf("nil CharmConfig")
	}
	if c.Relations == nil {
		return errors.NotValidf("nil Relations")
	}
	if c.Logger == nil {
		return errors.NotValidf("nil Logger")
	}
	return nil
}

// Manager reconciles the plugins of one node.
type Manager struct {
	cfg Config
}

// NewManager returns a Manager using the given collaborators.
func NewManager(cfg Config) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	return &Manager{cfg: cfg}, nil
}

// Plugins builds the catalog plugins for the current environment.
func (m *Manager) Plugins(ctx context.Context) ([]plugin.Plugin, error) {
	plugins, err := m.cfg.Catalog.Plugins(ctx, plugin.Env{
		Versions:     m.cfg.Versions,
		RelationData: m.cfg.RelationData,
	})
	return plugins, errors.Trace(err)
}

// Reconcile runs one reconciliation cycle.
//
// If the cluster is not ready, the returned error satisfies
// plugin.ErrClusterNotReady and nothing was changed. A configuration
// error aborts the cycle at the plugin that raised it. Dependency and
// command errors only fail the plugin they concern: the remaining plugins
// are still processed and the errors are returned together with the
// result of the cycle.
func (m *Manager) Reconcile(ctx context.Context) (Result, error) {
	var result Result
	if err := m.EnsureReady(ctx); err != nil {
		return result, errors.Trace(err)
	}

	plugins, err := m.Plugins(ctx)
	if err != nil {
		return result, errors.Trace(err)
	}

	var failures *multierror.Error
	for _, p := range plugins {
		pr, err := m.reconcilePlugin(ctx, p)
		if errors.Is(err, plugin.ErrMissingConfig) || errors.Is(err, plugin.ErrListPlugins) {
			return result, errors.Annotatef(err, "reconciling plugin %q", p.Name())
		} else if err != nil {
			pr.Action = ActionFailed
			pr.Err = err
			failures = multierror.Append(failures, errors.Annotatef(err, "plugin %q", p.Name()))
			m.cfg.Logger.Errorf("reconciling plugin %q: %v", p.Name(), err)
		}
		result.add(pr)
	}
	if result.RestartRequired {
		m.cfg.Logger.Infof("plugin changes require a restart")
	}
	return result, failures.ErrorOrNil()
}

// reconcilePlugin evaluates the state and desire of the plugin once and
// takes at most one action.
func (m *Manager) reconcilePlugin(ctx context.Context, p plugin.Plugin) (PluginResult, error) {
	pr := PluginResult{Name: p.Name(), Action: ActionNone}

	installed, err := m.installedPlugins(ctx)
	if err != nil {
		return pr, errors.Trace(err)
	}
	state, err := m.status(ctx, p, installed)
	if err != nil {
		return pr, errors.Trace(err)
	}
	pr.State = state

	wanted, err := m.WantsEnabled(ctx, p)
	if err != nil {
		return pr, errors.Trace(err)
	}
	pr.Wanted = wanted

	switch {
	case wanted && state == plugin.Missing:
		installedNow, err := m.install(ctx, p, installed)
		if err != nil {
			return pr, errors.Trace(err)
		}
		if installedNow {
			pr.Action, pr.RestartRequired = ActionInstalled, true
		} else {
			pr.Action = ActionAlreadyInstalled
		}

	case wanted && state == plugin.Installed:
		delta, err := p.EnableDelta()
		if err != nil {
			return pr, missingConfig(err, "enable delta of plugin %q", p.Name())
		}
		changed, err := m.Apply(ctx, delta)
		if err != nil {
			return pr, errors.Annotatef(err, "enabling plugin %q", p.Name())
		}
		pr.Action, pr.RestartRequired = ActionConfigured, changed

	case !wanted && (state == plugin.Enabled || state == plugin.WaitingForUpgrade):
		delta, err := p.DisableDelta()
		if err != nil {
			return pr, missingConfig(err, "disable delta of plugin %q", p.Name())
		}
		changed, err := m.Apply(ctx, delta)
		if err != nil {
			return pr, errors.Annotatef(err, "disabling plugin %q", p.Name())
		}
		pr.Action, pr.RestartRequired = ActionDisabled, changed

	case wanted && (state == plugin.Enabled || state == plugin.WaitingForUpgrade):
		if err := m.refresh(ctx, p, &pr); err != nil {
			return pr, errors.Trace(err)
		}
	}

	m.cfg.Logger.Debugf("plugin %q: state %s, wanted %v, action %s", p.Name(), state, wanted, pr.Action)
	return pr, nil
}

// refresh writes the secrets of an enabled plugin again, since they cannot
// be read back and compared, and registers its snapshot repository.
// Neither needs a restart.
func (m *Manager) refresh(ctx context.Context, p plugin.Plugin, pr *PluginResult) error {
	delta, err := p.EnableDelta()
	if err != nil {
		return missingConfig(err, "enable delta of plugin %q", p.Name())
	}
	if len(delta.SecretsToAdd) > 0 {
		if err := m.cfg.Secrets.AddSecrets(ctx, delta.SecretsToAdd); err != nil {
			return errors.Annotatef(err, "refreshing secrets of plugin %q", p.Name())
		}
	}

	provider, ok := p.(plugin.RepositoryProvider)
	if !ok || m.cfg.Repositories == nil {
		return nil
	}
	repo, err := provider.SnapshotRepository()
	if err != nil {
		return missingConfig(err, "snapshot repository of plugin %q", p.Name())
	}
	registered, err := m.ensureRepository(ctx, repo)
	if err != nil {
		return errors.Annotatef(err, "registering snapshot repository of plugin %q", p.Name())
	}
	pr.RepositoryRegistered = registered
	return nil
}

// ensureRepository registers repo unless a repository of the same name,
// type and settings is already registered.
func (m *Manager) ensureRepository(ctx context.Context, repo plugin.SnapshotRepository) (bool, error) {
	existing, err := m.cfg.Repositories.SnapshotRepositories(ctx)
	if err != nil {
		return false, errors.Trace(err)
	}
	if current, ok := existing[repo.Name]; ok && current.Type == repo.Type && containsEntries(current.Settings, repo.Settings) {
		return false, nil
	}
	m.cfg.Logger.Infof("registering snapshot repository %q", repo.Name)
	if err := m.cfg.Repositories.PutSnapshotRepository(ctx, repo); err != nil {
		return false, errors.Trace(err)
	}
	return true, nil
}

// install installs the plugin after checking its dependencies are
// present. It returns false if the node reported the plugin as already
// installed.
func (m *Manager) install(ctx context.Context, p plugin.Plugin, installed set.Strings) (bool, error) {
	var missing []string
	for _, dep := range p.Dependencies() {
		if !installed.Contains(dep) {
			missing = append(missing, dep)
		}
	}
	if len(missing) > 0 {
		return false, errors.WithType(
			errors.Errorf("failed to install %s, missing dependencies: %v", p.Name(), missing),
			plugin.ErrMissingDependencies)
	}

	m.cfg.Logger.Infof("installing plugin %q", p.Name())
	err := m.cfg.Node.InstallPlugin(ctx, p.Name())
	if errors.Is(err, errors.AlreadyExists) {
		m.cfg.Logger.Infof("plugin %q already installed, continuing", p.Name())
		return false, nil
	} else if err != nil {
		return false, errors.WithType(
			errors.Annotatef(err, "failed to install plugin %q", p.Name()), plugin.ErrInstall)
	}
	return true, nil
}

// RemovePlugin removes the named plugin from the node without restarting
// it. Removing a plugin that is not installed is not an error.
func (m *Manager) RemovePlugin(ctx context.Context, name string) error {
	err := m.cfg.Node.RemovePlugin(ctx, name)
	if errors.Is(err, errors.NotFound) {
		m.cfg.Logger.Infof("plugin %q to be removed not found, continuing", name)
		return nil
	} else if err != nil {
		return errors.WithType(
			errors.Annotatef(err, "failed to remove plugin %q", name), plugin.ErrRemove)
	}
	return nil
}

func (m *Manager) installedPlugins(ctx context.Context) (set.Strings, error) {
	names, err := m.cfg.Node.InstalledPlugins(ctx)
	if err != nil {
		return nil, errors.WithType(errors.Annotate(err, "failed to list plugins"), plugin.ErrListPlugins)
	}
	return set.NewStrings(names...), nil
}

// missingConfig marks err as a configuration error unless it already
// carries a more specific type.
func missingConfig(err error, format string, args ...any) error {
	err = errors.Annotatef(err, format, args...)
	if errors.Is(err, plugin.ErrMissingConfig) {
		return err
	}
	return errors.WithType(err, plugin.ErrMissingConfig)
}

// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package manager

import (
	"context"
	"strings"

	"github.com/juju/collections/set"
	"github.com/juju/errors"

	"github.com/canonical/opensearch-plugins/internal/plugin"
)

// Status returns the state of the plugin on the node. It only reads.
func (m *Manager) Status(ctx context.Context, p plugin.Plugin) (plugin.State, error) {
	installed, err := m.installedPlugins(ctx)
	if err != nil {
		return "", errors.Trace(err)
	}
	return m.status(ctx, p, installed)
}

// PluginStatus returns the state of the named catalog plugin.
func (m *Manager) PluginStatus(ctx context.Context, name string) (plugin.State, error) {
	plugins, err := m.Plugins(ctx)
	if err != nil {
		return "", errors.Trace(err)
	}
	for _, p := range plugins {
		if p.Name() == name {
			return m.Status(ctx, p)
		}
	}
	return "", errors.NotFoundf("plugin %q", name)
}

func (m *Manager) status(ctx context.Context, p plugin.Plugin, installed set.Strings) (plugin.State, error) {
	if !installed.Contains(p.Name()) {
		return plugin.Missing, nil
	}
	if !m.isEnabled(ctx, p) {
		return plugin.Installed, nil
	}

	serviceVersion, err := m.cfg.Node.ServiceVersion(ctx)
	if err != nil {
		return "", errors.Annotate(err, "reading service version")
	}
	if p.Version() == "" {
		m.cfg.Logger.Debugf("version of plugin %q unknown, skipping upgrade check", p.Name())
		return plugin.Enabled, nil
	}
	if !versionsMatch(serviceVersion, p.Version()) {
		return plugin.WaitingForUpgrade, nil
	}
	return plugin.Enabled, nil
}

// isEnabled reports whether the enabling configuration of the plugin is
// exactly what is stored, including the absence of the keys it deletes.
// When that configuration cannot be built for lack of input, the plugin
// counts as enabled while any key its disabling configuration deletes is
// still stored. Other errors count as not enabled.
func (m *Manager) isEnabled(ctx context.Context, p plugin.Plugin) bool {
	delta, err := p.EnableDelta()
	if errors.Is(err, plugin.ErrMissingConfig) {
		m.cfg.Logger.Debugf("is enabled: plugin %q: %v", p.Name(), err)
		return m.hasDisableKeys(ctx, p)
	} else if err != nil {
		m.cfg.Logger.Warningf("is enabled: plugin %q: %v", p.Name(), err)
		return false
	}
	keys := append(delta.ConfigKeys(), delta.ConfigToDelete...)
	stored, err := m.cfg.ConfigStore.PluginConfig(ctx, keys)
	if err != nil {
		m.cfg.Logger.Warningf("is enabled: plugin %q: %v", p.Name(), err)
		return false
	}
	return equalEntries(delta.ConfigToAdd, stored)
}

// hasDisableKeys reports whether any key deleted by the disabling
// configuration of the plugin is stored.
func (m *Manager) hasDisableKeys(ctx context.Context, p plugin.Plugin) bool {
	delta, err := p.DisableDelta()
	if err != nil {
		m.cfg.Logger.Warningf("is enabled: plugin %q: %v", p.Name(), err)
		return false
	}
	if len(delta.ConfigToDelete) == 0 {
		return false
	}
	stored, err := m.cfg.ConfigStore.PluginConfig(ctx, delta.ConfigToDelete)
	if err != nil {
		m.cfg.Logger.Warningf("is enabled: plugin %q: %v", p.Name(), err)
		return false
	}
	return len(stored) > 0
}

func equalEntries(a, b map[string]string) bool {
	return len(a) == len(b) && containsEntries(b, a)
}

// containsEntries reports whether every entry of want is in have.
func containsEntries(have, want map[string]string) bool {
	for k, v := range want {
		if other, ok := have[k]; !ok || other != v {
			return false
		}
	}
	return true
}

// versionsMatch compares two dotted versions on the components they both
// have. Plugin versions often carry a fourth component the service
// version lacks, so "2.9.0" matches "2.9.0.1".
func versionsMatch(a, b string) bool {
	as, bs := strings.Split(a, "."), strings.Split(b, ".")
	n := min(len(as), len(bs))
	return strings.Join(as[:n], ".") == strings.Join(bs[:n], ".")
}

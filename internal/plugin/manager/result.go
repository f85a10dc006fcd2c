// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package manager

import (
	"github.com/canonical/opensearch-plugins/internal/plugin"
)

// Action is what a reconciliation did to a plugin.
type Action string

const (
	// ActionNone means the plugin already matched the desired state.
	ActionNone Action = "none"

	// ActionInstalled means the plugin was installed.
	ActionInstalled Action = "installed"

	// ActionAlreadyInstalled means the install command found the plugin
	// already present. Nothing changed.
	ActionAlreadyInstalled Action = "already-installed"

	// ActionConfigured means the enabling configuration was applied.
	ActionConfigured Action = "configured"

	// ActionDisabled means the disabling configuration was applied.
	ActionDisabled Action = "disabled"

	// ActionFailed means processing the plugin failed.
	ActionFailed Action = "failed"
)

// PluginResult records the reconciliation of one plugin.
type PluginResult struct {
	// Name is the plugin name.
	Name string

	// State is the state observed before any action was taken.
	State plugin.State

	// Wanted reports whether the plugin was requested.
	Wanted bool

	// Action is what was done.
	Action Action

	// RestartRequired reports whether the action needs a service
	// restart to take effect.
	RestartRequired bool

	// RepositoryRegistered reports whether the snapshot repository of an
	// enabled plugin was registered or updated.
	RepositoryRegistered bool

	// Err is set when Action is ActionFailed.
	Err error
}

// Result is the outcome of one reconciliation cycle.
type Result struct {
	// RestartRequired reports whether any plugin needs the service to be
	// restarted.
	RestartRequired bool

	// Plugins holds one entry per processed plugin, in catalog order.
	Plugins []PluginResult
}

func (r *Result) add(pr PluginResult) {
	r.Plugins = append(r.Plugins, pr)
	r.RestartRequired = r.RestartRequired || pr.RestartRequired
}

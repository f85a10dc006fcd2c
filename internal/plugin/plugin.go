// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package plugin describes the optional OpenSearch plugins a unit can
// manage, together with the configuration changes needed to enable and
// disable each of them.
//
// Plugins are stateless descriptors: the catalog builds them afresh every
// time it is read.
package plugin

import (
	"context"

	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
)

var logger = loggo.GetLogger("opensearch.plugins")

// Plugin is the capability every managed plugin provides.
type Plugin interface {
	// Name is the name the plugin is installed and listed under.
	Name() string

	// Dependencies returns the names of the plugins that must be installed
	// before this one can be.
	Dependencies() []string

	// Version returns the version of the installed plugin, or an empty
	// string if it is not known.
	Version() string

	// EnableDelta returns the changes needed to enable the plugin.
	EnableDelta() (Delta, error)

	// DisableDelta returns the changes needed to disable the plugin.
	DisableDelta() (Delta, error)
}

// SnapshotRepository is a snapshot repository registered in the cluster.
type SnapshotRepository struct {
	Name     string
	Type     string
	Settings map[string]string
}

// RepositoryProvider is implemented by plugins that back a snapshot
// repository. The repository is registered once the plugin is enabled.
type RepositoryProvider interface {
	SnapshotRepository() (SnapshotRepository, error)
}

// State is the lifecycle state of a plugin on a node. It is always
// computed from what is observed, never stored.
type State string

const (
	// Missing means the plugin is not installed.
	Missing State = "missing"

	// Installed means the plugin is installed but its enabling
	// configuration is not applied.
	Installed State = "installed"

	// Enabled means the plugin is installed and configured.
	Enabled State = "enabled"

	// WaitingForUpgrade means the plugin is enabled but its version does
	// not match the running service.
	WaitingForUpgrade State = "waiting-for-upgrade"
)

// String implements fmt.Stringer.
func (s State) String() string {
	return string(s)
}

// VersionReader returns the version of an installed plugin.
type VersionReader interface {
	// PluginVersion returns the version of the named plugin. It returns a
	// NotFound error if the plugin is not installed.
	PluginVersion(name string) (string, error)
}

// RelationDataGetter returns the application data published by the
// remote side of a relation.
type RelationDataGetter interface {
	// RelationAppData returns the remote application data of the named
	// relation. It returns a NotFound error if the relation is not
	// established.
	RelationAppData(ctx context.Context, relation string) (map[string]string, error)
}

// Env holds what plugin constructors may consult.
type Env struct {
	Versions     VersionReader
	RelationData RelationDataGetter
}

// version returns the installed version of the named plugin, or an empty
// string if it cannot be read.
func (e Env) version(name string) string {
	if e.Versions == nil {
		return ""
	}
	v, err := e.Versions.PluginVersion(name)
	if errors.Is(err, errors.NotFound) {
		return ""
	} else if err != nil {
		logger.Warningf("reading version of plugin %q: %v", name, err)
		return ""
	}
	return v
}

// relationData returns the remote application data of the named relation,
// or nil if the relation is not established.
func (e Env) relationData(ctx context.Context, relation string) (map[string]string, error) {
	if e.RelationData == nil {
		return nil, nil
	}
	data, err := e.RelationData.RelationAppData(ctx, relation)
	if errors.Is(err, errors.NotFound) {
		return nil, nil
	}
	return data, errors.Trace(err)
}

// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package manager

import (
	"context"

	"github.com/canonical/opensearch-plugins/core/health"
	"github.com/canonical/opensearch-plugins/internal/plugin"
)

// Logger represents the logging methods called.
type Logger interface {
	Errorf(message string, args ...any)
	Warningf(message string, args ...any)
	Infof(message string, args ...any)
	Debugf(message string, args ...any)
	Tracef(message string, args ...any)
}

// NodeOperations runs plugin commands against the local node.
type NodeOperations interface {
	// InstalledPlugins lists the names of the installed plugins.
	InstalledPlugins(ctx context.Context) ([]string, error)

	// InstallPlugin installs the named plugin. It returns an AlreadyExists
	// error if the plugin is already installed.
	InstallPlugin(ctx context.Context, name string) error

	// RemovePlugin removes the named plugin. It returns a NotFound error
	// if the plugin is not installed.
	RemovePlugin(ctx context.Context, name string) error

	// ServiceVersion returns the dotted version of the running service.
	ServiceVersion(ctx context.Context) (string, error)

	// IsRunning reports whether the service is running on the node.
	IsRunning(ctx context.Context) (bool, error)
}

// HealthProber reports the health of the cluster.
type HealthProber interface {
	Health(ctx context.Context) (health.Color, error)
}

// ConfigStore holds the plugin entries of the service configuration.
type ConfigStore interface {
	// PluginConfig returns the entries currently set for the given keys.
	// Keys that are not set are absent from the result.
	PluginConfig(ctx context.Context, keys []string) (map[string]string, error)

	// AddPluginConfig sets the given entries.
	AddPluginConfig(ctx context.Context, entries map[string]string) error

	// DeletePluginConfig removes the given keys. Absent keys are ignored.
	DeletePluginConfig(ctx context.Context, keys []string) error
}

// SecretStore holds the secret entries of the service keystore.
type SecretStore interface {
	// AddSecrets sets the given entries, overwriting existing ones.
	AddSecrets(ctx context.Context, entries map[string]string) error

	// DeleteSecrets removes the given keys. It may return a NotFound
	// error for keys that are not set.
	DeleteSecrets(ctx context.Context, keys []string) error
}

// CharmConfig reads the charm configuration options.
type CharmConfig interface {
	// ConfigOption returns the value of the named option, or nil if it
	// has no value. It returns a NotFound error if the charm does not
	// declare the option.
	ConfigOption(ctx context.Context, name string) (any, error)
}

// Relations reports which relations are established.
type Relations interface {
	// RelationUnits returns the remote units of the named relation. The
	// result is empty if the relation is not established. It returns a
	// NotFound error if the charm does not declare the relation.
	RelationUnits(ctx context.Context, name string) ([]string, error)
}

// RepositoryRegistry holds the snapshot repositories of the cluster.
type RepositoryRegistry interface {
	// SnapshotRepositories returns the registered repositories keyed by
	// name.
	SnapshotRepositories(ctx context.Context) (map[string]plugin.SnapshotRepository, error)

	// PutSnapshotRepository registers the repository, replacing any
	// repository of the same name.
	PutSnapshotRepository(ctx context.Context, repo plugin.SnapshotRepository) error
}

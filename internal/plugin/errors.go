// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package plugin

import "github.com/juju/errors"

const (
	// ErrClusterNotReady is returned when the cluster cannot accept plugin
	// changes yet. It is retryable: the whole reconciliation should be run
	// again on the next trigger.
	ErrClusterNotReady = errors.ConstError("cluster not ready")

	// ErrMissingConfig is returned when a catalog entry refers to a
	// configuration option, relation or delta field that cannot be
	// resolved.
	ErrMissingConfig = errors.ConstError("missing plugin configuration")

	// ErrMissingDependencies is returned when a plugin is to be installed
	// but some of its dependencies are not installed.
	ErrMissingDependencies = errors.ConstError("missing plugin dependencies")

	// ErrInstall is returned when the plugin install command fails for any
	// reason other than the plugin already being installed.
	ErrInstall = errors.ConstError("plugin install failed")

	// ErrRemove is returned when the plugin remove command fails for any
	// reason other than the plugin not being installed.
	ErrRemove = errors.ConstError("plugin remove failed")

	// ErrListPlugins is returned when the installed plugins cannot be
	// listed.
	ErrListPlugins = errors.ConstError("listing plugins failed")
)

// IsRetryable reports whether err only means the reconciliation has to be
// run again later.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrClusterNotReady)
}

// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package plugin

import "context"

const (
	// KnnName is the name of the k-NN plugin.
	KnnName = "opensearch-knn"

	knnEnabledKey = "knn.plugin.enabled"
)

// Knn is the k-NN search plugin. It ships with the distribution and only
// needs to be switched on in opensearch.yml.
type Knn struct {
	version string
}

// NewKnn returns the k-NN plugin.
func NewKnn(_ context.Context, env Env) (Plugin, error) {
	return &Knn{version: env.version(KnnName)}, nil
}

// Name is part of the Plugin interface.
func (*Knn) Name() string {
	return KnnName
}

// Dependencies is part of the Plugin interface.
func (*Knn) Dependencies() []string {
	return nil
}

// Version is part of the Plugin interface.
func (p *Knn) Version() string {
	return p.version
}

// EnableDelta is part of the Plugin interface.
func (*Knn) EnableDelta() (Delta, error) {
	return Delta{
		ConfigToAdd: map[string]string{knnEnabledKey: "true"},
	}, nil
}

// DisableDelta is part of the Plugin interface.
func (*Knn) DisableDelta() (Delta, error) {
	return Delta{
		ConfigToDelete: []string{knnEnabledKey},
	}, nil
}

// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package health describes the health colours reported by an OpenSearch
// cluster.
package health

import (
	"strings"

	"github.com/juju/errors"
)

// Color is the health of a cluster as reported by the _cluster/health
// endpoint.
type Color string

const (
	// Green means all primary and replica shards are allocated.
	Green Color = "green"

	// Yellow means all primary shards are allocated but some replicas
	// are not.
	Yellow Color = "yellow"

	// Red means at least one primary shard is unassigned.
	Red Color = "red"

	// Unknown is used when the health could not be determined.
	Unknown Color = "unknown"
)

// String implements fmt.Stringer.
func (c Color) String() string {
	return string(c)
}

// Operable reports whether the cluster can accept plugin configuration
// changes. Only green and yellow clusters are operable.
func (c Color) Operable() bool {
	return c == Green || c == Yellow
}

// Parse returns the Color for the given health string. The comparison is
// case insensitive.
func Parse(s string) (Color, error) {
	switch c := Color(strings.ToLower(strings.TrimSpace(s))); c {
	case Green, Yellow, Red, Unknown:
		return c, nil
	}
	return Unknown, errors.NotValidf("health color %q", s)
}

// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package status holds the workload status values a charm unit reports
// while reconciling its plugins.
package status

import (
	"github.com/juju/errors"
)

// Status is the workload status of a unit.
type Status string

// String returns a string representation of the Status.
func (s Status) String() string {
	return string(s)
}

const (
	// Maintenance is set when:
	// The unit is not yet providing services, but is actively doing stuff
	// in preparation for providing those services.
	// This is a "spinning" state, not an error state.
	Maintenance Status = "maintenance"

	// Waiting is set when:
	// The unit is unable to progress to an active state because the
	// cluster it belongs to is not yet operable. It is expected to clear
	// on its own.
	Waiting Status = "waiting"

	// Blocked is set when:
	// The unit needs manual intervention to get back to the Running state.
	Blocked Status = "blocked"

	// Active is set when:
	// The unit believes it is correctly offering all the services it has
	// been asked to offer.
	Active Status = "active"
)

// KnownWorkloadStatus returns true if the value is one the unit may set.
func (s Status) KnownWorkloadStatus() bool {
	switch s {
	case Maintenance, Waiting, Blocked, Active:
		return true
	}
	return false
}

// StatusInfo holds a Status and associated information.
type StatusInfo struct {
	Status  Status
	Message string
}

// Validate returns an error if the status is not one a unit can set.
func (s StatusInfo) Validate() error {
	if !s.Status.KnownWorkloadStatus() {
		return errors.NotValidf("workload status %q", s.Status)
	}
	return nil
}

// StatusSetter represents a type whose status can be set.
type StatusSetter interface {
	SetStatus(StatusInfo) error
}

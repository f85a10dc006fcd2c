// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package plugin

import (
	"sort"

	"github.com/juju/collections/set"
	"github.com/juju/errors"
)

// Delta holds the configuration and secret entries to add and delete to
// move a plugin from one state to another.
type Delta struct {
	// ConfigToAdd holds the configuration entries to add.
	ConfigToAdd map[string]string

	// ConfigToDelete holds the keys of the configuration entries to
	// delete.
	ConfigToDelete []string

	// SecretsToAdd holds the secret entries to add.
	SecretsToAdd map[string]string

	// SecretsToDelete holds the keys of the secret entries to delete.
	SecretsToDelete []string
}

// Validate ensures the add and delete sets of each kind are disjoint.
func (d Delta) Validate() error {
	if both := overlap(d.ConfigToAdd, d.ConfigToDelete); len(both) > 0 {
		return errors.NotValidf("config entries both added and deleted %v", both)
	}
	if both := overlap(d.SecretsToAdd, d.SecretsToDelete); len(both) > 0 {
		return errors.NotValidf("secret entries both added and deleted %v", both)
	}
	return nil
}

// ChangesConfig reports whether applying the delta touches any
// configuration entry. Secret entries are not considered.
func (d Delta) ChangesConfig() bool {
	return len(d.ConfigToAdd) > 0 || len(d.ConfigToDelete) > 0
}

// IsEmpty reports whether the delta holds no change at all.
func (d Delta) IsEmpty() bool {
	return !d.ChangesConfig() && len(d.SecretsToAdd) == 0 && len(d.SecretsToDelete) == 0
}

// ConfigKeys returns the sorted keys of the configuration entries to add.
func (d Delta) ConfigKeys() []string {
	return sortedKeys(d.ConfigToAdd)
}

func overlap(add map[string]string, del []string) []string {
	return set.NewStrings(del...).Intersection(set.NewStrings(sortedKeys(add)...)).SortedValues()
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

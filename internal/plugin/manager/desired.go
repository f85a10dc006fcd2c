// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package manager

import (
	"context"

	"github.com/juju/errors"
	"github.com/juju/schema"

	"github.com/canonical/opensearch-plugins/internal/plugin"
)

// WantsEnabled reports whether the user requested the plugin: its config
// option is true, or its relation has at least one remote unit. A catalog
// entry with neither gate is always requested.
func (m *Manager) WantsEnabled(ctx context.Context, p plugin.Plugin) (bool, error) {
	entry, err := m.cfg.Catalog.Entry(p.Name())
	if err != nil {
		return false, missingConfig(err, "catalog entry")
	}
	if !entry.Gated() {
		return true, nil
	}

	if entry.ConfigOption != "" {
		enabled, err := m.optionEnabled(ctx, entry.ConfigOption)
		if err != nil {
			return false, errors.Trace(err)
		}
		if enabled {
			return true, nil
		}
	}
	if entry.Relation != "" {
		related, err := m.relationSet(ctx, entry.Relation)
		if err != nil {
			return false, errors.Trace(err)
		}
		if related {
			return true, nil
		}
	}
	return false, nil
}

func (m *Manager) optionEnabled(ctx context.Context, name string) (bool, error) {
	value, err := m.cfg.CharmConfig.ConfigOption(ctx, name)
	if errors.Is(err, errors.NotFound) {
		return false, missingConfig(err, "config option %q", name)
	} else if err != nil {
		return false, errors.Annotatef(err, "reading config option %q", name)
	}
	if value == nil {
		return false, nil
	}
	coerced, err := schema.Bool().Coerce(value, []string{name})
	if err != nil {
		return false, missingConfig(err, "config option %q", name)
	}
	return coerced.(bool), nil
}

func (m *Manager) relationSet(ctx context.Context, name string) (bool, error) {
	units, err := m.cfg.Relations.RelationUnits(ctx, name)
	if errors.Is(err, errors.NotFound) {
		return false, missingConfig(err, "relation %q", name)
	} else if err != nil {
		return false, errors.Annotatef(err, "reading relation %q", name)
	}
	return len(units) > 0, nil
}

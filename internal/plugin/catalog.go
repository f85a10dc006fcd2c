// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package plugin

import (
	"context"

	"github.com/juju/errors"
)

// Constructor builds a plugin from the current environment.
type Constructor func(context.Context, Env) (Plugin, error)

// Entry describes a plugin exposed to the user, and what gates it.
type Entry struct {
	// Name is the plugin name.
	Name string

	// New builds the plugin.
	New Constructor

	// ConfigOption is the boolean charm option that requests the plugin.
	// It may be empty.
	ConfigOption string

	// Relation is the relation whose presence requests the plugin. It may
	// be empty.
	Relation string
}

// Gated reports whether something can request the plugin to be disabled.
// Entries with neither a config option nor a relation are always
// requested.
func (e Entry) Gated() bool {
	return e.ConfigOption != "" || e.Relation != ""
}

// DefaultEntries is the table of plugins a unit manages.
var DefaultEntries = []Entry{{
	Name:         KnnName,
	New:          NewKnn,
	ConfigOption: "plugin_opensearch_knn",
}, {
	Name:     RepositoryS3Name,
	New:      NewRepositoryS3,
	Relation: S3CredentialsRelation,
}}

// Catalog is a static, ordered table of plugin entries.
type Catalog struct {
	entries []Entry
}

// NewCatalog returns a catalog of the given entries, kept in order.
func NewCatalog(entries ...Entry) *Catalog {
	return &Catalog{entries: append([]Entry(nil), entries...)}
}

// DefaultCatalog returns the catalog of DefaultEntries.
func DefaultCatalog() *Catalog {
	return NewCatalog(DefaultEntries...)
}

// Entries returns the catalog entries in order.
func (c *Catalog) Entries() []Entry {
	return append([]Entry(nil), c.entries...)
}

// Entry returns the entry of the named plugin.
func (c *Catalog) Entry(name string) (Entry, error) {
	for _, e := range c.entries {
		if e.Name == name {
			return e, nil
		}
	}
	return Entry{}, errors.NotFoundf("plugin %q in catalog", name)
}

// Plugins builds a fresh plugin for every entry, in catalog order.
func (c *Catalog) Plugins(ctx context.Context, env Env) ([]Plugin, error) {
	plugins := make([]Plugin, 0, len(c.entries))
	for _, e := range c.entries {
		if e.New == nil {
			return nil, errors.WithType(
				errors.Errorf("plugin %q has no constructor", e.Name), ErrMissingConfig)
		}
		p, err := e.New(ctx, env)
		if err != nil {
			return nil, errors.Annotatef(err, "building plugin %q", e.Name)
		}
		if p.Name() != e.Name {
			return nil, errors.NotValidf("plugin %q registered as %q", p.Name(), e.Name)
		}
		plugins = append(plugins, p)
	}
	return plugins, nil
}

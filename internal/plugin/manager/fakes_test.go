// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package manager_test

import (
	"context"

	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
	"github.com/juju/testing"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"github.com/canonical/opensearch-plugins/core/health"
	"github.com/canonical/opensearch-plugins/internal/plugin"
	"github.com/canonical/opensearch-plugins/internal/plugin/manager"
)

type fakeNode struct {
	stub       *testing.Stub
	installed  []string
	version    string
	running    bool
	runningErr error
	listErr    error
	installErr error
	removeErr  error
}

func (n *fakeNode) InstalledPlugins(ctx context.Context) ([]string, error) {
	n.stub.AddCall("InstalledPlugins")
	if n.listErr != nil {
		return nil, n.listErr
	}
	return append([]string(nil), n.installed...), nil
}

func (n *fakeNode) InstallPlugin(ctx context.Context, name string) error {
	n.stub.AddCall("InstallPlugin", name)
	if n.installErr != nil && !errors.Is(n.installErr, errors.AlreadyExists) {
		return n.installErr
	}
	// An already existing plugin is on disk even though it was not listed.
	n.installed = append(n.installed, name)
	return n.installErr
}

func (n *fakeNode) RemovePlugin(ctx context.Context, name string) error {
	n.stub.AddCall("RemovePlugin", name)
	return n.removeErr
}

func (n *fakeNode) ServiceVersion(ctx context.Context) (string, error) {
	n.stub.AddCall("ServiceVersion")
	return n.version, nil
}

func (n *fakeNode) IsRunning(ctx context.Context) (bool, error) {
	n.stub.AddCall("IsRunning")
	return n.running, n.runningErr
}

type fakeHealth struct {
	stub  *testing.Stub
	color health.Color
	err   error
}

func (h *fakeHealth) Health(ctx context.Context) (health.Color, error) {
	h.stub.AddCall("Health")
	return h.color, h.err
}

type fakeConfigStore struct {
	stub    *testing.Stub
	entries map[string]string
	readErr error
}

func (s *fakeConfigStore) PluginConfig(ctx context.Context, keys []string) (map[string]string, error) {
	s.stub.AddCall("PluginConfig", keys)
	if s.readErr != nil {
		return nil, s.readErr
	}
	result := make(map[string]string)
	for _, k := range keys {
		if v, ok := s.entries[k]; ok {
			result[k] = v
		}
	}
	return result, nil
}

func (s *fakeConfigStore) AddPluginConfig(ctx context.Context, entries map[string]string) error {
	s.stub.AddCall("AddPluginConfig", entries)
	for k, v := range entries {
		s.entries[k] = v
	}
	return nil
}

func (s *fakeConfigStore) DeletePluginConfig(ctx context.Context, keys []string) error {
	s.stub.AddCall("DeletePluginConfig", keys)
	for _, k := range keys {
		delete(s.entries, k)
	}
	return nil
}

type fakeSecrets struct {
	stub    *testing.Stub
	entries map[string]string
}

func (s *fakeSecrets) AddSecrets(ctx context.Context, entries map[string]string) error {
	s.stub.AddCall("AddSecrets", entries)
	for k, v := range entries {
		s.entries[k] = v
	}
	return nil
}

func (s *fakeSecrets) DeleteSecrets(ctx context.Context, keys []string) error {
	s.stub.AddCall("DeleteSecrets", keys)
	var missing []string
	for _, k := range keys {
		if _, ok := s.entries[k]; !ok {
			missing = append(missing, k)
		}
		delete(s.entries, k)
	}
	if len(missing) > 0 {
		return errors.NotFoundf("secrets %v", missing)
	}
	return nil
}

type fakeCharmConfig map[string]any

func (f fakeCharmConfig) ConfigOption(ctx context.Context, name string) (any, error) {
	v, ok := f[name]
	if !ok {
		return nil, errors.NotFoundf("config option %q", name)
	}
	return v, nil
}

type fakeRelations map[string][]string

func (f fakeRelations) RelationUnits(ctx context.Context, name string) ([]string, error) {
	units, ok := f[name]
	if !ok {
		return nil, errors.NotFoundf("relation %q", name)
	}
	return units, nil
}

// fakeRelationData serves the app data of the units listed in relations.
// Like the hook tools, it reports NotFound once no remote unit is left.
type fakeRelationData struct {
	relations fakeRelations
	data      map[string]map[string]string
}

func (f *fakeRelationData) RelationAppData(ctx context.Context, relation string) (map[string]string, error) {
	if len(f.relations[relation]) == 0 {
		return nil, errors.NotFoundf("remote application on relation %q", relation)
	}
	return f.data[relation], nil
}

type fakeRepositories struct {
	stub         *testing.Stub
	repositories map[string]plugin.SnapshotRepository
}

func (f *fakeRepositories) SnapshotRepositories(ctx context.Context) (map[string]plugin.SnapshotRepository, error) {
	f.stub.AddCall("SnapshotRepositories")
	if err := f.stub.NextErr(); err != nil {
		return nil, err
	}
	result := make(map[string]plugin.SnapshotRepository, len(f.repositories))
	for name, repo := range f.repositories {
		result[name] = repo
	}
	return result, nil
}

func (f *fakeRepositories) PutSnapshotRepository(ctx context.Context, repo plugin.SnapshotRepository) error {
	f.stub.AddCall("PutSnapshotRepository", repo)
	if err := f.stub.NextErr(); err != nil {
		return err
	}
	f.repositories[repo.Name] = repo
	return nil
}

// testPlugin is a configurable plugin for exercising the manager.
type testPlugin struct {
	name       string
	deps       []string
	version    string
	enable     plugin.Delta
	disable    plugin.Delta
	enableErr  error
	disableErr error
}

func (p *testPlugin) Name() string           { return p.name }
func (p *testPlugin) Dependencies() []string { return p.deps }
func (p *testPlugin) Version() string        { return p.version }

func (p *testPlugin) EnableDelta() (plugin.Delta, error) {
	return p.enable, p.enableErr
}

func (p *testPlugin) DisableDelta() (plugin.Delta, error) {
	return p.disable, p.disableErr
}

// xPlugin returns the plugin "x" used by the scenarios: enabling it sets
// x.enabled, disabling it removes that entry.
func xPlugin() *testPlugin {
	return &testPlugin{
		name:    "x",
		version: "2.9.0.0",
		enable:  plugin.Delta{ConfigToAdd: map[string]string{"x.enabled": "true"}},
		disable: plugin.Delta{ConfigToDelete: []string{"x.enabled"}},
	}
}

func entryFor(p *testPlugin, option, relation string) plugin.Entry {
	return plugin.Entry{
		Name:         p.name,
		New:          func(context.Context, plugin.Env) (plugin.Plugin, error) { return p, nil },
		ConfigOption: option,
		Relation:     relation,
	}
}

// baseSuite wires a manager to fakes sharing one stub, so the order of
// calls across collaborators can be checked.
type baseSuite struct {
	testing.IsolationSuite

	stub        *testing.Stub
	node        *fakeNode
	health      *fakeHealth
	configStore *fakeConfigStore
	secrets     *fakeSecrets
	charmConfig fakeCharmConfig
	relations   fakeRelations

	relationData *fakeRelationData
	repositories *fakeRepositories
}

func (s *baseSuite) SetUpTest(c *gc.C) {
	s.IsolationSuite.SetUpTest(c)
	s.resetFakes()
}

func (s *baseSuite) resetFakes() {
	s.stub = &testing.Stub{}
	s.node = &fakeNode{stub: s.stub, version: "2.9.0", running: true}
	s.health = &fakeHealth{stub: s.stub, color: health.Green}
	s.configStore = &fakeConfigStore{stub: s.stub, entries: make(map[string]string)}
	s.secrets = &fakeSecrets{stub: s.stub, entries: make(map[string]string)}
	s.charmConfig = fakeCharmConfig{}
	s.relations = fakeRelations{}
	s.relationData = &fakeRelationData{
		relations: s.relations,
		data:      make(map[string]map[string]string),
	}
	s.repositories = &fakeRepositories{
		stub:         &testing.Stub{},
		repositories: make(map[string]plugin.SnapshotRepository),
	}
}

func (s *baseSuite) newManager(c *gc.C, entries ...plugin.Entry) *manager.Manager {
	m, err := manager.NewManager(manager.Config{
		Catalog:     plugin.NewCatalog(entries...),
		Node:        s.node,
		Health:      s.health,
		ConfigStore: s.configStore,
		Secrets:     s.secrets,
		CharmConfig: s.charmConfig,
		Relations:   s.relations,

		RelationData: s.relationData,
		Repositories: s.repositories,
		Logger:       loggo.GetLogger("opensearch.plugins.manager.test"),
	})
	c.Assert(err, jc.ErrorIsNil)
	return m
}

// mutations returns the names of the calls that change the node, in
// order.
func (s *baseSuite) mutations() []string {
	var names []string
	for _, call := range s.stub.Calls() {
		switch call.FuncName {
		case "InstallPlugin", "RemovePlugin",
			"AddPluginConfig", "DeletePluginConfig",
			"AddSecrets", "DeleteSecrets":
			names = append(names, call.FuncName)
		}
	}
	return names
}

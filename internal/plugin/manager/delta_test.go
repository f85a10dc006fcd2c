// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package manager_test

import (
	"context"

	"github.com/juju/errors"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"github.com/canonical/opensearch-plugins/internal/plugin"
)

type applySuite struct {
	baseSuite
}

var _ = gc.Suite(&applySuite{})

func (s *applySuite) TestAddsConfig(c *gc.C) {
	m := s.newManager(c)

	changed, err := m.Apply(context.Background(), plugin.Delta{
		ConfigToAdd: map[string]string{"x.enabled": "true"},
	})
	c.Assert(err, jc.ErrorIsNil)
	c.Check(changed, jc.IsTrue)
	c.Check(s.configStore.entries, jc.DeepEquals, map[string]string{"x.enabled": "true"})
}

func (s *applySuite) TestIdempotent(c *gc.C) {
	m := s.newManager(c)
	delta := plugin.Delta{
		ConfigToAdd:    map[string]string{"x.enabled": "true"},
		ConfigToDelete: []string{"x.legacy"},
		SecretsToAdd:   map[string]string{"x.key": "secret"},
	}
	s.configStore.entries["x.legacy"] = "1"

	changed, err := m.Apply(context.Background(), delta)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(changed, jc.IsTrue)
	once := copyMap(s.configStore.entries)

	s.stub.ResetCalls()
	changed, err = m.Apply(context.Background(), delta)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(changed, jc.IsFalse)
	c.Check(s.configStore.entries, jc.DeepEquals, once)
	// Secrets are always rewritten, the configuration is not touched.
	c.Check(s.mutations(), jc.DeepEquals, []string{"AddSecrets"})
}

func (s *applySuite) TestOrder(c *gc.C) {
	m := s.newManager(c)
	s.configStore.entries["x.old"] = "1"
	s.secrets.entries["x.old-key"] = "old"

	_, err := m.Apply(context.Background(), plugin.Delta{
		ConfigToAdd:     map[string]string{"x.new": "2"},
		ConfigToDelete:  []string{"x.old"},
		SecretsToAdd:    map[string]string{"x.new-key": "new"},
		SecretsToDelete: []string{"x.old-key"},
	})
	c.Assert(err, jc.ErrorIsNil)
	c.Check(s.mutations(), jc.DeepEquals, []string{
		"DeleteSecrets", "AddSecrets", "DeletePluginConfig", "AddPluginConfig",
	})
	c.Check(s.secrets.entries, jc.DeepEquals, map[string]string{"x.new-key": "new"})
	c.Check(s.configStore.entries, jc.DeepEquals, map[string]string{"x.new": "2"})
}

func (s *applySuite) TestMissingSecretsTolerated(c *gc.C) {
	m := s.newManager(c)

	changed, err := m.Apply(context.Background(), plugin.Delta{
		SecretsToDelete: []string{"x.key"},
	})
	c.Assert(err, jc.ErrorIsNil)
	c.Check(changed, jc.IsFalse)
}

func (s *applySuite) TestSecretsOnlyIsNoChange(c *gc.C) {
	m := s.newManager(c)

	changed, err := m.Apply(context.Background(), plugin.Delta{
		SecretsToAdd: map[string]string{"x.key": "secret"},
	})
	c.Assert(err, jc.ErrorIsNil)
	c.Check(changed, jc.IsFalse)
	c.Check(s.secrets.entries, jc.DeepEquals, map[string]string{"x.key": "secret"})
}

func (s *applySuite) TestDeleteAbsentIsNoChange(c *gc.C) {
	m := s.newManager(c)

	changed, err := m.Apply(context.Background(), plugin.Delta{
		ConfigToDelete: []string{"x.enabled"},
	})
	c.Assert(err, jc.ErrorIsNil)
	c.Check(changed, jc.IsFalse)
	c.Check(s.mutations(), gc.HasLen, 0)
}

func (s *applySuite) TestInvalidDelta(c *gc.C) {
	m := s.newManager(c)

	_, err := m.Apply(context.Background(), plugin.Delta{
		ConfigToAdd:    map[string]string{"x.enabled": "true"},
		ConfigToDelete: []string{"x.enabled"},
	})
	c.Assert(errors.Is(err, plugin.ErrMissingConfig), jc.IsTrue)
	c.Check(s.mutations(), gc.HasLen, 0)
}

func (s *applySuite) TestReadError(c *gc.C) {
	m := s.newManager(c)
	s.configStore.readErr = errors.New("boom")

	_, err := m.Apply(context.Background(), plugin.Delta{
		ConfigToAdd: map[string]string{"x.enabled": "true"},
	})
	c.Assert(err, gc.ErrorMatches, "reading plugin config: boom")
}

func copyMap(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package plugin_test

import (
	"github.com/juju/errors"
	"github.com/juju/testing"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"github.com/canonical/opensearch-plugins/internal/plugin"
)

type deltaSuite struct {
	testing.IsolationSuite
}

var _ = gc.Suite(&deltaSuite{})

func (s *deltaSuite) TestValidateDisjoint(c *gc.C) {
	d := plugin.Delta{
		ConfigToAdd:     map[string]string{"a": "1"},
		ConfigToDelete:  []string{"b"},
		SecretsToAdd:    map[string]string{"a": "secret"},
		SecretsToDelete: []string{"c"},
	}
	c.Assert(d.Validate(), jc.ErrorIsNil)
}

func (s *deltaSuite) TestValidateConfigOverlap(c *gc.C) {
	d := plugin.Delta{
		ConfigToAdd:    map[string]string{"a": "1", "b": "2"},
		ConfigToDelete: []string{"b"},
	}
	err := d.Validate()
	c.Assert(err, jc.Satisfies, errors.IsNotValid)
	c.Assert(err, gc.ErrorMatches, `config entries both added and deleted \[b\] not valid`)
}

func (s *deltaSuite) TestValidateSecretOverlap(c *gc.C) {
	d := plugin.Delta{
		SecretsToAdd:    map[string]string{"k": "v"},
		SecretsToDelete: []string{"k"},
	}
	c.Assert(d.Validate(), jc.Satisfies, errors.IsNotValid)
}

func (s *deltaSuite) TestChangesConfig(c *gc.C) {
	c.Check(plugin.Delta{}.ChangesConfig(), jc.IsFalse)
	c.Check(plugin.Delta{}.IsEmpty(), jc.IsTrue)

	secretsOnly := plugin.Delta{SecretsToAdd: map[string]string{"k": "v"}}
	c.Check(secretsOnly.ChangesConfig(), jc.IsFalse)
	c.Check(secretsOnly.IsEmpty(), jc.IsFalse)

	c.Check(plugin.Delta{ConfigToDelete: []string{"a"}}.ChangesConfig(), jc.IsTrue)
	c.Check(plugin.Delta{ConfigToAdd: map[string]string{"a": "1"}}.ChangesConfig(), jc.IsTrue)
}

func (s *deltaSuite) TestConfigKeysSorted(c *gc.C) {
	d := plugin.Delta{ConfigToAdd: map[string]string{"z": "1", "a": "2", "m": "3"}}
	c.Assert(d.ConfigKeys(), jc.DeepEquals, []string{"a", "m", "z"})
}

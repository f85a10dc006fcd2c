// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package opensearch_test

import (
	"context"

	"github.com/juju/errors"
	"github.com/juju/testing"
	jc "github.com/juju/testing/checkers"
	"github.com/juju/utils/v4/exec"
	"github.com/kballard/go-shellquote"
	gc "gopkg.in/check.v1"

	"github.com/canonical/opensearch-plugins/internal/opensearch"
)

type keystoreSuite struct {
	testing.IsolationSuite

	runner   *fakeRunner
	keystore *opensearch.Keystore
}

var _ = gc.Suite(&keystoreSuite{})

func (s *keystoreSuite) SetUpTest(c *gc.C) {
	s.IsolationSuite.SetUpTest(c)
	s.runner = &fakeRunner{}
	var err error
	s.keystore, err = opensearch.NewKeystore(opensearch.Layout{
		Home:    "/opt/opensearch",
		ConfDir: "/etc/opensearch",
	}, s.runner)
	c.Assert(err, jc.ErrorIsNil)
}

func (s *keystoreSuite) TestAddSecrets(c *gc.C) {
	err := s.keystore.AddSecrets(context.Background(), map[string]string{
		"s3.client.default.secret_key": "secret",
		"s3.client.default.access_key": "access",
	})
	c.Assert(err, jc.ErrorIsNil)
	c.Check(s.runner.commands(), jc.DeepEquals, []string{
		"printf %s access | /opt/opensearch/bin/opensearch-keystore add --stdin --force s3.client.default.access_key",
		"printf %s secret | /opt/opensearch/bin/opensearch-keystore add --stdin --force s3.client.default.secret_key",
	})
}

func (s *keystoreSuite) TestAddSecretsQuotesValues(c *gc.C) {
	err := s.keystore.AddSecrets(context.Background(), map[string]string{
		"key": "it's $HOME",
	})
	c.Assert(err, jc.ErrorIsNil)
	commands := s.runner.commands()
	c.Assert(commands, gc.HasLen, 1)
	words, err := shellquote.Split(commands[0])
	c.Assert(err, jc.ErrorIsNil)
	c.Check(words[:4], jc.DeepEquals, []string{"printf", "%s", "it's $HOME", "|"})
}

func (s *keystoreSuite) TestAddSecretsErrorHidesValue(c *gc.C) {
	s.runner.results = []*exec.ExecResponse{failed(1, "keystore locked")}

	err := s.keystore.AddSecrets(context.Background(), map[string]string{"key": "hunter2"})
	c.Assert(err, gc.ErrorMatches, `adding secret "key": opensearch-keystore add key: exit status 1: keystore locked`)
}

func (s *keystoreSuite) TestDeleteSecrets(c *gc.C) {
	err := s.keystore.DeleteSecrets(context.Background(), []string{"a", "b"})
	c.Assert(err, jc.ErrorIsNil)
	c.Check(s.runner.commands(), jc.DeepEquals, []string{
		"/opt/opensearch/bin/opensearch-keystore remove a",
		"/opt/opensearch/bin/opensearch-keystore remove b",
	})
}

func (s *keystoreSuite) TestDeleteSecretsMissing(c *gc.C) {
	s.runner.results = []*exec.ExecResponse{
		failed(65, "ERROR: Setting [a] does not exist in the keystore."),
		output(""),
	}

	err := s.keystore.DeleteSecrets(context.Background(), []string{"a", "b"})
	c.Assert(err, jc.Satisfies, errors.IsNotFound)
	c.Check(s.runner.Calls(), gc.HasLen, 2)
}

func (s *keystoreSuite) TestDeleteSecretsFailure(c *gc.C) {
	s.runner.results = []*exec.ExecResponse{failed(1, "permission denied")}

	err := s.keystore.DeleteSecrets(context.Background(), []string{"a", "b"})
	c.Assert(err, gc.ErrorMatches, `removing secret "a": opensearch-keystore: exit status 1: permission denied`)
	c.Check(s.runner.Calls(), gc.HasLen, 1)
}

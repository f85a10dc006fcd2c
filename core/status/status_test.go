// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package status_test

import (
	"github.com/juju/errors"
	"github.com/juju/testing"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"github.com/canonical/opensearch-plugins/core/status"
)

type statusSuite struct {
	testing.IsolationSuite
}

var _ = gc.Suite(&statusSuite{})

func (s *statusSuite) TestValidate(c *gc.C) {
	for _, st := range []status.Status{
		status.Maintenance, status.Waiting, status.Blocked, status.Active,
	} {
		c.Check(status.StatusInfo{Status: st}.Validate(), jc.ErrorIsNil)
	}
	err := status.StatusInfo{Status: "error"}.Validate()
	c.Check(err, jc.Satisfies, errors.IsNotValid)
}

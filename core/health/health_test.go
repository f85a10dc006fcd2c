// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package health

import (
	"github.com/juju/errors"
	"github.com/juju/testing"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"
)

type healthSuite struct {
	testing.IsolationSuite
}

var _ = gc.Suite(&healthSuite{})

func (s *healthSuite) TestOperable(c *gc.C) {
	c.Check(Green.Operable(), jc.IsTrue)
	c.Check(Yellow.Operable(), jc.IsTrue)
	c.Check(Red.Operable(), jc.IsFalse)
	c.Check(Unknown.Operable(), jc.IsFalse)
	c.Check(Color("").Operable(), jc.IsFalse)
}

func (s *healthSuite) TestParse(c *gc.C) {
	for in, expected := range map[string]Color{
		"green":   Green,
		"YELLOW":  Yellow,
		" red\n":  Red,
		"unknown": Unknown,
	} {
		color, err := Parse(in)
		c.Assert(err, jc.ErrorIsNil)
		c.Check(color, gc.Equals, expected)
	}
}

func (s *healthSuite) TestParseInvalid(c *gc.C) {
	color, err := Parse("purple")
	c.Assert(err, jc.Satisfies, errors.IsNotValid)
	c.Check(color, gc.Equals, Unknown)
}

// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package hookenv reads the charm configuration and relations of the unit,
// and reports its workload status, with the juju hook tools.
package hookenv

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"

	"github.com/juju/collections/set"
	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
	"github.com/juju/names/v5"
	"github.com/juju/utils/v4/exec"
	"github.com/kballard/go-shellquote"

	"github.com/canonical/opensearch-plugins/core/status"
)

var logger = loggo.GetLogger("opensearch.plugins.hookenv")

// CommandRunner allows to run commands on the underlying system.
type CommandRunner interface {
	RunCommands(run exec.RunParams) (*exec.ExecResponse, error)
}

type defaultRunner struct{}

func (defaultRunner) RunCommands(run exec.RunParams) (*exec.ExecResponse, error) {
	return exec.RunCommands(run)
}

// DefaultRunner runs commands with the system shell.
var DefaultRunner CommandRunner = defaultRunner{}

// Config holds the declarations of the charm and how to reach the hook
// tools.
type Config struct {
	// Runner runs the hook tools.
	Runner CommandRunner

	// ToolsDir is the directory holding the hook tools. The tools are
	// looked up in PATH when empty.
	ToolsDir string

	// Options are the config options declared by the charm.
	Options []string

	// Relations are the relation endpoints declared by the charm.
	Relations []string

	// ExecUnit, if set, runs every tool through juju-exec as that unit.
	// The tools only work inside a hook context otherwise.
	ExecUnit string
}

// Validate ensures that the config values are valid.
func (c Config) Validate() error {
	if c.Runner == nil {
		return errors.NotValidf("nil Runner")
	}
	for _, name := range c.Relations {
		if name == "" {
			return errors.NotValidf("empty relation name")
		}
	}
	if c.ExecUnit != "" && !names.IsValidUnit(c.ExecUnit) {
		return errors.NotValidf("exec unit %q", c.ExecUnit)
	}
	return nil
}

// Context gives access to the hook tools of the unit.
type Context struct {
	runner    CommandRunner
	toolsDir  string
	options   set.Strings
	relations set.Strings
	execUnit  string
}

// New returns a Context for the declared options and relations.
func New(cfg Config) (*Context, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	return &Context{
		runner:    cfg.Runner,
		toolsDir:  cfg.ToolsDir,
		options:   set.NewStrings(cfg.Options...),
		relations: set.NewStrings(cfg.Relations...),
		execUnit:  cfg.ExecUnit,
	}, nil
}

// ConfigOption returns the value of a charm config option, or nil if the
// option has no value. It returns a NotFound error if the charm does not
// declare the option.
func (h *Context) ConfigOption(ctx context.Context, name string) (any, error) {
	if !h.options.Contains(name) {
		return nil, errors.NotFoundf("config option %q", name)
	}
	var settings map[string]any
	if err := h.runJSON(ctx, &settings, "config-get", "--format=json", "--all"); err != nil {
		return nil, errors.Trace(err)
	}
	return settings[name], nil
}

// RelationUnits returns the remote units of the named relation. It returns
// a NotFound error if the charm does not declare the relation.
func (h *Context) RelationUnits(ctx context.Context, name string) ([]string, error) {
	if !h.relations.Contains(name) {
		return nil, errors.NotFoundf("relation %q", name)
	}
	ids, err := h.relationIDs(ctx, name)
	if err != nil {
		return nil, errors.Trace(err)
	}
	var units []string
	for _, id := range ids {
		more, err := h.relationUnits(ctx, id)
		if err != nil {
			return nil, errors.Trace(err)
		}
		units = append(units, more...)
	}
	return units, nil
}

// RelationAppData returns the data the remote application published on
// the named relation. It returns a NotFound error if the relation has no
// remote unit.
func (h *Context) RelationAppData(ctx context.Context, relation string) (map[string]string, error) {
	if !h.relations.Contains(relation) {
		return nil, errors.NotFoundf("relation %q", relation)
	}
	ids, err := h.relationIDs(ctx, relation)
	if err != nil {
		return nil, errors.Trace(err)
	}
	for _, id := range ids {
		units, err := h.relationUnits(ctx, id)
		if err != nil {
			return nil, errors.Trace(err)
		}
		if len(units) == 0 {
			continue
		}
		var data map[string]string
		if err := h.runJSON(ctx, &data, "relation-get", "--format=json", "--app", "-r", id, "-", units[0]); err != nil {
			return nil, errors.Trace(err)
		}
		return data, nil
	}
	return nil, errors.NotFoundf("remote application on relation %q", relation)
}

// SetStatus sets the workload status of the unit.
func (h *Context) SetStatus(info status.StatusInfo) error {
	if err := info.Validate(); err != nil {
		return errors.Trace(err)
	}
	_, err := h.run(context.Background(), "status-set", info.Status.String(), info.Message)
	return errors.Trace(err)
}

func (h *Context) relationIDs(ctx context.Context, name string) ([]string, error) {
	var ids []string
	if err := h.runJSON(ctx, &ids, "relation-ids", "--format=json", name); err != nil {
		return nil, errors.Trace(err)
	}
	return ids, nil
}

func (h *Context) relationUnits(ctx context.Context, id string) ([]string, error) {
	var listed []string
	if err := h.runJSON(ctx, &listed, "relation-list", "--format=json", "-r", id); err != nil {
		return nil, errors.Trace(err)
	}
	units := make([]string, 0, len(listed))
	for _, unit := range listed {
		if !names.IsValidUnit(unit) {
			logger.Warningf("ignoring invalid unit name %q on relation %s", unit, id)
			continue
		}
		units = append(units, unit)
	}
	return units, nil
}

func (h *Context) runJSON(ctx context.Context, out any, tool string, args ...string) error {
	stdout, err := h.run(ctx, tool, args...)
	if err != nil {
		return errors.Trace(err)
	}
	if strings.TrimSpace(stdout) == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(stdout), out); err != nil {
		return errors.Annotatef(err, "parsing %s output", tool)
	}
	return nil
}

func (h *Context) run(ctx context.Context, tool string, args ...string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", errors.Trace(err)
	}
	bin := tool
	if h.toolsDir != "" {
		bin = filepath.Join(h.toolsDir, tool)
	}
	command := shellquote.Join(append([]string{bin}, args...)...)
	if h.execUnit != "" {
		command = shellquote.Join("juju-exec", h.execUnit, command)
	}
	logger.Tracef("running %s", command)
	result, err := h.runner.RunCommands(exec.RunParams{Commands: command})
	if err != nil {
		return "", errors.Annotatef(err, "running %s", tool)
	}
	if result.Code != 0 {
		return "", errors.Errorf("%s: exit status %d: %s",
			tool, result.Code, strings.TrimSpace(string(result.Stderr)))
	}
	return string(result.Stdout), nil
}

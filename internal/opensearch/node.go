// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package opensearch drives a local OpenSearch node: its plugin tool,
// keystore, configuration file and REST API.
package opensearch

import (
	"context"
	"strings"

	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
)

var logger = loggo.GetLogger("opensearch.plugins.opensearch")

const pluginBin = "opensearch-plugin"

// NodeConfig holds the dependencies of a Node.
type NodeConfig struct {
	Layout Layout
	Runner CommandRunner
	Client *Client
}

// Validate ensures that the config values are valid.
func (c NodeConfig) Validate() error {
	if err := c.Layout.Validate(); err != nil {
		return errors.Trace(err)
	}
	if c.Runner == nil {
		return errors.NotValidf("nil Runner")
	}
	if c.Client == nil {
		return errors.NotValidf("nil Client")
	}
	return nil
}

// Node manages the plugins of the local OpenSearch node.
type Node struct {
	cfg NodeConfig
}

// NewNode returns a Node.
func NewNode(cfg NodeConfig) (*Node, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	return &Node{cfg: cfg}, nil
}

// InstalledPlugins returns the names of the installed plugins.
func (n *Node) InstalledPlugins(ctx context.Context) ([]string, error) {
	out, err := runBin(ctx, n.cfg.Runner, n.cfg.Layout, pluginBin, "list")
	if err != nil {
		return nil, errors.Trace(err)
	}
	var names []string
	for _, line := range strings.Split(out, "\n") {
		if name := strings.TrimSpace(line); name != "" {
			names = append(names, name)
		}
	}
	return names, nil
}

// InstallPlugin installs the named plugin. It returns an error satisfying
// errors.AlreadyExists if the plugin is already there.
func (n *Node) InstallPlugin(ctx context.Context, name string) error {
	_, err := runBin(ctx, n.cfg.Runner, n.cfg.Layout, pluginBin, "install", "--batch", name)
	if commandFailed(err, "already exists") {
		return errors.AlreadyExistsf("plugin %q", name)
	}
	return errors.Trace(err)
}

// RemovePlugin removes the named plugin. It returns an error satisfying
// errors.NotFound if the plugin is not installed.
func (n *Node) RemovePlugin(ctx context.Context, name string) error {
	_, err := runBin(ctx, n.cfg.Runner, n.cfg.Layout, pluginBin, "remove", name)
	if commandFailed(err, "not found") {
		return errors.NotFoundf("plugin %q", name)
	}
	return errors.Trace(err)
}

// ServiceVersion returns the version of the running OpenSearch service.
func (n *Node) ServiceVersion(ctx context.Context) (string, error) {
	info, err := n.cfg.Client.Info(ctx)
	if err != nil {
		return "", errors.Trace(err)
	}
	if info.Version.Number == "" {
		return "", errors.NotFoundf("version of node %q", info.Name)
	}
	return info.Version.Number, nil
}

// IsRunning reports whether the node answers on its REST root.
func (n *Node) IsRunning(ctx context.Context) (bool, error) {
	if _, err := n.cfg.Client.Info(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return false, errors.Trace(ctxErr)
		}
		logger.Debugf("node not answering: %v", err)
		return false, nil
	}
	return true, nil
}

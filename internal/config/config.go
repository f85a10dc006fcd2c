// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package config reads the configuration file of the plugin agent.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/juju/errors"
	"github.com/juju/names/v5"
	"gopkg.in/yaml.v3"

	"github.com/canonical/opensearch-plugins/internal/opensearch"
	"github.com/canonical/opensearch-plugins/internal/plugin"
)

const (
	// DefaultHome is where the snap ships OpenSearch.
	DefaultHome = "/snap/opensearch/current/usr/share/opensearch"

	// DefaultConfDir is where the snap keeps the node configuration.
	DefaultConfDir = "/var/snap/opensearch/current/etc/opensearch"

	// DefaultURL is the REST endpoint of the local node.
	DefaultURL = "https://localhost:9200"

	// DefaultResyncInterval is how often a reconciliation runs without a
	// trigger.
	DefaultResyncInterval = 5 * time.Minute

	// DefaultRetryDelay and DefaultMaxRetryDelay bound the backoff used
	// while the cluster is not ready.
	DefaultRetryDelay    = 10 * time.Second
	DefaultMaxRetryDelay = 5 * time.Minute

	// DefaultLoggingConfig is the loggo specification used when none is
	// given.
	DefaultLoggingConfig = "<root>=INFO"
)

// serialization is the layout of the configuration file.
type serialization struct {
	OpenSearch struct {
		Home           string `yaml:"home"`
		ConfDir        string `yaml:"conf-dir"`
		URL            string `yaml:"url"`
		Username       string `yaml:"username"`
		PasswordFile   string `yaml:"password-file"`
		CACertFile     string `yaml:"ca-cert-file"`
		RestartCommand string `yaml:"restart-command"`
	} `yaml:"opensearch"`

	UnitName     string   `yaml:"unit-name"`
	HookToolsDir string   `yaml:"hook-tools-dir"`
	Options      []string `yaml:"options"`
	Relations    []string `yaml:"relations"`

	ResyncInterval time.Duration `yaml:"resync-interval"`
	RetryDelay     time.Duration `yaml:"retry-delay"`
	MaxRetryDelay  time.Duration `yaml:"max-retry-delay"`

	MetricsAddress string `yaml:"metrics-address"`
	LoggingConfig  string `yaml:"logging-config"`
}

// Config is the configuration of the plugin agent.
type Config struct {
	// Home and ConfDir locate the OpenSearch installation.
	Home    string
	ConfDir string

	// URL, Username and Password reach the REST API of the local node.
	URL      string
	Username string
	Password string

	// CACertFile, if set, holds the CA certificate the node presents.
	CACertFile string

	// RestartCommand restarts the OpenSearch service.
	RestartCommand string

	// UnitName is the juju unit the agent runs for. Outside a hook
	// context the hook tools are run through juju-exec as this unit.
	UnitName string

	// HookToolsDir holds the juju hook tools. PATH is used when empty.
	HookToolsDir string

	// Options and Relations are the charm config options and relation
	// endpoints the charm declares.
	Options   []string
	Relations []string

	ResyncInterval time.Duration
	RetryDelay     time.Duration
	MaxRetryDelay  time.Duration

	// MetricsAddress is where /metrics is served. Metrics are not served
	// when empty.
	MetricsAddress string

	LoggingConfig string
}

// Default returns the configuration used when the file sets nothing. It
// declares the gates of the default plugin catalog.
func Default() Config {
	cfg := Config{
		Home:           DefaultHome,
		ConfDir:        DefaultConfDir,
		URL:            DefaultURL,
		RestartCommand: opensearch.DefaultRestartCommand,
		ResyncInterval: DefaultResyncInterval,
		RetryDelay:     DefaultRetryDelay,
		MaxRetryDelay:  DefaultMaxRetryDelay,
		LoggingConfig:  DefaultLoggingConfig,
	}
	for _, e := range plugin.DefaultEntries {
		if e.ConfigOption != "" {
			cfg.Options = append(cfg.Options, e.ConfigOption)
		}
		if e.Relation != "" {
			cfg.Relations = append(cfg.Relations, e.Relation)
		}
	}
	return cfg
}

// Read reads the configuration file at path. Unset values take their
// defaults.
func Read(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Annotatef(err, "reading config file")
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, errors.Annotatef(err, "config file %s", path)
	}
	return cfg, nil
}

// Parse parses the content of a configuration file.
func Parse(data []byte) (Config, error) {
	var format serialization
	if err := yaml.Unmarshal(data, &format); err != nil {
		return Config{}, errors.Trace(err)
	}

	cfg := Default()
	setString(&cfg.Home, format.OpenSearch.Home)
	setString(&cfg.ConfDir, format.OpenSearch.ConfDir)
	setString(&cfg.URL, format.OpenSearch.URL)
	cfg.Username = format.OpenSearch.Username
	cfg.CACertFile = format.OpenSearch.CACertFile
	setString(&cfg.RestartCommand, format.OpenSearch.RestartCommand)
	cfg.UnitName = format.UnitName
	cfg.HookToolsDir = format.HookToolsDir
	if format.Options != nil {
		cfg.Options = format.Options
	}
	if format.Relations != nil {
		cfg.Relations = format.Relations
	}
	setDuration(&cfg.ResyncInterval, format.ResyncInterval)
	setDuration(&cfg.RetryDelay, format.RetryDelay)
	setDuration(&cfg.MaxRetryDelay, format.MaxRetryDelay)
	cfg.MetricsAddress = format.MetricsAddress
	setString(&cfg.LoggingConfig, format.LoggingConfig)

	if format.OpenSearch.PasswordFile != "" {
		password, err := os.ReadFile(format.OpenSearch.PasswordFile)
		if err != nil {
			return Config{}, errors.Annotate(err, "reading password file")
		}
		cfg.Password = strings.TrimSpace(string(password))
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, errors.Trace(err)
	}
	return cfg, nil
}

// Validate returns an error if the configuration cannot be used.
func (c Config) Validate() error {
	if c.Home == "" {
		return errors.NotValidf("empty opensearch home")
	}
	if c.ConfDir == "" {
		return errors.NotValidf("empty opensearch conf-dir")
	}
	if c.URL == "" {
		return errors.NotValidf("empty opensearch url")
	}
	if c.RestartCommand == "" {
		return errors.NotValidf("empty opensearch restart-command")
	}
	if c.UnitName != "" && !names.IsValidUnit(c.UnitName) {
		return errors.NotValidf("unit-name %q", c.UnitName)
	}
	if c.Username == "" && c.Password != "" {
		return errors.NotValidf("password without username")
	}
	if c.ResyncInterval <= 0 {
		return errors.NotValidf("resync-interval %v", c.ResyncInterval)
	}
	if c.RetryDelay <= 0 {
		return errors.NotValidf("retry-delay %v", c.RetryDelay)
	}
	if c.MaxRetryDelay < c.RetryDelay {
		return errors.NotValidf("max-retry-delay %v shorter than retry-delay %v", c.MaxRetryDelay, c.RetryDelay)
	}
	return nil
}

func setString(dst *string, value string) {
	if value != "" {
		*dst = value
	}
}

func setDuration(dst *time.Duration, value time.Duration) {
	if value != 0 {
		*dst = value
	}
}

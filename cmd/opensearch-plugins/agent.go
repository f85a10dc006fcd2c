// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package main

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/canonical/opensearch-plugins/internal/config"
	"github.com/canonical/opensearch-plugins/internal/hookenv"
	"github.com/canonical/opensearch-plugins/internal/opensearch"
	"github.com/canonical/opensearch-plugins/internal/plugin"
	"github.com/canonical/opensearch-plugins/internal/plugin/manager"
	"github.com/canonical/opensearch-plugins/internal/worker/pluginmanager"
)

// hookContextEnv is set while a hook or a juju-exec command runs.
const hookContextEnv = "JUJU_CONTEXT_ID"

// agent holds the components reconciling the plugins of the local node.
type agent struct {
	cfg       config.Config
	manager   *manager.Manager
	hooks     *hookenv.Context
	restarter *opensearch.ServiceRestarter
}

func newAgent(cfg config.Config) (*agent, error) {
	layout := opensearch.Layout{Home: cfg.Home, ConfDir: cfg.ConfDir}

	httpClient, err := newHTTPClient(cfg.CACertFile)
	if err != nil {
		return nil, errors.Trace(err)
	}
	client, err := opensearch.NewClient(opensearch.ClientConfig{
		URL:        cfg.URL,
		Username:   cfg.Username,
		Password:   cfg.Password,
		HTTPClient: httpClient,
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	node, err := opensearch.NewNode(opensearch.NodeConfig{
		Layout: layout,
		Runner: opensearch.DefaultRunner,
		Client: client,
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	keystore, err := opensearch.NewKeystore(layout, opensearch.DefaultRunner)
	if err != nil {
		return nil, errors.Trace(err)
	}
	restarter, err := opensearch.NewServiceRestarter(layout, opensearch.DefaultRunner, cfg.RestartCommand)
	if err != nil {
		return nil, errors.Trace(err)
	}
	var execUnit string
	if os.Getenv(hookContextEnv) == "" {
		if cfg.UnitName == "" {
			return nil, errors.NotValidf("empty unit-name outside a hook context")
		}
		execUnit = cfg.UnitName
	}
	hooks, err := hookenv.New(hookenv.Config{
		Runner:    hookenv.DefaultRunner,
		ToolsDir:  cfg.HookToolsDir,
		Options:   cfg.Options,
		Relations: cfg.Relations,
		ExecUnit:  execUnit,
	})
	if err != nil {
		return nil, errors.Trace(err)
	}

	m, err := manager.NewManager(manager.Config{
		Catalog:      plugin.DefaultCatalog(),
		Node:         node,
		Health:       client,
		ConfigStore:  opensearch.NewConfigFile(layout.ConfigFile()),
		Secrets:      keystore,
		CharmConfig:  hooks,
		Relations:    hooks,
		Versions:     plugin.DescriptorReader{PluginsDir: layout.PluginsDir()},
		RelationData: hooks,
		Repositories: client,
		Logger:       loggo.GetLogger("opensearch.plugins.manager"),
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	return &agent{
		cfg:       cfg,
		manager:   m,
		hooks:     hooks,
		restarter: restarter,
	}, nil
}

func newHTTPClient(caCertFile string) (*http.Client, error) {
	client := &http.Client{Timeout: 30 * time.Second}
	if caCertFile == "" {
		return client, nil
	}
	pem, err := os.ReadFile(caCertFile)
	if err != nil {
		return nil, errors.Annotate(err, "reading CA certificate")
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, errors.NotValidf("CA certificate %s", caCertFile)
	}
	client.Transport = &http.Transport{
		Proxy:           http.ProxyFromEnvironment,
		TLSClientConfig: &tls.Config{RootCAs: pool, MinVersion: tls.VersionTLS12},
	}
	return client, nil
}

// run runs the plugin manager worker until ctx is done. SIGHUP triggers a
// reconciliation.
func (a *agent) run(ctx context.Context) error {
	triggers := make(chan struct{}, 1)
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-hup:
				select {
				case triggers <- struct{}{}:
				default:
				}
			}
		}
	}()

	collector := pluginmanager.NewMetricsCollector()
	if a.cfg.MetricsAddress != "" {
		registry := prometheus.NewRegistry()
		if err := registry.Register(collector); err != nil {
			return errors.Trace(err)
		}
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		srv := &http.Server{Addr: a.cfg.MetricsAddress, Handler: mux}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Errorf("serving metrics: %v", err)
			}
		}()
		defer func() { _ = srv.Close() }()
	}

	w, err := pluginmanager.NewWorker(pluginmanager.Config{
		Reconciler:     a.manager,
		Status:         a.hooks,
		Restarter:      a.restarter,
		Triggers:       triggers,
		Clock:          clock.WallClock,
		ResyncInterval: a.cfg.ResyncInterval,
		RetryDelay:     a.cfg.RetryDelay,
		MaxRetryDelay:  a.cfg.MaxRetryDelay,
		Metrics:        collector,
		Logger:         loggo.GetLogger("opensearch.plugins.worker"),
	})
	if err != nil {
		return errors.Trace(err)
	}
	go func() {
		<-ctx.Done()
		w.Kill()
	}()
	return errors.Trace(w.Wait())
}

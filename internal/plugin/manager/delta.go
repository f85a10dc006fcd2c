// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package manager

import (
	"context"

	"github.com/juju/errors"

	"github.com/canonical/opensearch-plugins/internal/plugin"
)

// Apply applies the delta and reports whether any configuration entry
// changed. Secret entries never count as a change.
//
// Secrets are deleted and added before the configuration is touched, so
// that the configuration never refers to a secret that is not there yet.
// Applying the same delta twice is a no-op the second time.
func (m *Manager) Apply(ctx context.Context, delta plugin.Delta) (bool, error) {
	if err := delta.Validate(); err != nil {
		return false, missingConfig(err, "invalid delta")
	}

	if len(delta.SecretsToDelete) > 0 {
		err := m.cfg.Secrets.DeleteSecrets(ctx, delta.SecretsToDelete)
		if err != nil && !errors.Is(err, errors.NotFound) {
			return false, errors.Annotate(err, "deleting secrets")
		}
	}
	if len(delta.SecretsToAdd) > 0 {
		if err := m.cfg.Secrets.AddSecrets(ctx, delta.SecretsToAdd); err != nil {
			return false, errors.Annotate(err, "adding secrets")
		}
	}

	if !delta.ChangesConfig() {
		return false, nil
	}
	keys := append(delta.ConfigKeys(), delta.ConfigToDelete...)
	current, err := m.cfg.ConfigStore.PluginConfig(ctx, keys)
	if err != nil {
		return false, errors.Annotate(err, "reading plugin config")
	}

	var toDelete []string
	for _, key := range delta.ConfigToDelete {
		if _, ok := current[key]; ok {
			toDelete = append(toDelete, key)
		}
	}
	toAdd := make(map[string]string)
	for key, value := range delta.ConfigToAdd {
		if v, ok := current[key]; !ok || v != value {
			toAdd[key] = value
		}
	}

	if len(toDelete) > 0 {
		m.cfg.Logger.Debugf("deleting plugin config %v", toDelete)
		if err := m.cfg.ConfigStore.DeletePluginConfig(ctx, toDelete); err != nil {
			return false, errors.Annotate(err, "deleting plugin config")
		}
	}
	if len(toAdd) > 0 {
		m.cfg.Logger.Debugf("adding plugin config %v", plugin.Delta{ConfigToAdd: toAdd}.ConfigKeys())
		if err := m.cfg.ConfigStore.AddPluginConfig(ctx, toAdd); err != nil {
			return false, errors.Annotate(err, "adding plugin config")
		}
	}
	return len(toDelete) > 0 || len(toAdd) > 0, nil
}

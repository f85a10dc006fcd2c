// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package opensearch

import (
	"context"
	"fmt"
	"sort"

	"github.com/juju/errors"
	"github.com/kballard/go-shellquote"
)

const keystoreBin = "opensearch-keystore"

// Keystore manages the secure settings of the node with the
// opensearch-keystore tool.
type Keystore struct {
	layout Layout
	runner CommandRunner
}

// NewKeystore returns a Keystore for the given installation.
func NewKeystore(layout Layout, runner CommandRunner) (*Keystore, error) {
	if err := layout.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	if runner == nil {
		return nil, errors.NotValidf("nil runner")
	}
	return &Keystore{layout: layout, runner: runner}, nil
}

// AddSecrets stores the entries, replacing existing values. Values are
// written to the tool's standard input by the shell builtin printf, so
// they never appear in the arguments of a process.
func (k *Keystore) AddSecrets(ctx context.Context, entries map[string]string) error {
	for _, key := range sortedKeys(entries) {
		command := fmt.Sprintf("printf %%s %s | %s",
			shellquote.Join(entries[key]),
			shellquote.Join(k.layout.Bin(keystoreBin), "add", "--stdin", "--force", key),
		)
		if _, err := runShell(ctx, k.runner, k.layout, keystoreBin+" add "+key, command); err != nil {
			return errors.Annotatef(err, "adding secret %q", key)
		}
	}
	return nil
}

// DeleteSecrets removes the given keys. Every key is attempted; if some
// were not in the keystore, the returned error satisfies errors.NotFound.
func (k *Keystore) DeleteSecrets(ctx context.Context, keys []string) error {
	var missing []string
	for _, key := range keys {
		_, err := runBin(ctx, k.runner, k.layout, keystoreBin, "remove", key)
		if commandFailed(err, "does not exist") {
			missing = append(missing, key)
			continue
		} else if err != nil {
			return errors.Annotatef(err, "removing secret %q", key)
		}
	}
	if len(missing) > 0 {
		return errors.NotFoundf("secrets %v", missing)
	}
	return nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

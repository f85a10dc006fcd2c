// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package opensearch

import (
	"bytes"
	"context"
	"os"
	"strings"
	"sync"

	"github.com/juju/collections/set"
	"github.com/juju/errors"
	"github.com/juju/utils/v4"
	"gopkg.in/yaml.v3"
)

// ConfigFile reads and writes plugin settings in opensearch.yml.
//
// Settings are top-level keys in dotted form, e.g. knn.plugin.enabled.
// The rest of the document, comments included, is kept as it is. Values
// are read and written as strings.
type ConfigFile struct {
	path string

	mu sync.Mutex
}

// NewConfigFile returns a ConfigFile for the file at path.
func NewConfigFile(path string) *ConfigFile {
	return &ConfigFile{path: path}
}

// PluginConfig returns the stored values of the given keys. Keys that are
// not set are absent from the result.
func (f *ConfigFile) PluginConfig(ctx context.Context, keys []string) (map[string]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Trace(err)
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.load()
	if err != nil {
		return nil, errors.Trace(err)
	}
	wanted := set.NewStrings(keys...)
	result := make(map[string]string)
	root := doc.Content[0]
	for i := 0; i+1 < len(root.Content); i += 2 {
		key, value := root.Content[i].Value, root.Content[i+1]
		if !wanted.Contains(key) {
			continue
		}
		s, ok, err := stringValue(value)
		if err != nil {
			return nil, errors.Annotatef(err, "reading %q", key)
		}
		if ok {
			result[key] = s
		}
	}
	return result, nil
}

// AddPluginConfig sets the given entries, replacing existing values.
func (f *ConfigFile) AddPluginConfig(ctx context.Context, entries map[string]string) error {
	return f.update(ctx, func(root *yaml.Node) {
		for _, key := range sortedKeys(entries) {
			value := &yaml.Node{Kind: yaml.ScalarNode, Value: entries[key]}
			if i := indexOf(root, key); i >= 0 {
				root.Content[i+1] = value
				continue
			}
			root.Content = append(root.Content,
				&yaml.Node{Kind: yaml.ScalarNode, Value: key},
				value,
			)
		}
	})
}

// DeletePluginConfig removes the given keys. Keys that are not set are
// ignored.
func (f *ConfigFile) DeletePluginConfig(ctx context.Context, keys []string) error {
	remove := set.NewStrings(keys...)
	return f.update(ctx, func(root *yaml.Node) {
		content := root.Content[:0]
		for i := 0; i+1 < len(root.Content); i += 2 {
			if remove.Contains(root.Content[i].Value) {
				continue
			}
			content = append(content, root.Content[i], root.Content[i+1])
		}
		root.Content = content
	})
}

func (f *ConfigFile) update(ctx context.Context, change func(root *yaml.Node)) error {
	if err := ctx.Err(); err != nil {
		return errors.Trace(err)
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.load()
	if err != nil {
		return errors.Trace(err)
	}
	change(doc.Content[0])

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return errors.Annotatef(err, "encoding %s", f.path)
	}
	if err := enc.Close(); err != nil {
		return errors.Trace(err)
	}

	perms := os.FileMode(0644)
	if info, err := os.Stat(f.path); err == nil {
		perms = info.Mode().Perm()
	}
	if err := utils.AtomicWriteFile(f.path, buf.Bytes(), perms); err != nil {
		return errors.Annotatef(err, "writing %s", f.path)
	}
	return nil
}

// load returns the document of the file, whose single child is the
// top-level mapping. A missing or empty file is an empty mapping.
func (f *ConfigFile) load() (*yaml.Node, error) {
	data, err := os.ReadFile(f.path)
	if err != nil && !os.IsNotExist(err) {
		return nil, errors.Annotatef(err, "reading %s", f.path)
	}

	var doc yaml.Node
	if len(bytes.TrimSpace(data)) > 0 {
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, errors.Annotatef(err, "parsing %s", f.path)
		}
	}
	if doc.Kind == 0 || len(doc.Content) == 0 {
		return &yaml.Node{
			Kind:    yaml.DocumentNode,
			Content: []*yaml.Node{{Kind: yaml.MappingNode, Tag: "!!map"}},
		}, nil
	}
	if doc.Content[0].Kind != yaml.MappingNode {
		return nil, errors.NotValidf("%s: top-level value not a mapping", f.path)
	}
	return &doc, nil
}

func indexOf(mapping *yaml.Node, key string) int {
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == key {
			return i
		}
	}
	return -1
}

// stringValue renders a setting value as a string. Null values are
// reported as not set.
func stringValue(node *yaml.Node) (string, bool, error) {
	if node.Kind == yaml.AliasNode {
		node = node.Alias
	}
	if node.Kind == yaml.ScalarNode {
		if node.ShortTag() == "!!null" {
			return "", false, nil
		}
		return node.Value, true, nil
	}
	out, err := yaml.Marshal(node)
	if err != nil {
		return "", false, errors.Trace(err)
	}
	return strings.TrimSpace(string(out)), true, nil
}

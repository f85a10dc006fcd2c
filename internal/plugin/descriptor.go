// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package plugin

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/juju/errors"
	"github.com/magiconair/properties"
)

// DescriptorFile is the file every installed plugin ships its metadata in.
const DescriptorFile = "plugin-descriptor.properties"

// DescriptorReader reads plugin versions from the descriptors found in a
// plugins directory.
type DescriptorReader struct {
	// PluginsDir is the directory plugins are installed in.
	PluginsDir string
}

// PluginVersion is part of the VersionReader interface.
func (r DescriptorReader) PluginVersion(name string) (string, error) {
	path := filepath.Join(r.PluginsDir, name, DescriptorFile)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return "", errors.NotFoundf("descriptor of plugin %q", name)
	} else if err != nil {
		return "", errors.Trace(err)
	}

	props, err := properties.LoadFile(path, properties.UTF8)
	if err != nil {
		return "", errors.Annotatef(err, "loading descriptor of plugin %q", name)
	}
	version, ok := props.Get("version")
	if !ok || strings.TrimSpace(version) == "" {
		return "", errors.NotFoundf("version in descriptor of plugin %q", name)
	}
	return strings.TrimSpace(version), nil
}

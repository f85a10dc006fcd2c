// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package opensearch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/juju/errors"
	"github.com/juju/utils/v4/exec"
	"github.com/kballard/go-shellquote"
)

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

// CommandError is returned when a command exits with a non-zero code.
type CommandError struct {
	Cmd    string
	Code   int
	Stderr string
}

// Error implements error.
func (e *CommandError) Error() string {
	msg := fmt.Sprintf("%s: exit status %d", e.Cmd, e.Code)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

// Layout locates an OpenSearch installation.
type Layout struct {
	// Home is the OPENSEARCH_HOME directory, holding bin/ and plugins/.
	Home string

	// ConfDir is the OPENSEARCH_PATH_CONF directory, holding
	// opensearch.yml and the keystore.
	ConfDir string
}

// Validate ensures both directories are set.
func (l Layout) Validate() error {
	if l.Home == "" {
		return errors.NotValidf("empty Home")
	}
	if l.ConfDir == "" {
		return errors.NotValidf("empty ConfDir")
	}
	return nil
}

// Bin returns the path of the named OpenSearch tool.
func (l Layout) Bin(name string) string {
	return filepath.Join(l.Home, "bin", name)
}

// PluginsDir returns the directory plugins are installed in.
func (l Layout) PluginsDir() string {
	return filepath.Join(l.Home, "plugins")
}

// ConfigFile returns the path of opensearch.yml.
func (l Layout) ConfigFile() string {
	return filepath.Join(l.ConfDir, "opensearch.yml")
}

func (l Layout) environment() []string {
	return append(os.Environ(),
		"OPENSEARCH_HOME="+l.Home,
		"OPENSEARCH_PATH_CONF="+l.ConfDir,
	)
}

// runBin runs an OpenSearch tool and returns its trimmed standard output.
// A non-zero exit code is reported as a *CommandError.
func runBin(ctx context.Context, runner CommandRunner, layout Layout, bin string, args ...string) (string, error) {
	command := shellquote.Join(append([]string{layout.Bin(bin)}, args...)...)
	return runShell(ctx, runner, layout, bin, command)
}

// runShell runs a shell command line. Only name is used in errors and
// logs, so the command line may hold secrets.
func runShell(ctx context.Context, runner CommandRunner, layout Layout, name, command string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", errors.Trace(err)
	}
	result, err := runner.RunCommands(exec.RunParams{
		Commands:    command,
		WorkingDir:  layout.Home,
		Environment: layout.environment(),
	})
	if err != nil {
		return "", errors.Annotatef(err, "running %s", name)
	}
	stdout := strings.TrimSpace(string(result.Stdout))
	if result.Code != 0 {
		stderr := strings.TrimSpace(string(result.Stderr))
		if stderr == "" {
			stderr = stdout
		}
		return "", &CommandError{Cmd: name, Code: result.Code, Stderr: stderr}
	}
	logger.Tracef("%s: %s", name, stdout)
	return stdout, nil
}

// commandFailed reports whether err is a command error whose output
// contains text.
func commandFailed(err error, text string) bool {
	var cmdErr *CommandError
	return errors.As(err, &cmdErr) && strings.Contains(cmdErr.Stderr, text)
}

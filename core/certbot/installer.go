package certbot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dmitrymomot/certdesk/core/logger"
	"github.com/dmitrymomot/certdesk/pkg/shell"
)

const (
	// VersionPlaceholder is replaced with VersionDetection in version and dependency specs.
	VersionPlaceholder = "{{certbot-version}}"

	// VersionDetection expands to the installed certbot version when the shell evaluates it.
	VersionDetection = `$(certbot --version | grep -Eo '[0-9](\.[0-9]+)+')`

	// DefaultVenvDir is the certbot virtualenv root.
	DefaultVenvDir = "/opt/certbot"
)

// compatEnv is required for certbot plugins to build on recent Python releases.
var compatEnv = map[string]string{"SETUPTOOLS_USE_DISTUTILS": "stdlib"}

// Installer installs a single certbot plugin into the certbot virtualenv.
type Installer struct {
	registry *Registry
	runner   shell.Runner
	venvDir  string
	environ  func() map[string]string
	logger   *slog.Logger
}

// InstallerOption configures an Installer.
type InstallerOption func(*Installer)

// WithVenvDir overrides the certbot virtualenv directory.
func WithVenvDir(dir string) InstallerOption {
	return func(i *Installer) {
		if dir != "" {
			i.venvDir = strings.TrimRight(dir, "/")
		}
	}
}

// WithEnviron replaces the source of the base process environment.
func WithEnviron(fn func() map[string]string) InstallerOption {
	return func(i *Installer) {
		if fn != nil {
			i.environ = fn
		}
	}
}

// WithInstallerLogger sets the installer logger.
func WithInstallerLogger(l *slog.Logger) InstallerOption {
	return func(i *Installer) {
		if l != nil {
			i.logger = l
		}
	}
}

// NewInstaller creates an Installer that resolves keys in registry and runs pip through runner.
func NewInstaller(registry *Registry, runner shell.Runner, opts ...InstallerOption) *Installer {
	i := &Installer{
		registry: registry,
		runner:   runner,
		venvDir:  DefaultVenvDir,
		environ:  shell.Environ,
		logger:   logger.Nop(),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Install installs the plugin registered under key.
// Unknown keys fail with a NotFoundError before anything is executed.
// Runner errors are returned as is.
func (i *Installer) Install(ctx context.Context, key string) (shell.Result, error) {
	plugin, ok := i.registry.Lookup(key)
	if !ok {
		return shell.Result{}, &NotFoundError{Key: key}
	}

	i.logger.InfoContext(ctx, fmt.Sprintf("Installing %s...", key), logger.Plugin(key))

	env := shell.MergeEnv(i.environ(), compatEnv, plugin.Env)
	cmd := i.Command(plugin)

	res, err := i.runner.Exec(ctx, cmd, shell.Options{Env: env})
	if err != nil {
		return res, err
	}

	i.logger.InfoContext(ctx, fmt.Sprintf("Installed %s", key), logger.Plugin(key))
	return res, nil
}

// Command renders the shell command that installs plugin.
func (i *Installer) Command(plugin Plugin) string {
	deps := RenderVersion(plugin.Dependencies)
	version := RenderVersion(plugin.Version)

	return fmt.Sprintf(". %s/bin/activate && pip install --no-cache-dir %s %s%s  && deactivate",
		i.venvDir, deps, plugin.PackageName, version)
}

// RenderVersion substitutes every VersionPlaceholder in a pip requirement with VersionDetection.
func RenderVersion(req string) string {
	return strings.ReplaceAll(req, VersionPlaceholder, VersionDetection)
}

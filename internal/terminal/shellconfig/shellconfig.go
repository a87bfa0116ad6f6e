// Package shellconfig provides the default shell, arguments and environment
// overrides for new terminals, read from an optional YAML profile file.
package shellconfig

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"sort"
	"strings"

	"github.com/goccy/go-yaml"
)

// Platform keys used in the profile file.
const (
	PlatformLinux   = "linux"
	PlatformOSX     = "osx"
	PlatformWindows = "windows"
)

// File is the on-disk profile layout. Each setting is keyed by platform.
// An env value of null removes the variable from the inherited environment.
type File struct {
	Shell     map[string]string             `yaml:"shell"`
	ShellArgs map[string][]string           `yaml:"shellArgs"`
	Env       map[string]map[string]*string `yaml:"env"`
}

// Profile is the resolved configuration for one platform.
type Profile struct {
	Shell string
	Args  []string
	Env   map[string]*string
}

// Provider answers shell profile queries for the current platform.
type Provider struct {
	platform string
	file     File
	getenv   func(string) string
}

// Load reads the profile file at path. An empty path or a missing file yields
// the defaults.
func Load(path string) (*Provider, error) {
	p := &Provider{platform: CurrentPlatform(), getenv: os.Getenv}
	if path == "" {
		return p, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return p, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read shell config: %w", err)
	}

	if err := yaml.Unmarshal(data, &p.file); err != nil {
		return nil, fmt.Errorf("parse shell config %s: %w", path, err)
	}
	return p, nil
}

// New creates a provider from an already parsed file for platform.
func New(file File, platform string, getenv func(string) string) *Provider {
	if getenv == nil {
		getenv = os.Getenv
	}
	return &Provider{platform: platform, file: file, getenv: getenv}
}

// Profile returns the resolved shell, args and env overrides.
func (p *Provider) Profile() Profile {
	return Profile{
		Shell: p.Shell(),
		Args:  p.Args(),
		Env:   p.file.Env[p.platform],
	}
}

// Shell returns the configured shell or the platform default.
func (p *Provider) Shell() string {
	if shell := p.file.Shell[p.platform]; shell != "" {
		return shell
	}
	if p.platform == PlatformWindows {
		if comspec := p.getenv("COMSPEC"); comspec != "" {
			return comspec
		}
		return "cmd.exe"
	}
	if shell := p.getenv("SHELL"); shell != "" {
		return shell
	}
	return "/bin/sh"
}

// Args returns the configured shell arguments.
func (p *Provider) Args() []string {
	args := p.file.ShellArgs[p.platform]
	if args == nil {
		return []string{}
	}
	return append([]string(nil), args...)
}

// CurrentPlatform maps GOOS to a profile platform key.
func CurrentPlatform() string {
	switch runtime.GOOS {
	case "darwin":
		return PlatformOSX
	case "windows":
		return PlatformWindows
	default:
		return PlatformLinux
	}
}

// BuildEnv merges base, the extra variables and the overrides. Overrides are
// applied last; a nil override deletes the variable.
func BuildEnv(base []string, extra map[string]string, overrides map[string]*string) map[string]string {
	env := make(map[string]string, len(base)+len(extra))
	for _, kv := range base {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			continue
		}
		env[k] = v
	}
	for k, v := range extra {
		env[k] = v
	}
	for k, v := range overrides {
		if v == nil {
			delete(env, k)
			continue
		}
		env[k] = *v
	}
	return env
}

// Environ flattens env into sorted KEY=VALUE pairs.
func Environ(env map[string]string) []string {
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	sort.Strings(out)
	return out
}

package certbot

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"sync"
)

//go:embed certbot-dns-plugins.json
var defaultPlugins []byte

// Plugin describes an installable certbot DNS plugin.
type Plugin struct {
	Key            string
	Name           string
	PackageName    string
	Version        string
	Dependencies   string
	Credentials    string
	FullPluginName string
	// Env holds extra environment variables for pip. Nil when the registry
	// entry has no env object.
	Env map[string]string
}

type pluginRecord struct {
	Name           string          `json:"name"`
	PackageName    string          `json:"package_name"`
	Version        string          `json:"version"`
	Dependencies   string          `json:"dependencies"`
	Credentials    string          `json:"credentials"`
	FullPluginName string          `json:"full_plugin_name"`
	Env            json.RawMessage `json:"env,omitempty"`
}

// Registry is a read-only set of plugins keyed by plugin key.
type Registry struct {
	plugins map[string]Plugin
}

// NewRegistry decodes a plugin registry document.
// An env value that is not a string map is dropped, not rejected.
func NewRegistry(data []byte) (*Registry, error) {
	var records map[string]pluginRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRegistry, err)
	}

	plugins := make(map[string]Plugin, len(records))
	for key, rec := range records {
		plugins[key] = Plugin{
			Key:            key,
			Name:           rec.Name,
			PackageName:    rec.PackageName,
			Version:        rec.Version,
			Dependencies:   rec.Dependencies,
			Credentials:    rec.Credentials,
			FullPluginName: rec.FullPluginName,
			Env:            decodeEnv(rec.Env),
		}
	}

	return &Registry{plugins: plugins}, nil
}

var (
	defaultRegistryOnce sync.Once
	defaultRegistry     *Registry
)

// DefaultRegistry returns the registry embedded in the binary.
func DefaultRegistry() *Registry {
	defaultRegistryOnce.Do(func() {
		r, err := NewRegistry(defaultPlugins)
		if err != nil {
			panic(err)
		}
		defaultRegistry = r
	})
	return defaultRegistry
}

// Lookup returns a copy of the plugin registered under key.
func (r *Registry) Lookup(key string) (Plugin, bool) {
	p, ok := r.plugins[key]
	if !ok {
		return Plugin{}, false
	}
	p.Env = maps.Clone(p.Env)
	return p, true
}

// Keys returns all plugin keys in sorted order.
func (r *Registry) Keys() []string {
	return slices.Sorted(maps.Keys(r.plugins))
}

// Len returns the number of registered plugins.
func (r *Registry) Len() int {
	return len(r.plugins)
}

func decodeEnv(raw json.RawMessage) map[string]string {
	if len(raw) == 0 {
		return nil
	}
	var env map[string]string
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil
	}
	return env
}

// Package plugins carries the per-plugin-type capability surface of the
// content engine. The position core treats plugin payloads as opaque;
// everything type-specific (how long rendered output may be cached,
// which request headers it varies on) is answered by a [Hooks]
// implementation registered per plugin type and invoked uniformly, so
// the engine never inspects concrete types.
package plugins

import (
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/plugboard/plugboard/pkg/models"
)

const (
	// ExpireNow marks content that must not be cached at all.
	ExpireNow time.Duration = 0

	// MaxExpirationTTL caps every cache lifetime a hook can request.
	MaxExpirationTTL = 365 * 24 * time.Hour
)

// Hooks answers the type-specific questions the engine delegates. One
// implementation serves all instances of a plugin type.
type Hooks interface {
	// CacheExpiration returns how long a rendered instance may be cached,
	// measured from now. The bool reports whether the type has an opinion
	// at all; a returned duration <= 0 forbids caching outright.
	CacheExpiration(r *http.Request, now time.Time, instance *models.Plugin, placeholder *models.Placeholder) (time.Duration, bool)

	// VaryCacheOn returns the header names the cached output varies on.
	VaryCacheOn(r *http.Request, instance *models.Plugin, placeholder *models.Placeholder) []string
}

// NopHooks is the behavior of an unregistered plugin type: no cache
// opinion and no vary headers.
type NopHooks struct{}

func (NopHooks) CacheExpiration(*http.Request, time.Time, *models.Plugin, *models.Placeholder) (time.Duration, bool) {
	return 0, false
}

func (NopHooks) VaryCacheOn(*http.Request, *models.Plugin, *models.Placeholder) []string {
	return nil
}

// Registry maps plugin types to their hooks. The zero value is not
// usable; construct with NewRegistry. Safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	hooks map[string]Hooks
}

func NewRegistry() *Registry {
	return &Registry{hooks: make(map[string]Hooks)}
}

// Register installs hooks for a plugin type, replacing any previous
// registration.
func (r *Registry) Register(pluginType string, hooks Hooks) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hooks[pluginType] = hooks
}

// Lookup returns the hooks for a plugin type, or NopHooks when the type
// was never registered.
func (r *Registry) Lookup(pluginType string) Hooks {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if hooks, ok := r.hooks[pluginType]; ok {
		return hooks
	}
	return NopHooks{}
}

// CacheExpiration aggregates the cache lifetime for a placeholder's
// rendered content: the minimum over every instance's hook TTL, starting
// from MaxExpirationTTL. Instances without an opinion are skipped; any
// instance reporting a TTL <= 0 short-circuits to ExpireNow, as does a
// placeholder with caching disabled.
func CacheExpiration(r *http.Request, now time.Time, placeholder *models.Placeholder, instances []*models.Plugin, registry *Registry) time.Duration {
	if placeholder != nil && !placeholder.CacheEnabled {
		return ExpireNow
	}
	if registry == nil {
		return MaxExpirationTTL
	}
	min := MaxExpirationTTL
	for _, instance := range instances {
		ttl, ok := registry.Lookup(instance.PluginType).CacheExpiration(r, now, instance, placeholder)
		if !ok {
			continue
		}
		if ttl <= ExpireNow {
			return ExpireNow
		}
		if ttl < min {
			min = ttl
		}
	}
	return min
}

// VaryCacheOn aggregates the vary headers for a placeholder's rendered
// content: the union over every instance's hook headers, lowercased,
// deduplicated and sorted. A placeholder with caching disabled varies on
// nothing.
func VaryCacheOn(r *http.Request, placeholder *models.Placeholder, instances []*models.Plugin, registry *Registry) []string {
	headers := []string{}
	if placeholder != nil && !placeholder.CacheEnabled {
		return headers
	}
	if registry == nil {
		return headers
	}
	seen := make(map[string]struct{})
	for _, instance := range instances {
		for _, header := range registry.Lookup(instance.PluginType).VaryCacheOn(r, instance, placeholder) {
			header = strings.ToLower(strings.TrimSpace(header))
			if header == "" {
				continue
			}
			if _, ok := seen[header]; ok {
				continue
			}
			seen[header] = struct{}{}
			headers = append(headers, header)
		}
	}
	sort.Strings(headers)
	return headers
}

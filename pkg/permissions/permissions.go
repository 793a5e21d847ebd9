// Package permissions is the delegation seam for placeholder-content
// authorization. The engine never decides policy: the host application
// implements [Checker], and [Guard] turns placeholder-level questions
// (may this user clear this placeholder?) into the per-plugin-type
// checks the Checker answers.
package permissions

import (
	"context"
	"fmt"

	"github.com/plugboard/plugboard/pkg/models"
	"github.com/plugboard/plugboard/pkg/store"
)

// Action is a permission-relevant operation on placeholder content.
type Action string

const (
	ActionAdd    Action = "add"
	ActionChange Action = "change"
	ActionDelete Action = "delete"
)

// Checker answers whether a user may perform an action on plugins of a
// given type inside a placeholder. Implemented by the host application.
type Checker interface {
	Can(ctx context.Context, user string, action Action, placeholder *models.Placeholder, pluginType string) (bool, error)
}

// AllowAll grants every request. It is the default for unauthenticated
// deployments of the editing service.
type AllowAll struct{}

func (AllowAll) Can(context.Context, string, Action, *models.Placeholder, string) (bool, error) {
	return true, nil
}

// Guard combines a Checker with the store so compound questions can be
// answered. Every method denies outright on a non-editable placeholder
// before consulting the Checker.
type Guard struct {
	checker Checker
	store   store.Store
}

func NewGuard(checker Checker, st store.Store) *Guard {
	return &Guard{checker: checker, store: st}
}

// CanAddPlugin reports whether user may add a plugin of pluginType to
// the placeholder.
func (g *Guard) CanAddPlugin(ctx context.Context, user string, placeholder *models.Placeholder, pluginType string) (bool, error) {
	if !placeholder.Editable {
		return false, nil
	}
	return g.checker.Can(ctx, user, ActionAdd, placeholder, pluginType)
}

// CanChangePlugin reports whether user may modify the plugin, including
// moving it within its placeholder.
func (g *Guard) CanChangePlugin(ctx context.Context, user string, placeholder *models.Placeholder, plugin *models.Plugin) (bool, error) {
	if !placeholder.Editable {
		return false, nil
	}
	return g.checker.Can(ctx, user, ActionChange, placeholder, plugin.PluginType)
}

// CanDeletePlugin reports whether user may delete the plugin and its
// subtree.
func (g *Guard) CanDeletePlugin(ctx context.Context, user string, placeholder *models.Placeholder, plugin *models.Plugin) (bool, error) {
	if !placeholder.Editable {
		return false, nil
	}
	return g.checker.Can(ctx, user, ActionDelete, placeholder, plugin.PluginType)
}

// CanMovePlugin reports whether user may move the plugin from its
// placeholder into the target placeholder: change permission at the
// source and add permission at the target.
func (g *Guard) CanMovePlugin(ctx context.Context, user string, source, target *models.Placeholder, plugin *models.Plugin) (bool, error) {
	ok, err := g.CanChangePlugin(ctx, user, source, plugin)
	if err != nil || !ok {
		return false, err
	}
	if target.ID == source.ID {
		return true, nil
	}
	return g.CanAddPlugin(ctx, user, target, plugin.PluginType)
}

// CanClearPlaceholder reports whether user may clear the placeholder's
// language scope (every language when language is empty): delete
// permission is required for each distinct plugin type present.
func (g *Guard) CanClearPlaceholder(ctx context.Context, user string, placeholder *models.Placeholder, language string) (bool, error) {
	if !placeholder.Editable {
		return false, nil
	}
	var languages []string
	if language != "" {
		languages = []string{language}
	}
	pluginTypes, err := g.store.DistinctPluginTypes(ctx, placeholder.ID, languages)
	if err != nil {
		return false, fmt.Errorf("collecting plugin types: %w", err)
	}
	for _, pluginType := range pluginTypes {
		ok, err := g.checker.Can(ctx, user, ActionDelete, placeholder, pluginType)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

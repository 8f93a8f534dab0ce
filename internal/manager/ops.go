package manager

import (
	"context"

	"llmgate/pkg/types"
)

// LoadModel registers spec and returns its status. It is the admin
// surface's entry point into Register.
func (m *Manager) LoadModel(ctx context.Context, spec types.ModelSpec) (types.ModelStatus, error) {
	info, err := m.Register(ctx, spec)
	if err != nil {
		return types.ModelStatus{}, err
	}
	return info.Status(), nil
}

// UnloadModel unregisters name and reports the resulting state: draining
// while requests are in flight, unloaded otherwise.
func (m *Manager) UnloadModel(name string) (string, error) {
	st, err := m.Unload(name)
	if err != nil {
		return "", err
	}
	return string(st), nil
}

// ResolveModel returns the model a request for name is served by: name
// itself, or the configured default when name is empty.
func (m *Manager) ResolveModel(name string) string {
	if name == "" {
		return m.defaultModel
	}
	return name
}

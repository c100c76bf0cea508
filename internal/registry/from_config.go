package registry

import (
	"routerd/internal/config"
	"routerd/pkg/types"
)

// FromConfig builds a registry from the configured backend list.
func FromConfig(backends []config.BackendConfig) (*Registry, error) {
	r := New()
	for _, bc := range backends {
		models := make(map[types.TaskType]string, len(bc.Models))
		for task, model := range bc.Models {
			models[types.TaskType(task)] = model
		}
		b := &Backend{
			Name:           bc.Name,
			Kind:           bc.Kind,
			BaseURL:        bc.BaseURL,
			APIKey:         bc.APIKey,
			Models:         models,
			MaxConcurrent:  bc.MaxConcurrent,
			Timeout:        bc.Timeout(),
			Priority:       bc.Priority,
			Enabled:        bc.IsEnabled(),
			HealthEndpoint: bc.HealthEndpoint,
		}
		if err := r.Register(b); err != nil {
			return nil, err
		}
	}
	return r, nil
}

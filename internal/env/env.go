// Package env supplies the connector environment that control() validates
// against the input schema.
package env

import (
	"context"
	"maps"

	"github.com/telhawk-systems/etl-central-square/internal/apperr"
	"github.com/telhawk-systems/etl-central-square/internal/etlapi"
)

// Provider returns the current connector environment.
type Provider interface {
	Env(ctx context.Context) (map[string]any, error)
}

// StaticProvider serves an environment taken from local configuration.
type StaticProvider struct {
	environment map[string]any
}

func NewStaticProvider(environment map[string]any) *StaticProvider {
	return &StaticProvider{environment: maps.Clone(environment)}
}

// Env returns a copy so callers cannot mutate the configured values.
func (p *StaticProvider) Env(ctx context.Context) (map[string]any, error) {
	out := maps.Clone(p.environment)
	if out == nil {
		out = map[string]any{}
	}
	return out, nil
}

// HTTPProvider reads the environment stored on the layer by the platform.
type HTTPProvider struct {
	client *etlapi.Client
}

func NewHTTPProvider(client *etlapi.Client) *HTTPProvider {
	return &HTTPProvider{client: client}
}

func (p *HTTPProvider) Env(ctx context.Context) (map[string]any, error) {
	environment, err := p.client.Environment(ctx)
	if err != nil {
		return nil, apperr.UpstreamFetch("failed to load connector environment", err)
	}
	return environment, nil
}

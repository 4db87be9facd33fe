package app

import (
	"context"
	"errors"
	"fmt"

	"homeline/internal/config"
	"homeline/internal/repo"
)

// ResolveConfig returns the workspace pipeline configuration. Precedence:
// the stored default in the database, then homeline.yml in the workspace,
// then the built-in default. Whatever wins is persisted so later runs and
// the server see the same thresholds.
func ResolveConfig(ctx context.Context, workspace string, r repo.Repo) (*config.Config, error) {
	cfg, err := r.GetPipelineConfig(ctx, "")
	if err == nil {
		return cfg, nil
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return nil, err
	}
	fileCfg, err := config.LoadOptional(workspace)
	if err != nil {
		return nil, err
	}
	if fileCfg == nil {
		fileCfg = config.Default()
	}
	if err := r.UpsertPipelineConfig(ctx, "", fileCfg); err != nil {
		return nil, fmt.Errorf("seed pipeline config: %w", err)
	}
	return fileCfg, nil
}

// ConfigForProperty returns the property-specific pipeline config when one
// was imported, falling back to the workspace default.
func ConfigForProperty(ctx context.Context, workspace, propertyID string, r repo.Repo) (*config.Config, error) {
	if propertyID != "" {
		if cfg, err := r.GetPipelineConfig(ctx, propertyID); err == nil {
			return cfg, nil
		} else if !errors.Is(err, repo.ErrNotFound) {
			return nil, err
		}
	}
	return ResolveConfig(ctx, workspace, r)
}

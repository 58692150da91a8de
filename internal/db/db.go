package db

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/patrickwarner/adslotgate/internal/models"
)

// PlacementSource is the persistent side of the placement presets.
type PlacementSource interface {
	LoadPlacements(ctx context.Context) ([]models.Placement, error)
}

// LoadPlacements reads every placement from src, drops the ones whose
// literals would never parse and publishes the rest to store. It returns
// the number of placements published.
func LoadPlacements(ctx context.Context, src PlacementSource, store models.PlacementStore, logger *zap.Logger) (int, error) {
	pls, err := src.LoadPlacements(ctx)
	if err != nil {
		return 0, fmt.Errorf("load placements: %w", err)
	}
	valid := pls[:0]
	for _, p := range pls {
		if err := p.Validate(); err != nil {
			logger.Warn("skipping invalid placement", zap.String("placement", p.ID), zap.Error(err))
			continue
		}
		valid = append(valid, p)
	}
	if err := store.ReloadAll(valid); err != nil {
		return 0, fmt.Errorf("publish placements: %w", err)
	}
	return len(valid), nil
}

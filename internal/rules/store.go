package rules

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/availability"
)

// Store supplies the scheduling configuration of an organization. Callers
// only read from it.
type Store interface {
	BusinessHours(ctx context.Context, orgID uuid.UUID) ([]availability.BusinessHourRule, error)
	BlockedTimes(ctx context.Context, orgID uuid.UUID) ([]availability.BlockedWindow, error)
	CapacityConfig(ctx context.Context, orgID uuid.UUID) ([]availability.CapacityRule, error)
}

// Set is the full configuration needed to generate and annotate slots.
type Set struct {
	Hours    []availability.BusinessHourRule
	Blocks   []availability.BlockedWindow
	Capacity []availability.CapacityRule
}

func Load(ctx context.Context, s Store, orgID uuid.UUID) (Set, error) {
	hours, err := s.BusinessHours(ctx, orgID)
	if err != nil {
		return Set{}, fmt.Errorf("load business hours: %w", err)
	}
	blocks, err := s.BlockedTimes(ctx, orgID)
	if err != nil {
		return Set{}, fmt.Errorf("load blocked times: %w", err)
	}
	capacity, err := s.CapacityConfig(ctx, orgID)
	if err != nil {
		return Set{}, fmt.Errorf("load capacity config: %w", err)
	}
	return Set{Hours: hours, Blocks: blocks, Capacity: capacity}, nil
}

package services

import (
	"fmt"

	"arbor/contexts/distribution-network/commission-engine/domain/entities"
	domainerrors "arbor/contexts/distribution-network/commission-engine/domain/errors"
)

// CommissionTypeSpec describes one member of the closed commission-type set
// and which source reference a row of that type must carry.
type CommissionTypeSpec struct {
	ID                 entities.CommissionType
	RequiresEvent      bool
	RequiresAcceptance bool
	RequiresStatement  bool
}

func (spec CommissionTypeSpec) Validate(commission entities.Commission) error {
	if spec.RequiresEvent && commission.EventID == "" {
		return fmt.Errorf("%s commission requires an event reference: %w", spec.ID, domainerrors.ErrInvalidInput)
	}
	if spec.RequiresAcceptance && commission.AcceptanceID == "" {
		return fmt.Errorf("%s commission requires an acceptance reference: %w", spec.ID, domainerrors.ErrInvalidInput)
	}
	if spec.RequiresStatement && commission.StatementID == "" {
		return fmt.Errorf("%s commission requires a statement reference: %w", spec.ID, domainerrors.ErrInvalidInput)
	}
	return nil
}

// CommissionTypeRegistry resolves type identifiers once at startup; dispatch
// by arbitrary strings at call time is what it replaces.
type CommissionTypeRegistry struct {
	specs map[entities.CommissionType]CommissionTypeSpec
}

func NewCommissionTypeRegistry() *CommissionTypeRegistry {
	registry := &CommissionTypeRegistry{specs: make(map[entities.CommissionType]CommissionTypeSpec)}
	for _, spec := range []CommissionTypeSpec{
		{ID: entities.CommissionTypePromotion, RequiresEvent: true},
		{ID: entities.CommissionTypeChain, RequiresEvent: true},
		{ID: entities.CommissionTypeLeader, RequiresEvent: true},
		{ID: entities.CommissionTypeTask, RequiresAcceptance: true},
		{ID: entities.CommissionTypeReward, RequiresStatement: true},
	} {
		registry.specs[spec.ID] = spec
	}
	return registry
}

func (r *CommissionTypeRegistry) Resolve(id entities.CommissionType) (CommissionTypeSpec, error) {
	spec, ok := r.specs[id]
	if !ok {
		return CommissionTypeSpec{}, fmt.Errorf("commission type %q: %w", id, domainerrors.ErrPluginNotFound)
	}
	return spec, nil
}

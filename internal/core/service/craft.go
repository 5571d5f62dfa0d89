package service

import (
	"context"

	"go.uber.org/zap"

	"sekonomy/internal/core/domain"
	"sekonomy/internal/port"
)

// Craft progresses Requested -> IngredientsFetched -> Validated -> Applied,
// or stops at Rejected with a reason code.
type CraftState string

const (
	CraftRequested          CraftState = "requested"
	CraftIngredientsFetched CraftState = "ingredients_fetched"
	CraftValidated          CraftState = "validated"
	CraftApplied            CraftState = "applied"
	CraftRejected           CraftState = "rejected"
)

// CraftResult reports the terminal state of one craft request.
type CraftResult struct {
	TargetItemID string     `json:"target_item_id"`
	State        CraftState `json:"state"`
	Reason       string     `json:"reason,omitempty"`
}

// CraftService resolves recipes against the requester's inventory. The
// apply step is one batched ledger adjustment (all ingredients negative,
// target +1) so a failure can never leave a half-consumed craft.
type CraftService struct {
	ledger  port.LedgerRepository
	catalog port.CatalogRepository
	logger  *zap.Logger
}

func NewCraftService(ledger port.LedgerRepository, catalog port.CatalogRepository, logger *zap.Logger) *CraftService {
	return &CraftService{ledger: ledger, catalog: catalog, logger: logger}
}

// Craft mints one unit of targetItemID by consuming the recipe's
// ingredients. The pre-validation against a plain inventory read gives the
// precise first-shortfall error; the batched adjustment re-validates under
// row locks, so a concurrent spend between the two steps still rolls back
// cleanly with the same error shape.
func (s *CraftService) Craft(ctx context.Context, accountID, targetItemID string) (*CraftResult, error) {
	state := CraftRequested
	if accountID == "" || targetItemID == "" {
		return s.reject(targetItemID, state, domain.ErrValidation)
	}

	recipe, err := s.catalog.GetRecipe(ctx, targetItemID)
	if err != nil {
		return s.reject(targetItemID, state, err)
	}
	if err := recipe.Validate(); err != nil {
		return s.reject(targetItemID, state, err)
	}

	owned, err := s.ledger.Inventory(ctx, accountID)
	if err != nil {
		return s.reject(targetItemID, state, err)
	}
	state = CraftIngredientsFetched

	quantities := make(map[string]float64, len(owned))
	for _, it := range owned {
		quantities[it.ItemID] = it.Quantity
	}
	for _, ing := range recipe.Ingredients {
		if quantities[ing.ItemID] < ing.Quantity {
			return s.reject(targetItemID, state, &domain.InsufficientInventoryError{Item: ing.ItemID})
		}
	}
	state = CraftValidated

	deltas := make(map[string]float64, len(recipe.Ingredients)+1)
	for _, ing := range recipe.Ingredients {
		deltas[ing.ItemID] -= ing.Quantity
	}
	deltas[targetItemID] += 1

	if err := s.ledger.AdjustInventory(ctx, accountID, deltas); err != nil {
		return s.reject(targetItemID, state, err)
	}

	s.logger.Info("craft applied",
		zap.String("account", accountID),
		zap.String("target", targetItemID),
		zap.Int("ingredients", len(recipe.Ingredients)),
	)
	return &CraftResult{TargetItemID: targetItemID, State: CraftApplied}, nil
}

// Blueprints lists every known recipe.
func (s *CraftService) Blueprints(ctx context.Context) ([]domain.Recipe, error) {
	return s.catalog.ListRecipes(ctx)
}

func (s *CraftService) reject(target string, from CraftState, err error) (*CraftResult, error) {
	s.logger.Warn("craft rejected",
		zap.String("target", target),
		zap.String("state", string(from)),
		zap.String("reason", domain.Code(err)),
	)
	return &CraftResult{TargetItemID: target, State: CraftRejected, Reason: domain.Code(err)}, err
}

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"sekonomy/internal/core/domain"
)

// Catalog and recipes are reference data provisioned outside the core; the
// adapter only ever reads them.

func (m *MySQLAdapter) ListEntries(ctx context.Context) ([]domain.CatalogEntry, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT item_id, display_name, category, description, rarity
		FROM items_info ORDER BY item_id`)
	if err != nil {
		return nil, fmt.Errorf("query catalog: %w", translateErr(err))
	}
	defer rows.Close()

	entries := []domain.CatalogEntry{}
	for rows.Next() {
		var e domain.CatalogEntry
		if err := rows.Scan(&e.ItemID, &e.DisplayName, &e.Category, &e.Description, &e.Rarity); err != nil {
			return nil, fmt.Errorf("scan catalog entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (m *MySQLAdapter) GetRecipe(ctx context.Context, targetItemID string) (*domain.Recipe, error) {
	var target string
	err := m.db.QueryRowContext(ctx,
		`SELECT target_item_id FROM blueprints WHERE target_item_id = ?`,
		targetItemID).Scan(&target)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNoSuchRecipe
	}
	if err != nil {
		return nil, fmt.Errorf("query blueprint: %w", translateErr(err))
	}

	rows, err := m.db.QueryContext(ctx, `
		SELECT item_id, quantity FROM blueprint_ingredients
		WHERE target_item_id = ? ORDER BY position`, targetItemID)
	if err != nil {
		return nil, fmt.Errorf("query ingredients: %w", translateErr(err))
	}
	defer rows.Close()

	recipe := &domain.Recipe{TargetItemID: target}
	for rows.Next() {
		var ing domain.Ingredient
		if err := rows.Scan(&ing.ItemID, &ing.Quantity); err != nil {
			return nil, fmt.Errorf("scan ingredient: %w", err)
		}
		recipe.Ingredients = append(recipe.Ingredients, ing)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return recipe, nil
}

func (m *MySQLAdapter) ListRecipes(ctx context.Context) ([]domain.Recipe, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT b.target_item_id, bi.item_id, bi.quantity
		FROM blueprints b
		LEFT JOIN blueprint_ingredients bi ON bi.target_item_id = b.target_item_id
		ORDER BY b.target_item_id, bi.position`)
	if err != nil {
		return nil, fmt.Errorf("query blueprints: %w", translateErr(err))
	}
	defer rows.Close()

	recipes := []domain.Recipe{}
	var current *domain.Recipe
	for rows.Next() {
		var target string
		var itemID sql.NullString
		var quantity sql.NullFloat64
		if err := rows.Scan(&target, &itemID, &quantity); err != nil {
			return nil, fmt.Errorf("scan blueprint: %w", err)
		}
		if current == nil || current.TargetItemID != target {
			recipes = append(recipes, domain.Recipe{TargetItemID: target})
			current = &recipes[len(recipes)-1]
		}
		if itemID.Valid {
			current.Ingredients = append(current.Ingredients, domain.Ingredient{
				ItemID:   itemID.String,
				Quantity: quantity.Float64,
			})
		}
	}
	return recipes, rows.Err()
}

package domain

// MaxIngredients is the hard cap on ingredients per recipe, inherited from
// the blueprint data format.
const MaxIngredients = 5

// Ingredient is one (item, required quantity) pair of a recipe.
type Ingredient struct {
	ItemID   string
	Quantity float64
}

// Recipe transforms its ingredients into one unit of the target item.
// There is at most one recipe per target item.
type Recipe struct {
	TargetItemID string
	Ingredients  []Ingredient
}

// Validate rejects recipes the crafting resolver must never apply: an empty
// ingredient list, more than MaxIngredients entries, or non-positive
// required quantities.
func (r Recipe) Validate() error {
	if len(r.Ingredients) == 0 {
		return ErrInvalidRecipe
	}
	if len(r.Ingredients) > MaxIngredients {
		return ErrInvalidRecipe
	}
	for _, ing := range r.Ingredients {
		if ing.ItemID == "" || ing.Quantity <= 0 {
			return ErrInvalidRecipe
		}
	}
	return nil
}

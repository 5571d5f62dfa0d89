package domain

// CatalogEntry is read-only item metadata. Rarity is monotonic: higher means
// rarer, 0 is the most common tier.
type CatalogEntry struct {
	ItemID      string
	DisplayName string
	Category    string
	Description string
	Rarity      int
}

// InventoryItem is one owned item joined with its catalog metadata, as
// returned by the inventory view. Zero-quantity items are never included.
type InventoryItem struct {
	ItemID      string  `json:"item_id"`
	DisplayName string  `json:"display_name"`
	Category    string  `json:"category"`
	Rarity      int     `json:"rarity"`
	Quantity    float64 `json:"quantity"`
}

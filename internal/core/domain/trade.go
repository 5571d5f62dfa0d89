package domain

import "time"

// Trade is one append-only trade log entry. Rows are never updated or
// deleted once written.
type Trade struct {
	ID           string    `json:"id"`
	SellerID     string    `json:"seller_id"`
	BuyerID      string    `json:"buyer_id"`
	ItemID       string    `json:"item_id"`
	PricePerUnit float64   `json:"price_per_unit"`
	Quantity     int64     `json:"quantity"`
	CreatedAt    time.Time `json:"created_at"`
}

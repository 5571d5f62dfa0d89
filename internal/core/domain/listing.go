package domain

import "time"

// Listing is a marketplace offer. The listed quantity is held in escrow: it
// was deducted from the seller's inventory when the listing was created and
// only ever returns via purchase (to the buyer) or cancellation (to the
// seller).
type Listing struct {
	ID           int64     `json:"id"`
	SellerID     string    `json:"seller_id"`
	ItemID       string    `json:"item_id"`
	PricePerUnit float64   `json:"price_per_unit"`
	Quantity     int64     `json:"quantity"`
	CreatedAt    time.Time `json:"created_at"`
}

// ListingFilter narrows and paginates ListListings results. SellerID and
// ExcludeSeller implement the "my listings" / "everyone else's listings"
// toggle; both empty means no seller restriction.
type ListingFilter struct {
	SellerID      string
	ExcludeSeller string
	ItemID        string
	Limit         int
	Offset        int
}

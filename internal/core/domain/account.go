package domain

import "time"

// Account is a player's persistent economic identity, keyed by the platform
// account id the auth layer verified upstream.
type Account struct {
	ID          string
	Nickname    string
	Balance     float64
	TotalDamage float64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// RankEntry is one row of the total-damage leaderboard.
type RankEntry struct {
	Rank        int     `json:"rank"`
	AccountID   string  `json:"account_id"`
	TotalDamage float64 `json:"total_damage"`
}

package leaderboard

// Leaderboard kinds.
const (
	BoardOffsets     = "offsets"
	BoardEmissions   = "emissions"
	BoardNetPositive = "net_positive"
)

// Entry is one ranked row. Names are display names only; no account or email
// data leaves this package.
type Entry struct {
	Rank    int     `db:"-" json:"rank"`
	Name    string  `db:"name" json:"name"`
	TotalKg float64 `db:"total_kg" json:"total_kg"`
	Count   int     `db:"count" json:"count"`
}

// GlobalStats summarizes platform-wide activity.
type GlobalStats struct {
	TotalUsers       int     `db:"total_users" json:"total_users"`
	TotalEmissionsKg float64 `db:"total_emissions_kg" json:"total_emissions_kg"`
	TotalOffsetKg    float64 `db:"total_offset_kg" json:"total_offset_kg"`
	TotalRedeemedKg  float64 `db:"total_redeemed_kg" json:"total_redeemed_kg"`
}

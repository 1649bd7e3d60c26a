package entities

// DailyUsage tracks cumulative spend through the daily-capped operation
// for one account on one date. The limit itself is configuration, not
// stored per record.
type DailyUsage struct {
	AccountID string
	DateKey   string // YYYY-MM-DD
	Used      int64  // Never exceeds the configured limit
}

// DailyEarned is the high-water mark of client-reported earnings for one
// account, economy kind, and date. Daily sync only ever moves it upward.
type DailyEarned struct {
	AccountID string
	Kind      EconomyKind
	DateKey   string // YYYY-MM-DD
	Earned    int64
}

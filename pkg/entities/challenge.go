package entities

import (
	"time"
)

// ChallengeMode determines how a challenge key scopes its claims.
type ChallengeMode string

const (
	// ModeMonthly challenges can be claimed once per calendar month.
	ModeMonthly ChallengeMode = "monthly"
	// ModeCumulative challenges can be claimed once per account, ever.
	ModeCumulative ChallengeMode = "cumulative"
)

// RewardType represents what a challenge grants on first claim.
type RewardType string

const (
	RewardCoin   RewardType = "coin"   // Disburses coins through the coin wallet
	RewardUnlock RewardType = "unlock" // Marks a feature unlocked, no monetary effect
)

// ChallengeDefinition describes one entry of the static reward catalog.
// The catalog is read-only; definitions are never created at runtime.
type ChallengeDefinition struct {
	Key         string        // Unique reward key
	Mode        ChallengeMode // How claims are scoped
	Requires    string        // Key whose claim count gates this challenge, empty when ungated
	Threshold   int           // Minimum claims of Requires before this can be claimed
	Reward      RewardType    // What a successful claim grants
	Coins       int64         // Coin amount for RewardCoin definitions
	Feature     string        // Feature identifier for RewardUnlock definitions
	Description string
}

// ChallengeClaim is a permanent record that a specific reward for a
// specific period has been granted to an account. Claims are unique per
// (account, key, period) and are never deleted or reversed.
type ChallengeClaim struct {
	ID              string    // Unique identifier
	AccountID       string    // Account the reward was granted to
	Key             string    // Reward key from the catalog
	PeriodKey       string    // YYYY-MM for monthly keys, empty for cumulative
	ClientRequestID string    // Idempotency key supplied with the claim, may be empty
	ClaimedAt       time.Time // When the claim was recorded
}

package challenge

import (
	"github.com/fadedpez/caminata/pkg/entities"
)

// Catalog is the static, read-only set of challenge definitions.
// Definitions are never created or modified at runtime.
type Catalog struct {
	byKey map[string]*entities.ChallengeDefinition
	keys  []string
}

// NewCatalog builds a catalog from a list of definitions
func NewCatalog(definitions []*entities.ChallengeDefinition) *Catalog {
	catalog := &Catalog{byKey: make(map[string]*entities.ChallengeDefinition)}
	for _, def := range definitions {
		catalog.byKey[def.Key] = def
		catalog.keys = append(catalog.keys, def.Key)
	}
	return catalog
}

// Get retrieves a definition by key
func (c *Catalog) Get(key string) (*entities.ChallengeDefinition, bool) {
	def, ok := c.byKey[key]
	return def, ok
}

// Keys returns every key in registration order
func (c *Catalog) Keys() []string {
	return c.keys
}

// DefaultCatalog returns the production challenge set.
func DefaultCatalog() *Catalog {
	return NewCatalog([]*entities.ChallengeDefinition{
		{
			Key:         "monthly_start",
			Mode:        entities.ModeMonthly,
			Reward:      entities.RewardCoin,
			Coins:       50,
			Description: "First recorded activity of the month",
		},
		{
			Key:         "monthly_regular",
			Mode:        entities.ModeMonthly,
			Reward:      entities.RewardCoin,
			Coins:       150,
			Description: "Active on ten days within the month",
		},
		{
			Key:         "founder_frame",
			Mode:        entities.ModeCumulative,
			Requires:    "monthly_start",
			Threshold:   1,
			Reward:      entities.RewardUnlock,
			Feature:     "frame_founder",
			Description: "Profile frame for finishing a first month",
		},
		{
			Key:         "bronze_badge",
			Mode:        entities.ModeCumulative,
			Requires:    "monthly_start",
			Threshold:   3,
			Reward:      entities.RewardUnlock,
			Feature:     "badge_bronze",
			Description: "Badge for three active months",
		},
		{
			Key:         "silver_badge",
			Mode:        entities.ModeCumulative,
			Requires:    "monthly_start",
			Threshold:   6,
			Reward:      entities.RewardUnlock,
			Feature:     "badge_silver",
			Description: "Badge for six active months",
		},
	})
}

package engine

import (
	"matchmaker/core/config"
	"matchmaker/feature/matching/models"
)

// Policy decides who pays for a pairing and how much. Only ChargedCategory pays;
// the other side is never charged.
type Policy struct {
	ChargedCategory     models.Category
	Cost                int64
	RequireUpfrontCheck bool
}

// PolicyFromConfig builds a Policy from the matching configuration.
func PolicyFromConfig(cfg config.MatchingConfig) Policy {
	return Policy{
		ChargedCategory:     models.Category(cfg.ChargedCategory),
		Cost:                cfg.Cost,
		RequireUpfrontCheck: cfg.UpfrontCheck,
	}
}

// Charges reports whether a user of category pays.
func (p Policy) Charges(category models.Category) bool {
	return p.Cost > 0 && category == p.ChargedCategory
}

// costBearer returns the paying side of a pair, or nil when nobody pays.
func (p Policy) costBearer(a, b *candidate) *candidate {
	switch {
	case p.Charges(a.Category):
		return a
	case p.Charges(b.Category):
		return b
	}
	return nil
}

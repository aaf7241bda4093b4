package models

// RuleSet is the immutable compensation-plan snapshot supplied per
// calculation. The engines never mutate it.
type RuleSet struct {
	MaxHierarchyLevels int
	AutoActivation     bool

	Tiers      []CommissionTier
	BonusRules []BonusRule
	Caps       []CommissionCap

	ResidualEnabled      bool
	ResidualPeriodMonths int
	ResidualFactor       float64

	FraudThresholds []FraudThreshold
}

// ThresholdFor returns the configured threshold for an alert category,
// or nil if none is configured.
func (r *RuleSet) ThresholdFor(category AlertCategory) *FraudThreshold {
	for i := range r.FraudThresholds {
		if r.FraudThresholds[i].Metric == category {
			return &r.FraudThresholds[i]
		}
	}
	return nil
}

// TiersForLevel returns the tiers configured at the given level.
func (r *RuleSet) TiersForLevel(level int) []CommissionTier {
	var out []CommissionTier
	for _, t := range r.Tiers {
		if t.Level == level {
			out = append(out, t)
		}
	}
	return out
}

package commission

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uplinepay/backend/internal/models"
	"github.com/uplinepay/backend/internal/store"
)

func floatPtr(v float64) *float64 { return &v }
func intPtr(v int) *int           { return &v }

func testCatalog() *store.StaticCatalog {
	return store.NewStaticCatalog(
		models.Product{ID: "starter-kit", Name: "Starter Kit", Commissionable: true},
		models.Product{ID: "brochure", Name: "Brochure", Commissionable: false},
		models.Product{
			ID:             "premium-kit",
			Name:           "Premium Kit",
			Commissionable: true,
			RateOverrides:  map[int]float64{1: 0.20},
		},
	)
}

func testEngine() *Engine {
	e := NewEngine(testCatalog())
	e.now = func() time.Time { return time.Date(2026, 6, 15, 10, 0, 0, 0, time.UTC) }
	return e
}

func activePartner(level int) models.Partner {
	return models.Partner{
		Base:   models.Base{ID: uuid.New()},
		Status: models.PartnerStatusActive,
		Level:  level,
	}
}

func baseRules() *models.RuleSet {
	return &models.RuleSet{
		MaxHierarchyLevels: 10,
		Tiers: []models.CommissionTier{
			{Level: 1, Name: "direct", Rate: 0.10, RateKind: models.RatePercentage},
			{Level: 2, Name: "second", Rate: 0.05, RateKind: models.RatePercentage},
			{Level: 3, Name: "third", Rate: 0.02, RateKind: models.RatePercentage},
		},
	}
}

func transaction(amount float64, productID string) models.Transaction {
	return models.Transaction{
		Base:      models.Base{ID: uuid.New()},
		PartnerID: uuid.New(),
		Amount:    amount,
		Currency:  models.CurrencyUSD,
		ProductID: productID,
		Timestamp: time.Date(2026, 6, 15, 9, 0, 0, 0, time.UTC),
	}
}

func TestCalculateMultiLevel(t *testing.T) {
	engine := testEngine()
	upline := []models.Partner{activePartner(3), activePartner(2), activePartner(1)}

	dist, err := engine.Calculate(context.Background(), transaction(1000, "starter-kit"), upline, baseRules())
	require.NoError(t, err)

	require.Len(t, dist.Commissions, 3)
	assert.InDelta(t, 100.00, dist.Commissions[0].Amount, 0.001)
	assert.InDelta(t, 50.00, dist.Commissions[1].Amount, 0.001)
	assert.InDelta(t, 20.00, dist.Commissions[2].Amount, 0.001)
	assert.Equal(t, 1, dist.Commissions[0].Level)
	assert.Equal(t, upline[0].ID, dist.Commissions[0].PartnerID)
	assert.InDelta(t, 170.00, dist.TotalPaid, 0.001)
	assert.True(t, Consistent(dist))
}

func TestCalculateRejectsNonPositiveAmount(t *testing.T) {
	engine := testEngine()

	_, err := engine.Calculate(context.Background(), transaction(0, "starter-kit"), nil, baseRules())
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = engine.Calculate(context.Background(), transaction(-5, "starter-kit"), nil, baseRules())
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestCalculateNonCommissionableProduct(t *testing.T) {
	engine := testEngine()
	upline := []models.Partner{activePartner(1)}

	dist, err := engine.Calculate(context.Background(), transaction(1000, "brochure"), upline, baseRules())
	require.NoError(t, err)
	assert.Empty(t, dist.Commissions)
	assert.InDelta(t, 0.0, dist.TotalPaid, 0.001)

	// Unknown products behave the same way.
	dist, err = engine.Calculate(context.Background(), transaction(1000, "does-not-exist"), upline, baseRules())
	require.NoError(t, err)
	assert.Empty(t, dist.Commissions)
}

func TestCalculateProductRateOverride(t *testing.T) {
	engine := testEngine()
	upline := []models.Partner{activePartner(2), activePartner(1)}

	dist, err := engine.Calculate(context.Background(), transaction(1000, "premium-kit"), upline, baseRules())
	require.NoError(t, err)

	require.Len(t, dist.Commissions, 2)
	// Level 1 override replaces the tier rate; level 2 keeps its own.
	assert.InDelta(t, 200.00, dist.Commissions[0].Amount, 0.001)
	assert.InDelta(t, 0.20, dist.Commissions[0].Rate, 0.0001)
	assert.InDelta(t, 50.00, dist.Commissions[1].Amount, 0.001)
}

func TestCalculateQualificationSkipsLevel(t *testing.T) {
	engine := testEngine()
	rules := baseRules()
	rules.Tiers[0].Qualification = models.Qualification{MinPersonalVolume: floatPtr(100)}

	low := activePartner(2)
	low.PersonalVolume = 50
	upline := []models.Partner{low, activePartner(1)}

	dist, err := engine.Calculate(context.Background(), transaction(1000, "starter-kit"), upline, baseRules())
	require.NoError(t, err)
	require.Len(t, dist.Commissions, 2)

	dist, err = engine.Calculate(context.Background(), transaction(1000, "starter-kit"), upline, rules)
	require.NoError(t, err)
	// The unqualified level-1 partner earns nothing; level 2 still pays.
	require.Len(t, dist.Commissions, 1)
	assert.Equal(t, 2, dist.Commissions[0].Level)
	assert.InDelta(t, 50.00, dist.Commissions[0].Amount, 0.001)
}

func TestSelectTierPicksHighestQualifyingRate(t *testing.T) {
	rules := baseRules()
	rules.Tiers = append(rules.Tiers, models.CommissionTier{
		Level:         1,
		Name:          "elite",
		Rate:          0.15,
		RateKind:      models.RatePercentage,
		Qualification: models.Qualification{MinActiveDownline: intPtr(5)},
	})

	basic := activePartner(1)
	tier := selectTier(rules, 1, &basic)
	require.NotNil(t, tier)
	assert.Equal(t, "direct", tier.Name)

	elite := activePartner(1)
	elite.ActiveDownline = 8
	tier = selectTier(rules, 1, &elite)
	require.NotNil(t, tier)
	assert.Equal(t, "elite", tier.Name)
}

func TestCalculateMinTransactionVolume(t *testing.T) {
	engine := testEngine()
	rules := baseRules()
	rules.Tiers[0].MinTransactionVolume = floatPtr(500)

	upline := []models.Partner{activePartner(2), activePartner(1)}

	dist, err := engine.Calculate(context.Background(), transaction(100, "starter-kit"), upline, rules)
	require.NoError(t, err)
	// Level 1 skipped for being under the tier's transaction floor.
	require.Len(t, dist.Commissions, 1)
	assert.Equal(t, 2, dist.Commissions[0].Level)
}

func TestCalculateMonthlyEarningsCap(t *testing.T) {
	engine := testEngine()
	rules := baseRules()
	rules.Tiers[0].MaxMonthlyEarnings = floatPtr(1000)

	nearCap := activePartner(2)
	nearCap.MonthEarnings = 970
	upline := []models.Partner{nearCap}

	dist, err := engine.Calculate(context.Background(), transaction(1000, "starter-kit"), upline, rules)
	require.NoError(t, err)
	require.Len(t, dist.Commissions, 1)
	// 10% of 1000 would be 100, clamped to the 30 remaining this month.
	assert.InDelta(t, 30.00, dist.Commissions[0].Amount, 0.001)
}

func TestCalculateMonthlyEarningsCapExhausted(t *testing.T) {
	engine := testEngine()
	rules := baseRules()
	rules.Tiers[0].MaxMonthlyEarnings = floatPtr(1000)

	atCap := activePartner(2)
	atCap.MonthEarnings = 1000
	upline := []models.Partner{atCap}

	dist, err := engine.Calculate(context.Background(), transaction(1000, "starter-kit"), upline, rules)
	require.NoError(t, err)
	assert.Empty(t, dist.Commissions)
	assert.InDelta(t, 0.0, dist.TotalPaid, 0.001)
}

func TestCalculateLevelCap(t *testing.T) {
	engine := testEngine()
	rules := baseRules()
	rules.Tiers[1].Rate = 0.07
	rules.Caps = []models.CommissionCap{
		{Name: "level 2 cap", Level: intPtr(2), MaxAmount: 500},
	}

	upline := []models.Partner{activePartner(3), activePartner(2)}

	dist, err := engine.Calculate(context.Background(), transaction(10000, "starter-kit"), upline, rules)
	require.NoError(t, err)
	require.Len(t, dist.Commissions, 2)
	// Level 1 uncapped: 10% of 10000. Level 2: 7% would be 700, capped.
	assert.InDelta(t, 1000.00, dist.Commissions[0].Amount, 0.001)
	assert.InDelta(t, 500.00, dist.Commissions[1].Amount, 0.001)
	assert.True(t, Consistent(dist))
}

func TestCalculateGlobalCap(t *testing.T) {
	engine := testEngine()
	rules := baseRules()
	rules.Caps = []models.CommissionCap{{Name: "global", MaxAmount: 25}}

	upline := []models.Partner{activePartner(2), activePartner(1)}

	dist, err := engine.Calculate(context.Background(), transaction(1000, "starter-kit"), upline, rules)
	require.NoError(t, err)
	require.Len(t, dist.Commissions, 2)
	assert.InDelta(t, 25.00, dist.Commissions[0].Amount, 0.001)
	assert.InDelta(t, 25.00, dist.Commissions[1].Amount, 0.001)
}

func TestCalculateFixedRateTier(t *testing.T) {
	engine := testEngine()
	rules := baseRules()
	rules.Tiers = []models.CommissionTier{
		{Level: 1, Name: "flat", Rate: 15, RateKind: models.RateFixed},
	}

	upline := []models.Partner{activePartner(2)}

	dist, err := engine.Calculate(context.Background(), transaction(1000, "starter-kit"), upline, rules)
	require.NoError(t, err)
	require.Len(t, dist.Commissions, 1)
	assert.InDelta(t, 15.00, dist.Commissions[0].Amount, 0.001)
	assert.Equal(t, models.RateFixed, dist.Commissions[0].RateKind)
}

func TestCalculateDepthLimitedByRules(t *testing.T) {
	engine := testEngine()
	rules := baseRules()
	rules.MaxHierarchyLevels = 2

	upline := []models.Partner{activePartner(3), activePartner(2), activePartner(1)}

	dist, err := engine.Calculate(context.Background(), transaction(1000, "starter-kit"), upline, rules)
	require.NoError(t, err)
	assert.Len(t, dist.Commissions, 2)
}

func TestCalculateBonusRules(t *testing.T) {
	engine := testEngine()
	rules := baseRules()
	rules.BonusRules = []models.BonusRule{
		{
			Name: "team builder",
			Trigger: models.BonusTrigger{
				Metric:   models.MetricActiveDownline,
				Operator: models.OperatorGreaterThan,
				Value:    10,
			},
			RewardKind:   models.RewardFixed,
			RewardAmount: 50,
		},
		{
			Name: "volume driver",
			Trigger: models.BonusTrigger{
				Metric:     models.MetricMonthlyVolume,
				Operator:   models.OperatorBetween,
				Value:      1000,
				UpperValue: floatPtr(5000),
			},
			RewardKind:   models.RewardPercentage,
			RewardAmount: 0.01,
		},
	}

	builder := activePartner(2)
	builder.ActiveDownline = 15
	builder.MonthlyVolume = 2000
	plain := activePartner(1)
	upline := []models.Partner{builder, plain}

	dist, err := engine.Calculate(context.Background(), transaction(1000, "starter-kit"), upline, rules)
	require.NoError(t, err)

	require.Len(t, dist.Bonuses, 2)
	assert.Equal(t, "team builder", dist.Bonuses[0].RuleName)
	assert.InDelta(t, 50.00, dist.Bonuses[0].Amount, 0.001)
	assert.Equal(t, "volume driver", dist.Bonuses[1].RuleName)
	assert.InDelta(t, 10.00, dist.Bonuses[1].Amount, 0.001)
	for _, b := range dist.Bonuses {
		assert.Equal(t, builder.ID, b.PartnerID)
	}
	// 100 + 50 commissions, 60 in bonuses.
	assert.InDelta(t, 210.00, dist.TotalPaid, 0.001)
	assert.True(t, Consistent(dist))
}

func TestCalculateIdempotent(t *testing.T) {
	engine := testEngine()
	upline := []models.Partner{activePartner(2), activePartner(1)}
	tx := transaction(999.99, "starter-kit")

	first, err := engine.Calculate(context.Background(), tx, upline, baseRules())
	require.NoError(t, err)
	second, err := engine.Calculate(context.Background(), tx, upline, baseRules())
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestCalculateRounding(t *testing.T) {
	engine := testEngine()
	upline := []models.Partner{activePartner(2)}

	dist, err := engine.Calculate(context.Background(), transaction(33.33, "starter-kit"), upline, baseRules())
	require.NoError(t, err)
	require.Len(t, dist.Commissions, 1)
	assert.InDelta(t, 3.33, dist.Commissions[0].Amount, 0.0001)
	assert.True(t, Consistent(dist))
}

func TestCalculateResiduals(t *testing.T) {
	engine := testEngine()
	rules := baseRules()
	rules.ResidualEnabled = true
	rules.ResidualPeriodMonths = 12
	rules.ResidualFactor = 0.5

	upline := []models.Partner{activePartner(2)}
	subs := []models.Subscription{
		{
			Base:            models.Base{ID: uuid.New()},
			PartnerID:       uuid.New(),
			ProductID:       "starter-kit",
			RecurringAmount: 1000,
			Currency:        models.CurrencyUSD,
			StartedAt:       time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
			Active:          true,
		},
	}

	dists, err := engine.CalculateResiduals(context.Background(), subs, upline, rules)
	require.NoError(t, err)
	require.Len(t, dists, 1)
	require.Len(t, dists[0].Commissions, 1)
	// Half of the full 10% rate.
	assert.InDelta(t, 50.00, dists[0].Commissions[0].Amount, 0.001)
	assert.InDelta(t, 50.00, dists[0].TotalPaid, 0.001)
	assert.True(t, dists[0].Residual)
	assert.Equal(t, ResidualTransactionID(subs[0].ID, time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC)), dists[0].TransactionID)
}

func TestResidualTransactionIDRecursMonthly(t *testing.T) {
	subID := uuid.New()
	june := time.Date(2026, 6, 30, 23, 0, 0, 0, time.UTC)
	july := time.Date(2026, 7, 31, 23, 0, 0, 0, time.UTC)

	// Stable within a month, fresh each month, distinct per subscription.
	assert.Equal(t, ResidualTransactionID(subID, june), ResidualTransactionID(subID, june.Add(-12*time.Hour)))
	assert.NotEqual(t, ResidualTransactionID(subID, june), ResidualTransactionID(subID, july))
	assert.NotEqual(t, ResidualTransactionID(subID, june), ResidualTransactionID(uuid.New(), june))
}

func TestCalculateResidualsSkipsExpiredAndInactive(t *testing.T) {
	engine := testEngine()
	rules := baseRules()
	rules.ResidualEnabled = true
	rules.ResidualPeriodMonths = 12
	rules.ResidualFactor = 0.5

	upline := []models.Partner{activePartner(2)}
	subs := []models.Subscription{
		{
			Base:            models.Base{ID: uuid.New()},
			ProductID:       "starter-kit",
			RecurringAmount: 100,
			StartedAt:       time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			Active:          true,
		},
		{
			Base:            models.Base{ID: uuid.New()},
			ProductID:       "starter-kit",
			RecurringAmount: 100,
			StartedAt:       time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC),
			Active:          false,
		},
	}

	dists, err := engine.CalculateResiduals(context.Background(), subs, upline, rules)
	require.NoError(t, err)
	assert.Empty(t, dists)
}

func TestCalculateResidualsDisabled(t *testing.T) {
	engine := testEngine()
	rules := baseRules()

	dists, err := engine.CalculateResiduals(context.Background(), []models.Subscription{{Active: true}}, nil, rules)
	require.NoError(t, err)
	assert.Nil(t, dists)
}

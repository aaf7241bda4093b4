package fraud

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uplinepay/backend/internal/models"
)

const (
	// velocityRatioAlert and velocityRatioCritical are multiples of a
	// partner's historical daily referral rate.
	velocityRatioAlert    = 5.0
	velocityRatioCritical = 10.0
	// minVelocityReferrals keeps brand-new partners with no history
	// from alerting on their first few referrals.
	minVelocityReferrals = 5

	geoConcentrationShare = 0.80
	geoHighShare          = 0.95
	geoMinReferrals       = 10

	maxPaymentMethods = 3
	maxMethodChanges  = 2
	minPaymentsSample = 5
	offHoursShare     = 0.70
	offHoursMinSample = 10
	offHoursStart     = 22
	offHoursEnd       = 6

	similarityRatio      = 0.8
	similarityHighCount  = 2
	similarityMinCompare = 2

	farmingMinReferrals = 20
	farmingShare        = 0.80
	minimalFunding      = 10.0

	minLoginSample   = 20
	minDistinctHours = 3
)

// detectReferralVelocity compares the trailing 24h referral count
// against the partner's historical average daily rate. histCount covers
// the remainder of the lookback window, excluding the trailing day.
func detectReferralVelocity(now time.Time, recent []models.ReferralRecord, histCount int) []models.FraudAlert {
	current := len(recent)
	if current < minVelocityReferrals {
		return nil
	}

	histDays := historyDays - 1
	avgDaily := float64(histCount) / histDays
	if avgDaily <= 0 {
		// No history at all: treat one referral over the whole window
		// as the baseline.
		avgDaily = 1.0 / histDays
	}
	ratio := float64(current) / avgDaily
	if ratio < velocityRatioAlert {
		return nil
	}

	severity := models.SeverityHigh
	if ratio >= velocityRatioCritical {
		severity = models.SeverityCritical
	}

	evidence := models.EvidenceList{
		{
			Type:        "velocity_ratio",
			Description: fmt.Sprintf("%d referrals in 24h against an average of %.2f/day", current, avgDaily),
			Value:       ratio,
			Weight:      0.6,
			Timestamp:   now,
		},
		{
			Type:        "recent_referrals",
			Description: "referral count in the trailing 24 hours",
			Value:       float64(current),
			Weight:      0.4,
			Timestamp:   now,
		},
	}

	distinctIPs := map[string]bool{}
	for _, r := range recent {
		if r.SourceIP != "" {
			distinctIPs[r.SourceIP] = true
		}
	}
	if float64(len(distinctIPs)) < 0.3*float64(current) {
		evidence = append(evidence, models.Evidence{
			Type:        "low_ip_diversity",
			Description: fmt.Sprintf("%d distinct source IPs across %d referrals", len(distinctIPs), current),
			Value:       float64(len(distinctIPs)),
			Weight:      0.3,
			Timestamp:   now,
		})
	}

	return []models.FraudAlert{{
		Category:  models.CategoryReferralVelocity,
		Severity:  severity,
		RiskScore: math.Min(1, ratio/20),
		Summary:   fmt.Sprintf("referral velocity %.1fx above historical average", ratio),
		Evidence:  evidence,
	}}
}

// detectGeoConcentration flags referral sets dominated by one country.
func detectGeoConcentration(now time.Time, referrals []models.ReferralRecord) []models.FraudAlert {
	total := len(referrals)
	if total <= geoMinReferrals {
		return nil
	}

	counts := map[string]int{}
	for _, r := range referrals {
		if r.Country != "" {
			counts[r.Country]++
		}
	}
	topCountry := ""
	topCount := 0
	for country, n := range counts {
		if n > topCount {
			topCountry, topCount = country, n
		}
	}
	share := float64(topCount) / float64(total)
	if share <= geoConcentrationShare {
		return nil
	}

	severity := models.SeverityMedium
	if share > geoHighShare {
		severity = models.SeverityHigh
	}
	return []models.FraudAlert{{
		Category:  models.CategoryGeoConcentration,
		Severity:  severity,
		RiskScore: share,
		Summary:   fmt.Sprintf("%s accounts for %.0f%% of %d referrals", topCountry, share*100, total),
		Evidence: models.EvidenceList{{
			Type:        "country_share",
			Description: fmt.Sprintf("top country %s with %d of %d referrals", topCountry, topCount, total),
			Value:       share,
			Weight:      1,
			Timestamp:   now,
		}},
	}}
}

// detectPaymentPattern inspects payment-method churn and the
// time-of-day distribution of a partner's payments.
func detectPaymentPattern(now time.Time, payments []models.ActivityEvent) []models.FraudAlert {
	var alerts []models.FraudAlert

	methods := map[string]bool{}
	changes := 0
	previous := ""
	for _, p := range payments {
		if p.PaymentMethod == "" {
			continue
		}
		methods[p.PaymentMethod] = true
		if previous != "" && p.PaymentMethod != previous {
			changes++
		}
		previous = p.PaymentMethod
	}
	if len(payments) > minPaymentsSample && len(methods) > maxPaymentMethods && changes > maxMethodChanges {
		score := math.Min(1, 0.5+0.1*float64(len(methods)-maxPaymentMethods)+0.05*float64(changes-maxMethodChanges))
		alerts = append(alerts, models.FraudAlert{
			Category:  models.CategoryPaymentPattern,
			Severity:  models.SeverityMedium,
			RiskScore: score,
			Summary:   fmt.Sprintf("%d payment methods with %d changes in 30 days", len(methods), changes),
			Evidence: models.EvidenceList{
				{
					Type:        "method_diversity",
					Description: "distinct payment methods in the trailing 30 days",
					Value:       float64(len(methods)),
					Weight:      0.5,
					Timestamp:   now,
				},
				{
					Type:        "method_changes",
					Description: "method switches between consecutive payments",
					Value:       float64(changes),
					Weight:      0.5,
					Timestamp:   now,
				},
			},
		})
	}

	if len(payments) > offHoursMinSample {
		offHours := 0
		for _, p := range payments {
			hour := p.OccurredAt.Hour()
			if hour >= offHoursStart || hour < offHoursEnd {
				offHours++
			}
		}
		share := float64(offHours) / float64(len(payments))
		if share > offHoursShare {
			alerts = append(alerts, models.FraudAlert{
				Category:  models.CategoryPaymentPattern,
				Severity:  models.SeverityMedium,
				RiskScore: share,
				Summary:   fmt.Sprintf("%.0f%% of %d payments outside 06:00-22:00", share*100, len(payments)),
				Evidence: models.EvidenceList{{
					Type:        "off_hours_share",
					Description: "fraction of payments outside normal hours",
					Value:       share,
					Weight:      1,
					Timestamp:   now,
				}},
			})
		}
	}

	return alerts
}

// detectAccountSimilarity compares the partner's identity fields against
// every other partner and flags near-duplicate profiles.
func detectAccountSimilarity(now time.Time, partner *models.Partner, all []models.Partner) []models.FraudAlert {
	type match struct {
		other uuid.UUID
		ratio float64
	}
	var matches []match
	for i := range all {
		other := &all[i]
		if other.ID == partner.ID {
			continue
		}
		compared, equal := 0, 0
		pairs := [][2]string{
			{strings.ToLower(partner.Email), strings.ToLower(other.Email)},
			{partner.Phone, other.Phone},
			{partner.Address, other.Address},
			{partner.BankAccount, other.BankAccount},
			{partner.LastIP, other.LastIP},
			{partner.LastUserAgent, other.LastUserAgent},
		}
		for _, pair := range pairs {
			if pair[0] == "" || pair[1] == "" {
				continue
			}
			compared++
			if pair[0] == pair[1] {
				equal++
			}
		}
		if compared < similarityMinCompare {
			continue
		}
		ratio := float64(equal) / float64(compared)
		if ratio > similarityRatio {
			matches = append(matches, match{other: other.ID, ratio: ratio})
		}
	}
	if len(matches) == 0 {
		return nil
	}

	severity := models.SeverityMedium
	if len(matches) > similarityHighCount {
		severity = models.SeverityHigh
	}
	evidence := make(models.EvidenceList, 0, len(matches))
	for _, m := range matches {
		evidence = append(evidence, models.Evidence{
			Type:        "similar_account",
			Description: fmt.Sprintf("identity fields match partner %s", m.other),
			Value:       m.ratio,
			Weight:      1.0 / float64(len(matches)),
			Timestamp:   now,
		})
	}
	return []models.FraudAlert{{
		Category:  models.CategoryAccountSimilarity,
		Severity:  severity,
		RiskScore: math.Min(1, 0.5+0.15*float64(len(matches))),
		Summary:   fmt.Sprintf("%d partner profiles share identity fields", len(matches)),
		Evidence:  evidence,
	}}
}

// detectNetworkManipulation looks for direct one-hop referral cycles
// (a referred partner whose own referrals include the referrer) and for
// referral farming, where most referrals show minimal account funding.
//
// Only single-hop back-references are checked; longer cycles (A->B->C->A)
// require walking the full referral chain and are left to the hierarchy
// validator's acyclicity scan.
func (e *Engine) detectNetworkManipulation(ctx context.Context, now time.Time, partnerID uuid.UUID, referrals []models.ReferralRecord) ([]models.FraudAlert, error) {
	var alerts []models.FraudAlert

	var cycles models.EvidenceList
	for _, r := range referrals {
		back, err := e.activity.HasReferral(ctx, r.ReferredID, partnerID)
		if err != nil {
			return nil, fmt.Errorf("error checking back-reference: %w", err)
		}
		if back {
			cycles = append(cycles, models.Evidence{
				Type:        "referral_cycle",
				Description: fmt.Sprintf("referred partner %s refers back to %s", r.ReferredID, partnerID),
				Value:       1,
				Weight:      1,
				Timestamp:   now,
			})
		}
	}
	if len(cycles) > 0 {
		alerts = append(alerts, models.FraudAlert{
			Category:  models.CategoryNetworkManipulation,
			Severity:  models.SeverityHigh,
			RiskScore: math.Min(1, 0.7+0.1*float64(len(cycles))),
			Summary:   fmt.Sprintf("%d direct referral cycles detected", len(cycles)),
			Evidence:  cycles,
		})
	}

	if len(referrals) > farmingMinReferrals {
		lowFunding := 0
		for _, r := range referrals {
			if r.InitialDeposit < minimalFunding {
				lowFunding++
			}
		}
		share := float64(lowFunding) / float64(len(referrals))
		if share > farmingShare {
			alerts = append(alerts, models.FraudAlert{
				Category:  models.CategoryNetworkManipulation,
				Severity:  models.SeverityHigh,
				RiskScore: share,
				Summary:   fmt.Sprintf("%.0f%% of %d referrals show minimal funding", share*100, len(referrals)),
				Evidence: models.EvidenceList{{
					Type:        "referral_farming",
					Description: fmt.Sprintf("%d of %d referrals funded below %.2f", lowFunding, len(referrals), minimalFunding),
					Value:       share,
					Weight:      1,
					Timestamp:   now,
				}},
			})
		}
	}

	return alerts, nil
}

// detectBehavioralPattern flags unnaturally regular login schedules.
func detectBehavioralPattern(now time.Time, logins []models.ActivityEvent) []models.FraudAlert {
	if len(logins) <= minLoginSample {
		return nil
	}
	hours := map[int]bool{}
	for _, l := range logins {
		hours[l.OccurredAt.Hour()] = true
	}
	if len(hours) >= minDistinctHours {
		return nil
	}
	return []models.FraudAlert{{
		Category:  models.CategoryBehavioralPattern,
		Severity:  models.SeverityMedium,
		RiskScore: math.Min(1, 1-float64(len(hours))/10),
		Summary:   fmt.Sprintf("%d logins spread over only %d distinct hours", len(logins), len(hours)),
		Evidence: models.EvidenceList{{
			Type:        "login_regularity",
			Description: "distinct login hours across the lookback window",
			Value:       float64(len(hours)),
			Weight:      1,
			Timestamp:   now,
		}},
	}}
}

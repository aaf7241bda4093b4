package hierarchy

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/uplinepay/backend/internal/models"
)

// Issue is one finding from a hierarchy integrity scan.
type Issue struct {
	PartnerID uuid.UUID `json:"partner_id"`
	Field     string    `json:"field"`
	Message   string    `json:"message"`
}

// ValidationReport accumulates integrity errors and warnings. It never
// blocks other operations.
type ValidationReport struct {
	Partners int     `json:"partners"`
	Errors   []Issue `json:"errors"`
	Warnings []Issue `json:"warnings"`
}

// Valid reports whether the scan found no errors.
func (r *ValidationReport) Valid() bool {
	return len(r.Errors) == 0
}

func (r *ValidationReport) addError(id uuid.UUID, field, format string, args ...interface{}) {
	r.Errors = append(r.Errors, Issue{PartnerID: id, Field: field, Message: fmt.Sprintf(format, args...)})
}

func (r *ValidationReport) addWarning(id uuid.UUID, field, format string, args ...interface{}) {
	r.Warnings = append(r.Warnings, Issue{PartnerID: id, Field: field, Message: fmt.Sprintf(format, args...)})
}

// ValidateHierarchy runs a full-graph integrity scan: sponsor existence
// and level ordering, path length and content, depth limits and
// acyclicity. It reads the whole partner set once and mutates nothing.
func (s *Service) ValidateHierarchy(ctx context.Context) (*ValidationReport, error) {
	rules, err := s.rules.RuleSet(ctx)
	if err != nil {
		return nil, fmt.Errorf("error loading rule set: %w", err)
	}
	partners, err := s.partners.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	byID := make(map[uuid.UUID]*models.Partner, len(partners))
	childCount := make(map[uuid.UUID]int, len(partners))
	for i := range partners {
		byID[partners[i].ID] = &partners[i]
	}
	for i := range partners {
		if partners[i].SponsorID != nil {
			childCount[*partners[i].SponsorID]++
		}
	}

	report := &ValidationReport{Partners: len(partners)}
	for i := range partners {
		p := &partners[i]

		if p.SponsorID != nil {
			sponsor, ok := byID[*p.SponsorID]
			if !ok {
				report.addError(p.ID, "sponsor_id", "sponsor %s does not exist", *p.SponsorID)
			} else if sponsor.Level >= p.Level {
				report.addError(p.ID, "level", "sponsor level %d is not below partner level %d", sponsor.Level, p.Level)
			}
		}

		chain, err := models.DecodePath(p.Path)
		if err != nil {
			report.addError(p.ID, "path", "undecodable path: %v", err)
			continue
		}
		if len(chain) != p.Level-1 {
			report.addError(p.ID, "path", "path length %d does not match level %d", len(chain), p.Level)
		}
		for _, id := range chain {
			if id == p.ID {
				report.addError(p.ID, "path", "partner appears in its own ancestor path")
				break
			}
		}

		if rules.MaxHierarchyLevels > 0 && p.Level > rules.MaxHierarchyLevels {
			report.addError(p.ID, "level", "level %d exceeds maximum depth %d", p.Level, rules.MaxHierarchyLevels)
		}

		// Walk the sponsor chain; a repeated id means a cycle.
		seen := map[uuid.UUID]bool{p.ID: true}
		current := p
		for current.SponsorID != nil {
			next, ok := byID[*current.SponsorID]
			if !ok {
				break
			}
			if seen[next.ID] {
				report.addError(p.ID, "sponsor_id", "cycle detected through %s", next.ID)
				break
			}
			seen[next.ID] = true
			current = next
		}

		if p.DirectReferrals != childCount[p.ID] {
			report.addWarning(p.ID, "direct_referrals", "counter %d does not match %d actual children", p.DirectReferrals, childCount[p.ID])
		}
	}

	return report, nil
}

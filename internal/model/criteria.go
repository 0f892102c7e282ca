package model

import (
	"fmt"
	"strings"
	"time"
)

// BudgetTier buckets a buyer's target price point.
type BudgetTier string

const (
	BudgetTierBudget  BudgetTier = "budget"
	BudgetTierMid     BudgetTier = "mid"
	BudgetTierPremium BudgetTier = "premium"
)

// Criteria is the buyer's structured sourcing requirements. It is created
// once per run and never mutated afterwards.
//
// MOQMin/MOQMax are inclusive bounds; either may be nil. The model does not
// reject MOQMin > MOQMax; callers are expected not to construct inverted
// ranges.
type Criteria struct {
	Locations                []string     `json:"locations" yaml:"locations"`
	MOQMin                   *int         `json:"moq_min,omitempty" yaml:"moq_min,omitempty"`
	MOQMax                   *int         `json:"moq_max,omitempty" yaml:"moq_max,omitempty"`
	CertificationsOfInterest []string     `json:"certifications_of_interest" yaml:"certifications_of_interest"`
	PreferredCertifications  []string     `json:"preferred_certifications" yaml:"preferred_certifications"`
	Materials                []string     `json:"materials" yaml:"materials"`
	ProductionMethods        []string     `json:"production_methods" yaml:"production_methods"`
	BudgetTiers              []BudgetTier `json:"budget_tier" yaml:"budget_tier"`
	Notes                    string       `json:"notes,omitempty" yaml:"notes,omitempty"`
	CreatedAt                time.Time    `json:"created_at" yaml:"created_at"`
}

// HasMOQPreference reports whether either order-quantity bound is set.
func (c Criteria) HasMOQPreference() bool {
	return c.MOQMin != nil || c.MOQMax != nil
}

// Summary renders the criteria as a short human-readable block for logs
// and prompts.
func (c Criteria) Summary() string {
	var parts []string

	if len(c.Locations) > 0 {
		parts = append(parts, "Locations: "+strings.Join(c.Locations, ", "))
	}
	if c.HasMOQPreference() {
		var bounds []string
		if c.MOQMin != nil {
			bounds = append(bounds, fmt.Sprintf("min: %d", *c.MOQMin))
		}
		if c.MOQMax != nil {
			bounds = append(bounds, fmt.Sprintf("max: %d", *c.MOQMax))
		}
		parts = append(parts, "MOQ: "+strings.Join(bounds, ", "))
	}
	if len(c.CertificationsOfInterest) > 0 {
		parts = append(parts, "Certifications of interest: "+strings.Join(c.CertificationsOfInterest, ", "))
	}
	if len(c.PreferredCertifications) > 0 {
		parts = append(parts, "Preferred certifications: "+strings.Join(c.PreferredCertifications, ", "))
	}
	if len(c.Materials) > 0 {
		parts = append(parts, "Materials: "+strings.Join(c.Materials, ", "))
	}
	if len(c.ProductionMethods) > 0 {
		parts = append(parts, "Production methods: "+strings.Join(c.ProductionMethods, ", "))
	}
	if len(c.BudgetTiers) > 0 {
		tiers := make([]string, len(c.BudgetTiers))
		for i, t := range c.BudgetTiers {
			tiers[i] = string(t)
		}
		parts = append(parts, "Budget tier: "+strings.Join(tiers, ", "))
	}
	if c.Notes != "" {
		parts = append(parts, "Notes: "+c.Notes)
	}

	if len(parts) == 0 {
		return "No specific criteria (general search)"
	}
	return strings.Join(parts, "\n")
}

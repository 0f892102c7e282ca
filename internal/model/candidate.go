package model

import "time"

// Confidence classifies how trustworthy a candidate's extracted data is.
type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// Contact holds a manufacturer's contact channels. Each field is optional;
// empty string means unknown.
type Contact struct {
	Email   string `json:"email,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Address string `json:"address,omitempty"`
}

// Count returns the number of populated contact channels.
func (c Contact) Count() int {
	n := 0
	if c.Email != "" {
		n++
	}
	if c.Phone != "" {
		n++
	}
	if c.Address != "" {
		n++
	}
	return n
}

// WebsiteSignals carries credibility and business signals spotted on a
// candidate's website. It is an optional side-channel: extraction may leave
// it nil entirely, and scoring treats absence as zero evidence.
type WebsiteSignals struct {
	Testimonials             bool `json:"testimonials,omitempty"`
	Portfolio                bool `json:"portfolio,omitempty"`
	FactoryPhotos            bool `json:"factory_photos,omitempty"`
	Awards                   bool `json:"awards,omitempty"`
	SustainabilityFocus      bool `json:"sustainability_focus,omitempty"`
	TransparentSupplyChain   bool `json:"transparent_supply_chain,omitempty"`
	SocialResponsibility     bool `json:"social_responsibility,omitempty"`
	EnvironmentalInitiatives bool `json:"environmental_initiatives,omitempty"`
	RecentUpdates            bool `json:"recent_updates,omitempty"`
	ExportExperience         bool `json:"export_experience,omitempty"`
	InternationalClients     bool `json:"international_clients,omitempty"`
	TradeShows               bool `json:"trade_shows,omitempty"`
	MultipleSources          bool `json:"multiple_sources,omitempty"`
	YearsInBusiness          int  `json:"years_in_business,omitempty"`
}

// Candidate is a prospective manufacturer record. It is created by the
// extraction phase, enriched in place by the scoring engine, then handed to
// persistence. SourceURL is the dedup key: one candidate per source URL.
type Candidate struct {
	SourceURL         string     `json:"source_url"`
	Name              string     `json:"name"`
	Website           string     `json:"website"`
	Location          string     `json:"location,omitempty"`
	Contact           Contact    `json:"contact"`
	Materials         []string   `json:"materials"`
	ProductionMethods []string   `json:"production_methods"`
	Certifications    []string   `json:"certifications"`
	MOQ               *int       `json:"moq,omitempty"`
	MOQDescription    string     `json:"moq_description,omitempty"`

	MatchScore float64    `json:"match_score"`
	Confidence Confidence `json:"confidence"`
	Rationale  string     `json:"rationale,omitempty"`

	Signals   *WebsiteSignals `json:"website_signals,omitempty"`
	ScrapedAt time.Time       `json:"scraped_at"`
}

// CompletenessPct is the percentage of the 8 tracked data fields that are
// populated. It drives both the data-richness bonus and the confidence tier.
func (m Candidate) CompletenessPct() float64 {
	const total = 8
	filled := 0
	if m.Location != "" {
		filled++
	}
	if m.Contact.Email != "" {
		filled++
	}
	if m.Contact.Phone != "" {
		filled++
	}
	if m.Contact.Address != "" {
		filled++
	}
	if len(m.Materials) > 0 {
		filled++
	}
	if len(m.ProductionMethods) > 0 {
		filled++
	}
	if len(m.Certifications) > 0 {
		filled++
	}
	if m.MOQ != nil {
		filled++
	}
	return float64(filled) / total * 100
}

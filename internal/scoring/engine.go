// Package scoring ranks manufacturer candidates against buyer criteria.
//
// The engine follows one rule throughout: reward evidence, never penalize
// absence. A missing field contributes zero points, never a deduction. Five
// independently capped categories plus uncapped bonuses sum to a final score
// clamped to [0,100].
package scoring

import (
	"fmt"
	"math"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/sells-group/sourcing-cli/internal/model"
)

// Engine scores candidates. It is stateless apart from its lookup tables, so
// a single Engine is safe for concurrent use and re-scoring persisted
// candidates against new criteria yields identical results for identical
// inputs.
type Engine struct {
	tables  *Tables
	printer *message.Printer
	titler  cases.Caser
}

// NewEngine returns an Engine using the given tables, or DefaultTables when
// tables is nil.
func NewEngine(tables *Tables) *Engine {
	if tables == nil {
		tables = DefaultTables()
	}
	return &Engine{
		tables:  tables,
		printer: message.NewPrinter(language.English),
		titler:  cases.Title(language.English),
	}
}

// Outcome is the result of scoring one candidate.
type Outcome struct {
	Score      float64
	Confidence model.Confidence
	Rationale  string
}

type category struct {
	score  float64
	detail string
	items  []string
}

func (c category) text() string {
	if len(c.items) > 0 {
		return strings.Join(c.items, ", ")
	}
	return c.detail
}

// Score evaluates a candidate against criteria. The rationale string is
// fully determined by its inputs: scoring the same pair twice produces
// byte-identical output.
func (e *Engine) Score(cand model.Candidate, crit model.Criteria) Outcome {
	location := e.scoreLocation(cand, crit)
	moq := e.scoreMOQ(cand, crit)
	certs := e.scoreCertifications(cand)
	materials := e.scoreMaterials(cand, crit)
	production := e.scoreProduction(cand, crit)
	bonuses := e.scoreBonuses(cand)

	base := location.score + moq.score + certs.score + materials.score + production.score
	final := math.Min(100, math.Max(0, base+bonuses.score))
	final = math.Round(final*10) / 10

	confidence := e.assessConfidence(cand)
	rationale := e.renderRationale(cand, confidence, []labeledCategory{
		{"Location", location},
		{"MOQ", moq},
		{"Certifications", certs},
		{"Materials", materials},
		{"Production", production},
	}, bonuses, base, final)

	return Outcome{Score: final, Confidence: confidence, Rationale: rationale}
}

// Apply scores a candidate and writes the outcome back onto it.
func (e *Engine) Apply(cand *model.Candidate, crit model.Criteria) {
	out := e.Score(*cand, crit)
	cand.MatchScore = out.Score
	cand.Confidence = out.Confidence
	cand.Rationale = out.Rationale
}

func containsEither(a, b string) bool {
	return strings.Contains(a, b) || strings.Contains(b, a)
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// Location: exact match takes the full cap, same region 18, trade partner
// 12, any stated location 8, unknown 0. No preference means full points.
func (e *Engine) scoreLocation(cand model.Candidate, crit model.Criteria) category {
	if len(crit.Locations) == 0 {
		return category{score: LocationCap, detail: "No location preference (full points)"}
	}
	if cand.Location == "" {
		return category{detail: "Location unknown"}
	}

	loc := strings.ToLower(cand.Location)

	for _, pref := range crit.Locations {
		if containsEither(loc, strings.ToLower(pref)) {
			return category{score: LocationCap, detail: fmt.Sprintf("%s (exact match)", cand.Location)}
		}
	}

	candRegion := e.tables.regionOf(loc)
	for _, pref := range crit.Locations {
		prefRegion := e.tables.regionOf(strings.ToLower(pref))
		if candRegion != "" && candRegion == prefRegion {
			return category{score: 18, detail: fmt.Sprintf("%s (same region: %s)", cand.Location, candRegion)}
		}
	}

	for _, pref := range crit.Locations {
		for _, partner := range e.tables.partnersOf(strings.ToLower(pref)) {
			if containsEither(loc, partner) {
				return category{score: 12, detail: fmt.Sprintf("%s (trade partner of %s)", cand.Location, pref)}
			}
		}
	}

	return category{score: 8, detail: fmt.Sprintf("%s (stated, not preferred)", cand.Location)}
}

// MOQ: in range 20, within a 30% band 15, flexible wording 12, low-MOQ
// wording 10 or 8 depending on how low the buyer wants, small orders 8, any
// stated figure 5. Textual descriptions are checked before the numeric MOQ.
func (e *Engine) scoreMOQ(cand model.Candidate, crit model.Criteria) category {
	if !crit.HasMOQPreference() {
		return category{score: MOQCap, detail: "No MOQ preference (full points)"}
	}

	if desc := strings.ToLower(cand.MOQDescription); desc != "" {
		switch {
		case containsAny(desc, []string{"flexible", "negotiable"}):
			return category{score: 12, detail: fmt.Sprintf("'%s' (flexible MOQ)", cand.MOQDescription)}
		case strings.Contains(desc, "low moq") || strings.Contains(desc, "low minimum"):
			score := 8.0
			if crit.MOQMax != nil && *crit.MOQMax <= 1000 {
				score = 10
			}
			return category{score: score, detail: fmt.Sprintf("'%s' (low MOQ)", cand.MOQDescription)}
		case strings.Contains(desc, "small order"):
			return category{score: 8, detail: fmt.Sprintf("'%s' (small orders welcome)", cand.MOQDescription)}
		}
	}

	if cand.MOQ == nil {
		return category{detail: "MOQ unknown"}
	}

	moq := float64(*cand.MOQ)
	units := e.printer.Sprintf("%d", *cand.MOQ)
	low, high := 0.0, math.Inf(1)
	if crit.MOQMin != nil {
		low = float64(*crit.MOQMin)
	}
	if crit.MOQMax != nil {
		high = float64(*crit.MOQMax)
	}

	if low <= moq && moq <= high {
		return category{score: MOQCap, detail: fmt.Sprintf("%s units (within range)", units)}
	}
	if low*0.7 <= moq && moq <= high*1.3 {
		return category{score: 15, detail: fmt.Sprintf("%s units (close to range)", units)}
	}
	return category{score: 5, detail: fmt.Sprintf("%s units (stated, outside range)", units)}
}

// Certifications stack: each recognized cert earns its table value, unknown
// certs a small default, "working towards" wording less still. Capped.
func (e *Engine) scoreCertifications(cand model.Candidate) category {
	if len(cand.Certifications) == 0 {
		return category{detail: "No certifications found"}
	}

	var total float64
	var items []string

	for _, cert := range cand.Certifications {
		lower := strings.ToLower(strings.TrimSpace(cert))

		if containsAny(lower, []string{"working towards", "in progress", "pending"}) {
			total += workingTowardsPoints
			items = append(items, fmt.Sprintf("%s (+%.0f)", cert, workingTowardsPoints))
			continue
		}

		matched := false
		for _, known := range e.tables.CertPoints {
			if containsEither(lower, known.Alias) {
				total += known.Points
				items = append(items, fmt.Sprintf("%s (+%.0f)", cert, known.Points))
				matched = true
				break
			}
		}
		if matched {
			continue
		}

		if containsAny(lower, []string{"quality", "ethical", "standard", "compliant"}) {
			total += mentionsStandardsPoints
			items = append(items, fmt.Sprintf("%s (+%.0f)", cert, mentionsStandardsPoints))
		} else {
			total += defaultCertPoints
			items = append(items, fmt.Sprintf("%s (+%.0f)", cert, defaultCertPoints))
		}
	}

	return category{score: math.Min(CertCap, total), items: items}
}

func (e *Engine) scoreMaterials(cand model.Candidate, crit model.Criteria) category {
	if len(cand.Materials) == 0 {
		return category{detail: "Materials unknown"}
	}

	lower := lowerAll(cand.Materials)
	text := strings.Join(lower, " ")
	var total float64
	var items []string

	if containsAny(text, []string{"any material", "custom material", "all materials", "any fabric"}) {
		total += 8
		items = append(items, "Custom/any materials (+8)")
	}

	for _, want := range crit.Materials {
		wantLower := strings.ToLower(want)
		if matchesAny(wantLower, lower) {
			total += 5
			items = append(items, fmt.Sprintf("%s (match, +5)", want))
		} else if sameFamily(wantLower, lower, e.tables.MaterialFamilies) {
			total += 3
			items = append(items, fmt.Sprintf("%s (similar, +3)", want))
		}
	}

	if containsAny(text, e.tables.SustainableKeywords) {
		total += 4
		items = append(items, "Sustainable materials (+4)")
	}
	if containsAny(text, e.tables.PremiumKeywords) {
		total += 5
		items = append(items, "Premium/technical materials (+5)")
	}

	cat := category{score: math.Min(MaterialCap, total), items: items}
	if len(items) == 0 {
		cat.detail = "Materials listed, no criteria match"
	}
	return cat
}

func (e *Engine) scoreProduction(cand model.Candidate, crit model.Criteria) category {
	if len(cand.ProductionMethods) == 0 {
		return category{detail: "Production methods unknown"}
	}

	lower := lowerAll(cand.ProductionMethods)
	text := strings.Join(lower, " ")
	var total float64
	var items []string

	if containsAny(text, e.tables.FullServiceKeywords) {
		total += 10
		items = append(items, "Full service manufacturing (+10)")
	}

	for _, want := range crit.ProductionMethods {
		wantLower := strings.ToLower(want)
		if matchesAny(wantLower, lower) {
			total += 5
			items = append(items, fmt.Sprintf("%s (match, +5)", want))
		} else if sameFamily(wantLower, lower, e.tables.MethodFamilies) {
			total += 3
			items = append(items, fmt.Sprintf("%s (related, +3)", want))
		}
	}

	if containsAny(text, e.tables.FacilityKeywords) {
		total += 5
		items = append(items, "Facility details shown (+5)")
	}

	cat := category{score: math.Min(ProductionCap, total), items: items}
	if len(items) == 0 {
		cat.detail = "Methods listed, no criteria match"
	}
	return cat
}

// Bonuses are uncapped on their own; the final clamp handles overshoot.
func (e *Engine) scoreBonuses(cand model.Candidate) category {
	var total float64
	var items []string

	contacts := cand.Contact.Count()
	if contacts >= 1 {
		total += 4
		items = append(items, "Contact info visible (+4)")
	}
	if contacts >= 2 {
		total += 3
		items = append(items, "Multiple contact methods (+3)")
	}

	populated := populatedFieldCount(cand)
	switch {
	case populated >= 7:
		total += 8
		items = append(items, "Professional, detailed website (+8)")
	case populated >= 5:
		total += 6
		items = append(items, "Good website detail (+6)")
	case populated >= 3:
		total += 4
		items = append(items, "Basic website detail (+4)")
	}

	if s := cand.Signals; s != nil {
		for _, bonus := range e.tables.SignalBonuses {
			if signalSet(s, bonus.Key) {
				total += bonus.Points
				items = append(items, bonus.Label)
			}
		}
		if s.YearsInBusiness >= 10 {
			total += 3
			items = append(items, fmt.Sprintf("%d years in business (+3)", s.YearsInBusiness))
		}
	}

	cat := category{score: total, items: items}
	if len(items) == 0 {
		cat.detail = "No bonus signals detected"
	}
	return cat
}

func signalSet(s *model.WebsiteSignals, key string) bool {
	switch key {
	case "testimonials":
		return s.Testimonials
	case "portfolio":
		return s.Portfolio
	case "factory_photos":
		return s.FactoryPhotos
	case "awards":
		return s.Awards
	case "sustainability_focus":
		return s.SustainabilityFocus
	case "transparent_supply_chain":
		return s.TransparentSupplyChain
	case "social_responsibility":
		return s.SocialResponsibility
	case "environmental_initiatives":
		return s.EnvironmentalInitiatives
	case "recent_updates":
		return s.RecentUpdates
	case "export_experience":
		return s.ExportExperience
	case "international_clients":
		return s.InternationalClients
	case "trade_shows":
		return s.TradeShows
	}
	return false
}

func populatedFieldCount(cand model.Candidate) int {
	n := 0
	if cand.Location != "" {
		n++
	}
	if len(cand.Materials) > 0 {
		n++
	}
	if len(cand.ProductionMethods) > 0 {
		n++
	}
	if len(cand.Certifications) > 0 {
		n++
	}
	if cand.MOQ != nil {
		n++
	}
	n += cand.Contact.Count()
	return n
}

func lowerAll(values []string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = strings.ToLower(v)
	}
	return out
}

func matchesAny(target string, values []string) bool {
	for _, v := range values {
		if containsEither(target, v) {
			return true
		}
	}
	return false
}

// sameFamily reports whether target and any of the candidate's values fall
// inside one family of interchangeable terms.
func sameFamily(target string, values []string, families []Family) bool {
	for _, fam := range families {
		inFamily := false
		for _, member := range fam.Members {
			if containsEither(target, member) {
				inFamily = true
				break
			}
		}
		if !inFamily {
			continue
		}
		for _, v := range values {
			for _, member := range fam.Members {
				if containsEither(v, member) {
					return true
				}
			}
		}
	}
	return false
}

type labeledCategory struct {
	label string
	cat   category
}

func (e *Engine) renderRationale(
	cand model.Candidate,
	confidence model.Confidence,
	categories []labeledCategory,
	bonuses category,
	base, final float64,
) string {
	var b strings.Builder
	b.WriteString("Scoring Breakdown:\n")

	for _, lc := range categories {
		prefix := "○"
		if lc.cat.score > 0 {
			prefix = "✓"
		}
		fmt.Fprintf(&b, "%s %s: %s = +%.0f pts\n", prefix, lc.label, lc.cat.text(), lc.cat.score)
	}

	if bonuses.score > 0 {
		fmt.Fprintf(&b, "✓ Bonuses: %s = +%.0f pts\n", bonuses.text(), bonuses.score)
	}

	b.WriteString("\n")
	fmt.Fprintf(&b, "Subtotal: %.0f points\n", base)
	if bonuses.score > 0 {
		after := base + bonuses.score
		capNote := ""
		if after > 100 {
			capNote = " (capped at 100)"
		}
		fmt.Fprintf(&b, "After bonuses: %.0f points%s\n", after, capNote)
	}
	fmt.Fprintf(&b, "Final Score: %.0f\n", final)
	fmt.Fprintf(&b, "Confidence: %s (%.0f%% data complete)",
		e.titler.String(string(confidence)), cand.CompletenessPct())

	return b.String()
}

package scoring

// Category caps.
const (
	LocationCap   = 25.0
	MOQCap        = 20.0
	CertCap       = 25.0
	MaterialCap   = 15.0
	ProductionCap = 15.0
)

// Fallback certification point values.
const (
	defaultCertPoints        = 4.0
	workingTowardsPoints     = 3.0
	mentionsStandardsPoints  = 2.0
)

// Region groups a named geographic region with the countries it covers.
// Ordered slices keep first-match lookups reproducible.
type Region struct {
	Name      string
	Countries []string
}

// CertValue maps a known certification alias to its point value.
type CertValue struct {
	Alias  string
	Points float64
}

// Family is a set of interchangeable material or production method terms.
type Family struct {
	Name    string
	Members []string
}

// SignalBonus describes one website signal with its point value and the
// label used in the rationale.
type SignalBonus struct {
	Key    string
	Points float64
	Label  string
}

// Tables bundles every lookup table the scoring engine consults. Use
// DefaultTables for the standard apparel-sourcing tables.
type Tables struct {
	Regions       []Region
	TradePartners []struct {
		Country  string
		Partners []string
	}
	CertPoints          []CertValue
	MaterialFamilies    []Family
	MethodFamilies      []Family
	SustainableKeywords []string
	PremiumKeywords     []string
	FullServiceKeywords []string
	FacilityKeywords    []string
	SignalBonuses       []SignalBonus
}

// DefaultTables returns the standard scoring tables.
func DefaultTables() *Tables {
	return &Tables{
		Regions: []Region{
			{"southeast asia", []string{
				"vietnam", "thailand", "indonesia", "cambodia", "myanmar",
				"philippines", "malaysia", "laos", "singapore",
			}},
			{"east asia", []string{
				"china", "japan", "south korea", "korea", "taiwan", "hong kong", "macau",
			}},
			{"south asia", []string{
				"india", "bangladesh", "sri lanka", "pakistan", "nepal",
			}},
			{"north america", []string{
				"usa", "united states", "us", "canada", "mexico",
			}},
			{"central america", []string{
				"guatemala", "honduras", "el salvador", "nicaragua", "costa rica", "panama",
			}},
			{"south america", []string{
				"brazil", "colombia", "peru", "argentina", "chile", "ecuador",
			}},
			{"western europe", []string{
				"portugal", "spain", "italy", "france", "germany", "uk",
				"united kingdom", "england", "ireland", "netherlands", "belgium",
				"switzerland", "austria", "denmark", "sweden", "norway", "finland",
			}},
			{"eastern europe", []string{
				"turkey", "poland", "romania", "czech republic", "hungary",
				"bulgaria", "croatia", "serbia",
			}},
			{"north africa", []string{"morocco", "tunisia", "egypt"}},
			{"sub-saharan africa", []string{
				"ethiopia", "kenya", "madagascar", "mauritius", "south africa",
				"tanzania", "uganda", "ghana", "nigeria",
			}},
			{"middle east", []string{
				"uae", "united arab emirates", "jordan", "israel",
				"saudi arabia", "bahrain", "qatar", "oman",
			}},
			{"oceania", []string{"australia", "new zealand", "fiji"}},
		},
		TradePartners: []struct {
			Country  string
			Partners []string
		}{
			{"usa", []string{"mexico", "canada", "guatemala", "honduras", "dominican republic"}},
			{"united states", []string{"mexico", "canada", "guatemala", "honduras"}},
			{"us", []string{"mexico", "canada", "guatemala", "honduras"}},
			{"china", []string{"vietnam", "bangladesh", "india", "cambodia"}},
			{"vietnam", []string{"china", "thailand", "cambodia", "indonesia"}},
			{"bangladesh", []string{"india", "sri lanka", "vietnam"}},
			{"india", []string{"bangladesh", "sri lanka", "vietnam"}},
			{"portugal", []string{"spain", "italy", "morocco", "turkey"}},
			{"italy", []string{"portugal", "spain", "turkey", "romania"}},
			{"turkey", []string{"italy", "portugal", "bulgaria", "romania", "morocco"}},
			{"mexico", []string{"usa", "united states", "guatemala", "honduras"}},
			{"canada", []string{"usa", "united states"}},
			{"thailand", []string{"vietnam", "cambodia", "indonesia", "myanmar"}},
			{"indonesia", []string{"vietnam", "thailand", "cambodia"}},
			{"cambodia", []string{"vietnam", "thailand", "china"}},
		},
		CertPoints: []CertValue{
			{"oeko-tex", 8}, {"oeko-tex standard 100", 8}, {"oeko-tex 100", 8}, {"oeko tex", 8},
			{"gots", 8}, {"global organic textile standard", 8},
			{"fair trade", 7}, {"fair trade certified", 7}, {"fairtrade", 7},
			{"bluesign", 7},
			{"wrap", 6}, {"worldwide responsible accredited production", 6},
			{"sa8000", 6}, {"social accountability", 6}, {"sa 8000", 6},
			{"iso 9001", 5}, {"iso9001", 5},
			{"iso 14001", 5}, {"iso14001", 5},
			{"better cotton", 5}, {"bci", 5}, {"better cotton initiative", 5},
			{"cradle to cradle", 6}, {"c2c", 6},
		},
		MaterialFamilies: []Family{
			{"polyester", []string{
				"recycled polyester", "rpet", "repreve", "polyester", "pet", "recycled pet",
			}},
			{"cotton", []string{
				"organic cotton", "cotton", "bci cotton", "pima cotton", "supima cotton",
			}},
			{"nylon", []string{
				"nylon", "recycled nylon", "econyl", "polyamide", "nylon 6", "nylon 66",
			}},
			{"spandex", []string{"spandex", "elastane", "lycra"}},
			{"bamboo", []string{"bamboo", "bamboo viscose", "bamboo lyocell", "bamboo fiber"}},
			{"tencel", []string{"tencel", "lyocell", "modal"}},
			{"merino", []string{"merino wool", "merino", "wool", "fine merino"}},
			{"silk", []string{"silk", "mulberry silk"}},
		},
		MethodFamilies: []Family{
			{"sublimation", []string{
				"sublimation printing", "sublimation", "dye sublimation", "dye-sublimation",
			}},
			{"screen printing", []string{
				"screen printing", "silk screen", "silkscreen", "screen print",
			}},
			{"digital printing", []string{"digital printing", "dtg", "direct to garment"}},
			{"cut and sew", []string{
				"cut-and-sew", "cut and sew", "cmt", "cut make trim", "cut & sew",
			}},
			{"seamless knitting", []string{"seamless knitting", "seamless", "seamless construction"}},
			{"circular knitting", []string{"circular knitting", "circular knit"}},
			{"warp knitting", []string{"warp knitting", "warp knit"}},
			{"knitting", []string{"knitting", "flat knitting", "flatbed knitting"}},
			{"printing", []string{
				"sublimation", "screen printing", "digital printing",
				"heat transfer", "heat press",
			}},
			{"finishing", []string{
				"anti-microbial", "antimicrobial", "moisture wicking",
				"anti-shrink", "dwr", "water repellent",
			}},
			{"dyeing", []string{"dyeing", "garment dyeing", "piece dyeing", "yarn dyeing", "dye"}},
			{"embroidery", []string{"embroidery", "embroidered"}},
			{"laser cutting", []string{"laser cutting", "laser cut"}},
		},
		SustainableKeywords: []string{
			"recycled", "organic", "eco", "sustainable", "biodegradable",
			"plant-based", "hemp", "bamboo", "tencel",
		},
		PremiumKeywords: []string{
			"merino", "cashmere", "silk", "graphene", "coolmax",
			"cordura", "gore-tex", "supplex",
		},
		FullServiceKeywords: []string{
			"full service", "full-service", "complete production", "full package",
			"fpp", "one-stop", "turnkey", "end-to-end",
		},
		FacilityKeywords: []string{
			"factory", "facility", "equipment", "machinery", "production line", "sqm", "sq ft",
		},
		SignalBonuses: []SignalBonus{
			{"testimonials", 5, "Client testimonials (+5)"},
			{"portfolio", 4, "Portfolio shown (+4)"},
			{"factory_photos", 4, "Factory photos (+4)"},
			{"awards", 3, "Industry awards (+3)"},
			{"sustainability_focus", 5, "Strong sustainability messaging (+5)"},
			{"transparent_supply_chain", 4, "Transparent supply chain (+4)"},
			{"social_responsibility", 3, "Social responsibility programs (+3)"},
			{"environmental_initiatives", 3, "Environmental initiatives (+3)"},
			{"recent_updates", 3, "Recent news/updates (+3)"},
			{"export_experience", 3, "Export experience (+3)"},
			{"international_clients", 2, "International client base (+2)"},
			{"trade_shows", 2, "Trade show participation (+2)"},
		},
	}
}

func (t *Tables) regionOf(location string) string {
	for _, r := range t.Regions {
		for _, country := range r.Countries {
			if containsEither(location, country) {
				return r.Name
			}
		}
	}
	return ""
}

func (t *Tables) partnersOf(country string) []string {
	for _, tp := range t.TradePartners {
		if tp.Country == country {
			return tp.Partners
		}
	}
	return nil
}

package scoring

import (
	"math"
	"strings"

	"nil-match/backend/internal/match"
	"nil-match/backend/internal/store"
)

// Result is the scoring output for one brand/athlete pair.
type Result struct {
	BrandID           string   `json:"brand_id"`
	AthleteID         string   `json:"athlete_id"`
	Score             int      `json:"score"`
	AudienceOverlap   float64  `json:"audience_overlap"`
	LocationMatch     float64  `json:"location_match"`
	EngagementQuality float64  `json:"engagement_quality"`
	CategoryAlignment float64  `json:"category_alignment"`
	BudgetFit         float64  `json:"budget_fit"`
	RiskFactors       []string `json:"risk_factors"`
	Explanation       string   `json:"explanation"`
}

// Scorer evaluates brand/athlete pairs against a fixed rule set.
type Scorer struct {
	keywords   []string
	aligned    map[string]map[string]struct{}
	prohibited map[string]struct{}
	categories []string
}

// NewScorer copies the rules into immutable lookup sets.
func NewScorer(rules Rules) *Scorer {
	s := &Scorer{
		aligned:    make(map[string]map[string]struct{}, len(rules.CategorySports)),
		prohibited: make(map[string]struct{}, len(rules.ProhibitedCategories)),
		categories: rules.Categories(),
	}
	for _, kw := range rules.AudienceKeywords {
		if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" {
			s.keywords = append(s.keywords, kw)
		}
	}
	for category, sports := range rules.CategorySports {
		set := make(map[string]struct{}, len(sports))
		for _, sport := range sports {
			set[sport] = struct{}{}
		}
		s.aligned[category] = set
	}
	for _, category := range rules.ProhibitedCategories {
		s.prohibited[category] = struct{}{}
	}
	return s
}

var defaultScorer = NewScorer(DefaultRules())

// Default returns the scorer built from DefaultRules.
func Default() *Scorer {
	return defaultScorer
}

// Evaluate scores a pair with the default rules.
func Evaluate(brand store.Brand, athlete store.Athlete) Result {
	return defaultScorer.Evaluate(brand, athlete)
}

// Keywords returns the audience keywords in use.
func (s *Scorer) Keywords() []string {
	return append([]string(nil), s.keywords...)
}

// MatchedKeywords lists the audience keywords found in a target audience description.
func (s *Scorer) MatchedKeywords(targetAudience string) []string {
	return match.MatchedKeywords(targetAudience, s.keywords)
}

// Categories returns the categories with an aligned-sport entry.
func (s *Scorer) Categories() []string {
	return append([]string(nil), s.categories...)
}

// Evaluate computes the five sub-scores, the weighted score, risk factors and explanation.
func (s *Scorer) Evaluate(brand store.Brand, athlete store.Athlete) Result {
	brandLoc := match.ParseLocation(brand.Location)
	athleteLoc := match.ParseLocation(athlete.Location)

	audience := s.audienceOverlap(brand.TargetAudience)
	location := locationMatch(brandLoc, athleteLoc)
	engagement := engagementQuality(athlete.EngagementRate)
	category := s.categoryAlignment(brand.Category, athlete.Sport)
	budget := budgetFit(brand.Budget, athlete.Followers)

	// Explicit conversions keep each product rounded on its own so the sum is not fused.
	score := int(math.Round(
		float64(audience*WeightAudience) +
			float64(location*WeightLocation) +
			float64(engagement*WeightEngagement) +
			float64(category*WeightCategory) +
			float64(budget*WeightBudget),
	))

	result := Result{
		BrandID:           brand.ID,
		AthleteID:         athlete.ID,
		Score:             score,
		AudienceOverlap:   audience,
		LocationMatch:     location,
		EngagementQuality: engagement,
		CategoryAlignment: category,
		BudgetFit:         budget,
		RiskFactors:       s.riskFactors(brand, athlete),
	}
	result.Explanation = explain(result, brand, athlete, brandLoc.City)
	return result
}

func (s *Scorer) audienceOverlap(targetAudience string) float64 {
	if len(s.keywords) == 0 {
		return 40
	}
	matches := match.CountKeywords(targetAudience, s.keywords)
	return math.Min(100, float64(float64(matches)/float64(len(s.keywords))*100)+40)
}

func locationMatch(brand, athlete match.LocationProfile) float64 {
	switch {
	case brand.SameCity(athlete):
		return 100
	case brand.SameState(athlete):
		return 75
	default:
		return 40
	}
}

func engagementQuality(rate float64) float64 {
	return math.Min(100, rate/6*100)
}

func (s *Scorer) categoryAlignment(category, sport string) float64 {
	if _, ok := s.aligned[category][sport]; ok {
		return 95
	}
	return 55
}

func budgetFit(budget float64, followers int64) float64 {
	estimated := float64(followers) * 0.25
	divisor := estimated
	if divisor == 0 {
		divisor = 1
	}
	difference := math.Abs(budget-estimated) / divisor
	return math.Max(40, 100-float64(difference*50))
}

// Risk factor messages, in the order they are reported.
const (
	RiskLowEngagement = "Low engagement rate may limit campaign effectiveness"
	RiskLimitedBudget = "Limited budget may restrict campaign scope"
	RiskSmallAudience = "Small audience size"
	RiskProhibited    = "CRITICAL: Prohibited category for NCAA athletes"
)

func (s *Scorer) riskFactors(brand store.Brand, athlete store.Athlete) []string {
	risks := []string{}
	if athlete.EngagementRate < LowEngagementRate {
		risks = append(risks, RiskLowEngagement)
	}
	if brand.Budget < LimitedBudget {
		risks = append(risks, RiskLimitedBudget)
	}
	if athlete.Followers < SmallAudience {
		risks = append(risks, RiskSmallAudience)
	}
	if _, ok := s.prohibited[brand.Category]; ok {
		risks = append(risks, RiskProhibited)
	}
	return risks
}

package scoring

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Sub-score weights. They sum to 1.
const (
	WeightAudience   = 0.25
	WeightLocation   = 0.20
	WeightEngagement = 0.20
	WeightCategory   = 0.20
	WeightBudget     = 0.15
)

// Score bands shared by explanations and match filtering.
const (
	ExcellentThreshold = 80
	StrongThreshold    = 65
)

// Risk thresholds.
const (
	LowEngagementRate = 2.0
	LimitedBudget     = 3000.0
	SmallAudience     = 5000
)

// Rules is the static data behind the category and audience sub-scores.
type Rules struct {
	AudienceKeywords     []string            `yaml:"audience_keywords"`
	CategorySports       map[string][]string `yaml:"category_sports"`
	ProhibitedCategories []string            `yaml:"prohibited_categories"`
}

// DefaultRules returns the built-in rule set.
func DefaultRules() Rules {
	return Rules{
		AudienceKeywords: []string{"athlete", "college", "sport", "student", "young"},
		CategorySports: map[string][]string{
			"Apparel":           {"Football", "Basketball", "Baseball", "Soccer", "Volleyball", "Track"},
			"Nutrition":         {"Football", "Basketball", "Track", "Swimming", "Wrestling"},
			"Fitness":           {"Football", "Basketball", "Volleyball", "Track", "Wrestling"},
			"Technology":        {"Basketball", "Baseball", "Soccer", "Golf"},
			"Automotive":        {"Football", "Basketball", "Baseball"},
			"Food & Beverage":   {"Football", "Basketball", "Baseball", "Soccer"},
			"Health & Wellness": {"Track", "Swimming", "Volleyball", "Tennis"},
		},
		ProhibitedCategories: []string{"Alcohol", "Gambling"},
	}
}

// LoadRules reads a YAML rule file. Sections missing from the file keep their default values.
func LoadRules(path string) (Rules, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Rules{}, fmt.Errorf("read rules: %w", err)
	}
	var raw Rules
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Rules{}, fmt.Errorf("unmarshal rules: %w", err)
	}
	rules := DefaultRules()
	if len(raw.AudienceKeywords) > 0 {
		rules.AudienceKeywords = raw.AudienceKeywords
	}
	if len(raw.CategorySports) > 0 {
		rules.CategorySports = raw.CategorySports
	}
	if raw.ProhibitedCategories != nil {
		rules.ProhibitedCategories = raw.ProhibitedCategories
	}
	if err := rules.Validate(); err != nil {
		return Rules{}, err
	}
	return rules, nil
}

// Validate ensures the rule set has at least baseline configuration.
func (r Rules) Validate() error {
	keywords := 0
	for _, kw := range r.AudienceKeywords {
		if strings.TrimSpace(kw) != "" {
			keywords++
		}
	}
	if keywords == 0 {
		return errors.New("audience keywords missing")
	}
	if len(r.CategorySports) == 0 {
		return errors.New("category sports table missing")
	}
	return nil
}

// Weights returns the sub-score weights keyed by sub-score name.
func Weights() map[string]float64 {
	return map[string]float64{
		"audience_overlap":   WeightAudience,
		"location_match":     WeightLocation,
		"engagement_quality": WeightEngagement,
		"category_alignment": WeightCategory,
		"budget_fit":         WeightBudget,
	}
}

// Band names the score band used in explanations.
func Band(score int) string {
	switch {
	case score >= ExcellentThreshold:
		return "excellent"
	case score >= StrongThreshold:
		return "strong"
	default:
		return "moderate"
	}
}

// BandRange returns the inclusive score range of a band name.
func BandRange(band string) (int, int, bool) {
	switch strings.ToLower(strings.TrimSpace(band)) {
	case "excellent":
		return ExcellentThreshold, 100, true
	case "strong":
		return StrongThreshold, ExcellentThreshold - 1, true
	case "moderate":
		return 0, StrongThreshold - 1, true
	default:
		return 0, 0, false
	}
}

// IsTopMatch reports whether a score is highlighted as a top match.
func IsTopMatch(score int) bool {
	return score >= ExcellentThreshold
}

// Sports lists the sports offered by the athlete intake form.
func Sports() []string {
	return []string{"Football", "Basketball", "Baseball", "Soccer", "Volleyball", "Track", "Swimming", "Tennis", "Golf", "Wrestling"}
}

// Categories returns the categories known to the rule set, sorted.
func (r Rules) Categories() []string {
	out := make([]string, 0, len(r.CategorySports))
	for category := range r.CategorySports {
		out = append(out, category)
	}
	sort.Strings(out)
	return out
}

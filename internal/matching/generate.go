package matching

import (
	"sort"
	"time"

	"nil-match/backend/internal/scoring"
	"nil-match/backend/internal/store"
)

// EvaluationID builds the composite identifier for a brand/athlete pair.
func EvaluationID(brandID, athleteID string) string {
	return brandID + "-" + athleteID
}

// Generate scores every brand against every athlete and returns the evaluations sorted by
// score descending. Ties keep generation order (brand-major, athlete-minor). Rank records
// each row's final position.
func Generate(scorer *scoring.Scorer, brands []store.Brand, athletes []store.Athlete, now func() time.Time) []store.Evaluation {
	if scorer == nil {
		scorer = scoring.Default()
	}
	if now == nil {
		now = time.Now
	}

	evals := make([]store.Evaluation, 0, len(brands)*len(athletes))
	for _, brand := range brands {
		for _, athlete := range athletes {
			result := scorer.Evaluate(brand, athlete)
			eval := FromResult(result)
			eval.ID = EvaluationID(brand.ID, athlete.ID)
			eval.CreatedAt = now().UTC()
			evals = append(evals, eval)
		}
	}

	sort.SliceStable(evals, func(i, j int) bool {
		return evals[i].Score > evals[j].Score
	})
	for i := range evals {
		evals[i].Rank = i
	}
	return evals
}

// FromResult converts a scoring result into an unsaved evaluation row.
func FromResult(r scoring.Result) store.Evaluation {
	eval := store.Evaluation{
		BrandID:           r.BrandID,
		AthleteID:         r.AthleteID,
		Score:             r.Score,
		AudienceOverlap:   r.AudienceOverlap,
		LocationMatch:     r.LocationMatch,
		EngagementQuality: r.EngagementQuality,
		CategoryAlignment: r.CategoryAlignment,
		BudgetFit:         r.BudgetFit,
		Explanation:       r.Explanation,
	}
	eval.SetRiskFactors(r.RiskFactors)
	return eval
}

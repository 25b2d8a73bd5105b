package scoring

import (
	"fmt"
	"strconv"
	"strings"

	"nil-match/backend/internal/store"
)

// Sub-score levels that earn a sentence in the explanation.
const (
	explainLocation   = 90
	explainCategory   = 90
	explainEngagement = 80
	explainBudget     = 80
)

func explain(r Result, brand store.Brand, athlete store.Athlete, brandCity string) string {
	var b strings.Builder
	switch Band(r.Score) {
	case "excellent":
		fmt.Fprintf(&b, "Excellent match (%d/100). ", r.Score)
	case "strong":
		fmt.Fprintf(&b, "Strong potential (%d/100). ", r.Score)
	default:
		fmt.Fprintf(&b, "Moderate fit (%d/100). ", r.Score)
	}

	if r.LocationMatch >= explainLocation {
		fmt.Fprintf(&b, "Both based in %s, enabling powerful local marketing synergy. ", brandCity)
	}
	if r.CategoryAlignment >= explainCategory {
		fmt.Fprintf(&b, "%s category aligns perfectly with %s. ", brand.Category, athlete.Sport)
	}
	if r.EngagementQuality >= explainEngagement {
		fmt.Fprintf(&b, "Outstanding %s%% engagement rate indicates highly active, responsive audience. ",
			strconv.FormatFloat(athlete.EngagementRate, 'f', 1, 64))
	}
	if r.BudgetFit >= explainBudget {
		b.WriteString("Budget aligns well with athlete's market value.")
	}
	return b.String()
}

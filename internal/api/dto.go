package api

import (
	"time"

	"nil-match/backend/internal/matching"
	"nil-match/backend/internal/scoring"
	"nil-match/backend/internal/store"
)

// BrandRequest is the payload for creating a brand. Pointers distinguish a missing field from
// an explicit zero.
type BrandRequest struct {
	Name           string   `json:"name"`
	Category       string   `json:"category"`
	Location       string   `json:"location"`
	Budget         *float64 `json:"budget"`
	TargetAudience string   `json:"target_audience"`
	Description    string   `json:"description"`
}

// AthleteRequest is the payload for creating an athlete.
type AthleteRequest struct {
	Name           string   `json:"name"`
	Sport          string   `json:"sport"`
	School         string   `json:"school"`
	Location       string   `json:"location"`
	Followers      *int64   `json:"followers"`
	EngagementRate *float64 `json:"engagement_rate"`
	Bio            string   `json:"bio"`
}

// EvaluateRequest scores one pair without persisting. Stored records are referenced by ID;
// inline records are used when an ID is absent.
type EvaluateRequest struct {
	BrandID   string          `json:"brand_id"`
	AthleteID string          `json:"athlete_id"`
	Brand     *BrandRequest   `json:"brand"`
	Athlete   *AthleteRequest `json:"athlete"`
}

// DealRequest is the payload for creating a deal.
type DealRequest struct {
	BrandID   string  `json:"brand_id"`
	AthleteID string  `json:"athlete_id"`
	Status    string  `json:"status"`
	Value     float64 `json:"value"`
	StartDate string  `json:"start_date"`
	EndDate   string  `json:"end_date"`
}

// DealStatusRequest changes a deal's status.
type DealStatusRequest struct {
	Status string `json:"status"`
}

// BrandDTO is the API representation of a brand.
type BrandDTO struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Category       string    `json:"category"`
	Location       string    `json:"location"`
	Budget         float64   `json:"budget"`
	TargetAudience string    `json:"target_audience"`
	Description    string    `json:"description"`
	CreatedAt      time.Time `json:"created_at"`
}

// AthleteDTO is the API representation of an athlete.
type AthleteDTO struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Sport          string    `json:"sport"`
	School         string    `json:"school"`
	Location       string    `json:"location"`
	Followers      int64     `json:"followers"`
	EngagementRate float64   `json:"engagement_rate"`
	Bio            string    `json:"bio"`
	CreatedAt      time.Time `json:"created_at"`
}

// MatchDTO is the API representation of a persisted evaluation, joined with display names.
type MatchDTO struct {
	ID                string    `json:"id"`
	Rank              int       `json:"rank"`
	BrandID           string    `json:"brand_id"`
	BrandName         string    `json:"brand_name,omitempty"`
	BrandCategory     string    `json:"brand_category,omitempty"`
	AthleteID         string    `json:"athlete_id"`
	AthleteName       string    `json:"athlete_name,omitempty"`
	AthleteSport      string    `json:"athlete_sport,omitempty"`
	Score             int       `json:"score"`
	Band              string    `json:"band"`
	AudienceOverlap   float64   `json:"audience_overlap"`
	LocationMatch     float64   `json:"location_match"`
	EngagementQuality float64   `json:"engagement_quality"`
	CategoryAlignment float64   `json:"category_alignment"`
	BudgetFit         float64   `json:"budget_fit"`
	RiskFactors       []string  `json:"risk_factors"`
	Explanation       string    `json:"explanation"`
	CreatedAt         time.Time `json:"created_at"`
}

// EvaluateResponse wraps an ad-hoc scoring result.
type EvaluateResponse struct {
	scoring.Result
	Band            string   `json:"band"`
	MatchedKeywords []string `json:"matched_keywords"`
}

// DealDTO is the API representation of a deal.
type DealDTO struct {
	ID        string     `json:"id"`
	BrandID   string     `json:"brand_id"`
	AthleteID string     `json:"athlete_id"`
	Status    string     `json:"status"`
	Value     float64    `json:"value"`
	StartDate *time.Time `json:"start_date"`
	EndDate   *time.Time `json:"end_date"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// BrandsResponse lists brands.
type BrandsResponse struct {
	Items []BrandDTO `json:"items"`
	Total int        `json:"total"`
}

// AthletesResponse lists athletes.
type AthletesResponse struct {
	Items []AthleteDTO `json:"items"`
	Total int          `json:"total"`
}

// MatchesResponse is the paginated response for matches.
type MatchesResponse struct {
	Items []MatchDTO `json:"items"`
	Total int64      `json:"total"`
}

// CreateResponse reports a created catalog record and the recompute it triggered.
type CreateResponse struct {
	Item           any               `json:"item"`
	Recompute      *matching.Summary `json:"recompute,omitempty"`
	RecomputeError string            `json:"recompute_error,omitempty"`
}

// StatsResponse is the dashboard summary.
type StatsResponse struct {
	TotalBrands   int64             `json:"total_brands"`
	TotalAthletes int64             `json:"total_athletes"`
	ActiveDeals   int64             `json:"active_deals"`
	TopMatches    int64             `json:"top_matches"`
	LastRecompute *matching.Summary `json:"last_recompute,omitempty"`
}

// BrandFromModel converts a store.Brand into a DTO.
func BrandFromModel(b store.Brand) BrandDTO {
	return BrandDTO{
		ID:             b.ID,
		Name:           b.Name,
		Category:       b.Category,
		Location:       b.Location,
		Budget:         b.Budget,
		TargetAudience: b.TargetAudience,
		Description:    b.Description,
		CreatedAt:      b.CreatedAt,
	}
}

// AthleteFromModel converts a store.Athlete into a DTO.
func AthleteFromModel(a store.Athlete) AthleteDTO {
	return AthleteDTO{
		ID:             a.ID,
		Name:           a.Name,
		Sport:          a.Sport,
		School:         a.School,
		Location:       a.Location,
		Followers:      a.Followers,
		EngagementRate: a.EngagementRate,
		Bio:            a.Bio,
		CreatedAt:      a.CreatedAt,
	}
}

// MatchFromModel converts a store.Evaluation into the DTO representation. Brand and athlete
// are optional and only add display fields.
func MatchFromModel(e store.Evaluation, brand *store.Brand, athlete *store.Athlete) MatchDTO {
	risks := e.RiskFactors()
	if risks == nil {
		risks = []string{}
	}
	dto := MatchDTO{
		ID:                e.ID,
		Rank:              e.Rank,
		BrandID:           e.BrandID,
		AthleteID:         e.AthleteID,
		Score:             e.Score,
		Band:              scoring.Band(e.Score),
		AudienceOverlap:   e.AudienceOverlap,
		LocationMatch:     e.LocationMatch,
		EngagementQuality: e.EngagementQuality,
		CategoryAlignment: e.CategoryAlignment,
		BudgetFit:         e.BudgetFit,
		RiskFactors:       risks,
		Explanation:       e.Explanation,
		CreatedAt:         e.CreatedAt,
	}
	if brand != nil {
		dto.BrandName = brand.Name
		dto.BrandCategory = brand.Category
	}
	if athlete != nil {
		dto.AthleteName = athlete.Name
		dto.AthleteSport = athlete.Sport
	}
	return dto
}

// DealFromModel converts a store.Deal into a DTO.
func DealFromModel(d store.Deal) DealDTO {
	return DealDTO{
		ID:        d.ID,
		BrandID:   d.BrandID,
		AthleteID: d.AthleteID,
		Status:    d.Status,
		Value:     d.Value,
		StartDate: d.StartDate,
		EndDate:   d.EndDate,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

package store

import (
	"encoding/json"
	"strings"
	"time"
)

// Brand is a sponsor looking for athlete partnerships.
type Brand struct {
	ID             string `gorm:"primaryKey;size:64"`
	Name           string `gorm:"size:256;index"`
	Category       string `gorm:"size:64;index"`
	Location       string `gorm:"size:256"`
	Budget         float64
	TargetAudience string `gorm:"type:text"`
	Description    string `gorm:"type:text"`
	CreatedAt      time.Time
}

// Athlete is a college athlete available for brand deals.
type Athlete struct {
	ID             string `gorm:"primaryKey;size:64"`
	Name           string `gorm:"size:256;index"`
	Sport          string `gorm:"size:64;index"`
	School         string `gorm:"size:256"`
	Location       string `gorm:"size:256"`
	Followers      int64
	EngagementRate float64
	Bio            string `gorm:"type:text"`
	CreatedAt      time.Time
}

// Evaluation is one row of the persisted match set. Rank is the position of the row in the
// sorted set so that reads reproduce the generator's ordering.
type Evaluation struct {
	ID                string `gorm:"primaryKey;size:160"`
	BrandID           string `gorm:"size:64;index"`
	AthleteID         string `gorm:"size:64;index"`
	Rank              int    `gorm:"index"`
	Score             int    `gorm:"index"`
	AudienceOverlap   float64
	LocationMatch     float64
	EngagementQuality float64
	CategoryAlignment float64
	BudgetFit         float64
	RiskFactorsJSON   string `gorm:"type:text"`
	Explanation       string `gorm:"type:text"`
	CreatedAt         time.Time
}

// SetRiskFactors stores the ordered risk factor list as JSON.
func (e *Evaluation) SetRiskFactors(factors []string) {
	if factors == nil {
		e.RiskFactorsJSON = "[]"
		return
	}
	payload, _ := json.Marshal(factors)
	e.RiskFactorsJSON = string(payload)
}

// RiskFactors returns the decoded risk factor list.
func (e *Evaluation) RiskFactors() []string {
	if strings.TrimSpace(e.RiskFactorsJSON) == "" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(e.RiskFactorsJSON), &out); err != nil {
		return nil
	}
	return out
}

// Deal statuses.
const (
	DealPending   = "pending"
	DealActive    = "active"
	DealCompleted = "completed"
)

// Deal tracks a sponsorship agreed between a brand and an athlete.
type Deal struct {
	ID        string `gorm:"primaryKey;size:64"`
	BrandID   string `gorm:"size:64;index"`
	AthleteID string `gorm:"size:64;index"`
	Status    string `gorm:"size:16;index"`
	Value     float64
	StartDate *time.Time
	EndDate   *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ValidDealStatus reports whether status is one of the known deal states.
func ValidDealStatus(status string) bool {
	switch status {
	case DealPending, DealActive, DealCompleted:
		return true
	default:
		return false
	}
}

// CanTransition reports whether a deal may move from one status to another. Deals only move
// forward; setting the current status again is a no-op.
func CanTransition(from, to string) bool {
	if from == to {
		return ValidDealStatus(to)
	}
	switch from {
	case DealPending:
		return to == DealActive || to == DealCompleted
	case DealActive:
		return to == DealCompleted
	default:
		return false
	}
}

// DefaultEngagementRate estimates an engagement rate from follower count when an athlete is
// created without one.
func DefaultEngagementRate(followers int64) float64 {
	switch {
	case followers > 50000:
		return 4.2
	case followers > 20000:
		return 3.8
	default:
		return 3.5
	}
}

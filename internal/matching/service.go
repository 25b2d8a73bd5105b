package matching

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"nil-match/backend/internal/metrics"
	"nil-match/backend/internal/scoring"
	"nil-match/backend/internal/store"
	"nil-match/backend/internal/util"
)

// Recompute triggers.
const (
	TriggerBrand   = "brand"
	TriggerAthlete = "athlete"
	TriggerManual  = "manual"
	TriggerStartup = "startup"
	TriggerImport  = "import"
)

// topPreview is how many leading matches are handed to listeners.
const topPreview = 5

// Summary describes a completed recompute.
type Summary struct {
	Trigger     string        `json:"trigger"`
	Brands      int           `json:"brands"`
	Athletes    int           `json:"athletes"`
	Total       int           `json:"total"`
	TopMatches  int           `json:"top_matches"`
	Duration    time.Duration `json:"duration_ns"`
	CompletedAt time.Time     `json:"completed_at"`
}

// Listener is notified after every successful recompute.
type Listener interface {
	MatchesRecomputed(summary Summary, top []store.Evaluation)
}

// Service keeps the persisted match set in step with the brand and athlete catalog.
type Service struct {
	db       *store.Database
	scorer   *scoring.Scorer
	now      func() time.Time
	listener Listener

	mu   sync.Mutex
	last *Summary
}

// NewService wires the recompute service. A nil scorer uses the default rules.
func NewService(db *store.Database, scorer *scoring.Scorer) *Service {
	if scorer == nil {
		scorer = scoring.Default()
	}
	return &Service{db: db, scorer: scorer, now: time.Now}
}

// SetListener registers the listener notified after recomputes.
func (s *Service) SetListener(l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listener = l
}

// Recompute regenerates the full match set from the current catalog and replaces the stored
// set in one transaction. Recomputes are serialized.
func (s *Service) Recompute(ctx context.Context, trigger string) (Summary, error) {
	if s == nil || s.db == nil {
		return Summary{}, errors.New("matching service not configured")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return Summary{}, err
	}

	timer := util.StartTimer()
	brands, err := s.db.ListBrands()
	if err != nil {
		metrics.Recomputations.WithLabelValues(trigger, "failed").Inc()
		return Summary{}, err
	}
	athletes, err := s.db.ListAthletes()
	if err != nil {
		metrics.Recomputations.WithLabelValues(trigger, "failed").Inc()
		return Summary{}, err
	}

	evals := Generate(s.scorer, brands, athletes, s.now)
	if err := ctx.Err(); err != nil {
		metrics.Recomputations.WithLabelValues(trigger, "cancelled").Inc()
		return Summary{}, err
	}
	if err := s.db.ReplaceEvaluations(evals); err != nil {
		metrics.Recomputations.WithLabelValues(trigger, "failed").Inc()
		return Summary{}, fmt.Errorf("replace evaluations: %w", err)
	}

	top := 0
	for _, eval := range evals {
		if scoring.IsTopMatch(eval.Score) {
			top++
		}
	}

	summary := Summary{
		Trigger:     trigger,
		Brands:      len(brands),
		Athletes:    len(athletes),
		Total:       len(evals),
		TopMatches:  top,
		Duration:    timer.Elapsed(),
		CompletedAt: s.now().UTC(),
	}
	s.last = &summary

	metrics.Recomputations.WithLabelValues(trigger, "ok").Inc()
	metrics.RecomputeDuration.Observe(summary.Duration.Seconds())
	metrics.PairsEvaluated.Add(float64(len(evals)))
	metrics.MatchSetSize.Set(float64(len(evals)))
	metrics.TopMatches.Set(float64(top))
	metrics.CatalogSize.WithLabelValues("brands").Set(float64(len(brands)))
	metrics.CatalogSize.WithLabelValues("athletes").Set(float64(len(athletes)))

	logrus.WithFields(logrus.Fields{
		"trigger":     trigger,
		"brands":      summary.Brands,
		"athletes":    summary.Athletes,
		"matches":     summary.Total,
		"top_matches": top,
		"duration_ms": timer.ElapsedMs(),
	}).Info("match set recomputed")

	if s.listener != nil {
		preview := evals
		if len(preview) > topPreview {
			preview = preview[:topPreview]
		}
		s.listener.MatchesRecomputed(summary, preview)
	}
	return summary, nil
}

// LastSummary returns the most recent recompute summary, if any.
func (s *Service) LastSummary() *Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return nil
	}
	snapshot := *s.last
	return &snapshot
}

package store

import (
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *Database {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "store.db"), true)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestBrandsKeepInsertionOrder(t *testing.T) {
	db := openTestDB(t)
	base := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	for i, id := range []string{"zeta", "alpha", "mid"} {
		require.NoError(t, db.CreateBrand(&Brand{ID: id, Name: id, Category: "Apparel", CreatedAt: base.Add(time.Duration(i) * time.Second)}))
	}

	brands, err := db.ListBrands()
	require.NoError(t, err)
	require.Len(t, brands, 3)
	assert.Equal(t, "zeta", brands[0].ID)
	assert.Equal(t, "alpha", brands[1].ID)
	assert.Equal(t, "mid", brands[2].ID)

	count, err := db.CountBrands()
	require.NoError(t, err)
	assert.EqualValues(t, 3, count)

	got, err := db.GetBrand("alpha")
	require.NoError(t, err)
	assert.Equal(t, "Apparel", got.Category)

	_, err = db.GetBrand("missing")
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))
}

func TestCreateRequiresID(t *testing.T) {
	db := openTestDB(t)
	assert.Error(t, db.CreateBrand(&Brand{Name: "nameless"}))
	assert.Error(t, db.CreateAthlete(&Athlete{Name: "nameless"}))
	assert.Error(t, db.CreateBrand(nil))
	assert.Error(t, db.CreateAthlete(nil))
}

func TestDuplicateAthleteRejected(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.CreateAthlete(&Athlete{ID: "a1", Name: "One"}))
	assert.Error(t, db.CreateAthlete(&Athlete{ID: "a1", Name: "Again"}))

	athletes, err := db.ListAthletes()
	require.NoError(t, err)
	assert.Len(t, athletes, 1)
}

func evaluationRow(id string, rank, score int, risks []string) Evaluation {
	e := Evaluation{ID: id, BrandID: "b-" + id, AthleteID: "a-" + id, Rank: rank, Score: score, BudgetFit: float64(score)}
	e.SetRiskFactors(risks)
	return e
}

func scoreBound(v int) *int { return &v }

func TestReplaceAndListEvaluations(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.ReplaceEvaluations([]Evaluation{evaluationRow("old", 0, 50, nil)}))

	rows := []Evaluation{
		evaluationRow("x", 0, 91, nil),
		evaluationRow("y", 1, 74, []string{"Small audience size"}),
		evaluationRow("z", 2, 74, nil),
		evaluationRow("w", 3, 40, []string{"Limited budget may restrict campaign scope", "Small audience size"}),
	}
	require.NoError(t, db.ReplaceEvaluations(rows))

	all, total, err := db.ListEvaluations(EvaluationQuery{})
	require.NoError(t, err)
	assert.EqualValues(t, 4, total)
	ids := []string{}
	for _, row := range all {
		ids = append(ids, row.ID)
	}
	assert.Equal(t, []string{"x", "y", "z", "w"}, ids)
	assert.Equal(t, []string{"Limited budget may restrict campaign scope", "Small audience size"}, all[3].RiskFactors())
	assert.Equal(t, []string{}, all[0].RiskFactors())

	filtered, total, err := db.ListEvaluations(EvaluationQuery{MinScore: 70, MaxScore: scoreBound(79)})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Equal(t, "y", filtered[0].ID)

	capped, total, err := db.ListEvaluations(EvaluationQuery{MaxScore: scoreBound(40)})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, "w", capped[0].ID)

	_, total, err = db.ListEvaluations(EvaluationQuery{MaxScore: scoreBound(0)})
	require.NoError(t, err)
	assert.Zero(t, total)

	page, total, err := db.ListEvaluations(EvaluationQuery{Offset: 1, Limit: 2})
	require.NoError(t, err)
	assert.EqualValues(t, 4, total)
	require.Len(t, page, 2)
	assert.Equal(t, "y", page[0].ID)

	asc, _, err := db.ListEvaluations(EvaluationQuery{Sort: "score_asc"})
	require.NoError(t, err)
	assert.Equal(t, "w", asc[0].ID)
	assert.Equal(t, "z", asc[1].ID)

	byBrand, total, err := db.ListEvaluations(EvaluationQuery{BrandID: "b-z"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, "z", byBrand[0].ID)

	top, err := db.CountTopEvaluations(80)
	require.NoError(t, err)
	assert.EqualValues(t, 1, top)

	_, err = db.GetEvaluation("old")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestReplaceEvaluationsLargeSet(t *testing.T) {
	db := openTestDB(t)
	rows := make([]Evaluation, 0, 240)
	for i := 0; i < 240; i++ {
		rows = append(rows, evaluationRow(fmt.Sprintf("row-%03d", i), i, 100-i%100, nil))
	}
	require.NoError(t, db.ReplaceEvaluations(rows))
	_, total, err := db.ListEvaluations(EvaluationQuery{Limit: 1})
	require.NoError(t, err)
	assert.EqualValues(t, 240, total)

	require.NoError(t, db.ReplaceEvaluations(nil))
	_, total, err = db.ListEvaluations(EvaluationQuery{})
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestDealLifecycle(t *testing.T) {
	db := openTestDB(t)
	deal := &Deal{ID: "d1", BrandID: "b1", AthleteID: "a1", Status: DealPending, Value: 4000}
	require.NoError(t, db.CreateDeal(deal))
	assert.Error(t, db.CreateDeal(&Deal{ID: "d2", Status: "signed"}))

	updated, err := db.UpdateDealStatus("d1", DealActive)
	require.NoError(t, err)
	assert.Equal(t, DealActive, updated.Status)

	active, err := db.CountDealsByStatus(DealActive)
	require.NoError(t, err)
	assert.EqualValues(t, 1, active)

	_, err = db.UpdateDealStatus("d1", DealPending)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = db.UpdateDealStatus("missing", DealActive)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	_, err = db.UpdateDealStatus("d1", DealCompleted)
	require.NoError(t, err)

	deals, err := db.ListDeals(DealCompleted)
	require.NoError(t, err)
	require.Len(t, deals, 1)
	assert.Equal(t, "d1", deals[0].ID)

	none, err := db.ListDeals(DealPending)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to string
		ok       bool
	}{
		{DealPending, DealActive, true},
		{DealPending, DealCompleted, true},
		{DealActive, DealCompleted, true},
		{DealActive, DealPending, false},
		{DealCompleted, DealActive, false},
		{DealActive, DealActive, true},
		{DealPending, "signed", false},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.ok, CanTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}
